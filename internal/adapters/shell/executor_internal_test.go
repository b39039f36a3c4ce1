package shell

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/mock/gomock"

	"go.trai.ch/wasmblock/internal/core/ports/mocks"
)

func TestLogWriter_SplitsLines(t *testing.T) {
	ctrl := gomock.NewController(t)
	log := mocks.NewMockLogger(ctrl)

	gomock.InOrder(
		log.EXPECT().Warn("first"),
		log.EXPECT().Warn("second"),
		log.EXPECT().Warn("tail"),
	)

	w := &logWriter{logger: log}
	_, _ = w.Write([]byte("first\r\nsec"))
	_, _ = w.Write([]byte("ond\n\n"))
	_, _ = w.Write([]byte("tail"))
	assert.NoError(t, w.Close())
}

func TestFilterSystemEnv(t *testing.T) {
	allowed := map[string]struct{}{"PATH": {}, "HOME": {}}
	got := filterSystemEnv([]string{"PATH=/bin", "SECRET=x", "HOME=/root", "BROKEN"}, allowed)

	assert.Equal(t, map[string]string{"PATH": "/bin", "HOME": "/root"}, got)
}
