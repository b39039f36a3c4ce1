package shell_test

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.trai.ch/wasmblock/internal/adapters/shell"
	"go.trai.ch/wasmblock/internal/core/domain"
	"go.trai.ch/wasmblock/internal/core/ports/mocks"
	"go.uber.org/mock/gomock"
)

func TestFactory_AppliesConfigEnvironment(t *testing.T) {
	skipWindows(t)

	ctrl := gomock.NewController(t)
	log := mocks.NewMockLogger(ctrl)

	cfg := domain.DefaultConfig()
	cfg.Env = []string{"WASMBLOCK_TEST_GREETING=hello"}

	exec := shell.NewFactory(log).ForConfig(cfg)
	var stdout bytes.Buffer
	err := exec.Execute(t.Context(), &domain.Command{
		Name: "sh",
		Args: []string{"-c", "printf %s \"$WASMBLOCK_TEST_GREETING\""},
	}, &stdout, nil)

	require.NoError(t, err)
	assert.Equal(t, "hello", stdout.String())
}

func TestFactory_EchoesStderr(t *testing.T) {
	skipWindows(t)

	ctrl := gomock.NewController(t)
	log := mocks.NewMockLogger(ctrl)
	log.EXPECT().Warn("warning: unused variable")

	exec := shell.NewFactory(log, shell.WithEcho(true)).ForConfig(domain.DefaultConfig())
	err := exec.Execute(t.Context(), &domain.Command{
		Name: "sh",
		Args: []string{"-c", "echo 'warning: unused variable' >&2"},
	}, nil, nil)

	require.NoError(t, err)
}
