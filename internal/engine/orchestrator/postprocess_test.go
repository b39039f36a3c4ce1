package orchestrator_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go.trai.ch/wasmblock/internal/engine/orchestrator"
)

func TestStripCustomSections(t *testing.T) {
	header := []byte{0x00, 'a', 's', 'm', 0x01, 0x00, 0x00, 0x00}
	typeSection := []byte{0x01, 0x04, 0x01, 0x60, 0x00, 0x00}
	nameSection := []byte{0x00, 0x05, 0x04, 'n', 'a', 'm', 'e'}
	codeSection := []byte{0x0a, 0x01, 0x00}

	module := append(append(append(append([]byte{}, header...), nameSection...), typeSection...), codeSection...)
	module = append(module, nameSection...)

	stripped, err := orchestrator.StripCustomSections(module)
	require.NoError(t, err)

	want := append(append(append([]byte{}, header...), typeSection...), codeSection...)
	assert.Equal(t, want, stripped)

	again, err := orchestrator.StripCustomSections(stripped)
	require.NoError(t, err)
	assert.Equal(t, stripped, again)
}

func TestStripCustomSections_Invalid(t *testing.T) {
	_, err := orchestrator.StripCustomSections([]byte("not wasm at all"))
	require.Error(t, err)

	truncated := []byte{0x00, 'a', 's', 'm', 0x01, 0x00, 0x00, 0x00, 0x01, 0x10, 0x00}
	_, err = orchestrator.StripCustomSections(truncated)
	require.Error(t, err)
}
