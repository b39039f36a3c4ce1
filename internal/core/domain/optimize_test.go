package domain_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go.trai.ch/wasmblock/internal/core/domain"
)

func TestParseOptimizeLevel(t *testing.T) {
	tests := map[string]domain.OptimizeLevel{
		"":    domain.OptimizeOff,
		"off": domain.OptimizeOff,
		"Off": domain.OptimizeOff,
		"1":   domain.OptimizeSpeedMinor,
		"2":   domain.OptimizeSpeedMedium,
		"O3":  domain.OptimizeSpeedMajor,
		"-O4": domain.OptimizeSpeedAggressive,
		"s":   domain.OptimizeSize,
		" z ": domain.OptimizeSizeAggressive,
		"-O":  domain.OptimizeSize,
	}
	for in, want := range tests {
		got, err := domain.ParseOptimizeLevel(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	for _, in := range []string{"5", "fast", "-O9", "0"} {
		_, err := domain.ParseOptimizeLevel(in)
		require.ErrorIs(t, err, domain.ErrConfigInvalid, in)
	}
}

func TestOptimizeLevel_Flag(t *testing.T) {
	assert.Equal(t, "-O2", domain.OptimizeSpeedMedium.Flag())
	assert.Equal(t, "-Oz", domain.OptimizeSizeAggressive.Flag())
	assert.False(t, domain.OptimizeOff.Enabled())
	assert.True(t, domain.OptimizeSize.Enabled())
}

func TestFeatureFlags(t *testing.T) {
	flags := domain.FeatureFlags([]string{"simd", "bulk_memory", "atomics", "simd", "nonsense"})
	assert.Equal(t, []string{"--enable-bulk-memory", "--enable-simd", "--enable-threads"}, flags)
	assert.Empty(t, domain.FeatureFlags(nil))

	require.NoError(t, domain.ValidateFeatures([]string{"gc", "multi_memories", "all"}))
	require.ErrorIs(t, domain.ValidateFeatures([]string{"gc", "teleport"}), domain.ErrConfigInvalid)

	assert.Equal(t, []string{"bulk_memory"}, domain.DefaultFeatures()["go"])
}
