package domain_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.trai.ch/wasmblock/internal/core/domain"
)

func TestBlockStatus_IsTerminal(t *testing.T) {
	tests := []struct {
		status     domain.BlockStatus
		isTerminal bool
	}{
		{domain.BlockStatusPending, false},
		{domain.BlockStatusRunning, false},
		{domain.BlockStatusBuilt, true},
		{domain.BlockStatusCached, true},
		{domain.BlockStatusFailed, true},
	}

	for _, tt := range tests {
		t.Run(string(tt.status), func(t *testing.T) {
			assert.Equal(t, tt.isTerminal, tt.status.IsTerminal())
		})
	}
}

func TestCompletionStatus(t *testing.T) {
	assert.Equal(t, domain.BlockStatusBuilt, domain.CompletionStatus(false, nil))
	assert.Equal(t, domain.BlockStatusCached, domain.CompletionStatus(true, nil))
	assert.Equal(t, domain.BlockStatusFailed, domain.CompletionStatus(true, errors.New("boom")))
}
