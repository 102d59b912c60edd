package mcp

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/Aman-CERP/variomes/internal/cache"
	verrors "github.com/Aman-CERP/variomes/internal/errors"
)

func TestMapError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		code int
	}{
		{"still processing", fmt.Errorf("rank: %w", cache.ErrStillProcessing), ErrCodeStillProcessing},
		{"deadline", context.DeadlineExceeded, ErrCodeTimeout},
		{"canceled", context.Canceled, ErrCodeTimeout},
		{"tool not found", ErrToolNotFound, ErrCodeMethodNotFound},
		{"file not found", verrors.New(verrors.ErrCodeFileNotFound, "missing", nil), ErrCodeFileNotFound},
		{"network timeout", verrors.New(verrors.ErrCodeNetworkTimeout, "slow", nil), ErrCodeTimeout},
		{"network down", verrors.NetworkError("down", nil), ErrCodeBackendUnavailable},
		{"validation", verrors.ValidationError("bad", nil), ErrCodeInvalidParams},
		{"internal", verrors.InternalError("boom", nil), ErrCodeInternalError},
		{"plain error", errors.New("boom"), ErrCodeInternalError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := MapError(tt.err)

			assert.Equal(t, tt.code, got.Code)
			assert.NotEmpty(t, got.Message)
		})
	}
}

func TestMapError_Nil(t *testing.T) {
	assert.Nil(t, MapError(nil))
}

func TestMapError_PassesThroughMCPErrors(t *testing.T) {
	orig := NewInvalidParamsError("genvars is required")

	got := MapError(fmt.Errorf("wrapped: %w", orig))

	assert.Same(t, orig, got)
}

func TestMapError_AppendsSuggestion(t *testing.T) {
	err := verrors.ValidationError("bad date", nil).WithSuggestion("Use a year.")

	got := MapError(err)

	assert.Equal(t, "bad date Use a year.", got.Message)
}

func TestMCPError_Error(t *testing.T) {
	err := NewRequestFailedError("VCF file not found")

	assert.Contains(t, err.Error(), "VCF file not found")
	assert.Contains(t, err.Error(), fmt.Sprint(ErrCodeRequestFailed))
}
