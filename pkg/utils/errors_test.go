package utils

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAppErrorMatchesSentinel(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		sentinel error
		check    func(error) bool
	}{
		{"configuration", NewConfigurationError("no controller"), ErrConfiguration, IsConfiguration},
		{"validation", NewValidationError("bad field", errors.New("boom")), ErrValidation, IsValidation},
		{"backend", NewBackendError("write rejected", nil), ErrBackend, IsBackend},
		{"schema", NewSchemaError("title", "schema must have a title"), ErrSchema, IsSchema},
		{"identifier", NewInvalidIdentifierError("xyz"), ErrInvalidIdentifier, IsInvalidIdentifier},
		{"not found", NewAppError(CodeNotFound, "missing", nil), ErrNotFound, IsNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			wrapped := fmt.Errorf("outer: %w", tt.err)
			assert.True(t, errors.Is(wrapped, tt.sentinel))
			assert.True(t, tt.check(wrapped))
			assert.False(t, errors.Is(wrapped, ErrInvalidInput))
		})
	}
}

func TestSchemaErrorDetails(t *testing.T) {
	err := NewSchemaError("properties", "schema must have properties")
	assert.Equal(t, "properties", err.Details["requirement"])
	assert.Contains(t, err.Error(), CodeSchema)
}

func TestWrapError(t *testing.T) {
	assert.Nil(t, WrapError(nil, "ignored"))

	err := WrapError(ErrBackend, "failed to insert %s", "doc")
	assert.EqualError(t, err, "failed to insert doc: backend error")
	assert.True(t, IsBackend(err))
}
