package apperrors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTypeOf(t *testing.T) {
	cause := errors.New("boom")

	tests := []struct {
		name string
		err  error
		want ErrorType
	}{
		{name: "validation", err: NewValidationError("bad"), want: ErrorTypeValidation},
		{name: "wrapped conflict", err: fmt.Errorf("verify: %w", NewConflictError("taken")), want: ErrorTypeConflict},
		{name: "external", err: NewExternalError("provider down", cause), want: ErrorTypeExternal},
		{name: "plain error", err: cause, want: ErrorTypeInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, TypeOf(tt.err))
		})
	}
}

func TestAppErrorUnwrap(t *testing.T) {
	cause := errors.New("connection refused")
	err := NewExternalError("video provider unavailable", cause)

	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "EXTERNAL: video provider unavailable: connection refused", err.Error())
	assert.True(t, Is(err, ErrorTypeExternal))
	assert.False(t, Is(nil, ErrorTypeExternal))
}
