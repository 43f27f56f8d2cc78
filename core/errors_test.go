package core

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestError(t *testing.T) {
	t.Parallel()

	t.Run("NewError skips nil causes", func(t *testing.T) {
		t.Parallel()

		e := NewError("validation failed", ErrValidation, nil, ErrConflict)

		assert.Equal(t, "validation failed", e.Message)
		assert.Equal(t, []string{ErrValidation.Error(), ErrConflict.Error()}, e.Messages())
	})

	t.Run("Error renders JSON", func(t *testing.T) {
		t.Parallel()

		got := NewError("not found", ErrEventNotFound).Error()
		assert.JSONEq(t, `{"message":"not found","err":["event not found"]}`, got)
	})

	t.Run("Unwrap joins causes", func(t *testing.T) {
		t.Parallel()

		unwrapped := NewError("base", errors.New("first"), errors.New("second")).Unwrap()
		require.Error(t, unwrapped)
		assert.Contains(t, unwrapped.Error(), "first")
		assert.Contains(t, unwrapped.Error(), "second")
	})

	t.Run("Unwrap nil or empty", func(t *testing.T) {
		t.Parallel()

		var e *Error
		require.NoError(t, e.Unwrap())

		e2 := &Error{Message: "no errors"}
		require.NoError(t, e2.Unwrap())
	})
}

func TestSentinels(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		err      error
		target   error
		expected bool
	}{
		{name: "event not found is not found", err: ErrEventNotFound, target: ErrNotFound, expected: true},
		{name: "attendee not found is not found", err: ErrAttendeeNotFound, target: ErrNotFound, expected: true},
		{name: "unknown event is a validation error", err: ErrUnknownEvent, target: ErrValidation, expected: true},
		{name: "unknown event is also not found", err: ErrUnknownEvent, target: ErrEventNotFound, expected: true},
		{name: "conflict is not validation", err: ErrConflict, target: ErrValidation, expected: false},
		{name: "wrapped conflict", err: fmt.Errorf("adding: %w", ErrConflict), target: ErrConflict, expected: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			assert.Equal(t, tt.expected, errors.Is(tt.err, tt.target))
		})
	}
}

func TestIsExpected(t *testing.T) {
	t.Parallel()

	assert.True(t, IsExpected(fmt.Errorf("%w: title is required", ErrValidation)))
	assert.True(t, IsExpected(ErrConflict))
	assert.True(t, IsExpected(ErrAttendeeNotFound))
	assert.False(t, IsExpected(errors.New("connection reset")))
	assert.False(t, IsExpected(nil))
}
