package errors

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWrap(t *testing.T) {
	original := New("original")
	wrapped := Wrap(original, "wrapped")

	assert.Contains(t, wrapped.Error(), "wrapped")
	assert.Contains(t, wrapped.Error(), "original")
	assert.True(t, Is(wrapped, original))
}

func TestSentinelsSurviveWrapping(t *testing.T) {
	tests := []struct {
		name     string
		sentinel error
	}{
		{"not found", ErrNotFound},
		{"malformed chain", ErrMalformedChain},
		{"invalid name", ErrInvalidName},
		{"dangling parent", ErrDanglingParent},
		{"index corrupt", ErrIndexCorrupt},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Wrapf(tt.sentinel, "context %d", 7)
			err = Wrap(err, "outer")
			assert.True(t, Is(err, tt.sentinel))
			assert.Contains(t, err.Error(), "context 7")
		})
	}
}

func TestSentinelsAreDistinct(t *testing.T) {
	assert.False(t, Is(ErrNotFound, ErrMalformedChain))
	assert.False(t, Is(ErrInvalidName, ErrInvalidRequest))
	assert.False(t, Is(ErrDanglingParent, ErrNotFound))
}

func TestIsNotFoundError(t *testing.T) {
	assert.False(t, IsNotFoundError(nil))
	assert.False(t, IsNotFoundError(New("other")))
	assert.True(t, IsNotFoundError(NewNotFoundError("orbit %s", "abc")))
}

func TestIsInvalidRequestError(t *testing.T) {
	assert.True(t, IsInvalidRequestError(NewInvalidRequestError("bad %s", "input")))
	assert.True(t, IsInvalidRequestError(Wrap(ErrInvalidName, "too short")))
	assert.False(t, IsInvalidRequestError(ErrNotFound))
}

func TestWithHint(t *testing.T) {
	err := WithHint(ErrDanglingParent, "collect descendants before building")

	hints := GetAllHints(err)
	require.Len(t, hints, 1)
	assert.Equal(t, "collect descendants before building", hints[0])
	assert.True(t, Is(err, ErrDanglingParent))
}

func TestGetStack(t *testing.T) {
	err := Wrap(New("base"), "context")
	assert.NotNil(t, GetStack(err))
}
