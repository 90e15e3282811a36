package errors

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	err := New("test error")
	require.NotNil(t, err)
	assert.Equal(t, "test error", err.Error())
}

func TestWrap(t *testing.T) {
	original := New("original")
	wrapped := Wrap(original, "wrapped")

	assert.Contains(t, wrapped.Error(), "wrapped")
	assert.Contains(t, wrapped.Error(), "original")
	assert.True(t, Is(wrapped, original))
}

func TestIs(t *testing.T) {
	err1 := New("error 1")
	err2 := New("error 2")
	wrapped := Wrap(err1, "wrapped")

	assert.True(t, Is(wrapped, err1))
	assert.False(t, Is(wrapped, err2))
	assert.False(t, Is(nil, err1))
}

type customError struct {
	msg string
}

func (e *customError) Error() string {
	return e.msg
}

func TestAs(t *testing.T) {
	original := &customError{msg: "custom"}
	wrapped := Wrap(original, "wrapped")

	var target *customError
	require.True(t, As(wrapped, &target))
	assert.Equal(t, "custom", target.msg)
}

func TestIsInvalidInput(t *testing.T) {
	assert.False(t, IsInvalidInput(nil))
	assert.False(t, IsInvalidInput(New("unrelated")))

	direct := ErrInvalidInput
	assert.True(t, IsInvalidInput(direct))

	wrapped := Wrap(ErrInvalidInput, "batch rejected")
	assert.True(t, IsInvalidInput(wrapped))

	deep := Wrap(Wrap(ErrInvalidInput, "inner"), "outer")
	assert.True(t, IsInvalidInput(deep))
}

func TestNewInvalidInputError(t *testing.T) {
	err := NewInvalidInputError("need at least %d sources, got %d", 2, 1)

	assert.True(t, IsInvalidInput(err))
	assert.Contains(t, err.Error(), "need at least 2 sources, got 1")
}

func TestIsNotFoundError(t *testing.T) {
	assert.False(t, IsNotFoundError(nil))
	assert.True(t, IsNotFoundError(Wrap(ErrNotFound, "alert 42")))
	assert.False(t, IsNotFoundError(New("something else")))
}
