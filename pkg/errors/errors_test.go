package errors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromErrorKeepsTypedErrors(t *testing.T) {
	wrapped := fmt.Errorf("lookup: %w", ErrNotFound)
	got := FromError(wrapped)
	assert.Same(t, ErrNotFound, got)

	plain := FromError(errors.New("boom"))
	require.NotNil(t, plain)
	assert.Equal(t, ErrInternal.Code, plain.Code)
	assert.Equal(t, http.StatusInternalServerError, plain.Status)
	assert.EqualError(t, plain, "internal server error: boom")

	assert.Nil(t, FromError(nil))
}

func TestCloneOverridesMessage(t *testing.T) {
	clone := Clone(ErrEngineUnavailable, "thresholds file unreadable")
	assert.Equal(t, http.StatusServiceUnavailable, clone.Status)
	assert.Equal(t, "thresholds file unreadable", clone.Message)
	assert.Equal(t, "insights engine is not available, retry later", ErrEngineUnavailable.Message)
	assert.Nil(t, Clone(nil, "x"))
}

func TestWrapUnwraps(t *testing.T) {
	cause := errors.New("redis down")
	err := Wrap(cause, "CACHE", http.StatusBadGateway, "cache failure")
	assert.ErrorIs(t, err, cause)
}
