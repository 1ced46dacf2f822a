package errs

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCodeOf(t *testing.T) {
	err := New(CodeQuotaExceeded, "limit reached")
	assert.Equal(t, CodeQuotaExceeded, CodeOf(err))
	assert.True(t, Is(err, CodeQuotaExceeded))
	assert.False(t, Is(err, CodeUpstreamTransient))

	// Code survives wrapping with %w
	wrapped := fmt.Errorf("handling request: %w", err)
	assert.Equal(t, CodeQuotaExceeded, CodeOf(wrapped))

	assert.Equal(t, Code(""), CodeOf(errors.New("plain")))
	assert.Equal(t, Code(""), CodeOf(nil))
}

func TestWrapPreservesCause(t *testing.T) {
	cause := errors.New("connection refused")
	err := Wrap(CodeCredentialUnavailable, "renewal failed", cause)

	assert.Equal(t, "renewal failed", err.Error())
	assert.ErrorIs(t, err, cause)
}

func TestRetryable(t *testing.T) {
	assert.True(t, Retryable(New(CodeUpstreamTransient, "")))
	assert.True(t, Retryable(New(CodeCredentialUnavailable, "")))
	assert.False(t, Retryable(New(CodeQuotaExceeded, "")))
	assert.False(t, Retryable(New(CodeUpstreamRejected, "")))
	assert.False(t, Retryable(errors.New("plain")))
}
