package domain

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestConnectionErrorUnwrap(t *testing.T) {
	cause := errors.New("connection refused")
	err := &ConnectionError{Op: "connect", Err: cause}

	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "connect")
}

func TestIsConnectionErrorThroughWrapping(t *testing.T) {
	inner := &ConnectionError{Op: "tickle", Err: errors.New("EOF")}
	wrapped := fmt.Errorf("trader.Run: dispatch BUY_Usual: %w", inner)

	assert.True(t, IsConnectionError(wrapped))
	assert.False(t, IsConnectionError(errors.New("plain failure")))
	assert.False(t, IsConnectionError(ErrPriceUnavailable))
}
