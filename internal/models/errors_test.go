package models

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorKinds(t *testing.T) {
	err := fmt.Errorf("load board: %w", NotFound("get board", "board"))
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NotErrorIs(t, err, ErrConflict)
	assert.Equal(t, "load board: get board: board: not found", err.Error())

	var typed *Error
	assert.True(t, errors.As(err, &typed))
	assert.Equal(t, "board", typed.Entity)
}

func TestResourceExhaustedIsRetryable(t *testing.T) {
	err := ResourceExhausted("acquire", context.DeadlineExceeded)
	assert.True(t, IsRetryable(err))
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	assert.False(t, IsRetryable(InvalidState("set status", "no such status %q", "done")))
}
