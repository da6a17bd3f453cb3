package models

import (
	"errors"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCollaboratorErrorUnwraps(t *testing.T) {
	err := Collaborator(OpDescribe, io.ErrUnexpectedEOF)

	var ce *CollaboratorError
	assert.True(t, errors.As(err, &ce))
	assert.Equal(t, OpDescribe, ce.Op)
	assert.True(t, errors.Is(err, io.ErrUnexpectedEOF))
	assert.Equal(t, "oracle.describe: unexpected EOF", err.Error())
	assert.Nil(t, Collaborator(OpDescribe, nil))
}

func TestInputErrorf(t *testing.T) {
	err := InputErrorf("flow %q not found", "Checkout")
	assert.True(t, errors.Is(err, ErrInput))
	assert.Equal(t, `invalid input: flow "Checkout" not found`, err.Error())
}

func TestCancelToken(t *testing.T) {
	var nilToken *CancelToken
	assert.False(t, nilToken.Cancelled())
	nilToken.Cancel()

	tok := NewCancelToken()
	assert.False(t, tok.Cancelled())
	tok.Cancel()
	assert.True(t, tok.Cancelled())
}

func TestRunStateTerminal(t *testing.T) {
	assert.False(t, RunStateWalking.Terminal())
	assert.False(t, RunState("").Terminal())
	for _, s := range []RunState{RunStateCompleted, RunStateHaltedNoAction, RunStateHaltedUnresolved,
		RunStateHaltedMissing, RunStateHaltedStepLimit, RunStateHaltedError, RunStateCancelled} {
		assert.True(t, s.Terminal(), s)
	}
}

func TestFormatDuration(t *testing.T) {
	assert.Equal(t, "0s", FormatDuration(400*time.Millisecond))
	assert.Equal(t, "42s", FormatDuration(42*time.Second))
	assert.Equal(t, "1m 5s", FormatDuration(65*time.Second))
	assert.Equal(t, "12m 0s", FormatDuration(12*time.Minute))
}
