package billing

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestInitialStatus(t *testing.T) {
	assert.Equal(t, StatusPending, InitialStatus(MethodPix))
	assert.Equal(t, StatusCompleted, InitialStatus(MethodCash))
	assert.Equal(t, StatusCompleted, InitialStatus(MethodCard))
}

func TestConfirmAndExpire(t *testing.T) {
	p := &Payment{Method: MethodPix, Status: StatusPending}
	assert.NoError(t, p.Confirm())
	assert.Equal(t, StatusCompleted, p.Status)

	// Terminal states reject further network transitions.
	assert.ErrorIs(t, p.Confirm(), ErrNotPending)
	assert.ErrorIs(t, p.Expire(), ErrNotPending)

	p = &Payment{Method: MethodPix, Status: StatusPending}
	assert.NoError(t, p.Expire())
	assert.Equal(t, StatusExpired, p.Status)
}

func TestChangeMethodReentersStateMachine(t *testing.T) {
	p := &Payment{Method: MethodPix, Status: StatusPending}

	// Editing away from an instant transfer forces completed.
	assert.NoError(t, p.ChangeMethod(MethodCard))
	assert.Equal(t, StatusCompleted, p.Status)

	// Editing back onto one restarts the pending wait.
	assert.NoError(t, p.ChangeMethod(MethodPix))
	assert.Equal(t, StatusPending, p.Status)

	assert.ErrorIs(t, p.ChangeMethod(Method("cheque")), ErrInvalidMethod)
}

func TestNeedsReversal(t *testing.T) {
	assert.True(t, (&Payment{Method: MethodPix, Status: StatusPending}).NeedsReversal())
	assert.False(t, (&Payment{Method: MethodPix, Status: StatusCompleted}).NeedsReversal())
	assert.False(t, (&Payment{Method: MethodCash, Status: StatusCompleted}).NeedsReversal())
}

func TestEnumValidity(t *testing.T) {
	for _, m := range []Method{MethodPix, MethodCash, MethodCard} {
		assert.True(t, m.Valid())
	}
	assert.False(t, Method("voucher").Valid())

	for _, p := range []FeePolicy{FeeProportional, FeeIntegral, FeeNone} {
		assert.True(t, p.Valid())
	}
	assert.False(t, FeePolicy("split").Valid())
}
