package auth

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIssueAndVerify(t *testing.T) {
	m := NewManager("test-secret", time.Hour)
	restaurantID := uuid.New()

	token, err := m.Issue("op-7", restaurantID, "waiter-tablet-2")
	require.NoError(t, err)

	claims, err := m.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, "op-7", claims.OperatorID)
	assert.Equal(t, restaurantID.String(), claims.RestaurantID)
	assert.Equal(t, "waiter-tablet-2", claims.Terminal)
}

func TestVerifyRejectsTampering(t *testing.T) {
	m := NewManager("test-secret", time.Hour)
	other := NewManager("other-secret", time.Hour)

	token, err := other.Issue("op-1", uuid.New(), "t1")
	require.NoError(t, err)

	_, err = m.Verify(token)
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = m.Verify("not-a-token")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestVerifyRejectsExpired(t *testing.T) {
	m := NewManager("test-secret", time.Millisecond)
	token, err := m.Issue("op-1", uuid.New(), "t1")
	require.NoError(t, err)

	time.Sleep(5 * time.Millisecond)
	_, err = m.Verify(token)
	assert.ErrorIs(t, err, ErrTokenExpired)
}
