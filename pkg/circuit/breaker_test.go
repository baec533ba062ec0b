package circuit

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errDown = errors.New("downstream unavailable")

func failing(context.Context) error { return errDown }
func succeeding(context.Context) error { return nil }

func TestBreakerOpensAfterConsecutiveFailures(t *testing.T) {
	b := NewBreaker(Config{MaxFailures: 3, Cooldown: time.Minute})
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		assert.ErrorIs(t, b.Execute(ctx, failing), errDown)
	}
	assert.Equal(t, StateOpen, b.State())

	// While open, calls fail fast without touching the dependency.
	assert.ErrorIs(t, b.Execute(ctx, failing), ErrOpen)
}

func TestBreakerRecoversThroughHalfOpen(t *testing.T) {
	b := NewBreaker(Config{MaxFailures: 1, Cooldown: 10 * time.Millisecond})
	ctx := context.Background()

	require.ErrorIs(t, b.Execute(ctx, failing), errDown)
	require.Equal(t, StateOpen, b.State())

	time.Sleep(20 * time.Millisecond)

	// The probe succeeds and the breaker closes again.
	assert.NoError(t, b.Execute(ctx, succeeding))
	assert.Equal(t, StateClosed, b.State())
}

func TestBreakerReopensOnFailedProbe(t *testing.T) {
	b := NewBreaker(Config{MaxFailures: 1, Cooldown: 10 * time.Millisecond})
	ctx := context.Background()

	require.ErrorIs(t, b.Execute(ctx, failing), errDown)
	time.Sleep(20 * time.Millisecond)

	assert.ErrorIs(t, b.Execute(ctx, failing), errDown)
	assert.Equal(t, StateOpen, b.State())
}

func TestBreakerSuccessResetsFailureCount(t *testing.T) {
	b := NewBreaker(Config{MaxFailures: 2, Cooldown: time.Minute})
	ctx := context.Background()

	require.ErrorIs(t, b.Execute(ctx, failing), errDown)
	require.NoError(t, b.Execute(ctx, succeeding))
	require.ErrorIs(t, b.Execute(ctx, failing), errDown)

	// Interleaved success keeps the breaker closed.
	assert.Equal(t, StateClosed, b.State())
}

func TestBreakerStateChangeCallback(t *testing.T) {
	var transitions []State
	b := NewBreaker(Config{
		Name:        "paynet",
		MaxFailures: 1,
		Cooldown:    time.Minute,
		OnStateChange: func(name string, from, to State) {
			assert.Equal(t, "paynet", name)
			transitions = append(transitions, to)
		},
	})

	require.ErrorIs(t, b.Execute(context.Background(), failing), errDown)
	b.Reset()

	assert.Equal(t, []State{StateOpen, StateClosed}, transitions)
}
