package resilience

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGate_SerializesScope(t *testing.T) {
	g := NewGate()

	var inFlight, peak atomic.Int32
	var wg sync.WaitGroup
	for range 8 {
		wg.Go(func() {
			err := g.Do(context.Background(), "guild-1", func(ctx context.Context) error {
				n := inFlight.Add(1)
				if n > peak.Load() {
					peak.Store(n)
				}
				time.Sleep(time.Millisecond)
				inFlight.Add(-1)
				return nil
			})
			assert.NoError(t, err)
		})
	}
	wg.Wait()

	assert.EqualValues(t, 1, peak.Load())
	assert.Zero(t, g.Len(), "scopes left after drain")
}

func TestGate_ScopesIndependent(t *testing.T) {
	g := NewGate()
	hold := make(chan struct{})
	defer close(hold)
	started := make(chan struct{})

	go func() {
		_ = g.Do(context.Background(), "a", func(ctx context.Context) error {
			close(started)
			<-hold
			return nil
		})
	}()
	<-started

	done := make(chan error, 1)
	go func() {
		done <- g.Do(context.Background(), "b", passing)
	}()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("scope b blocked behind scope a")
	}
}

func TestGate_WaitersBlockNotReject(t *testing.T) {
	g := NewGate()
	hold := make(chan struct{})
	started := make(chan struct{})

	go func() {
		_ = g.Do(context.Background(), "s", func(ctx context.Context) error {
			close(started)
			<-hold
			return nil
		})
	}()
	<-started

	ran := make(chan struct{})
	go func() {
		_ = g.Do(context.Background(), "s", func(ctx context.Context) error {
			close(ran)
			return nil
		})
	}()

	require.Eventually(t, func() bool { return g.Waiters("s") == 2 }, time.Second, time.Millisecond)
	select {
	case <-ran:
		t.Fatal("second caller ran while scope was held")
	default:
	}

	close(hold)
	select {
	case <-ran:
	case <-time.After(time.Second):
		t.Fatal("second caller never ran")
	}
}

func TestGate_CancelWhileWaiting(t *testing.T) {
	g := NewGate()
	hold := make(chan struct{})
	defer close(hold)
	started := make(chan struct{})

	go func() {
		_ = g.Do(context.Background(), "s", func(ctx context.Context) error {
			close(started)
			<-hold
			return nil
		})
	}()
	<-started

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	err := g.Do(ctx, "s", func(ctx context.Context) error {
		t.Error("op ran after its context expired")
		return nil
	})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, 1, g.Waiters("s"), "only the holder remains")
}

func TestGate_PropagatesOpError(t *testing.T) {
	g := NewGate()
	assert.ErrorIs(t, g.Do(context.Background(), "s", failing), errUpstream)
	// The scope is released after an error.
	assert.NoError(t, g.Do(context.Background(), "s", passing))
}

func TestGate_EmptyScope(t *testing.T) {
	assert.ErrorIs(t, NewGate().Do(context.Background(), " ", passing), ErrEmptyScope)
}
