package resilience

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestBulkhead_RejectsWhenFull(t *testing.T) {
	b := NewBulkhead(BulkheadConfig{MaxConcurrent: 1})
	ctx := context.Background()

	hold := make(chan struct{})
	started := make(chan struct{})
	go func() {
		_ = b.Execute(ctx, func(ctx context.Context) error {
			close(started)
			<-hold
			return nil
		})
	}()
	<-started

	assert.EqualValues(t, 1, b.Active())
	assert.ErrorIs(t, b.Execute(ctx, passing), ErrBulkheadFull)
	assert.EqualValues(t, 1, b.Rejected())
	close(hold)
}

func TestBulkhead_QueuesWithinMaxWait(t *testing.T) {
	b := NewBulkhead(BulkheadConfig{MaxConcurrent: 1, MaxWait: time.Second})
	ctx := context.Background()

	hold := make(chan struct{})
	started := make(chan struct{})
	go func() {
		_ = b.Execute(ctx, func(ctx context.Context) error {
			close(started)
			<-hold
			return nil
		})
	}()
	<-started

	go func() {
		time.Sleep(10 * time.Millisecond)
		close(hold)
	}()
	assert.NoError(t, b.Execute(ctx, passing))
}

func TestBulkhead_CapsConcurrency(t *testing.T) {
	const limit = 3
	b := NewBulkhead(BulkheadConfig{MaxConcurrent: limit, MaxWait: 5 * time.Second})

	var inFlight, peak atomic.Int32
	var wg sync.WaitGroup
	for range 12 {
		wg.Go(func() {
			_ = b.Execute(context.Background(), func(ctx context.Context) error {
				n := inFlight.Add(1)
				for {
					p := peak.Load()
					if n <= p || peak.CompareAndSwap(p, n) {
						break
					}
				}
				time.Sleep(2 * time.Millisecond)
				inFlight.Add(-1)
				return nil
			})
		})
	}
	wg.Wait()

	assert.LessOrEqual(t, peak.Load(), int32(limit))
	assert.Zero(t, b.Active())
}

func TestBulkhead_CallerCancelWhileQueued(t *testing.T) {
	b := NewBulkhead(BulkheadConfig{MaxConcurrent: 1, MaxWait: time.Minute})

	hold := make(chan struct{})
	defer close(hold)
	started := make(chan struct{})
	go func() {
		_ = b.Execute(context.Background(), func(ctx context.Context) error {
			close(started)
			<-hold
			return nil
		})
	}()
	<-started

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, b.Execute(ctx, passing), context.Canceled)
}
