package importer

import (
	"context"
	"fmt"
	"sync/atomic"

	"golang.org/x/sync/semaphore"
)

// Limiter caps how many operations of one kind run at once. It is a thin
// wrapper over a weighted semaphore that also tracks in-flight counts for
// status reporting.
type Limiter struct {
	sem      *semaphore.Weighted
	capacity int
	inFlight atomic.Int64
}

// NewLimiter builds a limiter admitting at most capacity concurrent holders.
func NewLimiter(capacity int) (*Limiter, error) {
	if capacity < 1 {
		return nil, fmt.Errorf("%w: limiter capacity %d, must be at least 1", ErrConfig, capacity)
	}
	return &Limiter{
		sem:      semaphore.NewWeighted(int64(capacity)),
		capacity: capacity,
	}, nil
}

// Acquire blocks until a slot is free or ctx is done.
func (l *Limiter) Acquire(ctx context.Context) error {
	if err := l.sem.Acquire(ctx, 1); err != nil {
		return err
	}
	l.inFlight.Add(1)
	return nil
}

// TryAcquire claims a slot without blocking.
func (l *Limiter) TryAcquire() bool {
	if !l.sem.TryAcquire(1) {
		return false
	}
	l.inFlight.Add(1)
	return true
}

// Release frees a slot claimed by Acquire or TryAcquire.
func (l *Limiter) Release() {
	l.inFlight.Add(-1)
	l.sem.Release(1)
}

// Capacity returns the configured concurrency cap.
func (l *Limiter) Capacity() int {
	return l.capacity
}

// InFlight returns the number of slots currently held.
func (l *Limiter) InFlight() int {
	return int(l.inFlight.Load())
}
