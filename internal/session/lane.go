package session

import (
	"context"
	"sync"
	"time"
)

const (
	defaultQueueDepth = 32
	defaultMaxWait    = 30 * time.Second
)

// Lane is the single dedicated execution lane serializing completions
// against one engine handle: callers reserve a queue slot, then the single
// in-flight slot, each wait bounded by maxWait. The engine context is not
// safe for concurrent use; every completion must run through the lane.
type Lane struct {
	queueCh chan struct{}
	genCh   chan struct{}
	maxWait time.Duration

	mu       sync.Mutex
	draining bool
}

// NewLane builds a lane. depth <= 0 defaults to 32 queue slots; maxWait <= 0
// defaults to 30s.
func NewLane(depth int, maxWait time.Duration) *Lane {
	if depth <= 0 {
		depth = defaultQueueDepth
	}
	if maxWait <= 0 {
		maxWait = defaultMaxWait
	}
	return &Lane{
		queueCh: make(chan struct{}, depth),
		genCh:   make(chan struct{}, 1),
		maxWait: maxWait,
	}
}

// Acquire reserves a queue slot and then the in-flight slot. The returned
// release func must be deferred. Returns a busy error on timeout or when
// the lane is draining, and the context error on cancellation.
func (l *Lane) Acquire(ctx context.Context) (func(), error) {
	l.mu.Lock()
	draining := l.draining
	l.mu.Unlock()
	if draining {
		return func() {}, busyError{reason: "draining"}
	}

	// Fast path: respect an already-canceled context
	if err := ctx.Err(); err != nil {
		return func() {}, err
	}

	// Reserve a queue slot, bounded by maxWait
	timer := time.NewTimer(l.maxWait)
	defer timer.Stop()
	select {
	case l.queueCh <- struct{}{}:
		// reserved queue slot
	case <-ctx.Done():
		return func() {}, ctx.Err()
	case <-timer.C:
		return func() {}, busyError{reason: "queue full"}
	}

	// Wait to acquire the single in-flight slot
	acquired := false
	defer func() {
		if !acquired {
			<-l.queueCh
		}
	}()
	if err := ctx.Err(); err != nil {
		return func() {}, err
	}
	timer2 := time.NewTimer(l.maxWait)
	defer timer2.Stop()
	select {
	case l.genCh <- struct{}{}:
		acquired = true
		return func() { <-l.genCh; <-l.queueCh }, nil
	case <-ctx.Done():
		return func() {}, ctx.Err()
	case <-timer2.C:
		return func() {}, busyError{reason: "generation slot timeout"}
	}
}

// Drain flips the lane to reject new acquisitions; in-flight work finishes.
func (l *Lane) Drain() {
	l.mu.Lock()
	l.draining = true
	l.mu.Unlock()
}

// QueueLen returns the number of held queue slots (including the in-flight
// caller).
func (l *Lane) QueueLen() int { return len(l.queueCh) }

// Inflight returns 0 or 1.
func (l *Lane) Inflight() int { return len(l.genCh) }

// Depth returns the queue capacity.
func (l *Lane) Depth() int { return cap(l.queueCh) }
