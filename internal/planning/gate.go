package planning

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"
)

// Gate bounds the number of planning operations running at once. A zero
// limit disables admission control entirely.
type Gate struct {
	sem          *semaphore.Weighted
	queueTimeout time.Duration
}

// NewGate creates an admission gate for at most limit concurrent planning
// operations. queueTimeout bounds how long a caller waits for a slot; zero
// means wait until the request context is done.
func NewGate(limit int, queueTimeout time.Duration) *Gate {
	g := &Gate{queueTimeout: queueTimeout}
	if limit > 0 {
		g.sem = semaphore.NewWeighted(int64(limit))
	}
	return g
}

// Acquire blocks until a planning slot is available, the queue timeout
// elapses, or ctx is done. On success it returns a release function that is
// safe to call more than once.
func (g *Gate) Acquire(ctx context.Context) (release func(), err error) {
	if g.sem == nil {
		return func() {}, nil
	}

	if g.queueTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.queueTimeout)
		defer cancel()
	}

	if err := g.sem.Acquire(ctx, 1); err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return nil, ErrCapacityExceeded
		}
		return nil, ErrCancelled
	}

	var once sync.Once
	return func() {
		once.Do(func() { g.sem.Release(1) })
	}, nil
}

// TryAcquire attempts to take a slot without blocking.
func (g *Gate) TryAcquire() (release func(), ok bool) {
	if g.sem == nil {
		return func() {}, true
	}
	if !g.sem.TryAcquire(1) {
		return nil, false
	}
	var once sync.Once
	return func() {
		once.Do(func() { g.sem.Release(1) })
	}, true
}
