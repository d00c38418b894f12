package pool

import (
	"context"
	"errors"
	"sync"

	"github.com/sourcegraph/conc/pool"
)

// Local is the shared-memory backend: at most w units in flight at once,
// each forking the renderer subprocess, so the machine carries w renders and
// no more. Excess submissions queue inside the pool until a slot frees up.
type Local struct {
	exec Executor
	p    *pool.Pool

	mu  sync.Mutex
	sum Summary
}

// NewLocal builds the local backend with w workers.
func NewLocal(exec Executor, w int) *Local {
	if w < 1 {
		w = 1
	}
	return &Local{
		exec: exec,
		p:    pool.New().WithMaxGoroutines(w),
	}
}

// Submit hands one unit to the pool. The call returns as soon as the unit is
// queued; results are collected into the drain summary.
func (l *Local) Submit(ctx context.Context, u Unit) {
	l.p.Go(func() {
		err := l.exec.Execute(ctx, u)

		l.mu.Lock()
		defer l.mu.Unlock()
		if err != nil {
			l.sum.Failed++
			l.sum.Errors = append(l.sum.Errors, UnitError{Unit: u, Err: err})
			return
		}
		l.sum.Rendered++
	})
}

// Drain waits for every submitted unit. When ctx expires first the batch is
// abandoned: the summary so far comes back along with ErrDrainTimeout or the
// cancellation cause.
func (l *Local) Drain(ctx context.Context) (Summary, error) {
	done := make(chan struct{})
	go func() {
		l.p.Wait()
		close(done)
	}()

	select {
	case <-done:
		return l.snapshot(), nil
	case <-ctx.Done():
		err := ctx.Err()
		if errors.Is(err, context.DeadlineExceeded) {
			err = ErrDrainTimeout
		}
		return l.snapshot(), err
	}
}

// Close is a no-op for the local backend.
func (l *Local) Close() error { return nil }

func (l *Local) snapshot() Summary {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.sum
}
