// Package future provides a small explicit future/promise pair and the
// shared worker pool that drives asynchronous service calls.
//
// A Future is settled exactly once, either with a value or with an error.
// Callers can block on it with Get, select on Done, or register a
// non-blocking callback with OnComplete.
package future

import (
	"context"
	"sync"
)

// Future is a read-only handle to a value that becomes available later.
type Future[T any] struct {
	done chan struct{}

	mu        sync.Mutex
	value     T
	err       error
	settled   bool
	callbacks []func(T, error)
}

// Promise is the write side of a Future.
type Promise[T any] struct {
	f *Future[T]
}

// New returns a pending promise and its future.
func New[T any]() (*Promise[T], *Future[T]) {
	f := &Future[T]{done: make(chan struct{})}
	return &Promise[T]{f: f}, f
}

// Resolved returns a future already settled with v.
func Resolved[T any](v T) *Future[T] {
	p, f := New[T]()
	p.Resolve(v)
	return f
}

// Rejected returns a future already settled with err.
func Rejected[T any](err error) *Future[T] {
	p, f := New[T]()
	p.Reject(err)
	return f
}

// Resolve settles the future with v. It reports whether this call
// settled the future; later calls are no-ops.
func (p *Promise[T]) Resolve(v T) bool {
	return p.f.settle(v, nil)
}

// Reject settles the future with err. It reports whether this call
// settled the future; later calls are no-ops.
func (p *Promise[T]) Reject(err error) bool {
	var zero T
	return p.f.settle(zero, err)
}

func (f *Future[T]) settle(v T, err error) bool {
	f.mu.Lock()
	if f.settled {
		f.mu.Unlock()
		return false
	}
	f.value, f.err, f.settled = v, err, true
	callbacks := f.callbacks
	f.callbacks = nil
	close(f.done)
	f.mu.Unlock()

	// Callbacks run outside the lock so they may register further callbacks
	// or settle other futures.
	for _, cb := range callbacks {
		cb(v, err)
	}
	return true
}

// Done returns a channel that is closed once the future is settled.
func (f *Future[T]) Done() <-chan struct{} {
	return f.done
}

// Get blocks until the future is settled or ctx is done.
func (f *Future[T]) Get(ctx context.Context) (T, error) {
	select {
	case <-f.done:
		return f.value, f.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// Settled reports whether the future has a value or an error.
func (f *Future[T]) Settled() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.settled
}

// OnComplete registers cb to run once the future settles. If the future is
// already settled cb runs immediately on the calling goroutine; otherwise it
// runs on the goroutine that settles the future. Callbacks must not block.
func (f *Future[T]) OnComplete(cb func(T, error)) {
	f.mu.Lock()
	if !f.settled {
		f.callbacks = append(f.callbacks, cb)
		f.mu.Unlock()
		return
	}
	v, err := f.value, f.err
	f.mu.Unlock()
	cb(v, err)
}

// Map returns a future settled with fn applied to f's value. Errors pass
// through unchanged and fn is not called.
func Map[T, U any](f *Future[T], fn func(T) U) *Future[U] {
	p, out := New[U]()
	f.OnComplete(func(v T, err error) {
		if err != nil {
			p.Reject(err)
			return
		}
		p.Resolve(fn(v))
	})
	return out
}
