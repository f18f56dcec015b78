package future

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"

	"golang.org/x/sync/semaphore"
)

// ErrPanic wraps a panic recovered from a task started with Go.
var ErrPanic = errors.New("task panicked")

// Executor runs submitted tasks asynchronously. Submit must not block the
// caller.
type Executor interface {
	Submit(task func())
}

// Pool is a shared worker pool. At most Size tasks run at once; the rest
// queue on the semaphore in their own goroutines.
type Pool struct {
	sem  *semaphore.Weighted
	size int
	wg   sync.WaitGroup
}

// NewPool creates a pool running at most size tasks concurrently.
// A size <= 0 uses runtime.NumCPU().
func NewPool(size int) *Pool {
	if size <= 0 {
		size = runtime.NumCPU()
	}
	return &Pool{
		sem:  semaphore.NewWeighted(int64(size)),
		size: size,
	}
}

// Size returns the concurrency limit.
func (p *Pool) Size() int {
	return p.size
}

// Submit schedules task without blocking.
func (p *Pool) Submit(task func()) {
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		// Acquire never fails with a background context.
		_ = p.sem.Acquire(context.Background(), 1)
		defer p.sem.Release(1)
		task()
	}()
}

// Wait blocks until every submitted task has returned.
func (p *Pool) Wait() {
	p.wg.Wait()
}

var (
	defaultPool     *Pool
	defaultPoolOnce sync.Once
)

// DefaultPool returns the process-wide pool sized to the number of CPUs,
// with a floor of 8 workers.
func DefaultPool() *Pool {
	defaultPoolOnce.Do(func() {
		size := runtime.NumCPU()
		if size < 8 {
			size = 8
		}
		defaultPool = NewPool(size)
	})
	return defaultPool
}

// Go runs fn on exec and returns a future for its result. A panic in fn
// rejects the future with ErrPanic instead of crashing the process.
// Callbacks registered on the future run after fn returns and are not
// covered: a panicking callback propagates.
func Go[T any](exec Executor, fn func() (T, error)) *Future[T] {
	if exec == nil {
		exec = DefaultPool()
	}
	p, f := New[T]()
	exec.Submit(func() {
		v, err := call(fn)
		if err != nil {
			p.Reject(err)
			return
		}
		p.Resolve(v)
	})
	return f
}

func call[T any](fn func() (T, error)) (v T, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrPanic, r)
		}
	}()
	return fn()
}
