package service

import (
	"context"
	"errors"

	"github.com/aixgo-dev/fanin/pkg/future"
)

// ErrInjectedFailure is returned by services configured to fail.
var ErrInjectedFailure = errors.New("injected failure")

// Service is the collaborator the aggregator fans out to.
// Implementations must be safe for concurrent use.
type Service interface {
	// ID identifies the service in logs, spans and errors.
	ID() string

	// RetrieveAsync starts processing message and returns immediately.
	// The returned future succeeds with the processed message or fails with
	// an arbitrary error. Callers treat that error as opaque.
	RetrieveAsync(ctx context.Context, message string) *future.Future[string]
}

// Func adapts an ordinary function to the Service interface. The function
// runs on the given executor, or on the default pool when exec is nil.
type Func struct {
	id   string
	exec future.Executor
	fn   func(ctx context.Context, message string) (string, error)
}

// NewFunc creates a Service backed by fn.
func NewFunc(id string, exec future.Executor, fn func(ctx context.Context, message string) (string, error)) *Func {
	return &Func{id: id, exec: exec, fn: fn}
}

// ID returns the service identifier.
func (s *Func) ID() string {
	return s.id
}

// RetrieveAsync runs fn asynchronously.
func (s *Func) RetrieveAsync(ctx context.Context, message string) *future.Future[string] {
	return future.Go(s.exec, func() (string, error) {
		return s.fn(ctx, message)
	})
}
