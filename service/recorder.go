package service

import (
	"context"
	"sync"

	"github.com/aixgo-dev/fanin/pkg/future"
)

// Recorder wraps a Service and records every message it is asked to
// process.
type Recorder struct {
	next Service

	mu       sync.Mutex
	messages []string
}

// NewRecorder wraps next.
func NewRecorder(next Service) *Recorder {
	return &Recorder{next: next}
}

// ID returns the wrapped service's identifier
func (r *Recorder) ID() string {
	return r.next.ID()
}

// RetrieveAsync records message and delegates.
func (r *Recorder) RetrieveAsync(ctx context.Context, message string) *future.Future[string] {
	r.mu.Lock()
	r.messages = append(r.messages, message)
	r.mu.Unlock()
	return r.next.RetrieveAsync(ctx, message)
}

// Calls returns the number of RetrieveAsync invocations.
func (r *Recorder) Calls() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.messages)
}

// Messages returns a copy of the recorded messages in call order.
func (r *Recorder) Messages() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.messages))
	copy(out, r.messages)
	return out
}
