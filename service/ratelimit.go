package service

import (
	"context"
	"fmt"

	"golang.org/x/time/rate"

	"github.com/aixgo-dev/fanin/pkg/future"
)

// RateLimited throttles calls to a wrapped Service. Waiting for a token
// happens on the executor, so RetrieveAsync never blocks the caller.
type RateLimited struct {
	next    Service
	limiter *rate.Limiter
	exec    future.Executor
}

// NewRateLimited wraps next with a token bucket of requestsPerSecond and
// burst.
func NewRateLimited(next Service, requestsPerSecond float64, burst int, exec future.Executor) *RateLimited {
	if burst <= 0 {
		burst = 1
	}
	if exec == nil {
		exec = future.DefaultPool()
	}
	return &RateLimited{
		next:    next,
		limiter: rate.NewLimiter(rate.Limit(requestsPerSecond), burst),
		exec:    exec,
	}
}

// ID returns the wrapped service's identifier
func (s *RateLimited) ID() string {
	return s.next.ID()
}

// RetrieveAsync waits for a token, then delegates.
func (s *RateLimited) RetrieveAsync(ctx context.Context, message string) *future.Future[string] {
	p, f := future.New[string]()
	s.exec.Submit(func() {
		if err := s.limiter.Wait(ctx); err != nil {
			p.Reject(fmt.Errorf("rate limit: %w", err))
			return
		}
		s.next.RetrieveAsync(ctx, message).OnComplete(func(v string, err error) {
			if err != nil {
				p.Reject(err)
				return
			}
			p.Resolve(v)
		})
	})
	return f
}
