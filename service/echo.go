package service

import (
	"context"
	"math/rand/v2"
	"time"

	"github.com/aixgo-dev/fanin/pkg/future"
)

// DefaultMaxJitter bounds the random delay of an Echo service that has no
// fixed delay.
const DefaultMaxJitter = 100 * time.Millisecond

// Echo is an in-process microservice. It waits, then either fails or
// returns the message unchanged.
type Echo struct {
	id        string
	delay     time.Duration
	maxJitter time.Duration
	fail      bool
	exec      future.Executor
}

// EchoOption configures an Echo service
type EchoOption func(*Echo)

// WithDelay sets a fixed processing delay
func WithDelay(d time.Duration) EchoOption {
	return func(e *Echo) {
		e.delay = d
	}
}

// WithJitter sets the upper bound of the random delay used when no fixed
// delay is configured
func WithJitter(d time.Duration) EchoOption {
	return func(e *Echo) {
		e.maxJitter = d
	}
}

// WithFailure makes every call fail with ErrInjectedFailure
func WithFailure(fail bool) EchoOption {
	return func(e *Echo) {
		e.fail = fail
	}
}

// WithExecutor sets the executor the service runs on
func WithExecutor(exec future.Executor) EchoOption {
	return func(e *Echo) {
		e.exec = exec
	}
}

// NewEcho creates an Echo service. Without WithDelay each call sleeps a
// random duration in [0, DefaultMaxJitter).
func NewEcho(id string, opts ...EchoOption) *Echo {
	e := &Echo{
		id:        id,
		maxJitter: DefaultMaxJitter,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// ID returns the service identifier
func (e *Echo) ID() string {
	return e.id
}

// RetrieveAsync echoes message after the configured delay.
func (e *Echo) RetrieveAsync(ctx context.Context, message string) *future.Future[string] {
	return future.Go(e.exec, func() (string, error) {
		if err := sleep(ctx, e.nextDelay()); err != nil {
			return "", err
		}
		if e.fail {
			return "", ErrInjectedFailure
		}
		return message, nil
	})
}

func (e *Echo) nextDelay() time.Duration {
	if e.delay > 0 || e.maxJitter <= 0 {
		return e.delay
	}
	return rand.N(e.maxJitter)
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
