package aggregator

import (
	"strings"
	"sync"
	"time"

	"github.com/aixgo-dev/fanin/pkg/future"
)

// reducer is the only part that differs between policies.
type reducer struct {
	perOperation bool // one message per service
	earlyExit    bool // reject on the first observed failure
	finish       func(c *coordinator) Result
}

var reducers = map[Policy]reducer{
	AllOrNothing:    {perOperation: false, earlyExit: true, finish: joinAll},
	CompletionOrder: {perOperation: false, earlyExit: false, finish: completionOrder},
	FailFast:        {perOperation: true, earlyExit: true, finish: joinAll},
	FailPartial:     {perOperation: true, earlyExit: false, finish: successesInOrder},
	FailSoft:        {perOperation: true, earlyExit: false, finish: joinWithFallback},
}

type slot struct {
	value string
	err   error
}

// coordinator holds the accumulator of a single request. Completion
// callbacks mutate it under mu; it is frozen once resolved is set.
type coordinator struct {
	policy    Policy
	requestID string
	reducer   reducer
	separator string
	fallback  string
	ids       []string
	started   time.Time

	mu        sync.Mutex
	slots     []slot
	completed []string
	failed    int
	remaining int
	failure   *OperationError
	resolved  bool

	promise  *future.Promise[Result]
	onSettle func(res Result, err error)
}

func newCoordinator(policy Policy, requestID string, ids []string, separator, fallback string, p *future.Promise[Result]) *coordinator {
	return &coordinator{
		policy:    policy,
		requestID: requestID,
		reducer:   reducers[policy],
		separator: separator,
		fallback:  fallback,
		ids:       ids,
		started:   time.Now(),
		slots:     make([]slot, len(ids)),
		completed: make([]string, 0, len(ids)),
		remaining: len(ids),
		promise:   p,
	}
}

// complete records the outcome of operation i. It reports whether the
// aggregate had already resolved before this completion.
func (c *coordinator) complete(i int, v string, err error) (late bool) {
	var settle func()

	c.mu.Lock()
	late = c.resolved
	c.slots[i] = slot{value: v, err: err}
	c.remaining--
	if err != nil {
		c.failed++
		if c.failure == nil {
			c.failure = &OperationError{Index: i, ServiceID: c.ids[i], Err: err}
		}
	} else {
		c.completed = append(c.completed, v)
	}

	if !c.resolved {
		switch {
		case err != nil && c.reducer.earlyExit:
			c.resolved = true
			aggErr := &AggregateError{Policy: c.policy, RequestID: c.requestID, Cause: c.failure}
			settle = func() { c.reject(aggErr) }
		case c.remaining == 0:
			c.resolved = true
			res := c.reducer.finish(c)
			settle = func() { c.resolve(res) }
		}
	}
	c.mu.Unlock()

	// Settling runs caller callbacks, so it happens outside the lock.
	if settle != nil {
		settle()
	}
	return late
}

func (c *coordinator) resolve(res Result) {
	if c.onSettle != nil {
		c.onSettle(res, nil)
	}
	c.promise.Resolve(res)
}

func (c *coordinator) reject(err error) {
	if c.onSettle != nil {
		c.onSettle(Result{}, err)
	}
	c.promise.Reject(err)
}

func (c *coordinator) result() Result {
	return Result{RequestID: c.requestID, Failed: c.failed}
}

func joinAll(c *coordinator) Result {
	values := make([]string, len(c.slots))
	for i, s := range c.slots {
		values[i] = s.value
	}
	res := c.result()
	res.Joined = strings.Join(values, c.separator)
	return res
}

func completionOrder(c *coordinator) Result {
	res := c.result()
	res.Values = append([]string{}, c.completed...)
	return res
}

func successesInOrder(c *coordinator) Result {
	values := make([]string, 0, len(c.slots))
	for _, s := range c.slots {
		if s.err == nil {
			values = append(values, s.value)
		}
	}
	res := c.result()
	res.Values = values
	return res
}

func joinWithFallback(c *coordinator) Result {
	values := make([]string, len(c.slots))
	for i, s := range c.slots {
		if s.err != nil {
			values[i] = c.fallback
			continue
		}
		values[i] = s.value
	}
	res := c.result()
	res.Joined = strings.Join(values, c.separator)
	return res
}
