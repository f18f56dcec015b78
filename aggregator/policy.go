package aggregator

import (
	"fmt"
	"strings"
)

// Policy selects how per-operation outcomes are combined.
type Policy string

const (
	// AllOrNothing sends the same message to every service and joins all
	// outputs in input order. The first observed failure rejects the
	// aggregate.
	AllOrNothing Policy = "all-or-nothing"

	// CompletionOrder sends the same message to every service and collects
	// successful outputs in the order they complete. Failures are dropped.
	CompletionOrder Policy = "completion-order"

	// FailFast sends one message per service and joins all outputs in input
	// order. The first observed failure rejects the aggregate.
	FailFast Policy = "fail-fast"

	// FailPartial sends one message per service and keeps only the
	// successful outputs, in input order. It never rejects.
	FailPartial Policy = "fail-partial"

	// FailSoft sends one message per service and joins all outputs in input
	// order, substituting the fallback for failed operations. It never
	// rejects.
	FailSoft Policy = "fail-soft"
)

// Policies lists every supported policy.
var Policies = []Policy{AllOrNothing, CompletionOrder, FailFast, FailPartial, FailSoft}

// ParsePolicy converts a policy name. Matching is case-insensitive and
// accepts underscores in place of dashes.
func ParsePolicy(s string) (Policy, error) {
	name := strings.ReplaceAll(strings.ToLower(strings.TrimSpace(s)), "_", "-")
	for _, p := range Policies {
		if string(p) == name {
			return p, nil
		}
	}
	return "", fmt.Errorf("%w: unknown policy %q", ErrInvalidArgument, s)
}

// PerOperationMessages reports whether the policy takes one message per
// service rather than a shared message.
func (p Policy) PerOperationMessages() bool {
	r, ok := reducers[p]
	return ok && r.perOperation
}

// CanFail reports whether the aggregate future can be rejected under p.
func (p Policy) CanFail() bool {
	r, ok := reducers[p]
	return ok && r.earlyExit
}

// Valid reports whether p is a known policy.
func (p Policy) Valid() bool {
	_, ok := reducers[p]
	return ok
}

func (p Policy) String() string {
	return string(p)
}
