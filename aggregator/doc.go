// Package aggregator fans a fixed set of service calls out in parallel and
// combines their results under a failure-aggregation Policy.
//
// Every policy has the same two phases: launch each operation immediately,
// in input order, then fold each outcome into a per-request accumulator as
// it completes. Only the fold differs:
//
//	Policy           Messages        Result                          On failure
//	AllOrNothing     shared          outputs joined, input order     reject with first observed error
//	CompletionOrder  shared          successes, completion order     drop it
//	FailFast         per operation   outputs joined, input order     reject with first observed error
//	FailPartial      per operation   successes, input order          drop it
//	FailSoft         per operation   outputs joined, input order     substitute the fallback
//
// Completion is callback driven: no goroutine blocks waiting for an
// operation. The aggregate future settles exactly once; completions that
// arrive after it settled are recorded in metrics and otherwise ignored.
//
// The aggregator never retries, never imposes a timeout and never cancels
// operations. A rejected aggregate leaves its sibling operations running in
// the background. Callers that need a deadline should wait with a context:
//
//	agg := aggregator.New(aggregator.WithLogger(logger))
//	f, err := agg.ProcessFailFast(ctx, services, messages)
//	if err != nil {
//	    return err // errors.Is(err, aggregator.ErrInvalidArgument)
//	}
//	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
//	defer cancel()
//	joined, err := f.Get(ctx)
package aggregator
