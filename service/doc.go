// Package service defines the asynchronous Service collaborator and the
// implementations used by fanin.
//
// A Service exposes a single capability:
//
//	RetrieveAsync(ctx context.Context, message string) *future.Future[string]
//
// The aggregator depends only on that signature. How the result is produced
// is up to the implementation:
//
//   - Echo simulates a microservice with a fixed or random delay and an
//     optional injected failure.
//   - Redis round-trips the message through a Redis ECHO command.
//   - RateLimited throttles calls to a wrapped Service.
//   - Recorder counts invocations of a wrapped Service.
//   - Func adapts a plain function.
//
// # Basic Usage
//
//	pool := future.NewPool(8)
//	svc := service.NewEcho("A", service.WithDelay(50*time.Millisecond), service.WithExecutor(pool))
//	out, err := svc.RetrieveAsync(ctx, "hello").Get(ctx)
package service
