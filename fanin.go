// Package fanin runs one configured fan-out/fan-in round: it builds the
// services described by a config.Config, hands them to the aggregator and
// waits for the combined result.
package fanin

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/aixgo-dev/fanin/aggregator"
	"github.com/aixgo-dev/fanin/pkg/config"
	"github.com/aixgo-dev/fanin/pkg/future"
	"github.com/aixgo-dev/fanin/pkg/observability"
	"github.com/aixgo-dev/fanin/service"
)

// Report is the outcome of one run
type Report struct {
	RequestID string
	Policy    aggregator.Policy
	Joined    string
	Values    []string
	Failed    int
	Duration  time.Duration
}

func (r *Report) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "policy:   %s\n", r.Policy)
	fmt.Fprintf(&b, "request:  %s\n", r.RequestID)
	fmt.Fprintf(&b, "duration: %s\n", r.Duration.Round(time.Millisecond))
	fmt.Fprintf(&b, "failed:   %d\n", r.Failed)
	if r.Policy == aggregator.CompletionOrder || r.Policy == aggregator.FailPartial {
		fmt.Fprintf(&b, "values:   [%s]\n", strings.Join(r.Values, ", "))
	} else {
		fmt.Fprintf(&b, "result:   %q\n", r.Joined)
	}
	return b.String()
}

// Runner owns the pool, services and connections built from a config
type Runner struct {
	cfg        *config.Config
	policy     aggregator.Policy
	logger     *zap.Logger
	pool       *future.Pool
	services   []service.Service
	aggregator *aggregator.Aggregator
	health     *observability.HealthChecker
	closers    []io.Closer
}

// NewRunner validates cfg and builds its services.
func NewRunner(cfg *config.Config, logger *zap.Logger) (*Runner, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	policy, err := aggregator.ParsePolicy(cfg.Policy)
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	r := &Runner{
		cfg:    cfg,
		policy: policy,
		logger: logger,
		pool:   future.NewPool(cfg.Runtime.PoolSize),
		health: observability.NewHealthChecker(),
	}
	r.health.RegisterCheck(observability.PingCheck())

	if err := r.buildServices(); err != nil {
		_ = r.Close()
		return nil, err
	}

	r.aggregator = aggregator.New(
		aggregator.WithLogger(logger),
		aggregator.WithDefaultMessage(cfg.SharedMessage()),
		aggregator.WithSeparator(cfg.JoinSeparator()),
	)
	return r, nil
}

func (r *Runner) buildServices() error {
	var redisClient *service.Redis
	for _, sc := range r.cfg.Services {
		var svc service.Service
		switch sc.Kind {
		case config.KindRedis:
			if redisClient == nil {
				client, err := service.NewRedisClient(service.RedisConfig{
					Addr:     r.cfg.Redis.Addr,
					Password: r.cfg.Redis.Password,
					DB:       r.cfg.Redis.DB,
					PoolSize: r.cfg.Redis.PoolSize,
				})
				if err != nil {
					return err
				}
				redisClient = service.NewRedisFromClient(sc.ID, client, r.pool)
				r.closers = append(r.closers, redisClient)
				r.health.RegisterCheck(observability.ServiceCheck("redis", redisClient.Ping))
				svc = redisClient
			} else {
				svc = redisClient.WithID(sc.ID)
			}
		default:
			opts := []service.EchoOption{
				service.WithExecutor(r.pool),
				service.WithDelay(sc.Delay),
				service.WithFailure(sc.Fail),
			}
			if sc.Jitter > 0 {
				opts = append(opts, service.WithJitter(sc.Jitter))
			}
			svc = service.NewEcho(sc.ID, opts...)
		}

		if sc.RateLimit != nil {
			svc = service.NewRateLimited(svc, sc.RateLimit.RequestsPerSecond, sc.RateLimit.Burst, r.pool)
		}
		r.services = append(r.services, svc)
	}
	return nil
}

// Health returns the checker covering the runner's remote services
func (r *Runner) Health() *observability.HealthChecker {
	return r.health
}

// Run performs one aggregation and waits up to the configured timeout.
// The timeout bounds only the wait; operations are never canceled.
func (r *Runner) Run(ctx context.Context) (*Report, error) {
	req := aggregator.Request{
		Policy:   r.policy,
		Services: r.services,
		Message:  r.cfg.SharedMessage(),
		Fallback: r.cfg.Fallback,
	}
	if r.policy.PerOperationMessages() {
		req.Messages = r.cfg.Messages()
	}
	if req.Services == nil {
		req.Services = []service.Service{}
	}

	start := time.Now()
	f, err := r.aggregator.Invoke(ctx, req)
	if err != nil {
		return nil, err
	}

	waitCtx := ctx
	if r.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		waitCtx, cancel = context.WithTimeout(ctx, r.cfg.Timeout)
		defer cancel()
	}

	res, err := f.Get(waitCtx)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("aggregate did not resolve within %s: %w", r.cfg.Timeout, err)
		}
		return nil, err
	}

	report := &Report{
		RequestID: res.RequestID,
		Policy:    r.policy,
		Joined:    res.Joined,
		Values:    res.Values,
		Failed:    res.Failed,
		Duration:  time.Since(start),
	}
	r.logger.Info("aggregation complete",
		zap.String("request_id", report.RequestID),
		zap.String("policy", report.Policy.String()),
		zap.Int("failed", report.Failed),
		zap.Duration("duration", report.Duration),
	)
	return report, nil
}

// Close waits for background operations to finish and releases
// connections.
func (r *Runner) Close() error {
	r.pool.Wait()

	var errs []error
	for _, c := range r.closers {
		if err := c.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Run builds a Runner from cfg, performs one aggregation and closes it.
func Run(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Report, error) {
	r, err := NewRunner(cfg, logger)
	if err != nil {
		return nil, err
	}
	defer func() {
		if cerr := r.Close(); cerr != nil && logger != nil {
			logger.Warn("close failed", zap.Error(cerr))
		}
	}()
	return r.Run(ctx)
}
