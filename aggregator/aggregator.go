package aggregator

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/aixgo-dev/fanin/internal/observability"
	"github.com/aixgo-dev/fanin/pkg/future"
	metrics "github.com/aixgo-dev/fanin/pkg/observability"
	"github.com/aixgo-dev/fanin/service"
)

// DefaultMessage is sent to every service by Process unless changed with
// WithDefaultMessage.
const DefaultMessage = "hello"

// Request describes one fan-out/fan-in round.
type Request struct {
	Policy   Policy
	Services []service.Service

	// Message is sent to every service under AllOrNothing and
	// CompletionOrder, as given. An empty string is a valid message.
	Message string

	// UseDefaultMessage sends the aggregator's default message instead of
	// Message. Process sets it.
	UseDefaultMessage bool

	// Messages holds one message per service under FailFast, FailPartial
	// and FailSoft. Its length must match Services.
	Messages []string

	// Fallback replaces failed outputs under FailSoft.
	Fallback string
}

// Result is the combined outcome. Joined is set by AllOrNothing, FailFast
// and FailSoft; Values by CompletionOrder and FailPartial.
type Result struct {
	RequestID string
	Joined    string
	Values    []string

	// Failed counts operations whose failure was absorbed by the policy.
	Failed int
}

// Aggregator fans a request out to services and folds the outcomes back
// in according to a Policy. It is safe for concurrent use; every call has
// its own accumulator.
type Aggregator struct {
	logger         *zap.Logger
	defaultMessage string
	separator      string
	metrics        bool
}

// Option configures an Aggregator
type Option func(*Aggregator)

// WithLogger sets the logger
func WithLogger(logger *zap.Logger) Option {
	return func(a *Aggregator) {
		if logger != nil {
			a.logger = logger
		}
	}
}

// WithDefaultMessage sets the message Process sends
func WithDefaultMessage(msg string) Option {
	return func(a *Aggregator) {
		a.defaultMessage = msg
	}
}

// WithSeparator sets the string placed between joined outputs
func WithSeparator(sep string) Option {
	return func(a *Aggregator) {
		a.separator = sep
	}
}

// WithMetrics enables or disables Prometheus recording
func WithMetrics(enabled bool) Option {
	return func(a *Aggregator) {
		a.metrics = enabled
	}
}

// New creates an Aggregator
func New(opts ...Option) *Aggregator {
	a := &Aggregator{
		logger:         zap.NewNop(),
		defaultMessage: DefaultMessage,
		separator:      " ",
		metrics:        true,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Process sends the default message to every service and joins the
// outputs in input order (AllOrNothing).
func (a *Aggregator) Process(ctx context.Context, services []service.Service) (*future.Future[string], error) {
	return joined(a.Invoke(ctx, Request{Policy: AllOrNothing, Services: services, UseDefaultMessage: true}))
}

// ProcessCompletionOrder sends message to every service and collects the
// successful outputs in the order they complete.
func (a *Aggregator) ProcessCompletionOrder(ctx context.Context, services []service.Service, message string) (*future.Future[[]string], error) {
	return values(a.Invoke(ctx, Request{Policy: CompletionOrder, Services: services, Message: message}))
}

// ProcessFailFast sends messages[i] to services[i] and joins the outputs.
// The returned future is rejected as soon as any operation fails.
func (a *Aggregator) ProcessFailFast(ctx context.Context, services []service.Service, messages []string) (*future.Future[string], error) {
	return joined(a.Invoke(ctx, Request{Policy: FailFast, Services: services, Messages: messages}))
}

// ProcessFailPartial sends messages[i] to services[i] and returns only the
// successful outputs, in input order.
func (a *Aggregator) ProcessFailPartial(ctx context.Context, services []service.Service, messages []string) (*future.Future[[]string], error) {
	return values(a.Invoke(ctx, Request{Policy: FailPartial, Services: services, Messages: messages}))
}

// ProcessFailSoft sends messages[i] to services[i] and joins the outputs,
// using fallback for every failed operation.
func (a *Aggregator) ProcessFailSoft(ctx context.Context, services []service.Service, messages []string, fallback string) (*future.Future[string], error) {
	return joined(a.Invoke(ctx, Request{Policy: FailSoft, Services: services, Messages: messages, Fallback: fallback}))
}

// Invoke validates req, launches every operation in input order and
// returns a future for the combined result. Validation errors are returned
// directly and wrap ErrInvalidArgument; in that case no service is called.
//
// Invoke never blocks, never retries and never cancels operations. Under
// AllOrNothing and FailFast the future may be rejected while other
// operations are still running; they run to completion and their outputs
// are discarded. ctx is handed to every service unchanged.
func (a *Aggregator) Invoke(ctx context.Context, req Request) (*future.Future[Result], error) {
	if err := a.validate(req); err != nil {
		return nil, err
	}

	messages := a.messagesFor(req)
	ids := make([]string, len(req.Services))
	for i, svc := range req.Services {
		ids[i] = svc.ID()
	}

	requestID := uuid.NewString()
	logger := a.logger.With(
		zap.String("request_id", requestID),
		zap.String("policy", req.Policy.String()),
		zap.Int("operations", len(req.Services)),
	)

	ctx, span := observability.StartSpanWithOtel(ctx, fmt.Sprintf("aggregator.%s", req.Policy),
		trace.WithAttributes(
			attribute.String("aggregator.policy", req.Policy.String()),
			attribute.String("aggregator.request_id", requestID),
			attribute.StringSlice("aggregator.services", ids),
			attribute.Int("aggregator.operation_count", len(ids)),
		),
	)

	p, f := future.New[Result]()
	c := newCoordinator(req.Policy, requestID, ids, a.separator, req.Fallback, p)
	c.onSettle = func(res Result, err error) {
		duration := time.Since(c.started)
		outcome := "succeeded"
		if err != nil {
			outcome = "failed"
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			logger.Warn("aggregate failed", zap.Duration("duration", duration), zap.Error(err))
		} else {
			span.SetAttributes(attribute.Int("aggregator.failed_count", res.Failed))
			logger.Debug("aggregate resolved", zap.Duration("duration", duration), zap.Int("failed", res.Failed))
		}
		span.End()
		if a.metrics {
			metrics.RecordAggregation(req.Policy.String(), outcome, duration)
		}
	}
	if a.metrics {
		metrics.AggregationStarted()
	}

	if len(req.Services) == 0 {
		res := c.reducer.finish(c)
		c.resolve(res)
		return f, nil
	}

	for i, svc := range req.Services {
		launched := time.Now()
		op := svc.RetrieveAsync(ctx, messages[i])
		op.OnComplete(func(v string, err error) {
			if a.metrics {
				metrics.RecordServiceCall(ids[i], time.Since(launched))
			}
			late := c.complete(i, v, err)
			a.observe(logger, req.Policy, i, ids[i], err, late)
		})
	}

	return f, nil
}

func (a *Aggregator) observe(logger *zap.Logger, policy Policy, i int, id string, err error, late bool) {
	status := "succeeded"
	if err != nil {
		status = "failed"
		logger.Debug("operation failed",
			zap.Int("index", i),
			zap.String("service", id),
			zap.Bool("after_resolution", late),
			zap.Error(err),
		)
	}
	if a.metrics {
		metrics.RecordOperation(policy.String(), status, late)
	}
}

func (a *Aggregator) validate(req Request) error {
	if !req.Policy.Valid() {
		return fmt.Errorf("%w: unknown policy %q", ErrInvalidArgument, req.Policy)
	}
	if req.Services == nil {
		return fmt.Errorf("%w: services cannot be nil", ErrInvalidArgument)
	}
	if req.Policy.PerOperationMessages() {
		if req.Messages == nil {
			return fmt.Errorf("%w: messages cannot be nil", ErrInvalidArgument)
		}
		if len(req.Services) != len(req.Messages) {
			return fmt.Errorf("%w: services and messages must have the same size (%d != %d)",
				ErrInvalidArgument, len(req.Services), len(req.Messages))
		}
	}
	for i, svc := range req.Services {
		if svc == nil {
			return fmt.Errorf("%w: service %d is nil", ErrInvalidArgument, i)
		}
	}
	return nil
}

func (a *Aggregator) messagesFor(req Request) []string {
	if req.Policy.PerOperationMessages() {
		return req.Messages
	}
	msg := req.Message
	if req.UseDefaultMessage {
		msg = a.defaultMessage
	}
	messages := make([]string, len(req.Services))
	for i := range messages {
		messages[i] = msg
	}
	return messages
}

func joined(f *future.Future[Result], err error) (*future.Future[string], error) {
	if err != nil {
		return nil, err
	}
	return future.Map(f, func(r Result) string { return r.Joined }), nil
}

func values(f *future.Future[Result], err error) (*future.Future[[]string], error) {
	if err != nil {
		return nil, err
	}
	return future.Map(f, func(r Result) []string { return r.Values }), nil
}
