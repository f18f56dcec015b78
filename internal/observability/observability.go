package observability

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const (
	// Default service name for traces
	DefaultServiceName = "fanin"

	// Default OTLP HTTP endpoint (local collector)
	DefaultOTLPEndpoint = "localhost:4318"
)

var (
	// Global tracer provider
	tracerProvider *sdktrace.TracerProvider

	// Global tracer
	tracer trace.Tracer
)

// Config holds observability configuration
type Config struct {
	// ServiceName is the name of the service (defaults to "fanin")
	ServiceName string `yaml:"service_name"`

	// Enabled controls whether tracing is enabled
	Enabled bool `yaml:"enabled"`

	// ExporterType specifies the exporter: "otlp", "stdout", or "none"
	ExporterType string `yaml:"exporter"`

	// OTLPEndpoint is the OTLP endpoint (host:port)
	OTLPEndpoint string `yaml:"otlp_endpoint"`

	// OTLPHeaders are additional headers for OTLP requests (e.g., authorization)
	OTLPHeaders map[string]string `yaml:"otlp_headers"`
}

// ConfigFromEnv reads the standard OpenTelemetry environment variables:
// - OTEL_SERVICE_NAME: Service name (default: "fanin")
// - OTEL_TRACES_ENABLED: "true" or "false" (default: "false")
// - OTEL_TRACES_EXPORTER: "otlp", "stdout", or "none" (default: "none")
// - OTEL_EXPORTER_OTLP_ENDPOINT: OTLP endpoint (default: localhost:4318)
// - OTEL_EXPORTER_OTLP_HEADERS: Headers in format "key1=value1,key2=value2"
func ConfigFromEnv() Config {
	return Config{
		ServiceName:  getEnv("OTEL_SERVICE_NAME", DefaultServiceName),
		Enabled:      getEnv("OTEL_TRACES_ENABLED", "false") == "true",
		ExporterType: getEnv("OTEL_TRACES_EXPORTER", "none"),
		OTLPEndpoint: getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", DefaultOTLPEndpoint),
		OTLPHeaders:  parseHeaders(getEnv("OTEL_EXPORTER_OTLP_HEADERS", "")),
	}
}

// Init initializes tracing with the given configuration
func Init(config Config, logger *zap.Logger) error {
	if logger == nil {
		logger = zap.NewNop()
	}
	if config.ServiceName == "" {
		config.ServiceName = DefaultServiceName
	}

	if !config.Enabled || config.ExporterType == "" || config.ExporterType == "none" {
		logger.Debug("tracing disabled")
		tracer = otel.GetTracerProvider().Tracer(config.ServiceName)
		return nil
	}

	res, err := resource.New(
		context.Background(),
		resource.WithAttributes(
			semconv.ServiceName(config.ServiceName),
		),
	)
	if err != nil {
		return fmt.Errorf("failed to create resource: %w", err)
	}

	var exporter sdktrace.SpanExporter
	switch config.ExporterType {
	case "otlp":
		exporter, err = createOTLPExporter(config)
		if err != nil {
			return fmt.Errorf("failed to create OTLP exporter: %w", err)
		}
		logger.Info("tracing initialized", zap.String("exporter", "otlp"), zap.String("endpoint", config.OTLPEndpoint))

	case "stdout":
		exporter, err = stdouttrace.New(stdouttrace.WithPrettyPrint())
		if err != nil {
			return fmt.Errorf("failed to create stdout exporter: %w", err)
		}
		logger.Info("tracing initialized", zap.String("exporter", "stdout"))

	default:
		return fmt.Errorf("unknown exporter type: %s", config.ExporterType)
	}

	tracerProvider = sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(tracerProvider)
	tracer = tracerProvider.Tracer(config.ServiceName)

	return nil
}

// Shutdown flushes and stops the tracer provider
func Shutdown(ctx context.Context) error {
	if tracerProvider == nil {
		return nil
	}

	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
	}

	return tracerProvider.Shutdown(ctx)
}

// StartSpanWithOtel creates a new span with the given name and OpenTelemetry options.
// Returns a context with the span and the raw OpenTelemetry span.
func StartSpanWithOtel(ctx context.Context, name string, opts ...trace.SpanStartOption) (context.Context, trace.Span) {
	tr := tracer
	if tr == nil {
		tr = otel.GetTracerProvider().Tracer(DefaultServiceName)
	}

	return tr.Start(ctx, name, opts...)
}

func createOTLPExporter(config Config) (sdktrace.SpanExporter, error) {
	opts := []otlptracehttp.Option{
		otlptracehttp.WithEndpoint(config.OTLPEndpoint),
	}

	if len(config.OTLPHeaders) > 0 {
		opts = append(opts, otlptracehttp.WithHeaders(config.OTLPHeaders))
	}

	client := otlptracehttp.NewClient(opts...)
	return otlptrace.New(context.Background(), client)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// parseHeaders parses "key1=value1,key2=value2"
func parseHeaders(headerStr string) map[string]string {
	if headerStr == "" {
		return nil
	}

	headers := make(map[string]string)
	for _, pair := range strings.Split(headerStr, ",") {
		key, value, ok := strings.Cut(pair, "=")
		if !ok || key == "" {
			continue
		}
		headers[strings.TrimSpace(key)] = strings.TrimSpace(value)
	}
	return headers
}
