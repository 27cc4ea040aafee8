package telemetry

import (
	"context"
	"os"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"go.uber.org/zap"
)

// Logger is the process logger. It is a no-op logger until InitTelemetry runs.
var Logger = zap.NewNop()

var tracerProvider *sdktrace.TracerProvider

// InitTelemetry configures the zap logger and, when OTEL_EXPORTER_OTLP_ENDPOINT is
// set, an OTLP/HTTP trace exporter.
//
// Supported env vars:
//   - LOG_LEVEL (debug|info|warn|error, default: info)
//   - LOG_FORMAT (json|console, default: json)
//   - OTEL_EXPORTER_OTLP_ENDPOINT (host:port, optional)
//   - OTEL_EXPORTER_OTLP_INSECURE (true to disable TLS)
func InitTelemetry(serviceName string) error {
	logger, err := newLogger(serviceName)
	if err != nil {
		return err
	}
	Logger = logger
	zap.ReplaceGlobals(logger)

	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(propagation.TraceContext{}, propagation.Baggage{}))

	endpoint := os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT")
	if endpoint == "" {
		Logger.Info("tracing disabled; OTEL_EXPORTER_OTLP_ENDPOINT not set")
		return nil
	}

	opts := []otlptracehttp.Option{otlptracehttp.WithEndpoint(strings.TrimPrefix(strings.TrimPrefix(endpoint, "http://"), "https://"))}
	if strings.EqualFold(os.Getenv("OTEL_EXPORTER_OTLP_INSECURE"), "true") || strings.HasPrefix(endpoint, "http://") {
		opts = append(opts, otlptracehttp.WithInsecure())
	}
	exporter, err := otlptracehttp.New(context.Background(), opts...)
	if err != nil {
		return err
	}

	res, err := resource.Merge(resource.Default(), resource.NewWithAttributes(
		semconv.SchemaURL,
		semconv.ServiceName(serviceName),
	))
	if err != nil {
		return err
	}

	tracerProvider = sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(tracerProvider)
	Logger.Info("tracing enabled", zap.String("endpoint", endpoint))
	return nil
}

// Shutdown flushes spans and logs.
func Shutdown(ctx context.Context) {
	if tracerProvider != nil {
		if err := tracerProvider.Shutdown(ctx); err != nil {
			Logger.Warn("tracer provider shutdown failed", zap.Error(err))
		}
	}
	_ = Logger.Sync()
}

func newLogger(serviceName string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	if strings.EqualFold(os.Getenv("LOG_FORMAT"), "console") {
		cfg = zap.NewDevelopmentConfig()
	}
	if lvl := os.Getenv("LOG_LEVEL"); lvl != "" {
		level, err := zap.ParseAtomicLevel(lvl)
		if err != nil {
			return nil, err
		}
		cfg.Level = level
	}
	logger, err := cfg.Build()
	if err != nil {
		return nil, err
	}
	return logger.With(zap.String("service", serviceName)), nil
}
