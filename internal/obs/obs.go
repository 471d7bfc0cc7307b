// Package obs wires logging, metrics and tracing for the service binaries.
package obs

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

const defaultService = "shpkml"

type Options struct {
	Service  string
	Version  string
	LogLevel string
	// OTLPEndpoint enables OTLP/gRPC trace export when set.
	OTLPEndpoint string
}

type Shutdown func(ctx context.Context) error

// Init installs the default slog logger, publishes app info and starts the
// trace exporter. Tracing failures are logged and leave the no-op provider.
func Init(opts Options) (Shutdown, *slog.Logger) {
	service := strings.TrimSpace(opts.Service)
	if service == "" {
		service = defaultService
	}

	logger := NewLogger(service, opts.LogLevel)
	slog.SetDefault(logger)
	SetAppInfo(service, opts.Version)

	shutdownTrace, err := initTracing(service, opts.OTLPEndpoint)
	if err != nil {
		logger.Error("init tracing failed", "error", err)
	}

	return func(ctx context.Context) error {
		var out error
		if shutdownTrace != nil {
			if err := shutdownTrace(ctx); err != nil {
				out = errors.Join(out, err)
			}
		}
		return out
	}, logger
}

// NewLogger returns a JSON logger on stdout tagged with service.
func NewLogger(service, level string) *slog.Logger {
	h := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: ParseLevel(level),
	})
	return slog.New(h).With("service", service)
}

func ParseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func initTracing(service, endpoint string) (Shutdown, error) {
	endpoint = strings.TrimSpace(endpoint)
	if endpoint == "" {
		return nil, nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	exp, err := otlptracegrpc.New(ctx,
		otlptracegrpc.WithEndpoint(endpoint),
		otlptracegrpc.WithDialOption(grpc.WithTransportCredentials(insecure.NewCredentials())),
	)
	if err != nil {
		return nil, err
	}

	res, err := resource.New(ctx,
		resource.WithFromEnv(),
		resource.WithTelemetrySDK(),
		resource.WithAttributes(semconv.ServiceName(service)),
	)
	if err != nil {
		return nil, err
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithResource(res),
		sdktrace.WithBatcher(exp),
	)
	otel.SetTracerProvider(tp)
	return tp.Shutdown, nil
}

// WrapHTTP adds a server span per request.
func WrapHTTP(service string, next http.Handler) http.Handler {
	return otelhttp.NewHandler(next, service)
}

func Tracer(name string) trace.Tracer {
	if strings.TrimSpace(name) == "" {
		name = defaultService
	}
	return otel.Tracer(name)
}
