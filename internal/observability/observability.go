// Package observability installs the process-wide slog logger.
//
// By default logs are written as text or JSON to stderr. When an exporter is
// configured, records flow through the OpenTelemetry log SDK instead:
// otelslog bridge -> minimum severity filter -> batch processor -> exporter.
package observability

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"go.opentelemetry.io/contrib/bridges/otelslog"
	"go.opentelemetry.io/contrib/processors/minsev"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlplog/otlploggrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlplog/otlploghttp"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutlog"
	"go.opentelemetry.io/otel/log/global"
	sdklog "go.opentelemetry.io/otel/sdk/log"
	"go.opentelemetry.io/otel/sdk/resource"
)

// ServiceName identifies this process in exported log records.
const ServiceName = "pipeline-auth"

// Exporter selects where log records are sent.
type Exporter string

const (
	ExporterNone     Exporter = "none"
	ExporterStdout   Exporter = "stdout"
	ExporterOTLPHTTP Exporter = "otlp-http"
	ExporterOTLPGRPC Exporter = "otlp-grpc"
)

// Settings controls Instrument.
type Settings struct {
	Level    slog.Level
	Format   string // text or json, used when Exporter is none
	Exporter Exporter

	// Writer receives text/json logs and stdout exporter output. Defaults to stderr.
	Writer io.Writer

	// sync exports every record immediately; used by tests.
	sync bool
}

// ShutdownFunc flushes and releases logging resources.
type ShutdownFunc func(context.Context) error

func noopShutdown(context.Context) error { return nil }

// Instrument installs the default slog logger described by s and returns a
// function that flushes pending records.
func Instrument(ctx context.Context, s Settings) (ShutdownFunc, error) {
	if s.Writer == nil {
		s.Writer = os.Stderr
	}

	switch s.Exporter {
	case "", ExporterNone:
		handler, err := newHandler(s)
		if err != nil {
			return nil, err
		}
		slog.SetDefault(slog.New(handler))
		return noopShutdown, nil
	}

	exporter, err := newExporter(ctx, s)
	if err != nil {
		return nil, fmt.Errorf("creating %s log exporter: %w", s.Exporter, err)
	}

	var processor sdklog.Processor
	if s.sync {
		processor = sdklog.NewSimpleProcessor(exporter)
	} else {
		processor = sdklog.NewBatchProcessor(exporter)
	}

	provider := sdklog.NewLoggerProvider(
		sdklog.WithProcessor(minsev.NewLogProcessor(processor, severity(s.Level))),
		sdklog.WithResource(resource.NewSchemaless(attribute.String("service.name", ServiceName))),
	)
	global.SetLoggerProvider(provider)

	otel.SetErrorHandler(otel.ErrorHandlerFunc(func(err error) {
		fmt.Fprintf(s.Writer, "telemetry error: %v\n", err)
	}))

	slog.SetDefault(slog.New(otelslog.NewHandler(ServiceName, otelslog.WithLoggerProvider(provider))))

	return func(ctx context.Context) error {
		if err := provider.Shutdown(ctx); err != nil {
			return fmt.Errorf("shutting down logger provider: %w", err)
		}
		return nil
	}, nil
}

func newHandler(s Settings) (slog.Handler, error) {
	opts := &slog.HandlerOptions{Level: s.Level}
	switch s.Format {
	case "", "text":
		return slog.NewTextHandler(s.Writer, opts), nil
	case "json":
		return slog.NewJSONHandler(s.Writer, opts), nil
	default:
		return nil, fmt.Errorf("unsupported log format: %s", s.Format)
	}
}

// newExporter builds the configured exporter. OTLP endpoints and headers come
// from the standard OTEL_EXPORTER_OTLP_* environment variables.
func newExporter(ctx context.Context, s Settings) (sdklog.Exporter, error) {
	switch s.Exporter {
	case ExporterStdout:
		return stdoutlog.New(stdoutlog.WithWriter(s.Writer))
	case ExporterOTLPHTTP:
		return otlploghttp.New(ctx)
	case ExporterOTLPGRPC:
		return otlploggrpc.New(ctx)
	default:
		return nil, errors.New("unsupported exporter")
	}
}

// severity maps a slog level onto the closest OpenTelemetry severity.
func severity(level slog.Level) minsev.Severity {
	switch {
	case level < slog.LevelInfo:
		return minsev.SeverityDebug
	case level < slog.LevelWarn:
		return minsev.SeverityInfo
	case level < slog.LevelError:
		return minsev.SeverityWarn
	default:
		return minsev.SeverityError
	}
}
