package logging

import (
	"context"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/trace"
)

// New builds the service logger. Development gets a human readable console
// writer; every other environment logs JSON with timestamps and callers.
func New(serviceName, env, level string) zerolog.Logger {
	return newLogger(os.Stdout, serviceName, env, level)
}

func newLogger(out io.Writer, serviceName, env, level string) zerolog.Logger {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix

	lvl, err := zerolog.ParseLevel(level)
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}

	if env == "development" {
		return zerolog.New(zerolog.ConsoleWriter{
			Out:        out,
			TimeFormat: time.RFC3339,
		}).Level(lvl).With().
			Timestamp().
			Str("service", serviceName).
			Logger()
	}

	return zerolog.New(out).Level(lvl).
		With().
		Timestamp().
		Caller().
		Str("service", serviceName).
		Logger()
}

// WithTrace returns logger enriched with the trace and span ids carried by ctx.
// Event methods can be chained directly on the result.
func WithTrace(ctx context.Context, logger zerolog.Logger) *zerolog.Logger {
	span := trace.SpanFromContext(ctx)
	if span.SpanContext().IsValid() {
		logger = logger.With().
			Str("trace_id", span.SpanContext().TraceID().String()).
			Str("span_id", span.SpanContext().SpanID().String()).
			Logger()
	}
	return &logger
}
