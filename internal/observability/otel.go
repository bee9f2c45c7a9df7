package observability

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/dialecticlabs/dialectic-backend/internal/logger"
)

// Setup installs a global tracer provider with a stdout exporter. The
// returned shutdown must run before process exit to flush spans.
func Setup(ctx context.Context, log *logger.Logger) (func(context.Context) error, error) {
	exporter, err := stdouttrace.New(stdouttrace.WithPrettyPrint())
	if err != nil {
		return nil, fmt.Errorf("Failed to create trace exporter: %w", err)
	}
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
	)
	otel.SetTracerProvider(tp)
	log.Info("Tracing initialized")
	return tp.Shutdown, nil
}
