// Package tracing wires the process-wide OpenTelemetry provider and carries
// task/session identity through context so log lines and spans line up.
package tracing

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.39.0"
	"go.opentelemetry.io/otel/trace"
)

var (
	setupOnce      sync.Once
	setupErr       error
	providerGuard  sync.Mutex
	activeProvider *sdktrace.TracerProvider
)

func newTracerProvider(serviceName string) (*sdktrace.TracerProvider, error) {
	res, err := resource.Merge(
		resource.Default(),
		resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceName(serviceName),
		),
	)
	if err != nil {
		return nil, err
	}

	return sdktrace.NewTracerProvider(
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.AlwaysSample())),
	), nil
}

// InitOpenTelemetry installs the process-wide tracer provider. Repeat calls
// are no-ops and return the first call's result.
func InitOpenTelemetry(serviceName string) error {
	setupOnce.Do(func() {
		tp, err := newTracerProvider(serviceName)
		if err != nil {
			setupErr = err
			return
		}

		providerGuard.Lock()
		activeProvider = tp
		providerGuard.Unlock()

		otel.SetTracerProvider(tp)
	})
	return setupErr
}

// ShutdownOpenTelemetry flushes pending spans and tears the provider down.
// It is a no-op when InitOpenTelemetry never succeeded.
func ShutdownOpenTelemetry(ctx context.Context) error {
	providerGuard.Lock()
	tp := activeProvider
	providerGuard.Unlock()

	if tp == nil {
		return nil
	}
	return tp.Shutdown(ctx)
}

// StartSpan opens a span under the named tracer. When the context does not
// carry a trace id yet, the span's trace id is stamped into it so log
// correlation works for callers that never touched the tracing context.
func StartSpan(ctx context.Context, tracerName, spanName string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	if ctx == nil {
		ctx = context.Background()
	}

	ctx, span := otel.Tracer(tracerName).Start(ctx, spanName, trace.WithAttributes(attrs...))
	if GetTraceID(ctx) == "" {
		if sc := span.SpanContext(); sc.IsValid() {
			ctx = WithTraceID(ctx, sc.TraceID().String())
		}
	}
	return ctx, span
}
