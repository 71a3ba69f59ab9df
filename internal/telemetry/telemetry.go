// Package telemetry wraps the global OpenTelemetry tracer with the span
// helpers the engine and daemon use around session operations.
package telemetry

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/useai-dev/useai-core"

func tracer() trace.Tracer {
	return otel.Tracer(tracerName)
}

// StartSessionSpan starts a span for a session-engine operation
// (start/heartbeat/end/seal_active), tagged with the session id.
func StartSessionSpan(ctx context.Context, op, sessionID string) (context.Context, trace.Span) {
	ctx, span := tracer().Start(ctx, "session."+op)
	span.SetAttributes(attribute.String("session.id", sessionID))
	return ctx, span
}

// EndSpan closes span, recording err if non-nil.
func EndSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
	}
	span.End()
}

// StartHandlerSpan starts a span for a tool-handler invocation.
func StartHandlerSpan(ctx context.Context, tool string) (context.Context, trace.Span) {
	ctx, span := tracer().Start(ctx, "tool."+tool)
	span.SetAttributes(attribute.String("tool.name", tool))
	return ctx, span
}
