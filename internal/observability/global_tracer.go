package observability

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

var globalTracer trace.Tracer

// InitGlobalTracer initializes the global tracer for the application.
func InitGlobalTracer() {
	globalTracer = otel.Tracer("utopai")
}

// GetGlobalTracer returns the global tracer instance for the application.
func GetGlobalTracer() trace.Tracer {
	if globalTracer == nil {
		// Fallback to default tracer if not initialized
		globalTracer = otel.Tracer("utopai")
	}
	return globalTracer
}

// TraceFunction starts a new span with a descriptive name for the given service and function.
func TraceFunction(ctx context.Context, serviceName, functionName string, attributes ...attribute.KeyValue) (context.Context, trace.Span) {
	tracer := GetGlobalTracer()
	spanName := fmt.Sprintf("%s.%s", serviceName, functionName)
	return tracer.Start(ctx, spanName, trace.WithAttributes(attributes...))
}

// TraceAIFunction starts a new span for an AI service function.
func TraceAIFunction(ctx context.Context, functionName string, attributes ...attribute.KeyValue) (context.Context, trace.Span) {
	return TraceFunction(ctx, "ai", functionName, attributes...)
}

// TraceUserFunction starts a new span for a user service function.
func TraceUserFunction(ctx context.Context, functionName string, attributes ...attribute.KeyValue) (context.Context, trace.Span) {
	return TraceFunction(ctx, "user", functionName, attributes...)
}

// TraceContentFunction starts a new span for a content generation function.
func TraceContentFunction(ctx context.Context, functionName string, attributes ...attribute.KeyValue) (context.Context, trace.Span) {
	return TraceFunction(ctx, "content", functionName, attributes...)
}

// TraceActivityFunction starts a new span for an activity catalog function.
func TraceActivityFunction(ctx context.Context, functionName string, attributes ...attribute.KeyValue) (context.Context, trace.Span) {
	return TraceFunction(ctx, "activity", functionName, attributes...)
}

// TraceEvaluationFunction starts a new span for a response evaluation function.
func TraceEvaluationFunction(ctx context.Context, functionName string, attributes ...attribute.KeyValue) (context.Context, trace.Span) {
	return TraceFunction(ctx, "evaluation", functionName, attributes...)
}

// TraceProgressFunction starts a new span for a progress service function.
func TraceProgressFunction(ctx context.Context, functionName string, attributes ...attribute.KeyValue) (context.Context, trace.Span) {
	return TraceFunction(ctx, "progress", functionName, attributes...)
}

// TraceGamificationFunction starts a new span for a gamification service function.
func TraceGamificationFunction(ctx context.Context, functionName string, attributes ...attribute.KeyValue) (context.Context, trace.Span) {
	return TraceFunction(ctx, "gamification", functionName, attributes...)
}

// TraceConversationFunction starts a new span for a conversation service function.
func TraceConversationFunction(ctx context.Context, functionName string, attributes ...attribute.KeyValue) (context.Context, trace.Span) {
	return TraceFunction(ctx, "conversation", functionName, attributes...)
}

// TraceHandlerFunction starts a new span for a handler function.
func TraceHandlerFunction(ctx context.Context, functionName string, attributes ...attribute.KeyValue) (context.Context, trace.Span) {
	return TraceFunction(ctx, "handler", functionName, attributes...)
}

// TraceDatabaseFunction starts a new span for a database function.
func TraceDatabaseFunction(ctx context.Context, functionName string, attributes ...attribute.KeyValue) (context.Context, trace.Span) {
	return TraceFunction(ctx, "database", functionName, attributes...)
}

// AttributeUserID returns a tracing attribute for a user ID.
func AttributeUserID(id int) attribute.KeyValue {
	return attribute.Int("user.id", id)
}

// AttributeActivityID returns a tracing attribute for an activity ID.
func AttributeActivityID(id int) attribute.KeyValue {
	return attribute.Int("activity.id", id)
}

// AttributeActivityKind returns a tracing attribute for an activity kind.
func AttributeActivityKind(kind fmt.Stringer) attribute.KeyValue {
	return attribute.String("activity.kind", kind.String())
}

// AttributeTheme returns a tracing attribute for a theme id.
func AttributeTheme(theme string) attribute.KeyValue {
	return attribute.String("theme", theme)
}

// AttributeStep returns a tracing attribute for an activity step.
func AttributeStep(step int) attribute.KeyValue {
	return attribute.Int("activity.step", step)
}

// AttributeAttempt returns a tracing attribute for an attempt number.
func AttributeAttempt(attempt int) attribute.KeyValue {
	return attribute.Int("attempt", attempt)
}

// AttributeLimit returns a tracing attribute for a limit value.
func AttributeLimit(limit int) attribute.KeyValue {
	return attribute.Int("limit", limit)
}
