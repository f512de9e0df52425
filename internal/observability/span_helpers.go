package observability

import (
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// FinishSpan ends a span, recording the error pointed to by errPtr when
// one is set. Pair with a named error return:
//
//	defer observability.FinishSpan(span, &err)
//
// Handlers that report errors through the response writer instead pass
// a nil errPtr.
func FinishSpan(span trace.Span, errPtr *error) {
	if span == nil {
		return
	}
	if errPtr != nil && *errPtr != nil {
		span.RecordError(*errPtr, trace.WithStackTrace(true))
		span.SetStatus(codes.Error, (*errPtr).Error())
	}
	span.End()
}
