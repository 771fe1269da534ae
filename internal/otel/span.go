// Package otel provides span helpers shared by the engine components.
package otel

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/integrio/status-engine/internal/status"
)

// Attribute keys used on engine spans
const (
	AttrProjectID     = attribute.Key("project.id")
	AttrEnvironment   = attribute.Key("project.environment")
	AttrContainerName = attribute.Key("container.name")
	AttrCommand       = attribute.Key("devmode.command")
	AttrFileCount     = attribute.Key("devmode.file_count")
	AttrBackend       = attribute.Key("backend.type")
)

// StartSpan starts a new span if the tracer is non-nil, otherwise returns the span
// already carried by ctx.
func StartSpan(
	ctx context.Context,
	tracer trace.Tracer,
	name string,
	opts ...trace.SpanStartOption,
) (context.Context, trace.Span) {
	if tracer == nil {
		return ctx, trace.SpanFromContext(ctx)
	}
	return tracer.Start(ctx, name, opts...)
}

// KeyAttributes returns the span attributes identifying a grouped key
func KeyAttributes(key status.GroupedKey) []attribute.KeyValue {
	return []attribute.KeyValue{
		AttrProjectID.String(key.ProjectID),
		AttrEnvironment.String(key.Environment),
		AttrContainerName.String(key.Name),
	}
}

// RecordError records an error on a span and marks it failed.
// The status description stays generic; details live in the span event.
func RecordError(span trace.Span, err error) {
	if err != nil && span != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "operation failed")
	}
}
