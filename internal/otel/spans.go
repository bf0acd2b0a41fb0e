package otel

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Standard attribute keys for runtime spans.
var (
	AttrAgentID      = attribute.Key("a2a.agent.id")
	AttrTaskID       = attribute.Key("a2a.task.id")
	AttrSkillName    = attribute.Key("a2a.skill.name")
	AttrFrameType    = attribute.Key("a2a.frame.type")
	AttrConnState    = attribute.Key("a2a.connection.state")
	AttrRegState     = attribute.Key("a2a.registration.state")
	AttrAttempt      = attribute.Key("a2a.attempt")
	AttrPeerAgentID  = attribute.Key("a2a.peer.agent.id")
)

// StartSpan is a convenience wrapper that starts an internal span with common attributes.
func StartSpan(ctx context.Context, tracer trace.Tracer, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return tracer.Start(ctx, name,
		trace.WithAttributes(attrs...),
		trace.WithSpanKind(trace.SpanKindInternal),
	)
}

// StartServerSpan starts a span for an inbound request (card server, directory callbacks).
func StartServerSpan(ctx context.Context, tracer trace.Tracer, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return tracer.Start(ctx, name,
		trace.WithAttributes(attrs...),
		trace.WithSpanKind(trace.SpanKindServer),
	)
}

// StartClientSpan starts a span for an outbound call (directory registration, task request).
func StartClientSpan(ctx context.Context, tracer trace.Tracer, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return tracer.Start(ctx, name,
		trace.WithAttributes(attrs...),
		trace.WithSpanKind(trace.SpanKindClient),
	)
}
