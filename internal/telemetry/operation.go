// Package telemetry wraps remediation dispatches in OpenTelemetry spans so
// healing activity can be correlated with the deploys and incidents around
// it.
package telemetry

import (
	"context"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

const (
	tracerName = "vigil/remediation"

	teamKey    = attribute.Key("vigil.team")
	actionKey  = attribute.Key("vigil.action")
	levelKey   = attribute.Key("vigil.escalation_level")
	outcomeKey = attribute.Key("vigil.outcome")
)

// Setup installs a tracer provider and returns its shutdown func.
// Exporters are configured through the standard OTEL environment.
func Setup(ctx context.Context) (func(context.Context) error, error) {
	tp := sdktrace.NewTracerProvider()
	otel.SetTracerProvider(tp)
	return tp.Shutdown, nil
}

// Operation is one remediation dispatch under a span.
type Operation struct {
	ctx  context.Context
	span trace.Span
}

// StartRemediation opens a span for one remediation dispatch.
func StartRemediation(ctx context.Context, team, action, level string) *Operation {
	spanCtx, span := otel.Tracer(tracerName).Start(ctx, "remediation."+action, trace.WithAttributes(
		teamKey.String(team),
		actionKey.String(action),
		levelKey.String(level),
	))
	return &Operation{ctx: spanCtx, span: span}
}

// Context returns the span context for the dispatched call.
func (o *Operation) Context() context.Context {
	if o == nil {
		return context.Background()
	}
	return o.ctx
}

// End closes the span, recording the outcome.
func (o *Operation) End(err error) {
	if o == nil || o.span == nil {
		return
	}
	if err != nil {
		o.span.RecordError(err)
		o.span.SetStatus(codes.Error, strings.TrimSpace(err.Error()))
		o.span.SetAttributes(outcomeKey.String("failure"))
	} else {
		o.span.SetAttributes(outcomeKey.String("success"))
	}
	o.span.End()
}
