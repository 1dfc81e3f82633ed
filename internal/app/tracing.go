package app

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/evanschultz/flare/internal/domain"
)

// instrumentationName names the tracer used for service spans.
const instrumentationName = "github.com/evanschultz/flare/internal/app"

// startSpan opens one span per service operation.
func (s *Service) startSpan(ctx context.Context, operation string, actor domain.Actor) (context.Context, trace.Span) {
	return s.tracer.Start(ctx, "app."+operation,
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(
			attribute.String("flare.operation", operation),
			attribute.String("flare.actor_id", actor.UserID),
			attribute.StringSlice("flare.actor_roles", domain.RoleNames(actor.Roles)),
		),
	)
}

// finishSpan records err on span and ends it.
func finishSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
