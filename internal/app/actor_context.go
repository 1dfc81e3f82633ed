package app

import (
	"context"

	"github.com/evanschultz/flare/internal/domain"
)

// actorContextKey stores context keys for authenticated actors.
type actorContextKey struct{}

// WithActor attaches an authenticated actor to context.
func WithActor(ctx context.Context, actor domain.Actor) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, actorContextKey{}, actor)
}

// ActorFromContext returns the authenticated actor when present.
func ActorFromContext(ctx context.Context) (domain.Actor, bool) {
	if ctx == nil {
		return domain.Actor{}, false
	}
	actor, ok := ctx.Value(actorContextKey{}).(domain.Actor)
	if !ok || !actor.Authenticated() {
		return domain.Actor{}, false
	}
	return actor, true
}
