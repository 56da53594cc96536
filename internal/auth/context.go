package auth

import (
	"context"

	"github.com/haasonsaas/toolchat/pkg/models"
)

type actorContextKey struct{}

// WithActor attaches the resolved actor to the context. A nil actor leaves
// the context anonymous.
func WithActor(ctx context.Context, actor *models.User) context.Context {
	if actor == nil {
		return ctx
	}
	return context.WithValue(ctx, actorContextKey{}, actor)
}

// ActorFromContext returns the actor, or nil for anonymous requests.
func ActorFromContext(ctx context.Context) *models.User {
	actor, _ := ctx.Value(actorContextKey{}).(*models.User)
	return actor
}
