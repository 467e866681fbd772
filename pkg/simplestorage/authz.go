package simplestorage

import (
	"context"
)

type actorContextKey struct{}

// WithActor returns a context carrying the acting principal's identifier.
// Transport layers attach the actor before calling into the service.
func WithActor(ctx context.Context, actor string) context.Context {
	return context.WithValue(ctx, actorContextKey{}, actor)
}

// ActorFromContext extracts the acting principal set by WithActor.
// It returns the empty string when no actor is attached.
func ActorFromContext(ctx context.Context) string {
	actor, _ := ctx.Value(actorContextKey{}).(string)
	return actor
}

// AllowAllAuthorizer grants every permission to every actor.
// Useful when the library is embedded behind an external authorization layer.
type AllowAllAuthorizer struct{}

// NewAllowAllAuthorizer creates an authorizer that never denies
func NewAllowAllAuthorizer() Authorizer {
	return &AllowAllAuthorizer{}
}

// Authorize always allows
func (a *AllowAllAuthorizer) Authorize(ctx context.Context, actor string, permission Permission) error {
	return nil
}
