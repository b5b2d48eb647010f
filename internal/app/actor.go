package app

import (
	"context"
	"strings"

	"github.com/evanschultz/stageboard/internal/domain"
)

// Actor carries normalized caller identity for change attribution.
type Actor struct {
	ID   string
	Type domain.ActorType
}

// actorContextKey stores context keys for actor metadata.
type actorContextKey struct{}

// WithActor attaches normalized actor metadata to context.
func WithActor(ctx context.Context, actor Actor) context.Context {
	return context.WithValue(ctx, actorContextKey{}, normalizeActor(actor))
}

// ActorFromContext returns the actor attached to ctx, or the local user.
func ActorFromContext(ctx context.Context) Actor {
	actor, ok := ctx.Value(actorContextKey{}).(Actor)
	if !ok || actor.ID == "" {
		return Actor{ID: "stageboard-user", Type: domain.ActorTypeUser}
	}
	return actor
}

// normalizeActor trims and canonicalizes actor metadata.
func normalizeActor(actor Actor) Actor {
	actor.ID = strings.TrimSpace(actor.ID)
	actor.Type = domain.ActorType(strings.TrimSpace(strings.ToLower(string(actor.Type))))
	switch actor.Type {
	case domain.ActorTypeUser, domain.ActorTypeAgent, domain.ActorTypeSystem:
	default:
		actor.Type = domain.ActorTypeUser
	}
	return actor
}
