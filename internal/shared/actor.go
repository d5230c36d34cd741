package shared

import "context"

// Actor is the authenticated caller supplied by the transport layer.
// Identity and role resolution happen outside the engine.
type Actor struct {
	ID    int64
	Role  string
	OrgID int64
}

type actorContextKey struct{}

// ContextWithActor stores the actor in context.
func ContextWithActor(ctx context.Context, actor Actor) context.Context {
	return context.WithValue(ctx, actorContextKey{}, actor)
}

// ActorFromContext extracts the actor from context.
func ActorFromContext(ctx context.Context) (Actor, bool) {
	actor, ok := ctx.Value(actorContextKey{}).(Actor)
	return actor, ok
}
