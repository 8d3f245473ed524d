package domain

import "context"

// SystemActor is recorded when no caller identity is known
const SystemActor = "system"

// Actor identifies who triggered an action. It is advisory and never used for authorization.
type Actor struct {
	Email     string `json:"email,omitempty"`
	Role      string `json:"role,omitempty"`
	Subject   string `json:"sub,omitempty"`
	IPAddress string `json:"ip_address,omitempty"`
}

// Name is the value recorded as performed_by
func (a Actor) Name() string {
	switch {
	case a.Email != "":
		return a.Email
	case a.Subject != "":
		return a.Subject
	default:
		return SystemActor
	}
}

type actorKey struct{}

// WithActor stores a in ctx
func WithActor(ctx context.Context, a Actor) context.Context {
	return context.WithValue(ctx, actorKey{}, a)
}

// ActorFromContext returns the actor stored in ctx, or the system actor
func ActorFromContext(ctx context.Context) Actor {
	if a, ok := ctx.Value(actorKey{}).(Actor); ok {
		return a
	}
	return Actor{}
}
