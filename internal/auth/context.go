package auth

import "context"

// Identity is the authenticated caller of an API request.
type Identity struct {
	Subject string
	Role    string
}

func (id Identity) complete() bool { return id.Subject != "" && id.Role != "" }

type identityKey struct{}

func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, id)
}

// IdentityFrom reports the caller stored by RequireAccessToken. ok is false
// when there is none or it lacks a subject or role.
func IdentityFrom(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(identityKey{}).(Identity)
	if !ok || !id.complete() {
		return Identity{}, false
	}
	return id, true
}
