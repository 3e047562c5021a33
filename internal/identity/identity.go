// Package identity holds the caller identity produced by the Identity Gate and
// the context plumbing used to carry it through a request.
package identity

import "context"

// Identity is what the gate knows about a verified caller.
type Identity struct {
	UserID   int64  `json:"user_id"`
	Username string `json:"username"`
	IsAdmin  bool   `json:"is_admin"`
}

// Verifier turns a credential into an Identity. Failures carry
// apperr.KindAuth.
type Verifier interface {
	Verify(ctx context.Context, token string) (Identity, error)
}

type contextKey struct{}

func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, contextKey{}, id)
}

func FromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(contextKey{}).(Identity)
	return id, ok
}
