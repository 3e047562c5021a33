package middleware

import (
	"net/http"
	"strings"

	"go.uber.org/zap"

	"campus-hub/internal/apperr"
	"campus-hub/internal/httpx"
	"campus-hub/internal/identity"
)

type AuthMiddleware struct {
	verifier identity.Verifier
	log      *zap.Logger
}

func NewAuthMiddleware(v identity.Verifier, log *zap.Logger) *AuthMiddleware {
	return &AuthMiddleware{verifier: v, log: log}
}

// TokenFromRequest reads the bearer token from the Authorization header,
// falling back to the token query parameter used by browser websockets.
func TokenFromRequest(r *http.Request) string {
	if authHeader := r.Header.Get("Authorization"); authHeader != "" {
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
			return strings.TrimSpace(parts[1])
		}
	}
	return r.URL.Query().Get("token")
}

func (am *AuthMiddleware) Handle(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := TokenFromRequest(r)
		if token == "" {
			httpx.Error(w, r, am.log, apperr.Auth("auth", "missing authentication token"))
			return
		}

		id, err := am.verifier.Verify(r.Context(), token)
		if err != nil {
			httpx.Error(w, r, am.log, err)
			return
		}

		next.ServeHTTP(w, r.WithContext(identity.WithIdentity(r.Context(), id)))
	})
}

// RequireAdmin rejects callers whose identity lacks the admin role. It must
// run after Handle.
func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, ok := identity.FromContext(r.Context())
		if !ok {
			httpx.Error(w, r, nil, apperr.Auth("auth", "not authenticated"))
			return
		}
		if !id.IsAdmin {
			httpx.Error(w, r, nil, apperr.Forbidden("auth", "admin access required"))
			return
		}
		next.ServeHTTP(w, r)
	})
}
