package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/ikimina/momoledger/internal/auth"
	"github.com/ikimina/momoledger/internal/models"
)

// contextKey is a custom type for context keys to avoid collisions.
type contextKey string

const (
	// scopeKey is the context key for the authenticated staff scope.
	scopeKey contextKey = "scope"
)

// GetScope extracts the institution scope from the context.
// The boolean reports whether a scope was present.
func GetScope(ctx context.Context) (models.Scope, bool) {
	scope, ok := ctx.Value(scopeKey).(models.Scope)
	return scope, ok
}

// WithScope returns a context carrying the given scope.
func WithScope(ctx context.Context, scope models.Scope) context.Context {
	return context.WithValue(ctx, scopeKey, scope)
}

// RequireAuth wraps a handler with JWT validation. It extracts the bearer
// token from the Authorization header, validates it, and places the staff
// scope in the request context.
func RequireAuth(jwtManager *auth.JWTManager) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				unauthorized(w, auth.ErrMissingToken)
				return
			}

			parts := strings.Split(authHeader, " ")
			if len(parts) != 2 || parts[0] != "Bearer" {
				unauthorized(w, auth.ErrInvalidToken)
				return
			}

			claims, err := jwtManager.Validate(parts[1])
			if err != nil {
				unauthorized(w, err)
				return
			}

			ctx := WithScope(r.Context(), claims.Scope())
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func unauthorized(w http.ResponseWriter, err error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
}
