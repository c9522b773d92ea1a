package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"project-polaris/backend/internal/auth"
)

type contextKey string

const UserIDKey contextKey = "userID"

// PrincipalResolver maps a bearer token to the authenticated user.
type PrincipalResolver interface {
	Principal(token string) (uuid.UUID, error)
	// Identify also returns the user's display name.
	Identify(token string) (uuid.UUID, string, error)
}

var _ PrincipalResolver = (*auth.Verifier)(nil)

// Auth rejects requests without a valid bearer token and stores the principal in the context.
func Auth(resolver PrincipalResolver) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if !strings.HasPrefix(authHeader, "Bearer ") {
				http.Error(w, "Authorization header required", http.StatusUnauthorized)
				return
			}
			principal, err := resolver.Principal(strings.TrimPrefix(authHeader, "Bearer "))
			if err != nil {
				http.Error(w, "Invalid token", http.StatusUnauthorized)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithPrincipal(r.Context(), principal)))
		})
	}
}

func WithPrincipal(ctx context.Context, principal uuid.UUID) context.Context {
	return context.WithValue(ctx, UserIDKey, principal)
}

// PrincipalFrom returns the authenticated user, or uuid.Nil when there is none.
func PrincipalFrom(ctx context.Context) uuid.UUID {
	id, _ := ctx.Value(UserIDKey).(uuid.UUID)
	return id
}
