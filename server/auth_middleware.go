package server

import (
	"context"
	"net/http"
	"strings"

	"github.com/jrsteele09/go-auth-session/users"
)

// ContextKey is a custom type for context keys to avoid collisions
type ContextKey string

const (
	// ContextKeyUser stores the authenticated user
	ContextKeyUser ContextKey = "user"
	// ContextKeyAccessToken stores the raw bearer token
	ContextKeyAccessToken ContextKey = "access_token"
)

// RequireAuth is middleware that validates a Bearer access token and injects the user it belongs to.
func (s *Server) RequireAuth() func(http.HandlerFunc) http.HandlerFunc {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				writeJSONError(w, http.StatusUnauthorized, "missing Authorization header")
				return
			}

			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
				writeJSONError(w, http.StatusUnauthorized, "invalid Authorization header format")
				return
			}

			rawToken := strings.TrimSpace(parts[1])
			if rawToken == "" {
				writeJSONError(w, http.StatusUnauthorized, "empty token")
				return
			}

			user, claims, err := s.accounts.Authenticate(rawToken)
			if err != nil {
				s.writeError(w, r, err)
				return
			}

			logger := loggerFromRequest(r).With().Str("user_id", claims.UserID).Logger()
			ctx := context.WithValue(r.Context(), ContextKeyUser, user)
			ctx = context.WithValue(ctx, ContextKeyAccessToken, rawToken)
			ctx = logger.WithContext(ctx)
			next(w, r.WithContext(ctx))
		}
	}
}

func userFromContext(ctx context.Context) (*users.User, string, bool) {
	user, ok := ctx.Value(ContextKeyUser).(*users.User)
	if !ok || user == nil {
		return nil, "", false
	}
	rawToken, _ := ctx.Value(ContextKeyAccessToken).(string)
	return user, rawToken, true
}
