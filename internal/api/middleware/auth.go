package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/klubhuset/backend/internal/api/apierr"
	"github.com/klubhuset/backend/internal/auth"
	"github.com/klubhuset/backend/internal/model"
)

type contextKey string

const userContextKey contextKey = "user"

// SessionCookieName is the cookie the login endpoint sets
const SessionCookieName = "jwt"

// Auth creates authentication middleware. The token may arrive as a
// Bearer header or as the session cookie; the claims' username is
// re-resolved against the directory on every request, so a deleted or
// renamed account invalidates old tokens immediately.
func Auth(accounts *auth.Service, tokens *auth.TokenService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := extractToken(r)
			if token == "" {
				apierr.WriteError(w, apierr.NewUnauthorizedError())
				return
			}

			claims, err := tokens.Verify(token)
			if err != nil {
				apierr.WriteError(w, err)
				return
			}

			user, err := accounts.GetUser(r.Context(), claims.Username)
			if err != nil {
				apierr.WriteError(w, model.ErrInvalidToken)
				return
			}

			ctx := context.WithValue(r.Context(), userContextKey, user)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// extractToken extracts the session token from the request
func extractToken(r *http.Request) string {
	authHeader := r.Header.Get("Authorization")
	if strings.HasPrefix(authHeader, "Bearer ") {
		return strings.TrimPrefix(authHeader, "Bearer ")
	}

	cookie, err := r.Cookie(SessionCookieName)
	if err == nil {
		return cookie.Value
	}
	return ""
}

// GetUser returns the authenticated account from the request context
func GetUser(ctx context.Context) *model.User {
	user, _ := ctx.Value(userContextKey).(*model.User)
	return user
}

// MustGetUser returns the authenticated account or panics
func MustGetUser(ctx context.Context) *model.User {
	user := GetUser(ctx)
	if user == nil {
		panic("no user in context - auth middleware not applied?")
	}
	return user
}
