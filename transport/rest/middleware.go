// Package rest is the request/response surface around the realtime
// core: account management, credential issuance, history queries and
// non-realtime message sends.
package rest

import (
	"context"
	"net/http"
	"strings"

	"gmessagerie/auth"
	"gmessagerie/domain"
)

type contextKey string

const userIDKey contextKey = "user_id"

// RequireAuth validates the "Bearer <token>" Authorization header and
// injects the resolved user id into the request context.
func RequireAuth(authenticator *auth.SessionAuthenticator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			if !strings.HasPrefix(header, "Bearer ") {
				writeError(w, http.StatusUnauthorized, "missing bearer token")
				return
			}
			token := strings.TrimPrefix(header, "Bearer ")

			userID, err := authenticator.Authenticate(token)
			if err != nil {
				writeError(w, http.StatusUnauthorized, "invalid or expired token")
				return
			}

			ctx := context.WithValue(r.Context(), userIDKey, userID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// userFromContext retrieves the authenticated user id injected by
// RequireAuth. The zero value means the middleware did not run.
func userFromContext(r *http.Request) domain.UserID {
	id, _ := r.Context().Value(userIDKey).(domain.UserID)
	return id
}
