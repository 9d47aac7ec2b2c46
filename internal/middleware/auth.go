package middleware

import (
	"context"
	"net/http"

	"github.com/ayush/bookshelf/backend/internal/models"
	"github.com/ayush/bookshelf/backend/internal/shelf"
)

// SessionResolver finds the session of a request.
type SessionResolver interface {
	Resolve(r *http.Request) (*models.Session, error)
}

type sessionKey struct{}

// SessionFrom returns the session injected by RequireAuth.
func SessionFrom(ctx context.Context) (*models.Session, bool) {
	s, ok := ctx.Value(sessionKey{}).(*models.Session)
	return s, ok
}

// RequireAuth is middleware that validates the session cookie or bearer
// token and injects the session into the request context.
func RequireAuth(sessions SessionResolver) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sess, err := sessions.Resolve(r)
			if err != nil || sess == nil {
				http.Error(w, `{"error":"not authenticated"}`, http.StatusUnauthorized)
				return
			}

			ctx := context.WithValue(r.Context(), sessionKey{}, sess)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// LoadUserState attaches the session's shared UserState. It must run
// after RequireAuth.
func LoadUserState(registry *shelf.Registry, client *shelf.Client) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sess, ok := SessionFrom(r.Context())
			if !ok {
				http.Error(w, `{"error":"not authenticated"}`, http.StatusUnauthorized)
				return
			}

			st, err := registry.Acquire(r.Context(), sess, client)
			if err != nil {
				http.Error(w, `{"error":"session unavailable"}`, http.StatusServiceUnavailable)
				return
			}
			next.ServeHTTP(w, r.WithContext(shelf.NewContext(r.Context(), st)))
		})
	}
}
