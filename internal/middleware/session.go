package middleware

import (
	"context"
	"net/http"

	"go.uber.org/zap"

	"storefront/internal/session"
)

const sessionKey contextKey = "session"

// SessionOptions configures the session cookie
type SessionOptions struct {
	CookieName string
	Secure     bool
}

// SessionMiddleware attaches the caller's browser session to the request.
// A missing, unknown or expired session cookie starts a fresh session with an
// empty cart and sets the cookie on the response.
func SessionMiddleware(manager *session.Manager, opts SessionOptions, logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if c, err := r.Cookie(opts.CookieName); err == nil && c.Value != "" {
				if s, err := manager.Get(c.Value); err == nil {
					next.ServeHTTP(w, r.WithContext(WithSession(r.Context(), s)))
					return
				}
			}

			s, err := manager.Start()
			if err != nil {
				logger.Error("Failed to start session", zap.Error(err))
				RespondWithError(w, http.StatusServiceUnavailable, "server is shutting down")
				return
			}

			http.SetCookie(w, &http.Cookie{
				Name:     opts.CookieName,
				Value:    s.ID,
				Path:     "/",
				HttpOnly: true,
				Secure:   opts.Secure,
				SameSite: http.SameSiteLaxMode,
			})

			next.ServeHTTP(w, r.WithContext(WithSession(r.Context(), s)))
		})
	}
}

// WithSession returns ctx carrying s
func WithSession(ctx context.Context, s *session.Session) context.Context {
	return context.WithValue(ctx, sessionKey, s)
}

// GetSession returns the session SessionMiddleware attached
func GetSession(ctx context.Context) (*session.Session, bool) {
	s, ok := ctx.Value(sessionKey).(*session.Session)
	return s, ok
}
