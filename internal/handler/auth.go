package handler

import (
	"net/http"
	"strings"

	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/foodhub-storefront/internal/domain/auth"
	"github.com/xenking/foodhub-storefront/internal/foodapi"
	"github.com/xenking/foodhub-storefront/pkg/httpmiddleware"
)

// Session cookies issued by the hosted auth service. The secure variant is
// used over HTTPS.
const (
	SecureSessionCookie = "__Secure-better-auth.session_token"
	SessionCookie       = "better-auth.session_token"
)

// Authenticate resolves the caller's session from the auth cookies or a
// bearer token and stores it, along with the API token, in the request
// context. Anonymous requests pass through without a session.
func Authenticate(sessions auth.Resolver) httpmiddleware.Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			cookies := sessionCookies(r)
			if cookies == "" || sessions == nil {
				next.ServeHTTP(w, r)
				return
			}

			ctx := r.Context()
			s, err := sessions.GetSession(ctx, cookies)
			if err != nil {
				zctx.From(ctx).Warn("Resolve session", zap.Error(err))
				writeError(w, http.StatusBadGateway, "authentication service unavailable")
				return
			}
			if s == nil {
				next.ServeHTTP(w, r)
				return
			}

			ctx = auth.WithSession(ctx, s)
			ctx = foodapi.WithToken(ctx, s.Token)
			ctx = zctx.Base(ctx, zctx.From(ctx).With(zap.String("user_id", s.User.ID)))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// sessionCookies returns the cookie header to forward to the auth service.
// A bearer token is forwarded as the plain session cookie.
func sessionCookies(r *http.Request) string {
	for _, name := range []string{SecureSessionCookie, SessionCookie} {
		if c, err := r.Cookie(name); err == nil && c.Value != "" {
			return r.Header.Get("Cookie")
		}
	}
	if token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer "); ok && token != "" {
		return (&http.Cookie{Name: SessionCookie, Value: token}).String()
	}
	return ""
}

// RequireRole rejects anonymous callers with 401 and callers of any other
// role with 403.
func RequireRole(roles ...auth.Role) httpmiddleware.Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			s := auth.SessionFrom(r.Context())
			if s == nil {
				writeError(w, http.StatusUnauthorized, "authentication required")
				return
			}
			for _, role := range roles {
				if s.User.Role == role {
					next.ServeHTTP(w, r)
					return
				}
			}
			writeError(w, http.StatusForbidden, "forbidden")
		})
	}
}

// UserKey keys rate limits by the authenticated user, falling back to the
// client IP.
func UserKey(r *http.Request) string {
	if s := auth.SessionFrom(r.Context()); s != nil {
		return "user:" + s.User.ID
	}
	return "ip:" + httpmiddleware.ClientIP(r)
}
