package middleware

import (
	"context"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	visitorIDKey         contextKey = "visitorID"
	visitorFromCookieKey contextKey = "visitorFromCookie"
)

// VisitorCookieMaxAge keeps the anonymous visitor id for a year.
const VisitorCookieMaxAge = 365 * 24 * time.Hour

// Visitor resolves the anonymous visitor id from cookieName, issuing a new
// one when the cookie is missing or malformed. The id scopes that visitor's
// preferences and page controller.
func Visitor(cookieName string, secure bool) func(http.Handler) http.Handler {
	if cookieName == "" {
		cookieName = "vv_visitor"
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := ""
			if c, err := r.Cookie(cookieName); err == nil {
				if parsed, err := uuid.Parse(strings.TrimSpace(c.Value)); err == nil {
					id = parsed.String()
				}
			}
			issued := id == ""
			if issued {
				id = uuid.NewString()
				http.SetCookie(w, &http.Cookie{
					Name:     cookieName,
					Value:    id,
					Path:     "/",
					MaxAge:   int(VisitorCookieMaxAge.Seconds()),
					HttpOnly: true,
					Secure:   secure,
					SameSite: http.SameSiteLaxMode,
				})
			}
			ctx := context.WithValue(WithVisitorID(r.Context(), id), visitorFromCookieKey, !issued)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// WithVisitorID stores a visitor id on ctx.
func WithVisitorID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, visitorIDKey, id)
}

// VisitorFromCookie reports whether the request carried the visitor cookie.
// A freshly issued id is not proof of a returning client.
func VisitorFromCookie(ctx context.Context) bool {
	v, _ := ctx.Value(visitorFromCookieKey).(bool)
	return v
}

// ClientKey identifies the caller for throttling: the visitor id when the
// client sent its cookie back, else the client IP. Clients that drop the
// cookie would otherwise get a fresh key on every request.
func ClientKey(r *http.Request) string {
	if id, ok := VisitorIDFromContext(r.Context()); ok && VisitorFromCookie(r.Context()) {
		return "visitor:" + id
	}
	return "ip:" + clientIP(r)
}

func clientIP(r *http.Request) string {
	// Prefer X-Real-Ip set by chi's RealIP middleware.
	if xri := strings.TrimSpace(r.Header.Get("X-Real-Ip")); xri != "" {
		return xri
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}

// VisitorIDFromContext returns the visitor id if present.
func VisitorIDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(visitorIDKey).(string)
	return id, ok && id != ""
}
