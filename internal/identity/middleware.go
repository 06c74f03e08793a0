package identity

import (
	"net"
	"net/http"
	"strings"
)

// SessionHeaderName carries the page session id on API calls.
const SessionHeaderName = "X-HealthGuard-Session"

// Resolver looks up the identity registered for a page session.
type Resolver interface {
	Identity(sessionID string) (ClientIdentity, bool)
}

// SessionIDFromRequest reads the session id from the header, falling back to
// the session_id query parameter used by the websocket URL.
func SessionIDFromRequest(r *http.Request) string {
	sid := r.Header.Get(SessionHeaderName)
	if sid == "" {
		sid = r.URL.Query().Get("session_id")
	}
	return strings.TrimSpace(sid)
}

// Middleware injects the identity of the calling page. Requests without a
// known session are rejected; the page must be loaded first.
func Middleware(res Resolver) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sid := SessionIDFromRequest(r)
			if !ValidSessionID(sid) {
				http.Error(w, `{"error":"missing or malformed session id"}`, http.StatusBadRequest)
				return
			}

			id, ok := res.Identity(sid)
			if !ok {
				http.Error(w, `{"error":"unknown session, reload the page"}`, http.StatusNotFound)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), id)))
		})
	}
}

// IPFromRequest returns a normalized remote IP for optional request tracing.
func IPFromRequest(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
