// Package identity provides anonymous per-page identity primitives.
package identity

import (
	"context"
	"crypto/rand"
	"math/big"
	mrand "math/rand/v2"
	"regexp"
	"strconv"
	"strings"
	"time"
)

const (
	// WebUserPrefix prefixes user ids minted for browser pages.
	WebUserPrefix = "web_user_"
	// CLIUserPrefix prefixes user ids minted for the terminal client.
	CLIUserPrefix = "cli_user_"
	// SessionPrefix prefixes every session id.
	SessionPrefix = "session_"

	tokenLength = 9
	base36      = "0123456789abcdefghijklmnopqrstuvwxyz"
)

type contextKey int

const (
	identityKey contextKey = iota
)

var sessionIDPattern = regexp.MustCompile(`^session_[0-9]{1,20}(-[0-9a-z]{1,16})?$`)

// ClientIdentity is the pair of opaque ids sent with every query. It is
// created once per page load and never changes afterwards.
type ClientIdentity struct {
	UserID    string `json:"user_id"`
	SessionID string `json:"session_id"`
}

// New mints a browser identity.
func New() ClientIdentity {
	return NewWithPrefix(WebUserPrefix, time.Now())
}

// NewWithPrefix mints an identity whose user id starts with prefix and whose
// session id encodes now in unix milliseconds.
func NewWithPrefix(prefix string, now time.Time) ClientIdentity {
	return ClientIdentity{
		UserID:    prefix + randomToken(tokenLength),
		SessionID: SessionPrefix + strconv.FormatInt(now.UnixMilli(), 10),
	}
}

// WithUniqueSession returns a copy whose session id carries a short random
// suffix. The hub uses it when two pages load within the same millisecond.
func (c ClientIdentity) WithUniqueSession() ClientIdentity {
	c.SessionID = c.SessionID + "-" + randomToken(4)
	return c
}

// ValidSessionID reports whether id has the shape produced by this package.
func ValidSessionID(id string) bool {
	return sessionIDPattern.MatchString(strings.TrimSpace(id))
}

func randomToken(n int) string {
	var b strings.Builder
	b.Grow(n)
	limit := big.NewInt(int64(len(base36)))
	for i := 0; i < n; i++ {
		idx, err := rand.Int(rand.Reader, limit)
		if err != nil {
			b.WriteByte(base36[mrand.IntN(len(base36))])
			continue
		}
		b.WriteByte(base36[idx.Int64()])
	}
	return b.String()
}

// WithIdentity stores the identity in the context.
func WithIdentity(ctx context.Context, id ClientIdentity) context.Context {
	return context.WithValue(ctx, identityKey, id)
}

// FromContext extracts the identity from the request context.
func FromContext(ctx context.Context) (ClientIdentity, bool) {
	id, ok := ctx.Value(identityKey).(ClientIdentity)
	return id, ok
}

// UserIDFromContext extracts the user ID from the request context.
func UserIDFromContext(ctx context.Context) string {
	id, _ := FromContext(ctx)
	return id.UserID
}

// SessionIDFromContext extracts the page session ID from the request context.
func SessionIDFromContext(ctx context.Context) string {
	id, _ := FromContext(ctx)
	return id.SessionID
}
