package domain

import (
	"time"
)

// Outcome is how a query ended.
type Outcome string

const (
	OutcomeRendered Outcome = "rendered"
	OutcomeErrored  Outcome = "errored"
)

// Exchange is the audit record of one completed query.
type Exchange struct {
	ID        int64     `json:"id"`
	UserID    string    `json:"user_id"`
	SessionID string    `json:"session_id"`
	Query     string    `json:"query"`
	Verdict   string    `json:"verdict,omitempty"`
	Outcome   Outcome   `json:"outcome"`
	Error     string    `json:"error,omitempty"`
	LatencyMS int64     `json:"latency_ms"`
	CreatedAt time.Time `json:"created_at"`
}
