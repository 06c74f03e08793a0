package domain

import (
	"time"
)

// Role tags who a message in the log belongs to.
type Role string

const (
	RoleUser        Role = "user"
	RoleAgent       Role = "agent"
	RolePlaceholder Role = "placeholder"
)

// Message is one entry of a chat log. Data is set only on agent messages
// rendered from a successful query.
type Message struct {
	ID        string         `json:"id"`
	Role      Role           `json:"role"`
	Text      string         `json:"text"`
	Data      *AgentResponse `json:"data,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}

// IsPlaceholder reports whether the message is the transient loading bubble.
func (m *Message) IsPlaceholder() bool {
	return m.Role == RolePlaceholder
}
