package chat

import (
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/ashureev/healthguard/internal/agent"
	"github.com/ashureev/healthguard/internal/identity"
	"github.com/ashureev/healthguard/internal/metrics"
)

// ErrSessionNotFound is returned for a session id the hub does not know.
var ErrSessionNotFound = errors.New("chat session not found")

// Hub keeps one controller per open page, keyed by session id.
type Hub struct {
	querier  agent.Querier
	recorder Recorder
	logger   *slog.Logger

	mu     sync.RWMutex
	active map[string]*Controller
}

// NewHub creates an empty hub. recorder may be nil.
func NewHub(querier agent.Querier, recorder Recorder, logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		querier:  querier,
		recorder: recorder,
		logger:   logger,
		active:   make(map[string]*Controller),
	}
}

// Create mints a fresh identity, greets it and registers its controller.
// Two pages opened in the same millisecond get distinct session ids.
func (h *Hub) Create() *Controller {
	id := identity.New()

	h.mu.Lock()
	defer h.mu.Unlock()

	if _, exists := h.active[id.SessionID]; exists {
		id = id.WithUniqueSession()
	}

	opts := []Option{WithLogger(h.logger.With("session_id", id.SessionID))}
	if h.recorder != nil {
		opts = append(opts, WithRecorder(h.recorder))
	}
	c := NewController(id, h.querier, opts...)
	c.Welcome()

	h.active[id.SessionID] = c
	metrics.SessionsActive.Set(float64(len(h.active)))
	h.logger.Info("Chat session registered", "user_id", id.UserID, "session_id", id.SessionID)
	return c
}

// Get returns the controller for a session.
func (h *Hub) Get(sessionID string) (*Controller, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	c, ok := h.active[sessionID]
	return c, ok
}

// Lookup is Get with an error for unknown sessions.
func (h *Hub) Lookup(sessionID string) (*Controller, error) {
	c, ok := h.Get(sessionID)
	if !ok {
		return nil, ErrSessionNotFound
	}
	return c, nil
}

// Identity implements identity.Resolver.
func (h *Hub) Identity(sessionID string) (identity.ClientIdentity, bool) {
	c, ok := h.Get(sessionID)
	if !ok {
		return identity.ClientIdentity{}, false
	}
	return c.Identity(), true
}

// Remove drops a session.
func (h *Hub) Remove(sessionID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if c, ok := h.active[sessionID]; ok {
		delete(h.active, sessionID)
		metrics.SessionsActive.Set(float64(len(h.active)))
		h.logger.Info("Chat session unregistered", "user_id", c.Identity().UserID, "session_id", sessionID)
	}
}

// Len returns the number of registered sessions.
func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.active)
}

// Sweep removes sessions that are idle, have no attached sink and have not
// been touched for ttl. It returns the removed session ids.
func (h *Hub) Sweep(now time.Time, ttl time.Duration) []string {
	h.mu.Lock()
	defer h.mu.Unlock()

	var removed []string
	for sid, c := range h.active {
		last, idle := c.IdleSince()
		if idle && now.Sub(last) >= ttl {
			delete(h.active, sid)
			removed = append(removed, sid)
		}
	}
	if len(removed) > 0 {
		metrics.SessionsActive.Set(float64(len(h.active)))
	}
	return removed
}

var _ identity.Resolver = (*Hub)(nil)
