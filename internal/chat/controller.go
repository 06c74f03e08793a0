// Package chat implements the chat controller, the per-page session registry
// and the websocket transport that mirrors a controller's log into the page.
package chat

import (
	"context"
	"errors"
	"fmt"
	"html/template"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ashureev/healthguard/internal/agent"
	"github.com/ashureev/healthguard/internal/domain"
	"github.com/ashureev/healthguard/internal/identity"
	"github.com/ashureev/healthguard/internal/render"
)

const (
	PlaceholderText     = "Cross-referencing medical database..."
	ConnectionErrorText = "⚠️ Connection Error. Ensure the backend API is running."
	WelcomeText         = "Welcome to **HealthGuard AI**.\nI verify medical claims using trusted data. Ask me anything!"
)

// ErrBusy is returned by Send while a previous query is still in flight.
var ErrBusy = errors.New("a query is already in flight")

// State is the controller's submission state.
type State int

const (
	StateIdle State = iota
	StateSending
)

func (s State) String() string {
	if s == StateSending {
		return "sending"
	}
	return "idle"
}

// Recorder receives one audit record per completed query.
type Recorder interface {
	RecordExchange(ctx context.Context, ex *domain.Exchange) error
}

// Turn is what one Send produced. Err is the query failure, already
// rendered as the connection-error bubble.
type Turn struct {
	User  domain.Message
	Reply domain.Message
	Err   error
}

// Controller owns one chat log and runs the submit cycle against the agent.
type Controller struct {
	id       identity.ClientIdentity
	querier  agent.Querier
	recorder Recorder
	logger   *slog.Logger
	now      func() time.Time

	mu         sync.Mutex
	state      State
	log        []domain.Message
	sinks      map[int64]Sink
	nextSink   int64
	lastActive time.Time
}

// Option configures a Controller.
type Option func(*Controller)

// WithRecorder records every completed query.
func WithRecorder(r Recorder) Option {
	return func(c *Controller) { c.recorder = r }
}

// WithLogger sets the logger used for query failures.
func WithLogger(l *slog.Logger) Option {
	return func(c *Controller) { c.logger = l }
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(c *Controller) { c.now = now }
}

// NewController creates a controller bound to one identity.
func NewController(id identity.ClientIdentity, querier agent.Querier, opts ...Option) *Controller {
	c := &Controller{
		id:      id,
		querier: querier,
		logger:  slog.Default(),
		now:     time.Now,
		sinks:   make(map[int64]Sink),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.lastActive = c.now()
	return c
}

// Identity returns the identity sent with every query.
func (c *Controller) Identity() identity.ClientIdentity {
	return c.id
}

// State returns the current submission state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Snapshot returns a copy of the log and the current state.
func (c *Controller) Snapshot() ([]domain.Message, State) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.copyLogLocked(), c.state
}

// Welcome appends the greeting bubble shown when a page opens.
func (c *Controller) Welcome() domain.Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.appendLocked(domain.RoleAgent, WelcomeText, nil)
}

// Render appends a message to the end of the log and publishes it.
func (c *Controller) Render(text string, role domain.Role, data *domain.AgentResponse) domain.Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.appendLocked(role, text, data)
}

// Send submits text to the agent. Blank input is ignored. While a query is
// in flight further calls return ErrBusy and leave the log untouched. The
// query itself is never retried and its failure is rendered, not returned.
func (c *Controller) Send(ctx context.Context, text string) (*Turn, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, nil
	}

	c.mu.Lock()
	if c.state == StateSending {
		c.mu.Unlock()
		return nil, ErrBusy
	}
	c.state = StateSending
	c.lastActive = c.now()
	turn := &Turn{User: c.appendLocked(domain.RoleUser, text, nil)}
	c.publishLocked(Op{Kind: OpInput, Enabled: false})
	placeholder := c.appendLocked(domain.RolePlaceholder, PlaceholderText, nil)
	c.mu.Unlock()

	req := domain.QueryRequest{UserID: c.id.UserID, SessionID: c.id.SessionID, Query: text}
	start := c.now()
	resp, err := c.querier.Query(ctx, req)
	latency := c.now().Sub(start)
	if err == nil && resp == nil {
		err = fmt.Errorf("%w: empty response", agent.ErrQueryFailed)
	}

	ex := &domain.Exchange{
		UserID:    c.id.UserID,
		SessionID: c.id.SessionID,
		Query:     text,
		LatencyMS: latency.Milliseconds(),
	}

	c.mu.Lock()
	c.removeLocked(placeholder.ID)
	if err != nil {
		c.logger.Error("Agent query failed",
			"user_id", c.id.UserID,
			"session_id", c.id.SessionID,
			"latency", latency,
			"error", err,
		)
		turn.Err = err
		turn.Reply = c.appendLocked(domain.RoleAgent, ConnectionErrorText, nil)
		ex.Outcome = domain.OutcomeErrored
		ex.Error = err.Error()
	} else {
		turn.Reply = c.appendLocked(domain.RoleAgent, resp.FinalAnswer, resp)
		ex.Outcome = domain.OutcomeRendered
		ex.Verdict = resp.Verdict
	}
	c.state = StateIdle
	c.lastActive = c.now()
	c.publishLocked(Op{Kind: OpInput, Enabled: true, Focus: true})
	c.mu.Unlock()

	c.record(ctx, ex)
	return turn, nil
}

func (c *Controller) record(ctx context.Context, ex *domain.Exchange) {
	if c.recorder == nil {
		return
	}
	if err := c.recorder.RecordExchange(context.WithoutCancel(ctx), ex); err != nil {
		c.logger.Warn("failed to record exchange", "session_id", ex.SessionID, "error", err)
	}
}

// Attach registers a sink. The sink first receives a reset op carrying the
// current log, then every later op.
func (c *Controller) Attach(s Sink) int64 {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.nextSink++
	id := c.nextSink
	s.Apply(Op{
		Kind:    OpReset,
		Log:     c.copyLogLocked(),
		Enabled: c.state == StateIdle,
		Focus:   c.state == StateIdle,
	})
	c.sinks[id] = s
	c.lastActive = c.now()
	return id
}

// Detach unregisters a sink.
func (c *Controller) Detach(id int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.sinks, id)
	c.lastActive = c.now()
}

// SinkCount returns the number of attached sinks.
func (c *Controller) SinkCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.sinks)
}

// IdleSince returns when the controller last did anything, and whether it
// is idle with nothing attached.
func (c *Controller) IdleSince() (time.Time, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastActive, c.state == StateIdle && len(c.sinks) == 0
}

func (c *Controller) appendLocked(role domain.Role, text string, data *domain.AgentResponse) domain.Message {
	msg := domain.Message{
		ID:        newMessageID(role),
		Role:      role,
		Text:      text,
		Data:      data,
		CreatedAt: c.now(),
	}
	c.log = append(c.log, msg)

	html, err := render.HTML(msg)
	if err != nil {
		c.logger.Error("Failed to render message", "session_id", c.id.SessionID, "error", err)
		html = template.HTML(`<div class="message ` + string(role) + `">` + template.HTMLEscapeString(text) + `</div>`) //nolint:gosec // escaped
	}
	c.publishLocked(Op{Kind: OpAppend, Message: msg, HTML: html})
	return msg
}

func (c *Controller) removeLocked(id string) {
	for i, m := range c.log {
		if m.ID == id {
			c.log = append(c.log[:i], c.log[i+1:]...)
			c.publishLocked(Op{Kind: OpRemove, ID: id})
			return
		}
	}
}

func (c *Controller) publishLocked(op Op) {
	for _, s := range c.sinks {
		s.Apply(op)
	}
}

func (c *Controller) copyLogLocked() []domain.Message {
	out := make([]domain.Message, len(c.log))
	copy(out, c.log)
	return out
}

func newMessageID(role domain.Role) string {
	if role == domain.RolePlaceholder {
		return "loading-" + uuid.NewString()
	}
	return "msg-" + uuid.NewString()
}
