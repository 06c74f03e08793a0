package tui

import (
	"context"
	"sync"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ashureev/healthguard/internal/chat"
	"github.com/ashureev/healthguard/internal/domain"
	"github.com/ashureev/healthguard/internal/identity"
	"github.com/ashureev/healthguard/internal/render"
)

type stubQuerier struct {
	resp *domain.AgentResponse
	err  error
}

func (s stubQuerier) Query(context.Context, domain.QueryRequest) (*domain.AgentResponse, error) {
	return s.resp, s.err
}

type opLog struct {
	mu  sync.Mutex
	ops []chat.Op
}

func (l *opLog) Apply(op chat.Op) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.ops = append(l.ops, op)
}

func newModel(t *testing.T) (Model, *chat.Controller, *opLog) {
	t.Helper()
	c := chat.NewController(identity.New(), stubQuerier{resp: &domain.AgentResponse{
		FinalAnswer:     "No.",
		Verdict:         "False",
		ReasoningTrace:  "Trials show no effect.",
		Recommendations: []string{"See a doctor"},
	}})
	c.Welcome()
	ops := &opLog{}
	c.Attach(ops)
	return New(c, render.NewTerminalRenderer(80, true)), c, ops
}

func feed(m Model, ops []chat.Op) Model {
	for _, op := range ops {
		updated, _ := m.Update(OpMsg{Op: op})
		m = updated.(Model)
	}
	return m
}

func TestModelMirrorsControllerLog(t *testing.T) {
	m, c, ops := newModel(t)

	_, err := c.Send(context.Background(), "Does vitamin C cure colds?")
	require.NoError(t, err)
	m = feed(m, ops.ops)

	want, _ := c.Snapshot()
	require.Len(t, m.Log(), len(want))
	for i := range want {
		assert.Equal(t, want[i].ID, m.Log()[i].ID)
	}
	assert.False(t, m.Sending())

	view := m.View()
	assert.Contains(t, view, "FALSE")
	assert.Contains(t, view, "See a doctor")
}

func TestModelTracksPlaceholderAndInput(t *testing.T) {
	m, _, _ := newModel(t)

	placeholder := domain.Message{ID: "loading-1", Role: domain.RolePlaceholder, Text: chat.PlaceholderText}
	m = feed(m, []chat.Op{
		{Kind: chat.OpInput, Enabled: false},
		{Kind: chat.OpAppend, Message: placeholder},
	})
	assert.True(t, m.Sending())
	require.Len(t, m.Log(), 1)

	m = feed(m, []chat.Op{
		{Kind: chat.OpRemove, ID: "loading-1"},
		{Kind: chat.OpInput, Enabled: true, Focus: true},
	})
	assert.False(t, m.Sending())
	assert.Empty(t, m.Log())
}

func TestEnterIgnoredWhileSending(t *testing.T) {
	m, _, _ := newModel(t)

	m.textinput.SetValue("Does garlic cure flu?")
	updated, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	m = updated.(Model)
	assert.NotNil(t, cmd)
	assert.True(t, m.Sending())
	assert.Empty(t, m.textinput.Value())

	m.textinput.SetValue("second claim")
	updated, cmd = m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	m = updated.(Model)
	assert.Nil(t, cmd)
	assert.Equal(t, "second claim", m.textinput.Value())
}

func TestEnterWithBlankInput(t *testing.T) {
	m, _, _ := newModel(t)

	m.textinput.SetValue("   ")
	updated, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	m = updated.(Model)
	assert.Nil(t, cmd)
	assert.False(t, m.Sending())
}

func TestResetReplacesLog(t *testing.T) {
	m, c, _ := newModel(t)
	log, _ := c.Snapshot()

	m = feed(m, []chat.Op{{Kind: chat.OpReset, Log: log, Enabled: true}})
	require.Len(t, m.Log(), 1)
	assert.Equal(t, chat.WelcomeText, m.Log()[0].Text)
	assert.Contains(t, m.View(), "Welcome to **HealthGuard AI**.")
}
