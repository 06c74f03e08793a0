// Package tui is the interactive terminal front end over a chat controller.
package tui

import (
	"context"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/ashureev/healthguard/internal/chat"
	"github.com/ashureev/healthguard/internal/domain"
	"github.com/ashureev/healthguard/internal/render"
)

var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#38BDF8"))
	statusStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#6E7781"))
)

// OpMsg carries one controller op into the program.
type OpMsg struct{ Op chat.Op }

type sendDoneMsg struct{ err error }

// Model mirrors a controller's log. Ops arrive as OpMsg; the model never
// mutates the log itself.
type Model struct {
	ctrl     *chat.Controller
	renderer *render.TerminalRenderer

	textinput textinput.Model
	viewport  viewport.Model
	spinner   spinner.Model

	log     []domain.Message
	sending bool
	lastErr error
	width   int
	ready   bool
}

// New creates a model bound to c.
func New(c *chat.Controller, r *render.TerminalRenderer) Model {
	ti := textinput.New()
	ti.Placeholder = "Ask about a medical claim... (Enter to send, Ctrl+C to exit)"
	ti.Prompt = "│ "
	ti.CharLimit = 4096
	ti.Width = r.Width() - 4
	ti.Focus()

	sp := spinner.New()
	sp.Spinner = spinner.Dot

	vp := viewport.New(r.Width(), 20)

	return Model{
		ctrl:      c,
		renderer:  r,
		textinput: ti,
		viewport:  vp,
		spinner:   sp,
		width:     r.Width(),
	}
}

// Sending reports whether a query is in flight.
func (m Model) Sending() bool { return m.sending }

// Log returns the mirrored log.
func (m Model) Log() []domain.Message { return m.log }

func (m Model) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, m.spinner.Tick)
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			return m, tea.Quit
		case tea.KeyEnter:
			// Enter is ignored while a query is in flight.
			if m.sending {
				return m, nil
			}
			text := strings.TrimSpace(m.textinput.Value())
			if text == "" {
				return m, nil
			}
			m.textinput.Reset()
			m.sending = true
			return m, tea.Batch(m.send(text), m.spinner.Tick)
		}
		if !m.sending {
			var cmd tea.Cmd
			m.textinput, cmd = m.textinput.Update(msg)
			cmds = append(cmds, cmd)
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		height := msg.Height - 4
		if height < 3 {
			height = 3
		}
		if !m.ready {
			m.viewport = viewport.New(msg.Width, height)
			m.ready = true
		} else {
			m.viewport.Width = msg.Width
			m.viewport.Height = height
		}
		m.textinput.Width = msg.Width - 4
		m.refresh()

	case OpMsg:
		m.apply(msg.Op)

	case sendDoneMsg:
		m.lastErr = msg.err

	case spinner.TickMsg:
		if m.sending {
			var cmd tea.Cmd
			m.spinner, cmd = m.spinner.Update(msg)
			return m, cmd
		}
	}

	var vpCmd tea.Cmd
	m.viewport, vpCmd = m.viewport.Update(msg)
	cmds = append(cmds, vpCmd)
	return m, tea.Batch(cmds...)
}

func (m *Model) apply(op chat.Op) {
	switch op.Kind {
	case chat.OpReset:
		m.log = append([]domain.Message(nil), op.Log...)
		m.setInput(op.Enabled)
	case chat.OpAppend:
		m.log = append(m.log, op.Message)
	case chat.OpRemove:
		for i, msg := range m.log {
			if msg.ID == op.ID {
				m.log = append(m.log[:i], m.log[i+1:]...)
				break
			}
		}
	case chat.OpInput:
		m.setInput(op.Enabled)
	}
	m.refresh()
}

func (m *Model) setInput(enabled bool) {
	m.sending = !enabled
	if enabled {
		m.textinput.Focus()
	} else {
		m.textinput.Blur()
	}
}

func (m *Model) refresh() {
	m.viewport.SetContent(m.renderer.RenderLog(m.log))
	m.viewport.GotoBottom()
}

func (m Model) send(text string) tea.Cmd {
	c := m.ctrl
	return func() tea.Msg {
		_, err := c.Send(context.Background(), text)
		return sendDoneMsg{err: err}
	}
}

func (m Model) View() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("HealthGuard AI"))
	b.WriteString("\n")
	b.WriteString(m.viewport.View())
	b.WriteString("\n")

	switch {
	case m.sending:
		b.WriteString(m.spinner.View() + statusStyle.Render(" "+chat.PlaceholderText))
	case m.lastErr != nil:
		b.WriteString(statusStyle.Render(m.lastErr.Error()))
	}
	b.WriteString("\n")
	b.WriteString(m.textinput.View())
	return b.String()
}

// Run attaches a program to c and blocks until the user quits.
func Run(c *chat.Controller, r *render.TerminalRenderer, opts ...tea.ProgramOption) error {
	p := tea.NewProgram(New(c, r), append([]tea.ProgramOption{tea.WithAltScreen()}, opts...)...)

	sink := chat.NewQueueSink(64, func(op chat.Op) error {
		p.Send(OpMsg{Op: op})
		return nil
	}, nil)
	id := c.Attach(sink)
	defer func() {
		c.Detach(id)
		sink.Close()
	}()

	_, err := p.Run()
	return err
}
