package render

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"

	"github.com/ashureev/healthguard/internal/domain"
)

var (
	badgeBase = lipgloss.NewStyle().Bold(true).Padding(0, 1)

	badgeStyles = map[Tone]lipgloss.Style{
		ToneTrue:    badgeBase.Foreground(lipgloss.Color("#0B3D0B")).Background(lipgloss.Color("#7EE787")),
		ToneFalse:   badgeBase.Foreground(lipgloss.Color("#FFFFFF")).Background(lipgloss.Color("#D1242F")),
		ToneNeutral: badgeBase.Foreground(lipgloss.Color("#1F2328")).Background(lipgloss.Color("#D0D7DE")),
	}

	evidenceColors = map[string]lipgloss.Color{
		"fact":    lipgloss.Color("#2DA44E"),
		"misinfo": lipgloss.Color("#CF222E"),
		"image":   lipgloss.Color("#8250DF"),
		"neutral": lipgloss.Color("#6E7781"),
	}

	userStyle        = lipgloss.NewStyle().Foreground(lipgloss.Color("#0969DA")).Bold(true)
	placeholderStyle = lipgloss.NewStyle().Italic(true).Foreground(lipgloss.Color("#6E7781"))
	headingStyle     = lipgloss.NewStyle().Bold(true).Underline(true)
	cardStyle        = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
)

// TerminalRenderer renders messages for a terminal of a given width.
type TerminalRenderer struct {
	width int
	md    *glamour.TermRenderer
}

// NewTerminalRenderer creates a renderer. Plain mode uses the no-TTY markdown
// style so the output stays readable when piped.
func NewTerminalRenderer(width int, plain bool) *TerminalRenderer {
	if width < 20 {
		width = 80
	}
	style := glamour.WithAutoStyle()
	if plain {
		style = glamour.WithStandardStyle("notty")
	}
	md, err := glamour.NewTermRenderer(style, glamour.WithWordWrap(width-4))
	if err != nil {
		md = nil
	}
	return &TerminalRenderer{width: width, md: md}
}

// Width returns the wrap width.
func (r *TerminalRenderer) Width() int {
	return r.width
}

// Render formats one message.
func (r *TerminalRenderer) Render(msg domain.Message) string {
	switch msg.Role {
	case domain.RoleUser:
		return userStyle.Render("You: ") + msg.Text
	case domain.RolePlaceholder:
		return placeholderStyle.Render(msg.Text)
	}

	if msg.Data == nil {
		return cardStyle.Width(r.width - 2).Render(msg.Text)
	}
	return r.card(NewCard(msg.Text, msg.Data))
}

// RenderLog formats messages separated by blank lines.
func (r *TerminalRenderer) RenderLog(msgs []domain.Message) string {
	parts := make([]string, 0, len(msgs))
	for _, m := range msgs {
		parts = append(parts, r.Render(m))
	}
	return strings.Join(parts, "\n\n")
}

func (r *TerminalRenderer) card(c Card) string {
	var b strings.Builder
	b.WriteString(badgeStyles[c.Tone].Render("✓ " + c.Badge))
	b.WriteString("\n\n")
	b.WriteString(headingStyle.Render("Analysis:"))
	b.WriteString(" ")
	b.WriteString(c.Reasoning)
	b.WriteString("\n\n")
	b.WriteString(r.markdown(c.Answer))

	if len(c.Evidence) > 0 {
		b.WriteString("\n\n")
		b.WriteString(headingStyle.Render("Retrieval Evidence"))
		for _, ev := range c.Evidence {
			kind := ev.Type
			if kind == "" {
				kind = ev.Class
			}
			line := fmt.Sprintf("%s [%s] %3d%%  %s", ev.Glyph, kind, ev.Score, ev.Text)
			b.WriteString("\n")
			b.WriteString(lipgloss.NewStyle().Foreground(evidenceColors[ev.Class]).Render(line))
		}
	}

	if len(c.Recommendations) > 0 {
		b.WriteString("\n\n")
		b.WriteString(headingStyle.Render("Next Steps"))
		for _, rec := range c.Recommendations {
			b.WriteString("\n  • ")
			b.WriteString(rec)
		}
	}

	return cardStyle.Width(r.width - 2).Render(b.String())
}

func (r *TerminalRenderer) markdown(s string) string {
	if r.md == nil || strings.TrimSpace(s) == "" {
		return s
	}
	out, err := r.md.Render(s)
	if err != nil {
		return s
	}
	return strings.Trim(out, "\n")
}
