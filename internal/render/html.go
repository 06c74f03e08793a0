package render

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"strings"

	"github.com/ashureev/healthguard/internal/domain"
)

//go:embed templates/*.gohtml
var templateFS embed.FS

var htmlTemplates = template.Must(
	template.New("render").
		Funcs(template.FuncMap{"lines": Lines}).
		ParseFS(templateFS, "templates/*.gohtml"),
)

// Lines escapes s and turns newlines into line breaks.
func Lines(s string) template.HTML {
	escaped := template.HTMLEscapeString(s)
	escaped = strings.ReplaceAll(escaped, "\r\n", "\n")
	return template.HTML(strings.ReplaceAll(escaped, "\n", "<br>")) //nolint:gosec // input escaped above
}

type messageView struct {
	ID          string
	RoleClass   string
	Text        string
	Placeholder bool
	Agent       bool
	Card        *Card
}

func newMessageView(msg domain.Message) messageView {
	v := messageView{
		ID:        msg.ID,
		RoleClass: string(msg.Role),
		Text:      msg.Text,
	}
	if msg.IsPlaceholder() {
		v.Placeholder = true
		v.RoleClass = string(domain.RoleAgent)
		return v
	}
	if msg.Role == domain.RoleAgent {
		v.Agent = true
		if msg.Data != nil {
			card := NewCard(msg.Text, msg.Data)
			v.Card = &card
		}
	}
	return v
}

// HTML renders one message as a log node. All response fields are escaped.
func HTML(msg domain.Message) (template.HTML, error) {
	var buf bytes.Buffer
	if err := htmlTemplates.ExecuteTemplate(&buf, "message", newMessageView(msg)); err != nil {
		return "", fmt.Errorf("render message %s: %w", msg.ID, err)
	}
	return template.HTML(buf.String()), nil //nolint:gosec // produced by html/template
}

// HTMLLog renders a sequence of messages in order.
func HTMLLog(msgs []domain.Message) (template.HTML, error) {
	var b strings.Builder
	for _, m := range msgs {
		node, err := HTML(m)
		if err != nil {
			return "", err
		}
		b.WriteString(string(node))
	}
	return template.HTML(b.String()), nil //nolint:gosec // concatenation of rendered nodes
}
