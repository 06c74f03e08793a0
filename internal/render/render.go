// Package render turns chat messages into escaped HTML fragments for the web
// page and styled text for the terminal client.
package render

import (
	"math"
	"strings"

	"github.com/ashureev/healthguard/internal/domain"
)

// EvidenceMaxRunes is how much of an evidence snippet is shown.
const EvidenceMaxRunes = 80

// Tone is the visual category of a verdict badge.
type Tone int

const (
	ToneNeutral Tone = iota
	ToneTrue
	ToneFalse
)

// Class returns the CSS class of the badge.
func (t Tone) Class() string {
	switch t {
	case ToneTrue:
		return "v-true"
	case ToneFalse:
		return "v-false"
	default:
		return "v-neutral"
	}
}

// VerdictTone matches the verdict exactly against the "True" and "False"
// sentinels. Every other value, including other casings, is neutral.
func VerdictTone(verdict string) Tone {
	switch verdict {
	case domain.VerdictTrue:
		return ToneTrue
	case domain.VerdictFalse:
		return ToneFalse
	default:
		return ToneNeutral
	}
}

// EvidenceStyle is the class, material icon and terminal glyph of an evidence row.
type EvidenceStyle struct {
	Class string
	Icon  string
	Glyph string
}

// StyleForEvidence selects the row style from the evidence type.
func StyleForEvidence(kind string) EvidenceStyle {
	switch kind {
	case domain.EvidenceFact:
		return EvidenceStyle{Class: "fact", Icon: "verified", Glyph: "✔"}
	case domain.EvidenceMisinformation:
		return EvidenceStyle{Class: "misinfo", Icon: "warning", Glyph: "⚠"}
	case domain.EvidenceImage:
		return EvidenceStyle{Class: "image", Icon: "image", Glyph: "▣"}
	default:
		return EvidenceStyle{Class: "neutral", Icon: "help_outline", Glyph: "?"}
	}
}

// Truncate keeps the first max runes of s and marks the cut with an ellipsis.
func Truncate(s string, max int) string {
	if max <= 0 {
		return ""
	}
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max]) + "…"
}

// ScorePercent renders a 0..1 relevance score as a rounded percentage.
func ScorePercent(score float64) int {
	return int(math.Round(score * 100))
}

// BadgeLabel is the text shown inside the verdict badge.
func BadgeLabel(verdict string) string {
	return strings.ToUpper(verdict)
}

// EvidenceRow is the display form of one evidence item.
type EvidenceRow struct {
	EvidenceStyle
	Type  string
	Text  string
	Score int
}

// Card is the display form of a structured agent answer.
type Card struct {
	Tone            Tone
	Badge           string
	Reasoning       string
	Answer          string
	Evidence        []EvidenceRow
	Recommendations []string
}

// VerdictClass is a template convenience for Tone.Class.
func (c Card) VerdictClass() string {
	return c.Tone.Class()
}

// NewCard builds the card for an agent response. Missing optional fields
// produce empty sections rather than errors.
func NewCard(answer string, resp *domain.AgentResponse) Card {
	card := Card{
		Tone:      VerdictTone(resp.Verdict),
		Badge:     BadgeLabel(resp.Verdict),
		Reasoning: resp.ReasoningTrace,
		Answer:    answer,
	}
	if resp.HasEvidence() {
		card.Evidence = make([]EvidenceRow, 0, len(resp.Evidence))
		for _, ev := range resp.Evidence {
			card.Evidence = append(card.Evidence, EvidenceRow{
				EvidenceStyle: StyleForEvidence(ev.Type),
				Type:          ev.Type,
				Text:          Truncate(ev.Content, EvidenceMaxRunes),
				Score:         ScorePercent(ev.Score),
			})
		}
	}
	if resp.HasRecommendations() {
		card.Recommendations = append([]string(nil), resp.Recommendations...)
	}
	return card
}
