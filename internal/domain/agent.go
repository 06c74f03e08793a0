// Package domain contains core domain types for the HealthGuard chat front end.
package domain

// Verdicts that get a colored badge. Every other value is rendered neutral.
const (
	VerdictTrue  = "True"
	VerdictFalse = "False"
)

// Evidence types the backend classifies retrieved snippets into.
const (
	EvidenceFact           = "fact"
	EvidenceMisinformation = "misinformation"
	EvidenceImage          = "image"
)

// QueryRequest is the body POSTed to the agent's /agent/query endpoint.
type QueryRequest struct {
	UserID    string `json:"user_id"`
	SessionID string `json:"session_id"`
	Query     string `json:"query"`
}

// AgentResponse is the structured answer returned by the agent.
type AgentResponse struct {
	FinalAnswer     string         `json:"final_answer"`
	Verdict         string         `json:"verdict"`
	ReasoningTrace  string         `json:"reasoning_trace"`
	Evidence        []EvidenceItem `json:"evidence,omitempty"`
	Recommendations []string       `json:"recommendations,omitempty"`
	MemoryActions   []string       `json:"memory_actions,omitempty"`
}

// EvidenceItem is one retrieved snippet supporting or contradicting a claim.
type EvidenceItem struct {
	ID               string         `json:"id,omitempty"`
	Type             string         `json:"type"`
	Content          string         `json:"content"`
	Score            float64        `json:"score"`
	SourceCollection string         `json:"source_collection,omitempty"`
	Metadata         map[string]any `json:"metadata,omitempty"`
}

// HasEvidence reports whether the response carries any evidence rows.
func (r *AgentResponse) HasEvidence() bool {
	return r != nil && len(r.Evidence) > 0
}

// HasRecommendations reports whether the response carries any recommendations.
func (r *AgentResponse) HasRecommendations() bool {
	return r != nil && len(r.Recommendations) > 0
}
