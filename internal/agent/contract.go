package agent

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// responseSchema is the agent response contract. Missing or mistyped core
// fields make the response unusable. Values outside the documented enums or
// score range are tolerated and reported.
const responseSchema = `{
  "type": "object",
  "required": ["final_answer", "verdict"],
  "properties": {
    "final_answer": {"type": "string"},
    "verdict": {
      "type": "string",
      "enum": ["True", "False", "Misleading", "Insufficient Evidence"]
    },
    "reasoning_trace": {"type": ["string", "null"]},
    "evidence": {
      "type": ["array", "null"],
      "items": {
        "type": "object",
        "required": ["content"],
        "properties": {
          "type": {"type": "string", "enum": ["fact", "misinformation", "image"]},
          "content": {"type": "string"},
          "score": {"type": "number", "minimum": 0, "maximum": 1}
        }
      }
    },
    "recommendations": {"type": ["array", "null"], "items": {"type": "string"}},
    "memory_actions": {"type": ["array", "null"], "items": {"type": "string"}}
  }
}`

// softKinds are gojsonschema error types that do not invalidate a response.
var softKinds = map[string]bool{
	"enum":       true,
	"number_gte": true,
	"number_lte": true,
}

// Violation is one deviation of a response from the contract.
type Violation struct {
	Field       string
	Kind        string
	Description string
	Fatal       bool
}

// Label collapses array indices so the field can be used as a metric label,
// e.g. "evidence.3.type" becomes "evidence.type".
func (v Violation) Label() string {
	parts := strings.Split(v.Field, ".")
	kept := parts[:0]
	for _, p := range parts {
		if _, err := strconv.Atoi(p); err == nil {
			continue
		}
		kept = append(kept, p)
	}
	return strings.Join(kept, ".")
}

// Contract validates raw agent responses.
type Contract struct {
	schema *gojsonschema.Schema
}

// NewContract compiles the response schema.
func NewContract() (*Contract, error) {
	schema, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(responseSchema))
	if err != nil {
		return nil, fmt.Errorf("compile response schema: %w", err)
	}
	return &Contract{schema: schema}, nil
}

// Check validates raw and returns every violation found. The error is non-nil
// only when raw is not JSON at all.
func (c *Contract) Check(raw []byte) ([]Violation, error) {
	result, err := c.schema.Validate(gojsonschema.NewBytesLoader(raw))
	if err != nil {
		return nil, fmt.Errorf("malformed response body: %w", err)
	}
	if result.Valid() {
		return nil, nil
	}

	violations := make([]Violation, 0, len(result.Errors()))
	for _, desc := range result.Errors() {
		violations = append(violations, Violation{
			Field:       desc.Field(),
			Kind:        desc.Type(),
			Description: desc.Description(),
			Fatal:       !softKinds[desc.Type()],
		})
	}
	return violations, nil
}

// Fatal reports whether any violation makes the response unusable.
func Fatal(violations []Violation) bool {
	for _, v := range violations {
		if v.Fatal {
			return true
		}
	}
	return false
}
