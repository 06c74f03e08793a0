package agent

import (
	"context"

	"github.com/ashureev/healthguard/internal/domain"
)

// Querier sends one claim to the agent backend and returns its structured answer.
// This interface is implemented by the HTTP client.
type Querier interface {
	// Query issues a single request. Any transport or parse failure is
	// returned as an error wrapping ErrQueryFailed.
	Query(ctx context.Context, req domain.QueryRequest) (*domain.AgentResponse, error)
}

// Ensure HTTPClient implements Querier.
var _ Querier = (*HTTPClient)(nil)
