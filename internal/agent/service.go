package agent

import (
	"context"
	"time"

	"github.com/ashureev/healthguard/internal/domain"
	"github.com/ashureev/healthguard/internal/metrics"
)

// Service provides agent queries with latency and outcome accounting.
type Service struct {
	querier Querier
}

// NewServiceWithQuerier creates a new agent service over a custom querier.
func NewServiceWithQuerier(querier Querier) *Service {
	return &Service{querier: querier}
}

// Query forwards the request to the underlying querier.
func (s *Service) Query(ctx context.Context, req domain.QueryRequest) (*domain.AgentResponse, error) {
	start := time.Now()
	resp, err := s.querier.Query(ctx, req)
	metrics.AgentQueryDuration.Observe(time.Since(start).Seconds())

	if err != nil {
		metrics.AgentQueries.WithLabelValues(string(domain.OutcomeErrored)).Inc()
		return nil, err
	}
	metrics.AgentQueries.WithLabelValues(string(domain.OutcomeRendered)).Inc()
	return resp, nil
}
