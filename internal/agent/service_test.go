package agent

import (
	"context"
	"errors"
	"testing"

	"github.com/ashureev/healthguard/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubQuerier struct {
	resp *domain.AgentResponse
	err  error
	got  domain.QueryRequest
}

func (s *stubQuerier) Query(_ context.Context, req domain.QueryRequest) (*domain.AgentResponse, error) {
	s.got = req
	return s.resp, s.err
}

func TestServiceQuery(t *testing.T) {
	stub := &stubQuerier{resp: &domain.AgentResponse{FinalAnswer: "ok", Verdict: domain.VerdictTrue}}
	svc := NewServiceWithQuerier(stub)

	resp, err := svc.Query(context.Background(), domain.QueryRequest{Query: "is water wet?"})
	require.NoError(t, err)
	assert.Equal(t, "ok", resp.FinalAnswer)
	assert.Equal(t, "is water wet?", stub.got.Query)

	stub.err = errors.Join(ErrQueryFailed, errors.New("down"))
	_, err = svc.Query(context.Background(), domain.QueryRequest{Query: "again"})
	assert.ErrorIs(t, err, ErrQueryFailed)
}
