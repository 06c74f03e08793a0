// Package agent talks to the external fact-checking agent service.
package agent

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/ashureev/healthguard/internal/domain"
	"github.com/ashureev/healthguard/internal/metrics"
)

// ErrQueryFailed covers every way a query can fail: unreachable backend,
// non-2xx status, or a body that is not a usable agent response.
var ErrQueryFailed = errors.New("agent query failed")

const (
	queryPath       = "/agent/query"
	docsPath        = "/docs"
	maxResponseSize = 8 << 20
)

// HTTPClient queries the agent over its JSON HTTP API.
type HTTPClient struct {
	baseURL  string
	client   *http.Client
	contract *Contract
	logger   *slog.Logger
}

// HTTPClientConfig holds configuration for the HTTP client.
type HTTPClientConfig struct {
	BaseURL string
	Timeout time.Duration // 0 = no timeout
}

// NewHTTPClient creates a client for the agent at cfg.BaseURL.
func NewHTTPClient(cfg HTTPClientConfig, logger *slog.Logger) (*HTTPClient, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if strings.TrimSpace(cfg.BaseURL) == "" {
		return nil, fmt.Errorf("agent base url is required")
	}

	contract, err := NewContract()
	if err != nil {
		return nil, fmt.Errorf("load agent response contract: %w", err)
	}

	return &HTTPClient{
		baseURL:  strings.TrimRight(cfg.BaseURL, "/"),
		client:   &http.Client{Timeout: cfg.Timeout},
		contract: contract,
		logger:   logger,
	}, nil
}

// BaseURL returns the agent endpoint root.
func (c *HTTPClient) BaseURL() string {
	return c.baseURL
}

// Query POSTs the claim to /agent/query.
func (c *HTTPClient) Query(ctx context.Context, req domain.QueryRequest) (*domain.AgentResponse, error) {
	raw, err := c.post(ctx, req)
	if err != nil {
		return nil, err
	}
	return c.decode(raw, req)
}

// Inspect sends one query and returns every contract violation of the answer
// alongside the decoded response. The response is nil when a violation is fatal.
func (c *HTTPClient) Inspect(ctx context.Context, req domain.QueryRequest) (*domain.AgentResponse, []Violation, error) {
	raw, err := c.post(ctx, req)
	if err != nil {
		return nil, nil, err
	}
	violations, err := c.contract.Check(raw)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %w", ErrQueryFailed, err)
	}
	if Fatal(violations) {
		return nil, violations, nil
	}
	var out domain.AgentResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, violations, fmt.Errorf("%w: decode response: %w", ErrQueryFailed, err)
	}
	return &out, violations, nil
}

func (c *HTTPClient) post(ctx context.Context, req domain.QueryRequest) ([]byte, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("%w: encode request: %v", ErrQueryFailed, err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+queryPath, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%w: build request: %v", ErrQueryFailed, err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrQueryFailed, err)
	}
	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil {
			c.logger.Debug("failed to close agent response body", "error", closeErr)
		}
	}()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, fmt.Errorf("%w: read response: %w", ErrQueryFailed, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("%w: status %d: %s", ErrQueryFailed, resp.StatusCode, snippet(raw))
	}
	return raw, nil
}

func (c *HTTPClient) decode(raw []byte, req domain.QueryRequest) (*domain.AgentResponse, error) {
	violations, err := c.contract.Check(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrQueryFailed, err)
	}

	for _, v := range violations {
		if v.Fatal {
			return nil, fmt.Errorf("%w: response violates contract at %s: %s", ErrQueryFailed, v.Field, v.Description)
		}
	}
	for _, v := range violations {
		metrics.ContractViolations.WithLabelValues(v.Label()).Inc()
		c.logger.Warn("Agent response outside contract",
			"user_id", req.UserID,
			"session_id", req.SessionID,
			"field", v.Field,
			"kind", v.Kind,
			"detail", v.Description,
		)
	}

	var out domain.AgentResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("%w: decode response: %w", ErrQueryFailed, err)
	}
	return &out, nil
}

// Ping checks that the agent answers HTTP at all.
func (c *HTTPClient) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+docsPath, nil)
	if err != nil {
		return fmt.Errorf("build ping request: %w", err)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("agent unreachable at %s: %w", c.baseURL, err)
	}
	_ = resp.Body.Close()
	if resp.StatusCode >= 500 {
		return fmt.Errorf("agent at %s answered status %d", c.baseURL, resp.StatusCode)
	}
	return nil
}

func snippet(raw []byte) string {
	s := strings.TrimSpace(string(raw))
	if len(s) > 200 {
		s = s[:200] + "..."
	}
	return s
}
