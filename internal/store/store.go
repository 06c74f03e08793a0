// Package store provides data persistence interfaces and implementations.
package store

import (
	"context"
	"time"

	"github.com/ashureev/healthguard/internal/domain"
)

// Repository defines the interface for the exchange audit trail.
type Repository interface {
	// RecordExchange appends one completed query. ID and CreatedAt are set on success.
	RecordExchange(ctx context.Context, ex *domain.Exchange) error

	// ListExchanges returns the most recent exchanges of a session, newest first.
	ListExchanges(ctx context.Context, sessionID string, limit int) ([]*domain.Exchange, error)

	// CleanupExpired removes exchanges older than ttl.
	CleanupExpired(ctx context.Context, ttl time.Duration) (int64, error)

	// Ping verifies database connectivity and returns an error if the database is unreachable.
	Ping(ctx context.Context) error

	// Close closes the database connection.
	Close() error
}

// Nop discards every exchange. It backs the server when the exchange log is disabled.
type Nop struct{}

func (Nop) RecordExchange(context.Context, *domain.Exchange) error { return nil }
func (Nop) ListExchanges(context.Context, string, int) ([]*domain.Exchange, error) {
	return nil, nil
}
func (Nop) CleanupExpired(context.Context, time.Duration) (int64, error) { return 0, nil }
func (Nop) Ping(context.Context) error                                   { return nil }
func (Nop) Close() error                                                 { return nil }

var _ Repository = Nop{}
