package chat

import (
	"context"
	"log/slog"
	"time"
)

// exchangeRetention is how long audit records outlive their session.
const exchangeRetention = 7 * 24 * time.Hour

// Cleaner prunes old exchange records.
type Cleaner interface {
	CleanupExpired(ctx context.Context, ttl time.Duration) (int64, error)
}

// RunSweeper periodically drops abandoned sessions from the hub and prunes
// old exchange records. It blocks until ctx is done.
func RunSweeper(ctx context.Context, hub *Hub, cleaner Cleaner, interval, ttl time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	slog.Info("Session sweeper started", "interval", interval, "ttl", ttl)

	for {
		select {
		case now := <-ticker.C:
			sweepOnce(ctx, hub, cleaner, now, ttl)
		case <-ctx.Done():
			slog.Info("Session sweeper shutting down", "reason", ctx.Err())
			return nil
		}
	}
}

func sweepOnce(ctx context.Context, hub *Hub, cleaner Cleaner, now time.Time, ttl time.Duration) {
	if removed := hub.Sweep(now, ttl); len(removed) > 0 {
		slog.Info("Session sweeper removed idle sessions", "count", len(removed), "remaining", hub.Len())
	}

	if cleaner == nil {
		return
	}
	if deleted, err := cleaner.CleanupExpired(ctx, exchangeRetention); err != nil {
		slog.Error("Session sweeper failed to prune exchanges", "error", err)
	} else if deleted > 0 {
		slog.Info("Session sweeper pruned exchanges", "count", deleted)
	}
}
