package core

import (
	"context"
	"log/slog"
	"time"
)

// StartRetentionSweeper re-applies the retention policy immediately and then
// every interval until ctx ends. Ingest already enforces the window; the
// sweep catches a window lowered between restarts and retries raw files
// whose deletion failed. A non-positive interval runs only the first pass.
func (s *Service) StartRetentionSweeper(ctx context.Context, interval time.Duration) {
	slog.Info("retention sweeper started",
		"window", s.policy.Window(),
		"interval", interval.String(),
	)

	s.runSweep(ctx)
	if interval <= 0 {
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("retention sweeper stopped")
			return
		case <-ticker.C:
			s.runSweep(ctx)
		}
	}
}

func (s *Service) runSweep(ctx context.Context) {
	start := time.Now()
	evicted, err := s.EnforceRetention(ctx)
	if err != nil {
		slog.Error("retention sweep failed", "error", err)
		return
	}
	slog.Info("retention sweep completed",
		"evicted", len(evicted),
		"duration_ms", time.Since(start).Milliseconds(),
	)
}
