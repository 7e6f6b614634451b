package usage

import (
	"context"
	"log/slog"
	"time"
)

// CleanupInterval is how often expired usage_logs rows are deleted.
const CleanupInterval = 1 * time.Hour

// RunCleanupLoop runs cleanupFn immediately and then every CleanupInterval,
// until stop is closed.
func RunCleanupLoop(stop <-chan struct{}, cleanupFn func()) {
	ticker := time.NewTicker(CleanupInterval)
	defer ticker.Stop()

	cleanupFn()

	for {
		select {
		case <-ticker.C:
			cleanupFn()
		case <-stop:
			return
		}
	}
}

// retentionCutoff returns the oldest created_at kept for retentionDays.
func retentionCutoff(now time.Time, retentionDays int) time.Time {
	return now.AddDate(0, 0, -retentionDays).UTC()
}

// runCleanup deletes rows older than the retention window with a bounded context.
func runCleanup(retentionDays int, deleteBefore func(ctx context.Context, cutoff time.Time) (int64, error)) {
	if retentionDays <= 0 {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	deleted, err := deleteBefore(ctx, retentionCutoff(time.Now(), retentionDays))
	if err != nil {
		slog.Error("failed to cleanup old usage entries", "error", err)
		return
	}
	if deleted > 0 {
		slog.Info("cleaned up old usage entries", "deleted", deleted)
	}
}
