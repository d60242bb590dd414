// Package purge implements the batch purge job and the read-only reporting
// mode over the snapshot table family.
package purge

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/lamnk/snappurge/internal/audit"
	"github.com/lamnk/snappurge/internal/snapshot"
	"github.com/lamnk/snappurge/internal/snapshot/storage"
)

// Notifier publishes a run summary after a purge completes
type Notifier interface {
	Publish(ctx context.Context, body []byte) error
}

// Config holds runner dependencies
type Config struct {
	Logger   *slog.Logger
	Storage  *storage.Storage
	Audit    *audit.Logger
	Notifier Notifier // optional
}

// Runner executes purge and report operations against one database
type Runner struct {
	logger   *slog.Logger
	store    *storage.Storage
	audit    *audit.Logger
	notifier Notifier
}

// NewRunner creates a new runner instance
func NewRunner(cfg *Config) *Runner {
	return &Runner{
		logger:   cfg.Logger,
		store:    cfg.Storage,
		audit:    cfg.Audit,
		notifier: cfg.Notifier,
	}
}

// RunStats describes one completed purge run
type RunStats struct {
	RunID         string  `json:"run_id"`
	RetentionDays int     `json:"retention_days"`
	BatchSize     int     `json:"batch_size"`
	Batches       int     `json:"batches"`
	BatchRows     []int64 `json:"batch_rows"`
	RowsDeleted   int64   `json:"rows_deleted"`
}

// Purge deletes snapshots older than retentionDays in batches of at most
// batchSize rows, one committed transaction per batch, until no qualifying
// rows remain. Committed batches survive a mid-run failure; re-running with
// the same threshold resumes from the remaining count.
func (r *Runner) Purge(ctx context.Context, retentionDays, batchSize int) (*RunStats, error) {
	if batchSize <= 0 {
		return nil, fmt.Errorf("%w: got %d", snapshot.ErrInvalidBatchSize, batchSize)
	}
	if retentionDays < 0 {
		return nil, fmt.Errorf("%w: got %d", snapshot.ErrInvalidRetention, retentionDays)
	}

	cutoff := snapshot.Cutoff(time.Now().UTC(), retentionDays)

	if err := r.audit.Recordf("purge started retention_days=%d batch_size=%d dialect=%s",
		retentionDays, batchSize, r.store.Dialect()); err != nil {
		return nil, err
	}

	r.logger.Info("Starting snapshot purge",
		slog.Int("retention_days", retentionDays),
		slog.Int("batch_size", batchSize),
		slog.Time("cutoff", cutoff),
	)

	stats := &RunStats{
		RunID:         r.audit.RunID(),
		RetentionDays: retentionDays,
		BatchSize:     batchSize,
	}

	remaining, err := r.store.CountOlderThan(ctx, cutoff)
	if err != nil {
		return nil, err
	}

	for remaining > 0 {
		deleted, err := r.store.DeleteBatch(ctx, cutoff, batchSize)
		if err != nil {
			// Already-committed batches stay committed; re-running resumes.
			_ = r.audit.Recordf("purge aborted after %d batches: %v", stats.Batches, err)
			return nil, err
		}

		if deleted == 0 {
			break
		}

		stats.Batches++
		stats.BatchRows = append(stats.BatchRows, deleted)
		stats.RowsDeleted += deleted

		r.logger.Info("Snapshot batch committed",
			slog.Int("batch", stats.Batches),
			slog.Int64("rows", deleted),
		)

		remaining, err = r.store.CountOlderThan(ctx, cutoff)
		if err != nil {
			_ = r.audit.Recordf("purge aborted after %d batches: %v", stats.Batches, err)
			return nil, err
		}
	}

	if err := r.audit.Recordf("purge finished rows_deleted=%d batches=%d",
		stats.RowsDeleted, stats.Batches); err != nil {
		return nil, err
	}

	r.logger.Info("Snapshot purge complete",
		slog.Int64("rows_deleted", stats.RowsDeleted),
		slog.Int("batches", stats.Batches),
	)

	r.notify(ctx, stats)

	return stats, nil
}

// notify publishes the run summary when a notifier is configured. Notification
// failures never fail the purge itself.
func (r *Runner) notify(ctx context.Context, stats *RunStats) {
	if r.notifier == nil {
		return
	}

	body, err := json.Marshal(stats)
	if err != nil {
		r.logger.Warn("Failed to marshal run summary",
			slog.Any("error", err),
		)
		return
	}

	if err := r.notifier.Publish(ctx, body); err != nil {
		r.logger.Warn("Failed to publish run summary",
			slog.Any("error", err),
		)
	}
}
