package storage

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/lamnk/snappurge/internal/snapshot"
	"github.com/lamnk/snappurge/shared/database"
)

// Storage handles all database operations on the snapshot table family
type Storage struct {
	client  *database.Client
	dialect Dialect
	logger  *slog.Logger
}

// New creates a Storage instance with the dialect matching the client's engine
func New(client *database.Client, logger *slog.Logger) (*Storage, error) {
	dialect, err := ForEngine(client.Engine())
	if err != nil {
		return nil, err
	}

	return &Storage{
		client:  client,
		dialect: dialect,
		logger:  logger,
	}, nil
}

// Dialect returns the name of the active SQL dialect
func (s *Storage) Dialect() string {
	return s.dialect.Name()
}

// CountOlderThan returns the number of snapshots created before cutoff
func (s *Storage) CountOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	var count int64
	query := s.client.Rebind(s.dialect.CountOlderThan())

	if err := s.client.GetContext(ctx, &count, query, cutoff); err != nil {
		return 0, fmt.Errorf("failed to count qualifying snapshots: %w", err)
	}

	return count, nil
}

// DeleteBatch removes at most batchSize snapshots created before cutoff inside
// one committed transaction. The group-membership table is locked exclusively
// first so structural changes never interleave with the delete. Returns the
// number of rows removed from the parent table; children cascade.
func (s *Storage) DeleteBatch(ctx context.Context, cutoff time.Time, batchSize int) (int64, error) {
	tx, err := s.client.BeginTx(ctx)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	if lock := s.dialect.LockServerGroups(); lock != "" {
		if _, err := tx.ExecContext(ctx, lock); err != nil {
			return 0, fmt.Errorf("failed to lock %s: %w", snapshot.TableServerGroup, err)
		}
	}

	query := s.client.Rebind(s.dialect.DeleteSnapshotBatch())
	res, err := tx.ExecContext(ctx, query, cutoff, batchSize)
	if err != nil {
		return 0, fmt.Errorf("failed to delete snapshot batch: %w", err)
	}

	deleted, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit snapshot batch: %w", err)
	}

	s.logger.Debug("Snapshot batch deleted",
		slog.Int64("rows", deleted),
		slog.Time("cutoff", cutoff),
	)

	return deleted, nil
}

// TableCounts returns the current row count of every table in the snapshot family
func (s *Storage) TableCounts(ctx context.Context) ([]snapshot.TableCount, error) {
	counts := make([]snapshot.TableCount, 0, len(snapshot.FamilyTables))

	for _, table := range snapshot.FamilyTables {
		var count int64
		if err := s.client.GetContext(ctx, &count, s.dialect.TableCount(table)); err != nil {
			return nil, fmt.Errorf("failed to count %s: %w", table, err)
		}
		counts = append(counts, snapshot.TableCount{Table: table, Rows: count})
	}

	return counts, nil
}

// AgeHistogram buckets all snapshots by age relative to now. The result always
// holds all five buckets in order; empty buckets report zero rows.
func (s *Storage) AgeHistogram(ctx context.Context, now time.Time, intervalDays int) ([]snapshot.BucketCount, error) {
	bounds := snapshot.BucketBoundaries(now, intervalDays)
	query := s.client.Rebind(s.dialect.AgeHistogram())

	var rows []snapshot.BucketCount
	if err := s.client.SelectContext(ctx, &rows, query, bounds[0], bounds[1], bounds[2], bounds[3]); err != nil {
		return nil, fmt.Errorf("failed to build age histogram: %w", err)
	}

	histogram := make([]snapshot.BucketCount, snapshot.NumBuckets)
	for i := range histogram {
		histogram[i].Bucket = i + 1
	}
	for _, row := range rows {
		if row.Bucket >= 1 && row.Bucket <= snapshot.NumBuckets {
			histogram[row.Bucket-1].Rows = row.Rows
		}
	}

	return histogram, nil
}
