package storage

import (
	"fmt"

	"github.com/lamnk/snappurge/internal/snapshot"
	"github.com/lamnk/snappurge/shared/database"
)

// Dialect supplies the engine-specific SQL behind the purge and reporting
// queries. One implementation is selected at startup and every statement flows
// through it, so the control flow never branches on the engine again.
type Dialect interface {
	Name() string

	// LockServerGroups returns the statement taking an exclusive lock on the
	// group-membership table before a delete batch, or "" when the engine
	// needs none.
	LockServerGroups() string

	// DeleteSnapshotBatch deletes up to ?2 snapshots created before ?1.
	DeleteSnapshotBatch() string

	// CountOlderThan counts snapshots created before ?1.
	CountOlderThan() string

	// AgeHistogram classifies snapshots into the five age buckets using the
	// four boundary timestamps ?1..?4, newest first.
	AgeHistogram() string

	// TableCount counts all rows of one snapshot-family table.
	TableCount(table string) string
}

// ForEngine returns the dialect for a configured database engine.
func ForEngine(engine string) (Dialect, error) {
	switch engine {
	case database.EnginePostgres:
		return postgresDialect{}, nil
	case database.EngineSQLite:
		return sqliteDialect{}, nil
	default:
		return nil, fmt.Errorf("%w: %q", snapshot.ErrUnknownEngine, engine)
	}
}

// Placeholders use ? style; the storage layer rebinds them per engine.
const (
	countOlderThanSQL = `SELECT COUNT(*) FROM snapshot WHERE created < ?`

	deleteSnapshotBatchSQL = `
		DELETE FROM snapshot
		WHERE id IN (
			SELECT id FROM snapshot
			WHERE created < ?
			ORDER BY created
			LIMIT ?
		)`

	ageHistogramSQL = `
		SELECT CASE
			WHEN created >= ? THEN 1
			WHEN created >= ? THEN 2
			WHEN created >= ? THEN 3
			WHEN created >= ? THEN 4
			ELSE 5
		END AS bucket, COUNT(*) AS row_count
		FROM snapshot
		GROUP BY bucket
		ORDER BY bucket`
)

type postgresDialect struct{}

func (postgresDialect) Name() string { return database.EnginePostgres }

func (postgresDialect) LockServerGroups() string {
	return `LOCK TABLE snapshot_server_group IN EXCLUSIVE MODE`
}

func (postgresDialect) DeleteSnapshotBatch() string { return deleteSnapshotBatchSQL }

func (postgresDialect) CountOlderThan() string { return countOlderThanSQL }

func (postgresDialect) AgeHistogram() string { return ageHistogramSQL }

func (postgresDialect) TableCount(table string) string {
	return fmt.Sprintf(`SELECT COUNT(*) FROM %s`, table)
}

type sqliteDialect struct{}

func (sqliteDialect) Name() string { return database.EngineSQLite }

// SQLite has no LOCK TABLE; the deleting write transaction itself serializes
// access to the whole database file.
func (sqliteDialect) LockServerGroups() string { return "" }

func (sqliteDialect) DeleteSnapshotBatch() string { return deleteSnapshotBatchSQL }

func (sqliteDialect) CountOlderThan() string { return countOlderThanSQL }

func (sqliteDialect) AgeHistogram() string { return ageHistogramSQL }

func (sqliteDialect) TableCount(table string) string {
	return fmt.Sprintf(`SELECT COUNT(*) FROM %s`, table)
}
