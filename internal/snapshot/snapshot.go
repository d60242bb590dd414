package snapshot

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrInvalidBatchSize is returned when a purge is requested with a batch size <= 0
	ErrInvalidBatchSize = errors.New("batch size must be a positive integer")

	// ErrInvalidRetention is returned when the retention threshold is negative
	ErrInvalidRetention = errors.New("retention threshold must be zero or more days")

	// ErrUnknownEngine is returned when the configured database engine is not supported
	ErrUnknownEngine = errors.New("unknown database engine")
)

// Snapshot represents one stored system-state record subject to the retention policy.
type Snapshot struct {
	ID       int64     `db:"id"`
	ServerID int64     `db:"server_id"`
	Reason   string    `db:"reason"`
	Created  time.Time `db:"created"`
}

// TableSnapshot is the parent table of the snapshot family. Child tables
// reference it with ON DELETE CASCADE, so the purge only ever deletes from here.
const TableSnapshot = "snapshot"

// TableServerGroup is the group-membership table locked exclusively before each
// delete batch so concurrent structural changes never observe a half-purged state.
const TableServerGroup = "snapshot_server_group"

// FamilyTables lists every table in the snapshot family, children first,
// parent last. Reporting iterates this list for per-table row counts.
var FamilyTables = []string{
	"snapshot_channel",
	"snapshot_config_revision",
	"snapshot_package",
	TableServerGroup,
	"snapshot_tag",
	TableSnapshot,
}

// BucketCount is one row of the age histogram.
type BucketCount struct {
	Bucket int   `db:"bucket"`
	Rows   int64 `db:"row_count"`
}

// TableCount is one row of the per-table count listing.
type TableCount struct {
	Table string
	Rows  int64
}

// NumBuckets is the fixed number of age buckets in the report histogram:
// four finite ranges of one interval each and an open-ended fifth.
const NumBuckets = 5

// BucketLabel renders the display label for a bucket given the reporting
// interval in days, e.g. "1 - 90 days" for bucket 1 or "> 360 days" for bucket 5.
func BucketLabel(bucket, intervalDays int) string {
	if bucket >= NumBuckets {
		return fmt.Sprintf("> %d days", (NumBuckets-1)*intervalDays)
	}
	return fmt.Sprintf("%d - %d days", (bucket-1)*intervalDays+1, bucket*intervalDays)
}

// BucketBoundaries returns the four cutoff timestamps separating the five
// buckets, newest first: rows created at or after boundary[0] fall in bucket 1,
// rows older than boundary[3] fall in bucket 5.
func BucketBoundaries(now time.Time, intervalDays int) [NumBuckets - 1]time.Time {
	var bounds [NumBuckets - 1]time.Time
	for i := range bounds {
		bounds[i] = now.AddDate(0, 0, -intervalDays*(i+1))
	}
	return bounds
}

// Cutoff converts a retention threshold in days to the absolute timestamp
// before which rows qualify for deletion.
func Cutoff(now time.Time, numDays int) time.Time {
	return now.AddDate(0, 0, -numDays)
}
