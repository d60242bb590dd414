package purge

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/lamnk/snappurge/internal/snapshot"
)

// Report describes the current snapshot population: one row count per family
// table plus the five-bucket age histogram. Building it never mutates data.
type Report struct {
	GeneratedAt  time.Time
	IntervalDays int
	Tables       []snapshot.TableCount
	Histogram    []snapshot.BucketCount
}

// Report gathers the snapshot table counts and age histogram
func (r *Runner) Report(ctx context.Context, intervalDays int) (*Report, error) {
	if err := r.audit.Recordf("reports requested interval_days=%d dialect=%s",
		intervalDays, r.store.Dialect()); err != nil {
		return nil, err
	}

	r.logger.Info("Building snapshot report",
		slog.Int("interval_days", intervalDays),
	)

	tables, err := r.store.TableCounts(ctx)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	histogram, err := r.store.AgeHistogram(ctx, now, intervalDays)
	if err != nil {
		return nil, err
	}

	return &Report{
		GeneratedAt:  now,
		IntervalDays: intervalDays,
		Tables:       tables,
		Histogram:    histogram,
	}, nil
}

// Render writes the report in a fixed-width operator-friendly layout
func (rep *Report) Render(w io.Writer) {
	fmt.Fprintf(w, "Snapshot table counts (%s):\n", rep.GeneratedAt.Format(time.RFC3339))
	for _, tc := range rep.Tables {
		fmt.Fprintf(w, "  %-28s %12d\n", tc.Table, tc.Rows)
	}

	fmt.Fprintf(w, "\nSnapshot age distribution (interval %d days):\n", rep.IntervalDays)
	for _, bc := range rep.Histogram {
		fmt.Fprintf(w, "  %-16s %12d\n", snapshot.BucketLabel(bc.Bucket, rep.IntervalDays), bc.Rows)
	}
}
