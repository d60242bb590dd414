package purge

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lamnk/snappurge/internal/audit"
	"github.com/lamnk/snappurge/internal/snapshot"
	"github.com/lamnk/snappurge/internal/snapshot/storage"
	"github.com/lamnk/snappurge/shared/database"
)

type fakeNotifier struct {
	published [][]byte
	err       error
}

func (f *fakeNotifier) Publish(_ context.Context, body []byte) error {
	if f.err != nil {
		return f.err
	}
	f.published = append(f.published, body)
	return nil
}

type testEnv struct {
	runner   *Runner
	store    *storage.Storage
	client   *database.Client
	notifier *fakeNotifier
	auditLog string
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	client, err := database.NewClient(&database.Config{
		Engine: database.EngineSQLite,
		File:   ":memory:",
	}, logger)
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })

	require.NoError(t, client.ApplySchema())

	store, err := storage.New(client, logger)
	require.NoError(t, err)

	auditPath := filepath.Join(t.TempDir(), "audit.log")
	auditLog, err := audit.Open(auditPath, "unknown")
	require.NoError(t, err)
	t.Cleanup(func() { auditLog.Close() })

	notifier := &fakeNotifier{}

	runner := NewRunner(&Config{
		Logger:   logger,
		Storage:  store,
		Audit:    auditLog,
		Notifier: notifier,
	})

	return &testEnv{
		runner:   runner,
		store:    store,
		client:   client,
		notifier: notifier,
		auditLog: auditPath,
	}
}

func (e *testEnv) insertSnapshots(t *testing.T, n int, ageDays int) {
	t.Helper()

	created := time.Now().UTC().AddDate(0, 0, -ageDays)
	for i := 0; i < n; i++ {
		_, err := e.client.GetDB().Exec(
			`INSERT INTO snapshot (server_id, reason, created) VALUES (?, ?, ?)`,
			1000+i, "test snapshot", created,
		)
		require.NoError(t, err)
	}
}

func (e *testEnv) countOlderThan(t *testing.T, days int) int64 {
	t.Helper()

	count, err := e.store.CountOlderThan(context.Background(), snapshot.Cutoff(time.Now().UTC(), days))
	require.NoError(t, err)
	return count
}

func TestPurge_RemovesAllQualifyingRows(t *testing.T) {
	env := newTestEnv(t)
	env.insertSnapshots(t, 25, 60) // qualifying
	env.insertSnapshots(t, 5, 10)  // kept

	stats, err := env.runner.Purge(context.Background(), 30, 10)
	require.NoError(t, err)

	assert.Equal(t, 3, stats.Batches)
	assert.Equal(t, []int64{10, 10, 5}, stats.BatchRows)
	assert.Equal(t, int64(25), stats.RowsDeleted)

	assert.Zero(t, env.countOlderThan(t, 30))

	var total int64
	require.NoError(t, env.client.GetDB().Get(&total, `SELECT COUNT(*) FROM snapshot`))
	assert.Equal(t, int64(5), total)
}

func TestPurge_Idempotent(t *testing.T) {
	env := newTestEnv(t)
	env.insertSnapshots(t, 12, 100)

	first, err := env.runner.Purge(context.Background(), 30, 5)
	require.NoError(t, err)
	assert.Equal(t, int64(12), first.RowsDeleted)

	second, err := env.runner.Purge(context.Background(), 30, 5)
	require.NoError(t, err)
	assert.Zero(t, second.RowsDeleted)
	assert.Zero(t, second.Batches)
}

func TestPurge_ZeroRetentionDeletesEverythingAged(t *testing.T) {
	env := newTestEnv(t)
	env.insertSnapshots(t, 4, 1)
	env.insertSnapshots(t, 3, 365)

	stats, err := env.runner.Purge(context.Background(), 0, 100)
	require.NoError(t, err)
	assert.Equal(t, int64(7), stats.RowsDeleted)

	var total int64
	require.NoError(t, env.client.GetDB().Get(&total, `SELECT COUNT(*) FROM snapshot`))
	assert.Zero(t, total)
}

func TestPurge_RejectsInvalidBatchSize(t *testing.T) {
	env := newTestEnv(t)
	env.insertSnapshots(t, 5, 100)

	for _, batchSize := range []int{0, -1, -1000} {
		_, err := env.runner.Purge(context.Background(), 30, batchSize)
		require.Error(t, err)
		assert.ErrorIs(t, err, snapshot.ErrInvalidBatchSize)
	}

	// Rejection happens before any deletion
	assert.Equal(t, int64(5), env.countOlderThan(t, 30))
}

func TestPurge_RejectsNegativeRetention(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.runner.Purge(context.Background(), -1, 10)
	require.Error(t, err)
	assert.ErrorIs(t, err, snapshot.ErrInvalidRetention)
}

func TestPurge_PublishesRunSummary(t *testing.T) {
	env := newTestEnv(t)
	env.insertSnapshots(t, 7, 90)

	stats, err := env.runner.Purge(context.Background(), 30, 3)
	require.NoError(t, err)

	require.Len(t, env.notifier.published, 1)

	var summary RunStats
	require.NoError(t, json.Unmarshal(env.notifier.published[0], &summary))
	assert.Equal(t, stats.RunID, summary.RunID)
	assert.Equal(t, int64(7), summary.RowsDeleted)
	assert.Equal(t, 3, summary.Batches)
}

func TestPurge_NotifierFailureDoesNotFailRun(t *testing.T) {
	env := newTestEnv(t)
	env.notifier.err = assert.AnError
	env.insertSnapshots(t, 2, 90)

	stats, err := env.runner.Purge(context.Background(), 30, 10)
	require.NoError(t, err)
	assert.Equal(t, int64(2), stats.RowsDeleted)
}

func TestPurge_WritesAuditTrail(t *testing.T) {
	env := newTestEnv(t)
	env.insertSnapshots(t, 3, 90)

	_, err := env.runner.Purge(context.Background(), 30, 10)
	require.NoError(t, err)

	data, err := os.ReadFile(env.auditLog)
	require.NoError(t, err)

	assert.Contains(t, string(data), "purge started retention_days=30 batch_size=10")
	assert.Contains(t, string(data), "purge finished rows_deleted=3 batches=1")
}
