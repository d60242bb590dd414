package purge

import (
	"bytes"
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lamnk/snappurge/internal/snapshot"
)

func TestReport_BucketsByAge(t *testing.T) {
	env := newTestEnv(t)
	env.insertSnapshots(t, 2, 45)  // bucket 1
	env.insertSnapshots(t, 1, 200) // bucket 3
	env.insertSnapshots(t, 4, 400) // bucket 5

	report, err := env.runner.Report(context.Background(), 90)
	require.NoError(t, err)

	require.Len(t, report.Histogram, snapshot.NumBuckets)
	assert.Equal(t, int64(2), report.Histogram[0].Rows)
	assert.Equal(t, int64(0), report.Histogram[1].Rows)
	assert.Equal(t, int64(1), report.Histogram[2].Rows)
	assert.Equal(t, int64(0), report.Histogram[3].Rows)
	assert.Equal(t, int64(4), report.Histogram[4].Rows)
}

func TestReport_ListsEveryFamilyTable(t *testing.T) {
	env := newTestEnv(t)
	env.insertSnapshots(t, 3, 10)

	report, err := env.runner.Report(context.Background(), 90)
	require.NoError(t, err)

	require.Len(t, report.Tables, len(snapshot.FamilyTables))

	byTable := make(map[string]int64, len(report.Tables))
	for _, tc := range report.Tables {
		byTable[tc.Table] = tc.Rows
	}
	assert.Equal(t, int64(3), byTable[snapshot.TableSnapshot])
	assert.Zero(t, byTable[snapshot.TableServerGroup])
}

func TestReport_HasNoSideEffects(t *testing.T) {
	env := newTestEnv(t)
	env.insertSnapshots(t, 5, 500)

	_, err := env.runner.Report(context.Background(), 90)
	require.NoError(t, err)

	var total int64
	require.NoError(t, env.client.GetDB().Get(&total, `SELECT COUNT(*) FROM snapshot`))
	assert.Equal(t, int64(5), total)
}

func TestReport_Render(t *testing.T) {
	env := newTestEnv(t)
	env.insertSnapshots(t, 2, 45)
	env.insertSnapshots(t, 1, 400)

	report, err := env.runner.Report(context.Background(), 90)
	require.NoError(t, err)

	var buf bytes.Buffer
	report.Render(&buf)
	out := buf.String()

	assert.Contains(t, out, "Snapshot table counts")
	assert.Contains(t, out, snapshot.TableSnapshot)
	assert.Contains(t, out, snapshot.TableServerGroup)
	assert.Contains(t, out, "interval 90 days")
	assert.Contains(t, out, "1 - 90 days")
	assert.Contains(t, out, "> 360 days")
}

func TestReport_WritesAuditTrail(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.runner.Report(context.Background(), 30)
	require.NoError(t, err)

	data, err := os.ReadFile(env.auditLog)
	require.NoError(t, err)
	assert.Contains(t, string(data), "reports requested interval_days=30")
}
