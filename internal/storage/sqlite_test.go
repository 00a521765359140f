package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fredcli/pkg/contracts/domain"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store, err := NewSQLite(filepath.Join(t.TempDir(), "archive", "observations.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func date(y int, m time.Month) time.Time {
	return time.Date(y, m, 1, 0, 0, 0, 0, time.UTC)
}

func TestSaveRunAndReadBack(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	started := time.Date(2025, 9, 18, 10, 0, 0, 0, time.UTC)

	report := &domain.RunReport{
		RunID:          "run-1",
		Series:         "jtsjol",
		Status:         domain.RunStatusCompleted,
		StartedAt:      started,
		FinishedAt:     started.Add(2 * time.Second),
		RawPath:        "data/jtsjol_raw.csv",
		ProcessedPath:  "data/jtsjol_processed.csv",
		RawBytes:       120,
		Rows:           2,
		DroppedBefore:  1,
		DroppedMissing: 1,
		Baseline:       7140,
	}
	obs := []domain.Observation{
		{Date: date(2020, 1), Value: 7140},
		{Date: date(2020, 2), Value: 7001},
	}
	require.NoError(t, store.SaveRun(ctx, report, obs, []float64{100, 98.05}))

	latest, err := store.LatestRun(ctx, "jtsjol")
	require.NoError(t, err)
	assert.Equal(t, "run-1", latest.RunID)
	assert.Equal(t, domain.RunStatusCompleted, latest.Status)
	assert.True(t, started.Equal(latest.StartedAt))
	assert.Equal(t, 2*time.Second, latest.Duration())
	assert.Equal(t, 7140.0, latest.Baseline)
	assert.Equal(t, 1, latest.DroppedMissing)

	archived, err := store.Observations(ctx, "jtsjol")
	require.NoError(t, err)
	require.Len(t, archived, 2)
	assert.Equal(t, 7140.0, archived[0].Value)
	require.NotNil(t, archived[1].Derived)
	assert.Equal(t, 98.05, *archived[1].Derived)
	assert.Equal(t, "run-1", archived[1].RunID)
}

func TestSuccessfulRunReplacesObservations(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	now := time.Now()

	first := &domain.RunReport{RunID: "a", Series: "atlwage", Status: domain.RunStatusCompleted, StartedAt: now, FinishedAt: now}
	require.NoError(t, store.SaveRun(ctx, first, []domain.Observation{
		{Date: date(2019, 1), Value: 3.7},
		{Date: date(2019, 2), Value: 3.9},
	}, nil))

	second := &domain.RunReport{RunID: "b", Series: "atlwage", Status: domain.RunStatusCompleted, StartedAt: now.Add(time.Minute), FinishedAt: now.Add(time.Minute)}
	require.NoError(t, store.SaveRun(ctx, second, []domain.Observation{
		{Date: date(2019, 2), Value: 4.0},
	}, nil))

	archived, err := store.Observations(ctx, "atlwage")
	require.NoError(t, err)
	require.Len(t, archived, 1)
	assert.Equal(t, 4.0, archived[0].Value)
	assert.Nil(t, archived[0].Derived)

	runs, err := store.ListRuns(ctx, "atlwage", 0)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "b", runs[0].RunID, "newest first")
}

func TestFailedRunKeepsObservations(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	now := time.Now()

	ok := &domain.RunReport{RunID: "ok", Series: "jtsjol", Status: domain.RunStatusCompleted, StartedAt: now, FinishedAt: now}
	require.NoError(t, store.SaveRun(ctx, ok, []domain.Observation{{Date: date(2020, 1), Value: 1}}, nil))

	failed := &domain.RunReport{
		RunID: "bad", Series: "jtsjol", Status: domain.RunStatusFailed,
		StartedAt: now.Add(time.Second), FinishedAt: now.Add(time.Second),
		Error: "unexpected HTTP status 500", ErrorType: "fetch",
	}
	require.NoError(t, store.SaveRun(ctx, failed, nil, nil))

	latest, err := store.LatestRun(ctx, "jtsjol")
	require.NoError(t, err)
	assert.Equal(t, "bad", latest.RunID)
	assert.Equal(t, "fetch", latest.ErrorType)

	archived, err := store.Observations(ctx, "jtsjol")
	require.NoError(t, err)
	assert.Len(t, archived, 1)
}

func TestLatestRunNotFound(t *testing.T) {
	store := newTestStore(t)
	_, err := store.LatestRun(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSaveRunRejectsMismatchedDerived(t *testing.T) {
	store := newTestStore(t)
	report := &domain.RunReport{RunID: "x", Series: "s", Status: domain.RunStatusCompleted}
	err := store.SaveRun(context.Background(), report, []domain.Observation{{Date: date(2020, 1), Value: 1}}, []float64{1, 2})
	assert.Error(t, err)
}
