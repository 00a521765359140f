package services

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fredcli/internal/config"
	"fredcli/internal/storage"
	"fredcli/pkg/contracts/domain"
)

type fakeRunner struct {
	calls     atomic.Int32
	active    atomic.Int32
	maxActive atomic.Int32
	release   chan struct{}
	err       error

	mu      sync.Mutex
	cutoffs []string
}

func (r *fakeRunner) Run(ctx context.Context, series config.SeriesConfig) (*domain.RunReport, error) {
	r.calls.Add(1)
	n := r.active.Add(1)
	defer r.active.Add(-1)
	for {
		peak := r.maxActive.Load()
		if n <= peak || r.maxActive.CompareAndSwap(peak, n) {
			break
		}
	}
	r.mu.Lock()
	r.cutoffs = append(r.cutoffs, series.Cutoff)
	r.mu.Unlock()

	if r.release != nil {
		<-r.release
	}
	report := &domain.RunReport{
		RunID:  fmt.Sprintf("run-%d", r.calls.Load()),
		Series: series.Name,
		Status: domain.RunStatusCompleted,
		Rows:   3,
	}
	if r.err != nil {
		report.Status = domain.RunStatusFailed
		report.Error = r.err.Error()
	}
	return report, r.err
}

type fakeArchive struct {
	latest map[string]*domain.RunReport
	obs    []domain.ArchivedObservation
	err    error
}

func (a *fakeArchive) LatestRun(_ context.Context, series string) (*domain.RunReport, error) {
	if a.err != nil {
		return nil, a.err
	}
	if r, ok := a.latest[series]; ok {
		return r, nil
	}
	return nil, fmt.Errorf("run for series %q: %w", series, storage.ErrNotFound)
}

func (a *fakeArchive) ListRuns(_ context.Context, series string, limit int) ([]domain.RunReport, error) {
	if a.err != nil {
		return nil, a.err
	}
	var out []domain.RunReport
	if r, ok := a.latest[series]; ok {
		out = append(out, *r)
	}
	return out, nil
}

func (a *fakeArchive) Observations(_ context.Context, series string) ([]domain.ArchivedObservation, error) {
	return a.obs, a.err
}

func newService(runner Runner, archive RunArchive) *SeriesService {
	return NewSeriesService(config.NewSeriesRegistry(config.BuiltinSeries()...), runner, archive, nil)
}

func TestSeriesServiceList(t *testing.T) {
	svc := newService(&fakeRunner{}, nil)

	list := svc.List(context.Background())
	require.Len(t, list, 3)
	assert.Equal(t, "atlwage", list[0].Name)
	assert.Equal(t, "jtsjol", list[1].Name)
	assert.Equal(t, "jtsjol_raw", list[2].Name)
	assert.True(t, list[2].RawOnly)
	assert.Nil(t, list[1].LastRun)
	assert.False(t, svc.ArchiveEnabled())
}

func TestSeriesServiceRun(t *testing.T) {
	runner := &fakeRunner{}
	svc := newService(runner, nil)

	report, shared, err := svc.Run(context.Background(), "jtsjol", RunRequest{})
	require.NoError(t, err)
	assert.False(t, shared)
	assert.Equal(t, "jtsjol", report.Series)

	summary, err := svc.Get(context.Background(), "jtsjol")
	require.NoError(t, err)
	require.NotNil(t, summary.LastRun)
	assert.Equal(t, report.RunID, summary.LastRun.RunID)

	_, _, err = svc.Run(context.Background(), "jtsjol", RunRequest{Cutoff: "2021-06-01"})
	require.NoError(t, err)
	assert.Equal(t, []string{"2020-01-01", "2021-06-01"}, runner.cutoffs)
}

func TestSeriesServiceRunErrors(t *testing.T) {
	svc := newService(&fakeRunner{}, nil)

	_, _, err := svc.Run(context.Background(), "unrate", RunRequest{})
	assert.ErrorIs(t, err, config.ErrUnknownSeries)

	_, _, err = svc.Run(context.Background(), "jtsjol", RunRequest{Cutoff: "2020-13-01"})
	assert.ErrorIs(t, err, ErrInvalidCutoff)

	_, err = svc.Get(context.Background(), "unrate")
	assert.ErrorIs(t, err, config.ErrUnknownSeries)
}

func TestSeriesServiceRunFailureKeepsReport(t *testing.T) {
	runner := &fakeRunner{err: errors.New("[fetch] fetch: download failed")}
	svc := newService(runner, nil)

	report, _, err := svc.Run(context.Background(), "atlwage", RunRequest{})
	require.Error(t, err)
	require.NotNil(t, report)
	assert.Equal(t, domain.RunStatusFailed, report.Status)

	latest, err := svc.LatestRun(context.Background(), "atlwage")
	require.NoError(t, err)
	assert.Equal(t, report.RunID, latest.RunID)
}

func TestSeriesServiceConcurrentRunsShareOneRun(t *testing.T) {
	runner := &fakeRunner{release: make(chan struct{})}
	svc := newService(runner, nil)

	const callers = 5
	var (
		wg      sync.WaitGroup
		reports [callers]*domain.RunReport
		shared  atomic.Int32
	)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			report, s, err := svc.Run(context.Background(), "jtsjol", RunRequest{})
			assert.NoError(t, err)
			reports[i] = report
			if s {
				shared.Add(1)
			}
		}(i)
	}

	require.Eventually(t, func() bool { return runner.calls.Load() == 1 }, time.Second, 5*time.Millisecond)
	time.Sleep(100 * time.Millisecond)
	close(runner.release)
	wg.Wait()

	assert.Equal(t, int32(1), runner.calls.Load())
	assert.Equal(t, int32(callers), shared.Load(), "singleflight marks every caller of a shared call")
	for _, r := range reports {
		assert.Same(t, reports[0], r)
	}
}

func TestSeriesServiceDifferentCutoffsRunOneAtATime(t *testing.T) {
	runner := &fakeRunner{release: make(chan struct{})}
	svc := newService(runner, nil)

	var wg sync.WaitGroup
	for _, cutoff := range []string{"2021-01-01", "2022-01-01"} {
		wg.Add(1)
		go func(cutoff string) {
			defer wg.Done()
			_, shared, err := svc.Run(context.Background(), "jtsjol", RunRequest{Cutoff: cutoff})
			assert.NoError(t, err)
			assert.False(t, shared)
		}(cutoff)
	}

	require.Eventually(t, func() bool { return runner.calls.Load() == 1 }, time.Second, 5*time.Millisecond)
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, int32(1), runner.calls.Load(), "second cutoff waits for the first run")

	close(runner.release)
	wg.Wait()

	assert.Equal(t, int32(2), runner.calls.Load())
	assert.Equal(t, int32(1), runner.maxActive.Load())
	assert.ElementsMatch(t, []string{"2021-01-01", "2022-01-01"}, runner.cutoffs)
}

func TestSeriesServiceRunIgnoresCallerCancellation(t *testing.T) {
	runner := &fakeRunner{}
	svc := newService(runner, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, _, err := svc.Run(ctx, "jtsjol", RunRequest{})
	require.NoError(t, err)
}

func TestSeriesServiceArchiveQueries(t *testing.T) {
	t.Run("disabled", func(t *testing.T) {
		svc := newService(&fakeRunner{}, nil)

		_, err := svc.Runs(context.Background(), "jtsjol", 10)
		assert.ErrorIs(t, err, ErrArchiveDisabled)
		_, err = svc.Observations(context.Background(), "jtsjol")
		assert.ErrorIs(t, err, ErrArchiveDisabled)
		_, err = svc.LatestRun(context.Background(), "jtsjol")
		assert.ErrorIs(t, err, ErrNoRuns)
	})

	t.Run("enabled", func(t *testing.T) {
		archived := &domain.RunReport{RunID: "archived", Series: "jtsjol", Status: domain.RunStatusCompleted}
		archive := &fakeArchive{
			latest: map[string]*domain.RunReport{"jtsjol": archived},
			obs: []domain.ArchivedObservation{
				{Series: "jtsjol", Date: time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC), Value: 7140},
			},
		}
		svc := newService(&fakeRunner{}, archive)

		latest, err := svc.LatestRun(context.Background(), "jtsjol")
		require.NoError(t, err)
		assert.Equal(t, "archived", latest.RunID)

		_, err = svc.LatestRun(context.Background(), "atlwage")
		assert.ErrorIs(t, err, ErrNoRuns)

		runs, err := svc.Runs(context.Background(), "jtsjol", 10)
		require.NoError(t, err)
		assert.Len(t, runs, 1)

		obs, err := svc.Observations(context.Background(), "jtsjol")
		require.NoError(t, err)
		assert.Len(t, obs, 1)

		obs, err = svc.Observations(context.Background(), "jtsjol_raw")
		require.NoError(t, err)
		assert.Empty(t, obs)
	})
}

func TestHealthService(t *testing.T) {
	registry := config.NewSeriesRegistry(config.BuiltinSeries()...)

	t.Run("ok without archive", func(t *testing.T) {
		dir := t.TempDir()
		require.NoError(t, os.WriteFile(filepath.Join(dir, "jtsjol_raw.csv"), []byte("x"), 0644))
		paths := config.NewPaths(config.PathsConfig{OutputDir: dir})

		status := NewHealthService(paths, registry, nil, nil).HealthCheck(context.Background())
		assert.Equal(t, "ok", status.Status)
		assert.Equal(t, "ready", status.Services["output"].Status)
		assert.Equal(t, "csv files: 1", status.Services["output"].Message)
		assert.Equal(t, "disabled", status.Services["archive"].Status)
		assert.Equal(t, 3, status.Runtime["series"])
	})

	t.Run("degraded", func(t *testing.T) {
		file := filepath.Join(t.TempDir(), "data")
		require.NoError(t, os.WriteFile(file, []byte("x"), 0644))
		paths := config.NewPaths(config.PathsConfig{OutputDir: file})

		archive := &fakeArchive{err: errors.New("database is locked")}
		status := NewHealthService(paths, registry, archive, nil).HealthCheck(context.Background())
		assert.Equal(t, "degraded", status.Status)
		assert.Equal(t, "error", status.Services["output"].Status)
		assert.Equal(t, "error", status.Services["archive"].Status)
	})
}
