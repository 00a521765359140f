package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"fredcli/internal/config"
	"fredcli/internal/storage"
	api "fredcli/pkg/contracts/api/v1"
	"fredcli/pkg/contracts/domain"
)

// Runner runs one series through the pipeline
type Runner interface {
	Run(ctx context.Context, series config.SeriesConfig) (*domain.RunReport, error)
}

// RunArchive is the read side of the observation archive
type RunArchive interface {
	LatestRun(ctx context.Context, series string) (*domain.RunReport, error)
	ListRuns(ctx context.Context, series string, limit int) ([]domain.RunReport, error)
	Observations(ctx context.Context, series string) ([]domain.ArchivedObservation, error)
}

// RunRequest carries the optional overrides of an on-demand run
type RunRequest = api.RunRequest

// SeriesService manages on-demand runs of the configured series
type SeriesService struct {
	registry *config.SeriesRegistry
	runner   Runner
	archive  RunArchive
	logger   *slog.Logger

	group singleflight.Group

	mu      sync.RWMutex
	latest  map[string]*domain.RunReport
	running map[string]*sync.Mutex
}

// NewSeriesService creates a series service. archive may be nil.
func NewSeriesService(registry *config.SeriesRegistry, runner Runner, archive RunArchive, logger *slog.Logger) *SeriesService {
	if logger == nil {
		logger = slog.Default()
	}
	return &SeriesService{
		registry: registry,
		runner:   runner,
		archive:  archive,
		logger:   logger.With(slog.String("service", "series")),
		latest:   make(map[string]*domain.RunReport),
		running:  make(map[string]*sync.Mutex),
	}
}

// ArchiveEnabled reports whether archive queries are available
func (s *SeriesService) ArchiveEnabled() bool {
	return s.archive != nil
}

// List returns every configured series with its latest run
func (s *SeriesService) List(ctx context.Context) []domain.SeriesSummary {
	all := s.registry.All()
	out := make([]domain.SeriesSummary, 0, len(all))
	for _, series := range all {
		out = append(out, s.summary(ctx, series))
	}
	return out
}

// Get returns one series with its latest run
func (s *SeriesService) Get(ctx context.Context, name string) (*domain.SeriesSummary, error) {
	series, err := s.lookup(name)
	if err != nil {
		return nil, err
	}
	summary := s.summary(ctx, series)
	return &summary, nil
}

// Run runs the named series. Concurrent calls with the same name and cutoff
// share one run; shared reports whether this caller joined another's run.
// Runs of one series with different cutoffs write the same files, so they
// execute one at a time and the last to finish owns the output.
// The run is detached from ctx so a disconnecting client cannot leave
// half-written output behind.
func (s *SeriesService) Run(ctx context.Context, name string, req RunRequest) (*domain.RunReport, bool, error) {
	series, err := s.lookup(name)
	if err != nil {
		return nil, false, err
	}
	if req.Cutoff != "" {
		if _, err := time.Parse(config.CutoffLayout, req.Cutoff); err != nil {
			return nil, false, fmt.Errorf("%w %q: %v", ErrInvalidCutoff, req.Cutoff, err)
		}
		series.Cutoff = req.Cutoff
	}

	key := series.Name + "|" + series.Cutoff
	v, err, shared := s.group.Do(key, func() (interface{}, error) {
		lock := s.seriesLock(series.Name)
		lock.Lock()
		defer lock.Unlock()

		report, err := s.runner.Run(context.WithoutCancel(ctx), series)
		if report != nil {
			s.mu.Lock()
			s.latest[series.Name] = report
			s.mu.Unlock()
		}
		return report, err
	})

	if shared {
		s.logger.InfoContext(ctx, "Joined in-flight run", slog.String("series", series.Name))
	}

	report, _ := v.(*domain.RunReport)
	return report, shared, err
}

// LatestRun returns the most recent run of the series, from memory or the archive
func (s *SeriesService) LatestRun(ctx context.Context, name string) (*domain.RunReport, error) {
	if _, err := s.lookup(name); err != nil {
		return nil, err
	}

	s.mu.RLock()
	report, ok := s.latest[name]
	s.mu.RUnlock()
	if ok {
		return report, nil
	}

	if s.archive == nil {
		return nil, fmt.Errorf("%w: %s", ErrNoRuns, name)
	}
	report, err := s.archive.LatestRun(ctx, name)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrNoRuns, name)
	}
	if err != nil {
		return nil, fmt.Errorf("load latest run of %s: %w", name, err)
	}
	return report, nil
}

// Runs returns up to limit archived runs of the series, newest first
func (s *SeriesService) Runs(ctx context.Context, name string, limit int) ([]domain.RunReport, error) {
	if _, err := s.lookup(name); err != nil {
		return nil, err
	}
	if s.archive == nil {
		return nil, ErrArchiveDisabled
	}
	return s.archive.ListRuns(ctx, name, limit)
}

// Observations returns the archived observations of the series in date order
func (s *SeriesService) Observations(ctx context.Context, name string) ([]domain.ArchivedObservation, error) {
	series, err := s.lookup(name)
	if err != nil {
		return nil, err
	}
	if s.archive == nil {
		return nil, ErrArchiveDisabled
	}
	if series.RawOnly {
		return []domain.ArchivedObservation{}, nil
	}
	return s.archive.Observations(ctx, name)
}

func (s *SeriesService) seriesLock(name string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	lock, ok := s.running[name]
	if !ok {
		lock = &sync.Mutex{}
		s.running[name] = lock
	}
	return lock
}

func (s *SeriesService) lookup(name string) (config.SeriesConfig, error) {
	series, ok := s.registry.Get(name)
	if !ok {
		return config.SeriesConfig{}, fmt.Errorf("%w %q", config.ErrUnknownSeries, name)
	}
	return series, nil
}

func (s *SeriesService) summary(ctx context.Context, series config.SeriesConfig) domain.SeriesSummary {
	summary := domain.SeriesSummary{SeriesInfo: series.Info()}
	report, err := s.LatestRun(ctx, series.Name)
	switch {
	case err == nil:
		summary.LastRun = report
	case !errors.Is(err, ErrNoRuns):
		s.logger.WarnContext(ctx, "Failed to load latest run",
			slog.String("series", series.Name),
			slog.String("error", err.Error()))
	}
	return summary
}
