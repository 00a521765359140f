package operations

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"fredcli/internal/config"
	"fredcli/internal/infrastructure"
	"fredcli/pkg/contracts/domain"
)

// Manager runs series through the registered steps
type Manager struct {
	registry    *Registry
	concurrency int
	tracer      *OperationTracer
	metrics     *infrastructure.PipelineMetrics
	// failures records failed runs; successful runs are archived by ArchiveStep
	failures Archive
}

// ManagerOption configures a Manager
type ManagerOption func(*Manager)

// WithConcurrency bounds how many series RunAll executes at once
func WithConcurrency(n int) ManagerOption {
	return func(m *Manager) {
		if n > 0 {
			m.concurrency = n
		}
	}
}

// WithPipelineMetrics records run metrics
func WithPipelineMetrics(metrics *infrastructure.PipelineMetrics) ManagerOption {
	return func(m *Manager) { m.metrics = metrics }
}

// WithFailureArchive records failed runs in archive
func WithFailureArchive(archive Archive) ManagerOption {
	return func(m *Manager) { m.failures = archive }
}

// NewManager creates a manager over the steps of registry
func NewManager(registry *Registry, opts ...ManagerOption) *Manager {
	m := &Manager{
		registry:    registry,
		concurrency: 1,
		tracer:      NewOperationTracer(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// GetRegistry returns the step registry
func (m *Manager) GetRegistry() *Registry {
	return m.registry
}

// Run executes every applicable step for series, in order, stopping at the first failure.
// The report is returned in both cases.
func (m *Manager) Run(ctx context.Context, series config.SeriesConfig) (*domain.RunReport, error) {
	runID := infrastructure.GenerateTraceID()
	ctx = infrastructure.WithTraceID(ctx, runID)

	state := NewOperationState(runID, series)
	ctx, span := m.tracer.TraceRun(ctx, state)

	state.Start()
	slog.InfoContext(ctx, "Series run started",
		slog.String("series", series.Name),
		slog.String("series_id", series.SeriesID),
		slog.Bool("raw_only", series.RawOnly))

	err := m.executeSequential(ctx, state, m.registry.List())
	if err != nil {
		state.Fail(err)
		m.archiveFailure(ctx, state)
	} else {
		state.Complete()
	}

	report := state.Report()
	m.tracer.RecordRunCompletion(span, state)
	m.metrics.RecordRun(ctx, series.Name, report.Rows, report.Duration(), report.ErrorType)

	if err != nil {
		slog.ErrorContext(ctx, "Series run failed",
			slog.String("series", series.Name),
			slog.String("error_type", report.ErrorType),
			slog.String("error", err.Error()),
			slog.Duration("duration", report.Duration()))
		return report, err
	}

	slog.InfoContext(ctx, "Series run completed",
		slog.String("series", series.Name),
		slog.Int("rows", report.Rows),
		slog.Duration("duration", report.Duration()))
	return report, nil
}

// RunAll runs independent series concurrently. Every report is returned, in the
// order of series; the error is the first failure in that order.
func (m *Manager) RunAll(ctx context.Context, series []config.SeriesConfig) ([]*domain.RunReport, error) {
	reports := make([]*domain.RunReport, len(series))
	errs := make([]error, len(series))

	var g errgroup.Group
	g.SetLimit(m.concurrency)
	for i := range series {
		g.Go(func() error {
			reports[i], errs[i] = m.Run(ctx, series[i])
			return nil
		})
	}
	_ = g.Wait()

	for i, err := range errs {
		if err != nil {
			return reports, fmt.Errorf("series %s: %w", series[i].Name, err)
		}
	}
	return reports, nil
}

func (m *Manager) executeSequential(ctx context.Context, state *OperationState, steps []Step) error {
	for _, step := range steps {
		state.AddStep(NewStepState(step.ID(), step.Name()))
	}

	for i, step := range steps {
		stepState := state.GetStep(step.ID())

		if err := ctx.Err(); err != nil {
			slog.WarnContext(ctx, "Series run cancelled",
				slog.String("series", state.Series.Name),
				slog.String("step", step.ID()))
			return NewCancellationError(step.ID(), err)
		}

		if cond, ok := step.(ConditionalStep); ok && !cond.Applies(state) {
			stepState.Skip("not applicable to this series")
			slog.DebugContext(ctx, "Step skipped",
				slog.String("series", state.Series.Name),
				slog.String("step", step.ID()))
			continue
		}

		slog.DebugContext(ctx, "Executing step",
			slog.String("series", state.Series.Name),
			slog.String("step", step.ID()),
			slog.Int("step_number", i+1),
			slog.Int("total_steps", len(steps)))

		if err := m.executeStep(ctx, state, step, stepState); err != nil {
			return err
		}
	}
	return nil
}

func (m *Manager) executeStep(ctx context.Context, state *OperationState, step Step, stepState *StepState) error {
	ctx, span := m.tracer.TraceStep(ctx, state, step)
	start := time.Now()
	stepState.Start()

	err := step.Validate(state)
	if err == nil {
		err = step.Execute(ctx, state)
	}

	m.tracer.RecordStepCompletion(span, time.Since(start), err)
	if err != nil {
		stepState.Fail(err)
		return err
	}
	stepState.Complete()
	return nil
}

// archiveFailure records a failed run; archive errors are logged, the run error wins
func (m *Manager) archiveFailure(ctx context.Context, state *OperationState) {
	if m.failures == nil {
		return
	}
	if err := m.failures.SaveRun(context.WithoutCancel(ctx), state.Report(), nil, nil); err != nil {
		slog.WarnContext(ctx, "Failed to archive failed run",
			slog.String("series", state.Series.Name),
			slog.String("error", err.Error()))
	}
}
