package operations

import (
	"sync"
	"time"

	"fredcli/internal/config"
	"fredcli/internal/transform"
	"fredcli/pkg/contracts/domain"
)

// OperationStatus is the overall status of a series run
type OperationStatus string

const (
	OperationStatusPending   OperationStatus = "pending"
	OperationStatusRunning   OperationStatus = "running"
	OperationStatusCompleted OperationStatus = "completed"
	OperationStatusFailed    OperationStatus = "failed"
	OperationStatusCancelled OperationStatus = "cancelled"
)

// OperationState carries one series run through its steps
type OperationState struct {
	mu sync.RWMutex

	// ID is the run ID, also used as the trace_id of the run's log records
	ID        string
	Series    config.SeriesConfig
	Options   transform.Options
	Status    OperationStatus
	StartTime time.Time
	EndTime   *time.Time
	Error     error

	Steps map[string]*StepState
	order []string

	// values produced by steps; only the goroutine running the run touches them
	Raw           string
	RawPath       string
	Result        *transform.Result
	ProcessedPath string
	WorkbookPath  string
}

// NewOperationState creates the state of a new run
func NewOperationState(id string, series config.SeriesConfig) *OperationState {
	return &OperationState{
		ID:        id,
		Series:    series,
		Status:    OperationStatusPending,
		StartTime: time.Now(),
		Steps:     make(map[string]*StepState),
	}
}

// Start marks the operation as running
func (p *OperationState) Start() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Status = OperationStatusRunning
	p.StartTime = time.Now()
}

// Complete marks the operation as completed
func (p *OperationState) Complete() {
	p.mu.Lock()
	defer p.mu.Unlock()
	now := time.Now()
	p.EndTime = &now
	p.Status = OperationStatusCompleted
}

// Fail marks the operation as failed
func (p *OperationState) Fail(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	now := time.Now()
	p.EndTime = &now
	p.Status = OperationStatusFailed
	if IsType(err, ErrorTypeCancellation) {
		p.Status = OperationStatusCancelled
	}
	p.Error = err
}

// AddStep registers the state of a step in execution order
func (p *OperationState) AddStep(state *StepState) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.Steps[state.ID]; !ok {
		p.order = append(p.order, state.ID)
	}
	p.Steps[state.ID] = state
}

// GetStep returns the state of a specific Step
func (p *OperationState) GetStep(stepID string) *StepState {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.Steps[stepID]
}

// Duration returns the duration of the run
func (p *OperationState) Duration() time.Duration {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.EndTime != nil {
		return p.EndTime.Sub(p.StartTime)
	}
	return time.Since(p.StartTime)
}

// Report summarises the run. Before the run ends the report is provisional:
// FinishedAt is now and the status reflects success so far.
func (p *OperationState) Report() *domain.RunReport {
	p.mu.RLock()
	defer p.mu.RUnlock()

	r := &domain.RunReport{
		RunID:         p.ID,
		Series:        p.Series.Name,
		Status:        domain.RunStatusCompleted,
		StartedAt:     p.StartTime,
		FinishedAt:    time.Now(),
		RawPath:       p.RawPath,
		ProcessedPath: p.ProcessedPath,
		WorkbookPath:  p.WorkbookPath,
		RawBytes:      len(p.Raw),
	}
	if p.EndTime != nil {
		r.FinishedAt = *p.EndTime
	}
	if p.Result != nil {
		r.Rows = p.Result.Rows()
		r.DroppedBefore = p.Result.Dropped.BeforeCutoff
		r.DroppedMissing = p.Result.Dropped.Missing
		r.Baseline = p.Result.Baseline
	}
	for _, id := range p.order {
		if p.Steps[id].GetStatus() == StepStatusSkipped {
			r.SkippedSteps = append(r.SkippedSteps, id)
		}
	}
	if p.Error != nil {
		r.Status = domain.RunStatusFailed
		r.Error = p.Error.Error()
		r.ErrorType = string(GetErrorType(p.Error))
	}
	return r
}
