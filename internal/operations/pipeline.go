package operations

// Dependencies are the collaborators of the standard series pipeline
type Dependencies struct {
	Fetcher Fetcher
	Writer  TableWriter
	// Workbook enables the write_workbook step when set
	Workbook WorkbookWriter
	// Archive enables the archive step when set
	Archive       Archive
	PreviewLength int
}

// NewPipeline registers the standard steps and returns a manager over them
func NewPipeline(deps Dependencies, opts ...ManagerOption) (*Manager, error) {
	registry := NewRegistry()

	steps := []Step{
		NewFetchStep(deps.Fetcher),
		NewWriteRawStep(deps.Writer),
		NewTransformStep(deps.PreviewLength),
		NewWriteProcessedStep(deps.Writer),
	}
	if deps.Workbook != nil {
		steps = append(steps, NewWriteWorkbookStep(deps.Workbook))
	}
	if deps.Archive != nil {
		steps = append(steps, NewArchiveStep(deps.Archive))
		opts = append(opts, WithFailureArchive(deps.Archive))
	}

	for _, step := range steps {
		if err := registry.Register(step); err != nil {
			return nil, err
		}
	}
	return NewManager(registry, opts...), nil
}
