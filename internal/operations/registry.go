package operations

import (
	"fmt"
	"sync"
)

// Registry holds the pipeline steps in registration order
type Registry struct {
	mu    sync.RWMutex
	steps map[string]Step
	order []string
}

// NewRegistry creates an empty step registry
func NewRegistry() *Registry {
	return &Registry{
		steps: make(map[string]Step),
	}
}

// Register appends a Step to the pipeline
func (r *Registry) Register(step Step) error {
	if step == nil {
		return fmt.Errorf("cannot register nil step")
	}

	id := step.ID()
	if id == "" {
		return fmt.Errorf("step ID cannot be empty")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.steps[id]; exists {
		return fmt.Errorf("step with ID %s already registered", id)
	}

	r.steps[id] = step
	r.order = append(r.order, id)
	return nil
}

// Get retrieves a Step by ID
func (r *Registry) Get(id string) (Step, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	step, exists := r.steps[id]
	if !exists {
		return nil, fmt.Errorf("step with ID %s not found", id)
	}
	return step, nil
}

// List returns the steps in registration order
func (r *Registry) List() []Step {
	r.mu.RLock()
	defer r.mu.RUnlock()

	steps := make([]Step, 0, len(r.order))
	for _, id := range r.order {
		steps = append(steps, r.steps[id])
	}
	return steps
}

// Has reports whether a step is registered
func (r *Registry) Has(id string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.steps[id]
	return ok
}

// Count returns the number of registered steps
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.steps)
}
