// Package registry implements the Worker Registry: a name- and
// capability-indexed catalog of workers. Registration is write-once per
// name; reads take a shared read lock, matching the "write-once-per-name"
// shared-resource policy
// the kernel applies uniformly across its stateful components.
package registry

import (
	"sync"

	"goa.design/agentkernel/kernelerrors"
)

// Worker describes a capability-scoped unit of work. Name must be globally
// unique within a Registry; Capabilities must be non-empty.
type Worker struct {
	// Name uniquely identifies the worker within a Registry.
	Name string
	// Description is a human-readable summary of what the worker does.
	Description string
	// Capabilities lists the capability tags this worker can service. Each
	// capability maps to exactly one worker: first-registered wins.
	Capabilities []string
	// Handler is the concrete implementation invoked by the Worker Runner.
	// The Registry does not interpret Handler; it is opaque to registration.
	Handler any
}

// Registry indexes workers by name and by capability. The zero value is not
// usable; construct with New.
type Registry struct {
	mu          sync.RWMutex
	byName      map[string]Worker
	byCap       map[string]Worker
	insertOrder []string
}

// New constructs an empty Registry.
func New() *Registry {
	return &Registry{
		byName: make(map[string]Worker),
		byCap:  make(map[string]Worker),
	}
}

// Register indexes def by name and, for each capability not already
// claimed, by capability. Re-registering an existing name is a fatal
// DuplicateWorker error. Capabilities already bound to an earlier worker
// are silently left pointing at that earlier worker: first-registered wins
// is a stable, documented guarantee, not a bug to be "fixed" by overwriting.
func (r *Registry) Register(def Worker) error {
	if def.Name == "" {
		return kernelerrors.ConfigInvalid("worker registration missing name", nil)
	}
	if len(def.Capabilities) == 0 {
		return kernelerrors.ConfigInvalid("worker "+def.Name+" registration missing capabilities", nil)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, dup := r.byName[def.Name]; dup {
		return kernelerrors.DuplicateWorker(def.Name)
	}

	r.byName[def.Name] = def
	r.insertOrder = append(r.insertOrder, def.Name)
	for _, cap := range def.Capabilities {
		if _, claimed := r.byCap[cap]; claimed {
			continue
		}
		r.byCap[cap] = def
	}
	return nil
}

// GetWorker returns the worker registered under name, if any.
func (r *Registry) GetWorker(name string) (Worker, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	w, ok := r.byName[name]
	return w, ok
}

// FindByCapability returns the first-registered worker bound to capability, if any.
func (r *Registry) FindByCapability(capability string) (Worker, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	w, ok := r.byCap[capability]
	return w, ok
}

// List returns every registered worker in insertion order.
func (r *Registry) List() []Worker {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Worker, 0, len(r.insertOrder))
	for _, name := range r.insertOrder {
		out = append(out, r.byName[name])
	}
	return out
}
