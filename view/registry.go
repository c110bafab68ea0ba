package view

import (
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/lcx/statsview/stats"
)

// Registry is the process-local store of registered views. It routes every
// recorded measurement to the views bound to that measurement's measure and
// hands snapshots to the metric producer. Registries are explicitly
// constructed and passed around; independent instances never share state,
// so tests can run engines side by side.
type Registry struct {
	logger *zap.Logger

	mu        sync.RWMutex
	views     map[string]*viewInternal
	order     []*viewInternal
	byMeasure map[string][]*viewInternal
}

// NewRegistry creates an empty registry. logger may be nil.
func NewRegistry(logger *zap.Logger) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registry{
		logger:    logger,
		views:     make(map[string]*viewInternal),
		byMeasure: make(map[string][]*viewInternal),
	}
}

// Register validates and registers the given views. Registration is atomic:
// if any view is malformed or any name collides (with the registry or within
// the batch), no view from the batch is registered and the registry is left
// exactly as it was.
func (r *Registry) Register(views ...*View) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	seen := make(map[string]bool, len(views))
	for _, v := range views {
		if err := v.validate(); err != nil {
			return err
		}
		if _, ok := r.views[v.Name]; ok {
			return fmt.Errorf("view %q: %w", v.Name, ErrDuplicateView)
		}
		if seen[v.Name] {
			return fmt.Errorf("view %q: %w", v.Name, ErrDuplicateView)
		}
		seen[v.Name] = true
	}

	for _, v := range views {
		vi := newViewInternal(v)
		r.views[v.Name] = vi
		r.order = append(r.order, vi)
		r.byMeasure[v.Measure.Name()] = append(r.byMeasure[v.Measure.Name()], vi)
		r.logger.Info("view registered",
			zap.String("view", v.Name),
			zap.String("measure", v.Measure.Name()),
			zap.Stringer("aggregation", v.Aggregation),
			zap.Strings("columns", v.Columns))
	}
	return nil
}

// Find returns the definition of the registered view with the given name,
// or nil if no such view exists.
func (r *Registry) Find(name string) *View {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if vi, ok := r.views[name]; ok {
		return vi.def
	}
	return nil
}

// Record routes each measurement to every view bound to its measure and
// applies the value there. Measurements whose measure has no registered
// view are dropped silently; dimension keys a view declares but the
// measurement lacks aggregate under the empty label value. Record never
// fails and is safe for arbitrary concurrent use.
func (r *Registry) Record(ms ...stats.Measurement) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, m := range ms {
		if m.Measure() == nil {
			continue
		}
		for _, vi := range r.byMeasure[m.Measure().Name()] {
			vi.record(m.Value(), m.Dimension())
		}
	}
}

// Data is the point-in-time snapshot of one view: its definition and one
// row per dimension combination observed so far, in first-observation
// order. Rows are deep copies with no references back into the registry.
type Data struct {
	View *View
	Rows []*Row
}

// ReadAll snapshots every registered view in registration order. Each row
// is read under the same lock that serializes recording, so a row always
// reflects a state its accumulator actually passed through; rows of
// different views may reflect slightly different instants.
func (r *Registry) ReadAll() []*Data {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Data, len(r.order))
	for i, vi := range r.order {
		out[i] = &Data{View: vi.def, Rows: vi.snapshot()}
	}
	return out
}
