// Package stats defines measures and measurements, the raw inputs of the
// statsview aggregation engine. Instrumented code creates a Measure once at
// setup, then reports Measurements against it; the view package decides how
// those measurements are aggregated.
package stats

import (
	"fmt"
	"sync"
)

// ValueKind describes the numeric domain of a measure.
// It decides the export point type for Sum and LastValue aggregations.
type ValueKind int

const (
	ValueFloat64 ValueKind = iota // double-valued measure
	ValueInt64                    // integer-valued measure
)

// Measure represents a type of metric to be tracked and recorded, such as
// request latency or payload bytes. Each measure is registered process-wide
// by name at creation and is immutable afterwards; measures are never
// deleted.
type Measure interface {
	// Name returns the process-wide unique name of the measure.
	Name() string

	// Description returns the human-readable description of the measure.
	Description() string

	// Unit returns the unit string of the measure (e.g. "ms", "By", "1").
	Unit() string

	// Kind returns the numeric domain of the measure.
	Kind() ValueKind
}

// measure is the single backing implementation; Float64Measure and
// Int64Measure only differ in the kind recorded at construction.
type measure struct {
	name        string
	description string
	unit        string
	kind        ValueKind
}

func (m *measure) Name() string        { return m.name }
func (m *measure) Description() string { return m.description }
func (m *measure) Unit() string        { return m.unit }
func (m *measure) Kind() ValueKind     { return m.kind }

// Float64Measure is a measure for double values.
type Float64Measure struct {
	measure
}

// M creates a measurement carrying value v.
func (m *Float64Measure) M(v float64) Measurement {
	return Measurement{m: m, v: v}
}

// Int64Measure is a measure for integer values.
type Int64Measure struct {
	measure
}

// M creates a measurement carrying value v.
func (m *Int64Measure) M(v int64) Measurement {
	return Measurement{m: m, v: float64(v)}
}

var (
	_measureLock sync.RWMutex
	_measures    = make(map[string]Measure)
)

// Float64 creates and registers a new double-valued measure.
// Returns ErrDuplicateMeasure (wrapped) if the name is already taken;
// on failure the measure registry is left unchanged.
func Float64(name, description, unit string) (*Float64Measure, error) {
	m := &Float64Measure{measure{name: name, description: description, unit: unit, kind: ValueFloat64}}
	if err := registerMeasure(m); err != nil {
		return nil, err
	}
	return m, nil
}

// Int64 creates and registers a new integer-valued measure.
// Returns ErrDuplicateMeasure (wrapped) if the name is already taken;
// on failure the measure registry is left unchanged.
func Int64(name, description, unit string) (*Int64Measure, error) {
	m := &Int64Measure{measure{name: name, description: description, unit: unit, kind: ValueInt64}}
	if err := registerMeasure(m); err != nil {
		return nil, err
	}
	return m, nil
}

// FindMeasure returns the registered measure with the given name, or nil
// if no such measure exists.
func FindMeasure(name string) Measure {
	_measureLock.RLock()
	defer _measureLock.RUnlock()
	return _measures[name]
}

func registerMeasure(m Measure) error {
	if m.Name() == "" {
		return fmt.Errorf("measure name must not be empty")
	}
	_measureLock.Lock()
	defer _measureLock.Unlock()
	if _, ok := _measures[m.Name()]; ok {
		return fmt.Errorf("measure %q: %w", m.Name(), ErrDuplicateMeasure)
	}
	_measures[m.Name()] = m
	return nil
}
