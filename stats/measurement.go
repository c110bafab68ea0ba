package stats

import "errors"

// ErrDuplicateMeasure is returned when a measure name is registered twice.
var ErrDuplicateMeasure = errors.New("duplicate measure name")

// Dimension carries the key-value context recorded alongside a measurement,
// such as server name, region or version. Views partition their aggregation
// state by a declared subset of dimension keys.
type Dimension map[string]string

// Value returns the value for key k, or the empty string when the key was
// not recorded. Views rely on this: a column declared by a view but absent
// from a measurement is never an error, it aggregates under the empty label.
func (d Dimension) Value(k string) string {
	if d == nil {
		return ""
	}
	return d[k]
}

// Measurement is an immutable (measure, value, dimension) triple submitted
// by instrumented code. Integer measures are carried as float64 internally;
// the export layer restores the integer domain from the measure's kind.
type Measurement struct {
	m Measure
	v float64
	d Dimension
}

// With returns a copy of the measurement tagged with the given dimension.
// The dimension is referenced, not copied; callers must not mutate it after
// recording.
func (m Measurement) With(d Dimension) Measurement {
	m.d = d
	return m
}

// Measure returns the measure this measurement was produced from.
func (m Measurement) Measure() Measure { return m.m }

// Value returns the recorded numeric value.
func (m Measurement) Value() float64 { return m.v }

// Dimension returns the recorded context, possibly nil.
func (m Measurement) Dimension() Dimension { return m.d }
