package view

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/lcx/statsview/stats"
)

var (
	// ErrDuplicateView is returned when a view name is registered twice.
	ErrDuplicateView = errors.New("duplicate view name")

	// ErrInvalidBoundaries is returned when a distribution view is created
	// with missing, empty or non-increasing bucket boundaries.
	ErrInvalidBoundaries = errors.New("invalid distribution boundaries")
)

// View is a named aggregation policy: it binds one measure to one
// aggregation kind and a fixed ordered list of dimension columns that
// partition the aggregation state. The struct is a plain definition;
// all mutable state lives inside the Registry after registration.
type View struct {
	// Name is the registry-wide unique name of the view. It doubles as the
	// exported metric name.
	Name string

	// Description is carried verbatim into the exported metric descriptor.
	Description string

	// Measure is the measure this view aggregates. Required.
	Measure stats.Measure

	// Columns is the ordered list of dimension keys the view partitions by.
	// The order is fixed at creation and reproduced in every export.
	Columns []string

	// Aggregation selects the accumulator algorithm.
	Aggregation AggKind

	// Bounds are the histogram bucket boundaries. Required for
	// AggDistribution, must be strictly increasing; forbidden otherwise.
	Bounds []float64
}

// validate fails fast on malformed definitions so that no partial view is
// ever observable in a registry. Boundaries are never reordered or deduped
// on the caller's behalf.
func (v *View) validate() error {
	if v.Name == "" {
		return fmt.Errorf("view name must not be empty")
	}
	if v.Measure == nil {
		return fmt.Errorf("view %q: measure must not be nil", v.Name)
	}
	switch v.Aggregation {
	case AggSum, AggCount, AggLastValue:
		if len(v.Bounds) > 0 {
			return fmt.Errorf("view %q: bounds are only valid for distribution aggregation", v.Name)
		}
	case AggDistribution:
		if len(v.Bounds) == 0 {
			return fmt.Errorf("view %q: %w: no bounds given", v.Name, ErrInvalidBoundaries)
		}
		for i := 1; i < len(v.Bounds); i++ {
			if v.Bounds[i] <= v.Bounds[i-1] {
				return fmt.Errorf("view %q: %w: bounds not strictly increasing at index %d",
					v.Name, ErrInvalidBoundaries, i)
			}
		}
	default:
		return fmt.Errorf("view %q: unknown aggregation kind %v", v.Name, v.Aggregation)
	}
	for i, c := range v.Columns {
		if c == "" {
			return fmt.Errorf("view %q: column %d must not be empty", v.Name, i)
		}
	}
	return nil
}

// Row is the snapshot of one dimension combination: the label values in
// column order and a deep copy of the accumulator state.
type Row struct {
	Labels []string
	Data   AggregationData
}

// viewInternal owns the mutable per-view state: the mapping from dimension
// combination to its accumulator. rows and order are guarded by mu; order
// preserves first-observation order so repeated snapshots are structurally
// identical when nothing was recorded in between.
type viewInternal struct {
	def   *View
	mu    sync.Mutex
	rows  map[string]*Row
	order []*Row
}

func newViewInternal(def *View) *viewInternal {
	return &viewInternal{
		def:  def,
		rows: make(map[string]*Row),
	}
}

// record applies one measurement value under the dimension combination
// selected by the view's columns. The caller (Registry) guarantees the
// measurement's measure matches the view's measure.
func (vi *viewInternal) record(v float64, d stats.Dimension) {
	labels := make([]string, len(vi.def.Columns))
	for i, c := range vi.def.Columns {
		labels[i] = d.Value(c)
	}
	key := encodeLabels(labels)

	vi.mu.Lock()
	defer vi.mu.Unlock()
	row, ok := vi.rows[key]
	if !ok {
		row = &Row{Labels: labels, Data: newAggregationData(vi.def)}
		vi.rows[key] = row
		vi.order = append(vi.order, row)
	}
	row.Data.addSample(v)
}

// snapshot returns deep copies of all rows in first-observation order.
// Mutating the result never affects future recordings.
func (vi *viewInternal) snapshot() []*Row {
	vi.mu.Lock()
	defer vi.mu.Unlock()
	out := make([]*Row, len(vi.order))
	for i, row := range vi.order {
		out[i] = &Row{
			Labels: append([]string(nil), row.Labels...),
			Data:   row.Data.clone(),
		}
	}
	return out
}

// encodeLabels builds the canonical row key. Values are length-prefixed so
// no separator choice can make distinct tuples collide.
func encodeLabels(labels []string) string {
	var sb strings.Builder
	for _, l := range labels {
		sb.WriteString(strconv.Itoa(len(l)))
		sb.WriteByte(':')
		sb.WriteString(l)
		sb.WriteByte(';')
	}
	return sb.String()
}
