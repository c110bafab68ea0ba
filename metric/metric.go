// Package metric defines the vendor-neutral export representation of
// aggregated view state (descriptor plus timeseries) and the Producer that
// renders registry snapshots into it. Transport to a monitoring backend is
// out of scope; exporters consume the Metric values produced here.
package metric

// Type classifies an exported metric. The value combines the temporal
// semantics (cumulative vs gauge) with the point value domain.
type Type int

const (
	TypeGaugeInt64 Type = iota
	TypeGaugeDouble
	TypeCumulativeInt64
	TypeCumulativeDouble
	TypeCumulativeDistribution
)

// String returns the canonical descriptor type name.
func (t Type) String() string {
	switch t {
	case TypeGaugeInt64:
		return "GAUGE_INT64"
	case TypeGaugeDouble:
		return "GAUGE_DOUBLE"
	case TypeCumulativeInt64:
		return "CUMULATIVE_INT64"
	case TypeCumulativeDouble:
		return "CUMULATIVE_DOUBLE"
	case TypeCumulativeDistribution:
		return "CUMULATIVE_DISTRIBUTION"
	default:
		return "UNKNOWN"
	}
}

// IsGauge reports whether points of this type describe an instantaneous
// value rather than an accumulation.
func (t Type) IsGauge() bool {
	return t == TypeGaugeInt64 || t == TypeGaugeDouble
}

// LabelKey is one dimension column of a descriptor.
type LabelKey struct {
	Key         string
	Description string
}

// LabelValue is one label value of a timeseries, aligned positionally with
// the descriptor's label keys. A column absent from the original
// measurement surfaces as the empty string.
type LabelValue struct {
	Value string
}

// Descriptor identifies an exported metric: name, description and unit come
// from the view and its measure, the label keys are the view's columns in
// declaration order.
type Descriptor struct {
	Name        string
	Description string
	Unit        string
	Type        Type
	LabelKeys   []LabelKey
}

// Point carries one exported value. Value is int64, float64 or
// *Distribution depending on the descriptor type.
type Point struct {
	Value any
}

// NewInt64Point builds an integer point.
func NewInt64Point(v int64) Point { return Point{Value: v} }

// NewDoublePoint builds a double point.
func NewDoublePoint(v float64) Point { return Point{Value: v} }

// NewDistributionPoint builds a distribution point.
func NewDistributionPoint(v *Distribution) Point { return Point{Value: v} }

// Bucket is the population count of one histogram interval.
type Bucket struct {
	Count int64
}

// BucketOptions describes explicit histogram boundaries: N bounds define
// N+1 buckets.
type BucketOptions struct {
	Bounds []float64
}

// Distribution is the structured point value of a distribution timeseries.
type Distribution struct {
	Count                 int64
	Sum                   float64
	SumOfSquaredDeviation float64
	BucketOptions         *BucketOptions
	Buckets               []Bucket
}

// TimeSeries is the export snapshot of one dimension combination: label
// values in descriptor order and, for this engine, exactly one current
// point.
type TimeSeries struct {
	LabelValues []LabelValue
	Points      []Point
}

// Metric is the export snapshot of one view.
type Metric struct {
	Descriptor Descriptor
	TimeSeries []*TimeSeries
}
