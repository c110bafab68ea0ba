// Package view implements the aggregation engine of statsview: a View binds
// one measure to an online aggregation and a fixed list of dimension columns,
// and a Registry routes recorded measurements to every matching View.
package view

// AggKind selects the online aggregation algorithm applied to measurements.
// The set is closed: the metric producer maps every kind exhaustively to an
// export type and treats anything else as a programming error.
type AggKind int

const (
	AggNone         AggKind = iota // no aggregation configured; invalid in a registered view
	AggSum                         // running total of recorded values
	AggCount                       // number of recorded measurements, value ignored
	AggLastValue                   // most recently recorded value wins
	AggDistribution                // histogram plus streaming mean/variance
)

// String returns the kind name used in logs and error messages.
func (k AggKind) String() string {
	switch k {
	case AggNone:
		return "none"
	case AggSum:
		return "sum"
	case AggCount:
		return "count"
	case AggLastValue:
		return "lastvalue"
	case AggDistribution:
		return "distribution"
	default:
		return "unknown"
	}
}

// AggregationData is the accumulator state for one (view, dimension
// combination) pair. Implementations are not safe for concurrent use; the
// owning view serializes addSample and clone under its row lock.
type AggregationData interface {
	addSample(v float64)

	// clone returns a deep copy so snapshots never alias live state.
	clone() AggregationData
}

// SumData keeps the running total of recorded values.
type SumData struct {
	Value float64
}

func (a *SumData) addSample(v float64) { a.Value += v }

func (a *SumData) clone() AggregationData {
	c := *a
	return &c
}

// CountData counts recorded measurements regardless of their value.
type CountData struct {
	Value int64
}

func (a *CountData) addSample(_ float64) { a.Value++ }

func (a *CountData) clone() AggregationData {
	c := *a
	return &c
}

// LastValueData keeps the most recently recorded value. Under concurrent
// recording "last" means whichever addSample acquired the row lock last.
type LastValueData struct {
	Value float64
}

func (a *LastValueData) addSample(v float64) { a.Value = v }

func (a *LastValueData) clone() AggregationData {
	c := *a
	return &c
}

// DistributionData is the histogram accumulator. N bounds partition the real
// line into N+1 intervals (-inf,b0], (b0,b1], ..., (bN-1,+inf); CountPerBucket
// holds one counter per interval. Mean and SumOfSquaredDev follow Welford's
// incremental recurrence so variance streams without buffering samples, and
// the floating-point results are reproducible for a given input order.
type DistributionData struct {
	Count           int64
	Sum             float64
	Mean            float64
	SumOfSquaredDev float64
	CountPerBucket  []int64

	bounds []float64
}

func newDistributionData(bounds []float64) *DistributionData {
	return &DistributionData{
		CountPerBucket: make([]int64, len(bounds)+1),
		bounds:         bounds,
	}
}

// Bounds returns the bucket boundaries the accumulator was created with.
func (a *DistributionData) Bounds() []float64 { return a.bounds }

func (a *DistributionData) addSample(v float64) {
	a.incrementBucket(v)
	a.Count++
	a.Sum += v

	// Welford's recurrence. delta must be taken against the mean before
	// this sample, and the variance term against the mean after it.
	delta := v - a.Mean
	a.Mean += delta / float64(a.Count)
	a.SumOfSquaredDev += delta * (v - a.Mean)
}

func (a *DistributionData) incrementBucket(v float64) {
	for i, b := range a.bounds {
		if v <= b {
			a.CountPerBucket[i]++
			return
		}
	}
	a.CountPerBucket[len(a.bounds)]++
}

func (a *DistributionData) clone() AggregationData {
	c := *a
	c.CountPerBucket = make([]int64, len(a.CountPerBucket))
	copy(c.CountPerBucket, a.CountPerBucket)
	return &c
}

// newAggregationData builds the zero-valued accumulator for a view
// definition. The definition is validated at registration time, so an
// unhandled kind here is unreachable.
func newAggregationData(def *View) AggregationData {
	switch def.Aggregation {
	case AggSum:
		return &SumData{}
	case AggCount:
		return &CountData{}
	case AggLastValue:
		return &LastValueData{}
	case AggDistribution:
		return newDistributionData(def.Bounds)
	default:
		panic("view: no aggregation data for kind " + def.Aggregation.String())
	}
}
