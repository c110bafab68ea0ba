package metric

import (
	"fmt"

	"github.com/lcx/statsview/stats"
	"github.com/lcx/statsview/view"
)

// Producer translates registry snapshots into export-ready metrics. It
// holds no state of its own: every Read builds fresh values from a fresh
// snapshot, so reading twice without intervening recordings yields
// structurally identical results.
type Producer struct {
	reg *view.Registry
}

// NewProducer creates a producer over the given registry.
func NewProducer(reg *view.Registry) *Producer {
	return &Producer{reg: reg}
}

// Read renders one Metric per registered view, in registration order, each
// carrying one timeseries per dimension combination observed so far.
func (p *Producer) Read() []*Metric {
	data := p.reg.ReadAll()
	out := make([]*Metric, len(data))
	for i, d := range data {
		out[i] = toMetric(d)
	}
	return out
}

func toMetric(d *view.Data) *Metric {
	def := d.View
	keys := make([]LabelKey, len(def.Columns))
	for i, c := range def.Columns {
		keys[i] = LabelKey{Key: c}
	}
	m := &Metric{
		Descriptor: Descriptor{
			Name:        def.Name,
			Description: def.Description,
			Unit:        def.Measure.Unit(),
			Type:        descriptorType(def.Aggregation, def.Measure.Kind()),
			LabelKeys:   keys,
		},
		TimeSeries: make([]*TimeSeries, 0, len(d.Rows)),
	}
	for _, row := range d.Rows {
		values := make([]LabelValue, len(row.Labels))
		for i, l := range row.Labels {
			values[i] = LabelValue{Value: l}
		}
		m.TimeSeries = append(m.TimeSeries, &TimeSeries{
			LabelValues: values,
			Points:      []Point{toPoint(def.Measure.Kind(), row.Data)},
		})
	}
	return m
}

// descriptorType maps an aggregation kind and measure kind to the export
// type. The mapping is total over the defined kinds; anything else reaching
// this point is an internal invariant violation, and defaulting would
// silently corrupt downstream metrics, so it panics.
func descriptorType(agg view.AggKind, kind stats.ValueKind) Type {
	switch agg {
	case view.AggSum:
		if kind == stats.ValueInt64 {
			return TypeCumulativeInt64
		}
		return TypeCumulativeDouble
	case view.AggCount:
		// Counts are integral regardless of the measure kind.
		return TypeCumulativeInt64
	case view.AggLastValue:
		if kind == stats.ValueInt64 {
			return TypeGaugeInt64
		}
		return TypeGaugeDouble
	case view.AggDistribution:
		return TypeCumulativeDistribution
	default:
		panic(fmt.Sprintf("metric: no descriptor type for aggregation kind %v", agg))
	}
}

// toPoint renders one accumulator snapshot as a point matching the
// descriptor type produced by descriptorType.
func toPoint(kind stats.ValueKind, data view.AggregationData) Point {
	switch a := data.(type) {
	case *view.SumData:
		if kind == stats.ValueInt64 {
			return NewInt64Point(int64(a.Value))
		}
		return NewDoublePoint(a.Value)
	case *view.CountData:
		return NewInt64Point(a.Value)
	case *view.LastValueData:
		if kind == stats.ValueInt64 {
			return NewInt64Point(int64(a.Value))
		}
		return NewDoublePoint(a.Value)
	case *view.DistributionData:
		bounds := append([]float64(nil), a.Bounds()...)
		buckets := make([]Bucket, len(a.CountPerBucket))
		for i, c := range a.CountPerBucket {
			buckets[i] = Bucket{Count: c}
		}
		return NewDistributionPoint(&Distribution{
			Count:                 a.Count,
			Sum:                   a.Sum,
			SumOfSquaredDeviation: a.SumOfSquaredDev,
			BucketOptions:         &BucketOptions{Bounds: bounds},
			Buckets:               buckets,
		})
	default:
		panic(fmt.Sprintf("metric: no point conversion for aggregation data %T", data))
	}
}
