package metric

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lcx/statsview/stats"
	"github.com/lcx/statsview/view"
)

func TestProducerSumDouble(t *testing.T) {
	m, err := stats.Float64("producer_test/sum_double", "test", "ms")
	require.NoError(t, err)
	r := view.NewRegistry(nil)
	require.NoError(t, r.Register(&view.View{
		Name:        "v1",
		Description: "sum of things",
		Measure:     m,
		Columns:     []string{"k1", "k2"},
		Aggregation: view.AggSum,
	}))

	r.Record(m.M(25).With(stats.Dimension{"k1": "a", "k2": "b"}))

	ms := NewProducer(r).Read()
	require.Len(t, ms, 1)

	d := ms[0].Descriptor
	assert.Equal(t, "v1", d.Name)
	assert.Equal(t, "sum of things", d.Description)
	assert.Equal(t, "ms", d.Unit)
	assert.Equal(t, TypeCumulativeDouble, d.Type)
	assert.Equal(t, []LabelKey{{Key: "k1"}, {Key: "k2"}}, d.LabelKeys)

	require.Len(t, ms[0].TimeSeries, 1)
	ts := ms[0].TimeSeries[0]
	assert.Equal(t, []LabelValue{{Value: "a"}, {Value: "b"}}, ts.LabelValues)
	require.Len(t, ts.Points, 1)
	assert.Equal(t, 25.0, ts.Points[0].Value)
}

func TestProducerCountAccumulates(t *testing.T) {
	m, err := stats.Float64("producer_test/count", "test", "ms")
	require.NoError(t, err)
	r := view.NewRegistry(nil)
	require.NoError(t, r.Register(&view.View{
		Name:        "v1",
		Measure:     m,
		Columns:     []string{"k1", "k2"},
		Aggregation: view.AggCount,
	}))
	p := NewProducer(r)
	dim := stats.Dimension{"k1": "a", "k2": "b"}

	r.Record(m.M(25).With(dim))
	ms := p.Read()
	assert.Equal(t, TypeCumulativeInt64, ms[0].Descriptor.Type)
	assert.Equal(t, int64(1), ms[0].TimeSeries[0].Points[0].Value)

	r.Record(m.M(300).With(dim))
	ms = p.Read()
	require.Len(t, ms[0].TimeSeries, 1)
	assert.Equal(t, int64(2), ms[0].TimeSeries[0].Points[0].Value)
}

func TestProducerDistribution(t *testing.T) {
	m, err := stats.Float64("producer_test/distribution", "test", "ms")
	require.NoError(t, err)
	r := view.NewRegistry(nil)
	require.NoError(t, r.Register(&view.View{
		Name:        "v1",
		Measure:     m,
		Aggregation: view.AggDistribution,
		Bounds:      []float64{2, 4, 6},
	}))

	for _, v := range []float64{1.1, 2.3, 3.2, 4.3, 5.2} {
		r.Record(m.M(v))
	}

	ms := NewProducer(r).Read()
	assert.Equal(t, TypeCumulativeDistribution, ms[0].Descriptor.Type)

	dv, ok := ms[0].TimeSeries[0].Points[0].Value.(*Distribution)
	require.True(t, ok, "distribution point must carry *Distribution")
	assert.Equal(t, int64(5), dv.Count)
	assert.Equal(t, 16.099999999999998, dv.Sum)
	assert.Equal(t, 10.427999999999997, dv.SumOfSquaredDeviation)
	assert.Equal(t, []float64{2, 4, 6}, dv.BucketOptions.Bounds)
	assert.Equal(t, []Bucket{{Count: 1}, {Count: 2}, {Count: 2}, {Count: 0}}, dv.Buckets)
}

func TestProducerTypeMapping(t *testing.T) {
	mf, err := stats.Float64("producer_test/map_f", "test", "1")
	require.NoError(t, err)
	mi, err := stats.Int64("producer_test/map_i", "test", "1")
	require.NoError(t, err)

	tests := []struct {
		name    string
		measure stats.Measure
		agg     view.AggKind
		want    Type
	}{
		{"sum double", mf, view.AggSum, TypeCumulativeDouble},
		{"sum int", mi, view.AggSum, TypeCumulativeInt64},
		{"count double measure", mf, view.AggCount, TypeCumulativeInt64},
		{"count int measure", mi, view.AggCount, TypeCumulativeInt64},
		{"lastvalue double", mf, view.AggLastValue, TypeGaugeDouble},
		{"lastvalue int", mi, view.AggLastValue, TypeGaugeInt64},
		{"distribution double", mf, view.AggDistribution, TypeCumulativeDistribution},
		{"distribution int", mi, view.AggDistribution, TypeCumulativeDistribution},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, descriptorType(tt.agg, tt.measure.Kind()))
		})
	}
}

func TestDescriptorTypePanicsOnUnknownKind(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("expected panic for unmapped aggregation kind")
		}
	}()
	descriptorType(view.AggNone, stats.ValueFloat64)
}

func TestProducerInt64Points(t *testing.T) {
	m, err := stats.Int64("producer_test/int_points", "test", "By")
	require.NoError(t, err)
	r := view.NewRegistry(nil)
	require.NoError(t, r.Register(
		&view.View{Name: "s", Measure: m, Aggregation: view.AggSum},
		&view.View{Name: "l", Measure: m, Aggregation: view.AggLastValue},
	))

	r.Record(m.M(7))
	r.Record(m.M(5))

	ms := NewProducer(r).Read()
	assert.Equal(t, int64(12), ms[0].TimeSeries[0].Points[0].Value)
	assert.Equal(t, int64(5), ms[1].TimeSeries[0].Points[0].Value)
}

func TestProducerReadIsIdempotent(t *testing.T) {
	m, err := stats.Float64("producer_test/idempotent", "test", "ms")
	require.NoError(t, err)
	r := view.NewRegistry(nil)
	require.NoError(t, r.Register(
		&view.View{Name: "s", Measure: m, Columns: []string{"k"}, Aggregation: view.AggSum},
		&view.View{Name: "d", Measure: m, Aggregation: view.AggDistribution, Bounds: []float64{1, 2}},
	))
	r.Record(m.M(0.5).With(stats.Dimension{"k": "x"}))
	r.Record(m.M(1.5).With(stats.Dimension{"k": "y"}))

	p := NewProducer(r)
	first := p.Read()
	second := p.Read()
	assert.Equal(t, first, second)

	// Mutating a snapshot must not leak into the engine.
	first[0].TimeSeries[0].Points[0] = NewDoublePoint(9999)
	third := p.Read()
	assert.Equal(t, second, third)
}

func TestProducerLabelOrderFollowsColumns(t *testing.T) {
	m, err := stats.Float64("producer_test/label_order", "test", "ms")
	require.NoError(t, err)
	r := view.NewRegistry(nil)
	// Columns deliberately not in lexical order; export must not reorder.
	require.NoError(t, r.Register(&view.View{
		Name:        "v",
		Measure:     m,
		Columns:     []string{"z", "a", "m"},
		Aggregation: view.AggLastValue,
	}))

	r.Record(m.M(1).With(stats.Dimension{"a": "2", "m": "3", "z": "1"}))

	ms := NewProducer(r).Read()
	assert.Equal(t, []LabelKey{{Key: "z"}, {Key: "a"}, {Key: "m"}}, ms[0].Descriptor.LabelKeys)
	assert.Equal(t, []LabelValue{{Value: "1"}, {Value: "2"}, {Value: "3"}}, ms[0].TimeSeries[0].LabelValues)
}
