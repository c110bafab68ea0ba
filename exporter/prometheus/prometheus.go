// Package prometheus bridges statsview metric snapshots into a Prometheus
// registry. The Exporter caches the latest snapshot it receives from the
// reader and serves it as const metrics whenever Prometheus scrapes, so the
// pull model on the Prometheus side never touches live registry state.
package prometheus

import (
	"context"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/lcx/statsview/config"
	"github.com/lcx/statsview/exporter"
	"github.com/lcx/statsview/metric"
)

func init() {
	exporter.RegisterFactory(&factory{})
}

// Config is the setup payload of the "prometheus" exporter.
type Config struct {
	// Namespace is prepended to every exported metric name.
	Namespace string `mapstructure:"namespace"`
}

// Exporter implements both exporter.Exporter (push side, fed by the reader)
// and prometheus.Collector (pull side, drained by scrapes).
type Exporter struct {
	logger *zap.Logger

	mu        sync.RWMutex
	namespace string
	snapshot  []*metric.Metric
}

var _ exporter.Exporter = (*Exporter)(nil)
var _ prometheus.Collector = (*Exporter)(nil)

// NewExporter creates an unregistered exporter. logger may be nil. The
// caller registers it with a prometheus.Registerer of its choice; the
// config-driven factory uses the default registerer.
func NewExporter(cfg Config, logger *zap.Logger) *Exporter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Exporter{logger: logger, namespace: cfg.Namespace}
}

// ExportMetrics replaces the cached snapshot served to scrapes.
func (e *Exporter) ExportMetrics(_ context.Context, ms []*metric.Metric) error {
	e.mu.Lock()
	e.snapshot = ms
	e.mu.Unlock()
	return nil
}

// Describe implements prometheus.Collector. The exported set follows the
// registered views, which are not known statically, so the collector is
// intentionally unchecked.
func (e *Exporter) Describe(_ chan<- *prometheus.Desc) {}

// Collect implements prometheus.Collector, rendering the cached snapshot.
func (e *Exporter) Collect(ch chan<- prometheus.Metric) {
	e.mu.RLock()
	snapshot := e.snapshot
	namespace := e.namespace
	e.mu.RUnlock()

	for _, m := range snapshot {
		keys := make([]string, len(m.Descriptor.LabelKeys))
		for i, k := range m.Descriptor.LabelKeys {
			keys[i] = sanitize(k.Key)
		}
		desc := prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "", sanitize(m.Descriptor.Name)),
			m.Descriptor.Description,
			keys,
			nil,
		)
		for _, ts := range m.TimeSeries {
			labels := make([]string, len(ts.LabelValues))
			for i, lv := range ts.LabelValues {
				labels[i] = lv.Value
			}
			pm, err := e.toPromMetric(desc, m.Descriptor.Type, ts.Points[0], labels)
			if err != nil {
				e.logger.Warn("prometheus conversion failed",
					zap.String("metric", m.Descriptor.Name), zap.Error(err))
				continue
			}
			ch <- pm
		}
	}
}

func (e *Exporter) toPromMetric(desc *prometheus.Desc, t metric.Type, p metric.Point, labels []string) (prometheus.Metric, error) {
	if d, ok := p.Value.(*metric.Distribution); ok {
		// Bucket semantics line up: statsview buckets are upper-inclusive,
		// matching Prometheus "le". Counts must be cumulated; the overflow
		// bucket is implied by the total count.
		buckets := make(map[float64]uint64, len(d.BucketOptions.Bounds))
		var cum uint64
		for i, b := range d.BucketOptions.Bounds {
			cum += uint64(d.Buckets[i].Count)
			buckets[b] = cum
		}
		return prometheus.NewConstHistogram(desc, uint64(d.Count), d.Sum, buckets, labels...)
	}

	var value float64
	switch v := p.Value.(type) {
	case int64:
		value = float64(v)
	case float64:
		value = v
	}
	valueType := prometheus.CounterValue
	if t.IsGauge() {
		valueType = prometheus.GaugeValue
	}
	return prometheus.NewConstMetric(desc, valueType, value, labels...)
}

type factory struct {
	mu   sync.Mutex
	base *zap.Logger
}

func (f *factory) Name() string { return "prometheus" }

// SetLogger implements exporter.LoggerAware.
func (f *factory) SetLogger(l *zap.Logger) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.base = l
}

func (f *factory) Setup(v map[string]any) (exporter.Exporter, error) {
	cfg := Config{}
	if err := config.Decode(v, &cfg); err != nil {
		return nil, err
	}
	f.mu.Lock()
	base := f.base
	f.mu.Unlock()
	e := NewExporter(cfg, base)
	if err := prometheus.Register(e); err != nil {
		return nil, err
	}
	return e, nil
}

func (f *factory) Destroy(e exporter.Exporter) error {
	if pe, ok := e.(*Exporter); ok {
		prometheus.Unregister(pe)
	}
	return nil
}

func (f *factory) Reload(e exporter.Exporter, v map[string]any) error {
	pe, ok := e.(*Exporter)
	if !ok {
		return nil
	}
	cfg := Config{}
	if err := config.Decode(v, &cfg); err != nil {
		return err
	}
	pe.mu.Lock()
	pe.namespace = cfg.Namespace
	pe.mu.Unlock()
	return nil
}

// sanitize rewrites a statsview name into a valid Prometheus identifier.
func sanitize(s string) string {
	if s == "" {
		return s
	}
	out := []byte(s)
	for i, c := range out {
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c == '_':
		case c >= '0' && c <= '9':
			if i == 0 {
				out[i] = '_'
			}
		default:
			out[i] = '_'
		}
	}
	if out[0] == '_' {
		return "key" + string(out)
	}
	return string(out)
}
