package exporter

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/lcx/statsview/config"
	"github.com/lcx/statsview/metric"
)

func init() {
	RegisterFactory(&logFactory{})
}

// logExporterCfg is the setup payload of the "log" exporter.
type logExporterCfg struct {
	// Level is the zap level metric lines are written at. Defaults to debug.
	Level string `mapstructure:"level"`
}

// logExporter writes every timeseries as one structured log line. Intended
// for development and tests; it is the cheapest way to see what the engine
// aggregates without a backend.
type logExporter struct {
	logger *zap.Logger
	level  zapcore.Level
}

func (e *logExporter) ExportMetrics(_ context.Context, ms []*metric.Metric) error {
	for _, m := range ms {
		for _, ts := range m.TimeSeries {
			labels := make([]string, len(ts.LabelValues))
			for i, lv := range ts.LabelValues {
				labels[i] = lv.Value
			}
			e.logger.Log(e.level, "metric",
				zap.String("name", m.Descriptor.Name),
				zap.Stringer("type", m.Descriptor.Type),
				zap.String("unit", m.Descriptor.Unit),
				zap.Strings("labels", labels),
				zap.Any("value", ts.Points[0].Value))
		}
	}
	return nil
}

type logFactory struct {
	mu   sync.Mutex
	base *zap.Logger
}

func (f *logFactory) Name() string { return "log" }

// SetLogger implements LoggerAware; instances created afterwards write
// through the injected logger.
func (f *logFactory) SetLogger(l *zap.Logger) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.base = l
}

func (f *logFactory) Setup(v map[string]any) (Exporter, error) {
	cfg := &logExporterCfg{}
	if err := config.Decode(v, cfg); err != nil {
		return nil, err
	}
	level := zapcore.DebugLevel
	if cfg.Level != "" {
		var err error
		level, err = zapcore.ParseLevel(cfg.Level)
		if err != nil {
			return nil, fmt.Errorf("log exporter: %w", err)
		}
	}
	f.mu.Lock()
	base := f.base
	f.mu.Unlock()
	if base == nil {
		var err error
		base, err = zap.NewProduction()
		if err != nil {
			return nil, err
		}
	}
	return &logExporter{logger: base, level: level}, nil
}

func (f *logFactory) Destroy(e Exporter) error {
	if le, ok := e.(*logExporter); ok {
		// Sync flushes buffered lines; stderr may legitimately refuse.
		_ = le.logger.Sync()
	}
	return nil
}

func (f *logFactory) Reload(e Exporter, v map[string]any) error {
	le, ok := e.(*logExporter)
	if !ok {
		return fmt.Errorf("log exporter: unexpected instance type %T", e)
	}
	cfg := &logExporterCfg{}
	if err := config.Decode(v, cfg); err != nil {
		return err
	}
	if cfg.Level == "" {
		le.level = zapcore.DebugLevel
		return nil
	}
	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return err
	}
	le.level = level
	return nil
}
