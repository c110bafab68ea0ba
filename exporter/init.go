package exporter

import (
	"errors"
	"fmt"

	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/lcx/statsview/config"
	"github.com/lcx/statsview/metric"
)

// Init wires the export pipeline from configuration: it loads the "stats"
// config through the manager, sets up every configured exporter (with
// rollback on partial failure), starts the reader loop and registers the
// reader for hot reload. A missing stats.yaml is not an error; the reader
// then runs with defaults and no exporters until some are added.
func Init(cm *config.Manager, p *metric.Producer, logger *zap.Logger) (*Reader, error) {
	if logger != nil {
		// Factories keep their own fallback when the host passes no logger;
		// injecting the nop default would silence the log exporter's output.
		setFactoryLoggers(logger)
	} else {
		logger = zap.NewNop()
	}

	cfg := &config.StatsCfg{}
	if err := cm.LoadConfig(cfg.GetName(), cfg); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("load stats config failed: %w", err)
		}
		logger.Info("no stats config found, using defaults")
		cfg = &config.StatsCfg{}
	}

	r := NewReader(p, Options{
		Interval:       cfg.Interval(),
		FlushPerSecond: cfg.FlushPerSecond,
	}, logger)

	if err := r.setupExporters(cfg.Exporters); err != nil {
		return nil, err
	}

	cm.AddChangeListener(r)
	r.Start()
	logger.Info("stats reader started",
		zap.Duration("interval", cfg.Interval()),
		zap.Int("exporters", len(cfg.Exporters)))
	return r, nil
}
