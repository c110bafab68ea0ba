package config

import (
	"fmt"
	"time"
)

// DefaultReportingInterval is used when the stats configuration does not
// set one.
const DefaultReportingInterval = 10 * time.Second

// StatsCfg configures the export side of the engine: how often the reader
// snapshots the registry and which exporters are set up.
//
// Example YAML (stats.yaml):
//
//	reportingInterval: 10s
//	flushPerSecond: 2
//	exporters:
//	  log:
//	    level: debug
//	  prometheus:
//	    namespace: statsview
type StatsCfg struct {
	// ReportingInterval is the period between automatic exports.
	ReportingInterval time.Duration `mapstructure:"reportingInterval"`

	// FlushPerSecond caps manual Flush calls; excess calls are rejected
	// rather than queued. Zero means one per second.
	FlushPerSecond int `mapstructure:"flushPerSecond"`

	// Exporters maps exporter factory names to their raw setup payloads.
	Exporters map[string]map[string]any `mapstructure:"exporters"`
}

// GetName implements the Config interface.
func (c *StatsCfg) GetName() string {
	return "stats"
}

// Validate implements the Config interface.
func (c *StatsCfg) Validate() error {
	if c.ReportingInterval < 0 {
		return fmt.Errorf("reportingInterval must not be negative")
	}
	if c.FlushPerSecond < 0 {
		return fmt.Errorf("flushPerSecond must not be negative")
	}
	return nil
}

// Interval returns the configured reporting interval, or the default when
// unset.
func (c *StatsCfg) Interval() time.Duration {
	if c.ReportingInterval <= 0 {
		return DefaultReportingInterval
	}
	return c.ReportingInterval
}
