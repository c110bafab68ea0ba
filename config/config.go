// Package config loads and watches the YAML configuration of the statsview
// engine. Configurations are plain structs implementing Config; the Manager
// validates on load, watches the backing file and notifies registered
// listeners on change, keeping the previous value whenever a reload fails.
package config

import (
	"github.com/go-viper/mapstructure/v2"
)

// Config interface defines the basic configuration contract.
type Config interface {
	GetName() string
	Validate() error
}

// ChangeListener receives notifications after a configuration was reloaded
// and validated. oldConfig is nil on first load. Returning an error vetoes
// the change; the manager then keeps the old configuration.
type ChangeListener interface {
	OnConfigChanged(configName string, newConfig, oldConfig Config) error
}

// Decode maps a raw configuration payload (map[string]any, as handed to
// exporter factories) onto a typed struct using mapstructure tags.
func Decode(v map[string]any, out any) error {
	return mapstructure.Decode(v, out)
}
