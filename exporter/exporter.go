// Package exporter drives the export side of statsview: a Reader
// periodically renders the registry through a metric.Producer and hands the
// snapshot to every configured Exporter. Exporter implementations register
// a Factory (usually from an init function, like database drivers) and are
// set up from the stats configuration by name.
package exporter

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/lcx/statsview/metric"
)

// Exporter consumes metric snapshots. Implementations must be safe for
// concurrent use; the engine's only boundary obligation is handing over the
// freshly produced metric list.
type Exporter interface {
	ExportMetrics(ctx context.Context, ms []*metric.Metric) error
}

// Factory builds and manages exporter instances of one kind.
//
// Lifecycle methods:
//   - Setup: create an instance from its raw configuration payload
//   - Destroy: release the instance's resources
//   - Reload: apply a new payload in place; return an error if the change
//     needs a full Destroy+Setup cycle
//
// Factory implementations must be safe for concurrent calls.
type Factory interface {
	// Name returns the factory name used in configuration (e.g. "prometheus").
	Name() string

	Setup(cfg map[string]any) (Exporter, error)

	Destroy(e Exporter) error

	Reload(e Exporter, cfg map[string]any) error
}

// LoggerAware factories receive the engine logger at Init time instead of
// constructing their own. Factories are registered from init functions,
// before any logger exists, so injection has to happen later.
type LoggerAware interface {
	SetLogger(*zap.Logger)
}

var (
	_factoryLock sync.RWMutex
	_factoryMap  = make(map[string]Factory)
)

// RegisterFactory registers an exporter factory by name. Meant to be called
// from init functions of exporter implementation packages.
func RegisterFactory(f Factory) {
	_factoryLock.Lock()
	defer _factoryLock.Unlock()
	_factoryMap[f.Name()] = f
}

// setFactoryLoggers hands the engine logger to every registered factory
// that accepts one.
func setFactoryLoggers(l *zap.Logger) {
	_factoryLock.RLock()
	defer _factoryLock.RUnlock()
	for _, f := range _factoryMap {
		if la, ok := f.(LoggerAware); ok {
			la.SetLogger(l)
		}
	}
}

func getFactory(name string) Factory {
	_factoryLock.RLock()
	defer _factoryLock.RUnlock()
	return _factoryMap[name]
}

// listFactories returns the registered factory names, sorted, for error
// messages.
func listFactories() []string {
	_factoryLock.RLock()
	defer _factoryLock.RUnlock()
	names := make([]string, 0, len(_factoryMap))
	for name := range _factoryMap {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func setupByName(name string, cfg map[string]any) (Exporter, error) {
	f := getFactory(name)
	if f == nil {
		return nil, fmt.Errorf("exporter factory %q not found, available factories: %v",
			name, listFactories())
	}
	e, err := f.Setup(cfg)
	if err != nil {
		return nil, fmt.Errorf("exporter %q setup failed: %w", name, err)
	}
	return e, nil
}
