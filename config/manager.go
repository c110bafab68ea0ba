package config

import (
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// Manager loads named YAML configurations from a base path, keeps the
// current value of each, and hot-reloads them when the backing file is
// written. A reload that fails to parse or validate is logged and dropped;
// the previous configuration stays in effect.
type Manager struct {
	logger *zap.Logger

	mu        sync.RWMutex
	configs   map[string]Config
	watchers  map[string]*fsnotify.Watcher
	listeners []ChangeListener
	basePath  string
}

// NewManager creates a configuration manager reading from basePath.
// logger may be nil.
func NewManager(basePath string, logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	if basePath == "" {
		basePath = "./configs"
	}
	return &Manager{
		logger:   logger,
		configs:  make(map[string]Config),
		watchers: make(map[string]*fsnotify.Watcher),
		basePath: basePath,
	}
}

// LoadConfig reads the YAML file <basePath>/<name>.yaml into config,
// validates it, stores it under its name and starts watching the file for
// changes. Environment variables prefixed with the upper-cased name
// override file values.
func (m *Manager) LoadConfig(name string, config Config) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	v := viper.New()
	v.SetConfigName(name)
	v.SetConfigType("yaml")
	v.AddConfigPath(m.basePath)

	v.AutomaticEnv()
	v.SetEnvPrefix(strings.ToUpper(name))
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("read config %q failed: %w", name, err)
	}
	if err := v.Unmarshal(config); err != nil {
		return fmt.Errorf("unmarshal config %q failed: %w", name, err)
	}
	if err := config.Validate(); err != nil {
		return fmt.Errorf("validate config %q failed: %w", name, err)
	}

	m.configs[name] = config
	m.notifyLocked(name, config, nil)

	if err := m.watchConfigFile(name, v.ConfigFileUsed()); err != nil {
		return fmt.Errorf("watch config %q failed: %w", name, err)
	}
	return nil
}

// GetConfig returns the current value of a loaded configuration.
func (m *Manager) GetConfig(name string) (Config, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	config, ok := m.configs[name]
	if !ok {
		return nil, fmt.Errorf("config %q not found", name)
	}
	return config, nil
}

// AddChangeListener registers a listener notified on every successful load
// and reload, in registration order.
func (m *Manager) AddChangeListener(l ChangeListener) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listeners = append(m.listeners, l)
}

// Close stops all file watchers.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for name, w := range m.watchers {
		if err := w.Close(); err != nil {
			return fmt.Errorf("close watcher for %q failed: %w", name, err)
		}
	}
	m.watchers = make(map[string]*fsnotify.Watcher)
	return nil
}

func (m *Manager) watchConfigFile(name, file string) error {
	if file == "" {
		return nil
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	m.watchers[name] = watcher

	go func() {
		for {
			select {
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if event.Op&fsnotify.Write == fsnotify.Write {
					m.reloadConfig(name)
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				m.logger.Warn("config watcher error", zap.String("config", name), zap.Error(err))
			}
		}
	}()

	return watcher.Add(file)
}

// reloadConfig re-reads a watched configuration. Any failure keeps the old
// value; a listener returning an error vetoes the whole change.
func (m *Manager) reloadConfig(name string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	oldConfig, ok := m.configs[name]
	if !ok {
		return
	}

	// New instance of the same concrete type, so listeners can compare
	// old and new without aliasing.
	newConfig := reflect.New(reflect.TypeOf(oldConfig).Elem()).Interface().(Config)

	v := viper.New()
	v.SetConfigName(name)
	v.SetConfigType("yaml")
	v.AddConfigPath(m.basePath)

	if err := v.ReadInConfig(); err != nil {
		m.logger.Warn("config reload read failed, keeping old config",
			zap.String("config", name), zap.Error(err))
		return
	}
	if err := v.Unmarshal(newConfig); err != nil {
		m.logger.Warn("config reload unmarshal failed, keeping old config",
			zap.String("config", name), zap.Error(err))
		return
	}
	if err := newConfig.Validate(); err != nil {
		m.logger.Warn("config reload validation failed, keeping old config",
			zap.String("config", name), zap.Error(err))
		return
	}

	if !m.notifyLocked(name, newConfig, oldConfig) {
		return
	}

	m.configs[name] = newConfig
	m.logger.Info("config reloaded", zap.String("config", name))
}

// notifyLocked runs all listeners and reports whether the change was
// accepted. Callers hold m.mu.
func (m *Manager) notifyLocked(name string, newConfig, oldConfig Config) bool {
	for _, l := range m.listeners {
		if err := l.OnConfigChanged(name, newConfig, oldConfig); err != nil {
			m.logger.Warn("config change rejected by listener, keeping old config",
				zap.String("config", name), zap.Error(err))
			return false
		}
	}
	return true
}
