package config

import "sync"

var (
	_instance     *Manager
	_instanceOnce sync.Once
	_instanceMu   sync.Mutex
)

// GetInstance returns the process-wide default manager, creating it with
// default settings on first use. Components that need an isolated manager
// (tests in particular) should use NewManager instead.
func GetInstance() *Manager {
	_instanceMu.Lock()
	defer _instanceMu.Unlock()
	_instanceOnce.Do(func() {
		_instance = NewManager("", nil)
	})
	return _instance
}

// SetInstance replaces the process-wide default manager.
func SetInstance(m *Manager) {
	_instanceMu.Lock()
	defer _instanceMu.Unlock()
	_instanceOnce.Do(func() {})
	_instance = m
}
