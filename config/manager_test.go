package config

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ServerCfg is a minimal configuration used to exercise the manager.
type ServerCfg struct {
	Name string `mapstructure:"name"`
	Port int    `mapstructure:"port"`
}

func (c *ServerCfg) GetName() string { return "server" }

func (c *ServerCfg) Validate() error {
	if c.Name == "" {
		return fmt.Errorf("name cannot be empty")
	}
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535")
	}
	return nil
}

func writeConfigFile(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
}

func TestManagerLoadConfig(t *testing.T) {
	dir := t.TempDir()
	writeConfigFile(t, dir, "server.yaml", "name: api\nport: 8080\n")

	m := NewManager(dir, nil)
	defer m.Close()

	cfg := &ServerCfg{}
	require.NoError(t, m.LoadConfig("server", cfg))
	assert.Equal(t, "api", cfg.Name)
	assert.Equal(t, 8080, cfg.Port)

	got, err := m.GetConfig("server")
	require.NoError(t, err)
	assert.Same(t, cfg, got)
}

func TestManagerLoadConfigMissingFile(t *testing.T) {
	m := NewManager(t.TempDir(), nil)
	defer m.Close()
	err := m.LoadConfig("server", &ServerCfg{})
	assert.Error(t, err)
}

func TestManagerLoadConfigValidation(t *testing.T) {
	dir := t.TempDir()
	writeConfigFile(t, dir, "server.yaml", "name: api\nport: -1\n")

	m := NewManager(dir, nil)
	defer m.Close()
	err := m.LoadConfig("server", &ServerCfg{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "port")
}

func TestManagerGetConfigUnknown(t *testing.T) {
	m := NewManager(t.TempDir(), nil)
	defer m.Close()
	_, err := m.GetConfig("nothing")
	assert.Error(t, err)
}

type recordingListener struct {
	ch chan Config
}

func (l *recordingListener) OnConfigChanged(name string, newConfig, oldConfig Config) error {
	if oldConfig == nil {
		// First load; only reloads are interesting here.
		return nil
	}
	select {
	case l.ch <- newConfig:
	default:
	}
	return nil
}

func TestManagerHotReload(t *testing.T) {
	dir := t.TempDir()
	writeConfigFile(t, dir, "server.yaml", "name: api\nport: 8080\n")

	m := NewManager(dir, nil)
	defer m.Close()

	listener := &recordingListener{ch: make(chan Config, 1)}
	m.AddChangeListener(listener)
	require.NoError(t, m.LoadConfig("server", &ServerCfg{}))

	writeConfigFile(t, dir, "server.yaml", "name: api\nport: 9090\n")

	select {
	case cfg := <-listener.ch:
		assert.Equal(t, 9090, cfg.(*ServerCfg).Port)
	case <-time.After(3 * time.Second):
		t.Fatal("reload notification never arrived")
	}

	got, err := m.GetConfig("server")
	require.NoError(t, err)
	assert.Equal(t, 9090, got.(*ServerCfg).Port)
}

func TestManagerReloadKeepsOldConfigOnInvalid(t *testing.T) {
	dir := t.TempDir()
	writeConfigFile(t, dir, "server.yaml", "name: api\nport: 8080\n")

	m := NewManager(dir, nil)
	defer m.Close()
	require.NoError(t, m.LoadConfig("server", &ServerCfg{}))

	writeConfigFile(t, dir, "server.yaml", "name: api\nport: -5\n")

	// The invalid write must never replace the stored config. There is no
	// positive signal for a rejected reload, so poll briefly.
	deadline := time.After(2 * time.Second)
	for {
		got, err := m.GetConfig("server")
		require.NoError(t, err)
		assert.Equal(t, 8080, got.(*ServerCfg).Port)
		select {
		case <-deadline:
			return
		case <-time.After(100 * time.Millisecond):
		}
	}
}

func TestDecode(t *testing.T) {
	out := &ServerCfg{}
	require.NoError(t, Decode(map[string]any{"name": "api", "port": 8080}, out))
	assert.Equal(t, "api", out.Name)
	assert.Equal(t, 8080, out.Port)
}

func TestStatsCfg(t *testing.T) {
	cfg := &StatsCfg{}
	assert.Equal(t, "stats", cfg.GetName())
	require.NoError(t, cfg.Validate())
	assert.Equal(t, DefaultReportingInterval, cfg.Interval())

	cfg.ReportingInterval = 5 * time.Second
	assert.Equal(t, 5*time.Second, cfg.Interval())

	cfg.ReportingInterval = -1
	assert.Error(t, cfg.Validate())

	cfg.ReportingInterval = 0
	cfg.FlushPerSecond = -1
	assert.Error(t, cfg.Validate())
}

func TestStatsCfgFromYAML(t *testing.T) {
	dir := t.TempDir()
	writeConfigFile(t, dir, "stats.yaml", `
reportingInterval: 15s
flushPerSecond: 2
exporters:
  log:
    level: info
  prometheus:
    namespace: sv
`)

	m := NewManager(dir, nil)
	defer m.Close()

	cfg := &StatsCfg{}
	require.NoError(t, m.LoadConfig("stats", cfg))
	assert.Equal(t, 15*time.Second, cfg.ReportingInterval)
	assert.Equal(t, 2, cfg.FlushPerSecond)
	require.Contains(t, cfg.Exporters, "log")
	assert.Equal(t, "info", cfg.Exporters["log"]["level"])
	assert.Equal(t, "sv", cfg.Exporters["prometheus"]["namespace"])
}

func TestGetInstanceSingleton(t *testing.T) {
	i1 := GetInstance()
	i2 := GetInstance()
	if i1 != i2 {
		t.Error("GetInstance must return the same manager")
	}
}
