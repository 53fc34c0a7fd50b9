package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0644))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "data/ppf.db", cfg.Database.Path)
	assert.Equal(t, 2*time.Hour, cfg.Workflow.StaleAfter)
	assert.False(t, cfg.Workflow.EnforcePhotoMinimum)
	assert.True(t, cfg.Realtime.Enabled)
	assert.Equal(t, "/ws", cfg.Realtime.Path)
	assert.Equal(t, "json", cfg.Logger.Format)
}

func TestLoad_File(t *testing.T) {
	path := writeConfig(t, `
server:
  port: 9090
database:
  path: /tmp/ppf-test.db
workflow:
  stale_after: 45m
  enforce_photo_minimum: true
  per_zone_installation: true
realtime:
  enabled: false
  allowed_origins:
    - https://shop.example
logger:
  level: debug
  format: console
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "/tmp/ppf-test.db", cfg.Database.Path)
	assert.Equal(t, 45*time.Minute, cfg.Workflow.StaleAfter)
	assert.True(t, cfg.Workflow.EnforcePhotoMinimum)
	assert.True(t, cfg.Workflow.PerZoneInstallation)
	assert.False(t, cfg.Realtime.Enabled)
	assert.Equal(t, []string{"https://shop.example"}, cfg.Realtime.AllowedOrigins)
	assert.Equal(t, "console", cfg.Logger.Format)

	// untouched keys keep their defaults
	assert.Equal(t, 10*time.Second, cfg.Server.ShutdownTimeout)
}

func TestLoad_EnvOverrides(t *testing.T) {
	path := writeConfig(t, "server:\n  port: 9090\n")

	t.Setenv("PPF_SERVER_PORT", "7070")
	t.Setenv("DATABASE_PATH", "/var/lib/ppf/ppf.db")
	t.Setenv("PPF_WORKFLOW_STALE_AFTER", "10m")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 7070, cfg.Server.Port)
	assert.Equal(t, "/var/lib/ppf/ppf.db", cfg.Database.Path)
	assert.Equal(t, 10*time.Minute, cfg.Workflow.StaleAfter)
}

func TestLoad_InvalidFile(t *testing.T) {
	path := writeConfig(t, "server: [unterminated")
	_, err := Load(path)
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			Server:   ServerConfig{Port: 8080},
			Database: DatabaseConfig{Path: "ppf.db"},
			Realtime: RealtimeConfig{Enabled: true, Path: "/ws"},
			Logger:   LoggerConfig{Format: "json"},
		}
	}

	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{name: "valid", mutate: func(c *Config) {}},
		{name: "port out of range", mutate: func(c *Config) { c.Server.Port = 70000 }, wantErr: "server.port"},
		{name: "missing database path", mutate: func(c *Config) { c.Database.Path = "" }, wantErr: "database.path"},
		{name: "negative pool", mutate: func(c *Config) { c.Database.MaxOpenConns = -1 }, wantErr: "pool sizes"},
		{name: "negative stale window", mutate: func(c *Config) { c.Workflow.StaleAfter = -time.Second }, wantErr: "stale_after"},
		{name: "relative realtime path", mutate: func(c *Config) { c.Realtime.Path = "ws" }, wantErr: "realtime.path"},
		{name: "realtime path ignored when disabled", mutate: func(c *Config) { c.Realtime = RealtimeConfig{} }},
		{name: "unknown log format", mutate: func(c *Config) { c.Logger.Format = "xml" }, wantErr: "logger.format"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}

func TestToContainerConfig(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	cc := cfg.ToContainerConfig()
	require.NoError(t, cc.Validate())
	assert.Equal(t, cfg.Database.Path, cc.Database.Path)
	assert.Equal(t, cfg.Workflow.StaleAfter, cc.Workflow.StaleAfter)
	assert.Equal(t, cfg.Realtime.Path, cc.Realtime.Path)
	assert.Equal(t, cfg.Server.Port, cc.Server.Port)
}
