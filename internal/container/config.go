// Package container provides dependency injection and lifecycle management
// for the PPF intervention workflow service.
package container

import (
	"fmt"
	"time"
)

// Config holds all configuration for the Container.
// It aggregates configurations for all subsystems.
type Config struct {
	Database DatabaseConfig
	Workflow WorkflowConfig
	Realtime RealtimeConfig
	Server   ServerConfig
}

// DatabaseConfig holds database connection settings.
type DatabaseConfig struct {
	// Path to SQLite database file
	Path string

	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration

	// SkipMigrations leaves the schema untouched on start
	SkipMigrations bool
}

// WorkflowConfig holds engine and guard settings.
type WorkflowConfig struct {
	StaleAfter          time.Duration
	EnforcePhotoMinimum bool
	PerZoneInstallation bool
}

// RealtimeConfig holds websocket hub settings.
type RealtimeConfig struct {
	Enabled        bool
	Path           string
	AllowedOrigins []string
	SendBuffer     int
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host            string
	Port            int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Database: DatabaseConfig{
			Path:            "data/ppf.db",
			MaxOpenConns:    10,
			MaxIdleConns:    5,
			ConnMaxLifetime: 5 * time.Minute,
		},
		Workflow: WorkflowConfig{
			StaleAfter: 2 * time.Hour,
		},
		Realtime: RealtimeConfig{
			Enabled:    true,
			Path:       "/ws",
			SendBuffer: 64,
		},
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8080,
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 10 * time.Second,
		},
	}
}

// Validate checks that required configuration values are present.
func (c *Config) Validate() error {
	if c.Database.Path == "" {
		return fmt.Errorf("database.path is required")
	}
	if c.Workflow.StaleAfter < 0 {
		return fmt.Errorf("workflow.stale_after must not be negative")
	}
	if c.Realtime.Enabled && c.Realtime.Path == "" {
		return fmt.Errorf("realtime.path is required when realtime is enabled")
	}
	return nil
}
