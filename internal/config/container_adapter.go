package config

import (
	"github.com/rpma/ppf-workflow/internal/container"
)

// ToContainerConfig converts the application Config to a container.Config.
// This provides a bridge between the file-based config loaded by viper
// and the container's configuration structure.
func (c *Config) ToContainerConfig() *container.Config {
	return &container.Config{
		Database: container.DatabaseConfig{
			Path:            c.Database.Path,
			MaxOpenConns:    c.Database.MaxOpenConns,
			MaxIdleConns:    c.Database.MaxIdleConns,
			ConnMaxLifetime: c.Database.ConnMaxLifetime,
		},
		Workflow: container.WorkflowConfig{
			StaleAfter:          c.Workflow.StaleAfter,
			EnforcePhotoMinimum: c.Workflow.EnforcePhotoMinimum,
			PerZoneInstallation: c.Workflow.PerZoneInstallation,
		},
		Realtime: container.RealtimeConfig{
			Enabled:        c.Realtime.Enabled,
			Path:           c.Realtime.Path,
			AllowedOrigins: c.Realtime.AllowedOrigins,
			SendBuffer:     c.Realtime.SendBuffer,
		},
		Server: container.ServerConfig{
			Host:            c.Server.Host,
			Port:            c.Server.Port,
			ReadTimeout:     c.Server.ReadTimeout,
			WriteTimeout:    c.Server.WriteTimeout,
			ShutdownTimeout: c.Server.ShutdownTimeout,
		},
	}
}
