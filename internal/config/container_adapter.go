package config

import (
	"github.com/garyjia/tripflow/internal/container"
)

// ToContainerConfig converts the application Config to a container.Config.
// This provides a bridge between the file-based config loaded by viper
// and the container's configuration structure.
func (c *Config) ToContainerConfig() *container.Config {
	cfg := &container.Config{
		Database: container.DatabaseConfig{
			Path:            c.Database.Path,
			MaxOpenConns:    c.Database.MaxOpenConns,
			MaxIdleConns:    c.Database.MaxIdleConns,
			ConnMaxLifetime: c.Database.ConnMaxLifetime,
			BusyTimeout:     c.Database.BusyTimeout,
			MaxRetries:      c.Database.MaxRetries,
			MigrationsDir:   c.Database.MigrationsDir,
		},
		Server: container.ServerConfig{
			Host:           c.Server.Host,
			Port:           c.Server.Port,
			ReadTimeout:    c.Server.ReadTimeout,
			WriteTimeout:   c.Server.WriteTimeout,
			AllowedOrigins: c.Server.AllowedOrigins,
		},
		Workflow: container.WorkflowConfig{
			UrgentAdminReview: c.Workflow.UrgentAdminReview,
		},
		Budget: container.BudgetConfig{
			BonusResetInterval: c.Budget.BonusResetInterval,
			SystemActorID:      c.Budget.SystemActorID,
			CurrencyPlaces:     c.Budget.CurrencyPlaces,
		},
	}

	if c.Workflow.AdminReviewerID > 0 {
		id := c.Workflow.AdminReviewerID
		cfg.Workflow.AdminReviewerID = &id
	}

	return cfg
}
