// Package container provides dependency injection and lifecycle management
// for the trip approval service.
package container

import (
	"fmt"
	"time"
)

// Config holds all configuration for the Container.
// It aggregates configurations for all subsystems.
type Config struct {
	// Database configuration
	Database DatabaseConfig

	// Server configuration
	Server ServerConfig

	// Workflow routing switches
	Workflow WorkflowConfig

	// Budget ledger configuration
	Budget BudgetConfig
}

// DatabaseConfig holds database connection settings.
type DatabaseConfig struct {
	// Path to SQLite database file
	Path string

	// MaxOpenConns is the maximum number of open connections
	MaxOpenConns int

	// MaxIdleConns is the maximum number of idle connections
	MaxIdleConns int

	// ConnMaxLifetime is the maximum connection lifetime
	ConnMaxLifetime time.Duration

	// BusyTimeout is how long SQLite waits on a locked database
	BusyTimeout time.Duration

	// MaxRetries bounds how often a conflicting transaction is re-run
	MaxRetries int

	// MigrationsDir is the path to migration files; empty uses the embedded set
	MigrationsDir string
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	// Host to bind to
	Host string

	// Port to listen on
	Port int

	// ReadTimeout for HTTP server
	ReadTimeout time.Duration

	// WriteTimeout for HTTP server
	WriteTimeout time.Duration

	// AllowedOrigins for CORS
	AllowedOrigins []string
}

// WorkflowConfig holds step generation settings.
type WorkflowConfig struct {
	UrgentAdminReview bool
	AdminReviewerID   *int64
}

// BudgetConfig holds ledger settings.
type BudgetConfig struct {
	// BonusResetInterval is how often the bonus reset worker runs
	BonusResetInterval time.Duration

	// SystemActorID is recorded on automatic resets; 0 disables the worker
	SystemActorID int64

	// CurrencyPlaces is the number of decimals in exported amounts
	CurrencyPlaces int32
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Database: DatabaseConfig{
			Path:            "data/tripflow.db",
			MaxOpenConns:    10,
			MaxIdleConns:    5,
			ConnMaxLifetime: 5 * time.Minute,
			BusyTimeout:     5 * time.Second,
			MaxRetries:      3,
		},
		Server: ServerConfig{
			Host:           "0.0.0.0",
			Port:           8080,
			ReadTimeout:    30 * time.Second,
			WriteTimeout:   30 * time.Second,
			AllowedOrigins: []string{"*"},
		},
		Budget: BudgetConfig{
			BonusResetInterval: 24 * time.Hour,
			CurrencyPlaces:     2,
		},
	}
}

// Validate checks that required configuration values are present.
func (c *Config) Validate() error {
	if c.Database.Path == "" {
		return fmt.Errorf("database.path is required")
	}

	if c.Workflow.UrgentAdminReview && c.Workflow.AdminReviewerID == nil {
		return fmt.Errorf("workflow.admin_reviewer_id is required when urgent_admin_review is on")
	}

	return nil
}
