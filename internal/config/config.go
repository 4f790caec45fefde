package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Workflow WorkflowConfig `mapstructure:"workflow"`
	Budget   BudgetConfig   `mapstructure:"budget"`
	Logger   LoggerConfig   `mapstructure:"logger"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host           string        `mapstructure:"host"`
	Port           int           `mapstructure:"port"`
	ReadTimeout    time.Duration `mapstructure:"read_timeout"`
	WriteTimeout   time.Duration `mapstructure:"write_timeout"`
	AllowedOrigins []string      `mapstructure:"allowed_origins"`
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Path            string        `mapstructure:"path"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	BusyTimeout     time.Duration `mapstructure:"busy_timeout"`
	MaxRetries      int           `mapstructure:"max_retries"`

	// MigrationsDir overrides the embedded migrations when set
	MigrationsDir string `mapstructure:"migrations_dir"`
}

// WorkflowConfig holds deployment-level routing switches
type WorkflowConfig struct {
	UrgentAdminReview bool  `mapstructure:"urgent_admin_review"`
	AdminReviewerID   int64 `mapstructure:"admin_reviewer_id"`
}

// BudgetConfig holds ledger configuration
type BudgetConfig struct {
	BonusResetInterval time.Duration `mapstructure:"bonus_reset_interval"`

	// SystemActorID is the user recorded on automatic bonus resets; 0 disables the worker
	SystemActorID  int64 `mapstructure:"system_actor_id"`
	CurrencyPlaces int32 `mapstructure:"currency_places"`
}

// LoggerConfig holds logger configuration
type LoggerConfig struct {
	Level      string `mapstructure:"level"`
	OutputPath string `mapstructure:"output_path"`
	Format     string `mapstructure:"format"`
}

// EnvPrefix is prepended to every environment override, e.g. TRIPFLOW_DATABASE_PATH
const EnvPrefix = "TRIPFLOW"

// Load loads configuration from file and environment variables.
// An empty configPath uses defaults and environment only.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Set defaults
	setDefaults(v)

	// Read config file
	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// setDefaults sets default configuration values. Every key needs a default so that
// AutomaticEnv can override it during Unmarshal.
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 30*time.Second)
	v.SetDefault("server.write_timeout", 30*time.Second)
	v.SetDefault("server.allowed_origins", []string{"*"})

	// Database defaults
	v.SetDefault("database.path", "data/tripflow.db")
	v.SetDefault("database.max_open_conns", 10)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", 5*time.Minute)
	v.SetDefault("database.busy_timeout", 5*time.Second)
	v.SetDefault("database.max_retries", 3)
	v.SetDefault("database.migrations_dir", "")

	// Workflow defaults
	v.SetDefault("workflow.urgent_admin_review", false)
	v.SetDefault("workflow.admin_reviewer_id", 0)

	// Budget defaults
	v.SetDefault("budget.bonus_reset_interval", 24*time.Hour)
	v.SetDefault("budget.system_actor_id", 0)
	v.SetDefault("budget.currency_places", 2)

	// Logger defaults
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.output_path", "stdout")
	v.SetDefault("logger.format", "json")
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535")
	}

	if c.Database.Path == "" {
		return fmt.Errorf("database.path is required")
	}
	if c.Database.MaxRetries < 0 {
		return fmt.Errorf("database.max_retries must not be negative")
	}

	if c.Workflow.UrgentAdminReview && c.Workflow.AdminReviewerID <= 0 {
		return fmt.Errorf("workflow.admin_reviewer_id is required when urgent_admin_review is on")
	}

	if c.Budget.SystemActorID > 0 && c.Budget.BonusResetInterval <= 0 {
		return fmt.Errorf("budget.bonus_reset_interval must be positive")
	}
	if c.Budget.CurrencyPlaces < 0 || c.Budget.CurrencyPlaces > 6 {
		return fmt.Errorf("budget.currency_places must be between 0 and 6")
	}

	switch c.Logger.Format {
	case "json", "console":
	default:
		return fmt.Errorf("logger.format must be json or console")
	}

	return nil
}
