package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	// MinPort is the minimum valid port number
	MinPort = 1
	// MaxPort is the maximum valid port number
	MaxPort = 65535
)

// Database engine identifiers
const (
	EnginePostgres = "postgres"
	EngineSQLite   = "sqlite"
)

// Config represents the complete application configuration
type Config struct {
	App      AppConfig      `yaml:"app"`
	Database DatabaseConfig `yaml:"database"`
	Logging  LoggingConfig  `yaml:"logging"`
	Audit    AuditConfig    `yaml:"audit"`
	Notify   NotifyConfig   `yaml:"notify"`
}

// AppConfig holds application metadata
type AppConfig struct {
	Name        string `yaml:"name"`
	Version     string `yaml:"version"`
	Environment string `yaml:"environment"`
}

// DatabaseConfig selects the database engine and holds per-engine settings
type DatabaseConfig struct {
	Engine   string         `yaml:"engine"`
	Postgres PostgresConfig `yaml:"postgres"`
	SQLite   SQLiteConfig   `yaml:"sqlite"`
}

// PostgresConfig holds PostgreSQL connection configuration
type PostgresConfig struct {
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	User            string        `yaml:"user"`
	Password        string        `yaml:"password"`
	Database        string        `yaml:"database"`
	SSLMode         string        `yaml:"sslmode"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `yaml:"conn_max_idle_time"`
}

// SQLiteConfig holds SQLite database configuration
type SQLiteConfig struct {
	File string `yaml:"file"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level        string `yaml:"level"`
	Format       string `yaml:"format"`
	Output       string `yaml:"output"`
	EnableCaller bool   `yaml:"enable_caller"`
}

// AuditConfig holds the audit trail settings. Every major action appends one
// line to File, tagged with the invoking OS user or DefaultUser as fallback.
type AuditConfig struct {
	File        string `yaml:"file"`
	DefaultUser string `yaml:"default_user"`
}

// NotifyConfig holds the optional run-summary notification settings
type NotifyConfig struct {
	Enabled  bool           `yaml:"enabled"`
	RabbitMQ RabbitMQConfig `yaml:"rabbitmq"`
}

// RabbitMQConfig holds RabbitMQ connection and exchange configuration
type RabbitMQConfig struct {
	Host              string        `yaml:"host"`
	Port              int           `yaml:"port"`
	User              string        `yaml:"user"`
	Password          string        `yaml:"password"`
	VHost             string        `yaml:"vhost"`
	Exchange          string        `yaml:"exchange"`
	RoutingKey        string        `yaml:"routing_key"`
	RetryAttempts     int           `yaml:"retry_attempts"`
	RetryInterval     time.Duration `yaml:"retry_interval"`
	Heartbeat         time.Duration `yaml:"heartbeat"`
	ConnectionTimeout time.Duration `yaml:"connection_timeout"`
}

// Load reads and parses the configuration file
func Load(configPath string) (*Config, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return &config, nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	switch c.Database.Engine {
	case EnginePostgres:
		if c.Database.Postgres.Host == "" {
			return fmt.Errorf("database host is required")
		}
		if c.Database.Postgres.Port < MinPort || c.Database.Postgres.Port > MaxPort {
			return fmt.Errorf("invalid database port: %d (must be between %d and %d)", c.Database.Postgres.Port, MinPort, MaxPort)
		}
		if c.Database.Postgres.Database == "" {
			return fmt.Errorf("database name is required")
		}
	case EngineSQLite:
		if c.Database.SQLite.File == "" {
			return fmt.Errorf("sqlite database file is required")
		}
	default:
		return fmt.Errorf("invalid database engine: %q (must be %q or %q)", c.Database.Engine, EnginePostgres, EngineSQLite)
	}

	if c.Audit.File == "" {
		return fmt.Errorf("audit log file is required")
	}

	if c.Notify.Enabled {
		if c.Notify.RabbitMQ.Host == "" {
			return fmt.Errorf("rabbitmq host is required when notifications are enabled")
		}
		if c.Notify.RabbitMQ.Port < MinPort || c.Notify.RabbitMQ.Port > MaxPort {
			return fmt.Errorf("invalid rabbitmq port: %d (must be between %d and %d)", c.Notify.RabbitMQ.Port, MinPort, MaxPort)
		}
		if c.Notify.RabbitMQ.Exchange == "" {
			return fmt.Errorf("rabbitmq exchange name is required when notifications are enabled")
		}
	}

	return nil
}
