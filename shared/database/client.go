package database

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"

	_ "github.com/glebarez/go-sqlite"
	_ "github.com/lib/pq"
)

// Supported database engines
const (
	EnginePostgres = "postgres"
	EngineSQLite   = "sqlite"
)

func init() {
	// glebarez/go-sqlite registers itself as "sqlite", which sqlx does not
	// know a bindvar style for. All queries in this repo use ? placeholders
	// and are rebound per engine.
	sqlx.BindDriver("sqlite", sqlx.QUESTION)
}

// Config holds database connection configuration for either engine
type Config struct {
	Engine string

	// Postgres settings
	Host            string
	Port            int
	User            string
	Password        string
	Database        string
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration

	// SQLite settings
	File string
}

// Client represents a database client for one of the supported engines
type Client struct {
	db     *sqlx.DB
	engine string
	config *Config
	logger *slog.Logger
}

// NewClient connects to the configured database engine and verifies the connection
func NewClient(config *Config, logger *slog.Logger) (*Client, error) {
	var db *sqlx.DB
	var err error

	switch config.Engine {
	case EnginePostgres:
		dsn := fmt.Sprintf(
			"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
			config.Host,
			config.Port,
			config.User,
			config.Password,
			config.Database,
			config.SSLMode,
		)

		logger.Info("Connecting to PostgreSQL",
			slog.String("host", config.Host),
			slog.Int("port", config.Port),
			slog.String("database", config.Database),
		)

		db, err = sqlx.Connect("postgres", dsn)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to PostgreSQL: %w", err)
		}

		db.SetMaxOpenConns(config.MaxOpenConns)
		db.SetMaxIdleConns(config.MaxIdleConns)
		db.SetConnMaxLifetime(config.ConnMaxLifetime)
		db.SetConnMaxIdleTime(config.ConnMaxIdleTime)

	case EngineSQLite:
		logger.Info("Opening SQLite database",
			slog.String("file", config.File),
		)

		db, err = sqlx.Connect("sqlite", config.File)
		if err != nil {
			return nil, fmt.Errorf("failed to open SQLite database: %w", err)
		}

		// A single connection keeps in-memory databases coherent and
		// serializes writers the way SQLite expects.
		db.SetMaxOpenConns(1)

		// SQLite leaves foreign keys off per connection; the snapshot
		// family relies on ON DELETE CASCADE.
		if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
		}

	default:
		return nil, fmt.Errorf("unknown database engine: %q", config.Engine)
	}

	// Verify connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	client := &Client{
		db:     db,
		engine: config.Engine,
		config: config,
		logger: logger,
	}

	logger.Info("Database connection established",
		slog.String("engine", config.Engine),
	)

	return client, nil
}

// GetDB returns the underlying sqlx.DB instance
func (c *Client) GetDB() *sqlx.DB {
	return c.db
}

// Engine returns the engine this client was configured with
func (c *Client) Engine() string {
	return c.engine
}

// Rebind converts ?-style placeholders to the engine's bindvar style
func (c *Client) Rebind(query string) string {
	return c.db.Rebind(query)
}

// Close closes the database connection
func (c *Client) Close() error {
	c.logger.Info("Closing database connection",
		slog.String("engine", c.engine),
	)

	if c.db != nil {
		if err := c.db.Close(); err != nil {
			c.logger.Error("Failed to close database connection",
				slog.Any("error", err),
			)
			return err
		}
	}

	return nil
}

// Ping checks the database connection
func (c *Client) Ping(ctx context.Context) error {
	return c.db.PingContext(ctx)
}

// BeginTx starts a new transaction
func (c *Client) BeginTx(ctx context.Context) (*sqlx.Tx, error) {
	tx, err := c.db.BeginTxx(ctx, nil)
	if err != nil {
		c.logger.Error("Failed to begin transaction",
			slog.Any("error", err),
		)
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	return tx, nil
}

// GetContext executes a query and scans a single row into dest
func (c *Client) GetContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error {
	err := c.db.GetContext(ctx, dest, query, args...)
	if err != nil {
		c.logger.Error("Failed to get row",
			slog.Any("error", err),
			slog.String("query", query),
		)
		return fmt.Errorf("failed to get row: %w", err)
	}
	return nil
}

// SelectContext executes a query and scans multiple rows into dest
func (c *Client) SelectContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error {
	err := c.db.SelectContext(ctx, dest, query, args...)
	if err != nil {
		c.logger.Error("Failed to select rows",
			slog.Any("error", err),
			slog.String("query", query),
		)
		return fmt.Errorf("failed to select rows: %w", err)
	}
	return nil
}

// ExecContext executes a query without returning any rows
func (c *Client) ExecContext(ctx context.Context, query string, args ...interface{}) error {
	_, err := c.db.ExecContext(ctx, query, args...)
	if err != nil {
		c.logger.Error("Failed to execute query",
			slog.Any("error", err),
			slog.String("query", query),
		)
		return fmt.Errorf("failed to execute query: %w", err)
	}
	return nil
}
