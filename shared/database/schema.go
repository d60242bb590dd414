package database

import (
	"embed"
	"fmt"
	"log/slog"

	"github.com/pressly/goose/v3"
)

//go:embed schema/pgsql/*.sql
var embedPgsqlSchema embed.FS

//go:embed schema/sqlite/*.sql
var embedSqliteSchema embed.FS

// ApplySchema applies the embedded schema and seed-data scripts for the
// client's engine, up to the latest version.
func (c *Client) ApplySchema() error {
	var engineDialect string
	var schemaDirectory string

	switch c.engine {
	case EnginePostgres:
		goose.SetBaseFS(embedPgsqlSchema)
		engineDialect = "postgres"
		schemaDirectory = "schema/pgsql"
	case EngineSQLite:
		goose.SetBaseFS(embedSqliteSchema)
		engineDialect = "sqlite3"
		schemaDirectory = "schema/sqlite"
	default:
		return fmt.Errorf("unknown database engine: %q", c.engine)
	}

	if err := goose.SetDialect(engineDialect); err != nil {
		return fmt.Errorf("failed to set goose dialect: %w", err)
	}

	c.logger.Info("Applying database schema",
		slog.String("engine", c.engine),
		slog.String("directory", schemaDirectory),
	)

	if err := goose.Up(c.db.DB, schemaDirectory); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}

	return nil
}
