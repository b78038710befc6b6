// Package postgres provides a PostgreSQL driver for LeapORM.
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	sq "github.com/Masterminds/squirrel"
	_ "github.com/jackc/pgx/v5/stdlib" // pgx database/sql driver

	"github.com/leapstack-labs/leaporm/pkg/driver"
)

// Driver implements the driver.Driver interface for PostgreSQL.
type Driver struct {
	driver.SQLDriver
}

// New creates a new PostgreSQL driver instance.
// If logger is nil, a discard logger is used.
func New(logger *slog.Logger) *Driver {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Driver{
		SQLDriver: driver.SQLDriver{
			Logger: logger,
			Dialect: driver.Dialect{
				Name:          "postgres",
				Placeholder:   sq.Dollar,
				IdentityQuery: "SELECT lastval()",
			},
		},
	}
}

// Connect establishes a connection to PostgreSQL.
func (d *Driver) Connect(ctx context.Context, cfg driver.Config) error {
	dsn := buildDSN(cfg)

	d.Logger.Debug("connecting to postgres", slog.String("host", cfg.Host), slog.String("database", cfg.Database))

	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return fmt.Errorf("failed to open postgres connection: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to ping postgres: %w", err)
	}

	d.DB = db
	return nil
}

// buildDSN constructs a PostgreSQL connection string in key=value form.
func buildDSN(cfg driver.Config) string {
	host := cfg.Host
	if host == "" {
		host = "localhost"
	}

	port := cfg.Port
	if port == 0 {
		port = 5432
	}

	sslmode := "disable"
	if cfg.Options != nil {
		if mode, ok := cfg.Options["sslmode"]; ok {
			sslmode = mode
		}
	}

	dsn := fmt.Sprintf("host=%s port=%d dbname=%s sslmode=%s",
		host, port, cfg.Database, sslmode)

	if cfg.Username != "" {
		dsn += fmt.Sprintf(" user=%s", cfg.Username)
	}
	if cfg.Password != "" {
		dsn += fmt.Sprintf(" password=%s", cfg.Password)
	}

	return dsn
}

// TableMetadata retrieves metadata for a table from information_schema.
// A "schema.table" reference is split; otherwise the public schema is
// assumed.
func (d *Driver) TableMetadata(ctx context.Context, table string) (*driver.TableMetadata, error) {
	if d.DB == nil {
		return nil, fmt.Errorf("database connection not established")
	}

	schema, tableName := splitQualified(table)

	query := `
		SELECT
			column_name,
			data_type,
			is_nullable,
			ordinal_position
		FROM information_schema.columns
		WHERE table_schema = $1 AND table_name = $2
		ORDER BY ordinal_position
	`

	rows, err := d.DB.QueryContext(ctx, query, schema, tableName)
	if err != nil {
		return nil, fmt.Errorf("failed to query column metadata: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var columns []driver.Column
	for rows.Next() {
		var col driver.Column
		var nullable string
		if err := rows.Scan(&col.Name, &col.Type, &nullable, &col.Position); err != nil {
			return nil, fmt.Errorf("failed to scan column metadata: %w", err)
		}
		col.Nullable = nullable == "YES"
		columns = append(columns, col)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating column metadata: %w", err)
	}
	if len(columns) == 0 {
		return nil, fmt.Errorf("table %s not found", table)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM %s.%s", schema, tableName) //nolint:gosec // Table names are validated by caller
	var rowCount int64
	if err := d.DB.QueryRowContext(ctx, countQuery).Scan(&rowCount); err != nil {
		rowCount = 0
	}

	return &driver.TableMetadata{
		Schema:   schema,
		Name:     tableName,
		Columns:  columns,
		RowCount: rowCount,
	}, nil
}

// splitQualified splits a table reference into schema and name.
func splitQualified(table string) (schema, name string) {
	for i := 0; i < len(table); i++ {
		if table[i] == '.' {
			return table[:i], table[i+1:]
		}
	}
	return "public", table
}

// Ensure Driver implements the driver interfaces.
var (
	_ driver.Driver           = (*Driver)(nil)
	_ driver.MetadataProvider = (*Driver)(nil)
)
