// Package sqlite provides a SQLite driver for LeapORM backed by the
// pure-Go modernc.org/sqlite implementation.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	sq "github.com/Masterminds/squirrel"
	_ "modernc.org/sqlite" // SQLite driver (pure Go)

	"github.com/leapstack-labs/leaporm/pkg/driver"
)

// Driver implements the driver.Driver interface for SQLite.
type Driver struct {
	driver.SQLDriver
}

// New creates a new SQLite driver instance.
// If logger is nil, a discard logger is used.
func New(logger *slog.Logger) *Driver {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Driver{
		SQLDriver: driver.SQLDriver{
			Logger: logger,
			Dialect: driver.Dialect{
				Name:          "sqlite",
				Placeholder:   sq.Question,
				IdentityQuery: "SELECT last_insert_rowid()",
			},
		},
	}
}

// Connect opens the SQLite database at cfg.Path. An empty path opens an
// in-memory database.
func (d *Driver) Connect(ctx context.Context, cfg driver.Config) error {
	path := cfg.Path
	if path == "" {
		path = ":memory:"
	}

	d.Logger.Debug("connecting to sqlite", slog.String("path", path))

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return fmt.Errorf("failed to open sqlite database: %w", err)
	}
	if path == ":memory:" {
		// Each pooled connection would otherwise open its own empty
		// in-memory database.
		db.SetMaxOpenConns(1)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to ping sqlite: %w", err)
	}

	d.DB = db
	return nil
}

// TableMetadata retrieves metadata for a table via PRAGMA table_info.
func (d *Driver) TableMetadata(ctx context.Context, table string) (*driver.TableMetadata, error) {
	if d.DB == nil {
		return nil, fmt.Errorf("database connection not established")
	}

	rows, err := d.DB.QueryContext(ctx, fmt.Sprintf("PRAGMA table_info(%q)", table))
	if err != nil {
		return nil, fmt.Errorf("failed to query table info: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var columns []driver.Column
	for rows.Next() {
		var (
			cid      int
			col      driver.Column
			notNull  int
			dflt     sql.NullString
			pk       int
		)
		if err := rows.Scan(&cid, &col.Name, &col.Type, &notNull, &dflt, &pk); err != nil {
			return nil, fmt.Errorf("failed to scan table info: %w", err)
		}
		col.Nullable = notNull == 0
		col.Position = cid + 1
		columns = append(columns, col)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating table info: %w", err)
	}
	if len(columns) == 0 {
		return nil, fmt.Errorf("table %s not found", table)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM %q", table)
	var rowCount int64
	if err := d.DB.QueryRowContext(ctx, countQuery).Scan(&rowCount); err != nil {
		rowCount = 0
	}

	return &driver.TableMetadata{
		Schema:   "main",
		Name:     table,
		Columns:  columns,
		RowCount: rowCount,
	}, nil
}

// Ensure Driver implements the driver interfaces.
var (
	_ driver.Driver           = (*Driver)(nil)
	_ driver.MetadataProvider = (*Driver)(nil)
)
