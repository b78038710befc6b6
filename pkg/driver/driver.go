// Package driver defines the capability interface that all storage
// backends must implement, the typed error domain for storage failures,
// a factory registry for backend self-registration, and the named
// connection manager.
//
// Concrete backend implementations live in pkg/drivers/ subdirectories.
package driver

import (
	"context"

	sq "github.com/Masterminds/squirrel"

	"github.com/leapstack-labs/leaporm/pkg/core"
	"github.com/leapstack-labs/leaporm/pkg/query"
)

// Driver is the sole abstraction for physical storage. Every operation
// is a blocking call, and every backend failure must surface as a
// *DriverError; raw backend errors never escape a conforming
// implementation. A query or load that matches nothing is a normal
// outcome, never an error.
type Driver interface {
	// Connect establishes the underlying connection.
	Connect(ctx context.Context, cfg Config) error

	// Close releases the underlying connection.
	Close() error

	// Create inserts a new record. The generated identity, if any, is
	// retrieved separately via GeneratedIdentity.
	Create(ctx context.Context, t *core.EntityType, values map[string]any) error

	// GeneratedIdentity reads back an auto-generated identity value,
	// cast to the declared property's semantic type.
	GeneratedIdentity(ctx context.Context, t *core.EntityType, property string) (any, error)

	// Load fetches the current row for an entity's identity. A missing
	// row returns (nil, nil), not an error.
	Load(ctx context.Context, e *core.Entity) (core.Row, error)

	// Update modifies the record with the given identity. A call with
	// zero fields is a no-op success; no empty statement is issued.
	Update(ctx context.Context, t *core.EntityType, identity, values map[string]any) error

	// Delete removes the entity's record.
	Delete(ctx context.Context, e *core.Entity) error

	// Query executes the spec's filters, sort, pagination, and joins.
	// Joins apply before pagination and sorting, so limit/offset bound
	// the joined result set, not the base table alone. When joins are
	// present, bare column references in filters, sort, and the select
	// projection are qualified with the owning table.
	Query(ctx context.Context, spec *query.Spec) ([]core.Row, error)

	// Count, Sum, Average, Min, and Max push aggregates down to the
	// backend using the same filter/join translation as Query, ignoring
	// sort and pagination.
	Count(ctx context.Context, spec *query.Spec) (int64, error)
	Sum(ctx context.Context, spec *query.Spec, column string) (float64, error)
	Average(ctx context.Context, spec *query.Spec, column string) (float64, error)
	Min(ctx context.Context, spec *query.Spec, column string) (float64, error)
	Max(ctx context.Context, spec *query.Spec, column string) (float64, error)
}

// Config holds connection settings for a backend.
type Config struct {
	Type     string            `koanf:"type"`
	Path     string            `koanf:"path"`
	Host     string            `koanf:"host"`
	Port     int               `koanf:"port"`
	Database string            `koanf:"database"`
	Username string            `koanf:"username"`
	Password string            `koanf:"password"`
	Options  map[string]string `koanf:"options"`
}

// Dialect carries the per-backend SQL settings the shared relational
// core needs: the placeholder format and the statement that reads back
// the last auto-generated identity.
type Dialect struct {
	Name          string
	Placeholder   sq.PlaceholderFormat
	IdentityQuery string
}

// Column describes one column of a backend table.
type Column struct {
	Name     string
	Type     string
	Nullable bool
	Position int
}

// TableMetadata holds introspected metadata about a backend table.
type TableMetadata struct {
	Schema   string
	Name     string
	Columns  []Column
	RowCount int64
}

// MetadataProvider is implemented by drivers that can introspect table
// structure. It is a separate capability: the executor never needs it,
// but tooling (the inspect command) does.
type MetadataProvider interface {
	TableMetadata(ctx context.Context, table string) (*TableMetadata, error)
}

// RawQuerier is implemented by drivers that can execute an arbitrary
// statement for tooling, returning the column order alongside the rows.
type RawQuerier interface {
	RawQuery(ctx context.Context, sql string) ([]string, []core.Row, error)
}
