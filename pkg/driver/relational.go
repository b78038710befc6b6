package driver

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"

	sq "github.com/Masterminds/squirrel"

	"github.com/leapstack-labs/leaporm/pkg/core"
	"github.com/leapstack-labs/leaporm/pkg/query"
)

// SQLDriver provides the shared relational implementation of the Driver
// contract over database/sql. Embed it in concrete drivers and set DB
// and Dialect in Connect; everything else (spec translation, column
// qualification, aggregate pushdown, error wrapping) is common.
type SQLDriver struct {
	DB      *sql.DB
	Dialect Dialect
	Logger  *slog.Logger
}

// Close closes the database connection.
func (d *SQLDriver) Close() error {
	if d.DB != nil {
		if d.Logger != nil {
			d.Logger.Debug("closing database connection")
		}
		return d.DB.Close()
	}
	return nil
}

// IsConnected returns true if the database connection is established.
func (d *SQLDriver) IsConnected() bool {
	return d.DB != nil
}

func (d *SQLDriver) builder() sq.StatementBuilderType {
	return sq.StatementBuilder.PlaceholderFormat(d.Dialect.Placeholder)
}

// qualify prefixes a bare column reference with the base table name when
// the spec carries joins, so references that are ambiguous across joined
// sources resolve to the base table. Already-qualified names pass
// through.
func qualify(spec *query.Spec, column string) string {
	if len(spec.Joins()) == 0 || strings.Contains(column, ".") {
		return column
	}
	return spec.Type().Table + "." + column
}

// applyJoins adds the spec's join descriptors as inner joins on
// base.localColumn = related.foreignKey.
func applyJoins(b sq.SelectBuilder, spec *query.Spec) sq.SelectBuilder {
	base := spec.Type().Table
	for _, j := range spec.Joins() {
		b = b.Join(fmt.Sprintf("%s ON %s.%s = %s.%s",
			j.Related.Table, base, j.LocalColumn, j.Related.Table, j.ForeignKey))
	}
	return b
}

// applyFilters translates the spec's filter terms. The set of term
// shapes is closed; anything else is a bug in pkg/query.
func applyFilters(b sq.SelectBuilder, spec *query.Spec) sq.SelectBuilder {
	for _, f := range spec.Filters() {
		switch f.Kind {
		case query.FilterEquality:
			b = b.Where(sq.Eq{qualify(spec, f.Column): f.Value})
		case query.FilterComparison:
			b = b.Where(sq.Expr(fmt.Sprintf("%s %s ?", qualify(spec, f.Column), f.Op), f.Value))
		case query.FilterIn:
			b = b.Where(sq.Eq{qualify(spec, f.Column): f.Values})
		case query.FilterRaw:
			b = b.Where(sq.Expr(f.Raw))
		}
	}
	return b
}

// selectBase builds the filtered, joined SELECT shared by Query and the
// aggregates. Sort and pagination are layered on by Query alone.
func (d *SQLDriver) selectBase(spec *query.Spec, projection string) sq.SelectBuilder {
	b := d.builder().Select(projection).From(spec.Type().Table)
	b = applyJoins(b, spec)
	b = applyFilters(b, spec)
	return b
}

// Query executes the spec and returns the matching rows in backend
// order.
func (d *SQLDriver) Query(ctx context.Context, spec *query.Spec) ([]core.Row, error) {
	t := spec.Type()
	if d.DB == nil {
		return nil, wrap("query", t.Name, fmt.Errorf("database connection not established"))
	}

	projection := "*"
	if len(spec.Joins()) > 0 {
		projection = t.Table + ".*"
	}

	b := d.selectBase(spec, projection)
	for _, s := range spec.Order() {
		b = b.OrderBy(qualify(spec, s.Column) + " " + strings.ToUpper(string(s.Direction)))
	}
	start, limit := spec.Window()
	b = b.Offset(uint64(start)).Limit(uint64(limit))

	sqlStr, args, err := b.ToSql()
	if err != nil {
		return nil, wrap("query", t.Name, err)
	}

	if d.Logger != nil {
		d.Logger.Debug("executing query", slog.String("entity", t.Name), slog.String("sql", sqlStr))
	}

	rows, err := d.DB.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, wrap("query", t.Name, err)
	}
	defer func() { _ = rows.Close() }()

	out, err := scanRows(rows)
	if err != nil {
		return nil, wrap("query", t.Name, err)
	}
	return out, nil
}

// Count pushes COUNT(*) down to the backend with the spec's filters and
// joins; sort and pagination are ignored.
func (d *SQLDriver) Count(ctx context.Context, spec *query.Spec) (int64, error) {
	t := spec.Type()
	if d.DB == nil {
		return 0, wrap("count", t.Name, fmt.Errorf("database connection not established"))
	}

	sqlStr, args, err := d.selectBase(spec, "COUNT(*)").ToSql()
	if err != nil {
		return 0, wrap("count", t.Name, err)
	}

	var n int64
	if err := d.DB.QueryRowContext(ctx, sqlStr, args...).Scan(&n); err != nil {
		return 0, wrap("count", t.Name, err)
	}
	return n, nil
}

// Sum pushes SUM(column) down to the backend.
func (d *SQLDriver) Sum(ctx context.Context, spec *query.Spec, column string) (float64, error) {
	return d.aggregate(ctx, spec, "sum", "SUM", column)
}

// Average pushes AVG(column) down to the backend.
func (d *SQLDriver) Average(ctx context.Context, spec *query.Spec, column string) (float64, error) {
	return d.aggregate(ctx, spec, "average", "AVG", column)
}

// Min pushes MIN(column) down to the backend.
func (d *SQLDriver) Min(ctx context.Context, spec *query.Spec, column string) (float64, error) {
	return d.aggregate(ctx, spec, "min", "MIN", column)
}

// Max pushes MAX(column) down to the backend.
func (d *SQLDriver) Max(ctx context.Context, spec *query.Spec, column string) (float64, error) {
	return d.aggregate(ctx, spec, "max", "MAX", column)
}

func (d *SQLDriver) aggregate(ctx context.Context, spec *query.Spec, op, fn, column string) (float64, error) {
	t := spec.Type()
	if d.DB == nil {
		return 0, wrap(op, t.Name, fmt.Errorf("database connection not established"))
	}

	projection := fmt.Sprintf("%s(%s)", fn, qualify(spec, column))
	sqlStr, args, err := d.selectBase(spec, projection).ToSql()
	if err != nil {
		return 0, wrap(op, t.Name, err)
	}

	// Aggregates over zero rows come back NULL; report them as zero.
	var v sql.NullFloat64
	if err := d.DB.QueryRowContext(ctx, sqlStr, args...).Scan(&v); err != nil {
		return 0, wrap(op, t.Name, err)
	}
	return v.Float64, nil
}

// Create inserts a new record.
func (d *SQLDriver) Create(ctx context.Context, t *core.EntityType, values map[string]any) error {
	if d.DB == nil {
		return wrap("create", t.Name, fmt.Errorf("database connection not established"))
	}

	sqlStr, args, err := d.builder().Insert(t.Table).SetMap(values).ToSql()
	if err != nil {
		return wrap("create", t.Name, err)
	}
	if _, err := d.DB.ExecContext(ctx, sqlStr, args...); err != nil {
		return wrap("create", t.Name, err)
	}
	return nil
}

// GeneratedIdentity reads back the last auto-generated identity value
// through the dialect's readback statement, cast to the declared
// semantic type of the identity property.
func (d *SQLDriver) GeneratedIdentity(ctx context.Context, t *core.EntityType, property string) (any, error) {
	if d.DB == nil {
		return nil, wrap("identity", t.Name, fmt.Errorf("database connection not established"))
	}
	p, ok := t.Property(property)
	if !ok {
		return nil, fmt.Errorf("entity type %s has no property %q", t.Name, property)
	}

	var raw any
	if err := d.DB.QueryRowContext(ctx, d.Dialect.IdentityQuery).Scan(&raw); err != nil {
		return nil, wrap("identity", t.Name, err)
	}
	return core.CastValue(p.Type, raw)
}

// Load fetches the current row for an entity's identity. A missing row
// is reported as (nil, nil).
func (d *SQLDriver) Load(ctx context.Context, e *core.Entity) (core.Row, error) {
	t := e.Type
	if d.DB == nil {
		return nil, wrap("load", t.Name, fmt.Errorf("database connection not established"))
	}

	b := d.builder().Select("*").From(t.Table).Where(identityEq(e.Identity())).Limit(1)
	sqlStr, args, err := b.ToSql()
	if err != nil {
		return nil, wrap("load", t.Name, err)
	}

	rows, err := d.DB.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, wrap("load", t.Name, err)
	}
	defer func() { _ = rows.Close() }()

	out, err := scanRows(rows)
	if err != nil {
		return nil, wrap("load", t.Name, err)
	}
	if len(out) == 0 {
		return nil, nil
	}
	return out[0], nil
}

// Update modifies the record with the given identity. Zero fields to
// update is a no-op success.
func (d *SQLDriver) Update(ctx context.Context, t *core.EntityType, identity, values map[string]any) error {
	if len(values) == 0 {
		return nil
	}
	if d.DB == nil {
		return wrap("update", t.Name, fmt.Errorf("database connection not established"))
	}

	sqlStr, args, err := d.builder().Update(t.Table).SetMap(values).Where(identityEq(identity)).ToSql()
	if err != nil {
		return wrap("update", t.Name, err)
	}
	if _, err := d.DB.ExecContext(ctx, sqlStr, args...); err != nil {
		return wrap("update", t.Name, err)
	}
	return nil
}

// Delete removes the entity's record.
func (d *SQLDriver) Delete(ctx context.Context, e *core.Entity) error {
	t := e.Type
	if d.DB == nil {
		return wrap("delete", t.Name, fmt.Errorf("database connection not established"))
	}

	sqlStr, args, err := d.builder().Delete(t.Table).Where(identityEq(e.Identity())).ToSql()
	if err != nil {
		return wrap("delete", t.Name, err)
	}
	if _, err := d.DB.ExecContext(ctx, sqlStr, args...); err != nil {
		return wrap("delete", t.Name, err)
	}
	return nil
}

// RawQuery executes an arbitrary statement and returns the column order
// alongside the rows. Used by tooling; the executor never calls it.
func (d *SQLDriver) RawQuery(ctx context.Context, sqlStr string) ([]string, []core.Row, error) {
	if d.DB == nil {
		return nil, nil, wrap("raw", "", fmt.Errorf("database connection not established"))
	}

	rows, err := d.DB.QueryContext(ctx, sqlStr)
	if err != nil {
		return nil, nil, wrap("raw", "", err)
	}
	defer func() { _ = rows.Close() }()

	cols, err := rows.Columns()
	if err != nil {
		return nil, nil, wrap("raw", "", err)
	}
	out, err := scanRows(rows)
	if err != nil {
		return nil, nil, wrap("raw", "", err)
	}
	return cols, out, nil
}

// identityEq builds the WHERE clause matching an identity map. Squirrel
// renders sq.Eq keys in sorted order, so composite identities produce
// deterministic SQL.
func identityEq(identity map[string]any) sq.Eq {
	eq := make(sq.Eq, len(identity))
	for k, v := range identity {
		eq[k] = v
	}
	return eq
}

// scanRows materializes sql.Rows into column-keyed rows.
func scanRows(rows *sql.Rows) ([]core.Row, error) {
	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	var out []core.Row
	for rows.Next() {
		values := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}
		row := make(core.Row, len(cols))
		for i, col := range cols {
			row[col] = values[i]
		}
		out = append(out, row)
	}
	return out, rows.Err()
}
