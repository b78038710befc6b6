// Package executor consumes query specs, fetches rows through the
// configured driver, materializes entities, and batch-resolves eager
// loaded relationships.
//
// The executor is strictly sequential: the base query runs first, then
// one bounded sub-query per eager-loaded relationship, in eager-load
// insertion order. The multi-query hydration is intentionally not
// transactional; concurrent writes between the base query and a
// relationship sub-query can produce relationship data inconsistent
// with a single point in time. That is an accepted tradeoff of the
// design, not a defect to be fixed with transactions at this layer.
package executor

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/leapstack-labs/leaporm/pkg/core"
	"github.com/leapstack-labs/leaporm/pkg/query"
	"github.com/leapstack-labs/leaporm/pkg/schema"
)

// Executor turns query specs into hydrated entities. It never
// constructs, pools, or closes connections itself; drivers are obtained
// per operation from the registry's connection manager.
type Executor struct {
	registry *schema.Registry
	mutator  Mutator
	logger   *slog.Logger
}

// New creates an executor over the given registry. A nil logger uses a
// discard logger. Bulk mutations go through the driver-backed default
// pipeline until UseMutator installs another one.
func New(reg *schema.Registry, logger *slog.Logger) *Executor {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	x := &Executor{registry: reg, logger: logger}
	x.mutator = &driverMutator{registry: reg}
	return x
}

// UseMutator installs the mutation pipeline consumed by SetAll and
// DeleteAll. External pipelines own validation, authorization, and
// lifecycle hooks; the executor only calls them once per matched entity.
func (x *Executor) UseMutator(m Mutator) {
	x.mutator = m
}

// Execute runs the spec's base query, materializes one entity per row in
// driver-returned order, and hydrates every eager-loaded relationship
// with one additional bounded query per relationship name.
func (x *Executor) Execute(ctx context.Context, spec *query.Spec) ([]*core.Entity, error) {
	t := spec.Type()

	// Resolve descriptors before touching the driver so an unknown
	// relationship name fails without issuing any query.
	rels := make([]*core.Relation, 0, len(spec.Eager()))
	for _, name := range spec.Eager() {
		rel, ok := t.Relation(name)
		if !ok {
			return nil, fmt.Errorf("entity type %s has no relationship %q", t.Name, name)
		}
		if rel.Related == nil {
			return nil, fmt.Errorf("relationship %q of %s: related type %q is not registered", name, t.Name, rel.RelatedName)
		}
		rels = append(rels, rel)
	}

	d, err := x.registry.DriverFor(t)
	if err != nil {
		return nil, err
	}

	rows, err := d.Query(ctx, spec)
	if err != nil {
		return nil, err
	}

	entities := make([]*core.Entity, 0, len(rows))
	for _, row := range rows {
		entities = append(entities, core.NewEntity(t, row))
	}

	x.logger.Debug("materialized entities",
		slog.String("entity", t.Name), slog.Int("count", len(entities)))

	for _, rel := range rels {
		if err := x.hydrate(ctx, entities, rel); err != nil {
			return nil, fmt.Errorf("hydrating relationship %q: %w", rel.Name, err)
		}
	}

	return entities, nil
}

// First limits the spec to a single row and executes it. The absent
// marker for "no row" is a nil entity with a nil error; callers can
// always distinguish it from a collection.
func (x *Executor) First(ctx context.Context, spec *query.Spec) (*core.Entity, error) {
	entities, err := x.Execute(ctx, spec.Limit(1))
	if err != nil {
		return nil, err
	}
	if len(entities) == 0 {
		return nil, nil
	}
	return entities[0], nil
}

// FirstN limits the spec to n rows and executes it, always returning a
// collection even when fewer rows match.
func (x *Executor) FirstN(ctx context.Context, spec *query.Spec, n int) ([]*core.Entity, error) {
	return x.Execute(ctx, spec.Limit(n))
}

// Count delegates straight to the driver's aggregate pushdown; no rows
// are materialized.
func (x *Executor) Count(ctx context.Context, spec *query.Spec) (int64, error) {
	d, err := x.registry.DriverFor(spec.Type())
	if err != nil {
		return 0, err
	}
	return d.Count(ctx, spec)
}

// Sum delegates to the driver's SUM pushdown.
func (x *Executor) Sum(ctx context.Context, spec *query.Spec, column string) (float64, error) {
	d, err := x.registry.DriverFor(spec.Type())
	if err != nil {
		return 0, err
	}
	return d.Sum(ctx, spec, column)
}

// Average delegates to the driver's AVG pushdown.
func (x *Executor) Average(ctx context.Context, spec *query.Spec, column string) (float64, error) {
	d, err := x.registry.DriverFor(spec.Type())
	if err != nil {
		return 0, err
	}
	return d.Average(ctx, spec, column)
}

// Min delegates to the driver's MIN pushdown.
func (x *Executor) Min(ctx context.Context, spec *query.Spec, column string) (float64, error) {
	d, err := x.registry.DriverFor(spec.Type())
	if err != nil {
		return 0, err
	}
	return d.Min(ctx, spec, column)
}

// Max delegates to the driver's MAX pushdown.
func (x *Executor) Max(ctx context.Context, spec *query.Spec, column string) (float64, error) {
	d, err := x.registry.DriverFor(spec.Type())
	if err != nil {
		return 0, err
	}
	return d.Max(ctx, spec, column)
}
