package executor

import (
	"context"
	"fmt"

	"github.com/leapstack-labs/leaporm/pkg/core"
	"github.com/leapstack-labs/leaporm/pkg/query"
	"github.com/leapstack-labs/leaporm/pkg/schema"
)

// Mutator is the single-entity mutation pipeline. Implementations own
// validation, authorization checks, and lifecycle hooks around each
// mutation; the executor's bulk operations call into it once per matched
// entity and never reimplement it.
type Mutator interface {
	Update(ctx context.Context, e *core.Entity, fields map[string]any) error
	Delete(ctx context.Context, e *core.Entity) error
}

// driverMutator is the default pipeline: it forwards each mutation
// straight to the entity type's driver.
type driverMutator struct {
	registry *schema.Registry
}

func (m *driverMutator) Update(ctx context.Context, e *core.Entity, fields map[string]any) error {
	d, err := m.registry.DriverFor(e.Type)
	if err != nil {
		return err
	}
	return d.Update(ctx, e.Type, e.Identity(), fields)
}

func (m *driverMutator) Delete(ctx context.Context, e *core.Entity) error {
	d, err := m.registry.DriverFor(e.Type)
	if err != nil {
		return err
	}
	return d.Delete(ctx, e)
}

// SetAll executes the spec, then updates each materialized entity
// individually through the mutation pipeline. This is deliberately not
// pushed down as a single bulk statement: per-entity side effects in the
// pipeline must fire for every matched entity.
//
// A failed entity does not halt the batch; the remaining entities are
// still processed. The returned count reflects only successful
// mutations, and the returned error (when non-nil) carries every
// per-entity failure in order.
func (x *Executor) SetAll(ctx context.Context, spec *query.Spec, fields map[string]any) (int, error) {
	entities, err := x.Execute(ctx, spec)
	if err != nil {
		return 0, err
	}

	var errs core.ErrorList
	processed := 0
	for _, e := range entities {
		if err := x.mutator.Update(ctx, e, fields); err != nil {
			errs.Append(fmt.Errorf("update %s: %w", e, err))
			continue
		}
		for k, v := range fields {
			e.Set(k, v)
		}
		processed++
	}
	return processed, errs.Err()
}

// DeleteAll executes the spec, then deletes each materialized entity
// individually through the mutation pipeline, with the same
// continue-on-failure tallying as SetAll.
func (x *Executor) DeleteAll(ctx context.Context, spec *query.Spec) (int, error) {
	entities, err := x.Execute(ctx, spec)
	if err != nil {
		return 0, err
	}

	var errs core.ErrorList
	processed := 0
	for _, e := range entities {
		if err := x.mutator.Delete(ctx, e); err != nil {
			errs.Append(fmt.Errorf("delete %s: %w", e, err))
			continue
		}
		processed++
	}
	return processed, errs.Err()
}
