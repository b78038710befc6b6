package executor

import (
	"context"

	"github.com/leapstack-labs/leaporm/pkg/core"
	"github.com/leapstack-labs/leaporm/pkg/query"
)

// Sequence is a restartable, forward-only, finite producer of entities
// backed by the executor. It is not an incremental cursor: each full
// traversal re-executes the underlying query once and materializes the
// batch, so two traversals may observe different data under concurrent
// writes.
type Sequence struct {
	executor *Executor
	spec     *query.Spec
}

// Sequence wraps a spec for incremental consumption.
func (x *Executor) Sequence(spec *query.Spec) *Sequence {
	return &Sequence{executor: x, spec: spec}
}

// Each executes the query and calls fn for every entity in order. A
// non-nil error from fn stops the traversal and is returned unchanged.
// Calling Each again re-executes the query against current data.
func (s *Sequence) Each(ctx context.Context, fn func(*core.Entity) error) error {
	entities, err := s.executor.Execute(ctx, s.spec)
	if err != nil {
		return err
	}
	for _, e := range entities {
		if err := fn(e); err != nil {
			return err
		}
	}
	return nil
}

// All executes the query and returns the full batch.
func (s *Sequence) All(ctx context.Context) ([]*core.Entity, error) {
	return s.executor.Execute(ctx, s.spec)
}
