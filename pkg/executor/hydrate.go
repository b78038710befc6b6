package executor

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/leapstack-labs/leaporm/pkg/core"
	"github.com/leapstack-labs/leaporm/pkg/query"
)

// hydrate batch-resolves one relationship for a result set. The cost is
// a single bounded driver query per relationship name regardless of the
// number of entities: local keys are collected and deduplicated, one IN
// query fetches every related record, and the results are grouped by
// foreign key and distributed back.
//
// Every entity leaves this function with the relationship resolved.
// belongsTo/hasOne misses are marked confirmed-absent, and hasMany
// always gets a collection, so a later read never degrades into a lazy
// per-entity lookup.
func (x *Executor) hydrate(ctx context.Context, entities []*core.Entity, rel *core.Relation) error {
	keys := collectKeys(entities, rel.LocalKey)

	if len(keys) == 0 {
		// No candidate entities: resolve everything as absent/empty
		// without touching the driver.
		for _, e := range entities {
			resolveMiss(e, rel)
		}
		return nil
	}

	relatedSpec := query.New(rel.Related).
		WhereIn(rel.ForeignKey, keys).
		Limit(query.MaxLimit)

	d, err := x.registry.DriverFor(rel.Related)
	if err != nil {
		return err
	}
	rows, err := d.Query(ctx, relatedSpec)
	if err != nil {
		return err
	}

	x.logger.Debug("hydrated relationship",
		slog.String("relation", rel.Name),
		slog.Int("keys", len(keys)),
		slog.Int("related", len(rows)))

	// Group related records by foreign key. For belongsTo/hasOne the
	// last record seen for a key wins; there is no stable tie-break
	// beyond driver-returned order, and multiple records sharing a
	// foreign key on a to-one relation indicate a data anomaly rather
	// than designed behavior.
	one := make(map[string]*core.Entity)
	many := make(map[string][]*core.Entity)
	for _, row := range rows {
		re := core.NewEntity(rel.Related, row)
		k := keyString(re.Get(rel.ForeignKey))
		if rel.Kind == core.HasMany {
			many[k] = append(many[k], re)
		} else {
			one[k] = re
		}
	}

	for _, e := range entities {
		v := e.Get(rel.LocalKey)
		if emptyKey(v) {
			resolveMiss(e, rel)
			continue
		}
		k := keyString(v)
		if rel.Kind == core.HasMany {
			e.SetRelatedMany(rel.Name, many[k])
			continue
		}
		if re, ok := one[k]; ok {
			e.SetRelatedOne(rel.Name, re)
		} else {
			e.MarkRelationAbsent(rel.Name)
		}
	}

	return nil
}

// collectKeys gathers the deduplicated local-key values of the entities
// that are candidates for a relationship. A value appearing on N
// entities contributes once; entities with an empty local key are not
// candidates.
func collectKeys(entities []*core.Entity, localKey string) []any {
	seen := make(map[string]bool)
	var keys []any
	for _, e := range entities {
		v := e.Get(localKey)
		if emptyKey(v) {
			continue
		}
		k := keyString(v)
		if seen[k] {
			continue
		}
		seen[k] = true
		keys = append(keys, v)
	}
	return keys
}

// resolveMiss resolves a relationship as empty for hasMany and as
// confirmed-absent for belongsTo/hasOne.
func resolveMiss(e *core.Entity, rel *core.Relation) {
	if rel.Kind == core.HasMany {
		e.SetRelatedMany(rel.Name, nil)
	} else {
		e.MarkRelationAbsent(rel.Name)
	}
}

// emptyKey reports whether a local-key value disqualifies its entity
// from hydration: nulls, empty strings, and zero numerics all mean "no
// reference".
func emptyKey(v any) bool {
	switch k := v.(type) {
	case nil:
		return true
	case string:
		return k == ""
	case []byte:
		return len(k) == 0
	case int:
		return k == 0
	case int32:
		return k == 0
	case int64:
		return k == 0
	case uint64:
		return k == 0
	case float32:
		return k == 0
	case float64:
		return k == 0
	default:
		return false
	}
}

// keyString normalizes a key value for grouping. Different backends
// surface the same column as different Go types (int64 vs string vs
// []byte); grouping on the printed form keeps the base query and the
// relationship query agreeing on key equality.
func keyString(v any) string {
	if b, ok := v.([]byte); ok {
		return string(b)
	}
	return fmt.Sprintf("%v", v)
}
