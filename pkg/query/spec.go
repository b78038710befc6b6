// Package query defines the storage-agnostic description of a query:
// filter predicates, ordering, pagination window, join requests, and
// relationship eager-load requests. A Spec is pure data; drivers
// translate it, the executor consumes it, and no method here performs
// any I/O.
package query

import (
	"sort"
	"strings"

	"github.com/leapstack-labs/leaporm/pkg/core"
)

const (
	// DefaultLimit is the pagination window applied when the caller
	// never sets one.
	DefaultLimit = 100

	// MaxLimit caps every query. Values above it are clamped, not
	// rejected; this bound also applies to relationship hydration
	// sub-queries.
	MaxLimit = 1000
)

// Spec describes one query against one entity type. Mutators return the
// same instance to support chaining. After any mutation the invariants
// 1 <= limit <= MaxLimit and start >= 0 hold.
type Spec struct {
	entityType *core.EntityType

	filters []Filter
	order   []Sort
	start   int
	limit   int
	joins   []Join
	eager   []string
}

// New creates a Spec targeting the given entity type with the default
// pagination window.
func New(t *core.EntityType) *Spec {
	return &Spec{entityType: t, limit: DefaultLimit}
}

// Type returns the target entity type.
func (s *Spec) Type() *core.EntityType {
	return s.entityType
}

// Limit sets the pagination window to min(n, MaxLimit). Values below 1
// are raised to 1; overly large values are clamped, never rejected.
func (s *Spec) Limit(n int) *Spec {
	if n < 1 {
		n = 1
	}
	if n > MaxLimit {
		n = MaxLimit
	}
	s.limit = n
	return s
}

// Start sets the pagination offset to max(n, 0).
func (s *Spec) Start(n int) *Spec {
	if n < 0 {
		n = 0
	}
	s.start = n
	return s
}

// Window returns the pagination (start, limit) pair.
func (s *Spec) Window() (start, limit int) {
	return s.start, s.limit
}

// Sort parses a comma-separated list of "column direction" pairs and
// appends each well-formed term. A pair that does not split into exactly
// two tokens, or whose direction is not asc/desc (case-insensitive), is
// silently dropped; malformed entries degrade gracefully rather than
// failing the whole call.
func (s *Spec) Sort(spec string) *Spec {
	for _, part := range strings.Split(spec, ",") {
		tokens := strings.Fields(part)
		if len(tokens) != 2 {
			continue
		}
		dir := Direction(strings.ToLower(tokens[1]))
		if dir != Asc && dir != Desc {
			continue
		}
		s.order = append(s.order, Sort{Column: tokens[0], Direction: dir})
	}
	return s
}

// Order returns the accumulated sort terms.
func (s *Spec) Order() []Sort {
	return s.order
}

// Where appends a column = value equality filter.
func (s *Spec) Where(column string, value any) *Spec {
	s.filters = append(s.filters, Filter{Kind: FilterEquality, Column: column, Op: "=", Value: value})
	return s
}

// WhereOp appends an explicit (column, operator, value) comparison.
func (s *Spec) WhereOp(column, op string, value any) *Spec {
	s.filters = append(s.filters, Filter{Kind: FilterComparison, Column: column, Op: op, Value: value})
	return s
}

// WhereIn appends a column IN (values...) filter.
func (s *Spec) WhereIn(column string, values []any) *Spec {
	s.filters = append(s.filters, Filter{Kind: FilterIn, Column: column, Values: values})
	return s
}

// WhereRaw appends a raw predicate string verbatim.
func (s *Spec) WhereRaw(predicate string) *Spec {
	s.filters = append(s.filters, Filter{Kind: FilterRaw, Raw: predicate})
	return s
}

// WhereMap merges a column->value map into the filters as equalities.
// Keys are applied in sorted order so the resulting predicate list is
// deterministic.
func (s *Spec) WhereMap(m map[string]any) *Spec {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		s.Where(k, m[k])
	}
	return s
}

// Filters returns the accumulated filter terms. Filters only ever
// accumulate; there is no replace operation.
func (s *Spec) Filters() []Filter {
	return s.filters
}

// Join appends a join descriptor. The relationship is not validated to
// exist; the driver qualifies ambiguous column references when at least
// one join is present.
func (s *Spec) Join(related *core.EntityType, localColumn, foreignKey string) *Spec {
	s.joins = append(s.joins, Join{Related: related, LocalColumn: localColumn, ForeignKey: foreignKey})
	return s
}

// Joins returns the accumulated join descriptors.
func (s *Spec) Joins() []Join {
	return s.joins
}

// With requests eager loading of a declared relationship. Duplicate
// names are ignored; insertion order is preserved and determines the
// hydration order.
func (s *Spec) With(names ...string) *Spec {
	for _, name := range names {
		if !s.hasEager(name) {
			s.eager = append(s.eager, name)
		}
	}
	return s
}

// Eager returns the eager-load relationship names in insertion order.
func (s *Spec) Eager() []string {
	return s.eager
}

func (s *Spec) hasEager(name string) bool {
	for _, n := range s.eager {
		if n == name {
			return true
		}
	}
	return false
}
