package query

import "github.com/leapstack-labs/leaporm/pkg/core"

// FilterKind tags the closed set of filter term shapes. Drivers switch
// on this tag; there is no positional-argument dispatch.
type FilterKind int

const (
	// FilterEquality is a column = value predicate.
	FilterEquality FilterKind = iota

	// FilterComparison is an explicit (column, operator, value) triple.
	FilterComparison

	// FilterIn is a column IN (values...) predicate.
	FilterIn

	// FilterRaw is a raw predicate string appended verbatim.
	FilterRaw
)

// Filter is one predicate term of a query. Which fields are meaningful
// depends on Kind: Equality and Comparison use Column/Op/Value, In uses
// Column/Values, Raw uses only Raw.
type Filter struct {
	Kind   FilterKind
	Column string
	Op     string
	Value  any
	Values []any
	Raw    string
}

// Direction is a sort direction.
type Direction string

const (
	Asc  Direction = "asc"
	Desc Direction = "desc"
)

// Sort is one (column, direction) ordering term.
type Sort struct {
	Column    string
	Direction Direction
}

// Join requests an inner join of a related entity type's table on
// base.LocalColumn = related.ForeignKey. Joins are descriptive only; the
// spec does not validate that a matching relationship is declared.
type Join struct {
	Related     *core.EntityType
	LocalColumn string
	ForeignKey  string
}
