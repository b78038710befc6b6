package core

import "fmt"

// RelationState tracks whether a relationship on one entity has been
// resolved. The three states are distinct on purpose: a confirmed-absent
// relation must never be mistaken for an unresolved one, or a later read
// would silently trigger a second, un-batched lookup.
type RelationState int

const (
	RelationUnresolved RelationState = iota
	RelationPresent
	RelationAbsent
)

// Entity is a materialized record of one EntityType: its field values as
// fetched from storage plus a transient cache of resolved relationships.
// Entities live only as long as the result set that produced them; there
// is no identity map across queries.
type Entity struct {
	Type *EntityType

	fields    map[string]any
	relations map[string]relationValue
}

type relationValue struct {
	state RelationState
	one   *Entity
	many  []*Entity
}

// NewEntity materializes an entity of type t from a raw row. The row's
// values are copied; the caller may reuse the row afterwards.
func NewEntity(t *EntityType, row Row) *Entity {
	fields := make(map[string]any, len(row))
	for k, v := range row {
		fields[k] = v
	}
	return &Entity{
		Type:      t,
		fields:    fields,
		relations: make(map[string]relationValue),
	}
}

// Get returns the value of a field, or nil if the field is not set.
func (e *Entity) Get(field string) any {
	return e.fields[field]
}

// Set assigns a field value.
func (e *Entity) Set(field string, value any) {
	e.fields[field] = value
}

// Fields returns a copy of all field values.
func (e *Entity) Fields() map[string]any {
	out := make(map[string]any, len(e.fields))
	for k, v := range e.fields {
		out[k] = v
	}
	return out
}

// Identity returns the entity's identity fields and their values.
func (e *Entity) Identity() map[string]any {
	id := make(map[string]any, len(e.Type.Identity))
	for _, f := range e.Type.Identity {
		id[f] = e.fields[f]
	}
	return id
}

// RelationState reports the resolution state of the named relationship.
func (e *Entity) RelationState(name string) RelationState {
	return e.relations[name].state
}

// RelatedOne returns the resolved single related entity for a belongsTo
// or hasOne relationship. The second return is true only when the
// relation is resolved and present; a confirmed-absent relation returns
// (nil, false) without being unresolved.
func (e *Entity) RelatedOne(name string) (*Entity, bool) {
	rv := e.relations[name]
	if rv.state != RelationPresent {
		return nil, false
	}
	return rv.one, true
}

// RelatedMany returns the resolved collection for a hasMany relationship.
// The second return reports whether the relation has been resolved at
// all; a resolved-but-empty relation returns (non-nil empty slice, true).
func (e *Entity) RelatedMany(name string) ([]*Entity, bool) {
	rv := e.relations[name]
	if rv.state == RelationUnresolved {
		return nil, false
	}
	return rv.many, true
}

// SetRelatedOne resolves a belongsTo/hasOne relationship to one entity.
func (e *Entity) SetRelatedOne(name string, related *Entity) {
	e.relations[name] = relationValue{state: RelationPresent, one: related}
}

// MarkRelationAbsent resolves a relationship as confirmed absent.
func (e *Entity) MarkRelationAbsent(name string) {
	e.relations[name] = relationValue{state: RelationAbsent}
}

// SetRelatedMany resolves a hasMany relationship to a collection. A nil
// slice is stored as an empty one: hasMany is always a collection.
func (e *Entity) SetRelatedMany(name string, related []*Entity) {
	if related == nil {
		related = []*Entity{}
	}
	state := RelationPresent
	if len(related) == 0 {
		state = RelationAbsent
	}
	e.relations[name] = relationValue{state: state, many: related}
}

// String renders the entity type and identity for logs and errors.
func (e *Entity) String() string {
	return fmt.Sprintf("%s%v", e.Type.Name, e.Identity())
}
