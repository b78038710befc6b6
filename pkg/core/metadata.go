package core

import "fmt"

// PropertyType is the semantic type of an entity property. Raw driver
// values are cast to this type during materialization (see CastValue).
type PropertyType int

const (
	TypeString PropertyType = iota
	TypeInt
	TypeFloat
	TypeBool
	TypeTime
	TypeBytes
)

// String returns the lowercase name of the property type.
func (t PropertyType) String() string {
	switch t {
	case TypeString:
		return "string"
	case TypeInt:
		return "int"
	case TypeFloat:
		return "float"
	case TypeBool:
		return "bool"
	case TypeTime:
		return "time"
	case TypeBytes:
		return "bytes"
	default:
		return fmt.Sprintf("PropertyType(%d)", int(t))
	}
}

// RelationKind enumerates the supported relationship shapes. The set is
// closed: hydration dispatches on this enum, never on a name looked up
// at call time.
type RelationKind int

const (
	// BelongsTo: this entity holds the foreign key referencing exactly
	// one related entity.
	BelongsTo RelationKind = iota

	// HasOne: the related entity holds the foreign key referencing this
	// entity; resolves to at most one record.
	HasOne

	// HasMany: the related entities hold the foreign key referencing
	// this entity; always resolves to a collection, possibly empty.
	HasMany
)

// String returns the canonical name of the relation kind.
func (k RelationKind) String() string {
	switch k {
	case BelongsTo:
		return "belongsTo"
	case HasOne:
		return "hasOne"
	case HasMany:
		return "hasMany"
	default:
		return fmt.Sprintf("RelationKind(%d)", int(k))
	}
}

// Relation describes a declared relationship between two entity types.
// RelatedName is recorded at declaration; Related is linked to the
// concrete type by the schema registry once both types are registered.
type Relation struct {
	Name        string
	Kind        RelationKind
	RelatedName string
	Related     *EntityType
	LocalKey    string
	ForeignKey  string
}

// Property is one declared field of an entity type. Relationship
// properties carry a non-nil Relation descriptor.
type Property struct {
	Name     string
	Type     PropertyType
	Relation *Relation
}

// EntityType identifies an entity kind: its storage table, identity
// fields, declared properties, and the named connection its driver is
// obtained from ("" means the default connection).
type EntityType struct {
	Name       string
	Table      string
	Identity   []string
	Connection string
	Properties []*Property
}

// Property returns the declared property with the given name.
func (t *EntityType) Property(name string) (*Property, bool) {
	for _, p := range t.Properties {
		if p.Name == name {
			return p, true
		}
	}
	return nil, false
}

// Relation returns the relationship descriptor declared under name.
func (t *EntityType) Relation(name string) (*Relation, bool) {
	p, ok := t.Property(name)
	if !ok || p.Relation == nil {
		return nil, false
	}
	return p.Relation, true
}

// Relations returns all relationship descriptors in declaration order.
func (t *EntityType) Relations() []*Relation {
	var rels []*Relation
	for _, p := range t.Properties {
		if p.Relation != nil {
			rels = append(rels, p.Relation)
		}
	}
	return rels
}

// IdentityProperty returns the first identity field name. Entity types
// must declare at least one identity field; the schema registry enforces
// this at registration.
func (t *EntityType) IdentityProperty() string {
	if len(t.Identity) == 0 {
		return ""
	}
	return t.Identity[0]
}
