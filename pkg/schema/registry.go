// Package schema is the entity-type metadata provider: it registers
// entity definitions, links relationship descriptors to their concrete
// related types, and hands out the driver configured for each type.
//
// The registry replaces ambient global configuration: it is constructed
// explicitly with a connection manager and passed to the executor, so
// multiple independent configurations can coexist (and tests stay
// isolated).
package schema

import (
	"fmt"
	"sort"
	"sync"

	"github.com/leapstack-labs/leaporm/pkg/core"
	"github.com/leapstack-labs/leaporm/pkg/driver"
)

// RelationDef declares a relationship property. Related names a type
// that may be registered before or after the declaring type; linking is
// deferred until both sides are present.
type RelationDef struct {
	Kind       core.RelationKind
	Related    string
	LocalKey   string
	ForeignKey string
}

// PropertyDef declares one property of an entity type.
type PropertyDef struct {
	Name     string
	Type     core.PropertyType
	Relation *RelationDef
}

// TypeDef is the registration input for one entity type.
type TypeDef struct {
	Name       string
	Table      string
	Identity   []string
	Connection string
	Properties []PropertyDef
}

// Registry holds registered entity types and the connection manager
// their drivers come from.
type Registry struct {
	mu      sync.RWMutex
	types   map[string]*core.EntityType
	pending map[string][]*core.Relation
	manager *driver.Manager
}

// NewRegistry creates a registry backed by the given connection manager.
func NewRegistry(m *driver.Manager) *Registry {
	return &Registry{
		types:   make(map[string]*core.EntityType),
		pending: make(map[string][]*core.Relation),
		manager: m,
	}
}

// Register validates and stores an entity type definition. Relationship
// descriptors are linked to their concrete related types here, once, so
// no per-query name lookup ever happens; descriptors whose related type
// is not yet registered are linked when it arrives (mutually
// referencing types may register in either order).
func (r *Registry) Register(def TypeDef) (*core.EntityType, error) {
	if def.Name == "" {
		return nil, fmt.Errorf("entity type name is required")
	}
	if def.Table == "" {
		return nil, fmt.Errorf("entity type %s: table is required", def.Name)
	}
	if len(def.Identity) == 0 {
		return nil, fmt.Errorf("entity type %s: at least one identity field is required", def.Name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.types[def.Name]; exists {
		return nil, fmt.Errorf("entity type %s already registered", def.Name)
	}

	t := &core.EntityType{
		Name:       def.Name,
		Table:      def.Table,
		Identity:   def.Identity,
		Connection: def.Connection,
	}

	for _, pd := range def.Properties {
		p := &core.Property{Name: pd.Name, Type: pd.Type}
		if pd.Relation != nil {
			rel, err := r.buildRelationLocked(def.Name, pd.Name, pd.Relation)
			if err != nil {
				return nil, err
			}
			p.Relation = rel
		}
		t.Properties = append(t.Properties, p)
	}

	for _, id := range def.Identity {
		if _, ok := t.Property(id); !ok {
			return nil, fmt.Errorf("entity type %s: identity field %q is not a declared property", def.Name, id)
		}
	}

	r.types[def.Name] = t

	// Link any descriptors that were waiting for this type.
	for _, rel := range r.pending[def.Name] {
		rel.Related = t
	}
	delete(r.pending, def.Name)

	return t, nil
}

func (r *Registry) buildRelationLocked(typeName, propName string, def *RelationDef) (*core.Relation, error) {
	switch def.Kind {
	case core.BelongsTo, core.HasOne, core.HasMany:
	default:
		return nil, fmt.Errorf("entity type %s: relation %s has unknown kind %v", typeName, propName, def.Kind)
	}
	if def.Related == "" {
		return nil, fmt.Errorf("entity type %s: relation %s: related type is required", typeName, propName)
	}
	if def.LocalKey == "" || def.ForeignKey == "" {
		return nil, fmt.Errorf("entity type %s: relation %s: local and foreign keys are required", typeName, propName)
	}

	rel := &core.Relation{
		Name:        propName,
		Kind:        def.Kind,
		RelatedName: def.Related,
		LocalKey:    def.LocalKey,
		ForeignKey:  def.ForeignKey,
	}
	if related, ok := r.types[def.Related]; ok {
		rel.Related = related
	} else {
		r.pending[def.Related] = append(r.pending[def.Related], rel)
	}
	return rel, nil
}

// Type returns the registered entity type with the given name.
func (r *Registry) Type(name string) (*core.EntityType, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.types[name]
	return t, ok
}

// Types returns all registered entity type names (sorted).
func (r *Registry) Types() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.types))
	for name := range r.types {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Validate reports relationship descriptors whose related type was never
// registered. Call it after all registrations; an incomplete schema is a
// configuration error.
func (r *Registry) Validate() error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if len(r.pending) == 0 {
		return nil
	}
	missing := make([]string, 0, len(r.pending))
	for name := range r.pending {
		missing = append(missing, name)
	}
	sort.Strings(missing)
	return fmt.Errorf("unresolved related entity types: %v", missing)
}

// DriverFor returns the driver serving the entity type's connection.
func (r *Registry) DriverFor(t *core.EntityType) (driver.Driver, error) {
	return r.manager.Connection(t.Connection)
}

// Manager returns the registry's connection manager.
func (r *Registry) Manager() *driver.Manager {
	return r.manager
}
