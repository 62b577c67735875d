// Package metadata derives per-namespace schemas from entity descriptors and
// serves read-only lookups over the result.
package metadata

import (
	"reflect"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"odatagate/internal/descriptor"
	"odatagate/internal/edm"
)

// Builder accumulates descriptors per namespace. It is not safe for
// concurrent use: registration completes before CreateSchema is called.
type Builder struct {
	namespaces []string
	entities   map[string][]*descriptor.EntityDescriptor
	enums      map[string][]edm.EnumType
	logger     *zap.Logger
}

func NewBuilder(logger *zap.Logger) *Builder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Builder{
		entities: map[string][]*descriptor.EntityDescriptor{},
		enums:    map[string][]edm.EnumType{},
		logger:   logger,
	}
}

// AddEntity registers d under its namespace. A second descriptor with the
// same qualified name replaces the first in place.
func (b *Builder) AddEntity(d *descriptor.EntityDescriptor) error {
	if d == nil || d.Type == nil {
		return errors.New("nil entity descriptor")
	}
	if d.Name.Namespace == "" || d.Name.Name == "" {
		return errors.Errorf("entity descriptor for '%s' has no qualified name", d.Type)
	}
	ns := d.Name.Namespace
	b.touch(ns)
	list := b.entities[ns]
	for i, existing := range list {
		if existing.Name == d.Name {
			b.logger.Debug("entity replaced", zap.Stringer("entity", d.Name))
			list[i] = d
			return nil
		}
	}
	b.entities[ns] = append(list, d)
	return nil
}

// AddEnumType adds a catalog enum to the schema of namespace.
func (b *Builder) AddEnumType(namespace string, e edm.EnumType) error {
	if namespace == "" || e.Name == "" {
		return errors.New("enum type needs a namespace and a name")
	}
	b.touch(namespace)
	list := b.enums[namespace]
	for i := range list {
		if list[i].Name == e.Name {
			list[i] = e
			return nil
		}
	}
	b.enums[namespace] = append(list, e)
	return nil
}

func (b *Builder) touch(ns string) {
	if _, ok := b.entities[ns]; ok {
		return
	}
	b.namespaces = append(b.namespaces, ns)
	b.entities[ns] = nil
}

// Descriptors returns every registered descriptor in namespace-registration
// order, then per-namespace registration order.
func (b *Builder) Descriptors() []*descriptor.EntityDescriptor {
	var out []*descriptor.EntityDescriptor
	for _, ns := range b.namespaces {
		out = append(out, b.entities[ns]...)
	}
	return out
}

// Descriptor returns the first registered descriptor whose host type is t.
func (b *Builder) Descriptor(t reflect.Type) (*descriptor.EntityDescriptor, bool) {
	t = descriptor.Indirect(t)
	for _, ns := range b.namespaces {
		for _, d := range b.entities[ns] {
			if d.Type == t {
				return d, true
			}
		}
	}
	return nil, false
}

// CreateSchema builds one schema per namespace observed. Any failure aborts
// the whole build; no partial schema set is returned.
func (b *Builder) CreateSchema(containerName string) ([]*edm.Schema, error) {
	if containerName == "" {
		return nil, errors.New("container name must not be empty")
	}
	resolver := &relationshipResolver{lookup: b.Descriptor}

	schemas := make([]*edm.Schema, 0, len(b.namespaces))
	for _, ns := range b.namespaces {
		container := &edm.EntityContainer{Name: containerName}
		schema := &edm.Schema{
			Namespace:       ns,
			EnumTypes:       append([]edm.EnumType(nil), b.enums[ns]...),
			EntityContainer: container,
		}

		sets := map[string]edm.FullQualifiedName{}
		for _, d := range b.entities[ns] {
			et, set, err := b.createEntity(d, resolver)
			if err != nil {
				return nil, err
			}
			if prev, dup := sets[set.Name]; dup {
				return nil, &SchemaBuildError{Type: d.Name, Err: errors.Errorf("entity set '%s' already exposes '%s'", set.Name, prev)}
			}
			sets[set.Name] = d.Name
			schema.EntityTypes = append(schema.EntityTypes, et)
			container.EntitySets = append(container.EntitySets, set)
		}

		b.logger.Debug("schema built",
			zap.String("namespace", ns),
			zap.Int("entity_types", len(schema.EntityTypes)),
			zap.Int("enum_types", len(schema.EnumTypes)))
		schemas = append(schemas, schema)
	}
	return schemas, nil
}

func (b *Builder) createEntity(d *descriptor.EntityDescriptor, resolver *relationshipResolver) (edm.EntityType, edm.EntitySet, error) {
	et := edm.EntityType{Name: d.Name.Name}
	set := edm.EntitySet{Name: d.EntitySet, Type: d.Name}

	if d.EntitySet == "" {
		return et, set, &SchemaBuildError{Type: d.Name, Err: errors.New("entity set name is missing")}
	}

	for i := range d.Fields {
		f := &d.Fields[i]
		if err := b.processField(d, f, resolver, &et, &set); err != nil {
			return et, set, &SchemaBuildError{Type: d.Name, Field: f.Name, Err: err}
		}
	}

	if len(et.Key) == 0 {
		return et, set, &SchemaBuildError{Type: d.Name, Err: errors.New("no key field declared")}
	}
	return et, set, nil
}

func (b *Builder) processField(d *descriptor.EntityDescriptor, f *descriptor.FieldDescriptor, resolver *relationshipResolver, et *edm.EntityType, set *edm.EntitySet) error {
	var typ edm.FullQualifiedName
	collection := f.IsCollection()

	switch f.Enum {
	case descriptor.EnumOrdinal:
		typ = edm.EdmInt32
	case descriptor.EnumString:
		typ = edm.EdmString
	default:
		resolved, err := b.resolveType(f)
		if err != nil {
			return err
		}
		typ = resolved
	}

	partner, err := resolver.resolvePartner(d, f)
	if err != nil {
		return err
	}

	if partner == "" {
		et.Properties = append(et.Properties, edm.Property{
			Name:       f.Name,
			Type:       typ,
			Collection: collection,
			Nullable:   f.Nullable,
		})
	} else {
		target, ok := b.Descriptor(f.ElementType())
		if !ok {
			return &RelationshipResolutionError{Owner: d.Name, Field: f.Name, Reason: "referenced type '" + typ.String() + "' is not a registered entity"}
		}
		et.NavigationProperties = append(et.NavigationProperties, edm.NavigationProperty{
			Name:       f.Name,
			Type:       typ,
			Collection: collection,
			Nullable:   f.Nullable,
			Partner:    partner,
		})
		set.NavigationPropertyBindings = append(set.NavigationPropertyBindings, edm.NavigationPropertyBinding{
			Path:   partner,
			Target: target.EntitySet,
		})
	}

	if f.Key {
		et.Key = append(et.Key, edm.PropertyRef{Name: f.Name})
	}
	return nil
}

// resolveType consults the primitive table first, then registered entities.
func (b *Builder) resolveType(f *descriptor.FieldDescriptor) (edm.FullQualifiedName, error) {
	elem := f.ElementType()
	if fqn, ok := edm.LookupPrimitive(elem); ok {
		return fqn, nil
	}
	if d, ok := b.Descriptor(elem); ok {
		return d.Name, nil
	}
	return edm.FullQualifiedName{}, &TypeResolutionError{Field: f.Name, Type: elem}
}
