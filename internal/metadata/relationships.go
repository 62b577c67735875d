package metadata

import (
	"fmt"
	"reflect"
	"strings"

	"odatagate/internal/descriptor"
)

// relationshipResolver derives the inverse field name of a relationship.
// Fields of the referenced type come from its registered descriptor when
// there is one, otherwise from descriptor.Describe.
type relationshipResolver struct {
	lookup func(reflect.Type) (*descriptor.EntityDescriptor, bool)
}

// resolvePartner returns "" for plain properties. A relationship without a
// partner is always an error.
func (r *relationshipResolver) resolvePartner(owner *descriptor.EntityDescriptor, f *descriptor.FieldDescriptor) (string, error) {
	fail := func(format string, args ...any) error {
		return &RelationshipResolutionError{Owner: owner.Name, Field: f.Name, Reason: fmt.Sprintf(format, args...)}
	}

	switch f.Relation.Kind {
	case descriptor.RelationNone:
		return "", nil

	case descriptor.ManyToOne:
		if f.IsCollection() {
			return "", fail("manyToOne field must be single-valued")
		}
		return r.scan(f, descriptor.OneToMany, fail)

	case descriptor.OneToOne:
		if f.Relation.MappedBy != "" {
			return f.Relation.MappedBy, nil
		}
		return r.scan(f, descriptor.OneToOne, fail)

	case descriptor.OneToMany:
		if f.Relation.MappedBy == "" {
			return "", fail("oneToMany requires mappedBy")
		}
		return f.Relation.MappedBy, nil

	case descriptor.ManyToMany:
		if f.Relation.MappedBy != "" {
			return f.Relation.MappedBy, nil
		}
		if !f.IsCollection() {
			return "", fail("owning manyToMany field has to be a slice or array")
		}
		return r.scan(f, descriptor.ManyToMany, fail)
	}
	return "", fail("unsupported relationship kind %s", f.Relation.Kind)
}

// scan looks for exactly one field of kind on the referenced type whose
// mappedBy names f.
func (r *relationshipResolver) scan(f *descriptor.FieldDescriptor, kind descriptor.RelationKind, fail func(string, ...any) error) (string, error) {
	target := f.ElementType()
	fields, err := r.fieldsOf(target)
	if err != nil {
		return "", fail("referenced type '%s': %v", target, err)
	}

	var matches []string
	for _, tf := range fields {
		if tf.Relation.Kind == kind && tf.Relation.MappedBy == f.Name {
			matches = append(matches, tf.Name)
		}
	}
	switch len(matches) {
	case 0:
		return "", fail("no %s field on '%s' is mappedBy '%s'", kind, target, f.Name)
	case 1:
		return matches[0], nil
	default:
		return "", fail("ambiguous partner on '%s': %s", target, strings.Join(matches, ", "))
	}
}

func (r *relationshipResolver) fieldsOf(t reflect.Type) ([]descriptor.FieldDescriptor, error) {
	if r.lookup != nil {
		if d, ok := r.lookup(t); ok {
			return d.Fields, nil
		}
	}
	return descriptor.Describe(t)
}
