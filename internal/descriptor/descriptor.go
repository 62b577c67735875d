// Package descriptor derives entity and field descriptors from annotated Go
// structs. Descriptors are computed once per host type at registration time.
package descriptor

import (
	"reflect"
	"strings"
	"sync"
	"unicode"

	"github.com/pkg/errors"

	"odatagate/internal/edm"
)

// TagName is the struct tag key read by Describe.
const TagName = "odata"

// EnumEncoding selects how an enumerated field is exposed.
type EnumEncoding int

const (
	EnumNone EnumEncoding = iota
	EnumOrdinal
	EnumString
)

func (e EnumEncoding) String() string {
	switch e {
	case EnumNone:
		return "none"
	case EnumOrdinal:
		return "ordinal"
	case EnumString:
		return "string"
	default:
		return "unknown"
	}
}

// RelationKind is the relationship annotation carried by a field.
type RelationKind int

const (
	RelationNone RelationKind = iota
	ManyToOne
	OneToOne
	OneToMany
	ManyToMany
)

func (r RelationKind) String() string {
	switch r {
	case RelationNone:
		return "none"
	case ManyToOne:
		return "manyToOne"
	case OneToOne:
		return "oneToOne"
	case OneToMany:
		return "oneToMany"
	case ManyToMany:
		return "manyToMany"
	default:
		return "unknown"
	}
}

// Relation is the relationship annotation of a field. MappedBy is the
// explicit inverse-field value, empty on owning sides.
type Relation struct {
	Kind     RelationKind
	MappedBy string
}

// FieldDescriptor is the metadata of one host field.
type FieldDescriptor struct {
	Name     string
	GoName   string
	Index    []int
	Type     reflect.Type
	Enum     EnumEncoding
	Nullable bool
	Key      bool
	Relation Relation
}

// IsRelationship reports whether the field carries a relationship annotation.
func (f *FieldDescriptor) IsRelationship() bool { return f.Relation.Kind != RelationNone }

// IsCollection reports whether the declared type is a multi-valued container.
func (f *FieldDescriptor) IsCollection() bool { return IsMultiValued(f.Type) }

// ElementType is the type parameter of a collection, or the declared type
// itself, with pointer indirections removed.
func (f *FieldDescriptor) ElementType() reflect.Type {
	t := Indirect(f.Type)
	if IsMultiValued(t) {
		return Indirect(t.Elem())
	}
	return t
}

// EntityDescriptor is a host type plus its qualified name and entity set.
type EntityDescriptor struct {
	Type      reflect.Type
	Name      edm.FullQualifiedName
	EntitySet string
	Fields    []FieldDescriptor
}

// Field returns the descriptor of the named field.
func (d *EntityDescriptor) Field(name string) (*FieldDescriptor, bool) {
	for i := range d.Fields {
		if d.Fields[i].Name == name {
			return &d.Fields[i], true
		}
	}
	return nil, false
}

// KeyFields returns the key fields in declaration order.
func (d *EntityDescriptor) KeyFields() []FieldDescriptor {
	var out []FieldDescriptor
	for _, f := range d.Fields {
		if f.Key {
			out = append(out, f)
		}
	}
	return out
}

// New describes the struct type t under the given qualified name and set.
func New(t reflect.Type, name edm.FullQualifiedName, entitySet string) (*EntityDescriptor, error) {
	t = Indirect(t)
	fields, err := Describe(t)
	if err != nil {
		return nil, err
	}
	return &EntityDescriptor{
		Type:      t,
		Name:      name,
		EntitySet: entitySet,
		Fields:    fields,
	}, nil
}

// For is New for a type parameter.
func For[T any](namespace, name, entitySet string) (*EntityDescriptor, error) {
	return New(reflect.TypeFor[T](), edm.NewFQN(namespace, name), entitySet)
}

var cache sync.Map // reflect.Type -> []FieldDescriptor

// Describe returns the field descriptors of a struct type in declaration
// order. Results are cached; callers must not modify the returned slice.
func Describe(t reflect.Type) ([]FieldDescriptor, error) {
	if t == nil {
		return nil, errors.New("nil type")
	}
	t = Indirect(t)
	if cached, ok := cache.Load(t); ok {
		return cached.([]FieldDescriptor), nil
	}
	if t.Kind() != reflect.Struct {
		return nil, errors.Errorf("type '%s' is not a struct", t)
	}

	fields := make([]FieldDescriptor, 0, t.NumField())
	seen := make(map[string]string, t.NumField())
	for i := 0; i < t.NumField(); i++ {
		sf := t.Field(i)
		if !sf.IsExported() || sf.Anonymous {
			continue
		}
		tag, hasTag := sf.Tag.Lookup(TagName)
		if tag == "-" {
			continue
		}
		fd, err := describeField(sf, tag, hasTag)
		if err != nil {
			return nil, errors.Wrapf(err, "field '%s' of type '%s'", sf.Name, t)
		}
		if prev, dup := seen[fd.Name]; dup {
			return nil, errors.Errorf("fields '%s' and '%s' of type '%s' share property name '%s'", prev, sf.Name, t, fd.Name)
		}
		seen[fd.Name] = sf.Name
		fields = append(fields, fd)
	}

	actual, _ := cache.LoadOrStore(t, fields)
	return actual.([]FieldDescriptor), nil
}

func describeField(sf reflect.StructField, tag string, hasTag bool) (FieldDescriptor, error) {
	fd := FieldDescriptor{
		Name:     DefaultName(sf.Name),
		GoName:   sf.Name,
		Index:    sf.Index,
		Type:     sf.Type,
		Nullable: true,
	}
	if !hasTag {
		return fd, nil
	}

	parts := strings.Split(tag, ",")
	if name := strings.TrimSpace(parts[0]); name != "" {
		fd.Name = name
	}

	var nullSet bool
	for _, raw := range parts[1:] {
		opt := strings.TrimSpace(raw)
		key, val, hasVal := strings.Cut(opt, "=")
		switch key {
		case "":
			continue
		case "key":
			fd.Key = true
		case "notnull", "nullable":
			if nullSet {
				return fd, errors.Errorf("conflicting nullability options in tag %q", tag)
			}
			nullSet = true
			fd.Nullable = key == "nullable"
		case "enum":
			switch strings.ToLower(val) {
			case "ordinal":
				fd.Enum = EnumOrdinal
			case "string":
				fd.Enum = EnumString
			default:
				return fd, errors.Errorf("invalid enum encoding %q", val)
			}
		case "manyToOne", "oneToOne", "oneToMany", "manyToMany":
			if fd.Relation.Kind != RelationNone {
				return fd, errors.Errorf("multiple relationship options in tag %q", tag)
			}
			fd.Relation.Kind = parseRelation(key)
		case "mappedBy":
			if !hasVal || val == "" {
				return fd, errors.New("mappedBy requires a field name")
			}
			fd.Relation.MappedBy = val
		default:
			return fd, errors.Errorf("unknown option %q", key)
		}
	}

	if fd.Relation.MappedBy != "" && fd.Relation.Kind == RelationNone {
		return fd, errors.New("mappedBy given without a relationship option")
	}
	if fd.Relation.MappedBy != "" && fd.Relation.Kind == ManyToOne {
		return fd, errors.New("manyToOne is always the owning side and cannot carry mappedBy")
	}
	if fd.Enum != EnumNone && fd.Relation.Kind != RelationNone {
		return fd, errors.New("a relationship cannot be enumerated")
	}
	return fd, nil
}

func parseRelation(s string) RelationKind {
	switch s {
	case "manyToOne":
		return ManyToOne
	case "oneToOne":
		return OneToOne
	case "oneToMany":
		return OneToMany
	case "manyToMany":
		return ManyToMany
	}
	return RelationNone
}

// DefaultName lower-cases the leading initialism of a Go field name:
// ID -> id, Name -> name, URLPath -> urlPath.
func DefaultName(goName string) string {
	r := []rune(goName)
	n := 0
	for n < len(r) && unicode.IsUpper(r[n]) {
		n++
	}
	switch {
	case n == 0:
		return goName
	case n == len(r):
		return strings.ToLower(goName)
	case n > 1:
		// keep the last capital: it starts the next word
		n--
	}
	for i := 0; i < n; i++ {
		r[i] = unicode.ToLower(r[i])
	}
	return string(r)
}

// Indirect strips pointer indirections.
func Indirect(t reflect.Type) reflect.Type {
	for t != nil && t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	return t
}

var bytesType = reflect.TypeOf([]byte(nil))

// IsMultiValued reports whether t is a slice or array. Types found in the
// primitive table ([]byte, uuid.UUID, ulid.ULID) are single values.
func IsMultiValued(t reflect.Type) bool {
	t = Indirect(t)
	if t == nil || t == bytesType {
		return false
	}
	if _, ok := edm.LookupPrimitive(t); ok {
		return false
	}
	return t.Kind() == reflect.Slice || t.Kind() == reflect.Array
}
