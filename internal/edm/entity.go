package edm

// ValueKind tags the shape of a property value in an entity record.
type ValueKind int

const (
	ValuePrimitive ValueKind = iota
	ValueCollection
)

func (k ValueKind) String() string {
	switch k {
	case ValuePrimitive:
		return "primitive"
	case ValueCollection:
		return "collection"
	default:
		return "unknown"
	}
}

// Value is one (name, value) pair of an entity record.
type Value struct {
	Name  string
	Kind  ValueKind
	Value any
}

// Entity is the generic property-bag representation of one entity instance.
// Property order is significant and follows schema declaration order when
// produced by serialization.
type Entity struct {
	Type       FullQualifiedName
	Properties []Value
}

// NewEntity returns an empty record for the given entity type.
func NewEntity(t FullQualifiedName) *Entity {
	return &Entity{Type: t}
}

// Add appends a property. Adding an existing name replaces its value in place.
func (e *Entity) Add(name string, kind ValueKind, v any) {
	for i := range e.Properties {
		if e.Properties[i].Name == name {
			e.Properties[i].Kind = kind
			e.Properties[i].Value = v
			return
		}
	}
	e.Properties = append(e.Properties, Value{Name: name, Kind: kind, Value: v})
}

// Get returns the value of the named property.
func (e *Entity) Get(name string) (any, bool) {
	for _, p := range e.Properties {
		if p.Name == name {
			return p.Value, true
		}
	}
	return nil, false
}

// Names returns the property names in record order.
func (e *Entity) Names() []string {
	out := make([]string, 0, len(e.Properties))
	for _, p := range e.Properties {
		out = append(out, p.Name)
	}
	return out
}

// EntityCollection is an ordered list of records of one entity type.
type EntityCollection struct {
	Type     FullQualifiedName
	Entities []*Entity
}
