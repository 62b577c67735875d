// Package edm holds the entity data model produced by schema derivation:
// entity types, entity sets, containers and schemas, plus the generic
// entity record exchanged with controllers.
package edm

import (
	"strings"
)

// FullQualifiedName identifies a schema element by namespace and local name.
type FullQualifiedName struct {
	Namespace string
	Name      string
}

// NewFQN builds a FullQualifiedName.
func NewFQN(namespace, name string) FullQualifiedName {
	return FullQualifiedName{Namespace: namespace, Name: name}
}

// ParseFQN splits "org.sample.Person" into ("org.sample", "Person").
// A name without a dot has an empty namespace.
func ParseFQN(s string) FullQualifiedName {
	i := strings.LastIndexByte(s, '.')
	if i <= 0 || i >= len(s)-1 {
		return FullQualifiedName{Name: s}
	}
	return FullQualifiedName{Namespace: s[:i], Name: s[i+1:]}
}

func (n FullQualifiedName) String() string {
	if n.Namespace == "" {
		return n.Name
	}
	return n.Namespace + "." + n.Name
}

func (n FullQualifiedName) IsZero() bool { return n.Namespace == "" && n.Name == "" }

// Property is a structural (non-relationship) property of an entity type.
type Property struct {
	Name       string
	Type       FullQualifiedName
	Collection bool
	Nullable   bool
}

// PropertyRef names one key property.
type PropertyRef struct {
	Name string
}

// NavigationProperty is a relationship field with its resolved partner.
type NavigationProperty struct {
	Name       string
	Type       FullQualifiedName
	Collection bool
	Nullable   bool
	Partner    string
}

// NavigationPropertyBinding connects a navigation path to a target entity set.
type NavigationPropertyBinding struct {
	Path   string
	Target string
}

// EntityType is the schema-level shape of an entity.
type EntityType struct {
	Name                 string
	Properties           []Property
	Key                  []PropertyRef
	NavigationProperties []NavigationProperty
}

// PropertyNames returns the structural property names in declaration order.
func (t *EntityType) PropertyNames() []string {
	names := make([]string, 0, len(t.Properties))
	for _, p := range t.Properties {
		names = append(names, p.Name)
	}
	return names
}

// Property looks a structural property up by name.
func (t *EntityType) Property(name string) (*Property, bool) {
	for i := range t.Properties {
		if t.Properties[i].Name == name {
			return &t.Properties[i], true
		}
	}
	return nil, false
}

// NavigationProperty looks a navigation property up by name.
func (t *EntityType) NavigationProperty(name string) (*NavigationProperty, bool) {
	for i := range t.NavigationProperties {
		if t.NavigationProperties[i].Name == name {
			return &t.NavigationProperties[i], true
		}
	}
	return nil, false
}

// KeyNames returns the key property names in declaration order.
func (t *EntityType) KeyNames() []string {
	names := make([]string, 0, len(t.Key))
	for _, k := range t.Key {
		names = append(names, k.Name)
	}
	return names
}

// IsKey reports whether name is one of the key properties.
func (t *EntityType) IsKey(name string) bool {
	for _, k := range t.Key {
		if k.Name == name {
			return true
		}
	}
	return false
}

// EntitySet is the named collection exposing one entity type.
type EntitySet struct {
	Name                       string
	Type                       FullQualifiedName
	NavigationPropertyBindings []NavigationPropertyBinding
}

// Singleton is a single named entity exposed by a container.
type Singleton struct {
	Name string
	Type FullQualifiedName
}

// ActionImport exposes an unbound action in a container.
type ActionImport struct {
	Name   string
	Action FullQualifiedName
}

// FunctionImport exposes an unbound function in a container.
type FunctionImport struct {
	Name     string
	Function FullQualifiedName
}

// EntityContainer groups the sets of one schema.
type EntityContainer struct {
	Name            string
	EntitySets      []EntitySet
	Singletons      []Singleton
	ActionImports   []ActionImport
	FunctionImports []FunctionImport
}

func (c *EntityContainer) EntitySet(name string) (*EntitySet, bool) {
	for i := range c.EntitySets {
		if c.EntitySets[i].Name == name {
			return &c.EntitySets[i], true
		}
	}
	return nil, false
}

func (c *EntityContainer) Singleton(name string) (*Singleton, bool) {
	for i := range c.Singletons {
		if c.Singletons[i].Name == name {
			return &c.Singletons[i], true
		}
	}
	return nil, false
}

func (c *EntityContainer) ActionImport(name string) (*ActionImport, bool) {
	for i := range c.ActionImports {
		if c.ActionImports[i].Name == name {
			return &c.ActionImports[i], true
		}
	}
	return nil, false
}

func (c *EntityContainer) FunctionImport(name string) (*FunctionImport, bool) {
	for i := range c.FunctionImports {
		if c.FunctionImports[i].Name == name {
			return &c.FunctionImports[i], true
		}
	}
	return nil, false
}

// ComplexType is a keyless structured type.
type ComplexType struct {
	Name       string
	Properties []Property
}

// EnumMember is one named value of an enum type.
type EnumMember struct {
	Name  string
	Value int64
}

// EnumType is a named set of members over an integer underlying type.
type EnumType struct {
	Name           string
	UnderlyingType FullQualifiedName
	Members        []EnumMember
}

// TypeDefinition names a primitive type with facets.
type TypeDefinition struct {
	Name           string
	UnderlyingType FullQualifiedName
}

// Term is a vocabulary term.
type Term struct {
	Name string
	Type FullQualifiedName
}

// Parameter of an action or function.
type Parameter struct {
	Name       string
	Type       FullQualifiedName
	Collection bool
	Nullable   bool
}

// Action is a side-effecting operation.
type Action struct {
	Name       string
	Bound      bool
	Parameters []Parameter
	ReturnType *FullQualifiedName
}

// Function is a side-effect free operation.
type Function struct {
	Name       string
	Bound      bool
	Parameters []Parameter
	ReturnType FullQualifiedName
}

// Schema is the per-namespace unit of metadata. It is immutable once built.
type Schema struct {
	Namespace       string
	Alias           string
	EntityTypes     []EntityType
	ComplexTypes    []ComplexType
	EnumTypes       []EnumType
	TypeDefinitions []TypeDefinition
	Terms           []Term
	Actions         []Action
	Functions       []Function
	EntityContainer *EntityContainer
}

func (s *Schema) EntityType(name string) (*EntityType, bool) {
	for i := range s.EntityTypes {
		if s.EntityTypes[i].Name == name {
			return &s.EntityTypes[i], true
		}
	}
	return nil, false
}

func (s *Schema) ComplexType(name string) (*ComplexType, bool) {
	for i := range s.ComplexTypes {
		if s.ComplexTypes[i].Name == name {
			return &s.ComplexTypes[i], true
		}
	}
	return nil, false
}

func (s *Schema) EnumType(name string) (*EnumType, bool) {
	for i := range s.EnumTypes {
		if s.EnumTypes[i].Name == name {
			return &s.EnumTypes[i], true
		}
	}
	return nil, false
}

func (s *Schema) TypeDefinition(name string) (*TypeDefinition, bool) {
	for i := range s.TypeDefinitions {
		if s.TypeDefinitions[i].Name == name {
			return &s.TypeDefinitions[i], true
		}
	}
	return nil, false
}

func (s *Schema) Term(name string) (*Term, bool) {
	for i := range s.Terms {
		if s.Terms[i].Name == name {
			return &s.Terms[i], true
		}
	}
	return nil, false
}

// ActionsNamed returns every overload of the named action.
func (s *Schema) ActionsNamed(name string) []Action {
	var out []Action
	for _, a := range s.Actions {
		if a.Name == name {
			out = append(out, a)
		}
	}
	return out
}

// FunctionsNamed returns every overload of the named function.
func (s *Schema) FunctionsNamed(name string) []Function {
	var out []Function
	for _, f := range s.Functions {
		if f.Name == name {
			out = append(out, f)
		}
	}
	return out
}

// EntityContainerInfo describes a container by qualified name.
type EntityContainerInfo struct {
	ContainerName FullQualifiedName
}

// AliasInfo pairs a namespace with its alias.
type AliasInfo struct {
	Namespace string
	Alias     string
}
