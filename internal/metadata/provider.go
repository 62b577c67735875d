package metadata

import (
	"odatagate/internal/edm"
)

// Provider is a read-only lookup facade over a built schema set. Safe for
// concurrent use since the schemas never change after CreateSchema.
type Provider struct {
	schemas     []*edm.Schema
	byNamespace map[string]*edm.Schema
}

func NewProvider(schemas []*edm.Schema) *Provider {
	p := &Provider{
		schemas:     schemas,
		byNamespace: make(map[string]*edm.Schema, len(schemas)*2),
	}
	for _, s := range schemas {
		p.byNamespace[s.Namespace] = s
	}
	// aliases never shadow a real namespace
	for _, s := range schemas {
		if s.Alias == "" {
			continue
		}
		if _, taken := p.byNamespace[s.Alias]; !taken {
			p.byNamespace[s.Alias] = s
		}
	}
	return p
}

// Schemas returns the schema set in build order.
func (p *Provider) Schemas() []*edm.Schema { return p.schemas }

// Schema resolves a namespace or alias.
func (p *Provider) Schema(namespace string) (*edm.Schema, error) {
	s, ok := p.byNamespace[namespace]
	if !ok {
		return nil, &NotFoundError{Kind: "namespace", Name: namespace}
	}
	return s, nil
}

func (p *Provider) EntityType(name edm.FullQualifiedName) (*edm.EntityType, error) {
	s, err := p.Schema(name.Namespace)
	if err != nil {
		return nil, err
	}
	if et, ok := s.EntityType(name.Name); ok {
		return et, nil
	}
	return nil, notFound("entity type", name)
}

func (p *Provider) ComplexType(name edm.FullQualifiedName) (*edm.ComplexType, error) {
	s, err := p.Schema(name.Namespace)
	if err != nil {
		return nil, err
	}
	if ct, ok := s.ComplexType(name.Name); ok {
		return ct, nil
	}
	return nil, notFound("complex type", name)
}

func (p *Provider) EnumType(name edm.FullQualifiedName) (*edm.EnumType, error) {
	s, err := p.Schema(name.Namespace)
	if err != nil {
		return nil, err
	}
	if et, ok := s.EnumType(name.Name); ok {
		return et, nil
	}
	return nil, notFound("enum type", name)
}

func (p *Provider) TypeDefinition(name edm.FullQualifiedName) (*edm.TypeDefinition, error) {
	s, err := p.Schema(name.Namespace)
	if err != nil {
		return nil, err
	}
	if td, ok := s.TypeDefinition(name.Name); ok {
		return td, nil
	}
	return nil, notFound("type definition", name)
}

func (p *Provider) Term(name edm.FullQualifiedName) (*edm.Term, error) {
	s, err := p.Schema(name.Namespace)
	if err != nil {
		return nil, err
	}
	if t, ok := s.Term(name.Name); ok {
		return t, nil
	}
	return nil, notFound("term", name)
}

// Actions returns every overload of the named action.
func (p *Provider) Actions(name edm.FullQualifiedName) ([]edm.Action, error) {
	s, err := p.Schema(name.Namespace)
	if err != nil {
		return nil, err
	}
	if out := s.ActionsNamed(name.Name); len(out) > 0 {
		return out, nil
	}
	return nil, notFound("action", name)
}

// Functions returns every overload of the named function.
func (p *Provider) Functions(name edm.FullQualifiedName) ([]edm.Function, error) {
	s, err := p.Schema(name.Namespace)
	if err != nil {
		return nil, err
	}
	if out := s.FunctionsNamed(name.Name); len(out) > 0 {
		return out, nil
	}
	return nil, notFound("function", name)
}

func (p *Provider) container(namespace string) (*edm.EntityContainer, error) {
	s, err := p.Schema(namespace)
	if err != nil {
		return nil, err
	}
	if s.EntityContainer == nil {
		return nil, &NotFoundError{Kind: "entity container", Name: namespace}
	}
	return s.EntityContainer, nil
}

// EntitySet looks a set up in the container of the given namespace.
func (p *Provider) EntitySet(container edm.FullQualifiedName, name string) (*edm.EntitySet, error) {
	c, err := p.container(container.Namespace)
	if err != nil {
		return nil, err
	}
	if es, ok := c.EntitySet(name); ok {
		return es, nil
	}
	return nil, notFound("entity set", edm.NewFQN(container.String(), name))
}

func (p *Provider) Singleton(container edm.FullQualifiedName, name string) (*edm.Singleton, error) {
	c, err := p.container(container.Namespace)
	if err != nil {
		return nil, err
	}
	if s, ok := c.Singleton(name); ok {
		return s, nil
	}
	return nil, notFound("singleton", edm.NewFQN(container.String(), name))
}

func (p *Provider) ActionImport(container edm.FullQualifiedName, name string) (*edm.ActionImport, error) {
	c, err := p.container(container.Namespace)
	if err != nil {
		return nil, err
	}
	if ai, ok := c.ActionImport(name); ok {
		return ai, nil
	}
	return nil, notFound("action import", edm.NewFQN(container.String(), name))
}

func (p *Provider) FunctionImport(container edm.FullQualifiedName, name string) (*edm.FunctionImport, error) {
	c, err := p.container(container.Namespace)
	if err != nil {
		return nil, err
	}
	if fi, ok := c.FunctionImport(name); ok {
		return fi, nil
	}
	return nil, notFound("function import", edm.NewFQN(container.String(), name))
}

// EntityContainerInfo answers only for the container actually named.
func (p *Provider) EntityContainerInfo(name edm.FullQualifiedName) (*edm.EntityContainerInfo, error) {
	s, err := p.Schema(name.Namespace)
	if err != nil {
		return nil, err
	}
	if s.EntityContainer == nil || s.EntityContainer.Name != name.Name {
		return nil, notFound("entity container", name)
	}
	return &edm.EntityContainerInfo{ContainerName: edm.NewFQN(s.Namespace, s.EntityContainer.Name)}, nil
}

func (p *Provider) AliasInfos() []edm.AliasInfo {
	out := make([]edm.AliasInfo, 0, len(p.schemas))
	for _, s := range p.schemas {
		out = append(out, edm.AliasInfo{Namespace: s.Namespace, Alias: s.Alias})
	}
	return out
}

// EntitySets lists every set across namespaces in schema order.
func (p *Provider) EntitySets() []edm.EntitySet {
	var out []edm.EntitySet
	for _, s := range p.schemas {
		if s.EntityContainer != nil {
			out = append(out, s.EntityContainer.EntitySets...)
		}
	}
	return out
}

// FindEntitySet searches all containers for a set by name.
func (p *Provider) FindEntitySet(name string) (*edm.EntitySet, *edm.Schema, bool) {
	for _, s := range p.schemas {
		if s.EntityContainer == nil {
			continue
		}
		if es, ok := s.EntityContainer.EntitySet(name); ok {
			return es, s, true
		}
	}
	return nil, nil, false
}
