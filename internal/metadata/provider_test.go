package metadata

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"odatagate/internal/edm"
)

func buildProvider(t *testing.T) *Provider {
	t.Helper()
	b := NewBuilder(nil)
	mustAdd[Person](t, b, ns, "Person", "People")
	mustAdd[Company](t, b, ns, "Company", "Companies")
	require.NoError(t, b.AddEnumType("org.ref", edm.EnumType{Name: "Color", UnderlyingType: edm.EdmInt32}))
	schemas, err := b.CreateSchema("Default")
	require.NoError(t, err)
	return NewProvider(schemas)
}

func TestProviderLookups(t *testing.T) {
	p := buildProvider(t)
	container := edm.NewFQN(ns, "Default")

	et, err := p.EntityType(edm.NewFQN(ns, "Person"))
	require.NoError(t, err)
	assert.Equal(t, "Person", et.Name)

	es, err := p.EntitySet(container, "Companies")
	require.NoError(t, err)
	assert.Equal(t, edm.NewFQN(ns, "Company"), es.Type)

	enum, err := p.EnumType(edm.NewFQN("org.ref", "Color"))
	require.NoError(t, err)
	assert.Equal(t, "Color", enum.Name)

	info, err := p.EntityContainerInfo(container)
	require.NoError(t, err)
	assert.Equal(t, container, info.ContainerName)

	assert.Len(t, p.Schemas(), 2)
	assert.Len(t, p.EntitySets(), 2)
	assert.Equal(t, []edm.AliasInfo{{Namespace: ns}, {Namespace: "org.ref"}}, p.AliasInfos())

	set, schema, ok := p.FindEntitySet("People")
	require.True(t, ok)
	assert.Equal(t, "People", set.Name)
	assert.Equal(t, ns, schema.Namespace)
}

func TestProviderNotFound(t *testing.T) {
	p := buildProvider(t)
	container := edm.NewFQN(ns, "Default")

	lookups := map[string]func() error{
		"unknown namespace": func() error { _, err := p.EntityType(edm.NewFQN("org.none", "Person")); return err },
		"entity type":       func() error { _, err := p.EntityType(edm.NewFQN(ns, "Robot")); return err },
		"complex type":      func() error { _, err := p.ComplexType(edm.NewFQN(ns, "Address")); return err },
		"enum type":         func() error { _, err := p.EnumType(edm.NewFQN(ns, "Color")); return err },
		"type definition":   func() error { _, err := p.TypeDefinition(edm.NewFQN(ns, "Money")); return err },
		"term":              func() error { _, err := p.Term(edm.NewFQN(ns, "Core")); return err },
		"actions":           func() error { _, err := p.Actions(edm.NewFQN(ns, "Hire")); return err },
		"functions":         func() error { _, err := p.Functions(edm.NewFQN(ns, "Count")); return err },
		"entity set":        func() error { _, err := p.EntitySet(container, "Robots"); return err },
		"singleton":         func() error { _, err := p.Singleton(container, "Me"); return err },
		"action import":     func() error { _, err := p.ActionImport(container, "Hire"); return err },
		"function import":   func() error { _, err := p.FunctionImport(container, "Count"); return err },
		"container name":    func() error { _, err := p.EntityContainerInfo(edm.NewFQN(ns, "Other")); return err },
	}
	for name, lookup := range lookups {
		t.Run(name, func(t *testing.T) {
			var nf *NotFoundError
			assert.True(t, errors.As(lookup(), &nf))
		})
	}
}

func TestProviderAlias(t *testing.T) {
	p := NewProvider([]*edm.Schema{{
		Namespace:   "org.sample",
		Alias:       "s",
		EntityTypes: []edm.EntityType{{Name: "Person"}},
	}})
	et, err := p.EntityType(edm.NewFQN("s", "Person"))
	require.NoError(t, err)
	assert.Equal(t, "Person", et.Name)

	_, err = p.EntitySet(edm.NewFQN("org.sample", "Default"), "People")
	var nf *NotFoundError
	assert.True(t, errors.As(err, &nf))
}
