package main

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestMetadataCommand(t *testing.T) {
	out, err := run(t, "metadata", "--container", "Demo")
	require.NoError(t, err)

	assert.Contains(t, out, `<edmx:Edmx`)
	assert.Contains(t, out, `Namespace="org.sample"`)
	assert.Contains(t, out, `<EntitySet Name="People" EntityType="org.sample.Person"`)
	assert.Contains(t, out, `<EntityContainer Name="Demo"`)
}

func TestDDLCommand(t *testing.T) {
	out, err := run(t, "ddl")
	require.NoError(t, err)

	assert.Contains(t, out, `create schema if not exists "org_sample";`)
	assert.Contains(t, out, `create table if not exists "org_sample"."people"`)
	assert.Contains(t, out, `"employer_id" bigint null`)
}

func TestInvalidConfig(t *testing.T) {
	_, err := run(t, "ddl", "--base-path", "/api")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid config")
}
