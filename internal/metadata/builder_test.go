package metadata

import (
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"odatagate/internal/descriptor"
	"odatagate/internal/edm"
)

const ns = "org.sample"

type Person struct {
	ID       int      `odata:"id,key"`
	Name     string   `odata:"name"`
	Employer *Company `odata:"employer,manyToOne"`
}

type Company struct {
	ID        int      `odata:"id,key"`
	Employees []Person `odata:"employees,oneToMany,mappedBy=employer"`
}

func mustAdd[T any](t *testing.T, b *Builder, namespace, name, set string) {
	t.Helper()
	d, err := descriptor.For[T](namespace, name, set)
	require.NoError(t, err)
	require.NoError(t, b.AddEntity(d))
}

func TestCreateSchemaPersonCompany(t *testing.T) {
	b := NewBuilder(nil)
	mustAdd[Person](t, b, ns, "Person", "People")
	mustAdd[Company](t, b, ns, "Company", "Companies")

	schemas, err := b.CreateSchema("Default")
	require.NoError(t, err)
	require.Len(t, schemas, 1)

	s := schemas[0]
	assert.Equal(t, ns, s.Namespace)
	require.Len(t, s.EntityTypes, 2)
	assert.Equal(t, "Default", s.EntityContainer.Name)

	person, ok := s.EntityType("Person")
	require.True(t, ok)
	assert.Equal(t, []string{"id", "name"}, person.PropertyNames())
	assert.Equal(t, []string{"id"}, person.KeyNames())
	assert.Equal(t, edm.EdmInt64, person.Properties[0].Type)

	nav, ok := person.NavigationProperty("employer")
	require.True(t, ok)
	assert.Equal(t, edm.NewFQN(ns, "Company"), nav.Type)
	assert.False(t, nav.Collection)
	assert.True(t, nav.Nullable)
	assert.Equal(t, "employees", nav.Partner)

	people, ok := s.EntityContainer.EntitySet("People")
	require.True(t, ok)
	require.Len(t, people.NavigationPropertyBindings, 1)
	assert.Equal(t, edm.NavigationPropertyBinding{Path: "employees", Target: "Companies"}, people.NavigationPropertyBindings[0])

	company, ok := s.EntityType("Company")
	require.True(t, ok)
	emp, ok := company.NavigationProperty("employees")
	require.True(t, ok)
	assert.True(t, emp.Collection)
	assert.Equal(t, "employer", emp.Partner)
	assert.Equal(t, edm.NewFQN(ns, "Person"), emp.Type)

	companies, _ := s.EntityContainer.EntitySet("Companies")
	assert.Equal(t, []edm.NavigationPropertyBinding{{Path: "employer", Target: "People"}}, companies.NavigationPropertyBindings)
}

type Address struct {
	Street string
}

type Customer struct {
	ID      int `odata:",key"`
	Address Address
}

func TestCreateSchemaTypeResolutionError(t *testing.T) {
	b := NewBuilder(nil)
	mustAdd[Customer](t, b, ns, "Customer", "Customers")

	schemas, err := b.CreateSchema("Default")
	assert.Nil(t, schemas)
	require.Error(t, err)

	var buildErr *SchemaBuildError
	require.True(t, errors.As(err, &buildErr))
	assert.Equal(t, "address", buildErr.Field)
	assert.Equal(t, edm.NewFQN(ns, "Customer"), buildErr.Type)

	var typeErr *TypeResolutionError
	require.True(t, errors.As(err, &typeErr))
	assert.Equal(t, "address", typeErr.Field)
	assert.Contains(t, err.Error(), "address")
}

type Orphan struct {
	ID    int      `odata:",key"`
	Owner *Company `odata:",manyToOne"`
}

func TestCreateSchemaRelationshipError(t *testing.T) {
	b := NewBuilder(nil)
	mustAdd[Company](t, b, ns, "Company", "Companies")
	mustAdd[Person](t, b, ns, "Person", "People")
	mustAdd[Orphan](t, b, ns, "Orphan", "Orphans")

	schemas, err := b.CreateSchema("Default")
	assert.Nil(t, schemas, "no partial schema set")

	var relErr *RelationshipResolutionError
	require.True(t, errors.As(err, &relErr))
	assert.Equal(t, "owner", relErr.Field)
}

type Student struct {
	ID      int      `odata:",key"`
	Courses []Course `odata:",manyToMany"`
}

type Course struct {
	ID       int       `odata:",key"`
	Students []Student `odata:",manyToMany,mappedBy=courses"`
}

type Tutor struct {
	ID     int    `odata:",key"`
	Course Course `odata:",manyToMany"`
}

func TestCreateSchemaManyToMany(t *testing.T) {
	b := NewBuilder(nil)
	mustAdd[Student](t, b, ns, "Student", "Students")
	mustAdd[Course](t, b, ns, "Course", "Courses")

	schemas, err := b.CreateSchema("Default")
	require.NoError(t, err)

	student, _ := schemas[0].EntityType("Student")
	nav, ok := student.NavigationProperty("courses")
	require.True(t, ok)
	assert.Equal(t, "students", nav.Partner)
	assert.True(t, nav.Collection)

	course, _ := schemas[0].EntityType("Course")
	nav, ok = course.NavigationProperty("students")
	require.True(t, ok)
	assert.Equal(t, "courses", nav.Partner)

	b2 := NewBuilder(nil)
	mustAdd[Student](t, b2, ns, "Student", "Students")
	mustAdd[Course](t, b2, ns, "Course", "Courses")
	mustAdd[Tutor](t, b2, ns, "Tutor", "Tutors")
	_, err = b2.CreateSchema("Default")
	var relErr *RelationshipResolutionError
	require.True(t, errors.As(err, &relErr))
	assert.Equal(t, "course", relErr.Field)
}

type Ambiguous struct {
	ID   int        `odata:",key"`
	Peer *Candidate `odata:",manyToOne"`
}

type Candidate struct {
	ID    int         `odata:",key"`
	Left  []Ambiguous `odata:",oneToMany,mappedBy=peer"`
	Right []Ambiguous `odata:",oneToMany,mappedBy=peer"`
}

func TestCreateSchemaAmbiguousPartner(t *testing.T) {
	b := NewBuilder(nil)
	mustAdd[Ambiguous](t, b, ns, "Ambiguous", "Ambiguous")
	mustAdd[Candidate](t, b, ns, "Candidate", "Candidates")

	_, err := b.CreateSchema("Default")
	var relErr *RelationshipResolutionError
	require.True(t, errors.As(err, &relErr))
	assert.Contains(t, relErr.Reason, "ambiguous")
}

type level int

type Ticket struct {
	Code     string  `odata:"code,key"`
	Line     int16   `odata:"line,key"`
	Level    level   `odata:",enum=ordinal,notnull"`
	Levels   []level `odata:",enum=string"`
	Labels   []string
	Payload  []byte
	OpenedAt time.Time `odata:",notnull"`
}

func TestCreateSchemaPropertyShapes(t *testing.T) {
	b := NewBuilder(nil)
	mustAdd[Ticket](t, b, "org.desk", "Ticket", "Tickets")

	schemas, err := b.CreateSchema("Default")
	require.NoError(t, err)
	et, _ := schemas[0].EntityType("Ticket")

	assert.Equal(t, []string{"code", "line"}, et.KeyNames())
	want := []edm.Property{
		{Name: "code", Type: edm.EdmString, Nullable: true},
		{Name: "line", Type: edm.EdmInt16, Nullable: true},
		{Name: "level", Type: edm.EdmInt32},
		{Name: "levels", Type: edm.EdmString, Collection: true, Nullable: true},
		{Name: "labels", Type: edm.EdmString, Collection: true, Nullable: true},
		{Name: "payload", Type: edm.EdmBinary, Nullable: true},
		{Name: "openedAt", Type: edm.EdmDateTimeOffset},
	}
	assert.Equal(t, want, et.Properties)
}

type Device struct {
	ID     uuid.UUID `odata:"id,key"`
	Serial ulid.ULID `odata:"serial"`
}

func TestCreateSchemaIdentifierProperties(t *testing.T) {
	b := NewBuilder(nil)
	mustAdd[Device](t, b, ns, "Device", "Devices")

	schemas, err := b.CreateSchema("Default")
	require.NoError(t, err)
	et, ok := schemas[0].EntityType("Device")
	require.True(t, ok)
	require.Len(t, et.Properties, 2)

	assert.Equal(t, "id", et.Properties[0].Name)
	assert.Equal(t, edm.EdmGuid, et.Properties[0].Type)
	assert.False(t, et.Properties[0].Collection)
	assert.Equal(t, edm.EdmString, et.Properties[1].Type)
	assert.False(t, et.Properties[1].Collection)
	assert.Equal(t, []string{"id"}, et.KeyNames())
}

type Keyless struct {
	Name string
}

func TestCreateSchemaEntityErrors(t *testing.T) {
	b := NewBuilder(nil)
	mustAdd[Keyless](t, b, ns, "Keyless", "Keyless")
	_, err := b.CreateSchema("Default")
	var buildErr *SchemaBuildError
	require.True(t, errors.As(err, &buildErr))
	assert.Empty(t, buildErr.Field)

	b = NewBuilder(nil)
	mustAdd[Company](t, b, ns, "Company", "")
	_, err = b.CreateSchema("Default")
	require.True(t, errors.As(err, &buildErr))

	b = NewBuilder(nil)
	_, err = b.CreateSchema("")
	assert.Error(t, err)

	assert.Error(t, b.AddEntity(nil))
}

func TestAddEntityLastWriteWins(t *testing.T) {
	b := NewBuilder(nil)
	mustAdd[Keyless](t, b, "org.a", "Thing", "Things")
	mustAdd[Ticket](t, b, "org.b", "Ticket", "Tickets")
	mustAdd[Customer](t, b, "org.a", "Other", "Others")
	mustAdd[Company](t, b, "org.a", "Thing", "Things")

	ds := b.Descriptors()
	require.Len(t, ds, 3)
	assert.Equal(t, "org.a.Thing", ds[0].Name.String())
	assert.Equal(t, "org.a.Other", ds[1].Name.String())
	assert.Equal(t, "org.b.Ticket", ds[2].Name.String())

	d, ok := b.Descriptor(ds[0].Type)
	require.True(t, ok)
	assert.Equal(t, "Things", d.EntitySet)
	_, ok = b.Descriptor(nil)
	assert.False(t, ok)
}

func TestAddEnumType(t *testing.T) {
	b := NewBuilder(nil)
	require.NoError(t, b.AddEnumType("org.ref", edm.EnumType{Name: "Color", UnderlyingType: edm.EdmInt32}))
	require.NoError(t, b.AddEnumType("org.ref", edm.EnumType{Name: "Color", UnderlyingType: edm.EdmInt64}))
	assert.Error(t, b.AddEnumType("", edm.EnumType{Name: "X"}))

	schemas, err := b.CreateSchema("Default")
	require.NoError(t, err)
	require.Len(t, schemas, 1)
	require.Len(t, schemas[0].EnumTypes, 1)
	assert.Equal(t, edm.EdmInt64, schemas[0].EnumTypes[0].UnderlyingType)
}
