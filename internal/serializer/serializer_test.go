package serializer

import (
	"errors"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"odatagate/internal/descriptor"
	"odatagate/internal/edm"
	"odatagate/internal/metadata"
)

type mood int

const (
	calm mood = iota
	angry
)

func (m mood) MarshalText() ([]byte, error) {
	if m == angry {
		return []byte("ANGRY"), nil
	}
	return []byte("CALM"), nil
}

func (m *mood) UnmarshalText(b []byte) error {
	switch strings.ToUpper(string(b)) {
	case "ANGRY":
		*m = angry
	case "CALM":
		*m = calm
	default:
		return errors.New("unknown mood")
	}
	return nil
}

type person struct {
	ID       int64     `odata:"id,key"`
	Name     string    `odata:"name"`
	Nick     *string   `odata:"nick"`
	Mood     mood      `odata:",enum=string"`
	Rank     mood      `odata:",enum=ordinal"`
	Tags     []string  `odata:"tags"`
	Avatar   []byte    `odata:"avatar"`
	Token    uuid.UUID `odata:"token"`
	Born     time.Time `odata:"born"`
	Score    float32   `odata:"score"`
	Age      uint8     `odata:"age"`
	Employer *person   `odata:"-"`
}

func schemaFor(t *testing.T) (*edm.EntityType, *descriptor.EntityDescriptor) {
	t.Helper()
	d, err := descriptor.For[person]("org.sample", "Person", "People")
	require.NoError(t, err)
	b := metadata.NewBuilder(nil)
	require.NoError(t, b.AddEntity(d))
	schemas, err := b.CreateSchema("Default")
	require.NoError(t, err)
	et, ok := schemas[0].EntityType("Person")
	require.True(t, ok)
	return et, d
}

func TestSerializeOrder(t *testing.T) {
	et, d := schemaFor(t)
	rec, err := Serialize(et, d, &person{ID: 5, Name: "Ada", Mood: angry, Rank: angry})
	require.NoError(t, err)

	assert.Equal(t, et.PropertyNames(), rec.Names())
	assert.Equal(t, []string{"id", "name"}, rec.Names()[:2])
	v, _ := rec.Get("id")
	assert.Equal(t, int64(5), v)
	v, _ = rec.Get("name")
	assert.Equal(t, "Ada", v)
	v, _ = rec.Get("nick")
	assert.Nil(t, v)
	v, _ = rec.Get("mood")
	assert.Equal(t, "ANGRY", v)
	v, _ = rec.Get("rank")
	assert.Equal(t, int32(1), v)
	assert.Equal(t, edm.ValueCollection, rec.Properties[5].Kind)
}

func TestRoundTrip(t *testing.T) {
	et, d := schemaFor(t)
	nick := "countess"
	in := person{
		ID:     5,
		Name:   "Ada",
		Nick:   &nick,
		Mood:   angry,
		Rank:   angry,
		Tags:   []string{"math", "poetry"},
		Avatar: []byte{1, 2, 3},
		Token:  uuid.MustParse("7b0c2b8e-51a6-4c8e-9d8e-0c4d6b3c2f10"),
		Born:   time.Date(1815, 12, 10, 0, 0, 0, 0, time.UTC),
		Score:  9.5,
		Age:    36,
	}
	rec, err := Serialize(et, d, in)
	require.NoError(t, err)

	out, err := Deserialize(d, rec)
	require.NoError(t, err)
	assert.Equal(t, &in, out)
}

func TestDeserializeConversions(t *testing.T) {
	_, d := schemaFor(t)
	rec := edm.NewEntity(d.Name)
	rec.Add("id", edm.ValuePrimitive, float64(7))
	rec.Add("mood", edm.ValuePrimitive, "calm")
	rec.Add("rank", edm.ValuePrimitive, int32(1))
	rec.Add("tags", edm.ValueCollection, []any{"a", "b"})
	rec.Add("avatar", edm.ValuePrimitive, "AQID")
	rec.Add("token", edm.ValuePrimitive, "7b0c2b8e-51a6-4c8e-9d8e-0c4d6b3c2f10")
	rec.Add("nick", edm.ValuePrimitive, "x")

	out, err := Deserialize(d, rec)
	require.NoError(t, err)
	p := out.(*person)
	assert.Equal(t, int64(7), p.ID)
	assert.Equal(t, calm, p.Mood)
	assert.Equal(t, angry, p.Rank)
	assert.Equal(t, []string{"a", "b"}, p.Tags)
	assert.Equal(t, []byte{1, 2, 3}, p.Avatar)
	assert.Equal(t, "7b0c2b8e-51a6-4c8e-9d8e-0c4d6b3c2f10", p.Token.String())
	require.NotNil(t, p.Nick)
	assert.Equal(t, "x", *p.Nick)
}

func TestDeserializeErrors(t *testing.T) {
	_, d := schemaFor(t)
	tests := []struct {
		name  string
		prop  string
		value any
	}{
		{"unknown property", "salary", 1},
		{"overflow", "age", 300},
		{"negative unsigned", "age", -1},
		{"fraction into int", "id", 1.5},
		{"wrong kind", "name", true},
		{"bad enum text", "mood", "sleepy"},
		{"huge float32", "score", math.MaxFloat64},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := edm.NewEntity(d.Name)
			rec.Add(tt.prop, edm.ValuePrimitive, tt.value)
			_, err := Deserialize(d, rec)
			var de *DeserializationError
			require.True(t, errors.As(err, &de))
			assert.Equal(t, tt.prop, de.Property)
		})
	}

	bad := &descriptor.EntityDescriptor{Name: edm.NewFQN("x", "Int"), Type: nil}
	_, err := Deserialize(bad, edm.NewEntity(bad.Name))
	var de *DeserializationError
	require.True(t, errors.As(err, &de))
	assert.Empty(t, de.Property)
}

func TestSerializeErrors(t *testing.T) {
	et, d := schemaFor(t)

	_, err := Serialize(et, d, (*person)(nil))
	var se *SerializationError
	require.True(t, errors.As(err, &se))

	_, err = Serialize(et, d, struct{ ID int }{1})
	require.True(t, errors.As(err, &se))

	broken := *et
	broken.Properties = append(append([]edm.Property(nil), et.Properties...), edm.Property{Name: "ghost", Type: edm.EdmString})
	_, err = Serialize(&broken, d, person{})
	require.True(t, errors.As(err, &se))
	assert.Equal(t, "ghost", se.Property)
}

func TestApplySkipsKeys(t *testing.T) {
	et, d := schemaFor(t)
	target := &person{ID: 1, Name: "Ada"}
	rec := edm.NewEntity(d.Name)
	rec.Add("id", edm.ValuePrimitive, int64(99))
	rec.Add("name", edm.ValuePrimitive, "Grace")

	require.NoError(t, Apply(d, target, rec, et.IsKey))
	assert.Equal(t, int64(1), target.ID)
	assert.Equal(t, "Grace", target.Name)

	assert.Error(t, Apply(d, person{}, rec, nil))
}

type bag struct {
	ID     int `odata:"id,key"`
	values map[string]any
}

func (b *bag) ReadProperty(name string) (any, error) {
	if name == "id" {
		return b.ID, nil
	}
	return nil, errors.New("unknown")
}

func (b *bag) WriteProperty(name string, v any) error {
	if b.values == nil {
		b.values = map[string]any{}
	}
	b.values[name] = v
	return nil
}

func TestPropertyReaderWriter(t *testing.T) {
	d, err := descriptor.For[bag]("org.sample", "Bag", "Bags")
	require.NoError(t, err)
	et := &edm.EntityType{Name: "Bag", Properties: []edm.Property{{Name: "id", Type: edm.EdmInt64}}}

	rec, err := Serialize(et, d, &bag{ID: 3})
	require.NoError(t, err)
	v, _ := rec.Get("id")
	assert.Equal(t, 3, v)

	out, err := Deserialize(d, rec)
	require.NoError(t, err)
	assert.Equal(t, 3, out.(*bag).values["id"])
}

func TestSerializeCollection(t *testing.T) {
	et, d := schemaFor(t)
	coll, err := SerializeCollection(et, d, []person{{ID: 1}, {ID: 2}})
	require.NoError(t, err)
	require.Len(t, coll.Entities, 2)
	v, _ := coll.Entities[1].Get("id")
	assert.Equal(t, int64(2), v)

	_, err = SerializeCollection(et, d, person{})
	assert.Error(t, err)
}
