package api

import (
	"bytes"
	"math"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"odatagate/internal/dispatch"
	"odatagate/internal/edm"
)

func TestISODuration(t *testing.T) {
	cases := []struct {
		d    time.Duration
		text string
	}{
		{0, "PT0S"},
		{90 * time.Minute, "PT1H30M"},
		{1500 * time.Millisecond, "PT1.5S"},
		{26 * time.Hour, "P1DT2H"},
		{48 * time.Hour, "P2D"},
		{-5 * time.Second, "-PT5S"},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.text, formatISODuration(tc.d))
		back, err := parseISODuration(tc.text)
		require.NoError(t, err, tc.text)
		assert.Equal(t, tc.d, back, tc.text)
	}

	for _, bad := range []string{"", "P", "1H", "PT1D", "PTT1H", "P1H", "PT1X", "PT1"} {
		_, err := parseISODuration(bad)
		assert.Error(t, err, bad)
	}
}

func TestParseLiteral(t *testing.T) {
	id := uuid.MustParse("5f2b6c1e-8d55-4d8e-9f6a-0c9a3e7d1b42")
	ok := []struct {
		lit  string
		typ  edm.FullQualifiedName
		want any
	}{
		{"'O''Brien'", edm.EdmString, "O'Brien"},
		{"42", edm.EdmInt32, int64(42)},
		{"-3", edm.EdmSByte, int64(-3)},
		{"255", edm.EdmByte, int64(255)},
		{"1.5", edm.EdmDouble, 1.5},
		{"2.5M", edm.EdmDecimal, 2.5},
		{"true", edm.EdmBoolean, true},
		{id.String(), edm.EdmGuid, id},
		{"2024-02-29", edm.EdmDate, time.Date(2024, 2, 29, 0, 0, 0, 0, time.UTC)},
		{"duration'PT2H'", edm.EdmDuration, 2 * time.Hour},
	}
	for _, tc := range ok {
		got, err := parseLiteral(tc.lit, tc.typ)
		require.NoError(t, err, tc.lit)
		assert.Equal(t, tc.want, got, tc.lit)
	}

	bad := []struct {
		lit string
		typ edm.FullQualifiedName
	}{
		{"abc", edm.EdmString},
		{"'5'", edm.EdmInt64},
		{"128", edm.EdmSByte},
		{"256", edm.EdmByte},
		{"40000", edm.EdmInt16},
		{"yes", edm.EdmBoolean},
		{"null", edm.EdmInt32},
		{"x", edm.EdmBinary},
	}
	for _, tc := range bad {
		_, err := parseLiteral(tc.lit, tc.typ)
		assert.Error(t, err, tc.lit)
	}
}

func TestParseKeys(t *testing.T) {
	et := &edm.EntityType{
		Name: "Line",
		Properties: []edm.Property{
			{Name: "order", Type: edm.EdmInt64},
			{Name: "code", Type: edm.EdmString},
		},
		Key: []edm.PropertyRef{{Name: "order"}, {Name: "code"}},
	}

	keys, err := parseKeys(et, "order=7, code='a,b'")
	require.NoError(t, err)
	assert.Equal(t, dispatch.Keys{{Name: "order", Value: int64(7)}, {Name: "code", Value: "a,b"}}, keys)

	// shorthand is only typed for single keys
	keys, err = parseKeys(et, "7")
	require.NoError(t, err)
	assert.Equal(t, dispatch.Keys{{Name: "", Value: "7"}}, keys)

	_, err = parseKeys(et, "order='x',code='y'")
	assert.ErrorIs(t, err, dispatch.ErrInvalidRequest)

	_, err = parseKeys(et, "")
	assert.ErrorIs(t, err, dispatch.ErrInvalidRequest)

	_, err = parseKeys(et, "code='open")
	assert.ErrorIs(t, err, dispatch.ErrInvalidRequest)
}

func TestSplitPath(t *testing.T) {
	parts, err := splitPath("People('a/b')/employer")
	require.NoError(t, err)
	assert.Equal(t, []string{"People('a/b')", "employer"}, parts)

	_, err = splitPath("People//x")
	assert.ErrorIs(t, err, dispatch.ErrInvalidRequest)

	_, err = splitPath("People('a")
	assert.ErrorIs(t, err, dispatch.ErrInvalidRequest)
}

func TestWriteEntity(t *testing.T) {
	et := &edm.EntityType{
		Name: "Sample",
		Properties: []edm.Property{
			{Name: "z", Type: edm.EdmDouble},
			{Name: "day", Type: edm.EdmDate},
			{Name: "at", Type: edm.EdmTimeOfDay},
			{Name: "list", Type: edm.EdmDuration, Collection: true},
			{Name: "blob", Type: edm.EdmBinary},
		},
	}
	e := edm.NewEntity(edm.NewFQN("ns", "Sample"))
	e.Add("z", edm.ValuePrimitive, math.Inf(-1))
	e.Add("day", edm.ValuePrimitive, time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC))
	e.Add("at", edm.ValuePrimitive, time.Date(0, 1, 1, 13, 5, 0, 0, time.UTC))
	e.Add("list", edm.ValueCollection, []any{time.Minute, time.Second})
	e.Add("blob", edm.ValuePrimitive, []byte("hi"))

	var buf bytes.Buffer
	require.NoError(t, writeEntity(&buf, et, e, "ctx"))
	assert.Equal(t,
		`{"@odata.context":"ctx","z":"-INF","day":"2024-01-02","at":"13:05:00","list":["PT1M","PT1S"],"blob":"aGk="}`,
		buf.String())
}
