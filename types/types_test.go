package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestInfoStringRendersEachCategory(t *testing.T) {
	cases := []struct {
		in   Info
		want string
	}{
		{Prim(Integer), "int"},
		{List(Prim(String)), "array<string>"},
		{Map(Prim(String), Prim(Long)), "map<string,bigint>"},
		{Struct(StructField{Name: "id", Type: Prim(Integer)}, StructField{Name: "name", Type: Prim(String)}), "struct<id:int,name:string>"},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, c.in.String())
	}
}

func TestFieldLookupIsCaseInsensitive(t *testing.T) {
	s := Struct(StructField{Name: "Amount", Type: Prim(Double)})
	f, ok := s.Field("amount")
	assert.True(t, ok, "expected case-insensitive match")
	assert.True(t, Equal(f, Prim(Double)))

	_, ok = s.Field("missing")
	assert.False(t, ok, "expected no match for an unknown field")

	_, ok = Prim(Integer).Field("x")
	assert.False(t, ok, "expected Field to reject a non-struct Info")
}

func TestEqualComparesStructurally(t *testing.T) {
	a := List(Map(Prim(String), Prim(Integer)))
	b := List(Map(Prim(String), Prim(Integer)))
	assert.True(t, Equal(a, b))

	c := List(Map(Prim(String), Prim(Long)))
	assert.False(t, Equal(a, c))
}

func TestCommonNumericWidensToTheWidestSide(t *testing.T) {
	assert.Equal(t, Long, CommonNumeric(Integer, Long))
	assert.Equal(t, Double, CommonNumeric(Long, Double))
	assert.Equal(t, Integer, CommonNumeric(Integer, Integer))
}

func TestCommonNumericFallsBackToStringOrVoidRules(t *testing.T) {
	assert.Equal(t, String, CommonNumeric(Integer, String))
	assert.Equal(t, Boolean, CommonNumeric(Void, Boolean))
	assert.Equal(t, Unknown, CommonNumeric(Boolean, Binary))
}

func TestIsNumericClassifiesOnlyArithmeticPrimitives(t *testing.T) {
	for _, p := range []Primitive{Integer, Long, Double} {
		assert.True(t, p.IsNumeric(), "expected %v to be numeric", p)
	}
	for _, p := range []Primitive{Boolean, String, Timestamp, Binary, Void} {
		assert.False(t, p.IsNumeric(), "expected %v to be non-numeric", p)
	}
}
