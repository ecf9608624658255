package exprc

import (
	"testing"

	"github.com/lattice-ql/qcompiler/types"
)

func TestCanonicalTextRendersColumnsAndConstants(t *testing.T) {
	col := Column(types.Prim(types.Integer), "0")
	if CanonicalText(col) != "COL(0)" {
		t.Fatalf("unexpected column text: %q", CanonicalText(col))
	}
	num := Constant(types.Prim(types.Integer), int32(5))
	if CanonicalText(num) != "CONST(5:int)" {
		t.Fatalf("unexpected constant text: %q", CanonicalText(num))
	}
}

func TestCanonicalTextRendersNestedFuncCallsIdentically(t *testing.T) {
	a := Func(types.Prim(types.Long), "GenericUDAFSum", "sum", Column(types.Prim(types.Long), "1"))
	b := Func(types.Prim(types.Long), "GenericUDAFSum", "sum", Column(types.Prim(types.Long), "1"))
	if CanonicalText(a) != CanonicalText(b) {
		t.Fatalf("expected structurally identical expressions to canonicalize the same: %q vs %q", CanonicalText(a), CanonicalText(b))
	}
	c := Func(types.Prim(types.Long), "GenericUDAFSum", "sum", Column(types.Prim(types.Long), "2"))
	if CanonicalText(a) == CanonicalText(c) {
		t.Fatalf("expected a different internal name to produce a different canonical text")
	}
}

func TestCanonicalTextRendersFieldAccess(t *testing.T) {
	parent := Column(types.Struct(types.StructField{Name: "x", Type: types.Prim(types.Integer)}), "0")
	f := Field(types.Prim(types.Integer), parent, "x", false, nil)
	if CanonicalText(f) != "COL(0).x" {
		t.Fatalf("unexpected field access text: %q", CanonicalText(f))
	}
}

func TestCanonicalTextHandlesNil(t *testing.T) {
	if CanonicalText(nil) != "<nil>" {
		t.Fatalf("expected <nil> for a nil expression")
	}
}
