package catalog

import (
	"testing"

	"github.com/lattice-ql/qcompiler/types"
)

func TestGetUDFResolvesExactArithmeticOverload(t *testing.T) {
	r := NewDefaultFunctionRegistry()
	d, err := r.GetUDF("+", []types.Info{types.Prim(types.Integer), types.Prim(types.Integer)})
	if err != nil {
		t.Fatalf("GetUDF: %v", err)
	}
	if d.ReturnType.Prim != types.Integer || d.Method != "plus" {
		t.Fatalf("unexpected descriptor: %+v", d)
	}
}

func TestGetUDFWidensToDoubleOverload(t *testing.T) {
	r := NewDefaultFunctionRegistry()
	d, err := r.GetUDF("+", []types.Info{types.Prim(types.Integer), types.Prim(types.Double)})
	if err != nil {
		t.Fatalf("GetUDF: %v", err)
	}
	if d.ReturnType.Prim != types.Double {
		t.Fatalf("expected widening to double, got %v", d.ReturnType)
	}
}

func TestGetUDFRejectsUnknownFunction(t *testing.T) {
	r := NewDefaultFunctionRegistry()
	if _, err := r.GetUDF("bogus", nil); err == nil {
		t.Fatalf("expected an error for an unregistered function")
	}
}

func TestGetUDAFCountIgnoresArgTypes(t *testing.T) {
	r := NewDefaultFunctionRegistry()
	d, err := r.GetUDAF("count", nil)
	if err != nil {
		t.Fatalf("GetUDAF: %v", err)
	}
	if d.Class != "GenericUDAFCount" {
		t.Fatalf("unexpected descriptor: %+v", d)
	}
}

func TestGetUDAFEvaluatorNamesEveryMode(t *testing.T) {
	r := NewDefaultFunctionRegistry()
	ev, err := r.GetUDAFEvaluator("sum", []types.Info{types.Prim(types.Long)})
	if err != nil {
		t.Fatalf("GetUDAFEvaluator: %v", err)
	}
	if ev.IterateMethod != "iterate" || ev.MergeMethod != "merge" || ev.TerminateMethod != "terminate" || ev.TerminatePartial != "terminatePartial" {
		t.Fatalf("unexpected evaluator: %+v", ev)
	}
}

func TestGetCommonClassWidensNumericsAndRejectsIncompatible(t *testing.T) {
	r := NewDefaultFunctionRegistry()
	common, ok := r.GetCommonClass(types.Prim(types.Integer), types.Prim(types.Long))
	if !ok || common.Prim != types.Long {
		t.Fatalf("expected common class bigint, got %v ok=%v", common, ok)
	}
	if _, ok := r.GetCommonClass(types.Prim(types.Boolean), types.Prim(types.Binary)); ok {
		t.Fatalf("expected no common class for incompatible non-numeric primitives")
	}
}

func TestImplicitConvertibleAllowsWideningNotNarrowing(t *testing.T) {
	r := NewDefaultFunctionRegistry()
	if !r.ImplicitConvertible(types.Prim(types.Integer), types.Prim(types.Double)) {
		t.Fatalf("expected int -> double to be implicitly convertible")
	}
	if r.ImplicitConvertible(types.Prim(types.Double), types.Prim(types.Integer)) {
		t.Fatalf("expected double -> int to require an explicit conversion")
	}
	if !r.ImplicitConvertible(types.Prim(types.Void), types.Prim(types.String)) {
		t.Fatalf("expected void to implicitly convert to anything")
	}
	if r.ImplicitConvertible(types.Prim(types.Integer), types.Prim(types.String)) {
		t.Fatalf("expected numeric -> string to require an explicit conversion UDF")
	}
}

func TestGetUDFMethodFindsConversionHelper(t *testing.T) {
	r := NewDefaultFunctionRegistry()
	d, ok := r.GetUDFMethod("string", types.Prim(types.Double))
	if !ok {
		t.Fatalf("expected to find a to_string conversion UDF")
	}
	if d.Name != "to_string" {
		t.Fatalf("unexpected descriptor: %+v", d)
	}
	if _, ok := r.GetUDFMethod("nonexistent", types.Prim(types.Double)); ok {
		t.Fatalf("expected no conversion UDF for an unregistered target type")
	}
}
