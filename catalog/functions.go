package catalog

import (
	"fmt"

	"github.com/lattice-ql/qcompiler/types"
)

// DefaultFunctionRegistry is a small built-in UDF/UDAF table, a map-based
// registry of overloads keyed by function name. No pack library models a
// UDF/UDAF catalog, so this stays on the standard library.
type DefaultFunctionRegistry struct {
	udfs  map[string][]UDFDescriptor
	udafs map[string][]UDAFDescriptor
}

// NewDefaultFunctionRegistry builds a registry pre-populated with the
// arithmetic operators and the standard aggregate functions.
func NewDefaultFunctionRegistry() *DefaultFunctionRegistry {
	r := &DefaultFunctionRegistry{
		udfs:  make(map[string][]UDFDescriptor),
		udafs: make(map[string][]UDAFDescriptor),
	}
	for _, op := range []string{"+", "-", "*", "/"} {
		for _, p := range []types.Primitive{types.Integer, types.Long, types.Double} {
			r.registerUDF(UDFDescriptor{
				Name:       op,
				ParamTypes: []types.Info{types.Prim(p), types.Prim(p)},
				ReturnType: types.Prim(p),
				Class:      "GenericUDFArith",
				Method:     arithMethodName(op),
			})
		}
	}
	// string/string-numeric conversion helpers used by implicit coercion
	r.registerUDF(UDFDescriptor{Name: "to_string", ParamTypes: []types.Info{types.Prim(types.Double)}, ReturnType: types.Prim(types.String), Class: "UDFToString"})
	r.registerUDF(UDFDescriptor{Name: "to_double", ParamTypes: []types.Info{types.Prim(types.String)}, ReturnType: types.Prim(types.Double), Class: "UDFToDouble"})

	for _, p := range []types.Primitive{types.Integer, types.Long, types.Double} {
		r.registerUDAF(UDAFDescriptor{Name: "sum", ParamTypes: []types.Info{types.Prim(p)}, ReturnType: types.Prim(p), Class: "GenericUDAFSum"})
		r.registerUDAF(UDAFDescriptor{Name: "avg", ParamTypes: []types.Info{types.Prim(p)}, ReturnType: types.Prim(types.Double), Class: "GenericUDAFAverage"})
		r.registerUDAF(UDAFDescriptor{Name: "min", ParamTypes: []types.Info{types.Prim(p)}, ReturnType: types.Prim(p), Class: "GenericUDAFMin"})
		r.registerUDAF(UDAFDescriptor{Name: "max", ParamTypes: []types.Info{types.Prim(p)}, ReturnType: types.Prim(p), Class: "GenericUDAFMax"})
	}
	r.registerUDAF(UDAFDescriptor{Name: "count", ParamTypes: nil, ReturnType: types.Prim(types.Long), Class: "GenericUDAFCount"})
	return r
}

func arithMethodName(op string) string {
	switch op {
	case "+":
		return "plus"
	case "-":
		return "minus"
	case "*":
		return "multiply"
	case "/":
		return "divide"
	default:
		return op
	}
}

func (r *DefaultFunctionRegistry) registerUDF(d UDFDescriptor) {
	r.udfs[d.Name] = append(r.udfs[d.Name], d)
}

func (r *DefaultFunctionRegistry) registerUDAF(d UDAFDescriptor) {
	r.udafs[d.Name] = append(r.udafs[d.Name], d)
}

func (r *DefaultFunctionRegistry) GetUDF(name string, argTypes []types.Info) (*UDFDescriptor, error) {
	overloads, ok := r.udfs[name]
	if !ok {
		return nil, fmt.Errorf("no such function: %s", name)
	}
	for _, d := range overloads {
		if signatureMatches(d.ParamTypes, argTypes) {
			out := d
			return &out, nil
		}
	}
	// fall back to the first overload (in registration order) that every
	// argument can be implicitly widened to
	if best, ok := widestOverload(overloads, argTypes); ok {
		return &best, nil
	}
	return nil, fmt.Errorf("no matching overload for %s%v", name, argTypes)
}

func widestOverload(overloads []UDFDescriptor, argTypes []types.Info) (UDFDescriptor, bool) {
	for _, d := range overloads {
		if len(d.ParamTypes) != len(argTypes) {
			continue
		}
		ok := true
		for i, p := range d.ParamTypes {
			if p.Category != types.CategoryPrimitive || argTypes[i].Category != types.CategoryPrimitive {
				ok = false
				break
			}
			if !argTypes[i].Prim.IsNumeric() || !p.Prim.IsNumeric() {
				if !types.Equal(p, argTypes[i]) {
					ok = false
					break
				}
				continue
			}
			if p.Prim < argTypes[i].Prim {
				ok = false
				break
			}
		}
		if ok {
			return d, true
		}
	}
	return UDFDescriptor{}, false
}

func (r *DefaultFunctionRegistry) GetUDAF(name string, argTypes []types.Info) (*UDAFDescriptor, error) {
	overloads, ok := r.udafs[name]
	if !ok {
		return nil, fmt.Errorf("no such aggregate function: %s", name)
	}
	if name == "count" {
		out := overloads[0]
		return &out, nil
	}
	for _, d := range overloads {
		if signatureMatches(d.ParamTypes, argTypes) {
			out := d
			return &out, nil
		}
	}
	return nil, fmt.Errorf("no matching aggregate overload for %s%v", name, argTypes)
}

// GetUDAFEvaluator resolves the iterate/merge/terminate method names bound
// for this UDAF, the pairing the group-by planner selects per mode per §4.5.
func (r *DefaultFunctionRegistry) GetUDAFEvaluator(name string, argTypes []types.Info) (*UDAFEvaluator, error) {
	d, err := r.GetUDAF(name, argTypes)
	if err != nil {
		return nil, err
	}
	return &UDAFEvaluator{
		Class:            d.Class,
		IterateMethod:    "iterate",
		TerminatePartial: "terminatePartial",
		MergeMethod:      "merge",
		TerminateMethod:  "terminate",
	}, nil
}

func (r *DefaultFunctionRegistry) GetCommonClass(a, b types.Info) (types.Info, bool) {
	if a.Category != types.CategoryPrimitive || b.Category != types.CategoryPrimitive {
		if types.Equal(a, b) {
			return a, true
		}
		return types.Info{}, false
	}
	common := types.CommonNumeric(a.Prim, b.Prim)
	if common == types.Unknown {
		return types.Info{}, false
	}
	return types.Prim(common), true
}

func (r *DefaultFunctionRegistry) ImplicitConvertible(from, to types.Info) bool {
	if types.Equal(from, to) {
		return true
	}
	if from.Category != types.CategoryPrimitive || to.Category != types.CategoryPrimitive {
		return false
	}
	if from.Prim.IsNumeric() && to.Prim.IsNumeric() {
		return from.Prim <= to.Prim
	}
	if from.Prim == types.Void {
		return true
	}
	// numeric <-> string is convertible only through an explicit conversion
	// UDF (to_string/to_double), never implicitly silent.
	return false
}

func (r *DefaultFunctionRegistry) GetUDFMethod(targetTypeName string, from types.Info) (*UDFDescriptor, bool) {
	name := "to_" + targetTypeName
	overloads, ok := r.udfs[name]
	if !ok || len(overloads) == 0 {
		return nil, false
	}
	out := overloads[0]
	return &out, true
}

func signatureMatches(params, args []types.Info) bool {
	if len(params) != len(args) {
		return false
	}
	for i := range params {
		if !types.Equal(params[i], args[i]) {
			return false
		}
	}
	return true
}
