package exprc

import (
	"strconv"
	"strings"

	"github.com/lattice-ql/qcompiler/ast"
	"github.com/lattice-ql/qcompiler/catalog"
	"github.com/lattice-ql/qcompiler/errs"
	"github.com/lattice-ql/qcompiler/resolver"
	"github.com/lattice-ql/qcompiler/types"
)

// Compiler walks an expression AST depth-first, dispatching on node kind,
// and produces a typed Expr. It resolves TOK_TABLE_OR_COL / TOK_COLREF
// through a RowResolver and binds functions through a FunctionRegistry
// collaborator, applying the registry's implicit-conversion rules.
type Compiler struct {
	Resolver *resolver.RowResolver
	Registry catalog.FunctionRegistry
	// Canonical memoizes compiled aggregate subtrees by structural text, so
	// a repeated aggregation expression reuses one compiled descriptor
	// (§4.4).
	Canonical map[string]*Expr
}

// NewCompiler builds a Compiler bound to one operator's row resolver.
func NewCompiler(r *resolver.RowResolver, reg catalog.FunctionRegistry) *Compiler {
	return &Compiler{Resolver: r, Registry: reg, Canonical: make(map[string]*Expr)}
}

// Compile compiles one expression subtree.
func (c *Compiler) Compile(n ast.Node) (*Expr, error) {
	switch n.Kind() {
	case ast.TOK_NULL:
		return Null(types.Prim(types.Void)), nil

	case ast.TOK_NUMBER:
		return c.compileNumber(n)

	case ast.TOK_STRINGLITERAL, ast.TOK_CHARSETLITERAL:
		return Constant(types.Prim(types.String), n.Text()), nil

	case ast.TOK_TRUE:
		return Constant(types.Prim(types.Boolean), true), nil

	case ast.TOK_FALSE:
		return Constant(types.Prim(types.Boolean), false), nil

	case ast.TOK_TABLE_OR_COL:
		return c.compileColRef("", n.Text())

	case ast.TOK_COLREF:
		children := n.Children()
		if len(children) != 2 {
			return nil, errs.New(errs.InvalidColumn, "malformed column reference")
		}
		return c.compileColRef(children[0].Text(), children[1].Text())

	case ast.TOK_DOT:
		return c.compileDot(n)

	case ast.TOK_LSQUARE:
		return c.compileIndex(n)

	case ast.TOK_AND, ast.TOK_OR, ast.TOK_NOT,
		ast.TOK_EQ, ast.TOK_NE, ast.TOK_LT, ast.TOK_LE, ast.TOK_GT, ast.TOK_GE,
		ast.TOK_PLUS, ast.TOK_MINUS, ast.TOK_STAR, ast.TOK_DIVIDE:
		return c.compileOperator(n)

	case ast.TOK_FUNCTION, ast.TOK_FUNCTIONDI:
		return c.compileFunction(n)

	default:
		return nil, errs.New(errs.Generic, "expression compiler: unsupported node kind %s", n.Kind())
	}
}

func (c *Compiler) compileNumber(n ast.Node) (*Expr, error) {
	text := n.Text()
	if iv, err := strconv.ParseInt(text, 10, 32); err == nil {
		_ = iv
		return Constant(types.Prim(types.Integer), int32(iv)), nil
	}
	if lv, err := strconv.ParseInt(text, 10, 64); err == nil {
		return Constant(types.Prim(types.Long), lv), nil
	}
	if dv, err := strconv.ParseFloat(text, 64); err == nil {
		return Constant(types.Prim(types.Double), dv), nil
	}
	return nil, errs.New(errs.InvalidNumericalConstant, "invalid numeric constant %q", text)
}

func (c *Compiler) compileColRef(alias, column string) (*Expr, error) {
	ci, ambiguous := c.Resolver.Lookup(alias, column)
	if ambiguous {
		return nil, errs.New(errs.AmbiguousColumn, "column %q is ambiguous", column)
	}
	if ci == nil {
		if alias != "" {
			return nil, errs.New(errs.InvalidColumn, "invalid column %q on table alias %q", column, alias)
		}
		return nil, errs.New(errs.InvalidColumn, "invalid column reference %q", column)
	}
	return Column(ci.Type, ci.InternalName), nil
}

func (c *Compiler) compileDot(n ast.Node) (*Expr, error) {
	children := n.Children()
	if len(children) != 2 {
		return nil, errs.New(errs.InvalidDot, "malformed field access")
	}
	parent, err := c.Compile(children[0])
	if err != nil {
		return nil, err
	}
	if parent.Type.Category != types.CategoryStruct {
		return nil, errs.New(errs.NonCollectionType, "%q is not a struct type", children[0].Text())
	}
	fieldName := children[1].Text()
	ft, ok := parent.Type.Field(fieldName)
	if !ok {
		return nil, errs.New(errs.InvalidXPath, "no such field %q", fieldName)
	}
	return Field(ft, parent, fieldName, false, nil), nil
}

func (c *Compiler) compileIndex(n ast.Node) (*Expr, error) {
	children := n.Children()
	if len(children) != 2 {
		return nil, errs.New(errs.InvalidXPath, "malformed index access")
	}
	parent, err := c.Compile(children[0])
	if err != nil {
		return nil, err
	}
	idxNode := children[1]
	switch parent.Type.Category {
	case types.CategoryList:
		if idxNode.Kind() != ast.TOK_NUMBER {
			return nil, errs.New(errs.InvalidArrayIndexConstant, "array index must be a constant integer")
		}
		idx, err := c.Compile(idxNode)
		if err != nil {
			return nil, err
		}
		return Field(*parent.Type.Elem, parent, "", true, idx), nil
	case types.CategoryMap:
		if idxNode.Kind() != ast.TOK_STRINGLITERAL && idxNode.Kind() != ast.TOK_NUMBER {
			return nil, errs.New(errs.InvalidMapIndexConstant, "map index must be a constant")
		}
		idx, err := c.Compile(idxNode)
		if err != nil {
			return nil, err
		}
		if !types.Equal(idx.Type, *parent.Type.Key) {
			return nil, errs.New(errs.InvalidMapIndexType, "map index type mismatch")
		}
		return Field(*parent.Type.Elem, parent, "", true, idx), nil
	default:
		return nil, errs.New(errs.NonCollectionType, "%q does not support indexing", children[0].Text())
	}
}

func (c *Compiler) compileOperator(n ast.Node) (*Expr, error) {
	name, class := operatorName(n.Kind())
	var args []*Expr
	for _, child := range n.Children() {
		a, err := c.Compile(child)
		if err != nil {
			return nil, err
		}
		args = append(args, a)
	}
	return c.bindOverload(class, name, args)
}

func operatorName(k ast.TokenKind) (name, class string) {
	switch k {
	case ast.TOK_AND:
		return "and", "GenericUDFOPAnd"
	case ast.TOK_OR:
		return "or", "GenericUDFOPOr"
	case ast.TOK_NOT:
		return "not", "GenericUDFOPNot"
	case ast.TOK_EQ:
		return "=", "GenericUDFOPEqual"
	case ast.TOK_NE:
		return "!=", "GenericUDFOPNotEqual"
	case ast.TOK_LT:
		return "<", "GenericUDFOPLessThan"
	case ast.TOK_LE:
		return "<=", "GenericUDFOPEqualOrLessThan"
	case ast.TOK_GT:
		return ">", "GenericUDFOPGreaterThan"
	case ast.TOK_GE:
		return ">=", "GenericUDFOPEqualOrGreaterThan"
	case ast.TOK_PLUS:
		return "+", "GenericUDFArith"
	case ast.TOK_MINUS:
		return "-", "GenericUDFArith"
	case ast.TOK_STAR:
		return "*", "GenericUDFArith"
	case ast.TOK_DIVIDE:
		return "/", "GenericUDFArith"
	default:
		return "?", "?"
	}
}

// logical/comparison operators are not looked up in the function registry
// (they are always boolean-producing built-ins); only arithmetic goes
// through GetUDF for numeric widening.
func (c *Compiler) bindOverload(class, name string, args []*Expr) (*Expr, error) {
	switch class {
	case "GenericUDFOPAnd", "GenericUDFOPOr", "GenericUDFOPNot":
		for _, a := range args {
			if a.Type.Category != types.CategoryPrimitive || a.Type.Prim != types.Boolean {
				return nil, errs.New(errs.InvalidOperatorSignature, "%s requires boolean operands", name)
			}
		}
		return Func(types.Prim(types.Boolean), class, name, args...), nil

	case "GenericUDFOPEqual", "GenericUDFOPNotEqual", "GenericUDFOPLessThan",
		"GenericUDFOPEqualOrLessThan", "GenericUDFOPGreaterThan", "GenericUDFOPEqualOrGreaterThan":
		if len(args) != 2 {
			return nil, errs.New(errs.InvalidOperatorSignature, "%s requires two operands", name)
		}
		common, ok := c.Registry.GetCommonClass(args[0].Type, args[1].Type)
		if !ok {
			return nil, errs.New(errs.InvalidOperatorSignature, "no common type for %s between %s and %s", name, args[0].Type, args[1].Type)
		}
		coerced, err := c.coerceAll(args, common)
		if err != nil {
			return nil, err
		}
		return Func(types.Prim(types.Boolean), class, name, coerced...), nil

	case "GenericUDFArith":
		argTypes := make([]types.Info, len(args))
		for i, a := range args {
			argTypes[i] = a.Type
		}
		d, err := c.Registry.GetUDF(name, argTypes)
		if err != nil {
			return nil, errs.Wrap(err, "unresolved function signature for %s%v", name, argTypes)
		}
		coerced, err := c.coerceArgs(args, d.ParamTypes)
		if err != nil {
			return nil, err
		}
		return Func(d.ReturnType, d.Class, d.Method, coerced...), nil

	default:
		return nil, errs.New(errs.InvalidFunction, "unknown operator class %s", class)
	}
}

func (c *Compiler) compileFunction(n ast.Node) (*Expr, error) {
	children := n.Children()
	if len(children) == 0 {
		return nil, errs.New(errs.InvalidFunction, "malformed function call")
	}
	name := strings.ToLower(children[0].Text())

	canonicalText := ast.String(n)
	if cached, ok := c.Canonical[canonicalText]; ok {
		return cached, nil
	}

	var args []*Expr
	for _, child := range children[1:] {
		if child.Kind() == ast.TOK_FUNCTIONSTAR {
			// count(*) has no typed argument: treat as a constant 1 input.
			args = append(args, Constant(types.Prim(types.Integer), int32(1)))
			continue
		}
		a, err := c.Compile(child)
		if err != nil {
			return nil, err
		}
		args = append(args, a)
	}
	argTypes := make([]types.Info, len(args))
	for i, a := range args {
		argTypes[i] = a.Type
	}
	d, err := c.Registry.GetUDF(name, argTypes)
	if err != nil {
		return nil, errs.Wrap(err, "unresolved function signature for %s%v", name, argTypes)
	}
	coerced, err := c.coerceArgs(args, d.ParamTypes)
	if err != nil {
		return nil, err
	}
	out := Func(d.ReturnType, d.Class, d.Method, coerced...)
	c.Canonical[canonicalText] = out
	return out, nil
}

// coerceArgs wraps each arg that does not already match its target
// parameter type in a conversion function descriptor obtained from the
// registry's GetUDFMethod, the implicit-coercion step §4.4 describes.
func (c *Compiler) coerceArgs(args []*Expr, params []types.Info) ([]*Expr, error) {
	if len(args) != len(params) {
		return nil, errs.New(errs.InvalidFunctionSignature, "argument count mismatch: got %d, want %d", len(args), len(params))
	}
	out := make([]*Expr, len(args))
	for i, a := range args {
		coerced, err := c.coerce(a, params[i])
		if err != nil {
			return nil, err
		}
		out[i] = coerced
	}
	return out, nil
}

func (c *Compiler) coerceAll(args []*Expr, target types.Info) ([]*Expr, error) {
	out := make([]*Expr, len(args))
	for i, a := range args {
		coerced, err := c.coerce(a, target)
		if err != nil {
			return nil, err
		}
		out[i] = coerced
	}
	return out, nil
}

func (c *Compiler) coerce(a *Expr, target types.Info) (*Expr, error) {
	if types.Equal(a.Type, target) {
		return a, nil
	}
	if a.Kind == KindNull {
		return Null(target), nil
	}
	if !c.Registry.ImplicitConvertible(a.Type, target) {
		return nil, errs.New(errs.InvalidFunctionSignature, "cannot implicitly convert %s to %s", a.Type, target)
	}
	if a.Type.Category == types.CategoryPrimitive && target.Category == types.CategoryPrimitive && a.Type.Prim.IsNumeric() && target.Prim.IsNumeric() {
		// a direct numeric widening needs no conversion UDF wrapper
		return &Expr{Kind: a.Kind, Type: target, Value: a.Value, InternalName: a.InternalName, UDFClass: a.UDFClass, Method: a.Method, Args: a.Args, Parent: a.Parent, Field: a.Field, IsList: a.IsList, Index: a.Index}, nil
	}
	d, ok := c.Registry.GetUDFMethod(target.String(), a.Type)
	if !ok {
		return nil, errs.New(errs.InvalidFunctionSignature, "no conversion UDF from %s to %s", a.Type, target)
	}
	return Func(d.ReturnType, d.Class, d.Method, a), nil
}
