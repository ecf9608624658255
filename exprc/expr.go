// Package exprc implements the expression compiler: a rule-driven AST
// walker that turns an expression subtree into a typed expression
// descriptor, performing column resolution and implicit coercion via the
// function-registry collaborator (§4.4).
package exprc

import (
	"fmt"

	"github.com/lattice-ql/qcompiler/types"
)

// Kind enumerates the typed expression descriptor sum type from §3.
type Kind uint8

const (
	KindNull Kind = iota
	KindConstant
	KindColumn
	KindFunc
	KindField
)

// Expr is the typed expression descriptor every compiled expression becomes.
// Exactly the fields relevant to Kind are populated.
type Expr struct {
	Kind Kind
	Type types.Info

	// KindConstant
	Value interface{}

	// KindColumn
	InternalName string

	// KindFunc
	UDFClass string
	Method   string
	Args     []*Expr

	// KindField (struct field or list index access)
	Parent   *Expr
	Field    string
	IsList   bool
	Index    *Expr // list index expression, when IsList
}

// Null builds a KindNull descriptor.
func Null(t types.Info) *Expr { return &Expr{Kind: KindNull, Type: t} }

// Constant builds a KindConstant descriptor.
func Constant(t types.Info, v interface{}) *Expr { return &Expr{Kind: KindConstant, Type: t, Value: v} }

// Column builds a KindColumn descriptor.
func Column(t types.Info, internalName string) *Expr {
	return &Expr{Kind: KindColumn, Type: t, InternalName: internalName}
}

// Func builds a KindFunc descriptor.
func Func(t types.Info, class, method string, args ...*Expr) *Expr {
	return &Expr{Kind: KindFunc, Type: t, UDFClass: class, Method: method, Args: args}
}

// Field builds a KindField descriptor for struct-member or list-index
// access.
func Field(t types.Info, parent *Expr, field string, isList bool, index *Expr) *Expr {
	return &Expr{Kind: KindField, Type: t, Parent: parent, Field: field, IsList: isList, Index: index}
}

// CanonicalText renders a deterministic structural key for an expression,
// used to canonicalize aggregation subtrees (§4.4: "if a subexpression's
// canonical text is already bound in the resolver... reuse its column
// reference") and to detect duplicate group-by keys.
func CanonicalText(e *Expr) string {
	if e == nil {
		return "<nil>"
	}
	switch e.Kind {
	case KindNull:
		return "NULL:" + e.Type.String()
	case KindConstant:
		return "CONST(" + toStringValue(e.Value) + ":" + e.Type.String() + ")"
	case KindColumn:
		return "COL(" + e.InternalName + ")"
	case KindFunc:
		s := e.UDFClass + "." + e.Method + "("
		for i, a := range e.Args {
			if i > 0 {
				s += ","
			}
			s += CanonicalText(a)
		}
		return s + ")"
	case KindField:
		if e.IsList {
			return CanonicalText(e.Parent) + "[" + CanonicalText(e.Index) + "]"
		}
		return CanonicalText(e.Parent) + "." + e.Field
	default:
		return "?"
	}
}

func toStringValue(v interface{}) string {
	switch x := v.(type) {
	case string:
		return x
	case fmtStringer:
		return x.String()
	default:
		return fmt.Sprint(v)
	}
}

type fmtStringer interface{ String() string }
