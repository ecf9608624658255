package ast

import (
	"fmt"
	"strings"

	"github.com/xwb1989/sqlparser"
)

// FromSQL parses sql text with the external lexer/parser collaborator
// (github.com/xwb1989/sqlparser) and rebuilds the result as the compiler's
// own token/children tree, so that no package downstream of ast ever
// imports sqlparser directly — it sees only the Node interface, matching
// "the SQL lexer/parser" being an out-of-scope external collaborator.
func FromSQL(sql string) (Node, error) {
	stmt, err := sqlparser.Parse(sql)
	if err != nil {
		return nil, fmt.Errorf("ast: parse error: %w", err)
	}
	return FromStatement(stmt)
}

// FromStatement adapts an already-parsed sqlparser.Statement.
func FromStatement(stmt sqlparser.Statement) (Node, error) {
	sel, ok := stmt.(*sqlparser.Select)
	if !ok {
		return nil, fmt.Errorf("ast: only SELECT statements are supported by this adapter, got %T", stmt)
	}
	return fromSelect(sel)
}

func zeroPos() Position { return Position{} }

func fromSelect(sel *sqlparser.Select) (Node, error) {
	var children []Node

	selectKind := TOK_SELECT
	if sel.Distinct != "" {
		selectKind = TOK_SELECTDI
	}
	selExprs, err := fromSelectExprs(sel.SelectExprs)
	if err != nil {
		return nil, err
	}
	children = append(children, New(selectKind, "", zeroPos(), selExprs...))

	fromNode, err := fromTableExprs(sel.From)
	if err != nil {
		return nil, err
	}
	children = append(children, New(TOK_FROM, "", zeroPos(), fromNode))

	if sel.Where != nil {
		whereExpr, err := fromExpr(sel.Where.Expr)
		if err != nil {
			return nil, err
		}
		children = append(children, New(TOK_WHERE, "", zeroPos(), whereExpr))
	}

	if len(sel.GroupBy) > 0 {
		var gb []Node
		for _, e := range sel.GroupBy {
			n, err := fromExpr(e)
			if err != nil {
				return nil, err
			}
			gb = append(gb, n)
		}
		children = append(children, New(TOK_GROUPBY, "", zeroPos(), gb...))
	}

	if len(sel.OrderBy) > 0 {
		var ob []Node
		for _, o := range sel.OrderBy {
			n, err := fromExpr(o.Expr)
			if err != nil {
				return nil, err
			}
			ob = append(ob, New(TOK_IDENTIFIER, o.Direction, zeroPos(), n))
		}
		children = append(children, New(TOK_ORDERBY, "", zeroPos(), ob...))
	}

	if sel.Limit != nil && sel.Limit.Rowcount != nil {
		children = append(children, New(TOK_LIMIT, sqlparser.String(sel.Limit.Rowcount), zeroPos()))
	}

	return New(TOK_QUERY, "", zeroPos(), children...), nil
}

func fromSelectExprs(exprs sqlparser.SelectExprs) ([]Node, error) {
	var out []Node
	for _, se := range exprs {
		switch e := se.(type) {
		case *sqlparser.StarExpr:
			out = append(out, New(TOK_ALLCOLREF, "*", zeroPos()))
		case *sqlparser.AliasedExpr:
			n, err := fromExpr(e.Expr)
			if err != nil {
				return nil, err
			}
			alias := e.As.String()
			out = append(out, New(TOK_SELEXPR, alias, zeroPos(), n))
		default:
			return nil, fmt.Errorf("ast: unsupported select expression %T", se)
		}
	}
	return out, nil
}

func fromTableExprs(exprs sqlparser.TableExprs) (Node, error) {
	if len(exprs) == 0 {
		return nil, fmt.Errorf("ast: empty FROM clause")
	}
	if len(exprs) == 1 {
		return fromTableExpr(exprs[0])
	}
	// Comma-joined tables are treated as a left-deep chain of inner joins,
	// same as the grammar's TOK_JOIN desugaring of "FROM a, b".
	node, err := fromTableExpr(exprs[0])
	if err != nil {
		return nil, err
	}
	for _, te := range exprs[1:] {
		right, err := fromTableExpr(te)
		if err != nil {
			return nil, err
		}
		node = New(TOK_JOIN, "", zeroPos(), node, right)
	}
	return node, nil
}

func fromTableExpr(te sqlparser.TableExpr) (Node, error) {
	switch t := te.(type) {
	case *sqlparser.AliasedTableExpr:
		switch inner := t.Expr.(type) {
		case sqlparser.TableName:
			alias := t.As.String()
			return New(TOK_TABREF, "", zeroPos(),
				New(TOK_TAB, inner.Name.String(), zeroPos()),
				New(TOK_TABALIAS, alias, zeroPos()),
			), nil
		case *sqlparser.Subquery:
			sub, err := FromStatement(inner.Select)
			if err != nil {
				return nil, err
			}
			alias := t.As.String()
			if alias == "" {
				return nil, fmt.Errorf("ast: subquery in FROM requires an alias")
			}
			return New(TOK_SUBQUERY, alias, zeroPos(), sub), nil
		default:
			return nil, fmt.Errorf("ast: unsupported table expression %T", inner)
		}
	case *sqlparser.JoinTableExpr:
		left, err := fromTableExpr(t.LeftExpr)
		if err != nil {
			return nil, err
		}
		right, err := fromTableExpr(t.RightExpr)
		if err != nil {
			return nil, err
		}
		kind := joinKind(t.Join)
		var onNode Node
		if t.Condition.On != nil {
			onNode, err = fromExpr(t.Condition.On)
			if err != nil {
				return nil, err
			}
		} else {
			onNode = New(TOK_TRUE, "true", zeroPos())
		}
		return New(kind, "", zeroPos(), left, right, New(TOK_ON, "", zeroPos(), onNode)), nil
	case *sqlparser.ParenTableExpr:
		return fromTableExprs(t.Exprs)
	default:
		return nil, fmt.Errorf("ast: unsupported table expression %T", te)
	}
}

func joinKind(join string) TokenKind {
	switch strings.ToLower(join) {
	case "left join", "left outer join":
		return TOK_LEFTOUTERJOIN
	case "right join", "right outer join":
		return TOK_RIGHTOUTERJOIN
	case "full join", "full outer join":
		return TOK_FULLOUTERJOIN
	default:
		return TOK_JOIN
	}
}

func fromExpr(e sqlparser.Expr) (Node, error) {
	switch x := e.(type) {
	case *sqlparser.ColName:
		qualifier := x.Qualifier.Name.String()
		col := x.Name.String()
		if qualifier != "" {
			return New(TOK_COLREF, "", zeroPos(),
				New(TOK_TABLE_OR_COL, qualifier, zeroPos()),
				New(TOK_IDENTIFIER, col, zeroPos()),
			), nil
		}
		return New(TOK_TABLE_OR_COL, col, zeroPos()), nil
	case *sqlparser.SQLVal:
		switch x.Type {
		case sqlparser.IntVal, sqlparser.FloatVal:
			return New(TOK_NUMBER, string(x.Val), zeroPos()), nil
		case sqlparser.StrVal:
			return New(TOK_STRINGLITERAL, string(x.Val), zeroPos()), nil
		default:
			return New(TOK_STRINGLITERAL, string(x.Val), zeroPos()), nil
		}
	case *sqlparser.NullVal:
		return New(TOK_NULL, "NULL", zeroPos()), nil
	case sqlparser.BoolVal:
		if x {
			return New(TOK_TRUE, "true", zeroPos()), nil
		}
		return New(TOK_FALSE, "false", zeroPos()), nil
	case *sqlparser.AndExpr:
		l, err := fromExpr(x.Left)
		if err != nil {
			return nil, err
		}
		r, err := fromExpr(x.Right)
		if err != nil {
			return nil, err
		}
		return New(TOK_AND, "and", zeroPos(), l, r), nil
	case *sqlparser.OrExpr:
		l, err := fromExpr(x.Left)
		if err != nil {
			return nil, err
		}
		r, err := fromExpr(x.Right)
		if err != nil {
			return nil, err
		}
		return New(TOK_OR, "or", zeroPos(), l, r), nil
	case *sqlparser.NotExpr:
		inner, err := fromExpr(x.Expr)
		if err != nil {
			return nil, err
		}
		return New(TOK_NOT, "not", zeroPos(), inner), nil
	case *sqlparser.ParenExpr:
		return fromExpr(x.Expr)
	case *sqlparser.ComparisonExpr:
		l, err := fromExpr(x.Left)
		if err != nil {
			return nil, err
		}
		r, err := fromExpr(x.Right)
		if err != nil {
			return nil, err
		}
		kind, ok := comparisonKind(x.Operator)
		if !ok {
			return nil, fmt.Errorf("ast: unsupported comparison operator %q", x.Operator)
		}
		return New(kind, x.Operator, zeroPos(), l, r), nil
	case *sqlparser.FuncExpr:
		name := x.Name.Lowered()
		var args []Node
		for _, se := range x.Exprs {
			switch a := se.(type) {
			case *sqlparser.StarExpr:
				args = append(args, New(TOK_FUNCTIONSTAR, "*", zeroPos()))
			case *sqlparser.AliasedExpr:
				n, err := fromExpr(a.Expr)
				if err != nil {
					return nil, err
				}
				args = append(args, n)
			}
		}
		kind := TOK_FUNCTION
		if x.Distinct {
			kind = TOK_FUNCTIONDI
		}
		nameNode := New(TOK_IDENTIFIER, name, zeroPos())
		return New(kind, name, zeroPos(), append([]Node{nameNode}, args...)...), nil
	case *sqlparser.BinaryExpr:
		l, err := fromExpr(x.Left)
		if err != nil {
			return nil, err
		}
		r, err := fromExpr(x.Right)
		if err != nil {
			return nil, err
		}
		kind, ok := arithKind(x.Operator)
		if !ok {
			return nil, fmt.Errorf("ast: unsupported arithmetic operator %q", x.Operator)
		}
		return New(kind, x.Operator, zeroPos(), l, r), nil
	default:
		return nil, fmt.Errorf("ast: unsupported expression %T", e)
	}
}

func comparisonKind(op string) (TokenKind, bool) {
	switch op {
	case sqlparser.EqualStr:
		return TOK_EQ, true
	case sqlparser.NotEqualStr:
		return TOK_NE, true
	case sqlparser.LessThanStr:
		return TOK_LT, true
	case sqlparser.LessEqualStr:
		return TOK_LE, true
	case sqlparser.GreaterThanStr:
		return TOK_GT, true
	case sqlparser.GreaterEqualStr:
		return TOK_GE, true
	default:
		return 0, false
	}
}

func arithKind(op string) (TokenKind, bool) {
	switch op {
	case sqlparser.PlusStr:
		return TOK_PLUS, true
	case sqlparser.MinusStr:
		return TOK_MINUS, true
	case sqlparser.MultStr:
		return TOK_STAR, true
	case sqlparser.DivStr:
		return TOK_DIVIDE, true
	default:
		return 0, false
	}
}
