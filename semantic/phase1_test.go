package semantic

import (
	"testing"

	"github.com/lattice-ql/qcompiler/ast"
	"github.com/lattice-ql/qcompiler/qb"
)

func analyze(t *testing.T, sql string) *qb.QB {
	t.Helper()
	root, err := ast.FromSQL(sql)
	if err != nil {
		t.Fatalf("FromSQL: %v", err)
	}
	a := NewAnalyzer()
	q, err := a.Analyze(root)
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	return q
}

func TestAnalyzeBareSelectProducesTempFileDestination(t *testing.T) {
	q := analyze(t, "SELECT * FROM orders")
	pi := q.GetParseInfo(qb.DestImplicit)
	if pi.Destination.Kind != qb.DestTempFile {
		t.Fatalf("expected a temp-file destination for a bare SELECT, got %v", pi.Destination.Kind)
	}
	if !q.TabAliases["orders"] {
		t.Fatalf("expected orders to be registered as a table alias")
	}
}

func TestAnalyzeDefaultsAliasToTableName(t *testing.T) {
	q := analyze(t, "SELECT * FROM orders")
	if q.TabNameForAlias["orders"] != "orders" {
		t.Fatalf("expected the unaliased table to default its alias to its own name, got %q", q.TabNameForAlias["orders"])
	}
}

func TestAnalyzeWhereClauseAttachesToImplicitDestination(t *testing.T) {
	q := analyze(t, "SELECT id FROM orders WHERE custid = 1")
	pi := q.GetParseInfo(qb.DestImplicit)
	if pi.WhereExpr == nil {
		t.Fatalf("expected a WHERE expression to be recorded")
	}
	if pi.WhereExpr.Kind() != ast.TOK_EQ {
		t.Fatalf("expected the WHERE expression root to be the comparison, got %v", pi.WhereExpr.Kind())
	}
}

func TestAnalyzeRejectsSelectDistinctCombinedWithGroupBy(t *testing.T) {
	root, err := ast.FromSQL("SELECT custid FROM orders GROUP BY custid")
	if err != nil {
		t.Fatalf("FromSQL: %v", err)
	}
	sel := ast.FindFirst(root, ast.TOK_SELECT)
	selDI := ast.New(ast.TOK_SELECTDI, "", ast.Position{}, sel.Children()...)
	children := make([]ast.Node, 0, len(root.Children()))
	for _, c := range root.Children() {
		if c.Kind() == ast.TOK_SELECT {
			children = append(children, selDI)
			continue
		}
		children = append(children, c)
	}
	rewritten := ast.New(ast.TOK_QUERY, "", ast.Position{}, children...)

	a := NewAnalyzer()
	if _, err := a.Analyze(rewritten); err == nil {
		t.Fatalf("expected an error combining SELECT DISTINCT with GROUP BY")
	}
}

func TestAnalyzeRejectsDuplicateTableAlias(t *testing.T) {
	root, err := ast.FromSQL("SELECT * FROM orders o JOIN customers o ON o.id = o.id")
	if err != nil {
		t.Fatalf("FromSQL: %v", err)
	}
	a := NewAnalyzer()
	if _, err := a.Analyze(root); err == nil {
		t.Fatalf("expected an error for a duplicate table alias")
	}
}

func TestAnalyzeRejectsTopLevelOrInJoinCondition(t *testing.T) {
	root, err := ast.FromSQL("SELECT * FROM orders o JOIN customers c ON o.custid = c.id OR o.custid = c.altid")
	if err != nil {
		t.Fatalf("FromSQL: %v", err)
	}
	a := NewAnalyzer()
	if _, err := a.Analyze(root); err == nil {
		t.Fatalf("expected an error for a top-level OR in a join condition")
	}
}

func TestAnalyzeSubqueryRequiresAlias(t *testing.T) {
	root, err := ast.FromSQL("SELECT * FROM (SELECT id FROM orders) x")
	if err != nil {
		t.Fatalf("FromSQL: %v", err)
	}
	a := NewAnalyzer()
	q, err := a.Analyze(root)
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if !q.SubqAliases["x"] {
		t.Fatalf("expected x to be registered as a subquery alias")
	}
	body, ok := q.SubqForAlias["x"]
	if !ok || !body.IsLeaf() {
		t.Fatalf("expected the subquery body to be a leaf QBExpr")
	}
}

func TestResetClearsAnalyzerState(t *testing.T) {
	a := NewAnalyzer()
	root, err := ast.FromSQL("SELECT * FROM orders")
	if err != nil {
		t.Fatalf("FromSQL: %v", err)
	}
	if _, err := a.Analyze(root); err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	a.Reset()
	if len(a.roots) != 0 || a.qbCounter != 0 {
		t.Fatalf("expected Reset to clear owned state")
	}
}

func TestAnalyzeRejectsNonQueryRoot(t *testing.T) {
	a := NewAnalyzer()
	bogus := ast.New(ast.TOK_SELECT, "", ast.Position{})
	if _, err := a.Analyze(bogus); err == nil {
		t.Fatalf("expected an error for a non-TOK_QUERY root")
	}
}
