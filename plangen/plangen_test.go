package plangen

import (
	"testing"

	"github.com/lattice-ql/qcompiler/ast"
	"github.com/lattice-ql/qcompiler/catalog"
	"github.com/lattice-ql/qcompiler/optree"
	"github.com/lattice-ql/qcompiler/prune"
	"github.com/lattice-ql/qcompiler/qb"
	"github.com/lattice-ql/qcompiler/types"
)

func colref(alias, col string) ast.Node {
	return ast.New(ast.TOK_COLREF, "", ast.Position{},
		ast.New(ast.TOK_TABLE_OR_COL, alias, ast.Position{}),
		ast.New(ast.TOK_TABLE_OR_COL, col, ast.Position{}))
}

func eq(l, r ast.Node) ast.Node {
	return ast.New(ast.TOK_EQ, "=", ast.Position{}, l, r)
}

func selExpr(alias string, child ast.Node) ast.Node {
	return ast.New(ast.TOK_SELEXPR, alias, ast.Position{}, child)
}

func funcCall(name string, args ...ast.Node) ast.Node {
	nameNode := ast.New(ast.TOK_IDENTIFIER, name, ast.Position{})
	return ast.New(ast.TOK_FUNCTION, name, ast.Position{}, append([]ast.Node{nameNode}, args...)...)
}

func ordersTable() *catalog.Table {
	return &catalog.Table{
		Name: "orders",
		Columns: []catalog.Column{
			{Name: "id", Type: types.Prim(types.Integer)},
			{Name: "custid", Type: types.Prim(types.Integer)},
			{Name: "amount", Type: types.Prim(types.Double)},
		},
	}
}

func customersTable() *catalog.Table {
	return &catalog.Table{
		Name: "customers",
		Columns: []catalog.Column{
			{Name: "id", Type: types.Prim(types.Integer)},
			{Name: "name", Type: types.Prim(types.Integer)},
		},
	}
}

// collectAncestors walks upward from root (the terminal FileSink this
// package's planner returns) via Operator.Parents, since Arena.Walk only
// descends via Children and the planner hands back the downstream end of
// the pipeline, not its source.
func collectAncestors(f *optree.Factory, root optree.Ref) []*optree.Operator {
	seen := map[optree.Ref]bool{}
	var out []*optree.Operator
	var visit func(optree.Ref)
	visit = func(r optree.Ref) {
		if seen[r] {
			return
		}
		seen[r] = true
		op := f.Arena.Get(r)
		out = append(out, op)
		for _, p := range op.Parents {
			visit(p)
		}
	}
	visit(root)
	return out
}

func newPlanner() *Planner {
	f := optree.NewFactory()
	reg := catalog.NewDefaultFunctionRegistry()
	return NewPlanner(f, reg, Config{PartitionPruneMode: prune.Nonstrict})
}

func simpleSelectQB(table *catalog.Table) *qb.QB {
	q := qb.New("")
	q.TabAliases["o"] = true
	q.TabNameForAlias["o"] = table.Name
	q.MetaData.TableForAlias["o"] = table

	pi := q.GetParseInfo(qb.DestImplicit)
	pi.Destination = qb.Destination{Kind: qb.DestTempFile, Path: "/tmp/out"}
	pi.SelectExpr = ast.New(ast.TOK_SELECT, "", ast.Position{},
		selExpr("", colref("o", "id")),
		selExpr("", colref("o", "amount")),
	)
	return q
}

func TestGenQBBuildsTableScanFilterSelectFileSink(t *testing.T) {
	p := newPlanner()
	table := ordersTable()
	q := simpleSelectQB(table)
	pi := q.ParseInfo[qb.DestImplicit]
	pi.WhereExpr = eq(colref("o", "id"), colref("o", "custid"))

	roots, err := p.GenQB(q)
	if err != nil {
		t.Fatalf("GenQB: %v", err)
	}
	root, ok := roots[qb.DestImplicit]
	if !ok {
		t.Fatalf("expected a root for destination %q", qb.DestImplicit)
	}

	op := p.Factory.Arena.Get(root)
	if op.Kind != optree.KindFileSink {
		t.Fatalf("expected terminal FileSink, got %s", op.Kind)
	}

	var kinds []optree.Kind
	for _, o := range collectAncestors(p.Factory, root) {
		kinds = append(kinds, o.Kind)
	}
	want := map[optree.Kind]bool{
		optree.KindTableScan: false,
		optree.KindFilter:    false,
		optree.KindSelect:    false,
		optree.KindFileSink:  false,
	}
	for _, k := range kinds {
		if _, ok := want[k]; ok {
			want[k] = true
		}
	}
	for k, seen := range want {
		if !seen {
			t.Fatalf("expected operator tree to contain a %s, got %v", k, kinds)
		}
	}
}

func TestGenQBWithGroupByProducesAggregatorStages(t *testing.T) {
	p := newPlanner()
	table := ordersTable()
	q := simpleSelectQB(table)
	pi := q.ParseInfo[qb.DestImplicit]

	sumCall := funcCall("sum", colref("o", "amount"))
	pi.GroupByExprs = []ast.Node{colref("o", "custid")}
	pi.AggregateExprs = map[string]ast.Node{"sum(amount)": sumCall}
	pi.AggregateOrder = []string{"sum(amount)"}
	// Post-group-by, the select list references the aggregator's bound
	// output column ("sum") rather than re-embedding the raw aggregate
	// call: that rewrite happens upstream, during phase-1 analysis.
	pi.SelectExpr = ast.New(ast.TOK_SELECT, "", ast.Position{},
		selExpr("", ast.New(ast.TOK_TABLE_OR_COL, "custid", ast.Position{})),
		selExpr("total", ast.New(ast.TOK_TABLE_OR_COL, "sum", ast.Position{})),
	)

	roots, err := p.GenQB(q)
	if err != nil {
		t.Fatalf("GenQB: %v", err)
	}
	root := roots[qb.DestImplicit]

	found := false
	for _, o := range collectAncestors(p.Factory, root) {
		if o.Kind == optree.KindGroupBy {
			found = true
			d := o.Conf.(*optree.GroupByDesc)
			if len(d.Aggregators) != 1 || d.Aggregators[0].Name != "sum" {
				t.Fatalf("expected a single sum aggregator, got %+v", d.Aggregators)
			}
		}
	}
	if !found {
		t.Fatalf("expected a group-by operator in the tree")
	}
}

func TestGenQBWithLimitInsertsLimitOperator(t *testing.T) {
	p := newPlanner()
	table := ordersTable()
	q := simpleSelectQB(table)
	pi := q.ParseInfo[qb.DestImplicit]
	pi.HasLimit = true
	pi.Limit = 10

	roots, err := p.GenQB(q)
	if err != nil {
		t.Fatalf("GenQB: %v", err)
	}
	root := roots[qb.DestImplicit]

	found := false
	for _, o := range collectAncestors(p.Factory, root) {
		if o.Kind == optree.KindLimit {
			found = true
			if o.Conf.(*optree.LimitDesc).N != 10 {
				t.Fatalf("expected limit N=10, got %d", o.Conf.(*optree.LimitDesc).N)
			}
		}
	}
	if !found {
		t.Fatalf("expected a limit operator in the tree")
	}
}

func TestGenQBJoinProducesJoinAndReduceSinkOperators(t *testing.T) {
	p := newPlanner()
	orders := ordersTable()
	customers := customersTable()

	q := qb.New("")
	q.TabAliases["o"] = true
	q.TabAliases["c"] = true
	q.MetaData.TableForAlias["o"] = orders
	q.MetaData.TableForAlias["c"] = customers
	q.JoinTree = &qb.JoinTreeRef{
		Root: ast.New(ast.TOK_JOIN, "", ast.Position{},
			ast.New(ast.TOK_TABREF, "", ast.Position{},
				ast.New(ast.TOK_TAB, "o", ast.Position{}),
				ast.New(ast.TOK_TABALIAS, "o", ast.Position{})),
			ast.New(ast.TOK_TABREF, "", ast.Position{},
				ast.New(ast.TOK_TAB, "c", ast.Position{}),
				ast.New(ast.TOK_TABALIAS, "c", ast.Position{})),
			ast.New(ast.TOK_ON, "", ast.Position{}, eq(colref("o", "custid"), colref("c", "id"))),
		),
	}

	pi := q.GetParseInfo(qb.DestImplicit)
	pi.Destination = qb.Destination{Kind: qb.DestTempFile, Path: "/tmp/out"}
	pi.SelectExpr = ast.New(ast.TOK_SELECT, "", ast.Position{},
		selExpr("", colref("o", "id")),
	)

	roots, err := p.GenQB(q)
	if err != nil {
		t.Fatalf("GenQB: %v", err)
	}
	root := roots[qb.DestImplicit]

	var sawJoin, sawReduceSink bool
	for _, o := range collectAncestors(p.Factory, root) {
		switch o.Kind {
		case optree.KindJoin:
			sawJoin = true
		case optree.KindReduceSink:
			sawReduceSink = true
		}
	}
	if !sawJoin {
		t.Fatalf("expected a join operator in the tree")
	}
	if !sawReduceSink {
		t.Fatalf("expected reduce-sink operators feeding the join")
	}
}
