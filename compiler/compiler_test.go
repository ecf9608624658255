package compiler

import (
	"testing"

	"github.com/lattice-ql/qcompiler/ast"
	"github.com/lattice-ql/qcompiler/catalog"
	"github.com/lattice-ql/qcompiler/mrtask"
	"github.com/lattice-ql/qcompiler/session"
	"github.com/lattice-ql/qcompiler/types"
)

func newMetastore() *catalog.MemMetastore {
	ms := catalog.NewMemMetastore()
	ms.PutTable(&catalog.Table{
		Name: "orders",
		Columns: []catalog.Column{
			{Name: "id", Type: types.Prim(types.Integer)},
			{Name: "custid", Type: types.Prim(types.Integer)},
			{Name: "amount", Type: types.Prim(types.Double)},
		},
		InputFormat:  "TextInputFormat",
		OutputFormat: "TextOutputFormat",
		Location:     "/warehouse/orders",
	})
	return ms
}

func newSession(t *testing.T) *session.Session {
	t.Helper()
	sess, err := session.NewSession(nil)
	if err != nil {
		t.Fatalf("NewSession: %v", err)
	}
	t.Cleanup(func() { sess.Close() })
	return sess
}

func TestCompileSelectStarTakesFastPath(t *testing.T) {
	root, err := ast.FromSQL("SELECT * FROM orders")
	if err != nil {
		t.Fatalf("FromSQL: %v", err)
	}

	res, err := Compile(root, newSession(t), newMetastore(), catalog.NewDefaultFunctionRegistry())
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	if len(res.Plan.Tasks) != 1 || res.Plan.Tasks[0].Kind != mrtask.KindFetch {
		t.Fatalf("expected a single Fetch task, got %+v", res.Plan.Tasks)
	}
	if res.Plan.Tasks[0].FetchPath != "/warehouse/orders" {
		t.Fatalf("expected the fetch path to be the table location, got %q", res.Plan.Tasks[0].FetchPath)
	}
}

func TestCompileWithWhereBuildsMapRedPlan(t *testing.T) {
	root, err := ast.FromSQL("SELECT id, amount FROM orders WHERE custid = 1")
	if err != nil {
		t.Fatalf("FromSQL: %v", err)
	}

	res, err := Compile(root, newSession(t), newMetastore(), catalog.NewDefaultFunctionRegistry())
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	var mapRed int
	for _, task := range res.Plan.Tasks {
		if task.Kind == mrtask.KindMapRed {
			mapRed++
		}
	}
	if mapRed != 1 {
		t.Fatalf("expected exactly one MapRed task, got %d", mapRed)
	}
}

func TestCompileCachesRepeatedQueries(t *testing.T) {
	root, err := ast.FromSQL("SELECT id FROM orders WHERE custid = 2")
	if err != nil {
		t.Fatalf("FromSQL: %v", err)
	}
	sess := newSession(t)
	ms := newMetastore()
	reg := catalog.NewDefaultFunctionRegistry()

	first, err := Compile(root, sess, ms, reg)
	if err != nil {
		t.Fatalf("Compile (first): %v", err)
	}
	if first.CacheHit {
		t.Fatalf("expected the first compile to be a cache miss")
	}

	root2, _ := ast.FromSQL("SELECT id FROM orders WHERE custid = 2")
	second, err := Compile(root2, sess, ms, reg)
	if err != nil {
		t.Fatalf("Compile (second): %v", err)
	}
	if !second.CacheHit {
		t.Fatalf("expected the second identical compile to hit the plan cache")
	}
}
