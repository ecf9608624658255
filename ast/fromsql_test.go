package ast

import "testing"

func TestFromSQLSelectStarProducesAllColRef(t *testing.T) {
	root, err := FromSQL("SELECT * FROM orders")
	if err != nil {
		t.Fatalf("FromSQL: %v", err)
	}
	if root.Kind() != TOK_QUERY {
		t.Fatalf("expected TOK_QUERY root, got %v", root.Kind())
	}
	sel := FindFirst(root, TOK_SELECT)
	if sel == nil {
		t.Fatalf("expected a TOK_SELECT child")
	}
	if len(sel.Children()) != 1 || sel.Children()[0].Kind() != TOK_ALLCOLREF {
		t.Fatalf("expected a single TOK_ALLCOLREF child, got %+v", sel.Children())
	}

	from := FindFirst(root, TOK_FROM)
	if from == nil {
		t.Fatalf("expected a TOK_FROM child")
	}
	tabref := Child(from, 0)
	if tabref == nil || tabref.Kind() != TOK_TABREF {
		t.Fatalf("expected TOK_TABREF under FROM, got %v", tabref)
	}
	if Child(tabref, 0).Kind() != TOK_TAB || Child(tabref, 0).Text() != "orders" {
		t.Fatalf("expected TOK_TAB orders, got %+v", Child(tabref, 0))
	}
	if Child(tabref, 1).Kind() != TOK_TABALIAS || Child(tabref, 1).Text() != "" {
		t.Fatalf("expected an empty TOK_TABALIAS for an unaliased table, got %+v", Child(tabref, 1))
	}
}

func TestFromSQLWhereClauseBuildsComparisonNode(t *testing.T) {
	root, err := FromSQL("SELECT id, amount FROM orders WHERE custid = 1")
	if err != nil {
		t.Fatalf("FromSQL: %v", err)
	}

	sel := FindFirst(root, TOK_SELECT)
	if len(sel.Children()) != 2 {
		t.Fatalf("expected 2 select expressions, got %d", len(sel.Children()))
	}
	for i, want := range []string{"id", "amount"} {
		se := sel.Children()[i]
		if se.Kind() != TOK_SELEXPR {
			t.Fatalf("expected TOK_SELEXPR, got %v", se.Kind())
		}
		col := Child(se, 0)
		if col.Kind() != TOK_TABLE_OR_COL || col.Text() != want {
			t.Fatalf("expected column %q, got %+v", want, col)
		}
	}

	where := FindFirst(root, TOK_WHERE)
	if where == nil {
		t.Fatalf("expected a TOK_WHERE child")
	}
	cmp := Child(where, 0)
	if cmp.Kind() != TOK_EQ {
		t.Fatalf("expected TOK_EQ, got %v", cmp.Kind())
	}
	if Child(cmp, 0).Text() != "custid" {
		t.Fatalf("expected left side custid, got %+v", Child(cmp, 0))
	}
	if Child(cmp, 1).Kind() != TOK_NUMBER || Child(cmp, 1).Text() != "1" {
		t.Fatalf("expected right side number 1, got %+v", Child(cmp, 1))
	}
}

func TestFromSQLRejectsNonSelectStatements(t *testing.T) {
	if _, err := FromSQL("INSERT INTO orders (id) VALUES (1)"); err == nil {
		t.Fatalf("expected an error for a non-SELECT statement")
	}
}

func TestFromSQLCommaJoinDesugarsToLeftDeepInnerJoin(t *testing.T) {
	root, err := FromSQL("SELECT * FROM a, b")
	if err != nil {
		t.Fatalf("FromSQL: %v", err)
	}
	from := FindFirst(root, TOK_FROM)
	join := Child(from, 0)
	if join.Kind() != TOK_JOIN {
		t.Fatalf("expected TOK_JOIN for a comma-joined FROM, got %v", join.Kind())
	}
}
