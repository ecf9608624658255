package ast

import "testing"

func TestFindFirstReturnsFirstMatchingDirectChild(t *testing.T) {
	n := New(TOK_QUERY, "", Position{},
		New(TOK_SELECT, "", Position{}),
		New(TOK_FROM, "", Position{}),
		New(TOK_WHERE, "", Position{}),
	)
	got := FindFirst(n, TOK_FROM)
	if got == nil || got.Kind() != TOK_FROM {
		t.Fatalf("expected TOK_FROM, got %v", got)
	}
	if FindFirst(n, TOK_LIMIT) != nil {
		t.Fatalf("expected nil for an absent kind")
	}
}

func TestFindAllReturnsEveryMatchInOrder(t *testing.T) {
	n := New(TOK_GROUPBY, "", Position{},
		New(TOK_TABLE_OR_COL, "a", Position{}),
		New(TOK_TABLE_OR_COL, "b", Position{}),
		New(TOK_NUMBER, "1", Position{}),
	)
	got := FindAll(n, TOK_TABLE_OR_COL)
	if len(got) != 2 {
		t.Fatalf("expected 2 matches, got %d", len(got))
	}
	if got[0].Text() != "a" || got[1].Text() != "b" {
		t.Fatalf("expected order a,b, got %q,%q", got[0].Text(), got[1].Text())
	}
}

func TestChildHandlesOutOfRangeAndNil(t *testing.T) {
	n := New(TOK_SELECT, "", Position{}, New(TOK_ALLCOLREF, "*", Position{}))
	if Child(n, 0) == nil {
		t.Fatalf("expected child 0 to exist")
	}
	if Child(n, 1) != nil {
		t.Fatalf("expected nil for an out-of-range index")
	}
	if Child(nil, 0) != nil {
		t.Fatalf("expected nil for a nil node")
	}
}

func TestStringRendersNestedStructureDeterministically(t *testing.T) {
	n := New(TOK_WHERE, "", Position{}, New(TOK_EQ, "=", Position{},
		New(TOK_TABLE_OR_COL, "id", Position{}),
		New(TOK_NUMBER, "1", Position{}),
	))
	want := `(TOK_WHERE "" (TOK_EQ "=" (TOK_TABLE_OR_COL "id") (TOK_NUMBER "1")))`
	if got := String(n); got != want {
		t.Fatalf("expected %q, got %q", want, got)
	}
	if String(nil) != "<nil>" {
		t.Fatalf("expected <nil> for a nil node")
	}
}

func TestTokenKindStringFallsBackForOutOfRangeValues(t *testing.T) {
	if TOK_SELECT.String() != "TOK_SELECT" {
		t.Fatalf("expected TOK_SELECT, got %q", TOK_SELECT.String())
	}
	var bogus TokenKind = 9999
	if bogus.String() != "TOK_UNKNOWN" {
		t.Fatalf("expected TOK_UNKNOWN, got %q", bogus.String())
	}
}
