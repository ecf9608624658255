package errs

import (
	"errors"
	"testing"
)

func TestKindStringFallsBackToUnknown(t *testing.T) {
	if InvalidColumn.String() != "InvalidColumn" {
		t.Fatalf("expected InvalidColumn, got %q", InvalidColumn.String())
	}
	var bogus Kind = 255
	if bogus.String() != "Unknown" {
		t.Fatalf("expected Unknown for an unregistered kind, got %q", bogus.String())
	}
}

func TestNewBuildsErrorWithoutPosition(t *testing.T) {
	err := New(InvalidTable, "table %q does not exist", "orders")
	if err.Kind != InvalidTable {
		t.Fatalf("expected InvalidTable, got %v", err.Kind)
	}
	want := `InvalidTable: table "orders" does not exist`
	if err.Error() != want {
		t.Fatalf("expected %q, got %q", want, err.Error())
	}
}

func TestAtAnchorsPositionInMessage(t *testing.T) {
	err := At(AmbiguousColumn, Position{Line: 3, Col: 12, Text: "id"}, "column %q is ambiguous", "id")
	want := `AmbiguousColumn: column "id" is ambiguous (line 3:12 near "id")`
	if err.Error() != want {
		t.Fatalf("expected %q, got %q", want, err.Error())
	}
}

func TestWrapPreservesCauseForUnwrap(t *testing.T) {
	cause := errors.New("connection refused")
	err := Wrap(cause, "listing partitions")
	if err.Kind != Generic {
		t.Fatalf("expected Generic kind, got %v", err.Kind)
	}
	if !errors.Is(err, cause) {
		t.Fatalf("expected errors.Is to find the wrapped cause")
	}
}

func TestIsMatchesOnlyTheGivenKind(t *testing.T) {
	err := New(InvalidJoinCondition2, "neither side referenced")
	if !Is(err, InvalidJoinCondition2) {
		t.Fatalf("expected Is to match the error's own kind")
	}
	if Is(err, InvalidJoinCondition1) {
		t.Fatalf("expected Is to reject a different kind")
	}
	if Is(errors.New("plain error"), Generic) {
		t.Fatalf("expected Is to reject a non-SemanticError")
	}
}
