package main

import (
	"os"
	"path/filepath"
	"testing"
)

func TestReadSQLPrefersExplicitArgument(t *testing.T) {
	got, err := readSQL("", []string{"SELECT 1"})
	if err != nil {
		t.Fatalf("readSQL: %v", err)
	}
	if got != "SELECT 1" {
		t.Fatalf("expected the argument to be used verbatim, got %q", got)
	}
}

func TestReadSQLReadsFromFileWhenGiven(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "query.sql")
	if err := os.WriteFile(path, []byte("SELECT id FROM orders"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	got, err := readSQL(path, nil)
	if err != nil {
		t.Fatalf("readSQL: %v", err)
	}
	if got != "SELECT id FROM orders" {
		t.Fatalf("unexpected file contents read back: %q", got)
	}
}

func TestReadSQLRejectsEmptyStdin(t *testing.T) {
	r, w, err := os.Pipe()
	if err != nil {
		t.Fatalf("Pipe: %v", err)
	}
	w.Close()
	oldStdin := os.Stdin
	os.Stdin = r
	defer func() { os.Stdin = oldStdin }()

	if _, err := readSQL("", nil); err == nil {
		t.Fatalf("expected an error when stdin is empty")
	}
}
