package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/lattice-ql/qcompiler/types"
)

func TestParseTypeResolvesKnownPrimitives(t *testing.T) {
	got, err := parseType("bigint")
	if err != nil {
		t.Fatalf("parseType: %v", err)
	}
	if got.Prim != types.Long {
		t.Fatalf("expected bigint to resolve to Long, got %v", got.Prim)
	}
}

func TestParseTypeRejectsUnknownName(t *testing.T) {
	if _, err := parseType("enum"); err == nil {
		t.Fatalf("expected an error for an unrecognized type name")
	}
}

func TestToColumnsPropagatesTypeErrors(t *testing.T) {
	if _, err := toColumns([]columnDef{{Name: "x", Type: "not-a-type"}}); err == nil {
		t.Fatalf("expected toColumns to surface the underlying parseType error")
	}
}

func TestLoadCatalogRequiresAPath(t *testing.T) {
	if _, err := loadCatalog(""); err == nil {
		t.Fatalf("expected an error when --catalog is empty")
	}
}

func TestLoadCatalogParsesTablesAndPartitions(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "catalog.json")
	const doc = `{
		"tables": [
			{
				"name": "orders",
				"columns": [{"name": "id", "type": "int"}, {"name": "amount", "type": "double"}],
				"partitionCols": [{"name": "dt", "type": "string"}],
				"inputFormat": "TextInputFormat",
				"outputFormat": "TextOutputFormat",
				"location": "/warehouse/orders"
			}
		]
	}`
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	ms, err := loadCatalog(path)
	if err != nil {
		t.Fatalf("loadCatalog: %v", err)
	}
	tbl, err := ms.GetTable("orders")
	if err != nil {
		t.Fatalf("GetTable: %v", err)
	}
	if len(tbl.Columns) != 2 || len(tbl.PartitionCols) != 1 {
		t.Fatalf("unexpected table shape: %+v", tbl)
	}
	if !tbl.IsPartitionColumn("dt") {
		t.Fatalf("expected dt to be registered as a partition column")
	}
}

func TestLoadCatalogRejectsMalformedJSON(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if _, err := loadCatalog(path); err == nil {
		t.Fatalf("expected an error for malformed catalog JSON")
	}
}
