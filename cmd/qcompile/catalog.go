package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/lattice-ql/qcompiler/catalog"
	"github.com/lattice-ql/qcompiler/types"
)

// catalogFile is the on-disk shape of the --catalog JSON file: a flat list
// of table definitions, small enough that this CLI doesn't need a real
// metastore service behind it.
type catalogFile struct {
	Tables []tableDef `json:"tables"`
}

type tableDef struct {
	Name          string      `json:"name"`
	Columns       []columnDef `json:"columns"`
	PartitionCols []columnDef `json:"partitionCols"`
	BucketCols    []string    `json:"bucketCols"`
	NumBuckets    int         `json:"numBuckets"`
	InputFormat   string      `json:"inputFormat"`
	OutputFormat  string      `json:"outputFormat"`
	Location      string      `json:"location"`
}

type columnDef struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

var primitiveNames = map[string]types.Primitive{
	"boolean":   types.Boolean,
	"int":       types.Integer,
	"bigint":    types.Long,
	"double":    types.Double,
	"string":    types.String,
	"timestamp": types.Timestamp,
	"binary":    types.Binary,
}

func parseType(name string) (types.Info, error) {
	p, ok := primitiveNames[name]
	if !ok {
		return types.Info{}, fmt.Errorf("unrecognized column type %q", name)
	}
	return types.Prim(p), nil
}

// loadCatalog reads path and builds an in-memory metastore from it.
func loadCatalog(path string) (*catalog.MemMetastore, error) {
	if path == "" {
		return nil, fmt.Errorf("--catalog is required")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading catalog file: %w", err)
	}
	var cf catalogFile
	if err := json.Unmarshal(data, &cf); err != nil {
		return nil, fmt.Errorf("parsing catalog file: %w", err)
	}

	ms := catalog.NewMemMetastore()
	for _, td := range cf.Tables {
		cols, err := toColumns(td.Columns)
		if err != nil {
			return nil, fmt.Errorf("table %s: %w", td.Name, err)
		}
		partCols, err := toColumns(td.PartitionCols)
		if err != nil {
			return nil, fmt.Errorf("table %s: %w", td.Name, err)
		}
		ms.PutTable(&catalog.Table{
			Name:          td.Name,
			Columns:       cols,
			PartitionCols: partCols,
			BucketCols:    td.BucketCols,
			NumBuckets:    td.NumBuckets,
			InputFormat:   td.InputFormat,
			OutputFormat:  td.OutputFormat,
			Location:      td.Location,
		})
	}
	return ms, nil
}

func toColumns(defs []columnDef) ([]catalog.Column, error) {
	out := make([]catalog.Column, 0, len(defs))
	for _, d := range defs {
		t, err := parseType(d.Type)
		if err != nil {
			return nil, err
		}
		out = append(out, catalog.Column{Name: d.Name, Type: t})
	}
	return out, nil
}
