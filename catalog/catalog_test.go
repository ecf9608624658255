package catalog

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lattice-ql/qcompiler/types"
)

func exampleTable() *Table {
	return &Table{
		Name: "orders",
		Columns: []Column{
			{Name: "ID", Type: types.Prim(types.Integer)},
			{Name: "Amount", Type: types.Prim(types.Double)},
		},
		PartitionCols: []Column{{Name: "dt", Type: types.Prim(types.String)}},
	}
}

func TestColumnByNameIsCaseInsensitive(t *testing.T) {
	tbl := exampleTable()
	c, ok := tbl.ColumnByName("amount")
	require.True(t, ok, "expected a case-insensitive match")
	assert.True(t, types.Equal(c.Type, types.Prim(types.Double)))

	_, ok = tbl.ColumnByName("missing")
	assert.False(t, ok, "expected no match for an unknown column")
}

func TestIsPartitionColumnIsCaseInsensitive(t *testing.T) {
	tbl := exampleTable()
	assert.True(t, tbl.IsPartitionColumn("DT"))
	assert.False(t, tbl.IsPartitionColumn("amount"))
}

func TestInvalidTableErrorMessage(t *testing.T) {
	err := &InvalidTableError{Name: "ghosts"}
	assert.Equal(t, "invalid table: ghosts", err.Error())
}

func TestMemMetastoreRoundTrip(t *testing.T) {
	m := NewMemMetastore()
	tbl := exampleTable()
	m.PutTable(tbl)
	m.PutPartitions("orders", []Partition{{Values: map[string]string{"dt": "2026-01-01"}, Location: "/warehouse/orders/dt=2026-01-01"}})

	got, err := m.GetTable("orders")
	require.NoError(t, err)
	assert.Equal(t, "orders", got.Name)

	parts, err := m.ListPartitions(got)
	require.NoError(t, err)
	require.Len(t, parts, 1)
	assert.Equal(t, "2026-01-01", parts[0].Values["dt"])

	_, err = m.GetTable("missing")
	require.Error(t, err)
	assert.IsType(t, &InvalidTableError{}, err)
}
