// Package catalog defines the metastore and function-registry collaborators
// the compiler core treats as external (§6), plus a couple of concrete
// implementations used by tests and the CLI.
package catalog

import "github.com/lattice-ql/qcompiler/types"

// Table describes one table's schema, partitioning, and bucketing as the
// metastore reports it.
type Table struct {
	Name            string
	Columns         []Column
	PartitionCols   []Column // ordered; empty if unpartitioned
	BucketCols      []string
	NumBuckets      int // 0 if not bucketed
	InputFormat     string
	OutputFormat    string
	Location        string
}

// Column is one table column's name and type.
type Column struct {
	Name string
	Type types.Info
}

// ColumnByName looks up a column case-insensitively.
func (t *Table) ColumnByName(name string) (Column, bool) {
	for _, c := range t.Columns {
		if foldEq(c.Name, name) {
			return c, true
		}
	}
	return Column{}, false
}

// IsPartitionColumn reports whether name is one of the table's partition
// columns.
func (t *Table) IsPartitionColumn(name string) bool {
	for _, c := range t.PartitionCols {
		if foldEq(c.Name, name) {
			return true
		}
	}
	return false
}

func foldEq(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		ca, cb := a[i], b[i]
		if 'A' <= ca && ca <= 'Z' {
			ca += 'a' - 'A'
		}
		if 'A' <= cb && cb <= 'Z' {
			cb += 'a' - 'A'
		}
		if ca != cb {
			return false
		}
	}
	return true
}

// Partition is one subdirectory of a partitioned table, keyed by its
// partition-column values.
type Partition struct {
	Values   map[string]string // partition column -> value, e.g. {"dt": "2009-01-01"}
	Location string
}

// InvalidTableError is returned by Metastore.GetTable when the table does
// not exist; the binder wraps it as errs.InvalidTable.
type InvalidTableError struct {
	Name string
}

func (e *InvalidTableError) Error() string { return "invalid table: " + e.Name }

// Metastore is the pull-only external collaborator supplying table schemas,
// partitions, and bucketing (§6).
type Metastore interface {
	GetTable(name string) (*Table, error)
	ListPartitions(table *Table) ([]Partition, error)
}

// FunctionRegistry is the external collaborator resolving UDF/UDAF
// overloads and the implicit-conversion table (§6).
type FunctionRegistry interface {
	GetUDF(name string, argTypes []types.Info) (*UDFDescriptor, error)
	GetUDAF(name string, argTypes []types.Info) (*UDAFDescriptor, error)
	GetUDAFEvaluator(name string, argTypes []types.Info) (*UDAFEvaluator, error)
	GetCommonClass(a, b types.Info) (types.Info, bool)
	ImplicitConvertible(from, to types.Info) bool
	GetUDFMethod(targetTypeName string, from types.Info) (*UDFDescriptor, bool)
}

// UDFDescriptor is a resolved scalar function overload: a concrete call
// signature the compiler binds to at analysis time (no runtime reflection).
type UDFDescriptor struct {
	Name       string
	ParamTypes []types.Info
	ReturnType types.Info
	Class      string // implementing class/method name, carried through to the operator tree
	Method     string
}

// UDAFDescriptor is a resolved aggregate function overload.
type UDAFDescriptor struct {
	Name       string
	ParamTypes []types.Info
	ReturnType types.Info
	Class      string
}

// UDAFEvaluator names the iterate/merge/terminate method set bound for one
// mode, per §4.5's table of iterator-method-name pairs.
type UDAFEvaluator struct {
	Class           string
	IterateMethod   string
	TerminatePartial string
	MergeMethod     string
	TerminateMethod string
}
