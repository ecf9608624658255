// Package resolver implements the row resolver: the per-operator
// name-resolution context mapping (tableAlias, columnName) to
// (internalName, type), plus the dense internal-name allocation scheme
// described in §4.3.
package resolver

import (
	"strconv"
	"strings"

	"github.com/lattice-ql/qcompiler/types"
)

// ColumnInfo is what the resolver returns for a resolved (alias, column)
// pair: its internal name within the owning operator's output row, and its
// type.
type ColumnInfo struct {
	InternalName string
	Type         types.Info
	Alias        string // table alias (or "" for an unqualified internal column), case-preserved
	Column       string // original column name, case-preserved
}

// RowResolver is a two-level mapping tableAlias -> (columnName ->
// ColumnInfo) with a reverse lookup by internalName, preserving insertion
// order for deterministic projection (§3 invariants).
type RowResolver struct {
	byAlias map[string]map[string]*ColumnInfo // alias (lowercased) -> colName (lowercased) -> info
	byName  map[string]*ColumnInfo            // internalName -> info
	order   []*ColumnInfo                     // insertion order
	counter int                                // next dense internal name to allocate
}

// New creates an empty RowResolver.
func New() *RowResolver {
	return &RowResolver{
		byAlias: make(map[string]map[string]*ColumnInfo),
		byName:  make(map[string]*ColumnInfo),
	}
}

func fold(s string) string { return strings.ToLower(s) }

// Put registers a column under (alias, column) with an explicit internal
// name, as happens when descending into a reduce-sink where internal names
// become KEY.i / VALUE.j (§4.3) instead of dense integers.
func (r *RowResolver) Put(alias, column, internalName string, t types.Info) *ColumnInfo {
	ci := &ColumnInfo{InternalName: internalName, Type: t, Alias: alias, Column: column}
	a := fold(alias)
	if r.byAlias[a] == nil {
		r.byAlias[a] = make(map[string]*ColumnInfo)
	}
	r.byAlias[a][fold(column)] = ci
	r.byName[internalName] = ci
	r.order = append(r.order, ci)
	return ci
}

// Add registers a column under (alias, column), allocating the next dense
// internal name ("0", "1", ... "n-1") — the row-schema-density invariant
// (§8) every non-reduce-sink operator must satisfy.
func (r *RowResolver) Add(alias, column string, t types.Info) *ColumnInfo {
	name := strconv.Itoa(r.counter)
	r.counter++
	return r.Put(alias, column, name, t)
}

// Lookup resolves (alias, column). An empty alias matches any alias that
// has the column, failing with ambiguous=true if more than one does.
func (r *RowResolver) Lookup(alias, column string) (ci *ColumnInfo, ambiguous bool) {
	col := fold(column)
	if alias != "" {
		if m, ok := r.byAlias[fold(alias)]; ok {
			if c, ok := m[col]; ok {
				return c, false
			}
		}
		return nil, false
	}
	var found *ColumnInfo
	count := 0
	for _, m := range r.byAlias {
		if c, ok := m[col]; ok {
			found = c
			count++
		}
	}
	if count > 1 {
		return nil, true
	}
	return found, false
}

// ByInternalName reverse-looks-up a column by its internal name.
func (r *RowResolver) ByInternalName(name string) (*ColumnInfo, bool) {
	ci, ok := r.byName[name]
	return ci, ok
}

// Columns returns every registered column in insertion order, the order
// used for star-expansion ("*" / "table.*") and positional schema checks.
func (r *RowResolver) Columns() []*ColumnInfo {
	out := make([]*ColumnInfo, len(r.order))
	copy(out, r.order)
	return out
}

// ColumnsForAlias returns the columns registered under one alias, in
// insertion order — used to expand "table.*".
func (r *RowResolver) ColumnsForAlias(alias string) []*ColumnInfo {
	var out []*ColumnInfo
	a := fold(alias)
	for _, ci := range r.order {
		if fold(ci.Alias) == a {
			out = append(out, ci)
		}
	}
	return out
}

// InternalNames returns the set of internal names currently registered,
// used to verify the row-schema-density invariant in tests.
func (r *RowResolver) InternalNames() []string {
	out := make([]string, 0, len(r.byName))
	for n := range r.byName {
		out = append(out, n)
	}
	return out
}

// KeyValueNames rebuilds internal names as KEY.i / VALUE.j for the columns
// crossing a reduce-sink, preserving each column's alias/column/type but
// replacing InternalName and re-registering under the new scheme. keyCount
// is the number of leading columns (the sort key); the rest become VALUE.
func (r *RowResolver) KeyValueNames(keyCount int) *RowResolver {
	out := New()
	for i, ci := range r.order {
		var name string
		if i < keyCount {
			name = "KEY." + strconv.Itoa(i)
		} else {
			name = "VALUE." + strconv.Itoa(i-keyCount)
		}
		out.Put(ci.Alias, ci.Column, name, ci.Type)
	}
	return out
}
