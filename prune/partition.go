// Package prune implements the two pruning passes that narrow a table
// scan before it ever reaches the plan generator: the partition pruner
// (§4.7), which confirms which partitions a WHERE predicate can eliminate,
// and the sample pruner (§4.8), which decides whether a TABLESAMPLE clause
// can be satisfied by input pruning alone or needs a row-level hash
// predicate.
package prune

import (
	"github.com/lattice-ql/qcompiler/ast"
	"github.com/lattice-ql/qcompiler/catalog"
	"github.com/lattice-ql/qcompiler/errs"
)

// Mode selects how strictly the partition pruner treats a predicate it
// cannot fully evaluate against partition columns alone (§4.7).
type Mode uint8

const (
	// Nonstrict allows a query with no usable partition predicate to scan
	// every partition.
	Nonstrict Mode = iota
	// Strict rejects a query against a partitioned table when no
	// partition-column predicate can be evaluated statically.
	Strict
)

// Result is the outcome of pruning one table reference.
type Result struct {
	// Confirmed lists the partitions known to satisfy the predicate.
	Confirmed []*catalog.Partition
	// Unknown is true when the predicate could not be fully evaluated
	// against partition columns alone (e.g. it also references
	// non-partition columns), so Confirmed is a subset, not the final
	// answer -- a residual filter operator is still required downstream.
	Unknown bool
}

// hasPartitionPredicate reports whether where references at least one
// partition column of table anywhere in its tree, by walking the WHERE
// tree for column references qualified (or, for a single-table query,
// unqualified) to alias and checking against table's partition column set.
// References to non-partition columns elsewhere in where do not change the
// answer.
func hasPartitionPredicate(where ast.Node, alias string, table *catalog.Table) bool {
	if where == nil {
		return false
	}
	found := false
	var walk func(ast.Node)
	walk = func(n ast.Node) {
		if found {
			return
		}
		if n.Kind() == ast.TOK_COLREF || n.Kind() == ast.TOK_TABLE_OR_COL {
			a, c, ok := colRef(n)
			if ok && (a == "" || a == alias) && table.IsPartitionColumn(c) {
				found = true
				return
			}
		}
		for _, c := range n.Children() {
			walk(c)
		}
	}
	walk(where)
	return found
}

func colRef(n ast.Node) (alias, column string, ok bool) {
	switch n.Kind() {
	case ast.TOK_COLREF:
		c := n.Children()
		if len(c) != 2 {
			return "", "", false
		}
		return c[0].Text(), c[1].Text(), true
	case ast.TOK_TABLE_OR_COL:
		return "", n.Text(), true
	default:
		return "", "", false
	}
}

// Prune evaluates where against table's partition list. joinEmbedded is
// true when the predicate came from a join's ON clause rather than a
// top-level WHERE, in which case it can only be used to prune the side
// whose alias it names -- an embedded predicate is still eligible, but
// never allows pruning a partition based on a column from the other join
// input, since that value is only known during the join itself, not
// during partition listing.
func Prune(mode Mode, where ast.Node, alias string, table *catalog.Table, allPartitions []*catalog.Partition, joinEmbedded bool) (*Result, error) {
	if len(table.PartitionCols) == 0 {
		return &Result{Confirmed: allPartitions}, nil
	}

	if !hasPartitionPredicate(where, alias, table) {
		if mode == Strict {
			return nil, errs.New(errs.NoPartitionPredicate, "query against partitioned table %s has no partition predicate", table.Name)
		}
		return &Result{Confirmed: allPartitions, Unknown: true}, nil
	}

	confirmed := make([]*catalog.Partition, 0, len(allPartitions))
	allDecided := true
	for _, p := range allPartitions {
		verdict, decided := evalPartitionPredicate(where, alias, table, p)
		if !decided {
			allDecided = false
			confirmed = append(confirmed, p) // kept as a candidate; a residual filter still applies
			continue
		}
		if verdict {
			confirmed = append(confirmed, p)
		}
	}

	return &Result{Confirmed: confirmed, Unknown: joinEmbedded || !allDecided}, nil
}

// evalPartitionPredicate attempts to statically evaluate where against one
// partition's column values. decided is false whenever the predicate
// touches a non-partition column or an operator this conservative
// evaluator does not model, in which case the partition is conservatively
// kept.
func evalPartitionPredicate(where ast.Node, alias string, table *catalog.Table, part *catalog.Partition) (verdict bool, decided bool) {
	if where == nil {
		return true, true
	}
	switch where.Kind() {
	case ast.TOK_AND:
		c := where.Children()
		if len(c) != 2 {
			return false, false
		}
		lv, ld := evalPartitionPredicate(c[0], alias, table, part)
		rv, rd := evalPartitionPredicate(c[1], alias, table, part)
		if ld && rd {
			return lv && rv, true
		}
		if ld && !lv {
			return false, true
		}
		if rd && !rv {
			return false, true
		}
		return false, false
	case ast.TOK_EQ:
		return evalPartitionEquality(where, alias, table, part)
	default:
		return false, false
	}
}

func evalPartitionEquality(n ast.Node, alias string, table *catalog.Table, part *catalog.Partition) (bool, bool) {
	ch := n.Children()
	if len(ch) != 2 {
		return false, false
	}
	col, lit, ok := splitColAndLiteral(ch[0], ch[1], alias, table)
	if !ok {
		return false, false
	}
	v, present := part.Values[col]
	if !present {
		return false, false
	}
	return v == lit, true
}

func splitColAndLiteral(a, b ast.Node, alias string, table *catalog.Table) (col, lit string, ok bool) {
	if colAlias, colName, isCol := colRef(a); isCol && (colAlias == "" || colAlias == alias) && table.IsPartitionColumn(colName) {
		if isLiteral(b) {
			return colName, b.Text(), true
		}
	}
	if colAlias, colName, isCol := colRef(b); isCol && (colAlias == "" || colAlias == alias) && table.IsPartitionColumn(colName) {
		if isLiteral(a) {
			return colName, a.Text(), true
		}
	}
	return "", "", false
}

func isLiteral(n ast.Node) bool {
	switch n.Kind() {
	case ast.TOK_NUMBER, ast.TOK_STRINGLITERAL, ast.TOK_CHARSETLITERAL:
		return true
	default:
		return false
	}
}

