// Package qb implements the Query Block model: the intermediate
// representation of a single logical SELECT, possibly nested, produced by
// the phase-1 analyzer and consumed by every later planning stage.
package qb

import (
	"github.com/lattice-ql/qcompiler/ast"
)

// DestImplicit is the destination name synthesized for a bare SELECT with
// no explicit INSERT target.
const DestImplicit = "insclause-0"

// TableSample describes a TABLESAMPLE(BUCKET n OUT OF d [ON cols]) clause
// attached to a table reference.
type TableSample struct {
	Numerator   int
	Denominator int
	OnCols      []string // up to two sample columns; empty means "use bucketing columns"
}

// ParseInfo holds everything the phase-1 analyzer recorded for one
// destination name ("insclause-N").
type ParseInfo struct {
	DestName string

	SelectExpr   ast.Node // TOK_SELECT / TOK_SELECTDI subtree
	IsSelectDI   bool
	WhereExpr    ast.Node
	GroupByExprs []ast.Node
	ClusterBy    []ast.Node
	DistributeBy []ast.Node
	SortBy       []ast.Node
	Limit        int
	HasLimit     bool

	// AggregateExprs maps a canonical structural-text key to the
	// aggregation function subtree it was extracted from, the way the
	// phase-1 analyzer canonicalizes aggregation subtrees by their
	// structural text so identical subexpressions share one compiled
	// descriptor.
	AggregateExprs map[string]ast.Node
	AggregateOrder []string // insertion order, for deterministic plan shape

	DistinctAggExpr ast.Node // the argument of SELECT DISTINCT's implied aggregate, if any

	Destination Destination
	Sample      *TableSample // sample applying to this destination's FROM table, if relevant

	TransformExpr ast.Node // TOK_TRANSFORM subtree, if any
}

// DestinationKind enumerates where a ParseInfo's rows are ultimately headed.
type DestinationKind uint8

const (
	DestTempFile DestinationKind = iota
	DestTable
	DestPartition
	DestLocalDir
	DestDir
)

// Destination is the resolved write target for one ParseInfo.
type Destination struct {
	Kind      DestinationKind
	TableName string
	PartSpec  map[string]string
	Path      string // directory/file target; filled in by the metadata binder
}

// QB represents one SELECT with its clauses, aliases, and nested structure.
type QB struct {
	ID         string // path-like identifier, e.g. "" for top-level, "a:b" for nested
	Alias      string // outer alias this QB is bound under, if it is a subquery body
	IsSubQuery bool
	IsQuery    bool // top-level read (vs. INSERT body)

	// ParseInfo keyed by destination name ("insclause-N").
	ParseInfo map[string]*ParseInfo
	destOrder []string // destination names in discovery order

	TabAliases     map[string]bool
	TabNameForAlias map[string]string

	SubqAliases  map[string]bool
	SubqForAlias map[string]*QBExpr

	JoinTree *JoinTreeRef // set by the phase-1 analyzer when FROM is a join; opaque ref to avoid an import cycle with joinplan

	MetaData *MetaData
}

// JoinTreeRef is a forward-declared opaque handle the phase-1 analyzer
// attaches to a QB; it carries only the join subtree, which the planner
// hands to joinplan, avoiding a qb<->joinplan import cycle.
type JoinTreeRef struct {
	Root ast.Node // the TOK_JOIN/TOK_*OUTERJOIN subtree this QB's FROM resolved to
}

// MetaData holds the per-alias resolved table/partition/destination handles
// the metadata binder fetches from the metastore collaborator.
type MetaData struct {
	TableForAlias map[string]interface{} // alias -> *catalog.Table, kept as interface{} to avoid an import cycle
}

// New creates an empty QB with the given id.
func New(id string) *QB {
	return &QB{
		ID:              id,
		ParseInfo:       make(map[string]*ParseInfo),
		TabAliases:      make(map[string]bool),
		TabNameForAlias: make(map[string]string),
		SubqAliases:     make(map[string]bool),
		SubqForAlias:    make(map[string]*QBExpr),
		MetaData:        &MetaData{TableForAlias: make(map[string]interface{})},
	}
}

// GetParseInfo fetches (or lazily creates) the ParseInfo for a destination.
func (q *QB) GetParseInfo(dest string) *ParseInfo {
	pi, ok := q.ParseInfo[dest]
	if !ok {
		pi = &ParseInfo{DestName: dest, AggregateExprs: make(map[string]ast.Node)}
		q.ParseInfo[dest] = pi
		q.destOrder = append(q.destOrder, dest)
	}
	return pi
}

// Destinations returns destination names in sorted order, the order the
// operator-tree planner processes them in for deterministic plan shape
// (§4.9: "processed in sorted order for determinism").
func (q *QB) Destinations() []string {
	out := make([]string, len(q.destOrder))
	copy(out, q.destOrder)
	sortStrings(out)
	return out
}

func sortStrings(s []string) {
	for i := 1; i < len(s); i++ {
		for j := i; j > 0 && s[j-1] > s[j]; j-- {
			s[j-1], s[j] = s[j], s[j-1]
		}
	}
}

// AllAliases returns tabAliases ∪ subqAliases, used to check the "alias
// uniqueness" invariant (§8).
func (q *QB) AllAliases() []string {
	out := make([]string, 0, len(q.TabAliases)+len(q.SubqAliases))
	for a := range q.TabAliases {
		out = append(out, a)
	}
	for a := range q.SubqAliases {
		out = append(out, a)
	}
	return out
}

// AddTabAlias registers a table alias, returning false if it is a duplicate
// of any existing table or subquery alias (InvalidTableAlias / alias
// uniqueness, §8).
func (q *QB) AddTabAlias(alias, tableName string) bool {
	if q.TabAliases[alias] || q.SubqAliases[alias] {
		return false
	}
	q.TabAliases[alias] = true
	q.TabNameForAlias[alias] = tableName
	return true
}

// AddSubqAlias registers a subquery alias and its QBExpr body, returning
// false on a duplicate alias.
func (q *QB) AddSubqAlias(alias string, body *QBExpr) bool {
	if q.TabAliases[alias] || q.SubqAliases[alias] {
		return false
	}
	q.SubqAliases[alias] = true
	q.SubqForAlias[alias] = body
	return true
}

// QBExpr is the sum type NULLOP(QB) | UNION(QBExpr, QBExpr) used for a
// subquery's body: a plain query, or a UNION ALL chain (only legal nested
// inside a subquery — top-level UNION is rejected by the phase-1 analyzer).
type QBExpr struct {
	// exactly one of Leaf or (Left,Right) is set
	Leaf        *QB
	Left, Right *QBExpr
	IsUnion     bool
}

// NullOp wraps a plain query block as a QBExpr leaf.
func NullOp(q *QB) *QBExpr { return &QBExpr{Leaf: q} }

// Union builds a UNION ALL node over two QBExpr operands.
func Union(left, right *QBExpr) *QBExpr { return &QBExpr{Left: left, Right: right, IsUnion: true} }

// IsLeaf reports whether this QBExpr is a single query block.
func (e *QBExpr) IsLeaf() bool { return e.Leaf != nil }
