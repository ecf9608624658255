package optree

import (
	"github.com/lattice-ql/qcompiler/catalog"
	"github.com/lattice-ql/qcompiler/exprc"
	"github.com/lattice-ql/qcompiler/types"
)

// TableScanDesc configures a KindTableScan operator: the base table, its
// resolved alias, and an optional pushed-down partition/sample pruner
// predicate (§4.7, §4.8).
type TableScanDesc struct {
	Alias     string
	Table     *catalog.Table
	Partition *exprc.Expr // partition-pruning predicate, nil if none applies
	Sample    *SampleDesc
}

func (*TableScanDesc) descriptor() {}

// SampleDesc carries the bucket-sampling parameters resolved from a
// TABLESAMPLE clause (§4.8).
type SampleDesc struct {
	Numerator   int
	Denominator int
	OnCols      []string
	// HashPredicate is set when the sample cannot be satisfied by input
	// pruning alone and must be applied as a row filter using
	// default_sample_hashfn(OnCols...) % Denominator = Numerator - 1.
	HashPredicate *exprc.Expr
}

// FilterDesc configures a KindFilter operator: a single boolean predicate.
type FilterDesc struct {
	Predicate *exprc.Expr
}

func (*FilterDesc) descriptor() {}

// SelectDesc configures a KindSelect operator: an ordered projection list,
// each paired with the output column name it is bound to.
type SelectDesc struct {
	Exprs       []*exprc.Expr
	ColNames    []string
	IsStarAlias bool // true if this select came from table.* or * expansion
}

func (*SelectDesc) descriptor() {}

// GroupByMode distinguishes the physical group-by execution modes named in
// §4.10.
type GroupByMode uint8

const (
	// ModeComplete aggregates an entire group in one operator, no partial
	// merge needed (used on the reduce side of 1-MR plans).
	ModeComplete GroupByMode = iota
	// ModeHash performs map-side partial aggregation into an in-memory
	// hash table, periodically flushing (§4.10's HASH mode).
	ModeHash
	// ModePartials aggregates partial results produced by a prior
	// ModeHash or ModePartials stage (reduce side of 2-MR and 4-MR plans).
	ModePartials
	// ModeFinal merges partial aggregates into the final result (final
	// reduce stage of a 4-MR plan with a distinct aggregate).
	ModeFinal
)

func (m GroupByMode) String() string {
	switch m {
	case ModeComplete:
		return "COMPLETE"
	case ModeHash:
		return "HASH"
	case ModePartials:
		return "PARTIALS"
	case ModeFinal:
		return "FINAL"
	default:
		return "UNKNOWN"
	}
}

// AggregatorDesc binds one aggregate call to its UDAF evaluator and
// argument list (§4.5's mode/iterate-method pairing).
type AggregatorDesc struct {
	Name       string
	Evaluator  *catalog.UDAFEvaluator
	ReturnType types.Info
	Args       []*exprc.Expr
	Distinct   bool
}

// GroupByDesc configures a KindGroupBy operator.
type GroupByDesc struct {
	Mode        GroupByMode
	Keys        []*exprc.Expr
	Aggregators []*AggregatorDesc
	// HashMemoryThreshold bounds map-side aggregation memory in bytes
	// (HIVEMAPAGGRHASHMEMORY's fraction of the heap budget), enforced by the
	// ModeHash aggregator.
	HashMemoryThreshold float64
	// FlushRatio is the fraction of capacity at which a map-side hash
	// aggregator flushes early (§4.10: "flush once the table has grown to
	// 90% of its estimated capacity").
	FlushRatio float64
}

func (*GroupByDesc) descriptor() {}

// SortOrder is +1 for ascending, -1 for descending, one per sort key.
type SortOrder int8

// ReduceSinkDesc configures a KindReduceSink operator: how rows are
// partitioned into the shuffle's key/value/partition triple and tagged for
// a multi-input reduce stage (§4.3, §4.6).
type ReduceSinkDesc struct {
	KeyExprs       []*exprc.Expr
	ValueExprs     []*exprc.Expr
	PartitionExprs []*exprc.Expr
	Order          []SortOrder
	Tag            int
	NumReducers    int // -1 means "let the execution engine decide"
}

func (*ReduceSinkDesc) descriptor() {}

// JoinKind enumerates the physical join types the join planner can emit.
type JoinKind uint8

const (
	JoinInner JoinKind = iota
	JoinLeftOuter
	JoinRightOuter
	JoinFullOuter
	JoinLeftSemi
)

// JoinDesc configures a KindJoin operator: the per-input key expressions
// (aligned positionally across inputs) and one join kind for the whole
// operator (§4.6).
type JoinDesc struct {
	Kind    JoinKind
	KeyExprs [][]*exprc.Expr // KeyExprs[i] are input i's join keys
	Filters  [][]*exprc.Expr // residual (non-equi) predicates per input
	NullSafe bool
}

func (*JoinDesc) descriptor() {}

// FileSinkDesc configures a KindFileSink operator: the materialization
// target and its format (§4.2, §6).
type FileSinkDesc struct {
	Path         string
	Compressed   bool
	OutputFormat string
}

func (*FileSinkDesc) descriptor() {}

// LimitDesc configures a KindLimit operator.
type LimitDesc struct {
	N int
}

func (*LimitDesc) descriptor() {}

// ForwardDesc configures a KindForward operator: a pass-through node used
// to fan a single producer out to multiple destination pipelines (§4.9).
type ForwardDesc struct{}

func (*ForwardDesc) descriptor() {}

// ScriptDesc configures a KindScript operator for a TRANSFORM clause.
type ScriptDesc struct {
	Command    string
	InColNames []string
}

func (*ScriptDesc) descriptor() {}

// ExtractDesc configures a KindExtract operator, which restores the
// KEY.i/VALUE.j row shape coming out of a reduce stage back to dense
// positional columns (§4.3, §8).
type ExtractDesc struct {
	KeyCount int
}

func (*ExtractDesc) descriptor() {}
