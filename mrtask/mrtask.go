// Package mrtask is the Map/Reduce task planner (§4.10): a regex-driven
// walk of the operator DAG that cuts it at ReduceSink boundaries into a
// dependency graph of map/reduce job stages, plus the fast-path Fetch task
// for trivial unfiltered, unpartitioned scans.
package mrtask

import (
	"fmt"
	"regexp"
	"sort"

	"github.com/lattice-ql/qcompiler/ast"
	"github.com/lattice-ql/qcompiler/optree"
	"github.com/lattice-ql/qcompiler/qb"
)

// Kind enumerates the task kinds this planner emits.
type Kind uint8

const (
	KindMapRed Kind = iota
	KindMove
	KindFetch
)

func (k Kind) String() string {
	switch k {
	case KindMapRed:
		return "MAPRED"
	case KindMove:
		return "MOVE"
	case KindFetch:
		return "FETCH"
	default:
		return "UNKNOWN"
	}
}

// MapWork is the map-side half of one MapRed task: everything from its
// TableScan root down to (but not including) its terminating ReduceSink, or
// down to a FileSink if the task never shuffles.
type MapWork struct {
	Root optree.Ref
}

// ReduceWork is the reduce-side half of one MapRed task, rooted at the
// ReduceSink that fed it. Nil if the task's map side writes straight to a
// FileSink with no shuffle.
type ReduceWork struct {
	Root optree.Ref
}

// LoadTableWork describes one destination table/partition write, appended
// when a FileSink's destination targets a table (§6).
type LoadTableWork struct {
	TableName string
	PartSpec  map[string]string
	SourcePath string
}

// LoadFileWork describes one final-result file write (§6).
type LoadFileWork struct {
	SourcePath string
	TargetPath string
	IsDFSDir   bool
}

// MoveWork is the payload of the single global Move task: every scratch
// output that must be relocated to its final destination once its
// producing task completes, with fields control-A (0x01) separated by
// default when rendered to the execution engine.
type MoveWork struct {
	LoadTableWork []*LoadTableWork
	LoadFileWork  []*LoadFileWork
}

// Task is one node in the output dependency graph: a map/reduce job, the
// terminal Move task, or (on the fast path) a single Fetch task.
type Task struct {
	ID         string
	Kind       Kind
	MapWork    *MapWork
	ReduceWork *ReduceWork
	MoveWork   *MoveWork
	FetchPath  string
	Terminal   bool // true once this task's map/reduce side has reached a FileSink
	DependsOn  []*Task
}

// Plan is the full task dependency graph produced for one compiled query.
type Plan struct {
	Tasks []*Task
}

// Regex patterns dispatching on the kind name of each operator the walk
// reaches (§4.10's rule table): R1 start, R2/R3 end at a ReduceSink, R4 end
// at a FileSink. No chain of kinds is accumulated between boundaries.
var (
	reduceSinkBoundary = regexp.MustCompile(`ReduceSink$`)
	fileSinkBoundary   = regexp.MustCompile(`FileSink$`)
)

type builder struct {
	arena   *optree.Arena
	tasks   []*Task
	byRoot  map[optree.Ref]*Task
	counter int
}

func (b *builder) newTask() *Task {
	b.counter++
	t := &Task{ID: fmt.Sprintf("Stage-%d", b.counter), Kind: KindMapRed}
	b.tasks = append(b.tasks, t)
	return t
}

// buildFrom starts (or reuses) the MapRed task rooted at ref, the target of
// a TableScan (R1) or a cut ReduceSink's former child (R3's "next RS starts
// a new map task fed by the intermediate output").
func (b *builder) buildFrom(ref optree.Ref) *Task {
	if t, ok := b.byRoot[ref]; ok {
		return t
	}
	t := b.newTask()
	t.MapWork = &MapWork{Root: ref}
	b.byRoot[ref] = t
	b.walk(ref, t)
	return t
}

func (b *builder) walk(ref optree.Ref, t *Task) {
	op := b.arena.Get(ref)
	chain := op.Kind.String()

	switch {
	case fileSinkBoundary.MatchString(chain):
		t.Terminal = true
		// FileSink has no children in this compiler's operator shape; R4
		// stops here regardless.

	case reduceSinkBoundary.MatchString(chain):
		t.ReduceWork = &ReduceWork{Root: ref}
		children := b.arena.CutAtReduceSink(ref)
		for _, c := range children {
			child := b.buildFrom(c)
			child.DependsOn = appendUnique(child.DependsOn, t)
		}

	default:
		for _, c := range op.Children {
			b.walk(c, t)
		}
	}
}

func appendUnique(deps []*Task, t *Task) []*Task {
	for _, d := range deps {
		if d == t {
			return deps
		}
	}
	return append(deps, t)
}

// Build walks every TableScan root in arena, cutting at ReduceSink
// boundaries (§4.10), and assembles the resulting MapRed tasks plus one
// terminal Move task carrying moveWork. destRoots is checked only for
// every destination's root being a FileSink; whether the walk reached that
// FileSink is not checked.
func Build(arena *optree.Arena, destRoots map[string]optree.Ref, moveWork *MoveWork) (*Plan, error) {
	b := &builder{arena: arena, byRoot: map[optree.Ref]*Task{}}

	var scanRefs []optree.Ref
	for _, r := range arena.AllRefs() {
		if arena.Get(r).Kind == optree.KindTableScan {
			scanRefs = append(scanRefs, r)
		}
	}
	sort.Slice(scanRefs, func(i, j int) bool { return scanRefs[i] < scanRefs[j] })

	for _, r := range scanRefs {
		b.buildFrom(r)
	}

	move := &Task{ID: "Stage-move", Kind: KindMove, MoveWork: moveWork}
	for _, t := range b.tasks {
		if t.Terminal {
			move.DependsOn = appendUnique(move.DependsOn, t)
		}
	}
	b.tasks = append(b.tasks, move)

	for dest, ref := range destRoots {
		if arena.Get(ref).Kind != optree.KindFileSink {
			return nil, fmt.Errorf("destination %q does not terminate in a FileSink", dest)
		}
	}

	return &Plan{Tasks: b.tasks}, nil
}

// FastPath reports whether q qualifies for the single-Fetch-task shortcut
// (§4.10: "SELECT * with no cluster/distribute/sort-by and no partition
// filter, or a fully-resolved partition list"), and if so returns the path
// to stream directly.
func FastPath(q *qb.QB, unpartitionedOrFullyResolved bool, path string) (string, bool) {
	if q.JoinTree != nil || len(q.SubqAliases) > 0 {
		return "", false
	}
	pi, ok := q.ParseInfo[qb.DestImplicit]
	if !ok || len(q.ParseInfo) != 1 {
		return "", false
	}
	if pi.WhereExpr != nil || pi.TransformExpr != nil {
		return "", false
	}
	if len(pi.ClusterBy) > 0 || len(pi.DistributeBy) > 0 || len(pi.SortBy) > 0 {
		return "", false
	}
	if len(pi.GroupByExprs) > 0 || len(pi.AggregateOrder) > 0 {
		return "", false
	}
	if pi.SelectExpr == nil || len(pi.SelectExpr.Children()) != 1 {
		return "", false
	}
	if pi.SelectExpr.Children()[0].Kind() != ast.TOK_ALLCOLREF {
		return "", false
	}
	if !unpartitionedOrFullyResolved {
		return "", false
	}
	return path, true
}
