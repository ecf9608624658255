// Package compiler is the top-level entry point (§6): it drives the ast ->
// semantic -> plangen -> mrtask pipeline end to end, checking the session
// plan cache before replanning and populating it afterward.
package compiler

import (
	"github.com/lattice-ql/qcompiler/ast"
	"github.com/lattice-ql/qcompiler/catalog"
	"github.com/lattice-ql/qcompiler/errs"
	"github.com/lattice-ql/qcompiler/mrtask"
	"github.com/lattice-ql/qcompiler/optree"
	"github.com/lattice-ql/qcompiler/plangen"
	"github.com/lattice-ql/qcompiler/qb"
	"github.com/lattice-ql/qcompiler/semantic"
	"github.com/lattice-ql/qcompiler/session"
)

// defaultMaxHeapBytes stands in for the JVM-equivalent heap budget the
// running process was configured with, used only to turn
// HIVEMAPAGGRHASHMEMORY's fraction into an absolute byte count.
const defaultMaxHeapBytes int64 = 256 << 20

// Result is everything Compile hands back for one query: the task graph an
// execution engine would run, plus the ParseContext-equivalent bookkeeping
// (§6) an EXPLAIN renderer needs to describe it.
type Result struct {
	Plan *mrtask.Plan
	QB   *qb.QB

	// Factory is nil when the fast path produced a single Fetch task, since
	// no operator tree was ever built.
	Factory *optree.Factory

	// Roots are every destination's terminal operator Ref, empty on the
	// fast path.
	Roots map[string]optree.Ref

	CacheHit bool
}

// Compile turns one parsed SQL statement into a task plan, against the
// given metastore and function registry, under sess's configuration and
// plan cache.
func Compile(root ast.Node, sess *session.Session, metastore catalog.Metastore, registry catalog.FunctionRegistry) (*Result, error) {
	sess.BeginQuery()

	key := session.Key(root, sess.Config)
	if plan, ok := sess.Cache.Get(key); ok {
		return &Result{Plan: plan, CacheHit: true}, nil
	}

	q, err := sess.Analyzer.Analyze(root)
	if err != nil {
		return nil, err
	}
	sess.Context.QB = q

	scratch := semantic.NewScratchAllocator(sess.Config.ScratchDir, sess.Config.SessionID)
	binder := semantic.NewBinder(metastore, scratch)
	if err := binder.Bind(q); err != nil {
		return nil, err
	}

	if path, ok := tryFastPath(q, metastore); ok {
		plan := &mrtask.Plan{Tasks: []*mrtask.Task{{
			ID:        "Stage-0",
			Kind:      mrtask.KindFetch,
			FetchPath: path,
			Terminal:  true,
		}}}
		if err := sess.Cache.Set(key, plan); err != nil {
			return nil, errs.Wrap(err, "caching fast-path plan")
		}
		return &Result{Plan: plan, QB: q}, nil
	}

	factory := optree.NewFactory()
	planner := plangen.NewPlanner(factory, registry, sess.Config.PlangenConfig(defaultMaxHeapBytes))
	planner.Partitions = func(tableName string) ([]*catalog.Partition, error) {
		t, err := metastore.GetTable(tableName)
		if err != nil {
			return nil, err
		}
		parts, err := metastore.ListPartitions(t)
		if err != nil {
			return nil, err
		}
		out := make([]*catalog.Partition, len(parts))
		for i := range parts {
			out[i] = &parts[i]
		}
		return out, nil
	}

	roots, err := planner.GenQB(q)
	if err != nil {
		return nil, err
	}
	sess.Context.TopOps = roots

	moveWork := buildMoveWork(q)
	plan, err := mrtask.Build(factory.Arena, roots, moveWork)
	if err != nil {
		return nil, err
	}

	if err := sess.Cache.Set(key, plan); err != nil {
		return nil, errs.Wrap(err, "caching plan")
	}

	return &Result{Plan: plan, QB: q, Factory: factory, Roots: roots}, nil
}

// tryFastPath checks whether q qualifies for the trivial single-Fetch-task
// shortcut (§4.10) and, if so, resolves the source table's location.
func tryFastPath(q *qb.QB, metastore catalog.Metastore) (string, bool) {
	if len(q.TabAliases) != 1 {
		return "", false
	}
	var alias string
	for a := range q.TabAliases {
		alias = a
	}
	t := semantic.TableFor(q, alias)
	if t == nil {
		return "", false
	}
	// A partitioned table's fully-resolved-partition-list case is left to
	// the planner: conservatively require an unpartitioned table here.
	unpartitioned := len(t.PartitionCols) == 0
	return mrtask.FastPath(q, unpartitioned, t.Location)
}

// buildMoveWork collects the final-destination writes every ParseInfo
// describes into one Move task payload (§6). A DestTempFile destination is
// the implicit SELECT result already sitting at its scratch path and needs
// no further relocation.
func buildMoveWork(q *qb.QB) *mrtask.MoveWork {
	mw := &mrtask.MoveWork{}
	for _, dest := range q.Destinations() {
		pi := q.ParseInfo[dest]
		switch pi.Destination.Kind {
		case qb.DestTable, qb.DestPartition:
			mw.LoadTableWork = append(mw.LoadTableWork, &mrtask.LoadTableWork{
				TableName:  pi.Destination.TableName,
				PartSpec:   pi.Destination.PartSpec,
				SourcePath: pi.Destination.Path,
			})
		case qb.DestLocalDir, qb.DestDir:
			mw.LoadFileWork = append(mw.LoadFileWork, &mrtask.LoadFileWork{
				SourcePath: pi.Destination.Path,
				TargetPath: pi.Destination.Path,
				IsDFSDir:   pi.Destination.Kind == qb.DestDir,
			})
		}
	}
	return mw
}
