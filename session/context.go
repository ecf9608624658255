package session

import (
	"github.com/lattice-ql/qcompiler/mrtask"
	"github.com/lattice-ql/qcompiler/optree"
	"github.com/lattice-ql/qcompiler/prune"
	"github.com/lattice-ql/qcompiler/qb"
	"github.com/lattice-ql/qcompiler/resolver"
	"github.com/lattice-ql/qcompiler/semantic"
)

// AnalyzeContext is the single mutable owner of one query's compilation
// state: all of it belongs to one analyzer instance and must never be
// shared across queries. A Session creates one AnalyzeContext when it is
// built and calls reset() (through BeginQuery) before reusing it for each
// next query, rather than allocating a fresh context every time.
type AnalyzeContext struct {
	// QB is the query block currently being analyzed, or nil before the
	// phase-1 analyzer has run.
	QB *qb.QB

	// opParseCtx maps every operator this query has produced to the row
	// resolver describing its output, kept alongside optree.Operator's own
	// Output field so the planner can look one up by Ref without
	// dereferencing the arena.
	opParseCtx map[optree.Ref]*resolver.RowResolver

	// AliasToPruner carries the partition-pruner result computed for each
	// FROM-clause alias, consulted by the plan generator when it builds
	// that alias's TableScan.
	AliasToPruner map[string]*prune.Result

	// LoadTableWork and LoadFileWork accumulate the final-destination
	// writes discovered while walking each destination's FileSink, fed
	// into the Move task synthesized at the end of MR task planning.
	LoadTableWork []*mrtask.LoadTableWork
	LoadFileWork  []*mrtask.LoadFileWork

	// TopOps are every destination's terminal operator Ref, keyed by
	// destination name, once the operator tree has been generated.
	TopOps map[string]optree.Ref
	// TopSelOps holds, keyed by destination name, the terminal
	// Select/GroupBy Ref (the last row-shaping operator before its
	// FileSink). No package in this module populates or reads it; reset
	// only clears it.
	TopSelOps map[string]optree.Ref
}

// NewAnalyzeContext creates an empty, ready-to-use AnalyzeContext.
func NewAnalyzeContext() *AnalyzeContext {
	ctx := &AnalyzeContext{}
	ctx.reset()
	return ctx
}

// reset clears every field back to its zero/empty state, so ctx can be
// reused for the next query without leaking the previous one's state
// (§5's single required operation on AnalyzeContext).
func (ctx *AnalyzeContext) reset() {
	ctx.QB = nil
	ctx.opParseCtx = make(map[optree.Ref]*resolver.RowResolver)
	ctx.AliasToPruner = make(map[string]*prune.Result)
	ctx.LoadTableWork = nil
	ctx.LoadFileWork = nil
	ctx.TopOps = make(map[string]optree.Ref)
	ctx.TopSelOps = make(map[string]optree.Ref)
}

// Reset is the exported form of reset, called by Session between queries.
func (ctx *AnalyzeContext) Reset() { ctx.reset() }

// RememberOp records ref's output resolver against ref, so later stages can
// look it up without re-deriving it from the arena.
func (ctx *AnalyzeContext) RememberOp(ref optree.Ref, res *resolver.RowResolver) {
	ctx.opParseCtx[ref] = res
}

// ResolverFor looks up a previously remembered operator's output resolver.
func (ctx *AnalyzeContext) ResolverFor(ref optree.Ref) (*resolver.RowResolver, bool) {
	res, ok := ctx.opParseCtx[ref]
	return res, ok
}

// Session ties one Config, one PlanCache, and one reusable AnalyzeContext
// together, the unit a CLI invocation or a long-lived service owns.
type Session struct {
	Config   *Config
	Cache    *PlanCache
	Analyzer *semantic.Analyzer
	Context  *AnalyzeContext
}

// NewSession builds a Session from cfg, opening its plan cache at
// cfg.PlanCacheDir (in-memory if empty).
func NewSession(cfg *Config) (*Session, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	cache, err := OpenPlanCache(cfg.PlanCacheDir, 0)
	if err != nil {
		return nil, err
	}
	return &Session{
		Config:   cfg,
		Cache:    cache,
		Analyzer: semantic.NewAnalyzer(),
		Context:  NewAnalyzeContext(),
	}, nil
}

// Close releases the session's plan cache.
func (s *Session) Close() error {
	if s == nil || s.Cache == nil {
		return nil
	}
	return s.Cache.Close()
}

// BeginQuery resets the session's reusable analysis state, readying it for
// the next query (§5).
func (s *Session) BeginQuery() {
	s.Analyzer.Reset()
	s.Context.Reset()
}
