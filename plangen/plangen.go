// Package plangen is the operator-tree planner (§4.9): it turns one
// semantically-analyzed query block into a physical operator DAG, one root
// per destination, by composing the join planner, the group-by planner,
// and the partition/sample pruners around the expression compiler.
package plangen

import (
	"strings"

	"github.com/lattice-ql/qcompiler/ast"
	"github.com/lattice-ql/qcompiler/catalog"
	"github.com/lattice-ql/qcompiler/errs"
	"github.com/lattice-ql/qcompiler/exprc"
	"github.com/lattice-ql/qcompiler/groupby"
	"github.com/lattice-ql/qcompiler/joinplan"
	"github.com/lattice-ql/qcompiler/optree"
	"github.com/lattice-ql/qcompiler/prune"
	"github.com/lattice-ql/qcompiler/qb"
	"github.com/lattice-ql/qcompiler/resolver"
	"github.com/lattice-ql/qcompiler/types"
)

// Config carries the session knobs that influence plan shape (§6):
// HIVEMAPSIDEAGGREGATE, HIVEMAPAGGRHASHMEMORY, and the partition pruner's
// strictness mode.
type Config struct {
	MapSideAggrEnabled bool
	HashMemoryBytes    int64
	PartitionPruneMode prune.Mode
}

// Planner builds one query block's physical operator tree into a shared
// optree.Factory.
type Planner struct {
	Factory   *optree.Factory
	Registry  catalog.FunctionRegistry
	Partitions func(tableName string) ([]*catalog.Partition, error)
	BucketFiles func(tableName string) ([]string, error)
	Config    Config
}

// NewPlanner builds a Planner over a shared operator arena.
func NewPlanner(f *optree.Factory, reg catalog.FunctionRegistry, cfg Config) *Planner {
	return &Planner{Factory: f, Registry: reg, Config: cfg}
}

// input is the resolved root of a FROM clause: the operator producing its
// rows and the row resolver describing its output schema.
type input struct {
	ref optree.Ref
	res *resolver.RowResolver
}

// GenQB builds the full operator tree for q, returning one root Ref (the
// terminal FileSink) per destination name.
func (p *Planner) GenQB(q *qb.QB) (map[string]optree.Ref, error) {
	from, err := p.genFrom(q)
	if err != nil {
		return nil, err
	}

	out := make(map[string]optree.Ref)
	for _, dest := range q.Destinations() {
		pi := q.ParseInfo[dest]
		ref, err := p.genBody(q, pi, from)
		if err != nil {
			return nil, err
		}
		out[dest] = ref
	}
	return out, nil
}

// genFrom resolves the FROM clause to a single input, building table scans,
// recursing into subqueries, and driving the join planner when q.JoinTree
// is set.
func (p *Planner) genFrom(q *qb.QB) (*input, error) {
	if q.JoinTree != nil {
		return p.genJoin(q)
	}
	for alias := range q.TabAliases {
		return p.genTableScan(q, alias)
	}
	for alias := range q.SubqAliases {
		return p.genSubquery(q, alias)
	}
	return nil, errs.New(errs.Generic, "query block %s has no FROM input", q.ID)
}

func (p *Planner) genTableScan(q *qb.QB, alias string) (*input, error) {
	t, ok := q.MetaData.TableForAlias[alias].(*catalog.Table)
	if !ok || t == nil {
		return nil, errs.New(errs.InvalidTable, "table alias %q was not resolved by the binder", alias)
	}

	desc := &optree.TableScanDesc{Alias: alias, Table: t}

	if p.Partitions != nil && len(t.PartitionCols) > 0 {
		parts, err := p.Partitions(t.Name)
		if err != nil {
			return nil, errs.Wrap(err, "listing partitions for %s", t.Name)
		}
		var where ast.Node
		for _, pi := range q.ParseInfo {
			if pi.WhereExpr != nil {
				where = pi.WhereExpr
				break
			}
		}
		res, err := prune.Prune(p.Config.PartitionPruneMode, where, alias, t, parts, false)
		if err != nil {
			return nil, err
		}
		_ = res // confirmed partition set is consumed by the execution layer, out of scope here
	}

	ref := p.Factory.TableScan(desc)
	res := resolver.New()
	for _, c := range t.Columns {
		res.Add(alias, c.Name, c.Type)
	}
	p.Factory.Arena.Get(ref).Output = res
	return &input{ref: ref, res: res}, nil
}

// genSubquery recurses into a nested query block and re-aliases its final
// output columns under the outer alias it was given.
func (p *Planner) genSubquery(q *qb.QB, alias string) (*input, error) {
	body := q.SubqForAlias[alias]
	if body == nil || !body.IsLeaf() {
		return nil, errs.New(errs.Generic, "subquery %q is a UNION, which plangen does not yet flatten", alias)
	}
	roots, err := p.GenQB(body.Leaf)
	if err != nil {
		return nil, err
	}
	ref, ok := roots[qb.DestImplicit]
	if !ok {
		for _, r := range roots {
			ref = r
			break
		}
	}
	inner := p.Factory.Arena.Get(ref).Output
	res := resolver.New()
	for _, ci := range inner.Columns() {
		res.Add(alias, ci.Column, ci.Type)
	}
	p.Factory.Arena.Get(ref).Output = res
	return &input{ref: ref, res: res}, nil
}

// genJoin drives the join planner over q.JoinTree, wiring a ReduceSink per
// input and a Join operator per merged Group, cascading groups left to
// right.
func (p *Planner) genJoin(q *qb.QB) (*input, error) {
	scans := make(map[string]*input)
	for alias := range q.TabAliases {
		in, err := p.genTableScan(q, alias)
		if err != nil {
			return nil, err
		}
		scans[alias] = in
	}

	resolve := func(alias string) (*exprc.Compiler, error) {
		in, ok := scans[alias]
		if !ok {
			return nil, errs.New(errs.Generic, "join input %q is not a plain table (subquery join inputs are not yet supported)", alias)
		}
		return exprc.NewCompiler(in.res, p.Registry), nil
	}

	plan, err := joinplan.Build(q.JoinTree.Root, resolve, p.Registry)
	if err != nil {
		return nil, err
	}

	var cur *input
	tag := 0
	for _, group := range plan.Groups {
		var parents []optree.Ref
		var merged *resolver.RowResolver

		addInput := func(in *input, keys []*exprc.Expr) {
			rs := p.Factory.ReduceSink(in.ref, &optree.ReduceSinkDesc{
				KeyExprs: keys, ValueExprs: valueExprs(in.res), Tag: tag,
			})
			tag++
			p.Factory.Arena.Get(rs).Output = in.res.KeyValueNames(len(keys))
			parents = append(parents, rs)
			if merged == nil {
				merged = resolver.New()
			}
			for _, ci := range in.res.Columns() {
				merged.Add(ci.Alias, ci.Column, ci.Type)
			}
		}

		if cur != nil {
			addInput(cur, group.Inputs[0].Keys)
		} else {
			addInput(scans[group.Inputs[0].Alias], group.Inputs[0].Keys)
		}
		for _, in := range group.Inputs[1:] {
			addInput(scans[in.Alias], in.Keys)
		}

		joinRef := p.Factory.Join(&optree.JoinDesc{Kind: group.Kind}, parents...)
		p.Factory.Arena.Get(joinRef).Output = merged

		ref := joinRef
		for _, f := range group.Filters {
			c := exprc.NewCompiler(merged, p.Registry)
			e, err := c.Compile(f)
			if err != nil {
				return nil, err
			}
			ref = p.Factory.Filter(ref, &optree.FilterDesc{Predicate: e})
			p.Factory.Arena.Get(ref).Output = merged
		}

		cur = &input{ref: ref, res: merged}
	}

	if cur == nil {
		return nil, errs.New(errs.Generic, "join tree produced no groups")
	}
	return cur, nil
}

func valueExprs(res *resolver.RowResolver) []*exprc.Expr {
	out := make([]*exprc.Expr, 0, len(res.Columns()))
	for _, ci := range res.Columns() {
		out = append(out, exprc.Column(ci.Type, ci.InternalName))
	}
	return out
}

// genBody builds one destination's pipeline: Filter, group-by, Select,
// optional Script, optional CLUSTER/DISTRIBUTE/SORT BY shuffle, optional
// Limit, and the final FileSink (§4.9).
func (p *Planner) genBody(q *qb.QB, pi *qb.ParseInfo, from *input) (optree.Ref, error) {
	ref := from.ref
	res := from.res
	c := exprc.NewCompiler(res, p.Registry)

	if pi.WhereExpr != nil {
		e, err := c.Compile(pi.WhereExpr)
		if err != nil {
			return 0, err
		}
		ref = p.Factory.Filter(ref, &optree.FilterDesc{Predicate: e})
		p.Factory.Arena.Get(ref).Output = res
	}

	if len(pi.AggregateOrder) > 0 || len(pi.GroupByExprs) > 0 {
		var err error
		ref, res, c, err = p.genGroupBy(pi, ref, res, c)
		if err != nil {
			return 0, err
		}
	}

	selRef, selRes, err := p.genSelect(pi, ref, res, c)
	if err != nil {
		return 0, err
	}
	ref, res = selRef, selRes
	c = exprc.NewCompiler(res, p.Registry)

	if pi.TransformExpr != nil {
		ref = p.Factory.Script(ref, &optree.ScriptDesc{Command: pi.TransformExpr.Text()})
		p.Factory.Arena.Get(ref).Output = res
	}

	if len(pi.ClusterBy) > 0 || len(pi.DistributeBy) > 0 || len(pi.SortBy) > 0 {
		ref, res, err = p.genShuffle(pi, ref, res, c)
		if err != nil {
			return 0, err
		}
		c = exprc.NewCompiler(res, p.Registry)
	}

	if pi.HasLimit {
		ref = p.Factory.Limit(ref, &optree.LimitDesc{N: pi.Limit})
		p.Factory.Arena.Get(ref).Output = res
	}

	sinkDesc := &optree.FileSinkDesc{Path: pi.Destination.Path}
	ref = p.Factory.FileSink(ref, sinkDesc)
	p.Factory.Arena.Get(ref).Output = res
	return ref, nil
}

// genGroupBy chooses a physical group-by strategy and wires its stages
// (inserting a ReduceSink ahead of a COMPLETE stage, and between a HASH
// map-side stage and its merge).
func (p *Planner) genGroupBy(pi *qb.ParseInfo, ref optree.Ref, res *resolver.RowResolver, c *exprc.Compiler) (optree.Ref, *resolver.RowResolver, *exprc.Compiler, error) {
	keys := make([]*exprc.Expr, 0, len(pi.GroupByExprs))
	keyNames := make([]string, 0, len(pi.GroupByExprs))
	for i, k := range pi.GroupByExprs {
		e, err := c.Compile(k)
		if err != nil {
			return 0, nil, nil, err
		}
		keys = append(keys, e)
		if _, col, ok := colRef(k); ok {
			keyNames = append(keyNames, col)
		} else {
			keyNames = append(keyNames, "_key"+itoa(i))
		}
	}

	aggNames := make([]string, 0, len(pi.AggregateOrder))
	aggArgs := make([][]*exprc.Expr, 0, len(pi.AggregateOrder))
	distinctIdx := -1
	for i, key := range pi.AggregateOrder {
		n := pi.AggregateExprs[key]
		name, args, err := compileAggregate(c, n)
		if err != nil {
			return 0, nil, nil, err
		}
		aggNames = append(aggNames, name)
		aggArgs = append(aggArgs, args)
		if pi.DistinctAggExpr != nil && ast.String(n) == ast.String(pi.DistinctAggExpr) {
			distinctIdx = i
		}
	}

	distinctCount := 0
	if distinctIdx >= 0 {
		distinctCount = 1
	}
	strategy, err := groupby.Choose(len(keys) > 0, len(aggNames), distinctCount, p.Config.MapSideAggrEnabled)
	if err != nil {
		return 0, nil, nil, err
	}
	plan, err := groupby.Build(strategy, keys, aggNames, aggArgs, distinctIdx, p.Registry)
	if err != nil {
		return 0, nil, nil, err
	}

	if strategy == groupby.StrategyMapSideFast {
		return ref, res, c, nil
	}

	cur := ref
	var out *resolver.RowResolver
	for i, stage := range plan.Stages {
		if stage.Mode == optree.ModeComplete {
			rs := p.Factory.ReduceSink(cur, &optree.ReduceSinkDesc{
				KeyExprs: keys, ValueExprs: valueExprs(res), Tag: 0,
			})
			p.Factory.Arena.Get(rs).Output = res.KeyValueNames(len(keys))
			cur = rs
		}
		gref := p.Factory.GroupBy(cur, &optree.GroupByDesc{
			Mode: stage.Mode, Keys: keys, Aggregators: stage.Aggregators,
			HashMemoryThreshold: float64(p.Config.HashMemoryBytes), FlushRatio: 0.9,
		})
		out = resolver.New()
		for j := range keys {
			out.Add("", keyNames[j], keys[j].Type)
		}
		for _, a := range stage.Aggregators {
			out.Add("", a.Name, a.ReturnType)
		}
		p.Factory.Arena.Get(gref).Output = out
		cur = gref

		if stage.Mode == optree.ModeHash && i+1 < len(plan.Stages) {
			rs := p.Factory.ReduceSink(cur, &optree.ReduceSinkDesc{
				KeyExprs: keysFromResolver(out, len(keys)), Tag: 0,
			})
			p.Factory.Arena.Get(rs).Output = out.KeyValueNames(len(keys))
			cur = rs
		}
	}

	return cur, out, exprc.NewCompiler(out, p.Registry), nil
}

// colRef extracts the (alias, column) pair from a bare column reference
// node, so a group-by key's output column can keep its source name instead
// of a synthetic one when it is a plain "alias.col" or "col" reference.
func colRef(n ast.Node) (alias, column string, ok bool) {
	switch n.Kind() {
	case ast.TOK_TABLE_OR_COL:
		return "", n.Text(), true
	case ast.TOK_COLREF:
		children := n.Children()
		if len(children) != 2 {
			return "", "", false
		}
		return children[0].Text(), children[1].Text(), true
	default:
		return "", "", false
	}
}

func keysFromResolver(res *resolver.RowResolver, n int) []*exprc.Expr {
	cols := res.Columns()
	out := make([]*exprc.Expr, 0, n)
	for i := 0; i < n && i < len(cols); i++ {
		out = append(out, exprc.Column(cols[i].Type, cols[i].InternalName))
	}
	return out
}

// compileAggregate extracts an aggregate call's name and compiles its
// argument expressions. It deliberately does not call c.Compile on the
// whole node: the aggregate name resolves through the function registry's
// UDAF table (groupby.Build, via GetUDAFEvaluator), not the scalar UDF
// table the general expression compiler's TOK_FUNCTION case uses.
func compileAggregate(c *exprc.Compiler, n ast.Node) (string, []*exprc.Expr, error) {
	children := n.Children()
	if len(children) == 0 {
		return "", nil, errs.New(errs.InvalidFunction, "malformed aggregate call")
	}
	name := strings.ToLower(children[0].Text())

	var args []*exprc.Expr
	for _, child := range children[1:] {
		if child.Kind() == ast.TOK_FUNCTIONSTAR {
			args = append(args, exprc.Constant(types.Prim(types.Integer), int32(1)))
			continue
		}
		e, err := c.Compile(child)
		if err != nil {
			return "", nil, err
		}
		args = append(args, e)
	}
	return name, args, nil
}

// genSelect compiles the projection list, expanding TOK_ALLCOLREF ("*")
// into every currently-visible column, and allocates a fresh dense
// internal name per output column.
func (p *Planner) genSelect(pi *qb.ParseInfo, ref optree.Ref, res *resolver.RowResolver, c *exprc.Compiler) (optree.Ref, *resolver.RowResolver, error) {
	if pi.SelectExpr == nil {
		return ref, res, nil
	}

	var exprs []*exprc.Expr
	var names []string
	out := resolver.New()

	for _, item := range pi.SelectExpr.Children() {
		if item.Kind() == ast.TOK_ALLCOLREF {
			for _, ci := range res.Columns() {
				exprs = append(exprs, exprc.Column(ci.Type, ci.InternalName))
				names = append(names, ci.Column)
				out.Add(ci.Alias, ci.Column, ci.Type)
			}
			continue
		}
		if item.Kind() != ast.TOK_SELEXPR || len(item.Children()) == 0 {
			continue
		}
		e, err := c.Compile(item.Children()[0])
		if err != nil {
			return 0, nil, err
		}
		name := item.Text()
		if name == "" {
			name = "_c" + itoa(len(exprs))
		}
		exprs = append(exprs, e)
		names = append(names, name)
		out.Add("", name, e.Type)
	}

	selRef := p.Factory.Select(ref, &optree.SelectDesc{Exprs: exprs, ColNames: names})
	p.Factory.Arena.Get(selRef).Output = out
	return selRef, out, nil
}

// genShuffle inserts the ReduceSink+Extract pair implementing CLUSTER
// BY/DISTRIBUTE BY/SORT BY (§4.3: crossing a reduce-sink boundary renames
// internal columns to KEY.i/VALUE.j, restored to dense names by Extract).
func (p *Planner) genShuffle(pi *qb.ParseInfo, ref optree.Ref, res *resolver.RowResolver, c *exprc.Compiler) (optree.Ref, *resolver.RowResolver, error) {
	var keyNodes []ast.Node
	switch {
	case len(pi.ClusterBy) > 0:
		keyNodes = pi.ClusterBy
	case len(pi.DistributeBy) > 0:
		keyNodes = pi.DistributeBy
	default:
		keyNodes = pi.SortBy
	}

	keys := make([]*exprc.Expr, 0, len(keyNodes))
	for _, n := range keyNodes {
		e, err := c.Compile(n)
		if err != nil {
			return 0, nil, err
		}
		keys = append(keys, e)
	}

	values := valueExprs(res)
	rs := p.Factory.ReduceSink(ref, &optree.ReduceSinkDesc{KeyExprs: keys, ValueExprs: values, Tag: 0, NumReducers: -1})
	shuffled := res.KeyValueNames(len(keys))
	p.Factory.Arena.Get(rs).Output = shuffled

	ext := p.Factory.Extract(rs, &optree.ExtractDesc{KeyCount: len(keys)})
	dense := resolver.New()
	for _, ci := range shuffled.Columns() {
		dense.Add(ci.Alias, ci.Column, ci.Type)
	}
	p.Factory.Arena.Get(ext).Output = dense
	return ext, dense, nil
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	neg := n < 0
	if neg {
		n = -n
	}
	var buf [20]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	if neg {
		i--
		buf[i] = '-'
	}
	return string(buf[i:])
}
