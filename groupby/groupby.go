// Package groupby selects and builds the physical group-by plan for one
// GROUP BY clause: which of the four physical strategies applies (§4.10),
// how each stage's aggregators are bound to the mode-appropriate UDAF
// evaluator method, and the map-side hash aggregator used by the HASH mode.
package groupby

import (
	"github.com/lattice-ql/qcompiler/catalog"
	"github.com/lattice-ql/qcompiler/errs"
	"github.com/lattice-ql/qcompiler/exprc"
	"github.com/lattice-ql/qcompiler/optree"
	"github.com/lattice-ql/qcompiler/types"
)

// Strategy names the four physical group-by plans from §4.10.
type Strategy uint8

const (
	// StrategyMapSideFast is the degenerate case: no group-by keys and no
	// aggregates (distinct or not), so the select list is already the
	// final output and no group-by operator is needed at all.
	StrategyMapSideFast Strategy = iota
	// StrategyOneMR aggregates entirely in a single map+reduce: the map
	// side ships raw rows straight to one ReduceSink keyed by the
	// group-by expressions, and a COMPLETE-mode stage aggregates them.
	StrategyOneMR
	// StrategyTwoMR is the plan used whenever map-side hash aggregation is
	// enabled (and no DISTINCT forces 4-MR): a HASH-mode map stage whose
	// partial rows cross one ReduceSink into a PARTIALS-mode merge.
	StrategyTwoMR
	// StrategyFourMR handles a single DISTINCT aggregate combined with
	// one or more non-distinct aggregates: the extra two stages isolate
	// distinct values per key before the final merge (§4.10).
	StrategyFourMR
)

func (s Strategy) String() string {
	switch s {
	case StrategyMapSideFast:
		return "map-side-fast"
	case StrategyOneMR:
		return "1-MR"
	case StrategyTwoMR:
		return "2-MR"
	case StrategyFourMR:
		return "4-MR"
	default:
		return "unknown"
	}
}

// Stage is one group-by operator in the chosen strategy's pipeline, bound
// to a physical execution mode.
type Stage struct {
	Mode        optree.GroupByMode
	Aggregators []*optree.AggregatorDesc
}

// Plan is the ordered stage sequence (and any ReduceSink shuffle in
// between, which plangen is responsible for inserting) chosen for one
// GROUP BY clause.
type Plan struct {
	Strategy Strategy
	Keys     []*exprc.Expr
	Stages   []*Stage
}

// Choose picks a Strategy given the shape of one destination's aggregation
// state (§4.10): no keys and no aggregates needs no group-by at all;
// exactly one DISTINCT aggregate mixed with plain aggregates forces the
// 4-MR plan; map-side hash aggregation, when enabled, always produces a
// 2-MR plan because its HASH-mode output is partial and needs one more
// merge; otherwise a single-stage 1-MR plan suffices.
func Choose(hasKeys bool, aggCount int, distinctCount int, mapSideAggrEnabled bool) (Strategy, error) {
	if distinctCount > 1 {
		return 0, errs.New(errs.Generic, "at most one DISTINCT aggregate is supported per group-by")
	}
	if !hasKeys && aggCount == 0 {
		return StrategyMapSideFast, nil
	}
	if distinctCount == 1 && aggCount > 0 {
		return StrategyFourMR, nil
	}
	if mapSideAggrEnabled {
		return StrategyTwoMR, nil
	}
	return StrategyOneMR, nil
}

// Build binds aggregators to the mode/iterate-method pairing table (§4.5)
// for each stage of a chosen strategy and returns the resulting Plan.
func Build(strategy Strategy, keys []*exprc.Expr, aggNames []string, aggArgs [][]*exprc.Expr, distinctIdx int, registry catalog.FunctionRegistry) (*Plan, error) {
	p := &Plan{Strategy: strategy, Keys: keys}

	switch strategy {
	case StrategyMapSideFast:
		return p, nil

	case StrategyOneMR:
		stage, err := bindStage(optree.ModeComplete, aggNames, aggArgs, distinctIdx, registry)
		if err != nil {
			return nil, err
		}
		p.Stages = []*Stage{stage}

	case StrategyTwoMR:
		mapStage, err := bindStage(optree.ModeHash, aggNames, aggArgs, distinctIdx, registry)
		if err != nil {
			return nil, err
		}
		reduceStage, err := bindStage(optree.ModePartials, aggNames, aggArgs, distinctIdx, registry)
		if err != nil {
			return nil, err
		}
		p.Stages = []*Stage{mapStage, reduceStage}

	case StrategyFourMR:
		mapStage, err := bindStage(optree.ModeHash, aggNames, aggArgs, distinctIdx, registry)
		if err != nil {
			return nil, err
		}
		partialStage, err := bindStage(optree.ModePartials, aggNames, aggArgs, distinctIdx, registry)
		if err != nil {
			return nil, err
		}
		distinctShuffle, err := bindStage(optree.ModePartials, aggNames, aggArgs, distinctIdx, registry)
		if err != nil {
			return nil, err
		}
		finalStage, err := bindStage(optree.ModeFinal, aggNames, aggArgs, distinctIdx, registry)
		if err != nil {
			return nil, err
		}
		p.Stages = []*Stage{mapStage, partialStage, distinctShuffle, finalStage}

	default:
		return nil, errs.New(errs.Generic, "unknown group-by strategy %d", strategy)
	}
	return p, nil
}

// bindStage resolves each named aggregate to its UDAF evaluator and packs
// it into an AggregatorDesc for the given mode.
func bindStage(mode optree.GroupByMode, aggNames []string, aggArgs [][]*exprc.Expr, distinctIdx int, registry catalog.FunctionRegistry) (*Stage, error) {
	stage := &Stage{Mode: mode}
	for i, name := range aggNames {
		paramTypes := make([]types.Info, len(aggArgs[i]))
		for j, a := range aggArgs[i] {
			paramTypes[j] = a.Type
		}
		ev, err := registry.GetUDAFEvaluator(name, paramTypes)
		if err != nil {
			return nil, errs.Wrap(err, "no aggregate evaluator for %s", name)
		}
		desc, err := registry.GetUDAF(name, paramTypes)
		if err != nil {
			return nil, errs.Wrap(err, "no aggregate descriptor for %s", name)
		}
		stage.Aggregators = append(stage.Aggregators, &optree.AggregatorDesc{
			Name:       name,
			Evaluator:  ev,
			ReturnType: desc.ReturnType,
			Args:       aggArgs[i],
			Distinct:   i == distinctIdx,
		})
	}
	return stage, nil
}
