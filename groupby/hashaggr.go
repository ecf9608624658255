package groupby

import (
	"fmt"

	"github.com/lattice-ql/qcompiler/exprc"
)

// estimatedRowBytes approximates one group-key row's in-memory footprint;
// used only to size the hash table against HashMemoryThreshold, never to
// bound individual values precisely.
const estimatedRowBytes = 128

// accumulatorState is one group's running partial aggregate (§4.10's
// running-sum/count/min/max shape, generalized from a per-function
// AggregateState to one accumulator per group-by key).
type accumulatorState struct {
	count int64
	sum   float64
	min   interface{}
	max   interface{}
}

func (s *accumulatorState) update(fn string, v interface{}, cmp func(a, b interface{}) int) {
	if v == nil {
		return
	}
	switch fn {
	case "count":
		s.count++
	case "sum", "avg":
		if f, ok := v.(float64); ok {
			s.sum += f
			s.count++
		}
	case "min":
		if s.min == nil || cmp(v, s.min) < 0 {
			s.min = v
		}
	case "max":
		if s.max == nil || cmp(v, s.max) > 0 {
			s.max = v
		}
	}
}

// HashAggregator is the map-side partial-aggregation hash table used by
// StrategyTwoMR and StrategyFourMR's HASH-mode stage (§4.10). It tracks its
// own estimated memory footprint and flushes once it grows past FlushRatio
// of its configured capacity, rather than waiting to run out of memory
// outright.
type HashAggregator struct {
	groups    map[string]map[string]*accumulatorState // canonical key text -> agg name -> state
	keyValues map[string][]interface{}                // canonical key text -> evaluated key values, for flush output
	aggNames  []string
	cmp       func(a, b interface{}) int

	capacityBytes int64
	flushRatio    float64
	onFlush       func(keys []interface{}, aggs map[string]*accumulatorState)
}

// NewHashAggregator builds a map-side aggregator bounded by capacityBytes
// (derived from HIVEMAPAGGRHASHMEMORY), flushing at flushRatio of capacity.
// onFlush is invoked once per evicted group, in no particular order.
func NewHashAggregator(aggNames []string, capacityBytes int64, flushRatio float64, cmp func(a, b interface{}) int, onFlush func(keys []interface{}, aggs map[string]*accumulatorState)) *HashAggregator {
	if flushRatio <= 0 || flushRatio > 1 {
		flushRatio = 0.9
	}
	return &HashAggregator{
		groups:        map[string]map[string]*accumulatorState{},
		keyValues:     map[string][]interface{}{},
		aggNames:      aggNames,
		cmp:           cmp,
		capacityBytes: capacityBytes,
		flushRatio:    flushRatio,
		onFlush:       onFlush,
	}
}

// estimatedCapacity is how many groups fit before FlushRatio of
// capacityBytes is reached.
func (h *HashAggregator) estimatedCapacity() int64 {
	if h.capacityBytes <= 0 {
		return -1 // unbounded
	}
	return int64(float64(h.capacityBytes) * h.flushRatio / estimatedRowBytes)
}

// Put folds one input row's key and aggregate argument values into the
// table, flushing once the table has grown past its flush threshold. The
// threshold is computed from capacityBytes and the fixed estimatedRowBytes
// per group; it is not re-estimated from the rows actually stored.
func (h *HashAggregator) Put(keyExprs []*exprc.Expr, keyValues []interface{}, argValues map[string][]interface{}) {
	k := keyText(keyExprs, keyValues)
	states, ok := h.groups[k]
	if !ok {
		states = make(map[string]*accumulatorState, len(h.aggNames))
		for _, n := range h.aggNames {
			states[n] = &accumulatorState{}
		}
		h.groups[k] = states
		h.keyValues[k] = keyValues
	}
	for _, n := range h.aggNames {
		for _, v := range argValues[n] {
			states[n].update(n, v, h.cmp)
		}
	}

	if cap := h.estimatedCapacity(); cap >= 0 && int64(len(h.groups)) >= cap {
		h.FlushAll()
	}
}

// FlushAll evicts every group through onFlush and clears the table,
// mirroring §4.10's "flush once the table reaches 90% of its estimated
// capacity" rule applied to the whole table rather than a single victim.
func (h *HashAggregator) FlushAll() {
	for k, states := range h.groups {
		h.onFlush(h.keyValues[k], states)
	}
	h.groups = map[string]map[string]*accumulatorState{}
	h.keyValues = map[string][]interface{}{}
}

// Len reports the number of distinct groups currently buffered.
func (h *HashAggregator) Len() int { return len(h.groups) }

func keyText(keyExprs []*exprc.Expr, keyValues []interface{}) string {
	s := ""
	for i, v := range keyValues {
		if i < len(keyExprs) {
			s += exprc.CanonicalText(keyExprs[i]) + "="
		}
		s += toKeyString(v) + ";"
	}
	return s
}

func toKeyString(v interface{}) string {
	if sv, ok := v.(interface{ String() string }); ok {
		return sv.String()
	}
	return stringify(v)
}

func stringify(v interface{}) string {
	switch x := v.(type) {
	case string:
		return x
	default:
		return fmt.Sprint(x)
	}
}
