package groupby

import "testing"

func TestChooseMapSideFastWhenNoKeysNoAggs(t *testing.T) {
	s, err := Choose(false, 0, 0, false)
	if err != nil {
		t.Fatalf("Choose: %v", err)
	}
	if s != StrategyMapSideFast {
		t.Fatalf("expected map-side-fast, got %s", s)
	}
}

func TestChooseOneMRByDefault(t *testing.T) {
	s, err := Choose(true, 2, 0, false)
	if err != nil {
		t.Fatalf("Choose: %v", err)
	}
	if s != StrategyOneMR {
		t.Fatalf("expected 1-MR, got %s", s)
	}
}

func TestChooseTwoMRWhenMapSideAggrEnabled(t *testing.T) {
	s, err := Choose(true, 1, 0, true)
	if err != nil {
		t.Fatalf("Choose: %v", err)
	}
	if s != StrategyTwoMR {
		t.Fatalf("expected 2-MR, got %s", s)
	}
}

func TestChooseFourMRWithDistinctAndPlainAgg(t *testing.T) {
	s, err := Choose(true, 2, 1, false)
	if err != nil {
		t.Fatalf("Choose: %v", err)
	}
	if s != StrategyFourMR {
		t.Fatalf("expected 4-MR, got %s", s)
	}
}

func TestChooseRejectsMultipleDistinct(t *testing.T) {
	if _, err := Choose(true, 2, 2, false); err == nil {
		t.Fatalf("expected an error for two distinct aggregates")
	}
}

func TestHashAggregatorFlushesAtCapacity(t *testing.T) {
	flushed := 0
	cmp := func(a, b interface{}) int {
		af, bf := a.(float64), b.(float64)
		switch {
		case af < bf:
			return -1
		case af > bf:
			return 1
		default:
			return 0
		}
	}
	// capacityBytes tuned so estimatedCapacity() == 2 groups.
	h := NewHashAggregator([]string{"count"}, int64(2*estimatedRowBytes/0.9)+1, 0.9, cmp, func(keys []interface{}, aggs map[string]*accumulatorState) {
		flushed++
	})

	h.Put(nil, []interface{}{"a"}, map[string][]interface{}{"count": {1.0}})
	if h.Len() != 1 {
		t.Fatalf("expected 1 group buffered, got %d", h.Len())
	}
	h.Put(nil, []interface{}{"b"}, map[string][]interface{}{"count": {1.0}})
	if h.Len() != 0 {
		t.Fatalf("expected the table to flush once capacity was reached, got %d groups buffered", h.Len())
	}
	if flushed != 2 {
		t.Fatalf("expected 2 groups flushed, got %d", flushed)
	}
}
