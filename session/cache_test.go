package session

import (
	"testing"
	"time"

	"github.com/lattice-ql/qcompiler/ast"
	"github.com/lattice-ql/qcompiler/mrtask"
	"github.com/lattice-ql/qcompiler/optree"
)

func TestKeyIsDeterministicAndConfigSensitive(t *testing.T) {
	root := ast.New(ast.TOK_QUERY, "", ast.Position{}, ast.New(ast.TOK_TAB, "orders", ast.Position{}))
	c1 := DefaultConfig()
	c2 := DefaultConfig()
	c2.MapSideAggregate = true

	k1a := Key(root, c1)
	k1b := Key(root, c1)
	k2 := Key(root, c2)

	if k1a != k1b {
		t.Fatalf("expected the same query+config to hash identically")
	}
	if k1a == k2 {
		t.Fatalf("expected a different config to change the cache key")
	}
}

func TestPlanCacheRoundTripsAndExpires(t *testing.T) {
	cache, err := OpenPlanCache("", 50*time.Millisecond)
	if err != nil {
		t.Fatalf("OpenPlanCache: %v", err)
	}
	defer cache.Close()

	plan := &mrtask.Plan{Tasks: []*mrtask.Task{
		{ID: "Stage-1", Kind: mrtask.KindMapRed, MapWork: &mrtask.MapWork{Root: optree.Ref(0)}, Terminal: true},
	}}

	if err := cache.Set("k1", plan); err != nil {
		t.Fatalf("Set: %v", err)
	}

	got, ok := cache.Get("k1")
	if !ok {
		t.Fatalf("expected a cache hit immediately after Set")
	}
	if len(got.Tasks) != 1 || got.Tasks[0].ID != "Stage-1" {
		t.Fatalf("expected the round-tripped plan to match, got %+v", got)
	}

	hits, misses, size := cache.Stats()
	if hits != 1 || misses != 0 || size != 1 {
		t.Fatalf("expected hits=1 misses=0 size=1, got hits=%d misses=%d size=%d", hits, misses, size)
	}

	time.Sleep(100 * time.Millisecond)
	if _, ok := cache.Get("k1"); ok {
		t.Fatalf("expected the entry to have expired")
	}
}

func TestPlanCacheMissOnUnknownKey(t *testing.T) {
	cache, err := OpenPlanCache("", 0)
	if err != nil {
		t.Fatalf("OpenPlanCache: %v", err)
	}
	defer cache.Close()

	if _, ok := cache.Get("does-not-exist"); ok {
		t.Fatalf("expected a miss for an unknown key")
	}
	_, misses, _ := cache.Stats()
	if misses != 1 {
		t.Fatalf("expected misses=1, got %d", misses)
	}
}
