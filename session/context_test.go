package session

import (
	"testing"

	"github.com/lattice-ql/qcompiler/optree"
	"github.com/lattice-ql/qcompiler/resolver"
	"github.com/lattice-ql/qcompiler/types"
)

func TestAnalyzeContextResetClearsOwnedState(t *testing.T) {
	ctx := NewAnalyzeContext()

	res := resolver.New()
	res.Add("t", "id", types.Info{})
	ctx.RememberOp(optree.Ref(0), res)
	ctx.TopOps["insclause-0"] = optree.Ref(1)
	ctx.LoadFileWork = append(ctx.LoadFileWork, nil)

	ctx.Reset()

	if _, ok := ctx.ResolverFor(optree.Ref(0)); ok {
		t.Fatalf("expected opParseCtx to be cleared on reset")
	}
	if len(ctx.TopOps) != 0 {
		t.Fatalf("expected TopOps to be cleared on reset")
	}
	if len(ctx.LoadFileWork) != 0 {
		t.Fatalf("expected LoadFileWork to be cleared on reset")
	}
	if ctx.QB != nil {
		t.Fatalf("expected QB to be nil after reset")
	}
}

func TestSessionBeginQueryResetsBothAnalyzerAndContext(t *testing.T) {
	s, err := NewSession(nil)
	if err != nil {
		t.Fatalf("NewSession: %v", err)
	}
	defer s.Close()

	s.Context.TopOps["insclause-0"] = optree.Ref(3)
	s.BeginQuery()

	if len(s.Context.TopOps) != 0 {
		t.Fatalf("expected BeginQuery to reset the analysis context")
	}
}
