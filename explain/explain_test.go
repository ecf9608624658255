package explain

import (
	"strings"
	"testing"

	"github.com/lattice-ql/qcompiler/mrtask"
	"github.com/lattice-ql/qcompiler/optree"
)

func TestRenderOperatorTreeClimbsThroughParents(t *testing.T) {
	f := optree.NewFactory()
	scan := f.TableScan(&optree.TableScanDesc{Alias: "t"})
	filt := f.Filter(scan, &optree.FilterDesc{})
	sink := f.FileSink(filt, &optree.FileSinkDesc{Path: "/tmp/out"})

	out := NewRenderer(false).RenderOperatorTree(f, sink)
	if !strings.Contains(out, "FileSink") || !strings.Contains(out, "Filter") || !strings.Contains(out, "TableScan") {
		t.Fatalf("expected all three operator kinds in the rendered tree, got:\n%s", out)
	}
	lines := strings.Split(strings.TrimRight(out, "\n"), "\n")
	if len(lines) != 3 {
		t.Fatalf("expected 3 lines, got %d:\n%s", len(lines), out)
	}
}

func TestRenderTaskPlanListsEveryStage(t *testing.T) {
	plan := &mrtask.Plan{Tasks: []*mrtask.Task{
		{ID: "Stage-1", Kind: mrtask.KindMapRed, Terminal: true},
		{ID: "Stage-move", Kind: mrtask.KindMove, DependsOn: []*mrtask.Task{{ID: "Stage-1"}}},
	}}

	out := NewRenderer(false).RenderTaskPlan(plan)
	if !strings.Contains(out, "Stage-1") || !strings.Contains(out, "Stage-move") {
		t.Fatalf("expected both stages in the rendered table, got:\n%s", out)
	}
}

func TestSummaryCountsEachTaskKind(t *testing.T) {
	plan := &mrtask.Plan{Tasks: []*mrtask.Task{
		{Kind: mrtask.KindMapRed},
		{Kind: mrtask.KindMapRed},
		{Kind: mrtask.KindMove},
	}}
	s := Summary(plan)
	if !strings.Contains(s, "2 MapRed") || !strings.Contains(s, "1 Move") {
		t.Fatalf("unexpected summary: %q", s)
	}
}
