// Package explain renders a compiled plan for human inspection: the
// operator tree plangen built, and the task dependency graph mrtask cut it
// into, colorizing output only when asked and falling back to plain text
// otherwise.
package explain

import (
	"fmt"
	"strings"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"

	"github.com/lattice-ql/qcompiler/mrtask"
	"github.com/lattice-ql/qcompiler/optree"
)

// Renderer formats a compiled plan as text, optionally colorized the way
// the pack's own relation renderer toggles ANSI color on a single flag
// rather than always emitting it.
type Renderer struct {
	UseColor bool
}

// NewRenderer builds a Renderer with the given color setting.
func NewRenderer(useColor bool) *Renderer {
	return &Renderer{UseColor: useColor}
}

func (r *Renderer) stage(s string) string {
	if !r.UseColor {
		return s
	}
	return color.New(color.FgCyan, color.Bold).Sprint(s)
}

func (r *Renderer) op(s string) string {
	if !r.UseColor {
		return s
	}
	return color.New(color.FgGreen).Sprint(s)
}

func (r *Renderer) dim(s string) string {
	if !r.UseColor {
		return s
	}
	return color.New(color.FgYellow).Sprint(s)
}

// RenderOperatorTree renders the operator DAG reachable upward from root
// (a destination's terminal FileSink/Select Ref) as an indented tree, one
// line per operator, read child-before-parent the way the arena links them.
func (r *Renderer) RenderOperatorTree(f *optree.Factory, root optree.Ref) string {
	var b strings.Builder
	r.renderOp(&b, f, root, 0, map[optree.Ref]bool{})
	return b.String()
}

func (r *Renderer) renderOp(b *strings.Builder, f *optree.Factory, ref optree.Ref, depth int, seen map[optree.Ref]bool) {
	if seen[ref] {
		return
	}
	seen[ref] = true
	op := f.Arena.Get(ref)
	fmt.Fprintf(b, "%s%s %s\n", strings.Repeat("  ", depth), r.op(op.Kind.String()), r.dim(op.Name))
	for _, p := range op.Parents {
		r.renderOp(b, f, p, depth+1, seen)
	}
}

// RenderTaskPlan renders a task dependency graph as a text table in
// tablewriter's default style: stage ID, kind, terminal flag, and
// dependency IDs, matching the table formatting the pack's relation
// formatter already uses for tabular output.
func (r *Renderer) RenderTaskPlan(plan *mrtask.Plan) string {
	var sb strings.Builder
	table := tablewriter.NewTable(&sb)
	table.Header([]string{"Stage", "Kind", "Terminal", "Depends On"})

	for _, t := range plan.Tasks {
		deps := make([]string, len(t.DependsOn))
		for i, d := range t.DependsOn {
			deps[i] = d.ID
		}
		row := []string{
			r.stage(t.ID),
			t.Kind.String(),
			fmt.Sprintf("%v", t.Terminal),
			strings.Join(deps, ", "),
		}
		table.Append(row)
	}
	table.Render()
	return sb.String()
}

// Summary produces a one-line human-readable summary of a plan: how many
// MapRed/Fetch tasks it contains and whether a Move task was synthesized.
func Summary(plan *mrtask.Plan) string {
	var mapRed, fetch, move int
	for _, t := range plan.Tasks {
		switch t.Kind {
		case mrtask.KindMapRed:
			mapRed++
		case mrtask.KindFetch:
			fetch++
		case mrtask.KindMove:
			move++
		}
	}
	return fmt.Sprintf("%d MapRed stage(s), %d Fetch stage(s), %d Move stage(s)", mapRed, fetch, move)
}
