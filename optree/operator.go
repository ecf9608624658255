// Package optree implements the physical operator DAG: table-scan, filter,
// select, group-by, reduce-sink, join, file-sink, limit, forward, script,
// and extract operators, wired into a parent/child arena (§3, §4.11).
package optree

import (
	"fmt"

	"github.com/lattice-ql/qcompiler/resolver"
)

// Kind enumerates the operator kinds named in §3.
type Kind uint8

const (
	KindTableScan Kind = iota
	KindFilter
	KindSelect
	KindGroupBy
	KindReduceSink
	KindJoin
	KindFileSink
	KindLimit
	KindForward
	KindScript
	KindExtract
)

func (k Kind) String() string {
	switch k {
	case KindTableScan:
		return "TableScan"
	case KindFilter:
		return "Filter"
	case KindSelect:
		return "Select"
	case KindGroupBy:
		return "GroupBy"
	case KindReduceSink:
		return "ReduceSink"
	case KindJoin:
		return "Join"
	case KindFileSink:
		return "FileSink"
	case KindLimit:
		return "Limit"
	case KindForward:
		return "Forward"
	case KindScript:
		return "Script"
	case KindExtract:
		return "Extract"
	default:
		return "Unknown"
	}
}

// Descriptor is implemented by every *Desc variant in descriptors.go; it
// exists only to let Operator.Conf hold any one of them type-safely.
type Descriptor interface {
	descriptor()
}

// Operator is a node in the physical dataflow DAG. It is arena-owned (kept
// in Arena.nodes) and referenced by index handles (Ref) everywhere else, so
// that cutting the DAG at a ReduceSink (§3: "the reduce-sink's child list is
// cleared") never invalidates a handle held elsewhere.
type Operator struct {
	id       int
	Kind     Kind
	Name     string
	Conf     Descriptor
	Parents  []Ref
	Children []Ref
	Output   *resolver.RowResolver // this operator's output row resolver (OpParseContext.rowResolver, §4.3)
}

// Ref is an opaque handle to an Operator owned by an Arena.
type Ref int

// Arena owns a set of Operator nodes as independent, index-addressed
// entries rather than a pointer-linked graph, so parent/child references
// stay acyclic-safe to walk and free.
type Arena struct {
	nodes   []*Operator
	counter int
}

// NewArena creates an empty arena.
func NewArena() *Arena { return &Arena{} }

// New allocates a new operator of the given kind, assigns it a stable name,
// and returns its Ref.
func (a *Arena) New(kind Kind, conf Descriptor) Ref {
	id := len(a.nodes)
	a.counter++
	op := &Operator{id: id, Kind: kind, Conf: conf, Name: fmt.Sprintf("%s_%d", kind, a.counter), Output: resolver.New()}
	a.nodes = append(a.nodes, op)
	return Ref(id)
}

// Get dereferences a Ref.
func (a *Arena) Get(r Ref) *Operator { return a.nodes[r] }

// AllRefs returns every Ref this arena has allocated, in creation order —
// used by the MR task planner to discover every TableScan root without
// needing a separate index.
func (a *Arena) AllRefs() []Ref {
	out := make([]Ref, len(a.nodes))
	for i := range a.nodes {
		out[i] = Ref(i)
	}
	return out
}

// Link wires child as a child of parent, and parent as a parent of child.
func (a *Arena) Link(parent, child Ref) {
	p, c := a.Get(parent), a.Get(child)
	p.Children = append(p.Children, child)
	c.Parents = append(c.Parents, parent)
}

// CutAtReduceSink clears a ReduceSink operator's child list, detaching its
// former children so they can be re-attached as the root of the next task's
// plan (§3 invariant: "An operator with kind ReduceSink always terminates a
// map stage; any walk that ends at a ReduceSink must not traverse its
// children when forming map tasks.") It returns the detached children.
func (a *Arena) CutAtReduceSink(rs Ref) []Ref {
	op := a.Get(rs)
	if op.Kind != KindReduceSink {
		return nil
	}
	children := op.Children
	op.Children = nil
	for _, c := range children {
		child := a.Get(c)
		filtered := child.Parents[:0]
		for _, p := range child.Parents {
			if p != rs {
				filtered = append(filtered, p)
			}
		}
		child.Parents = filtered
	}
	return children
}

// Walk performs a depth-first pre-order traversal from root, calling visit
// on every reachable operator exactly once.
func (a *Arena) Walk(root Ref, visit func(Ref, *Operator)) {
	seen := make(map[Ref]bool)
	var walk func(Ref)
	walk = func(r Ref) {
		if seen[r] {
			return
		}
		seen[r] = true
		op := a.Get(r)
		visit(r, op)
		for _, c := range op.Children {
			walk(c)
		}
	}
	walk(root)
}
