package optree

// Factory builds operators into a single Arena, giving each a stable name
// and linking it under its declared parents in one call (§4.11: "operator
// construction and parent wiring happen atomically so no operator is ever
// observed half-linked").
type Factory struct {
	Arena *Arena
}

// NewFactory creates a Factory backed by a fresh Arena.
func NewFactory() *Factory { return &Factory{Arena: NewArena()} }

func (f *Factory) build(kind Kind, conf Descriptor, parents ...Ref) Ref {
	r := f.Arena.New(kind, conf)
	for _, p := range parents {
		f.Arena.Link(p, r)
	}
	return r
}

// TableScan creates a root KindTableScan operator.
func (f *Factory) TableScan(d *TableScanDesc) Ref { return f.build(KindTableScan, d) }

// Filter attaches a KindFilter operator under parent.
func (f *Factory) Filter(parent Ref, d *FilterDesc) Ref { return f.build(KindFilter, d, parent) }

// Select attaches a KindSelect operator under parent.
func (f *Factory) Select(parent Ref, d *SelectDesc) Ref { return f.build(KindSelect, d, parent) }

// GroupBy attaches a KindGroupBy operator under parent.
func (f *Factory) GroupBy(parent Ref, d *GroupByDesc) Ref { return f.build(KindGroupBy, d, parent) }

// ReduceSink attaches a KindReduceSink operator under parent; this always
// terminates the current map (or reduce) stage.
func (f *Factory) ReduceSink(parent Ref, d *ReduceSinkDesc) Ref {
	return f.build(KindReduceSink, d, parent)
}

// Join creates a KindJoin operator with multiple parents, one per join
// input (each typically a ReduceSink from a prior stage).
func (f *Factory) Join(d *JoinDesc, inputs ...Ref) Ref { return f.build(KindJoin, d, inputs...) }

// FileSink attaches a KindFileSink operator under parent; this always
// terminates a pipeline.
func (f *Factory) FileSink(parent Ref, d *FileSinkDesc) Ref { return f.build(KindFileSink, d, parent) }

// Limit attaches a KindLimit operator under parent.
func (f *Factory) Limit(parent Ref, d *LimitDesc) Ref { return f.build(KindLimit, d, parent) }

// Forward attaches a KindForward fan-out operator under parent.
func (f *Factory) Forward(parent Ref) Ref { return f.build(KindForward, &ForwardDesc{}, parent) }

// Script attaches a KindScript operator under parent for a TRANSFORM clause.
func (f *Factory) Script(parent Ref, d *ScriptDesc) Ref { return f.build(KindScript, d, parent) }

// Extract attaches a KindExtract operator under parent, restoring dense
// positional columns after a reduce-sink boundary.
func (f *Factory) Extract(parent Ref, d *ExtractDesc) Ref { return f.build(KindExtract, d, parent) }
