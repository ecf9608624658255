// Package joinplan builds the physical join plan for a query block's join
// tree: it flattens the AST's left-deep join chain, distributes each ON
// clause's conjuncts into join-key equalities versus residual filters,
// merges consecutive two-way joins that share an identical left-side key
// into one multi-way join (§4.6), and checks through the function-registry
// collaborator that each key position has a common type across every
// input. Keys are not converted to that common type.
package joinplan

import (
	"github.com/lattice-ql/qcompiler/ast"
	"github.com/lattice-ql/qcompiler/catalog"
	"github.com/lattice-ql/qcompiler/errs"
	"github.com/lattice-ql/qcompiler/exprc"
	"github.com/lattice-ql/qcompiler/optree"
	"github.com/lattice-ql/qcompiler/types"
)

// Input is one leg of a join group: a table/subquery alias together with
// its compiled join-key expressions, aligned positionally with every other
// input in the same Group.
type Input struct {
	Alias string
	Keys  []*exprc.Expr
}

// Group is a single physical join operator's inputs: either a plain two-way
// join, or several two-way joins merged because they all equate the same
// left-side key (§4.6's merge-sharing-a-left-key rule).
type Group struct {
	Kind    optree.JoinKind
	Inputs  []*Input
	Filters []ast.Node // residual predicates (reference either side); plangen compiles these once the join's merged row resolver exists
}

// Plan is an ordered sequence of join groups; group i's output feeds group
// i+1 as its next input (a left-deep cascade of merged multi-way joins).
type Plan struct {
	Groups []*Group
}

// chainLink is one step of the flattened left-deep join chain.
type chainLink struct {
	kind  optree.JoinKind
	right ast.Node // TOK_TABREF or TOK_SUBQUERY
	on    ast.Node // condition expr, or nil for a plain comma join
}

// AliasResolver maps a table/subquery alias to an expression compiler bound
// to that alias's row resolver, so join-key expressions compile against the
// correct column scope.
type AliasResolver func(alias string) (*exprc.Compiler, error)

// Build flattens root (a TOK_JOIN/TOK_LEFTOUTERJOIN/... tree from the FROM
// clause) into a Plan.
func Build(root ast.Node, resolve AliasResolver, registry catalog.FunctionRegistry) (*Plan, error) {
	firstAlias, chain, err := flatten(root)
	if err != nil {
		return nil, err
	}

	groups := make([]*Group, 0, len(chain))
	leftAliases := []string{firstAlias}

	for _, link := range chain {
		rightAlias, err := leafAlias(link.right)
		if err != nil {
			return nil, err
		}

		var conjuncts []ast.Node
		if link.on != nil {
			conjuncts = splitConjuncts(link.on)
		}

		keyPairs, residual, err := classify(conjuncts, leftAliases, rightAlias)
		if err != nil {
			return nil, err
		}

		merged := false
		if len(groups) > 0 && len(keyPairs) > 0 {
			last := groups[len(groups)-1]
			if last.Kind == link.kind && sameLeftKeys(last, keyPairs, resolve) {
				if err := appendMergedInput(last, rightAlias, keyPairs, resolve, registry); err != nil {
					return nil, err
				}
				last.Filters = append(last.Filters, residual...)
				merged = true
			}
		}

		if !merged {
			g, err := newGroup(link.kind, leftAliases, rightAlias, keyPairs, residual, resolve, registry)
			if err != nil {
				return nil, err
			}
			groups = append(groups, g)
		}

		leftAliases = append(leftAliases, rightAlias)
	}

	if len(groups) == 0 {
		return nil, errs.New(errs.Generic, "join tree produced no join groups")
	}
	return &Plan{Groups: groups}, nil
}

// flatten walks a left-deep join tree into its leading alias plus an
// ordered chain of (kind, right input, condition) links.
func flatten(n ast.Node) (string, []chainLink, error) {
	switch n.Kind() {
	case ast.TOK_TABREF, ast.TOK_SUBQUERY:
		alias, err := leafAlias(n)
		return alias, nil, err
	case ast.TOK_JOIN, ast.TOK_LEFTOUTERJOIN, ast.TOK_RIGHTOUTERJOIN, ast.TOK_FULLOUTERJOIN:
		children := n.Children()
		if len(children) < 2 {
			return "", nil, errs.New(errs.Generic, "malformed join node")
		}
		firstAlias, chain, err := flatten(children[0])
		if err != nil {
			return "", nil, err
		}
		kind := joinKind(n.Kind())
		var on ast.Node
		if onNode := ast.FindFirst(n, ast.TOK_ON); onNode != nil && len(onNode.Children()) > 0 {
			on = onNode.Children()[0]
		}
		chain = append(chain, chainLink{kind: kind, right: children[1], on: on})
		return firstAlias, chain, nil
	default:
		return "", nil, errs.New(errs.Generic, "unsupported join tree node %s", n.Kind())
	}
}

func joinKind(k ast.TokenKind) optree.JoinKind {
	switch k {
	case ast.TOK_LEFTOUTERJOIN:
		return optree.JoinLeftOuter
	case ast.TOK_RIGHTOUTERJOIN:
		return optree.JoinRightOuter
	case ast.TOK_FULLOUTERJOIN:
		return optree.JoinFullOuter
	default:
		return optree.JoinInner
	}
}

func leafAlias(n ast.Node) (string, error) {
	switch n.Kind() {
	case ast.TOK_TABREF:
		if a := ast.FindFirst(n, ast.TOK_TABALIAS); a != nil && a.Text() != "" {
			return a.Text(), nil
		}
		if t := ast.FindFirst(n, ast.TOK_TAB); t != nil {
			return t.Text(), nil
		}
		return "", errs.New(errs.InvalidTable, "table reference missing name")
	case ast.TOK_SUBQUERY:
		return n.Text(), nil
	default:
		return "", errs.New(errs.Generic, "not a join leaf: %s", n.Kind())
	}
}

// splitConjuncts flattens a chain of TOK_AND nodes into its leaf conjuncts.
// A TOK_OR is returned as one conjunct, not rejected: the phase-1 analyzer
// (semantic.validateJoinCondition) is where an OR at the top of a join
// condition is refused.
func splitConjuncts(n ast.Node) []ast.Node {
	if n.Kind() == ast.TOK_AND {
		c := n.Children()
		if len(c) == 2 {
			return append(splitConjuncts(c[0]), splitConjuncts(c[1])...)
		}
	}
	return []ast.Node{n}
}

// keyPair is one equi-join conjunct, with the column reference that
// belongs to the new right-hand input and the one that belongs to an
// already-joined left-hand alias.
type keyPair struct {
	leftAlias, leftCol   string
	rightAlias, rightCol string
	node                 ast.Node // the TOK_EQ node itself, for recompilation against each side
}

// classify splits conjuncts into equi-join key pairs (one column from a
// known left alias, one from the new right alias) versus residual filters
// (anything else: non-equality comparisons, or predicates that reference
// only one side, or TOK_OR subtrees). Rejecting OR from spanning both sides
// of a join key is implicit: an OR conjunct is never recognized as a key
// pair, so it always falls through to Filters.
func classify(conjuncts []ast.Node, leftAliases []string, rightAlias string) ([]keyPair, []ast.Node, error) {
	leftSet := make(map[string]bool, len(leftAliases))
	for _, a := range leftAliases {
		leftSet[a] = true
	}

	var pairs []keyPair
	var residual []ast.Node
	for _, c := range conjuncts {
		if c.Kind() != ast.TOK_EQ {
			residual = append(residual, c)
			continue
		}
		ch := c.Children()
		if len(ch) != 2 {
			residual = append(residual, c)
			continue
		}
		la, lc, lok := colRef(ch[0])
		ra, rc, rok := colRef(ch[1])
		if !lok || !rok {
			residual = append(residual, c)
			continue
		}
		switch {
		case leftSet[la] && ra == rightAlias:
			pairs = append(pairs, keyPair{leftAlias: la, leftCol: lc, rightAlias: ra, rightCol: rc, node: c})
		case leftSet[ra] && la == rightAlias:
			pairs = append(pairs, keyPair{leftAlias: ra, leftCol: rc, rightAlias: la, rightCol: lc, node: c})
		default:
			residual = append(residual, c)
		}
	}
	// A single join's equi-key conjuncts must all anchor on the same
	// left-side alias; a conjunct that anchors on a different prior alias
	// cannot be expressed as one aligned key vector, so it is demoted to a
	// residual filter instead.
	if len(pairs) > 1 {
		kept := pairs[:1]
		for _, p := range pairs[1:] {
			if p.leftAlias == pairs[0].leftAlias {
				kept = append(kept, p)
			} else {
				residual = append(residual, p.node)
			}
		}
		pairs = kept
	}
	return pairs, residual, nil
}

// colRef extracts (alias, column) from a TOK_COLREF/TOK_TABLE_OR_COL node,
// ok=false if n is not a simple column reference.
func colRef(n ast.Node) (alias, column string, ok bool) {
	switch n.Kind() {
	case ast.TOK_COLREF:
		c := n.Children()
		if len(c) != 2 {
			return "", "", false
		}
		return c[0].Text(), c[1].Text(), true
	case ast.TOK_TABLE_OR_COL:
		return "", n.Text(), true
	default:
		return "", "", false
	}
}

// sameLeftKeys reports whether every key pair in pairs reuses the same
// left-side alias/column as the last group's first input's keys, in the
// same order -- the condition under which two consecutive two-way joins
// merge into one multi-way join (§4.6).
func sameLeftKeys(last *Group, pairs []keyPair, resolve AliasResolver) bool {
	if len(last.Inputs) == 0 || len(last.Inputs[0].Keys) != len(pairs) {
		return false
	}
	anchor := last.Inputs[0].Alias
	for _, p := range pairs {
		if p.leftAlias != anchor {
			return false
		}
	}
	leftKeys, err := compileKeys(anchor, pairs, true, resolve)
	if err != nil {
		return false
	}
	for i, k := range leftKeys {
		if exprc.CanonicalText(k) != exprc.CanonicalText(last.Inputs[0].Keys[i]) {
			return false
		}
	}
	return true
}

func newGroup(kind optree.JoinKind, leftAliases []string, rightAlias string, pairs []keyPair, residual []ast.Node, resolve AliasResolver, registry catalog.FunctionRegistry) (*Group, error) {
	g := &Group{Kind: kind}
	anchor := leftAliases[0]
	if len(pairs) > 0 {
		anchor = pairs[0].leftAlias
	}

	leftKeys, err := compileKeys(anchor, pairs, true, resolve)
	if err != nil {
		return nil, err
	}
	rightKeys, err := compileKeys(rightAlias, pairs, false, resolve)
	if err != nil {
		return nil, err
	}
	if err := unify(leftKeys, rightKeys, registry); err != nil {
		return nil, err
	}

	g.Inputs = append(g.Inputs, &Input{Alias: anchor, Keys: leftKeys})
	g.Inputs = append(g.Inputs, &Input{Alias: rightAlias, Keys: rightKeys})
	g.Filters = residual
	return g, nil
}

func appendMergedInput(g *Group, rightAlias string, pairs []keyPair, resolve AliasResolver, registry catalog.FunctionRegistry) error {
	rightKeys, err := compileKeys(rightAlias, pairs, false, resolve)
	if err != nil {
		return err
	}
	if err := unify(g.Inputs[0].Keys, rightKeys, registry); err != nil {
		return err
	}
	g.Inputs = append(g.Inputs, &Input{Alias: rightAlias, Keys: rightKeys})
	return nil
}

func compileKeys(alias string, pairs []keyPair, left bool, resolve AliasResolver) ([]*exprc.Expr, error) {
	c, err := resolve(alias)
	if err != nil {
		return nil, err
	}
	out := make([]*exprc.Expr, 0, len(pairs))
	for _, p := range pairs {
		col := p.rightCol
		if left {
			col = p.leftCol
		}
		e, err := c.Compile(ast.New(ast.TOK_TABLE_OR_COL, col, ast.Position{}))
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, nil
}

// unify checks that every positional left/right key pair shares, or can be
// widened to, a common type (§4.6: "join keys across merged inputs must
// unify to a common type via the function registry").
func unify(left, right []*exprc.Expr, registry catalog.FunctionRegistry) error {
	if len(left) != len(right) {
		return errs.New(errs.Generic, "join key arity mismatch: %d vs %d", len(left), len(right))
	}
	for i := range left {
		lt, rt := left[i].Type, right[i].Type
		if lt.Category != types.CategoryPrimitive || rt.Category != types.CategoryPrimitive {
			if lt.String() != rt.String() {
				return errs.New(errs.InvalidJoinCondition1, "join key %d types do not match: %s vs %s", i, lt, rt)
			}
			continue
		}
		if _, ok := registry.GetCommonClass(lt, rt); !ok {
			return errs.New(errs.InvalidJoinCondition1, "join key %d has no common type for %s and %s", i, lt, rt)
		}
	}
	return nil
}
