// Package semantic implements the phase-1 analyzer (a single depth-first
// AST traversal that populates QBs, §4.1) and the metadata binder (§4.2).
package semantic

import (
	"strconv"

	"github.com/lattice-ql/qcompiler/ast"
	"github.com/lattice-ql/qcompiler/errs"
	"github.com/lattice-ql/qcompiler/qb"
)

// Analyzer runs the phase-1 traversal, owning the set of QBs it produces.
// One Analyzer is used per compiled query; reset() (see Reset) clears it
// between queries per §5's single-threaded-cooperative-per-session model.
type Analyzer struct {
	qbCounter int
	roots     []*qb.QB
}

// NewAnalyzer creates a fresh Analyzer.
func NewAnalyzer() *Analyzer { return &Analyzer{} }

// Reset clears all analyzer-owned state so the instance can be reused for
// the next query in the same session.
func (a *Analyzer) Reset() {
	a.qbCounter = 0
	a.roots = nil
}

// Analyze walks the AST rooted at a TOK_QUERY node and returns the QB it
// produced (with nested subquery QBs reachable through SubqForAlias).
func (a *Analyzer) Analyze(root ast.Node) (*qb.QB, error) {
	if root.Kind() != ast.TOK_QUERY {
		return nil, errs.New(errs.Generic, "phase-1 analyzer expects a TOK_QUERY root, got %s", root.Kind())
	}
	q := qb.New("")
	q.IsQuery = true
	a.roots = append(a.roots, q)
	if err := a.doPhase1(q, root, false); err != nil {
		return nil, err
	}
	return q, nil
}

// doPhase1 dispatches over root's direct children per the §4.1 token table.
func (a *Analyzer) doPhase1(q *qb.QB, root ast.Node, insideSubquery bool) error {
	destCounter := 0
	hasGroupBy := false
	hasSelectDI := false
	var selectDestName string

	for _, child := range root.Children() {
		switch child.Kind() {
		case ast.TOK_SELECT, ast.TOK_SELECTDI:
			dest := qb.DestImplicit
			if selectDestName != "" {
				dest = selectDestName
			}
			pi := q.GetParseInfo(dest)
			pi.SelectExpr = child
			pi.IsSelectDI = child.Kind() == ast.TOK_SELECTDI
			hasSelectDI = pi.IsSelectDI
			if err := a.extractAggregations(pi, child); err != nil {
				return err
			}

		case ast.TOK_WHERE:
			dest := qb.DestImplicit
			if selectDestName != "" {
				dest = selectDestName
			}
			pi := q.GetParseInfo(dest)
			if len(child.Children()) != 1 {
				return errs.New(errs.Generic, "malformed WHERE clause")
			}
			pi.WhereExpr = child.Children()[0]

		case ast.TOK_DESTINATION:
			name := "insclause-" + strconv.Itoa(destCounter)
			destCounter++
			selectDestName = name
			dest, err := classifyDestination(child, insideSubquery)
			if err != nil {
				return err
			}
			pi := q.GetParseInfo(name)
			pi.Destination = dest

		case ast.TOK_FROM:
			if len(child.Children()) != 1 {
				return errs.New(errs.Generic, "malformed FROM clause")
			}
			if err := a.processFrom(q, child.Children()[0]); err != nil {
				return err
			}

		case ast.TOK_GROUPBY:
			dest := qb.DestImplicit
			if selectDestName != "" {
				dest = selectDestName
			}
			pi := q.GetParseInfo(dest)
			pi.GroupByExprs = append(pi.GroupByExprs, child.Children()...)
			hasGroupBy = true

		case ast.TOK_CLUSTERBY:
			dest := qb.DestImplicit
			if selectDestName != "" {
				dest = selectDestName
			}
			pi := q.GetParseInfo(dest)
			if len(pi.DistributeBy) > 0 {
				return errs.New(errs.ClusterByDistributeByConflict, "CLUSTER BY cannot be combined with DISTRIBUTE BY")
			}
			if len(pi.SortBy) > 0 {
				return errs.New(errs.ClusterBySortByConflict, "CLUSTER BY cannot be combined with SORT BY")
			}
			pi.ClusterBy = append(pi.ClusterBy, child.Children()...)

		case ast.TOK_DISTRIBUTEBY:
			dest := qb.DestImplicit
			if selectDestName != "" {
				dest = selectDestName
			}
			pi := q.GetParseInfo(dest)
			if len(pi.ClusterBy) > 0 {
				return errs.New(errs.ClusterByDistributeByConflict, "DISTRIBUTE BY cannot be combined with CLUSTER BY")
			}
			pi.DistributeBy = append(pi.DistributeBy, child.Children()...)

		case ast.TOK_SORTBY, ast.TOK_ORDERBY:
			dest := qb.DestImplicit
			if selectDestName != "" {
				dest = selectDestName
			}
			pi := q.GetParseInfo(dest)
			if len(pi.ClusterBy) > 0 {
				return errs.New(errs.ClusterBySortByConflict, "SORT BY cannot be combined with CLUSTER BY")
			}
			pi.SortBy = append(pi.SortBy, child.Children()...)

		case ast.TOK_LIMIT:
			dest := qb.DestImplicit
			if selectDestName != "" {
				dest = selectDestName
			}
			pi := q.GetParseInfo(dest)
			n, err := strconv.Atoi(child.Text())
			if err != nil {
				return errs.New(errs.Generic, "invalid LIMIT value %q", child.Text())
			}
			pi.Limit = n
			pi.HasLimit = true

		case ast.TOK_TRANSFORM:
			dest := qb.DestImplicit
			if selectDestName != "" {
				dest = selectDestName
			}
			pi := q.GetParseInfo(dest)
			pi.TransformExpr = child

		case ast.TOK_UNION, ast.TOK_UNIONALL:
			if !insideSubquery {
				return errs.New(errs.UnionNotInSubquery, "UNION is only permitted inside a subquery")
			}
			if child.Kind() == ast.TOK_UNION {
				return errs.New(errs.UnionNotInSubquery, "only UNION ALL is permitted inside a subquery")
			}

		default:
			// Tokens outside the §4.1 table (comments, hints) are ignored.
		}
	}

	if hasSelectDI && hasGroupBy {
		return errs.New(errs.SelectDistinctWithGroupBy, "SELECT DISTINCT cannot be combined with GROUP BY")
	}
	return nil
}

// classifyDestination extracts the write target for a TOK_DESTINATION node
// and enforces "if inside a subquery, require destination to be a synthetic
// temp file" (§4.1).
func classifyDestination(n ast.Node, insideSubquery bool) (qb.Destination, error) {
	if len(n.Children()) == 0 {
		return qb.Destination{Kind: qb.DestTempFile}, nil
	}
	target := n.Children()[0]
	switch target.Kind() {
	case ast.TOK_TAB:
		if insideSubquery {
			return qb.Destination{}, errs.New(errs.NoInsertInSubquery, "cannot write to a table from inside a subquery")
		}
		return qb.Destination{Kind: qb.DestTable, TableName: target.Text()}, nil
	case ast.TOK_DIR:
		if insideSubquery {
			return qb.Destination{}, errs.New(errs.NoInsertInSubquery, "cannot write to a directory from inside a subquery")
		}
		return qb.Destination{Kind: qb.DestDir, Path: target.Text()}, nil
	default:
		return qb.Destination{Kind: qb.DestTempFile}, nil
	}
}

// processFrom recurses into a single FROM child: a table ref, a subquery,
// or a join tree.
func (a *Analyzer) processFrom(q *qb.QB, n ast.Node) error {
	switch n.Kind() {
	case ast.TOK_TABREF:
		return a.processTabRef(q, n)
	case ast.TOK_SUBQUERY:
		return a.processSubquery(q, n)
	case ast.TOK_JOIN, ast.TOK_LEFTOUTERJOIN, ast.TOK_RIGHTOUTERJOIN, ast.TOK_FULLOUTERJOIN:
		if err := a.processJoinInputs(q, n); err != nil {
			return err
		}
		q.JoinTree = &qb.JoinTreeRef{Root: n}
		return nil
	default:
		return errs.New(errs.Generic, "unsupported FROM child %s", n.Kind())
	}
}

// processJoinInputs recurses into both sides of a join node so every leaf
// table/subquery registers its alias on q, without building the join tree
// itself (that is joinplan's job, driven off q.JoinTree.Root).
func (a *Analyzer) processJoinInputs(q *qb.QB, n ast.Node) error {
	children := n.Children()
	if len(children) < 2 {
		return errs.New(errs.Generic, "malformed join node")
	}
	left, right := children[0], children[1]
	for _, side := range []ast.Node{left, right} {
		switch side.Kind() {
		case ast.TOK_TABREF:
			if err := a.processTabRef(q, side); err != nil {
				return err
			}
		case ast.TOK_SUBQUERY:
			if err := a.processSubquery(q, side); err != nil {
				return err
			}
		case ast.TOK_JOIN, ast.TOK_LEFTOUTERJOIN, ast.TOK_RIGHTOUTERJOIN, ast.TOK_FULLOUTERJOIN:
			if err := a.processJoinInputs(q, side); err != nil {
				return err
			}
		default:
			return errs.New(errs.Generic, "unsupported join input %s", side.Kind())
		}
	}
	return validateJoinCondition(n)
}

// validateJoinCondition rejects OR at the top of a join's ON clause (§4.1,
// "documented limitation"); equality distribution into join-conditions vs.
// filters is performed later by joinplan, which needs the table aliases
// that are only known after this pass completes.
func validateJoinCondition(n ast.Node) error {
	on := ast.FindFirst(n, ast.TOK_ON)
	if on == nil || len(on.Children()) == 0 {
		return nil
	}
	return checkNoTopLevelOr(on.Children()[0])
}

func checkNoTopLevelOr(n ast.Node) error {
	switch n.Kind() {
	case ast.TOK_OR:
		return errs.New(errs.InvalidJoinCondition3, "OR is not permitted at the top of a join condition")
	case ast.TOK_AND:
		for _, c := range n.Children() {
			if err := checkNoTopLevelOr(c); err != nil {
				return err
			}
		}
	}
	return nil
}

func (a *Analyzer) processTabRef(q *qb.QB, n ast.Node) error {
	tabNode := ast.FindFirst(n, ast.TOK_TAB)
	if tabNode == nil {
		return errs.New(errs.InvalidTable, "missing table name in table reference")
	}
	tableName := tabNode.Text()
	alias := tableName
	if aliasNode := ast.FindFirst(n, ast.TOK_TABALIAS); aliasNode != nil && aliasNode.Text() != "" {
		alias = aliasNode.Text()
	}
	if !q.AddTabAlias(alias, tableName) {
		return errs.New(errs.InvalidTableAlias, "duplicate table alias %q", alias)
	}
	if sampleNode := ast.FindFirst(n, ast.TOK_TABLESAMPLE); sampleNode != nil {
		sample, err := parseTableSample(sampleNode)
		if err != nil {
			return err
		}
		pi := q.GetParseInfo(qb.DestImplicit)
		pi.Sample = sample
	}
	return nil
}

func parseTableSample(n ast.Node) (*qb.TableSample, error) {
	children := n.Children()
	if len(children) < 2 {
		return nil, errs.New(errs.Generic, "malformed TABLESAMPLE clause")
	}
	num, err1 := strconv.Atoi(children[0].Text())
	den, err2 := strconv.Atoi(children[1].Text())
	if err1 != nil || err2 != nil {
		return nil, errs.New(errs.Generic, "invalid TABLESAMPLE bucket numbers")
	}
	var onCols []string
	for _, c := range children[2:] {
		onCols = append(onCols, c.Text())
	}
	if len(onCols) > 2 {
		return nil, errs.New(errs.SampleRestriction, "TABLESAMPLE supports at most two ON columns")
	}
	return &qb.TableSample{Numerator: num, Denominator: den, OnCols: onCols}, nil
}

func (a *Analyzer) processSubquery(q *qb.QB, n ast.Node) error {
	alias := n.Text()
	if alias == "" {
		return errs.New(errs.NoSubqueryAlias, "subquery in FROM requires an alias")
	}
	if len(n.Children()) != 1 {
		return errs.New(errs.Generic, "malformed subquery node")
	}
	body := n.Children()[0]
	a.qbCounter++
	childID := q.ID + ":" + alias
	childQB := qb.New(childID)
	childQB.Alias = alias
	childQB.IsSubQuery = true
	if err := a.doPhase1(childQB, body, true); err != nil {
		return err
	}
	if !q.AddSubqAlias(alias, qb.NullOp(childQB)) {
		return errs.New(errs.InvalidTableAlias, "duplicate subquery alias %q", alias)
	}
	return nil
}

// extractAggregations scans a SELECT subtree for aggregation function
// calls, canonicalizing each by its structural text (§4.1/§4.4) so repeated
// subexpressions share one descriptor, and records the argument of a
// SELECT DISTINCT's implicit aggregate.
func (a *Analyzer) extractAggregations(pi *qb.ParseInfo, n ast.Node) error {
	for _, selExpr := range n.Children() {
		if len(selExpr.Children()) == 0 {
			continue
		}
		body := selExpr.Children()[0]
		findAggregations(pi, body)
		if n.Kind() == ast.TOK_SELECTDI && pi.DistinctAggExpr == nil {
			pi.DistinctAggExpr = body
		}
	}
	return nil
}

func findAggregations(pi *qb.ParseInfo, n ast.Node) {
	if n.Kind() == ast.TOK_FUNCTION || n.Kind() == ast.TOK_FUNCTIONDI {
		key := ast.String(n)
		if _, ok := pi.AggregateExprs[key]; !ok {
			pi.AggregateExprs[key] = n
			pi.AggregateOrder = append(pi.AggregateOrder, key)
		}
		// an aggregate's own arguments are not themselves scanned for
		// nested aggregates (nested aggregation is not supported).
		return
	}
	for _, c := range n.Children() {
		findAggregations(pi, c)
	}
}
