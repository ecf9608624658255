package semantic

import (
	"fmt"

	"github.com/lattice-ql/qcompiler/catalog"
	"github.com/lattice-ql/qcompiler/errs"
	"github.com/lattice-ql/qcompiler/qb"
)

// AcceptedFormats is the allow-list of input/output format class names the
// binder accepts (§4.2: "verify the declared input/output format type is
// acceptable").
var AcceptedFormats = map[string]bool{
	"TextInputFormat":    true,
	"TextOutputFormat":   true,
	"RCFileInputFormat":  true,
	"RCFileOutputFormat": true,
	"ORCInputFormat":     true,
	"ORCOutputFormat":    true,
}

// ScratchAllocator hands out unique scratch paths, "<scratchDir>/
// <sessionId>.<counter>.<destName>" (§6), one per destination materialized
// to a temporary location.
type ScratchAllocator struct {
	ScratchDir string
	SessionID  string
	counter    int
}

// NewScratchAllocator builds an allocator for one session.
func NewScratchAllocator(scratchDir, sessionID string) *ScratchAllocator {
	return &ScratchAllocator{ScratchDir: scratchDir, SessionID: sessionID}
}

// Next returns a new scratch path for the given destination name.
func (s *ScratchAllocator) Next(destName string) string {
	s.counter++
	return fmt.Sprintf("%s/%s.%d.%s", s.ScratchDir, s.SessionID, s.counter, destName)
}

// Binder resolves table aliases and destinations against the metastore
// collaborator (§4.2), populating each QB's MetaData.
type Binder struct {
	Metastore catalog.Metastore
	Scratch   *ScratchAllocator
}

// NewBinder builds a Binder over a metastore and scratch allocator.
func NewBinder(ms catalog.Metastore, scratch *ScratchAllocator) *Binder {
	return &Binder{Metastore: ms, Scratch: scratch}
}

// Bind resolves every table alias in q (recursively through subqueries) and
// every destination to a concrete target.
func (b *Binder) Bind(q *qb.QB) error {
	for alias, tableName := range q.TabNameForAlias {
		t, err := b.Metastore.GetTable(tableName)
		if err != nil {
			if ite, ok := err.(*catalog.InvalidTableError); ok {
				return errs.New(errs.InvalidTable, "table not found: %s", ite.Name)
			}
			return errs.Wrap(err, "metastore lookup failed for table %s", tableName)
		}
		if !AcceptedFormats[t.InputFormat] {
			return errs.New(errs.InvalidInputFormatType, "unsupported input format %q for table %s", t.InputFormat, tableName)
		}
		if !AcceptedFormats[t.OutputFormat] {
			return errs.New(errs.InvalidOutputFormatType, "unsupported output format %q for table %s", t.OutputFormat, tableName)
		}
		q.MetaData.TableForAlias[alias] = t
	}

	for alias, subq := range q.SubqForAlias {
		if subq.IsLeaf() {
			if err := b.Bind(subq.Leaf); err != nil {
				return err
			}
		} else {
			if err := b.bindExpr(subq); err != nil {
				return err
			}
		}
		_ = alias
	}

	for destName, pi := range q.ParseInfo {
		switch pi.Destination.Kind {
		case qb.DestTable:
			t, err := b.Metastore.GetTable(pi.Destination.TableName)
			if err != nil {
				return errs.New(errs.InvalidTable, "destination table not found: %s", pi.Destination.TableName)
			}
			pi.Destination.Path = t.Location
		case qb.DestTempFile:
			pi.Destination.Path = b.Scratch.Next(destName)
		case qb.DestDir:
			// already has an explicit path
		}
	}
	return nil
}

func (b *Binder) bindExpr(e *qb.QBExpr) error {
	if e.IsLeaf() {
		return b.Bind(e.Leaf)
	}
	if err := b.bindExpr(e.Left); err != nil {
		return err
	}
	return b.bindExpr(e.Right)
}

// TableFor fetches the resolved *catalog.Table for an alias, or nil if
// unresolved/not a base table.
func TableFor(q *qb.QB, alias string) *catalog.Table {
	if t, ok := q.MetaData.TableForAlias[alias].(*catalog.Table); ok {
		return t
	}
	return nil
}
