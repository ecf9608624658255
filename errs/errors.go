// Package errs defines the single error kind the compiler core raises:
// SemanticError, carrying a taxonomy code, optional source position, and an
// optional wrapped cause. The catalog, session and mrtask packages also
// return other error values (catalog.InvalidTableError and fmt-built
// errors) across package boundaries.
package errs

import "fmt"

// Kind enumerates the semantic error taxonomy from the compiler's error
// handling design. Every abort path in analysis, planning, or pruning
// raises one of these.
type Kind uint8

const (
	Generic Kind = iota
	InvalidTable
	InvalidColumn
	AmbiguousColumn
	AmbiguousTableAlias
	InvalidTableAlias
	NoSubqueryAlias
	NoInsertInSubquery
	InvalidFunction
	InvalidFunctionSignature
	InvalidOperatorSignature
	InvalidJoinCondition1 // both sides referenced in one term
	InvalidJoinCondition2 // neither side referenced
	InvalidJoinCondition3 // OR at the top of a join condition
	InvalidTransform
	DuplicateGroupByKey
	UnsupportedMultipleDistincts
	NonKeyExprInGroupBy
	InvalidXPath
	InvalidPath
	InvalidNumericalConstant
	InvalidArrayIndexConstant
	InvalidMapIndexConstant
	InvalidMapIndexType
	NonCollectionType
	SelectDistinctWithGroupBy
	ColumnRepeatedInPartitioningCols
	DuplicateColumnNames
	ColumnRepeatedInClusterSort
	SampleRestriction
	SampleColumnNotFound
	NoPartitionPredicate
	InvalidDot
	InvalidTblDdlSerde
	TargetTableColumnMismatch
	TableAliasNotAllowed
	ClusterByDistributeByConflict
	ClusterBySortByConflict
	UnionNotInSubquery
	InvalidInputFormatType
	InvalidOutputFormatType
	NonBucketedTable
)

var kindNames = map[Kind]string{
	Generic:                          "Generic",
	InvalidTable:                     "InvalidTable",
	InvalidColumn:                    "InvalidColumn",
	AmbiguousColumn:                  "AmbiguousColumn",
	AmbiguousTableAlias:              "AmbiguousTableAlias",
	InvalidTableAlias:                "InvalidTableAlias",
	NoSubqueryAlias:                  "NoSubqueryAlias",
	NoInsertInSubquery:               "NoInsertInSubquery",
	InvalidFunction:                  "InvalidFunction",
	InvalidFunctionSignature:         "InvalidFunctionSignature",
	InvalidOperatorSignature:         "InvalidOperatorSignature",
	InvalidJoinCondition1:            "InvalidJoinCondition1",
	InvalidJoinCondition2:            "InvalidJoinCondition2",
	InvalidJoinCondition3:            "InvalidJoinCondition3",
	InvalidTransform:                 "InvalidTransform",
	DuplicateGroupByKey:              "DuplicateGroupByKey",
	UnsupportedMultipleDistincts:     "UnsupportedMultipleDistincts",
	NonKeyExprInGroupBy:              "NonKeyExprInGroupBy",
	InvalidXPath:                     "InvalidXPath",
	InvalidPath:                      "InvalidPath",
	InvalidNumericalConstant:         "InvalidNumericalConstant",
	InvalidArrayIndexConstant:        "InvalidArrayIndexConstant",
	InvalidMapIndexConstant:          "InvalidMapIndexConstant",
	InvalidMapIndexType:              "InvalidMapIndexType",
	NonCollectionType:                "NonCollectionType",
	SelectDistinctWithGroupBy:        "SelectDistinctWithGroupBy",
	ColumnRepeatedInPartitioningCols: "ColumnRepeatedInPartitioningCols",
	DuplicateColumnNames:             "DuplicateColumnNames",
	ColumnRepeatedInClusterSort:      "ColumnRepeatedInClusterSort",
	SampleRestriction:                "SampleRestriction",
	SampleColumnNotFound:             "SampleColumnNotFound",
	NoPartitionPredicate:             "NoPartitionPredicate",
	InvalidDot:                       "InvalidDot",
	InvalidTblDdlSerde:               "InvalidTblDdlSerde",
	TargetTableColumnMismatch:        "TargetTableColumnMismatch",
	TableAliasNotAllowed:             "TableAliasNotAllowed",
	ClusterByDistributeByConflict:    "ClusterByDistributeByConflict",
	ClusterBySortByConflict:          "ClusterBySortByConflict",
	UnionNotInSubquery:               "UnionNotInSubquery",
	InvalidInputFormatType:           "InvalidInputFormatType",
	InvalidOutputFormatType:          "InvalidOutputFormatType",
	NonBucketedTable:                 "NonBucketedTable",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return "Unknown"
}

// Position is the optional source location attached to a SemanticError.
type Position struct {
	Line int
	Col  int
	Text string
}

// SemanticError is the one error type the compiler core raises. Every
// abort path (analysis, planning, pruning) returns one; the compiler never
// retries and never emits a partial plan once one is raised.
type SemanticError struct {
	Kind Kind
	Msg  string
	Pos  *Position
	Case error
}

func (e *SemanticError) Error() string {
	if e.Pos != nil {
		return fmt.Sprintf("%s: %s (line %d:%d near %q)", e.Kind, e.Msg, e.Pos.Line, e.Pos.Col, e.Pos.Text)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

func (e *SemanticError) Unwrap() error { return e.Case }

// New builds a SemanticError with no position information.
func New(kind Kind, format string, args ...interface{}) *SemanticError {
	return &SemanticError{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

// At builds a SemanticError anchored to a source position.
func At(kind Kind, pos Position, format string, args ...interface{}) *SemanticError {
	p := pos
	return &SemanticError{Kind: kind, Msg: fmt.Sprintf(format, args...), Pos: &p}
}

// Wrap builds a Generic SemanticError around an upstream failure, the way
// metastore/IO failures are reported per §7: "wrapped as Generic with the
// upstream exception as cause."
func Wrap(cause error, format string, args ...interface{}) *SemanticError {
	return &SemanticError{Kind: Generic, Msg: fmt.Sprintf(format, args...), Case: cause}
}

// Is reports whether err is a *SemanticError of the given kind.
func Is(err error, kind Kind) bool {
	se, ok := err.(*SemanticError)
	return ok && se.Kind == kind
}
