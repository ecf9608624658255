package prune

import (
	"github.com/lattice-ql/qcompiler/catalog"
	"github.com/lattice-ql/qcompiler/exprc"
	"github.com/lattice-ql/qcompiler/qb"
	"github.com/lattice-ql/qcompiler/types"
)

// SampleResult is the outcome of planning one TABLESAMPLE clause (§4.8).
type SampleResult struct {
	// Files lists the bucket files that already satisfy the sample when
	// the table is bucketed on exactly the sampled columns with a bucket
	// count that is a multiple of the sample denominator -- in that case
	// the sample can be realized by input pruning alone, with no residual
	// row filter.
	Files []string
	// HashPredicate is set when input pruning cannot fully satisfy the
	// sample (the table isn't bucketed compatibly, or ON references
	// columns other than the bucket columns), and a row-level predicate
	// using default_sample_hashfn must filter the remaining rows.
	HashPredicate *exprc.Expr
}

// Plan decides how to realize one TABLESAMPLE clause against table.
func Plan(sample *qb.TableSample, table *catalog.Table, bucketFiles []string, registry catalog.FunctionRegistry) (*SampleResult, error) {
	onCols := sample.OnCols
	if len(onCols) == 0 {
		onCols = table.BucketCols
	}

	if table.NumBuckets > 0 && table.NumBuckets%sample.Denominator == 0 && sameColumns(onCols, table.BucketCols) {
		step := table.NumBuckets / sample.Denominator
		files := make([]string, 0, step)
		for i := sample.Numerator - 1; i < len(bucketFiles); i += sample.Denominator {
			files = append(files, bucketFiles[i])
		}
		return &SampleResult{Files: files}, nil
	}

	pred, err := hashPredicate(onCols, sample.Numerator, sample.Denominator, registry)
	if err != nil {
		return nil, err
	}
	return &SampleResult{HashPredicate: pred}, nil
}

func sameColumns(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	seen := make(map[string]bool, len(a))
	for _, c := range a {
		seen[c] = true
	}
	for _, c := range b {
		if !seen[c] {
			return false
		}
	}
	return true
}

// hashPredicate builds the expression descriptor for
// "default_sample_hashfn(onCols...) % denominator = numerator - 1", the
// row-level fallback used whenever input pruning alone cannot satisfy a
// sample (§4.8). It keeps the same bucket, numerator-1 out of every
// denominator, that input pruning selects.
func hashPredicate(onCols []string, numerator, denominator int, registry catalog.FunctionRegistry) (*exprc.Expr, error) {
	args := make([]*exprc.Expr, 0, len(onCols))
	for _, c := range onCols {
		args = append(args, exprc.Column(types.Prim(types.String), c))
	}
	hashCall := exprc.Func(types.Prim(types.Integer), "default_sample_hashfn", "eval", args...)
	mod := exprc.Func(types.Prim(types.Integer), "%", "eval", hashCall, exprc.Constant(types.Prim(types.Integer), denominator))
	eq := exprc.Func(types.Prim(types.Boolean), "=", "eval", mod, exprc.Constant(types.Prim(types.Integer), numerator-1))
	return eq, nil
}
