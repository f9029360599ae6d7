// Package elimination implements the elimination engine (spec.md 4.E):
// given a set of linear factors and an ordering, builds a Bayes tree by
// sequential variable elimination, aggregating maximal chains of
// single-child conditionals into multi-frontal cliques per the standard
// Bayes-tree construction.
package elimination

import (
	"github.com/isam2go/isam2/internal/bayestree"
	"github.com/isam2go/isam2/internal/key"
	"github.com/isam2go/isam2/internal/linalg"
)

// ComputeParents computes the symbolic elimination-tree parent of each of
// the n variables (indexed 0..n-1 in elimination order), given for each
// variable the indices (into some shared factor-index space, e.g. the
// local factor slice) of the factors that touch it.
//
// This is a direct port of GTSAM's EliminationTree::ComputeParents
// (original_source/gtsam/inference/EliminationTree-inl.h): walking
// variables in order, a factor's column-intersection with an
// already-assigned tree is found by following parent pointers from the
// last variable column the factor was seen at, giving each variable's
// parent as the minimum later variable it becomes connected to (directly
// or through fill-in) without explicitly tracking fill.
func ComputeParents(n int, touchingFactors [][]int) []int {
	const none = -1
	parents := make([]int, n)
	for i := range parents {
		parents[i] = none
	}
	prevCol := make(map[int]int)

	for j := 0; j < n; j++ {
		for _, factorIdx := range touchingFactors[j] {
			if k, ok := prevCol[factorIdx]; ok {
				r := k
				for parents[r] != none {
					r = parents[r]
				}
				if r != j {
					parents[r] = j
				}
			}
			prevCol[factorIdx] = j
		}
	}
	return parents
}

// Result is the output of Build: the set of cliques it produced, organized
// as a forest of arbitrary local roots (root meaning: this clique's
// elimination-tree head has no parent within the local ordering, or its
// parent's chain closed before reaching it because the parent had more
// than one child) plus, for every clique, its own children among the
// other cliques Build produced. The caller (the incremental updater)
// attaches Roots under whatever surviving tree node the local
// re-elimination is rooted at, and recursively attaches each clique's
// Children under it in the same BayesTree.
type Result struct {
	Roots    []*bayestree.Clique
	Children map[*bayestree.Clique][]*bayestree.Clique
}

// Build eliminates factors in the order given by order (order[i] is
// eliminated at elimination-tree position i), using method, and returns
// the resulting forest of cliques. It does not touch any existing
// BayesTree; the caller inserts the returned cliques.
func Build(factors []linalg.LinearFactor, order []key.Key, method linalg.Factorization) (*Result, error) {
	n := len(order)
	if n == 0 {
		return &Result{Children: make(map[*bayestree.Clique][]*bayestree.Clique)}, nil
	}

	pos := make(map[key.Key]int, n)
	for i, k := range order {
		pos[k] = i
	}

	// touchingFactors[j] = indices (into factors) of every factor that
	// touches order[j], and hangAt[i] = the lowest-position variable
	// factors[i] touches (the node it's "hung" at before that variable is
	// eliminated, mirroring GTSAM's factor->front()).
	touchingFactors := make([][]int, n)
	hangAt := make([]int, len(factors))
	for i, f := range factors {
		min := n
		for _, k := range f.VarKeys() {
			if p, ok := pos[k]; ok {
				touchingFactors[p] = append(touchingFactors[p], i)
				if p < min {
					min = p
				}
			}
		}
		hangAt[i] = min
	}

	hungAt := make([][]linalg.LinearFactor, n)
	for i, f := range factors {
		if hangAt[i] < n {
			hungAt[hangAt[i]] = append(hungAt[hangAt[i]], f)
		}
	}

	parents := ComputeParents(n, touchingFactors)

	children := make([][]int, n)
	for j := 0; j < n; j++ {
		if parents[j] != -1 {
			children[parents[j]] = append(children[parents[j]], j)
		}
	}

	cliqueChain := make([]*bayestree.Clique, n)
	jointAt := make([]linalg.LinearFactor, n)

	type closedEntry struct {
		clique     *bayestree.Clique
		parentNode int
	}
	var closed []closedEntry

	for j := 0; j < n; j++ {
		local := append([]linalg.LinearFactor(nil), hungAt[j]...)
		for _, c := range children[j] {
			if jointAt[c] != nil {
				local = append(local, jointAt[c])
			}
		}

		cond, residual, err := linalg.EliminateNode(local, order[j], method)
		if err != nil {
			return nil, err
		}
		jointAt[j] = residual

		if len(children[j]) == 1 {
			chain := cliqueChain[children[j][0]]
			chain.Extend(cond, residual)
			cliqueChain[j] = chain
		} else {
			cliqueChain[j] = bayestree.NewClique([]*linalg.GaussianConditional{cond}, residual)
		}

		if parents[j] == -1 || len(children[parents[j]]) != 1 {
			closed = append(closed, closedEntry{clique: cliqueChain[j], parentNode: parents[j]})
		}
	}

	result := &Result{Children: make(map[*bayestree.Clique][]*bayestree.Clique, len(closed))}
	for _, c := range closed {
		if c.parentNode == -1 {
			result.Roots = append(result.Roots, c.clique)
			continue
		}
		parentClique := cliqueChain[c.parentNode]
		result.Children[parentClique] = append(result.Children[parentClique], c.clique)
	}
	return result, nil
}
