// Package wildfire implements the partial back-substitution of spec.md
// 4.G: a root-first walk of the Bayes tree that solves each clique's
// frontal delta from its already-resolved separator, short-circuiting
// (not descending into) any subtree whose recomputed value didn't move by
// more than the wildfire threshold and has no slot marked stale.
package wildfire

import (
	"math"

	"github.com/isam2go/isam2/internal/bayestree"
	"github.com/isam2go/isam2/internal/key"
	"github.com/isam2go/isam2/internal/linalg"
	"github.com/isam2go/isam2/internal/ordering"
)

// Run refreshes delta (slot-addressed, accessed through ord to translate
// clique frontal/separator Keys to Slots) from tree, honoring
// replacedMask (slot -> stale) and short-circuiting subtrees whose change
// is within threshold and carry no stale slot. replacedMask entries are
// cleared for every slot this call recomputes. Returns the count of
// variables actually recomputed (lastBacksubVariableCount).
func Run(tree *bayestree.BayesTree, ord *ordering.Ordering, delta *linalg.Permuted, replacedMask map[key.Slot]bool, threshold float64) int {
	count := 0
	tree.Traverse(func(_ int, c *bayestree.Clique) bool {
		frontals := c.Frontals()
		old := make(map[key.Key][]float64, len(frontals))
		for _, f := range frontals {
			s, ok := ord.Slot(f)
			if !ok {
				continue
			}
			old[f] = append([]float64(nil), delta.At(s)...)
		}

		fresh := make(map[key.Key][]float64, len(frontals))
		c.BackSubstitute(
			func(k key.Key) []float64 {
				s, ok := ord.Slot(k)
				if !ok {
					return nil
				}
				return delta.At(s)
			},
			func(k key.Key, v []float64) { fresh[k] = v },
		)

		maxDiff := 0.0
		anyStale := false
		for _, f := range frontals {
			s, ok := ord.Slot(f)
			if !ok {
				continue
			}
			if replacedMask[s] {
				anyStale = true
			}
			if d := infNormDiff(old[f], fresh[f]); d > maxDiff {
				maxDiff = d
			}
		}

		if maxDiff <= threshold && !anyStale {
			return false
		}

		for _, f := range frontals {
			s, ok := ord.Slot(f)
			if !ok {
				continue
			}
			delta.Set(s, fresh[f])
			delete(replacedMask, s)
			count++
		}
		return true
	})
	return count
}

func infNormDiff(a, b []float64) float64 {
	n := len(a)
	if len(b) > n {
		n = len(b)
	}
	m := 0.0
	for i := 0; i < n; i++ {
		var av, bv float64
		if i < len(a) {
			av = a[i]
		}
		if i < len(b) {
			bv = b[i]
		}
		if d := math.Abs(av - bv); d > m {
			m = d
		}
	}
	return m
}
