// Package bayestree implements the Bayes-tree clique data structure: a
// rooted forest of cliques, each a chain of single-frontal Gaussian
// conditionals aggregated from a maximal chain of single-child elimination
// steps, plus the cached boundary factor and gradient contribution that
// let a detached subtree's contribution to the joint be summarized without
// descending into it.
package bayestree

import (
	"gonum.org/v1/gonum/mat"

	"github.com/isam2go/isam2/internal/key"
	"github.com/isam2go/isam2/internal/linalg"
)

func toSlice(v *mat.VecDense) []float64 {
	n := v.Len()
	out := make([]float64, n)
	for i := 0; i < n; i++ {
		out[i] = v.AtVec(i)
	}
	return out
}

// Clique is a node of the Bayes tree: a conditional on Frontals() given
// Separator(), represented as the chain of single-variable conditionals
// produced by eliminating its frontals in order, plus the cached residual
// factor elimination produced as a side effect (the joint factor on
// Separator() that summarizes everything below this clique) and the
// per-key gradient contribution used by the dog-leg controller.
//
// Cliques live in a BayesTree's arena and reference parent/children by
// index rather than by pointer, which sidesteps the owning-child /
// non-owning-parent cycle the conditional/cached-factor pair would
// otherwise create.
type Clique struct {
	Conditionals []*linalg.GaussianConditional // elimination order: Conditionals[0]'s frontal eliminated first

	CachedFactor linalg.LinearFactor // for a root clique, a factor over an empty separator

	gradient map[key.Key][]float64

	Parent   int // index into BayesTree.cliques, -1 for a root
	Children []int
}

// NewClique builds a clique from a maximal chain of conditionals produced
// by successive single-variable eliminations, plus the final residual
// factor passed up to the parent.
func NewClique(conditionals []*linalg.GaussianConditional, cached linalg.LinearFactor) *Clique {
	c := &Clique{Conditionals: conditionals, CachedFactor: cached, Parent: -1}
	c.computeGradient()
	return c
}

// Frontals returns the clique's frontal keys in elimination order.
func (c *Clique) Frontals() []key.Key {
	out := make([]key.Key, len(c.Conditionals))
	for i, cond := range c.Conditionals {
		out[i] = cond.Frontal
	}
	return out
}

// Separator returns the clique's true separator: the keys neither eliminated
// here nor belonging to any descendant, i.e. the last conditional's
// separator with earlier frontals of this same clique removed.
func (c *Clique) Separator() []key.Key {
	if len(c.Conditionals) == 0 {
		return nil
	}
	frontalSet := make(map[key.Key]bool, len(c.Conditionals))
	for _, cond := range c.Conditionals {
		frontalSet[cond.Frontal] = true
	}
	last := c.Conditionals[len(c.Conditionals)-1]
	out := make([]key.Key, 0, len(last.Sep))
	for _, k := range last.Sep {
		if !frontalSet[k] {
			out = append(out, k)
		}
	}
	return out
}

// computeGradient sums -(R*P^T)^T*d over frontals and -S^T*d over the
// separator across every conditional in the chain, scattering results into
// the per-key gradient map. Recomputed from scratch by NewClique and by
// Extend; fixed once the clique is attached to a tree, as spec'd.
func (c *Clique) computeGradient() {
	c.gradient = make(map[key.Key][]float64)
	for _, cond := range c.Conditionals {
		fVec, sVec := cond.GradientContribution()
		c.gradient[cond.Frontal] = addInto(c.gradient[cond.Frontal], toSlice(fVec))
		off := 0
		for i, k := range cond.Sep {
			d := cond.SepDims[i]
			part := toSlice(sVec)[off : off+d]
			c.gradient[k] = addInto(c.gradient[k], part)
			off += d
		}
	}
}

// Extend appends cond as the next conditional in this clique's elimination
// chain (called by the elimination engine when a node's elimination-tree
// parent has exactly one child, continuing the same clique rather than
// starting a new one), replaces the cached boundary factor with the new
// joint factor on the (now smaller) separator, and recomputes the
// gradient contribution over the whole, now-longer chain. Only ever called
// before the clique is attached to a tree.
func (c *Clique) Extend(cond *linalg.GaussianConditional, cached linalg.LinearFactor) {
	c.Conditionals = append(c.Conditionals, cond)
	c.CachedFactor = cached
	c.computeGradient()
}

// Gradient returns this clique's contribution to the given key, or nil.
func (c *Clique) Gradient(k key.Key) []float64 {
	return c.gradient[k]
}

// GradientKeys returns every key this clique contributes a gradient entry
// for (its frontals and the variables in its separator).
func (c *Clique) GradientKeys() []key.Key {
	out := make([]key.Key, 0, len(c.gradient))
	for k := range c.gradient {
		out = append(out, k)
	}
	return out
}

// BackSubstitute solves the whole clique given the current values of its
// separator (already resolved by ancestors, read through lookup), writing
// each frontal's solved delta via write. Conditionals are solved from the
// last-eliminated to the first, since a later conditional's separator can
// include earlier frontals of the same clique.
func (c *Clique) BackSubstitute(lookup func(key.Key) []float64, write func(key.Key, []float64)) {
	resolved := make(map[key.Key][]float64)
	for i := len(c.Conditionals) - 1; i >= 0; i-- {
		cond := c.Conditionals[i]
		sepValues := make([][]float64, len(cond.Sep))
		for j, k := range cond.Sep {
			if v, ok := resolved[k]; ok {
				sepValues[j] = v
			} else {
				sepValues[j] = lookup(k)
			}
		}
		frontal := cond.SolveRaw(sepValues)
		resolved[cond.Frontal] = frontal
		write(cond.Frontal, frontal)
	}
}

func addInto(dst []float64, src []float64) []float64 {
	if dst == nil {
		return append([]float64(nil), src...)
	}
	for i, v := range src {
		dst[i] += v
	}
	return dst
}
