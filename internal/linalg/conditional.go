package linalg

import (
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/isam2go/isam2/internal/key"
)

// GaussianConditional is the result of eliminating one frontal variable:
// p(frontal | sep), holding the upper-triangular R, the off-diagonal
// separator block S, and the right-hand side d such that
// R*frontal = d - S*sep.
type GaussianConditional struct {
	Frontal    key.Key
	FrontalDim int
	Sep        []key.Key
	SepDims    []int
	R          *mat.Dense
	S          *mat.Dense
	D          *mat.VecDense
}

// SepWidth returns the total column width across all separator variables.
func (gc *GaussianConditional) SepWidth() int {
	w := 0
	for _, d := range gc.SepDims {
		w += d
	}
	return w
}

// sepVector concatenates the separator portion of vv in gc.Sep order.
func (gc *GaussianConditional) sepVector(vv *VectorValues, sepSlots []key.Slot) *mat.VecDense {
	w := gc.SepWidth()
	out := mat.NewVecDense(w, nil)
	off := 0
	for i, s := range sepSlots {
		v := vv.At(s)
		for j := 0; j < gc.SepDims[i]; j++ {
			if j < len(v) {
				out.SetVec(off+j, v[j])
			}
		}
		off += gc.SepDims[i]
	}
	return out
}

// Solve computes the frontal delta given the separator slots' current
// values in vv (vv is addressed by Slot, sepSlots gives gc.Sep's slots in
// order): frontal = R^-1 * (d - S*sep).
func (gc *GaussianConditional) Solve(vv *VectorValues, sepSlots []key.Slot) []float64 {
	rhs := mat.VecDenseCopyOf(gc.D)
	if gc.SepWidth() > 0 {
		sep := gc.sepVector(vv, sepSlots)
		var sx mat.VecDense
		sx.MulVec(gc.S, sep)
		rhs.SubVec(rhs, &sx)
	}
	var x mat.VecDense
	if err := x.SolveVec(gc.R, rhs); err != nil {
		out := make([]float64, gc.FrontalDim)
		for i := range out {
			out[i] = math.NaN()
		}
		return out
	}
	out := make([]float64, gc.FrontalDim)
	for i := range out {
		out[i] = x.AtVec(i)
	}
	return out
}

// SolveRaw is Solve's counterpart for callers that already hold the
// separator's values as plain slices (one per gc.Sep entry, in order)
// rather than addressed through a VectorValues, as when a clique
// back-substitutes using values resolved from its own chain plus its
// ancestors' solutions.
func (gc *GaussianConditional) SolveRaw(sepValues [][]float64) []float64 {
	rhs := mat.VecDenseCopyOf(gc.D)
	if gc.SepWidth() > 0 {
		sep := mat.NewVecDense(gc.SepWidth(), nil)
		off := 0
		for i, v := range sepValues {
			for j := 0; j < gc.SepDims[i]; j++ {
				if j < len(v) {
					sep.SetVec(off+j, v[j])
				}
			}
			off += gc.SepDims[i]
		}
		var sx mat.VecDense
		sx.MulVec(gc.S, sep)
		rhs.SubVec(rhs, &sx)
	}
	var x mat.VecDense
	if err := x.SolveVec(gc.R, rhs); err != nil {
		out := make([]float64, gc.FrontalDim)
		for i := range out {
			out[i] = math.NaN()
		}
		return out
	}
	out := make([]float64, gc.FrontalDim)
	for i := range out {
		out[i] = x.AtVec(i)
	}
	return out
}

// Apply computes R*frontal + S*sep, the rows this conditional contributes
// to the stacked linear system, for an arbitrary vector addressed by Slot
// (not necessarily a solved delta) — used by the dog-leg controller to
// evaluate the Gauss-Newton curvature (Rg)^T(Rg) along a candidate
// direction g without materializing a single global R matrix.
func (gc *GaussianConditional) Apply(vv *VectorValues, frontalSlot key.Slot, sepSlots []key.Slot) []float64 {
	fr := mat.NewVecDense(gc.FrontalDim, nil)
	if v := vv.At(frontalSlot); v != nil {
		for i := 0; i < gc.FrontalDim && i < len(v); i++ {
			fr.SetVec(i, v[i])
		}
	}
	var out mat.VecDense
	out.MulVec(gc.R, fr)
	if gc.SepWidth() > 0 {
		sep := gc.sepVector(vv, sepSlots)
		var sx mat.VecDense
		sx.MulVec(gc.S, sep)
		out.AddVec(&out, &sx)
	}
	n := out.Len()
	res := make([]float64, n)
	for i := 0; i < n; i++ {
		res[i] = out.AtVec(i)
	}
	return res
}

// GradientContribution computes this conditional's contribution to the
// whole-tree gradient g = R^T(Rx-d) at x=0, i.e. -R^T*d for the frontal
// block and -S^T*d for the separator block, matching the clique gradient
// decomposition used by the dog-leg controller.
func (gc *GaussianConditional) GradientContribution() (frontal *mat.VecDense, sep *mat.VecDense) {
	var f mat.VecDense
	f.MulVec(gc.R.T(), gc.D)
	f.ScaleVec(-1, &f)

	s := mat.NewVecDense(gc.SepWidth(), nil)
	if gc.SepWidth() > 0 {
		s.MulVec(gc.S.T(), gc.D)
		s.ScaleVec(-1, s)
	}
	return &f, s
}
