package nonlinear

import (
	"gonum.org/v1/gonum/mat"

	"github.com/isam2go/isam2/internal/key"
	"github.com/isam2go/isam2/internal/linalg"
	"github.com/isam2go/isam2/internal/values"
)

// PriorFactor anchors Key to Measured with a diagonal noise model given by
// Sigmas, one per tangent-space dimension, matching the pose2SLAM example's
// addPrior with a diagonal sigma noise model.
type PriorFactor struct {
	Key      key.Key
	Measured values.Value
	Sigmas   []float64
}

func (f *PriorFactor) Keys() []key.Key { return []key.Key{f.Key} }
func (f *PriorFactor) Dims() []int     { return []int{len(f.Sigmas)} }

func (f *PriorFactor) whitenedResidual(v *values.Values) []float64 {
	x, _ := v.At(f.Key)
	xv, mv := x.Vector(), f.Measured.Vector()
	out := make([]float64, len(f.Sigmas))
	for i := range out {
		out[i] = (xv[i] - mv[i]) / f.Sigmas[i]
	}
	return out
}

func (f *PriorFactor) Error(v *values.Values) float64 {
	r := f.whitenedResidual(v)
	sum := 0.0
	for _, x := range r {
		sum += x * x
	}
	return 0.5 * sum
}

func (f *PriorFactor) Linearize(v *values.Values) (linalg.LinearFactor, error) {
	n := len(f.Sigmas)
	a := mat.NewDense(n, n, nil)
	for i := 0; i < n; i++ {
		a.Set(i, i, 1/f.Sigmas[i])
	}
	r := f.whitenedResidual(v)
	b := mat.NewVecDense(n, nil)
	for i, x := range r {
		b.SetVec(i, -x)
	}
	return &linalg.JacobianFactor{
		Keys:   []key.Key{f.Key},
		Blocks: map[key.Key]*mat.Dense{f.Key: a},
		B:      b,
	}, nil
}
