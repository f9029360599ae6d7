package nonlinear

import (
	"gonum.org/v1/gonum/mat"

	"github.com/isam2go/isam2/internal/key"
	"github.com/isam2go/isam2/internal/linalg"
	"github.com/isam2go/isam2/internal/values"
)

// BetweenFactor constrains the relative coordinates of Key2 with respect
// to Key1 to Measured, with a diagonal noise model, matching the
// pose2SLAM example's addOdometry factor between two successive poses.
type BetweenFactor struct {
	Key1, Key2 key.Key
	Measured   values.Value
	Sigmas     []float64
}

func (f *BetweenFactor) Keys() []key.Key { return []key.Key{f.Key1, f.Key2} }
func (f *BetweenFactor) Dims() []int     { return []int{len(f.Sigmas), len(f.Sigmas)} }

func (f *BetweenFactor) whitenedResidual(v *values.Values) []float64 {
	x1, _ := v.At(f.Key1)
	x2, _ := v.At(f.Key2)
	v1, v2, mv := x1.Vector(), x2.Vector(), f.Measured.Vector()
	out := make([]float64, len(f.Sigmas))
	for i := range out {
		predicted := v2[i] - v1[i]
		out[i] = (predicted - mv[i]) / f.Sigmas[i]
	}
	return out
}

func (f *BetweenFactor) Error(v *values.Values) float64 {
	r := f.whitenedResidual(v)
	sum := 0.0
	for _, x := range r {
		sum += x * x
	}
	return 0.5 * sum
}

func (f *BetweenFactor) Linearize(v *values.Values) (linalg.LinearFactor, error) {
	n := len(f.Sigmas)
	a1 := mat.NewDense(n, n, nil)
	a2 := mat.NewDense(n, n, nil)
	for i := 0; i < n; i++ {
		a1.Set(i, i, -1/f.Sigmas[i])
		a2.Set(i, i, 1/f.Sigmas[i])
	}
	r := f.whitenedResidual(v)
	b := mat.NewVecDense(n, nil)
	for i, x := range r {
		b.SetVec(i, -x)
	}
	return &linalg.JacobianFactor{
		Keys: []key.Key{f.Key1, f.Key2},
		Blocks: map[key.Key]*mat.Dense{
			f.Key1: a1,
			f.Key2: a2,
		},
		B: b,
	}, nil
}
