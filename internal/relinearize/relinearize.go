// Package relinearize implements the fluid-relinearization policy of
// spec.md 4.H: given the current (wildfire-refreshed) linear delta, decide
// which variables have moved far enough from their last linearization
// point that their local linear model is no longer faithful.
package relinearize

import (
	"math"

	"github.com/isam2go/isam2/internal/key"
	"github.com/isam2go/isam2/internal/linalg"
	"github.com/isam2go/isam2/internal/ordering"
)

// Kind discriminates the two shapes ISAM2Params.RelinearizeThreshold can
// take. Kept as an explicit tag rather than behind an interface: this is
// read once per slot on the per-update hot path, per spec.md 9's guidance
// on the relinearization-threshold variant.
type Kind int

const (
	// Scalar compares every variable's delta against one threshold.
	Scalar Kind = iota
	// PerType compares each variable's delta, dimension by dimension,
	// against a threshold vector selected by the variable's Key type tag.
	PerType
)

// Threshold is the tagged-union relinearization threshold.
type Threshold struct {
	Kind    Kind
	Scalar  float64
	PerType map[byte][]float64
}

// Mag computes mag(s) from spec.md 4.H.2: the largest ratio of a delta
// component to its threshold. A variable is a relinearization candidate
// when Mag > 1.
func (t Threshold) Mag(k key.Key, delta []float64) float64 {
	if t.Kind == PerType {
		thr, ok := t.PerType[k.Tag()]
		if !ok {
			return 0
		}
		m := 0.0
		for i, d := range delta {
			if i >= len(thr) || thr[i] <= 0 {
				continue
			}
			if r := math.Abs(d) / thr[i]; r > m {
				m = r
			}
		}
		return m
	}
	if t.Scalar <= 0 {
		return 0
	}
	m := 0.0
	for _, d := range delta {
		if a := math.Abs(d); a > m {
			m = a
		}
	}
	return m / t.Scalar
}

// Select returns the relinearized set R: every key in ord whose current
// delta (read through ord/delta) exceeds threshold, per spec.md 4.H.2.
// Callers must have refreshed delta (e.g. via wildfire.Run) before
// calling, since Select only compares the magnitude already present.
func Select(ord *ordering.Ordering, delta *linalg.Permuted, threshold Threshold) []key.Key {
	var out []key.Key
	for _, s := range ord.Slots() {
		k, ok := ord.Key(s)
		if !ok {
			continue
		}
		if threshold.Mag(k, delta.At(s)) > 1.0 {
			out = append(out, k)
		}
	}
	return out
}
