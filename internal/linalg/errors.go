package linalg

import "errors"

// ErrIndefiniteLinearSystem is returned by EliminateNode under LDL when a
// pivot is non-positive, and under QR when a HessianFactor is among the
// factors to eliminate.
var ErrIndefiniteLinearSystem = errors.New("linalg: indefinite linear system under LDL elimination")

// Factorization selects the numerical method used to eliminate one
// variable from a joint linear factor.
type Factorization int

const (
	// LDL eliminates via Cholesky of the normal equations. Faster, but can
	// fail on an indefinite intermediate Hessian.
	LDL Factorization = iota
	// QR eliminates via Householder QR of the stacked Jacobian. Slower but
	// numerically stable even when LDL would fail.
	QR
)

func (f Factorization) String() string {
	if f == QR {
		return "QR"
	}
	return "LDL"
}
