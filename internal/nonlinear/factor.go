// Package nonlinear implements the nonlinear factor graph: the ordered,
// tombstone-on-removal sequence of factors that, given a Values, each
// produce a linear factor at the current linearization point. Concrete
// residual/Jacobian math (PriorFactor, BetweenFactor) is a minimal
// Euclidean stand-in for the real nonlinear factors spec.md explicitly
// treats as an external collaborator; it exists so the rest of the engine
// has something to eliminate and the pose-chain scenarios in spec.md 8
// have a concrete implementation to drive.
package nonlinear

import (
	"github.com/isam2go/isam2/internal/key"
	"github.com/isam2go/isam2/internal/linalg"
	"github.com/isam2go/isam2/internal/values"
)

// Factor is the nonlinear factor interface: something that knows which
// keys it touches and, given a linearization point, can produce a linear
// factor and a scalar whitened error.
type Factor interface {
	Keys() []key.Key
	Dims() []int
	Linearize(v *values.Values) (linalg.LinearFactor, error)
	Error(v *values.Values) float64
}

// Graph is the ordered nonlinear factor graph. Factor indices are stable
// insertion positions; Remove tombstones rather than compacting, so
// indices returned from earlier Add calls remain valid identifiers.
type Graph struct {
	factors []Factor
}

// New returns an empty Graph.
func New() *Graph {
	return &Graph{}
}

// Add appends f, returning its new, permanent index.
func (g *Graph) Add(f Factor) int {
	idx := len(g.factors)
	g.factors = append(g.factors, f)
	return idx
}

// Remove tombstones the factor at idx. It is an error to remove an
// unknown or already-removed index.
func (g *Graph) Remove(idx int) error {
	if idx < 0 || idx >= len(g.factors) || g.factors[idx] == nil {
		return ErrUnknownFactorIndex
	}
	g.factors[idx] = nil
	return nil
}

// At returns the factor at idx, or nil if idx is out of range or
// tombstoned.
func (g *Graph) At(idx int) Factor {
	if idx < 0 || idx >= len(g.factors) {
		return nil
	}
	return g.factors[idx]
}

// Len returns the graph's size including tombstoned slots, so that
// indices 0..Len()-1 are exactly the valid range for At.
func (g *Graph) Len() int { return len(g.factors) }

// Clone returns a shallow copy of the factor slice (factors themselves are
// treated as immutable once added), used to snapshot the graph before a
// fallible update so it can be restored verbatim on rollback.
func (g *Graph) Clone() *Graph {
	return &Graph{factors: append([]Factor(nil), g.factors...)}
}

// Error sums the whitened error of every live factor at v.
func (g *Graph) Error(v *values.Values) float64 {
	total := 0.0
	for _, f := range g.factors {
		if f != nil {
			total += f.Error(v)
		}
	}
	return total
}

// ErrUnknownFactorIndex is returned by Remove for an index that was never
// valid or has already been tombstoned.
var ErrUnknownFactorIndex = unknownFactorIndexError{}

type unknownFactorIndexError struct{}

func (unknownFactorIndexError) Error() string {
	return "nonlinear: unknown or already-removed factor index"
}
