// Package values implements the manifold Values map: the mutable
// linearization point theta that the incremental updater retracts along
// the accepted step each update.
//
// The concrete manifold elements (Vector, Pose2) are a deliberately thin
// stand-in for the real retraction logic spec.md treats as an external
// collaborator ("the manifold retraction on variables" is explicitly out
// of scope); both are modeled here as Euclidean so the rest of the engine
// has something concrete to linearize and retract against in tests and the
// demo scenarios.
package values

import (
	"fmt"
	"math"

	"github.com/isam2go/isam2/internal/key"
	"github.com/isam2go/isam2/internal/linalg"
	"github.com/isam2go/isam2/internal/ordering"
)

// Value is a manifold element: something that can report its tangent-space
// dimension, its current Euclidean coordinates, and retract a tangent
// vector onto a new Value.
type Value interface {
	Dim() int
	Vector() []float64
	Retract(delta []float64) Value
}

// Vector is the trivial Euclidean manifold: retraction is vector addition.
type Vector []float64

func (v Vector) Dim() int          { return len(v) }
func (v Vector) Vector() []float64 { return []float64(v) }

func (v Vector) Retract(delta []float64) Value {
	out := make(Vector, len(v))
	for i := range v {
		out[i] = v[i] + at(delta, i)
	}
	return out
}

// Pose2 is a planar pose (x, y, theta), named to match the pose2SLAM
// domain the pack's pose-chain scenarios are grounded on. Its tangent
// space is likewise treated as Euclidean, with theta wrapped back into
// (-pi, pi] on retraction.
type Pose2 struct {
	X, Y, Theta float64
}

func (p Pose2) Dim() int { return 3 }

func (p Pose2) Vector() []float64 { return []float64{p.X, p.Y, p.Theta} }

func (p Pose2) Retract(delta []float64) Value {
	return Pose2{
		X:     p.X + at(delta, 0),
		Y:     p.Y + at(delta, 1),
		Theta: wrapAngle(p.Theta + at(delta, 2)),
	}
}

func wrapAngle(theta float64) float64 {
	for theta > math.Pi {
		theta -= 2 * math.Pi
	}
	for theta <= -math.Pi {
		theta += 2 * math.Pi
	}
	return theta
}

func at(v []float64, i int) float64 {
	if i >= len(v) {
		return 0
	}
	return v[i]
}

// Values is the Key -> manifold-element linearization point theta,
// mutated only by the incremental updater after accepting a step.
type Values struct {
	elems map[key.Key]Value
}

// New returns an empty Values.
func New() *Values {
	return &Values{elems: make(map[key.Key]Value)}
}

// Insert adds val under k. It is an error to Insert a key already present.
func (v *Values) Insert(k key.Key, val Value) error {
	if _, ok := v.elems[k]; ok {
		return fmt.Errorf("values: key %s already exists", k)
	}
	v.elems[k] = val
	return nil
}

// Set overwrites the value stored at k, inserting it if absent. Used by
// relinearization to retract a variable's linearization point in place
// (Insert refuses to overwrite, since ordinary factor-graph construction
// should never silently replace a variable).
func (v *Values) Set(k key.Key, val Value) {
	v.elems[k] = val
}

// At returns the value stored at k.
func (v *Values) At(k key.Key) (Value, bool) {
	val, ok := v.elems[k]
	return val, ok
}

// Has reports whether k has an entry.
func (v *Values) Has(k key.Key) bool {
	_, ok := v.elems[k]
	return ok
}

// Keys returns every key currently stored, unordered.
func (v *Values) Keys() []key.Key {
	out := make([]key.Key, 0, len(v.elems))
	for k := range v.elems {
		out = append(out, k)
	}
	return out
}

// Size returns the number of stored keys.
func (v *Values) Size() int { return len(v.elems) }

// Clone returns a shallow copy (manifold elements are themselves
// immutable value types, so a shallow map copy is a deep copy in
// practice).
func (v *Values) Clone() *Values {
	out := make(map[key.Key]Value, len(v.elems))
	for k, val := range v.elems {
		out[k] = val
	}
	return &Values{elems: out}
}

// Retract returns a new Values with every key whose slot has a delta
// entry retracted along that delta; keys with no ordering slot or no
// delta entry are copied unchanged. This is the "update Values by
// retracting theta along the accepted step" operation of spec.md 4.F.11.
func (v *Values) Retract(delta *linalg.VectorValues, ord *ordering.Ordering) *Values {
	out := v.Clone()
	for k, val := range v.elems {
		slot, ok := ord.Slot(k)
		if !ok || !delta.Has(slot) {
			continue
		}
		out.elems[k] = val.Retract(delta.At(slot))
	}
	return out
}
