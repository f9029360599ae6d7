// Package linalg implements the Gaussian linear algebra layer: VectorValues
// storage, Jacobian/Hessian linear factors, Gaussian conditionals, and the
// QR/LDL elimination-of-one-variable step the rest of the engine treats as
// a numerical primitive.
package linalg

import (
	"math"

	"github.com/isam2go/isam2/internal/key"
)

// VectorValues is a mapping from Slot to a fixed-size vector, backed by one
// concatenated storage array with a per-slot offset/length, as spec'd for
// the per-variable portion of a linear delta.
type VectorValues struct {
	storage []float64
	offset  map[key.Slot]int
	length  map[key.Slot]int
}

// NewVectorValues returns an empty VectorValues.
func NewVectorValues() *VectorValues {
	return &VectorValues{offset: make(map[key.Slot]int), length: make(map[key.Slot]int)}
}

// Insert stores v under slot, appending to the backing storage. It is an
// error to Insert a slot already present; use Set to overwrite.
func (vv *VectorValues) Insert(slot key.Slot, v []float64) {
	off := len(vv.storage)
	vv.storage = append(vv.storage, v...)
	vv.offset[slot] = off
	vv.length[slot] = len(v)
}

// Set overwrites the vector at slot, inserting it if absent. The new vector
// must have the same length as any existing entry for slot.
func (vv *VectorValues) Set(slot key.Slot, v []float64) {
	if off, ok := vv.offset[slot]; ok {
		copy(vv.storage[off:off+vv.length[slot]], v)
		return
	}
	vv.Insert(slot, v)
}

// At returns the (mutable) vector stored at slot.
func (vv *VectorValues) At(slot key.Slot) []float64 {
	off, ok := vv.offset[slot]
	if !ok {
		return nil
	}
	return vv.storage[off : off+vv.length[slot]]
}

// Has reports whether slot has an entry.
func (vv *VectorValues) Has(slot key.Slot) bool {
	_, ok := vv.offset[slot]
	return ok
}

// Slots returns every slot with an entry, unordered.
func (vv *VectorValues) Slots() []key.Slot {
	out := make([]key.Slot, 0, len(vv.offset))
	for s := range vv.offset {
		out = append(out, s)
	}
	return out
}

// InfNorm returns the max-norm of the vector at slot, or 0 if absent.
func (vv *VectorValues) InfNorm(slot key.Slot) float64 {
	v := vv.At(slot)
	m := 0.0
	for _, x := range v {
		if a := math.Abs(x); a > m {
			m = a
		}
	}
	return m
}

// Diff returns the max-norm of the elementwise difference between the
// vectors at slot in vv and other. Missing entries are treated as zero.
func (vv *VectorValues) Diff(other *VectorValues, slot key.Slot) float64 {
	a, b := vv.At(slot), other.At(slot)
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

// Clone returns a deep copy.
func (vv *VectorValues) Clone() *VectorValues {
	out := &VectorValues{
		storage: append([]float64(nil), vv.storage...),
		offset:  make(map[key.Slot]int, len(vv.offset)),
		length:  make(map[key.Slot]int, len(vv.length)),
	}
	for k, v := range vv.offset {
		out.offset[k] = v
	}
	for k, v := range vv.length {
		out.length[k] = v
	}
	return out
}

// HasNonFinite reports whether any stored entry is NaN or +-Inf, used to
// detect the solver's NumericalOverflow failure mode.
func (vv *VectorValues) HasNonFinite() bool {
	for _, x := range vv.storage {
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return true
		}
	}
	return false
}

// Permuted pairs raw VectorValues storage with an index map so that the
// ordering can be renumbered without copying the underlying storage: reads
// and writes against an external slot translate through perm to the slot
// that actually addresses raw.
type Permuted struct {
	raw  *VectorValues
	perm map[key.Slot]key.Slot // external slot -> internal (raw) slot
}

// NewPermuted wraps raw with the identity permutation.
func NewPermuted(raw *VectorValues) *Permuted {
	return &Permuted{raw: raw, perm: make(map[key.Slot]key.Slot)}
}

func (p *Permuted) internal(slot key.Slot) key.Slot {
	if s, ok := p.perm[slot]; ok {
		return s
	}
	return slot
}

// At returns the vector at the external slot.
func (p *Permuted) At(slot key.Slot) []float64 {
	return p.raw.At(p.internal(slot))
}

// Set writes the vector at the external slot.
func (p *Permuted) Set(slot key.Slot, v []float64) {
	p.raw.Set(p.internal(slot), v)
}

// Has reports whether the external slot has an entry.
func (p *Permuted) Has(slot key.Slot) bool {
	return p.raw.Has(p.internal(slot))
}

// Remap installs a new external->internal mapping for slot without moving
// any data, the "lazy" part of the lazy permutation.
func (p *Permuted) Remap(external, internal key.Slot) {
	p.perm[external] = internal
}

// Unpermute materializes a plain VectorValues addressed by the external
// slots in externalSlots, copying through the permutation. Collaborators
// that expect contiguous, Key-indexed output should call this rather than
// walk Permuted directly.
func (p *Permuted) Unpermute(externalSlots []key.Slot) *VectorValues {
	out := NewVectorValues()
	for _, s := range externalSlots {
		if v := p.At(s); v != nil {
			out.Set(s, v)
		}
	}
	return out
}

// Raw exposes the backing storage for callers (wildfire, relinearization)
// that need direct slot addressing without going through External slots.
func (p *Permuted) Raw() *VectorValues { return p.raw }
