// Package variableindex implements the per-variable factor adjacency and
// dimension bookkeeping used to find which factors a local re-elimination
// must touch.
package variableindex

import "github.com/isam2go/isam2/internal/key"

// VariableIndex maps each variable to the set of factor indices that
// mention it, and tracks each variable's manifold dimension.
type VariableIndex struct {
	factorsByKey map[key.Key]map[int]struct{}
	dims         map[key.Key]int
}

// New returns an empty VariableIndex.
func New() *VariableIndex {
	return &VariableIndex{
		factorsByKey: make(map[key.Key]map[int]struct{}),
		dims:         make(map[key.Key]int),
	}
}

// Factor is the minimal shape VariableIndex needs from a factor: the keys
// it touches, plus the dimension of each (for the first time each key is
// seen).
type Factor struct {
	Index int
	Keys  []key.Key
	Dims  []int // parallel to Keys
}

// Augment registers new factors, adding their indices to the per-variable
// lists and allocating a dimension the first time a key is seen.
func (vi *VariableIndex) Augment(factors []Factor) {
	for _, f := range factors {
		for i, k := range f.Keys {
			set, ok := vi.factorsByKey[k]
			if !ok {
				set = make(map[int]struct{})
				vi.factorsByKey[k] = set
			}
			set[f.Index] = struct{}{}
			if _, ok := vi.dims[k]; !ok {
				vi.dims[k] = f.Dims[i]
			}
		}
	}
}

// Remove scrubs factorIndices from every variable's list. Variables left
// with no factors retain their dimension entry (they may still be present
// in Values).
func (vi *VariableIndex) Remove(factorIndices []int) {
	toRemove := make(map[int]struct{}, len(factorIndices))
	for _, idx := range factorIndices {
		toRemove[idx] = struct{}{}
	}
	for k, set := range vi.factorsByKey {
		for idx := range toRemove {
			delete(set, idx)
		}
		if len(set) == 0 {
			delete(vi.factorsByKey, k)
		}
	}
}

// FactorsTouching returns the deduplicated union of factor indices that
// touch any key in keys.
func (vi *VariableIndex) FactorsTouching(keys []key.Key) []int {
	seen := make(map[int]struct{})
	for _, k := range keys {
		for idx := range vi.factorsByKey[k] {
			seen[idx] = struct{}{}
		}
	}
	out := make([]int, 0, len(seen))
	for idx := range seen {
		out = append(out, idx)
	}
	return out
}

// Dim returns the dimension allocated for k, and whether k has been seen.
func (vi *VariableIndex) Dim(k key.Key) (int, bool) {
	d, ok := vi.dims[k]
	return d, ok
}

// SetDim records the dimension for a key that was added directly via
// Values rather than discovered through Augment (e.g. a variable
// introduced with no factor touching it yet).
func (vi *VariableIndex) SetDim(k key.Key, dim int) {
	if _, ok := vi.dims[k]; !ok {
		vi.dims[k] = dim
	}
}

// Clone returns a deep copy, used to snapshot the variable index before a
// fallible update so it can be restored verbatim on rollback.
func (vi *VariableIndex) Clone() *VariableIndex {
	out := New()
	for k, set := range vi.factorsByKey {
		clone := make(map[int]struct{}, len(set))
		for idx := range set {
			clone[idx] = struct{}{}
		}
		out.factorsByKey[k] = clone
	}
	for k, d := range vi.dims {
		out.dims[k] = d
	}
	return out
}

// Factors returns the factor indices touching k.
func (vi *VariableIndex) Factors(k key.Key) []int {
	set := vi.factorsByKey[k]
	out := make([]int, 0, len(set))
	for idx := range set {
		out = append(out, idx)
	}
	return out
}
