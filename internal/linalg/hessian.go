package linalg

import (
	"gonum.org/v1/gonum/mat"

	"github.com/isam2go/isam2/internal/key"
)

// HessianFactor is the information-form representation of a linear factor:
// a symmetric augmented information matrix Lambda and information vector
// Eta over Keys, i.e. the quadratic form 1/2 x^T Lambda x - Eta^T x. LDL
// elimination produces these as the residual passed up the elimination
// tree, since the Schur complement it computes is naturally in information
// form.
type HessianFactor struct {
	Keys   []key.Key
	Lambda *mat.Dense    // block-symmetric, size sum(dims) x sum(dims)
	Eta    *mat.VecDense // size sum(dims)
	dims   map[key.Key]int
	offset map[key.Key]int
}

func (hf *HessianFactor) VarKeys() []key.Key { return hf.Keys }

// NewHessianFactor builds a HessianFactor over keys with the given
// per-key dimensions, backed by lambda/eta already laid out in that key
// order.
func NewHessianFactor(keys []key.Key, dims []int, lambda *mat.Dense, eta *mat.VecDense) *HessianFactor {
	off := make(map[key.Key]int, len(keys))
	dm := make(map[key.Key]int, len(keys))
	o := 0
	for i, k := range keys {
		off[k] = o
		dm[k] = dims[i]
		o += dims[i]
	}
	return &HessianFactor{Keys: keys, Lambda: lambda, Eta: eta, dims: dm, offset: off}
}

// Dim returns the block width allocated to k.
func (hf *HessianFactor) Dim(k key.Key) int { return hf.dims[k] }

// Block returns the Lambda sub-block relating a to b.
func (hf *HessianFactor) Block(a, b key.Key) *mat.Dense {
	oa, ob := hf.offset[a], hf.offset[b]
	da, db := hf.dims[a], hf.dims[b]
	return hf.Lambda.Slice(oa, oa+da, ob, ob+db).(*mat.Dense)
}

// EtaBlock returns the Eta sub-vector for k.
func (hf *HessianFactor) EtaBlock(k key.Key) *mat.VecDense {
	o, d := hf.offset[k], hf.dims[k]
	return mat.VecDenseCopyOf(hf.Eta.SliceVec(o, o+d))
}

// CombineInformation scatter-adds the information-form contribution of
// every factor (Jacobian factors contribute A^T A, A^T b; Hessian factors
// contribute their Lambda, Eta directly) into one HessianFactor over the
// union of keys. Used to assemble a joint node for LDL elimination.
func CombineInformation(factors []LinearFactor) *HessianFactor {
	var order []key.Key
	seen := make(map[key.Key]bool)
	dims := make(map[key.Key]int)

	contribLambda := func(f LinearFactor, a, b key.Key) *mat.Dense {
		switch v := f.(type) {
		case *JacobianFactor:
			ba, bb := v.Blocks[a], v.Blocks[b]
			if ba == nil || bb == nil {
				return nil
			}
			var m mat.Dense
			m.Mul(ba.T(), bb)
			return &m
		case *HessianFactor:
			if v.dims[a] == 0 || v.dims[b] == 0 {
				return nil
			}
			if _, ok := v.offset[a]; !ok {
				return nil
			}
			if _, ok := v.offset[b]; !ok {
				return nil
			}
			return v.Block(a, b)
		}
		return nil
	}
	contribEta := func(f LinearFactor, a key.Key) *mat.VecDense {
		switch v := f.(type) {
		case *JacobianFactor:
			ba := v.Blocks[a]
			if ba == nil {
				return nil
			}
			var e mat.VecDense
			e.MulVec(ba.T(), v.B)
			return &e
		case *HessianFactor:
			if _, ok := v.offset[a]; !ok {
				return nil
			}
			return v.EtaBlock(a)
		}
		return nil
	}

	for _, f := range factors {
		for _, k := range f.VarKeys() {
			if !seen[k] {
				seen[k] = true
				order = append(order, k)
				switch v := f.(type) {
				case *JacobianFactor:
					dims[k] = v.Dim(k)
				case *HessianFactor:
					dims[k] = v.Dim(k)
				}
			}
		}
	}

	total := 0
	offset := make(map[key.Key]int, len(order))
	for _, k := range order {
		offset[k] = total
		total += dims[k]
	}

	lambda := mat.NewDense(total, total, nil)
	eta := mat.NewVecDense(total, nil)

	for _, f := range factors {
		keys := f.VarKeys()
		for _, a := range keys {
			if e := contribEta(f, a); e != nil {
				oa, da := offset[a], dims[a]
				for r := 0; r < da; r++ {
					eta.SetVec(oa+r, eta.AtVec(oa+r)+e.AtVec(r))
				}
			}
			for _, b := range keys {
				if blk := contribLambda(f, a, b); blk != nil {
					oa, ob := offset[a], offset[b]
					da, db := dims[a], dims[b]
					for r := 0; r < da; r++ {
						for c := 0; c < db; c++ {
							lambda.Set(oa+r, ob+c, lambda.At(oa+r, ob+c)+blk.At(r, c))
						}
					}
				}
			}
		}
	}

	return NewHessianFactor(order, dimsSlice(order, dims), lambda, eta)
}

// Reordered returns an equivalent HessianFactor with frontal's block moved
// to offset 0, so that its Lambda/Eta can be sliced contiguously into
// frontal/separator quadrants during elimination.
func (hf *HessianFactor) Reordered(frontal key.Key) *HessianFactor {
	rest := make([]key.Key, 0, len(hf.Keys)-1)
	for _, k := range hf.Keys {
		if k != frontal {
			rest = append(rest, k)
		}
	}
	order := append([]key.Key{frontal}, rest...)
	dims := dimsSlice(order, hf.dims)

	total := 0
	offset := make(map[key.Key]int, len(order))
	for i, k := range order {
		offset[k] = total
		total += dims[i]
	}

	lambda := mat.NewDense(total, total, nil)
	eta := mat.NewVecDense(total, nil)
	for _, a := range order {
		oa := offset[a]
		for r := 0; r < hf.dims[a]; r++ {
			eta.SetVec(oa+r, hf.EtaBlock(a).AtVec(r))
		}
		for _, b := range order {
			blk := hf.Block(a, b)
			ob := offset[b]
			for r := 0; r < hf.dims[a]; r++ {
				for c := 0; c < hf.dims[b]; c++ {
					lambda.Set(oa+r, ob+c, blk.At(r, c))
				}
			}
		}
	}
	return NewHessianFactor(order, dims, lambda, eta)
}

func dimsSlice(order []key.Key, dims map[key.Key]int) []int {
	out := make([]int, len(order))
	for i, k := range order {
		out[i] = dims[k]
	}
	return out
}
