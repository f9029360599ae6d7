package linalg

import (
	"gonum.org/v1/gonum/mat"

	"github.com/isam2go/isam2/internal/key"
)

// LinearFactor is either a JacobianFactor or a HessianFactor, the two
// representations a factor can take once linearized: a whitened Jacobian
// block with a residual vector, or a symmetric augmented information
// matrix. Both can be combined and have their first variable eliminated.
type LinearFactor interface {
	VarKeys() []key.Key
}

// JacobianFactor stacks a whitened Jacobian A_i per key against a whitened
// residual b: the row-space representation of a linear factor.
type JacobianFactor struct {
	Keys   []key.Key
	Blocks map[key.Key]*mat.Dense // rows x dim(key)
	B      *mat.VecDense          // length rows
}

func (jf *JacobianFactor) VarKeys() []key.Key { return jf.Keys }

// Rows returns the row count (residual dimension) of the factor.
func (jf *JacobianFactor) Rows() int { return jf.B.Len() }

// Dim returns the column width of the block for k, or 0 if jf doesn't
// touch k.
func (jf *JacobianFactor) Dim(k key.Key) int {
	b, ok := jf.Blocks[k]
	if !ok {
		return 0
	}
	_, c := b.Dims()
	return c
}

// CombineJacobians row-stacks a set of Jacobian factors over the union of
// their keys, zero-filling the columns of any key a given factor doesn't
// touch. This is FACTOR::Combine from the elimination tree: the joint
// factor hanging at one elimination-tree node before its frontal variable
// is eliminated.
func CombineJacobians(factors []*JacobianFactor) *JacobianFactor {
	var order []key.Key
	seen := make(map[key.Key]bool)
	dims := make(map[key.Key]int)
	totalRows := 0
	for _, f := range factors {
		totalRows += f.Rows()
		for _, k := range f.Keys {
			if !seen[k] {
				seen[k] = true
				order = append(order, k)
				dims[k] = f.Dim(k)
			}
		}
	}

	blocks := make(map[key.Key]*mat.Dense, len(order))
	for _, k := range order {
		blocks[k] = mat.NewDense(totalRows, dims[k], nil)
	}
	b := mat.NewVecDense(totalRows, nil)

	rowOff := 0
	for _, f := range factors {
		rows := f.Rows()
		for _, k := range f.Keys {
			src := f.Blocks[k]
			dst := blocks[k]
			dst.Slice(rowOff, rowOff+rows, 0, dims[k]).(*mat.Dense).Copy(src)
		}
		for r := 0; r < rows; r++ {
			b.SetVec(rowOff+r, f.B.AtVec(r))
		}
		rowOff += rows
	}

	return &JacobianFactor{Keys: order, Blocks: blocks, B: b}
}

// stackedJacobian returns the full rows x totalCols matrix with frontal
// placed first, followed by sep in the given order, along with the column
// width of each.
func (jf *JacobianFactor) stackedJacobian(frontal key.Key, sep []key.Key) (*mat.Dense, int, []int) {
	rows := jf.Rows()
	dF := jf.Dim(frontal)
	sepDims := make([]int, len(sep))
	totalCols := dF
	for i, k := range sep {
		sepDims[i] = jf.Dim(k)
		totalCols += sepDims[i]
	}
	a := mat.NewDense(rows, totalCols, nil)
	a.Slice(0, rows, 0, dF).(*mat.Dense).Copy(jf.Blocks[frontal])
	col := dF
	for i, k := range sep {
		a.Slice(0, rows, col, col+sepDims[i]).(*mat.Dense).Copy(jf.Blocks[k])
		col += sepDims[i]
	}
	return a, dF, sepDims
}
