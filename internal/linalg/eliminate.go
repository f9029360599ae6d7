package linalg

import (
	"gonum.org/v1/gonum/mat"

	"github.com/isam2go/isam2/internal/key"
)

// EliminateNode combines the factors hanging at one elimination-tree node
// (this node's own factors plus the separator factors produced by its
// children) and eliminates frontal, the node's variable, using method.
// It returns the resulting conditional p(frontal | sep) and the joint
// factor on sep to pass to the parent.
func EliminateNode(factors []LinearFactor, frontal key.Key, method Factorization) (*GaussianConditional, LinearFactor, error) {
	if method == QR {
		jfs := make([]*JacobianFactor, 0, len(factors))
		for _, f := range factors {
			jf, ok := f.(*JacobianFactor)
			if !ok {
				// QR works on row-stacked Jacobians only. A HessianFactor
				// here is a residual from an earlier LDL elimination (for
				// example an orphan's cached boundary factor handed to a
				// QR retry), and QR cannot eliminate it.
				return nil, nil, ErrIndefiniteLinearSystem
			}
			jfs = append(jfs, jf)
		}
		joint := CombineJacobians(jfs)
		return eliminateFirstQR(joint, frontal)
	}
	joint := CombineInformation(factors)
	return eliminateFirstLDL(joint, frontal)
}

func eliminateFirstQR(joint *JacobianFactor, frontal key.Key) (*GaussianConditional, *JacobianFactor, error) {
	var sep []key.Key
	for _, k := range joint.Keys {
		if k != frontal {
			sep = append(sep, k)
		}
	}

	a, dF, sepDims := joint.stackedJacobian(frontal, sep)
	rows, _ := a.Dims()
	totalSep := 0
	for _, d := range sepDims {
		totalSep += d
	}

	afrontal := mat.DenseCopyOf(a.Slice(0, rows, 0, dF))

	var qr mat.QR
	qr.Factorize(afrontal)
	var q, rfull mat.Dense
	qr.QTo(&q)
	qr.RTo(&rfull)

	rest := mat.NewDense(rows, totalSep+1, nil)
	if totalSep > 0 {
		rest.Slice(0, rows, 0, totalSep).(*mat.Dense).Copy(a.Slice(0, rows, dF, dF+totalSep))
	}
	for r := 0; r < rows; r++ {
		rest.Set(r, totalSep, joint.B.AtVec(r))
	}

	var rotated mat.Dense
	rotated.Mul(q.T(), rest)

	R := mat.DenseCopyOf(rfull.Slice(0, dF, 0, dF))
	var S *mat.Dense
	if totalSep > 0 {
		S = mat.DenseCopyOf(rotated.Slice(0, dF, 0, totalSep))
	} else {
		S = mat.NewDense(dF, 0, nil)
	}
	d := mat.NewVecDense(dF, nil)
	for r := 0; r < dF; r++ {
		d.SetVec(r, rotated.At(r, totalSep))
	}

	cond := &GaussianConditional{
		Frontal: frontal, FrontalDim: dF,
		Sep: sep, SepDims: sepDims,
		R: R, S: S, D: d,
	}

	resRows := rows - dF
	residual := &JacobianFactor{
		Keys:   append([]key.Key(nil), sep...),
		Blocks: make(map[key.Key]*mat.Dense, len(sep)),
		B:      mat.NewVecDense(maxInt(resRows, 0), nil),
	}
	if resRows > 0 {
		col := 0
		for i, k := range sep {
			residual.Blocks[k] = mat.DenseCopyOf(rotated.Slice(dF, rows, col, col+sepDims[i]))
			col += sepDims[i]
		}
		for r := 0; r < resRows; r++ {
			residual.B.SetVec(r, rotated.At(dF+r, totalSep))
		}
	} else {
		for _, k := range sep {
			residual.Blocks[k] = mat.NewDense(0, joint.Dim(k), nil)
		}
	}

	return cond, residual, nil
}

func eliminateFirstLDL(joint *HessianFactor, frontal key.Key) (*GaussianConditional, *HessianFactor, error) {
	ordered := joint.Reordered(frontal)
	dF := ordered.dims[frontal]
	total, _ := ordered.Lambda.Dims()
	dS := total - dF

	lambda11 := mat.NewSymDense(dF, nil)
	for r := 0; r < dF; r++ {
		for c := r; c < dF; c++ {
			v := ordered.Lambda.At(r, c)
			lambda11.SetSym(r, c, v)
		}
	}

	var chol mat.Cholesky
	if ok := chol.Factorize(lambda11); !ok {
		return nil, nil, ErrIndefiniteLinearSystem
	}
	var l mat.TriDense
	chol.LTo(&l)

	lambda12 := mat.DenseCopyOf(ordered.Lambda.Slice(0, dF, dF, total))
	eta1 := mat.NewVecDense(dF, nil)
	for r := 0; r < dF; r++ {
		eta1.SetVec(r, ordered.Eta.AtVec(r))
	}

	var s mat.Dense
	if dS > 0 {
		if err := s.Solve(&l, lambda12); err != nil {
			return nil, nil, ErrIndefiniteLinearSystem
		}
	} else {
		s = *mat.NewDense(dF, 0, nil)
	}

	var dvec mat.VecDense
	if err := dvec.SolveVec(&l, eta1); err != nil {
		return nil, nil, ErrIndefiniteLinearSystem
	}

	var r1 mat.Dense
	r1.CloneFrom(l.T())

	sep := ordered.Keys[1:]
	sepDims := ordered.dims
	dims := make([]int, len(sep))
	for i, k := range sep {
		dims[i] = sepDims[k]
	}

	cond := &GaussianConditional{
		Frontal: frontal, FrontalDim: dF,
		Sep: sep, SepDims: dims,
		R: &r1, S: &s, D: &dvec,
	}

	if dS == 0 {
		return cond, NewHessianFactor(nil, nil, mat.NewDense(0, 0, nil), mat.NewVecDense(0, nil)), nil
	}

	lambda22 := mat.DenseCopyOf(ordered.Lambda.Slice(dF, total, dF, total))
	eta2 := mat.NewVecDense(dS, nil)
	for r := 0; r < dS; r++ {
		eta2.SetVec(r, ordered.Eta.AtVec(dF+r))
	}

	var sts mat.Dense
	sts.Mul(s.T(), &s)
	lambda22.Sub(lambda22, &sts)

	var std mat.VecDense
	std.MulVec(s.T(), &dvec)
	eta2.SubVec(eta2, &std)

	residual := NewHessianFactor(sep, dims, lambda22, eta2)
	return cond, residual, nil
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
