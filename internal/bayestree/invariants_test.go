package bayestree_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/isam2go/isam2/internal/bayestree"
	"github.com/isam2go/isam2/internal/elimination"
	"github.com/isam2go/isam2/internal/key"
	"github.com/isam2go/isam2/internal/linalg"
)

// unitJacobian builds a trivial diagonal JacobianFactor touching one or two
// scalar variables, enough to drive the elimination engine without pulling
// in the nonlinear package (which would create an import cycle with the
// package under test's _test binary).
func unitJacobian(keys ...key.Key) *linalg.JacobianFactor {
	n := len(keys)
	blocks := make(map[key.Key]*mat.Dense, n)
	for i, k := range keys {
		col := mat.NewDense(n, 1, nil)
		col.Set(i, 0, 1)
		blocks[k] = col
	}
	return &linalg.JacobianFactor{Keys: keys, Blocks: blocks, B: mat.NewVecDense(n, nil)}
}

// chainGraph builds a simple prior + odometry chain on n scalar variables
// x0..x(n-1), enough to exercise a non-trivial elimination-tree shape.
func chainGraph(n int) ([]linalg.LinearFactor, []key.Key) {
	keys := make([]key.Key, n)
	for i := range keys {
		keys[i] = key.NewKey('x', uint64(i))
	}
	var factors []linalg.LinearFactor
	factors = append(factors, unitJacobian(keys[0]))
	for i := 0; i+1 < n; i++ {
		factors = append(factors, unitJacobian(keys[i], keys[i+1]))
	}
	return factors, keys
}

func buildTree(t *testing.T, n int) (*bayestree.BayesTree, []key.Key) {
	t.Helper()
	factors, keys := chainGraph(n)
	result, err := elimination.Build(factors, keys, linalg.LDL)
	require.NoError(t, err)

	tree := bayestree.New()
	var insert func(c *bayestree.Clique, parent int)
	insert = func(c *bayestree.Clique, parent int) {
		idx := tree.Insert(c, parent)
		for _, ch := range result.Children[c] {
			insert(ch, idx)
		}
	}
	for _, root := range result.Roots {
		insert(root, -1)
	}
	return tree, keys
}

// TestRunningIntersectionHoldsAfterBatchElimination is P1: building a tree
// from a fresh batch elimination must satisfy the running-intersection
// property everywhere.
func TestRunningIntersectionHoldsAfterBatchElimination(t *testing.T) {
	tree, _ := buildTree(t, 8)
	assert.Equal(t, -1, tree.CheckRunningIntersection())
}

// TestCoverageIsExactlyTheOrderingAfterBatchElimination is P2: every
// variable is owned by exactly one clique, and the union of frontals is
// precisely the full variable set.
func TestCoverageIsExactlyTheOrderingAfterBatchElimination(t *testing.T) {
	tree, keys := buildTree(t, 8)
	missing, duplicated := tree.CheckCoverage(keys)
	assert.Empty(t, missing)
	assert.Empty(t, duplicated)

	var owned []key.Key
	tree.Traverse(func(_ int, c *bayestree.Clique) bool {
		owned = append(owned, c.Frontals()...)
		return true
	})
	assert.Len(t, owned, len(keys))
}

// TestDetachSubtreeAboveYieldsOrphansWithBoundaryFactors exercises
// DetachSubtreeAbove and verifies every clique just below the cut survives
// as an orphan carrying its cached residual factor (the boundary-factor
// invariant DESIGN.md documents against P6).
func TestDetachSubtreeAboveYieldsOrphansWithBoundaryFactors(t *testing.T) {
	tree, keys := buildTree(t, 8)

	leafIdx, ok := tree.CliqueOf(keys[len(keys)-1])
	require.True(t, ok)
	children := tree.ChildrenOf(leafIdx)

	removed := tree.DetachSubtreeAbove(leafIdx)
	assert.Contains(t, removed, leafIdx)

	for _, ch := range children {
		c := tree.Clique(ch)
		if c == nil {
			continue
		}
		assert.Equal(t, -1, c.Parent, "orphan must be unlinked from its removed parent")
	}

	for _, idx := range removed {
		assert.Nil(t, tree.Clique(idx), "detached clique must no longer be addressable")
	}
}

// TestAttachRewiresOrphansWhoseSeparatorIsCovered verifies Attach only
// reattaches an orphan under a new clique whose frontals actually cover
// the orphan's separator, preserving the running-intersection property
// across a detach/re-attach cycle.
func TestAttachRewiresOrphansWhoseSeparatorIsCovered(t *testing.T) {
	tree, keys := buildTree(t, 4)

	rootIdx := tree.Roots()[0]
	rootFrontals := tree.Clique(rootIdx).Frontals()

	leafIdx, ok := tree.CliqueOf(keys[len(keys)-1])
	require.True(t, ok)
	tree.DetachSubtreeAbove(leafIdx)

	newClique := bayestree.NewClique(nil, nil)
	newIdx := tree.Attach(newClique, -1, []int{rootIdx}, func(child *bayestree.Clique) bool {
		for _, f := range child.Frontals() {
			found := false
			for _, rf := range rootFrontals {
				if f == rf {
					found = true
					break
				}
			}
			if !found {
				return false
			}
		}
		return true
	})

	assert.Equal(t, newIdx, tree.Clique(rootIdx).Parent)
	assert.Equal(t, -1, tree.CheckRunningIntersection())
}
