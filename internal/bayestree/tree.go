package bayestree

import (
	"github.com/isam2go/isam2/internal/key"
)

// BayesTree is an arena-backed forest of Clique nodes. Cliques reference
// parent and children by index into cliques rather than by pointer, and a
// removed clique's slot is left nil rather than compacted, so that indices
// handed out earlier (e.g. to a key-to-clique map) stay valid until the
// caller explicitly reindexes.
type BayesTree struct {
	cliques []*Clique
	roots   []int
	owner   map[key.Key]int // frontal key -> clique index
}

// New returns an empty Bayes tree.
func New() *BayesTree {
	return &BayesTree{owner: make(map[key.Key]int)}
}

// Insert adds clique to the arena, wiring it to parentIdx (-1 for a new
// root), and returns its index.
func (t *BayesTree) Insert(clique *Clique, parentIdx int) int {
	idx := len(t.cliques)
	t.cliques = append(t.cliques, clique)
	clique.Parent = parentIdx
	if parentIdx < 0 {
		t.roots = append(t.roots, idx)
	} else {
		parent := t.cliques[parentIdx]
		parent.Children = append(parent.Children, idx)
	}
	for _, f := range clique.Frontals() {
		t.owner[f] = idx
	}
	return idx
}

// Clique returns the clique at idx, or nil if idx is out of range or has
// been removed.
func (t *BayesTree) Clique(idx int) *Clique {
	if idx < 0 || idx >= len(t.cliques) {
		return nil
	}
	return t.cliques[idx]
}

// CliqueOf returns the index of the clique that has k as one of its
// frontals, and whether one was found.
func (t *BayesTree) CliqueOf(k key.Key) (int, bool) {
	idx, ok := t.owner[k]
	return idx, ok
}

// Roots returns the indices of every root clique.
func (t *BayesTree) Roots() []int {
	return append([]int(nil), t.roots...)
}

// Size returns the number of live (non-removed) cliques.
func (t *BayesTree) Size() int {
	n := 0
	for _, c := range t.cliques {
		if c != nil {
			n++
		}
	}
	return n
}

// DetachSubtreeAbove removes idx and every one of its ancestors up to and
// including the tree root, returning the removed indices in child-to-parent
// order (idx first). The cliques are unlinked from their parents and their
// frontals/variables are expected to be re-eliminated by the caller;
// DetachSubtreeAbove does not touch idx's own children, since those remain
// valid subtrees to be re-attached once the path above them is rebuilt.
func (t *BayesTree) DetachSubtreeAbove(idx int) []int {
	var removed []int
	cur := idx
	for cur >= 0 {
		c := t.cliques[cur]
		if c == nil {
			break
		}
		parent := c.Parent
		t.unlinkFromParent(cur)
		removed = append(removed, cur)
		for _, f := range c.Frontals() {
			delete(t.owner, f)
		}
		t.cliques[cur] = nil
		cur = parent
	}
	return removed
}

// AncestorsOf returns idx and every one of its ancestors up to the root, in
// child-to-parent order, without mutating the tree. The incremental updater
// uses this to plan a detach (compute the set of cliques and cached
// boundary factors a local re-elimination will need to replace) before
// committing to any mutation, so a failed local elimination leaves the tree
// untouched.
func (t *BayesTree) AncestorsOf(idx int) []int {
	var out []int
	cur := idx
	for cur >= 0 {
		c := t.Clique(cur)
		if c == nil {
			break
		}
		out = append(out, cur)
		cur = c.Parent
	}
	return out
}

// unlinkFromParent removes idx from its parent's child list (or the root
// list, if idx has no parent).
func (t *BayesTree) unlinkFromParent(idx int) {
	c := t.cliques[idx]
	if c.Parent < 0 {
		for i, r := range t.roots {
			if r == idx {
				t.roots = append(t.roots[:i], t.roots[i+1:]...)
				break
			}
		}
		return
	}
	parent := t.cliques[c.Parent]
	for i, ch := range parent.Children {
		if ch == idx {
			parent.Children = append(parent.Children[:i], parent.Children[i+1:]...)
			break
		}
	}
}

// ChildrenOf returns clique idx's children indices, read before any
// mutation — the incremental updater calls this immediately before
// DetachSubtreeAbove(idx) to remember which subtrees need re-attaching.
func (t *BayesTree) ChildrenOf(idx int) []int {
	c := t.Clique(idx)
	if c == nil {
		return nil
	}
	return append([]int(nil), c.Children...)
}

// Attach inserts clique as a new node with the given parent, and rewires
// each live entry of orphanIdx (previously-detached subtree roots) to be
// its child when reattach returns true for that orphan; the coverage test
// itself is left to the reattach callback.
func (t *BayesTree) Attach(clique *Clique, parentIdx int, orphanIdx []int, reattach func(child *Clique) bool) int {
	idx := t.Insert(clique, parentIdx)
	for _, o := range orphanIdx {
		oc := t.Clique(o)
		if oc == nil {
			continue
		}
		if reattach(oc) {
			oc.Parent = idx
			clique.Children = append(clique.Children, o)
		}
	}
	return idx
}

// Traverse visits every live clique in a top-down (root-to-leaf) order,
// suitable for wildfire back-substitution where a clique's separator must
// be resolved before its own frontals are.
func (t *BayesTree) Traverse(visit func(idx int, c *Clique) bool) {
	var walk func(idx int)
	walk = func(idx int) {
		c := t.Clique(idx)
		if c == nil {
			return
		}
		if !visit(idx, c) {
			return
		}
		for _, ch := range c.Children {
			walk(ch)
		}
	}
	for _, r := range t.roots {
		walk(r)
	}
}

// AllKeys returns every variable key owned (as a frontal) by some live
// clique.
func (t *BayesTree) AllKeys() []key.Key {
	out := make([]key.Key, 0, len(t.owner))
	for k := range t.owner {
		out = append(out, k)
	}
	return out
}
