package bayestree

import "github.com/isam2go/isam2/internal/key"

// CheckRunningIntersection verifies that for every clique, its separator is
// a subset of its parent's frontals-union-separator (the running
// intersection property a valid Bayes tree must satisfy). It returns the
// index of the first violating clique, or -1 if none.
func (t *BayesTree) CheckRunningIntersection() int {
	bad := -1
	t.Traverse(func(idx int, c *Clique) bool {
		if bad >= 0 {
			return false
		}
		if c.Parent < 0 {
			return true
		}
		parent := t.Clique(c.Parent)
		cover := make(map[key.Key]bool)
		for _, f := range parent.Frontals() {
			cover[f] = true
		}
		for _, s := range parent.Separator() {
			cover[s] = true
		}
		for _, s := range c.Separator() {
			if !cover[s] {
				bad = idx
				return false
			}
		}
		return true
	})
	return bad
}

// CheckCoverage verifies that every key in want is owned by exactly one
// live clique as a frontal, returning the keys that are missing or
// duplicated.
func (t *BayesTree) CheckCoverage(want []key.Key) (missing []key.Key, duplicated []key.Key) {
	count := make(map[key.Key]int)
	t.Traverse(func(idx int, c *Clique) bool {
		for _, f := range c.Frontals() {
			count[f]++
		}
		return true
	})
	for _, k := range want {
		switch count[k] {
		case 0:
			missing = append(missing, k)
		case 1:
		default:
			duplicated = append(duplicated, k)
		}
	}
	return missing, duplicated
}
