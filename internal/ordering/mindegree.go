package ordering

import (
	"sort"

	"github.com/emirpasic/gods/sets/hashset"

	"github.com/isam2go/isam2/internal/key"
)

// MinDegree produces a fill-reducing elimination order over keys, given the
// sets of keys that co-occur in a factor (factorKeys). It plays the role of
// the opaque order(factor_graph, constraints) procedure the rest of the
// package treats as an external collaborator.
//
// The heuristic is the classic minimum-degree rule: repeatedly eliminate
// the unconstrained key with the fewest live neighbors, then fold its
// remaining neighbors into a clique with each other (fill-in) before
// continuing. constrained keys, if any, are excluded from selection until
// every other key has been ordered, so they end up ordered last (and so
// become root-adjacent after elimination).
func MinDegree(keys []key.Key, factorKeys [][]key.Key, constrained map[key.Key]bool) []key.Key {
	neighbors := make(map[key.Key]*hashset.Set, len(keys))
	for _, k := range keys {
		neighbors[k] = hashset.New()
	}
	for _, fk := range factorKeys {
		for i := 0; i < len(fk); i++ {
			for j := 0; j < len(fk); j++ {
				if i == j {
					continue
				}
				if _, ok := neighbors[fk[i]]; ok {
					neighbors[fk[i]].Add(fk[j])
				}
			}
		}
	}

	remaining := make(map[key.Key]bool, len(keys))
	for _, k := range keys {
		remaining[k] = true
	}

	order := make([]key.Key, 0, len(keys))

	pickNext := func(eligible func(key.Key) bool) (key.Key, bool) {
		var best key.Key
		bestDeg := -1
		found := false
		// Deterministic tie-break: iterate in a stable order by sorting
		// candidate keys, since map iteration order is randomized.
		candidates := make([]key.Key, 0, len(remaining))
		for k := range remaining {
			if eligible(k) {
				candidates = append(candidates, k)
			}
		}
		sort.Slice(candidates, func(i, j int) bool { return candidates[i] < candidates[j] })
		for _, k := range candidates {
			deg := neighbors[k].Size()
			if !found || deg < bestDeg {
				best, bestDeg, found = k, deg, true
			}
		}
		return best, found
	}

	eliminate := func(k key.Key) {
		nbrs := neighbors[k].Values()
		for _, a := range nbrs {
			ak := a.(key.Key)
			if !remaining[ak] {
				continue
			}
			neighbors[ak].Remove(k)
			for _, b := range nbrs {
				bk := b.(key.Key)
				if ak == bk || !remaining[bk] {
					continue
				}
				neighbors[ak].Add(bk)
			}
		}
		delete(remaining, k)
	}

	unconstrainedLeft := func() bool {
		for k := range remaining {
			if !constrained[k] {
				return true
			}
		}
		return false
	}

	for unconstrainedLeft() {
		k, ok := pickNext(func(k key.Key) bool { return !constrained[k] })
		if !ok {
			break
		}
		order = append(order, k)
		eliminate(k)
	}
	for len(remaining) > 0 {
		k, ok := pickNext(func(key.Key) bool { return true })
		if !ok {
			break
		}
		order = append(order, k)
		eliminate(k)
	}

	return order
}
