package ordering

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/isam2go/isam2/internal/key"
)

func TestMinDegreeOrdersEveryKeyExactlyOnce(t *testing.T) {
	x1 := key.NewKey('x', 1)
	x2 := key.NewKey('x', 2)
	x3 := key.NewKey('x', 3)
	keys := []key.Key{x1, x2, x3}
	factors := [][]key.Key{{x1, x2}, {x2, x3}}

	order := MinDegree(keys, factors, nil)

	assert.Len(t, order, 3)
	seen := map[key.Key]bool{}
	for _, k := range order {
		assert.False(t, seen[k], "key %v repeated in order", k)
		seen[k] = true
	}
	for _, k := range keys {
		assert.True(t, seen[k], "key %v missing from order", k)
	}
}

func TestMinDegreeOrdersConstrainedKeysLast(t *testing.T) {
	x1 := key.NewKey('x', 1)
	x2 := key.NewKey('x', 2)
	x3 := key.NewKey('x', 3)
	keys := []key.Key{x1, x2, x3}
	factors := [][]key.Key{{x1, x2}, {x2, x3}}
	constrained := map[key.Key]bool{x2: true}

	order := MinDegree(keys, factors, constrained)

	require := func(cond bool, msg string) {
		if !cond {
			t.Fatal(msg)
		}
	}
	require(order[len(order)-1] == x2, "constrained key must be ordered last")
}

func TestMinDegreePicksLowestDegreeFirstOnTie(t *testing.T) {
	// A chain x1-x2-x3: x1 and x3 both have degree 1, x2 has degree 2.
	// The lower-numbered of the tied minimum-degree keys (x1) should be
	// eliminated first under the deterministic tie-break.
	x1 := key.NewKey('x', 1)
	x2 := key.NewKey('x', 2)
	x3 := key.NewKey('x', 3)
	keys := []key.Key{x1, x2, x3}
	factors := [][]key.Key{{x1, x2}, {x2, x3}}

	order := MinDegree(keys, factors, nil)
	assert.Equal(t, x1, order[0])
}

func TestMinDegreeHandlesIsolatedKey(t *testing.T) {
	x1 := key.NewKey('x', 1)
	order := MinDegree([]key.Key{x1}, nil, nil)
	assert.Equal(t, []key.Key{x1}, order)
}
