// Package key defines the opaque variable identifier used by nonlinear
// factors and Values, and the dense Slot addressing assigned by the current
// elimination ordering.
package key

import "fmt"

// Key identifies a variable. It packs a one-byte type tag into the top byte
// and a 56-bit index into the rest, following the Symbol convention used by
// factor-graph estimation systems: a Pose variable and a landmark variable
// with the same numeric index remain distinguishable.
type Key uint64

// NewKey builds a Key from a type tag character and an index.
func NewKey(tag byte, index uint64) Key {
	return Key(uint64(tag)<<56 | (index & 0x00FFFFFFFFFFFFFF))
}

// Tag returns the type tag character this Key was constructed with.
func (k Key) Tag() byte {
	return byte(k >> 56)
}

// Index returns the numeric index this Key was constructed with.
func (k Key) Index() uint64 {
	return uint64(k) & 0x00FFFFFFFFFFFFFF
}

func (k Key) String() string {
	return fmt.Sprintf("%c%d", k.Tag(), k.Index())
}

// Slot is the integer address assigned by the current elimination
// ordering. Slots are handed out in increasing order and never reused, so
// they need not be contiguous (see ordering.Ordering). All linear algebra
// addresses Slots, never Keys.
type Slot int

// Unassigned is the sentinel Slot value for a Key not present in an
// ordering.
const Unassigned Slot = -1
