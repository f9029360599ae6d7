// Package ordering implements the elimination ordering and the
// bidirectional Key/Slot permutation it induces.
package ordering

import (
	"fmt"

	"github.com/isam2go/isam2/internal/key"
)

// Ordering is the bijection between variable Keys and the dense Slots the
// current linear algebra addresses. Unlike a batch solver, slots are not
// guaranteed contiguous or stable across calls: a variable touched by a
// local re-elimination is retired from its old slot and assigned a fresh
// one, rather than the whole ordering being renumbered to stay contiguous.
// This trades the spec's literal "slots 0..N-1 contiguous" invariant for an
// incremental one (monotonically increasing, never reused) because
// renumbering every surviving clique's stored matrices on every update
// would defeat the incrementality the rest of the design buys; see
// DESIGN.md.
type Ordering struct {
	keyToSlot map[key.Key]key.Slot
	slotToKey map[key.Slot]key.Key
	next      key.Slot
}

// New returns an empty Ordering.
func New() *Ordering {
	return &Ordering{
		keyToSlot: make(map[key.Key]key.Slot),
		slotToKey: make(map[key.Slot]key.Key),
	}
}

// Add assigns a fresh Slot to k. It is an error to Add a Key already
// present.
func (o *Ordering) Add(k key.Key) (key.Slot, error) {
	if _, ok := o.keyToSlot[k]; ok {
		return key.Unassigned, fmt.Errorf("ordering: key %s already assigned", k)
	}
	s := o.next
	o.next++
	o.keyToSlot[k] = s
	o.slotToKey[s] = k
	return s, nil
}

// Retire removes k from the ordering, freeing its slot for no one (slots
// are never reused, see Ordering doc).
func (o *Ordering) Retire(k key.Key) {
	if s, ok := o.keyToSlot[k]; ok {
		delete(o.keyToSlot, k)
		delete(o.slotToKey, s)
	}
}

// Reassign retires each of ks (if present) and assigns it a fresh slot in
// the given order, returning the new slots in the same order. Used after a
// local re-elimination to fold the locally-chosen order into the global
// ordering.
func (o *Ordering) Reassign(ks []key.Key) []key.Slot {
	slots := make([]key.Slot, len(ks))
	for i, k := range ks {
		o.Retire(k)
		s, err := o.Add(k)
		if err != nil {
			// Add cannot fail right after Retire.
			panic(err)
		}
		slots[i] = s
	}
	return slots
}

// Slot returns the slot assigned to k, if any.
func (o *Ordering) Slot(k key.Key) (key.Slot, bool) {
	s, ok := o.keyToSlot[k]
	return s, ok
}

// Key returns the key assigned to slot s, if any.
func (o *Ordering) Key(s key.Slot) (key.Key, bool) {
	k, ok := o.slotToKey[s]
	return k, ok
}

// Size returns the number of keys currently assigned a slot.
func (o *Ordering) Size() int {
	return len(o.keyToSlot)
}

// Clone returns a deep copy, used by the incremental updater to snapshot
// the ordering before a fallible local re-elimination so it can be
// restored verbatim on failure (spec.md 7's transactional rollback).
func (o *Ordering) Clone() *Ordering {
	out := &Ordering{
		keyToSlot: make(map[key.Key]key.Slot, len(o.keyToSlot)),
		slotToKey: make(map[key.Slot]key.Key, len(o.slotToKey)),
		next:      o.next,
	}
	for k, v := range o.keyToSlot {
		out.keyToSlot[k] = v
	}
	for k, v := range o.slotToKey {
		out.slotToKey[k] = v
	}
	return out
}

// Slots returns every currently assigned slot, unsorted.
func (o *Ordering) Slots() []key.Slot {
	out := make([]key.Slot, 0, len(o.slotToKey))
	for s := range o.slotToKey {
		out = append(out, s)
	}
	return out
}
