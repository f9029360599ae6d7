package ordering

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/isam2go/isam2/internal/key"
)

func TestAddAssignsMonotonicSlots(t *testing.T) {
	o := New()
	k1 := key.NewKey('x', 1)
	k2 := key.NewKey('x', 2)

	s1, err := o.Add(k1)
	require.NoError(t, err)
	s2, err := o.Add(k2)
	require.NoError(t, err)

	assert.Less(t, s1, s2)
	assert.Equal(t, 2, o.Size())

	got, ok := o.Slot(k1)
	require.True(t, ok)
	assert.Equal(t, s1, got)
}

func TestAddRejectsDuplicate(t *testing.T) {
	o := New()
	k := key.NewKey('x', 1)
	_, err := o.Add(k)
	require.NoError(t, err)
	_, err = o.Add(k)
	require.Error(t, err)
}

func TestRetireFreesKeyButNeverReusesSlot(t *testing.T) {
	o := New()
	k1 := key.NewKey('x', 1)
	k2 := key.NewKey('x', 2)
	s1, _ := o.Add(k1)
	o.Retire(k1)

	_, ok := o.Slot(k1)
	assert.False(t, ok)
	_, ok = o.Key(s1)
	assert.False(t, ok)

	s2, err := o.Add(k2)
	require.NoError(t, err)
	assert.NotEqual(t, s1, s2)
	assert.Greater(t, s2, s1)
}

func TestReassignGivesFreshSlotsInOrder(t *testing.T) {
	o := New()
	k1 := key.NewKey('x', 1)
	k2 := key.NewKey('x', 2)
	oldS1, _ := o.Add(k1)
	_, _ = o.Add(k2)

	newSlots := o.Reassign([]key.Key{k2, k1})

	require.Len(t, newSlots, 2)
	assert.NotEqual(t, oldS1, newSlots[1], "k1 must get a fresh slot, never its old one")

	gotK2, ok := o.Slot(k2)
	require.True(t, ok)
	assert.Equal(t, newSlots[0], gotK2)

	gotK1, ok := o.Slot(k1)
	require.True(t, ok)
	assert.Equal(t, newSlots[1], gotK1)
}

func TestCloneIsIndependent(t *testing.T) {
	o := New()
	k1 := key.NewKey('x', 1)
	_, _ = o.Add(k1)

	clone := o.Clone()
	k2 := key.NewKey('x', 2)
	_, _ = clone.Add(k2)

	assert.Equal(t, 1, o.Size())
	assert.Equal(t, 2, clone.Size())
}
