package values

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/isam2go/isam2/internal/key"
	"github.com/isam2go/isam2/internal/linalg"
	"github.com/isam2go/isam2/internal/ordering"
)

func TestVectorRetract(t *testing.T) {
	v := Vector{1, 2, 3}
	out := v.Retract([]float64{0.5, -1, 0})
	assert.Equal(t, []float64{1.5, 1, 3}, out.Vector())
}

func TestPose2RetractWrapsAngle(t *testing.T) {
	p := Pose2{X: 0, Y: 0, Theta: math.Pi - 0.1}
	out := p.Retract([]float64{0, 0, 0.5}).(Pose2)
	assert.InDelta(t, math.Pi-0.1+0.5-2*math.Pi, out.Theta, 1e-9)
	assert.GreaterOrEqual(t, out.Theta, -math.Pi)
	assert.LessOrEqual(t, out.Theta, math.Pi)
}

func TestValuesInsertRejectsDuplicate(t *testing.T) {
	v := New()
	k := key.NewKey('x', 1)
	require.NoError(t, v.Insert(k, Vector{0}))
	err := v.Insert(k, Vector{1})
	require.Error(t, err)
}

func TestValuesSetOverwrites(t *testing.T) {
	v := New()
	k := key.NewKey('x', 1)
	v.Set(k, Vector{1})
	v.Set(k, Vector{2})
	got, ok := v.At(k)
	require.True(t, ok)
	assert.Equal(t, Vector{2}, got)
}

func TestValuesCloneIsIndependent(t *testing.T) {
	v := New()
	k := key.NewKey('x', 1)
	require.NoError(t, v.Insert(k, Vector{1}))

	clone := v.Clone()
	clone.Set(k, Vector{99})

	orig, _ := v.At(k)
	assert.Equal(t, Vector{1}, orig)
}

func TestValuesRetractAppliesDeltaBySlot(t *testing.T) {
	v := New()
	k1 := key.NewKey('x', 1)
	k2 := key.NewKey('x', 2)
	require.NoError(t, v.Insert(k1, Vector{0, 0}))
	require.NoError(t, v.Insert(k2, Vector{10, 10}))

	ord := ordering.New()
	s1, err := ord.Add(k1)
	require.NoError(t, err)
	_, err = ord.Add(k2)
	require.NoError(t, err)

	delta := linalg.NewVectorValues()
	delta.Insert(s1, []float64{1, 2})

	out := v.Retract(delta, ord)

	got1, _ := out.At(k1)
	assert.Equal(t, Vector{1, 2}, got1)

	got2, _ := out.At(k2)
	assert.Equal(t, Vector{10, 10}, got2, "k2 has no delta entry so it is copied unchanged")
}

func TestValuesHasAndSize(t *testing.T) {
	v := New()
	k := key.NewKey('x', 1)
	assert.False(t, v.Has(k))
	assert.Equal(t, 0, v.Size())
	require.NoError(t, v.Insert(k, Vector{0}))
	assert.True(t, v.Has(k))
	assert.Equal(t, 1, v.Size())
}
