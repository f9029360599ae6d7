// Package scenario builds the pose-chain factor graphs spec.md 8 exercises
// (S1's three-pose chain and S2's loop-closure-terminated ten-pose chain),
// so both the demo binary and the solver's scenario tests drive the same
// construction.
package scenario

import (
	"github.com/isam2go/isam2/internal/key"
	"github.com/isam2go/isam2/internal/nonlinear"
	"github.com/isam2go/isam2/internal/values"
)

// PoseTag identifies a Pose2 variable in the key space, following the
// pose2SLAM example's convention of one letter per variable type.
const PoseTag byte = 'x'

// Pose returns the key for the i'th pose (1-indexed, matching spec.md 8's
// Pose[1], Pose[2], ... numbering).
func Pose(i int) key.Key {
	return key.NewKey(PoseTag, uint64(i))
}

// Update is one call's worth of input to ISAM2.Update: new factors and the
// initial values for any new variables they introduce. It carries no
// factor removals.
type Update struct {
	Factors []nonlinear.Factor
	Values  map[key.Key]values.Value
}

// ThreePoseChain builds spec.md 8's S1 scenario as a single Update: a prior
// on Pose[1] and an odometry factor to Pose[2], with the initial values
// perturbed away from the true (0,0,0)/(2,0,0) solution.
func ThreePoseChain() Update {
	return Update{
		Factors: []nonlinear.Factor{
			&nonlinear.PriorFactor{
				Key:      Pose(1),
				Measured: values.Pose2{X: 0, Y: 0, Theta: 0},
				Sigmas:   []float64{0.3, 0.3, 0.1},
			},
			&nonlinear.BetweenFactor{
				Key1:     Pose(1),
				Key2:     Pose(2),
				Measured: values.Pose2{X: 2, Y: 0, Theta: 0},
				Sigmas:   []float64{0.2, 0.2, 0.1},
			},
		},
		Values: map[key.Key]values.Value{
			Pose(1): values.Pose2{X: 0.5, Y: 0, Theta: 0.2},
			Pose(2): values.Pose2{X: 2.3, Y: 0.1, Theta: -0.2},
		},
	}
}

// TenPoseChain builds spec.md 8's S2 scenario as eleven sequential Updates:
// a prior plus nine odometry steps (each introducing the next pose, ten
// poses total), followed by a loop-closure BetweenFactor between Pose[1]
// and Pose[10] that references no new variable.
func TenPoseChain() []Update {
	const n = 10
	sigmas := []float64{0.2, 0.2, 0.1}
	updates := make([]Update, 0, n+1)

	updates = append(updates, Update{
		Factors: []nonlinear.Factor{
			&nonlinear.PriorFactor{
				Key:      Pose(1),
				Measured: values.Pose2{X: 0, Y: 0, Theta: 0},
				Sigmas:   []float64{0.3, 0.3, 0.1},
			},
		},
		Values: map[key.Key]values.Value{
			Pose(1): values.Pose2{X: 0, Y: 0, Theta: 0},
		},
	})

	for i := 1; i < n; i++ {
		x := float64(i) * 2
		updates = append(updates, Update{
			Factors: []nonlinear.Factor{
				&nonlinear.BetweenFactor{
					Key1:     Pose(i),
					Key2:     Pose(i + 1),
					Measured: values.Pose2{X: 2, Y: 0, Theta: 0},
					Sigmas:   sigmas,
				},
			},
			Values: map[key.Key]values.Value{
				Pose(i + 1): values.Pose2{X: x + 0.1, Y: -0.05, Theta: 0.01},
			},
		})
	}

	updates = append(updates, Update{
		Factors: []nonlinear.Factor{
			&nonlinear.BetweenFactor{
				Key1:     Pose(1),
				Key2:     Pose(n),
				Measured: values.Pose2{X: 2 * (n - 1), Y: 0, Theta: 0},
				Sigmas:   sigmas,
			},
		},
	})

	return updates
}
