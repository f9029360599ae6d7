package solver

import "github.com/isam2go/isam2/internal/key"

// VariableDetail is one entry of UpdateResult.Detail, populated only when
// ISAM2Params.EnableDetailedResults is set, per spec.md 6.
type VariableDetail struct {
	Key                  key.Key
	Reeliminated         bool
	AboveRelinThreshold  bool
	RelinearizeInvolved  bool
	Relinearized         bool
	Observed             bool
	New                  bool
	InRootClique         bool
}

// UpdateResult is the payload returned by ISAM2.Update, per spec.md 6.
type UpdateResult struct {
	ErrorBefore *float64
	ErrorAfter  *float64

	VariablesRelinearized int
	VariablesReeliminated int
	Cliques               int

	NewFactorIndices []int

	Detail []VariableDetail
}
