package main

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/isam2go/isam2/internal/solver"
)

func mustBindPFlag(viperKey string, flag *cobra.Command, flagName string) {
	if err := viper.BindPFlag(viperKey, flag.Flags().Lookup(flagName)); err != nil {
		panic("failed to bind pflag: " + err.Error())
	}
}

// bindRunFlags binds the run command's flags to the dotted viper keys
// solver.LoadParams reads, mirroring the teacher's bindRunFlags.
func bindRunFlags(cmd *cobra.Command) {
	defaults := solver.DefaultParams()
	flags := cmd.Flags()

	flags.String("scenario", "s1", "which spec.md 8 scenario to run: s1 (three-pose chain) or s2 (ten-pose loop closure)")
	mustBindPFlag("scenario", cmd, "scenario")

	flags.String("log-level", "info", "debug|info|warn|error")
	mustBindPFlag("log-level", cmd, "log-level")

	flags.String("optimization-kind", "gauss-newton", "gauss-newton or dogleg")
	mustBindPFlag("optimization.kind", cmd, "optimization-kind")

	flags.Float64("wildfire-threshold", defaults.Optimization.WildfireThreshold, "wildfire back-substitution short-circuit threshold")
	mustBindPFlag("optimization.wildfire_threshold", cmd, "wildfire-threshold")

	flags.Float64("initial-delta", solver.DefaultInitialDelta, "dog-leg initial trust-region radius")
	mustBindPFlag("optimization.initial_delta", cmd, "initial-delta")

	flags.Float64("relinearize-threshold", defaults.RelinearizeThreshold.Scalar, "scalar relinearization threshold")
	mustBindPFlag("relinearize.threshold", cmd, "relinearize-threshold")

	flags.Int("relinearize-skip", defaults.RelinearizeSkip, "check relinearization every Nth update")
	mustBindPFlag("relinearize.skip", cmd, "relinearize-skip")

	flags.Bool("relinearize-enabled", defaults.EnableRelinearization, "enable fluid relinearization")
	mustBindPFlag("relinearize.enabled", cmd, "relinearize-enabled")

	flags.Bool("evaluate-nonlinear-error", defaults.EvaluateNonlinearError, "compute errorBefore/errorAfter each update")
	mustBindPFlag("evaluate_nonlinear_error", cmd, "evaluate-nonlinear-error")

	flags.String("factorization", defaults.Factorization.String(), "LDL or QR")
	mustBindPFlag("factorization", cmd, "factorization")

	flags.Bool("cache-linearized-factors", defaults.CacheLinearizedFactors, "cache unchanged factors' linearization across updates")
	mustBindPFlag("cache_linearized_factors", cmd, "cache-linearized-factors")

	flags.Bool("enable-detailed-results", defaults.EnableDetailedResults, "populate UpdateResult.Detail per variable")
	mustBindPFlag("enable_detailed_results", cmd, "enable-detailed-results")
}
