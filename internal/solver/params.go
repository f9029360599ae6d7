package solver

import (
	"strings"

	"github.com/spf13/viper"

	"github.com/isam2go/isam2/internal/linalg"
	"github.com/isam2go/isam2/internal/relinearize"
	"github.com/isam2go/isam2/internal/stepcontrol"
)

// Default* constants mirror GTSAM's ISAM2GaussNewtonParams /
// ISAM2DoglegParams / ISAM2Params defaults, following the teacher's
// Default-constant-plus-struct config idiom.
const (
	DefaultWildfireThreshold     = 0.001
	DefaultDogLegWildfireThresh  = 1e-5
	DefaultInitialDelta          = 1.0
	DefaultRelinearizeThreshold  = 0.1
	DefaultRelinearizeSkip       = 10
	DefaultEnableRelinearization = true
	DefaultCacheLinearizedFactors = true
)

// OptimizationParams selects and configures the step controller
// (GaussNewtonKind or DogLegKind), as ISAM2Params.optimizationParams'
// boost::variant<ISAM2GaussNewtonParams, ISAM2DoglegParams> does in the
// original implementation.
type OptimizationParams struct {
	Kind              stepcontrol.Kind
	WildfireThreshold float64

	// DogLeg-only fields.
	InitialDelta   float64
	AdaptationMode stepcontrol.AdaptationMode
	Verbose        bool
}

// GaussNewtonParams builds the Gauss-Newton optimization variant.
func GaussNewtonParams(wildfireThreshold float64) OptimizationParams {
	return OptimizationParams{Kind: stepcontrol.GaussNewtonKind, WildfireThreshold: wildfireThreshold}
}

// DogLegParams builds the dog-leg optimization variant.
func DogLegParams(initialDelta, wildfireThreshold float64, mode stepcontrol.AdaptationMode) OptimizationParams {
	return OptimizationParams{
		Kind:              stepcontrol.DogLegKind,
		WildfireThreshold: wildfireThreshold,
		InitialDelta:      initialDelta,
		AdaptationMode:    mode,
	}
}

// ISAM2Params configures an ISAM2 instance, enumerating the recognized
// options of spec.md 6.
type ISAM2Params struct {
	Optimization           OptimizationParams
	RelinearizeThreshold   relinearize.Threshold
	RelinearizeSkip        int
	EnableRelinearization  bool
	EvaluateNonlinearError bool
	Factorization          linalg.Factorization
	CacheLinearizedFactors bool
	EnableDetailedResults  bool
}

// DefaultParams returns the ISAM2Params GTSAM ships as defaults: Gauss-
// Newton optimization, a scalar relinearization threshold of 0.1 checked
// every 10th update, relinearization and factor caching enabled, LDL
// factorization.
func DefaultParams() ISAM2Params {
	return ISAM2Params{
		Optimization:           GaussNewtonParams(DefaultWildfireThreshold),
		RelinearizeThreshold:   relinearize.Threshold{Kind: relinearize.Scalar, Scalar: DefaultRelinearizeThreshold},
		RelinearizeSkip:        DefaultRelinearizeSkip,
		EnableRelinearization:  DefaultEnableRelinearization,
		Factorization:          linalg.LDL,
		CacheLinearizedFactors: DefaultCacheLinearizedFactors,
	}
}

// LoadParams reads ISAM2Params from v (flags/env/YAML, however the caller
// configured it), falling back to DefaultParams() for anything unset,
// mirroring the teacher's viper-backed config loading in cmd/root.go and
// internal/server/config.
func LoadParams(v *viper.Viper) (ISAM2Params, error) {
	p := DefaultParams()

	if v.IsSet("optimization.kind") && v.GetString("optimization.kind") == "dogleg" {
		p.Optimization = DogLegParams(
			getFloatOr(v, "optimization.initial_delta", DefaultInitialDelta),
			getFloatOr(v, "optimization.wildfire_threshold", DefaultDogLegWildfireThresh),
			stepcontrol.SearchEachIteration,
		)
		p.Optimization.Verbose = v.GetBool("optimization.verbose")
	} else if v.IsSet("optimization.wildfire_threshold") {
		p.Optimization.WildfireThreshold = v.GetFloat64("optimization.wildfire_threshold")
	}

	if v.IsSet("relinearize.threshold") {
		p.RelinearizeThreshold = relinearize.Threshold{Kind: relinearize.Scalar, Scalar: v.GetFloat64("relinearize.threshold")}
	}
	if v.IsSet("relinearize.skip") {
		p.RelinearizeSkip = v.GetInt("relinearize.skip")
	}
	if v.IsSet("relinearize.enabled") {
		p.EnableRelinearization = v.GetBool("relinearize.enabled")
	}
	if v.IsSet("evaluate_nonlinear_error") {
		p.EvaluateNonlinearError = v.GetBool("evaluate_nonlinear_error")
	}
	if v.IsSet("factorization") && strings.EqualFold(v.GetString("factorization"), linalg.QR.String()) {
		p.Factorization = linalg.QR
	}
	if v.IsSet("cache_linearized_factors") {
		p.CacheLinearizedFactors = v.GetBool("cache_linearized_factors")
	}
	if v.IsSet("enable_detailed_results") {
		p.EnableDetailedResults = v.GetBool("enable_detailed_results")
	}

	return p, nil
}

func getFloatOr(v *viper.Viper, k string, def float64) float64 {
	if v.IsSet(k) {
		return v.GetFloat64(k)
	}
	return def
}
