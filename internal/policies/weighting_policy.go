package policies

import (
	"fmt"
	"math"
	"strings"

	"github.com/ZanzyTHEbar/errbuilder-go"

	"dependency-metrics/internal/ports"
	"dependency-metrics/internal/types"
)

var _ ports.WeightingPort = WeightingPolicy{}

// WeightingPolicy maps the age of an interval, in days before the window
// end, to a weight in [0,1].
type WeightingPolicy struct {
	Type     types.WeightingType
	HalfLife float64
	MaxAge   float64
	lambda   float64
}

// NewWeightingPolicy validates cfg against the analysis window. Exponential
// weighting without a positive half-life and unknown types are rejected.
func NewWeightingPolicy(cfg types.WeightingConfig, window types.AnalysisWindow) (WeightingPolicy, error) {
	kind := types.WeightingType(strings.ToLower(strings.TrimSpace(string(cfg.Type))))
	if kind == "" {
		kind = types.WeightingDisable
	}
	policy := WeightingPolicy{
		Type:   kind,
		MaxAge: math.Floor(window.End.Sub(window.Start).Hours() / 24),
	}
	switch kind {
	case types.WeightingDisable, types.WeightingLinear, types.WeightingInverse:
		return policy, nil
	case types.WeightingExponential:
		if cfg.HalfLife == nil {
			return WeightingPolicy{}, errbuilder.New().
				WithCode(errbuilder.CodeInvalidArgument).
				WithMsg("half-life required for exponential weighting")
		}
		if *cfg.HalfLife <= 0 {
			return WeightingPolicy{}, errbuilder.New().
				WithCode(errbuilder.CodeInvalidArgument).
				WithMsg(fmt.Sprintf("half-life must be positive, got %v", *cfg.HalfLife))
		}
		policy.HalfLife = *cfg.HalfLife
		policy.lambda = math.Ln2 / policy.HalfLife
		return policy, nil
	default:
		return WeightingPolicy{}, errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg(fmt.Sprintf("unknown weighting type %q", cfg.Type))
	}
}

func (p WeightingPolicy) Disabled() bool {
	return p.Type == types.WeightingDisable
}

func (p WeightingPolicy) Weight(ageDays float64) float64 {
	switch p.Type {
	case types.WeightingLinear:
		if p.MaxAge <= 0 {
			return 1.0
		}
		return 1.0 - ageDays/p.MaxAge
	case types.WeightingExponential:
		return math.Exp(-p.lambda * ageDays)
	case types.WeightingInverse:
		return 1.0 / (1.0 + ageDays)
	default:
		return 1.0
	}
}
