// Package allocation implements the Allocation Calculator of spec.md §4.4:
// conviction-adjusted, diversification-adjusted, dividend-boosted scores
// turned into a normalized ideal weight per security.
package allocation

import (
	"math"
)

// SecurityInput is one active security's scoring inputs.
type SecurityInput struct {
	Symbol         string
	BaseScore      float64
	UserMultiplier float64
	CountryTags    []string
	IndustryTags   []string
	DividendPoolEUR float64 // uninvested dividend pool for this symbol, if any
}

// Targets bundles the current and target weight maps for both tag
// dimensions, keyed by tag name.
type Targets struct {
	CurrentByCountry  map[string]float64
	TargetByCountry   map[string]float64
	CurrentByIndustry map[string]float64
	TargetByIndustry  map[string]float64
}

// Constraints are the settings-driven knobs from spec.md §4.4/§6.
type Constraints struct {
	MaxPositionPct          float64 // fraction, e.g. 0.20
	MinPositionPct          float64 // fraction, e.g. 0.02
	CashTargetPct           float64 // fraction, e.g. 0.05
	DiversificationImpact   float64 // fraction, e.g. 0.10
	MaxDividendReinvestBoost float64 // e.g. 0.15
}

// AdjustForConviction scales a base score by the user_multiplier conviction
// knob: 1.0 neutral, >1 bullish boost, <1 bearish damp. The multiplier is
// applied directly (not exponentially) since spec.md describes it as a
// linear nonlinear-scaling knob rather than a fixed curve.
func AdjustForConviction(baseScore, userMultiplier float64) float64 {
	return baseScore * userMultiplier
}

// diversificationScore averages (target - current) deviation across every
// tag a security carries in one dimension, per spec.md §4.4 step 3.
func diversificationScore(tags []string, current, target map[string]float64) float64 {
	if len(tags) == 0 {
		return 0
	}
	var sum float64
	for _, tag := range tags {
		sum += target[tag] - current[tag]
	}
	return sum / float64(len(tags))
}

// clamp restricts v to [lo, hi].
func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// ScoreSecurities applies conviction, diversification, and dividend-boost
// adjustments to every input security's base score (spec.md §4.4 steps
// 1-5), returning the symbols that survive the positive-score filter.
func ScoreSecurities(inputs []SecurityInput, targets Targets, constraints Constraints) map[string]float64 {
	adjusted := make(map[string]float64, len(inputs))
	multipliers := make(map[string]float64, len(inputs))

	for _, in := range inputs {
		multiplier := in.UserMultiplier
		if multiplier == 0 {
			multiplier = 1.0
		}
		if in.UserMultiplier <= 0 {
			continue // user wants to exit entirely
		}
		multipliers[in.Symbol] = in.UserMultiplier

		score := AdjustForConviction(in.BaseScore, multiplier)

		if constraints.DiversificationImpact > 0 {
			countryDev := diversificationScore(in.CountryTags, targets.CurrentByCountry, targets.TargetByCountry)
			industryDev := diversificationScore(in.IndustryTags, targets.CurrentByIndustry, targets.TargetByIndustry)

			var devs []float64
			if len(in.CountryTags) > 0 {
				devs = append(devs, countryDev)
			}
			if len(in.IndustryTags) > 0 {
				devs = append(devs, industryDev)
			}

			var avgDev float64
			if len(devs) > 0 {
				var sum float64
				for _, d := range devs {
					sum += d
				}
				avgDev = clamp(sum/float64(len(devs)), -1, 1)
			}

			score *= 1.0 + avgDev*constraints.DiversificationImpact
		}

		adjusted[in.Symbol] = score
	}

	if constraints.MaxDividendReinvestBoost > 0 {
		var totalPool float64
		pools := make(map[string]float64)
		for _, in := range inputs {
			if in.DividendPoolEUR > 0 {
				pools[in.Symbol] = in.DividendPoolEUR
				totalPool += in.DividendPoolEUR
			}
		}
		if totalPool > 0 {
			for symbol, pool := range pools {
				if _, ok := adjusted[symbol]; ok {
					share := pool / totalPool
					adjusted[symbol] += share * constraints.MaxDividendReinvestBoost
				}
			}
		}
	}

	result := make(map[string]float64)
	for symbol, score := range adjusted {
		if score > 0 || multipliers[symbol] > 1.0 {
			result[symbol] = score
		}
	}
	return result
}

// IdealPortfolio runs the normalize-square weighting and clamp/renormalize
// pass of spec.md §4.4 steps 6-8, returning symbol -> target weight summing
// to (1 - cash_target).
func IdealPortfolio(scores map[string]float64, constraints Constraints) map[string]float64 {
	positive := make(map[string]float64, len(scores))
	for symbol, score := range scores {
		if score > 0 {
			positive[symbol] = score
		}
	}
	if len(positive) == 0 {
		return map[string]float64{}
	}

	minScore, maxScore := math.Inf(1), math.Inf(-1)
	for _, s := range positive {
		minScore = math.Min(minScore, s)
		maxScore = math.Max(maxScore, s)
	}
	scoreRange := maxScore - minScore
	if scoreRange == 0 {
		scoreRange = 1.0
	}

	normalized := make(map[string]float64, len(positive))
	for symbol, score := range positive {
		norm := 0.5
		if scoreRange > 0 {
			norm = (score - minScore) / scoreRange
		}
		weight := norm + 0.1
		normalized[symbol] = weight * weight
	}

	var totalWeight float64
	for _, w := range normalized {
		totalWeight += w
	}
	if totalWeight <= 0 {
		return map[string]float64{}
	}

	allocable := 1.0 - constraints.CashTargetPct
	allocations := make(map[string]float64, len(normalized))
	for symbol, weight := range normalized {
		raw := (weight / totalWeight) * allocable
		allocations[symbol] = clamp(raw, constraints.MinPositionPct, constraints.MaxPositionPct)
	}

	var allocSum float64
	for _, a := range allocations {
		allocSum += a
	}
	if allocSum > 0 {
		scale := allocable / allocSum
		for symbol := range allocations {
			allocations[symbol] *= scale
		}
	}

	return allocations
}

// Calculate runs the full spec.md §4.4 pipeline: score then allocate.
func Calculate(inputs []SecurityInput, targets Targets, constraints Constraints) map[string]float64 {
	scores := ScoreSecurities(inputs, targets, constraints)
	return IdealPortfolio(scores, constraints)
}

// TargetsFromDomain builds a Targets value from normalized
// domain.AllocationTarget weight maps and a current-allocation snapshot,
// the shape internal/store.AllocationTargetRepository.NormalizedWeights
// and internal/calculations produce.
func TargetsFromDomain(currentByCountry, currentByIndustry map[string]float64, countryTargets, industryTargets map[string]float64) Targets {
	return Targets{
		CurrentByCountry:  currentByCountry,
		TargetByCountry:   countryTargets,
		CurrentByIndustry: currentByIndustry,
		TargetByIndustry:  industryTargets,
	}
}
