// Package selection picks the recommended price per segment from
// scored scenarios.
package selection

import (
	"math"

	"github.com/aristath/pricelab/internal/domain"
	"github.com/rs/zerolog"
)

// Config holds the objective parameters
type Config struct {
	ChurnCeiling float64 // feasibility constraint (default 0.20)
	RatioTarget  float64 // LTV:CAC target used when the ceiling must be relaxed (default 3.0)
}

// churnTieTolerance treats churn probabilities this close as equal
// when relaxing the constraint, so the ratio target can break the tie.
const churnTieTolerance = 1e-9

// Selector applies the objective (maximize LTV/CAC subject to the
// churn ceiling) per segment. Never drops a segment: when nothing is
// feasible it relaxes the constraint and flags the recommendation.
type Selector struct {
	cfg Config
	log zerolog.Logger
}

// New creates a new price selector
func New(cfg Config, log zerolog.Logger) *Selector {
	if cfg.ChurnCeiling <= 0 {
		cfg.ChurnCeiling = 0.20
	}
	if cfg.RatioTarget <= 0 {
		cfg.RatioTarget = 3.0
	}
	return &Selector{cfg: cfg, log: log.With().Str("component", "selection").Logger()}
}

// Select produces exactly one PricingRecommendation per segment that
// has scenarios. Feasible scenarios (churn ≤ ceiling) compete on
// LTV/CAC ratio with ties broken by lower price (favors conversion).
// With no feasible scenario the lowest-churn scenario wins — among
// churn ties, the one whose ratio is closest to the target — and the
// recommendation is flagged ConstraintRelaxed.
func (s *Selector) Select(
	segments []domain.Segment,
	scenariosBySegment map[int][]domain.PriceScenario,
) []domain.PricingRecommendation {
	recommendations := make([]domain.PricingRecommendation, 0, len(segments))

	for _, seg := range segments {
		scenarios := scenariosBySegment[seg.ID]
		if len(scenarios) == 0 {
			s.log.Warn().Int("segment", seg.ID).Msg("No scenarios for segment, recommending observed price")
			recommendations = append(recommendations, domain.PricingRecommendation{
				SegmentID:           seg.ID,
				SegmentLabel:        seg.Label,
				RecommendedPrice:    seg.Profile.MeanPrice,
				ExpectedLTVCACRatio: seg.Profile.LTVCACRatio,
				ExpectedChurn:       seg.Profile.ChurnRate,
				ConstraintRelaxed:   true,
			})
			continue
		}

		chosen, relaxed := s.pick(scenarios)
		if relaxed {
			s.log.Warn().
				Int("segment", seg.ID).
				Float64("churn", chosen.ChurnProbability).
				Float64("ceiling", s.cfg.ChurnCeiling).
				Msg("No scenario satisfies the churn ceiling, constraint relaxed")
		}

		recommendations = append(recommendations, domain.PricingRecommendation{
			SegmentID:           seg.ID,
			SegmentLabel:        seg.Label,
			RecommendedPrice:    chosen.CandidatePrice,
			ExpectedLTVCACRatio: chosen.LTVCACRatio,
			ExpectedChurn:       chosen.ChurnProbability,
			ConstraintRelaxed:   relaxed,
		})
	}

	return recommendations
}

// pick returns the winning scenario and whether the churn constraint
// had to be relaxed.
func (s *Selector) pick(scenarios []domain.PriceScenario) (domain.PriceScenario, bool) {
	var best *domain.PriceScenario
	for i := range scenarios {
		sc := &scenarios[i]
		if sc.ChurnProbability > s.cfg.ChurnCeiling {
			continue
		}
		if best == nil ||
			sc.LTVCACRatio > best.LTVCACRatio ||
			(sc.LTVCACRatio == best.LTVCACRatio && sc.CandidatePrice < best.CandidatePrice) {
			best = sc
		}
	}
	if best != nil {
		return *best, false
	}

	// Constraint relaxation: lowest churn wins; among churn ties,
	// closest ratio to the target.
	best = &scenarios[0]
	for i := 1; i < len(scenarios); i++ {
		sc := &scenarios[i]
		switch {
		case sc.ChurnProbability < best.ChurnProbability-churnTieTolerance:
			best = sc
		case math.Abs(sc.ChurnProbability-best.ChurnProbability) <= churnTieTolerance:
			if ratioDistance(sc.LTVCACRatio, s.cfg.RatioTarget) < ratioDistance(best.LTVCACRatio, s.cfg.RatioTarget) {
				best = sc
			}
		}
	}
	return *best, true
}

func ratioDistance(ratio, target float64) float64 {
	return math.Abs(ratio - target)
}
