// Package simulation projects churn, LTV and revenue over a candidate
// price grid per segment.
package simulation

import (
	"math"

	"github.com/aristath/pricelab/internal/domain"
	"github.com/aristath/pricelab/internal/modules/elasticity"
	"github.com/aristath/pricelab/pkg/formulas"
	"github.com/rs/zerolog"
)

// ChurnPredictor scores the churn probability of a single row.
// Satisfied by the trained churn model; injected so the simulator
// never owns model state.
type ChurnPredictor interface {
	PredictProbability(domain.FeatureRow) float64
}

// Config holds grid parameters
type Config struct {
	GridSpan float64 // half-width of the grid as a fraction of current price (default 0.50)
	GridStep float64 // step as a fraction of current price (default 0.05)
}

// Simulator produces deterministic price scenarios. It is a pure
// function of its inputs: no randomness, no hidden state, restartable.
type Simulator struct {
	cfg Config
	log zerolog.Logger
}

// New creates a new revenue simulator
func New(cfg Config, log zerolog.Logger) *Simulator {
	if cfg.GridSpan <= 0 {
		cfg.GridSpan = 0.50
	}
	if cfg.GridStep <= 0 {
		cfg.GridStep = 0.05
	}
	return &Simulator{cfg: cfg, log: log.With().Str("component", "simulation").Logger()}
}

// Simulate scores every candidate price for one segment, ordered by
// ascending price.
//
// For each candidate p with segment base price p0:
//   - churn(p) = clamp01(c0 * (p/p0)^(-elasticity)); the exponent is
//     floored at zero so a noisy positive elasticity can never make a
//     price increase look churn-reducing
//   - ARPU scales with p/p0, LTV is recomputed from the adjusted churn
//     with the same epsilon clamp the feature builder uses
//   - CAC is held at the segment's observed value
func (s *Simulator) Simulate(
	seg domain.Segment,
	segRows []domain.FeatureRow,
	predictor ChurnPredictor,
	est elasticity.Estimate,
) []domain.PriceScenario {
	basePrice := seg.Profile.MeanPrice
	if basePrice <= 0 {
		s.log.Warn().Int("segment", seg.ID).Msg("Segment has no positive base price, skipping simulation")
		return nil
	}

	baseChurn := s.baseChurn(seg, segRows, predictor)

	exponent := -est.Coefficient
	if exponent < 0 {
		exponent = 0
	}

	steps := int(math.Round(s.cfg.GridSpan / s.cfg.GridStep))
	scenarios := make([]domain.PriceScenario, 0, 2*steps+1)
	for i := -steps; i <= steps; i++ {
		ratio := 1 + float64(i)*s.cfg.GridStep
		price := basePrice * ratio

		churn := formulas.Clamp01(baseChurn * math.Pow(ratio, exponent))

		arpu := seg.Profile.MeanARPU * ratio
		denom := math.Max(churn, domain.ChurnRateEpsilon)
		ltv := arpu * seg.Profile.MeanMargin / denom

		cac := seg.Profile.MeanCAC
		ltvCAC := 0.0
		if cac > 0 {
			ltvCAC = ltv / cac
		}

		scenarios = append(scenarios, domain.PriceScenario{
			SegmentID:        seg.ID,
			CandidatePrice:   price,
			ChurnProbability: churn,
			ProjectedLTV:     ltv,
			ProjectedCAC:     cac,
			LTVCACRatio:      ltvCAC,
		})
	}

	s.log.Debug().
		Int("segment", seg.ID).
		Int("scenarios", len(scenarios)).
		Float64("base_price", basePrice).
		Float64("base_churn", baseChurn).
		Msg("Segment simulated")

	return scenarios
}

// baseChurn is the mean model-predicted churn probability over the
// segment's members, falling back to the observed churned fraction
// when no rows (or no model) are available.
func (s *Simulator) baseChurn(seg domain.Segment, segRows []domain.FeatureRow, predictor ChurnPredictor) float64 {
	if predictor != nil && len(segRows) > 0 {
		var sum float64
		for _, row := range segRows {
			sum += predictor.PredictProbability(row)
		}
		return clampChurn(sum / float64(len(segRows)))
	}
	return clampChurn(seg.Profile.ChurnRate)
}

func clampChurn(c float64) float64 {
	if c < domain.ChurnRateEpsilon {
		return domain.ChurnRateEpsilon
	}
	if c > 1 {
		return 1
	}
	return c
}
