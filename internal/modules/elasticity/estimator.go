// Package elasticity estimates price sensitivity per segment by
// regressing a log demand proxy on log price.
package elasticity

import (
	"math"
	"sort"

	"github.com/aristath/pricelab/internal/domain"
	"github.com/aristath/pricelab/pkg/formulas"
	"github.com/rs/zerolog"
)

// MinSegmentRows is the smallest segment a dedicated fit accepts;
// smaller segments fall back to the population estimate.
const MinSegmentRows = 10

// minPriceLevels is the fewest distinct price points a log-log fit
// needs for a slope and its standard error.
const minPriceLevels = 3

// Estimate is the elasticity result for one segment
type Estimate struct {
	SegmentID          int     `json:"segment_id"`
	Coefficient        float64 `json:"coefficient"` // expected <= 0: demand falls as price rises
	CIWidth            float64 `json:"ci_width"`    // width of the 95% confidence interval
	PriceLevels        int     `json:"price_levels"`
	PopulationFallback bool    `json:"population_fallback"`
}

// Estimator fits per-segment price elasticities
type Estimator struct {
	log zerolog.Logger
}

// NewEstimator creates a new elasticity estimator
func NewEstimator(log zerolog.Logger) *Estimator {
	return &Estimator{log: log.With().Str("component", "elasticity").Logger()}
}

// EstimateAll fits one elasticity per segment. Segments with fewer
// than MinSegmentRows rows, zero price variance, or too few distinct
// price levels use the population-level fit (degraded mode, logged,
// not an error). Only a population-level failure is a hard
// InsufficientDataError.
func (e *Estimator) EstimateAll(
	rows []domain.FeatureRow,
	assignments map[string]int,
	segments []domain.Segment,
) (map[int]Estimate, error) {
	population, popOK := fitElasticity(rows)
	if !popOK {
		return nil, &domain.InsufficientDataError{
			Stage:  "elasticity",
			Needed: minPriceLevels,
			Got:    countPriceLevels(rows),
			Reason: "distinct price levels in population",
		}
	}

	bySegment := make(map[int][]domain.FeatureRow)
	for _, row := range rows {
		segID, ok := assignments[row.CustomerID]
		if !ok {
			continue
		}
		bySegment[segID] = append(bySegment[segID], row)
	}

	estimates := make(map[int]Estimate, len(segments))
	for _, seg := range segments {
		segRows := bySegment[seg.ID]

		if len(segRows) < MinSegmentRows || priceVariance(segRows) == 0 {
			e.log.Warn().
				Int("segment", seg.ID).
				Int("rows", len(segRows)).
				Msg("Segment too thin for a dedicated elasticity fit, using population estimate")
			est := population
			est.SegmentID = seg.ID
			est.PopulationFallback = true
			estimates[seg.ID] = est
			continue
		}

		est, ok := fitElasticity(segRows)
		if !ok {
			e.log.Warn().
				Int("segment", seg.ID).
				Int("price_levels", countPriceLevels(segRows)).
				Msg("Too few price levels in segment, using population estimate")
			est = population
			est.PopulationFallback = true
		}
		est.SegmentID = seg.ID
		estimates[seg.ID] = est
	}

	e.log.Info().Int("segments", len(estimates)).
		Float64("population_coefficient", population.Coefficient).
		Msg("Elasticity estimates complete")

	return estimates, nil
}

// fitElasticity regresses log(retained count) on log(price) over the
// distinct price levels in the rows. Retained counts get a +0.5
// continuity correction so levels where everyone churned stay finite.
func fitElasticity(rows []domain.FeatureRow) (Estimate, bool) {
	type level struct {
		price    float64
		retained float64
	}
	byPrice := make(map[float64]*level)
	for _, row := range rows {
		if row.PricePaid <= 0 {
			continue
		}
		lv, ok := byPrice[row.PricePaid]
		if !ok {
			lv = &level{price: row.PricePaid}
			byPrice[row.PricePaid] = lv
		}
		if row.ChurnFlag < 0.5 {
			lv.retained++
		}
	}

	levels := make([]level, 0, len(byPrice))
	for _, lv := range byPrice {
		levels = append(levels, *lv)
	}
	// Deterministic fit input regardless of map iteration order
	sort.Slice(levels, func(i, j int) bool { return levels[i].price < levels[j].price })

	if len(levels) < minPriceLevels {
		return Estimate{}, false
	}

	logPrice := make([]float64, len(levels))
	logDemand := make([]float64, len(levels))
	for i, lv := range levels {
		logPrice[i] = math.Log(lv.price)
		logDemand[i] = math.Log(lv.retained + 0.5)
	}

	_, beta, stdErr, ok := formulas.LinearFit(logPrice, logDemand)
	if !ok {
		return Estimate{}, false
	}

	return Estimate{
		Coefficient: beta,
		CIWidth:     2 * 1.96 * stdErr,
		PriceLevels: len(levels),
	}, true
}

func priceVariance(rows []domain.FeatureRow) float64 {
	prices := make([]float64, len(rows))
	for i, row := range rows {
		prices[i] = row.PricePaid
	}
	return formulas.Variance(prices)
}

func countPriceLevels(rows []domain.FeatureRow) int {
	seen := make(map[float64]struct{})
	for _, row := range rows {
		seen[row.PricePaid] = struct{}{}
	}
	return len(seen)
}
