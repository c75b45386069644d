// Package features turns raw customer records into model-ready rows.
package features

import (
	"math"

	"github.com/aristath/pricelab/internal/domain"
	"github.com/rs/zerolog"
)

// Builder derives one FeatureRow per CustomerRecord.
//
// LTV follows the fixed formula LTV = ARPU * gross_margin / churn_rate,
// with the monthly churn rate clamped at domain.ChurnRateEpsilon so a
// fully retained customer yields a large finite LTV instead of NaN.
type Builder struct {
	log zerolog.Logger
}

// NewBuilder creates a new feature builder
func NewBuilder(log zerolog.Logger) *Builder {
	return &Builder{log: log.With().Str("component", "features").Logger()}
}

// Build validates records and produces feature rows, one-to-one.
// Returns a *domain.DataIntegrityError listing every offending row when
// any record violates the declared ranges; partial output is never
// returned alongside an error.
func (b *Builder) Build(records []domain.CustomerRecord) ([]domain.FeatureRow, error) {
	if len(records) == 0 {
		return nil, &domain.InsufficientDataError{Stage: "features", Needed: 1, Got: 0, Reason: "customer records"}
	}

	var badRows []string
	var reasons []string
	for _, rec := range records {
		if reason := validate(rec); reason != "" {
			badRows = append(badRows, rec.ID)
			reasons = appendUnique(reasons, reason)
		}
	}
	if len(badRows) > 0 {
		return nil, &domain.DataIntegrityError{
			Stage:  "features",
			RowIDs: badRows,
			Reason: joinReasons(reasons),
		}
	}

	populationHazard := populationChurnHazard(records)

	rows := make([]domain.FeatureRow, 0, len(records))
	for _, rec := range records {
		hazard := monthlyChurnRate(rec, populationHazard)
		ltv := rec.ARPU * rec.GrossMargin / hazard

		churnFlag := 0.0
		if rec.Churned {
			churnFlag = 1.0
		}

		rows = append(rows, domain.FeatureRow{
			CustomerID:   rec.ID,
			Region:       rec.Region,
			Channel:      rec.Channel,
			RegionCode:   domain.RegionCode(rec.Region),
			ChannelCode:  domain.ChannelCode(rec.Channel),
			CAC:          rec.AcquisitionCost,
			ARPU:         rec.ARPU,
			GrossMargin:  rec.GrossMargin,
			TenureMonths: float64(rec.TenureMonths),
			ChurnFlag:    churnFlag,
			ChurnRate:    hazard,
			PricePaid:    rec.PricePaid,
			LTV:          ltv,
		})
	}

	b.log.Info().
		Int("rows", len(rows)).
		Float64("population_hazard", populationHazard).
		Msg("Feature table built")

	return rows, nil
}

// validate returns a short reason when a record breaks an invariant,
// or "" when the record is acceptable.
func validate(rec domain.CustomerRecord) string {
	switch {
	case rec.ID == "":
		return "missing id"
	case rec.AcquisitionCost < 0 || !isFinite(rec.AcquisitionCost):
		return "negative or non-finite acquisition cost"
	case !isFinite(rec.ARPU) || rec.ARPU < 0:
		return "negative or non-finite arpu"
	case rec.GrossMargin < 0 || rec.GrossMargin > 1 || !isFinite(rec.GrossMargin):
		return "gross margin outside [0,1]"
	case rec.TenureMonths < 0:
		return "negative tenure"
	case rec.PricePaid <= 0 || !isFinite(rec.PricePaid):
		return "non-positive or non-finite price"
	case rec.ChurnRate != domain.ChurnRateNotSupplied && (rec.ChurnRate < 0 || rec.ChurnRate > 1 || !isFinite(rec.ChurnRate)):
		return "churn rate outside [0,1]"
	}
	return ""
}

// monthlyChurnRate picks the per-customer monthly hazard used in the
// LTV denominator, clamped at the documented epsilon.
//
// Priority: the explicit churn_rate column when the dataset carries
// one; otherwise 1/tenure for churned customers (one churn event over
// the observed lifetime) and the population hazard for retained ones.
func monthlyChurnRate(rec domain.CustomerRecord, populationHazard float64) float64 {
	var rate float64
	switch {
	case rec.ChurnRate != domain.ChurnRateNotSupplied:
		rate = rec.ChurnRate
	case rec.Churned:
		tenure := rec.TenureMonths
		if tenure < 1 {
			tenure = 1
		}
		rate = 1.0 / float64(tenure)
	default:
		rate = populationHazard
	}

	if rate < domain.ChurnRateEpsilon {
		rate = domain.ChurnRateEpsilon
	}
	return rate
}

// populationChurnHazard estimates the aggregate monthly hazard as
// churn events over total exposure months.
func populationChurnHazard(records []domain.CustomerRecord) float64 {
	var churned, exposure float64
	for _, rec := range records {
		if rec.Churned {
			churned++
		}
		exposure += math.Max(float64(rec.TenureMonths), 1)
	}
	if exposure == 0 {
		return domain.ChurnRateEpsilon
	}
	rate := churned / exposure
	if rate < domain.ChurnRateEpsilon {
		return domain.ChurnRateEpsilon
	}
	return rate
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

func appendUnique(list []string, s string) []string {
	for _, v := range list {
		if v == s {
			return list
		}
	}
	return append(list, s)
}

func joinReasons(reasons []string) string {
	out := ""
	for i, r := range reasons {
		if i > 0 {
			out += "; "
		}
		out += r
	}
	if out == "" {
		out = "invalid rows"
	}
	return out
}
