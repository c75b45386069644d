// Package cohorts derives retention and channel-level diagnostics
// from the feature table.
package cohorts

import (
	"math"
	"sort"

	"github.com/aristath/pricelab/internal/domain"
	"github.com/aristath/pricelab/pkg/formulas"
	"github.com/rs/zerolog"
)

// RetentionHorizonMonths is how far the retention projection runs.
const RetentionHorizonMonths = 12

// ChannelSummary aggregates CAC/LTV economics per acquisition channel
type ChannelSummary struct {
	Channel     domain.Channel `json:"channel"`
	Customers   int            `json:"customers"`
	MeanCAC     float64        `json:"mean_cac"`
	MeanLTV     float64        `json:"mean_ltv"`
	LTVCACRatio float64        `json:"ltv_cac_ratio"`
}

// RegionSummary aggregates ARPU per region
type RegionSummary struct {
	Region    domain.Region `json:"region"`
	Customers int           `json:"customers"`
	MeanARPU  float64       `json:"mean_arpu"`
}

// RetentionCurve projects retained customers for one acquisition
// cohort over months since acquisition.
type RetentionCurve struct {
	Cohort    string `json:"cohort"` // acquisition channel name
	Initial   int    `json:"initial"`
	AvgChurn  float64
	Retained  []int     `json:"retained"`  // index = months since acquisition
	Retention []float64 `json:"retention"` // fraction remaining
}

// Analyzer computes the diagnostic tables
type Analyzer struct {
	log zerolog.Logger
}

// NewAnalyzer creates a new cohort analyzer
func NewAnalyzer(log zerolog.Logger) *Analyzer {
	return &Analyzer{log: log.With().Str("component", "cohorts").Logger()}
}

// ChannelSummaries computes mean CAC, mean LTV and the LTV:CAC ratio
// per acquisition channel, ordered by channel name for stable output.
func (a *Analyzer) ChannelSummaries(rows []domain.FeatureRow) []ChannelSummary {
	type acc struct {
		cac, ltv []float64
	}
	byChannel := map[domain.Channel]*acc{}
	for _, row := range rows {
		c, ok := byChannel[row.Channel]
		if !ok {
			c = &acc{}
			byChannel[row.Channel] = c
		}
		c.cac = append(c.cac, row.CAC)
		c.ltv = append(c.ltv, row.LTV)
	}

	summaries := make([]ChannelSummary, 0, len(byChannel))
	for channel, c := range byChannel {
		s := ChannelSummary{
			Channel:   channel,
			Customers: len(c.cac),
			MeanCAC:   formulas.Mean(c.cac),
			MeanLTV:   formulas.Mean(c.ltv),
		}
		if s.MeanCAC > 0 {
			s.LTVCACRatio = s.MeanLTV / s.MeanCAC
		}
		summaries = append(summaries, s)
	}
	sort.Slice(summaries, func(i, j int) bool { return summaries[i].Channel < summaries[j].Channel })

	return summaries
}

// RegionSummaries computes mean ARPU per region, ordered by region name.
func (a *Analyzer) RegionSummaries(rows []domain.FeatureRow) []RegionSummary {
	byRegion := map[domain.Region][]float64{}
	for _, row := range rows {
		byRegion[row.Region] = append(byRegion[row.Region], row.ARPU)
	}

	summaries := make([]RegionSummary, 0, len(byRegion))
	for region, arpus := range byRegion {
		summaries = append(summaries, RegionSummary{
			Region:    region,
			Customers: len(arpus),
			MeanARPU:  formulas.Mean(arpus),
		})
	}
	sort.Slice(summaries, func(i, j int) bool { return summaries[i].Region < summaries[j].Region })

	return summaries
}

// RetentionCurves projects retained customers per acquisition-channel
// cohort with retention(m) = (1 - avgChurn)^m over a 12-month horizon.
// Retained counts truncate toward zero, matching how cohort tables are
// usually read (whole customers).
func (a *Analyzer) RetentionCurves(rows []domain.FeatureRow) []RetentionCurve {
	byChannel := map[domain.Channel][]float64{}
	sizes := map[domain.Channel]int{}
	for _, row := range rows {
		byChannel[row.Channel] = append(byChannel[row.Channel], row.ChurnRate)
		sizes[row.Channel]++
	}

	channels := make([]domain.Channel, 0, len(byChannel))
	for channel := range byChannel {
		channels = append(channels, channel)
	}
	sort.Slice(channels, func(i, j int) bool { return channels[i] < channels[j] })

	curves := make([]RetentionCurve, 0, len(channels))
	for _, channel := range channels {
		avgChurn := formulas.Mean(byChannel[channel])
		initial := sizes[channel]

		curve := RetentionCurve{
			Cohort:    string(channel),
			Initial:   initial,
			AvgChurn:  avgChurn,
			Retained:  make([]int, RetentionHorizonMonths+1),
			Retention: make([]float64, RetentionHorizonMonths+1),
		}
		for m := 0; m <= RetentionHorizonMonths; m++ {
			rate := math.Pow(1-avgChurn, float64(m))
			curve.Retention[m] = rate
			curve.Retained[m] = int(float64(initial) * rate)
		}
		curves = append(curves, curve)
	}

	a.log.Info().Int("cohorts", len(curves)).Msg("Retention curves projected")

	return curves
}
