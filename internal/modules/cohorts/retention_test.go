package cohorts

import (
	"fmt"
	"testing"

	"github.com/aristath/pricelab/internal/domain"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func channelRows() []domain.FeatureRow {
	var rows []domain.FeatureRow
	groups := []struct {
		channel domain.Channel
		region  domain.Region
		cac     float64
		ltv     float64
		arpu    float64
		churn   float64
		count   int
	}{
		{domain.ChannelOrganicSearch, domain.RegionEurope, 20, 1800, 55, 0.05, 10},
		{domain.ChannelGoogleAds, domain.RegionNorthAmerica, 180, 1200, 60, 0.10, 8},
		{domain.ChannelMetaAds, domain.RegionEurope, 220, 900, 50, 0.20, 6},
	}
	i := 0
	for _, s := range groups {
		for n := 0; n < s.count; n++ {
			rows = append(rows, domain.FeatureRow{
				CustomerID: fmt.Sprintf("C%03d", i),
				Channel:    s.channel,
				Region:     s.region,
				CAC:        s.cac,
				LTV:        s.ltv,
				ARPU:       s.arpu,
				ChurnRate:  s.churn,
			})
			i++
		}
	}
	return rows
}

func TestChannelSummaries(t *testing.T) {
	a := NewAnalyzer(zerolog.Nop())

	summaries := a.ChannelSummaries(channelRows())
	require.Len(t, summaries, 3)

	byChannel := map[domain.Channel]ChannelSummary{}
	for _, s := range summaries {
		byChannel[s.Channel] = s
	}

	organic := byChannel[domain.ChannelOrganicSearch]
	assert.Equal(t, 10, organic.Customers)
	assert.InDelta(t, 20, organic.MeanCAC, 1e-9)
	assert.InDelta(t, 90, organic.LTVCACRatio, 1e-9) // 1800/20

	// Organic search dominates paid channels on LTV:CAC, the core
	// finding of the source analysis
	assert.Greater(t, organic.LTVCACRatio, byChannel[domain.ChannelGoogleAds].LTVCACRatio)
	assert.Greater(t, byChannel[domain.ChannelGoogleAds].LTVCACRatio, byChannel[domain.ChannelMetaAds].LTVCACRatio)
}

func TestChannelSummaries_StableOrder(t *testing.T) {
	a := NewAnalyzer(zerolog.Nop())
	rows := channelRows()

	first := a.ChannelSummaries(rows)
	for i := 0; i < 20; i++ {
		assert.Equal(t, first, a.ChannelSummaries(rows))
	}
}

func TestRegionSummaries(t *testing.T) {
	a := NewAnalyzer(zerolog.Nop())

	summaries := a.RegionSummaries(channelRows())
	require.Len(t, summaries, 2)

	byRegion := map[domain.Region]RegionSummary{}
	for _, s := range summaries {
		byRegion[s.Region] = s
	}
	assert.Equal(t, 16, byRegion[domain.RegionEurope].Customers) // organic + meta
	assert.Equal(t, 8, byRegion[domain.RegionNorthAmerica].Customers)
}

func TestRetentionCurves(t *testing.T) {
	a := NewAnalyzer(zerolog.Nop())

	curves := a.RetentionCurves(channelRows())
	require.Len(t, curves, 3)

	for _, curve := range curves {
		require.Len(t, curve.Retained, RetentionHorizonMonths+1)

		// Month zero is the full cohort
		assert.Equal(t, curve.Initial, curve.Retained[0])
		assert.Equal(t, 1.0, curve.Retention[0])

		// Monotonically non-increasing decay
		for m := 1; m <= RetentionHorizonMonths; m++ {
			assert.LessOrEqual(t, curve.Retained[m], curve.Retained[m-1],
				"cohort %s month %d", curve.Cohort, m)
		}
	}
}

func TestRetentionCurves_DecayMatchesChurn(t *testing.T) {
	a := NewAnalyzer(zerolog.Nop())

	rows := []domain.FeatureRow{}
	for i := 0; i < 100; i++ {
		rows = append(rows, domain.FeatureRow{
			CustomerID: fmt.Sprintf("C%d", i),
			Channel:    domain.ChannelReferral,
			ChurnRate:  0.10,
		})
	}

	curves := a.RetentionCurves(rows)
	require.Len(t, curves, 1)

	// (1-0.1)^12 ≈ 0.2824 → 28 of 100 customers
	assert.Equal(t, 28, curves[0].Retained[12])
}
