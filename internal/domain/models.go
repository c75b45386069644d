// Package domain provides core domain models and types.
package domain

// Region represents a customer's geographic region
type Region string

const (
	RegionNorthAmerica Region = "North America"
	RegionEurope       Region = "Europe"
	RegionAsiaPacific  Region = "Asia-Pacific"
	RegionLatinAmerica Region = "Latin America"
)

// Channel represents a customer acquisition channel
type Channel string

const (
	ChannelOrganicSearch Channel = "Organic Search"
	ChannelGoogleAds     Channel = "Google Ads"
	ChannelMetaAds       Channel = "Meta Ads"
	ChannelReferral      Channel = "Referral"
)

// CustomerRecord is an immutable input row describing one customer.
// ChurnRate is optional: when the source table carries no churn_rate
// column it is negative and the feature builder derives a hazard
// estimate from the churned flag and tenure.
type CustomerRecord struct {
	ID              string  `json:"id"`
	Region          Region  `json:"region"`
	Channel         Channel `json:"channel"`
	AcquisitionCost float64 `json:"acquisition_cost"`
	ARPU            float64 `json:"arpu"`
	GrossMargin     float64 `json:"gross_margin"`
	TenureMonths    int     `json:"tenure_months"`
	Churned         bool    `json:"churned"`
	PricePaid       float64 `json:"price_paid"`
	ChurnRate       float64 `json:"churn_rate"` // negative = not supplied
}

// FeatureRow is the model-ready projection of a CustomerRecord.
// Created once by the feature builder and never mutated afterwards.
type FeatureRow struct {
	CustomerID   string  `json:"customer_id"`
	Region       Region  `json:"region"`
	Channel      Channel `json:"channel"`
	RegionCode   float64 `json:"region_code"`
	ChannelCode  float64 `json:"channel_code"`
	CAC          float64 `json:"cac"`
	ARPU         float64 `json:"arpu"`
	GrossMargin  float64 `json:"gross_margin"`
	TenureMonths float64 `json:"tenure_months"`
	ChurnFlag    float64 `json:"churn_flag"` // 0 or 1
	ChurnRate    float64 `json:"churn_rate"` // monthly hazard, clamped
	PricePaid    float64 `json:"price_paid"`
	LTV          float64 `json:"ltv"`
}

// SegmentProfile holds the centroid statistics of a segment
type SegmentProfile struct {
	MeanCAC     float64 `json:"mean_cac"`
	MeanLTV     float64 `json:"mean_ltv"`
	MeanARPU    float64 `json:"mean_arpu"`
	MeanMargin  float64 `json:"mean_margin"`
	MeanTenure  float64 `json:"mean_tenure"`
	MeanPrice   float64 `json:"mean_price"`
	ChurnRate   float64 `json:"churn_rate"` // observed churned fraction
	MeanHazard  float64 `json:"mean_hazard"`
	LTVCACRatio float64 `json:"ltv_cac_ratio"`
}

// Segment is a named, fixed partition of the customer population.
// Segments are exhaustive and mutually exclusive; assignment does not
// change after the segmenter runs.
type Segment struct {
	ID      int            `json:"id"`
	Label   string         `json:"label"`
	Size    int            `json:"size"`
	Profile SegmentProfile `json:"profile"`
}

// PriceScenario is a scored (segment, candidate price) hypothesis.
// CAC is held constant at the segment's observed value.
type PriceScenario struct {
	SegmentID        int     `json:"segment_id"`
	CandidatePrice   float64 `json:"candidate_price"`
	ChurnProbability float64 `json:"churn_probability"`
	ProjectedLTV     float64 `json:"projected_ltv"`
	ProjectedCAC     float64 `json:"projected_cac"`
	LTVCACRatio      float64 `json:"ltv_cac_ratio"`
}

// PricingRecommendation is the final per-segment output
type PricingRecommendation struct {
	SegmentID           int     `json:"segment_id"`
	SegmentLabel        string  `json:"segment_label"`
	RecommendedPrice    float64 `json:"recommended_price"`
	ExpectedLTVCACRatio float64 `json:"expected_ltv_cac_ratio"`
	ExpectedChurn       float64 `json:"expected_churn"`
	ConstraintRelaxed   bool    `json:"constraint_relaxed"`
}

// ChurnRateNotSupplied marks a record whose source table had no
// churn_rate column.
const ChurnRateNotSupplied = -1.0

// ChurnRateEpsilon is the documented clamp for the monthly churn rate
// used in the LTV denominator. Rates below it are treated as the
// epsilon itself, never as zero.
const ChurnRateEpsilon = 1e-4

// regionCodes maps regions to stable numeric encodings for modeling.
var regionCodes = map[Region]float64{
	RegionNorthAmerica: 0,
	RegionEurope:       1,
	RegionAsiaPacific:  2,
	RegionLatinAmerica: 3,
}

// channelCodes maps acquisition channels to stable numeric encodings.
var channelCodes = map[Channel]float64{
	ChannelOrganicSearch: 0,
	ChannelGoogleAds:     1,
	ChannelMetaAds:       2,
	ChannelReferral:      3,
}

// RegionCode returns a stable numeric encoding for a region.
// Unknown regions get a code past the known range so they remain
// distinguishable without failing the run.
func RegionCode(r Region) float64 {
	if code, ok := regionCodes[r]; ok {
		return code
	}
	return float64(len(regionCodes))
}

// ChannelCode returns a stable numeric encoding for a channel.
func ChannelCode(c Channel) float64 {
	if code, ok := channelCodes[c]; ok {
		return code
	}
	return float64(len(channelCodes))
}
