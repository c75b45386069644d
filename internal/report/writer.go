// Package report writes the pipeline's output and diagnostic tables.
package report

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/aristath/pricelab/internal/domain"
	"github.com/aristath/pricelab/internal/modules/churn"
	"github.com/aristath/pricelab/internal/modules/cohorts"
	"github.com/aristath/pricelab/internal/modules/elasticity"
	"github.com/rs/zerolog"
)

// Writer emits CSV tables into a single output directory. All number
// formatting is fixed-precision so identical runs produce byte-identical
// files.
type Writer struct {
	outDir string
	log    zerolog.Logger
}

// NewWriter creates a report writer rooted at outDir
func NewWriter(outDir string, log zerolog.Logger) *Writer {
	return &Writer{outDir: outDir, log: log.With().Str("component", "report").Logger()}
}

// WriteRecommendations writes the primary output table.
// Rows are expected pre-sorted by segment ID (the selector emits them
// in segment order).
func (w *Writer) WriteRecommendations(recs []domain.PricingRecommendation) (string, error) {
	rows := [][]string{{"segment", "segment_label", "recommended_price", "expected_ltv_cac_ratio", "expected_churn", "constraint_relaxed"}}
	for _, r := range recs {
		rows = append(rows, []string{
			strconv.Itoa(r.SegmentID),
			r.SegmentLabel,
			num(r.RecommendedPrice),
			num(r.ExpectedLTVCACRatio),
			num(r.ExpectedChurn),
			strconv.FormatBool(r.ConstraintRelaxed),
		})
	}
	return w.write("recommendations.csv", rows)
}

// WriteSegmentProfiles writes per-segment centroid statistics
func (w *Writer) WriteSegmentProfiles(segments []domain.Segment) (string, error) {
	rows := [][]string{{"segment", "label", "size", "mean_cac", "mean_ltv", "mean_arpu", "mean_margin", "mean_tenure", "mean_price", "churn_rate", "ltv_cac_ratio"}}
	for _, s := range segments {
		rows = append(rows, []string{
			strconv.Itoa(s.ID),
			s.Label,
			strconv.Itoa(s.Size),
			num(s.Profile.MeanCAC),
			num(s.Profile.MeanLTV),
			num(s.Profile.MeanARPU),
			num(s.Profile.MeanMargin),
			num(s.Profile.MeanTenure),
			num(s.Profile.MeanPrice),
			num(s.Profile.ChurnRate),
			num(s.Profile.LTVCACRatio),
		})
	}
	return w.write("segment_profiles.csv", rows)
}

// WriteModelMetrics writes churn-model and elasticity diagnostics.
// Elasticity rows are emitted in segment-ID order.
func (w *Writer) WriteModelMetrics(metrics churn.Metrics, estimates map[int]elasticity.Estimate, segments []domain.Segment) (string, error) {
	rows := [][]string{{"metric", "segment", "value"}}
	rows = append(rows,
		[]string{"churn_auc", "", num(metrics.AUC)},
		[]string{"churn_train_rows", "", strconv.Itoa(metrics.TrainRows)},
		[]string{"churn_holdout_rows", "", strconv.Itoa(metrics.HoldoutRows)},
		[]string{"churn_positive_rate", "", num(metrics.PositiveRate)},
	)
	for _, seg := range segments {
		est, ok := estimates[seg.ID]
		if !ok {
			continue
		}
		segID := strconv.Itoa(seg.ID)
		rows = append(rows,
			[]string{"elasticity_coefficient", segID, num(est.Coefficient)},
			[]string{"elasticity_ci_width", segID, num(est.CIWidth)},
			[]string{"elasticity_population_fallback", segID, strconv.FormatBool(est.PopulationFallback)},
		)
	}
	return w.write("model_metrics.csv", rows)
}

// WriteChannelSummaries writes the per-channel CAC/LTV table
func (w *Writer) WriteChannelSummaries(summaries []cohorts.ChannelSummary) (string, error) {
	rows := [][]string{{"channel", "customers", "mean_cac", "mean_ltv", "ltv_cac_ratio"}}
	for _, s := range summaries {
		rows = append(rows, []string{
			string(s.Channel),
			strconv.Itoa(s.Customers),
			num(s.MeanCAC),
			num(s.MeanLTV),
			num(s.LTVCACRatio),
		})
	}
	return w.write("channel_summary.csv", rows)
}

// WriteRegionSummaries writes the per-region ARPU table
func (w *Writer) WriteRegionSummaries(summaries []cohorts.RegionSummary) (string, error) {
	rows := [][]string{{"region", "customers", "mean_arpu"}}
	for _, s := range summaries {
		rows = append(rows, []string{string(s.Region), strconv.Itoa(s.Customers), num(s.MeanARPU)})
	}
	return w.write("region_summary.csv", rows)
}

// WriteRetentionMatrix writes the cohort retention projection, one row
// per cohort with a column per month since acquisition.
func (w *Writer) WriteRetentionMatrix(curves []cohorts.RetentionCurve) (string, error) {
	header := []string{"cohort", "initial"}
	for m := 0; m <= cohorts.RetentionHorizonMonths; m++ {
		header = append(header, fmt.Sprintf("month_%d", m))
	}

	rows := [][]string{header}
	for _, c := range curves {
		row := []string{c.Cohort, strconv.Itoa(c.Initial)}
		for _, retained := range c.Retained {
			row = append(row, strconv.Itoa(retained))
		}
		rows = append(rows, row)
	}
	return w.write("cohort_retention.csv", rows)
}

func (w *Writer) write(name string, rows [][]string) (string, error) {
	if err := os.MkdirAll(w.outDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create output directory: %w", err)
	}

	path := filepath.Join(w.outDir, name)
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("failed to create %s: %w", name, err)
	}
	defer f.Close()

	cw := csv.NewWriter(f)
	if err := cw.WriteAll(rows); err != nil {
		return "", fmt.Errorf("failed to write %s: %w", name, err)
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return "", fmt.Errorf("failed to flush %s: %w", name, err)
	}

	w.log.Info().Str("table", name).Int("rows", len(rows)-1).Msg("Output table written")
	return path, nil
}

// num formats a float with fixed precision so reruns are byte-identical
func num(v float64) string {
	return strconv.FormatFloat(v, 'f', 4, 64)
}
