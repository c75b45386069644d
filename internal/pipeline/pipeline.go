// Package pipeline chains the analysis stages into a single
// deterministic run: features, segmentation, churn model, elasticity,
// simulation, price selection, plus the acquisition diagnostics.
package pipeline

import (
	"os"

	"github.com/aristath/pricelab/internal/config"
	"github.com/aristath/pricelab/internal/domain"
	"github.com/aristath/pricelab/internal/modules/churn"
	"github.com/aristath/pricelab/internal/modules/cohorts"
	"github.com/aristath/pricelab/internal/modules/elasticity"
	"github.com/aristath/pricelab/internal/modules/features"
	"github.com/aristath/pricelab/internal/modules/segmentation"
	"github.com/aristath/pricelab/internal/modules/selection"
	"github.com/aristath/pricelab/internal/modules/simulation"
	"github.com/rs/zerolog"
	"github.com/schollz/progressbar/v3"
)

// stageCount is the number of progress ticks a full run emits
const stageCount = 7

// Result holds everything a run produces, for reporting and the audit
// snapshot.
type Result struct {
	FeatureRows     []domain.FeatureRow
	Segments        []domain.Segment
	Assignments     map[string]int
	ChurnMetrics    churn.Metrics
	ChurnSnapshot   churn.Snapshot
	Elasticities    map[int]elasticity.Estimate
	Scenarios       map[int][]domain.PriceScenario
	Recommendations []domain.PricingRecommendation
	Channels        []cohorts.ChannelSummary
	Regions         []cohorts.RegionSummary
	Retention       []cohorts.RetentionCurve
}

// Pipeline wires the stage implementations together
type Pipeline struct {
	cfg *config.Config
	log zerolog.Logger

	builder   *features.Builder
	segmenter *segmentation.Segmenter
	estimator *elasticity.Estimator
	simulator *simulation.Simulator
	selector  *selection.Selector
	analyzer  *cohorts.Analyzer
}

// New builds a pipeline from the run configuration
func New(cfg *config.Config, log zerolog.Logger) *Pipeline {
	plog := log.With().Str("component", "pipeline").Logger()
	return &Pipeline{
		cfg:       cfg,
		log:       plog,
		builder:   features.NewBuilder(log),
		segmenter: segmentation.New(segmentation.Config{K: cfg.SegmentCount, Seed: cfg.Seed}, log),
		estimator: elasticity.NewEstimator(log),
		simulator: simulation.New(simulation.Config{GridSpan: cfg.GridSpan, GridStep: cfg.GridStep}, log),
		selector:  selection.New(selection.Config{ChurnCeiling: cfg.ChurnCeiling, RatioTarget: cfg.RatioTarget}, log),
		analyzer:  cohorts.NewAnalyzer(log),
	}
}

// Run executes every stage in order over the loaded records. Stages
// only communicate through returned values, so a run is a pure function
// of (records, config) and identical inputs give identical results.
func (p *Pipeline) Run(records []domain.CustomerRecord) (*Result, error) {
	bar := p.progressBar()

	bar.Describe("building features")
	rows, err := p.builder.Build(records)
	if err != nil {
		return nil, err
	}
	_ = bar.Add(1)

	bar.Describe("segmenting customers")
	segResult, err := p.segmenter.Segment(rows)
	if err != nil {
		return nil, err
	}
	_ = bar.Add(1)

	bar.Describe("training churn model")
	model, err := churn.Train(rows, churn.Config{Seed: p.cfg.Seed}, p.log)
	if err != nil {
		return nil, err
	}
	_ = bar.Add(1)

	bar.Describe("estimating elasticity")
	estimates, err := p.estimator.EstimateAll(rows, segResult.Assignments, segResult.Segments)
	if err != nil {
		return nil, err
	}
	_ = bar.Add(1)

	bar.Describe("simulating price grid")
	bySegment := groupBySegment(rows, segResult.Assignments)
	scenarios := make(map[int][]domain.PriceScenario, len(segResult.Segments))
	for _, seg := range segResult.Segments {
		if scs := p.simulator.Simulate(seg, bySegment[seg.ID], model, estimates[seg.ID]); scs != nil {
			scenarios[seg.ID] = scs
		}
	}
	_ = bar.Add(1)

	bar.Describe("selecting prices")
	recommendations := p.selector.Select(segResult.Segments, scenarios)
	_ = bar.Add(1)

	bar.Describe("cohort diagnostics")
	result := &Result{
		FeatureRows:     rows,
		Segments:        segResult.Segments,
		Assignments:     segResult.Assignments,
		ChurnMetrics:    model.Metrics(),
		ChurnSnapshot:   model.Snapshot(),
		Elasticities:    estimates,
		Scenarios:       scenarios,
		Recommendations: recommendations,
		Channels:        p.analyzer.ChannelSummaries(rows),
		Regions:         p.analyzer.RegionSummaries(rows),
		Retention:       p.analyzer.RetentionCurves(rows),
	}
	_ = bar.Add(1)
	_ = bar.Finish()

	p.log.Info().
		Int("customers", len(rows)).
		Int("segments", len(result.Segments)).
		Int("recommendations", len(result.Recommendations)).
		Float64("churn_auc", result.ChurnMetrics.AUC).
		Msg("Pipeline run complete")

	return result, nil
}

// progressBar returns the stage progress bar, or a silent one when
// progress output is disabled.
func (p *Pipeline) progressBar() *progressbar.ProgressBar {
	if !p.cfg.Progress {
		return progressbar.DefaultSilent(stageCount)
	}
	return progressbar.NewOptions(stageCount,
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionSetDescription("starting"),
		progressbar.OptionShowCount(),
		progressbar.OptionClearOnFinish(),
	)
}

func groupBySegment(rows []domain.FeatureRow, assignments map[string]int) map[int][]domain.FeatureRow {
	out := make(map[int][]domain.FeatureRow)
	for _, row := range rows {
		if segID, ok := assignments[row.CustomerID]; ok {
			out[segID] = append(out[segID], row)
		}
	}
	return out
}
