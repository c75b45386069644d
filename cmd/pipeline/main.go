// Package main is the entry point for the pricelab pricing pipeline.
// It loads a customer records CSV, runs the analysis stages (feature
// building, segmentation, churn modeling, elasticity estimation, price
// simulation and selection), writes the output tables, and optionally
// persists the run to the SQLite audit store.
//
// Exit codes:
//   - 0: success
//   - 1: configuration or runtime failure
//   - 2: input data failed validation
//   - 3: not enough data for a required stage
package main

import (
	"errors"
	"os"
	"time"

	"github.com/aristath/pricelab/internal/config"
	"github.com/aristath/pricelab/internal/database"
	"github.com/aristath/pricelab/internal/dataset"
	"github.com/aristath/pricelab/internal/domain"
	"github.com/aristath/pricelab/internal/pipeline"
	"github.com/aristath/pricelab/internal/report"
	"github.com/aristath/pricelab/pkg/logger"
	"github.com/rs/zerolog"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fallbackLog := logger.New(logger.Config{Level: "info", Pretty: true})
		fallbackLog.Error().Err(err).Msg("Failed to load configuration")
		os.Exit(1)
	}

	log := logger.New(logger.Config{Level: cfg.LogLevel, Pretty: true})
	logger.SetGlobalLogger(log)

	if err := run(cfg, log); err != nil {
		log.Error().Err(err).Msg("Pipeline run failed")
		os.Exit(exitCode(err))
	}
}

func run(cfg *config.Config, log zerolog.Logger) error {
	if cfg.InputPath == "" {
		return errors.New("PRICELAB_INPUT is required")
	}

	startedAt := time.Now().UTC()

	records, err := dataset.NewLoader(log).Load(cfg.InputPath)
	if err != nil {
		return err
	}

	result, err := pipeline.New(cfg, log).Run(records)
	if err != nil {
		return err
	}

	writer := report.NewWriter(cfg.OutputDir, log)
	if _, err := writer.WriteRecommendations(result.Recommendations); err != nil {
		return err
	}
	if _, err := writer.WriteSegmentProfiles(result.Segments); err != nil {
		return err
	}
	if _, err := writer.WriteModelMetrics(result.ChurnMetrics, result.Elasticities, result.Segments); err != nil {
		return err
	}
	if _, err := writer.WriteChannelSummaries(result.Channels); err != nil {
		return err
	}
	if _, err := writer.WriteRegionSummaries(result.Regions); err != nil {
		return err
	}
	if _, err := writer.WriteRetentionMatrix(result.Retention); err != nil {
		return err
	}

	if cfg.ResultsDB != "" {
		if err := persistRun(cfg, log, startedAt, records, result); err != nil {
			return err
		}
	}

	log.Info().
		Str("output_dir", cfg.OutputDir).
		Int("recommendations", len(result.Recommendations)).
		Msg("Run finished")
	return nil
}

// persistRun records the run in the audit store so past recommendations
// stay reproducible and comparable.
func persistRun(cfg *config.Config, log zerolog.Logger, startedAt time.Time, records []domain.CustomerRecord, result *pipeline.Result) error {
	db, err := database.New(database.Config{Path: cfg.ResultsDB})
	if err != nil {
		return err
	}
	defer db.Close()

	store := report.NewStore(db, log)
	runID, err := store.SaveRun(
		report.RunRecord{
			StartedAt:    startedAt,
			FinishedAt:   time.Now().UTC(),
			InputPath:    cfg.InputPath,
			Seed:         cfg.Seed,
			SegmentCount: cfg.SegmentCount,
			ChurnCeiling: cfg.ChurnCeiling,
			CustomerRows: len(records),
		},
		result.Recommendations,
		report.ModelSnapshot{
			Churn:        result.ChurnSnapshot,
			Elasticities: result.Elasticities,
			Segments:     result.Segments,
		},
	)
	if err != nil {
		return err
	}

	log.Info().Str("run_id", runID).Str("db", db.Path()).Msg("Run saved to audit store")
	return nil
}

// exitCode maps error classes to process exit codes so callers can
// distinguish bad input from missing data from everything else.
func exitCode(err error) int {
	var integrity *domain.DataIntegrityError
	if errors.As(err, &integrity) {
		return 2
	}
	var insufficient *domain.InsufficientDataError
	if errors.As(err, &insufficient) {
		return 3
	}
	return 1
}
