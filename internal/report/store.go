package report

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/aristath/pricelab/internal/database"
	"github.com/aristath/pricelab/internal/domain"
	"github.com/aristath/pricelab/internal/modules/churn"
	"github.com/aristath/pricelab/internal/modules/elasticity"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/vmihailenco/msgpack/v5"
)

// RunRecord describes one pipeline execution for the audit trail
type RunRecord struct {
	ID           string
	StartedAt    time.Time
	FinishedAt   time.Time
	InputPath    string
	Seed         int64
	SegmentCount int
	ChurnCeiling float64
	CustomerRows int
}

// ModelSnapshot bundles the trained state of a run. Persisted as a
// msgpack blob so a past run's predictions can be reproduced without
// refitting.
type ModelSnapshot struct {
	Churn        churn.Snapshot             `msgpack:"churn"`
	Elasticities map[int]elasticity.Estimate `msgpack:"elasticities"`
	Segments     []domain.Segment           `msgpack:"segments"`
}

// Store persists runs and their recommendations to the audit database
type Store struct {
	db  *database.DB
	log zerolog.Logger
}

// NewStore creates a new run store
func NewStore(db *database.DB, log zerolog.Logger) *Store {
	return &Store{db: db, log: log.With().Str("component", "runstore").Logger()}
}

// SaveRun writes the run, its recommendations and the model snapshot
// in one transaction. An empty run ID gets a fresh UUID; the final ID
// is returned either way.
func (s *Store) SaveRun(run RunRecord, recs []domain.PricingRecommendation, snapshot ModelSnapshot) (string, error) {
	if run.ID == "" {
		run.ID = uuid.New().String()
	}

	blob, err := msgpack.Marshal(snapshot)
	if err != nil {
		return "", fmt.Errorf("failed to encode model snapshot: %w", err)
	}

	err = database.WithTransaction(s.db.Conn(), func(tx *sql.Tx) error {
		_, err := tx.Exec(`
			INSERT INTO runs (id, started_at, finished_at, input_path, seed, segment_count, churn_ceiling, customer_rows, model_snapshot)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			run.ID,
			run.StartedAt.UTC().Format(time.RFC3339Nano),
			run.FinishedAt.UTC().Format(time.RFC3339Nano),
			run.InputPath,
			run.Seed,
			run.SegmentCount,
			run.ChurnCeiling,
			run.CustomerRows,
			blob,
		)
		if err != nil {
			return fmt.Errorf("insert run: %w", err)
		}

		for _, r := range recs {
			relaxed := 0
			if r.ConstraintRelaxed {
				relaxed = 1
			}
			_, err := tx.Exec(`
				INSERT INTO recommendations (run_id, segment_id, segment_label, recommended_price, expected_ltv_cac_ratio, expected_churn, constraint_relaxed)
				VALUES (?, ?, ?, ?, ?, ?, ?)`,
				run.ID, r.SegmentID, r.SegmentLabel, r.RecommendedPrice, r.ExpectedLTVCACRatio, r.ExpectedChurn, relaxed,
			)
			if err != nil {
				return fmt.Errorf("insert recommendation for segment %d: %w", r.SegmentID, err)
			}
		}
		return nil
	})
	if err != nil {
		return "", err
	}

	s.log.Info().Str("run_id", run.ID).Int("recommendations", len(recs)).Msg("Run persisted to audit store")
	return run.ID, nil
}

// Recommendations loads the persisted recommendations of a run,
// ordered by segment ID.
func (s *Store) Recommendations(runID string) ([]domain.PricingRecommendation, error) {
	rows, err := s.db.Conn().Query(`
		SELECT segment_id, segment_label, recommended_price, expected_ltv_cac_ratio, expected_churn, constraint_relaxed
		FROM recommendations WHERE run_id = ? ORDER BY segment_id`, runID)
	if err != nil {
		return nil, fmt.Errorf("query recommendations: %w", err)
	}
	defer rows.Close()

	var recs []domain.PricingRecommendation
	for rows.Next() {
		var r domain.PricingRecommendation
		var relaxed int
		if err := rows.Scan(&r.SegmentID, &r.SegmentLabel, &r.RecommendedPrice, &r.ExpectedLTVCACRatio, &r.ExpectedChurn, &relaxed); err != nil {
			return nil, fmt.Errorf("scan recommendation: %w", err)
		}
		r.ConstraintRelaxed = relaxed == 1
		recs = append(recs, r)
	}
	return recs, rows.Err()
}

// Snapshot loads the persisted model snapshot of a run
func (s *Store) Snapshot(runID string) (*ModelSnapshot, error) {
	var blob []byte
	err := s.db.Conn().QueryRow(`SELECT model_snapshot FROM runs WHERE id = ?`, runID).Scan(&blob)
	if err != nil {
		return nil, fmt.Errorf("query run %s: %w", runID, err)
	}

	var snapshot ModelSnapshot
	if err := msgpack.Unmarshal(blob, &snapshot); err != nil {
		return nil, fmt.Errorf("decode model snapshot: %w", err)
	}
	return &snapshot, nil
}
