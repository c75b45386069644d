package report

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/aristath/pricelab/internal/database"
	"github.com/aristath/pricelab/internal/domain"
	"github.com/aristath/pricelab/internal/modules/churn"
	"github.com/aristath/pricelab/internal/modules/elasticity"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testStore(t *testing.T) *Store {
	t.Helper()
	db, err := database.New(database.Config{Path: filepath.Join(t.TempDir(), "audit.db")})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return NewStore(db, zerolog.Nop())
}

func sampleSnapshot() ModelSnapshot {
	return ModelSnapshot{
		Churn: churn.Snapshot{
			Weights: []float64{-0.5, 1.2, -0.3},
			Means:   []float64{150, 55},
			Scales:  []float64{40, 12},
			Metrics: churn.Metrics{AUC: 0.82, TrainRows: 160, HoldoutRows: 40, PositiveRate: 0.3},
		},
		Elasticities: map[int]elasticity.Estimate{
			1: {SegmentID: 1, Coefficient: -1.1, CIWidth: 0.5, PriceLevels: 5},
			2: {SegmentID: 2, Coefficient: -0.8, CIWidth: 0.9, PriceLevels: 3, PopulationFallback: true},
		},
		Segments: []domain.Segment{
			{ID: 1, Label: "tier-1", Size: 60},
			{ID: 2, Label: "tier-2", Size: 40},
		},
	}
}

func TestSaveRunAndLoadRecommendations(t *testing.T) {
	store := testStore(t)

	run := RunRecord{
		StartedAt:    time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC),
		FinishedAt:   time.Date(2026, 3, 1, 9, 0, 42, 0, time.UTC),
		InputPath:    "data/customers.csv",
		Seed:         42,
		SegmentCount: 2,
		ChurnCeiling: 0.20,
		CustomerRows: 100,
	}
	recs := []domain.PricingRecommendation{
		{SegmentID: 1, SegmentLabel: "tier-1", RecommendedPrice: 62.50, ExpectedLTVCACRatio: 5.4, ExpectedChurn: 0.11},
		{SegmentID: 2, SegmentLabel: "tier-2", RecommendedPrice: 41.00, ExpectedLTVCACRatio: 3.1, ExpectedChurn: 0.19, ConstraintRelaxed: true},
	}

	runID, err := store.SaveRun(run, recs, sampleSnapshot())
	require.NoError(t, err)
	assert.NotEmpty(t, runID)

	loaded, err := store.Recommendations(runID)
	require.NoError(t, err)
	assert.Equal(t, recs, loaded)
}

func TestSaveRun_KeepsExplicitID(t *testing.T) {
	store := testStore(t)

	runID, err := store.SaveRun(RunRecord{ID: "run-001"}, nil, ModelSnapshot{})
	require.NoError(t, err)
	assert.Equal(t, "run-001", runID)
}

func TestSaveRun_DuplicateIDRollsBack(t *testing.T) {
	store := testStore(t)

	recs := []domain.PricingRecommendation{{SegmentID: 1, SegmentLabel: "tier-1"}}
	_, err := store.SaveRun(RunRecord{ID: "run-dup"}, recs, ModelSnapshot{})
	require.NoError(t, err)

	_, err = store.SaveRun(RunRecord{ID: "run-dup"}, recs, ModelSnapshot{})
	require.Error(t, err)

	// The failed run must not have duplicated recommendation rows
	loaded, err := store.Recommendations("run-dup")
	require.NoError(t, err)
	assert.Len(t, loaded, 1)
}

func TestSnapshotRoundTrip(t *testing.T) {
	store := testStore(t)
	snapshot := sampleSnapshot()

	runID, err := store.SaveRun(RunRecord{Seed: 7}, nil, snapshot)
	require.NoError(t, err)

	loaded, err := store.Snapshot(runID)
	require.NoError(t, err)
	assert.Equal(t, snapshot.Churn, loaded.Churn)
	assert.Equal(t, snapshot.Elasticities, loaded.Elasticities)
	assert.Len(t, loaded.Segments, 2)
}

func TestSnapshot_UnknownRun(t *testing.T) {
	store := testStore(t)

	_, err := store.Snapshot("no-such-run")
	assert.Error(t, err)
}
