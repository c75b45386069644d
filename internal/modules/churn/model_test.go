package churn

import (
	"errors"
	"fmt"
	"math/rand"
	"testing"

	"github.com/aristath/pricelab/internal/domain"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// trainingRows builds a population where short-tenure expensive
// customers churn, so the model has real signal to pick up.
func trainingRows(n int, seed int64) []domain.FeatureRow {
	rng := rand.New(rand.NewSource(seed))
	rows := make([]domain.FeatureRow, 0, n)
	for i := 0; i < n; i++ {
		tenure := float64(1 + rng.Intn(36))
		price := 30 + rng.Float64()*120
		churned := 0.0
		// Signal: short tenure and high price drive churn
		if tenure < 8 && price > 70 {
			churned = 1
		}
		if rng.Float64() < 0.05 { // label noise
			churned = 1 - churned
		}
		rows = append(rows, domain.FeatureRow{
			CustomerID:   fmt.Sprintf("C%04d", i),
			CAC:          50 + rng.Float64()*200,
			ARPU:         price,
			GrossMargin:  0.7 + rng.Float64()*0.2,
			TenureMonths: tenure,
			ChurnFlag:    churned,
			PricePaid:    price,
			RegionCode:   float64(i % 4),
			ChannelCode:  float64(i % 3),
		})
	}
	return rows
}

func TestTrain_ReportsHoldoutAUC(t *testing.T) {
	rows := trainingRows(400, 1)

	model, err := Train(rows, Config{Seed: 42}, zerolog.Nop())
	require.NoError(t, err)

	metrics := model.Metrics()
	assert.Greater(t, metrics.AUC, 0.7, "model should discriminate on synthetic signal")
	assert.LessOrEqual(t, metrics.AUC, 1.0)
	assert.Greater(t, metrics.HoldoutRows, 0)
	assert.Greater(t, metrics.TrainRows, metrics.HoldoutRows)
}

func TestTrain_InsufficientRows(t *testing.T) {
	rows := trainingRows(20, 1)

	_, err := Train(rows, Config{Seed: 42}, zerolog.Nop())
	var insufficient *domain.InsufficientDataError
	require.True(t, errors.As(err, &insufficient))
	assert.Equal(t, MinLabeledRows, insufficient.Needed)
}

func TestTrain_SingleClassLabel(t *testing.T) {
	rows := trainingRows(100, 1)
	for i := range rows {
		rows[i].ChurnFlag = 0
	}

	_, err := Train(rows, Config{Seed: 42}, zerolog.Nop())
	var insufficient *domain.InsufficientDataError
	require.True(t, errors.As(err, &insufficient))
	assert.Contains(t, insufficient.Reason, "single-class")
}

func TestPredictProbability_AlwaysInUnitInterval(t *testing.T) {
	model, err := Train(trainingRows(300, 1), Config{Seed: 42}, zerolog.Nop())
	require.NoError(t, err)

	extremes := []domain.FeatureRow{
		{CAC: 1e9, ARPU: 1e9, GrossMargin: 1, TenureMonths: 1e6, PricePaid: 1e9, RegionCode: 99, ChannelCode: 99},
		{CAC: 0, ARPU: 0, GrossMargin: 0, TenureMonths: 0, PricePaid: 0},
		{CAC: -1e9, ARPU: -1e9, GrossMargin: -1, TenureMonths: -1e6, PricePaid: -1e9},
	}
	for i, row := range extremes {
		p := model.PredictProbability(row)
		assert.GreaterOrEqual(t, p, 0.0, "extreme case %d", i)
		assert.LessOrEqual(t, p, 1.0, "extreme case %d", i)
	}
}

func TestTrain_DeterministicForSeed(t *testing.T) {
	rows := trainingRows(200, 7)

	a, err := Train(rows, Config{Seed: 42}, zerolog.Nop())
	require.NoError(t, err)
	b, err := Train(rows, Config{Seed: 42}, zerolog.Nop())
	require.NoError(t, err)

	sample := rows[17]
	assert.Equal(t, a.PredictProbability(sample), b.PredictProbability(sample))
	assert.Equal(t, a.Metrics().AUC, b.Metrics().AUC)
}

// Perfectly separated classes flatten the regularized loss until the
// optimizer's line search stalls; training must still return the model
// instead of surfacing the stall as a failure.
func TestTrain_SeparableClasses(t *testing.T) {
	rows := make([]domain.FeatureRow, 0, 100)
	for i := 0; i < 100; i++ {
		churned := 0.0
		tenure := float64(20 + i%6)
		if i%5 == 0 { // every churned customer sits far below the tenure band
			churned = 1
			tenure = 2
		}
		rows = append(rows, domain.FeatureRow{
			CustomerID:   fmt.Sprintf("C%04d", i),
			CAC:          100 + float64(i%7),
			ARPU:         60,
			GrossMargin:  0.75,
			TenureMonths: tenure,
			ChurnFlag:    churned,
			PricePaid:    50 + float64(i%5)*10,
			RegionCode:   float64(i % 2),
			ChannelCode:  float64(i % 2),
		})
	}

	model, err := Train(rows, Config{Seed: 42}, zerolog.Nop())
	require.NoError(t, err)

	metrics := model.Metrics()
	assert.GreaterOrEqual(t, metrics.AUC, 0.9, "tenure fully separates the classes")
	assert.LessOrEqual(t, metrics.AUC, 1.0)

	for _, row := range rows {
		p := model.PredictProbability(row)
		assert.GreaterOrEqual(t, p, 0.0)
		assert.LessOrEqual(t, p, 1.0)
	}
}

func TestTrain_PredictionsTrackSignal(t *testing.T) {
	rows := trainingRows(400, 3)
	model, err := Train(rows, Config{Seed: 42}, zerolog.Nop())
	require.NoError(t, err)

	risky := domain.FeatureRow{CAC: 150, ARPU: 140, GrossMargin: 0.8, TenureMonths: 2, PricePaid: 140, RegionCode: 1, ChannelCode: 1}
	safe := domain.FeatureRow{CAC: 150, ARPU: 40, GrossMargin: 0.8, TenureMonths: 30, PricePaid: 40, RegionCode: 1, ChannelCode: 1}

	assert.Greater(t, model.PredictProbability(risky), model.PredictProbability(safe),
		"short-tenure high-price customer should look riskier")
}

func TestSnapshot_RoundTripState(t *testing.T) {
	model, err := Train(trainingRows(200, 5), Config{Seed: 42}, zerolog.Nop())
	require.NoError(t, err)

	snap := model.Snapshot()
	assert.Len(t, snap.Weights, featureCount+1)
	assert.Len(t, snap.Means, featureCount)
	assert.Len(t, snap.Scales, featureCount)
	assert.Equal(t, model.Metrics(), snap.Metrics)
}
