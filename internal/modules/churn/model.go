// Package churn fits a supervised churn-probability model.
package churn

import (
	"errors"
	"fmt"
	"math"
	"math/rand"
	"sort"

	"github.com/aristath/pricelab/internal/domain"
	"github.com/rs/zerolog"
	"gonum.org/v1/gonum/integrate"
	"gonum.org/v1/gonum/optimize"
	"gonum.org/v1/gonum/stat"
)

// MinLabeledRows is the smallest population the trainer accepts.
const MinLabeledRows = 50

// Config holds training parameters
type Config struct {
	Seed            int64
	HoldoutFraction float64 // fraction held out for the AUC report (default 0.2)
	L2              float64 // ridge penalty on the weights (default 1.0)
	MinRows         int     // override for tests; defaults to MinLabeledRows
}

// Metrics reports held-out discrimination after training
type Metrics struct {
	AUC          float64 `json:"auc"`
	TrainRows    int     `json:"train_rows"`
	HoldoutRows  int     `json:"holdout_rows"`
	PositiveRate float64 `json:"positive_rate"`
}

// Snapshot is the serializable state of a trained model, persisted to
// the audit store so a run's predictions can be reproduced later.
type Snapshot struct {
	Weights []float64 `msgpack:"weights" json:"weights"`
	Means   []float64 `msgpack:"means" json:"means"`
	Scales  []float64 `msgpack:"scales" json:"scales"`
	Metrics Metrics   `msgpack:"metrics" json:"metrics"`
}

// Model is a trained logistic churn model. Stateless after training;
// safe to share across downstream stages.
type Model struct {
	weights []float64 // bias first, then one weight per feature
	means   []float64
	scales  []float64
	metrics Metrics
}

// featureVector extracts the modeling features from a row. LTV and the
// churn hazard stay out: both are functions of the label.
func featureVector(row domain.FeatureRow) []float64 {
	return []float64{
		row.CAC,
		row.ARPU,
		row.GrossMargin,
		row.TenureMonths,
		row.PricePaid,
		row.RegionCode,
		row.ChannelCode,
	}
}

const featureCount = 7

// Train fits the model on a deterministic stratified split and reports
// held-out AUC. Fails with *domain.InsufficientDataError when fewer
// than the minimum labeled rows are available or the label is
// single-class.
func Train(rows []domain.FeatureRow, cfg Config, log zerolog.Logger) (*Model, error) {
	log = log.With().Str("component", "churn").Logger()

	minRows := cfg.MinRows
	if minRows <= 0 {
		minRows = MinLabeledRows
	}
	if cfg.HoldoutFraction <= 0 || cfg.HoldoutFraction >= 1 {
		cfg.HoldoutFraction = 0.2
	}
	if cfg.L2 <= 0 {
		cfg.L2 = 1.0
	}

	if len(rows) < minRows {
		return nil, &domain.InsufficientDataError{Stage: "churn", Needed: minRows, Got: len(rows), Reason: "labeled rows"}
	}

	var positives, negatives []domain.FeatureRow
	for _, row := range rows {
		if row.ChurnFlag > 0.5 {
			positives = append(positives, row)
		} else {
			negatives = append(negatives, row)
		}
	}
	if len(positives) == 0 || len(negatives) == 0 {
		return nil, &domain.InsufficientDataError{Stage: "churn", Reason: "single-class label, nothing to learn"}
	}

	train, holdout := stratifiedSplit(positives, negatives, cfg.HoldoutFraction, cfg.Seed)

	means, scales := columnStats(train)

	x := make([][]float64, len(train))
	y := make([]float64, len(train))
	for i, row := range train {
		x[i] = standardizeVector(featureVector(row), means, scales)
		y[i] = row.ChurnFlag
	}

	weights, err := fitLogistic(x, y, cfg.L2)
	if err != nil {
		return nil, fmt.Errorf("churn: model fit failed: %w", err)
	}

	m := &Model{weights: weights, means: means, scales: scales}

	// Held-out AUC; falls back to the full population when the holdout
	// ended up single-class (possible with very few minority rows).
	aucRows := holdout
	if singleClass(holdout) {
		log.Warn().Msg("Holdout split is single-class, reporting in-sample AUC")
		aucRows = rows
	}
	m.metrics = Metrics{
		AUC:          m.auc(aucRows),
		TrainRows:    len(train),
		HoldoutRows:  len(holdout),
		PositiveRate: float64(len(positives)) / float64(len(rows)),
	}

	log.Info().
		Float64("auc", m.metrics.AUC).
		Int("train_rows", m.metrics.TrainRows).
		Int("holdout_rows", m.metrics.HoldoutRows).
		Msg("Churn model trained")

	return m, nil
}

// PredictProbability returns the churn probability for a row, always
// inside [0,1] even for feature values far outside the training range.
func (m *Model) PredictProbability(row domain.FeatureRow) float64 {
	z := standardizeVector(featureVector(row), m.means, m.scales)
	score := m.weights[0]
	for i, v := range z {
		score += m.weights[i+1] * v
	}
	return sigmoid(score)
}

// Metrics returns the training report
func (m *Model) Metrics() Metrics {
	return m.metrics
}

// Snapshot exports the trained state for audit persistence
func (m *Model) Snapshot() Snapshot {
	return Snapshot{
		Weights: append([]float64(nil), m.weights...),
		Means:   append([]float64(nil), m.means...),
		Scales:  append([]float64(nil), m.scales...),
		Metrics: m.metrics,
	}
}

// auc computes area under the ROC curve over the given rows.
func (m *Model) auc(rows []domain.FeatureRow) float64 {
	scores := make([]float64, len(rows))
	classes := make([]bool, len(rows))
	for i, row := range rows {
		scores[i] = m.PredictProbability(row)
		classes[i] = row.ChurnFlag > 0.5
	}

	// stat.ROC wants scores ascending with classes aligned
	idx := make([]int, len(scores))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool { return scores[idx[a]] < scores[idx[b]] })
	sortedScores := make([]float64, len(scores))
	sortedClasses := make([]bool, len(scores))
	for i, j := range idx {
		sortedScores[i] = scores[j]
		sortedClasses[i] = classes[j]
	}

	tpr, fpr, _ := stat.ROC(nil, sortedScores, sortedClasses, nil)
	return integrate.Trapezoidal(fpr, tpr)
}

// stratifiedSplit shuffles each class separately with the seed and
// holds out the configured fraction of each, keeping the split
// deterministic and both classes represented in training.
func stratifiedSplit(positives, negatives []domain.FeatureRow, fraction float64, seed int64) (train, holdout []domain.FeatureRow) {
	rng := rand.New(rand.NewSource(seed))

	split := func(class []domain.FeatureRow) {
		shuffled := make([]domain.FeatureRow, len(class))
		copy(shuffled, class)
		rng.Shuffle(len(shuffled), func(i, j int) {
			shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
		})
		cut := int(float64(len(shuffled)) * fraction)
		if cut >= len(shuffled) {
			cut = len(shuffled) - 1
		}
		holdout = append(holdout, shuffled[:cut]...)
		train = append(train, shuffled[cut:]...)
	}

	split(positives)
	split(negatives)
	return train, holdout
}

func singleClass(rows []domain.FeatureRow) bool {
	if len(rows) == 0 {
		return true
	}
	first := rows[0].ChurnFlag > 0.5
	for _, row := range rows[1:] {
		if (row.ChurnFlag > 0.5) != first {
			return false
		}
	}
	return true
}

// columnStats computes per-feature mean and standard deviation over
// the training rows for standardization at fit and predict time.
func columnStats(rows []domain.FeatureRow) (means, scales []float64) {
	means = make([]float64, featureCount)
	scales = make([]float64, featureCount)

	cols := make([][]float64, featureCount)
	for i := range cols {
		cols[i] = make([]float64, len(rows))
	}
	for r, row := range rows {
		for c, v := range featureVector(row) {
			cols[c][r] = v
		}
	}
	for c := range cols {
		means[c] = stat.Mean(cols[c], nil)
		sd := stat.StdDev(cols[c], nil)
		if sd == 0 || math.IsNaN(sd) {
			sd = 1 // constant column stays constant after centering
		}
		scales[c] = sd
	}
	return means, scales
}

func standardizeVector(v, means, scales []float64) []float64 {
	out := make([]float64, len(v))
	for i := range v {
		out[i] = (v[i] - means[i]) / scales[i]
	}
	return out
}

// fitLogistic minimizes the L2-regularized negative log-likelihood
// with L-BFGS. The problem is convex, so the fit is deterministic from
// a zero start.
func fitLogistic(x [][]float64, y []float64, l2 float64) ([]float64, error) {
	n := float64(len(x))
	dims := featureCount + 1 // bias + features

	problem := optimize.Problem{
		Func: func(w []float64) float64 {
			var loss float64
			for i, xi := range x {
				score := w[0]
				for j, v := range xi {
					score += w[j+1] * v
				}
				// log(1+exp(-margin)) in a numerically safe form
				margin := score
				if y[i] < 0.5 {
					margin = -score
				}
				loss += math.Log1p(math.Exp(-margin))
			}
			loss /= n
			for j := 1; j < dims; j++ { // bias unpenalized
				loss += l2 / (2 * n) * w[j] * w[j]
			}
			return loss
		},
		Grad: func(grad, w []float64) {
			for j := range grad {
				grad[j] = 0
			}
			for i, xi := range x {
				score := w[0]
				for j, v := range xi {
					score += w[j+1] * v
				}
				err := sigmoid(score) - y[i]
				grad[0] += err
				for j, v := range xi {
					grad[j+1] += err * v
				}
			}
			for j := range grad {
				grad[j] /= n
			}
			for j := 1; j < dims; j++ {
				grad[j] += l2 / n * w[j]
			}
		},
	}

	result, err := optimize.Minimize(problem, make([]float64, dims), nil, &optimize.LBFGS{})
	if err != nil {
		// Well-separated classes flatten the regularized loss until the
		// line search cannot make further progress. The objective is
		// strictly convex, so the last iterate is still a usable
		// minimizer; only reject it when the loss is not finite.
		if !errors.Is(err, optimize.ErrLinesearcherFailure) ||
			result == nil || math.IsNaN(result.F) || math.IsInf(result.F, 0) {
			return nil, err
		}
	}
	return result.X, nil
}

func sigmoid(z float64) float64 {
	// Guard the exponent so extreme scores saturate instead of overflowing
	if z > 35 {
		return 1
	}
	if z < -35 {
		return 0
	}
	return 1 / (1 + math.Exp(-z))
}
