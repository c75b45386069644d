// Package segmentation partitions customers into behavioral/value
// segments with a seeded k-means over standardized features.
package segmentation

import (
	"fmt"
	"math"
	"math/rand"
	"sort"

	"github.com/aristath/pricelab/internal/domain"
	"github.com/aristath/pricelab/pkg/formulas"
	"github.com/rs/zerolog"
)

// Config holds segmenter parameters
type Config struct {
	K             int   // Requested segment count (default 4)
	Seed          int64 // Seed for centroid initialization
	MaxIterations int   // Lloyd iteration cap (default 100)
}

// Result carries the fixed partition produced by a segmenter run
type Result struct {
	Assignments map[string]int // customer ID -> segment ID
	Segments    []domain.Segment
	AdjustedK   bool // true when k was reduced to the distinct row count
}

// Segmenter groups feature rows by minimizing within-cluster variance
// over standardized [CAC, LTV, tenure, churn flag] vectors. Runs are
// deterministic for a given seed and input order, which the audit
// trail depends on.
type Segmenter struct {
	cfg Config
	log zerolog.Logger
}

// New creates a new segmenter
func New(cfg Config, log zerolog.Logger) *Segmenter {
	if cfg.K <= 0 {
		cfg.K = 4
	}
	if cfg.MaxIterations <= 0 {
		cfg.MaxIterations = 100
	}
	return &Segmenter{cfg: cfg, log: log.With().Str("component", "segmentation").Logger()}
}

// Segment partitions the rows into at most cfg.K segments.
// Fewer distinct customers than k reduces k to the distinct count and
// reports the adjustment instead of failing.
func (s *Segmenter) Segment(rows []domain.FeatureRow) (*Result, error) {
	if len(rows) == 0 {
		return nil, &domain.InsufficientDataError{Stage: "segmentation", Needed: 1, Got: 0, Reason: "feature rows"}
	}

	points := standardizedMatrix(rows)

	k := s.cfg.K
	distinct := countDistinct(points)
	adjusted := false
	if distinct < k {
		s.log.Warn().
			Int("requested_k", k).
			Int("distinct_rows", distinct).
			Msg("Reducing segment count to distinct customer count")
		k = distinct
		adjusted = true
	}

	assignments := s.kmeans(points, k)

	segments := buildSegments(rows, assignments, k)

	// Relabel by descending mean LTV so segment IDs read as value
	// tiers and stay stable across identical runs.
	segments, remap := relabelByValue(segments)
	byCustomer := make(map[string]int, len(rows))
	for i, row := range rows {
		byCustomer[row.CustomerID] = remap[assignments[i]]
	}

	s.log.Info().Int("segments", len(segments)).Int("rows", len(rows)).Msg("Segmentation complete")

	return &Result{Assignments: byCustomer, Segments: segments, AdjustedK: adjusted}, nil
}

// standardizedMatrix builds z-scored feature vectors: CAC, LTV,
// tenure, churn flag.
func standardizedMatrix(rows []domain.FeatureRow) [][]float64 {
	n := len(rows)
	cac := make([]float64, n)
	ltv := make([]float64, n)
	tenure := make([]float64, n)
	churn := make([]float64, n)
	for i, r := range rows {
		cac[i] = r.CAC
		ltv[i] = r.LTV
		tenure[i] = r.TenureMonths
		churn[i] = r.ChurnFlag
	}

	cac = formulas.Standardize(cac)
	ltv = formulas.Standardize(ltv)
	tenure = formulas.Standardize(tenure)
	churn = formulas.Standardize(churn)

	points := make([][]float64, n)
	for i := 0; i < n; i++ {
		points[i] = []float64{cac[i], ltv[i], tenure[i], churn[i]}
	}
	return points
}

func countDistinct(points [][]float64) int {
	seen := make(map[string]struct{}, len(points))
	for _, p := range points {
		seen[fmt.Sprintf("%.9f|%.9f|%.9f|%.9f", p[0], p[1], p[2], p[3])] = struct{}{}
	}
	return len(seen)
}

// kmeans runs k-means++ initialization followed by Lloyd iterations.
func (s *Segmenter) kmeans(points [][]float64, k int) []int {
	rng := rand.New(rand.NewSource(s.cfg.Seed))
	centroids := initPlusPlus(points, k, rng)
	assignments := make([]int, len(points))

	for iter := 0; iter < s.cfg.MaxIterations; iter++ {
		changed := false
		for i, p := range points {
			best := nearestCentroid(p, centroids)
			if best != assignments[i] {
				assignments[i] = best
				changed = true
			}
		}

		centroids = recomputeCentroids(points, assignments, k, centroids)

		if !changed && iter > 0 {
			break
		}
	}

	return assignments
}

// initPlusPlus picks initial centroids with the k-means++ rule: first
// uniformly, then proportional to squared distance from the chosen set.
func initPlusPlus(points [][]float64, k int, rng *rand.Rand) [][]float64 {
	centroids := make([][]float64, 0, k)
	centroids = append(centroids, clone(points[rng.Intn(len(points))]))

	for len(centroids) < k {
		dist := make([]float64, len(points))
		var total float64
		for i, p := range points {
			d := math.Inf(1)
			for _, c := range centroids {
				if dd := sqDist(p, c); dd < d {
					d = dd
				}
			}
			dist[i] = d
			total += d
		}

		if total == 0 {
			// All remaining points coincide with chosen centroids;
			// duplicate one deterministically.
			centroids = append(centroids, clone(points[0]))
			continue
		}

		target := rng.Float64() * total
		var cum float64
		chosen := len(points) - 1
		for i, d := range dist {
			cum += d
			if cum >= target {
				chosen = i
				break
			}
		}
		centroids = append(centroids, clone(points[chosen]))
	}

	return centroids
}

func recomputeCentroids(points [][]float64, assignments []int, k int, prev [][]float64) [][]float64 {
	dims := len(points[0])
	sums := make([][]float64, k)
	counts := make([]int, k)
	for i := range sums {
		sums[i] = make([]float64, dims)
	}
	for i, p := range points {
		c := assignments[i]
		counts[c]++
		for d, v := range p {
			sums[c][d] += v
		}
	}

	centroids := make([][]float64, k)
	for c := 0; c < k; c++ {
		if counts[c] == 0 {
			// Keep the previous centroid for an empty cluster; the
			// next assignment pass may repopulate it.
			centroids[c] = prev[c]
			continue
		}
		centroids[c] = make([]float64, dims)
		for d := 0; d < dims; d++ {
			centroids[c][d] = sums[c][d] / float64(counts[c])
		}
	}
	return centroids
}

func nearestCentroid(p []float64, centroids [][]float64) int {
	best := 0
	bestDist := math.Inf(1)
	for i, c := range centroids {
		if d := sqDist(p, c); d < bestDist {
			bestDist = d
			best = i
		}
	}
	return best
}

func sqDist(a, b []float64) float64 {
	var sum float64
	for i := range a {
		d := a[i] - b[i]
		sum += d * d
	}
	return sum
}

func clone(p []float64) []float64 {
	out := make([]float64, len(p))
	copy(out, p)
	return out
}

// buildSegments computes per-cluster centroid statistics from the raw
// (unstandardized) rows.
func buildSegments(rows []domain.FeatureRow, assignments []int, k int) []domain.Segment {
	type acc struct {
		cac, ltv, arpu, margin, tenure, price, hazard float64
		churned                                       float64
		n                                             int
	}
	accs := make([]acc, k)
	for i, row := range rows {
		a := &accs[assignments[i]]
		a.cac += row.CAC
		a.ltv += row.LTV
		a.arpu += row.ARPU
		a.margin += row.GrossMargin
		a.tenure += row.TenureMonths
		a.price += row.PricePaid
		a.hazard += row.ChurnRate
		a.churned += row.ChurnFlag
		a.n++
	}

	var segments []domain.Segment
	for c := 0; c < k; c++ {
		a := accs[c]
		if a.n == 0 {
			continue // empty clusters are dropped from the partition
		}
		n := float64(a.n)
		profile := domain.SegmentProfile{
			MeanCAC:    a.cac / n,
			MeanLTV:    a.ltv / n,
			MeanARPU:   a.arpu / n,
			MeanMargin: a.margin / n,
			MeanTenure: a.tenure / n,
			MeanPrice:  a.price / n,
			ChurnRate:  a.churned / n,
			MeanHazard: a.hazard / n,
		}
		if profile.MeanCAC > 0 {
			profile.LTVCACRatio = profile.MeanLTV / profile.MeanCAC
		}
		segments = append(segments, domain.Segment{ID: c, Size: a.n, Profile: profile})
	}
	return segments
}

// relabelByValue orders segments by descending mean LTV and assigns
// tier IDs/labels. Returns the relabeled segments and a map from the
// internal cluster index to the public segment ID.
func relabelByValue(segments []domain.Segment) ([]domain.Segment, map[int]int) {
	sorted := make([]domain.Segment, len(segments))
	copy(sorted, segments)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Profile.MeanLTV != sorted[j].Profile.MeanLTV {
			return sorted[i].Profile.MeanLTV > sorted[j].Profile.MeanLTV
		}
		return sorted[i].ID < sorted[j].ID
	})

	remap := make(map[int]int, len(sorted))
	for rank := range sorted {
		remap[sorted[rank].ID] = rank + 1
		sorted[rank].ID = rank + 1
		sorted[rank].Label = fmt.Sprintf("tier-%d", rank+1)
	}
	return sorted, remap
}
