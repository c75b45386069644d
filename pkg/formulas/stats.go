package formulas

import (
	"math"

	"gonum.org/v1/gonum/stat"
)

// Mean calculates the arithmetic mean of a slice of float64 values
func Mean(data []float64) float64 {
	if len(data) == 0 {
		return 0
	}
	return stat.Mean(data, nil)
}

// StdDev calculates the standard deviation of a slice of float64 values
func StdDev(data []float64) float64 {
	if len(data) == 0 {
		return 0
	}
	return stat.StdDev(data, nil)
}

// Variance calculates the variance of a slice of float64 values
func Variance(data []float64) float64 {
	if len(data) == 0 {
		return 0
	}
	return stat.Variance(data, nil)
}

// Correlation calculates the Pearson correlation coefficient between two datasets
func Correlation(x, y []float64) float64 {
	if len(x) == 0 || len(y) == 0 || len(x) != len(y) {
		return 0
	}
	return stat.Correlation(x, y, nil)
}

// Clamp01 bounds a value to the [0, 1] interval
func Clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// Standardize converts values to z-scores using the slice's own mean and
// standard deviation. A zero-variance column maps to all zeros rather
// than NaN, so constant features stay inert in distance calculations.
func Standardize(data []float64) []float64 {
	result := make([]float64, len(data))
	if len(data) == 0 {
		return result
	}

	mean := stat.Mean(data, nil)
	sd := stat.StdDev(data, nil)
	if sd == 0 || math.IsNaN(sd) {
		return result
	}

	for i, v := range data {
		result[i] = (v - mean) / sd
	}
	return result
}

// LinearFit performs ordinary least squares of y on x and returns the
// intercept (alpha), slope (beta), and the standard error of the slope.
// Returns an invalid flag when fewer than 3 points or zero x-variance.
func LinearFit(x, y []float64) (alpha, beta, stdErr float64, ok bool) {
	if len(x) != len(y) || len(x) < 3 {
		return 0, 0, 0, false
	}

	xVar := stat.Variance(x, nil)
	if xVar == 0 {
		return 0, 0, 0, false
	}

	alpha, beta = stat.LinearRegression(x, y, nil, false)

	// Standard error of the slope: sqrt(SSR / (n-2)) / sqrt(Sxx)
	n := float64(len(x))
	var ssr, sxx float64
	xMean := stat.Mean(x, nil)
	for i := range x {
		resid := y[i] - (alpha + beta*x[i])
		ssr += resid * resid
		dx := x[i] - xMean
		sxx += dx * dx
	}
	if sxx == 0 || n <= 2 {
		return alpha, beta, 0, false
	}
	stdErr = math.Sqrt(ssr/(n-2)) / math.Sqrt(sxx)

	return alpha, beta, stdErr, true
}
