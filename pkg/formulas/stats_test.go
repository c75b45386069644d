package formulas

import (
	"math"
	"testing"
)

func TestMean(t *testing.T) {
	tests := []struct {
		name string
		data []float64
		want float64
	}{
		{name: "empty slice", data: []float64{}, want: 0},
		{name: "single value", data: []float64{5.0}, want: 5.0},
		{name: "multiple values", data: []float64{1, 2, 3, 4}, want: 2.5},
		{name: "negative values", data: []float64{-2, 2}, want: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Mean(tt.data)
			if math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("Mean() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestClamp01(t *testing.T) {
	tests := []struct {
		name string
		v    float64
		want float64
	}{
		{name: "below range", v: -0.5, want: 0},
		{name: "above range", v: 1.5, want: 1},
		{name: "in range", v: 0.42, want: 0.42},
		{name: "at lower bound", v: 0, want: 0},
		{name: "at upper bound", v: 1, want: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Clamp01(tt.v); got != tt.want {
				t.Errorf("Clamp01(%v) = %v, want %v", tt.v, got, tt.want)
			}
		})
	}
}

func TestStandardize(t *testing.T) {
	t.Run("zero variance maps to zeros", func(t *testing.T) {
		got := Standardize([]float64{3, 3, 3})
		for i, v := range got {
			if v != 0 {
				t.Errorf("Standardize constant slice, index %d = %v, want 0", i, v)
			}
		}
	})

	t.Run("z-scores have zero mean", func(t *testing.T) {
		got := Standardize([]float64{1, 2, 3, 4, 5})
		if math.Abs(Mean(got)) > 1e-9 {
			t.Errorf("standardized mean = %v, want 0", Mean(got))
		}
	})

	t.Run("empty input", func(t *testing.T) {
		if got := Standardize(nil); len(got) != 0 {
			t.Errorf("Standardize(nil) length = %d, want 0", len(got))
		}
	})
}

func TestLinearFit(t *testing.T) {
	t.Run("perfect line", func(t *testing.T) {
		x := []float64{1, 2, 3, 4, 5}
		y := []float64{3, 5, 7, 9, 11} // y = 1 + 2x
		alpha, beta, stdErr, ok := LinearFit(x, y)
		if !ok {
			t.Fatal("LinearFit returned not ok for valid input")
		}
		if math.Abs(alpha-1) > 1e-9 || math.Abs(beta-2) > 1e-9 {
			t.Errorf("fit = (%v, %v), want (1, 2)", alpha, beta)
		}
		if stdErr > 1e-9 {
			t.Errorf("stdErr = %v for perfect fit, want ~0", stdErr)
		}
	})

	t.Run("zero x variance", func(t *testing.T) {
		_, _, _, ok := LinearFit([]float64{2, 2, 2}, []float64{1, 2, 3})
		if ok {
			t.Error("LinearFit should fail on zero x variance")
		}
	})

	t.Run("too few points", func(t *testing.T) {
		_, _, _, ok := LinearFit([]float64{1, 2}, []float64{1, 2})
		if ok {
			t.Error("LinearFit should fail with fewer than 3 points")
		}
	})
}
