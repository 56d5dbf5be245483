package analytics

import (
	"math"

	"gonum.org/v1/gonum/stat"
)

func mean(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	return stat.Mean(xs, nil)
}

// sampleVariance uses the n-1 denominator and is zero for fewer than two values.
func sampleVariance(xs []float64) float64 {
	if len(xs) < 2 {
		return 0
	}
	return finite(stat.Variance(xs, nil))
}

// popStdDev is the population standard deviation of xs.
func popStdDev(xs []float64) float64 {
	n := len(xs)
	if n < 2 {
		return 0
	}
	v := sampleVariance(xs) * float64(n-1) / float64(n)
	return math.Sqrt(v)
}

func sampleStdDev(xs []float64) float64 {
	return math.Sqrt(sampleVariance(xs))
}

// correlation is Pearson's r, zero when either series has no spread.
func correlation(xs, ys []float64) float64 {
	if len(xs) < 2 || len(xs) != len(ys) {
		return 0
	}
	if sampleVariance(xs) == 0 || sampleVariance(ys) == 0 {
		return 0
	}
	return finite(stat.Correlation(xs, ys, nil))
}

// linearFit returns intercept and slope of y over x. Fewer than two points
// yield a flat line through the only observation.
func linearFit(xs, ys []float64) (intercept, slope float64) {
	switch {
	case len(ys) == 0:
		return 0, 0
	case len(ys) == 1 || len(xs) != len(ys):
		return ys[len(ys)-1], 0
	}
	if sampleVariance(xs) == 0 {
		return mean(ys), 0
	}
	intercept, slope = stat.LinearRegression(xs, ys, nil, false)
	if math.IsNaN(intercept) || math.IsNaN(slope) {
		return mean(ys), 0
	}
	return intercept, slope
}

func clamp(v, lo, hi float64) float64 {
	if math.IsNaN(v) {
		return lo
	}
	return math.Max(lo, math.Min(hi, v))
}

func finite(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}

// round2 keeps report figures stable across platforms.
func round2(v float64) float64 {
	return math.Round(finite(v)*100) / 100
}

func round4(v float64) float64 {
	return math.Round(finite(v)*10000) / 10000
}
