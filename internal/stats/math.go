package stats

import (
	"math"
	"slices"
)

// CalculateMedian finds the median value in a slice of floats.
func CalculateMedian(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}

	// Work on a copy to avoid mutating the original
	temp := make([]float64, len(values))
	copy(temp, values)
	slices.Sort(temp)

	n := len(temp)
	if n%2 == 1 {
		return temp[n/2]
	}
	return (temp[n/2-1] + temp[n/2]) / 2.0
}

// Mean returns the arithmetic mean, or 0 for an empty slice.
func Mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// Ratio divides num by den and returns 0 when den is 0.
func Ratio(num, den float64) float64 {
	if den == 0 {
		return 0
	}
	return num / den
}

// Percentile returns the p-th percentile (0..100) using linear interpolation
// between closest ranks, the same convention as numpy's default.
func Percentile(values []float64, p float64) float64 {
	if len(values) == 0 {
		return 0
	}

	temp := make([]float64, len(values))
	copy(temp, values)
	slices.Sort(temp)

	if p <= 0 {
		return temp[0]
	}
	if p >= 100 {
		return temp[len(temp)-1]
	}

	rank := (p / 100.0) * float64(len(temp)-1)
	lo := int(math.Floor(rank))
	hi := int(math.Ceil(rank))
	if lo == hi {
		return temp[lo]
	}
	frac := rank - float64(lo)
	return temp[lo] + (temp[hi]-temp[lo])*frac
}

// PercentileRank returns the share of values that are less than or equal to v.
func PercentileRank(values []float64, v float64) float64 {
	if len(values) == 0 {
		return 0
	}
	count := 0
	for _, x := range values {
		if x <= v {
			count++
		}
	}
	return float64(count) / float64(len(values))
}

// TrailingMean returns, for every position, the mean of that value and up to
// window-1 preceding values. The first positions use whatever is available.
func TrailingMean(values []float64, window int) []float64 {
	if window < 1 {
		window = 1
	}
	out := make([]float64, len(values))
	sum := 0.0
	for i, v := range values {
		sum += v
		if i >= window {
			sum -= values[i-window]
		}
		n := min(i+1, window)
		out[i] = sum / float64(n)
	}
	return out
}

// WeightedSlope fits y = a + b·x by weighted least squares and returns b.
// It returns 0 for fewer than two points or a degenerate (collinear) design.
func WeightedSlope(x, y, w []float64) float64 {
	n := len(x)
	if n < 2 || len(y) != n || len(w) != n {
		return 0
	}

	var sw, swx, swy, swxy, swxx float64
	for i := 0; i < n; i++ {
		sw += w[i]
		swx += w[i] * x[i]
		swy += w[i] * y[i]
		swxy += w[i] * x[i] * y[i]
		swxx += w[i] * x[i] * x[i]
	}

	den := sw*swxx - swx*swx
	if den == 0 || math.Abs(den) < 1e-12 {
		return 0
	}
	return (sw*swxy - swx*swy) / den
}

// Round rounds v to the given number of decimal places.
func Round(v float64, places int) float64 {
	scale := math.Pow(10, float64(places))
	return math.Round(v*scale) / scale
}
