// Package features holds the NaN-aware time-series primitives shared by the
// regime estimator, the signal sleeves and the sizer. Windows are trailing
// and include the current observation; a window containing a missing value
// is undefined.
package features

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"
)

// NaN is a shorthand used across the sleeves.
var NaN = math.NaN()

// IsFinite reports whether v is neither NaN nor infinite.
func IsFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// LogReturns computes r_t = ln(x_t / x_{t-1}). The first entry is NaN,
// as is any entry touching a missing or non-positive price.
func LogReturns(x []float64) []float64 {
	out := make([]float64, len(x))
	for i := range x {
		out[i] = NaN
		if i == 0 {
			continue
		}
		prev, cur := x[i-1], x[i]
		if prev > 0 && cur > 0 {
			out[i] = math.Log(cur / prev)
		}
	}
	return out
}

// PctChange computes x_t / x_{t-n} - 1.
func PctChange(x []float64, n int) []float64 {
	out := make([]float64, len(x))
	for i := range x {
		out[i] = NaN
		if i < n {
			continue
		}
		prev := x[i-n]
		if math.IsNaN(prev) || math.IsNaN(x[i]) {
			continue
		}
		out[i] = x[i]/prev - 1
	}
	return out
}

// Diff computes x_t - x_{t-n}.
func Diff(x []float64, n int) []float64 {
	out := make([]float64, len(x))
	for i := range x {
		out[i] = NaN
		if i >= n {
			out[i] = x[i] - x[i-n]
		}
	}
	return out
}

// window returns x[i-w+1 : i+1] when it is complete and free of NaN.
func window(x []float64, i, w int) ([]float64, bool) {
	if w <= 0 || i+1 < w {
		return nil, false
	}
	win := x[i-w+1 : i+1]
	for _, v := range win {
		if math.IsNaN(v) {
			return nil, false
		}
	}
	return win, true
}

// RollingMean is the trailing mean over w observations.
func RollingMean(x []float64, w int) []float64 {
	out := make([]float64, len(x))
	for i := range x {
		out[i] = NaN
		if win, ok := window(x, i, w); ok {
			out[i] = stat.Mean(win, nil)
		}
	}
	return out
}

// RollingStd is the trailing sample standard deviation over w observations.
func RollingStd(x []float64, w int) []float64 {
	out := make([]float64, len(x))
	for i := range x {
		out[i] = NaN
		if w < 2 {
			continue
		}
		if win, ok := window(x, i, w); ok {
			out[i] = math.Sqrt(stat.Variance(win, nil))
		}
	}
	return out
}

// RollingMeanStd returns both trailing moments in one pass.
func RollingMeanStd(x []float64, w int) (mean, std []float64) {
	mean = make([]float64, len(x))
	std = make([]float64, len(x))
	for i := range x {
		mean[i], std[i] = NaN, NaN
		if w < 2 {
			continue
		}
		if win, ok := window(x, i, w); ok {
			mean[i], std[i] = stat.MeanStdDev(win, nil)
		}
	}
	return mean, std
}

// RollingHedgeRatio is cov(a, b) / var(b) over the trailing w observations.
// Undefined windows (missing data or zero variance) yield NaN.
func RollingHedgeRatio(a, b []float64, w int) []float64 {
	out := make([]float64, len(a))
	for i := range a {
		out[i] = NaN
		if w < 2 {
			continue
		}
		wa, okA := window(a, i, w)
		wb, okB := window(b, i, w)
		if !okA || !okB {
			continue
		}
		v := stat.Variance(wb, nil)
		if v == 0 || !IsFinite(v) {
			continue
		}
		out[i] = stat.Covariance(wa, wb, nil) / v
	}
	return out
}

// RollingMedian is the trailing median over at most w observations, defined
// once minPeriods non-missing values are available.
func RollingMedian(x []float64, w, minPeriods int) []float64 {
	out := make([]float64, len(x))
	buf := make([]float64, 0, w)
	for i := range x {
		out[i] = NaN
		lo := i - w + 1
		if lo < 0 {
			lo = 0
		}
		buf = buf[:0]
		for _, v := range x[lo : i+1] {
			if !math.IsNaN(v) {
				buf = append(buf, v)
			}
		}
		if len(buf) == 0 || len(buf) < minPeriods {
			continue
		}
		out[i] = median(buf)
	}
	return out
}

// median sorts xs in place.
func median(xs []float64) float64 {
	sort.Float64s(xs)
	n := len(xs)
	if n%2 == 1 {
		return xs[n/2]
	}
	return (xs[n/2-1] + xs[n/2]) / 2
}

// ExpandingPercentRank ranks x_t among all non-missing x_0..x_t, averaging
// ties, and divides by the number of observations so far.
func ExpandingPercentRank(x []float64) []float64 {
	out := make([]float64, len(x))
	count := 0
	for i, v := range x {
		out[i] = NaN
		if math.IsNaN(v) {
			continue
		}
		count++
		less, equal := 0, 0
		for _, u := range x[:i+1] {
			switch {
			case math.IsNaN(u):
			case u < v:
				less++
			case u == v:
				equal++
			}
		}
		rank := float64(less) + float64(equal+1)/2
		out[i] = rank / float64(count)
	}
	return out
}

// EWM is the recursive exponential moving average with alpha = 2/(span+1),
// seeded with the first defined value. Missing inputs carry the previous
// average forward.
func EWM(x []float64, span int) []float64 {
	out := make([]float64, len(x))
	alpha := 2 / (float64(span) + 1)
	prev := NaN
	for i, v := range x {
		switch {
		case math.IsNaN(v):
		case math.IsNaN(prev):
			prev = v
		default:
			prev = alpha*v + (1-alpha)*prev
		}
		out[i] = prev
	}
	return out
}

// ForwardFill replaces missing values with the last defined one, in place.
func ForwardFill(x []float64) []float64 {
	last := NaN
	for i, v := range x {
		if math.IsNaN(v) {
			x[i] = last
			continue
		}
		last = v
	}
	return x
}

// FillNaN replaces missing values with v, in place.
func FillNaN(x []float64, v float64) []float64 {
	for i := range x {
		if math.IsNaN(x[i]) {
			x[i] = v
		}
	}
	return x
}

// Finite turns infinities into NaN, in place.
func Finite(x []float64) []float64 {
	for i, v := range x {
		if math.IsInf(v, 0) {
			x[i] = NaN
		}
	}
	return x
}

// Clip bounds v to [lo, hi]. NaN passes through.
func Clip(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// RealizedVolatility is the rolling standard deviation of log returns over
// window, annualised by sqrt(periodsPerYear).
func RealizedVolatility(prices []float64, window int, periodsPerYear float64) []float64 {
	out := RollingStd(LogReturns(prices), window)
	scale := math.Sqrt(periodsPerYear)
	for i := range out {
		out[i] *= scale
	}
	return out
}

// RowMeanStd returns the mean and sample standard deviation of the defined
// values in row, with the number used.
func RowMeanStd(row []float64) (mean, std float64, n int) {
	vals := make([]float64, 0, len(row))
	for _, v := range row {
		if !math.IsNaN(v) {
			vals = append(vals, v)
		}
	}
	n = len(vals)
	switch n {
	case 0:
		return NaN, NaN, 0
	case 1:
		return vals[0], NaN, 1
	}
	mean, std = stat.MeanStdDev(vals, nil)
	return mean, std, n
}
