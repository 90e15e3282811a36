package kernel

import (
	"sort"

	"gonum.org/v1/gonum/stat"
)

// robustCenter computes the length-T robust center of a batch using the
// configured estimator. The batch is assumed validated.
func robustCenter(sources [][]float64, method Method, trimRatio float64) []float64 {
	if method == MethodTrimmedMean {
		return trimmedMeanCenter(sources, trimRatio)
	}
	return medianCenter(sources)
}

// medianCenter is the per-sample median across sources. L1-optimal with a
// ~50% breakdown point.
func medianCenter(sources [][]float64) []float64 {
	n, t := len(sources), len(sources[0])
	center := make([]float64, t)
	col := make([]float64, n)
	for j := 0; j < t; j++ {
		for i := 0; i < n; i++ {
			col[i] = sources[i][j]
		}
		center[j] = median(col)
	}
	return center
}

// trimmedMeanCenter sorts each sample column and averages after dropping
// the top and bottom trimRatio fraction. When int(n*trimRatio) == 0 no
// trimming occurs and every source contributes to the mean; with n=2 this
// always averages both sources.
func trimmedMeanCenter(sources [][]float64, trimRatio float64) []float64 {
	n, t := len(sources), len(sources[0])
	trim := int(float64(n) * trimRatio)

	center := make([]float64, t)
	col := make([]float64, n)
	for j := 0; j < t; j++ {
		for i := 0; i < n; i++ {
			col[i] = sources[i][j]
		}
		sort.Float64s(col)
		center[j] = stat.Mean(col[trim:n-trim], nil)
	}
	return center
}

// median returns the midpoint median of xs, averaging the two middle
// values for an even count. xs is reordered in place.
//
// gonum's stat.Quantile empirical estimators do not interpolate between
// the two middle order statistics, so the midpoint convention is computed
// directly here.
func median(xs []float64) float64 {
	sort.Float64s(xs)
	mid := len(xs) / 2
	if len(xs)%2 == 1 {
		return xs[mid]
	}
	return (xs[mid-1] + xs[mid]) / 2
}
