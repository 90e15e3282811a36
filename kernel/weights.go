package kernel

import (
	"math"

	"gonum.org/v1/gonum/floats"
)

// bandwidth derives the adaptive Gaussian bandwidth tau from the median
// deviation: tau = alpha * median(dists). dists is not modified.
func bandwidth(dists []float64, alpha float64) float64 {
	scratch := append([]float64(nil), dists...)
	return alpha * median(scratch)
}

// temporalBandwidth derives tau for temporal scoring, where deviations are
// already squared-plus-jitter: the median is taken over sqrt(d) so tau
// stays on the same scale as a plain L2 distance.
func temporalBandwidth(dists []float64, alpha float64) float64 {
	scratch := make([]float64, len(dists))
	for i, d := range dists {
		scratch[i] = math.Sqrt(d)
	}
	return alpha * median(scratch)
}

// kernelWeights converts deviations into normalized trust weights with a
// Gaussian RBF of bandwidth tau:
//
//	w[i] = exp(-d[i]² / 2tau²)          (batch scoring)
//	w[i] = exp(-d[i] / 2tau²)           (preSquared: temporal scoring)
//
// then normalizes so the weights sum to 1. When tau is zero every source
// is identical to the center and weights fall back to uniform 1/N; that is
// the only branch where ties are broken arbitrarily.
func kernelWeights(dists []float64, tau float64, preSquared bool) []float64 {
	n := len(dists)
	weights := make([]float64, n)

	if tau == 0 {
		for i := range weights {
			weights[i] = 1 / float64(n)
		}
		return weights
	}

	denom := 2 * tau * tau
	for i, d := range dists {
		if !preSquared {
			d = d * d
		}
		weights[i] = math.Exp(-d / denom)
	}
	floats.Scale(1/floats.Sum(weights), weights)
	return weights
}
