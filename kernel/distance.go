package kernel

import (
	"gonum.org/v1/gonum/floats"
)

// batchDistances scores each source by its L2 distance from the robust
// center.
func batchDistances(sources [][]float64, center []float64) []float64 {
	dists := make([]float64, len(sources))
	for i, s := range sources {
		dists[i] = floats.Distance(s, center, 2)
	}
	return dists
}

// temporalDistances scores each source by its squared L2 distance from the
// robust center plus a jitter penalty for how much the source moved since
// its own previous observation:
//
//	d[i] = ||s[i] - center||² + lambda * ||s[i] - prev[i]||²
//
// The jitter term compares a source against itself at the prior timestep,
// not against other sources, and applies whether the change is toward or
// away from consensus. On the first call prev is nil and the jitter term
// is zero for every source.
func temporalDistances(sources [][]float64, center []float64, prev [][]float64, lambda float64) []float64 {
	dists := make([]float64, len(sources))
	for i, s := range sources {
		spatial := floats.Distance(s, center, 2)
		d := spatial * spatial
		if prev != nil {
			jitter := floats.Distance(s, prev[i], 2)
			d += lambda * jitter * jitter
		}
		dists[i] = d
	}
	return dists
}
