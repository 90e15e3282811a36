// Package kernel implements robust multi-source signal fusion.
//
// Given N noisy, possibly adversarial time-series of equal length T, the
// kernel produces a single consensus series plus one normalized trust
// weight per source. Sources far from the robust per-sample center are
// attenuated by a Gaussian RBF whose bandwidth adapts to the median
// deviation, and the consensus is reconstructed as the trust-weighted
// average of the source spectra.
//
// Three engines are provided:
//
//   - Kernel: stateless batch fusion (Fit)
//   - TemporalKernel: streaming fusion with exponential memory, a jitter
//     penalty for abrupt per-source changes, and drift alerts (Update)
//   - HybridKernel: arbiter that surfaces batch or streaming output based
//     on the recent drift rate (Update)
package kernel

import (
	"math"

	"github.com/rmj95fgb7x-art/lex-kernel-oracle/errors"
)

// Method selects the robust center estimator.
type Method string

const (
	// MethodMedian is the per-sample median across sources. Most robust:
	// correct with up to (N-1)/2 arbitrarily corrupted sources.
	MethodMedian Method = "median"

	// MethodTrimmedMean sorts sources per sample and averages after
	// discarding the top and bottom TrimRatio fraction. Faster, less
	// robust. When TrimRatio*N < 1 nothing is trimmed and it degrades
	// to a plain mean.
	MethodTrimmedMean Method = "trimmed_mean"
)

// DefaultTrimRatio is the fraction trimmed from each tail by
// MethodTrimmedMean when no ratio is configured.
const DefaultTrimRatio = 0.2

// Params configures a batch Kernel. Params are immutable after
// construction; build a new Kernel to change them.
type Params struct {
	// Alpha scales how many median-distances define one standard
	// deviation of trust. Must be positive. Lower values reject mild
	// outliers aggressively; higher values tolerate noisy-but-honest
	// sources. Typical range [1.0, 3.0].
	Alpha float64

	// Method selects the robust center estimator.
	Method Method

	// TrimRatio is the per-tail trim fraction for MethodTrimmedMean.
	// Zero means DefaultTrimRatio. Ignored by MethodMedian.
	TrimRatio float64
}

// DefaultParams returns the standard batch configuration.
func DefaultParams() Params {
	return Params{
		Alpha:     1.5,
		Method:    MethodMedian,
		TrimRatio: DefaultTrimRatio,
	}
}

func (p *Params) normalize() error {
	if p.Alpha <= 0 {
		return errors.Newf("alpha must be positive, got %v", p.Alpha)
	}
	switch p.Method {
	case "":
		p.Method = MethodMedian
	case MethodMedian, MethodTrimmedMean:
	default:
		return errors.Newf("method must be %q or %q, got %q", MethodMedian, MethodTrimmedMean, p.Method)
	}
	if p.TrimRatio == 0 {
		p.TrimRatio = DefaultTrimRatio
	}
	if p.TrimRatio < 0 || p.TrimRatio >= 0.5 {
		return errors.Newf("trim ratio must be in [0, 0.5), got %v", p.TrimRatio)
	}
	return nil
}

// Kernel is the stateless batch fusion engine. A Kernel holds only its
// configuration: Fit is a pure function of its batch and is safe for
// concurrent use from multiple goroutines.
type Kernel struct {
	params Params
}

// New constructs a batch Kernel, validating the configuration.
func New(params Params) (*Kernel, error) {
	if err := params.normalize(); err != nil {
		return nil, errors.Wrap(err, "invalid kernel params")
	}
	return &Kernel{params: params}, nil
}

// Params returns the kernel configuration.
func (k *Kernel) Params() Params {
	return k.params
}

// Fit fuses one batch of sources, returning the fused series (length T)
// and one normalized trust weight per source (length N, summing to 1).
//
// Fit returns an error wrapping errors.ErrInvalidInput when the batch has
// fewer than 2 sources, fewer than 2 samples per source, or sources of
// unequal length. Validation happens before any computation.
func (k *Kernel) Fit(sources [][]float64) ([]float64, []float64, error) {
	if err := validateBatch(sources); err != nil {
		return nil, nil, err
	}

	center := robustCenter(sources, k.params.Method, k.params.TrimRatio)
	dists := batchDistances(sources, center)
	tau := bandwidth(dists, k.params.Alpha)
	weights := kernelWeights(dists, tau, false)
	fused := spectralFuse(sources, weights)

	return fused, weights, nil
}

// FitPredict fuses one batch and returns only the fused series.
func (k *Kernel) FitPredict(sources [][]float64) ([]float64, error) {
	fused, _, err := k.Fit(sources)
	return fused, err
}

// Fuse is a one-call convenience for batch fusion with explicit alpha and
// method. Zero-value method selects MethodMedian.
func Fuse(sources [][]float64, alpha float64, method Method) ([]float64, []float64, error) {
	k, err := New(Params{Alpha: alpha, Method: method})
	if err != nil {
		return nil, nil, err
	}
	return k.Fit(sources)
}

// validateBatch enforces the input contract shared by all engines:
// N >= 2 sources, T >= 2 samples, all sources the same length.
func validateBatch(sources [][]float64) error {
	if len(sources) < 2 {
		return errors.NewInvalidInputError("need at least 2 sources, got %d", len(sources))
	}
	t := len(sources[0])
	if t < 2 {
		return errors.NewInvalidInputError("need at least 2 samples per source, got %d", t)
	}
	for i, s := range sources {
		if len(s) != t {
			return errors.NewInvalidInputError("source %d has %d samples, expected %d", i, len(s), t)
		}
	}
	return nil
}

// RMSE returns the root mean squared error between a prediction and its
// ground truth. The slices must be the same length.
func RMSE(prediction, truth []float64) float64 {
	var sum float64
	for i := range prediction {
		d := prediction[i] - truth[i]
		sum += d * d
	}
	return math.Sqrt(sum / float64(len(prediction)))
}

// Outliers returns the indices of sources whose trust weight fell below
// threshold.
func Outliers(weights []float64, threshold float64) []int {
	var out []int
	for i, w := range weights {
		if w < threshold {
			out = append(out, i)
		}
	}
	return out
}
