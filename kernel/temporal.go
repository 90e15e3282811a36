package kernel

import (
	"github.com/rmj95fgb7x-art/lex-kernel-oracle/errors"
	"gonum.org/v1/gonum/floats"
)

// TemporalParams configures a TemporalKernel. Immutable after
// construction; build a new kernel to change them.
type TemporalParams struct {
	// Alpha is the bandwidth sensitivity, as in Params.
	Alpha float64

	// Beta is the exponential forgetting factor for the robust center,
	// in (0, 1). The effective memory window is roughly 1/(1-beta)
	// timesteps: 0.90 ≈ 10 steps, 0.95 ≈ 20, 0.99 ≈ 100.
	Beta float64

	// LambdaJitter weighs the penalty for a source changing abruptly
	// from its own prior value. Must be non-negative. Lower values
	// tolerate rapid change (noisy sensors); higher values penalize
	// instability.
	LambdaJitter float64

	// Method selects the robust center estimator.
	Method Method

	// TrimRatio is the per-tail trim fraction for MethodTrimmedMean.
	// Zero means DefaultTrimRatio.
	TrimRatio float64

	// DriftThreshold is the trust weight below which a source is
	// considered drifting, in (0, 1).
	DriftThreshold float64
}

// DefaultTemporalParams returns the standard streaming configuration.
func DefaultTemporalParams() TemporalParams {
	return TemporalParams{
		Alpha:          1.5,
		Beta:           0.95,
		LambdaJitter:   0.5,
		Method:         MethodMedian,
		TrimRatio:      DefaultTrimRatio,
		DriftThreshold: 0.1,
	}
}

func (p *TemporalParams) normalize() error {
	base := Params{Alpha: p.Alpha, Method: p.Method, TrimRatio: p.TrimRatio}
	if err := base.normalize(); err != nil {
		return err
	}
	p.Method, p.TrimRatio = base.Method, base.TrimRatio
	if p.Beta <= 0 || p.Beta >= 1 {
		return errors.Newf("beta must be in (0, 1), got %v", p.Beta)
	}
	if p.LambdaJitter < 0 {
		return errors.Newf("lambda jitter must be non-negative, got %v", p.LambdaJitter)
	}
	if p.DriftThreshold <= 0 || p.DriftThreshold >= 1 {
		return errors.Newf("drift threshold must be in (0, 1), got %v", p.DriftThreshold)
	}
	return nil
}

// DriftAlert records one timestep where at least one source's trust weight
// fell below the drift threshold. Alerts are never mutated after creation.
type DriftAlert struct {
	// Timestep is the 1-based update count at which drift was seen.
	Timestep int `json:"timestep"`

	// OutlierIndices are the sources below the threshold.
	OutlierIndices []int `json:"outlier_indices"`

	// MinWeight is the lowest weight observed at this timestep.
	MinWeight float64 `json:"min_weight"`

	// Weights is the full weight snapshot.
	Weights []float64 `json:"weights"`
}

// TemporalKernel is the streaming fusion engine. It carries an
// exponentially decayed robust center and the previous batch's raw values
// across calls, penalizes sources that change abruptly between timesteps,
// and logs drift alerts when any weight falls below the configured
// threshold.
//
// A TemporalKernel is single-owner: one instance serves exactly one
// stream, calls must arrive in true chronological order, and concurrent
// callers need one instance each. Out-of-order submission is not detected
// at runtime; it silently corrupts the temporal center.
type TemporalKernel struct {
	params TemporalParams

	centerPrev  []float64
	signalsPrev [][]float64
	lastTau     float64
	lastWeights []float64
	timestep    int
	alerts      []DriftAlert
}

// NewTemporal constructs a TemporalKernel with empty state, validating the
// configuration.
func NewTemporal(params TemporalParams) (*TemporalKernel, error) {
	if err := params.normalize(); err != nil {
		return nil, errors.Wrap(err, "invalid temporal params")
	}
	return &TemporalKernel{params: params}, nil
}

// Params returns the kernel configuration.
func (k *TemporalKernel) Params() TemporalParams {
	return k.params
}

// Update processes one timestep, returning the fused series and the trust
// weights. Retained state (center, previous batch, timestep counter) is
// advanced only after a successful computation; an invalid batch leaves
// the kernel untouched.
func (k *TemporalKernel) Update(sources [][]float64) ([]float64, []float64, error) {
	if err := validateBatch(sources); err != nil {
		return nil, nil, err
	}
	if k.centerPrev != nil && len(sources[0]) != len(k.centerPrev) {
		return nil, nil, errors.NewInvalidInputError(
			"sample count changed mid-stream: got %d, stream has %d", len(sources[0]), len(k.centerPrev))
	}
	if k.signalsPrev != nil && len(sources) != len(k.signalsPrev) {
		return nil, nil, errors.NewInvalidInputError(
			"source count changed mid-stream: got %d, stream has %d", len(sources), len(k.signalsPrev))
	}

	// Exponentially blended robust center. The first update uses the
	// plain batch center.
	center := robustCenter(sources, k.params.Method, k.params.TrimRatio)
	if k.centerPrev != nil {
		for j := range center {
			center[j] = k.params.Beta*k.centerPrev[j] + (1-k.params.Beta)*center[j]
		}
	}

	dists := temporalDistances(sources, center, k.signalsPrev, k.params.LambdaJitter)
	tau := temporalBandwidth(dists, k.params.Alpha)
	weights := kernelWeights(dists, tau, true)
	fused := spectralFuse(sources, weights)

	k.centerPrev = center
	k.signalsPrev = copyBatch(sources)
	k.lastTau = tau
	k.lastWeights = append([]float64(nil), weights...)
	k.timestep++

	if k.DetectDrift(weights) {
		k.alerts = append(k.alerts, DriftAlert{
			Timestep:       k.timestep,
			OutlierIndices: Outliers(weights, k.params.DriftThreshold),
			MinWeight:      floats.Min(weights),
			Weights:        append([]float64(nil), weights...),
		})
	}

	return fused, weights, nil
}

// DetectDrift reports whether any weight is below the drift threshold.
func (k *TemporalKernel) DetectDrift(weights []float64) bool {
	for _, w := range weights {
		if w < k.params.DriftThreshold {
			return true
		}
	}
	return false
}

// Outliers returns the indices of sources below the drift threshold at the
// most recent update, or nil before the first update.
func (k *TemporalKernel) Outliers() []int {
	if k.lastWeights == nil {
		return nil
	}
	return Outliers(k.lastWeights, k.params.DriftThreshold)
}

// DriftHistory returns a copy of the accumulated drift alerts.
func (k *TemporalKernel) DriftHistory() []DriftAlert {
	history := make([]DriftAlert, len(k.alerts))
	for i, a := range k.alerts {
		history[i] = DriftAlert{
			Timestep:       a.Timestep,
			OutlierIndices: append([]int(nil), a.OutlierIndices...),
			MinWeight:      a.MinWeight,
			Weights:        append([]float64(nil), a.Weights...),
		}
	}
	return history
}

// LastTau returns the bandwidth from the most recent update, or zero
// before the first update.
func (k *TemporalKernel) LastTau() float64 {
	return k.lastTau
}

// LastWeights returns a copy of the most recent weights, or nil before the
// first update.
func (k *TemporalKernel) LastWeights() []float64 {
	if k.lastWeights == nil {
		return nil
	}
	return append([]float64(nil), k.lastWeights...)
}

// Timestep returns the number of successful updates so far.
func (k *TemporalKernel) Timestep() int {
	return k.timestep
}

// Reset clears all retained state and the alert history. Configuration is
// unchanged.
func (k *TemporalKernel) Reset() {
	k.centerPrev = nil
	k.signalsPrev = nil
	k.lastTau = 0
	k.lastWeights = nil
	k.timestep = 0
	k.alerts = nil
}

// copyBatch deep-copies a batch so retained state cannot alias caller
// memory.
func copyBatch(sources [][]float64) [][]float64 {
	out := make([][]float64, len(sources))
	for i, s := range sources {
		out[i] = append([]float64(nil), s...)
	}
	return out
}
