package kernel

import (
	"github.com/rmj95fgb7x-art/lex-kernel-oracle/errors"
)

// Mode identifies which engine's output a HybridKernel surfaced.
type Mode string

const (
	ModeBatch     Mode = "batch"
	ModeStreaming Mode = "streaming"
)

// driftRateThreshold is the fraction of recent calls that must show drift
// before the arbiter switches to streaming output.
const driftRateThreshold = 0.3

// DefaultDriftWindow is the number of recent calls the arbiter inspects.
const DefaultDriftWindow = 5

// HybridParams configures a HybridKernel.
type HybridParams struct {
	Alpha          float64
	Beta           float64
	LambdaJitter   float64
	Method         Method
	TrimRatio      float64
	DriftThreshold float64

	// DriftWindow is how many recent calls' drift outcomes feed the mode
	// decision. Zero means DefaultDriftWindow.
	DriftWindow int
}

// DefaultHybridParams returns the standard hybrid configuration.
func DefaultHybridParams() HybridParams {
	tp := DefaultTemporalParams()
	return HybridParams{
		Alpha:          tp.Alpha,
		Beta:           tp.Beta,
		LambdaJitter:   tp.LambdaJitter,
		Method:         tp.Method,
		TrimRatio:      tp.TrimRatio,
		DriftThreshold: tp.DriftThreshold,
		DriftWindow:    DefaultDriftWindow,
	}
}

// HybridKernel arbitrates between batch and streaming fusion. Every call
// runs the batch kernel for a reference weight vector and advances the
// temporal kernel so switching modes never loses continuity; the mode only
// decides which engine's output is surfaced.
type HybridKernel struct {
	batch    *Kernel
	temporal *TemporalKernel

	window     []bool
	windowSize int
	threshold  float64
	mode       Mode
}

// NewHybrid constructs a HybridKernel in batch mode with an empty drift
// window.
func NewHybrid(params HybridParams) (*HybridKernel, error) {
	if params.DriftWindow == 0 {
		params.DriftWindow = DefaultDriftWindow
	}
	if params.DriftWindow < 1 {
		return nil, errors.Newf("drift window must be positive, got %d", params.DriftWindow)
	}

	tp := TemporalParams{
		Alpha:          params.Alpha,
		Beta:           params.Beta,
		LambdaJitter:   params.LambdaJitter,
		Method:         params.Method,
		TrimRatio:      params.TrimRatio,
		DriftThreshold: params.DriftThreshold,
	}
	temporal, err := NewTemporal(tp)
	if err != nil {
		return nil, errors.Wrap(err, "invalid hybrid params")
	}

	batch, err := New(Params{Alpha: params.Alpha, Method: params.Method, TrimRatio: params.TrimRatio})
	if err != nil {
		return nil, errors.Wrap(err, "invalid hybrid params")
	}

	return &HybridKernel{
		batch:      batch,
		temporal:   temporal,
		windowSize: params.DriftWindow,
		threshold:  tp.DriftThreshold,
		mode:       ModeBatch,
	}, nil
}

// Update fuses one batch, deciding per call whether to surface batch or
// streaming output. The temporal kernel's state advances on every call
// regardless of the surfaced mode. Arbiter state is untouched when the
// batch is invalid.
func (h *HybridKernel) Update(sources [][]float64) ([]float64, []float64, Mode, error) {
	batchFused, batchWeights, err := h.batch.Fit(sources)
	if err != nil {
		return nil, nil, h.mode, err
	}

	temporalFused, temporalWeights, err := h.temporal.Update(sources)
	if err != nil {
		return nil, nil, h.mode, err
	}

	drifted := false
	for _, w := range batchWeights {
		if w < h.threshold {
			drifted = true
			break
		}
	}
	h.window = append(h.window, drifted)
	if len(h.window) > h.windowSize {
		h.window = h.window[1:]
	}

	driftCount := 0
	for _, d := range h.window {
		if d {
			driftCount++
		}
	}
	rate := float64(driftCount) / float64(len(h.window))

	if rate > driftRateThreshold {
		h.mode = ModeStreaming
		return temporalFused, temporalWeights, h.mode, nil
	}
	h.mode = ModeBatch
	return batchFused, batchWeights, h.mode, nil
}

// Mode returns the mode surfaced by the most recent Update, or ModeBatch
// before the first call.
func (h *HybridKernel) Mode() Mode {
	return h.mode
}

// DriftHistory returns a copy of the temporal kernel's drift alerts.
func (h *HybridKernel) DriftHistory() []DriftAlert {
	return h.temporal.DriftHistory()
}

// Reset resets the temporal kernel, empties the drift window, and returns
// the arbiter to batch mode.
func (h *HybridKernel) Reset() {
	h.temporal.Reset()
	h.window = nil
	h.mode = ModeBatch
}
