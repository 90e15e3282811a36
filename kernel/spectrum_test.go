package kernel

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSpectralFuseRoundTrip(t *testing.T) {
	// A single source with full weight must survive the forward/inverse
	// transform intact.
	src := make([]float64, 33) // odd length
	for j := range src {
		src[j] = math.Sin(float64(j)/3) + 0.5*math.Cos(float64(j)/7)
	}
	fused := spectralFuse([][]float64{src, src}, []float64{1, 0})
	for j := range src {
		assert.InDelta(t, src[j], fused[j], 1e-9)
	}
}

func TestSpectralFuseIsLinearInWeights(t *testing.T) {
	// The DFT is linear, so a weighted spectral average must equal the
	// weighted time-domain average.
	a := make([]float64, 64)
	b := make([]float64, 64)
	for j := range a {
		a[j] = math.Sin(float64(j) / 4)
		b[j] = math.Cos(float64(j) / 9)
	}
	fused := spectralFuse([][]float64{a, b}, []float64{0.7, 0.3})
	for j := range a {
		assert.InDelta(t, 0.7*a[j]+0.3*b[j], fused[j], 1e-9)
	}
}

func TestSpectralFusePreservesPeriodicStructure(t *testing.T) {
	// Equal-weight fusion of two phase-identical tones keeps the tone.
	tone := make([]float64, 128)
	for j := range tone {
		tone[j] = math.Sin(2 * math.Pi * 4 * float64(j) / 128)
	}
	fused := spectralFuse([][]float64{tone, tone, tone}, []float64{1.0 / 3, 1.0 / 3, 1.0 / 3})
	for j := range tone {
		assert.InDelta(t, tone[j], fused[j], 1e-9)
	}
}
