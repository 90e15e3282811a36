package kernel

import (
	"gonum.org/v1/gonum/dsp/fourier"
	"gonum.org/v1/gonum/floats"
)

// spectralFuse reconstructs the consensus series as the trust-weighted
// average of the source spectra: each source is transformed with an
// unnormalized forward DFT, the complex spectra are averaged bin-by-bin
// with the real trust weights, and the averaged spectrum is inverse
// transformed with explicit 1/T scaling. The real part is the fused
// series.
//
// Transform convention: gonum's fourier.CmplxFFT is unnormalized in both
// directions, so the 1/T factor is applied exactly once, after the
// inverse. Weighted averaging of complex spectra is only meaningful when
// every source shares this convention.
//
// Averaging in the frequency domain rather than the time domain attenuates
// broadband noise from a low-trust source uniformly across bins and keeps
// periodic structure coherent across sources with phase differences. No
// windowing or detrending is applied; inputs are assumed pre-aligned in
// time and sample rate.
func spectralFuse(sources [][]float64, weights []float64) []float64 {
	n, t := len(sources), len(sources[0])
	fft := fourier.NewCmplxFFT(t)

	seq := make([]complex128, t)
	coeff := make([]complex128, t)
	avg := make([]complex128, t)

	for i := 0; i < n; i++ {
		for j, v := range sources[i] {
			seq[j] = complex(v, 0)
		}
		coeff = fft.Coefficients(coeff, seq)
		w := complex(weights[i], 0)
		for b := range avg {
			avg[b] += w * coeff[b]
		}
	}

	// Weights are normalized to sum to 1, but divide by the exact sum so
	// identical sources reconstruct bit-for-bit.
	wsum := complex(floats.Sum(weights), 0)
	for b := range avg {
		avg[b] /= wsum
	}

	seq = fft.Sequence(seq, avg)
	fused := make([]float64, t)
	scale := 1 / float64(t)
	for j := range seq {
		fused[j] = real(seq[j]) * scale
	}
	return fused
}
