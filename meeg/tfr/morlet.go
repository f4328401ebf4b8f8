// Package tfr computes time-frequency decompositions with complex
// Morlet wavelets: single-trial spectra, averaged power, inter-trial
// coherence and cross-spectral density matrices.
package tfr

import (
	"errors"
	"fmt"
	"math"
	"math/cmplx"
)

var (
	// ErrBadFreq indicates a non-positive or out-of-band frequency.
	ErrBadFreq = errors.New("tfr: bad frequency")
	// ErrBadCycles indicates a non-positive cycle count.
	ErrBadCycles = errors.New("tfr: bad cycle count")
)

// Wavelet is a complex Morlet atom for one frequency.
type Wavelet struct {
	// Freq is the center frequency in Hz.
	Freq float64
	// Data is the complex taper, unit energy.
	Data []complex128
}

// Morlet builds one wavelet per frequency. nCycles holds one cycle
// count per frequency; a single element broadcasts to all of them. The
// Gaussian envelope has standard deviation nCycles/(2 pi f) seconds and
// the support extends to five standard deviations on each side.
func Morlet(sampleRate float64, freqs, nCycles []float64) ([]Wavelet, error) {
	if len(nCycles) == 0 || (len(nCycles) != 1 && len(nCycles) != len(freqs)) {
		return nil, fmt.Errorf("%w: %d counts for %d frequencies", ErrBadCycles, len(nCycles), len(freqs))
	}
	out := make([]Wavelet, len(freqs))
	for i, f := range freqs {
		if f <= 0 || f >= sampleRate/2 {
			return nil, fmt.Errorf("%w: %g Hz at rate %g", ErrBadFreq, f, sampleRate)
		}
		c := nCycles[0]
		if len(nCycles) > 1 {
			c = nCycles[i]
		}
		if c <= 0 {
			return nil, fmt.Errorf("%w: %g cycles at %g Hz", ErrBadCycles, c, f)
		}
		out[i] = Wavelet{Freq: f, Data: morletAtom(sampleRate, f, c)}
	}
	return out, nil
}

// ScaledCycles returns freq-proportional cycle counts, factor cycles
// per Hz (0.5 reproduces the common n_cycles = freqs/2 choice).
func ScaledCycles(freqs []float64, factor float64) []float64 {
	out := make([]float64, len(freqs))
	for i, f := range freqs {
		out[i] = f * factor
	}
	return out
}

func morletAtom(sampleRate, freq, nCycles float64) []complex128 {
	sigmaT := nCycles / (2 * math.Pi * freq)
	half := int(math.Ceil(5 * sigmaT * sampleRate))
	n := 2*half + 1

	w := make([]complex128, n)
	var carrierSum complex128
	gaussSum := 0.0
	gauss := make([]float64, n)
	for i := range w {
		t := float64(i-half) / sampleRate
		gauss[i] = math.Exp(-t * t / (2 * sigmaT * sigmaT))
		w[i] = cmplx.Exp(complex(0, 2*math.Pi*freq*t)) * complex(gauss[i], 0)
		carrierSum += w[i]
		gaussSum += gauss[i]
	}

	// Zero-mean correction removes the DC leakage of the truncated
	// atom, then unit energy keeps power comparable across frequencies.
	kappa := carrierSum / complex(gaussSum, 0)
	energy := 0.0
	for i := range w {
		w[i] -= kappa * complex(gauss[i], 0)
		energy += real(w[i])*real(w[i]) + imag(w[i])*imag(w[i])
	}
	scale := complex(1/math.Sqrt(energy), 0)
	for i := range w {
		w[i] *= scale
	}
	return w
}

// LinFreqs returns n frequencies evenly spaced over [lo, hi].
func LinFreqs(lo, hi float64, n int) []float64 {
	if n < 2 {
		return []float64{lo}
	}
	out := make([]float64, n)
	step := (hi - lo) / float64(n-1)
	for i := range out {
		out[i] = lo + float64(i)*step
	}
	return out
}

// LogFreqs returns n frequencies log-spaced over [lo, hi].
func LogFreqs(lo, hi float64, n int) []float64 {
	if n < 2 {
		return []float64{lo}
	}
	out := make([]float64, n)
	ratio := math.Pow(hi/lo, 1/float64(n-1))
	f := lo
	for i := range out {
		out[i] = f
		f *= ratio
	}
	return out
}
