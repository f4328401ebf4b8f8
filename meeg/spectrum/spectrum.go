// Package spectrum provides frequency-domain helpers and Welch power
// spectral density estimation for sensor time series.
package spectrum

import (
	"math"
	"math/cmplx"
	"sync"

	"github.com/cwbudde/algo-vecmath"
)

// scratchBuf holds pooled scratch memory for complex-to-real unpacking.
type scratchBuf struct {
	data []float64
}

var scratchPool = sync.Pool{
	New: func() any { return &scratchBuf{} },
}

func getScratch(n int) (re, im []float64, buf *scratchBuf) {
	buf = scratchPool.Get().(*scratchBuf)
	need := 2 * n
	if cap(buf.data) < need {
		buf.data = make([]float64, need)
	} else {
		buf.data = buf.data[:need]
	}
	return buf.data[:n], buf.data[n:need], buf
}

func putScratch(buf *scratchBuf) {
	scratchPool.Put(buf)
}

// Magnitude returns |X[k]| for each complex spectrum bin.
// Scratch buffers are pooled internally, so in steady state this allocates
// only the output slice.
func Magnitude(in []complex128) []float64 {
	if len(in) == 0 {
		return nil
	}

	out := make([]float64, len(in))
	re, im, buf := getScratch(len(in))

	for i, c := range in {
		re[i] = real(c)
		im[i] = imag(c)
	}

	vecmath.Magnitude(out, re, im)
	putScratch(buf)
	return out
}

// Power returns |X[k]|^2 for each complex spectrum bin.
func Power(in []complex128) []float64 {
	if len(in) == 0 {
		return nil
	}

	out := make([]float64, len(in))
	re, im, buf := getScratch(len(in))

	for i, c := range in {
		re[i] = real(c)
		im[i] = imag(c)
	}

	vecmath.Power(out, re, im)
	putScratch(buf)
	return out
}

// Phase returns arg(X[k]) for each complex spectrum bin in radians.
func Phase(in []complex128) []float64 {
	if len(in) == 0 {
		return nil
	}
	out := make([]float64, len(in))
	for i, c := range in {
		out[i] = cmplx.Phase(c)
	}
	return out
}

// FreqBins returns the one-sided frequency axis for an FFT of the given
// size at the given sample rate: fftSize/2+1 values from 0 to Nyquist.
func FreqBins(fftSize int, sampleRate float64) []float64 {
	if fftSize <= 0 || sampleRate <= 0 {
		return nil
	}
	n := fftSize/2 + 1
	out := make([]float64, n)
	df := sampleRate / float64(fftSize)
	for i := range out {
		out[i] = float64(i) * df
	}
	return out
}

// NextPowerOf2 returns the smallest power of two >= n.
func NextPowerOf2(n int) int {
	if n <= 1 {
		return 1
	}
	p := 1
	for p < n {
		p <<= 1
	}
	return p
}

// BandPower integrates a one-sided PSD between fmin and fmax (Hz) using
// the trapezoidal rule over the bins that fall inside the band.
func BandPower(freqs, psd []float64, fmin, fmax float64) float64 {
	if len(freqs) != len(psd) || len(freqs) < 2 || fmin >= fmax {
		return 0
	}
	sum := 0.0
	for i := 1; i < len(freqs); i++ {
		if freqs[i-1] < fmin || freqs[i] > fmax {
			continue
		}
		df := freqs[i] - freqs[i-1]
		sum += 0.5 * (psd[i-1] + psd[i]) * df
	}
	if math.IsNaN(sum) {
		return 0
	}
	return sum
}
