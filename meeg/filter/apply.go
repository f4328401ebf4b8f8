package filter

import (
	"errors"
	"fmt"

	algofft "github.com/MeKo-Christian/algo-fft"
)

var (
	// ErrEmptyInput indicates an empty signal.
	ErrEmptyInput = errors.New("filter: empty input")
	// ErrEmptyKernel indicates an empty FIR kernel.
	ErrEmptyKernel = errors.New("filter: empty kernel")
	// ErrEvenKernel indicates a kernel without a center tap.
	ErrEvenKernel = errors.New("filter: zero-phase application requires odd kernel length")
)

// ApplyZeroPhase filters signal with a symmetric odd-length FIR kernel and
// compensates its group delay, returning a slice of the same length.
//
// Edges are padded by reflection (limited to the available signal) before
// convolution, matching the behavior expected around recording boundaries.
func ApplyZeroPhase(signal, taps []float64) ([]float64, error) {
	if len(signal) == 0 {
		return nil, ErrEmptyInput
	}
	if len(taps) == 0 {
		return nil, ErrEmptyKernel
	}
	if len(taps)%2 == 0 {
		return nil, ErrEvenKernel
	}

	delay := (len(taps) - 1) / 2
	pad := delay
	if pad > len(signal)-1 {
		pad = len(signal) - 1
	}
	padded := reflectPad(signal, pad)

	full, err := Convolve(padded, taps)
	if err != nil {
		return nil, err
	}

	// signal[0] sits at index pad in the padded input and the symmetric
	// kernel delays everything by delay samples.
	out := make([]float64, len(signal))
	copy(out, full[pad+delay:pad+delay+len(signal)])
	return out, nil
}

// Convolve returns the full linear convolution of signal and kernel
// (length len(signal)+len(kernel)-1) using FFT overlap-add for long
// inputs and direct convolution for short kernels.
func Convolve(signal, kernel []float64) ([]float64, error) {
	if len(signal) == 0 {
		return nil, ErrEmptyInput
	}
	if len(kernel) == 0 {
		return nil, ErrEmptyKernel
	}

	if len(kernel) < 32 || len(signal) < 64 {
		return convolveDirect(signal, kernel), nil
	}
	return convolveOverlapAdd(signal, kernel)
}

func convolveDirect(signal, kernel []float64) []float64 {
	out := make([]float64, len(signal)+len(kernel)-1)
	for i, x := range signal {
		if x == 0 {
			continue
		}
		for j, h := range kernel {
			out[i+j] += x * h
		}
	}
	return out
}

func convolveOverlapAdd(signal, kernel []float64) ([]float64, error) {
	m := len(kernel)
	fftSize := nextPowerOf2(4 * m)
	if fftSize < 2*m {
		fftSize = nextPowerOf2(2 * m)
	}
	block := fftSize - m + 1

	plan, err := algofft.NewPlan64(fftSize)
	if err != nil {
		return nil, fmt.Errorf("filter: failed to create FFT plan: %w", err)
	}

	kernelFreq := make([]complex128, fftSize)
	scratch := make([]complex128, fftSize)
	for i, h := range kernel {
		scratch[i] = complex(h, 0)
	}
	if err := plan.Forward(kernelFreq, scratch); err != nil {
		return nil, err
	}

	out := make([]float64, len(signal)+m-1)
	blockFreq := make([]complex128, fftSize)
	blockTime := make([]complex128, fftSize)

	for start := 0; start < len(signal); start += block {
		end := start + block
		if end > len(signal) {
			end = len(signal)
		}

		for i := range scratch {
			scratch[i] = 0
		}
		for i, x := range signal[start:end] {
			scratch[i] = complex(x, 0)
		}

		if err := plan.Forward(blockFreq, scratch); err != nil {
			return nil, err
		}
		for i := range blockFreq {
			blockFreq[i] *= kernelFreq[i]
		}
		if err := plan.Inverse(blockTime, blockFreq); err != nil {
			return nil, err
		}

		limit := end - start + m - 1
		for i := 0; i < limit && start+i < len(out); i++ {
			out[start+i] += real(blockTime[i])
		}
	}

	return out, nil
}

// reflectPad prepends and appends up to pad reflected samples. Reflection
// excludes the edge sample itself and is limited by the signal length.
func reflectPad(signal []float64, pad int) []float64 {
	n := len(signal)
	if pad > n-1 {
		pad = n - 1
	}
	if pad < 0 {
		pad = 0
	}

	out := make([]float64, 0, n+2*pad)
	for i := pad; i >= 1; i-- {
		out = append(out, signal[i])
	}
	out = append(out, signal...)
	for i := n - 2; i >= n-1-pad; i-- {
		out = append(out, signal[i])
	}
	return out
}

func nextPowerOf2(n int) int {
	if n <= 1 {
		return 1
	}
	p := 1
	for p < n {
		p <<= 1
	}
	return p
}
