package spectrum

import (
	"errors"
	"fmt"

	algofft "github.com/MeKo-Christian/algo-fft"

	"github.com/cwbudde/algo-meeg/meeg/window"
)

var (
	// ErrShortSignal indicates fewer samples than one Welch segment.
	ErrShortSignal = errors.New("spectrum: signal shorter than segment")
	// ErrBadSegment indicates an invalid segment/overlap configuration.
	ErrBadSegment = errors.New("spectrum: invalid segment configuration")
)

type welchConfig struct {
	segment int
	overlap float64
	taper   window.Type
	fftSize int
}

// WelchOption configures Welch PSD estimation.
type WelchOption func(*welchConfig)

// WithSegment sets the per-segment sample count (default 256).
func WithSegment(n int) WelchOption {
	return func(c *welchConfig) {
		if n > 0 {
			c.segment = n
		}
	}
}

// WithOverlap sets the fractional segment overlap in [0, 1) (default 0.5).
func WithOverlap(frac float64) WelchOption {
	return func(c *welchConfig) {
		if frac >= 0 && frac < 1 {
			c.overlap = frac
		}
	}
}

// WithTaper selects the segment taper (default Hann).
func WithTaper(t window.Type) WelchOption {
	return func(c *welchConfig) {
		c.taper = t
	}
}

// WithFFTSize zero-pads each segment to the given FFT size.
func WithFFTSize(n int) WelchOption {
	return func(c *welchConfig) {
		if n > 0 {
			c.fftSize = n
		}
	}
}

// PSD holds a one-sided power spectral density estimate.
type PSD struct {
	Freqs    []float64 // Hz
	Data     []float64 // unit^2/Hz
	Segments int
}

// Welch estimates the one-sided PSD of signal by averaging tapered,
// overlapping periodograms. Density scaling divides by the taper power
// and sample rate so that integrating the PSD over frequency recovers
// signal variance.
func Welch(signal []float64, sampleRate float64, opts ...WelchOption) (*PSD, error) {
	if sampleRate <= 0 {
		return nil, fmt.Errorf("spectrum: sample rate must be > 0: %f", sampleRate)
	}

	cfg := welchConfig{segment: 256, overlap: 0.5, taper: window.TypeHann}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	if cfg.fftSize == 0 {
		cfg.fftSize = NextPowerOf2(cfg.segment)
	}
	if cfg.fftSize < cfg.segment {
		return nil, fmt.Errorf("%w: fft size %d < segment %d", ErrBadSegment, cfg.fftSize, cfg.segment)
	}
	if len(signal) < cfg.segment {
		return nil, fmt.Errorf("%w: %d < %d", ErrShortSignal, len(signal), cfg.segment)
	}

	taper, err := window.Generate(cfg.taper, cfg.segment, window.WithPeriodic())
	if err != nil {
		return nil, err
	}
	var taperPower float64
	for _, w := range taper {
		taperPower += w * w
	}
	if taperPower == 0 {
		return nil, ErrBadSegment
	}

	plan, err := algofft.NewPlan64(cfg.fftSize)
	if err != nil {
		return nil, fmt.Errorf("spectrum: failed to create FFT plan: %w", err)
	}

	step := cfg.segment - int(float64(cfg.segment)*cfg.overlap)
	if step <= 0 {
		return nil, fmt.Errorf("%w: overlap %f leaves no hop", ErrBadSegment, cfg.overlap)
	}

	nBins := cfg.fftSize/2 + 1
	acc := make([]float64, nBins)
	in := make([]complex128, cfg.fftSize)
	out := make([]complex128, cfg.fftSize)

	segments := 0
	for start := 0; start+cfg.segment <= len(signal); start += step {
		for i := range in {
			in[i] = 0
		}
		for i := 0; i < cfg.segment; i++ {
			in[i] = complex(signal[start+i]*taper[i], 0)
		}
		if err := plan.Forward(out, in); err != nil {
			return nil, err
		}
		for k := 0; k < nBins; k++ {
			re := real(out[k])
			im := imag(out[k])
			acc[k] += re*re + im*im
		}
		segments++
	}

	// One-sided density scaling: interior bins carry both halves.
	scale := 1 / (sampleRate * taperPower * float64(segments))
	for k := range acc {
		acc[k] *= scale
		if k != 0 && k != nBins-1 {
			acc[k] *= 2
		}
	}

	return &PSD{
		Freqs:    FreqBins(cfg.fftSize, sampleRate),
		Data:     acc,
		Segments: segments,
	}, nil
}
