package filter

import (
	"errors"
	"fmt"
	"math"

	"github.com/cwbudde/algo-meeg/meeg/window"
)

var (
	// ErrBadCutoff indicates a cutoff outside (0, Nyquist).
	ErrBadCutoff = errors.New("filter: cutoff must lie in (0, Nyquist)")
	// ErrBadBand indicates a band with low edge >= high edge.
	ErrBadBand = errors.New("filter: band low edge must be below high edge")
)

// Hamming main-lobe width factor used to size windowed-sinc kernels.
const hammingLengthFactor = 3.3

type designConfig struct {
	taper       window.Type
	lowTransHz  float64
	highTransHz float64
	length      int
}

// DesignOption overrides automatic FIR design parameters.
type DesignOption func(*designConfig)

// WithTaper selects the design taper (default Hamming).
func WithTaper(t window.Type) DesignOption {
	return func(c *designConfig) {
		c.taper = t
	}
}

// WithTransition fixes the transition bandwidths in Hz. Zero keeps the
// automatic rule for that edge.
func WithTransition(lowHz, highHz float64) DesignOption {
	return func(c *designConfig) {
		if lowHz > 0 {
			c.lowTransHz = lowHz
		}
		if highHz > 0 {
			c.highTransHz = highHz
		}
	}
}

// WithLength fixes the kernel length (forced odd).
func WithLength(n int) DesignOption {
	return func(c *designConfig) {
		if n > 0 {
			c.length = n | 1
		}
	}
}

// lowTransition is the automatic transition bandwidth for a high-pass edge:
// a quarter of the edge frequency, at least 2 Hz, never wider than the edge.
func lowTransition(freq float64) float64 {
	return math.Min(math.Max(freq*0.25, 2), freq)
}

// highTransition is the automatic transition bandwidth for a low-pass edge:
// a quarter of the edge frequency, at least 2 Hz, never past Nyquist.
func highTransition(freq, rate float64) float64 {
	return math.Min(math.Max(freq*0.25, 2), rate/2-freq)
}

func kernelLength(transHz, rate float64, cfg designConfig) int {
	if cfg.length > 0 {
		return cfg.length
	}
	n := int(math.Ceil(hammingLengthFactor * rate / transHz))
	return n | 1 // force odd for exact linear phase
}

func applyDesignOptions(opts []DesignOption) designConfig {
	cfg := designConfig{taper: window.TypeHamming}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	return cfg
}

func checkCutoff(freq, rate float64) error {
	if freq <= 0 || freq >= rate/2 {
		return fmt.Errorf("%w: %.3f Hz at rate %.1f Hz", ErrBadCutoff, freq, rate)
	}
	return nil
}

// sincKernel returns a unity-DC-gain windowed-sinc lowpass with cutoff
// fc (normalized to sample rate, 0 < fc < 0.5) and odd length n.
func sincKernel(fc float64, n int, taper window.Type) ([]float64, error) {
	w, err := window.Generate(taper, n)
	if err != nil {
		return nil, err
	}
	center := float64(n-1) / 2
	taps := make([]float64, n)
	var sum float64
	for i := range taps {
		t := float64(i) - center
		taps[i] = 2 * fc * sinc(2*fc*t) * w[i]
		sum += taps[i]
	}
	if sum == 0 {
		return nil, errors.New("filter: designed zero-sum kernel")
	}
	for i := range taps {
		taps[i] /= sum
	}
	return taps, nil
}

func sinc(x float64) float64 {
	if math.Abs(x) < 1e-12 {
		return 1
	}
	px := math.Pi * x
	return math.Sin(px) / px
}

// DesignLowpass designs a zero-phase lowpass FIR at freq Hz.
// The effective cutoff sits half a transition band above freq so the
// passband stays flat up to the requested edge.
func DesignLowpass(freq, rate float64, opts ...DesignOption) ([]float64, error) {
	if err := checkCutoff(freq, rate); err != nil {
		return nil, err
	}
	cfg := applyDesignOptions(opts)
	trans := cfg.highTransHz
	if trans <= 0 {
		trans = highTransition(freq, rate)
	}
	n := kernelLength(trans, rate, cfg)
	return sincKernel((freq+trans/2)/rate, n, cfg.taper)
}

// DesignHighpass designs a zero-phase highpass FIR at freq Hz by spectral
// inversion of the complementary lowpass.
func DesignHighpass(freq, rate float64, opts ...DesignOption) ([]float64, error) {
	if err := checkCutoff(freq, rate); err != nil {
		return nil, err
	}
	cfg := applyDesignOptions(opts)
	trans := cfg.lowTransHz
	if trans <= 0 {
		trans = lowTransition(freq)
	}
	n := kernelLength(trans, rate, cfg)
	lp, err := sincKernel((freq-trans/2)/rate, n, cfg.taper)
	if err != nil {
		return nil, err
	}
	return spectralInvert(lp), nil
}

// DesignBandpass designs a zero-phase bandpass FIR for [low, high] Hz as
// the difference of two lowpass kernels of equal length.
func DesignBandpass(low, high, rate float64, opts ...DesignOption) ([]float64, error) {
	if low >= high {
		return nil, fmt.Errorf("%w: %.3f >= %.3f", ErrBadBand, low, high)
	}
	if err := checkCutoff(low, rate); err != nil {
		return nil, err
	}
	if err := checkCutoff(high, rate); err != nil {
		return nil, err
	}

	cfg := applyDesignOptions(opts)
	lTrans := cfg.lowTransHz
	if lTrans <= 0 {
		lTrans = lowTransition(low)
	}
	hTrans := cfg.highTransHz
	if hTrans <= 0 {
		hTrans = highTransition(high, rate)
	}

	n := kernelLength(math.Min(lTrans, hTrans), rate, cfg)
	upper, err := sincKernel((high+hTrans/2)/rate, n, cfg.taper)
	if err != nil {
		return nil, err
	}
	lower, err := sincKernel((low-lTrans/2)/rate, n, cfg.taper)
	if err != nil {
		return nil, err
	}

	taps := make([]float64, n)
	for i := range taps {
		taps[i] = upper[i] - lower[i]
	}
	return taps, nil
}

// DesignBandstop designs a zero-phase band-stop FIR for [low, high] Hz by
// spectral inversion of the corresponding bandpass.
func DesignBandstop(low, high, rate float64, opts ...DesignOption) ([]float64, error) {
	bp, err := DesignBandpass(low, high, rate, opts...)
	if err != nil {
		return nil, err
	}
	return spectralInvert(bp), nil
}

// DesignNotch designs a narrow FIR band-stop around freq Hz with the given
// total stop bandwidth (default 1 Hz when widthHz <= 0). Power-line
// harmonics use one notch per harmonic.
func DesignNotch(freq, widthHz, rate float64, opts ...DesignOption) ([]float64, error) {
	if widthHz <= 0 {
		widthHz = 1
	}
	return DesignBandstop(freq-widthHz/2, freq+widthHz/2, rate,
		append(opts, WithTransition(widthHz/2, widthHz/2))...)
}

// spectralInvert negates the kernel and adds a unit impulse at its center,
// turning a lowpass into its complementary highpass. Requires odd length.
func spectralInvert(taps []float64) []float64 {
	out := make([]float64, len(taps))
	for i, v := range taps {
		out[i] = -v
	}
	out[len(taps)/2] += 1
	return out
}

// Response computes the complex frequency response of an FIR kernel at
// freqHz for the given sample rate.
func Response(taps []float64, freqHz, rate float64) complex128 {
	w := 2 * math.Pi * freqHz / rate
	var re, im float64
	for k, c := range taps {
		re += c * math.Cos(w*float64(k))
		im -= c * math.Sin(w*float64(k))
	}
	return complex(re, im)
}

// MagnitudeDB returns the magnitude response in dB at freqHz.
func MagnitudeDB(taps []float64, freqHz, rate float64) float64 {
	h := Response(taps, freqHz, rate)
	return 20 * math.Log10(math.Hypot(real(h), imag(h)))
}
