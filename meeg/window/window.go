// Package window generates taper coefficients for spectral estimation.
//
// Welch PSD segments, Morlet wavelet envelopes, and FIR designs all draw
// their tapers from here. Symmetric form is the default; periodic form
// (denominator N instead of N-1) is selected with [WithPeriodic] for FFT
// framing.
package window

import (
	"errors"
	"fmt"
	"math"

	"github.com/cwbudde/algo-vecmath"
)

// Type identifies a taper function.
type Type int

const (
	TypeRectangular Type = iota
	TypeHann
	TypeHamming
	TypeBlackman
	TypeBlackmanHarris
	TypeKaiser
	TypeTukey
	TypeGauss
)

// String returns the lowercase taper name.
func (t Type) String() string {
	switch t {
	case TypeRectangular:
		return "rectangular"
	case TypeHann:
		return "hann"
	case TypeHamming:
		return "hamming"
	case TypeBlackman:
		return "blackman"
	case TypeBlackmanHarris:
		return "blackman-harris"
	case TypeKaiser:
		return "kaiser"
	case TypeTukey:
		return "tukey"
	case TypeGauss:
		return "gauss"
	default:
		return "unknown"
	}
}

var (
	errEmptyCoeffs      = errors.New("window: coefficients must not be empty")
	errZeroCoherentGain = errors.New("window: coherent gain is zero")
	errMismatchedLength = errors.New("window: samples and coefficients must have same length")
)

type config struct {
	alpha    float64
	periodic bool
}

// Option configures taper generation.
type Option func(*config)

// WithAlpha sets the shape parameter of parametric tapers
// (Kaiser beta, Tukey taper fraction, Gauss width).
func WithAlpha(v float64) Option {
	return func(c *config) {
		if v >= 0 {
			c.alpha = v
		}
	}
}

// WithPeriodic selects the periodic (DFT-even) form.
func WithPeriodic() Option {
	return func(c *config) {
		c.periodic = true
	}
}

func applyOptions(opts []Option) config {
	cfg := config{alpha: 1}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	return cfg
}

// Cosine-sum coefficients, a_k applied as sum a_k cos(k*2*pi*x).
var (
	hannCoeffs           = []float64{0.5, -0.5}
	hammingCoeffs        = []float64{0.54, -0.46}
	blackmanCoeffs       = []float64{0.42, -0.5, 0.08}
	blackmanHarrisCoeffs = []float64{0.35875, -0.48829, 0.14128, -0.01168}
)

// Generate returns taper coefficients of the given length.
func Generate(t Type, length int, opts ...Option) ([]float64, error) {
	if length <= 0 {
		return nil, fmt.Errorf("window: length must be > 0: %d", length)
	}
	cfg := applyOptions(opts)

	out := make([]float64, length)
	den := float64(length - 1)
	if cfg.periodic {
		den = float64(length)
	}
	if length == 1 {
		out[0] = 1
		return out, nil
	}
	for i := range out {
		out[i] = eval(t, float64(i)/den, cfg.alpha)
	}
	return out, nil
}

// Apply multiplies buf in place by the selected taper.
func Apply(t Type, buf []float64, opts ...Option) error {
	coeffs, err := Generate(t, len(buf), opts...)
	if err != nil {
		return err
	}
	vecmath.MulBlockInPlace(buf, coeffs)
	return nil
}

// ApplyCoefficients multiplies samples by coeffs into a new slice.
func ApplyCoefficients(samples, coeffs []float64) ([]float64, error) {
	if len(samples) != len(coeffs) {
		return nil, errMismatchedLength
	}
	out := make([]float64, len(samples))
	vecmath.MulBlock(out, samples, coeffs)
	return out, nil
}

// EquivalentNoiseBandwidth returns the ENBW in bins for a taper.
func EquivalentNoiseBandwidth(coeffs []float64) (float64, error) {
	if len(coeffs) == 0 {
		return 0, errEmptyCoeffs
	}

	sum := 0.0
	sumSquares := 0.0
	for _, c := range coeffs {
		sum += c
		sumSquares += c * c
	}
	if sum == 0 {
		return 0, errZeroCoherentGain
	}
	return float64(len(coeffs)) * sumSquares / (sum * sum), nil
}

func eval(t Type, x, alpha float64) float64 {
	switch t {
	case TypeHann:
		return cosineSum(x, hannCoeffs)
	case TypeHamming:
		return cosineSum(x, hammingCoeffs)
	case TypeBlackman:
		return cosineSum(x, blackmanCoeffs)
	case TypeBlackmanHarris:
		return cosineSum(x, blackmanHarrisCoeffs)
	case TypeKaiser:
		return kaiserAt(x, alpha)
	case TypeTukey:
		return tukeyAt(x, alpha)
	case TypeGauss:
		v := (2*x - 1) * alpha
		return math.Exp(-math.Ln2 * v * v)
	default:
		return 1
	}
}

func cosineSum(x float64, coeffs []float64) float64 {
	phase := 2 * math.Pi * x
	sum := 0.0
	for k, c := range coeffs {
		sum += c * math.Cos(float64(k)*phase)
	}
	return sum
}

func kaiserAt(x, beta float64) float64 {
	if beta <= 0 {
		return 1
	}
	r := 2*x - 1
	term := math.Sqrt(math.Max(0, 1-r*r))
	return BesselI0(beta*term) / BesselI0(beta)
}

func tukeyAt(x, alpha float64) float64 {
	if alpha <= 0 {
		return 1
	}
	if alpha >= 1 {
		return cosineSum(x, hannCoeffs)
	}

	a := alpha / 2
	switch {
	case x < a:
		return 0.5 * (1 + math.Cos(math.Pi*(2*x/alpha-1)))
	case x <= 1-a:
		return 1
	default:
		return 0.5 * (1 + math.Cos(math.Pi*(2*x/alpha-2/alpha+1)))
	}
}

// BesselI0 returns the modified Bessel function of order zero, used by the
// Kaiser taper and the resampler's prototype design.
func BesselI0(x float64) float64 {
	// Power series, converges quickly for the beta range used here.
	sum := 1.0
	term := 1.0
	x2 := (x * x) / 4
	for k := 1; k < 64; k++ {
		term *= x2 / float64(k*k)
		sum += term
		if term < 1e-16*sum {
			break
		}
	}
	return sum
}
