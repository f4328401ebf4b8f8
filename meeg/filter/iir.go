package filter

import (
	"math"
)

// BiquadCoefficients holds one normalized second-order section.
// a0 is normalized to 1 and not stored.
type BiquadCoefficients struct {
	B0, B1, B2 float64 // feedforward
	A1, A2     float64 // feedback
}

// Biquad is a single second-order IIR section with Direct Form II
// Transposed state.
type Biquad struct {
	BiquadCoefficients

	d0, d1 float64
}

// NewBiquad returns a section with the given coefficients and zero state.
func NewBiquad(c BiquadCoefficients) *Biquad {
	return &Biquad{BiquadCoefficients: c}
}

// ProcessSample filters one sample.
func (s *Biquad) ProcessSample(x float64) float64 {
	y := s.B0*x + s.d0
	s.d0 = s.B1*x - s.A1*y + s.d1
	s.d1 = s.B2*x - s.A2*y
	return y
}

// ProcessBlock filters buf in place.
func (s *Biquad) ProcessBlock(buf []float64) {
	b0, b1, b2 := s.B0, s.B1, s.B2
	a1, a2 := s.A1, s.A2
	d0, d1 := s.d0, s.d1

	for i, x := range buf {
		y := b0*x + d0
		d0 = b1*x - a1*y + d1
		d1 = b2*x - a2*y
		buf[i] = y
	}

	s.d0, s.d1 = d0, d1
}

// Reset clears the section state.
func (s *Biquad) Reset() {
	s.d0 = 0
	s.d1 = 0
}

// Response returns the complex frequency response at freqHz.
func (s BiquadCoefficients) Response(freqHz, rate float64) complex128 {
	w := 2 * math.Pi * freqHz / rate
	z1 := complex(math.Cos(-w), math.Sin(-w))
	z2 := z1 * z1
	num := complex(s.B0, 0) + complex(s.B1, 0)*z1 + complex(s.B2, 0)*z2
	den := complex(1, 0) + complex(s.A1, 0)*z1 + complex(s.A2, 0)*z2
	return num / den
}

func normalizedW0(freq, rate float64) (float64, bool) {
	if rate <= 0 || freq <= 0 || freq >= rate/2 {
		return 0, false
	}
	return 2 * math.Pi * freq / rate, true
}

func normalizeBiquad(b0, b1, b2, a0, a1, a2 float64) BiquadCoefficients {
	if a0 == 0 {
		return BiquadCoefficients{B0: 1}
	}
	return BiquadCoefficients{
		B0: b0 / a0, B1: b1 / a0, B2: b2 / a0,
		A1: a1 / a0, A2: a2 / a0,
	}
}

// NotchBiquad designs a notch section centered at freq (Hz) with quality
// factor q. Typical power-line use: q = freq/widthHz.
func NotchBiquad(freq, q, rate float64) (BiquadCoefficients, error) {
	w0, ok := normalizedW0(freq, rate)
	if !ok {
		return BiquadCoefficients{}, checkCutoff(freq, rate)
	}
	if q <= 0 {
		q = 1 / math.Sqrt2
	}

	cw := math.Cos(w0)
	sw := math.Sin(w0)
	alpha := sw / (2 * q)

	return normalizeBiquad(1, -2*cw, 1, 1+alpha, -2*cw, 1-alpha), nil
}

// BandpassBiquad designs a constant-skirt-gain bandpass section.
func BandpassBiquad(freq, q, rate float64) (BiquadCoefficients, error) {
	w0, ok := normalizedW0(freq, rate)
	if !ok {
		return BiquadCoefficients{}, checkCutoff(freq, rate)
	}
	if q <= 0 {
		q = 1 / math.Sqrt2
	}

	cw := math.Cos(w0)
	sw := math.Sin(w0)
	alpha := sw / (2 * q)

	return normalizeBiquad(sw/2, 0, -sw/2, 1+alpha, -2*cw, 1-alpha), nil
}

// FiltFilt applies the sections forward then backward for zero net phase.
// The result's effective magnitude response is the square of a single pass.
func FiltFilt(signal []float64, sections ...BiquadCoefficients) ([]float64, error) {
	if len(signal) == 0 {
		return nil, ErrEmptyInput
	}

	out := make([]float64, len(signal))
	copy(out, signal)

	for _, c := range sections {
		NewBiquad(c).ProcessBlock(out)
	}

	reverse(out)
	for _, c := range sections {
		NewBiquad(c).ProcessBlock(out)
	}
	reverse(out)

	return out, nil
}

func reverse(buf []float64) {
	for i, j := 0, len(buf)-1; i < j; i, j = i+1, j-1 {
		buf[i], buf[j] = buf[j], buf[i]
	}
}
