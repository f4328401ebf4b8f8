// Package resample provides rational sample-rate conversion for recorded
// channel data using polyphase FIR filtering with anti-aliasing defaults.
//
// Recordings are processed offline, so conversion is one-shot per channel;
// event sample indices are remapped with [MapSample].
package resample

import (
	"errors"
	"fmt"
	"math"

	"github.com/cwbudde/algo-meeg/meeg/window"
)

var (
	// ErrInvalidRatio indicates an invalid up/down ratio.
	ErrInvalidRatio = errors.New("resample: invalid ratio")
	// ErrInvalidRate indicates an invalid input/output sample rate.
	ErrInvalidRate = errors.New("resample: invalid sample rate")
)

// Quality controls default anti-aliasing filter settings.
type Quality int

const (
	// QualityFast prioritizes lower CPU usage.
	QualityFast Quality = iota
	// QualityBalanced is the default quality/performance trade-off.
	QualityBalanced
	// QualityBest prioritizes stopband attenuation and passband flatness.
	QualityBest
)

type profile struct {
	tapsPerPhase int
	cutoffScale  float64
	kaiserBeta   float64
}

func qualityProfile(q Quality) profile {
	switch q {
	case QualityFast:
		return profile{tapsPerPhase: 16, cutoffScale: 0.88, kaiserBeta: 5.0}
	case QualityBest:
		return profile{tapsPerPhase: 64, cutoffScale: 0.96, kaiserBeta: 9.0}
	default:
		return profile{tapsPerPhase: 32, cutoffScale: 0.92, kaiserBeta: 7.5}
	}
}

type config struct {
	quality Quality
	maxDen  int
}

// Option configures the resampler.
type Option func(*config)

// WithQuality selects a predefined anti-aliasing quality mode.
func WithQuality(q Quality) Option {
	return func(c *config) {
		c.quality = q
	}
}

// WithMaxDenominator caps denominator size for rate-ratio approximation
// (default 4096).
func WithMaxDenominator(n int) Option {
	return func(c *config) {
		if n > 0 {
			c.maxDen = n
		}
	}
}

// Resampler converts signals by the rational factor up/down.
type Resampler struct {
	up, down int
	quality  Quality
	phases   [][]float64
	// center is the prototype's group delay in upsampled samples;
	// Process starts the convolution there so output stays aligned
	// with MapSample.
	center int
}

// New creates a resampler for the reduced ratio up/down.
func New(up, down int, opts ...Option) (*Resampler, error) {
	if up <= 0 || down <= 0 {
		return nil, ErrInvalidRatio
	}
	g := gcd(up, down)
	up /= g
	down /= g

	cfg := config{quality: QualityBalanced, maxDen: 4096}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}

	phases, center, err := designPolyphase(up, down, qualityProfile(cfg.quality))
	if err != nil {
		return nil, err
	}
	return &Resampler{up: up, down: down, quality: cfg.quality, phases: phases, center: center}, nil
}

// ForRates creates a resampler by approximating outRate/inRate as a
// rational number with a bounded denominator.
func ForRates(inRate, outRate float64, opts ...Option) (*Resampler, error) {
	if inRate <= 0 || outRate <= 0 || math.IsNaN(inRate) || math.IsNaN(outRate) {
		return nil, ErrInvalidRate
	}
	cfg := config{quality: QualityBalanced, maxDen: 4096}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	up, down := approximateRatio(outRate/inRate, cfg.maxDen)
	return New(up, down, opts...)
}

// Ratio returns the reduced conversion factors.
func (r *Resampler) Ratio() (up, down int) {
	return r.up, r.down
}

// OutputLen returns the converted length for an input of n samples.
func (r *Resampler) OutputLen(n int) int {
	if n <= 0 {
		return 0
	}
	return int(math.Ceil(float64(n) * float64(r.up) / float64(r.down)))
}

// MapSample converts a sample index from the input rate to the output rate.
func (r *Resampler) MapSample(sample int) int {
	return int(math.Round(float64(sample) * float64(r.up) / float64(r.down)))
}

// Process converts one whole signal. The prototype's group delay is
// compensated, so output sample m lands on input time m*down/up and
// MapSample stays valid. Samples beyond the recording edges are taken
// as zero, matching offline use on cropped segments.
func (r *Resampler) Process(signal []float64) []float64 {
	if len(signal) == 0 {
		return nil
	}

	nOut := r.OutputLen(len(signal))
	out := make([]float64, nOut)

	for m := range out {
		num := m*r.down + r.center
		idx := num / r.up
		phase := num % r.up
		taps := r.phases[phase]

		var y float64
		for k, c := range taps {
			j := idx - k
			if j < 0 || j >= len(signal) {
				continue
			}
			y += c * signal[j]
		}
		out[m] = y
	}
	return out
}

// Resample is a one-shot helper converting signal by up/down.
func Resample(signal []float64, up, down int, opts ...Option) ([]float64, error) {
	r, err := New(up, down, opts...)
	if err != nil {
		return nil, err
	}
	return r.Process(signal), nil
}

func designPolyphase(up, down int, p profile) ([][]float64, int, error) {
	// Odd length keeps the group delay at an integer number of
	// upsampled samples.
	nTaps := p.tapsPerPhase*up + 1
	center := (nTaps - 1) / 2

	limit := up
	if down > limit {
		limit = down
	}
	fc := (0.5 / float64(limit)) * p.cutoffScale
	if fc <= 0 || fc >= 0.5 {
		return nil, 0, fmt.Errorf("resample: invalid cutoff %.6f", fc)
	}

	taps := make([]float64, nTaps)
	for n := range taps {
		t := float64(n - center)
		taps[n] = 2 * fc * sinc(2*fc*t) * kaiserAt(n, nTaps, p.kaiserBeta)
	}

	var sum float64
	for _, v := range taps {
		sum += v
	}
	if sum == 0 {
		return nil, 0, errors.New("resample: designed zero-sum filter")
	}
	scale := float64(up) / sum
	for i := range taps {
		taps[i] *= scale
	}

	phases := make([][]float64, up)
	for ph := range phases {
		var branch []float64
		for i := ph; i < nTaps; i += up {
			branch = append(branch, taps[i])
		}
		phases[ph] = branch
	}
	return phases, center, nil
}

func approximateRatio(v float64, maxDen int) (num, den int) {
	if v <= 0 || math.IsNaN(v) || math.IsInf(v, 0) {
		return 1, 1
	}

	// Continued-fraction expansion with bounded denominator.
	a0 := math.Floor(v)
	p0, q0 := 1.0, 0.0
	p1, q1 := a0, 1.0
	x := v

	for {
		frac := x - math.Floor(x)
		if frac == 0 {
			break
		}
		x = 1 / frac
		a := math.Floor(x)
		p2 := a*p1 + p0
		q2 := a*q1 + q0
		if q2 > float64(maxDen) {
			break
		}
		p0, q0 = p1, q1
		p1, q1 = p2, q2
	}

	num = int(math.Round(p1))
	den = int(math.Round(q1))
	if den <= 0 || num <= 0 {
		return 1, 1
	}
	g := gcd(num, den)
	return num / g, den / g
}

func gcd(a, b int) int {
	if a < 0 {
		a = -a
	}
	if b < 0 {
		b = -b
	}
	for b != 0 {
		a, b = b, a%b
	}
	if a == 0 {
		return 1
	}
	return a
}

func sinc(x float64) float64 {
	if math.Abs(x) < 1e-12 {
		return 1
	}
	px := math.Pi * x
	return math.Sin(px) / px
}

func kaiserAt(i, n int, beta float64) float64 {
	if n <= 1 || beta == 0 {
		return 1
	}
	t := 2*float64(i)/float64(n-1) - 1
	a := math.Sqrt(math.Max(0, 1-t*t))
	return window.BesselI0(beta*a) / window.BesselI0(beta)
}
