package tfr

import (
	"errors"
	"fmt"
	"math"
	"math/cmplx"

	algofft "github.com/MeKo-Christian/algo-fft"
	"gonum.org/v1/gonum/mat"

	"github.com/cwbudde/algo-meeg/meeg/core"
	"github.com/cwbudde/algo-meeg/meeg/epochs"
	"github.com/cwbudde/algo-meeg/meeg/spectrum"
)

var (
	// ErrBadDecim indicates a non-positive decimation factor.
	ErrBadDecim = errors.New("tfr: bad decimation factor")
	// ErrNoData indicates epochs without data channels.
	ErrNoData = errors.New("tfr: no data channels")
)

// Option configures the transform.
type Option func(*settings)

type settings struct {
	nCycles []float64
	decim   int
}

// WithCycles sets one wavelet cycle count for all frequencies,
// default 7.
func WithCycles(n float64) Option {
	return func(s *settings) { s.nCycles = []float64{n} }
}

// WithCyclesPerFreq sets one cycle count per frequency, e.g.
// [ScaledCycles](freqs, 0.5).
func WithCyclesPerFreq(n []float64) Option {
	return func(s *settings) { s.nCycles = append([]float64(nil), n...) }
}

// WithDecim keeps every k-th time point of the decomposition. Power and
// coherence vary slowly in time, so decimation mostly buys memory.
func WithDecim(k int) Option {
	return func(s *settings) { s.decim = k }
}

// EpochsTFR holds single-trial wavelet coefficients indexed as
// [epoch][channel][freq][time].
type EpochsTFR struct {
	// Freqs are the center frequencies in Hz.
	Freqs []float64
	// Times are the (decimated) sample times relative to the event.
	Times []float64
	// ChannelNames lists the decomposed channels, in coefficient order.
	ChannelNames []string

	coef [][][][]complex128
}

// AverageTFR is power or coherence averaged over trials, indexed as
// [channel][freq][time].
type AverageTFR struct {
	Freqs        []float64
	Times        []float64
	ChannelNames []string
	Data         [][][]float64
	// Nave is the number of trials averaged in.
	Nave int
}

// Compute decomposes every epoch and data channel with complex Morlet
// wavelets at the given frequencies.
func Compute(e *epochs.Epochs, freqs []float64, opts ...Option) (*EpochsTFR, error) {
	cfg := settings{nCycles: []float64{7}, decim: 1}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.decim < 1 {
		return nil, ErrBadDecim
	}

	info := e.Info()
	picks, err := core.Picks(info, core.PickData())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNoData, err)
	}

	wavelets, err := Morlet(info.SampleRate, freqs, cfg.nCycles)
	if err != nil {
		return nil, err
	}

	n := e.NumSamples()
	conv, err := newConvolver(n, wavelets)
	if err != nil {
		return nil, err
	}

	times := e.Times()
	decTimes := make([]float64, 0, (n+cfg.decim-1)/cfg.decim)
	for i := 0; i < n; i += cfg.decim {
		decTimes = append(decTimes, times[i])
	}

	names := make([]string, len(picks))
	for i, p := range picks {
		names[i] = info.Channels[p].Name
	}

	out := &EpochsTFR{
		Freqs:        append([]float64(nil), freqs...),
		Times:        decTimes,
		ChannelNames: names,
		coef:         make([][][][]complex128, e.NumEpochs()),
	}

	for ei, epoch := range e.Data() {
		out.coef[ei] = make([][][]complex128, len(picks))
		for ci, p := range picks {
			out.coef[ei][ci] = make([][]complex128, len(wavelets))
			for fi := range wavelets {
				full, err := conv.apply(epoch[p], fi)
				if err != nil {
					return nil, err
				}
				dec := make([]complex128, 0, len(decTimes))
				for i := 0; i < n; i += cfg.decim {
					dec = append(dec, full[i])
				}
				out.coef[ei][ci][fi] = dec
			}
		}
	}
	return out, nil
}

// convolver caches the FFT plan and wavelet spectra for one epoch length.
type convolver struct {
	plan    *algofft.Plan[complex128]
	size    int
	n       int
	spectra [][]complex128
	halves  []int
	scratch []complex128
	sigFreq []complex128
	sigTime []complex128
}

func newConvolver(n int, wavelets []Wavelet) (*convolver, error) {
	maxW := 0
	for _, w := range wavelets {
		if len(w.Data) > maxW {
			maxW = len(w.Data)
		}
	}
	size := spectrum.NextPowerOf2(n + maxW - 1)

	plan, err := algofft.NewPlan64(size)
	if err != nil {
		return nil, fmt.Errorf("tfr: fft plan: %w", err)
	}

	c := &convolver{
		plan:    plan,
		size:    size,
		n:       n,
		spectra: make([][]complex128, len(wavelets)),
		halves:  make([]int, len(wavelets)),
		scratch: make([]complex128, size),
		sigFreq: make([]complex128, size),
		sigTime: make([]complex128, size),
	}
	buf := make([]complex128, size)
	for i, w := range wavelets {
		for j := range buf {
			buf[j] = 0
		}
		copy(buf, w.Data)
		c.spectra[i] = make([]complex128, size)
		if err := plan.Forward(c.spectra[i], buf); err != nil {
			return nil, fmt.Errorf("tfr: fft: %w", err)
		}
		c.halves[i] = (len(w.Data) - 1) / 2
	}
	return c, nil
}

// apply convolves signal with wavelet fi and returns the center part,
// aligned so output sample i corresponds to input sample i.
func (c *convolver) apply(signal []float64, fi int) ([]complex128, error) {
	for i := range c.sigTime {
		c.sigTime[i] = 0
	}
	for i, v := range signal {
		c.sigTime[i] = complex(v, 0)
	}
	if err := c.plan.Forward(c.sigFreq, c.sigTime); err != nil {
		return nil, fmt.Errorf("tfr: fft: %w", err)
	}
	for i := range c.scratch {
		c.scratch[i] = c.sigFreq[i] * c.spectra[fi][i]
	}
	if err := c.plan.Inverse(c.sigTime, c.scratch); err != nil {
		return nil, fmt.Errorf("tfr: fft: %w", err)
	}

	out := make([]complex128, c.n)
	copy(out, c.sigTime[c.halves[fi]:c.halves[fi]+c.n])
	return out, nil
}

// NumEpochs returns the trial count.
func (t *EpochsTFR) NumEpochs() int {
	return len(t.coef)
}

// Coefficients returns the raw coefficients of one trial,
// [channel][freq][time].
func (t *EpochsTFR) Coefficients(epoch int) ([][][]complex128, error) {
	if epoch < 0 || epoch >= len(t.coef) {
		return nil, fmt.Errorf("tfr: epoch %d out of range [0, %d)", epoch, len(t.coef))
	}
	return t.coef[epoch], nil
}

// AveragePower returns |W|^2 averaged over trials.
func (t *EpochsTFR) AveragePower() *AverageTFR {
	out := t.newAverage()
	for _, trial := range t.coef {
		for c := range trial {
			for f := range trial[c] {
				for i, v := range trial[c][f] {
					re, im := real(v), imag(v)
					out.Data[c][f][i] += re*re + im*im
				}
			}
		}
	}
	inv := 1 / float64(len(t.coef))
	out.scale(inv)
	return out
}

// ITC returns the inter-trial coherence, the magnitude of the mean
// phase vector across trials: 1 for perfectly locked phase, near 0 for
// random phase.
func (t *EpochsTFR) ITC() *AverageTFR {
	out := t.newAverage()
	acc := make([]complex128, len(t.Times))
	for c := range t.ChannelNames {
		for f := range t.Freqs {
			for i := range acc {
				acc[i] = 0
			}
			for _, trial := range t.coef {
				for i, v := range trial[c][f] {
					if a := cmplx.Abs(v); a > 0 {
						acc[i] += v / complex(a, 0)
					}
				}
			}
			for i, v := range acc {
				out.Data[c][f][i] = cmplx.Abs(v) / float64(len(t.coef))
			}
		}
	}
	return out
}

// CSD returns the cross-spectral density matrix at frequency index fi,
// averaged over trials and the time interval [tmin, tmax]. The result
// is Hermitian with per-channel power on the diagonal.
func (t *EpochsTFR) CSD(fi int, tmin, tmax float64) (*mat.CDense, error) {
	if fi < 0 || fi >= len(t.Freqs) {
		return nil, fmt.Errorf("tfr: frequency index %d out of range [0, %d)", fi, len(t.Freqs))
	}
	var idx []int
	for i, tt := range t.Times {
		if tt >= tmin && tt <= tmax {
			idx = append(idx, i)
		}
	}
	if len(idx) == 0 {
		return nil, fmt.Errorf("tfr: no samples in [%g, %g]", tmin, tmax)
	}

	dim := len(t.ChannelNames)
	out := mat.NewCDense(dim, dim, nil)
	for _, trial := range t.coef {
		for i := 0; i < dim; i++ {
			for j := i; j < dim; j++ {
				s := complex(0, 0)
				for _, k := range idx {
					s += trial[i][fi][k] * cmplx.Conj(trial[j][fi][k])
				}
				out.Set(i, j, out.At(i, j)+s)
			}
		}
	}

	norm := complex(1/float64(len(t.coef)*len(idx)), 0)
	for i := 0; i < dim; i++ {
		for j := i; j < dim; j++ {
			v := out.At(i, j) * norm
			out.Set(i, j, v)
			if i != j {
				out.Set(j, i, cmplx.Conj(v))
			}
		}
	}
	return out, nil
}

func (t *EpochsTFR) newAverage() *AverageTFR {
	data := make([][][]float64, len(t.ChannelNames))
	for c := range data {
		data[c] = make([][]float64, len(t.Freqs))
		for f := range data[c] {
			data[c][f] = make([]float64, len(t.Times))
		}
	}
	return &AverageTFR{
		Freqs:        t.Freqs,
		Times:        t.Times,
		ChannelNames: t.ChannelNames,
		Data:         data,
		Nave:         len(t.coef),
	}
}

func (a *AverageTFR) scale(s float64) {
	for c := range a.Data {
		for f := range a.Data[c] {
			for i := range a.Data[c][f] {
				a.Data[c][f][i] *= s
			}
		}
	}
}

// BaselineMode selects how ApplyBaseline normalizes power.
type BaselineMode int

const (
	// BaselineRatio divides by the baseline mean.
	BaselineRatio BaselineMode = iota
	// BaselineLogRatio divides by the baseline mean and takes 10 log10.
	BaselineLogRatio
	// BaselineZScore subtracts the baseline mean and divides by the
	// baseline standard deviation.
	BaselineZScore
)

// ApplyBaseline normalizes each channel and frequency against the time
// interval [tmin, tmax].
func (a *AverageTFR) ApplyBaseline(tmin, tmax float64, mode BaselineMode) error {
	var idx []int
	for i, tt := range a.Times {
		if tt >= tmin && tt <= tmax {
			idx = append(idx, i)
		}
	}
	if len(idx) < 2 {
		return fmt.Errorf("tfr: baseline [%g, %g] has %d samples", tmin, tmax, len(idx))
	}

	for c := range a.Data {
		for f := range a.Data[c] {
			row := a.Data[c][f]
			mean := 0.0
			for _, k := range idx {
				mean += row[k]
			}
			mean /= float64(len(idx))

			switch mode {
			case BaselineRatio:
				for i := range row {
					row[i] /= mean
				}
			case BaselineLogRatio:
				for i := range row {
					row[i] = 10 * math.Log10(row[i]/mean)
				}
			case BaselineZScore:
				sd := 0.0
				for _, k := range idx {
					d := row[k] - mean
					sd += d * d
				}
				sd = math.Sqrt(sd / float64(len(idx)-1))
				for i := range row {
					row[i] = (row[i] - mean) / sd
				}
			default:
				return fmt.Errorf("tfr: unknown baseline mode %d", mode)
			}
		}
	}
	return nil
}
