// Package epochs cuts continuous recordings into fixed-length windows
// around events and averages them into evoked responses.
package epochs

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/cwbudde/algo-meeg/meeg/core"
	"github.com/cwbudde/algo-meeg/meeg/event"
	"github.com/cwbudde/algo-meeg/meeg/raw"
	"github.com/cwbudde/algo-meeg/meeg/resample"
)

var (
	// ErrNoEpochs indicates that every event was dropped or none matched.
	ErrNoEpochs = errors.New("epochs: no epochs")
	// ErrBadWindow indicates tmin >= tmax or a window without samples.
	ErrBadWindow = errors.New("epochs: bad time window")
	// ErrBadBaseline indicates a baseline interval outside the epoch window.
	ErrBadBaseline = errors.New("epochs: baseline outside window")
)

// Drop-log reasons for rejected events.
const (
	DropTooShort = "TOO_SHORT"
	DropFlat     = "FLAT"
	DropUser     = "USER"
)

// Epochs holds windowed data as [epoch][channel][sample], one entry per
// kept event. The drop log records one entry per input event.
type Epochs struct {
	info     *core.Info
	events   []event.Event
	data     [][][]float64
	tmin     float64
	baseline *[2]float64
	dropLog  [][]string
}

// Option configures epoch extraction.
type Option func(*settings)

type settings struct {
	baseline *[2]float64
	reject   map[core.ChannelKind]float64
	flat     map[core.ChannelKind]float64
	codes    map[int]bool
}

// WithBaseline subtracts, per channel, the mean of [bmin, bmax] from
// every epoch. The interval must lie inside [tmin, tmax].
func WithBaseline(bmin, bmax float64) Option {
	return func(s *settings) { s.baseline = &[2]float64{bmin, bmax} }
}

// WithReject drops epochs whose peak-to-peak amplitude on any channel of
// the given kind exceeds the threshold.
func WithReject(thresholds map[core.ChannelKind]float64) Option {
	return func(s *settings) { s.reject = thresholds }
}

// WithFlat drops epochs whose peak-to-peak amplitude on any channel of
// the given kind falls below the threshold.
func WithFlat(thresholds map[core.ChannelKind]float64) Option {
	return func(s *settings) { s.flat = thresholds }
}

// WithCodes keeps only events carrying one of the given codes.
func WithCodes(codes ...int) Option {
	return func(s *settings) {
		s.codes = make(map[int]bool, len(codes))
		for _, c := range codes {
			s.codes[c] = true
		}
	}
}

// New extracts one window per event from r. The window spans
// [tmin, tmax] relative to each event sample, inclusive of the tmax
// sample. Events whose window does not fit inside the recording are
// logged as TOO_SHORT.
func New(r *raw.Raw, events []event.Event, tmin, tmax float64, opts ...Option) (*Epochs, error) {
	var cfg settings
	for _, opt := range opts {
		opt(&cfg)
	}

	if tmin >= tmax {
		return nil, ErrBadWindow
	}
	info := r.Info()
	startOff := core.SampleIndex(tmin, info.SampleRate)
	stopOff := core.SampleIndex(tmax, info.SampleRate)
	length := stopOff - startOff + 1
	if length < 2 {
		return nil, ErrBadWindow
	}

	if cfg.baseline != nil {
		if cfg.baseline[0] < tmin || cfg.baseline[1] > tmax || cfg.baseline[0] >= cfg.baseline[1] {
			return nil, ErrBadBaseline
		}
	}

	ep := &Epochs{
		info:     info.Copy(),
		tmin:     tmin,
		baseline: cfg.baseline,
		dropLog:  make([][]string, 0, len(events)),
	}

	rejectPicks := rejectionPicks(info, cfg.reject, cfg.flat)
	all := r.Data()
	first := r.FirstSample()
	numSamples := r.NumSamples()

	for _, ev := range events {
		if cfg.codes != nil && !cfg.codes[ev.Code] {
			ep.dropLog = append(ep.dropLog, []string{DropUser})
			continue
		}

		start := ev.Sample - first + startOff
		stop := start + length
		if start < 0 || stop > numSamples {
			ep.dropLog = append(ep.dropLog, []string{DropTooShort})
			continue
		}

		window := make([][]float64, len(all))
		for c := range all {
			window[c] = append([]float64(nil), all[c][start:stop]...)
		}
		if cfg.baseline != nil {
			applyBaseline(window, info, tmin, *cfg.baseline)
		}

		if reasons := rejectReasons(window, info, rejectPicks, cfg.reject, cfg.flat); len(reasons) > 0 {
			ep.dropLog = append(ep.dropLog, reasons)
			continue
		}

		ep.dropLog = append(ep.dropLog, nil)
		ep.events = append(ep.events, ev)
		ep.data = append(ep.data, window)
	}

	if len(ep.data) == 0 {
		return nil, fmt.Errorf("%w: %d events, all dropped", ErrNoEpochs, len(events))
	}
	return ep, nil
}

func rejectionPicks(info *core.Info, reject, flat map[core.ChannelKind]float64) []int {
	if len(reject) == 0 && len(flat) == 0 {
		return nil
	}
	var picks []int
	for i, ch := range info.Channels {
		if ch.Bad {
			continue
		}
		if _, ok := reject[ch.Kind]; ok {
			picks = append(picks, i)
			continue
		}
		if _, ok := flat[ch.Kind]; ok {
			picks = append(picks, i)
		}
	}
	return picks
}

func rejectReasons(window [][]float64, info *core.Info, picks []int, reject, flat map[core.ChannelKind]float64) []string {
	var reasons []string
	for _, c := range picks {
		ptp := peakToPeak(window[c])
		kind := info.Channels[c].Kind
		if thresh, ok := reject[kind]; ok && ptp > thresh {
			reasons = append(reasons, info.Channels[c].Name)
		}
		if thresh, ok := flat[kind]; ok && ptp < thresh {
			reasons = append(reasons, DropFlat+" "+info.Channels[c].Name)
		}
	}
	return reasons
}

func peakToPeak(x []float64) float64 {
	lo, hi := x[0], x[0]
	for _, v := range x[1:] {
		if v < lo {
			lo = v
		}
		if v > hi {
			hi = v
		}
	}
	return hi - lo
}

func applyBaseline(window [][]float64, info *core.Info, tmin float64, baseline [2]float64) {
	rate := info.SampleRate
	b0 := core.SampleIndex(baseline[0]-tmin, rate)
	b1 := core.SampleIndex(baseline[1]-tmin, rate) + 1
	for c, ch := range window {
		if !info.Channels[c].Kind.IsData() {
			continue
		}
		mean := 0.0
		for _, v := range ch[b0:b1] {
			mean += v
		}
		mean /= float64(b1 - b0)
		for i := range ch {
			ch[i] -= mean
		}
	}
}

// Info returns the measurement metadata shared by all epochs.
func (e *Epochs) Info() *core.Info {
	return e.info
}

// NumEpochs returns the number of kept epochs.
func (e *Epochs) NumEpochs() int {
	return len(e.data)
}

// NumSamples returns the per-epoch sample count.
func (e *Epochs) NumSamples() int {
	if len(e.data) == 0 {
		return 0
	}
	return len(e.data[0][0])
}

// Times returns the sample times relative to the event.
func (e *Epochs) Times() []float64 {
	return core.TimeVector(e.tmin, e.info.SampleRate, e.NumSamples())
}

// Tmin returns the window start relative to the event.
func (e *Epochs) Tmin() float64 {
	return e.tmin
}

// Events returns the kept events, one per epoch.
func (e *Epochs) Events() []event.Event {
	return append([]event.Event(nil), e.events...)
}

// Data returns the raw epoch array indexed as [epoch][channel][sample].
// The slice is shared, not copied.
func (e *Epochs) Data() [][][]float64 {
	return e.data
}

// Get returns a copy of epoch i.
func (e *Epochs) Get(i int) ([][]float64, error) {
	if i < 0 || i >= len(e.data) {
		return nil, fmt.Errorf("epochs: index %d out of range [0, %d)", i, len(e.data))
	}
	out := make([][]float64, len(e.data[i]))
	for c := range out {
		out[c] = append([]float64(nil), e.data[i][c]...)
	}
	return out, nil
}

// DropLog returns one entry per input event: nil for kept epochs,
// otherwise the rejection reasons.
func (e *Epochs) DropLog() [][]string {
	return e.dropLog
}

// DropFraction returns the fraction of input events that were dropped.
func (e *Epochs) DropFraction() float64 {
	if len(e.dropLog) == 0 {
		return 0
	}
	dropped := 0
	for _, reasons := range e.dropLog {
		if len(reasons) > 0 {
			dropped++
		}
	}
	return float64(dropped) / float64(len(e.dropLog))
}

// Subset returns the epochs whose event code is among codes. The data
// slices are shared with the receiver.
func (e *Epochs) Subset(codes ...int) (*Epochs, error) {
	want := make(map[int]bool, len(codes))
	for _, c := range codes {
		want[c] = true
	}

	out := &Epochs{info: e.info, tmin: e.tmin, baseline: e.baseline}
	for i, ev := range e.events {
		if want[ev.Code] {
			out.events = append(out.events, ev)
			out.data = append(out.data, e.data[i])
			out.dropLog = append(out.dropLog, nil)
		}
	}
	if len(out.data) == 0 {
		return nil, ErrNoEpochs
	}
	return out, nil
}

// Drop removes epoch i and records reason in the drop log.
func (e *Epochs) Drop(i int, reason string) error {
	if i < 0 || i >= len(e.data) {
		return fmt.Errorf("epochs: index %d out of range [0, %d)", i, len(e.data))
	}
	if reason == "" {
		reason = DropUser
	}

	// Map the epoch index back to its drop-log slot.
	kept := -1
	for j := range e.dropLog {
		if len(e.dropLog[j]) == 0 {
			kept++
			if kept == i {
				e.dropLog[j] = []string{reason}
				break
			}
		}
	}

	e.data = append(e.data[:i], e.data[i+1:]...)
	e.events = append(e.events[:i], e.events[i+1:]...)
	return nil
}

// Resample converts every epoch to the target sample rate. Event sample
// indices are remapped so they keep pointing at the same instants of the
// original recording at the new rate.
func (e *Epochs) Resample(targetRate float64, opts ...resample.Option) error {
	rs, err := resample.ForRates(e.info.SampleRate, targetRate, opts...)
	if err != nil {
		return err
	}
	up, down := rs.Ratio()
	if up == 1 && down == 1 {
		return nil
	}

	for _, epoch := range e.data {
		for c := range epoch {
			epoch[c] = rs.Process(epoch[c])
		}
	}
	for i := range e.events {
		e.events[i].Sample = rs.MapSample(e.events[i].Sample)
	}

	exact := e.info.SampleRate * float64(up) / float64(down)
	// tmin lands on the nearest new sample, matching the remapped
	// event indices.
	e.tmin = float64(rs.MapSample(int(math.Round(e.tmin*e.info.SampleRate)))) / exact
	e.info.SampleRate = exact
	if e.info.LowpassHz > exact/2 {
		e.info.LowpassHz = exact / 2
	}
	return nil
}

// Average returns the mean across epochs as an evoked response. Epochs
// emptied by Drop yield ErrNoEpochs.
func (e *Epochs) Average() (*Evoked, error) {
	numCh := e.info.NumChannels()
	n := e.NumSamples()
	nave := len(e.data)
	if nave == 0 {
		return nil, ErrNoEpochs
	}

	mean := make([][]float64, numCh)
	for c := range mean {
		mean[c] = make([]float64, n)
		for _, epoch := range e.data {
			for i, v := range epoch[c] {
				mean[c][i] += v
			}
		}
		for i := range mean[c] {
			mean[c][i] /= float64(nave)
		}
	}

	return &Evoked{
		info:    e.info.Copy(),
		data:    mean,
		tmin:    e.tmin,
		Nave:    nave,
		Comment: averageComment(e.events),
	}, nil
}

// StandardError returns the standard error of the mean across epochs,
// shaped like an evoked response.
func (e *Epochs) StandardError() (*Evoked, error) {
	mean, err := e.Average()
	if err != nil {
		return nil, err
	}
	nave := float64(len(e.data))

	sem := make([][]float64, len(mean.data))
	for c := range sem {
		sem[c] = make([]float64, len(mean.data[c]))
		for _, epoch := range e.data {
			for i, v := range epoch[c] {
				d := v - mean.data[c][i]
				sem[c][i] += d * d
			}
		}
		for i := range sem[c] {
			sem[c][i] = math.Sqrt(sem[c][i] / (nave * (nave - 1)))
		}
	}

	return &Evoked{
		info:    mean.info,
		data:    sem,
		tmin:    e.tmin,
		Nave:    len(e.data),
		Comment: "standard_error",
	}, nil
}

func averageComment(events []event.Event) string {
	codes := map[int]bool{}
	for _, ev := range events {
		codes[ev.Code] = true
	}
	list := make([]int, 0, len(codes))
	for c := range codes {
		list = append(list, c)
	}
	sort.Ints(list)
	return fmt.Sprintf("average of codes %v", list)
}
