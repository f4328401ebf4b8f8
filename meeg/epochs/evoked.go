package epochs

import (
	"errors"
	"math"

	"github.com/cwbudde/algo-meeg/meeg/core"
)

// ErrNoEvoked indicates an empty evoked list.
var ErrNoEvoked = errors.New("epochs: no evoked responses")

// Evoked is an averaged response, [channel][sample].
type Evoked struct {
	info *core.Info
	data [][]float64
	tmin float64

	// Nave is the number of epochs averaged in.
	Nave int
	// Comment describes what was averaged.
	Comment string
}

// NewEvoked wraps pre-computed data as an evoked response.
func NewEvoked(info *core.Info, data [][]float64, tmin float64, nave int) (*Evoked, error) {
	if len(data) != info.NumChannels() {
		return nil, errors.New("epochs: data rows do not match channel count")
	}
	return &Evoked{info: info.Copy(), data: data, tmin: tmin, Nave: nave}, nil
}

// Info returns the measurement metadata.
func (ev *Evoked) Info() *core.Info {
	return ev.info
}

// Data returns the averaged data, shared not copied.
func (ev *Evoked) Data() [][]float64 {
	return ev.data
}

// NumSamples returns the sample count.
func (ev *Evoked) NumSamples() int {
	if len(ev.data) == 0 {
		return 0
	}
	return len(ev.data[0])
}

// Tmin returns the first sample time relative to the event.
func (ev *Evoked) Tmin() float64 {
	return ev.tmin
}

// Times returns the sample times relative to the event.
func (ev *Evoked) Times() []float64 {
	return core.TimeVector(ev.tmin, ev.info.SampleRate, ev.NumSamples())
}

// Peak returns the channel name, latency in seconds and signed value of
// the largest absolute deflection across data channels in [tmin, tmax].
func (ev *Evoked) Peak(tmin, tmax float64) (string, float64, float64, error) {
	rate := ev.info.SampleRate
	start := core.SampleIndex(tmin-ev.tmin, rate)
	stop := core.SampleIndex(tmax-ev.tmin, rate) + 1
	n := ev.NumSamples()
	if start < 0 {
		start = 0
	}
	if stop > n {
		stop = n
	}
	if start >= stop {
		return "", 0, 0, ErrBadWindow
	}

	best := -1.0
	bestCh, bestSample := -1, -1
	for c, ch := range ev.info.Channels {
		if !ch.Kind.IsData() || ch.Bad {
			continue
		}
		for i := start; i < stop; i++ {
			if a := math.Abs(ev.data[c][i]); a > best {
				best = a
				bestCh = c
				bestSample = i
			}
		}
	}
	if bestCh < 0 {
		return "", 0, 0, core.ErrEmptyPicks
	}
	latency := ev.tmin + core.SampleTime(bestSample, rate)
	return ev.info.Channels[bestCh].Name, latency, ev.data[bestCh][bestSample], nil
}

// Crop restricts the evoked response to [tmin, tmax], inclusive.
func (ev *Evoked) Crop(tmin, tmax float64) error {
	rate := ev.info.SampleRate
	start := core.SampleIndex(tmin-ev.tmin, rate)
	stop := core.SampleIndex(tmax-ev.tmin, rate) + 1
	n := ev.NumSamples()
	if start < 0 {
		start = 0
	}
	if stop > n {
		stop = n
	}
	if start >= stop {
		return ErrBadWindow
	}
	for c := range ev.data {
		ev.data[c] = ev.data[c][start:stop]
	}
	ev.tmin += core.SampleTime(start, rate)
	return nil
}

// Combine averages evoked responses weighted by their Nave, the way
// grand averages are built across conditions or subjects.
func Combine(list ...*Evoked) (*Evoked, error) {
	if len(list) == 0 {
		return nil, ErrNoEvoked
	}

	first := list[0]
	total := 0
	for _, ev := range list {
		if ev.NumSamples() != first.NumSamples() || len(ev.data) != len(first.data) {
			return nil, errors.New("epochs: evoked shapes differ")
		}
		total += ev.Nave
	}
	if total == 0 {
		return nil, ErrNoEvoked
	}

	data := make([][]float64, len(first.data))
	for c := range data {
		data[c] = make([]float64, first.NumSamples())
		for _, ev := range list {
			w := float64(ev.Nave) / float64(total)
			for i, v := range ev.data[c] {
				data[c][i] += w * v
			}
		}
	}

	return &Evoked{
		info:    first.info.Copy(),
		data:    data,
		tmin:    first.tmin,
		Nave:    total,
		Comment: "grand average",
	}, nil
}
