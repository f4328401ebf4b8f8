// Package simulate builds synthetic recordings with known ground truth:
// source bursts projected through a forward model, sensor noise, and a
// stim channel carrying the event sequence.
package simulate

import (
	"errors"
	"fmt"
	"math"
	"math/rand"

	"github.com/cwbudde/algo-meeg/meeg/core"
	"github.com/cwbudde/algo-meeg/meeg/event"
	"github.com/cwbudde/algo-meeg/meeg/forward"
	"github.com/cwbudde/algo-meeg/meeg/raw"
)

var (
	// ErrBadDuration indicates a non-positive recording length.
	ErrBadDuration = errors.New("simulate: bad duration")
	// ErrNoEvents indicates an empty event schedule.
	ErrNoEvents = errors.New("simulate: no events")
)

// Burst describes the evoked response of one source to one event code.
type Burst struct {
	// Source indexes into the forward model's source list.
	Source int
	// Code is the triggering event code.
	Code int
	// Amplitude of the oscillation at its envelope peak.
	Amplitude float64
	// FreqHz of the oscillation.
	FreqHz float64
	// Latency of the envelope peak after the event, seconds.
	Latency float64
	// Width of the Gaussian envelope, seconds.
	Width float64
}

// Option configures the simulation.
type Option func(*settings)

type settings struct {
	noiseSigma float64
	seed       int64
	stimName   string
}

// WithNoise sets the standard deviation of the additive Gaussian
// sensor noise, default 0.
func WithNoise(sigma float64) Option {
	return func(s *settings) { s.noiseSigma = sigma }
}

// WithSeed sets the noise seed; the same seed reproduces the same
// recording exactly.
func WithSeed(seed int64) Option {
	return func(s *settings) { s.seed = seed }
}

// WithStimName names the stim channel, default "STI 014".
func WithStimName(name string) Option {
	return func(s *settings) { s.stimName = name }
}

// Raw renders a recording of the given duration. Each event triggers
// the bursts registered for its code; the summed source activity runs
// through fwd and lands on the EEG channels of a new Info built from
// the forward model's sensors plus one stim channel.
func Raw(fwd *forward.Forward, sampleRate, duration float64, events []event.Event, bursts []Burst, opts ...Option) (*raw.Raw, error) {
	cfg := settings{seed: 1, stimName: "STI 014"}
	for _, opt := range opts {
		opt(&cfg)
	}

	if duration <= 0 {
		return nil, ErrBadDuration
	}
	if len(events) == 0 {
		return nil, ErrNoEvents
	}
	if err := event.Validate(events); err != nil {
		return nil, err
	}

	n := int(math.Round(duration * sampleRate))
	last := events[len(events)-1].Sample
	if last >= n {
		return nil, fmt.Errorf("simulate: event at sample %d beyond %d samples", last, n)
	}
	for _, b := range bursts {
		if b.Source < 0 || b.Source >= fwd.NumSources() {
			return nil, fmt.Errorf("simulate: burst source %d out of range", b.Source)
		}
	}

	// Source time courses.
	activity := make([][]float64, fwd.NumSources())
	for i := range activity {
		activity[i] = make([]float64, n)
	}
	for _, ev := range events {
		for _, b := range bursts {
			if b.Code != ev.Code {
				continue
			}
			addBurst(activity[b.Source], sampleRate, ev.Sample, b)
		}
	}

	sensors, err := fwd.Project(activity)
	if err != nil {
		return nil, err
	}

	if cfg.noiseSigma > 0 {
		rng := rand.New(rand.NewSource(cfg.seed))
		for c := range sensors {
			for i := range sensors[c] {
				sensors[c][i] += rng.NormFloat64() * cfg.noiseSigma
			}
		}
	}

	stim := make([]float64, n)
	for _, ev := range events {
		stim[ev.Sample] = float64(ev.Code)
	}

	channels := make([]core.Channel, 0, fwd.NumChannels()+1)
	for _, name := range fwd.ChannelNames {
		channels = append(channels, core.Channel{Name: name, Kind: core.KindEEG, Unit: "V", Cal: 1})
	}
	channels = append(channels, core.Channel{Name: cfg.stimName, Kind: core.KindStim, Cal: 1})

	info, err := core.NewInfo(sampleRate, channels)
	if err != nil {
		return nil, err
	}

	data := append(sensors, stim)
	return raw.New(info, data)
}

func addBurst(dst []float64, rate float64, sample int, b Burst) {
	center := float64(sample) + b.Latency*rate
	sigma := b.Width * rate
	// Beyond four sigmas the envelope is negligible.
	lo := int(center - 4*sigma)
	hi := int(center + 4*sigma)
	if lo < 0 {
		lo = 0
	}
	if hi >= len(dst) {
		hi = len(dst) - 1
	}
	for i := lo; i <= hi; i++ {
		t := (float64(i) - center) / rate
		env := math.Exp(-t * t / (2 * b.Width * b.Width))
		dst[i] += b.Amplitude * env * math.Sin(2*math.Pi*b.FreqHz*t)
	}
}

// EventSchedule builds a periodic event sequence of alternating codes,
// starting at start samples and spaced every interval samples.
func EventSchedule(start, interval, count int, codes ...int) []event.Event {
	if len(codes) == 0 {
		codes = []int{1}
	}
	out := make([]event.Event, count)
	for i := range out {
		out[i] = event.Event{Sample: start + i*interval, Code: codes[i%len(codes)]}
	}
	return out
}
