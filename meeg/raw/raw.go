// Package raw holds continuous recordings and their in-place processing.
//
// A [Raw] owns a channels-by-samples matrix plus the measurement [core.Info]
// and an annotation list. Filtering and resampling delegate to meeg/filter
// and meeg/resample and operate only on the picked channels, leaving
// trigger and auxiliary channels untouched.
package raw

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/cwbudde/algo-meeg/meeg/core"
	"github.com/cwbudde/algo-meeg/meeg/event"
)

var (
	// ErrShapeMismatch indicates data whose shape disagrees with the Info.
	ErrShapeMismatch = errors.New("raw: data shape does not match info")
	// ErrEmptySegment indicates a crop or read of zero samples.
	ErrEmptySegment = errors.New("raw: empty segment")
	// ErrNoStim indicates a missing trigger channel.
	ErrNoStim = errors.New("raw: no stim channel")
)

// Annotation marks a labeled time span in a recording.
type Annotation struct {
	// Onset in seconds from the first sample.
	Onset float64
	// Duration in seconds, zero for point annotations.
	Duration    float64
	Description string
}

// Raw is a continuous multichannel recording.
type Raw struct {
	info        *core.Info
	data        [][]float64 // [channel][sample]
	annotations []Annotation
	firstSample int
}

// New wraps channel data and metadata into a Raw. Data is not copied;
// every channel must have the same length.
func New(info *core.Info, data [][]float64) (*Raw, error) {
	if err := info.Validate(); err != nil {
		return nil, err
	}
	if len(data) != info.NumChannels() {
		return nil, fmt.Errorf("%w: %d channels, %d rows", ErrShapeMismatch, info.NumChannels(), len(data))
	}
	n := -1
	for i, ch := range data {
		if n == -1 {
			n = len(ch)
		}
		if len(ch) != n {
			return nil, fmt.Errorf("%w: channel %d has %d samples, expected %d", ErrShapeMismatch, i, len(ch), n)
		}
	}
	if n <= 0 {
		return nil, ErrEmptySegment
	}
	return &Raw{info: info, data: data}, nil
}

// Info returns the measurement metadata.
func (r *Raw) Info() *core.Info {
	return r.info
}

// NumSamples returns the per-channel sample count.
func (r *Raw) NumSamples() int {
	if len(r.data) == 0 {
		return 0
	}
	return len(r.data[0])
}

// Duration returns the recording length in seconds.
func (r *Raw) Duration() float64 {
	return float64(r.NumSamples()) / r.info.SampleRate
}

// FirstSample returns the index of the first retained sample in the
// original recording, advanced by Crop.
func (r *Raw) FirstSample() int {
	return r.firstSample
}

// Data returns the underlying channel matrix. Mutations are visible to
// the Raw.
func (r *Raw) Data() [][]float64 {
	return r.data
}

// Channel returns the samples of the named channel.
func (r *Raw) Channel(name string) ([]float64, error) {
	i, err := r.info.ChannelIndex(name)
	if err != nil {
		return nil, err
	}
	return r.data[i], nil
}

// Get copies the picked channels over [start, stop) into a new matrix.
func (r *Raw) Get(picks []int, start, stop int) ([][]float64, error) {
	n := r.NumSamples()
	if start < 0 {
		start = 0
	}
	if stop > n {
		stop = n
	}
	if start >= stop {
		return nil, fmt.Errorf("%w: [%d, %d)", ErrEmptySegment, start, stop)
	}

	out := make([][]float64, len(picks))
	for i, p := range picks {
		if p < 0 || p >= len(r.data) {
			return nil, fmt.Errorf("raw: pick %d out of range", p)
		}
		out[i] = append([]float64(nil), r.data[p][start:stop]...)
	}
	return out, nil
}

// Crop trims the recording to [tmin, tmax] seconds in place. Bounds are
// clamped to the recording; an empty result is an error. Annotations are
// shifted and clipped, fully outside ones dropped.
func (r *Raw) Crop(tmin, tmax float64) error {
	rate := r.info.SampleRate
	n := r.NumSamples()

	start := core.SampleIndex(math.Max(tmin, 0), rate)
	stop := core.SampleIndex(tmax, rate) + 1
	if stop > n {
		stop = n
	}
	if start >= stop {
		return fmt.Errorf("%w: crop [%f, %f]", ErrEmptySegment, tmin, tmax)
	}

	for i := range r.data {
		r.data[i] = r.data[i][start:stop]
	}
	r.firstSample += start

	offset := float64(start) / rate
	kept := r.annotations[:0]
	limit := float64(stop-start) / rate
	for _, a := range r.annotations {
		onset := a.Onset - offset
		if onset+a.Duration < 0 || onset >= limit {
			continue
		}
		if onset < 0 {
			a.Duration += onset
			onset = 0
		}
		a.Onset = onset
		kept = append(kept, a)
	}
	r.annotations = kept
	return nil
}

// Annotate appends an annotation, keeping the list sorted by onset.
func (r *Raw) Annotate(a Annotation) {
	r.annotations = append(r.annotations, a)
	sort.SliceStable(r.annotations, func(i, j int) bool {
		return r.annotations[i].Onset < r.annotations[j].Onset
	})
}

// Annotations returns the annotation list sorted by onset.
func (r *Raw) Annotations() []Annotation {
	return r.annotations
}

// SetAnnotations replaces the annotation list.
func (r *Raw) SetAnnotations(list []Annotation) {
	r.annotations = append([]Annotation(nil), list...)
	sort.SliceStable(r.annotations, func(i, j int) bool {
		return r.annotations[i].Onset < r.annotations[j].Onset
	})
}

// AnnotationEvents converts annotations to events using a description to
// code mapping. Unmapped descriptions are skipped. Event samples are in
// the frame of the original recording, offset by FirstSample.
func (r *Raw) AnnotationEvents(codes map[string]int) ([]event.Event, error) {
	var out []event.Event
	for _, a := range r.annotations {
		code, ok := codes[a.Description]
		if !ok {
			continue
		}
		out = append(out, event.Event{
			Sample: r.firstSample + core.SampleIndex(a.Onset, r.info.SampleRate),
			Code:   code,
		})
	}
	if len(out) == 0 {
		return nil, event.ErrNoEvents
	}
	return out, nil
}

// Events scans the first stim channel for trigger transitions. Event
// samples are in the frame of the original recording, offset by
// FirstSample, so they stay valid across Crop.
func (r *Raw) Events(opts ...event.ScanOption) ([]event.Event, error) {
	picks, err := core.Picks(r.info, core.PickKinds(core.KindStim), core.WithBads())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNoStim, err)
	}
	evs, err := event.Scan(r.data[picks[0]], opts...)
	if err != nil {
		return nil, err
	}
	for i := range evs {
		evs[i].Sample += r.firstSample
	}
	return evs, nil
}

// ApplyFunc applies fn in place to each picked channel.
func (r *Raw) ApplyFunc(picks []int, fn func([]float64)) {
	for _, p := range picks {
		fn(r.data[p])
	}
}
