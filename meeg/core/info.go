package core

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrNoChannels indicates an Info without any channels.
	ErrNoChannels = errors.New("core: info has no channels")
	// ErrBadSampleRate indicates a non-positive sample rate.
	ErrBadSampleRate = errors.New("core: sample rate must be > 0")
	// ErrUnknownChannel indicates a channel name lookup failure.
	ErrUnknownChannel = errors.New("core: unknown channel")
)

// Info holds the measurement metadata of a recording.
type Info struct {
	SampleRate float64
	Channels   []Channel
	// HighpassHz and LowpassHz record the filtering already applied to the
	// data, 0 and Nyquist when unfiltered.
	HighpassHz float64
	LowpassHz  float64
	// MeasDate is the acquisition start, zero when unknown.
	MeasDate    time.Time
	Subject     string
	Description string
}

// NewInfo builds an Info from a sample rate and channel list.
// Channel names must be unique and non-empty.
func NewInfo(sampleRate float64, channels []Channel) (*Info, error) {
	info := &Info{
		SampleRate: sampleRate,
		Channels:   append([]Channel(nil), channels...),
		LowpassHz:  sampleRate / 2,
	}
	if err := info.Validate(); err != nil {
		return nil, err
	}
	return info, nil
}

// Validate checks the structural invariants of the Info.
func (in *Info) Validate() error {
	if in.SampleRate <= 0 {
		return fmt.Errorf("%w: %f", ErrBadSampleRate, in.SampleRate)
	}
	if len(in.Channels) == 0 {
		return ErrNoChannels
	}

	seen := make(map[string]struct{}, len(in.Channels))
	for i, ch := range in.Channels {
		if err := validateChannel(ch); err != nil {
			return fmt.Errorf("channel %d: %w", i, err)
		}
		if _, dup := seen[ch.Name]; dup {
			return fmt.Errorf("core: duplicate channel name %q", ch.Name)
		}
		seen[ch.Name] = struct{}{}
	}
	return nil
}

// NumChannels returns the channel count.
func (in *Info) NumChannels() int {
	return len(in.Channels)
}

// Nyquist returns half the sample rate.
func (in *Info) Nyquist() float64 {
	return in.SampleRate / 2
}

// Copy returns a deep copy of the Info.
func (in *Info) Copy() *Info {
	out := *in
	out.Channels = append([]Channel(nil), in.Channels...)
	return &out
}

// ChannelIndex returns the index of the named channel.
func (in *Info) ChannelIndex(name string) (int, error) {
	for i, ch := range in.Channels {
		if ch.Name == name {
			return i, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownChannel, name)
}

// ChannelNames returns the channel names in order.
func (in *Info) ChannelNames() []string {
	names := make([]string, len(in.Channels))
	for i, ch := range in.Channels {
		names[i] = ch.Name
	}
	return names
}

// BadNames returns the names of channels flagged bad.
func (in *Info) BadNames() []string {
	var bads []string
	for _, ch := range in.Channels {
		if ch.Bad {
			bads = append(bads, ch.Name)
		}
	}
	return bads
}

// SetBads flags the named channels bad, clearing previous flags.
// Unknown names return an error and leave the Info unchanged.
func (in *Info) SetBads(names ...string) error {
	idx := make([]int, 0, len(names))
	for _, name := range names {
		i, err := in.ChannelIndex(name)
		if err != nil {
			return err
		}
		idx = append(idx, i)
	}
	for i := range in.Channels {
		in.Channels[i].Bad = false
	}
	for _, i := range idx {
		in.Channels[i].Bad = true
	}
	return nil
}
