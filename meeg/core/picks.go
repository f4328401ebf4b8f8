package core

import (
	"errors"
	"fmt"
	"regexp"
)

// ErrEmptyPicks indicates a selection that matched no channels.
var ErrEmptyPicks = errors.New("core: selection matched no channels")

type pickConfig struct {
	kinds       []ChannelKind
	names       []string
	pattern     *regexp.Regexp
	includeBads bool
}

// PickOption narrows or widens a channel selection.
type PickOption func(*pickConfig)

// PickKinds selects channels of the given kinds.
func PickKinds(kinds ...ChannelKind) PickOption {
	return func(c *pickConfig) {
		c.kinds = append(c.kinds, kinds...)
	}
}

// PickData selects all brain-signal channels (EEG, magnetometer, gradiometer).
func PickData() PickOption {
	return PickKinds(KindEEG, KindMagMEG, KindGradMEG)
}

// PickNames selects channels by exact name.
func PickNames(names ...string) PickOption {
	return func(c *pickConfig) {
		c.names = append(c.names, names...)
	}
}

// PickRegexp selects channels whose name matches the pattern.
func PickRegexp(re *regexp.Regexp) PickOption {
	return func(c *pickConfig) {
		c.pattern = re
	}
}

// WithBads includes channels flagged bad, which are excluded by default.
func WithBads() PickOption {
	return func(c *pickConfig) {
		c.includeBads = true
	}
}

// Picks resolves a channel selection into sorted channel indices.
//
// With no options all non-bad channels are selected. Kind, name, and
// pattern constraints are OR-ed together; bad channels are excluded unless
// [WithBads] is given. Explicit unknown names are an error; an otherwise
// empty result returns [ErrEmptyPicks].
func Picks(info *Info, opts ...PickOption) ([]int, error) {
	var cfg pickConfig
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}

	for _, name := range cfg.names {
		if _, err := info.ChannelIndex(name); err != nil {
			return nil, err
		}
	}

	unconstrained := len(cfg.kinds) == 0 && len(cfg.names) == 0 && cfg.pattern == nil

	var out []int
	for i, ch := range info.Channels {
		if ch.Bad && !cfg.includeBads {
			continue
		}
		if unconstrained || cfg.matches(ch) {
			out = append(out, i)
		}
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%w (%d channels, %d bad)", ErrEmptyPicks, len(info.Channels), len(info.BadNames()))
	}
	return out, nil
}

func (c *pickConfig) matches(ch Channel) bool {
	for _, k := range c.kinds {
		if ch.Kind == k {
			return true
		}
	}
	for _, n := range c.names {
		if ch.Name == n {
			return true
		}
	}
	if c.pattern != nil && c.pattern.MatchString(ch.Name) {
		return true
	}
	return false
}
