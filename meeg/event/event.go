// Package event extracts and manipulates experiment event markers.
//
// Events come from a trigger (stim) channel, where each nonzero plateau
// encodes a condition code, or from recording annotations mapped to codes.
package event

import (
	"errors"
	"fmt"
	"math"
	"sort"
)

// Event marks a condition change at a recording sample.
type Event struct {
	// Sample is the index into the recording where the code appears.
	Sample int
	// Prior is the code active immediately before the transition.
	Prior int
	// Code is the condition code.
	Code int
}

var (
	// ErrNoEvents indicates a scan or filter that produced no events.
	ErrNoEvents = errors.New("event: no events found")
	// ErrUnsorted indicates an event list not ordered by sample.
	ErrUnsorted = errors.New("event: list not sorted by sample")
)

type scanConfig struct {
	minSamples int
	mask       int
}

// ScanOption configures stim-channel scanning.
type ScanOption func(*scanConfig)

// WithMinDuration drops plateaus shorter than n samples, debouncing
// trigger-line glitches.
func WithMinDuration(n int) ScanOption {
	return func(c *scanConfig) {
		if n > 0 {
			c.minSamples = n
		}
	}
}

// WithMask ANDs each trigger value with mask before comparison.
func WithMask(mask int) ScanOption {
	return func(c *scanConfig) {
		c.mask = mask
	}
}

// Scan finds rising transitions on a trigger channel. A transition is
// emitted when the (masked, rounded) value changes to a nonzero code and
// holds for the configured minimum duration.
//
// The returned list is sorted by sample and strictly increasing.
func Scan(stim []float64, opts ...ScanOption) ([]Event, error) {
	if len(stim) == 0 {
		return nil, ErrNoEvents
	}

	cfg := scanConfig{minSamples: 1}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}

	value := func(i int) int {
		v := int(math.Round(stim[i]))
		if cfg.mask != 0 {
			v &= cfg.mask
		}
		return v
	}

	var out []Event
	prev := value(0)
	i := 1
	for i < len(stim) {
		cur := value(i)
		if cur == prev {
			i++
			continue
		}

		// Require the new value to hold for minSamples.
		end := i + cfg.minSamples
		stable := true
		for j := i + 1; j < end && j < len(stim); j++ {
			if value(j) != cur {
				stable = false
				break
			}
		}
		if stable && cur != 0 {
			out = append(out, Event{Sample: i, Prior: prev, Code: cur})
		}
		if stable {
			prev = cur
		}
		i++
	}

	if len(out) == 0 {
		return nil, ErrNoEvents
	}
	return out, nil
}

// Filter returns the events whose code is in keep, preserving order.
func Filter(events []Event, keep ...int) ([]Event, error) {
	set := make(map[int]struct{}, len(keep))
	for _, c := range keep {
		set[c] = struct{}{}
	}

	var out []Event
	for _, ev := range events {
		if _, ok := set[ev.Code]; ok {
			out = append(out, ev)
		}
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%w: codes %v", ErrNoEvents, keep)
	}
	return out, nil
}

// Merge combines event lists into one list sorted by sample. Events at
// the same sample keep their relative input order.
func Merge(lists ...[]Event) []Event {
	var out []Event
	for _, l := range lists {
		out = append(out, l...)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Sample < out[j].Sample
	})
	return out
}

// Validate checks that the list is sorted by sample.
func Validate(events []Event) error {
	for i := 1; i < len(events); i++ {
		if events[i].Sample < events[i-1].Sample {
			return fmt.Errorf("%w: index %d", ErrUnsorted, i)
		}
	}
	return nil
}

// Codes returns the distinct codes present, ascending.
func Codes(events []Event) []int {
	set := make(map[int]struct{})
	for _, ev := range events {
		set[ev.Code] = struct{}{}
	}
	out := make([]int, 0, len(set))
	for c := range set {
		out = append(out, c)
	}
	sort.Ints(out)
	return out
}
