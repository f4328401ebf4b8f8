package raw

import (
	"fmt"
	"math"

	"github.com/cwbudde/algo-meeg/meeg/core"
	"github.com/cwbudde/algo-meeg/meeg/filter"
	"github.com/cwbudde/algo-meeg/meeg/resample"
)

// dataPicks resolves the channels touched by in-place processing:
// all non-bad data channels.
func (r *Raw) dataPicks() ([]int, error) {
	return core.Picks(r.info, core.PickData())
}

// FilterBandpass band-limits all data channels to [low, high] Hz with a
// zero-phase FIR and records the new band edges in the Info.
func (r *Raw) FilterBandpass(low, high float64, opts ...filter.DesignOption) error {
	taps, err := filter.DesignBandpass(low, high, r.info.SampleRate, opts...)
	if err != nil {
		return err
	}
	if err := r.applyFIR(taps); err != nil {
		return err
	}
	if low > r.info.HighpassHz {
		r.info.HighpassHz = low
	}
	if high < r.info.LowpassHz {
		r.info.LowpassHz = high
	}
	return nil
}

// FilterHighpass removes content below freq Hz on all data channels.
func (r *Raw) FilterHighpass(freq float64, opts ...filter.DesignOption) error {
	taps, err := filter.DesignHighpass(freq, r.info.SampleRate, opts...)
	if err != nil {
		return err
	}
	if err := r.applyFIR(taps); err != nil {
		return err
	}
	if freq > r.info.HighpassHz {
		r.info.HighpassHz = freq
	}
	return nil
}

// FilterLowpass removes content above freq Hz on all data channels.
func (r *Raw) FilterLowpass(freq float64, opts ...filter.DesignOption) error {
	taps, err := filter.DesignLowpass(freq, r.info.SampleRate, opts...)
	if err != nil {
		return err
	}
	if err := r.applyFIR(taps); err != nil {
		return err
	}
	if freq < r.info.LowpassHz {
		r.info.LowpassHz = freq
	}
	return nil
}

// Notch suppresses the given line frequencies (typically 50/60 Hz and
// harmonics) with zero-phase FIR notches of the given width.
func (r *Raw) Notch(freqs []float64, widthHz float64) error {
	for _, f := range freqs {
		taps, err := filter.DesignNotch(f, widthHz, r.info.SampleRate)
		if err != nil {
			return err
		}
		if err := r.applyFIR(taps); err != nil {
			return err
		}
	}
	return nil
}

func (r *Raw) applyFIR(taps []float64) error {
	picks, err := r.dataPicks()
	if err != nil {
		return err
	}
	for _, p := range picks {
		out, err := filter.ApplyZeroPhase(r.data[p], taps)
		if err != nil {
			return fmt.Errorf("channel %q: %w", r.info.Channels[p].Name, err)
		}
		copy(r.data[p], out)
	}
	return nil
}

// Resample converts the whole recording (all channels, including stim) to
// the target sample rate and updates the Info and annotations.
//
// Trigger channels are resampled by forward sample mapping rather than
// filtering, so codes stay intact and one-sample pulses survive
// decimation.
func (r *Raw) Resample(targetRate float64, opts ...resample.Option) error {
	rs, err := resample.ForRates(r.info.SampleRate, targetRate, opts...)
	if err != nil {
		return err
	}
	up, down := rs.Ratio()
	if up == 1 && down == 1 {
		return nil
	}

	n := r.NumSamples()
	nOut := rs.OutputLen(n)

	for i := range r.data {
		if r.info.Channels[i].Kind == core.KindStim {
			// Map input samples forward so no trigger value is
			// skipped; colliding samples keep the larger code.
			mapped := make([]float64, nOut)
			for j, v := range r.data[i] {
				m := rs.MapSample(j)
				if m >= nOut {
					m = nOut - 1
				}
				if math.Abs(v) > math.Abs(mapped[m]) {
					mapped[m] = v
				}
			}
			r.data[i] = mapped
			continue
		}
		r.data[i] = rs.Process(r.data[i])
	}

	exact := r.info.SampleRate * float64(up) / float64(down)
	r.info.SampleRate = exact
	if r.info.LowpassHz > exact/2 {
		r.info.LowpassHz = exact / 2
	}
	return nil
}
