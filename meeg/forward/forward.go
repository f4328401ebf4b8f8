// Package forward holds gain models mapping source currents to sensor
// signals. A measured recording divides into gain times source activity
// plus noise; inverse solutions run this mapping backwards.
package forward

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/cwbudde/algo-meeg/meeg/core"
)

var (
	// ErrShape indicates a gain matrix not matching channels or sources.
	ErrShape = errors.New("forward: gain shape mismatch")
	// ErrNoSources indicates an empty source space.
	ErrNoSources = errors.New("forward: no sources")
)

// Source is one current dipole with a fixed orientation.
type Source struct {
	// Pos is the dipole location in head coordinates, meters.
	Pos core.Position
	// Ori is the unit orientation of the current.
	Ori core.Position
}

// Forward couples a source space to a sensor array through a gain
// matrix with one row per channel and one column per source.
type Forward struct {
	// ChannelNames lists the sensors, in gain row order.
	ChannelNames []string
	// Sources lists the dipoles, in gain column order.
	Sources []Source

	gain *mat.Dense
}

// New wraps a precomputed gain matrix.
func New(names []string, sources []Source, gain *mat.Dense) (*Forward, error) {
	if len(sources) == 0 {
		return nil, ErrNoSources
	}
	r, c := gain.Dims()
	if r != len(names) || c != len(sources) {
		return nil, fmt.Errorf("%w: gain %dx%d for %d channels, %d sources",
			ErrShape, r, c, len(names), len(sources))
	}
	return &Forward{ChannelNames: names, Sources: sources, gain: gain}, nil
}

// Gain returns the gain matrix, channels by sources.
func (f *Forward) Gain() *mat.Dense {
	return f.gain
}

// NumChannels returns the sensor count.
func (f *Forward) NumChannels() int {
	return len(f.ChannelNames)
}

// NumSources returns the dipole count.
func (f *Forward) NumSources() int {
	return len(f.Sources)
}

// conductivity of brain tissue in S/m, the usual single-shell value.
const sigma = 0.33

// SingleSphere synthesizes an EEG gain matrix for dipoles inside a
// homogeneous conducting sphere, using the infinite-medium potential of
// a current dipole. Electrode positions come from the EEG channels of
// info; sources must lie strictly inside the unit sphere after the
// electrodes are projected onto it.
func SingleSphere(info *core.Info, sources []Source) (*Forward, error) {
	if len(sources) == 0 {
		return nil, ErrNoSources
	}
	picks, err := core.Picks(info, core.PickKinds(core.KindEEG))
	if err != nil {
		return nil, err
	}

	electrodes := make([][3]float64, len(picks))
	names := make([]string, len(picks))
	for i, p := range picks {
		ch := info.Channels[p]
		norm := math.Sqrt(ch.Pos.X*ch.Pos.X + ch.Pos.Y*ch.Pos.Y + ch.Pos.Z*ch.Pos.Z)
		if norm == 0 {
			return nil, fmt.Errorf("forward: channel %s has no position", ch.Name)
		}
		electrodes[i] = [3]float64{ch.Pos.X / norm, ch.Pos.Y / norm, ch.Pos.Z / norm}
		names[i] = ch.Name
	}

	gain := mat.NewDense(len(picks), len(sources), nil)
	for j, src := range sources {
		r0 := [3]float64{src.Pos.X, src.Pos.Y, src.Pos.Z}
		if r0[0]*r0[0]+r0[1]*r0[1]+r0[2]*r0[2] >= 1 {
			return nil, fmt.Errorf("forward: source %d outside the sphere", j)
		}
		q := normalize([3]float64{src.Ori.X, src.Ori.Y, src.Ori.Z})
		for i, el := range electrodes {
			d := [3]float64{el[0] - r0[0], el[1] - r0[1], el[2] - r0[2]}
			dist := math.Sqrt(d[0]*d[0] + d[1]*d[1] + d[2]*d[2])
			dot := q[0]*d[0] + q[1]*d[1] + q[2]*d[2]
			gain.Set(i, j, dot/(4*math.Pi*sigma*dist*dist*dist))
		}
	}

	// Average reference: EEG potentials are only defined up to a
	// constant, so each column is centered.
	for j := range sources {
		mean := 0.0
		for i := range picks {
			mean += gain.At(i, j)
		}
		mean /= float64(len(picks))
		for i := range picks {
			gain.Set(i, j, gain.At(i, j)-mean)
		}
	}

	return &Forward{ChannelNames: names, Sources: sources, gain: gain}, nil
}

func normalize(v [3]float64) [3]float64 {
	n := math.Sqrt(v[0]*v[0] + v[1]*v[1] + v[2]*v[2])
	if n == 0 {
		return [3]float64{0, 0, 1}
	}
	return [3]float64{v[0] / n, v[1] / n, v[2] / n}
}

// Project applies the gain to source time courses, sources by samples,
// returning channel signals.
func (f *Forward) Project(activity [][]float64) ([][]float64, error) {
	if len(activity) != f.NumSources() {
		return nil, fmt.Errorf("%w: %d activity rows for %d sources",
			ErrShape, len(activity), f.NumSources())
	}
	n := len(activity[0])
	out := make([][]float64, f.NumChannels())
	for i := range out {
		out[i] = make([]float64, n)
		for j := range f.Sources {
			g := f.gain.At(i, j)
			if g == 0 {
				continue
			}
			for k, v := range activity[j] {
				out[i][k] += g * v
			}
		}
	}
	return out, nil
}
