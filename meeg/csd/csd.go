// Package csd computes current source density, the spherical-spline
// surface Laplacian of EEG recordings (Perrin et al., 1989). CSD
// sharpens topographies and removes the effect of the reference
// electrode.
package csd

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/cwbudde/algo-meeg/meeg/core"
	"github.com/cwbudde/algo-meeg/meeg/epochs"
	"github.com/cwbudde/algo-meeg/meeg/raw"
)

var (
	// ErrTooFewChannels indicates fewer than four EEG channels.
	ErrTooFewChannels = errors.New("csd: need at least 4 EEG channels")
	// ErrNoPositions indicates EEG channels without sensor positions.
	ErrNoPositions = errors.New("csd: missing channel positions")
)

const legendreTerms = 50

// Option configures the transform.
type Option func(*settings)

type settings struct {
	stiffness int
	lambda    float64
}

// WithStiffness sets the spline stiffness m, default 4. Larger values
// give smoother interpolation.
func WithStiffness(m int) Option {
	return func(s *settings) { s.stiffness = m }
}

// WithLambda sets the regularization added to the spline system,
// default 1e-5.
func WithLambda(l float64) Option {
	return func(s *settings) { s.lambda = l }
}

// Transform maps EEG data through the surface Laplacian. It is built
// once per montage and applied to any number of recordings.
type Transform struct {
	picks []int
	// op maps a vector of EEG samples to CSD values, one row per
	// electrode.
	op *mat.Dense
}

// NewTransform builds the Laplacian for the EEG channels of info. All
// EEG channels need positions; they are projected onto the unit sphere.
func NewTransform(info *core.Info, opts ...Option) (*Transform, error) {
	cfg := settings{stiffness: 4, lambda: 1e-5}
	for _, opt := range opts {
		opt(&cfg)
	}

	picks, err := core.Picks(info, core.PickKinds(core.KindEEG))
	if err != nil {
		return nil, err
	}
	if len(picks) < 4 {
		return nil, fmt.Errorf("%w: have %d", ErrTooFewChannels, len(picks))
	}

	pos := make([][3]float64, len(picks))
	for i, p := range picks {
		ch := info.Channels[p]
		norm := math.Sqrt(ch.Pos.X*ch.Pos.X + ch.Pos.Y*ch.Pos.Y + ch.Pos.Z*ch.Pos.Z)
		if norm == 0 {
			return nil, fmt.Errorf("%w: %s", ErrNoPositions, ch.Name)
		}
		pos[i] = [3]float64{ch.Pos.X / norm, ch.Pos.Y / norm, ch.Pos.Z / norm}
	}

	op, err := laplacianOperator(pos, cfg.stiffness, cfg.lambda)
	if err != nil {
		return nil, err
	}
	return &Transform{picks: picks, op: op}, nil
}

// laplacianOperator builds the matrix L with csd = L v for a sample
// vector v. The spline weights solve (G + lambda I) c = v - c0 under
// the constraint sum(c) = 0; the Laplacian is H c.
func laplacianOperator(pos [][3]float64, m int, lambda float64) (*mat.Dense, error) {
	n := len(pos)
	g := mat.NewDense(n, n, nil)
	h := mat.NewDense(n, n, nil)
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			x := pos[i][0]*pos[j][0] + pos[i][1]*pos[j][1] + pos[i][2]*pos[j][2]
			gv, hv := splineKernels(x, m)
			g.Set(i, j, gv)
			g.Set(j, i, gv)
			h.Set(i, j, hv)
			h.Set(j, i, hv)
		}
	}
	for i := 0; i < n; i++ {
		g.Set(i, i, g.At(i, i)+lambda)
	}

	var ginv mat.Dense
	if err := ginv.Inverse(g); err != nil {
		return nil, fmt.Errorf("csd: spline system singular: %w", err)
	}

	// rowSums_i = sum_j ginv_ij; total = sum of everything.
	rowSums := make([]float64, n)
	total := 0.0
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			rowSums[i] += ginv.At(i, j)
		}
		total += rowSums[i]
	}
	if total == 0 {
		return nil, errors.New("csd: degenerate spline system")
	}

	// c = ginv (v - c0 1) with c0 = (rowSums . v) / total, so
	// c = (ginv - rowSums rowSums^T / total) v.
	cOp := mat.NewDense(n, n, nil)
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			cOp.Set(i, j, ginv.At(i, j)-rowSums[i]*rowSums[j]/total)
		}
	}

	var op mat.Dense
	op.Mul(h, cOp)
	return &op, nil
}

// splineKernels evaluates the g and h spline kernels at cos angle x via
// a truncated Legendre series.
func splineKernels(x float64, m int) (float64, float64) {
	// Legendre recurrence: (n+1) P_{n+1} = (2n+1) x P_n - n P_{n-1}.
	pPrev, p := 1.0, x
	gSum, hSum := 0.0, 0.0
	for n := 1; n <= legendreTerms; n++ {
		fn := float64(n)
		denom := math.Pow(fn*(fn+1), float64(m))
		gSum += (2*fn + 1) / denom * p
		hSum -= (2*fn + 1) / (denom / (fn * (fn + 1))) * p

		pNext := ((2*fn+1)*x*p - fn*pPrev) / (fn + 1)
		pPrev, p = p, pNext
	}
	return gSum / (4 * math.Pi), hSum / (4 * math.Pi)
}

// NumChannels returns the electrode count of the montage.
func (t *Transform) NumChannels() int {
	return len(t.picks)
}

// apply overwrites the picked channels of data with their CSD.
func (t *Transform) apply(data [][]float64) {
	n := len(t.picks)
	samples := len(data[t.picks[0]])
	v := make([]float64, n)
	out := make([]float64, n)
	for s := 0; s < samples; s++ {
		for i, p := range t.picks {
			v[i] = data[p][s]
		}
		for i := 0; i < n; i++ {
			sum := 0.0
			for j := 0; j < n; j++ {
				sum += t.op.At(i, j) * v[j]
			}
			out[i] = sum
		}
		for i, p := range t.picks {
			data[p][s] = out[i]
		}
	}
}

// ApplyRaw replaces the EEG channels of r with their CSD in place.
// Units change from V to V/m^2 up to a head-radius scale.
func (t *Transform) ApplyRaw(r *raw.Raw) {
	t.apply(r.Data())
	for _, p := range t.picks {
		r.Info().Channels[p].Unit = "V/m²"
	}
}

// ApplyEpochs transforms every epoch in place.
func (t *Transform) ApplyEpochs(e *epochs.Epochs) {
	for _, epoch := range e.Data() {
		t.apply(epoch)
	}
	for _, p := range t.picks {
		e.Info().Channels[p].Unit = "V/m²"
	}
}

// ApplyEvoked transforms an averaged response in place.
func (t *Transform) ApplyEvoked(ev *epochs.Evoked) {
	t.apply(ev.Data())
	for _, p := range t.picks {
		ev.Info().Channels[p].Unit = "V/m²"
	}
}
