// Package cov estimates noise covariance from continuous or epoched
// data and derives whitening operators from it.
package cov

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
	// ErrTooFewSamples indicates fewer samples than channels.
	ErrTooFewSamples = errors.New("cov: too few samples")
	// ErrRankDeficient indicates a covariance with no usable dimensions.
	ErrRankDeficient = errors.New("cov: rank deficient")
)

// Covariance is a noise covariance over a fixed channel set.
type Covariance struct {
	// Names are the channel names, in matrix order.
	Names []string
	// Nfree is the number of samples the estimate is based on.
	Nfree int

	sym *mat.SymDense
}

// Matrix returns the covariance matrix.
func (c *Covariance) Matrix() *mat.SymDense {
	return c.sym
}

// Dim returns the channel count.
func (c *Covariance) Dim() int {
	return len(c.Names)
}

// FromRaw estimates the covariance of the data channels of r over the
// whole recording, removing the per-channel mean first.
func FromRaw(r *raw.Raw) (*Covariance, error) {
	names, segments, err := rawSegments(r)
	if err != nil {
		return nil, err
	}
	return fromSegments(names, segments)
}

func rawSegments(r *raw.Raw) ([]string, [][][]float64, error) {
	picks, err := core.Picks(r.Info(), core.PickData())
	if err != nil {
		return nil, nil, err
	}
	segment, err := r.Get(picks, 0, r.NumSamples())
	if err != nil {
		return nil, nil, err
	}
	names := make([]string, len(picks))
	for i, p := range picks {
		names[i] = r.Info().Channels[p].Name
	}
	return names, [][][]float64{segment}, nil
}

// FromEpochs estimates the covariance from the pre-event interval
// [tmin, tmax] of every epoch, the usual source of a noise estimate for
// evoked data. Segments are demeaned individually.
func FromEpochs(e *epochs.Epochs, tmin, tmax float64) (*Covariance, error) {
	names, segments, err := epochSegments(e, tmin, tmax)
	if err != nil {
		return nil, err
	}
	return fromSegments(names, segments)
}

func epochSegments(e *epochs.Epochs, tmin, tmax float64) ([]string, [][][]float64, error) {
	info := e.Info()
	picks, err := core.Picks(info, core.PickData())
	if err != nil {
		return nil, nil, err
	}
	rate := info.SampleRate
	start := core.SampleIndex(tmin-e.Tmin(), rate)
	stop := core.SampleIndex(tmax-e.Tmin(), rate) + 1
	if start < 0 || stop > e.NumSamples() || start >= stop {
		return nil, nil, fmt.Errorf("cov: interval [%g, %g] outside epochs", tmin, tmax)
	}

	segments := make([][][]float64, 0, e.NumEpochs())
	for _, epoch := range e.Data() {
		seg := make([][]float64, len(picks))
		for i, p := range picks {
			seg[i] = epoch[p][start:stop]
		}
		segments = append(segments, seg)
	}

	names := make([]string, len(picks))
	for i, p := range picks {
		names[i] = info.Channels[p].Name
	}
	return names, segments, nil
}

func fromSegments(names []string, segments [][][]float64) (*Covariance, error) {
	dim := len(names)
	total := 0
	for _, seg := range segments {
		total += len(seg[0])
	}
	if total <= dim {
		return nil, fmt.Errorf("%w: %d samples for %d channels", ErrTooFewSamples, total, dim)
	}

	acc := mat.NewSymDense(dim, nil)
	for _, seg := range segments {
		n := len(seg[0])
		centered := centerSegment(seg)
		for i := 0; i < dim; i++ {
			for j := i; j < dim; j++ {
				s := acc.At(i, j)
				for k := 0; k < n; k++ {
					s += centered[i][k] * centered[j][k]
				}
				acc.SetSym(i, j, s)
			}
		}
	}

	nfree := total - len(segments) // one mean per segment
	inv := 1.0 / float64(nfree)
	for i := 0; i < dim; i++ {
		for j := i; j < dim; j++ {
			acc.SetSym(i, j, acc.At(i, j)*inv)
		}
	}

	return &Covariance{Names: names, Nfree: nfree, sym: acc}, nil
}

// Regularize returns a copy shrunk toward a scaled identity:
// (1-shrink) C + shrink * mu * I where mu is the mean diagonal power.
// This is the diagonal loading used before inverting near-singular
// estimates.
func (c *Covariance) Regularize(shrink float64) *Covariance {
	if shrink < 0 {
		shrink = 0
	}
	if shrink > 1 {
		shrink = 1
	}
	dim := c.Dim()
	mu := 0.0
	for i := 0; i < dim; i++ {
		mu += c.sym.At(i, i)
	}
	mu /= float64(dim)

	out := mat.NewSymDense(dim, nil)
	for i := 0; i < dim; i++ {
		for j := i; j < dim; j++ {
			v := (1 - shrink) * c.sym.At(i, j)
			if i == j {
				v += shrink * mu
			}
			out.SetSym(i, j, v)
		}
	}
	return &Covariance{Names: append([]string(nil), c.Names...), Nfree: c.Nfree, sym: out}
}

// Rank returns the number of eigenvalues above relTol times the largest
// one. A covariance from rank-reduced data (average reference,
// projections, interpolation) reports fewer dimensions than channels.
func (c *Covariance) Rank(relTol float64) (int, error) {
	if relTol <= 0 {
		relTol = 1e-12
	}
	vals, _, err := c.eigen()
	if err != nil {
		return 0, err
	}
	largest := vals[len(vals)-1]
	if largest <= 0 {
		return 0, ErrRankDeficient
	}
	rank := 0
	for _, v := range vals {
		if v > relTol*largest {
			rank++
		}
	}
	return rank, nil
}

// Whitener returns a matrix W with W C W^T = I on the retained
// subspace. Eigenvalues below relTol times the largest are zeroed, so W
// projects out the deficient directions instead of amplifying noise.
func (c *Covariance) Whitener(relTol float64) (*mat.Dense, int, error) {
	if relTol <= 0 {
		relTol = 1e-12
	}
	vals, vecs, err := c.eigen()
	if err != nil {
		return nil, 0, err
	}
	dim := c.Dim()
	largest := vals[len(vals)-1]
	if largest <= 0 {
		return nil, 0, ErrRankDeficient
	}

	scaled := mat.NewDense(dim, dim, nil)
	rank := 0
	for j := 0; j < dim; j++ {
		if vals[j] > relTol*largest {
			rank++
			s := 1 / math.Sqrt(vals[j])
			for i := 0; i < dim; i++ {
				scaled.Set(i, j, vecs.At(i, j)*s)
			}
		}
	}

	var w mat.Dense
	w.Mul(scaled, vecs.T())
	return &w, rank, nil
}

func (c *Covariance) eigen() ([]float64, *mat.Dense, error) {
	var es mat.EigenSym
	if !es.Factorize(c.sym, true) {
		return nil, nil, errors.New("cov: eigendecomposition failed")
	}
	vals := es.Values(nil)
	var vecs mat.Dense
	es.VectorsTo(&vecs)
	return vals, &vecs, nil
}

// centerSegment removes the per-channel mean of one segment.
func centerSegment(seg [][]float64) [][]float64 {
	out := make([][]float64, len(seg))
	for c, ch := range seg {
		mean := 0.0
		for _, v := range ch {
			mean += v
		}
		mean /= float64(len(ch))
		row := make([]float64, len(ch))
		for i, v := range ch {
			row[i] = v - mean
		}
		out[c] = row
	}
	return out
}
