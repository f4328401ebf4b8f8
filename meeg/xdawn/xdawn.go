// Package xdawn estimates spatial filters that maximize the ratio of
// evoked signal power to noise power (Rivet et al., 2009), commonly
// used to enhance event-related responses before classification.
package xdawn

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/mat"

	"github.com/cwbudde/algo-meeg/meeg/core"
	"github.com/cwbudde/algo-meeg/meeg/epochs"
)

var (
	// ErrNotFitted indicates Apply before Fit.
	ErrNotFitted = errors.New("xdawn: not fitted")
	// ErrBadComponents indicates a component count outside [1, channels].
	ErrBadComponents = errors.New("xdawn: bad component count")
	// ErrDegenerate indicates a noise covariance that cannot be factored.
	ErrDegenerate = errors.New("xdawn: noise covariance not positive definite")
)

// Xdawn holds fitted spatial filters for one event code.
type Xdawn struct {
	// Code is the event code the filters enhance.
	Code int
	// ChannelNames lists the input channels, in filter order.
	ChannelNames []string

	nComponents int
	// filters has one spatial filter per row.
	filters *mat.Dense
	// patterns has one scalp pattern per row, the pseudo-inverse of
	// the filters.
	patterns *mat.Dense
	picks    []int
}

// New prepares an unfitted estimator keeping nComponents components.
func New(nComponents int) *Xdawn {
	return &Xdawn{nComponents: nComponents}
}

// Filters returns the spatial filters, one per row.
func (x *Xdawn) Filters() *mat.Dense {
	return x.filters
}

// Patterns returns the scalp patterns, one per row.
func (x *Xdawn) Patterns() *mat.Dense {
	return x.patterns
}

// Fit estimates filters from the epochs of one event code. The evoked
// covariance (signal) is contrasted against the covariance of the
// single trials (noise) by solving the generalized eigenproblem
// S v = lambda N v through a Cholesky reduction of N.
func (x *Xdawn) Fit(e *epochs.Epochs, code int) error {
	info := e.Info()
	picks, err := core.Picks(info, core.PickData())
	if err != nil {
		return err
	}
	dim := len(picks)
	if x.nComponents < 1 || x.nComponents > dim {
		return fmt.Errorf("%w: %d of %d channels", ErrBadComponents, x.nComponents, dim)
	}

	target, err := e.Subset(code)
	if err != nil {
		return err
	}

	signal, err := evokedCovariance(target, picks)
	if err != nil {
		return err
	}
	noise := trialCovariance(e, picks)

	filters, err := generalizedEigen(signal, noise)
	if err != nil {
		return err
	}

	// Keep the leading components.
	kept := mat.NewDense(x.nComponents, dim, nil)
	for i := 0; i < x.nComponents; i++ {
		for j := 0; j < dim; j++ {
			kept.Set(i, j, filters.At(i, j))
		}
	}

	patterns, err := pseudoInverse(kept)
	if err != nil {
		return err
	}

	names := make([]string, dim)
	for i, p := range picks {
		names[i] = info.Channels[p].Name
	}

	x.Code = code
	x.ChannelNames = names
	x.filters = kept
	x.patterns = patterns
	x.picks = picks
	return nil
}

// evokedCovariance is the channel covariance of the averaged response,
// concentrated on the phase-locked part of the data.
func evokedCovariance(e *epochs.Epochs, picks []int) (*mat.SymDense, error) {
	ev, err := e.Average()
	if err != nil {
		return nil, err
	}
	avg := ev.Data()
	dim := len(picks)
	n := len(avg[picks[0]])

	out := mat.NewSymDense(dim, nil)
	for i := 0; i < dim; i++ {
		for j := i; j < dim; j++ {
			s := 0.0
			for k := 0; k < n; k++ {
				s += avg[picks[i]][k] * avg[picks[j]][k]
			}
			out.SetSym(i, j, s/float64(n))
		}
	}
	return out, nil
}

// trialCovariance pools the covariance over all single trials.
func trialCovariance(e *epochs.Epochs, picks []int) *mat.SymDense {
	dim := len(picks)
	out := mat.NewSymDense(dim, nil)
	total := 0
	for _, epoch := range e.Data() {
		n := len(epoch[picks[0]])
		total += n
		for i := 0; i < dim; i++ {
			for j := i; j < dim; j++ {
				s := out.At(i, j)
				for k := 0; k < n; k++ {
					s += epoch[picks[i]][k] * epoch[picks[j]][k]
				}
				out.SetSym(i, j, s)
			}
		}
	}
	inv := 1 / float64(total)
	for i := 0; i < dim; i++ {
		for j := i; j < dim; j++ {
			out.SetSym(i, j, out.At(i, j)*inv)
		}
	}
	return out
}

// generalizedEigen solves S v = lambda N v and returns the
// eigenvectors as rows, sorted by descending eigenvalue.
func generalizedEigen(signal, noise *mat.SymDense) (*mat.Dense, error) {
	dim := signal.SymmetricDim()

	var chol mat.Cholesky
	if !chol.Factorize(noise) {
		// A touch of diagonal loading usually repairs a nearly
		// singular trial covariance.
		loaded := mat.NewSymDense(dim, nil)
		trace := 0.0
		for i := 0; i < dim; i++ {
			trace += noise.At(i, i)
		}
		eps := 1e-10 * trace / float64(dim)
		for i := 0; i < dim; i++ {
			for j := i; j < dim; j++ {
				v := noise.At(i, j)
				if i == j {
					v += eps
				}
				loaded.SetSym(i, j, v)
			}
		}
		if !chol.Factorize(loaded) {
			return nil, ErrDegenerate
		}
	}

	var l mat.TriDense
	chol.LTo(&l)

	// M = L^-1 S L^-T, symmetric with the same eigenvalues.
	var linvS mat.Dense
	if err := linvS.Solve(&l, signal); err != nil {
		return nil, fmt.Errorf("xdawn: %w", err)
	}
	var mT mat.Dense
	if err := mT.Solve(&l, linvS.T()); err != nil {
		return nil, fmt.Errorf("xdawn: %w", err)
	}

	m := mat.NewSymDense(dim, nil)
	for i := 0; i < dim; i++ {
		for j := i; j < dim; j++ {
			m.SetSym(i, j, 0.5*(mT.At(i, j)+mT.At(j, i)))
		}
	}

	var es mat.EigenSym
	if !es.Factorize(m, true) {
		return nil, errors.New("xdawn: eigendecomposition failed")
	}
	vals := es.Values(nil)
	var vecs mat.Dense
	es.VectorsTo(&vecs)

	// Back-transform: v = L^-T u, then sort descending.
	var back mat.Dense
	if err := back.Solve(l.T(), &vecs); err != nil {
		return nil, fmt.Errorf("xdawn: %w", err)
	}

	order := make([]int, dim)
	for i := range order {
		order[i] = i
	}
	sort.Slice(order, func(a, b int) bool { return vals[order[a]] > vals[order[b]] })

	out := mat.NewDense(dim, dim, nil)
	for r, col := range order {
		// Normalize each filter to unit norm.
		norm := 0.0
		for i := 0; i < dim; i++ {
			norm += back.At(i, col) * back.At(i, col)
		}
		norm = math.Sqrt(norm)
		for i := 0; i < dim; i++ {
			out.Set(r, i, back.At(i, col)/norm)
		}
	}
	return out, nil
}

func pseudoInverse(a *mat.Dense) (*mat.Dense, error) {
	var svd mat.SVD
	if !svd.Factorize(a, mat.SVDThin) {
		return nil, errors.New("xdawn: svd failed")
	}
	var u, v mat.Dense
	svd.UTo(&u)
	svd.VTo(&v)
	vals := svd.Values(nil)

	tol := 1e-12 * vals[0]
	inv := mat.NewDense(len(vals), len(vals), nil)
	for i, s := range vals {
		if s > tol {
			inv.Set(i, i, 1/s)
		}
	}

	// pinv = V S^-1 U^T; patterns as rows means (pinv)^T.
	var pinv mat.Dense
	pinv.Product(&v, inv, u.T())
	var out mat.Dense
	out.CloneFrom(pinv.T())
	return &out, nil
}

// Transform projects every epoch onto the fitted components. The result
// has one virtual channel per component.
func (x *Xdawn) Transform(e *epochs.Epochs) ([][][]float64, error) {
	if x.filters == nil {
		return nil, ErrNotFitted
	}

	out := make([][][]float64, e.NumEpochs())
	for ei, epoch := range e.Data() {
		out[ei] = x.project(epoch)
	}
	return out, nil
}

func (x *Xdawn) project(epoch [][]float64) [][]float64 {
	comp := make([][]float64, x.nComponents)
	n := len(epoch[x.picks[0]])
	for c := range comp {
		comp[c] = make([]float64, n)
		for j, p := range x.picks {
			w := x.filters.At(c, j)
			for k, v := range epoch[p] {
				comp[c][k] += w * v
			}
		}
	}
	return comp
}

// Apply denoises every epoch in sensor space: the data is projected
// onto the kept components and back-projected through the patterns, so
// the result has one row per picked channel with everything outside the
// component subspace removed.
func (x *Xdawn) Apply(e *epochs.Epochs) ([][][]float64, error) {
	if x.filters == nil {
		return nil, ErrNotFitted
	}

	out := make([][][]float64, e.NumEpochs())
	for ei, epoch := range e.Data() {
		comp := x.project(epoch)
		n := len(comp[0])
		recon := make([][]float64, len(x.picks))
		for j := range recon {
			recon[j] = make([]float64, n)
			for c := 0; c < x.nComponents; c++ {
				w := x.patterns.At(c, j)
				for k, v := range comp[c] {
					recon[j][k] += w * v
				}
			}
		}
		out[ei] = recon
	}
	return out, nil
}

// ApplyEvoked projects an averaged response onto the components.
func (x *Xdawn) ApplyEvoked(ev *epochs.Evoked) ([][]float64, error) {
	if x.filters == nil {
		return nil, ErrNotFitted
	}
	data := ev.Data()
	n := len(data[x.picks[0]])
	out := make([][]float64, x.nComponents)
	for c := range out {
		out[c] = make([]float64, n)
		for j, p := range x.picks {
			w := x.filters.At(c, j)
			for k, v := range data[p] {
				out[c][k] += w * v
			}
		}
	}
	return out, nil
}
