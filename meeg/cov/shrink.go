package cov

import (
	"github.com/cwbudde/algo-meeg/meeg/epochs"
	"github.com/cwbudde/algo-meeg/meeg/raw"
)

// FromRawShrunk estimates the covariance like FromRaw and shrinks it
// toward a scaled identity with the Ledoit-Wolf intensity estimated from
// the same data. It returns the shrunk covariance and the intensity.
func FromRawShrunk(r *raw.Raw) (*Covariance, float64, error) {
	names, segments, err := rawSegments(r)
	if err != nil {
		return nil, 0, err
	}
	return shrunkFromSegments(names, segments)
}

// FromEpochsShrunk is FromEpochs with Ledoit-Wolf shrinkage.
func FromEpochsShrunk(e *epochs.Epochs, tmin, tmax float64) (*Covariance, float64, error) {
	names, segments, err := epochSegments(e, tmin, tmax)
	if err != nil {
		return nil, 0, err
	}
	return shrunkFromSegments(names, segments)
}

func shrunkFromSegments(names []string, segments [][][]float64) (*Covariance, float64, error) {
	c, err := fromSegments(names, segments)
	if err != nil {
		return nil, 0, err
	}
	shrink := ledoitWolf(c, segments)
	return c.Regularize(shrink), shrink, nil
}

// ledoitWolf estimates the optimal shrinkage intensity toward mu*I. The
// intensity is the ratio of the sampling variance of the covariance
// entries to their total dispersion around the target, clipped to [0, 1].
func ledoitWolf(c *Covariance, segments [][][]float64) float64 {
	dim := c.Dim()
	s := c.sym

	mu := 0.0
	for i := 0; i < dim; i++ {
		mu += s.At(i, i)
	}
	mu /= float64(dim)

	// d2 is the squared Frobenius distance between the sample
	// covariance and the target, per entry.
	d2 := 0.0
	for i := 0; i < dim; i++ {
		for j := 0; j < dim; j++ {
			v := s.At(i, j)
			if i == j {
				v -= mu
			}
			d2 += v * v
		}
	}
	d2 /= float64(dim)
	if d2 == 0 {
		return 0
	}

	total := 0
	for _, seg := range segments {
		total += len(seg[0])
	}

	// b2 is the sampling variance of the covariance entries, estimated
	// from the per-sample outer products.
	b2 := 0.0
	for _, seg := range segments {
		centered := centerSegment(seg)
		for k := range centered[0] {
			for i := 0; i < dim; i++ {
				for j := 0; j < dim; j++ {
					v := centered[i][k]*centered[j][k] - s.At(i, j)
					b2 += v * v
				}
			}
		}
	}
	b2 /= float64(total) * float64(total) * float64(dim)
	if b2 > d2 {
		b2 = d2
	}
	return b2 / d2
}
