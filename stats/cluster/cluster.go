// Package cluster implements cluster-based permutation tests for
// multiple-comparison control over time points, frequencies or sensors
// (Maris & Oostenveld, 2007). Supra-threshold statistics are grouped by
// adjacency, each cluster is scored by its summed statistic, and the
// scores are compared against a null distribution of sign-flipped
// permutations.
package cluster

import (
	"errors"
	"fmt"
	"math"
	"sort"
)

var (
	// ErrTooFewObservations indicates fewer than two observations.
	ErrTooFewObservations = errors.New("cluster: too few observations")
	// ErrShape indicates observations of unequal length.
	ErrShape = errors.New("cluster: ragged observations")
	// ErrBadAdjacency indicates an adjacency not matching the points.
	ErrBadAdjacency = errors.New("cluster: adjacency size mismatch")
)

// Tail selects which deviations from zero count.
type Tail int

const (
	// TwoTailed tests both directions, clustering positive and
	// negative statistics separately.
	TwoTailed Tail = iota
	// PositiveTail tests only positive deviations.
	PositiveTail
	// NegativeTail tests only negative deviations.
	NegativeTail
)

// Cluster is one connected set of supra-threshold points.
type Cluster struct {
	// Points are the member indices, sorted ascending.
	Points []int
	// Mass is the summed statistic over the members.
	Mass float64
	// P is the permutation p-value under the max-statistic null.
	P float64
}

// OneSampleT computes the one-sample t statistic against zero for every
// point, observations by points.
func OneSampleT(data [][]float64) ([]float64, error) {
	if len(data) < 2 {
		return nil, ErrTooFewObservations
	}
	nPoints := len(data[0])
	for _, row := range data {
		if len(row) != nPoints {
			return nil, ErrShape
		}
	}

	n := float64(len(data))
	out := make([]float64, nPoints)
	for p := 0; p < nPoints; p++ {
		mean := 0.0
		for _, row := range data {
			mean += row[p]
		}
		mean /= n

		variance := 0.0
		for _, row := range data {
			d := row[p] - mean
			variance += d * d
		}
		variance /= n - 1

		if variance == 0 {
			out[p] = 0
			continue
		}
		out[p] = mean / math.Sqrt(variance/n)
	}
	return out, nil
}

// PairedT computes the paired t statistic for two condition matrices of
// identical shape by differencing matched observations into the
// one-sample path. PairedDifferences exposes the differences for use
// with [PermutationTest].
func PairedT(a, b [][]float64) ([]float64, error) {
	diff, err := PairedDifferences(a, b)
	if err != nil {
		return nil, err
	}
	return OneSampleT(diff)
}

// PairedDifferences returns a minus b per matched observation.
func PairedDifferences(a, b [][]float64) ([][]float64, error) {
	if len(a) != len(b) {
		return nil, fmt.Errorf("%w: %d vs %d observations", ErrShape, len(a), len(b))
	}
	if len(a) < 2 {
		return nil, ErrTooFewObservations
	}
	nPoints := len(a[0])
	out := make([][]float64, len(a))
	for i := range a {
		if len(a[i]) != nPoints || len(b[i]) != nPoints {
			return nil, ErrShape
		}
		row := make([]float64, nPoints)
		for p := range row {
			row[p] = a[i][p] - b[i][p]
		}
		out[i] = row
	}
	return out, nil
}

// LatticeAdjacency connects each of n points to its immediate
// neighbors, the usual adjacency for time courses and spectra.
func LatticeAdjacency(n int) [][]int {
	out := make([][]int, n)
	for i := range out {
		if i > 0 {
			out[i] = append(out[i], i-1)
		}
		if i < n-1 {
			out[i] = append(out[i], i+1)
		}
	}
	return out
}

// GridAdjacency connects points of a rows-by-cols plane (row-major) to
// their four neighbors, the adjacency for time-frequency maps.
func GridAdjacency(rows, cols int) [][]int {
	out := make([][]int, rows*cols)
	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			i := r*cols + c
			if r > 0 {
				out[i] = append(out[i], i-cols)
			}
			if r < rows-1 {
				out[i] = append(out[i], i+cols)
			}
			if c > 0 {
				out[i] = append(out[i], i-1)
			}
			if c < cols-1 {
				out[i] = append(out[i], i+1)
			}
		}
	}
	return out
}

// findClusters groups supra-threshold points into connected components
// and returns them with their mass, unsorted p-values left at zero.
func findClusters(stats []float64, threshold float64, adjacency [][]int, tail Tail) []Cluster {
	n := len(stats)
	above := make([]int8, n) // +1 positive cluster, -1 negative, 0 none
	for i, v := range stats {
		switch {
		case (tail == TwoTailed || tail == PositiveTail) && v > threshold:
			above[i] = 1
		case (tail == TwoTailed || tail == NegativeTail) && v < -threshold:
			above[i] = -1
		}
	}

	visited := make([]bool, n)
	var clusters []Cluster
	stack := make([]int, 0, n)
	for i := 0; i < n; i++ {
		if above[i] == 0 || visited[i] {
			continue
		}

		sign := above[i]
		stack = append(stack[:0], i)
		visited[i] = true
		var members []int
		mass := 0.0
		for len(stack) > 0 {
			p := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			members = append(members, p)
			mass += stats[p]
			for _, q := range adjacency[p] {
				if !visited[q] && above[q] == sign {
					visited[q] = true
					stack = append(stack, q)
				}
			}
		}
		sort.Ints(members)
		clusters = append(clusters, Cluster{Points: members, Mass: mass})
	}
	return clusters
}

// maxClusterMass returns the largest absolute cluster mass, zero when
// nothing crosses the threshold.
func maxClusterMass(stats []float64, threshold float64, adjacency [][]int, tail Tail) float64 {
	best := 0.0
	for _, c := range findClusters(stats, threshold, adjacency, tail) {
		if a := math.Abs(c.Mass); a > best {
			best = a
		}
	}
	return best
}

func validateAdjacency(adjacency [][]int, n int) error {
	if len(adjacency) != n {
		return fmt.Errorf("%w: %d lists for %d points", ErrBadAdjacency, len(adjacency), n)
	}
	for i, nbrs := range adjacency {
		for _, q := range nbrs {
			if q < 0 || q >= n {
				return fmt.Errorf("%w: neighbor %d of point %d", ErrBadAdjacency, q, i)
			}
		}
	}
	return nil
}
