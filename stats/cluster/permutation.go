package cluster

import (
	"context"
	"math"
	"math/rand"
	"runtime"

	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/stat/distuv"
)

// Option configures the permutation test.
type Option func(*settings)

type settings struct {
	threshold    float64
	alpha        float64
	permutations int
	seed         int64
	adjacency    [][]int
	tail         Tail
	workers      int
}

// WithThreshold fixes the cluster-forming threshold on the t statistic.
// Without it the threshold comes from the t distribution at the
// cluster-forming alpha.
func WithThreshold(t float64) Option {
	return func(s *settings) { s.threshold = t }
}

// WithAlpha sets the cluster-forming alpha, default 0.05. Ignored when
// an explicit threshold is set.
func WithAlpha(a float64) Option {
	return func(s *settings) { s.alpha = a }
}

// WithPermutations sets the number of sign-flip permutations, default
// 1024. When it reaches 2^n for n observations the test enumerates all
// sign patterns and becomes exact.
func WithPermutations(n int) Option {
	return func(s *settings) { s.permutations = n }
}

// WithSeed makes the random permutations reproducible.
func WithSeed(seed int64) Option {
	return func(s *settings) { s.seed = seed }
}

// WithAdjacency overrides the default lattice adjacency.
func WithAdjacency(adj [][]int) Option {
	return func(s *settings) { s.adjacency = adj }
}

// WithTail selects the tested direction, default two-tailed.
func WithTail(tail Tail) Option {
	return func(s *settings) { s.tail = tail }
}

// WithWorkers caps the permutation worker count, default GOMAXPROCS.
func WithWorkers(n int) Option {
	return func(s *settings) { s.workers = n }
}

// Result holds the observed statistics and their clusters.
type Result struct {
	// T are the observed t values per point.
	T []float64
	// Threshold is the cluster-forming threshold that was used.
	Threshold float64
	// Clusters are the observed clusters with permutation p-values.
	Clusters []Cluster
	// Permutations is the number of permutations actually run.
	Permutations int
	// Exact reports whether all sign patterns were enumerated.
	Exact bool
}

// Significant returns the clusters with P <= alpha.
func (r *Result) Significant(alpha float64) []Cluster {
	var out []Cluster
	for _, c := range r.Clusters {
		if c.P <= alpha {
			out = append(out, c)
		}
	}
	return out
}

// PermutationTest runs a one-sample cluster permutation test of data
// (observations by points) against zero. Under the null hypothesis the
// sign of each observation is exchangeable, so the null distribution is
// built from random sign flips; each permutation contributes its
// largest cluster mass.
func PermutationTest(ctx context.Context, data [][]float64, opts ...Option) (*Result, error) {
	cfg := settings{
		alpha:        0.05,
		permutations: 1024,
		seed:         1,
		tail:         TwoTailed,
		workers:      runtime.GOMAXPROCS(0),
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	obs, err := OneSampleT(data)
	if err != nil {
		return nil, err
	}
	nPoints := len(obs)

	if cfg.adjacency == nil {
		cfg.adjacency = LatticeAdjacency(nPoints)
	} else if err := validateAdjacency(cfg.adjacency, nPoints); err != nil {
		return nil, err
	}

	threshold := cfg.threshold
	if threshold <= 0 {
		threshold = tThreshold(len(data), cfg.alpha, cfg.tail)
	}

	clusters := findClusters(obs, threshold, cfg.adjacency, cfg.tail)

	// Exact test: enumerate every sign pattern when feasible.
	exact := false
	nPerm := cfg.permutations
	if len(data) < 63 {
		if total := 1 << len(data); nPerm >= total {
			nPerm = total
			exact = true
		}
	}

	nullMax, err := nullDistribution(ctx, data, threshold, cfg, nPerm, exact)
	if err != nil {
		return nil, err
	}

	for i := range clusters {
		count := 0
		target := math.Abs(clusters[i].Mass)
		for _, m := range nullMax {
			if m >= target {
				count++
			}
		}
		// Guarantees p > 0; the identity permutation is always part of
		// the null.
		clusters[i].P = float64(count+1) / float64(nPerm+1)
		if clusters[i].P > 1 {
			clusters[i].P = 1
		}
	}

	return &Result{
		T:            obs,
		Threshold:    threshold,
		Clusters:     clusters,
		Permutations: nPerm,
		Exact:        exact,
	}, nil
}

// tThreshold converts the cluster-forming alpha into a t value.
func tThreshold(nObs int, alpha float64, tail Tail) float64 {
	dist := distuv.StudentsT{Mu: 0, Sigma: 1, Nu: float64(nObs - 1)}
	if tail == TwoTailed {
		alpha /= 2
	}
	return dist.Quantile(1 - alpha)
}

// nullDistribution computes the max cluster mass of every permutation,
// fanning the work out over a bounded worker pool.
func nullDistribution(ctx context.Context, data [][]float64, threshold float64, cfg settings, nPerm int, exact bool) ([]float64, error) {
	nObs := len(data)
	out := make([]float64, nPerm)

	workers := cfg.workers
	if workers < 1 {
		workers = 1
	}
	if workers > nPerm {
		workers = nPerm
	}
	chunk := (nPerm + workers - 1) / workers

	g, ctx := errgroup.WithContext(ctx)

	for w := 0; w < workers; w++ {
		start := w * chunk
		stop := start + chunk
		if stop > nPerm {
			stop = nPerm
		}
		if start >= stop {
			break
		}
		workerSeed := cfg.seed + int64(w)

		g.Go(func() error {
			rng := rand.New(rand.NewSource(workerSeed))
			signs := make([]float64, nObs)
			flipped := make([][]float64, nObs)
			for perm := start; perm < stop; perm++ {
				select {
				case <-ctx.Done():
					return ctx.Err()
				default:
				}

				if exact {
					for i := range signs {
						if perm&(1<<i) != 0 {
							signs[i] = -1
						} else {
							signs[i] = 1
						}
					}
				} else {
					for i := range signs {
						if rng.Intn(2) == 0 {
							signs[i] = 1
						} else {
							signs[i] = -1
						}
					}
				}

				for i := range data {
					if signs[i] > 0 {
						flipped[i] = data[i]
					} else {
						row := make([]float64, len(data[i]))
						for j, v := range data[i] {
							row[j] = -v
						}
						flipped[i] = row
					}
				}

				stats, err := OneSampleT(flipped)
				if err != nil {
					return err
				}
				out[perm] = maxClusterMass(stats, threshold, cfg.adjacency, cfg.tail)
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}
