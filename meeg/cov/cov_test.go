package cov

import (
	"errors"
	"math"
	"testing"

	"gonum.org/v1/gonum/mat"

	"github.com/cwbudde/algo-meeg/internal/testutil"
	"github.com/cwbudde/algo-meeg/meeg/core"
	"github.com/cwbudde/algo-meeg/meeg/raw"
)

func noiseRecording(t *testing.T, sigmas []float64, n int) *raw.Raw {
	t.Helper()

	channels := make([]core.Channel, len(sigmas))
	data := make([][]float64, len(sigmas))
	for i, sigma := range sigmas {
		channels[i] = core.Channel{
			Name: "EEG " + string(rune('A'+i)),
			Kind: core.KindEEG, Unit: "V", Cal: 1,
		}
		data[i] = testutil.GaussNoise(int64(i+1), sigma, n)
	}

	info, err := core.NewInfo(100, channels)
	if err != nil {
		t.Fatal(err)
	}
	r, err := raw.New(info, data)
	if err != nil {
		t.Fatal(err)
	}
	return r
}

func TestFromRawDiagonal(t *testing.T) {
	sigmas := []float64{1, 2, 0.5}
	r := noiseRecording(t, sigmas, 20000)

	c, err := FromRaw(r)
	if err != nil {
		t.Fatal(err)
	}
	if c.Dim() != 3 {
		t.Fatalf("Dim() = %d, want 3", c.Dim())
	}

	// Independent noise: variances near sigma^2, covariances near zero.
	for i, sigma := range sigmas {
		got := c.Matrix().At(i, i)
		want := sigma * sigma
		if math.Abs(got-want) > 0.1*want {
			t.Fatalf("var[%d] = %g, want about %g", i, got, want)
		}
	}
	for i := 0; i < 3; i++ {
		for j := i + 1; j < 3; j++ {
			if got := math.Abs(c.Matrix().At(i, j)); got > 0.1 {
				t.Fatalf("cov[%d,%d] = %g, want near zero", i, j, got)
			}
		}
	}
}

func TestTooFewSamples(t *testing.T) {
	r := noiseRecording(t, []float64{1, 1, 1}, 3)
	if _, err := FromRaw(r); !errors.Is(err, ErrTooFewSamples) {
		t.Fatalf("err = %v, want ErrTooFewSamples", err)
	}
}

func TestRegularizePullsTowardIdentity(t *testing.T) {
	r := noiseRecording(t, []float64{1, 3}, 5000)
	c, err := FromRaw(r)
	if err != nil {
		t.Fatal(err)
	}

	full := c.Regularize(1)
	mu := (c.Matrix().At(0, 0) + c.Matrix().At(1, 1)) / 2
	if got := full.Matrix().At(0, 0); !core.NearlyEqual(got, mu, 1e-9) {
		t.Fatalf("fully shrunk diagonal = %g, want %g", got, mu)
	}
	if got := full.Matrix().At(0, 1); got != 0 {
		t.Fatalf("fully shrunk off-diagonal = %g, want 0", got)
	}

	none := c.Regularize(0)
	if got, want := none.Matrix().At(0, 1), c.Matrix().At(0, 1); !core.NearlyEqual(got, want, 1e-12) {
		t.Fatalf("unshrunk off-diagonal = %g, want %g", got, want)
	}
}

func TestRankDetectsDeficiency(t *testing.T) {
	r := noiseRecording(t, []float64{1, 1, 1}, 5000)

	// Make channel 2 a copy of channel 0.
	copy(r.Data()[2], r.Data()[0])

	c, err := FromRaw(r)
	if err != nil {
		t.Fatal(err)
	}
	rank, err := c.Rank(1e-10)
	if err != nil {
		t.Fatal(err)
	}
	if rank != 2 {
		t.Fatalf("Rank() = %d, want 2", rank)
	}
}

func TestWhitener(t *testing.T) {
	r := noiseRecording(t, []float64{1, 2, 0.5}, 20000)
	c, err := FromRaw(r)
	if err != nil {
		t.Fatal(err)
	}

	w, rank, err := c.Whitener(1e-10)
	if err != nil {
		t.Fatal(err)
	}
	if rank != 3 {
		t.Fatalf("rank = %d, want 3", rank)
	}

	// W C W^T must be the identity on the retained subspace.
	var wc, wcwt mat.Dense
	wc.Mul(w, c.Matrix())
	wcwt.Mul(&wc, w.T())
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			want := 0.0
			if i == j {
				want = 1
			}
			if got := wcwt.At(i, j); math.Abs(got-want) > 1e-9 {
				t.Fatalf("(W C W^T)[%d,%d] = %g, want %g", i, j, got, want)
			}
		}
	}
}
