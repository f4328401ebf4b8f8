package cov

import (
	"math"
	"testing"
)

func TestLedoitWolfIntensity(t *testing.T) {
	// Plenty of samples: the sample covariance is reliable and the
	// estimated intensity stays small.
	long := noiseRecording(t, []float64{1, 2, 0.5}, 20000)
	_, shrinkLong, err := FromRawShrunk(long)
	if err != nil {
		t.Fatal(err)
	}
	if shrinkLong < 0 || shrinkLong > 1 {
		t.Fatalf("intensity = %g, want within [0, 1]", shrinkLong)
	}
	if shrinkLong > 0.05 {
		t.Fatalf("intensity = %g for 20000 samples, want near zero", shrinkLong)
	}

	// Few samples: the estimate is noisy and the intensity grows.
	short := noiseRecording(t, []float64{1, 2, 0.5}, 12)
	_, shrinkShort, err := FromRawShrunk(short)
	if err != nil {
		t.Fatal(err)
	}
	if shrinkShort <= shrinkLong {
		t.Fatalf("intensity %g for 12 samples, %g for 20000, want the short estimate shrunk harder",
			shrinkShort, shrinkLong)
	}
}

func TestFromRawShrunkMatrix(t *testing.T) {
	r := noiseRecording(t, []float64{1, 4}, 50)

	plain, err := FromRaw(r)
	if err != nil {
		t.Fatal(err)
	}
	shrunk, shrink, err := FromRawShrunk(r)
	if err != nil {
		t.Fatal(err)
	}

	// The shrunk matrix equals Regularize at the estimated intensity.
	want := plain.Regularize(shrink)
	for i := 0; i < 2; i++ {
		for j := 0; j < 2; j++ {
			if math.Abs(shrunk.Matrix().At(i, j)-want.Matrix().At(i, j)) > 1e-12 {
				t.Fatalf("shrunk[%d,%d] = %g, want %g",
					i, j, shrunk.Matrix().At(i, j), want.Matrix().At(i, j))
			}
		}
	}

	// Shrinking pulls the unequal variances toward their mean.
	mu := (plain.Matrix().At(0, 0) + plain.Matrix().At(1, 1)) / 2
	if math.Abs(shrunk.Matrix().At(0, 0)-mu) >= math.Abs(plain.Matrix().At(0, 0)-mu) {
		t.Fatal("shrinkage did not pull variances toward the mean")
	}
}
