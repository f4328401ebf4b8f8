package resample

import (
	"errors"
	"math"
	"testing"

	"github.com/cwbudde/algo-meeg/internal/testutil"
)

func TestNewReducesRatio(t *testing.T) {
	r, err := New(4, 2)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	up, down := r.Ratio()
	if up != 2 || down != 1 {
		t.Fatalf("Ratio = %d/%d, want 2/1", up, down)
	}

	if _, err := New(0, 1); !errors.Is(err, ErrInvalidRatio) {
		t.Fatalf("expected ErrInvalidRatio, got %v", err)
	}
}

func TestForRatesApproximation(t *testing.T) {
	r, err := ForRates(1000, 250)
	if err != nil {
		t.Fatalf("ForRates: %v", err)
	}
	up, down := r.Ratio()
	if up != 1 || down != 4 {
		t.Fatalf("Ratio = %d/%d, want 1/4", up, down)
	}

	if _, err := ForRates(0, 250); !errors.Is(err, ErrInvalidRate) {
		t.Fatalf("expected ErrInvalidRate, got %v", err)
	}
}

func TestOutputLenAndMapSample(t *testing.T) {
	r, err := New(1, 4)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if got := r.OutputLen(1000); got != 250 {
		t.Fatalf("OutputLen = %d, want 250", got)
	}
	if got := r.MapSample(400); got != 100 {
		t.Fatalf("MapSample = %d, want 100", got)
	}
}

func TestDownsamplePreservesDC(t *testing.T) {
	out, err := Resample(testutil.DC(1, 2000), 1, 2)
	if err != nil {
		t.Fatalf("Resample: %v", err)
	}
	if len(out) != 1000 {
		t.Fatalf("len = %d, want 1000", len(out))
	}
	for i := 100; i < len(out)-100; i++ {
		if math.Abs(out[i]-1) > 1e-3 {
			t.Fatalf("interior DC sample %d = %v, want 1", i, out[i])
		}
	}
}

func TestDownsamplePreservesLowFrequencyPower(t *testing.T) {
	const rate = 1000.0
	in := testutil.Sine(10, rate, 1, 8000)

	out, err := Resample(in, 1, 4, WithQuality(QualityBest))
	if err != nil {
		t.Fatalf("Resample: %v", err)
	}

	interior := out[200 : len(out)-200]
	rms := testutil.RMS(interior)
	if math.Abs(rms-1/math.Sqrt2) > 0.02 {
		t.Fatalf("downsampled sine RMS = %v, want ~0.707", rms)
	}
	testutil.RequireFinite(t, out)
}

func TestUpsampleInterpolates(t *testing.T) {
	const rate = 250.0
	in := testutil.Sine(5, rate, 1, 1000)

	out, err := Resample(in, 2, 1)
	if err != nil {
		t.Fatalf("Resample: %v", err)
	}
	if len(out) != 2000 {
		t.Fatalf("len = %d, want 2000", len(out))
	}
	rms := testutil.RMS(out[200 : len(out)-200])
	if math.Abs(rms-1/math.Sqrt2) > 0.02 {
		t.Fatalf("upsampled sine RMS = %v, want ~0.707", rms)
	}
}

func TestProcessCompensatesGroupDelay(t *testing.T) {
	cases := []struct {
		name     string
		up, down int
	}{
		{"downsample", 1, 2},
		{"upsample", 2, 1},
		{"rational", 3, 2},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r, err := New(tc.up, tc.down)
			if err != nil {
				t.Fatalf("New: %v", err)
			}

			in := testutil.Impulse(1000, 400)
			out := r.Process(in)

			peak := 0
			for i, v := range out {
				if math.Abs(v) > math.Abs(out[peak]) {
					peak = i
				}
			}
			if want := r.MapSample(400); peak != want {
				t.Fatalf("impulse peak at %d, MapSample gives %d", peak, want)
			}
		})
	}
}

func TestProcessEmpty(t *testing.T) {
	r, err := New(2, 1)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if out := r.Process(nil); out != nil {
		t.Fatalf("Process(nil) = %v, want nil", out)
	}
}
