package frequency

import (
	"math"
	"testing"

	"github.com/cwbudde/algo-meeg/internal/testutil"
	"github.com/cwbudde/algo-meeg/meeg/spectrum"
)

func TestCalculateOnSine(t *testing.T) {
	const rate = 250.0
	signal := testutil.Sine(10, rate, 1, 10000)
	for i, v := range testutil.GaussNoise(1, 0.01, len(signal)) {
		signal[i] += v
	}

	psd, err := spectrum.Welch(signal, rate)
	if err != nil {
		t.Fatal(err)
	}

	s := Calculate(psd.Freqs, psd.Data)
	if s.BinCount != len(psd.Data) {
		t.Fatalf("BinCount = %d", s.BinCount)
	}
	if math.Abs(s.PeakFreq-10) > 1.5 {
		t.Fatalf("PeakFreq = %g, want near 10", s.PeakFreq)
	}
	if s.TotalPower <= 0 {
		t.Fatalf("TotalPower = %g", s.TotalPower)
	}
	// A dominant tone keeps the spectrum far from flat.
	if s.Flatness > 0.3 {
		t.Fatalf("Flatness = %g for a sine", s.Flatness)
	}
	if math.Abs(s.Median-10) > 20 {
		t.Fatalf("Median = %g, want near the tone", s.Median)
	}
}

func TestFlatnessWhiteNoise(t *testing.T) {
	const rate = 250.0
	psd, err := spectrum.Welch(testutil.GaussNoise(9, 1, 50000), rate)
	if err != nil {
		t.Fatal(err)
	}
	if got := Flatness(psd.Data); got < 0.7 {
		t.Fatalf("Flatness = %g for white noise, want near 1", got)
	}
}

func TestCalculateDegenerate(t *testing.T) {
	if s := Calculate(nil, nil); s.BinCount != 0 {
		t.Fatalf("empty input gave %+v", s)
	}
	if s := Calculate([]float64{0, 1}, []float64{0}); s.BinCount != 0 {
		t.Fatal("mismatched axes accepted")
	}
	if got := Flatness([]float64{1, 0, 2}); got != 0 {
		t.Fatalf("Flatness with zero bin = %g, want 0", got)
	}
}

func TestLineNoiseRatio(t *testing.T) {
	const rate = 500.0
	signal := testutil.GaussNoise(4, 0.1, 50000)
	hum := testutil.Sine(50, rate, 1, len(signal))
	harmonic := testutil.Sine(100, rate, 0.5, len(signal))
	for i := range signal {
		signal[i] += hum[i] + harmonic[i]
	}

	psd, err := spectrum.Welch(signal, rate, spectrum.WithSegment(1024))
	if err != nil {
		t.Fatal(err)
	}

	contaminated := LineNoiseRatio(psd.Freqs, psd.Data, 50, 2)
	if contaminated < 0.5 {
		t.Fatalf("line ratio = %g for strong hum, want > 0.5", contaminated)
	}

	clean, err := spectrum.Welch(testutil.GaussNoise(4, 0.1, 50000), rate,
		spectrum.WithSegment(1024))
	if err != nil {
		t.Fatal(err)
	}
	if got := LineNoiseRatio(clean.Freqs, clean.Data, 50, 2); got > 0.2 {
		t.Fatalf("line ratio = %g for clean noise", got)
	}
}

func TestBandRatio(t *testing.T) {
	freqs := []float64{0, 1, 2, 3, 4}
	power := []float64{5, 1, 1, 1, 1}

	if got := BandRatio(freqs, power, 1, 2); got != 0.5 {
		t.Fatalf("BandRatio = %g, want 0.5", got)
	}
	if got := BandRatio(freqs, power, 10, 20); got != 0 {
		t.Fatalf("BandRatio = %g, want 0", got)
	}
}
