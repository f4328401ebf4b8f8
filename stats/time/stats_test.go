package time

import (
	"math"
	"testing"

	"github.com/cwbudde/algo-meeg/internal/testutil"
	"github.com/cwbudde/algo-meeg/meeg/core"
	"github.com/cwbudde/algo-meeg/meeg/raw"
)

func TestCalculateKnownSignal(t *testing.T) {
	s := Calculate([]float64{1, -1, 1, -1})

	if s.Length != 4 {
		t.Fatalf("Length = %d", s.Length)
	}
	if s.Mean != 0 {
		t.Fatalf("Mean = %g, want 0", s.Mean)
	}
	if s.RMS != 1 {
		t.Fatalf("RMS = %g, want 1", s.RMS)
	}
	if s.PTP != 2 || s.Peak != 1 {
		t.Fatalf("PTP = %g, Peak = %g", s.PTP, s.Peak)
	}
	if s.ZeroCrossings != 3 {
		t.Fatalf("ZeroCrossings = %d, want 3", s.ZeroCrossings)
	}
	if s.Variance != 1 {
		t.Fatalf("Variance = %g, want 1", s.Variance)
	}
	if math.Abs(s.Skewness) > 1e-12 {
		t.Fatalf("Skewness = %g, want 0", s.Skewness)
	}
}

func TestCalculateEmpty(t *testing.T) {
	s := Calculate(nil)
	if s.Length != 0 || s.RMS != 0 {
		t.Fatalf("empty signal gave %+v", s)
	}
}

func TestGaussianMoments(t *testing.T) {
	noise := testutil.GaussNoise(3, 2, 100000)
	s := Calculate(noise)

	if math.Abs(s.Mean) > 0.05 {
		t.Fatalf("Mean = %g", s.Mean)
	}
	if math.Abs(s.Variance-4) > 0.2 {
		t.Fatalf("Variance = %g, want about 4", s.Variance)
	}
	// Gaussian noise has zero skewness and zero excess kurtosis.
	if math.Abs(s.Skewness) > 0.1 {
		t.Fatalf("Skewness = %g", s.Skewness)
	}
	if math.Abs(s.Kurtosis) > 0.2 {
		t.Fatalf("Kurtosis = %g", s.Kurtosis)
	}
}

func TestMeanKahan(t *testing.T) {
	if got := Mean([]float64{1, 2, 3, 4}); got != 2.5 {
		t.Fatalf("Mean = %g, want 2.5", got)
	}
	if got := Mean(nil); got != 0 {
		t.Fatalf("Mean(nil) = %g", got)
	}
}

func qcRecording(t *testing.T) *raw.Raw {
	t.Helper()

	info, err := core.NewInfo(100, []core.Channel{
		{Name: "EEG 001", Kind: core.KindEEG, Unit: "V", Cal: 1},
		{Name: "EEG 002", Kind: core.KindEEG, Unit: "V", Cal: 1},
		{Name: "EEG 003", Kind: core.KindEEG, Unit: "V", Cal: 1},
		{Name: "STI 014", Kind: core.KindStim, Cal: 1},
	})
	if err != nil {
		t.Fatal(err)
	}

	n := 5000
	data := [][]float64{
		testutil.GaussNoise(1, 1e-5, n), // healthy
		testutil.DC(0.3, n),             // flat
		testutil.GaussNoise(2, 1e-5, n), // spiky, below
		testutil.DC(0, n),               // stim, must be ignored
	}
	data[2][1000] = 1 // huge transient drives kurtosis up

	r, err := raw.New(info, data)
	if err != nil {
		t.Fatal(err)
	}
	return r
}

func TestFlagBads(t *testing.T) {
	r := qcRecording(t)

	bads := FlagBads(r, QCThresholds{FlatPTP: 1e-9, MaxKurtosis: 50})
	if len(bads) != 2 {
		t.Fatalf("FlagBads = %v, want flat and spiky channels", bads)
	}
	if bads[0] != "EEG 002" || bads[1] != "EEG 003" {
		t.Fatalf("FlagBads = %v", bads)
	}

	// Loose thresholds keep everything.
	if bads := FlagBads(r, QCThresholds{FlatPTP: 0}); len(bads) != 1 {
		// The flat channel has nonzero PTP only if noise leaked in.
		t.Fatalf("FlagBads = %v, want only the zero-range channel", bads)
	}
}

func TestChannelStats(t *testing.T) {
	r := qcRecording(t)
	stats := ChannelStats(r)
	if len(stats) != 4 {
		t.Fatalf("got stats for %d channels, want 4", len(stats))
	}
	if s, ok := stats["EEG 002"]; !ok || s.PTP != 0 {
		t.Fatalf("flat channel stats = %+v", s)
	}
}
