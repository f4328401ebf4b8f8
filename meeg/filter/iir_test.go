package filter

import (
	"math"
	"math/cmplx"
	"testing"

	"github.com/cwbudde/algo-meeg/internal/testutil"
)

func TestNotchBiquadResponse(t *testing.T) {
	const rate = 1000.0
	c, err := NotchBiquad(50, 25, rate)
	if err != nil {
		t.Fatalf("NotchBiquad: %v", err)
	}

	if mag := cmplx.Abs(c.Response(50, rate)); mag > 1e-10 {
		t.Fatalf("notch center gain = %v, want ~0", mag)
	}
	if mag := cmplx.Abs(c.Response(10, rate)); math.Abs(mag-1) > 0.05 {
		t.Fatalf("gain at 10 Hz = %v, want ~1", mag)
	}
	if mag := cmplx.Abs(c.Response(200, rate)); math.Abs(mag-1) > 0.05 {
		t.Fatalf("gain at 200 Hz = %v, want ~1", mag)
	}
}

func TestBandpassBiquadResponse(t *testing.T) {
	const rate = 1000.0
	c, err := BandpassBiquad(12, 3, rate)
	if err != nil {
		t.Fatalf("BandpassBiquad: %v", err)
	}

	if mag := cmplx.Abs(c.Response(12, rate)); math.Abs(mag-1) > 0.02 {
		t.Fatalf("center gain = %v, want ~1", mag)
	}
	if mag := cmplx.Abs(c.Response(120, rate)); mag > 0.2 {
		t.Fatalf("gain at 120 Hz = %v, want small", mag)
	}
}

func TestBiquadRejectsBadFrequency(t *testing.T) {
	if _, err := NotchBiquad(600, 10, 1000); err == nil {
		t.Fatal("expected error above Nyquist")
	}
	if _, err := BandpassBiquad(0, 10, 1000); err == nil {
		t.Fatal("expected error for zero frequency")
	}
}

func TestFiltFiltZeroPhase(t *testing.T) {
	const rate = 1000.0
	c, err := NotchBiquad(50, 25, rate)
	if err != nil {
		t.Fatalf("NotchBiquad: %v", err)
	}

	line := testutil.Sine(50, rate, 1, 4096)
	keep := testutil.Sine(8, rate, 1, 4096)
	mixed := make([]float64, len(line))
	for i := range mixed {
		mixed[i] = line[i] + keep[i]
	}

	out, err := FiltFilt(mixed, c)
	if err != nil {
		t.Fatalf("FiltFilt: %v", err)
	}

	// Interior samples: line gone, 8 Hz component phase-aligned.
	margin := 512
	var worst float64
	for i := margin; i < len(out)-margin; i++ {
		d := math.Abs(out[i] - keep[i])
		if d > worst {
			worst = d
		}
	}
	if worst > 0.05 {
		t.Fatalf("max interior deviation = %v", worst)
	}
}

func TestBiquadProcessBlockMatchesSamples(t *testing.T) {
	c, err := BandpassBiquad(20, 2, 500)
	if err != nil {
		t.Fatalf("BandpassBiquad: %v", err)
	}

	in := testutil.Noise(9, 1, 256)

	bySample := NewBiquad(c)
	want := make([]float64, len(in))
	for i, x := range in {
		want[i] = bySample.ProcessSample(x)
	}

	got := make([]float64, len(in))
	copy(got, in)
	NewBiquad(c).ProcessBlock(got)

	testutil.RequireSliceNearlyEqual(t, got, want, 1e-12)
}
