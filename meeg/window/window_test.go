package window

import (
	"math"
	"testing"
)

func TestGenerateHannEndpoints(t *testing.T) {
	w, err := Generate(TypeHann, 9)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if w[0] != 0 || math.Abs(w[8]) > 1e-15 {
		t.Fatalf("symmetric Hann endpoints = %v, %v, want 0", w[0], w[8])
	}
	if math.Abs(w[4]-1) > 1e-15 {
		t.Fatalf("Hann midpoint = %v, want 1", w[4])
	}

	// Periodic form never reaches the trailing zero.
	wp, err := Generate(TypeHann, 8, WithPeriodic())
	if err != nil {
		t.Fatalf("Generate periodic: %v", err)
	}
	if wp[len(wp)-1] == 0 {
		t.Fatal("periodic Hann should not end at zero")
	}
}

func TestGenerateSymmetry(t *testing.T) {
	for _, typ := range []Type{TypeHann, TypeHamming, TypeBlackman, TypeBlackmanHarris, TypeKaiser, TypeTukey, TypeGauss} {
		w, err := Generate(typ, 65, WithAlpha(4))
		if err != nil {
			t.Fatalf("%v: %v", typ, err)
		}
		for i := range w {
			j := len(w) - 1 - i
			if math.Abs(w[i]-w[j]) > 1e-12 {
				t.Fatalf("%v not symmetric at %d: %v vs %v", typ, i, w[i], w[j])
			}
		}
	}
}

func TestGenerateRejectsBadLength(t *testing.T) {
	if _, err := Generate(TypeHann, 0); err == nil {
		t.Fatal("expected error for zero length")
	}
	if _, err := Generate(TypeHann, -4); err == nil {
		t.Fatal("expected error for negative length")
	}
}

func TestENBW(t *testing.T) {
	rect, err := Generate(TypeRectangular, 256)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	enbw, err := EquivalentNoiseBandwidth(rect)
	if err != nil {
		t.Fatalf("ENBW: %v", err)
	}
	if math.Abs(enbw-1) > 1e-12 {
		t.Fatalf("rectangular ENBW = %v, want 1", enbw)
	}

	hann, err := Generate(TypeHann, 4096)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	enbw, err = EquivalentNoiseBandwidth(hann)
	if err != nil {
		t.Fatalf("ENBW: %v", err)
	}
	if math.Abs(enbw-1.5) > 1e-3 {
		t.Fatalf("Hann ENBW = %v, want ~1.5", enbw)
	}
}

func TestApplyCoefficients(t *testing.T) {
	out, err := ApplyCoefficients([]float64{1, 2, 3}, []float64{2, 0.5, 1})
	if err != nil {
		t.Fatalf("ApplyCoefficients: %v", err)
	}
	want := []float64{2, 1, 3}
	for i := range out {
		if out[i] != want[i] {
			t.Fatalf("out = %v, want %v", out, want)
		}
	}

	if _, err := ApplyCoefficients([]float64{1}, []float64{1, 2}); err == nil {
		t.Fatal("expected length mismatch error")
	}
}

func TestBesselI0(t *testing.T) {
	// Reference values from Abramowitz & Stegun.
	tests := []struct{ x, want float64 }{
		{0, 1},
		{1, 1.2660658777520084},
		{2, 2.2795853023360673},
	}
	for _, tc := range tests {
		if got := BesselI0(tc.x); math.Abs(got-tc.want) > 1e-12 {
			t.Fatalf("BesselI0(%v) = %v, want %v", tc.x, got, tc.want)
		}
	}
}
