package tfr

import (
	"errors"
	"math"
	"math/cmplx"
	"testing"

	"github.com/cwbudde/algo-meeg/internal/testutil"
	"github.com/cwbudde/algo-meeg/meeg/core"
	"github.com/cwbudde/algo-meeg/meeg/epochs"
	"github.com/cwbudde/algo-meeg/meeg/event"
	"github.com/cwbudde/algo-meeg/meeg/raw"
)

const tfrRate = 200.0

// oscillationEpochs builds epochs with a phase-locked 20 Hz burst
// 0.2 s after each event.
func oscillationEpochs(t *testing.T) *epochs.Epochs {
	t.Helper()

	info, err := core.NewInfo(tfrRate, []core.Channel{
		{Name: "EEG 001", Kind: core.KindEEG, Unit: "V", Cal: 1},
		{Name: "EEG 002", Kind: core.KindEEG, Unit: "V", Cal: 1},
	})
	if err != nil {
		t.Fatal(err)
	}

	n := 6000
	data := [][]float64{
		testutil.GaussNoise(1, 0.01, n),
		testutil.GaussNoise(2, 0.01, n),
	}
	samples := []int{800, 1800, 2800, 3800, 4800}
	events := make([]event.Event, len(samples))
	for i, s := range samples {
		events[i] = event.Event{Sample: s, Code: 1}
		burst := testutil.Burst(20, tfrRate, 1, s+40, 20, n)
		for j, v := range burst {
			data[0][j] += v
			data[1][j] += 0.5 * v
		}
	}

	r, err := raw.New(info, data)
	if err != nil {
		t.Fatal(err)
	}
	ep, err := epochs.New(r, events, -0.5, 1.0)
	if err != nil {
		t.Fatal(err)
	}
	return ep
}

func TestMorletUnitEnergy(t *testing.T) {
	ws, err := Morlet(tfrRate, []float64{5, 20, 40}, []float64{7})
	if err != nil {
		t.Fatal(err)
	}
	for _, w := range ws {
		if len(w.Data)%2 == 0 {
			t.Fatalf("wavelet at %g Hz has even length %d", w.Freq, len(w.Data))
		}
		energy := 0.0
		for _, v := range w.Data {
			energy += real(v)*real(v) + imag(v)*imag(v)
		}
		// The envelope has unit energy; the oscillation halves it on
		// average, so total complex energy stays close to 1.
		if energy < 0.5 || energy > 1.5 {
			t.Fatalf("wavelet at %g Hz has energy %g", w.Freq, energy)
		}
	}

	// Higher frequencies get shorter wavelets at fixed cycles.
	if len(ws[0].Data) <= len(ws[2].Data) {
		t.Fatalf("5 Hz wavelet (%d) not longer than 40 Hz wavelet (%d)",
			len(ws[0].Data), len(ws[2].Data))
	}
}

func TestMorletAtomsAreZeroMean(t *testing.T) {
	ws, err := Morlet(tfrRate, []float64{3, 10, 40}, []float64{3})
	if err != nil {
		t.Fatal(err)
	}
	for _, w := range ws {
		var sum complex128
		for _, v := range w.Data {
			sum += v
		}
		if cmplx.Abs(sum) > 1e-9 {
			t.Fatalf("wavelet at %g Hz has DC leakage %g", w.Freq, cmplx.Abs(sum))
		}
	}
}

func TestMorletCyclesPerFrequency(t *testing.T) {
	freqs := []float64{10, 40}
	ws, err := Morlet(tfrRate, freqs, ScaledCycles(freqs, 0.5))
	if err != nil {
		t.Fatal(err)
	}
	// n_cycles = f/2 keeps sigma_t constant, so the supports match.
	if len(ws[0].Data) != len(ws[1].Data) {
		t.Fatalf("supports %d and %d differ for freq-scaled cycles",
			len(ws[0].Data), len(ws[1].Data))
	}

	if _, err := Morlet(tfrRate, freqs, []float64{1, 2, 3}); !errors.Is(err, ErrBadCycles) {
		t.Fatal("mismatched cycle count accepted")
	}
}

func TestMorletRejectsBadInput(t *testing.T) {
	if _, err := Morlet(tfrRate, []float64{150}, []float64{7}); err == nil {
		t.Fatal("frequency above Nyquist accepted")
	}
	if _, err := Morlet(tfrRate, []float64{10}, []float64{0}); !errors.Is(err, ErrBadCycles) {
		t.Fatal("zero cycles accepted")
	}
}

func TestAveragePowerPeaksAtBurst(t *testing.T) {
	ep := oscillationEpochs(t)

	freqs := LinFreqs(5, 40, 8) // includes 20 Hz
	decomp, err := Compute(ep, freqs)
	if err != nil {
		t.Fatal(err)
	}

	power := decomp.AveragePower()
	if power.Nave != ep.NumEpochs() {
		t.Fatalf("Nave = %d, want %d", power.Nave, ep.NumEpochs())
	}

	// Find the peak over frequency and time on channel 0.
	bestF, bestT, best := -1, -1, 0.0
	for f := range power.Freqs {
		for i := range power.Times {
			if p := power.Data[0][f][i]; p > best {
				best = p
				bestF, bestT = f, i
			}
		}
	}

	if got := power.Freqs[bestF]; math.Abs(got-20) > 5 {
		t.Fatalf("power peaks at %g Hz, want near 20", got)
	}
	if got := power.Times[bestT]; math.Abs(got-0.2) > 0.1 {
		t.Fatalf("power peaks at %g s, want near 0.2", got)
	}

	// Channel 1 carries the burst at half amplitude, a quarter power.
	ratio := power.Data[1][bestF][bestT] / power.Data[0][bestF][bestT]
	if math.Abs(ratio-0.25) > 0.1 {
		t.Fatalf("power ratio = %g, want near 0.25", ratio)
	}
}

func TestITCPhaseLocked(t *testing.T) {
	ep := oscillationEpochs(t)

	decomp, err := Compute(ep, []float64{20})
	if err != nil {
		t.Fatal(err)
	}
	itc := decomp.ITC()

	// At the burst the phase is identical across trials.
	burstIdx := -1
	for i, tt := range itc.Times {
		if math.Abs(tt-0.2) < 1e-9 {
			burstIdx = i
			break
		}
	}
	if burstIdx < 0 {
		t.Fatal("burst time not in decomposition")
	}
	if got := itc.Data[0][0][burstIdx]; got < 0.9 {
		t.Fatalf("ITC at burst = %g, want > 0.9", got)
	}
}

func TestDecimation(t *testing.T) {
	ep := oscillationEpochs(t)

	full, err := Compute(ep, []float64{20})
	if err != nil {
		t.Fatal(err)
	}
	dec, err := Compute(ep, []float64{20}, WithDecim(4))
	if err != nil {
		t.Fatal(err)
	}

	want := (len(full.Times) + 3) / 4
	if got := len(dec.Times); got != want {
		t.Fatalf("decimated length = %d, want %d", got, want)
	}
	if dec.Times[0] != full.Times[0] {
		t.Fatalf("decimated start = %g, want %g", dec.Times[0], full.Times[0])
	}

	if _, err := Compute(ep, []float64{20}, WithDecim(0)); err != ErrBadDecim {
		t.Fatal("zero decimation accepted")
	}
}

func TestCSDHermitian(t *testing.T) {
	ep := oscillationEpochs(t)

	decomp, err := Compute(ep, []float64{20})
	if err != nil {
		t.Fatal(err)
	}

	csd, err := decomp.CSD(0, 0.1, 0.3)
	if err != nil {
		t.Fatal(err)
	}

	for i := 0; i < 2; i++ {
		d := csd.At(i, i)
		if real(d) <= 0 || math.Abs(imag(d)) > 1e-12 {
			t.Fatalf("diagonal [%d] = %v, want positive real", i, d)
		}
	}
	if got, want := csd.At(1, 0), cmplx.Conj(csd.At(0, 1)); got != want {
		t.Fatalf("CSD not Hermitian: %v vs conj %v", got, want)
	}

	// The shared burst dominates, so channels are strongly coherent.
	coh := cmplx.Abs(csd.At(0, 1)) /
		math.Sqrt(real(csd.At(0, 0))*real(csd.At(1, 1)))
	if coh < 0.9 {
		t.Fatalf("coherence = %g, want > 0.9", coh)
	}

	if _, err := decomp.CSD(5, 0, 0.1); err == nil {
		t.Fatal("out-of-range frequency index accepted")
	}
	if _, err := decomp.CSD(0, 9, 10); err == nil {
		t.Fatal("empty interval accepted")
	}
}

func TestApplyBaseline(t *testing.T) {
	ep := oscillationEpochs(t)

	decomp, err := Compute(ep, []float64{20})
	if err != nil {
		t.Fatal(err)
	}

	power := decomp.AveragePower()
	if err := power.ApplyBaseline(-0.4, -0.1, BaselineLogRatio); err != nil {
		t.Fatal(err)
	}

	// Baseline interval sits near 0 dB, the burst well above it.
	burstIdx := 0
	for i, tt := range power.Times {
		if math.Abs(tt-0.2) < 1e-9 {
			burstIdx = i
		}
	}
	if got := power.Data[0][0][burstIdx]; got < 10 {
		t.Fatalf("burst power = %g dB over baseline, want > 10", got)
	}

	if err := power.ApplyBaseline(5, 6, BaselineRatio); err == nil {
		t.Fatal("baseline outside epoch accepted")
	}
}
