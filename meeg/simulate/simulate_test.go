package simulate

import (
	"math"
	"testing"

	"github.com/cwbudde/algo-meeg/meeg/core"
	"github.com/cwbudde/algo-meeg/meeg/forward"
)

func sphereModel(t *testing.T) *forward.Forward {
	t.Helper()

	channels := make([]core.Channel, 6)
	for i := range channels {
		z := 0.3 + 0.7*float64(i)/5
		r := math.Sqrt(1 - z*z)
		phi := float64(i) * 2.399963
		channels[i] = core.Channel{
			Name: "EEG " + string(rune('A'+i)),
			Kind: core.KindEEG, Unit: "V", Cal: 1,
			Pos: core.Position{X: r * math.Cos(phi), Y: r * math.Sin(phi), Z: z},
		}
	}
	info, err := core.NewInfo(200, channels)
	if err != nil {
		t.Fatal(err)
	}

	fwd, err := forward.SingleSphere(info, []forward.Source{
		{Pos: core.Position{Z: 0.6}, Ori: core.Position{Z: 1}},
	})
	if err != nil {
		t.Fatal(err)
	}
	return fwd
}

func TestRawCarriesEvents(t *testing.T) {
	fwd := sphereModel(t)
	schedule := EventSchedule(100, 300, 5, 1, 2)

	r, err := Raw(fwd, 200, 10, schedule, []Burst{
		{Source: 0, Code: 1, Amplitude: 1e-6, FreqHz: 10, Latency: 0.1, Width: 0.05},
	})
	if err != nil {
		t.Fatal(err)
	}

	if got, want := r.Info().NumChannels(), fwd.NumChannels()+1; got != want {
		t.Fatalf("NumChannels() = %d, want %d", got, want)
	}

	events, err := r.Events()
	if err != nil {
		t.Fatal(err)
	}
	if len(events) != 5 {
		t.Fatalf("recovered %d events, want 5", len(events))
	}
	for i, ev := range events {
		if ev.Sample != schedule[i].Sample || ev.Code != schedule[i].Code {
			t.Fatalf("event %d = %+v, want %+v", i, ev, schedule[i])
		}
	}
}

func TestBurstOnlyAfterItsCode(t *testing.T) {
	fwd := sphereModel(t)
	schedule := EventSchedule(200, 600, 4, 1, 2)

	r, err := Raw(fwd, 200, 15, schedule, []Burst{
		{Source: 0, Code: 1, Amplitude: 1e-6, FreqHz: 10, Latency: 0.1, Width: 0.04},
	})
	if err != nil {
		t.Fatal(err)
	}

	energy := func(start, stop int) float64 {
		total := 0.0
		for c := 0; c < fwd.NumChannels(); c++ {
			for _, v := range r.Data()[c][start:stop] {
				total += v * v
			}
		}
		return total
	}

	// Post-code-1 windows carry signal, post-code-2 windows do not.
	after1 := energy(200, 300) + energy(1400, 1500)
	after2 := energy(800, 900) + energy(2000, 2100)
	if after2 != 0 {
		t.Fatalf("energy after code 2 = %g, want 0", after2)
	}
	if after1 == 0 {
		t.Fatal("no energy after code 1")
	}
}

func TestNoiseIsReproducible(t *testing.T) {
	fwd := sphereModel(t)
	schedule := EventSchedule(100, 300, 3, 1)

	opts := []Option{WithNoise(1e-6), WithSeed(42)}
	a, err := Raw(fwd, 200, 6, schedule, nil, opts...)
	if err != nil {
		t.Fatal(err)
	}
	b, err := Raw(fwd, 200, 6, schedule, nil, opts...)
	if err != nil {
		t.Fatal(err)
	}
	for c := range a.Data() {
		for i := range a.Data()[c] {
			if a.Data()[c][i] != b.Data()[c][i] {
				t.Fatal("same seed produced different recordings")
			}
		}
	}

	c, err := Raw(fwd, 200, 6, schedule, nil, WithNoise(1e-6), WithSeed(43))
	if err != nil {
		t.Fatal(err)
	}
	same := true
	for ch := range a.Data() {
		for i := range a.Data()[ch] {
			if a.Data()[ch][i] != c.Data()[ch][i] {
				same = false
			}
		}
	}
	if same {
		t.Fatal("different seeds produced identical recordings")
	}
}

func TestRawValidation(t *testing.T) {
	fwd := sphereModel(t)
	schedule := EventSchedule(100, 300, 3, 1)

	if _, err := Raw(fwd, 200, 0, schedule, nil); err != ErrBadDuration {
		t.Fatalf("err = %v, want ErrBadDuration", err)
	}
	if _, err := Raw(fwd, 200, 5, nil, nil); err != ErrNoEvents {
		t.Fatalf("err = %v, want ErrNoEvents", err)
	}
	if _, err := Raw(fwd, 200, 1, schedule, nil); err == nil {
		t.Fatal("event beyond recording accepted")
	}
	if _, err := Raw(fwd, 200, 5, schedule, []Burst{{Source: 9, Code: 1}}); err == nil {
		t.Fatal("burst source out of range accepted")
	}
}
