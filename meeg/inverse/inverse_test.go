package inverse

import (
	"errors"
	"math"
	"testing"

	"github.com/cwbudde/algo-meeg/meeg/core"
	"github.com/cwbudde/algo-meeg/meeg/cov"
	"github.com/cwbudde/algo-meeg/meeg/epochs"
	"github.com/cwbudde/algo-meeg/meeg/forward"
	"github.com/cwbudde/algo-meeg/meeg/simulate"
)

const rate = 200.0

// localizationSetup simulates a recording with one active source out of
// three candidates and returns everything an inverse solution needs.
func localizationSetup(t *testing.T) (*forward.Forward, *epochs.Epochs, *cov.Covariance) {
	t.Helper()

	channels := make([]core.Channel, 12)
	for i := range channels {
		z := 0.15 + 0.85*float64(i)/11
		r := math.Sqrt(1 - z*z)
		phi := float64(i) * 2.399963
		channels[i] = core.Channel{
			Name: "EEG " + string(rune('A'+i)),
			Kind: core.KindEEG, Unit: "V", Cal: 1,
			Pos: core.Position{X: r * math.Cos(phi), Y: r * math.Sin(phi), Z: z},
		}
	}
	info, err := core.NewInfo(rate, channels)
	if err != nil {
		t.Fatal(err)
	}

	sources := []forward.Source{
		{Pos: core.Position{Z: 0.6}, Ori: core.Position{Z: 1}},
		{Pos: core.Position{X: 0.6}, Ori: core.Position{X: 1}},
		{Pos: core.Position{Y: 0.6}, Ori: core.Position{Y: 1}},
	}
	fwd, err := forward.SingleSphere(info, sources)
	if err != nil {
		t.Fatal(err)
	}

	schedule := simulate.EventSchedule(200, 400, 20, 1)
	r, err := simulate.Raw(fwd, rate, 45, schedule, []simulate.Burst{
		{Source: 0, Code: 1, Amplitude: 1e-6, FreqHz: 8, Latency: 0.15, Width: 0.05},
	}, simulate.WithNoise(5e-9), simulate.WithSeed(11))
	if err != nil {
		t.Fatal(err)
	}

	events, err := r.Events()
	if err != nil {
		t.Fatal(err)
	}
	ep, err := epochs.New(r, events, -0.2, 0.5, epochs.WithBaseline(-0.2, 0))
	if err != nil {
		t.Fatal(err)
	}

	noise, err := cov.FromEpochs(ep, -0.2, 0)
	if err != nil {
		t.Fatal(err)
	}
	return fwd, ep, noise.Regularize(0.1)
}

func TestApplyLocalizesSource(t *testing.T) {
	fwd, ep, noise := localizationSetup(t)

	op, err := MakeOperator(fwd, noise)
	if err != nil {
		t.Fatal(err)
	}
	if op.NumSources() != 3 {
		t.Fatalf("NumSources() = %d, want 3", op.NumSources())
	}

	avg, err := ep.Average()
	if err != nil {
		t.Fatal(err)
	}
	for _, method := range []Method{MNE, DSPM, SLORETA} {
		est, err := op.Apply(avg, method, 3)
		if err != nil {
			t.Fatalf("%v: %v", method, err)
		}
		if est.Method != method {
			t.Fatalf("Method = %v, want %v", est.Method, method)
		}

		src, peakTime := est.Peak()
		if src != 0 {
			t.Fatalf("%v localizes source %d, want 0", method, src)
		}
		if peakTime < 0.05 || peakTime > 0.3 {
			t.Fatalf("%v peak at %g s, want near the burst", method, peakTime)
		}
	}
}

func TestApplyEpochsShape(t *testing.T) {
	fwd, ep, noise := localizationSetup(t)

	op, err := MakeOperator(fwd, noise)
	if err != nil {
		t.Fatal(err)
	}
	ests, err := op.ApplyEpochs(ep, MNE, 1)
	if err != nil {
		t.Fatal(err)
	}
	if len(ests) != ep.NumEpochs() {
		t.Fatalf("got %d estimates, want %d", len(ests), ep.NumEpochs())
	}
	for _, est := range ests {
		if len(est.Data) != 3 || len(est.Data[0]) != ep.NumSamples() {
			t.Fatalf("estimate is %dx%d", len(est.Data), len(est.Data[0]))
		}
	}

	times := ests[0].Times()
	if !core.NearlyEqual(times[0], -0.2, 1e-9) {
		t.Fatalf("Times()[0] = %g, want -0.2", times[0])
	}
}

func TestOperatorDepthWeighting(t *testing.T) {
	fwd, ep, noise := localizationSetup(t)

	op, err := MakeOperator(fwd, noise, WithDepth(0.8))
	if err != nil {
		t.Fatal(err)
	}
	avg, err := ep.Average()
	if err != nil {
		t.Fatal(err)
	}
	est, err := op.Apply(avg, MNE, 3)
	if err != nil {
		t.Fatal(err)
	}
	if src, _ := est.Peak(); src != 0 {
		t.Fatalf("depth-weighted estimate localizes source %d, want 0", src)
	}

	plain, err := MakeOperator(fwd, noise)
	if err != nil {
		t.Fatal(err)
	}
	ref, err := plain.Apply(avg, MNE, 3)
	if err != nil {
		t.Fatal(err)
	}
	same := true
	for i := range est.Data {
		for j := range est.Data[i] {
			if est.Data[i][j] != ref.Data[i][j] {
				same = false
			}
		}
	}
	if same {
		t.Fatal("depth weighting left the estimate unchanged")
	}
}

func TestOperatorLooseWeighting(t *testing.T) {
	_, ep, noise := localizationSetup(t)

	// Same electrodes, but the second source points tangentially.
	sources := []forward.Source{
		{Pos: core.Position{Z: 0.6}, Ori: core.Position{Z: 1}},
		{Pos: core.Position{Z: 0.6}, Ori: core.Position{X: 1}},
	}
	loose, err := forward.SingleSphere(ep.Info(), sources)
	if err != nil {
		t.Fatal(err)
	}

	op, err := MakeOperator(loose, noise, WithLoose(0))
	if err != nil {
		t.Fatal(err)
	}
	avg, err := ep.Average()
	if err != nil {
		t.Fatal(err)
	}
	est, err := op.Apply(avg, MNE, 3)
	if err != nil {
		t.Fatal(err)
	}

	radial, tangential := 0.0, 0.0
	for j := range est.Data[0] {
		radial += est.Data[0][j] * est.Data[0][j]
		tangential += est.Data[1][j] * est.Data[1][j]
	}
	if radial == 0 {
		t.Fatal("loose 0 silenced the radial source")
	}
	if tangential != 0 {
		t.Fatalf("loose 0 kept tangential power %g, want 0", tangential)
	}

	if _, err := MakeOperator(loose, noise, WithLoose(2)); !errors.Is(err, ErrBadWeight) {
		t.Fatalf("err = %v, want ErrBadWeight", err)
	}
	if _, err := MakeOperator(loose, noise, WithDepth(-1)); !errors.Is(err, ErrBadWeight) {
		t.Fatalf("err = %v, want ErrBadWeight", err)
	}
}

func TestApplyRejectsBadInput(t *testing.T) {
	fwd, ep, noise := localizationSetup(t)

	op, err := MakeOperator(fwd, noise)
	if err != nil {
		t.Fatal(err)
	}

	avg, err := ep.Average()
	if err != nil {
		t.Fatal(err)
	}
	if _, err := op.Apply(avg, MNE, 0); err != ErrBadSNR {
		t.Fatalf("err = %v, want ErrBadSNR", err)
	}
	if _, err := op.Apply(avg, Method(42), 3); err == nil {
		t.Fatal("unknown method accepted")
	}
}

func TestMakeOperatorChannelMismatch(t *testing.T) {
	fwd, _, noise := localizationSetup(t)

	noise.Names[0] = "EEG ZZ"
	if _, err := MakeOperator(fwd, noise); err == nil {
		t.Fatal("renamed covariance channel accepted")
	}

	short := *noise
	short.Names = short.Names[:3]
	if _, err := MakeOperator(fwd, &short); err == nil {
		t.Fatal("covariance with missing channels accepted")
	}
}
