package forward

import (
	"bytes"
	"errors"
	"math"
	"path/filepath"
	"testing"

	"github.com/cwbudde/algo-meeg/meeg/core"
)

func TestFileRoundTrip(t *testing.T) {
	info := montage(t, 8)
	sources := []Source{
		{Pos: core.Position{Z: 0.7}, Ori: core.Position{Z: 1}},
		{Pos: core.Position{X: 0.5}, Ori: core.Position{X: 1}},
	}
	fwd, err := SingleSphere(info, sources)
	if err != nil {
		t.Fatal(err)
	}

	path := filepath.Join(t.TempDir(), "demo.fwd")
	if err := fwd.Save(path); err != nil {
		t.Fatal(err)
	}
	got, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}

	if got.NumChannels() != fwd.NumChannels() || got.NumSources() != fwd.NumSources() {
		t.Fatalf("loaded %dx%d, want %dx%d",
			got.NumChannels(), got.NumSources(), fwd.NumChannels(), fwd.NumSources())
	}
	for i, name := range fwd.ChannelNames {
		if got.ChannelNames[i] != name {
			t.Fatalf("channel %d = %q, want %q", i, got.ChannelNames[i], name)
		}
	}
	for i, src := range fwd.Sources {
		if got.Sources[i] != src {
			t.Fatalf("source %d = %+v, want %+v", i, got.Sources[i], src)
		}
	}
	for i := 0; i < fwd.NumChannels(); i++ {
		for j := 0; j < fwd.NumSources(); j++ {
			if math.Abs(got.Gain().At(i, j)-fwd.Gain().At(i, j)) > 1e-15 {
				t.Fatalf("gain[%d][%d] = %g, want %g",
					i, j, got.Gain().At(i, j), fwd.Gain().At(i, j))
			}
		}
	}
}

func TestReadRejectsBadMagic(t *testing.T) {
	if _, err := Read(bytes.NewReader([]byte("NOTAFWD1xxxx"))); !errors.Is(err, ErrBadFile) {
		t.Fatalf("err = %v, want ErrBadFile", err)
	}
	if _, err := Read(bytes.NewReader(nil)); !errors.Is(err, ErrBadFile) {
		t.Fatalf("empty file err = %v, want ErrBadFile", err)
	}
}

func TestReadRejectsInconsistentGain(t *testing.T) {
	info := montage(t, 4)
	fwd, err := SingleSphere(info, []Source{{Pos: core.Position{Z: 0.6}, Ori: core.Position{Z: 1}}})
	if err != nil {
		t.Fatal(err)
	}
	var buf bytes.Buffer
	if err := fwd.Write(&buf); err != nil {
		t.Fatal(err)
	}

	// A truncated body must fail decoding instead of producing a
	// bogus model.
	corrupt := buf.Bytes()[:buf.Len()-4]
	if _, err := Read(bytes.NewReader(corrupt)); err == nil {
		t.Fatal("truncated body accepted")
	}
}
