package core

import (
	"errors"
	"testing"
)

func testChannels() []Channel {
	return []Channel{
		{Name: "EEG 001", Kind: KindEEG, Unit: "V", Pos: Position{X: 0.1}},
		{Name: "EEG 002", Kind: KindEEG, Unit: "V", Pos: Position{Y: 0.1}},
		{Name: "MEG 0111", Kind: KindMagMEG, Unit: "T"},
		{Name: "MEG 0112", Kind: KindGradMEG, Unit: "T/m"},
		{Name: "STI 014", Kind: KindStim, Unit: ""},
		{Name: "EOG 061", Kind: KindEOG, Unit: "V"},
	}
}

func TestNewInfoValidates(t *testing.T) {
	if _, err := NewInfo(0, testChannels()); !errors.Is(err, ErrBadSampleRate) {
		t.Fatalf("expected ErrBadSampleRate, got %v", err)
	}
	if _, err := NewInfo(1000, nil); !errors.Is(err, ErrNoChannels) {
		t.Fatalf("expected ErrNoChannels, got %v", err)
	}

	dup := []Channel{{Name: "A", Kind: KindEEG}, {Name: "A", Kind: KindEEG}}
	if _, err := NewInfo(1000, dup); err == nil {
		t.Fatal("expected duplicate name error")
	}

	info, err := NewInfo(1000, testChannels())
	if err != nil {
		t.Fatalf("NewInfo: %v", err)
	}
	if got := info.NumChannels(); got != 6 {
		t.Fatalf("NumChannels = %d, want 6", got)
	}
	if got := info.Nyquist(); got != 500 {
		t.Fatalf("Nyquist = %f, want 500", got)
	}
}

func TestInfoCopyIsDeep(t *testing.T) {
	info, err := NewInfo(1000, testChannels())
	if err != nil {
		t.Fatalf("NewInfo: %v", err)
	}

	cp := info.Copy()
	cp.Channels[0].Bad = true
	if info.Channels[0].Bad {
		t.Fatal("Copy shares channel storage with original")
	}
}

func TestSetBads(t *testing.T) {
	info, err := NewInfo(1000, testChannels())
	if err != nil {
		t.Fatalf("NewInfo: %v", err)
	}

	if err := info.SetBads("EEG 002", "MEG 0111"); err != nil {
		t.Fatalf("SetBads: %v", err)
	}
	bads := info.BadNames()
	if len(bads) != 2 || bads[0] != "EEG 002" || bads[1] != "MEG 0111" {
		t.Fatalf("BadNames = %v", bads)
	}

	// Unknown names must not alter existing flags.
	if err := info.SetBads("nope"); !errors.Is(err, ErrUnknownChannel) {
		t.Fatalf("expected ErrUnknownChannel, got %v", err)
	}
	if got := len(info.BadNames()); got != 2 {
		t.Fatalf("bad flags changed after failed SetBads: %d", got)
	}

	// Re-flagging replaces the previous set.
	if err := info.SetBads("EOG 061"); err != nil {
		t.Fatalf("SetBads: %v", err)
	}
	if got := info.BadNames(); len(got) != 1 || got[0] != "EOG 061" {
		t.Fatalf("BadNames = %v", got)
	}
}
