package main

import (
	"io"
	"log/slog"
	"testing"

	"github.com/cwbudde/algo-meeg/internal/config"
	"github.com/cwbudde/algo-meeg/report"
)

// The demo pipeline must run end to end and produce every analysis
// section, including source localization and cluster statistics.
func TestDemoPipelineSections(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	rec, fwd, err := loadRecording(logger, "")
	if err != nil {
		t.Fatal(err)
	}
	if fwd == nil {
		t.Fatal("demo recording has no forward model")
	}

	rep := report.New("test")
	if err := buildReport(logger, config.Default(), rep, rec, fwd); err != nil {
		t.Fatal(err)
	}

	titles := make(map[string]bool)
	for _, s := range rep.Sections() {
		titles[s.Title] = true
	}
	for _, want := range []string{
		"Overview", "Channels", "Power spectra", "Epochs",
		"Evoked response", "Cluster statistics", "Source localization",
		"Induced power",
	} {
		if !titles[want] {
			t.Errorf("report is missing section %q", want)
		}
	}
}
