// Command meeginfo inspects MRF recordings: metadata, channel table,
// annotations and per-channel signal statistics.
//
// Usage:
//
//	meeginfo [flags] file.mrf
//
// Examples:
//
//	meeginfo recording.mrf
//	meeginfo --stats recording.mrf
//	meeginfo --json recording.mrf | jq .sample_rate
package main

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"text/tabwriter"

	"github.com/spf13/pflag"

	"github.com/cwbudde/algo-meeg/meeg/rawfile"
	timestats "github.com/cwbudde/algo-meeg/stats/time"
)

func main() {
	stats := pflag.Bool("stats", false, "compute per-channel signal statistics")
	asJSON := pflag.Bool("json", false, "emit machine readable JSON")
	verbose := pflag.BoolP("verbose", "v", false, "debug logging")
	pflag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: meeginfo [flags] file.mrf\n\n")
		pflag.PrintDefaults()
	}
	pflag.Parse()

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	if pflag.NArg() != 1 {
		pflag.Usage()
		os.Exit(2)
	}

	if err := run(logger, pflag.Arg(0), *stats, *asJSON); err != nil {
		logger.Error("meeginfo failed", "error", err)
		os.Exit(1)
	}
}

type fileInfo struct {
	Path        string             `json:"path"`
	SampleRate  float64            `json:"sample_rate"`
	NumChannels int                `json:"num_channels"`
	NumSamples  int                `json:"num_samples"`
	Duration    float64            `json:"duration_s"`
	Channels    []channelInfo      `json:"channels"`
	Annotations []annotationInfo   `json:"annotations,omitempty"`
	Stats       map[string]qcStats `json:"stats,omitempty"`
}

type channelInfo struct {
	Name string `json:"name"`
	Kind string `json:"kind"`
	Unit string `json:"unit,omitempty"`
	Bad  bool   `json:"bad,omitempty"`
}

type annotationInfo struct {
	Onset       float64 `json:"onset_s"`
	Duration    float64 `json:"duration_s"`
	Description string  `json:"description"`
}

type qcStats struct {
	RMS      float64 `json:"rms"`
	PTP      float64 `json:"ptp"`
	Kurtosis float64 `json:"kurtosis"`
}

func run(logger *slog.Logger, path string, withStats, asJSON bool) error {
	logger.Debug("opening", "path", path)
	r, err := rawfile.Open(path)
	if err != nil {
		return err
	}
	defer r.Close()

	info := r.Info()
	out := fileInfo{
		Path:        path,
		SampleRate:  info.SampleRate,
		NumChannels: info.NumChannels(),
		NumSamples:  r.NumSamples(),
		Duration:    float64(r.NumSamples()) / info.SampleRate,
	}
	for _, ch := range info.Channels {
		out.Channels = append(out.Channels, channelInfo{
			Name: ch.Name, Kind: ch.Kind.String(), Unit: ch.Unit, Bad: ch.Bad,
		})
	}
	for _, a := range r.Annotations() {
		out.Annotations = append(out.Annotations, annotationInfo{
			Onset: a.Onset, Duration: a.Duration, Description: a.Description,
		})
	}

	if withStats {
		logger.Debug("loading samples for statistics")
		rec, err := r.Raw()
		if err != nil {
			return err
		}
		out.Stats = make(map[string]qcStats)
		for name, s := range timestats.ChannelStats(rec) {
			out.Stats[name] = qcStats{RMS: s.RMS, PTP: s.PTP, Kurtosis: s.Kurtosis}
		}
	}

	if asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	}
	return printText(out)
}

func printText(info fileInfo) error {
	fmt.Printf("%s\n", info.Path)
	fmt.Printf("  %.6g Hz, %d channels, %d samples (%.2f s)\n",
		info.SampleRate, info.NumChannels, info.NumSamples, info.Duration)

	w := tabwriter.NewWriter(os.Stdout, 2, 4, 2, ' ', 0)
	fmt.Fprintln(w, "  NAME\tKIND\tUNIT\tBAD\tRMS\tPTP")
	for _, ch := range info.Channels {
		bad := ""
		if ch.Bad {
			bad = "bad"
		}
		rms, ptp := "", ""
		if s, ok := info.Stats[ch.Name]; ok {
			rms = fmt.Sprintf("%.4g", s.RMS)
			ptp = fmt.Sprintf("%.4g", s.PTP)
		}
		fmt.Fprintf(w, "  %s\t%s\t%s\t%s\t%s\t%s\n", ch.Name, ch.Kind, ch.Unit, bad, rms, ptp)
	}
	if err := w.Flush(); err != nil {
		return err
	}

	if len(info.Annotations) > 0 {
		fmt.Printf("  %d annotations:\n", len(info.Annotations))
		for _, a := range info.Annotations {
			fmt.Printf("    %8.3f s  %6.3f s  %s\n", a.Onset, a.Duration, a.Description)
		}
	}
	return nil
}
