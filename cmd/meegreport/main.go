// Command meegreport runs the standard analysis pipeline over a
// recording and renders an HTML report: quality control, spectra,
// evoked responses and time-frequency power.
//
// Usage:
//
//	meegreport [flags] [file.mrf]
//
// Without an input file a synthetic recording with a known evoked
// response is analyzed, which exercises the whole pipeline end to end.
//
// Examples:
//
//	meegreport recording.mrf
//	meegreport --config meeg.yaml --serve recording.mrf
//	MEEG_REPORT_TITLE="Pilot 3" meegreport recording.mrf
package main

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/spf13/pflag"

	"github.com/cwbudde/algo-meeg/internal/config"
	"github.com/cwbudde/algo-meeg/meeg/core"
	"github.com/cwbudde/algo-meeg/meeg/cov"
	"github.com/cwbudde/algo-meeg/meeg/epochs"
	"github.com/cwbudde/algo-meeg/meeg/forward"
	"github.com/cwbudde/algo-meeg/meeg/inverse"
	"github.com/cwbudde/algo-meeg/meeg/raw"
	"github.com/cwbudde/algo-meeg/meeg/rawfile"
	"github.com/cwbudde/algo-meeg/meeg/simulate"
	"github.com/cwbudde/algo-meeg/meeg/spectrum"
	"github.com/cwbudde/algo-meeg/meeg/tfr"
	"github.com/cwbudde/algo-meeg/report"
	"github.com/cwbudde/algo-meeg/report/server"
	"github.com/cwbudde/algo-meeg/stats/cluster"
	frequencystats "github.com/cwbudde/algo-meeg/stats/frequency"
	timestats "github.com/cwbudde/algo-meeg/stats/time"
)

func main() {
	cfgPath := pflag.StringP("config", "c", "", "YAML configuration file")
	serve := pflag.Bool("serve", false, "serve the report over HTTP after rendering")
	addr := pflag.String("addr", "", "listen address, overrides the configuration")
	pflag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: meegreport [flags] [file.mrf]\n\n")
		pflag.PrintDefaults()
	}
	pflag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	logger := newLogger(cfg.LogLevel)

	if err := run(logger, cfg, pflag.Arg(0), *serve, *addr); err != nil {
		logger.Error("meegreport failed", "error", err)
		os.Exit(1)
	}
}

func newLogger(level string) *slog.Logger {
	var l slog.Level
	switch level {
	case "debug":
		l = slog.LevelDebug
	case "warn":
		l = slog.LevelWarn
	case "error":
		l = slog.LevelError
	default:
		l = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: l}))
}

func run(logger *slog.Logger, cfg *config.Config, input string, serve bool, addr string) error {
	rec, fwd, err := loadRecording(logger, input)
	if err != nil {
		return err
	}

	rep := report.New(cfg.Report.Title)
	if err := buildReport(logger, cfg, rep, rec, fwd); err != nil {
		return err
	}
	if err := rep.Save(cfg.Report.Output); err != nil {
		return err
	}
	logger.Info("report written", "path", cfg.Report.Output, "sections", len(rep.Sections()))

	if !serve {
		return nil
	}
	if addr == "" {
		addr = cfg.Server.Addr
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return server.New(rep, logger).ListenAndServe(ctx, addr)
}

func loadRecording(logger *slog.Logger, input string) (*raw.Raw, *forward.Forward, error) {
	if input != "" {
		logger.Info("loading recording", "path", input)
		rec, err := rawfile.Read(input)
		if err != nil {
			return nil, nil, err
		}
		fwd, err := loadForward(logger, input)
		if err != nil {
			return nil, nil, err
		}
		return rec, fwd, nil
	}

	logger.Info("no input file, simulating a demo recording")
	channels := make([]core.Channel, 10)
	for i := range channels {
		z := 0.2 + 0.8*float64(i)/9
		r := math.Sqrt(1 - z*z)
		phi := float64(i) * 2.399963
		channels[i] = core.Channel{
			Name: fmt.Sprintf("EEG %03d", i+1),
			Kind: core.KindEEG, Unit: "V", Cal: 1,
			Pos: core.Position{X: r * math.Cos(phi), Y: r * math.Sin(phi), Z: z},
		}
	}
	info, err := core.NewInfo(250, channels)
	if err != nil {
		return nil, nil, err
	}
	fwd, err := forward.SingleSphere(info, []forward.Source{
		{Pos: core.Position{Z: 0.6}, Ori: core.Position{Z: 1}},
	})
	if err != nil {
		return nil, nil, err
	}
	rec, err := simulate.Raw(fwd, 250, 120,
		simulate.EventSchedule(500, 700, 40, 1),
		[]simulate.Burst{{Source: 0, Code: 1, Amplitude: 5e-6, FreqHz: 10, Latency: 0.15, Width: 0.05}},
		simulate.WithNoise(2e-7), simulate.WithSeed(7))
	if err != nil {
		return nil, nil, err
	}
	return rec, fwd, nil
}

// loadForward looks for a stored forward model next to the recording,
// recording.mrf -> recording.fwd. A missing file is not an error, the
// source analysis is simply skipped.
func loadForward(logger *slog.Logger, input string) (*forward.Forward, error) {
	path := strings.TrimSuffix(input, filepath.Ext(input)) + ".fwd"
	if _, err := os.Stat(path); err != nil {
		return nil, nil
	}
	logger.Info("loading forward model", "path", path)
	return forward.Load(path)
}

func buildReport(logger *slog.Logger, cfg *config.Config, rep *report.Report, rec *raw.Raw, fwd *forward.Forward) error {
	info := rec.Info()

	overview := fmt.Sprintf(
		"Recording with **%d channels** at %.6g Hz, %.1f s of data.",
		info.NumChannels(), info.SampleRate, rec.Duration())
	if _, err := rep.AddMarkdown("Overview", overview, "raw"); err != nil {
		return err
	}

	// Channel QC before any filtering.
	if bads := timestats.FlagBads(rec, timestats.QCThresholds{FlatPTP: 0}); len(bads) > 0 {
		logger.Warn("flat channels detected", "channels", bads)
		if err := info.SetBads(bads...); err != nil {
			return err
		}
	}
	channelTable(rep, rec)

	if cfg.Filter.NotchHz > 0 {
		if err := rec.Notch([]float64{cfg.Filter.NotchHz}, 1); err != nil {
			return err
		}
	}
	switch {
	case cfg.Filter.HighpassHz > 0 && cfg.Filter.LowpassHz > 0:
		err := rec.FilterBandpass(cfg.Filter.HighpassHz, cfg.Filter.LowpassHz)
		if err != nil {
			return err
		}
	case cfg.Filter.HighpassHz > 0:
		if err := rec.FilterHighpass(cfg.Filter.HighpassHz); err != nil {
			return err
		}
	case cfg.Filter.LowpassHz > 0:
		if err := rec.FilterLowpass(cfg.Filter.LowpassHz); err != nil {
			return err
		}
	}

	if err := spectrumSection(rep, rec); err != nil {
		return err
	}

	events, err := rec.Events()
	if err != nil {
		logger.Info("no events found, skipping evoked analysis", "error", err)
		return nil
	}
	logger.Info("epoching", "events", len(events))

	ep, err := epochs.New(rec, events, cfg.Epochs.Tmin, cfg.Epochs.Tmax,
		epochs.WithBaseline(cfg.Epochs.Tmin, 0))
	if err != nil {
		return err
	}
	thresholds := epochs.EstimateReject(ep)
	ep, err = epochs.New(rec, events, cfg.Epochs.Tmin, cfg.Epochs.Tmax,
		epochs.WithBaseline(cfg.Epochs.Tmin, 0),
		epochs.WithReject(thresholds))
	if err != nil {
		return err
	}
	dropStats := fmt.Sprintf("%d of %d epochs kept (%.0f%% dropped).",
		ep.NumEpochs(), len(events), 100*ep.DropFraction())
	if _, err := rep.AddMarkdown("Epochs", dropStats, "epochs"); err != nil {
		return err
	}

	evoked, err := ep.Average()
	if err != nil {
		return err
	}
	if _, err := rep.AddEvoked("Evoked response", evoked, "evoked"); err != nil {
		return err
	}

	if err := clusterSection(rep, cfg, ep, evoked); err != nil {
		return err
	}
	if fwd != nil {
		if err := inverseSection(rep, cfg, ep, evoked, fwd); err != nil {
			return err
		}
	} else {
		logger.Info("no forward model, skipping source localization")
	}

	decomp, err := tfr.Compute(ep, tfr.LinFreqs(4, 30, 14), tfr.WithDecim(2))
	if err != nil {
		return err
	}
	power := decomp.AveragePower()
	if err := power.ApplyBaseline(cfg.Epochs.Tmin, 0, tfr.BaselineLogRatio); err != nil {
		return err
	}
	if _, err := rep.AddTFR("Induced power", power, 0, "tfr"); err != nil {
		return err
	}
	return nil
}

func channelTable(rep *report.Report, rec *raw.Raw) {
	stats := timestats.ChannelStats(rec)
	rows := make([][]string, 0, rec.Info().NumChannels())
	for _, ch := range rec.Info().Channels {
		s := stats[ch.Name]
		bad := ""
		if ch.Bad {
			bad = "bad"
		}
		rows = append(rows, []string{
			ch.Name, ch.Kind.String(), bad,
			fmt.Sprintf("%.4g", s.RMS),
			fmt.Sprintf("%.4g", s.PTP),
			fmt.Sprintf("%.2f", s.Kurtosis),
		})
	}
	rep.AddTable("Channels", []string{"name", "kind", "bad", "rms", "ptp", "kurtosis"}, rows, "qc")
}

func spectrumSection(rep *report.Report, rec *raw.Raw) error {
	picks, err := core.Picks(rec.Info(), core.PickData())
	if err != nil {
		return err
	}

	var labels []string
	var psds []*spectrum.PSD
	lineRatio := 0.0
	for _, p := range picks {
		psd, err := spectrum.Welch(rec.Data()[p], rec.Info().SampleRate,
			spectrum.WithSegment(1024))
		if err != nil {
			return err
		}
		labels = append(labels, rec.Info().Channels[p].Name)
		psds = append(psds, psd)
		if r := frequencystats.LineNoiseRatio(psd.Freqs, psd.Data, 50, 2); r > lineRatio {
			lineRatio = r
		}
	}

	if _, err := rep.AddPSD("Power spectra", labels, psds, "spectrum"); err != nil {
		return err
	}
	if lineRatio > 0.2 {
		note := fmt.Sprintf("Up to **%.0f%%** of channel power sits at 50 Hz and harmonics; consider a notch filter.",
			100*lineRatio)
		if _, err := rep.AddMarkdown("Line noise", note, "spectrum"); err != nil {
			return err
		}
	}
	return nil
}

// clusterSection tests the single-trial responses of the strongest
// evoked channel against zero with a cluster permutation test, so the
// report states which part of the window carries a reliable effect.
func clusterSection(rep *report.Report, cfg *config.Config, ep *epochs.Epochs, evoked *epochs.Evoked) error {
	name, _, _, err := evoked.Peak(0, cfg.Epochs.Tmax)
	if err != nil {
		return err
	}
	ch, err := evoked.Info().ChannelIndex(name)
	if err != nil {
		return err
	}

	data := make([][]float64, ep.NumEpochs())
	for i := range data {
		epoch, err := ep.Get(i)
		if err != nil {
			return err
		}
		data[i] = epoch[ch]
	}

	res, err := cluster.PermutationTest(context.Background(), data,
		cluster.WithPermutations(1024), cluster.WithSeed(7))
	if err != nil {
		return err
	}

	times := ep.Times()
	body := fmt.Sprintf("Channel **%s**, %d epochs, %d permutations, threshold |t| > %.2f.",
		name, len(data), res.Permutations, res.Threshold)
	sig := res.Significant(0.05)
	if len(sig) == 0 {
		body += " No significant clusters."
	}
	for _, c := range sig {
		body += fmt.Sprintf("\n\n* %.3f s to %.3f s, mass %.1f, p = %.4f",
			times[c.Points[0]], times[c.Points[len(c.Points)-1]], c.Mass, c.P)
	}
	_, err = rep.AddMarkdown("Cluster statistics", body, "stats")
	return err
}

// inverseSection localizes the evoked response with a dSPM minimum-norm
// estimate, whitened by the baseline noise covariance.
func inverseSection(rep *report.Report, cfg *config.Config, ep *epochs.Epochs, evoked *epochs.Evoked, fwd *forward.Forward) error {
	noise, err := cov.FromEpochs(ep, cfg.Epochs.Tmin, 0)
	if err != nil {
		return err
	}
	op, err := inverse.MakeOperator(fwd, noise.Regularize(0.1), inverse.WithDepth(0.8))
	if err != nil {
		return err
	}
	est, err := op.Apply(evoked, inverse.DSPM, 3)
	if err != nil {
		return err
	}

	src, tpeak := est.Peak()
	pos := est.Sources[src].Pos
	body := fmt.Sprintf(
		"dSPM over %d sources. Peak at source %d, position (%.2f, %.2f, %.2f), %.3f s after the event.",
		len(est.Sources), src, pos.X, pos.Y, pos.Z, tpeak)
	_, err = rep.AddMarkdown("Source localization", body, "inverse")
	return err
}
