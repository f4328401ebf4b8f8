package report

import (
	"bytes"
	"fmt"
	"html/template"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/palette"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/cwbudde/algo-meeg/meeg/epochs"
	"github.com/cwbudde/algo-meeg/meeg/spectrum"
	"github.com/cwbudde/algo-meeg/meeg/tfr"
)

const (
	figWidth  = 6 * vg.Inch
	figHeight = 4 * vg.Inch
)

// renderSVG turns a plot into an inline SVG string.
func renderSVG(p *plot.Plot) (string, error) {
	wt, err := p.WriterTo(figWidth, figHeight, "svg")
	if err != nil {
		return "", fmt.Errorf("report: render figure: %w", err)
	}
	var buf bytes.Buffer
	if _, err := wt.WriteTo(&buf); err != nil {
		return "", fmt.Errorf("report: render figure: %w", err)
	}
	return buf.String(), nil
}

// AddEvoked plots the data channels of an averaged response over time.
func (r *Report) AddEvoked(title string, ev *epochs.Evoked, tags ...string) (*Section, error) {
	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = "time (s)"
	p.Y.Label.Text = "amplitude"

	times := ev.Times()
	for i, ch := range ev.Info().Channels {
		if !ch.Kind.IsData() {
			continue
		}
		xys := make(plotter.XYs, len(times))
		for j, t := range times {
			xys[j].X = t
			xys[j].Y = ev.Data()[i][j]
		}
		line, err := plotter.NewLine(xys)
		if err != nil {
			return nil, fmt.Errorf("report: %w", err)
		}
		line.Color = plotter.DefaultLineStyle.Color
		p.Add(line)
	}

	svg, err := renderSVG(p)
	if err != nil {
		return nil, err
	}
	body := svg + fmt.Sprintf("<p class=\"tags\">nave = %d</p>", ev.Nave)
	return r.add(title, template.HTML(body), tags), nil
}

// AddPSD plots one labeled power spectrum per trace on a log power
// axis.
func (r *Report) AddPSD(title string, labels []string, psds []*spectrum.PSD, tags ...string) (*Section, error) {
	if len(labels) != len(psds) {
		return nil, fmt.Errorf("report: %d labels for %d spectra", len(labels), len(psds))
	}

	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = "frequency (Hz)"
	p.Y.Label.Text = "power"
	p.Y.Scale = plot.LogScale{}
	p.Y.Tick.Marker = plot.LogTicks{Prec: -1}

	for i, psd := range psds {
		xys := make(plotter.XYs, 0, len(psd.Freqs))
		for j, f := range psd.Freqs {
			if psd.Data[j] <= 0 {
				continue // log axis
			}
			xys = append(xys, plotter.XY{X: f, Y: psd.Data[j]})
		}
		line, err := plotter.NewLine(xys)
		if err != nil {
			return nil, fmt.Errorf("report: %w", err)
		}
		p.Add(line)
		p.Legend.Add(labels[i], line)
	}

	svg, err := renderSVG(p)
	if err != nil {
		return nil, err
	}
	return r.add(title, template.HTML(svg), tags), nil
}

// tfrGrid adapts one channel of an AverageTFR to the heat map interface.
type tfrGrid struct {
	a       *tfr.AverageTFR
	channel int
}

func (g tfrGrid) Dims() (int, int)   { return len(g.a.Times), len(g.a.Freqs) }
func (g tfrGrid) X(c int) float64    { return g.a.Times[c] }
func (g tfrGrid) Y(r int) float64    { return g.a.Freqs[r] }
func (g tfrGrid) Z(c, r int) float64 { return g.a.Data[g.channel][r][c] }

// AddTFR plots time-frequency power of one channel as a heat map.
func (r *Report) AddTFR(title string, a *tfr.AverageTFR, channel int, tags ...string) (*Section, error) {
	if channel < 0 || channel >= len(a.ChannelNames) {
		return nil, fmt.Errorf("report: channel %d out of range [0, %d)", channel, len(a.ChannelNames))
	}

	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = "time (s)"
	p.Y.Label.Text = "frequency (Hz)"

	hm := plotter.NewHeatMap(tfrGrid{a: a, channel: channel}, palette.Heat(16, 1))
	p.Add(hm)

	svg, err := renderSVG(p)
	if err != nil {
		return nil, err
	}
	body := svg + fmt.Sprintf("<p class=\"tags\">channel %s</p>", a.ChannelNames[channel])
	return r.add(title, template.HTML(body), tags), nil
}
