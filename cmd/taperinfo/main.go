// Command taperinfo prints spectral properties of the spectral
// estimation tapers.
//
// Usage:
//
//	taperinfo [flags] [taper-name ...]
//
// Without arguments it prints info for all known tapers.
//
// Examples:
//
//	taperinfo hann
//	taperinfo -size 1024 blackman kaiser
//	taperinfo -size 4096 -alpha 8 kaiser
//	taperinfo -list
package main

import (
	"flag"
	"fmt"
	"math"
	"math/cmplx"
	"os"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/cwbudde/algo-meeg/meeg/window"
)

type taperEntry struct {
	name     string
	typ      window.Type
	hasAlpha bool
	defAlpha float64
}

var registry = []taperEntry{
	{"rectangular", window.TypeRectangular, false, 0},
	{"hann", window.TypeHann, false, 0},
	{"hamming", window.TypeHamming, false, 0},
	{"blackman", window.TypeBlackman, false, 0},
	{"blackman-harris", window.TypeBlackmanHarris, false, 0},
	{"kaiser", window.TypeKaiser, true, 8.6},
	{"tukey", window.TypeTukey, true, 0.5},
	{"gauss", window.TypeGauss, true, 2.5},
}

func main() {
	size := flag.Int("size", 1024, "taper length in samples")
	alpha := flag.Float64("alpha", math.NaN(), "shape parameter for parametric tapers (kaiser, tukey, gauss)")
	list := flag.Bool("list", false, "list available taper names")
	periodic := flag.Bool("periodic", false, "use periodic (FFT) form instead of symmetric")
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: taperinfo [flags] [taper-name ...]\n\n")
		fmt.Fprintf(os.Stderr, "Prints spectral properties of spectral estimation tapers.\n")
		fmt.Fprintf(os.Stderr, "Without arguments, prints info for all tapers.\n\n")
		fmt.Fprintf(os.Stderr, "Flags:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  taperinfo hann blackman\n")
		fmt.Fprintf(os.Stderr, "  taperinfo -size 4096 -alpha 8 kaiser\n")
		fmt.Fprintf(os.Stderr, "  taperinfo -list\n")
	}
	flag.Parse()

	if *list {
		printList()
		return
	}

	names := flag.Args()
	if len(names) == 0 {
		for _, e := range registry {
			names = append(names, e.name)
		}
	}

	entries := resolveEntries(names, *alpha)
	if len(entries) == 0 {
		fmt.Fprintf(os.Stderr, "error: no matching tapers\n")
		os.Exit(1)
	}

	var opts []window.Option
	if *periodic {
		opts = append(opts, window.WithPeriodic())
	}

	printAnalysis(entries, *size, opts)
}

func printList() {
	names := make([]string, len(registry))
	for i, e := range registry {
		names[i] = e.name
	}
	sort.Strings(names)
	for _, n := range names {
		fmt.Println(n)
	}
}

type resolvedEntry struct {
	taperEntry
	alphaOverride float64
}

func resolveEntries(names []string, alphaFlag float64) []resolvedEntry {
	byName := make(map[string]taperEntry, len(registry))
	for _, e := range registry {
		byName[e.name] = e
	}

	var result []resolvedEntry
	for _, name := range names {
		name = strings.ToLower(strings.TrimSpace(name))
		e, ok := byName[name]
		if !ok {
			fmt.Fprintf(os.Stderr, "warning: unknown taper %q (use -list to see available)\n", name)
			continue
		}
		a := e.defAlpha
		if e.hasAlpha && !math.IsNaN(alphaFlag) {
			a = alphaFlag
		}
		result = append(result, resolvedEntry{e, a})
	}
	return result
}

func printAnalysis(entries []resolvedEntry, size int, baseOpts []window.Option) {
	tw := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "Taper\tSize\tCoherent Gain\tENBW [bins]\tScallop [dB]\n")
	fmt.Fprintf(tw, "-----\t----\t-------------\t-----------\t------------\n")

	for _, e := range entries {
		opts := append([]window.Option(nil), baseOpts...)
		if e.hasAlpha {
			opts = append(opts, window.WithAlpha(e.alphaOverride))
		}

		coeffs, err := window.Generate(e.typ, size, opts...)
		if err != nil {
			fmt.Fprintf(os.Stderr, "error: %s: %v\n", e.name, err)
			continue
		}
		enbw, err := window.EquivalentNoiseBandwidth(coeffs)
		if err != nil {
			fmt.Fprintf(os.Stderr, "error: %s: %v\n", e.name, err)
			continue
		}

		label := e.name
		if e.hasAlpha {
			label = fmt.Sprintf("%s (a=%.2f)", e.name, e.alphaOverride)
		}

		fmt.Fprintf(tw, "%s\t%d\t%.6f\t%.4f\t%.4f\n",
			label, size, coherentGain(coeffs), enbw, scallopLossdB(coeffs))
	}
	if err := tw.Flush(); err != nil {
		fmt.Fprintf(os.Stderr, "error: failed to flush output: %v\n", err)
	}
}

func coherentGain(coeffs []float64) float64 {
	sum := 0.0
	for _, c := range coeffs {
		sum += c
	}
	return sum / float64(len(coeffs))
}

// scallopLossdB is the magnitude loss for a tone half way between two
// DFT bins, evaluated directly from the DTFT at f = 0.5/N.
func scallopLossdB(coeffs []float64) float64 {
	n := float64(len(coeffs))
	var at0, atHalf complex128
	for i, c := range coeffs {
		at0 += complex(c, 0)
		phase := -math.Pi * float64(i) / n
		atHalf += complex(c, 0) * cmplx.Exp(complex(0, phase))
	}
	if cmplx.Abs(at0) == 0 {
		return 0
	}
	return 20 * math.Log10(cmplx.Abs(atHalf)/cmplx.Abs(at0))
}
