// Package time computes per-channel time-domain statistics for quality
// control of recordings: offsets, amplitudes, higher moments and the
// flat/noisy-channel heuristics built on them.
package time

import (
	"math"

	"github.com/cwbudde/algo-meeg/meeg/raw"
)

// Stats holds time-domain statistics of one channel.
type Stats struct {
	Length int
	// Mean is the DC offset.
	Mean float64
	// RMS of the raw samples including the offset.
	RMS    float64
	Max    float64
	MaxPos int
	Min    float64
	MinPos int
	// Peak is max(|Max|, |Min|).
	Peak float64
	// PTP is the peak-to-peak range.
	PTP float64
	// Variance about the mean.
	Variance float64
	// Skewness, zero for symmetric signals.
	Skewness float64
	// Kurtosis as excess kurtosis, zero for Gaussian noise. High values
	// flag channels dominated by transient artifacts.
	Kurtosis float64
	// ZeroCrossings counts sign changes, a cheap noisiness proxy.
	ZeroCrossings int
}

// Calculate computes all statistics in a single pass, using Welford's
// online update for the higher moments.
func Calculate(signal []float64) Stats {
	n := len(signal)
	if n == 0 {
		return Stats{}
	}

	var mean, m2, m3, m4 float64
	var (
		sumSq         float64
		maxVal        = signal[0]
		maxPos        int
		minVal        = signal[0]
		minPos        int
		zeroCrossings int
	)

	for i, x := range signal {
		ni := float64(i + 1)
		delta := x - mean
		deltaN := delta / ni
		deltaN2 := deltaN * deltaN
		term1 := delta * deltaN * float64(i)

		// M4 before M3 before M2; each update reads the older values.
		m4 += term1*deltaN2*(ni*ni-3*ni+3) + 6*deltaN2*m2 - 4*deltaN*m3
		m3 += term1*deltaN*(float64(i)-1) - 3*deltaN*m2
		m2 += term1
		mean += deltaN

		sumSq += x * x

		if x > maxVal {
			maxVal = x
			maxPos = i
		}
		if x < minVal {
			minVal = x
			minPos = i
		}
		if i > 0 && signal[i-1]*x < 0 {
			zeroCrossings++
		}
	}

	nf := float64(n)
	variance := m2 / nf

	var skewness, kurtosis float64
	if variance > 0 {
		skewness = (m3 / nf) / (variance * math.Sqrt(variance))
		kurtosis = (m4/nf)/(variance*variance) - 3
	}

	return Stats{
		Length:        n,
		Mean:          mean,
		RMS:           math.Sqrt(sumSq / nf),
		Max:           maxVal,
		MaxPos:        maxPos,
		Min:           minVal,
		MinPos:        minPos,
		Peak:          math.Max(math.Abs(maxVal), math.Abs(minVal)),
		PTP:           maxVal - minVal,
		Variance:      variance,
		Skewness:      skewness,
		Kurtosis:      kurtosis,
		ZeroCrossings: zeroCrossings,
	}
}

// RMS returns the root-mean-square of the signal.
func RMS(signal []float64) float64 {
	if len(signal) == 0 {
		return 0
	}
	var sumSq float64
	for _, x := range signal {
		sumSq += x * x
	}
	return math.Sqrt(sumSq / float64(len(signal)))
}

// Mean returns the DC offset using Kahan summation.
func Mean(signal []float64) float64 {
	if len(signal) == 0 {
		return 0
	}
	var sum, c float64
	for _, x := range signal {
		y := x - c
		t := sum + y
		c = (t - sum) - y
		sum = t
	}
	return sum / float64(len(signal))
}

// ChannelStats computes Stats for every channel of r, keyed by channel
// name.
func ChannelStats(r *raw.Raw) map[string]Stats {
	out := make(map[string]Stats, r.Info().NumChannels())
	for i, ch := range r.Info().Channels {
		out[ch.Name] = Calculate(r.Data()[i])
	}
	return out
}

// QCThresholds configures FlagBads.
type QCThresholds struct {
	// FlatPTP flags channels whose peak-to-peak range falls below it.
	FlatPTP float64
	// MaxPTP flags channels whose peak-to-peak range exceeds it.
	// Zero disables the check.
	MaxPTP float64
	// MaxKurtosis flags channels with excess kurtosis above it.
	// Zero disables the check.
	MaxKurtosis float64
}

// FlagBads scans the data channels of r and returns the names of
// channels failing any enabled criterion, sorted by channel order. It
// does not modify the recording; pass the result to Info.SetBads.
func FlagBads(r *raw.Raw, th QCThresholds) []string {
	var bads []string
	for i, ch := range r.Info().Channels {
		if !ch.Kind.IsData() {
			continue
		}
		s := Calculate(r.Data()[i])
		switch {
		case s.PTP <= th.FlatPTP:
			bads = append(bads, ch.Name)
		case th.MaxPTP > 0 && s.PTP > th.MaxPTP:
			bads = append(bads, ch.Name)
		case th.MaxKurtosis > 0 && s.Kurtosis > th.MaxKurtosis:
			bads = append(bads, ch.Name)
		}
	}
	return bads
}
