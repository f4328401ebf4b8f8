package epochs

import (
	"math"
	"sort"

	"github.com/cwbudde/algo-meeg/meeg/core"
)

// EstimateReject derives peak-to-peak rejection thresholds from the data
// itself, one per channel kind present in e. For every candidate
// threshold the epochs surviving it are averaged and compared against
// the pointwise median of all epochs; the threshold with the smallest
// RMS distance wins. The median is robust to the very artifacts the
// threshold should remove, so a good threshold pulls the mean toward it.
func EstimateReject(e *Epochs) map[core.ChannelKind]float64 {
	out := make(map[core.ChannelKind]float64)
	for _, kind := range presentKinds(e.info) {
		var picks []int
		for i, ch := range e.info.Channels {
			if ch.Kind == kind && !ch.Bad {
				picks = append(picks, i)
			}
		}
		if thresh, ok := estimateKind(e.data, picks); ok {
			out[kind] = thresh
		}
	}
	return out
}

func presentKinds(info *core.Info) []core.ChannelKind {
	seen := map[core.ChannelKind]bool{}
	var kinds []core.ChannelKind
	for _, ch := range info.Channels {
		if ch.Kind.IsData() && !seen[ch.Kind] {
			seen[ch.Kind] = true
			kinds = append(kinds, ch.Kind)
		}
	}
	return kinds
}

func estimateKind(data [][][]float64, picks []int) (float64, bool) {
	if len(picks) == 0 || len(data) < 3 {
		return 0, false
	}

	// Per-epoch worst-channel peak-to-peak.
	ptps := make([]float64, len(data))
	for i, epoch := range data {
		for _, c := range picks {
			if p := peakToPeak(epoch[c]); p > ptps[i] {
				ptps[i] = p
			}
		}
	}

	candidates := append([]float64(nil), ptps...)
	sort.Float64s(candidates)

	target := pointwiseMedian(data, picks)

	bestScore := math.Inf(1)
	best := candidates[len(candidates)-1]
	for _, thresh := range candidates {
		score, ok := thresholdScore(data, picks, ptps, thresh, target)
		if ok && score < bestScore {
			bestScore = score
			best = thresh
		}
	}
	return best, true
}

// pointwiseMedian computes the median across epochs for each picked
// channel and sample, flattened channel-major.
func pointwiseMedian(data [][][]float64, picks []int) []float64 {
	n := len(data[0][0])
	out := make([]float64, len(picks)*n)
	buf := make([]float64, len(data))
	for pi, c := range picks {
		for i := 0; i < n; i++ {
			for e, epoch := range data {
				buf[e] = epoch[c][i]
			}
			sort.Float64s(buf)
			mid := len(buf) / 2
			if len(buf)%2 == 1 {
				out[pi*n+i] = buf[mid]
			} else {
				out[pi*n+i] = 0.5 * (buf[mid-1] + buf[mid])
			}
		}
	}
	return out
}

func thresholdScore(data [][][]float64, picks []int, ptps []float64, thresh float64, target []float64) (float64, bool) {
	n := len(data[0][0])
	mean := make([]float64, len(picks)*n)
	kept := 0
	for e, epoch := range data {
		if ptps[e] > thresh {
			continue
		}
		kept++
		for pi, c := range picks {
			for i, v := range epoch[c] {
				mean[pi*n+i] += v
			}
		}
	}
	if kept == 0 {
		return 0, false
	}

	score := 0.0
	for i := range mean {
		d := mean[i]/float64(kept) - target[i]
		score += d * d
	}
	return math.Sqrt(score / float64(len(mean))), true
}
