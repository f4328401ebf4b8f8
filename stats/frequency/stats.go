// Package frequency summarizes power spectra for quality control:
// where the power sits, how flat the spectrum is, and how much of it is
// power-line interference.
package frequency

import "math"

// Stats holds descriptors of a one-sided power spectrum.
type Stats struct {
	BinCount int
	// TotalPower integrates the spectrum over frequency.
	TotalPower float64
	// PeakFreq is the frequency of the largest bin above DC.
	PeakFreq float64
	// PeakPower is the value at PeakFreq.
	PeakPower float64
	// Centroid is the power-weighted mean frequency.
	Centroid float64
	// Spread is the power-weighted standard deviation around the
	// centroid.
	Spread float64
	// Flatness is the Wiener entropy in 0..1; white noise approaches
	// 1, a pure oscillation approaches 0.
	Flatness float64
	// Median splits the power in half, a robust edge frequency.
	Median float64
}

// Calculate summarizes a PSD given with its frequency axis. Freqs and
// power must align, the way spectrum.Welch returns them.
func Calculate(freqs, power []float64) Stats {
	n := len(power)
	if n == 0 || len(freqs) != n {
		return Stats{}
	}

	var s Stats
	s.BinCount = n

	sum := 0.0
	for i := 1; i < n; i++ {
		v := power[i]
		sum += v
		if v > s.PeakPower {
			s.PeakPower = v
			s.PeakFreq = freqs[i]
		}
	}
	if n >= 2 {
		df := freqs[1] - freqs[0]
		s.TotalPower = (sum + power[0]) * df
	}
	if sum == 0 {
		return s
	}

	weighted := 0.0
	for i := 1; i < n; i++ {
		weighted += freqs[i] * power[i]
	}
	s.Centroid = weighted / sum

	sq := 0.0
	for i := 1; i < n; i++ {
		d := freqs[i] - s.Centroid
		sq += d * d * power[i]
	}
	s.Spread = math.Sqrt(sq / sum)

	s.Flatness = Flatness(power)
	s.Median = medianFrequency(freqs, power, sum)
	return s
}

// Flatness returns the Wiener entropy of the spectrum above DC.
func Flatness(power []float64) float64 {
	n := len(power)
	if n < 2 {
		return 0
	}
	sumLin, sumLog := 0.0, 0.0
	for i := 1; i < n; i++ {
		v := power[i]
		if v <= 0 {
			return 0
		}
		sumLin += v
		sumLog += math.Log(v)
	}
	bins := float64(n - 1)
	return math.Exp(sumLog/bins) / (sumLin / bins)
}

func medianFrequency(freqs, power []float64, sum float64) float64 {
	half := sum / 2
	acc := 0.0
	for i := 1; i < len(power); i++ {
		acc += power[i]
		if acc >= half {
			return freqs[i]
		}
	}
	return freqs[len(freqs)-1]
}

// LineNoiseRatio returns the fraction of total power within halfWidth
// of lineFreq and its harmonics up to Nyquist. Recordings needing a
// notch filter stand out with large values.
func LineNoiseRatio(freqs, power []float64, lineFreq, halfWidth float64) float64 {
	if len(power) < 2 || lineFreq <= 0 {
		return 0
	}

	total, line := 0.0, 0.0
	nyquist := freqs[len(freqs)-1]
	for i := 1; i < len(power); i++ {
		total += power[i]
		for h := lineFreq; h <= nyquist; h += lineFreq {
			if math.Abs(freqs[i]-h) <= halfWidth {
				line += power[i]
				break
			}
		}
	}
	if total == 0 {
		return 0
	}
	return line / total
}

// BandRatio returns the fraction of total power inside [lo, hi].
func BandRatio(freqs, power []float64, lo, hi float64) float64 {
	total, band := 0.0, 0.0
	for i := 1; i < len(power); i++ {
		total += power[i]
		if freqs[i] >= lo && freqs[i] <= hi {
			band += power[i]
		}
	}
	if total == 0 {
		return 0
	}
	return band / total
}
