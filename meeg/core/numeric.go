package core

import "math"

const defaultEpsilon = 1e-12

// Clamp limits value to the inclusive range [min, max].
func Clamp(value, min, max float64) float64 {
	if min > max {
		min, max = max, min
	}

	if value < min {
		return min
	}

	if value > max {
		return max
	}

	return value
}

// NearlyEqual reports whether a and b are equal within eps.
func NearlyEqual(a, b, eps float64) bool {
	if eps <= 0 {
		eps = defaultEpsilon
	}

	diff := math.Abs(a - b)
	if diff <= eps {
		return true
	}

	largest := math.Max(math.Abs(a), math.Abs(b))
	if largest == 0 {
		return diff <= eps
	}

	return diff/largest <= eps
}

// SampleIndex converts a time in seconds to the nearest sample index.
func SampleIndex(t, sampleRate float64) int {
	return int(math.Round(t * sampleRate))
}

// SampleTime converts a sample index to seconds.
func SampleTime(sample int, sampleRate float64) float64 {
	return float64(sample) / sampleRate
}

// TimeVector returns n sample times starting at tmin.
func TimeVector(tmin, sampleRate float64, n int) []float64 {
	if n <= 0 {
		return nil
	}
	out := make([]float64, n)
	for i := range out {
		out[i] = tmin + float64(i)/sampleRate
	}
	return out
}
