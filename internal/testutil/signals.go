package testutil

import (
	"math"
	"math/rand"
)

// Sine generates a deterministic sine wave.
func Sine(freqHz, sampleRate, amplitude float64, length int) []float64 {
	out := make([]float64, length)
	step := 2 * math.Pi * freqHz / sampleRate
	for i := range out {
		out[i] = amplitude * math.Sin(step*float64(i))
	}
	return out
}

// Noise generates white noise with a fixed seed for reproducibility.
func Noise(seed int64, amplitude float64, length int) []float64 {
	out := make([]float64, length)
	rng := rand.New(rand.NewSource(seed))
	for i := range out {
		out[i] = (rng.Float64()*2 - 1) * amplitude
	}
	return out
}

// GaussNoise generates normally distributed noise with a fixed seed.
func GaussNoise(seed int64, sigma float64, length int) []float64 {
	out := make([]float64, length)
	rng := rand.New(rand.NewSource(seed))
	for i := range out {
		out[i] = rng.NormFloat64() * sigma
	}
	return out
}

// Impulse generates a unit impulse at the given position.
func Impulse(length, pos int) []float64 {
	out := make([]float64, length)
	if pos >= 0 && pos < length {
		out[pos] = 1
	}
	return out
}

// Burst generates a Gaussian-windowed sinusoid centered at sample center,
// the shape of a synthetic evoked response.
func Burst(freqHz, sampleRate, amplitude float64, center, widthSamples, length int) []float64 {
	out := make([]float64, length)
	if widthSamples <= 0 {
		return out
	}
	step := 2 * math.Pi * freqHz / sampleRate
	w := float64(widthSamples)
	for i := range out {
		d := float64(i - center)
		env := math.Exp(-0.5 * (d / w) * (d / w))
		out[i] = amplitude * env * math.Sin(step*d)
	}
	return out
}

// DC generates a constant-valued signal.
func DC(value float64, length int) []float64 {
	out := make([]float64, length)
	for i := range out {
		out[i] = value
	}
	return out
}
