// Package filter designs and applies the band-limiting filters used on
// continuous and epoched recordings.
//
// FIR designs use the windowed-sinc method with a Hamming taper and
// conservative automatic transition bandwidths; application is zero phase:
// the symmetric kernel is applied by FFT overlap-add convolution with
// reflected edge padding and group-delay compensation, so filtered data
// stays aligned with event samples.
//
// For narrow notches an IIR biquad path is provided ([NotchBiquad],
// [BandpassBiquad]) with forward-backward application for zero phase.
package filter
