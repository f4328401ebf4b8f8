// Package core provides the measurement metadata shared by all meeg packages.
//
// An [Info] describes a recording: sample rate and an ordered channel list
// with per-channel kind, unit, calibration, and optional sensor position.
// Channel selection is done through [Picks], which resolves kinds, names,
// and bad-channel exclusion into index slices consumed by the processing
// packages.
package core
