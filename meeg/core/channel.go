package core

import "fmt"

// ChannelKind identifies the sensor type of a channel.
type ChannelKind int

const (
	KindMisc ChannelKind = iota
	KindEEG
	KindMagMEG
	KindGradMEG
	KindStim
	KindEOG
	KindECG
	KindEMG
)

// String returns the conventional short name of the kind.
func (k ChannelKind) String() string {
	switch k {
	case KindEEG:
		return "eeg"
	case KindMagMEG:
		return "mag"
	case KindGradMEG:
		return "grad"
	case KindStim:
		return "stim"
	case KindEOG:
		return "eog"
	case KindECG:
		return "ecg"
	case KindEMG:
		return "emg"
	default:
		return "misc"
	}
}

// IsData reports whether the kind carries brain signal (as opposed to
// trigger or auxiliary physiological channels).
func (k ChannelKind) IsData() bool {
	switch k {
	case KindEEG, KindMagMEG, KindGradMEG:
		return true
	default:
		return false
	}
}

// Position is a sensor location in head coordinates (meters).
type Position struct {
	X, Y, Z float64
}

// IsZero reports whether the position is unset.
func (p Position) IsZero() bool {
	return p.X == 0 && p.Y == 0 && p.Z == 0
}

// Channel describes one recording channel.
type Channel struct {
	Name string
	Kind ChannelKind
	// Unit is the SI unit of calibrated samples, e.g. "V", "T", "T/m".
	Unit string
	// Cal scales stored samples into Unit. Zero is treated as 1.
	Cal float64
	Pos Position
	Bad bool
}

// Calibration returns the effective calibration factor.
func (c Channel) Calibration() float64 {
	if c.Cal == 0 {
		return 1
	}
	return c.Cal
}

func validateChannel(c Channel) error {
	if c.Name == "" {
		return fmt.Errorf("core: channel name must not be empty")
	}
	return nil
}
