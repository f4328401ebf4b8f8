package forward

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/fxamacker/cbor/v2"
	"gonum.org/v1/gonum/mat"

	"github.com/cwbudde/algo-meeg/meeg/core"
)

// Forward models are stored as a short magic, a format version and a
// CBOR body, so files stay self-describing alongside MRF recordings.
const (
	fileMagic   = "MEEGFWD1"
	fileVersion = 1
)

var (
	// ErrBadFile indicates a file that is not a stored forward model.
	ErrBadFile = errors.New("forward: bad file")
	// ErrFileVersion indicates an unsupported format version.
	ErrFileVersion = errors.New("forward: unsupported version")
)

type wireSource struct {
	PosX float64 `cbor:"1,keyasint,omitempty"`
	PosY float64 `cbor:"2,keyasint,omitempty"`
	PosZ float64 `cbor:"3,keyasint,omitempty"`
	OriX float64 `cbor:"4,keyasint,omitempty"`
	OriY float64 `cbor:"5,keyasint,omitempty"`
	OriZ float64 `cbor:"6,keyasint,omitempty"`
}

type wireForward struct {
	Version      int          `cbor:"1,keyasint"`
	ChannelNames []string     `cbor:"2,keyasint"`
	Sources      []wireSource `cbor:"3,keyasint"`
	Gain         []float64    `cbor:"4,keyasint"` // row-major, channels by sources
}

// Write serializes the forward model to w.
func (f *Forward) Write(w io.Writer) error {
	wf := wireForward{
		Version:      fileVersion,
		ChannelNames: f.ChannelNames,
		Sources:      make([]wireSource, len(f.Sources)),
	}
	for i, s := range f.Sources {
		wf.Sources[i] = wireSource{
			PosX: s.Pos.X, PosY: s.Pos.Y, PosZ: s.Pos.Z,
			OriX: s.Ori.X, OriY: s.Ori.Y, OriZ: s.Ori.Z,
		}
	}
	r, c := f.gain.Dims()
	wf.Gain = make([]float64, 0, r*c)
	for i := 0; i < r; i++ {
		wf.Gain = append(wf.Gain, f.gain.RawRowView(i)...)
	}

	body, err := cbor.Marshal(wf)
	if err != nil {
		return fmt.Errorf("forward: encode: %w", err)
	}
	if _, err := io.WriteString(w, fileMagic); err != nil {
		return err
	}
	_, err = w.Write(body)
	return err
}

// Read deserializes a forward model written by Write.
func Read(r io.Reader) (*Forward, error) {
	magic := make([]byte, len(fileMagic))
	if _, err := io.ReadFull(r, magic); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadFile, err)
	}
	if !bytes.Equal(magic, []byte(fileMagic)) {
		return nil, ErrBadFile
	}
	body, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}

	var wf wireForward
	if err := cbor.Unmarshal(body, &wf); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadFile, err)
	}
	if wf.Version != fileVersion {
		return nil, fmt.Errorf("%w: %d", ErrFileVersion, wf.Version)
	}
	if len(wf.Gain) != len(wf.ChannelNames)*len(wf.Sources) {
		return nil, fmt.Errorf("%w: %d gain values for %d channels, %d sources",
			ErrBadFile, len(wf.Gain), len(wf.ChannelNames), len(wf.Sources))
	}

	sources := make([]Source, len(wf.Sources))
	for i, s := range wf.Sources {
		sources[i] = Source{
			Pos: core.Position{X: s.PosX, Y: s.PosY, Z: s.PosZ},
			Ori: core.Position{X: s.OriX, Y: s.OriY, Z: s.OriZ},
		}
	}
	gain := mat.NewDense(len(wf.ChannelNames), len(wf.Sources), wf.Gain)
	return New(wf.ChannelNames, sources, gain)
}

// Save writes the forward model to a file.
func (f *Forward) Save(path string) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := f.Write(file); err != nil {
		file.Close()
		return err
	}
	return file.Close()
}

// Load reads a forward model from a file.
func Load(path string) (*Forward, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()
	return Read(file)
}
