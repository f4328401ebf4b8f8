// Package rawfile reads and writes MRF, the module's container format for
// continuous recordings.
//
// An MRF file is a CBOR-encoded header (measurement info, annotations,
// block geometry) followed by zstd-compressed sample blocks and a CBOR
// footer holding the block index. Blocks hold a fixed number of samples
// for all channels, so readers can stream sequentially or seek to an
// arbitrary sample range by decompressing only the touched blocks.
//
// Layout:
//
//	magic "MEEGRAW1"
//	u32 header length | CBOR header
//	repeated: zstd block (channel-major float64 LE)
//	CBOR footer (block index) | u32 footer length | magic "1WARGEEM"
package rawfile

import (
	"encoding/binary"
	"errors"
	"math"
	"time"

	"github.com/cwbudde/algo-meeg/meeg/core"
	"github.com/cwbudde/algo-meeg/meeg/raw"
)

const (
	headMagic = "MEEGRAW1"
	tailMagic = "1WARGEEM"

	formatVersion = 1

	// DefaultBlockSamples is the per-block sample count used by Writer
	// unless overridden.
	DefaultBlockSamples = 4096
)

var (
	// ErrBadMagic indicates a file that is not MRF.
	ErrBadMagic = errors.New("rawfile: bad magic")
	// ErrCorrupt indicates a truncated or inconsistent file.
	ErrCorrupt = errors.New("rawfile: corrupt file")
	// ErrVersion indicates an unsupported format version.
	ErrVersion = errors.New("rawfile: unsupported version")
	// ErrClosed indicates use after Close.
	ErrClosed = errors.New("rawfile: closed")
)

var byteOrder = binary.LittleEndian

type wireChannel struct {
	Name string  `cbor:"1,keyasint"`
	Kind int     `cbor:"2,keyasint"`
	Unit string  `cbor:"3,keyasint,omitempty"`
	Cal  float64 `cbor:"4,keyasint,omitempty"`
	PosX float64 `cbor:"5,keyasint,omitempty"`
	PosY float64 `cbor:"6,keyasint,omitempty"`
	PosZ float64 `cbor:"7,keyasint,omitempty"`
	Bad  bool    `cbor:"8,keyasint,omitempty"`
}

type wireAnnotation struct {
	Onset       float64 `cbor:"1,keyasint"`
	Duration    float64 `cbor:"2,keyasint,omitempty"`
	Description string  `cbor:"3,keyasint"`
}

type wireHeader struct {
	Version      int              `cbor:"1,keyasint"`
	SampleRate   float64          `cbor:"2,keyasint"`
	Channels     []wireChannel    `cbor:"3,keyasint"`
	HighpassHz   float64          `cbor:"4,keyasint,omitempty"`
	LowpassHz    float64          `cbor:"5,keyasint,omitempty"`
	MeasDateUnix int64            `cbor:"6,keyasint,omitempty"`
	Subject      string           `cbor:"7,keyasint,omitempty"`
	Description  string           `cbor:"8,keyasint,omitempty"`
	Annotations  []wireAnnotation `cbor:"9,keyasint,omitempty"`
	BlockSamples int              `cbor:"10,keyasint"`
}

type wireBlock struct {
	Offset     int64 `cbor:"1,keyasint"`
	Compressed int   `cbor:"2,keyasint"`
	Samples    int   `cbor:"3,keyasint"`
}

type wireFooter struct {
	Blocks       []wireBlock `cbor:"1,keyasint"`
	TotalSamples int         `cbor:"2,keyasint"`
}

func headerFromInfo(info *core.Info, annotations []raw.Annotation, blockSamples int) wireHeader {
	h := wireHeader{
		Version:      formatVersion,
		SampleRate:   info.SampleRate,
		HighpassHz:   info.HighpassHz,
		LowpassHz:    info.LowpassHz,
		Subject:      info.Subject,
		Description:  info.Description,
		BlockSamples: blockSamples,
	}
	if !info.MeasDate.IsZero() {
		h.MeasDateUnix = info.MeasDate.Unix()
	}
	for _, ch := range info.Channels {
		h.Channels = append(h.Channels, wireChannel{
			Name: ch.Name,
			Kind: int(ch.Kind),
			Unit: ch.Unit,
			Cal:  ch.Cal,
			PosX: ch.Pos.X,
			PosY: ch.Pos.Y,
			PosZ: ch.Pos.Z,
			Bad:  ch.Bad,
		})
	}
	for _, a := range annotations {
		h.Annotations = append(h.Annotations, wireAnnotation{
			Onset:       a.Onset,
			Duration:    a.Duration,
			Description: a.Description,
		})
	}
	return h
}

func (h wireHeader) toInfo() (*core.Info, []raw.Annotation, error) {
	channels := make([]core.Channel, len(h.Channels))
	for i, wc := range h.Channels {
		channels[i] = core.Channel{
			Name: wc.Name,
			Kind: core.ChannelKind(wc.Kind),
			Unit: wc.Unit,
			Cal:  wc.Cal,
			Pos:  core.Position{X: wc.PosX, Y: wc.PosY, Z: wc.PosZ},
			Bad:  wc.Bad,
		}
	}
	info, err := core.NewInfo(h.SampleRate, channels)
	if err != nil {
		return nil, nil, err
	}
	info.HighpassHz = h.HighpassHz
	if h.LowpassHz > 0 {
		info.LowpassHz = h.LowpassHz
	}
	if h.MeasDateUnix != 0 {
		info.MeasDate = time.Unix(h.MeasDateUnix, 0).UTC()
	}
	info.Subject = h.Subject
	info.Description = h.Description

	annotations := make([]raw.Annotation, len(h.Annotations))
	for i, wa := range h.Annotations {
		annotations[i] = raw.Annotation{
			Onset:       wa.Onset,
			Duration:    wa.Duration,
			Description: wa.Description,
		}
	}
	return info, annotations, nil
}

// packBlock serializes channel-major samples into little-endian float64.
func packBlock(data [][]float64, start, stop int) []byte {
	n := stop - start
	out := make([]byte, len(data)*n*8)
	pos := 0
	for _, ch := range data {
		for _, v := range ch[start:stop] {
			byteOrder.PutUint64(out[pos:], math.Float64bits(v))
			pos += 8
		}
	}
	return out
}

func unpackBlock(buf []byte, numChannels, samples int) ([][]float64, error) {
	if len(buf) != numChannels*samples*8 {
		return nil, ErrCorrupt
	}
	out := make([][]float64, numChannels)
	pos := 0
	for c := range out {
		ch := make([]float64, samples)
		for i := range ch {
			ch[i] = math.Float64frombits(byteOrder.Uint64(buf[pos:]))
			pos += 8
		}
		out[c] = ch
	}
	return out, nil
}
