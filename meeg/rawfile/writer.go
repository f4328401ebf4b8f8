package rawfile

import (
	"fmt"
	"io"
	"os"

	"github.com/fxamacker/cbor/v2"
	"github.com/klauspost/compress/zstd"

	"github.com/cwbudde/algo-meeg/meeg/core"
	"github.com/cwbudde/algo-meeg/meeg/raw"
)

type writerConfig struct {
	blockSamples int
	level        zstd.EncoderLevel
}

// WriteOption configures MRF writing.
type WriteOption func(*writerConfig)

// WithBlockSamples sets the per-block sample count.
func WithBlockSamples(n int) WriteOption {
	return func(c *writerConfig) {
		if n > 0 {
			c.blockSamples = n
		}
	}
}

// WithCompressionLevel sets the zstd encoder level.
func WithCompressionLevel(level zstd.EncoderLevel) WriteOption {
	return func(c *writerConfig) {
		c.level = level
	}
}

// Writer streams a recording into an MRF file block by block.
type Writer struct {
	w      io.Writer
	enc    *zstd.Encoder
	cfg    writerConfig
	info   *core.Info
	offset int64

	pending [][]float64 // one buffer per channel
	footer  wireFooter
	closed  bool
}

// NewWriter writes the header and returns a Writer accepting samples.
func NewWriter(w io.Writer, info *core.Info, annotations []raw.Annotation, opts ...WriteOption) (*Writer, error) {
	if err := info.Validate(); err != nil {
		return nil, err
	}

	cfg := writerConfig{blockSamples: DefaultBlockSamples, level: zstd.SpeedDefault}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}

	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(cfg.level))
	if err != nil {
		return nil, fmt.Errorf("rawfile: zstd encoder: %w", err)
	}

	header, err := cbor.Marshal(headerFromInfo(info, annotations, cfg.blockSamples))
	if err != nil {
		return nil, fmt.Errorf("rawfile: encode header: %w", err)
	}

	wr := &Writer{
		w:       w,
		enc:     enc,
		cfg:     cfg,
		info:    info,
		pending: make([][]float64, info.NumChannels()),
	}

	if err := wr.writeAll([]byte(headMagic)); err != nil {
		return nil, err
	}
	var lenBuf [4]byte
	byteOrder.PutUint32(lenBuf[:], uint32(len(header)))
	if err := wr.writeAll(lenBuf[:]); err != nil {
		return nil, err
	}
	if err := wr.writeAll(header); err != nil {
		return nil, err
	}
	return wr, nil
}

// Append buffers samples for all channels and flushes full blocks.
// data must have one row per channel; all rows the same length.
func (wr *Writer) Append(data [][]float64) error {
	if wr.closed {
		return ErrClosed
	}
	if len(data) != wr.info.NumChannels() {
		return fmt.Errorf("rawfile: %d rows for %d channels", len(data), wr.info.NumChannels())
	}
	n := len(data[0])
	for i, ch := range data {
		if len(ch) != n {
			return fmt.Errorf("rawfile: ragged append at channel %d", i)
		}
		wr.pending[i] = append(wr.pending[i], ch...)
	}

	for len(wr.pending[0]) >= wr.cfg.blockSamples {
		if err := wr.flushBlock(wr.cfg.blockSamples); err != nil {
			return err
		}
	}
	return nil
}

// Close flushes the final partial block and writes the footer.
func (wr *Writer) Close() error {
	if wr.closed {
		return ErrClosed
	}
	if len(wr.pending[0]) > 0 {
		if err := wr.flushBlock(len(wr.pending[0])); err != nil {
			return err
		}
	}
	wr.closed = true

	footer, err := cbor.Marshal(wr.footer)
	if err != nil {
		return fmt.Errorf("rawfile: encode footer: %w", err)
	}
	if err := wr.writeAll(footer); err != nil {
		return err
	}
	var lenBuf [4]byte
	byteOrder.PutUint32(lenBuf[:], uint32(len(footer)))
	if err := wr.writeAll(lenBuf[:]); err != nil {
		return err
	}
	return wr.writeAll([]byte(tailMagic))
}

func (wr *Writer) flushBlock(samples int) error {
	packed := packBlock(wr.pending, 0, samples)
	compressed := wr.enc.EncodeAll(packed, nil)

	wr.footer.Blocks = append(wr.footer.Blocks, wireBlock{
		Offset:     wr.offset,
		Compressed: len(compressed),
		Samples:    samples,
	})
	wr.footer.TotalSamples += samples

	for i := range wr.pending {
		wr.pending[i] = wr.pending[i][samples:]
	}
	return wr.writeAll(compressed)
}

func (wr *Writer) writeAll(buf []byte) error {
	n, err := wr.w.Write(buf)
	if err != nil {
		return fmt.Errorf("rawfile: write: %w", err)
	}
	wr.offset += int64(n)
	return nil
}

// Write stores a whole recording at path.
func Write(path string, r *raw.Raw, opts ...WriteOption) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("rawfile: %w", err)
	}
	defer f.Close()

	wr, err := NewWriter(f, r.Info(), r.Annotations(), opts...)
	if err != nil {
		return err
	}
	if err := wr.Append(r.Data()); err != nil {
		return err
	}
	if err := wr.Close(); err != nil {
		return err
	}
	return f.Sync()
}
