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

// Reader provides random and sequential access to an MRF file.
type Reader struct {
	f   *os.File
	dec *zstd.Decoder

	info        *core.Info
	annotations []raw.Annotation
	header      wireHeader
	footer      wireFooter

	// starts[i] is the absolute first-sample index of block i.
	starts []int

	nextBlock int
	closed    bool
}

// Open reads the header and the block index; sample data is
// decompressed on demand.
func Open(path string) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("rawfile: %w", err)
	}

	r := &Reader{f: f}
	if err := r.readHeader(); err != nil {
		f.Close()
		return nil, err
	}
	if err := r.readFooter(); err != nil {
		f.Close()
		return nil, err
	}

	dec, err := zstd.NewReader(nil)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("rawfile: zstd decoder: %w", err)
	}
	r.dec = dec
	return r, nil
}

func (r *Reader) readHeader() error {
	magic := make([]byte, len(headMagic))
	if _, err := io.ReadFull(r.f, magic); err != nil {
		return fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	if string(magic) != headMagic {
		return ErrBadMagic
	}

	var lenBuf [4]byte
	if _, err := io.ReadFull(r.f, lenBuf[:]); err != nil {
		return fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	headerBytes := make([]byte, byteOrder.Uint32(lenBuf[:]))
	if _, err := io.ReadFull(r.f, headerBytes); err != nil {
		return fmt.Errorf("%w: truncated header: %v", ErrCorrupt, err)
	}
	if err := cbor.Unmarshal(headerBytes, &r.header); err != nil {
		return fmt.Errorf("%w: header: %v", ErrCorrupt, err)
	}
	if r.header.Version != formatVersion {
		return fmt.Errorf("%w: %d", ErrVersion, r.header.Version)
	}

	info, annotations, err := r.header.toInfo()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	r.info = info
	r.annotations = annotations
	return nil
}

func (r *Reader) readFooter() error {
	size, err := r.f.Seek(0, io.SeekEnd)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	tailLen := int64(len(tailMagic) + 4)
	if size < tailLen {
		return fmt.Errorf("%w: file too short", ErrCorrupt)
	}

	tail := make([]byte, tailLen)
	if _, err := r.f.ReadAt(tail, size-tailLen); err != nil {
		return fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	if string(tail[4:]) != tailMagic {
		return fmt.Errorf("%w: missing tail magic", ErrCorrupt)
	}

	footerLen := int64(byteOrder.Uint32(tail[:4]))
	if footerLen <= 0 || size-tailLen-footerLen < 0 {
		return fmt.Errorf("%w: bad footer length", ErrCorrupt)
	}
	footerBytes := make([]byte, footerLen)
	if _, err := r.f.ReadAt(footerBytes, size-tailLen-footerLen); err != nil {
		return fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	if err := cbor.Unmarshal(footerBytes, &r.footer); err != nil {
		return fmt.Errorf("%w: footer: %v", ErrCorrupt, err)
	}

	r.starts = make([]int, len(r.footer.Blocks))
	total := 0
	for i, b := range r.footer.Blocks {
		r.starts[i] = total
		total += b.Samples
	}
	if total != r.footer.TotalSamples {
		return fmt.Errorf("%w: block index sums to %d, footer says %d", ErrCorrupt, total, r.footer.TotalSamples)
	}
	return nil
}

// Info returns the stored measurement metadata.
func (r *Reader) Info() *core.Info {
	return r.info
}

// Annotations returns the stored annotations.
func (r *Reader) Annotations() []raw.Annotation {
	return r.annotations
}

// NumSamples returns the total per-channel sample count.
func (r *Reader) NumSamples() int {
	return r.footer.TotalSamples
}

// NumBlocks returns the block count.
func (r *Reader) NumBlocks() int {
	return len(r.footer.Blocks)
}

func (r *Reader) readBlock(i int) ([][]float64, error) {
	if r.closed {
		return nil, ErrClosed
	}
	b := r.footer.Blocks[i]
	compressed := make([]byte, b.Compressed)
	if _, err := r.f.ReadAt(compressed, b.Offset); err != nil {
		return nil, fmt.Errorf("%w: block %d: %v", ErrCorrupt, i, err)
	}
	packed, err := r.dec.DecodeAll(compressed, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: block %d: %v", ErrCorrupt, i, err)
	}
	return unpackBlock(packed, r.info.NumChannels(), b.Samples)
}

// ReadRange decompresses and returns samples [start, stop) for all
// channels, touching only the blocks that overlap the range.
func (r *Reader) ReadRange(start, stop int) ([][]float64, error) {
	if start < 0 {
		start = 0
	}
	if stop > r.footer.TotalSamples {
		stop = r.footer.TotalSamples
	}
	if start >= stop {
		return nil, fmt.Errorf("rawfile: empty range [%d, %d)", start, stop)
	}

	out := make([][]float64, r.info.NumChannels())
	for c := range out {
		out[c] = make([]float64, stop-start)
	}

	for i, b := range r.footer.Blocks {
		blockStart := r.starts[i]
		blockStop := blockStart + b.Samples
		if blockStop <= start || blockStart >= stop {
			continue
		}

		block, err := r.readBlock(i)
		if err != nil {
			return nil, err
		}

		from := maxInt(start, blockStart)
		to := minInt(stop, blockStop)
		for c := range out {
			copy(out[c][from-start:to-start], block[c][from-blockStart:to-blockStart])
		}
	}
	return out, nil
}

// NextBlock returns the next sequential block, io.EOF after the last.
func (r *Reader) NextBlock() ([][]float64, error) {
	if r.nextBlock >= len(r.footer.Blocks) {
		return nil, io.EOF
	}
	block, err := r.readBlock(r.nextBlock)
	if err != nil {
		return nil, err
	}
	r.nextBlock++
	return block, nil
}

// ResetBlocks rewinds the sequential block iterator.
func (r *Reader) ResetBlocks() {
	r.nextBlock = 0
}

// Raw loads the whole recording into memory.
func (r *Reader) Raw() (*raw.Raw, error) {
	data, err := r.ReadRange(0, r.footer.TotalSamples)
	if err != nil {
		return nil, err
	}
	out, err := raw.New(r.info.Copy(), data)
	if err != nil {
		return nil, err
	}
	out.SetAnnotations(r.annotations)
	return out, nil
}

// Close releases the file handle and decoder.
func (r *Reader) Close() error {
	if r.closed {
		return ErrClosed
	}
	r.closed = true
	r.dec.Close()
	return r.f.Close()
}

// Read loads a whole recording from path.
func Read(path string) (*raw.Raw, error) {
	r, err := Open(path)
	if err != nil {
		return nil, err
	}
	defer r.Close()
	return r.Raw()
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
