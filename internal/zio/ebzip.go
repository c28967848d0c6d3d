package zio

import (
	"bytes"
	"compress/zlib"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/mistydemeo/eb-sub000/internal/blockdev"
)

const (
	ebzipHeaderSize = 22
	ebzip1Code      = 1
	maxEBZIPLevel   = 3
)

var ebzipMagic = [5]byte{'E', 'B', 'Z', 'i', 'p'}

// ebzipCodec follows the familiar fixed-header-plus-index-table
// shape: a fixed header, an index table of slice
// offsets, and a zlib.NewReader call per slice.
type ebzipCodec struct {
	headerOffset int64
	size         int64
	sliceLen     int
	indexWidth   int // bytes per index-table entry: 2, 3, or 4
	crc          uint32
	mtime        uint32
}

func newEBZIPCodec(dev blockdev.Device, headerOffset int64) (codec, error) {
	var hdr [ebzipHeaderSize]byte
	if _, err := dev.ReadAt(hdr[:], headerOffset); err != nil {
		return nil, fmt.Errorf("zio: ebzip header: %w", err)
	}
	if !bytes.Equal(hdr[:5], ebzipMagic[:]) {
		return nil, fmt.Errorf("zio: ebzip header: %w: bad magic", ErrBadHeader)
	}

	code := hdr[5] >> 4
	level := hdr[5] & 0x0f
	if code != ebzip1Code {
		return nil, fmt.Errorf("zio: ebzip header: %w: unsupported codec id %d", ErrBadHeader, code)
	}
	if level > maxEBZIPLevel {
		return nil, fmt.Errorf("zio: ebzip header: %w: zip level %d exceeds max", ErrBadHeader, level)
	}
	sliceSize := PageSize << level

	fileSize := int64(binary.BigEndian.Uint32(hdr[10:14]))
	crc := binary.BigEndian.Uint32(hdr[14:18])
	mtime := binary.BigEndian.Uint32(hdr[18:22])

	var indexWidth int
	switch {
	case fileSize < 1<<16:
		indexWidth = 2
	case fileSize < 1<<24:
		indexWidth = 3
	default:
		indexWidth = 4
	}

	return &ebzipCodec{
		headerOffset: headerOffset,
		size:         fileSize,
		sliceLen:     sliceSize,
		indexWidth:   indexWidth,
		crc:          crc,
		mtime:        mtime,
	}, nil
}

func (c *ebzipCodec) fileSize() int64 { return c.size }
func (c *ebzipCodec) sliceSize() int  { return c.sliceLen }

// CRC32 returns the stored CRC of the uncompressed stream, used only
// by bulk-verification tooling (cmd/ebzipverify); streaming reads
// never check it.
func (c *ebzipCodec) CRC32() uint32 { return c.crc }

func (c *ebzipCodec) readIndexEntry(dev blockdev.Device, slot int64) (int64, error) {
	buf := make([]byte, c.indexWidth)
	off := c.headerOffset + ebzipHeaderSize + slot*int64(c.indexWidth)
	if _, err := dev.ReadAt(buf, off); err != nil {
		return 0, fmt.Errorf("zio: ebzip index entry %d: %w", slot, err)
	}
	switch c.indexWidth {
	case 2:
		return int64(binary.BigEndian.Uint16(buf)), nil
	case 3:
		return int64(buf[0])<<16 | int64(buf[1])<<8 | int64(buf[2]), nil
	default:
		return int64(binary.BigEndian.Uint32(buf)), nil
	}
}

func (c *ebzipCodec) decodeSlice(dev blockdev.Device, idx int64, out []byte) (int, error) {
	start, err := c.readIndexEntry(dev, idx)
	if err != nil {
		return 0, err
	}
	end, err := c.readIndexEntry(dev, idx+1)
	if err != nil {
		return 0, err
	}
	zippedSize := end - start
	if zippedSize <= 0 || int64(c.sliceLen) < zippedSize {
		return 0, fmt.Errorf("zio: ebzip slice %d: %w: bad compressed size %d", idx, ErrBadHeader, zippedSize)
	}

	// A compressed size equal to the slice size means the slice was
	// stored raw.
	if zippedSize == int64(c.sliceLen) {
		n, err := dev.ReadAt(out, start)
		return n, err
	}

	compressed := make([]byte, zippedSize)
	if _, err := dev.ReadAt(compressed, start); err != nil {
		return 0, fmt.Errorf("zio: ebzip slice %d: %w", idx, err)
	}

	zr, err := zlib.NewReader(bytes.NewReader(compressed))
	if err != nil {
		return 0, fmt.Errorf("zio: ebzip slice %d: inflate: %w", idx, err)
	}
	defer zr.Close()

	n, err := io.ReadFull(zr, out)
	if err != nil && err != io.ErrUnexpectedEOF {
		return 0, fmt.Errorf("zio: ebzip slice %d: inflate: %w", idx, err)
	}
	// An undersized final slice inflates short; the tail is zero
	// padding as far as the uncompressed view is concerned.
	for i := n; i < len(out); i++ {
		out[i] = 0
	}
	return len(out), nil
}
