package zio

import (
	"encoding/binary"
	"fmt"

	"github.com/mistydemeo/eb-sub000/internal/blockdev"
)

const sebxaSliceSize = 4096

// sebxaCodec layers an LZSS-like scheme on top of a plain file over
// one compressed sub-range [start, end); everything outside that
// range is read straight through. This is the EB-side counterpart to
// EPWING's Huffman codec: same "index table of per-slice start
// offsets" shape as ebzipCodec, different slice decoder. The logical
// file size is the sub-range's end offset, since the compressed text
// is the last thing in the uncompressed view of a S-EBXA book.
type sebxaCodec struct {
	size      int64
	start     int64
	end       int64
	indexLoc  int64
	indexBase int64
}

func newSEBXACodec(dev blockdev.Device, size int64, p Params) (codec, error) {
	c := &sebxaCodec{
		size:      size,
		start:     p.SEBXAStart,
		end:       p.SEBXAEnd,
		indexLoc:  p.SEBXAIndexLoc,
		indexBase: p.SEBXAIndexBase,
	}
	if c.end > c.start {
		c.size = c.end
	}
	return c, nil
}

func (c *sebxaCodec) fileSize() int64 { return c.size }
func (c *sebxaCodec) sliceSize() int  { return sebxaSliceSize }

// compressedOffset returns the compressed-stream byte offset where
// sub-range slice k begins: the index base for k==0, or index_base
// plus a big-endian 32-bit entry from the index table otherwise.
func (c *sebxaCodec) compressedOffset(dev blockdev.Device, k int64) (int64, error) {
	if k <= 0 {
		return c.indexBase, nil
	}
	var buf [4]byte
	if _, err := dev.ReadAt(buf[:], c.indexLoc+4*(k-1)); err != nil {
		return 0, fmt.Errorf("zio: s-ebxa index entry %d: %w", k, err)
	}
	return c.indexBase + int64(binary.BigEndian.Uint32(buf[:])), nil
}

// decodeSlice fills out with the uncompressed bytes at [off, off+len).
// One output slice of the absolute grid can touch the plain prefix,
// the compressed sub-range, and the plain suffix, so each region is
// handled in turn; within the sub-range the decode unit is the
// 4096-byte slice grid anchored at the sub-range start.
func (c *sebxaCodec) decodeSlice(dev blockdev.Device, idx int64, out []byte) (int, error) {
	off := idx * sebxaSliceSize
	want := int64(len(out))
	if rest := c.size - off; rest < want {
		want = rest
	}
	if want <= 0 {
		return 0, nil
	}

	pos := int64(0)
	for pos < want {
		cur := off + pos

		if cur < c.start || cur >= c.end {
			n := want - pos
			if cur < c.start && c.start-cur < n {
				n = c.start - cur
			}
			if _, err := dev.ReadAt(out[pos:pos+n], cur); err != nil {
				return int(pos), fmt.Errorf("zio: s-ebxa plain range: %w", err)
			}
			pos += n
			continue
		}

		k := (cur - c.start) / sebxaSliceSize
		compStart, err := c.compressedOffset(dev, k)
		if err != nil {
			return int(pos), err
		}
		slice := make([]byte, sebxaSliceSize)
		if err := decodeSEBXASlice(dev, compStart, slice); err != nil {
			return int(pos), fmt.Errorf("zio: s-ebxa slice %d: %w", k, err)
		}

		sliceBase := c.start + k*sebxaSliceSize
		lo := cur - sliceBase
		hi := int64(sebxaSliceSize)
		if sliceBase+hi > c.end {
			hi = c.end - sliceBase
		}
		if lo+want-pos < hi {
			hi = lo + want - pos
		}
		pos += int64(copy(out[pos:], slice[lo:hi]))
	}
	return int(want), nil
}

// decodeSEBXASlice runs the control-byte/flag LZSS decode into out (a
// full 4096-byte slice): eight LSB-first flag bits per control byte
// select either a literal byte or a 2-byte back-reference into the
// slice's own output so far. The reference bytes split as
// [AAAA|BBBB][CCCC|DDDD] -> offset ([CCCCAAAABBBB]+18) mod 4096,
// length [DDDD]+3; a reference to a not-yet-written position reads as
// zero. The window starts empty each slice; there is no cross-slice
// carryover.
func decodeSEBXASlice(dev blockdev.Device, compStart int64, out []byte) error {
	devSize, err := dev.Size()
	if err != nil {
		return err
	}
	in := newByteCursor(dev, compStart, devSize)
	written := 0

	for written < len(out) {
		ctrl, ok := in.next()
		if !ok {
			// Input ran out at a chunk boundary: the final slice of a
			// sub-range whose length is not a slice multiple stops
			// short, and the rest of the window is padding.
			for i := written; i < len(out); i++ {
				out[i] = 0
			}
			return nil
		}
		for bit := 0; bit < 8 && written < len(out); bit++ {
			if (ctrl>>uint(bit))&1 == 1 {
				lit, ok := in.next()
				if !ok {
					return fmt.Errorf("zio: %w: s-ebxa literal past end of input", ErrReadFailed)
				}
				out[written] = lit
				written++
				continue
			}

			c0, ok0 := in.next()
			c1, ok1 := in.next()
			if !ok0 || !ok1 {
				return fmt.Errorf("zio: %w: s-ebxa back-reference past end of input", ErrReadFailed)
			}
			offset := ((int(c1&0xf0) << 4) + int(c0) + 18) % sebxaSliceSize
			length := int(c1&0x0f) + 3
			if written+length > len(out) {
				length = len(out) - written
			}

			if offset < written {
				for i := 0; i < length; i++ {
					out[written] = out[offset+i]
					written++
				}
			} else {
				for i := 0; i < length; i++ {
					out[written] = 0
					written++
				}
			}
		}
	}
	return nil
}

// byteCursor reads sequential bytes out of [start, end) on dev,
// buffering in sebxaSliceSize chunks so the literal-by-literal decode
// loop above doesn't issue a ReadAt per byte.
type byteCursor struct {
	dev  blockdev.Device
	pos  int64
	end  int64
	buf  []byte
	fill int
	idx  int
}

func newByteCursor(dev blockdev.Device, start, end int64) *byteCursor {
	return &byteCursor{dev: dev, pos: start, end: end, buf: make([]byte, sebxaSliceSize)}
}

func (b *byteCursor) next() (byte, bool) {
	if b.idx >= b.fill {
		if b.pos >= b.end {
			return 0, false
		}
		want := b.end - b.pos
		if want > int64(len(b.buf)) {
			want = int64(len(b.buf))
		}
		n, _ := b.dev.ReadAt(b.buf[:want], b.pos)
		if n <= 0 {
			return 0, false
		}
		b.fill = n
		b.idx = 0
		b.pos += int64(n)
	}
	v := b.buf[b.idx]
	b.idx++
	return v, true
}
