// Package zio virtualises the four physical encodings a book's text,
// graphic, sound, and font streams can be stored in — plain, EBZIP
// (deflate), EPWING (static Huffman), and S-EBXA (LZSS-like) — behind
// one seek/read interface, with a shared single-slot decompressed-page
// cache (see cache.go).
//
// The slice-table + decode + shared-cache shape generalises the
// chunk-table walk used for a single fixed codec (zlib over a
// disk-image chunk table) elsewhere in this module, extended here to
// the four codecs this format actually uses.
package zio

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/mistydemeo/eb-sub000/internal/blockdev"
)

// Kind is the physical encoding of one stream.
type Kind int

const (
	KindInvalid Kind = iota
	KindPlain
	KindEBZIP
	KindEPWING
	KindEPWING6
	KindSEBXA
)

func (k Kind) String() string {
	switch k {
	case KindPlain:
		return "plain"
	case KindEBZIP:
		return "ebzip"
	case KindEPWING:
		return "epwing"
	case KindEPWING6:
		return "epwing6"
	case KindSEBXA:
		return "s-ebxa"
	default:
		return "invalid"
	}
}

// codec is the per-encoding strategy a Stream delegates to. Every
// codec is built once at Open time from the stream header and is
// immutable afterwards; the only mutable state a Stream carries is
// its current read offset, which lives outside the codec.
type codec interface {
	// fileSize is the logical (uncompressed) size of the stream.
	fileSize() int64
	// sliceSize is this codec's decompression unit.
	sliceSize() int
	// decodeSlice fills out (len == sliceSize, except an undersized
	// trailing slice) with the decoded bytes of slice index idx. The
	// returned length is the number of meaningful bytes; callers
	// zero-fill the rest themselves when short.
	decodeSlice(dev blockdev.Device, idx int64, out []byte) (int, error)
}

var nextStreamID uint64

func allocID() uint64 {
	return atomic.AddUint64(&nextStreamID, 1)
}

// Stream is a virtualised file: the caller sees the uncompressed
// view and never touches compressed bytes directly.
type Stream struct {
	mu    sync.Mutex
	kind  Kind
	id    uint64
	dev   blockdev.Device
	codec codec
	pos   int64
}

// Params carries the codec-specific open-time configuration. Only the
// fields relevant to Kind need be set; see the per-codec Open* helpers
// for the canonical way to build one.
type Params struct {
	// EBZIP / EPWING / EPWING6 share: byte offsets into dev where the
	// codec header lives (always 0 for a dedicated stream file).
	HeaderOffset int64

	// S-EBXA: the compressed sub-range and parallel index table this
	// stream is layered over. Zero value means "no S-EBXA overlay";
	// reads pass straight through to the plain codec.
	SEBXAStart     int64
	SEBXAEnd       int64
	SEBXAIndexLoc  int64
	SEBXAIndexBase int64
}

// Open builds a Stream of the given kind over dev, parsing whatever
// codec header that kind requires.
func Open(dev blockdev.Device, kind Kind, p Params) (*Stream, error) {
	size, err := dev.Size()
	if err != nil {
		return nil, fmt.Errorf("zio: stat: %w", err)
	}

	var c codec
	switch kind {
	case KindPlain:
		c, err = newPlainCodec(dev, size)
	case KindEBZIP:
		c, err = newEBZIPCodec(dev, p.HeaderOffset)
	case KindEPWING:
		c, err = newEPWINGCodec(dev, p.HeaderOffset, false)
	case KindEPWING6:
		c, err = newEPWINGCodec(dev, p.HeaderOffset, true)
	case KindSEBXA:
		c, err = newSEBXACodec(dev, size, p)
	default:
		return nil, fmt.Errorf("zio: %w: unknown stream kind %d", ErrInvalidStream, kind)
	}
	if err != nil {
		return nil, err
	}

	return &Stream{kind: kind, id: allocID(), dev: dev, codec: c}, nil
}

// Reopen rebinds an already-parsed Stream to a new device handle
// without reparsing its header — "same underlying file, preserve
// codec state" per the spec's reopen sentinel. It exists so a font
// that borrows a subbook's text-stream fd, or a graphic stream that
// aliases the text file, can get its own *os.File without paying for
// a second header parse.
func (s *Stream) Reopen(dev blockdev.Device) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dev = dev
	s.pos = 0
}

// Close marks the stream invalid. Further operations fail fast.
func (s *Stream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.dev == nil {
		return nil
	}
	err := s.dev.Close()
	s.dev = nil
	s.kind = KindInvalid
	return err
}

// Invalid reports whether this stream may never be touched again —
// either it failed to open, or a prior read error poisoned it.
func (s *Stream) Invalid() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.kind == KindInvalid
}

func (s *Stream) invalidate() {
	s.kind = KindInvalid
	invalidateIfOwner(s.id)
}

// Size returns the stream's logical (uncompressed) length.
func (s *Stream) Size() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.codec == nil {
		return 0
	}
	return s.codec.fileSize()
}

// EBZIPCRC32 returns the CRC-32 stored in an EBZIP stream's header and
// true, or (0, false) for any other Kind. cmd/ebzipverify uses this to
// check a fully-decoded stream against the checksum the compressor
// recorded, the same parsed-struct-vs-stored-digest pattern used
// elsewhere in this module's verification tooling.
func (s *Stream) EBZIPCRC32() (uint32, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.codec.(*ebzipCodec)
	if !ok {
		return 0, false
	}
	return c.CRC32(), true
}

// Whence mirrors io.Seek* without importing io for this tiny surface.
type Whence int

const (
	SeekStart Whence = iota
	SeekCurrent
	SeekEnd
)

// Lseek repositions the stream and returns the new absolute offset.
func (s *Stream) Lseek(offset int64, whence Whence) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.kind == KindInvalid {
		return 0, fmt.Errorf("zio: %w", ErrInvalidStream)
	}

	var next int64
	switch whence {
	case SeekStart:
		next = offset
	case SeekCurrent:
		next = s.pos + offset
	case SeekEnd:
		next = s.codec.fileSize() + offset
	default:
		return 0, fmt.Errorf("zio: seek: invalid whence %d", whence)
	}
	if next < 0 {
		s.invalidate()
		return 0, fmt.Errorf("zio: %w: negative offset", ErrSeekFailed)
	}
	s.pos = next
	return s.pos, nil
}

// Tell returns the stream's current offset without moving it.
func (s *Stream) Tell() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pos
}

// Read fills buf with up to len(buf) uncompressed bytes starting at
// the stream's current position, advancing it by the number of bytes
// actually read. Read never reads past fileSize; a read starting at
// or beyond fileSize returns (0, nil), mirroring EOF without a
// dedicated sentinel (callers compare against fileSize themselves,
// same as the original library's ssize_t return).
func (s *Stream) Read(buf []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.kind == KindInvalid {
		return 0, fmt.Errorf("zio: %w", ErrInvalidStream)
	}

	total := 0
	size := s.codec.fileSize()
	slice := s.codec.sliceSize()
	for total < len(buf) && s.pos < size {
		idx := s.pos / int64(slice)
		sliceOff := int(s.pos % int64(slice))

		data, err := fetchSlice(s.id, idx, slice, func(out []byte) (int, error) {
			return s.codec.decodeSlice(s.dev, idx, out)
		})
		if err != nil {
			s.invalidate()
			return total, fmt.Errorf("zio: %w: %v", ErrReadFailed, err)
		}

		avail := len(data) - sliceOff
		if avail <= 0 {
			break
		}
		// The last slice may decode to full length with a zero-filled
		// tail; never hand those pad bytes past fileSize to the caller.
		if rest := size - s.pos; int64(avail) > rest {
			avail = int(rest)
		}
		n := copy(buf[total:], data[sliceOff:sliceOff+avail])
		total += n
		s.pos += int64(n)
	}
	return total, nil
}

// ReadFull is a convenience used by the catalog/font layers that need
// exactly n bytes or an error (partial reads are reported truthfully,
// never silently as success).
func (s *Stream) ReadFull(buf []byte) error {
	n, err := s.Read(buf)
	if err != nil {
		return err
	}
	if n != len(buf) {
		return fmt.Errorf("zio: %w: wanted %d bytes, got %d", ErrReadFailed, len(buf), n)
	}
	return nil
}
