// Package font decodes the embedded bitmap fonts: header parsing,
// start/end character-number derivation, and 1-bit-per-pixel glyph
// extraction into image.Image. The glyph-unpacking loop does
// byte/bit offset arithmetic over a packed monochrome bitmap; the
// header layout and character-index math follow the original
// library's eb_initialize_wide_font / eb_wide_character_bitmap_jis.
package font

import (
	"encoding/binary"
	"fmt"
	"image"
	"image/color"

	"github.com/mistydemeo/eb-sub000/internal/zio"
)

// Height is a font's point size; these four are the only ones the
// format defines.
type Height int

const (
	Height16 Height = 16
	Height24 Height = 24
	Height30 Height = 30
	Height48 Height = 48
)

// Kind distinguishes the narrow (half-width) and wide (full-width)
// glyph sets.
type Kind int

const (
	Narrow Kind = iota
	Wide
)

// CharCode mirrors ebx.CharCode without importing the root package.
type CharCode int

const (
	CharCodeISO8859_1 CharCode = iota
	CharCodeJISX0208
	CharCodeJISX0208GB2312
)

const headerSize = 16

// widths maps (kind, height) to pixel width; heights double as pixel
// height directly.
var widths = map[Kind]map[Height]int{
	Narrow: {Height16: 8, Height24: 16, Height30: 16, Height48: 24},
	Wide:   {Height16: 16, Height24: 24, Height30: 32, Height48: 48},
}

// Width returns the glyph width in pixels for kind/height.
func Width(kind Kind, height Height) int {
	return widths[kind][height]
}

// Info is one font's parsed header: the character range it covers and
// where its first glyph page begins.
type Info struct {
	Kind   Kind
	Height Height
	Start  int
	End    int
	Page   int // 1-based page of the first glyph, as in ebx.Position
}

// ReadHeader reads the 16-byte font header at the font's start page
// and derives the start/end character-number pair. charCode selects
// the stride between rows of the character-number space: 0x5e for JIS
// X 0208 (rows 0x21..0x7e), 0xfe for ISO-8859-1 (rows 0x01..0xfe).
func ReadHeader(stream *zio.Stream, page int, kind Kind, height Height, charCode CharCode) (Info, error) {
	if _, err := stream.Lseek(int64(page-1)*int64(zio.PageSize), zio.SeekStart); err != nil {
		return Info{}, fmt.Errorf("font: seek header: %w", err)
	}
	buf := make([]byte, headerSize)
	if err := stream.ReadFull(buf); err != nil {
		return Info{}, fmt.Errorf("font: read header: %w", err)
	}

	count := int(binary.BigEndian.Uint16(buf[12:14]))
	if count == 0 {
		return Info{}, fmt.Errorf("font: %w: empty font", errNoGlyphs)
	}
	start := int(binary.BigEndian.Uint16(buf[10:12]))

	var end int
	if charCode == CharCodeISO8859_1 {
		end = start + ((count/0xfe)<<8 + count%0xfe) - 1
		if end&0xff > 0xfe {
			end += 3
		}
	} else {
		end = start + ((count/0x5e)<<8 + count%0x5e) - 1
		if end&0xff > 0x7e {
			end += 0xa3
		}
	}

	return Info{Kind: kind, Height: height, Start: start, End: end, Page: page}, nil
}

var errNoGlyphs = fmt.Errorf("font has zero characters")

// Glyph reads and decodes one character's bitmap as a 1-bit image,
// black on transparent. charNumber is the packed (high-byte, low-byte)
// character code used throughout this format (e.g. 0x2121).
func Glyph(stream *zio.Stream, info Info, charCode CharCode, charNumber int) (image.Image, error) {
	stride := 0x5e
	if charCode == CharCodeISO8859_1 {
		stride = 0xfe
	}
	lowMin, lowMax := 0x21, 0x7e
	if charCode == CharCodeISO8859_1 {
		lowMin, lowMax = 0x01, 0xfe
	}

	if charNumber < info.Start || info.End < charNumber ||
		charNumber&0xff < lowMin || lowMax < charNumber&0xff {
		return nil, fmt.Errorf("font: %w: character %#x out of range", errNoGlyphs, charNumber)
	}

	width := widths[info.Kind][info.Height]
	height := int(info.Height)
	size := (width / 8) * height

	// Glyph data begins one page after the 16-byte font header's page,
	// packed in 1024-byte blocks of whole bitmaps.
	charIndex := ((charNumber>>8)-(info.Start>>8))*stride + (charNumber&0xff - info.Start&0xff)
	perBlock := 1024 / size
	location := int64(info.Page)*int64(zio.PageSize) +
		int64(charIndex/perBlock)*1024 + int64(charIndex%perBlock)*int64(size)

	if _, err := stream.Lseek(location, zio.SeekStart); err != nil {
		return nil, fmt.Errorf("font: seek glyph: %w", err)
	}
	bitmap := make([]byte, size)
	if err := stream.ReadFull(bitmap); err != nil {
		return nil, fmt.Errorf("font: read glyph: %w", err)
	}

	img := image.NewGray(image.Rect(0, 0, width, height))
	rowBytes := width / 8
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			byteOff := y*rowBytes + x/8
			bitOff := 7 - x%8
			if bitmap[byteOff]&(1<<uint(bitOff)) != 0 {
				img.SetGray(x, y, color.Gray{Y: 0})
			} else {
				img.SetGray(x, y, color.Gray{Y: 255})
			}
		}
	}
	return img, nil
}
