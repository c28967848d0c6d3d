package ebx

import (
	"fmt"
	"image"
	"path/filepath"

	"github.com/mistydemeo/eb-sub000/internal/blockdev"
	"github.com/mistydemeo/eb-sub000/internal/font"
	"github.com/mistydemeo/eb-sub000/internal/zio"
)

// FontHeight is the four point sizes the format defines: up to 4
// narrow and 4 wide fonts per subbook, indexed by height code.
type FontHeight = font.Height

const (
	FontHeight16 = font.Height16
	FontHeight24 = font.Height24
	FontHeight30 = font.Height30
	FontHeight48 = font.Height48
)

// FontKind distinguishes narrow (half-width) from wide (full-width)
// glyph sets.
type FontKind = font.Kind

const (
	FontNarrow = font.Narrow
	FontWide   = font.Wide
)

// Font is one bitmap font in one subbook.
type Font struct {
	subbook   *Subbook
	stream    *zio.Stream
	info      font.Info
	available bool
}

// Height reports this font's point size.
func (f *Font) Height() FontHeight { return f.info.Height }

// Kind reports whether this is the narrow or wide glyph set.
func (f *Font) Kind() FontKind { return f.info.Kind }

// Start/End return the font's character-number range.
func (f *Font) Start() int { return f.info.Start }
func (f *Font) End() int   { return f.info.End }

// Available reports whether this font slot holds real glyph data.
func (f *Font) Available() bool { return f.available }

// Glyph decodes one character's bitmap, addressed by its packed
// (row<<8|cell) character number, as a 1-bit image.
func (f *Font) Glyph(charNumber int) (image.Image, error) {
	if !f.available {
		return nil, fmt.Errorf("ebx: %w", ErrNoCurrentFont)
	}
	return font.Glyph(f.stream, f.info, f.subbook.book.CharCode.toFontCharCode(), charNumber)
}

// FontList returns the sorted list of font heights available in kind
// for sb.
func (sb *Subbook) FontList(kind FontKind) []FontHeight {
	var heights [4]FontHeight
	var arr *[4]*Font
	if kind == FontNarrow {
		arr = &sb.narrowFonts
	} else {
		arr = &sb.wideFonts
	}
	var out []FontHeight
	heights = [4]FontHeight{FontHeight16, FontHeight24, FontHeight30, FontHeight48}
	for i, h := range heights {
		if arr[i] != nil {
			out = append(out, h)
		}
	}
	return out
}

// SetFont opens (EPWING) or selects (EB) the font of the given
// kind/height as the subbook's current font.
func (sb *Subbook) SetFont(kind FontKind, height FontHeight) (*Font, error) {
	idx := heightIndex(height)
	var arr *[4]*Font
	var cur *int
	if kind == FontNarrow {
		arr = &sb.narrowFonts
		cur = &sb.curNarrow
	} else {
		arr = &sb.wideFonts
		cur = &sb.curWide
	}

	f := arr[idx]
	if f == nil && sb.book.Disc == DiscEPWING {
		var err error
		f, err = sb.openEPWINGFont(kind, height)
		if err != nil {
			return nil, err
		}
		arr[idx] = f
	}
	if f == nil {
		return nil, fmt.Errorf("ebx: %w", ErrNoSuchFont)
	}
	*cur = idx
	return f, nil
}

// CurrentFont returns the subbook's current font of kind, or nil if
// none has been set.
func (sb *Subbook) CurrentFont(kind FontKind) *Font {
	if kind == FontNarrow {
		if sb.curNarrow < 0 {
			return nil
		}
		return sb.narrowFonts[sb.curNarrow]
	}
	if sb.curWide < 0 {
		return nil
	}
	return sb.wideFonts[sb.curWide]
}

// openEPWINGFont opens an EPWING font's dedicated file under the
// subbook's gaiji/ directory and parses its 16-byte font header.
func (sb *Subbook) openEPWINGFont(kind FontKind, height FontHeight) (*Font, error) {
	idx := heightIndex(height)
	var name string
	if kind == FontNarrow {
		name = sb.narrowFontFiles[idx]
	} else {
		name = sb.wideFontFiles[idx]
	}
	if name == "" {
		return nil, fmt.Errorf("ebx: %w", ErrNoSuchFont)
	}

	gaijiDir := filepath.Join(sb.dirPath, epwingGaijiDir)
	dev, err := blockdev.Open(filepath.Join(gaijiDir, name))
	if err != nil {
		return nil, fmt.Errorf("ebx: %w: %v", ErrOpenFailed, err)
	}
	stream, err := zio.Open(dev, zio.KindPlain, zio.Params{})
	if err != nil {
		return nil, fmt.Errorf("ebx: %w: %v", ErrOpenFailed, err)
	}

	info, err := font.ReadHeader(stream, 1, kind, height, sb.book.CharCode.toFontCharCode())
	if err != nil {
		stream.Close()
		return nil, fmt.Errorf("ebx: %w: %v", ErrUnexpectedFormat, err)
	}
	return &Font{subbook: sb, stream: stream, info: info, available: true}, nil
}
