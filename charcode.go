package ebx

import (
	"github.com/mistydemeo/eb-sub000/internal/font"
	"github.com/mistydemeo/eb-sub000/internal/text"
)

// CharCode is a book's document character code. Values match the
// reference library's EB_Character_Code constants directly rather
// than starting at zero, since EB_CHARCODE_INVALID (-1) is a real
// sentinel the original API returns and a reader familiar with the
// format will expect the same numbering.
type CharCode int

const (
	CharCodeInvalid        CharCode = -1
	CharCodeISO8859_1      CharCode = 1
	CharCodeJISX0208       CharCode = 2
	CharCodeJISX0208GB2312 CharCode = 3
)

func (c CharCode) String() string {
	switch c {
	case CharCodeISO8859_1:
		return "iso8859-1"
	case CharCodeJISX0208:
		return "jisx0208"
	case CharCodeJISX0208GB2312:
		return "jisx0208/gb2312"
	default:
		return "invalid"
	}
}

// toTextDocCode/toFontCharCode translate the public CharCode into the
// small duplicated enums internal/text and internal/font each carry,
// so that neither package needs to import the root package.
func (c CharCode) toTextDocCode() text.DocCode {
	switch c {
	case CharCodeISO8859_1:
		return text.DocISO8859_1
	case CharCodeJISX0208GB2312:
		return text.DocJISX0208GB2312
	default:
		return text.DocJISX0208
	}
}

func (c CharCode) toFontCharCode() font.CharCode {
	switch c {
	case CharCodeISO8859_1:
		return font.CharCodeISO8859_1
	case CharCodeJISX0208GB2312:
		return font.CharCodeJISX0208GB2312
	default:
		return font.CharCodeJISX0208
	}
}
