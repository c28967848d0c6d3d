// Package catalog parses CATALOG/CATALOGS, the per-subbook index
// directory that lives in page 1 of every subbook's text stream, and
// the bitmap-font header that starts each font file. Record layouts
// and the known-broken-title fixups are grounded in the original
// library's eb_initialize_catalog (book.c) and eb_initialize_indexes
// (subbook.c).
package catalog

import (
	"encoding/binary"
	"fmt"
)

// Kind distinguishes the two catalog record formats.
type Kind int

const (
	EB Kind = iota
	EPWING
)

const (
	ebRecordSize     = 40
	ebTitleLength    = 30
	epwingRecordSize = 164
	epwingTitleLen   = 80

	directoryNameLength = 8
	maxSubbooks         = 50
	maxFontsPerWidth    = 4
)

// Record is one subbook entry read out of CATALOG/CATALOGS, before any
// character-code conversion is applied to its title.
type Record struct {
	TitleRaw        []byte // verbatim catalog bytes, space-padded
	Directory       string
	IndexPage       int      // always 1 for EB; read from the record for EPWING
	NarrowFontFiles [maxFontsPerWidth]string
	WideFontFiles   [maxFontsPerWidth]string
}

// Header is the catalog's leading 16-byte block.
type Header struct {
	Kind         Kind
	SubbookCount int
	Version      int // EPWING only
}

// Parse reads the 16-byte catalog header followed by SubbookCount
// fixed-size records. buf must hold the whole catalog file (it is
// small: at most 16 + 50*164 bytes).
func Parse(buf []byte, kind Kind) (Header, []Record, error) {
	if len(buf) < 16 {
		return Header{}, nil, fmt.Errorf("catalog: %w: truncated header", ErrMalformed)
	}

	h := Header{Kind: kind}
	h.SubbookCount = int(binary.BigEndian.Uint16(buf[0:2]))
	if h.SubbookCount > maxSubbooks {
		h.SubbookCount = maxSubbooks
	}
	if h.SubbookCount == 0 {
		return Header{}, nil, fmt.Errorf("catalog: %w: zero subbooks", ErrMalformed)
	}
	if kind == EPWING {
		h.Version = int(buf[3])
	}

	recSize := ebRecordSize
	titleLen := ebTitleLength
	if kind == EPWING {
		recSize = epwingRecordSize
		titleLen = epwingTitleLen
	}

	records := make([]Record, 0, h.SubbookCount)
	off := 16
	for i := 0; i < h.SubbookCount; i++ {
		if off+recSize > len(buf) {
			return Header{}, nil, fmt.Errorf("catalog: %w: truncated record %d", ErrMalformed, i)
		}
		rec := buf[off : off+recSize]
		off += recSize

		r := Record{}
		r.TitleRaw = append([]byte(nil), rec[2:2+titleLen]...)

		dirField := rec[2+titleLen : 2+titleLen+directoryNameLength]
		r.Directory = trimSpacePadded(dirField)

		if kind == EB {
			r.IndexPage = 1
		} else {
			r.IndexPage = int(binary.BigEndian.Uint16(rec[2+titleLen+directoryNameLength+4 : 2+titleLen+directoryNameLength+6]))

			wideBase := 2 + titleLen + 18
			narrowBase := 2 + titleLen + 50
			for j := 0; j < maxFontsPerWidth; j++ {
				wf := rec[wideBase+j*directoryNameLength : wideBase+(j+1)*directoryNameLength]
				if isValidFontFileField(wf) {
					r.WideFontFiles[j] = trimSpacePadded(wf)
				}
				nf := rec[narrowBase+j*directoryNameLength : narrowBase+(j+1)*directoryNameLength]
				if isValidFontFileField(nf) {
					r.NarrowFontFiles[j] = trimSpacePadded(nf)
				}
			}
		}

		records = append(records, r)
	}

	return h, records, nil
}

// isValidFontFileField mirrors eb_initialize_catalog's skip rule: a
// font filename slot is absent if its first byte is NUL or has the
// high bit set (the latter only ever happens when the slot overlaps
// the next subbook's title in malformed catalogs).
func isValidFontFileField(field []byte) bool {
	return len(field) > 0 && field[0] != 0 && field[0] < 0x80
}

func trimSpacePadded(b []byte) string {
	end := len(b)
	for end > 0 && (b[end-1] == ' ' || b[end-1] == 0) {
		end--
	}
	return string(b[:end])
}

// ErrMalformed reports a catalog that doesn't parse as the chosen Kind.
var ErrMalformed = fmt.Errorf("malformed catalog")

// misleadedTitles lists the first-subbook titles of books whose
// catalog falsely claims the document character code, taken verbatim
// from the reference library's misleaded_book_table: each is compared
// byte-for-byte against the pre-conversion raw title of subbook 0.
var misleadedTitles = [][]byte{
	[]byte("%;%s%A%e%j!\\%S%8%M%9!\\%/%i%&%s"), // SONY DataDiskMan (DD-DR1) accessories
	[]byte("8&5f<R!!?71QOBCf<-E5"),              // Shin Eiwa Waei Chujiten (earliest edition)
	[]byte("#E#B2J3X5;=QMQ8lBg<-E5"),             // EB Kagakugijutsu Yougo Daijiten (YRRS-048)
}

// IsMisleaded reports whether firstSubbookTitleRaw (Record.TitleRaw of
// subbook 0, trimmed of its trailing space padding) matches one of the
// known books whose catalog lies about its character code. Binding
// forces the document code to JIS X 0208 and re-decodes every title
// when this returns true.
func IsMisleaded(firstSubbookTitleRaw []byte) bool {
	trimmed := trimSpacePadded(firstSubbookTitleRaw)
	for _, want := range misleadedTitles {
		if trimmed == string(want) {
			return true
		}
	}
	return false
}
