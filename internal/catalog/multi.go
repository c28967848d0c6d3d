package catalog

import (
	"encoding/binary"

	"github.com/mistydemeo/eb-sub000/internal/jiscode"
)

// multi sub-index id tags, read from the 16-byte per-index records
// that follow each entry's label (eb_load_multi_searches, multi.c).
const (
	multiIDEndwordAsis = 0x71
	multiIDWordAsis    = 0x91
	multiIDWordAsisAlt = 0xa1
	multiIDCandidates  = 0x01
)

const (
	maxMultiLabelLength = 30
	maxMultiEntryCount  = 5
)

// MultiEntry is one labelled sub-index within a multi search's index
// table page: a title plus the start page of its word index and,
// optionally, a separate candidates page.
type MultiEntry struct {
	Label          string
	StartPage      int
	CandidatesPage int
}

// ParseMultiPage parses one multi search's index table page (the page
// named by that search's IndexMulti record), per eb_load_multi_searches
// (multi.c): a 2-byte big-endian entry count at offset 0, followed by
// up to maxMultiEntryCount entries starting at offset 16, each a
// 1-byte index count plus a maxMultiLabelLength-byte JIS X 0208 label,
// followed by that many 16-byte (index_id, _, u32 page, ...) records.
func ParseMultiPage(buf []byte) ([]MultiEntry, error) {
	if len(buf) < 16 {
		return nil, ErrMalformed
	}
	entryCount := int(binary.BigEndian.Uint16(buf[0:2]))
	if entryCount > maxMultiEntryCount {
		return nil, ErrMalformed
	}

	entries := make([]MultiEntry, 0, entryCount)
	off := 16
	for i := 0; i < entryCount; i++ {
		if off+2+maxMultiLabelLength > len(buf) {
			return nil, ErrMalformed
		}
		indexCount := int(buf[off])
		labelRaw := buf[off+2 : off+2+maxMultiLabelLength]
		off += maxMultiLabelLength + 2

		label, _ := jiscode.ToUTF8(jiscode.ToEUC(trimMultiLabel(labelRaw)))
		entry := MultiEntry{Label: label}

		for k := 0; k < indexCount; k++ {
			if off+16 > len(buf) {
				return nil, ErrMalformed
			}
			id := buf[off]
			page := int(binary.BigEndian.Uint32(buf[off+2 : off+6]))
			switch id {
			case multiIDEndwordAsis:
				if entry.StartPage == 0 {
					entry.StartPage = page
				}
			case multiIDWordAsis, multiIDWordAsisAlt:
				entry.StartPage = page
			case multiIDCandidates:
				entry.CandidatesPage = page
			}
			off += 16
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

// trimMultiLabel cuts labelRaw at its first NUL, mirroring the C
// library's strncpy-then-NUL-terminate handling of a fixed-width field
// that is usually shorter than its reserved width.
func trimMultiLabel(labelRaw []byte) []byte {
	for i, b := range labelRaw {
		if b == 0 {
			return labelRaw[:i]
		}
	}
	return labelRaw
}
