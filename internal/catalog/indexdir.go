package catalog

import "encoding/binary"

// IndexID is the 8-bit tag identifying what a subbook-header index
// record describes (eb_initialize_indexes's switch over index_id).
type IndexID int

const (
	IndexSEBXAStart      IndexID = 0x00
	IndexMenu            IndexID = 0x01
	IndexCopyright       IndexID = 0x02
	IndexSEBXABase       IndexID = 0x21
	IndexSEBXATable      IndexID = 0x22
	IndexEndwordKana     IndexID = 0x70
	IndexEndwordAsis     IndexID = 0x71
	IndexEndwordAlphabet IndexID = 0x72
	IndexKeyword         IndexID = 0x80
	IndexWordKana        IndexID = 0x90
	IndexWordAsis        IndexID = 0x91
	IndexWordAlphabet    IndexID = 0x92
	IndexSound           IndexID = 0xd8
	IndexFontWide16      IndexID = 0xf1
	IndexFontNarrow16    IndexID = 0xf2
	IndexFontWide24      IndexID = 0xf3
	IndexFontNarrow24    IndexID = 0xf4
	IndexFontWide30      IndexID = 0xf5
	IndexFontNarrow30    IndexID = 0xf6
	IndexFontWide48      IndexID = 0xf7
	IndexFontNarrow48    IndexID = 0xf8
	IndexMulti           IndexID = 0xff
)

// Style is one of the ten per-feature fold rules packed into a
// record's style-flags field.
type Style int

const (
	StyleConvert Style = iota
	StyleAsis
	StyleDelete
)

// IndexStyle bundles the ten fold rules read from style-flags, plus
// the Space rule which isn't stored on disk but is derived from the
// book's document character code (ISO-8859-1 keeps spaces, JIS books
// delete them).
type IndexStyle struct {
	Katakana        Style
	Lower           Style
	Mark            Style
	LongVowel       Style
	DoubleConsonant Style
	ContractedSound Style
	VoicedConsonant Style
	SmallVowel      Style
	PSound          Style
	Space           Style
}

// twoBit maps a record's raw 2-bit field to a Style. 0/1/2 correspond
// to convert/asis/delete for every field except Mark, whose disk
// encoding is collapsed to a single bit (eb_initialize_indexes: 0
// means delete, nonzero means as-is).
func twoBit(v uint32) Style {
	switch v {
	case 0:
		return StyleConvert
	case 1:
		return StyleAsis
	default:
		return StyleDelete
	}
}

// IndexRecord is one 16-byte entry of a subbook's index directory
// (page 1 of its text stream): (id, _, u32 start_page, u32 page_count,
// availability, 24-bit style flags, _).
type IndexRecord struct {
	ID        IndexID
	StartPage int
	PageCount int
	Style     IndexStyle
}

const indexRecordSize = 16

// ParseIndexDirectory parses the "index count" byte and every 16-byte
// record of a subbook's first text page (buf must be at least one
// PageSize). globalAvailability is byte 4 of the same page, clamped to
// {0,1,2} as eb_initialize_indexes does; spaceDelete selects the
// non-stored Space rule from the book's document character code.
func ParseIndexDirectory(buf []byte, spaceDelete bool) ([]IndexRecord, error) {
	if len(buf) < 16 {
		return nil, ErrMalformed
	}
	count := int(buf[1])
	if count >= len(buf)/16-1 {
		return nil, ErrMalformed
	}
	globalAvailability := int(buf[4])
	if globalAvailability > 2 {
		globalAvailability = 0
	}

	records := make([]IndexRecord, 0, count)
	off := 16
	for i := 0; i < count; i++ {
		if off+indexRecordSize > len(buf) {
			return nil, ErrMalformed
		}
		rec := buf[off : off+indexRecordSize]
		off += indexRecordSize

		availability := int(rec[10])
		var style IndexStyle
		if (globalAvailability == 0 && availability == 2) || globalAvailability == 2 {
			flags := uint32(rec[11])<<16 | uint32(rec[12])<<8 | uint32(rec[13])
			style.Katakana = twoBit((flags & 0xc00000) >> 22)
			style.Lower = twoBit((flags & 0x300000) >> 20)
			if (flags&0x0c0000)>>18 == 0 {
				style.Mark = StyleDelete
			} else {
				style.Mark = StyleAsis
			}
			style.LongVowel = twoBit((flags & 0x030000) >> 16)
			style.DoubleConsonant = twoBit((flags & 0x00c000) >> 14)
			style.ContractedSound = twoBit((flags & 0x003000) >> 12)
			style.VoicedConsonant = twoBit((flags & 0x000c00) >> 10)
			style.SmallVowel = twoBit((flags & 0x000300) >> 8)
			style.PSound = twoBit((flags & 0x0000c0) >> 6)
		} else {
			style.Katakana = StyleConvert
			style.Lower = StyleConvert
			style.Mark = StyleDelete
			style.LongVowel = StyleConvert
			style.DoubleConsonant = StyleConvert
			style.ContractedSound = StyleConvert
			style.VoicedConsonant = StyleConvert
			style.SmallVowel = StyleConvert
			style.PSound = StyleConvert
		}
		if spaceDelete {
			style.Space = StyleDelete
		} else {
			style.Space = StyleAsis
		}

		records = append(records, IndexRecord{
			ID:        IndexID(rec[0]),
			StartPage: int(binary.BigEndian.Uint32(rec[2:6])),
			PageCount: int(binary.BigEndian.Uint32(rec[6:10])),
			Style:     style,
		})
	}
	return records, nil
}
