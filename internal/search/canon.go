package search

import "strings"

// Style is one of the ten per-feature fold rules a Search descriptor
// carries: whether canonicalisation treats the matching input as-is,
// converts it to a fixed form, or deletes it.
type Style int

const (
	StyleAsis Style = iota
	StyleConvert
	StyleDelete
)

// IndexStyle bundles the ten independent fold rules read out of a
// subbook-header index record's style-flags field.
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

// Canonicalize folds a verbatim EUC-JP or ISO-8859-1 query according
// to style, the way the index descent compares canonical-to-canonical
// in intermediate pages. For ISO-8859-1 books this collapses to a
// case fold; for JIS books, case-folding only affects the second
// byte of a full-width alphanumeric pair (row 0x23, EUC 0xa3) and
// katakana-to-hiragana folding only affects rows 0x24/0x25 (EUC
// 0xa4/0xa5) — the two-byte row/cell structure EUC-JP shares with the
// underlying JIS X 0208 table.
func Canonicalize(word []byte, style IndexStyle, latin bool) []byte {
	if latin {
		return []byte(strings.ToLower(string(word)))
	}

	var out []byte
	for i := 0; i+1 < len(word); i += 2 {
		row, cell := word[i], word[i+1]
		switch {
		case row == 0xa1 && cell == 0xa1 && style.Space == StyleDelete:
			// Full-width space.
			continue
		case row == 0xa3 && style.Lower == StyleConvert:
			// Full-width alphabet: fold to the lowercase form.
			if cell >= 0xc1 && cell <= 0xda {
				cell += 0x20
			}
		case row == 0xa5 && style.Katakana == StyleConvert:
			// Full-width katakana -> hiragana: same cell, row 0xa4.
			row = 0xa4
		}
		out = append(out, row, cell)
	}
	if len(word)%2 == 1 {
		out = append(out, word[len(word)-1])
	}
	return out
}
