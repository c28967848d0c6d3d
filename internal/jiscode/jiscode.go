// Package jiscode converts the catalog's raw JIS X 0208 title bytes to
// EUC-JP, the encoding every text-stream byte in JIS mode is already
// emitted in (see internal/text), and optionally on to UTF-8 for
// callers that just want a displayable Go string.
package jiscode

import (
	"golang.org/x/text/encoding/japanese"
	"golang.org/x/text/transform"
)

// ToEUC converts a JIS X 0208 byte string, as stored verbatim in a
// catalog record, to EUC-JP. The catalog encodes JIS X 0208 with the
// high bit of every byte clear; EUC-JP is the same code points with
// the high bit set on both bytes of a character. Callers trim the
// record's space padding first — every remaining byte is half of a
// JIS character and gets its high bit set.
func ToEUC(raw []byte) []byte {
	out := make([]byte, len(raw))
	for i, b := range raw {
		out[i] = b | 0x80
	}
	return out
}

// ToUTF8 decodes EUC-JP bytes (as produced by ToEUC, or already
// EUC-JP from elsewhere) to a UTF-8 Go string. Invalid sequences are
// replaced rather than rejected, since a cosmetic title string should
// never stop a book from binding.
func ToUTF8(euc []byte) (string, error) {
	out, _, err := transform.Bytes(japanese.EUCJP.NewDecoder(), euc)
	if err != nil {
		return string(euc), err
	}
	return string(out), nil
}
