package ebx

import (
	"fmt"

	"github.com/mistydemeo/eb-sub000/internal/search"
	"golang.org/x/text/encoding/japanese"
)

const maxWordLength = 255

// Hit is one located occurrence, returned by every search method.
// The public shape drops the internal comparator/page-cursor
// bookkeeping a search needs mid-descent and exposes only the two
// Positions a caller acts on.
type Hit struct {
	Text    Position
	Heading Position
}

func toHit(h search.Hit) Hit {
	return Hit{
		Text:    Position{Page: h.TextPage, Offset: h.TextOffset},
		Heading: Position{Page: h.HeadingPage, Offset: h.HeadingOffset},
	}
}

// wordClass mirrors eb_set_word's EB_Word_Code classification: which
// of the word-asis/kana/alphabet (or endword-asis/kana/alphabet)
// sub-indices a query is looked up in, with asis as the universal
// fallback when the specific one is absent.
type wordClass int

const (
	classAlpha wordClass = iota
	classKana
	classOther
)

func classify(verbatim []byte) wordClass {
	if len(verbatim) == 0 {
		return classOther
	}
	if verbatim[0] < 0x80 {
		return classAlpha
	}
	if len(verbatim) >= 2 && (verbatim[0] == 0xa4 || verbatim[0] == 0xa5 || verbatim[0] == 0xa6) {
		return classKana
	}
	return classOther
}

// encodeQuery converts a caller-supplied Go string into the byte
// encoding a subbook's streams and indices are stored in: EUC-JP
// (high bit set on both bytes of a JIS X 0208 character) for JIS-mode
// books, Latin-1 for ISO-8859-1 books.
func encodeQuery(word string, code CharCode) ([]byte, error) {
	if code == CharCodeISO8859_1 {
		out := make([]byte, 0, len(word))
		for _, r := range word {
			if r > 0xff {
				return nil, fmt.Errorf("ebx: %w: non-Latin-1 rune %q", ErrBadWord, r)
			}
			out = append(out, byte(r))
		}
		return out, nil
	}
	out, err := japanese.EUCJP.NewEncoder().String(word)
	if err != nil {
		return nil, fmt.Errorf("ebx: %w: %v", ErrBadWord, err)
	}
	return []byte(out), nil
}

// resolveWordIndex picks the method/fallback pair eb_set_word would,
// given the word's class and which of the three sub-indices sb
// actually has.
func resolveWordIndex(sb *Subbook, class wordClass, alpha, kana, asis SearchMethod) (SearchMethod, error) {
	switch class {
	case classAlpha:
		if sb.HaveSearch(alpha) {
			return alpha, nil
		}
	case classKana:
		if sb.HaveSearch(kana) {
			return kana, nil
		}
	}
	if sb.HaveSearch(asis) {
		return asis, nil
	}
	return 0, fmt.Errorf("ebx: %w", ErrNoSuchSearch)
}

func (sb *Subbook) descend(method SearchMethod, canonical, verbatim []byte, cmp search.Comparator, limit int) ([]Hit, error) {
	desc, ok := sb.searches[method]
	if !ok || desc.StartPage == 0 {
		return nil, fmt.Errorf("ebx: %w", ErrNoSuchSearch)
	}
	hits, err := search.Descend(sb.textStream, desc.StartPage, canonical, verbatim, cmp, limit)
	if err != nil {
		return nil, fmt.Errorf("ebx: %w: %v", ErrReadFailed, err)
	}
	out := make([]Hit, len(hits))
	for i, h := range hits {
		out[i] = toHit(h)
	}
	return out, nil
}

func (sb *Subbook) wordStyle(method SearchMethod) search.IndexStyle {
	if d, ok := sb.searches[method]; ok {
		return d.Style
	}
	return search.IndexStyle{}
}

func validateWord(word string) error {
	if word == "" {
		return fmt.Errorf("ebx: %w", ErrEmptyWord)
	}
	if len(word) > maxWordLength {
		return fmt.Errorf("ebx: %w", ErrTooLongWord)
	}
	return nil
}

// SearchWord performs a word (prefix) search: every entry whose key
// is prefixed by word matches.
func (sb *Subbook) SearchWord(word string) ([]Hit, error) {
	return sb.wordSearch(word, SearchWordAlphabet, SearchWordKana, SearchWordAsis, search.MatchPrefix, false)
}

// SearchExactWord performs an exact-match search: word must equal the
// stored key exactly (ignoring trailing pad).
func (sb *Subbook) SearchExactWord(word string) ([]Hit, error) {
	return sb.wordSearch(word, SearchWordAlphabet, SearchWordKana, SearchWordAsis, search.MatchExact, false)
}

// SearchEndWord performs a suffix search over the endword-asis/kana/
// alphabet indices, which store their keys reversed on disk; the
// query is reversed character-wise before the otherwise-identical
// descent.
func (sb *Subbook) SearchEndWord(word string) ([]Hit, error) {
	return sb.wordSearch(word, SearchEndwordAlphabet, SearchEndwordKana, SearchEndwordAsis, search.MatchExact, true)
}

// reverseWord reverses a query character-wise: EUC-JP two-byte
// characters stay intact while single bytes reverse individually.
func reverseWord(word []byte) []byte {
	var chars [][]byte
	for i := 0; i < len(word); {
		if word[i] >= 0x80 && i+1 < len(word) {
			chars = append(chars, word[i:i+2])
			i += 2
		} else {
			chars = append(chars, word[i:i+1])
			i++
		}
	}
	out := make([]byte, 0, len(word))
	for i := len(chars) - 1; i >= 0; i-- {
		out = append(out, chars[i]...)
	}
	return out
}

func (sb *Subbook) wordSearch(word string, alpha, kana, asis SearchMethod, cmp search.Comparator, reversed bool) ([]Hit, error) {
	if err := validateWord(word); err != nil {
		return nil, err
	}
	verbatim, err := encodeQuery(word, sb.book.CharCode)
	if err != nil {
		return nil, err
	}
	if reversed {
		verbatim = reverseWord(verbatim)
	}
	method, err := resolveWordIndex(sb, classify(verbatim), alpha, kana, asis)
	if err != nil {
		return nil, err
	}
	canonical := search.Canonicalize(verbatim, sb.wordStyle(method), sb.book.CharCode == CharCodeISO8859_1)
	return sb.descend(method, canonical, verbatim, cmp, 0)
}

// SearchKeyword performs a keyword search: every heading containing
// all of keywords must be located (up to maxKeywords terms). This
// implementation intersects per-keyword hit sets by heading position,
// the straightforward generalisation of the single-keyword descent
// eb/keyword.c builds its multi-keyword AND semantics from.
const maxKeywords = 5

func (sb *Subbook) SearchKeyword(keywords []string) ([]Hit, error) {
	if len(keywords) == 0 {
		return nil, fmt.Errorf("ebx: %w", ErrEmptyWord)
	}
	if len(keywords) > maxKeywords {
		return nil, fmt.Errorf("ebx: %w", ErrTooManyWords)
	}

	var sets [][]Hit
	for _, kw := range keywords {
		if err := validateWord(kw); err != nil {
			return nil, err
		}
		verbatim, err := encodeQuery(kw, sb.book.CharCode)
		if err != nil {
			return nil, err
		}
		canonical := search.Canonicalize(verbatim, sb.wordStyle(SearchKeyword), sb.book.CharCode == CharCodeISO8859_1)
		hits, err := sb.descend(SearchKeyword, canonical, verbatim, search.MatchPrefix, 0)
		if err != nil {
			return nil, err
		}
		sets = append(sets, hits)
	}

	result := sets[0]
	for _, s := range sets[1:] {
		byHeading := map[Position]bool{}
		for _, h := range s {
			byHeading[h.Heading] = true
		}
		var next []Hit
		for _, h := range result {
			if byHeading[h.Heading] {
				next = append(next, h)
			}
		}
		result = next
	}
	return result, nil
}

// SearchMenuOrCopyright locates the single menu or copyright page
// range registered for sb, returning it as a single Hit whose Text
// position is the range's start — menu/copyright are single fixed
// pages, not a descended index.
func (sb *Subbook) SearchMenuOrCopyright(method SearchMethod) (Hit, error) {
	if method != SearchMenu && method != SearchCopyright {
		return Hit{}, fmt.Errorf("ebx: %w", ErrNoSuchSearch)
	}
	d, ok := sb.searches[method]
	if !ok || d.StartPage == 0 {
		return Hit{}, fmt.Errorf("ebx: %w", ErrNoSuchSearch)
	}
	return Hit{Text: Position{Page: d.StartPage, Offset: 0}}, nil
}

// SearchMulti runs a multi-search: each of up to 5 keywords is
// checked against its corresponding labelled sub-index, and results
// are intersected by heading the same way SearchKeyword combines
// single-index hits, each sub-keyword getting its own descent.
func (sb *Subbook) SearchMulti(index int, words []string) ([]Hit, error) {
	if index < 0 || index >= len(sb.multi) {
		return nil, fmt.Errorf("ebx: %w", ErrNoSuchSearch)
	}
	m := sb.multi[index]
	if len(words) == 0 || len(words) > len(m.Entries) {
		return nil, fmt.Errorf("ebx: %w", ErrTooManyWords)
	}

	var sets [][]Hit
	for i, word := range words {
		if err := validateWord(word); err != nil {
			return nil, err
		}
		entry := m.Entries[i]
		verbatim, err := encodeQuery(word, sb.book.CharCode)
		if err != nil {
			return nil, err
		}
		canonical := search.Canonicalize(verbatim, entry.Style, sb.book.CharCode == CharCodeISO8859_1)
		hits, err := search.Descend(sb.textStream, entry.StartPage, canonical, verbatim, search.MatchPrefix, 0)
		if err != nil {
			return nil, fmt.Errorf("ebx: %w: %v", ErrReadFailed, err)
		}
		converted := make([]Hit, len(hits))
		for j, h := range hits {
			converted[j] = toHit(h)
		}
		sets = append(sets, converted)
	}

	result := sets[0]
	for _, s := range sets[1:] {
		byHeading := map[Position]bool{}
		for _, h := range s {
			byHeading[h.Heading] = true
		}
		var next []Hit
		for _, h := range result {
			if byHeading[h.Heading] {
				next = append(next, h)
			}
		}
		result = next
	}
	return result, nil
}

