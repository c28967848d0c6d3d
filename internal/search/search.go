// Package search implements the paged index descent shared by
// word, exactword, endword, keyword, and multi-search: a tree of
// 2048-byte pages, walked top-down through intermediate pages keyed by
// canonicalised text down to leaf pages compared against the verbatim
// query. Comparator semantics are grounded in the original library's
// match.c (eb_match_canonicalized_word / eb_exact_match_canonicalized_
// word); the page and record layouts follow search.c's hit-list walk.
package search

import (
	"encoding/binary"
	"fmt"

	"github.com/mistydemeo/eb-sub000/internal/zio"
)

// Comparator reports the ordering of word against an on-disk key of
// fixed length len(pattern): 0 on a match (word is a prefix of or
// equal to pattern, per the comparator's own rule), negative if word
// sorts before pattern, positive if after.
type Comparator func(word, pattern []byte) int

// MatchPrefix ports eb_match_canonicalized_word: word matches if it is
// a prefix of (or equal to) pattern. Used for word/keyword search.
func MatchPrefix(word, pattern []byte) int {
	for i := 0; ; i++ {
		if i >= len(pattern) {
			if i < len(word) {
				return int(word[i])
			}
			return 0
		}
		if i >= len(word) {
			return 0
		}
		if word[i] != pattern[i] {
			return int(word[i]) - int(pattern[i])
		}
	}
}

// MatchExact ports eb_exact_match_canonicalized_word: word must equal
// pattern, ignoring trailing spaces in pattern's unused tail. Used for
// exactword/endword search.
func MatchExact(word, pattern []byte) int {
	i := 0
	for {
		if i >= len(pattern) {
			if i < len(word) {
				return int(word[i])
			}
			return 0
		}
		if i >= len(word) {
			for i < len(pattern) && (pattern[i] == ' ' || pattern[i] == 0) {
				i++
			}
			return i - len(pattern)
		}
		if word[i] != pattern[i] {
			return int(word[i]) - int(pattern[i])
		}
		i++
	}
}

// Hit is one located occurrence: the absolute (page, offset) pair of
// its article text and, separately, of its heading.
type Hit struct {
	TextPage      int
	TextOffset    int
	HeadingPage   int
	HeadingOffset int
}

// tagStop marks the final page of a leaf chain; a leaf page with the
// bit clear continues onto the following page.
const tagStop = 0x20

func isIntermediate(tag byte) bool {
	return tag&0x80 == 0
}

// isKanaLeaf distinguishes the grouped-KANA leaf layout (tags
// 0x90/0xB0/0xD0/0xF0) from the flat latin/mixed leaf layout
// (0x80/0xA0/0xC0/0xE0): bit 0x10 of the tag selects it.
func isKanaLeaf(tag byte) bool {
	return tag&0x90 == 0x90
}

// pageCursor carries the in-page scan state that survives a
// continuation onto the following page: the KANA group comparison
// result in particular spans pages when a group straddles one.
type pageCursor struct {
	groupCmp int
}

// Descend walks the index tree rooted at startPage and returns every
// hit whose key matches. canonicalWord/verbatimWord are the two forms
// of the query produced before descent; cmp is used both at
// intermediate pages (against canonical) and at leaf records (against
// verbatim) — the single comparator captures whichever of MatchPrefix/
// MatchExact this search method uses. limit 0 means unbounded.
func Descend(stream *zio.Stream, startPage int, canonicalWord, verbatimWord []byte, cmp Comparator, limit int) ([]Hit, error) {
	if startPage == 0 {
		return nil, nil
	}

	var hits []Hit
	page := startPage
	visited := map[int]bool{}
	cur := pageCursor{groupCmp: 1}

	for page != 0 {
		if visited[page] {
			return hits, fmt.Errorf("search: %w: cyclic index page reference at %d", errBadIndex, page)
		}
		visited[page] = true

		buf := make([]byte, zio.PageSize)
		if _, err := stream.Lseek(int64(page-1)*int64(zio.PageSize), zio.SeekStart); err != nil {
			return hits, fmt.Errorf("search: seek page %d: %w", page, err)
		}
		if err := stream.ReadFull(buf); err != nil {
			return hits, fmt.Errorf("search: read page %d: %w", page, err)
		}

		tag := buf[0]
		switch {
		case isIntermediate(tag):
			next, err := descendIntermediate(buf, canonicalWord, cmp)
			if err != nil {
				return hits, err
			}
			if next == 0 || next == page {
				return hits, nil
			}
			page = next
			continue

		case isKanaLeaf(tag):
			stop, err := scanKanaLeaf(buf, canonicalWord, verbatimWord, cmp, &cur, &hits, limit)
			if err != nil {
				return hits, err
			}
			if stop || limit > 0 && len(hits) >= limit {
				return hits, nil
			}

		default:
			stop, err := scanLatinLeaf(buf, verbatimWord, cmp, &hits, limit)
			if err != nil {
				return hits, err
			}
			if stop || limit > 0 && len(hits) >= limit {
				return hits, nil
			}
		}

		if tag&tagStop == 0 {
			page++
		} else {
			page = 0
		}
	}
	return hits, nil
}

var errBadIndex = fmt.Errorf("malformed index page")

// descendIntermediate follows the first child whose key is >= query,
// i.e. the first record for which cmp(query, key) <= 0; returns 0 if
// every key in the page sorts before the query (no hit). Layout: a
// 4-byte header (tag, entry length, u16 entry count), then entry-count
// records of (key, u32 child page).
func descendIntermediate(buf []byte, canonicalWord []byte, cmp Comparator) (int, error) {
	entryLen := int(buf[1])
	entryCount := int(binary.BigEndian.Uint16(buf[2:4]))
	recSize := entryLen + 4
	off := 4

	for i := 0; i < entryCount; i++ {
		if off+recSize > len(buf) {
			return 0, fmt.Errorf("search: %w: intermediate page overruns bounds", errBadIndex)
		}
		key := buf[off : off+entryLen]
		child := binary.BigEndian.Uint32(buf[off+entryLen : off+entryLen+4])
		if cmp(canonicalWord, key) <= 0 {
			return int(child), nil
		}
		off += recSize
	}
	return 0, nil
}

func parseHit(b []byte) Hit {
	return Hit{
		TextPage:      int(binary.BigEndian.Uint32(b[0:4])),
		TextOffset:    int(binary.BigEndian.Uint16(b[4:6])),
		HeadingPage:   int(binary.BigEndian.Uint32(b[6:10])),
		HeadingOffset: int(binary.BigEndian.Uint16(b[10:12])),
	}
}

// scanLatinLeaf reads the page's entry-count variable-length records
// (L, key, text position, heading position) until a negative
// comparison result — this word sorts before the record's key, so
// nothing further on this or any subsequent page can match. Leaf pages
// carry the same 4-byte header intermediate pages do; only the
// entry-count field of it is meaningful here.
func scanLatinLeaf(buf []byte, verbatimWord []byte, cmp Comparator, hits *[]Hit, limit int) (stop bool, err error) {
	entryCount := int(binary.BigEndian.Uint16(buf[2:4]))
	off := 4

	for i := 0; i < entryCount; i++ {
		if off+1 > len(buf) {
			return false, fmt.Errorf("search: %w: latin leaf overruns bounds", errBadIndex)
		}
		l := int(buf[off])
		if off+1+l+12 > len(buf) {
			return false, fmt.Errorf("search: %w: latin leaf record overruns bounds", errBadIndex)
		}
		key := buf[off+1 : off+1+l]
		c := cmp(verbatimWord, key)
		if c == 0 {
			*hits = append(*hits, parseHit(buf[off+1+l:]))
			if limit > 0 && len(*hits) >= limit {
				return true, nil
			}
		}
		if c < 0 {
			return true, nil
		}
		off += 1 + l + 12
	}
	return false, nil
}

// scanKanaLeaf implements the grouped layout: a 0x80 group-start
// record fixes the canonical comparison for every following 0xC0
// member until the next group-start; 0x00 is a standalone record
// matched on its canonical form first and its verbatim form second.
func scanKanaLeaf(buf []byte, canonicalWord, verbatimWord []byte, cmp Comparator, cur *pageCursor, hits *[]Hit, limit int) (stop bool, err error) {
	entryCount := int(binary.BigEndian.Uint16(buf[2:4]))
	off := 4

	for i := 0; i < entryCount; i++ {
		if off+2 > len(buf) {
			return false, fmt.Errorf("search: %w: kana leaf overruns bounds", errBadIndex)
		}
		kind := buf[off]
		l := int(buf[off+1])

		switch kind {
		case 0x00:
			// Standalone entry: (id, L, key, positions).
			if off+2+l+12 > len(buf) {
				return false, fmt.Errorf("search: %w: kana leaf record overruns bounds", errBadIndex)
			}
			key := buf[off+2 : off+2+l]
			c := cmp(canonicalWord, key)
			if c == 0 && cmp(verbatimWord, key) == 0 {
				*hits = append(*hits, parseHit(buf[off+2+l:]))
			}
			if c < 0 {
				return true, nil
			}
			off += 2 + l + 12

		case 0x80:
			// Group start: (id, L, 2 reserved bytes, key). Fixes the
			// canonical comparison for the members that follow.
			if off+4+l > len(buf) {
				return false, fmt.Errorf("search: %w: kana group start overruns bounds", errBadIndex)
			}
			cur.groupCmp = cmp(canonicalWord, buf[off+4:off+4+l])
			if cur.groupCmp < 0 {
				return true, nil
			}
			off += 4 + l

		case 0xc0:
			// Group member: (id, L, key, positions); emits iff the
			// group's canonical comparison was equal and the member's
			// verbatim key matches.
			if off+2+l+12 > len(buf) {
				return false, fmt.Errorf("search: %w: kana group member overruns bounds", errBadIndex)
			}
			key := buf[off+2 : off+2+l]
			if cur.groupCmp == 0 && cmp(verbatimWord, key) == 0 {
				*hits = append(*hits, parseHit(buf[off+2+l:]))
			}
			off += 2 + l + 12

		default:
			return false, fmt.Errorf("search: %w: bad kana group id %#x", errBadIndex, kind)
		}

		if limit > 0 && len(*hits) >= limit {
			return true, nil
		}
	}
	return false, nil
}
