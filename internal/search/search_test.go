package search

import (
	"encoding/binary"
	"os"
	"testing"

	"github.com/mistydemeo/eb-sub000/internal/blockdev"
	"github.com/mistydemeo/eb-sub000/internal/zio"
)

func openPages(t *testing.T, pages ...[]byte) *zio.Stream {
	t.Helper()
	f, err := os.CreateTemp(t.TempDir(), "index-*.bin")
	if err != nil {
		t.Fatal(err)
	}
	for _, page := range pages {
		if len(page) != zio.PageSize {
			t.Fatalf("page must be %d bytes, got %d", zio.PageSize, len(page))
		}
		if _, err := f.Write(page); err != nil {
			t.Fatal(err)
		}
	}
	f.Close()

	dev, err := blockdev.Open(f.Name())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { dev.Close() })

	s, err := zio.Open(dev, zio.KindPlain, zio.Params{})
	if err != nil {
		t.Fatal(err)
	}
	return s
}

// intermediatePage builds a one-level index page: fixed-width keys,
// each followed by a u32 child page number.
func intermediatePage(keyLen int, entries []struct {
	key   string
	child int
}) []byte {
	page := make([]byte, zio.PageSize)
	page[0] = 0x00
	page[1] = byte(keyLen)
	binary.BigEndian.PutUint16(page[2:4], uint16(len(entries)))
	off := 4
	for _, e := range entries {
		copy(page[off:off+keyLen], e.key)
		for i := len(e.key); i < keyLen; i++ {
			page[off+i] = ' '
		}
		binary.BigEndian.PutUint32(page[off+keyLen:off+keyLen+4], uint32(e.child))
		off += keyLen + 4
	}
	return page
}

type leafEntry struct {
	key                                        string
	textPage, textOff, headingPage, headingOff int
}

func putPositions(b []byte, e leafEntry) {
	binary.BigEndian.PutUint32(b[0:4], uint32(e.textPage))
	binary.BigEndian.PutUint16(b[4:6], uint16(e.textOff))
	binary.BigEndian.PutUint32(b[6:10], uint32(e.headingPage))
	binary.BigEndian.PutUint16(b[10:12], uint16(e.headingOff))
}

// latinLeafPage builds a variable-length-record leaf page. final sets
// the stop tag bit; a page without it continues onto the next page.
func latinLeafPage(entries []leafEntry, final bool) []byte {
	page := make([]byte, zio.PageSize)
	page[0] = 0x80
	if final {
		page[0] |= 0x20
	}
	binary.BigEndian.PutUint16(page[2:4], uint16(len(entries)))
	off := 4
	for _, e := range entries {
		page[off] = byte(len(e.key))
		copy(page[off+1:], e.key)
		putPositions(page[off+1+len(e.key):], e)
		off += 1 + len(e.key) + 12
	}
	return page
}

func TestDescendExactWord(t *testing.T) {
	leaf := latinLeafPage([]leafEntry{
		{key: "ant", textPage: 2, textOff: 0, headingPage: 9, headingOff: 0},
		{key: "apple", textPage: 3, textOff: 0, headingPage: 9, headingOff: 100},
		{key: "banana", textPage: 4, textOff: 8, headingPage: 9, headingOff: 200},
	}, true)
	root := intermediatePage(8, []struct {
		key   string
		child int
	}{
		{key: "zzzzzzzz", child: 2},
	})
	s := openPages(t, root, leaf)

	hits, err := Descend(s, 1, []byte("apple"), []byte("apple"), MatchExact, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(hits) != 1 {
		t.Fatalf("got %d hits, want 1", len(hits))
	}
	want := Hit{TextPage: 3, TextOffset: 0, HeadingPage: 9, HeadingOffset: 100}
	if hits[0] != want {
		t.Fatalf("hit = %+v, want %+v", hits[0], want)
	}
}

func TestDescendPrefixCollectsAndStops(t *testing.T) {
	leaf := latinLeafPage([]leafEntry{
		{key: "apple", textPage: 3},
		{key: "applesauce", textPage: 5},
		{key: "banana", textPage: 7},
		{key: "cherry", textPage: 8},
	}, true)
	s := openPages(t, leaf)

	hits, err := Descend(s, 1, []byte("apple"), []byte("apple"), MatchPrefix, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(hits) != 2 {
		t.Fatalf("got %d hits, want 2 (prefix matches only, stop at first negative)", len(hits))
	}
	if hits[0].TextPage != 3 || hits[1].TextPage != 5 {
		t.Fatalf("hits = %+v", hits)
	}
}

func TestDescendContinuationPage(t *testing.T) {
	// A leaf page without the 0x20 stop bit continues onto the next
	// page; the chain ends at the first page carrying it.
	first := latinLeafPage([]leafEntry{
		{key: "apple", textPage: 3},
	}, false)
	second := latinLeafPage([]leafEntry{
		{key: "apple", textPage: 6},
		{key: "zebra", textPage: 9},
	}, true)
	s := openPages(t, first, second)

	hits, err := Descend(s, 1, []byte("apple"), []byte("apple"), MatchExact, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(hits) != 2 {
		t.Fatalf("got %d hits across a page continuation, want 2", len(hits))
	}
}

func TestDescendStopsAtFinalPage(t *testing.T) {
	// The stop bit ends the chain even though a further page exists.
	first := latinLeafPage([]leafEntry{
		{key: "apple", textPage: 3},
	}, true)
	second := latinLeafPage([]leafEntry{
		{key: "apple", textPage: 6},
	}, true)
	s := openPages(t, first, second)

	hits, err := Descend(s, 1, []byte("apple"), []byte("apple"), MatchExact, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(hits) != 1 || hits[0].TextPage != 3 {
		t.Fatalf("hits = %+v, want only the final page's entry", hits)
	}
}

func TestDescendNoMatchInIntermediate(t *testing.T) {
	root := intermediatePage(8, []struct {
		key   string
		child int
	}{
		{key: "aaaa", child: 2},
	})
	leaf := latinLeafPage(nil, true)
	s := openPages(t, root, leaf)

	hits, err := Descend(s, 1, []byte("zzz"), []byte("zzz"), MatchExact, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(hits) != 0 {
		t.Fatalf("got %d hits, want none", len(hits))
	}
}

// kanaLeafPage builds the grouped leaf layout: 0x00 standalone
// records, 0x80 group starts (two reserved bytes before the key), and
// 0xc0 group members. The page carries the stop bit (tag 0xb0) since
// each test uses a single-page chain.
func kanaLeafPage(build func(put func(kind byte, key string, e leafEntry)) int) []byte {
	page := make([]byte, zio.PageSize)
	page[0] = 0x90 | 0x20
	off := 4
	count := build(func(kind byte, key string, e leafEntry) {
		page[off] = kind
		page[off+1] = byte(len(key))
		switch kind {
		case 0x80:
			copy(page[off+4:], key)
			off += 4 + len(key)
		default:
			copy(page[off+2:], key)
			putPositions(page[off+2+len(key):], e)
			off += 2 + len(key) + 12
		}
	})
	binary.BigEndian.PutUint16(page[2:4], uint16(count))
	return page
}

func TestDescendKanaGroups(t *testing.T) {
	leaf := kanaLeafPage(func(put func(kind byte, key string, e leafEntry)) int {
		put(0x00, "aa", leafEntry{textPage: 2})
		put(0x80, "ka", leafEntry{})
		put(0xc0, "KA", leafEntry{textPage: 3})
		put(0xc0, "Ka", leafEntry{textPage: 4})
		put(0x80, "sa", leafEntry{})
		put(0xc0, "KA", leafEntry{textPage: 5})
		return 6
	})
	s := openPages(t, leaf)

	// Canonical form selects the "ka" group; only the member whose
	// verbatim key matches the verbatim query is a hit. The "sa" group
	// re-fixes the comparison, so its identical member is not.
	hits, err := Descend(s, 1, []byte("ka"), []byte("KA"), MatchExact, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(hits) != 1 {
		t.Fatalf("got %d hits, want 1", len(hits))
	}
	if hits[0].TextPage != 3 {
		t.Fatalf("hit = %+v, want the first member of the ka group", hits[0])
	}
}

func TestDescendKanaStandaloneEntry(t *testing.T) {
	leaf := kanaLeafPage(func(put func(kind byte, key string, e leafEntry)) int {
		put(0x00, "aa", leafEntry{textPage: 2, headingPage: 8})
		put(0x00, "bb", leafEntry{textPage: 3, headingPage: 9})
		return 2
	})
	s := openPages(t, leaf)

	hits, err := Descend(s, 1, []byte("aa"), []byte("aa"), MatchExact, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(hits) != 1 || hits[0].TextPage != 2 {
		t.Fatalf("hits = %+v, want the aa entry only", hits)
	}
}

func TestDescendKanaBadGroupID(t *testing.T) {
	leaf := kanaLeafPage(func(put func(kind byte, key string, e leafEntry)) int {
		put(0x40, "xx", leafEntry{})
		return 1
	})
	s := openPages(t, leaf)

	if _, err := Descend(s, 1, []byte("xx"), []byte("xx"), MatchExact, 0); err == nil {
		t.Fatal("expected an error for an unknown kana group id")
	}
}

func TestMatchComparators(t *testing.T) {
	cases := []struct {
		cmp           Comparator
		word, pattern string
		want          int
	}{
		{MatchPrefix, "app", "apple", 0},
		{MatchPrefix, "apple", "app", 'l'},
		{MatchPrefix, "apple", "apple", 0},
		{MatchExact, "apple", "apple   ", 0},
		{MatchExact, "app", "apple", -2},
		{MatchExact, "apple", "apple", 0},
	}
	for _, c := range cases {
		if got := c.cmp([]byte(c.word), []byte(c.pattern)); got != c.want {
			t.Errorf("cmp(%q, %q) = %d, want %d", c.word, c.pattern, got, c.want)
		}
	}
}

func TestCanonicalize(t *testing.T) {
	style := IndexStyle{Katakana: StyleConvert, Lower: StyleConvert, Space: StyleDelete}

	if got := string(Canonicalize([]byte("MiXeD"), style, true)); got != "mixed" {
		t.Errorf("latin fold = %q, want %q", got, "mixed")
	}

	// Full-width 'A' (EUC 0xa3c1) folds to full-width 'a' (0xa3e1);
	// katakana row 0xa5 folds to hiragana row 0xa4; the full-width
	// space 0xa1a1 is deleted.
	in := []byte{0xa3, 0xc1, 0xa1, 0xa1, 0xa5, 0xa2}
	want := []byte{0xa3, 0xe1, 0xa4, 0xa2}
	got := Canonicalize(in, style, false)
	if string(got) != string(want) {
		t.Errorf("euc fold = % x, want % x", got, want)
	}
}
