// Package ebx binds the L1-L3 layers in internal/ into the public
// Book/Subbook/Font session API. A Book is the single top-level struct
// owning every section of a binding transitively: catalog, subbooks,
// fonts, search indices. Construction is two-phase (Bind locates and
// parses the catalog; SetSubbook lazily opens a volume's streams), and
// a single Close releases every file handle reachable from the Book.
package ebx

import (
	"encoding/binary"
	"fmt"
	"path/filepath"
	"sync"
	"sync/atomic"

	"github.com/mistydemeo/eb-sub000/internal/blockdev"
	"github.com/mistydemeo/eb-sub000/internal/catalog"
	"github.com/mistydemeo/eb-sub000/internal/jiscode"
	"github.com/mistydemeo/eb-sub000/internal/pathresolve"
	"github.com/mistydemeo/eb-sub000/internal/zio"
)

// DiscKind distinguishes the two catalog record formats and, downstream,
// several subbook-session quirks (stream file hints, font filename
// fields) that differ between them.
type DiscKind int

const (
	DiscEB DiscKind = iota
	DiscEPWING
)

func (k DiscKind) String() string {
	if k == DiscEPWING {
		return "epwing"
	}
	return "eb"
}

// Book is the root of one binding. A zero Book is not usable; construct
// one with Bind.
//
// Every public method takes Book's lock for its duration, so hooks
// invoked from inside a Read* call may themselves call back into the
// same Book without deadlocking.
type Book struct {
	mu sync.Mutex

	id   uint64
	Path string

	Disc     DiscKind
	CharCode CharCode
	Version  int // EPWING catalog version byte; 0 for EB

	Subbooks []*Subbook

	currentSubbook int // index into Subbooks; -1 means none

	// AppendixPath is recorded, naming the companion appendix tree if
	// one exists, but it is never opened or parsed by this package.
	AppendixPath string
}

var nextBookID uint64

func allocBookID() uint64 {
	return atomic.AddUint64(&nextBookID, 1)
}

var catalogHints = []string{"catalog", "catalogs"}

// Bind opens path as a book directory: it canonicalises the path,
// locates CATALOG or CATALOGS by case-insensitive hint-list lookup,
// parses every subbook record, determines the book's document
// character code, and applies the known-broken-title fixups. No
// subbook is made current; call SetSubbook next.
func Bind(path string) (*Book, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("ebx: %w: %v", ErrBadPath, err)
	}

	name, hintIndex, err := pathresolve.FindHint(abs, catalogHints)
	if err != nil {
		return nil, fmt.Errorf("ebx: %w: %v", ErrOpenFailed, err)
	}
	kind := DiscEB
	if hintIndex == 1 {
		kind = DiscEPWING
	}

	dev, err := blockdev.Open(filepath.Join(abs, name))
	if err != nil {
		return nil, fmt.Errorf("ebx: %w: %v", ErrOpenFailed, err)
	}
	defer dev.Close()

	size, err := dev.Size()
	if err != nil {
		return nil, fmt.Errorf("ebx: %w: %v", ErrReadFailed, err)
	}
	buf := make([]byte, size)
	if _, err := dev.ReadAt(buf, 0); err != nil {
		return nil, fmt.Errorf("ebx: %w: %v", ErrReadFailed, err)
	}

	catKind := catalog.EB
	if kind == DiscEPWING {
		catKind = catalog.EPWING
	}
	header, records, err := catalog.Parse(buf, catKind)
	if err != nil {
		return nil, fmt.Errorf("ebx: %w: %v", ErrUnexpectedFormat, err)
	}

	b := &Book{
		id:             allocBookID(),
		Path:           abs,
		Disc:           kind,
		Version:        header.Version,
		currentSubbook: -1,
	}

	b.CharCode = detectCharCode(abs)
	if len(records) > 0 && catalog.IsMisleaded(records[0].TitleRaw) {
		// Known-broken catalogs lie about the document character
		// code; the reference library forces JIS X 0208 and
		// re-decodes every title.
		b.CharCode = CharCodeJISX0208
	}

	for _, rec := range records {
		titleEUC := jiscode.ToEUC(trimTrailingSpace(rec.TitleRaw))
		title, _ := jiscode.ToUTF8(titleEUC)

		sb := &Subbook{
			book:      b,
			Directory: rec.Directory,
			Title:     title,
			indexPage: rec.IndexPage,
		}
		for i := range rec.NarrowFontFiles {
			sb.narrowFontFiles[i] = rec.NarrowFontFiles[i]
			sb.wideFontFiles[i] = rec.WideFontFiles[i]
		}
		b.Subbooks = append(b.Subbooks, sb)
	}

	return b, nil
}

func trimTrailingSpace(b []byte) []byte {
	end := len(b)
	for end > 0 && (b[end-1] == ' ' || b[end-1] == 0) {
		end--
	}
	return b[:end]
}

// detectCharCode mirrors eb_initialize_language (book.c): the document
// character code lives in a standalone "language"/"language.ebz" file,
// not the catalog; its absence (the common case for EPWING books,
// which carry no such file) leaves the code at its default, JIS X 0208.
func detectCharCode(dir string) CharCode {
	const defaultCode = CharCodeJISX0208

	name, hintIndex, err := pathresolve.FindHint(dir, []string{"language", "language.ebz"})
	if err != nil {
		return defaultCode
	}
	dev, err := blockdev.Open(filepath.Join(dir, name))
	if err != nil {
		return defaultCode
	}
	defer dev.Close()

	kind := zio.KindPlain
	if hintIndex == 1 {
		kind = zio.KindEBZIP
	}
	stream, err := zio.Open(dev, kind, zio.Params{})
	if err != nil {
		return defaultCode
	}
	defer stream.Close()

	var buf [16]byte
	if err := stream.ReadFull(buf[:]); err != nil {
		return defaultCode
	}
	code := CharCode(binary.BigEndian.Uint16(buf[0:2]))
	switch code {
	case CharCodeISO8859_1, CharCodeJISX0208, CharCodeJISX0208GB2312:
		return code
	default:
		return defaultCode
	}
}

// Close releases every file handle and Huffman tree transitively
// owned by b. It is safe to call more than once.
func (b *Book) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	var firstErr error
	for _, sb := range b.Subbooks {
		if err := sb.close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	b.currentSubbook = -1
	return firstErr
}

// CurrentSubbook returns the subbook set by SetSubbook, or nil if none
// is current.
func (b *Book) CurrentSubbook() *Subbook {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.currentSubbook < 0 {
		return nil
	}
	return b.Subbooks[b.currentSubbook]
}

// SetSubbook opens code's text/graphic/sound files and subbook-header
// index directory, making it current. On error, the book's current
// subbook is left unchanged.
func (b *Book) SetSubbook(code int) (*Subbook, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if code < 0 || code >= len(b.Subbooks) {
		return nil, fmt.Errorf("ebx: %w: %d", ErrNoSuchSubbook, code)
	}
	sb := b.Subbooks[code]
	if err := sb.open(); err != nil {
		return nil, err
	}
	b.currentSubbook = code
	return sb, nil
}
