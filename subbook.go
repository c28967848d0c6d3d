package ebx

import (
	"fmt"
	"path/filepath"

	"github.com/mistydemeo/eb-sub000/internal/blockdev"
	"github.com/mistydemeo/eb-sub000/internal/catalog"
	"github.com/mistydemeo/eb-sub000/internal/font"
	"github.com/mistydemeo/eb-sub000/internal/pathresolve"
	"github.com/mistydemeo/eb-sub000/internal/search"
	"github.com/mistydemeo/eb-sub000/internal/text"
	"github.com/mistydemeo/eb-sub000/internal/zio"
)

// EPWING subbooks keep their text/graphic/sound/font files under a
// "data"/"gaiji" subdirectory (subbook.c's data_directory_name /
// gaiji_directory_name); EB books keep everything directly under the
// subbook directory.
const (
	epwingDataDir  = "data"
	epwingGaijiDir = "gaiji"
	epwingMovieDir = "movie"
)

var (
	ebStartHints      = []string{"start", "start.ebz"}
	epwingHonmonHints = []string{"honmon", "honmon.ebz", "honmon2", "honmon2.ebz", "honmon2.org"}
	epwingGHints      = []string{"honmong", "honmong.ebz"}
	epwingSHints      = []string{"honmons", "honmons.ebz"}
)

// Subbook is one dictionary volume within a Book. Construct one only
// via Book.Bind/Book.SetSubbook.
type Subbook struct {
	book      *Book
	Directory string
	Title     string
	indexPage int // 1 for EB; EPWING's per-record index page otherwise

	textStream    *zio.Stream
	graphicStream *zio.Stream
	soundStream   *zio.Stream
	movieStream   *zio.Stream // opened lazily by ReadMovie, nil until then

	narrowFontFiles [4]string // EPWING catalog-named font files
	wideFontFiles   [4]string

	narrowFonts [4]*Font
	wideFonts   [4]*Font
	curNarrow   int // index into narrowFonts, -1 = none
	curWide     int

	searches map[SearchMethod]*searchDescriptor
	multi    []MultiSearch

	textCtx *text.Context
	hooks   *text.HookSet

	menuRange, copyrightRange text.Range

	initialized bool
	dirPath     string // resolved absolute directory, filled by open()
	textPath    string // resolved absolute text-stream file path

	sebxaStart, sebxaBase, sebxaTable *catalog.IndexRecord
}

// SearchMethod enumerates the search kinds a Search descriptor can
// describe: one per index a subbook may carry.
type SearchMethod int

const (
	SearchWordAsis SearchMethod = iota
	SearchWordKana
	SearchWordAlphabet
	SearchEndwordAsis
	SearchEndwordKana
	SearchEndwordAlphabet
	SearchKeyword
	SearchMenu
	SearchGraphic
	SearchCopyright
	SearchSound
)

// searchDescriptor holds the coordinates and canonicalisation style
// of one index.
type searchDescriptor struct {
	StartPage      int
	PageCount      int
	CandidatesPage int
	Style          search.IndexStyle
}

// MultiSearchEntry is one labelled sub-index of a MultiSearch bundle.
type MultiSearchEntry struct {
	Label     string
	StartPage int
	PageCount int
	Style     search.IndexStyle
}

// MultiSearch bundles up to 5 MultiSearchEntry sub-indices under one
// caller-facing search; a subbook may carry up to 8 of these.
type MultiSearch struct {
	Entries []MultiSearchEntry
}

// MultiSearches lists the subbook's multi-search bundles in catalog
// order; the slice index is the value SearchMulti takes.
func (sb *Subbook) MultiSearches() []MultiSearch {
	return sb.multi
}

const maxMultiSearches = 8

// convertStyle maps internal/catalog's disk-order Style enum onto
// internal/search's comparison-order Style enum; the two packages
// number their three cases differently (catalog mirrors the disk
// bit pattern 0/1/2 = convert/asis/delete, search mirrors the
// reference match.c enum order asis/convert/delete) so a numeric cast
// would silently swap convert and asis.
func convertStyle(s catalog.Style) search.Style {
	switch s {
	case catalog.StyleAsis:
		return search.StyleAsis
	case catalog.StyleDelete:
		return search.StyleDelete
	default:
		return search.StyleConvert
	}
}

func convertIndexStyle(s catalog.IndexStyle) search.IndexStyle {
	return search.IndexStyle{
		Katakana:        convertStyle(s.Katakana),
		Lower:           convertStyle(s.Lower),
		Mark:            convertStyle(s.Mark),
		LongVowel:       convertStyle(s.LongVowel),
		DoubleConsonant: convertStyle(s.DoubleConsonant),
		ContractedSound: convertStyle(s.ContractedSound),
		VoicedConsonant: convertStyle(s.VoicedConsonant),
		SmallVowel:      convertStyle(s.SmallVowel),
		PSound:          convertStyle(s.PSound),
		Space:           convertStyle(s.Space),
	}
}

// open binds the subbook's text/graphic/sound streams and its index
// directory; it is idempotent the way eb_set_subbook_eb/epwing's
// "already initialized -> reopen without reparsing" branch is.
func (sb *Subbook) open() error {
	if sb.initialized {
		return sb.reopenStreams()
	}

	resolvedDir, err := pathresolve.Dir(sb.book.Path, sb.Directory)
	if err != nil {
		return fmt.Errorf("ebx: %w: %v", ErrOpenFailed, err)
	}
	sb.dirPath = filepath.Join(sb.book.Path, resolvedDir)

	var streamDir string
	var textKind zio.Kind
	var textName string
	if sb.book.Disc == DiscEB {
		streamDir = sb.dirPath
		name, hintIndex, err := pathresolve.FindHint(streamDir, ebStartHints)
		if err != nil {
			return fmt.Errorf("ebx: %w: %v", ErrOpenFailed, err)
		}
		textName = name
		textKind = zio.KindPlain
		if hintIndex == 1 {
			textKind = zio.KindEBZIP
		}
	} else {
		streamDir = filepath.Join(sb.dirPath, epwingDataDir)
		name, hintIndex, err := pathresolve.FindHint(streamDir, epwingHonmonHints)
		if err != nil {
			return fmt.Errorf("ebx: %w: %v", ErrOpenFailed, err)
		}
		textName = name
		switch hintIndex {
		case 0, 4:
			textKind = zio.KindPlain
		case 1, 3:
			textKind = zio.KindEBZIP
		case 2:
			if sb.book.Version < 6 {
				textKind = zio.KindEPWING
			} else {
				textKind = zio.KindEPWING6
			}
		}
	}

	sb.textPath = filepath.Join(streamDir, textName)
	textDev, err := blockdev.Open(sb.textPath)
	if err != nil {
		return fmt.Errorf("ebx: %w: %v", ErrOpenFailed, err)
	}
	sb.textStream, err = zio.Open(textDev, textKind, zio.Params{})
	if err != nil {
		return fmt.Errorf("ebx: %w: %v", ErrOpenFailed, err)
	}

	// Graphic/sound alias the text file for EB books and single-file
	// EPWING books; only the two-file "honmon2" layout gets its own
	// honmong/honmons streams (subbook.c eb_set_subbook_epwing).
	sb.graphicStream = sb.textStream
	sb.soundStream = sb.textStream

	if sb.book.Disc == DiscEPWING && (textName == "honmon2" || textName == "honmon2.ebz") {
		if gName, gHint, err := pathresolve.FindHint(streamDir, epwingGHints); err == nil {
			gKind := zio.KindPlain
			if gHint == 1 {
				gKind = zio.KindEBZIP
			}
			if gDev, err := blockdev.Open(filepath.Join(streamDir, gName)); err == nil {
				if gs, err := zio.Open(gDev, gKind, zio.Params{}); err == nil {
					sb.graphicStream = gs
				}
			}
		}
		if sName, sHint, err := pathresolve.FindHint(streamDir, epwingSHints); err == nil {
			sKind := zio.KindPlain
			if sHint == 1 {
				sKind = zio.KindEBZIP
			}
			if sDev, err := blockdev.Open(filepath.Join(streamDir, sName)); err == nil {
				if ss, err := zio.Open(sDev, sKind, zio.Params{}); err == nil {
					sb.soundStream = ss
				}
			}
		}
	}

	if err := sb.loadIndexDirectory(); err != nil {
		sb.textStream.Close()
		sb.textStream = nil
		return err
	}

	sb.curNarrow = -1
	sb.curWide = -1
	sb.hooks = &text.HookSet{}
	sb.textCtx = text.NewContext(sb.book.CharCode.toTextDocCode(), sb.menuRange, sb.copyrightRange)
	sb.initialized = true
	return nil
}

// reopenStreams rebinds already-parsed streams without reparsing
// their headers, mirroring the reference's ZIO_REOPEN path: a second
// SetSubbook call on the same subbook just reuses its open file
// handles and index directory.
func (sb *Subbook) reopenStreams() error {
	if sb.textStream == nil || sb.textStream.Invalid() {
		return fmt.Errorf("ebx: %w", ErrNoCurrentSubbook)
	}
	return nil
}

// loadIndexDirectory reads page 1 of the text stream (the subbook's
// index directory) and populates sb.searches and the font
// registrations it names.
func (sb *Subbook) loadIndexDirectory() error {
	buf := make([]byte, zio.PageSize)
	if _, err := sb.textStream.Lseek(0, zio.SeekStart); err != nil {
		return fmt.Errorf("ebx: %w: %v", ErrSeekFailed, err)
	}
	if err := sb.textStream.ReadFull(buf); err != nil {
		return fmt.Errorf("ebx: %w: %v", ErrReadFailed, err)
	}

	spaceDelete := sb.book.CharCode != CharCodeISO8859_1
	records, err := catalog.ParseIndexDirectory(buf, spaceDelete)
	if err != nil {
		return fmt.Errorf("ebx: %w: %v", ErrUnexpectedFormat, err)
	}

	sb.searches = map[SearchMethod]*searchDescriptor{}
	for _, rec := range records {
		desc := &searchDescriptor{
			StartPage: rec.StartPage,
			PageCount: rec.PageCount,
			Style:     convertIndexStyle(rec.Style),
		}
		switch rec.ID {
		case catalog.IndexWordAsis:
			sb.searches[SearchWordAsis] = desc
		case catalog.IndexWordKana:
			sb.searches[SearchWordKana] = desc
		case catalog.IndexWordAlphabet:
			sb.searches[SearchWordAlphabet] = desc
		case catalog.IndexEndwordAsis:
			sb.searches[SearchEndwordAsis] = desc
		case catalog.IndexEndwordKana:
			sb.searches[SearchEndwordKana] = desc
		case catalog.IndexEndwordAlphabet:
			sb.searches[SearchEndwordAlphabet] = desc
		case catalog.IndexKeyword:
			sb.searches[SearchKeyword] = desc
		case catalog.IndexMenu:
			sb.searches[SearchMenu] = desc
			sb.menuRange = pageRange(rec.StartPage, rec.PageCount)
		case catalog.IndexCopyright:
			sb.searches[SearchCopyright] = desc
			sb.copyrightRange = pageRange(rec.StartPage, rec.PageCount)
		case catalog.IndexSound:
			sb.searches[SearchSound] = desc
		case catalog.IndexFontWide16:
			sb.registerEBFont(font.Wide, font.Height16, rec.StartPage)
		case catalog.IndexFontNarrow16:
			sb.registerEBFont(font.Narrow, font.Height16, rec.StartPage)
		case catalog.IndexFontWide24:
			sb.registerEBFont(font.Wide, font.Height24, rec.StartPage)
		case catalog.IndexFontNarrow24:
			sb.registerEBFont(font.Narrow, font.Height24, rec.StartPage)
		case catalog.IndexFontWide30:
			sb.registerEBFont(font.Wide, font.Height30, rec.StartPage)
		case catalog.IndexFontNarrow30:
			sb.registerEBFont(font.Narrow, font.Height30, rec.StartPage)
		case catalog.IndexFontWide48:
			sb.registerEBFont(font.Wide, font.Height48, rec.StartPage)
		case catalog.IndexFontNarrow48:
			sb.registerEBFont(font.Narrow, font.Height48, rec.StartPage)
		case catalog.IndexSEBXAStart:
			r := rec
			sb.sebxaStart = &r
		case catalog.IndexSEBXABase:
			r := rec
			sb.sebxaBase = &r
		case catalog.IndexSEBXATable:
			r := rec
			sb.sebxaTable = &r
		case catalog.IndexMulti:
			if len(sb.multi) < maxMultiSearches {
				m, err := sb.loadMultiSearch(rec.StartPage)
				if err != nil {
					return fmt.Errorf("ebx: %w: %v", ErrUnexpectedFormat, err)
				}
				sb.multi = append(sb.multi, m)
			}
		}
	}

	if sb.sebxaStart != nil && sb.sebxaBase != nil && sb.sebxaTable != nil {
		if err := sb.applySEBXA(); err != nil {
			return err
		}
	}
	return nil
}

// applySEBXA re-opens the text stream's underlying file as an
// S-EBXA-overlaid zio.Stream once all three IndexSEBXA* records have
// been read. internal/zio's Stream fixes its codec at Open time, so
// "overlay" here means opening a second handle on the same file with
// the accumulated Params and swapping it in, rather than mutating the
// existing Stream in place.
func (sb *Subbook) applySEBXA() error {
	dev, err := blockdev.Open(sb.textPath)
	if err != nil {
		return fmt.Errorf("ebx: %w: %v", ErrOpenFailed, err)
	}
	params := zio.Params{
		SEBXAStart:     int64(sb.sebxaStart.StartPage-1) * zio.PageSize,
		SEBXAEnd:       int64(sb.sebxaStart.StartPage-1+sb.sebxaStart.PageCount) * zio.PageSize,
		SEBXAIndexBase: int64(sb.sebxaBase.StartPage-1) * zio.PageSize,
		SEBXAIndexLoc:  int64(sb.sebxaTable.StartPage-1) * zio.PageSize,
	}
	overlaid, err := zio.Open(dev, zio.KindSEBXA, params)
	if err != nil {
		dev.Close()
		return fmt.Errorf("ebx: %w: %v", ErrOpenFailed, err)
	}

	if sb.graphicStream == sb.textStream {
		sb.graphicStream = overlaid
	}
	if sb.soundStream == sb.textStream {
		sb.soundStream = overlaid
	}
	sb.textStream.Close()
	sb.textStream = overlaid
	return nil
}

// loadMultiSearch reads and parses one multi search's index table
// page, converting each catalog.MultiEntry into a MultiSearchEntry
// with the default-convert IndexStyle the reference loader leaves its
// per-entry searches at (the page never carries style flags of its
// own, unlike a subbook's top-level index records).
func (sb *Subbook) loadMultiSearch(startPage int) (MultiSearch, error) {
	buf := make([]byte, zio.PageSize)
	if _, err := sb.textStream.Lseek(int64(startPage-1)*zio.PageSize, zio.SeekStart); err != nil {
		return MultiSearch{}, fmt.Errorf("%w: %v", ErrSeekFailed, err)
	}
	if err := sb.textStream.ReadFull(buf); err != nil {
		return MultiSearch{}, fmt.Errorf("%w: %v", ErrReadFailed, err)
	}

	raw, err := catalog.ParseMultiPage(buf)
	if err != nil {
		return MultiSearch{}, err
	}

	style := defaultMultiStyle(sb.book.CharCode == CharCodeISO8859_1)
	entries := make([]MultiSearchEntry, len(raw))
	for i, e := range raw {
		entries[i] = MultiSearchEntry{
			Label:     e.Label,
			StartPage: e.StartPage,
			Style:     style,
		}
	}
	return MultiSearch{Entries: entries}, nil
}

// defaultMultiStyle is the fold-rule set a subbook-header index record
// without availability flags (ParseIndexDirectory's default branch)
// also falls back to: every rule converts except Mark, which deletes.
func defaultMultiStyle(spaceAsis bool) search.IndexStyle {
	s := search.IndexStyle{
		Katakana:        search.StyleConvert,
		Lower:           search.StyleConvert,
		Mark:            search.StyleDelete,
		LongVowel:       search.StyleConvert,
		DoubleConsonant: search.StyleConvert,
		ContractedSound: search.StyleConvert,
		VoicedConsonant: search.StyleConvert,
		SmallVowel:      search.StyleConvert,
		PSound:          search.StyleConvert,
	}
	if spaceAsis {
		s.Space = search.StyleAsis
	} else {
		s.Space = search.StyleDelete
	}
	return s
}

func pageRange(startPage, pageCount int) text.Range {
	if startPage == 0 {
		return text.Range{}
	}
	start := int64(startPage-1) * zio.PageSize
	return text.Range{StartByte: start, EndByte: start + int64(pageCount)*zio.PageSize}
}

// registerEBFont installs an EB-style font whose glyph data is a
// region of the subbook's own text stream; unlike EPWING, there is no
// separate font file or header to open here, just a start page within
// the already-open text stream.
func (sb *Subbook) registerEBFont(kind font.Kind, height font.Height, startPage int) {
	info, err := font.ReadHeader(sb.textStream, startPage, kind, height, sb.book.CharCode.toFontCharCode())
	if err != nil {
		return
	}
	f := &Font{subbook: sb, stream: sb.textStream, info: info, available: true}
	if kind == font.Narrow {
		sb.narrowFonts[heightIndex(height)] = f
	} else {
		sb.wideFonts[heightIndex(height)] = f
	}
}

func heightIndex(h font.Height) int {
	switch h {
	case font.Height16:
		return 0
	case font.Height24:
		return 1
	case font.Height30:
		return 2
	default:
		return 3
	}
}

// close releases every stream this subbook owns, but never a borrowed
// font handle twice: graphic/sound streams that alias the text stream
// are only closed once.
func (sb *Subbook) close() error {
	if !sb.initialized {
		return nil
	}
	closed := map[*zio.Stream]bool{}
	var firstErr error
	for _, s := range []*zio.Stream{sb.textStream, sb.graphicStream, sb.soundStream, sb.movieStream} {
		if s == nil || closed[s] {
			continue
		}
		closed[s] = true
		if err := s.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	for _, f := range sb.narrowFonts {
		if f != nil && f.stream != sb.textStream && !closed[f.stream] {
			closed[f.stream] = true
			f.stream.Close()
		}
	}
	for _, f := range sb.wideFonts {
		if f != nil && f.stream != sb.textStream && !closed[f.stream] {
			closed[f.stream] = true
			f.stream.Close()
		}
	}
	sb.initialized = false
	return firstErr
}

// HaveSearch reports whether subbook sb has an index for method. This
// is how a caller distinguishes "no such index exists in this
// subbook" from an actual read failure.
func (sb *Subbook) HaveSearch(method SearchMethod) bool {
	d, ok := sb.searches[method]
	return ok && d.StartPage != 0
}

// ReadBinary extracts size bytes of raw graphic/sound/movie payload at
// pos; which selects the stream: the subbook's three named binary
// streams plus the lazily-opened movie stream.
func (sb *Subbook) ReadBinary(which BinaryKind, pos Position, size int) ([]byte, error) {
	var s *zio.Stream
	switch which {
	case BinaryGraphic:
		s = sb.graphicStream
	case BinarySound:
		s = sb.soundStream
	case BinaryMovie:
		s = sb.movieStream
	}
	if s == nil {
		return nil, fmt.Errorf("ebx: %w", ErrNoCurrentBinary)
	}
	if _, err := s.Lseek(pos.Byte(), zio.SeekStart); err != nil {
		return nil, fmt.Errorf("ebx: %w: %v", ErrSeekFailed, err)
	}
	buf := make([]byte, size)
	n, err := s.Read(buf)
	if err != nil {
		return nil, fmt.Errorf("ebx: %w: %v", ErrReadFailed, err)
	}
	return buf[:n], nil
}

// BinaryKind selects which of a subbook's binary streams ReadBinary
// reads from.
type BinaryKind int

const (
	BinaryGraphic BinaryKind = iota
	BinarySound
	BinaryMovie
)

// ComposeMovieFileName translates the packed arguments of a BEGIN_MPEG
// escape into the movie's base file name: each argument carries two
// JIS X 0208 characters, full-width digits and letters, folded to
// lowercase ASCII. The name ends at a full-width space or NUL.
func ComposeMovieFileName(argv []int) (string, error) {
	var out []byte
	for _, arg := range argv {
		for _, c := range []int{arg >> 16 & 0xffff, arg & 0xffff} {
			if c == 0x2121 || c == 0 {
				return string(out), nil
			}
			switch {
			case c >= 0x2330 && c <= 0x2339, c >= 0x2361 && c <= 0x237a:
				out = append(out, byte(c&0xff))
			case c >= 0x2341 && c <= 0x235a:
				out = append(out, byte((c|0x20)&0xff))
			default:
				return "", fmt.Errorf("ebx: %w: movie name character %#x", ErrBadWord, c)
			}
		}
	}
	return string(out), nil
}

// OpenMovie binds the named MPEG file under the subbook's movie
// directory as the movie stream ReadBinary(BinaryMovie, ...) reads
// from; the stream stays open until replaced or the subbook closes.
// name is typically built with ComposeMovieFileName from a BEGIN_MPEG
// hook's arguments.
func (sb *Subbook) OpenMovie(name string) error {
	if !sb.initialized {
		return fmt.Errorf("ebx: %w", ErrNoCurrentSubbook)
	}
	movieDir, err := pathresolve.Dir(sb.dirPath, epwingMovieDir)
	if err != nil {
		return fmt.Errorf("ebx: %w: %v", ErrOpenFailed, err)
	}
	dirPath := filepath.Join(sb.dirPath, movieDir)
	resolved, err := pathresolve.File(dirPath, name)
	if err != nil {
		return fmt.Errorf("ebx: %w: %v", ErrOpenFailed, err)
	}
	dev, err := blockdev.Open(filepath.Join(dirPath, resolved))
	if err != nil {
		return fmt.Errorf("ebx: %w: %v", ErrOpenFailed, err)
	}
	stream, err := zio.Open(dev, zio.KindPlain, zio.Params{})
	if err != nil {
		return fmt.Errorf("ebx: %w: %v", ErrOpenFailed, err)
	}
	if sb.movieStream != nil {
		sb.movieStream.Close()
	}
	sb.movieStream = stream
	return nil
}
