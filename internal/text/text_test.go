package text

import (
	"bytes"
	"errors"
	"os"
	"testing"

	"github.com/mistydemeo/eb-sub000/internal/blockdev"
	"github.com/mistydemeo/eb-sub000/internal/zio"
)

// openPlainStream writes raw into a temp file and opens it as a plain
// (uncompressed) zio.Stream, the simplest way to drive the decoder
// against hand-built byte sequences.
func openPlainStream(t *testing.T, raw []byte) *zio.Stream {
	t.Helper()
	f, err := os.CreateTemp(t.TempDir(), "text-*.bin")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := f.Write(raw); err != nil {
		t.Fatal(err)
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

func readAll(t *testing.T, ctx *Context, s *zio.Stream, hooks *HookSet, mode Mode) []byte {
	t.Helper()
	var out []byte
	buf := make([]byte, 64)
	for {
		n, err := Read(ctx, s, hooks, mode, buf, false)
		if err != nil {
			t.Fatalf("Read: %v", err)
		}
		out = append(out, buf[:n]...)
		if ctx.EndOfArticle() || ctx.EOF() {
			break
		}
		if n == 0 {
			break
		}
	}
	return out
}

// TestHeadingEndsAtNewline exercises the three no-argument control
// escapes (BEGIN_TEXT, NEWLINE, END_OF_ARTICLE) against three literal
// ISO-8859-1 characters: a heading of "ABC" terminated by 0x1f 0x0a.
func TestHeadingEndsAtNewline(t *testing.T) {
	raw := []byte{0x1f, 0x02, 'A', 'B', 'C', 0x1f, 0x0a, 0x1f, 0x03}
	s := openPlainStream(t, raw)

	ctx := NewContext(DocISO8859_1, Range{}, Range{})
	var hooks HookSet

	got := readAll(t, ctx, s, &hooks, ModeHeading)
	if string(got) != "ABC" {
		t.Fatalf("got %q, want %q", got, "ABC")
	}
	if !ctx.EndOfArticle() {
		t.Fatal("expected end of article after heading newline")
	}
}

// TestStopCodeIdempotence checks that once end-of-article is
// signalled, further reads without an intervening seek yield zero
// bytes and the mode stays put.
func TestStopCodeIdempotence(t *testing.T) {
	raw := []byte{0x1f, 0x02, 'A', 0x1f, 0x03}
	s := openPlainStream(t, raw)
	ctx := NewContext(DocISO8859_1, Range{}, Range{})
	var hooks HookSet

	buf := make([]byte, 16)
	n, err := Read(ctx, s, &hooks, ModeText, buf, false)
	if err != nil {
		t.Fatal(err)
	}
	if string(buf[:n]) != "A" {
		t.Fatalf("first read got %q", buf[:n])
	}
	if !ctx.EndOfArticle() {
		t.Fatal("expected end of article")
	}

	n, err = Read(ctx, s, &hooks, ModeText, buf, false)
	if err != nil {
		t.Fatal(err)
	}
	if n != 0 {
		t.Fatalf("second read after article end: got %d bytes, want 0", n)
	}
	if ctx.Mode() != ModeText {
		t.Fatalf("mode changed to %v after idempotent read", ctx.Mode())
	}
}

// TestResumableReadsMatchOneShot checks that chunking the output
// buffer into arbitrarily small pieces (down to 1 byte) reproduces
// exactly the same bytes as a single large read.
func TestResumableReadsMatchOneShot(t *testing.T) {
	raw := []byte{0x1f, 0x02, 'H', 'E', 'L', 'L', 'O', 0x1f, 0x03}

	oneShot := func() []byte {
		s := openPlainStream(t, raw)
		ctx := NewContext(DocISO8859_1, Range{}, Range{})
		var hooks HookSet
		buf := make([]byte, 64)
		n, err := Read(ctx, s, &hooks, ModeText, buf, false)
		if err != nil {
			t.Fatal(err)
		}
		return append([]byte(nil), buf[:n]...)
	}()

	s := openPlainStream(t, raw)
	ctx := NewContext(DocISO8859_1, Range{}, Range{})
	var hooks HookSet
	var chunked []byte
	buf := make([]byte, 1)
	for !ctx.EndOfArticle() {
		n, err := Read(ctx, s, &hooks, ModeText, buf, false)
		if err != nil {
			t.Fatal(err)
		}
		chunked = append(chunked, buf[:n]...)
		if n == 0 {
			break
		}
	}

	if !bytes.Equal(oneShot, chunked) {
		t.Fatalf("one-shot %q != chunked %q", oneShot, chunked)
	}
	if string(oneShot) != "HELLO" {
		t.Fatalf("got %q, want %q", oneShot, "HELLO")
	}
}

// TestKeywordHooksAndStopCode exercises a BEGIN_KEYWORD/END_KEYWORD
// pair bracketing literal text, with the STOP_CODE probe hook
// observed exactly once beforehand.
func TestKeywordHooksAndStopCode(t *testing.T) {
	// 1f 41 00 05 : BEGIN_KEYWORD, arg 0x0005
	// 58 59 5a    : X Y Z
	// 1f 61       : END_KEYWORD
	// 1f 03       : end of article
	raw := []byte{0x1f, 0x41, 0x00, 0x05, 'X', 'Y', 'Z', 0x1f, 0x61, 0x1f, 0x03}
	s := openPlainStream(t, raw)
	ctx := NewContext(DocISO8859_1, Range{}, Range{})

	var hooks HookSet
	var stopArgv []int
	stopCalls := 0
	hooks.Register(HookStopCode, func(w *Writer, argv []int) error {
		stopCalls++
		stopArgv = append([]int(nil), argv...)
		return nil
	})
	hooks.Register(HookBeginKeyword, func(w *Writer, argv []int) error {
		w.WriteByte1('[')
		return nil
	})
	hooks.Register(HookEndKeyword, func(w *Writer, argv []int) error {
		w.WriteByte1(']')
		return nil
	})

	got := readAll(t, ctx, s, &hooks, ModeText)
	if string(got) != "[XYZ]" {
		t.Fatalf("got %q, want %q", got, "[XYZ]")
	}
	if stopCalls != 1 {
		t.Fatalf("STOP_CODE hook called %d times, want 1", stopCalls)
	}
	if len(stopArgv) != 2 || stopArgv[0] != 0x1f41 || stopArgv[1] != 0x0005 {
		t.Fatalf("STOP_CODE argv = %v, want [0x1f41 0x0005]", stopArgv)
	}
}

// TestStopCodeHookCanTerminateEarly exercises the STOP_CODE hook's
// ability to end an article immediately via ErrStopCode, confirmed
// only after printable content has already been seen.
func TestStopCodeHookCanTerminateEarly(t *testing.T) {
	raw := []byte{0x1f, 0x02, 'A', 0x1f, 0x41, 0x00, 0x01, 'Z', 0x1f, 0x03}
	s := openPlainStream(t, raw)
	ctx := NewContext(DocISO8859_1, Range{}, Range{})

	var hooks HookSet
	hooks.Register(HookStopCode, func(w *Writer, argv []int) error {
		return ErrStopCode
	})

	got := readAll(t, ctx, s, &hooks, ModeText)
	if string(got) != "A" {
		t.Fatalf("got %q, want %q", got, "A")
	}
	if !ctx.EndOfArticle() {
		t.Fatal("expected end of article from STOP_CODE sentinel")
	}
}

// TestSkipRegionSuppressesHooks checks that content inside a skip
// region (opened by an opcode in the 0x70-0x8f range, closed by
// op+0x20) is consumed without dispatching any hook, while content
// after the region is emitted normally.
func TestSkipRegionSuppressesHooks(t *testing.T) {
	// 0x70 opens a skip region ending at 0x90.
	raw := []byte{0x1f, 0x02, 'A', 0x1f, 0x70, 'X', 'Y', 0x1f, 0x90, 'B', 0x1f, 0x03}
	s := openPlainStream(t, raw)
	ctx := NewContext(DocISO8859_1, Range{}, Range{})
	var hooks HookSet

	got := readAll(t, ctx, s, &hooks, ModeText)
	if string(got) != "AB" {
		t.Fatalf("got %q, want %q (skip region content/escapes must produce no output)", got, "AB")
	}
}

// TestStopCodeProbeFiresInsideSkipRegion checks that a SET_INDENT/
// BEGIN_KEYWORD escape landing inside a skip region still dispatches
// the STOP_CODE probe (and can terminate the article), even though the
// opcode's own hook stays suppressed.
func TestStopCodeProbeFiresInsideSkipRegion(t *testing.T) {
	// 0x70 opens a skip region ending at 0x90; the keyword escape and
	// the 'X' between them produce no output and no keyword hook.
	raw := []byte{
		0x1f, 0x02, 'A',
		0x1f, 0x70,
		0x1f, 0x41, 0x00, 0x07, 'X',
		0x1f, 0x90,
		'B', 0x1f, 0x03,
	}
	s := openPlainStream(t, raw)
	ctx := NewContext(DocISO8859_1, Range{}, Range{})

	var hooks HookSet
	var stopArgv []int
	stopCalls := 0
	keywordCalls := 0
	hooks.Register(HookStopCode, func(w *Writer, argv []int) error {
		stopCalls++
		stopArgv = append([]int(nil), argv...)
		return nil
	})
	hooks.Register(HookBeginKeyword, func(w *Writer, argv []int) error {
		keywordCalls++
		return nil
	})

	got := readAll(t, ctx, s, &hooks, ModeText)
	if string(got) != "AB" {
		t.Fatalf("got %q, want %q", got, "AB")
	}
	if stopCalls != 1 {
		t.Fatalf("STOP_CODE hook called %d times inside skip region, want 1", stopCalls)
	}
	if len(stopArgv) != 2 || stopArgv[0] != 0x1f41 || stopArgv[1] != 0x0007 {
		t.Fatalf("STOP_CODE argv = %v, want [0x1f41 0x0007]", stopArgv)
	}
	if keywordCalls != 0 {
		t.Fatalf("BEGIN_KEYWORD hook called %d times inside skip region, want 0", keywordCalls)
	}
}

// TestStopCodeSentinelTerminatesInsideSkipRegion is the termination
// variant: the probe's ErrStopCode ends the article from inside the
// skip region.
func TestStopCodeSentinelTerminatesInsideSkipRegion(t *testing.T) {
	raw := []byte{
		0x1f, 0x02, 'A',
		0x1f, 0x70,
		0x1f, 0x41, 0x00, 0x07,
		0x1f, 0x90,
		'B', 0x1f, 0x03,
	}
	s := openPlainStream(t, raw)
	ctx := NewContext(DocISO8859_1, Range{}, Range{})

	var hooks HookSet
	hooks.Register(HookStopCode, func(w *Writer, argv []int) error {
		return ErrStopCode
	})

	got := readAll(t, ctx, s, &hooks, ModeText)
	if string(got) != "A" {
		t.Fatalf("got %q, want %q", got, "A")
	}
	if !ctx.EndOfArticle() {
		t.Fatal("expected end of article from the in-skip STOP_CODE sentinel")
	}
}

// TestSeekResetsPerArticleState confirms SeekByte clears narrow/
// candidate/stop-code state left over from a previous article, and
// that tell reports back the position it was seeked to (property 1).
func TestSeekResetsPerArticleState(t *testing.T) {
	raw := []byte{0x1f, 0x02, 'A', 0x1f, 0x03}
	ctx := NewContext(DocISO8859_1, Range{}, Range{})
	ctx.SeekByte(1234)
	if ctx.TellByte() != 1234 {
		t.Fatalf("TellByte = %d, want 1234", ctx.TellByte())
	}
	if ctx.Mode() != ModeNone {
		t.Fatalf("mode after seek = %v, want ModeNone", ctx.Mode())
	}

	s := openPlainStream(t, raw)
	ctx.SeekByte(0)
	var hooks HookSet
	_ = readAll(t, ctx, s, &hooks, ModeText)

	ctx.SeekByte(0)
	if ctx.EndOfArticle() {
		t.Fatal("SeekByte must clear end-of-article")
	}
	if len(ctx.CurrentCandidate()) != 0 {
		t.Fatal("SeekByte must clear the candidate accumulator")
	}
}

// TestMixedModeRejected checks that once a seek's first Read call
// locks in TEXT or HEADING, switching modes without an intervening
// seek is an error.
func TestMixedModeRejected(t *testing.T) {
	raw := []byte{0x1f, 0x02, 'A', 0x1f, 0x03}
	s := openPlainStream(t, raw)
	ctx := NewContext(DocISO8859_1, Range{}, Range{})
	var hooks HookSet

	buf := make([]byte, 16)
	if _, err := Read(ctx, s, &hooks, ModeText, buf, false); err != nil {
		t.Fatal(err)
	}
	_, err := Read(ctx, s, &hooks, ModeHeading, buf, false)
	if !errors.Is(err, ErrDiffContent) {
		t.Fatalf("got err %v, want ErrDiffContent", err)
	}
	if ctx.Mode() != ModeInvalid {
		t.Fatalf("context mode after mode-mismatch error = %v, want ModeInvalid", ctx.Mode())
	}
}

// TestCandidateAccumulator checks the candidate accumulator:
// characters between BEGIN_CANDIDATE and END_CANDIDATE_LEAF are
// copied with the high bit set, and the accumulator is cleared once
// the candidate region ends.
func TestCandidateAccumulator(t *testing.T) {
	raw := []byte{
		0x1f, 0x02,
		0x1f, 0x43, // BEGIN_CANDIDATE
		'c', 'a', 't',
		0x1f, 0x63, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, // END_CANDIDATE_LEAF
		0x1f, 0x03,
	}
	s := openPlainStream(t, raw)
	ctx := NewContext(DocISO8859_1, Range{}, Range{})

	var captured []byte
	var hooks HookSet
	hooks.Register(HookEndCandidateLeaf, func(w *Writer, argv []int) error {
		captured = ctx.CurrentCandidate()
		return nil
	})

	_ = readAll(t, ctx, s, &hooks, ModeText)

	want := []byte{'c' | 0x80, 'a' | 0x80, 't' | 0x80}
	if !bytes.Equal(captured, want) {
		t.Fatalf("candidate = %v, want %v", captured, want)
	}
	if len(ctx.CurrentCandidate()) != 0 {
		t.Fatal("candidate accumulator must clear once END_CANDIDATE_LEAF fires")
	}
}

// TestJISKanjiEUCConversion checks the JIS X 0208 / GB 2312
// classification branch: both bytes get the high bit set for a
// kanji, only the first for a GB 2312 hanzi.
func TestJISKanjiEUCConversion(t *testing.T) {
	raw := []byte{
		0x1f, 0x02,
		0x30, 0x41, // JIS X 0208 kanji candidate (both bytes in 0x21-0x7e)
		0x30, 0xa1, // GB 2312 hanzi candidate (second byte in 0xa1-0xfe)
		0x1f, 0x03,
	}
	s := openPlainStream(t, raw)
	ctx := NewContext(DocJISX0208GB2312, Range{}, Range{})
	var hooks HookSet

	got := readAll(t, ctx, s, &hooks, ModeText)
	want := []byte{0x30 | 0x80, 0x41 | 0x80, 0x30 | 0x80, 0xa1}
	if !bytes.Equal(got, want) {
		t.Fatalf("got %v, want %v", got, want)
	}
}

// TestForwardClearsEndOfArticle discards to the article boundary,
// then lets a fresh Read start clean.
func TestForwardClearsEndOfArticle(t *testing.T) {
	raw := []byte{0x1f, 0x02, 'A', 'B', 0x1f, 0x03, 0x1f, 0x02, 'C', 0x1f, 0x03}
	s := openPlainStream(t, raw)
	ctx := NewContext(DocISO8859_1, Range{}, Range{})
	var hooks HookSet

	if err := Forward(ctx, s, &hooks, ModeText, false); err != nil {
		t.Fatal(err)
	}
	if ctx.EndOfArticle() {
		t.Fatal("Forward must clear end-of-article for the next read")
	}
	if ctx.Mode() != ModeNone {
		t.Fatalf("Forward must reset mode to ModeNone, got %v", ctx.Mode())
	}

	ctx.SeekByte(int64(len("\x1f\x02AB\x1f\x03")))
	buf := make([]byte, 16)
	n, err := Read(ctx, s, &hooks, ModeText, buf, false)
	if err != nil {
		t.Fatal(err)
	}
	if string(buf[:n]) != "C" {
		t.Fatalf("got %q, want %q", buf[:n], "C")
	}
}
