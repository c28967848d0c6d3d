package text

import (
	"errors"
	"fmt"

	"github.com/mistydemeo/eb-sub000/internal/zio"
)

// ErrInvalidContext is returned by any Read* call on a Context that
// has been driven into ModeInvalid by a prior I/O or hook error.
var ErrInvalidContext = errors.New("text: context is invalid")

const scannerChunk = 4096
const lookahead = 48 // longest escape is 46 bytes (0x1f 0x39 ...)

// scanner is a small forward-only buffered reader over a *zio.Stream,
// used so decodeEscape always has its lookahead window available
// without the decode loop re-seeking per byte.
type scanner struct {
	s   *zio.Stream
	buf []byte
	off int
	eof bool
}

func newScanner(s *zio.Stream, pos int64) (*scanner, error) {
	if _, err := s.Lseek(pos, zio.SeekStart); err != nil {
		return nil, err
	}
	return &scanner{s: s}, nil
}

func (sc *scanner) fill(n int) error {
	for len(sc.buf)-sc.off < n && !sc.eof {
		chunk := make([]byte, scannerChunk)
		r, err := sc.s.Read(chunk)
		if err != nil {
			return err
		}
		if r == 0 {
			sc.eof = true
			break
		}
		sc.buf = append(sc.buf[sc.off:], chunk[:r]...)
		sc.off = 0
	}
	return nil
}

func (sc *scanner) peek(n int) ([]byte, error) {
	if err := sc.fill(n); err != nil {
		return nil, err
	}
	avail := len(sc.buf) - sc.off
	if avail > n {
		avail = n
	}
	return sc.buf[sc.off : sc.off+avail], nil
}

func (sc *scanner) advance(n int) { sc.off += n }

// Read decodes source bytes from stream (starting at ctx's current
// position) into out, dispatching hooks as it goes, until out fills,
// an article boundary is reached, or the hook-supplied STOP_CODE
// sentinel fires. requested selects TEXT/HEADING/RAW; OPTIONAL_TEXT is
// never requested directly — it is auto-selected by ctx's menu/
// copyright ranges when requested is ModeText. discEB selects the
// shorter EB decoration-opcode step length over EPWING's.
func Read(ctx *Context, stream *zio.Stream, hooks *HookSet, requested Mode, out []byte, discEB bool) (int, error) {
	if ctx.mode == ModeInvalid {
		return 0, ErrInvalidContext
	}

	mode := ctx.resolveContentMode(requested)
	if err := ctx.setMode(mode); err != nil {
		ctx.Invalidate()
		return 0, err
	}

	n := flushUnprocessed(ctx, out)
	if n >= len(out) {
		return n, nil
	}
	if ctx.endOfContent {
		return n, nil
	}

	sc, err := newScanner(stream, ctx.position)
	if err != nil {
		ctx.Invalidate()
		return n, fmt.Errorf("text: %w", err)
	}

	if mode == ModeRaw {
		return readRaw(ctx, sc, out, n)
	}

	w := newWriter(ctx, out)
	w.n = n

	for w.room() > 0 {
		win, err := sc.peek(lookahead)
		if err != nil {
			ctx.Invalidate()
			return w.n, fmt.Errorf("text: read: %w", err)
		}
		if len(win) == 0 {
			ctx.eof = true
			ctx.endOfContent = true
			break
		}

		if win[0] != 0x1f {
			if err := stepChar(ctx, hooks, w, sc, win, mode); err != nil {
				ctx.Invalidate()
				return w.n, err
			}
			// A lone first byte of a 2-byte character at the physical
			// end of the stream ends the article without consuming it.
			if ctx.endOfContent {
				break
			}
			continue
		}

		res, err := decodeEscape(win, discEB)
		if err != nil {
			// Truncated at physical end of stream: treat as an
			// implicit article end rather than an error.
			ctx.eof = true
			ctx.endOfContent = true
			break
		}

		// 0x1f 0x03 (end of article) does not advance the position:
		// the original decoder never sets in_step for it, leaving the
		// cursor pointing at the terminator so the next seek starts
		// clean rather than one escape further in.
		if !res.endsArticle {
			sc.advance(res.step)
			ctx.position += int64(res.step)
		}

		if res.setNarrow {
			ctx.narrow = true
		}
		if res.clearNarrow {
			ctx.narrow = false
		}

		// The STOP_CODE probe only fires for an article body read, not
		// a heading read, in the reference decoder — but it is never
		// suppressed by an active skip region, so a stop marker inside
		// a skipped graphic/sound block still registers.
		if res.stopProbe && mode == ModeText {
			stop, err := dispatchStopCode(ctx, hooks, w, res.argv)
			if err != nil {
				ctx.Invalidate()
				return w.n, err
			}
			if stop {
				ctx.endOfContent = true
				break
			}
		}

		if ctx.skipActive {
			if byte(res.argv[0]&0xff) == ctx.skipEndByte {
				ctx.skipActive = false
			}
			if res.endCandidate {
				ctx.candidateActive = false
			}
			if res.endsArticle {
				ctx.endOfContent = true
				break
			}
			continue
		}

		if res.opensSkip {
			ctx.skipActive = true
			ctx.skipEndByte = res.skipEndByte
			continue
		}

		if res.beginCandidate {
			ctx.candidateActive = true
			ctx.candidate = ctx.candidate[:0]
		}

		// 0x1f 0x0a in HEADING mode terminates the heading without
		// ever dispatching NEWLINE — the original jumps straight to
		// its success label for that case.
		suppressHook := res.endsHeading && mode == ModeHeading
		if res.hasHook && !suppressHook {
			if err := dispatchEscapeHook(hooks, w, res.hook, res.argv); err != nil {
				ctx.Invalidate()
				return w.n, err
			}
		}

		if res.endCandidate {
			ctx.candidateActive = false
			ctx.candidate = ctx.candidate[:0]
		}

		if res.endsArticle {
			ctx.endOfContent = true
			break
		}
		if res.endsHeading && mode == ModeHeading {
			ctx.endOfContent = true
			break
		}
	}

	return w.n, nil
}

// dispatchStopCode calls the HookStopCode hook (if registered) with
// argv, and records the first auto-stop-code seen. It reports
// stop=true when the hook signals ErrStopCode.
func dispatchStopCode(ctx *Context, hooks *HookSet, w *Writer, argv []int) (stop bool, err error) {
	if hook := hooks.get(HookStopCode); hook != nil {
		if err := hook(w, argv); err != nil {
			if errors.Is(err, ErrStopCode) {
				return true, nil
			}
			return false, err
		}
	}
	if !ctx.stopCodeSet {
		ctx.stopCodeSet = true
		ctx.autoStopCode = argv[1]
	}
	return false, nil
}

// dispatchEscapeHook calls the hook registered for code, if any. An
// unregistered escape hook emits nothing — the escape is consumed
// silently — except NEWLINE, whose built-in behaviour is a newline
// byte so unhooked article text still line-breaks.
func dispatchEscapeHook(hooks *HookSet, w *Writer, code HookCode, argv []int) error {
	if hook := hooks.get(code); hook != nil {
		return hook(w, argv)
	}
	if code == HookNewline {
		w.WriteByte1('\n')
	}
	return nil
}

// stepChar classifies and emits one non-escape character under the
// ISO-8859-1/JIS-mode rules, advancing sc/ctx.position and
// dispatching the matching classification hook. Position always
// advances by the classified width even inside a skip region; only the
// hook dispatch and candidate accumulation are suppressed there.
func stepChar(ctx *Context, hooks *HookSet, w *Writer, sc *scanner, win []byte, mode Mode) error {
	b := win[0]
	skip := ctx.skipActive

	if ctx.DocCode == DocISO8859_1 {
		if (b >= 0x20 && b <= 0x7e) || (b >= 0xa0 && b <= 0xff) {
			sc.advance(1)
			ctx.position++
			ctx.printableCount++
			if skip {
				return nil
			}
			return dispatchChar(ctx, hooks, w, HookISO8859_1, int(b), []byte{b}, []byte{b | 0x80})
		}
		if len(win) < 2 {
			ctx.eof = true
			ctx.endOfContent = true
			return nil
		}
		b2 := win[1]
		sc.advance(2)
		ctx.position += 2
		ctx.printableCount++
		if skip {
			return nil
		}
		// Local/narrow character under an ISO-8859-1 document: the
		// original writes only the first byte by default even though
		// two bytes were consumed and no candidate is recorded.
		return dispatchChar(ctx, hooks, w, HookNarrowFont, int(b)<<8|int(b2), []byte{b}, nil)
	}

	if len(win) < 2 {
		ctx.eof = true
		ctx.endOfContent = true
		return nil
	}
	b2 := win[1]
	sc.advance(2)
	ctx.position += 2
	ctx.printableCount++
	if skip {
		return nil
	}

	switch {
	case b >= 0x21 && b <= 0x7e && b2 >= 0x21 && b2 <= 0x7e:
		v := (int(b)<<8 | int(b2)) | 0x8080
		code := HookWideJISX0208
		if ctx.narrow {
			code = HookNarrowJISX0208
		}
		out := []byte{b | 0x80, b2 | 0x80}
		return dispatchChar(ctx, hooks, w, code, v, out, out)

	case b >= 0x21 && b <= 0x7e && b2 >= 0xa1 && b2 <= 0xfe:
		v := (int(b)<<8 | int(b2)) | 0x0080
		// The default write and the candidate bytes disagree on which
		// byte gets its high bit set — both match the original's two
		// separate computations for this branch.
		return dispatchChar(ctx, hooks, w, HookGB2312, v, []byte{b | 0x80, b2}, []byte{b, b2 | 0x80})

	default:
		code := HookWideFont
		if ctx.narrow {
			code = HookNarrowFont
		}
		out := []byte{b, b2}
		return dispatchChar(ctx, hooks, w, code, int(b)<<8|int(b2), out, nil)
	}
}

// dispatchChar runs the candidate-accumulator side effect (active
// between BEGIN_CANDIDATE and END_CANDIDATE_*) and then the
// classification hook itself, falling back to writing writeBytes when
// no hook is registered. candidateBytes is nil for the font hooks,
// which never feed the candidate accumulator.
func dispatchChar(ctx *Context, hooks *HookSet, w *Writer, code HookCode, value int, writeBytes, candidateBytes []byte) error {
	if ctx.candidateActive && candidateBytes != nil {
		for _, b := range candidateBytes {
			if len(ctx.candidate) < maxCandidateLen {
				ctx.candidate = append(ctx.candidate, b)
			}
		}
	}
	if hook := hooks.get(code); hook != nil {
		return hook(w, []int{value})
	}
	w.push(writeBytes)
	return nil
}

// readRaw implements ModeRaw: a literal byte-for-byte copy with no
// escape interpretation, terminating only at out filling or stream
// EOF (there is no boundary marker to detect in raw mode).
func readRaw(ctx *Context, sc *scanner, out []byte, n int) (int, error) {
	for n < len(out) {
		win, err := sc.peek(len(out) - n)
		if err != nil {
			ctx.Invalidate()
			return n, fmt.Errorf("text: read raw: %w", err)
		}
		if len(win) == 0 {
			ctx.eof = true
			ctx.endOfContent = true
			break
		}
		copy(out[n:], win)
		sc.advance(len(win))
		ctx.position += int64(len(win))
		n += len(win)
	}
	return n, nil
}

// Forward reads and discards content until the current article/
// heading ends, then clears the end-of-content flag so the next Read
// call with a fresh mode can proceed.
func Forward(ctx *Context, stream *zio.Stream, hooks *HookSet, mode Mode, discEB bool) error {
	scratch := make([]byte, scannerChunk)
	for !ctx.endOfContent && !ctx.eof {
		if _, err := Read(ctx, stream, hooks, mode, scratch, discEB); err != nil {
			return err
		}
	}
	ctx.mode = ModeNone
	ctx.endOfContent = false
	return nil
}
