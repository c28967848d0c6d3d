package ebx

import (
	"errors"
	"fmt"

	"github.com/mistydemeo/eb-sub000/internal/text"
)

// HookSet, Hook, HookCode, and Writer re-export internal/text's hook
// machinery at the public surface: a registry mapping opcode to a
// closure capturing a caller-chosen output state. Aliasing rather
// than wrapping keeps the Writer's overflow-to-unprocessed policy
// (internal/text/hooks.go) as the single implementation every caller
// goes through.
type (
	HookSet  = text.HookSet
	Hook     = text.Hook
	HookCode = text.HookCode
	Writer   = text.Writer
)

const (
	HookBeginNarrow       = text.HookBeginNarrow
	HookEndNarrow         = text.HookEndNarrow
	HookBeginSubscript    = text.HookBeginSubscript
	HookEndSubscript      = text.HookEndSubscript
	HookSetIndent         = text.HookSetIndent
	HookNewline           = text.HookNewline
	HookBeginSuperscript  = text.HookBeginSuperscript
	HookEndSuperscript    = text.HookEndSuperscript
	HookBeginNoNewline    = text.HookBeginNoNewline
	HookEndNoNewline      = text.HookEndNoNewline
	HookBeginEmphasis     = text.HookBeginEmphasis
	HookEndEmphasis       = text.HookEndEmphasis
	HookBeginMonoGraphic  = text.HookBeginMonoGraphic
	HookBeginMPEG         = text.HookBeginMPEG
	HookStopCode          = text.HookStopCode
	HookBeginKeyword      = text.HookBeginKeyword
	HookBeginReference    = text.HookBeginReference
	HookBeginCandidate    = text.HookBeginCandidate
	HookBeginWave         = text.HookBeginWave
	HookBeginColorBMP     = text.HookBeginColorBMP
	HookBeginColorJPEG    = text.HookBeginColorJPEG
	HookEndMonoGraphic    = text.HookEndMonoGraphic
	HookEndReference      = text.HookEndReference
	HookEndCandidateLeaf  = text.HookEndCandidateLeaf
	HookEndCandidateGroup = text.HookEndCandidateGroup
	HookEndMPEG           = text.HookEndMPEG
	HookEndWave           = text.HookEndWave
	HookEndColorGraphic   = text.HookEndColorGraphic
	HookEndKeyword        = text.HookEndKeyword
	HookISO8859_1         = text.HookISO8859_1
	HookNarrowJISX0208    = text.HookNarrowJISX0208
	HookWideJISX0208      = text.HookWideJISX0208
	HookGB2312            = text.HookGB2312
	HookNarrowFont        = text.HookNarrowFont
	HookWideFont          = text.HookWideFont
)

// ErrStopCodeSignal is the sentinel a HookStopCode hook returns to
// tell the decoder to terminate the article immediately. It is
// distinct from the public ErrStopCode kind surfaced by a failed
// Read* call — this one never escapes to the caller.
var ErrStopCodeSignal = text.ErrStopCode

// Hooks returns sb's hookset, registering Register calls against it
// directly; before any registration every escape is consumed silently
// (NEWLINE emits a line break) and character events write their
// converted bytes through.
func (sb *Subbook) Hooks() *HookSet { return sb.hooks }

// SeekText repositions the subbook's text cursor to pos and resets
// every piece of per-article decoder state back to its unset mode. It
// is a no-op on a subbook that has never been made current.
func (sb *Subbook) SeekText(pos Position) {
	if sb.textCtx == nil {
		return
	}
	sb.textCtx.SeekByte(pos.Byte())
}

// TellText returns the subbook's current text-cursor position.
func (sb *Subbook) TellText() Position {
	if sb.textCtx == nil {
		return Position{}
	}
	return PositionFromByte(sb.textCtx.TellByte())
}

// discEB reports whether this subbook's decoration-opcode escapes
// (0x1a-0x1f/0xe0) use the shorter EB step length rather than
// EPWING's.
func (sb *Subbook) discEB() bool { return sb.book.Disc == DiscEB }

// ReadText decodes article-body text into out: resumable, stopping at
// out filling, an article boundary, or a hook-signalled stop code.
func (sb *Subbook) ReadText(out []byte) (int, error) {
	return sb.readMode(text.ModeText, out)
}

// ReadHeading decodes an article's heading, which ends at the first
// 0x1f 0x0a (newline) escape rather than 0x1f 0x03.
func (sb *Subbook) ReadHeading(out []byte) (int, error) {
	return sb.readMode(text.ModeHeading, out)
}

// ReadRawText copies bytes verbatim with no escape interpretation,
// stopping only at out filling or stream EOF.
func (sb *Subbook) ReadRawText(out []byte) (int, error) {
	return sb.readMode(text.ModeRaw, out)
}

func (sb *Subbook) readMode(mode text.Mode, out []byte) (int, error) {
	if !sb.initialized || sb.textCtx == nil {
		return 0, fmt.Errorf("ebx: %w", ErrNoCurrentSubbook)
	}
	n, err := text.Read(sb.textCtx, sb.textStream, sb.hooks, mode, out, sb.discEB())
	if err != nil {
		return n, translateTextErr(err)
	}
	return n, nil
}

// ForwardText discards the remainder of the current article so the
// next ReadText call starts the following one fresh.
func (sb *Subbook) ForwardText() error {
	if !sb.initialized || sb.textCtx == nil {
		return fmt.Errorf("ebx: %w", ErrNoCurrentSubbook)
	}
	return translateTextErr(text.Forward(sb.textCtx, sb.textStream, sb.hooks, text.ModeText, sb.discEB()))
}

// ForwardHeading is ForwardText's heading analogue.
func (sb *Subbook) ForwardHeading() error {
	if !sb.initialized || sb.textCtx == nil {
		return fmt.Errorf("ebx: %w", ErrNoCurrentSubbook)
	}
	return translateTextErr(text.Forward(sb.textCtx, sb.textStream, sb.hooks, text.ModeHeading, sb.discEB()))
}

// CurrentCandidate returns the accumulator built between
// BEGIN_CANDIDATE and END_CANDIDATE_* since the last SeekText call.
func (sb *Subbook) CurrentCandidate() []byte {
	if sb.textCtx == nil {
		return nil
	}
	return sb.textCtx.CurrentCandidate()
}

// EndOfArticle/EOF mirror text.Context's terminal-state flags at the
// public surface.
func (sb *Subbook) EndOfArticle() bool {
	return sb.textCtx != nil && sb.textCtx.EndOfArticle()
}

func (sb *Subbook) EOF() bool {
	return sb.textCtx != nil && sb.textCtx.EOF()
}

func translateTextErr(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, text.ErrDiffContent):
		return fmt.Errorf("ebx: %w", ErrWrongContentMode)
	case errors.Is(err, text.ErrInvalidContext):
		return fmt.Errorf("ebx: %w", ErrEndOfContent)
	default:
		return fmt.Errorf("ebx: %w: %v", ErrReadFailed, err)
	}
}
