package ebx

import "errors"

// Error kinds surfaced by the core. Callers distinguish them with
// errors.Is; the library always wraps one of these with %w so the
// underlying cause (a file path, an offset) is still visible in the
// error string.
var (
	ErrMemoryExhausted  = errors.New("ebx: memory exhausted")
	ErrBadPath          = errors.New("ebx: bad path")
	ErrPathTooLong      = errors.New("ebx: path too long")
	ErrOpenFailed       = errors.New("ebx: open failed")
	ErrReadFailed       = errors.New("ebx: read failed")
	ErrSeekFailed       = errors.New("ebx: seek failed")
	ErrUnexpectedFormat = errors.New("ebx: unexpected format")
	ErrNotBound         = errors.New("ebx: book not bound")
	ErrNoSuchSubbook    = errors.New("ebx: no such subbook")
	ErrNoSuchFont       = errors.New("ebx: no such font")
	ErrNoSuchSearch     = errors.New("ebx: no such search method")
	ErrNoCurrentSubbook = errors.New("ebx: no current subbook")
	ErrNoCurrentFont    = errors.New("ebx: no current font")
	ErrNoCurrentBinary  = errors.New("ebx: no current binary")
	ErrWrongContentMode = errors.New("ebx: mixed content mode on one seek")
	ErrEndOfContent     = errors.New("ebx: end of content")
	ErrStopCode         = errors.New("ebx: stop code encountered")
	ErrNoPreviousSearch = errors.New("ebx: no previous search")
	ErrNoCandidates     = errors.New("ebx: no candidates")
	ErrBadWord          = errors.New("ebx: bad word")
	ErrEmptyWord        = errors.New("ebx: empty word")
	ErrTooLongWord      = errors.New("ebx: word too long")
	ErrTooManyWords     = errors.New("ebx: too many words")
)
