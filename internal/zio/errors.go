package zio

import "errors"

var (
	// ErrInvalidStream is returned by any operation on a stream that
	// failed to open or was poisoned by a prior read error — the
	// spec's "invalid means never touch" rule.
	ErrInvalidStream = errors.New("zio: invalid stream")
	ErrReadFailed    = errors.New("zio: read failed")
	ErrSeekFailed    = errors.New("zio: seek failed")
	ErrBadHeader     = errors.New("zio: bad codec header")
)
