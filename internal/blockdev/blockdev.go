// Package blockdev is the L1 layer: a positioned, byte-oriented file
// handle. It does nothing clever — open, seek, read — so that every
// codec in internal/zio can be written against one small interface
// instead of *os.File directly.
package blockdev

import (
	"fmt"
	"io"
	"os"
)

// Device is a seekable, readable file. *os.File satisfies it directly;
// tests substitute an in-memory implementation.
type Device interface {
	io.ReaderAt
	io.Closer
	Size() (int64, error)
}

type fileDevice struct {
	f *os.File
}

// Open opens path for reading. The returned Device is safe for
// concurrent ReadAt calls from multiple codecs, same as *os.File.
func Open(path string) (Device, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("blockdev: open %s: %w", path, err)
	}
	return &fileDevice{f: f}, nil
}

func (d *fileDevice) ReadAt(p []byte, off int64) (int, error) {
	return d.f.ReadAt(p, off)
}

func (d *fileDevice) Close() error {
	return d.f.Close()
}

func (d *fileDevice) Size() (int64, error) {
	fi, err := d.f.Stat()
	if err != nil {
		return 0, fmt.Errorf("blockdev: stat: %w", err)
	}
	return fi.Size(), nil
}
