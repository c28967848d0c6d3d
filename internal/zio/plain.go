package zio

import "github.com/mistydemeo/eb-sub000/internal/blockdev"

// plainCodec presents an uncompressed file as-is. No cache benefit
// accrues (every "slice" is just a page-sized direct read), but it
// still flows through fetchSlice so Stream.Read has one code path for
// all four kinds.
type plainCodec struct {
	size int64
}

func newPlainCodec(dev blockdev.Device, size int64) (codec, error) {
	return &plainCodec{size: size}, nil
}

func (c *plainCodec) fileSize() int64 { return c.size }
func (c *plainCodec) sliceSize() int  { return PageSize }

// PageSize mirrors the public ebx.PageSize without importing the root
// package (which imports internal/zio), so the value is restated here
// as the zio layer's own slice-size constant for the plain/EPWING
// case.
const PageSize = 2048

func (c *plainCodec) decodeSlice(dev blockdev.Device, idx int64, out []byte) (int, error) {
	off := idx * int64(len(out))
	remaining := c.size - off
	if remaining <= 0 {
		return 0, nil
	}
	if remaining > int64(len(out)) {
		remaining = int64(len(out))
	}
	n, err := dev.ReadAt(out[:remaining], off)
	if n == int(remaining) {
		return n, nil
	}
	return n, err
}
