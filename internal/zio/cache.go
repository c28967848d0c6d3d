package zio

import "sync"

// maxSliceSize bounds the single cache slot: the largest possible
// decompressed slice is an EBZIP slice at the maximum zip level
// (PageSize << 3, see ebzip.go's clamp to level 3 -> 2048<<3=16384).
const maxSliceSize = 2048 << 3

// globalCache is the process-wide single decompressed-slice slot,
// shared by every open Stream in the process rather than kept
// per-stream. This buys cross-book sharing when an application opens
// several books on the same disc, at the cost of the entry being
// evicted by an unrelated stream's read between two calls on the same
// stream.
var globalCache struct {
	mu       sync.Mutex
	ownerID  uint64
	location int64
	valid    bool
	data     [maxSliceSize]byte
	dataLen  int
}

// fetchSlice returns the decoded bytes of slice idx (size sliceSize)
// for stream id, using the shared cache when it already holds that
// exact (id, location) pair, and populating it via decode otherwise.
// decode must write at most sliceSize bytes into its argument and
// return how many of them are meaningful; a short return is
// zero-filled by Stream.Read via the usual slice semantics, not here,
// since the cache itself stores exactly what decode produced.
func fetchSlice(id uint64, idx int64, sliceSize int, decode func(out []byte) (int, error)) ([]byte, error) {
	location := idx * int64(sliceSize)

	globalCache.mu.Lock()
	if globalCache.valid && globalCache.ownerID == id && globalCache.location == location {
		out := make([]byte, globalCache.dataLen)
		copy(out, globalCache.data[:globalCache.dataLen])
		globalCache.mu.Unlock()
		return out, nil
	}
	globalCache.mu.Unlock()

	// Decode outside the lock: I/O must never happen while holding
	// the cache mutex.
	buf := make([]byte, sliceSize)
	n, err := decode(buf)
	if err != nil {
		globalCache.mu.Lock()
		if globalCache.ownerID == id {
			globalCache.valid = false
		}
		globalCache.mu.Unlock()
		return nil, err
	}

	globalCache.mu.Lock()
	globalCache.ownerID = id
	globalCache.location = location
	globalCache.dataLen = n
	copy(globalCache.data[:n], buf[:n])
	globalCache.valid = true
	globalCache.mu.Unlock()

	return buf[:n], nil
}

// invalidateIfOwner evicts the cache slot if it currently belongs to
// id. Close does not call this: a closed stream's cache contents
// stay put until a different stream's read evicts them; only a
// failed read invalidates eagerly, via Stream.invalidate.
func invalidateIfOwner(id uint64) {
	globalCache.mu.Lock()
	defer globalCache.mu.Unlock()
	if globalCache.ownerID == id {
		globalCache.valid = false
	}
}
