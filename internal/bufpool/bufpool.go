// Package bufpool provides pooled byte slices for the native copy engine,
// avoiding a fresh allocation per chunk on every file copied.
package bufpool

import "sync"

// ChunkSize is the only bucket this pool serves; the native engine always
// reads and hashes in constants.CopyChunkSize pieces.
const ChunkSize = 128 * 1024

var pool = sync.Pool{
	New: func() any { b := make([]byte, ChunkSize); return &b },
}

// Get returns a pooled buffer of exactly ChunkSize bytes. Callers must
// call Put when done.
func Get() []byte {
	return *pool.Get().(*[]byte)
}

// Put returns buf to the pool. Buffers with a capacity other than
// ChunkSize are dropped rather than pooled.
func Put(buf []byte) {
	if cap(buf) != ChunkSize {
		return
	}
	buf = buf[:ChunkSize]
	pool.Put(&buf)
}
