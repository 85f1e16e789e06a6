package tunnel

import (
	"io"
	"sync"
)

// BufferPoolSize is the size of each pooled copy buffer (32KB).
const BufferPoolSize = 32 * 1024

var bufferPool = sync.Pool{
	New: func() any {
		buf := make([]byte, BufferPoolSize)
		return &buf
	},
}

// CopyWithBuffer is io.Copy with a buffer borrowed from the pool.
func CopyWithBuffer(dst io.Writer, src io.Reader) (int64, error) {
	buf := bufferPool.Get().(*[]byte)
	defer bufferPool.Put(buf)
	return io.CopyBuffer(dst, src, *buf)
}
