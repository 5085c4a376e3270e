package buffer

import "sync"

const (
	// Pool limits to prevent memory bloat
	poolMaxCap  = 1 << 20
	poolInitCap = 4096
)

var pool = sync.Pool{
	New: func() any {
		buf := make([]byte, poolInitCap)
		return &buf
	},
}

// Get returns a pooled buffer of exactly n bytes. Only use it for
// synchronous calls: the region must not outlive Put.
func Get(n int) *Buffer {
	p := pool.Get().(*[]byte)
	if cap(*p) < n {
		*p = make([]byte, n)
	}
	return &Buffer{data: (*p)[:max(n, 0)]}
}

// Put returns a buffer obtained from Get.
func Put(b *Buffer) {
	if b == nil || cap(b.data) > poolMaxCap {
		return // reject oversized
	}
	p := b.data[:cap(b.data)]
	clear(p)
	b.data = nil
	pool.Put(&p)
}
