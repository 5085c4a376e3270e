package rados

import (
	"github.com/wippyai/go-rados/native"
	"github.com/wippyai/go-rados/resource"
)

// NativeBuffer is output memory the native library allocated. It belongs to
// the cluster handle and must be released with the native free routine,
// never by the Go allocator. A null buffer is valid and empty.
type NativeBuffer struct {
	res  *resource.Resource
	lib  native.Cluster
	conn *Conn
	n    int
}

func newNativeBuffer(c *Conn, h native.Handle, n int) *NativeBuffer {
	lib := c.env.lib
	b := &NativeBuffer{
		lib:  lib,
		conn: c,
		n:    n,
		res: c.env.registry.New(c.res, resource.KindBuffer, h, func(h native.Handle) error {
			lib.BufferFree(h)
			return nil
		}),
	}
	resource.Track(b, b.res)
	return b
}

// Len returns the length of the buffer contents.
func (b *NativeBuffer) Len() int {
	return b.n
}

// Bytes copies the contents out of native memory.
func (b *NativeBuffer) Bytes() ([]byte, error) {
	h, err := b.res.Handle()
	if err != nil {
		return nil, err
	}
	if h.IsNull() || b.n == 0 {
		return nil, nil
	}
	return b.lib.BufferBytes(h, b.n), nil
}

// Release frees the native memory.
func (b *NativeBuffer) Release() {
	b.res.Release()
}
