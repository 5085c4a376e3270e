package buffer

import (
	"bytes"
	"math"
	"strings"

	"github.com/wippyai/go-rados/errors"
)

// GrowthFactor is the multiplier applied to the capacity on every retry.
const GrowthFactor = 1.6

// Grow returns the next capacity in a retry sequence: capacity times
// GrowthFactor rounded up, and at least 1. It is strictly increasing, so a
// zero or one byte start still makes progress.
func Grow(capacity int) int {
	if capacity < 0 {
		capacity = 0
	}
	n := int(math.Ceil(float64(capacity) * GrowthFactor))
	if n < 1 {
		n = 1
	}
	return n
}

// Buffer is a host owned byte region lent to native calls. Its capacity is
// fixed; growing means allocating a new Buffer.
type Buffer struct {
	data []byte
}

// New allocates a zeroed buffer of the given capacity.
func New(capacity int) *Buffer {
	if capacity < 0 {
		capacity = 0
	}
	return &Buffer{data: make([]byte, capacity)}
}

// Wrap uses p as the buffer region. The caller keeps ownership of p.
func Wrap(p []byte) *Buffer {
	return &Buffer{data: p}
}

// Cap returns the allocated capacity.
func (b *Buffer) Cap() int {
	return len(b.data)
}

// Bytes returns the whole region, for lending to a native call.
func (b *Buffer) Bytes() []byte {
	return b.data
}

// Write copies p to the start of the buffer.
func (b *Buffer) Write(p []byte) error {
	if len(p) > len(b.data) {
		return errors.BufferOverflow(len(p), len(b.data))
	}
	copy(b.data, p)
	return nil
}

// Read returns a copy of the first n bytes. n is clamped to the capacity.
func (b *Buffer) Read(n int) []byte {
	n = b.clamp(n)
	out := make([]byte, n)
	copy(out, b.data[:n])
	return out
}

// String returns the first n bytes as a string.
func (b *Buffer) String(n int) string {
	return string(b.data[:b.clamp(n)])
}

// CString returns the bytes up to the first NUL, or the whole buffer if there
// is none.
func (b *Buffer) CString() string {
	if i := bytes.IndexByte(b.data, 0); i >= 0 {
		return string(b.data[:i])
	}
	return string(b.data)
}

// Strings decodes a list of NUL terminated strings from the first n bytes.
// Bytes after the last NUL are ignored. With stopOnEmpty an empty entry ends
// the list, which is how native calls mark the end of a name list.
func (b *Buffer) Strings(n int, stopOnEmpty bool) []string {
	parts := strings.Split(b.String(n), "\x00")
	parts = parts[:len(parts)-1]

	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p == "" && stopOnEmpty {
			break
		}
		out = append(out, p)
	}
	return out
}

func (b *Buffer) clamp(n int) int {
	if n < 0 {
		return 0
	}
	if n > len(b.data) {
		return len(b.data)
	}
	return n
}
