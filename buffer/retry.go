package buffer

import (
	"slices"
	"syscall"

	"github.com/wippyai/go-rados/errors"
	"golang.org/x/sys/unix"
)

type retryConfig struct {
	phase       errors.Phase
	op          string
	retryOn     []syscall.Errno
	maxCapacity int
}

// Option configures a retry sequence.
type Option func(*retryConfig)

// Op names the native call for error reporting.
func Op(phase errors.Phase, name string) Option {
	return func(c *retryConfig) {
		c.phase = phase
		c.op = name
	}
}

// On replaces the set of errno values that mean "buffer too small". The
// default is ERANGE.
func On(errno ...syscall.Errno) Option {
	return func(c *retryConfig) {
		c.retryOn = errno
	}
}

// WithMaxCapacity stops growing once the next capacity would exceed n. The
// sequence then fails with a buffer overflow error. Without it there is no
// limit.
func WithMaxCapacity(n int) Option {
	return func(c *retryConfig) {
		c.maxCapacity = n
	}
}

// Retry calls fn with a buffer of the initial capacity. While fn reports that
// the buffer is too small it is called again with a fresh, larger buffer.
// Any other failure is returned as a native errno error. On success the
// final buffer and the non-negative result are returned; the result usually
// carries the used length, which may be smaller than the capacity.
func Retry(initial int, fn func(*Buffer) int, opts ...Option) (*Buffer, int, error) {
	var buf *Buffer
	_, rc, err := RetrySized(initial, func(capacity int) int {
		buf = New(capacity)
		return fn(buf)
	}, opts...)
	if err != nil {
		return nil, rc, err
	}
	return buf, rc, nil
}

// RetrySized runs the same protocol for calls that fill several buffers at
// once. fn allocates whatever it needs for the capacity it is given. The
// capacity of the successful call is returned with its result.
func RetrySized(initial int, fn func(capacity int) int, opts ...Option) (int, int, error) {
	cfg := retryConfig{
		phase:   errors.PhaseBuffer,
		op:      "retry",
		retryOn: []syscall.Errno{unix.ERANGE},
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	capacity := max(initial, 0)
	for {
		rc := fn(capacity)
		if rc >= 0 {
			return capacity, rc, nil
		}

		if !errors.IsErrnoCode(int64(rc)) || !slices.Contains(cfg.retryOn, syscall.Errno(-rc)) {
			return capacity, rc, errors.Native(cfg.phase, cfg.op, int64(rc))
		}

		next := Grow(capacity)
		if cfg.maxCapacity > 0 && next > cfg.maxCapacity {
			return capacity, rc, errors.New(cfg.phase, errors.KindBufferOverflow).
				Op(cfg.op).
				Cause(errors.FromCode(int64(rc))).
				Detail("capacity limit of %d bytes reached", cfg.maxCapacity).
				Build()
		}
		capacity = next
	}
}
