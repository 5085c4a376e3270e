package completion

import (
	"context"
	"sync"

	"github.com/wippyai/go-rados/errors"
)

// ParseFunc turns the native return code, together with whatever output the
// submission captured, into a typed result.
type ParseFunc[T any] func(rc int) (T, error)

// Typed is a completion with a result parser. The parser holds the buffers
// and output fields passed to the native call, which keeps them alive for as
// long as the operation may write to them.
type Typed[T any] struct {
	*Completion
	parse ParseFunc[T]
	value T
	err   error
	once  sync.Once
}

// NewTyped attaches parse to c.
func NewTyped[T any](c *Completion, parse ParseFunc[T]) *Typed[T] {
	return &Typed[T]{Completion: c, parse: parse}
}

// Result returns the parsed result. It fails with an incomplete operation
// error until the operation is complete. The parser runs once; later calls
// return the cached value or error.
func (t *Typed[T]) Result() (T, error) {
	var zero T

	rc, err := t.ReturnValue()
	if err != nil {
		return zero, err
	}

	t.once.Do(func() {
		t.value, t.err = t.parse(rc)
	})
	return t.value, t.err
}

// Wait blocks until the operation is complete and returns its result.
func (t *Typed[T]) Wait(ctx context.Context) (T, error) {
	if err := t.WaitForComplete(ctx); err != nil {
		var zero T
		return zero, err
	}
	return t.Result()
}

// Void parses operations that only report success or failure.
func Void(phase errors.Phase, op string) ParseFunc[struct{}] {
	return func(rc int) (struct{}, error) {
		_, err := errors.Check(phase, op, rc)
		return struct{}{}, err
	}
}

// Code parses operations whose non-negative return value is the result.
func Code(phase errors.Phase, op string) ParseFunc[int] {
	return func(rc int) (int, error) {
		return errors.Check(phase, op, rc)
	}
}
