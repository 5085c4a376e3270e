package completion

import (
	"context"
	"runtime"
	"sync"
	"sync/atomic"

	"github.com/wippyai/go-rados/errors"
	"github.com/wippyai/go-rados/native"
	"github.com/wippyai/go-rados/resource"
)

// Completion is a native asynchronous operation token. It is created before
// the operation is submitted and belongs to the I/O context the operation
// runs in.
type Completion struct {
	res *resource.Resource
	io  *resource.Resource
	tok *token

	// owner is the wrapper io belongs to. Holding it keeps the context from
	// being collected, and so released, while the completion is in use.
	owner any
}

// token is the state the release routine needs. It is kept apart from the
// Completion so the garbage collector can still reclaim the wrapper.
type token struct {
	lib       native.Async
	io        *resource.Resource
	waiters   sync.WaitGroup
	waiting   atomic.Int32
	submitted atomic.Bool
}

// New creates a completion token owned by io. owner is the value that owns
// io, usually the I/O context wrapper; the completion keeps it reachable. It
// may be nil when io is not tracked by a wrapper.
func New(lib native.Async, io *resource.Resource, owner any) (*Completion, error) {
	if _, err := io.Handle(); err != nil {
		return nil, err
	}

	h, rc := lib.AioCreateCompletion()
	if _, err := errors.Check(errors.PhaseCompletion, "rados_aio_create_completion2", rc); err != nil {
		return nil, err
	}

	tok := &token{lib: lib, io: io}
	c := &Completion{
		io:    io,
		tok:   tok,
		owner: owner,
		res:   io.Registry().New(io, resource.KindCompletion, h, tok.release),
	}
	resource.Track(c, c.res)
	return c, nil
}

// release cancels an operation that is still in flight, waits for helper
// goroutines blocked on the token and frees it. The token is freed even if
// cancellation fails. When cancellation fails while a helper is still parked
// in the native wait, the free is handed to a goroutine that runs once the
// operation finishes, so release never blocks on the cluster. That matters
// when release runs on the garbage collector's cleanup goroutine.
func (t *token) release(h native.Handle) error {
	var err error
	if t.submitted.Load() && t.lib.AioIsComplete(h) == 0 && t.lib.AioIsSafe(h) == 0 {
		err = t.cancel(h)
	}
	if err != nil && t.waiting.Load() > 0 {
		go func() {
			t.waiters.Wait()
			t.lib.AioRelease(h)
		}()
		return err
	}
	t.waiters.Wait()
	t.lib.AioRelease(h)
	return err
}

func (t *token) cancel(h native.Handle) error {
	io, err := t.io.HandleUnchecked()
	if err != nil {
		return err
	}
	_, err = errors.Check(errors.PhaseCompletion, "rados_aio_cancel", t.lib.AioCancel(io, h))
	return err
}

// Submit hands the native token to fn, which starts the asynchronous call and
// returns its submission status. The completion is marked submitted only when
// submission succeeds. A token can be submitted once.
func (c *Completion) Submit(phase errors.Phase, op string, fn func(c native.Handle) int) error {
	h, err := c.res.Handle()
	if err != nil {
		return err
	}
	if c.tok.submitted.Load() {
		return errors.New(errors.PhaseCompletion, errors.KindInvalidInput).
			Op(op).
			Detail("completion already submitted").
			Build()
	}
	if _, err := errors.Check(phase, op, fn(h)); err != nil {
		return err
	}
	c.tok.submitted.Store(true)
	return nil
}

// Submitted reports whether an operation was started on this token.
func (c *Completion) Submitted() bool {
	return c.tok.submitted.Load()
}

// IsComplete reports, without blocking, whether the operation is complete.
func (c *Completion) IsComplete() (bool, error) {
	h, err := c.res.Handle()
	if err != nil {
		return false, err
	}
	return c.tok.lib.AioIsComplete(h) != 0, nil
}

// IsSafe reports, without blocking, whether the operation is durable.
func (c *Completion) IsSafe() (bool, error) {
	h, err := c.res.Handle()
	if err != nil {
		return false, err
	}
	return c.tok.lib.AioIsSafe(h) != 0, nil
}

// WaitForComplete blocks until the operation is complete or ctx is done.
func (c *Completion) WaitForComplete(ctx context.Context) error {
	return c.wait(ctx, "rados_aio_wait_for_complete", c.tok.lib.AioWaitForComplete, c.tok.lib.AioIsComplete)
}

// WaitForSafe blocks until the operation is durable or ctx is done.
func (c *Completion) WaitForSafe(ctx context.Context) error {
	return c.wait(ctx, "rados_aio_wait_for_safe", c.tok.lib.AioWaitForSafe, c.tok.lib.AioIsSafe)
}

// wait calls the native blocking wait directly when ctx can never be done.
// Otherwise the native wait runs on a helper goroutine so the caller can
// give up on ctx; the helper finishes once the token signals, and release
// waits for it before freeing the token.
func (c *Completion) wait(ctx context.Context, op string, wait, ready func(native.Handle) int) error {
	h, err := c.res.Handle()
	if err != nil {
		return err
	}
	defer runtime.KeepAlive(c)

	if !c.tok.submitted.Load() {
		return errors.New(errors.PhaseCompletion, errors.KindInvalidInput).
			Op(op).
			Detail("completion was never submitted").
			Build()
	}

	if ctx.Done() == nil {
		_, err = errors.Check(errors.PhaseCompletion, op, wait(h))
		return err
	}

	if ready(h) != 0 {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	tok := c.tok
	done := make(chan int, 1)
	tok.waiters.Add(1)
	tok.waiting.Add(1)
	go func() {
		defer tok.waiters.Done()
		defer tok.waiting.Add(-1)
		done <- wait(h)
	}()

	select {
	case rc := <-done:
		_, err = errors.Check(errors.PhaseCompletion, op, rc)
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// ReturnValue returns the raw native result. It fails with an incomplete
// operation error until the operation is complete.
func (c *Completion) ReturnValue() (int, error) {
	h, err := c.res.Handle()
	if err != nil {
		return 0, err
	}
	if c.tok.lib.AioIsComplete(h) == 0 {
		return 0, errors.Incomplete("rados_aio_get_return_value")
	}
	return c.tok.lib.AioGetReturnValue(h), nil
}

// Version returns the object version the operation observed.
func (c *Completion) Version() (uint64, error) {
	h, err := c.res.Handle()
	if err != nil {
		return 0, err
	}
	return c.tok.lib.AioGetVersion(h), nil
}

// Cancel asks the native side to abandon the operation. Cancelling an
// operation that already completed does nothing.
func (c *Completion) Cancel() error {
	h, err := c.res.Handle()
	if err != nil {
		return err
	}
	if c.tok.lib.AioIsComplete(h) != 0 {
		return nil
	}
	return c.tok.cancel(h)
}

// Release frees the token, cancelling the operation first if it is still in
// flight.
func (c *Completion) Release() {
	c.res.Release()
}

// Valid reports whether the token and its I/O context are unreleased.
func (c *Completion) Valid() bool {
	return c.res.Valid()
}

// Resource exposes the underlying resource node.
func (c *Completion) Resource() *resource.Resource {
	return c.res
}
