// Package completion turns native asynchronous operations into awaitable,
// typed results.
//
// A Completion wraps the native token. The token is created before the
// operation starts and is a child of the I/O context, so releasing the
// context releases every outstanding completion:
//
//	Created -> Submitted -> Complete | Safe | Cancelled -> Released
//
// Complete and safe are separate milestones: complete means the result is
// visible, safe means it is durable. Both can be polled (IsComplete, IsSafe)
// or waited for (WaitForComplete, WaitForSafe). Waits honour ctx; when ctx
// can never be done they are a plain native blocking wait.
//
// Typed adds a parser that converts the return code and captured outputs
// into a result:
//
//	c, _ := completion.New(lib, io)
//	read := completion.NewTyped(c, func(rc int) ([]byte, error) {
//		n, err := errors.Check(errors.PhaseObject, "rados_aio_read", rc)
//		if err != nil {
//			return nil, err
//		}
//		return buf[:n], nil
//	})
//	err := c.Submit(errors.PhaseObject, "rados_aio_read", func(h native.Handle) int {
//		return lib.AioRead(ioh, oid, h, buf, 0)
//	})
//	data, err := read.Wait(ctx)
//
// Result fails with errors.ErrIncomplete until the operation completes and
// parses at most once.
//
// Releasing a completion whose operation is neither complete nor safe
// cancels the operation before the token is freed. A failed cancel does not
// prevent the release; it is reported through the resource registry.
package completion
