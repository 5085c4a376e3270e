package sim

import (
	"fmt"
	"sync"
	"time"

	"golang.org/x/sys/unix"

	"github.com/wippyai/go-rados/native"
)

// aioToken is a simulated completion. complete and safe close once; a
// cancelled operation is both.
type aioToken struct {
	complete  chan struct{}
	safe      chan struct{}
	cancelled chan struct{}
	io        *ioctx
	version   uint64
	rc        int
	submitted bool
	done      bool
	durable   bool
	tracked   bool
	mu        sync.Mutex
}

func (s *Sim) token(h native.Handle) *aioToken {
	return s.handles.get(hCompletion, h).(*aioToken)
}

func (s *Sim) AioCreateCompletion() (native.Handle, int) {
	tok := &aioToken{
		complete:  make(chan struct{}),
		safe:      make(chan struct{}),
		cancelled: make(chan struct{}),
	}
	return s.handles.create(hCompletion, tok), 0
}

// AioRelease frees a completion. Releasing one whose operation is still in
// flight panics.
func (s *Sim) AioRelease(c native.Handle) {
	tok := s.token(c)
	tok.mu.Lock()
	inflight := tok.submitted && !tok.done
	tok.mu.Unlock()
	if inflight {
		panic(fmt.Sprintf("sim: release of completion %#x with operation in flight", uintptr(c)))
	}
	s.record("aio_release", c)
	s.handles.free(hCompletion, c)
}

// waitable returns the token of c. Waiting on a completion that was never
// submitted would block forever and panics instead.
func (s *Sim) waitable(c native.Handle) *aioToken {
	tok := s.token(c)
	tok.mu.Lock()
	submitted := tok.submitted
	tok.mu.Unlock()
	if !submitted {
		panic(fmt.Sprintf("sim: wait on unsubmitted completion %#x", uintptr(c)))
	}
	return tok
}

func (s *Sim) AioWaitForComplete(c native.Handle) int {
	<-s.waitable(c).complete
	return 0
}

func (s *Sim) AioWaitForSafe(c native.Handle) int {
	<-s.waitable(c).safe
	return 0
}

func (s *Sim) AioIsComplete(c native.Handle) int {
	tok := s.token(c)
	tok.mu.Lock()
	defer tok.mu.Unlock()
	if tok.done {
		return 1
	}
	return 0
}

func (s *Sim) AioIsSafe(c native.Handle) int {
	tok := s.token(c)
	tok.mu.Lock()
	defer tok.mu.Unlock()
	if tok.durable {
		return 1
	}
	return 0
}

func (s *Sim) AioGetReturnValue(c native.Handle) int {
	tok := s.token(c)
	tok.mu.Lock()
	defer tok.mu.Unlock()
	return tok.rc
}

func (s *Sim) AioGetVersion(c native.Handle) uint64 {
	tok := s.token(c)
	tok.mu.Lock()
	defer tok.mu.Unlock()
	return tok.version
}

// AioCancel completes an in-flight operation with -ECANCELED. Cancelling a
// finished operation is a no-op.
func (s *Sim) AioCancel(io, c native.Handle) int {
	s.ioctx(io)
	tok := s.token(c)
	s.record("aio_cancel", c)

	tok.mu.Lock()
	defer tok.mu.Unlock()
	if !tok.submitted {
		return errno(unix.ENOENT)
	}
	if tok.done {
		return 0
	}
	close(tok.cancelled)
	tok.finish(errno(unix.ECANCELED), 0)
	tok.markSafe()
	return 0
}

func (tok *aioToken) isDone() bool {
	tok.mu.Lock()
	defer tok.mu.Unlock()
	return tok.done
}

// finish marks the operation complete. Callers hold tok.mu.
func (tok *aioToken) finish(rc int, version uint64) {
	tok.rc = rc
	tok.version = version
	tok.done = true
	close(tok.complete)
	if tok.tracked {
		tok.io.end()
	}
}

// markSafe marks the operation durable. Callers hold tok.mu.
func (tok *aioToken) markSafe() {
	if tok.durable {
		return
	}
	tok.durable = true
	close(tok.safe)
}

// submit starts fn on a goroutine after the configured latency. Tracked
// operations count towards the in-flight operations of io.
func (s *Sim) submit(io *ioctx, c native.Handle, tracked bool, fn func() (int, uint64)) int {
	tok := s.token(c)

	tok.mu.Lock()
	if tok.submitted {
		tok.mu.Unlock()
		panic(fmt.Sprintf("sim: completion %#x submitted twice", uintptr(c)))
	}
	tok.submitted = true
	tok.io = io
	tok.tracked = tracked
	tok.mu.Unlock()

	if tracked {
		io.begin()
	}

	latency := time.Duration(s.latency.Load())
	safeDelay := time.Duration(s.safeDelay.Load())

	s.jobs.Add(1)
	go func() {
		defer s.jobs.Done()

		shutdown := false
		if latency > 0 {
			timer := time.NewTimer(latency)
			select {
			case <-timer.C:
			case <-tok.cancelled:
				timer.Stop()
				return
			case <-s.done:
				timer.Stop()
				shutdown = true
			}
		}

		rc, version := errno(unix.ESHUTDOWN), uint64(0)
		if !shutdown && !tok.isDone() {
			rc, version = fn()
		}

		tok.mu.Lock()
		if tok.done {
			tok.mu.Unlock()
			return
		}
		tok.finish(rc, version)
		if safeDelay <= 0 || rc < 0 {
			tok.markSafe()
			tok.mu.Unlock()
			return
		}
		tok.mu.Unlock()

		timer := time.NewTimer(safeDelay)
		select {
		case <-timer.C:
		case <-s.done:
			timer.Stop()
		}
		tok.mu.Lock()
		tok.markSafe()
		tok.mu.Unlock()
	}()
	return 0
}

// submitJob submits an object job for the object oid of the I/O context h.
// The object key is fixed at submission, so a later namespace change does
// not affect it.
func (s *Sim) submitJob(h native.Handle, oid string, c native.Handle, fn job) int {
	io := s.ioctx(h)
	key := io.key(oid)
	return s.submit(io, c, true, func() (int, uint64) {
		return s.run(io, key, fn)
	})
}

func (s *Sim) AioFlush(h native.Handle) int {
	s.ioctx(h).drain()
	return 0
}

func (s *Sim) AioFlushAsync(h native.Handle, c native.Handle) int {
	io := s.ioctx(h)
	return s.submit(io, c, false, func() (int, uint64) {
		io.drain()
		return 0, 0
	})
}

func (s *Sim) AioWrite(h native.Handle, oid string, c native.Handle, buf []byte, off uint64) int {
	return s.submitJob(h, oid, c, s.opWrite(buf, off))
}

func (s *Sim) AioWriteFull(h native.Handle, oid string, c native.Handle, buf []byte) int {
	return s.submitJob(h, oid, c, s.opWriteFull(buf))
}

func (s *Sim) AioAppend(h native.Handle, oid string, c native.Handle, buf []byte) int {
	return s.submitJob(h, oid, c, s.opAppend(buf))
}

func (s *Sim) AioRead(h native.Handle, oid string, c native.Handle, buf []byte, off uint64) int {
	return s.submitJob(h, oid, c, s.opRead(buf, off))
}

func (s *Sim) AioRemove(h native.Handle, oid string, c native.Handle) int {
	return s.submitJob(h, oid, c, s.opRemove())
}

func (s *Sim) AioStat(h native.Handle, oid string, c native.Handle, size *uint64, mtime *int64) int {
	return s.submitJob(h, oid, c, s.opStat(size, mtime))
}

func (s *Sim) AioCmpExt(h native.Handle, oid string, c native.Handle, cmp []byte, off uint64) int {
	return s.submitJob(h, oid, c, s.opCmpExt(cmp, off))
}

func (s *Sim) AioGetXattr(h native.Handle, oid string, c native.Handle, name string, buf []byte) int {
	return s.submitJob(h, oid, c, s.opGetXattr(name, buf))
}

func (s *Sim) AioSetXattr(h native.Handle, oid string, c native.Handle, name string, value []byte) int {
	return s.submitJob(h, oid, c, s.opSetXattr(name, value))
}

func (s *Sim) AioRmXattr(h native.Handle, oid string, c native.Handle, name string) int {
	return s.submitJob(h, oid, c, s.opRmXattr(name))
}

func (s *Sim) AioExec(h native.Handle, oid string, c native.Handle, class, method string, in, out []byte) int {
	return s.submitJob(h, oid, c, s.opExec(class, method, in, out))
}

// AioWriteSame rejects a bad length at submission, as the native call does.
func (s *Sim) AioWriteSame(h native.Handle, oid string, c native.Handle, buf []byte, writeLen int, off uint64) int {
	data, rc := repeat(buf, writeLen)
	if rc != 0 {
		return rc
	}
	return s.submitJob(h, oid, c, s.opWrite(data, off))
}
