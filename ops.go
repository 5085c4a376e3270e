package rados

import (
	"sync"
	"sync/atomic"

	"golang.org/x/sys/unix"

	"github.com/wippyai/go-rados/completion"
	"github.com/wippyai/go-rados/errors"
)

// opState is the execution outcome shared by an operation and its tasks.
type opState struct {
	pending  *completion.Completion
	name     string
	rc       int
	mu       sync.Mutex
	executed bool
}

// begin marks the operation as started. An operation runs once.
func (s *opState) begin(op string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.executed || s.pending != nil {
		return errors.New(errors.PhaseOperation, errors.KindInvalidInput).
			Op(op).
			Detail("operation already executed").
			Build()
	}
	s.name = op
	return nil
}

func (s *opState) finish(rc int) {
	s.mu.Lock()
	s.executed = true
	s.rc = rc
	s.mu.Unlock()
}

func (s *opState) started() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.executed || s.pending != nil
}

// result returns the raw return code of the operation. Asynchronous
// operations are resolved from their completion on first use.
func (s *opState) result() (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.executed {
		return s.rc, nil
	}
	if s.pending == nil {
		return 0, errors.Incomplete("operation not executed")
	}
	rc, err := s.pending.ReturnValue()
	if err != nil {
		return 0, err
	}
	s.executed, s.rc = true, rc
	return rc, nil
}

// checkOperation turns an operation code into an error. Codes below the
// errno window come from a failed extent comparison and are reported as
// EILSEQ with the mismatch offset as the value.
func checkOperation(op string, rc int) error {
	if rc >= 0 {
		return nil
	}
	if errors.IsErrnoCode(int64(rc)) {
		return errors.Native(errors.PhaseOperation, op, int64(rc))
	}
	offset := uint64(-int64(rc) - errors.MaxErrno)
	return errors.New(errors.PhaseOperation, errors.KindErrno).
		Op(op).
		Value(offset).
		Cause(errors.FromCode(-int64(unix.EILSEQ))).
		Detail("extent comparison failed at offset %d", offset).
		Build()
}

// taskBase is embedded by every operation task.
type taskBase struct {
	state *opState
	added atomic.Bool
	once  sync.Once
}

func (b *taskBase) base() *taskBase { return b }

// claim binds the task to an operation. A task belongs to one operation.
func (b *taskBase) claim(s *opState, op string) error {
	if !b.added.CompareAndSwap(false, true) {
		return errors.New(errors.PhaseOperation, errors.KindInvalidInput).
			Op(op).
			Detail("task already belongs to an operation").
			Build()
	}
	b.state = s
	return nil
}

// outcome returns the operation code, or an incomplete error while the
// operation has not finished.
func (b *taskBase) outcome() (int, error) {
	if b.state == nil {
		return 0, errors.Incomplete("task not added to an operation")
	}
	return b.state.result()
}

// Err reports the failure of the operation the task ran in, or an
// incomplete error while it has not finished.
func (b *taskBase) Err() error {
	rc, err := b.outcome()
	if err != nil {
		return err
	}
	return checkOperation(b.state.name, rc)
}

// taskStatus decides the status of a task with its own return value. A
// negative prval is the task's own failure; a zero prval in a failed
// operation means the task's outcome is unknown and the operation failure
// applies.
func (b *taskBase) taskStatus(prval int32) (int, error) {
	rc, err := b.outcome()
	if err != nil {
		return 0, err
	}
	if prval < 0 {
		return int(prval), nil
	}
	if rc < 0 {
		return 0, checkOperation(b.state.name, rc)
	}
	return 0, nil
}

// cached runs parse once, after the operation finished. Incomplete errors
// are not cached.
func cached[T any](b *taskBase, value *T, err *error, parse func() (T, error)) (T, error) {
	if _, e := b.outcome(); e != nil {
		var zero T
		return zero, e
	}
	b.once.Do(func() {
		*value, *err = parse()
	})
	return *value, *err
}
