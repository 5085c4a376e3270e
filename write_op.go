package rados

import (
	"slices"
	"sync"
	"time"

	"golang.org/x/sys/unix"

	"github.com/wippyai/go-rados/completion"
	"github.com/wippyai/go-rados/errors"
	"github.com/wippyai/go-rados/native"
	"github.com/wippyai/go-rados/resource"
)

// WriteOpTask is a step of a compound write operation.
type WriteOpTask interface {
	base() *taskBase
	addToWrite(lib native.Operations, op native.Handle)
}

// WriteOp is a compound write applied atomically to one object: either
// every task takes effect or none does.
type WriteOp struct {
	lib   native.Operations
	res   *resource.Resource
	state *opState
	mtime *int64
	tasks []WriteOpTask
	mu    sync.Mutex
}

// NewWriteOp creates an empty write operation. It is a root resource;
// release it with Close.
func (r *Rados) NewWriteOp() (*WriteOp, error) {
	h := r.lib.CreateWriteOp()
	if h.IsNull() {
		return nil, errors.Native(errors.PhaseOperation, "rados_create_write_op", -int64(unix.ENOMEM))
	}
	lib := r.lib
	op := &WriteOp{
		lib:   lib,
		state: &opState{},
		res: r.registry.New(nil, resource.KindWriteOp, h, func(h native.Handle) error {
			lib.ReleaseWriteOp(h)
			return nil
		}),
	}
	resource.Track(op, op.res)
	return op, nil
}

// Add appends tasks to the operation. Tasks cannot be added once the
// operation has run, and a task can only ever be added to one operation.
func (op *WriteOp) Add(tasks ...WriteOpTask) error {
	const name = "rados_write_op_add"
	h, err := op.res.Handle()
	if err != nil {
		return err
	}
	if op.state.started() {
		return errors.New(errors.PhaseOperation, errors.KindInvalidInput).
			Op(name).
			Detail("operation already executed").
			Build()
	}

	op.mu.Lock()
	defer op.mu.Unlock()
	for _, t := range tasks {
		if err := t.base().claim(op.state, name); err != nil {
			return err
		}
		t.addToWrite(op.lib, h)
		op.tasks = append(op.tasks, t)
	}
	return nil
}

// Tasks returns the tasks in the order they were added.
func (op *WriteOp) Tasks() []WriteOpTask {
	op.mu.Lock()
	defer op.mu.Unlock()
	return slices.Clone(op.tasks)
}

// SetModTime sets the modification time the operation records.
func (op *WriteOp) SetModTime(t time.Time) {
	v := t.Unix()
	op.mtime = &v
}

// Operate runs the operation on obj.
func (op *WriteOp) Operate(obj *Object, flags OperationFlag) error {
	const name = "rados_write_op_operate"
	h, err := op.res.Handle()
	if err != nil {
		return err
	}
	io, err := obj.io.handle()
	if err != nil {
		return err
	}
	if err := op.state.begin(name); err != nil {
		return err
	}
	rc := op.lib.WriteOpOperate(h, io, obj.oid, op.mtime, flags)
	op.state.finish(rc)
	return checkOperation(name, rc)
}

// OperateAsync runs the operation on obj asynchronously. The operation must
// stay open until the completion finishes.
func (op *WriteOp) OperateAsync(obj *Object, flags OperationFlag) (*completion.Typed[[]WriteOpTask], error) {
	const name = "rados_aio_write_op_operate"
	h, err := op.res.Handle()
	if err != nil {
		return nil, err
	}
	if err := op.state.begin(name); err != nil {
		return nil, err
	}
	c, err := obj.io.submit(errors.PhaseOperation, name, func(io, c native.Handle) int {
		return op.lib.AioWriteOpOperate(h, io, c, obj.oid, op.mtime, flags)
	})
	if err != nil {
		return nil, err
	}
	op.state.mu.Lock()
	op.state.pending = c
	op.state.mu.Unlock()

	return completion.NewTyped(c, func(rc int) ([]WriteOpTask, error) {
		return op.Tasks(), checkOperation(name, rc)
	}), nil
}

// Close releases the native operation.
func (op *WriteOp) Close() {
	op.res.Release()
}

// Resource exposes the underlying resource node.
func (op *WriteOp) Resource() *resource.Resource {
	return op.res
}

// AssertExistsTask fails the operation if the object does not exist.
type AssertExistsTask struct {
	taskBase
}

func (t *AssertExistsTask) addToWrite(lib native.Operations, op native.Handle) {
	lib.WriteOpAssertExists(op)
}

func (t *AssertExistsTask) addToRead(lib native.Operations, op native.Handle) {
	lib.ReadOpAssertExists(op)
}

// AssertVersionTask fails the operation with ERANGE if the object is older
// than Version and EOVERFLOW if it is newer.
type AssertVersionTask struct {
	taskBase
	Version uint64
}

func (t *AssertVersionTask) addToWrite(lib native.Operations, op native.Handle) {
	lib.WriteOpAssertVersion(op, t.Version)
}

func (t *AssertVersionTask) addToRead(lib native.Operations, op native.Handle) {
	lib.ReadOpAssertVersion(op, t.Version)
}

// CompareExtTask compares Data with the object at Offset. A mismatch fails
// the operation.
type CompareExtTask struct {
	taskBase
	err    error
	Data   []byte
	Offset uint64
	value  CompareResult
	prval  int32
}

func (t *CompareExtTask) addToWrite(lib native.Operations, op native.Handle) {
	lib.WriteOpCmpExt(op, t.Data, t.Offset, &t.prval)
}

func (t *CompareExtTask) addToRead(lib native.Operations, op native.Handle) {
	lib.ReadOpCmpExt(op, t.Data, t.Offset, &t.prval)
}

// Result returns the comparison outcome.
func (t *CompareExtTask) Result() (CompareResult, error) {
	return cached(&t.taskBase, &t.value, &t.err, func() (CompareResult, error) {
		rc, err := t.taskStatus(t.prval)
		if err != nil {
			return CompareResult{}, err
		}
		return parseCompare(errors.PhaseOperation, "cmpext", rc)
	})
}

// CreateTask creates the object. In CreateExclusive mode it fails with
// EEXIST if the object already exists.
type CreateTask struct {
	taskBase
	Category string
	Mode     CreateMode
}

func (t *CreateTask) addToWrite(lib native.Operations, op native.Handle) {
	lib.WriteOpCreate(op, int(t.Mode), t.Category)
}

// WriteTask writes Data at Offset.
type WriteTask struct {
	taskBase
	Data   []byte
	Offset uint64
}

func (t *WriteTask) addToWrite(lib native.Operations, op native.Handle) {
	lib.WriteOpWrite(op, t.Data, t.Offset)
}

// WriteFullTask replaces the object contents.
type WriteFullTask struct {
	taskBase
	Data []byte
}

func (t *WriteFullTask) addToWrite(lib native.Operations, op native.Handle) {
	lib.WriteOpWriteFull(op, t.Data)
}

// AppendTask appends Data.
type AppendTask struct {
	taskBase
	Data []byte
}

func (t *AppendTask) addToWrite(lib native.Operations, op native.Handle) {
	lib.WriteOpAppend(op, t.Data)
}

// RemoveTask deletes the object.
type RemoveTask struct {
	taskBase
}

func (t *RemoveTask) addToWrite(lib native.Operations, op native.Handle) {
	lib.WriteOpRemove(op)
}

// TruncateTask resizes the object.
type TruncateTask struct {
	taskBase
	Size uint64
}

func (t *TruncateTask) addToWrite(lib native.Operations, op native.Handle) {
	lib.WriteOpTruncate(op, t.Size)
}

// ZeroTask zeroes Length bytes at Offset.
type ZeroTask struct {
	taskBase
	Offset uint64
	Length uint64
}

func (t *ZeroTask) addToWrite(lib native.Operations, op native.Handle) {
	lib.WriteOpZero(op, t.Offset, t.Length)
}

// SetXattrTask sets an extended attribute.
type SetXattrTask struct {
	taskBase
	Name  string
	Value []byte
}

func (t *SetXattrTask) addToWrite(lib native.Operations, op native.Handle) {
	lib.WriteOpSetXattr(op, t.Name, t.Value)
}

// RemoveXattrTask removes an extended attribute.
type RemoveXattrTask struct {
	taskBase
	Name string
}

func (t *RemoveXattrTask) addToWrite(lib native.Operations, op native.Handle) {
	lib.WriteOpRmXattr(op, t.Name)
}

// OmapSetTask sets omap entries.
type OmapSetTask struct {
	taskBase
	Values map[string][]byte
}

func (t *OmapSetTask) addToWrite(lib native.Operations, op native.Handle) {
	keys := make([]string, 0, len(t.Values))
	for k := range t.Values {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	values := make([][]byte, len(keys))
	for i, k := range keys {
		values[i] = t.Values[k]
	}
	lib.WriteOpOmapSet(op, keys, values)
}

// OmapRemoveKeysTask removes omap entries.
type OmapRemoveKeysTask struct {
	taskBase
	Keys []string
}

func (t *OmapRemoveKeysTask) addToWrite(lib native.Operations, op native.Handle) {
	lib.WriteOpOmapRmKeys(op, t.Keys)
}

// OmapClearTask removes every omap entry.
type OmapClearTask struct {
	taskBase
}

func (t *OmapClearTask) addToWrite(lib native.Operations, op native.Handle) {
	lib.WriteOpOmapClear(op)
}

// OmapRemoveRangeTask removes the omap entries with keys in [Start, End).
type OmapRemoveRangeTask struct {
	taskBase
	Start string
	End   string
}

func (t *OmapRemoveRangeTask) addToWrite(lib native.Operations, op native.Handle) {
	lib.WriteOpOmapRmRange(op, t.Start, t.End)
}

// CompareXattrTask compares Value with an extended attribute as
// "Value Op stored". A missing attribute compares as empty. A false
// comparison fails the operation with ECANCELED.
type CompareXattrTask struct {
	taskBase
	Name  string
	Value []byte
	Op    CompareOp
}

func (t *CompareXattrTask) addToWrite(lib native.Operations, op native.Handle) {
	lib.WriteOpCmpXattr(op, t.Name, t.Op, t.Value)
}

func (t *CompareXattrTask) addToRead(lib native.Operations, op native.Handle) {
	lib.ReadOpCmpXattr(op, t.Name, t.Op, t.Value)
}

// OmapCompareTask compares the omap value of Key with Value as
// "stored Op Value". Only CompareEQ, CompareGT and CompareLT are supported.
// A false comparison fails the operation with ECANCELED.
type OmapCompareTask struct {
	taskBase
	err   error
	Key   string
	Value []byte
	Op    CompareOp
	value bool
	prval int32
}

func (t *OmapCompareTask) addToWrite(lib native.Operations, op native.Handle) {
	lib.WriteOpOmapCmp(op, t.Key, t.Op, t.Value, &t.prval)
}

func (t *OmapCompareTask) addToRead(lib native.Operations, op native.Handle) {
	lib.ReadOpOmapCmp(op, t.Key, t.Op, t.Value, &t.prval)
}

// Result reports whether the comparison held.
func (t *OmapCompareTask) Result() (bool, error) {
	return cached(&t.taskBase, &t.value, &t.err, func() (bool, error) {
		rc, err := t.taskStatus(t.prval)
		if err != nil {
			return false, err
		}
		if rc == -int(unix.ECANCELED) {
			return false, nil
		}
		if _, err := errors.Check(errors.PhaseOperation, "omap_cmp", rc); err != nil {
			return false, err
		}
		return true, nil
	})
}

// WriteSameTask writes Data repeatedly over Length bytes at Offset. Length
// must be a multiple of len(Data).
type WriteSameTask struct {
	taskBase
	Data   []byte
	Length int
	Offset uint64
}

func (t *WriteSameTask) addToWrite(lib native.Operations, op native.Handle) {
	lib.WriteOpWriteSame(op, t.Data, t.Length, t.Offset)
}

// SetAllocHintTask tells the cluster the expected object and write sizes.
// It creates the object if it does not exist.
type SetAllocHintTask struct {
	taskBase
	ObjectSize uint64
	WriteSize  uint64
	Flags      AllocHintFlag
}

func (t *SetAllocHintTask) addToWrite(lib native.Operations, op native.Handle) {
	lib.WriteOpSetAllocHint(op, t.ObjectSize, t.WriteSize, t.Flags)
}

// ExecTask calls an object class method inside a write operation. Output of
// the method is discarded.
type ExecTask struct {
	taskBase
	err    error
	Class  string
	Method string
	Input  []byte
	value  int
	prval  int32
}

func (t *ExecTask) addToWrite(lib native.Operations, op native.Handle) {
	lib.WriteOpExec(op, t.Class, t.Method, t.Input, &t.prval)
}

// Result returns the non-negative code the method returned.
func (t *ExecTask) Result() (int, error) {
	return cached(&t.taskBase, &t.value, &t.err, func() (int, error) {
		rc, err := t.taskStatus(t.prval)
		if err != nil {
			return 0, err
		}
		if _, err := errors.Check(errors.PhaseOperation, "exec", rc); err != nil {
			return 0, err
		}
		return int(t.prval), nil
	})
}
