package rados

import (
	"slices"
	"sync"
	"time"

	"golang.org/x/sys/unix"

	"github.com/wippyai/go-rados/buffer"
	"github.com/wippyai/go-rados/completion"
	"github.com/wippyai/go-rados/errors"
	"github.com/wippyai/go-rados/native"
	"github.com/wippyai/go-rados/resource"
)

// ReadOpTask is a step of a compound read operation.
type ReadOpTask interface {
	base() *taskBase
	addToRead(lib native.Operations, op native.Handle)
}

// iteratorTask is a read task whose output is a native iterator. The
// iterator is owned by the operation.
type iteratorTask interface {
	bind(op *ReadOp)
}

// ReadOp is a compound read of one object. Tasks run in order and the
// operation stops at the first failing one.
type ReadOp struct {
	env   *Rados
	res   *resource.Resource
	state *opState
	tasks []ReadOpTask
	mu    sync.Mutex
}

// NewReadOp creates an empty read operation. It is a root resource; release
// it with Close. Iterators produced by its tasks are released with it.
func (r *Rados) NewReadOp() (*ReadOp, error) {
	h := r.lib.CreateReadOp()
	if h.IsNull() {
		return nil, errors.Native(errors.PhaseOperation, "rados_create_read_op", -int64(unix.ENOMEM))
	}
	lib := r.lib
	op := &ReadOp{
		env:   r,
		state: &opState{},
		res: r.registry.New(nil, resource.KindReadOp, h, func(h native.Handle) error {
			lib.ReleaseReadOp(h)
			return nil
		}),
	}
	resource.Track(op, op.res)
	return op, nil
}

// Add appends tasks to the operation. Tasks cannot be added once the
// operation has run, and a task can only ever be added to one operation.
func (op *ReadOp) Add(tasks ...ReadOpTask) error {
	const name = "rados_read_op_add"
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
		t.addToRead(op.env.lib, h)
		if it, ok := t.(iteratorTask); ok {
			it.bind(op)
		}
		op.tasks = append(op.tasks, t)
	}
	return nil
}

// Tasks returns the tasks in the order they were added.
func (op *ReadOp) Tasks() []ReadOpTask {
	op.mu.Lock()
	defer op.mu.Unlock()
	return slices.Clone(op.tasks)
}

// Operate runs the operation on obj.
func (op *ReadOp) Operate(obj *Object, flags OperationFlag) error {
	const name = "rados_read_op_operate"
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
	rc := op.env.lib.ReadOpOperate(h, io, obj.oid, flags)
	op.state.finish(rc)
	return checkOperation(name, rc)
}

// OperateAsync runs the operation on obj asynchronously. The operation must
// stay open until the completion finishes.
func (op *ReadOp) OperateAsync(obj *Object, flags OperationFlag) (*completion.Typed[[]ReadOpTask], error) {
	const name = "rados_aio_read_op_operate"
	h, err := op.res.Handle()
	if err != nil {
		return nil, err
	}
	if err := op.state.begin(name); err != nil {
		return nil, err
	}
	c, err := obj.io.submit(errors.PhaseOperation, name, func(io, c native.Handle) int {
		return op.env.lib.AioReadOpOperate(h, io, c, obj.oid, flags)
	})
	if err != nil {
		return nil, err
	}
	op.state.mu.Lock()
	op.state.pending = c
	op.state.mu.Unlock()

	return completion.NewTyped(c, func(rc int) ([]ReadOpTask, error) {
		return op.Tasks(), checkOperation(name, rc)
	}), nil
}

// Close releases the native operation and any iterator its tasks still hold.
func (op *ReadOp) Close() {
	op.res.Release()
}

// Resource exposes the underlying resource node.
func (op *ReadOp) Resource() *resource.Resource {
	return op.res
}

// StatTask reads the object size and modification time.
type StatTask struct {
	taskBase
	err   error
	value ObjectStat
	mtime int64
	size  uint64
	prval int32
}

func (t *StatTask) addToRead(lib native.Operations, op native.Handle) {
	lib.ReadOpStat(op, &t.size, &t.mtime, &t.prval)
}

// Result returns the object stat.
func (t *StatTask) Result() (ObjectStat, error) {
	return cached(&t.taskBase, &t.value, &t.err, func() (ObjectStat, error) {
		rc, err := t.taskStatus(t.prval)
		if err != nil {
			return ObjectStat{}, err
		}
		if _, err := errors.Check(errors.PhaseOperation, "stat", rc); err != nil {
			return ObjectStat{}, err
		}
		return ObjectStat{Size: t.size, ModTime: time.Unix(t.mtime, 0)}, nil
	})
}

// ReadTask reads up to Length bytes at Offset.
type ReadTask struct {
	taskBase
	err       error
	buf       *buffer.Buffer
	value     []byte
	Offset    uint64
	Length    int
	bytesRead uint64
	prval     int32
}

func (t *ReadTask) addToRead(lib native.Operations, op native.Handle) {
	t.buf = buffer.New(t.Length)
	lib.ReadOpRead(op, t.Offset, t.buf.Bytes(), &t.bytesRead, &t.prval)
}

// Result returns the bytes read.
func (t *ReadTask) Result() ([]byte, error) {
	return cached(&t.taskBase, &t.value, &t.err, func() ([]byte, error) {
		rc, err := t.taskStatus(t.prval)
		if err != nil {
			return nil, err
		}
		if _, err := errors.Check(errors.PhaseOperation, "read", rc); err != nil {
			return nil, err
		}
		if t.bytesRead > uint64(t.buf.Cap()) {
			return nil, errors.MalformedOutput(errors.PhaseOperation, "read", "more bytes read than requested")
		}
		return t.buf.Read(int(t.bytesRead)), nil
	})
}

// ChecksumTask computes checksums like Object.Checksum. ChunkSize zero
// yields one checksum. Length zero runs to the end of the object, which
// needs an explicit ChunkSize of zero or MaxCount to size the result.
type ChecksumTask struct {
	taskBase
	err       error
	out       *buffer.Buffer
	init      []byte
	value     []uint64
	Type      ChecksumType
	Init      uint64
	Offset    uint64
	Length    uint64
	ChunkSize uint64
	// MaxCount bounds the number of checksums when it cannot be derived.
	MaxCount int
	prval    int32
}

func (t *ChecksumTask) addToRead(lib native.Operations, op native.Handle) {
	size := checksumResultSize(t.Type, t.Length, t.ChunkSize)
	if size == 0 {
		n := t.MaxCount
		if n <= 0 {
			n = defaultChecksumCount
		}
		size = 4 + n*t.Type.Size()
	}
	t.out = buffer.New(size)
	// An unknown type leaves the seed empty and the native side rejects it.
	t.init, _ = packChecksumInit(t.Type, t.Init)
	lib.ReadOpChecksum(op, t.Type, t.init, t.Offset, t.Length, t.ChunkSize, t.out.Bytes(), &t.prval)
}

// Result returns one checksum per chunk.
func (t *ChecksumTask) Result() ([]uint64, error) {
	return cached(&t.taskBase, &t.value, &t.err, func() ([]uint64, error) {
		rc, err := t.taskStatus(t.prval)
		if err != nil {
			return nil, err
		}
		if _, err := errors.Check(errors.PhaseOperation, "checksum", rc); err != nil {
			return nil, err
		}
		return unpackChecksums("checksum", t.Type, t.out.Bytes())
	})
}

// GetXattrsTask reads every extended attribute.
type GetXattrsTask struct {
	taskBase
	err   error
	it    *XattrIterator
	value map[string][]byte
	iter  native.Handle
	prval int32
}

func (t *GetXattrsTask) addToRead(lib native.Operations, op native.Handle) {
	lib.ReadOpGetXattrs(op, &t.iter, &t.prval)
}

func (t *GetXattrsTask) bind(op *ReadOp) {
	if !t.iter.IsNull() {
		t.it = newXattrIterator(op.env, op.res, op, t.iter)
	}
}

// Result returns the attributes. The native iterator is drained and closed
// on first use.
func (t *GetXattrsTask) Result() (map[string][]byte, error) {
	return cached(&t.taskBase, &t.value, &t.err, func() (map[string][]byte, error) {
		rc, err := t.taskStatus(t.prval)
		if err == nil {
			_, err = errors.Check(errors.PhaseOperation, "getxattrs", rc)
		}
		if err != nil {
			if t.it != nil {
				t.it.Close()
			}
			return nil, err
		}
		if t.it == nil {
			return map[string][]byte{}, nil
		}
		return t.it.Map()
	})
}

// OmapPage is one page of omap entries. More is set when entries beyond the
// page remain.
type OmapPage struct {
	Pairs []Pair
	More  bool
}

// Keys returns the keys of the page.
func (p OmapPage) Keys() []string {
	keys := make([]string, len(p.Pairs))
	for i, e := range p.Pairs {
		keys[i] = e.Key
	}
	return keys
}

// omapTask holds the output fields common to omap listing tasks.
type omapTask struct {
	taskBase
	err   error
	it    *OmapIterator
	value OmapPage
	iter  native.Handle
	prval int32
	more  uint8
}

func (t *omapTask) bind(op *ReadOp) {
	if !t.iter.IsNull() {
		t.it = newOmapIterator(op.env, op.res, op, t.iter)
	}
}

func (t *omapTask) result(name string) (OmapPage, error) {
	return cached(&t.taskBase, &t.value, &t.err, func() (OmapPage, error) {
		rc, err := t.taskStatus(t.prval)
		if err == nil {
			_, err = errors.Check(errors.PhaseOperation, name, rc)
		}
		if err != nil {
			if t.it != nil {
				t.it.Close()
			}
			return OmapPage{}, err
		}
		page := OmapPage{More: t.more != 0}
		if t.it == nil {
			return page, nil
		}
		page.Pairs, err = t.it.drain()
		return page, err
	})
}

// OmapGetValuesTask lists omap entries after StartAfter whose keys start
// with Prefix, at most Max of them when Max is non-zero.
type OmapGetValuesTask struct {
	omapTask
	StartAfter string
	Prefix     string
	Max        uint64
}

func (t *OmapGetValuesTask) addToRead(lib native.Operations, op native.Handle) {
	lib.ReadOpOmapGetVals(op, t.StartAfter, t.Prefix, t.Max, &t.iter, &t.more, &t.prval)
}

// Result returns the page of entries.
func (t *OmapGetValuesTask) Result() (OmapPage, error) {
	return t.result("omap_get_vals")
}

// OmapGetKeysTask lists omap keys after StartAfter, at most Max of them when
// Max is non-zero. Pair values are nil.
type OmapGetKeysTask struct {
	omapTask
	StartAfter string
	Max        uint64
}

func (t *OmapGetKeysTask) addToRead(lib native.Operations, op native.Handle) {
	lib.ReadOpOmapGetKeys(op, t.StartAfter, t.Max, &t.iter, &t.more, &t.prval)
}

// Result returns the page of keys.
func (t *OmapGetKeysTask) Result() (OmapPage, error) {
	return t.result("omap_get_keys")
}

// OmapGetValuesByKeysTask reads the omap entries of the given keys. Missing
// keys are left out of the page.
type OmapGetValuesByKeysTask struct {
	omapTask
	Keys []string
}

func (t *OmapGetValuesByKeysTask) addToRead(lib native.Operations, op native.Handle) {
	lib.ReadOpOmapGetValsByKeys(op, t.Keys, &t.iter, &t.prval)
}

// Result returns the entries found.
func (t *OmapGetValuesByKeysTask) Result() (OmapPage, error) {
	return t.result("omap_get_vals_by_keys")
}

// ReadExecTask calls an object class method inside a read operation. An
// output larger than MaxOutput fails the task with ERANGE.
type ReadExecTask struct {
	taskBase
	err       error
	out       *buffer.Buffer
	value     ExecResult
	Class     string
	Method    string
	Input     []byte
	MaxOutput int
	used      uint64
	prval     int32
}

func (t *ReadExecTask) addToRead(lib native.Operations, op native.Handle) {
	t.out = buffer.New(t.MaxOutput)
	lib.ReadOpExec(op, t.Class, t.Method, t.Input, t.out.Bytes(), &t.used, &t.prval)
}

// Result returns the method output.
func (t *ReadExecTask) Result() (ExecResult, error) {
	return cached(&t.taskBase, &t.value, &t.err, func() (ExecResult, error) {
		rc, err := t.taskStatus(t.prval)
		if err != nil {
			return ExecResult{}, err
		}
		if _, err := errors.Check(errors.PhaseOperation, "exec", rc); err != nil {
			return ExecResult{}, err
		}
		if t.used > uint64(t.out.Cap()) {
			return ExecResult{}, errors.MalformedOutput(errors.PhaseOperation, "exec", "more output than requested")
		}
		return ExecResult{ReturnValue: int(t.prval), Output: t.out.Read(int(t.used))}, nil
	})
}
