package rados

import (
	"time"

	"github.com/wippyai/go-rados/buffer"
	"github.com/wippyai/go-rados/completion"
	"github.com/wippyai/go-rados/errors"
	"github.com/wippyai/go-rados/native"
	"github.com/wippyai/go-rados/resource"
)

// IOContext is an I/O context on one pool. Completions and iterators created
// through it are its children and are released before it.
type IOContext struct {
	conn *Conn
	env  *Rados
	res  *resource.Resource
}

func newIOContext(c *Conn, h native.Handle) *IOContext {
	lib := c.env.lib
	io := &IOContext{
		conn: c,
		env:  c.env,
		res: c.env.registry.New(c.res, resource.KindIOContext, h, func(h native.Handle) error {
			lib.IoctxDestroy(h)
			return nil
		}),
	}
	resource.Track(io, io.res)
	return io
}

func (io *IOContext) handle() (native.Handle, error) {
	return io.res.Handle()
}

// Close destroys the context after releasing its completions and iterators.
// Completions still in flight are cancelled.
func (io *IOContext) Close() {
	io.res.Release()
}

// Valid reports whether neither the context nor its connection is closed.
func (io *IOContext) Valid() bool {
	return io.res.Valid()
}

// Conn returns the connection the context was opened on.
func (io *IOContext) Conn() *Conn {
	return io.conn
}

// Resource exposes the underlying resource node.
func (io *IOContext) Resource() *resource.Resource {
	return io.res
}

// PoolID returns the id of the context's pool.
func (io *IOContext) PoolID() (int64, error) {
	h, err := io.handle()
	if err != nil {
		return 0, err
	}
	return io.env.lib.IoctxGetID(h), nil
}

// PoolStat returns usage of the context's pool.
func (io *IOContext) PoolStat() (PoolStat, error) {
	var st PoolStat
	h, err := io.handle()
	if err != nil {
		return st, err
	}
	_, err = errors.Check(errors.PhaseIOContext, "rados_ioctx_pool_stat", io.env.lib.IoctxPoolStat(h, &st))
	return st, err
}

// SetNamespace selects the namespace later object calls use. AllNamespaces
// only affects object listing.
func (io *IOContext) SetNamespace(ns string) error {
	h, err := io.handle()
	if err != nil {
		return err
	}
	io.env.lib.IoctxSetNamespace(h, ns)
	return nil
}

// Namespace returns the current namespace.
func (io *IOContext) Namespace() (string, error) {
	h, err := io.handle()
	if err != nil {
		return "", err
	}
	const op = "rados_ioctx_get_namespace"
	buf, n, err := buffer.Retry(io.env.initial(defaultNameSize), func(b *buffer.Buffer) int {
		return io.env.lib.IoctxGetNamespace(h, b.Bytes())
	}, io.env.retryOpts(errors.PhaseIOContext, op)...)
	if err != nil {
		return "", err
	}
	return buf.String(n), nil
}

// SetLocatorKey sets the key used for object placement instead of the
// object name.
func (io *IOContext) SetLocatorKey(key string) error {
	h, err := io.handle()
	if err != nil {
		return err
	}
	io.env.lib.IoctxLocatorSetKey(h, key)
	return nil
}

// LastVersion returns the object version seen by the last operation of the
// context.
func (io *IOContext) LastVersion() (uint64, error) {
	h, err := io.handle()
	if err != nil {
		return 0, err
	}
	return io.env.lib.GetLastVersion(h), nil
}

// Object returns a handle for the named object. No native call is made.
func (io *IOContext) Object(oid string) *Object {
	return &Object{io: io, oid: oid}
}

// ListObjects opens an iterator over the objects of the current namespace.
func (io *IOContext) ListObjects() (*ObjectIterator, error) {
	h, err := io.handle()
	if err != nil {
		return nil, err
	}
	it, rc := io.env.lib.NobjectsListOpen(h)
	if _, err := errors.Check(errors.PhaseIterator, "rados_nobjects_list_open", rc); err != nil {
		return nil, err
	}
	return newObjectIterator(io, it), nil
}

// Flush blocks until every asynchronous write of the context is safe.
func (io *IOContext) Flush() error {
	h, err := io.handle()
	if err != nil {
		return err
	}
	_, err = errors.Check(errors.PhaseIOContext, "rados_aio_flush", io.env.lib.AioFlush(h))
	return err
}

// FlushAsync returns a completion that finishes once every asynchronous
// write submitted so far is safe.
func (io *IOContext) FlushAsync() (*completion.Typed[struct{}], error) {
	const op = "rados_aio_flush_async"
	c, err := io.submit(errors.PhaseIOContext, op, io.env.lib.AioFlushAsync)
	if err != nil {
		return nil, err
	}
	return completion.NewTyped(c, completion.Void(errors.PhaseIOContext, op)), nil
}

// Cancel asks the cluster to abandon the operation of c.
func (io *IOContext) Cancel(c *completion.Completion) error {
	if _, err := io.handle(); err != nil {
		return err
	}
	return c.Cancel()
}

// submit creates a completion under the context and starts an asynchronous
// call with it. The completion is released again if submission fails.
func (io *IOContext) submit(phase errors.Phase, op string, start func(io, c native.Handle) int) (*completion.Completion, error) {
	h, err := io.handle()
	if err != nil {
		return nil, err
	}
	c, err := completion.New(io.env.lib, io.res, io)
	if err != nil {
		return nil, err
	}
	err = c.Submit(phase, op, func(ch native.Handle) int {
		return start(h, ch)
	})
	if err != nil {
		c.Release()
		return nil, err
	}
	return c, nil
}

// CreateSnapshot creates a pool snapshot.
func (io *IOContext) CreateSnapshot(name string) error {
	h, err := io.handle()
	if err != nil {
		return err
	}
	_, err = errors.Check(errors.PhaseIOContext, "rados_ioctx_snap_create", io.env.lib.IoctxSnapCreate(h, name))
	return err
}

// RemoveSnapshot removes a pool snapshot.
func (io *IOContext) RemoveSnapshot(name string) error {
	h, err := io.handle()
	if err != nil {
		return err
	}
	_, err = errors.Check(errors.PhaseIOContext, "rados_ioctx_snap_remove", io.env.lib.IoctxSnapRemove(h, name))
	return err
}

// Snapshots returns every snapshot of the pool.
func (io *IOContext) Snapshots() ([]Snapshot, error) {
	h, err := io.handle()
	if err != nil {
		return nil, err
	}
	const op = "rados_ioctx_snap_list"
	var ids []uint64
	_, n, err := buffer.RetrySized(io.env.initial(defaultSnapCount), func(capacity int) int {
		ids = make([]uint64, capacity)
		return io.env.lib.IoctxSnapList(h, ids)
	}, io.env.retryOpts(errors.PhaseIOContext, op)...)
	if err != nil {
		return nil, err
	}

	snaps := make([]Snapshot, 0, n)
	for _, id := range ids[:n] {
		name, err := io.SnapshotName(id)
		if err != nil {
			return nil, err
		}
		stamp, err := io.SnapshotStamp(id)
		if err != nil {
			return nil, err
		}
		snaps = append(snaps, Snapshot{ID: id, Name: name, Stamp: stamp})
	}
	return snaps, nil
}

// LookupSnapshot returns the id of a named snapshot.
func (io *IOContext) LookupSnapshot(name string) (uint64, error) {
	h, err := io.handle()
	if err != nil {
		return 0, err
	}
	var id uint64
	_, err = errors.Check(errors.PhaseIOContext, "rados_ioctx_snap_lookup", io.env.lib.IoctxSnapLookup(h, name, &id))
	return id, err
}

// SnapshotName returns the name of a snapshot.
func (io *IOContext) SnapshotName(id uint64) (string, error) {
	h, err := io.handle()
	if err != nil {
		return "", err
	}
	const op = "rados_ioctx_snap_get_name"
	buf, _, err := buffer.Retry(io.env.initial(defaultNameSize), func(b *buffer.Buffer) int {
		return io.env.lib.IoctxSnapGetName(h, id, b.Bytes())
	}, io.env.retryOpts(errors.PhaseIOContext, op)...)
	if err != nil {
		return "", err
	}
	return buf.CString(), nil
}

// SnapshotStamp returns when a snapshot was taken.
func (io *IOContext) SnapshotStamp(id uint64) (time.Time, error) {
	h, err := io.handle()
	if err != nil {
		return time.Time{}, err
	}
	var stamp int64
	if _, err := errors.Check(errors.PhaseIOContext, "rados_ioctx_snap_get_stamp", io.env.lib.IoctxSnapGetStamp(h, id, &stamp)); err != nil {
		return time.Time{}, err
	}
	return time.Unix(stamp, 0), nil
}

// SelfManagedSnapshot is a snapshot id allocated by the application. The
// cluster preserves object states for it only when writes carry it in their
// write context, see SetSelfManagedWriteContext.
type SelfManagedSnapshot struct {
	io *IOContext
	ID uint64
}

// CreateSelfManagedSnapshot allocates a self-managed snapshot id.
func (io *IOContext) CreateSelfManagedSnapshot() (SelfManagedSnapshot, error) {
	h, err := io.handle()
	if err != nil {
		return SelfManagedSnapshot{}, err
	}
	var id uint64
	if _, err := errors.Check(errors.PhaseIOContext, "rados_ioctx_selfmanaged_snap_create", io.env.lib.IoctxSelfmanagedSnapCreate(h, &id)); err != nil {
		return SelfManagedSnapshot{}, err
	}
	return SelfManagedSnapshot{io: io, ID: id}, nil
}

// CreateSelfManagedSnapshotAsync allocates a self-managed snapshot id
// asynchronously.
func (io *IOContext) CreateSelfManagedSnapshotAsync() (*completion.Typed[SelfManagedSnapshot], error) {
	const op = "rados_aio_ioctx_selfmanaged_snap_create"
	id := new(uint64)
	c, err := io.submit(errors.PhaseIOContext, op, func(h, c native.Handle) int {
		io.env.lib.AioIoctxSelfmanagedSnapCreate(h, id, c)
		return 0
	})
	if err != nil {
		return nil, err
	}
	return completion.NewTyped(c, func(rc int) (SelfManagedSnapshot, error) {
		if _, err := errors.Check(errors.PhaseIOContext, op, rc); err != nil {
			return SelfManagedSnapshot{}, err
		}
		return SelfManagedSnapshot{io: io, ID: *id}, nil
	}), nil
}

// SelfManagedSnapshot returns the snapshot with a known id.
func (io *IOContext) SelfManagedSnapshot(id uint64) SelfManagedSnapshot {
	return SelfManagedSnapshot{io: io, ID: id}
}

// Remove deletes the snapshot and the object states preserved for it.
func (s SelfManagedSnapshot) Remove() error {
	h, err := s.io.handle()
	if err != nil {
		return err
	}
	_, err = errors.Check(errors.PhaseIOContext, "rados_ioctx_selfmanaged_snap_remove", s.io.env.lib.IoctxSelfmanagedSnapRemove(h, s.ID))
	return err
}

// RemoveAsync deletes the snapshot asynchronously.
func (s SelfManagedSnapshot) RemoveAsync() (*completion.Typed[struct{}], error) {
	const op = "rados_aio_ioctx_selfmanaged_snap_remove"
	c, err := s.io.submit(errors.PhaseIOContext, op, func(h, c native.Handle) int {
		s.io.env.lib.AioIoctxSelfmanagedSnapRemove(h, s.ID, c)
		return 0
	})
	if err != nil {
		return nil, err
	}
	return completion.NewTyped(c, completion.Void(errors.PhaseIOContext, op)), nil
}

// SetSelfManagedWriteContext sets the snapshot context of later writes:
// seq is the newest snapshot id and snaps lists the existing snapshots in
// descending order.
func (io *IOContext) SetSelfManagedWriteContext(seq uint64, snaps []uint64) error {
	h, err := io.handle()
	if err != nil {
		return err
	}
	_, err = errors.Check(errors.PhaseIOContext, "rados_ioctx_selfmanaged_snap_set_write_ctx", io.env.lib.IoctxSelfmanagedSnapSetWriteCtx(h, seq, snaps))
	return err
}

// RequiresAlignment reports whether appends to the pool must be aligned.
func (io *IOContext) RequiresAlignment() (bool, error) {
	h, err := io.handle()
	if err != nil {
		return false, err
	}
	var requires int
	_, err = errors.Check(errors.PhaseIOContext, "rados_ioctx_pool_requires_alignment2", io.env.lib.IoctxPoolRequiresAlignment2(h, &requires))
	return requires != 0, err
}

// RequiredAlignment returns the append alignment of the pool in bytes.
func (io *IOContext) RequiredAlignment() (uint64, error) {
	h, err := io.handle()
	if err != nil {
		return 0, err
	}
	var alignment uint64
	_, err = errors.Check(errors.PhaseIOContext, "rados_ioctx_pool_required_alignment2", io.env.lib.IoctxPoolRequiredAlignment2(h, &alignment))
	return alignment, err
}
