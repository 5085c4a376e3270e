package rados

import (
	"time"

	"github.com/wippyai/go-rados/buffer"
	"github.com/wippyai/go-rados/errors"
	"github.com/wippyai/go-rados/native"
)

// Object names one object in an I/O context. It holds no native handle of
// its own; every call goes through the context and fails once it is closed.
// The namespace is the one the context has when a call is made.
type Object struct {
	io  *IOContext
	oid string
}

// OID returns the object name.
func (o *Object) OID() string {
	return o.oid
}

// IOContext returns the context the object belongs to.
func (o *Object) IOContext() *IOContext {
	return o.io
}

func (o *Object) lib() native.Library {
	return o.io.env.lib
}

func (o *Object) check(op string, rc int) error {
	_, err := errors.Check(errors.PhaseObject, op, rc)
	return err
}

// Write writes data at off, extending the object as needed.
func (o *Object) Write(data []byte, off uint64) error {
	h, err := o.io.handle()
	if err != nil {
		return err
	}
	return o.check("rados_write", o.lib().Write(h, o.oid, data, off))
}

// WriteFull replaces the object contents with data.
func (o *Object) WriteFull(data []byte) error {
	h, err := o.io.handle()
	if err != nil {
		return err
	}
	return o.check("rados_write_full", o.lib().WriteFull(h, o.oid, data))
}

// WriteSame writes data repeatedly over writeLen bytes starting at off.
// writeLen must be a multiple of len(data).
func (o *Object) WriteSame(data []byte, writeLen int, off uint64) error {
	h, err := o.io.handle()
	if err != nil {
		return err
	}
	return o.check("rados_writesame", o.lib().WriteSame(h, o.oid, data, writeLen, off))
}

// Append appends data to the object.
func (o *Object) Append(data []byte) error {
	h, err := o.io.handle()
	if err != nil {
		return err
	}
	return o.check("rados_append", o.lib().Append(h, o.oid, data))
}

// Read reads up to length bytes at off.
func (o *Object) Read(length int, off uint64) ([]byte, error) {
	buf := buffer.Get(length)
	defer buffer.Put(buf)

	n, err := o.ReadInto(buf, off)
	if err != nil {
		return nil, err
	}
	return buf.Read(n), nil
}

// ReadInto reads into buf at off and returns the number of bytes read. The
// buffer can be reused across calls.
func (o *Object) ReadInto(buf *buffer.Buffer, off uint64) (int, error) {
	h, err := o.io.handle()
	if err != nil {
		return 0, err
	}
	return errors.CheckLength(errors.PhaseObject, "rados_read", o.lib().Read(h, o.oid, buf.Bytes(), off))
}

// Remove deletes the object.
func (o *Object) Remove() error {
	h, err := o.io.handle()
	if err != nil {
		return err
	}
	return o.check("rados_remove", o.lib().Remove(h, o.oid))
}

// Truncate resizes the object.
func (o *Object) Truncate(size uint64) error {
	h, err := o.io.handle()
	if err != nil {
		return err
	}
	return o.check("rados_trunc", o.lib().Trunc(h, o.oid, size))
}

// Stat returns the object size and modification time.
func (o *Object) Stat() (ObjectStat, error) {
	h, err := o.io.handle()
	if err != nil {
		return ObjectStat{}, err
	}
	var size uint64
	var mtime int64
	if err := o.check("rados_stat", o.lib().Stat(h, o.oid, &size, &mtime)); err != nil {
		return ObjectStat{}, err
	}
	return ObjectStat{Size: size, ModTime: time.Unix(mtime, 0)}, nil
}

// CompareExt compares cmp with the object contents at off.
func (o *Object) CompareExt(cmp []byte, off uint64) (CompareResult, error) {
	h, err := o.io.handle()
	if err != nil {
		return CompareResult{}, err
	}
	return parseCompare(errors.PhaseObject, "rados_cmpext", o.lib().CmpExt(h, o.oid, cmp, off))
}

// parseCompare decodes an extent comparison code: zero is a match, errno
// codes are failures and anything below the errno window encodes the
// mismatch offset.
func parseCompare(phase errors.Phase, op string, rc int) (CompareResult, error) {
	switch {
	case rc >= 0:
		return CompareResult{Match: true}, nil
	case errors.IsErrnoCode(int64(rc)):
		return CompareResult{}, errors.Native(phase, op, int64(rc))
	default:
		return CompareResult{Offset: uint64(-int64(rc) - errors.MaxErrno)}, nil
	}
}

// GetXattr returns the value of an extended attribute.
func (o *Object) GetXattr(name string) ([]byte, error) {
	h, err := o.io.handle()
	if err != nil {
		return nil, err
	}
	const op = "rados_getxattr"
	buf, n, err := buffer.Retry(o.io.env.initial(defaultXattrSize), func(b *buffer.Buffer) int {
		return o.lib().GetXattr(h, o.oid, name, b.Bytes())
	}, o.io.env.retryOpts(errors.PhaseObject, op)...)
	if err != nil {
		return nil, err
	}
	return buf.Read(n), nil
}

// SetXattr sets an extended attribute.
func (o *Object) SetXattr(name string, value []byte) error {
	h, err := o.io.handle()
	if err != nil {
		return err
	}
	return o.check("rados_setxattr", o.lib().SetXattr(h, o.oid, name, value))
}

// RemoveXattr removes an extended attribute.
func (o *Object) RemoveXattr(name string) error {
	h, err := o.io.handle()
	if err != nil {
		return err
	}
	return o.check("rados_rmxattr", o.lib().RmXattr(h, o.oid, name))
}

// XattrIterator opens an iterator over the extended attributes. Close it, or
// drain it through All, when done.
func (o *Object) XattrIterator() (*XattrIterator, error) {
	h, err := o.io.handle()
	if err != nil {
		return nil, err
	}
	it, rc := o.lib().GetXattrs(h, o.oid)
	if _, err := errors.Check(errors.PhaseIterator, "rados_getxattrs", rc); err != nil {
		return nil, err
	}
	return newXattrIterator(o.io.env, o.io.res, o.io, it), nil
}

// Xattrs returns every extended attribute.
func (o *Object) Xattrs() (map[string][]byte, error) {
	it, err := o.XattrIterator()
	if err != nil {
		return nil, err
	}
	return it.Map()
}

// Exec calls an object class method. The output is truncated to maxOutput
// bytes by the cluster, which fails with ERANGE when it does not fit.
func (o *Object) Exec(class, method string, in []byte, maxOutput int) (ExecResult, error) {
	h, err := o.io.handle()
	if err != nil {
		return ExecResult{}, err
	}
	out := buffer.New(maxOutput)
	return parseExec(out, o.lib().Exec(h, o.oid, class, method, in, out.Bytes()))
}

func parseExec(out *buffer.Buffer, rc int) (ExecResult, error) {
	n, err := errors.CheckLength(errors.PhaseObject, "rados_exec", rc)
	if err != nil {
		return ExecResult{}, err
	}
	return ExecResult{ReturnValue: n, Output: out.Read(n)}, nil
}

// Rollback restores the object to its state in the named pool snapshot.
func (o *Object) Rollback(snapshot string) error {
	h, err := o.io.handle()
	if err != nil {
		return err
	}
	return o.check("rados_ioctx_snap_rollback", o.lib().IoctxSnapRollback(h, o.oid, snapshot))
}

// RollbackSelfManaged restores the object to its state in a self-managed
// snapshot.
func (o *Object) RollbackSelfManaged(id uint64) error {
	h, err := o.io.handle()
	if err != nil {
		return err
	}
	return o.check("rados_ioctx_selfmanaged_snap_rollback", o.lib().IoctxSelfmanagedSnapRollback(h, o.oid, id))
}
