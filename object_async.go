package rados

import (
	"time"

	"github.com/wippyai/go-rados/buffer"
	"github.com/wippyai/go-rados/completion"
	"github.com/wippyai/go-rados/errors"
	"github.com/wippyai/go-rados/native"
)

// Asynchronous variants return a typed completion owned by the object's I/O
// context. Data passed in and buffers for the results are referenced by the
// completion until it is released, so the caller must not modify them while
// the operation is in flight.

func (o *Object) void(op string, start func(io, c native.Handle) int) (*completion.Typed[struct{}], error) {
	c, err := o.io.submit(errors.PhaseObject, op, start)
	if err != nil {
		return nil, err
	}
	return completion.NewTyped(c, completion.Void(errors.PhaseObject, op)), nil
}

// WriteAsync writes data at off.
func (o *Object) WriteAsync(data []byte, off uint64) (*completion.Typed[struct{}], error) {
	return o.void("rados_aio_write", func(io, c native.Handle) int {
		return o.lib().AioWrite(io, o.oid, c, data, off)
	})
}

// WriteFullAsync replaces the object contents with data.
func (o *Object) WriteFullAsync(data []byte) (*completion.Typed[struct{}], error) {
	return o.void("rados_aio_write_full", func(io, c native.Handle) int {
		return o.lib().AioWriteFull(io, o.oid, c, data)
	})
}

// AppendAsync appends data to the object.
func (o *Object) AppendAsync(data []byte) (*completion.Typed[struct{}], error) {
	return o.void("rados_aio_append", func(io, c native.Handle) int {
		return o.lib().AioAppend(io, o.oid, c, data)
	})
}

// WriteSameAsync writes data repeatedly over writeLen bytes starting at off.
func (o *Object) WriteSameAsync(data []byte, writeLen int, off uint64) (*completion.Typed[struct{}], error) {
	return o.void("rados_aio_writesame", func(io, c native.Handle) int {
		return o.lib().AioWriteSame(io, o.oid, c, data, writeLen, off)
	})
}

// RemoveAsync deletes the object.
func (o *Object) RemoveAsync() (*completion.Typed[struct{}], error) {
	return o.void("rados_aio_remove", func(io, c native.Handle) int {
		return o.lib().AioRemove(io, o.oid, c)
	})
}

// SetXattrAsync sets an extended attribute.
func (o *Object) SetXattrAsync(name string, value []byte) (*completion.Typed[struct{}], error) {
	return o.void("rados_aio_setxattr", func(io, c native.Handle) int {
		return o.lib().AioSetXattr(io, o.oid, c, name, value)
	})
}

// RemoveXattrAsync removes an extended attribute.
func (o *Object) RemoveXattrAsync(name string) (*completion.Typed[struct{}], error) {
	return o.void("rados_aio_rmxattr", func(io, c native.Handle) int {
		return o.lib().AioRmXattr(io, o.oid, c, name)
	})
}

// ReadAsync reads up to length bytes at off.
func (o *Object) ReadAsync(length int, off uint64) (*completion.Typed[[]byte], error) {
	const op = "rados_aio_read"
	buf := buffer.New(length)
	c, err := o.io.submit(errors.PhaseObject, op, func(io, c native.Handle) int {
		return o.lib().AioRead(io, o.oid, c, buf.Bytes(), off)
	})
	if err != nil {
		return nil, err
	}
	return completion.NewTyped(c, func(rc int) ([]byte, error) {
		n, err := errors.CheckLength(errors.PhaseObject, op, rc)
		if err != nil {
			return nil, err
		}
		return buf.Read(n), nil
	}), nil
}

// StatAsync returns the object size and modification time.
func (o *Object) StatAsync() (*completion.Typed[ObjectStat], error) {
	const op = "rados_aio_stat"
	out := &struct {
		size  uint64
		mtime int64
	}{}
	c, err := o.io.submit(errors.PhaseObject, op, func(io, c native.Handle) int {
		return o.lib().AioStat(io, o.oid, c, &out.size, &out.mtime)
	})
	if err != nil {
		return nil, err
	}
	return completion.NewTyped(c, func(rc int) (ObjectStat, error) {
		if _, err := errors.Check(errors.PhaseObject, op, rc); err != nil {
			return ObjectStat{}, err
		}
		return ObjectStat{Size: out.size, ModTime: time.Unix(out.mtime, 0)}, nil
	}), nil
}

// CompareExtAsync compares cmp with the object contents at off.
func (o *Object) CompareExtAsync(cmp []byte, off uint64) (*completion.Typed[CompareResult], error) {
	const op = "rados_aio_cmpext"
	c, err := o.io.submit(errors.PhaseObject, op, func(io, c native.Handle) int {
		return o.lib().AioCmpExt(io, o.oid, c, cmp, off)
	})
	if err != nil {
		return nil, err
	}
	return completion.NewTyped(c, func(rc int) (CompareResult, error) {
		return parseCompare(errors.PhaseObject, op, rc)
	}), nil
}

// GetXattrAsync reads an extended attribute of at most size bytes. Unlike
// GetXattr it cannot grow the buffer; a larger value fails with ERANGE.
func (o *Object) GetXattrAsync(name string, size int) (*completion.Typed[[]byte], error) {
	const op = "rados_aio_getxattr"
	buf := buffer.New(size)
	c, err := o.io.submit(errors.PhaseObject, op, func(io, c native.Handle) int {
		return o.lib().AioGetXattr(io, o.oid, c, name, buf.Bytes())
	})
	if err != nil {
		return nil, err
	}
	return completion.NewTyped(c, func(rc int) ([]byte, error) {
		n, err := errors.CheckLength(errors.PhaseObject, op, rc)
		if err != nil {
			return nil, err
		}
		return buf.Read(n), nil
	}), nil
}

// ExecAsync calls an object class method.
func (o *Object) ExecAsync(class, method string, in []byte, maxOutput int) (*completion.Typed[ExecResult], error) {
	const op = "rados_aio_exec"
	out := buffer.New(maxOutput)
	c, err := o.io.submit(errors.PhaseObject, op, func(io, c native.Handle) int {
		return o.lib().AioExec(io, o.oid, c, class, method, in, out.Bytes())
	})
	if err != nil {
		return nil, err
	}
	return completion.NewTyped(c, func(rc int) (ExecResult, error) {
		return parseExec(out, rc)
	}), nil
}
