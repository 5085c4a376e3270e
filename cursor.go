package rados

import (
	"iter"

	"golang.org/x/sys/unix"

	"github.com/wippyai/go-rados/errors"
	"github.com/wippyai/go-rados/native"
	"github.com/wippyai/go-rados/resource"
)

// ObjectCursor is a position in the object listing of a pool. It belongs to
// the I/O context it was created on and only compares with cursors of the
// same context.
type ObjectCursor struct {
	io  *IOContext
	res *resource.Resource
}

func newObjectCursor(io *IOContext, ioh, h native.Handle) *ObjectCursor {
	lib := io.env.lib
	c := &ObjectCursor{
		io: io,
		res: io.env.registry.New(io.res, resource.KindObjectCursor, h, func(h native.Handle) error {
			lib.ObjectListCursorFree(ioh, h)
			return nil
		}),
	}
	resource.Track(c, c.res)
	return c
}

func (io *IOContext) cursor(op string, create func(io native.Handle) native.Handle) (*ObjectCursor, error) {
	h, err := io.handle()
	if err != nil {
		return nil, err
	}
	ch := create(h)
	if ch.IsNull() {
		return nil, errors.Native(errors.PhaseIterator, op, -int64(unix.ENOMEM))
	}
	return newObjectCursor(io, h, ch), nil
}

// ListBegin returns a cursor at the first object of the pool.
func (io *IOContext) ListBegin() (*ObjectCursor, error) {
	return io.cursor("rados_object_list_begin", io.env.lib.ObjectListBegin)
}

// ListEnd returns a cursor past the last object of the pool.
func (io *IOContext) ListEnd() (*ObjectCursor, error) {
	return io.cursor("rados_object_list_end", io.env.lib.ObjectListEnd)
}

// handles returns the context and cursor handles.
func (c *ObjectCursor) handles() (native.Handle, native.Handle, error) {
	ioh, err := c.io.handle()
	if err != nil {
		return 0, 0, err
	}
	h, err := c.res.Handle()
	if err != nil {
		return 0, 0, err
	}
	return ioh, h, nil
}

// IsEnd reports whether the cursor is past the last object.
func (c *ObjectCursor) IsEnd() (bool, error) {
	ioh, h, err := c.handles()
	if err != nil {
		return false, err
	}
	return c.io.env.lib.ObjectListIsEnd(ioh, h) != 0, nil
}

// Compare orders c against other: negative when c comes first, zero when
// both are at the same position.
func (c *ObjectCursor) Compare(other *ObjectCursor) (int, error) {
	if other.io != c.io {
		return 0, errors.New(errors.PhaseIterator, errors.KindInvalidInput).
			Op("rados_object_list_cursor_cmp").
			Detail("cursors belong to different I/O contexts").
			Build()
	}
	ioh, h, err := c.handles()
	if err != nil {
		return 0, err
	}
	oh, err := other.res.Handle()
	if err != nil {
		return 0, err
	}
	return c.io.env.lib.ObjectListCursorCmp(ioh, h, oh), nil
}

// Close frees the native cursor.
func (c *ObjectCursor) Close() {
	c.res.Release()
}

// Resource exposes the underlying resource node.
func (c *ObjectCursor) Resource() *resource.Resource {
	return c.res
}

// ObjectRange is the part of a listing from Start up to, not including,
// End.
type ObjectRange struct {
	Start *ObjectCursor
	End   *ObjectCursor
}

// FullRange returns the range covering every object of the pool.
func (io *IOContext) FullRange() (ObjectRange, error) {
	start, err := io.ListBegin()
	if err != nil {
		return ObjectRange{}, err
	}
	end, err := io.ListEnd()
	if err != nil {
		start.Close()
		return ObjectRange{}, err
	}
	return ObjectRange{Start: start, End: end}, nil
}

// Slice splits the range into count parts of nearly equal size and returns
// part index. The parts of a range are disjoint and together cover it, so
// they can be listed by independent workers.
func (r ObjectRange) Slice(index, count int) (ObjectRange, error) {
	const op = "rados_object_list_slice"
	if count < 1 || index < 0 || index >= count {
		return ObjectRange{}, errors.New(errors.PhaseIterator, errors.KindInvalidInput).
			Op(op).
			Detail("slice %d of %d out of range", index, count).
			Build()
	}
	if r.Start.io != r.End.io {
		return ObjectRange{}, errors.New(errors.PhaseIterator, errors.KindInvalidInput).
			Op(op).
			Detail("cursors belong to different I/O contexts").
			Build()
	}
	io := r.Start.io
	ioh, start, err := r.Start.handles()
	if err != nil {
		return ObjectRange{}, err
	}
	finish, err := r.End.res.Handle()
	if err != nil {
		return ObjectRange{}, err
	}
	var lo, hi native.Handle
	io.env.lib.ObjectListSlice(ioh, start, finish, index, count, &lo, &hi)
	if lo.IsNull() || hi.IsNull() {
		return ObjectRange{}, errors.Native(errors.PhaseIterator, op, -int64(unix.ENOMEM))
	}
	return ObjectRange{Start: newObjectCursor(io, ioh, lo), End: newObjectCursor(io, ioh, hi)}, nil
}

// Close frees both cursors.
func (r ObjectRange) Close() {
	r.Start.Close()
	r.End.Close()
}

// ListRange yields the objects of the current namespace inside r. A failure
// is yielded once as the last element.
func (io *IOContext) ListRange(r ObjectRange) iter.Seq2[ObjectEntry, error] {
	return func(yield func(ObjectEntry, error) bool) {
		it, err := io.ListObjects()
		if err != nil {
			yield(ObjectEntry{}, err)
			return
		}
		defer it.Close()
		if _, err := it.SeekCursor(r.Start); err != nil {
			yield(ObjectEntry{}, err)
			return
		}
		for {
			inside, err := it.before(r.End)
			if err != nil {
				yield(ObjectEntry{}, err)
				return
			}
			if !inside {
				return
			}
			e, ok, err := it.Next()
			if err != nil {
				yield(e, err)
				return
			}
			if !ok || !yield(e, nil) {
				return
			}
		}
	}
}
