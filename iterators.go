package rados

import (
	"iter"

	"golang.org/x/sys/unix"

	"github.com/wippyai/go-rados/errors"
	"github.com/wippyai/go-rados/native"
	"github.com/wippyai/go-rados/resource"
)

// ObjectIterator lists the objects of a pool. It belongs to the I/O context
// it was opened on.
type ObjectIterator struct {
	lib native.Iterators
	io  *IOContext
	res *resource.Resource
}

func newObjectIterator(io *IOContext, h native.Handle) *ObjectIterator {
	lib := io.env.lib
	it := &ObjectIterator{
		lib: lib,
		io:  io,
		res: io.env.registry.New(io.res, resource.KindObjectIterator, h, func(h native.Handle) error {
			lib.NobjectsListClose(h)
			return nil
		}),
	}
	resource.Track(it, it.res)
	return it
}

// Next returns the next entry. ok is false once the listing is exhausted.
func (it *ObjectIterator) Next() (entry ObjectEntry, ok bool, err error) {
	h, err := it.res.Handle()
	if err != nil {
		return entry, false, err
	}
	oid, key, ns, rc := it.lib.NobjectsListNext(h)
	if rc == -int(unix.ENOENT) {
		return entry, false, nil
	}
	if _, err := errors.Check(errors.PhaseIterator, "rados_nobjects_list_next", rc); err != nil {
		return entry, false, err
	}
	return ObjectEntry{OID: oid, Key: key, Namespace: ns}, true, nil
}

// All yields every remaining entry and closes the iterator when the loop
// ends. A failure is yielded once as the last element.
func (it *ObjectIterator) All() iter.Seq2[ObjectEntry, error] {
	return func(yield func(ObjectEntry, error) bool) {
		defer it.Close()
		for {
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

// Close frees the native listing handle.
func (it *ObjectIterator) Close() {
	it.res.Release()
}

// pairIterator walks name/value pairs through a native cursor.
type pairIterator struct {
	res  *resource.Resource
	next func(native.Handle) (string, []byte, bool, int)
	op   string

	// owner is the wrapper of parent, held so it is not collected first.
	owner any
}

func newPairIterator(env *Rados, parent *resource.Resource, owner any, kind resource.Kind, h native.Handle) pairIterator {
	lib := env.lib
	p := pairIterator{owner: owner}
	var release resource.ReleaseFunc
	switch kind {
	case resource.KindXattrIterator:
		p.next, p.op = lib.GetXattrsNext, "rados_getxattrs_next"
		release = func(h native.Handle) error {
			lib.GetXattrsEnd(h)
			return nil
		}
	default:
		p.next, p.op = lib.OmapGetNext, "rados_omap_get_next"
		release = func(h native.Handle) error {
			lib.OmapGetEnd(h)
			return nil
		}
	}
	p.res = env.registry.New(parent, kind, h, release)
	return p
}

func (p *pairIterator) Next() (Pair, bool, error) {
	h, err := p.res.Handle()
	if err != nil {
		return Pair{}, false, err
	}
	key, value, ok, rc := p.next(h)
	if _, err := errors.Check(errors.PhaseIterator, p.op, rc); err != nil {
		return Pair{}, false, err
	}
	if !ok {
		return Pair{}, false, nil
	}
	return Pair{Key: key, Value: value}, true, nil
}

func (p *pairIterator) All() iter.Seq2[Pair, error] {
	return func(yield func(Pair, error) bool) {
		defer p.Close()
		for {
			e, ok, err := p.Next()
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

// drain collects every remaining pair and closes the iterator.
func (p *pairIterator) drain() ([]Pair, error) {
	var out []Pair
	for e, err := range p.All() {
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, nil
}

func (p *pairIterator) Close() {
	p.res.Release()
}

// XattrIterator lists extended attributes.
type XattrIterator struct {
	pairIterator
}

func newXattrIterator(env *Rados, parent *resource.Resource, owner any, h native.Handle) *XattrIterator {
	it := &XattrIterator{newPairIterator(env, parent, owner, resource.KindXattrIterator, h)}
	resource.Track(it, it.res)
	return it
}

// Map drains the iterator into a map and closes it.
func (it *XattrIterator) Map() (map[string][]byte, error) {
	pairs, err := it.drain()
	if err != nil {
		return nil, err
	}
	m := make(map[string][]byte, len(pairs))
	for _, p := range pairs {
		m[p.Key] = p.Value
	}
	return m, nil
}

// OmapIterator lists omap entries returned by a read operation.
type OmapIterator struct {
	pairIterator
}

func newOmapIterator(env *Rados, parent *resource.Resource, owner any, h native.Handle) *OmapIterator {
	it := &OmapIterator{newPairIterator(env, parent, owner, resource.KindOmapIterator, h)}
	resource.Track(it, it.res)
	return it
}

// Position returns the placement group hash position of the iterator.
func (it *ObjectIterator) Position() (uint32, error) {
	h, err := it.res.Handle()
	if err != nil {
		return 0, err
	}
	return it.lib.NobjectsListGetPGHashPosition(h), nil
}

// Seek moves the iterator to a hash position and returns the position it
// landed on.
func (it *ObjectIterator) Seek(pos uint32) (uint32, error) {
	h, err := it.res.Handle()
	if err != nil {
		return 0, err
	}
	return it.lib.NobjectsListSeek(h, pos), nil
}

// SeekCursor moves the iterator to a cursor of the same I/O context.
func (it *ObjectIterator) SeekCursor(c *ObjectCursor) (uint32, error) {
	if c.io != it.io {
		return 0, errors.New(errors.PhaseIterator, errors.KindInvalidInput).
			Op("rados_nobjects_list_seek_cursor").
			Detail("cursor belongs to a different I/O context").
			Build()
	}
	h, err := it.res.Handle()
	if err != nil {
		return 0, err
	}
	ch, err := c.res.Handle()
	if err != nil {
		return 0, err
	}
	return it.lib.NobjectsListSeekCursor(h, ch), nil
}

// Cursor returns a cursor at the entry Next would return.
func (it *ObjectIterator) Cursor() (*ObjectCursor, error) {
	h, err := it.res.Handle()
	if err != nil {
		return nil, err
	}
	ioh, err := it.io.handle()
	if err != nil {
		return nil, err
	}
	var ch native.Handle
	if _, err := errors.Check(errors.PhaseIterator, "rados_nobjects_list_get_cursor", it.lib.NobjectsListGetCursor(h, &ch)); err != nil {
		return nil, err
	}
	return newObjectCursor(it.io, ioh, ch), nil
}

// before reports whether the next entry comes before end.
func (it *ObjectIterator) before(end *ObjectCursor) (bool, error) {
	c, err := it.Cursor()
	if err != nil {
		return false, err
	}
	defer c.Close()
	cmp, err := c.Compare(end)
	if err != nil {
		return false, err
	}
	return cmp < 0, nil
}
