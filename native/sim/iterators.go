package sim

import (
	"golang.org/x/sys/unix"

	"github.com/wippyai/go-rados/native"
)

type listEntry struct {
	oid, locator, ns string
}

type objectList struct {
	entries []listEntry
	pos     int
}

// NobjectsListOpen snapshots the object names of the context's namespace,
// or of every namespace when it is native.AllNamespaces.
func (s *Sim) NobjectsListOpen(h native.Handle) (native.Handle, int) {
	io := s.ioctx(h)
	ns := io.namespace()

	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.livePool(io)
	if !ok {
		return 0, errno(unix.ENOENT)
	}

	list := &objectList{}
	for _, k := range p.sortedKeys(ns, ns == native.AllNamespaces) {
		list.entries = append(list.entries, listEntry{oid: k.oid, ns: k.ns})
	}
	return s.handles.create(hObjectList, list), 0
}

func (s *Sim) NobjectsListNext(iter native.Handle) (string, string, string, int) {
	list := s.handles.get(hObjectList, iter).(*objectList)
	if list.pos >= len(list.entries) {
		return "", "", "", errno(unix.ENOENT)
	}
	e := list.entries[list.pos]
	list.pos++
	return e.oid, e.locator, e.ns, 0
}

func (s *Sim) NobjectsListClose(iter native.Handle) {
	s.record("nobjects_list_close", iter)
	s.handles.free(hObjectList, iter)
}

func (s *Sim) GetXattrs(h native.Handle, oid string) (native.Handle, int) {
	io := s.ioctx(h)
	key := io.key(oid)

	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.livePool(io)
	if !ok {
		return 0, errno(unix.ENOENT)
	}
	obj, ok := p.objects[key]
	if !ok {
		return 0, errno(unix.ENOENT)
	}
	it := &pairIter{}
	it.fill(obj.xattrs, "", "", 0, true)
	return s.handles.create(hXattrIter, it), 0
}

func (s *Sim) GetXattrsNext(iter native.Handle) (string, []byte, bool, int) {
	name, value, ok := s.handles.get(hXattrIter, iter).(*pairIter).next()
	return name, value, ok, 0
}

func (s *Sim) GetXattrsEnd(iter native.Handle) {
	s.record("getxattrs_end", iter)
	s.handles.free(hXattrIter, iter)
}

func (s *Sim) OmapGetNext(iter native.Handle) (string, []byte, bool, int) {
	key, value, ok := s.handles.get(hOmapIter, iter).(*pairIter).next()
	return key, value, ok, 0
}

func (s *Sim) OmapGetEnd(iter native.Handle) {
	s.record("omap_get_end", iter)
	s.handles.free(hOmapIter, iter)
}
