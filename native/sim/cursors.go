package sim

import "github.com/wippyai/go-rados/native"

// listCursor is a position in the sorted object listing of a pool. The zero
// value is the beginning and end sorts after every object.
type listCursor struct {
	key objKey
	end bool
}

func (c listCursor) compare(o listCursor) int {
	switch {
	case c.end && o.end:
		return 0
	case c.end:
		return 1
	case o.end:
		return -1
	}
	switch {
	case c.key.ns < o.key.ns:
		return -1
	case c.key.ns > o.key.ns:
		return 1
	case c.key.oid < o.key.oid:
		return -1
	case c.key.oid > o.key.oid:
		return 1
	}
	return 0
}

func (s *Sim) cursor(h native.Handle) listCursor {
	return *s.handles.get(hCursor, h).(*listCursor)
}

func (s *Sim) newCursor(c listCursor) native.Handle {
	return s.handles.create(hCursor, &c)
}

// The simulated listing puts every object in its own placement group, so a
// hash position is an offset into the listing.

func (s *Sim) NobjectsListGetPGHashPosition(iter native.Handle) uint32 {
	return uint32(s.handles.get(hObjectList, iter).(*objectList).pos)
}

func (s *Sim) NobjectsListSeek(iter native.Handle, pos uint32) uint32 {
	list := s.handles.get(hObjectList, iter).(*objectList)
	list.pos = min(int(pos), len(list.entries))
	return uint32(list.pos)
}

// NobjectsListSeekCursor moves to the first object at or after the cursor.
func (s *Sim) NobjectsListSeekCursor(iter, cursor native.Handle) uint32 {
	list := s.handles.get(hObjectList, iter).(*objectList)
	c := s.cursor(cursor)
	list.pos = len(list.entries)
	for i, e := range list.entries {
		if (listCursor{key: objKey{ns: e.ns, oid: e.oid}}).compare(c) >= 0 {
			list.pos = i
			break
		}
	}
	return uint32(list.pos)
}

// NobjectsListGetCursor returns the position of the next object, or the end.
func (s *Sim) NobjectsListGetCursor(iter native.Handle, cursor *native.Handle) int {
	list := s.handles.get(hObjectList, iter).(*objectList)
	c := listCursor{end: true}
	if list.pos < len(list.entries) {
		e := list.entries[list.pos]
		c = listCursor{key: objKey{ns: e.ns, oid: e.oid}}
	}
	*cursor = s.newCursor(c)
	return 0
}

func (s *Sim) ObjectListBegin(h native.Handle) native.Handle {
	s.ioctx(h)
	return s.newCursor(listCursor{})
}

func (s *Sim) ObjectListEnd(h native.Handle) native.Handle {
	s.ioctx(h)
	return s.newCursor(listCursor{end: true})
}

func (s *Sim) ObjectListIsEnd(h, cursor native.Handle) int {
	s.ioctx(h)
	if s.cursor(cursor).end {
		return 1
	}
	return 0
}

func (s *Sim) ObjectListCursorCmp(h, lhs, rhs native.Handle) int {
	s.ioctx(h)
	return s.cursor(lhs).compare(s.cursor(rhs))
}

func (s *Sim) ObjectListCursorFree(h, cursor native.Handle) {
	s.ioctx(h)
	s.record("object_list_cursor_free", cursor)
	s.handles.free(hCursor, cursor)
}

// ObjectListSlice splits the objects in [start, finish) into m slices of
// nearly equal size and returns slice n. Out of range arguments yield an
// empty slice at finish.
func (s *Sim) ObjectListSlice(h, start, finish native.Handle, n, m int, splitStart, splitFinish *native.Handle) {
	io := s.ioctx(h)
	ns := io.namespace()
	from, to := s.cursor(start), s.cursor(finish)

	lo, hi := to, to
	if m > 0 && n >= 0 && n < m {
		var keys []objKey
		s.mu.Lock()
		if p, ok := s.livePool(io); ok {
			for _, k := range p.sortedKeys(ns, ns == native.AllNamespaces) {
				c := listCursor{key: k}
				if c.compare(from) >= 0 && c.compare(to) < 0 {
					keys = append(keys, k)
				}
			}
		}
		s.mu.Unlock()

		at := func(i int) listCursor {
			if i < len(keys) {
				return listCursor{key: keys[i]}
			}
			return to
		}
		lo, hi = at(n*len(keys)/m), at((n+1)*len(keys)/m)
	}
	*splitStart = s.newCursor(lo)
	*splitFinish = s.newCursor(hi)
}
