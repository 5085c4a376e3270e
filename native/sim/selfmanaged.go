package sim

import (
	"golang.org/x/sys/unix"

	"github.com/wippyai/go-rados/native"
)

// Self-managed snapshots take no copy when created. Writes made under a
// write context naming them preserve the previous object state instead, see
// pool.preserve.

func (s *Sim) selfmanagedCreate(io *ioctx, id *uint64) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.livePool(io)
	if !ok {
		return errno(unix.ENOENT)
	}
	s.nextSnapID++
	p.selfSnaps[s.nextSnapID] = struct{}{}
	*id = s.nextSnapID
	return 0
}

func (s *Sim) selfmanagedRemove(io *ioctx, id uint64) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.livePool(io)
	if !ok {
		return errno(unix.ENOENT)
	}
	if _, ok := p.selfSnaps[id]; !ok {
		return errno(unix.ENOENT)
	}
	delete(p.selfSnaps, id)
	for _, cs := range p.clones {
		delete(cs.states, id)
	}
	return 0
}

func (s *Sim) IoctxSelfmanagedSnapCreate(h native.Handle, id *uint64) int {
	return s.selfmanagedCreate(s.ioctx(h), id)
}

func (s *Sim) IoctxSelfmanagedSnapRemove(h native.Handle, id uint64) int {
	return s.selfmanagedRemove(s.ioctx(h), id)
}

// IoctxSelfmanagedSnapRollback restores the state the object had when the
// snapshot was taken. An object without a preserved state for the snapshot
// has not changed since and is left alone.
func (s *Sim) IoctxSelfmanagedSnapRollback(h native.Handle, oid string, id uint64) int {
	return s.runSync(h, oid, func(io *ioctx, p *pool, key objKey) (int, uint64) {
		if _, ok := p.selfSnaps[id]; !ok {
			return errno(unix.ENOENT), 0
		}
		cs := p.clones[key]
		if cs == nil {
			return 0, 0
		}
		saved, ok := cs.states[id]
		if !ok {
			return 0, 0
		}
		if saved == nil {
			if _, exists := p.objects[key]; !exists {
				return 0, 0
			}
			return s.drop(io, p, key), p.version
		}
		restored := saved.clone()
		if cur, exists := p.objects[key]; exists {
			restored.locks = cur.locks
		}
		rc := s.commit(io, p, key, restored, nil)
		return rc, restored.version
	})
}

// IoctxSelfmanagedSnapSetWriteCtx rejects contexts whose snapshots are not
// strictly descending or newer than seq.
func (s *Sim) IoctxSelfmanagedSnapSetWriteCtx(h native.Handle, seq uint64, snaps []uint64) int {
	io := s.ioctx(h)
	for i, id := range snaps {
		if id > seq || (i > 0 && id >= snaps[i-1]) {
			return errno(unix.EINVAL)
		}
	}
	io.setWriteContext(seq, snaps)
	return 0
}

func (s *Sim) AioIoctxSelfmanagedSnapCreate(h native.Handle, id *uint64, c native.Handle) {
	io := s.ioctx(h)
	s.submit(io, c, true, func() (int, uint64) {
		return s.selfmanagedCreate(io, id), 0
	})
}

func (s *Sim) AioIoctxSelfmanagedSnapRemove(h native.Handle, id uint64, c native.Handle) {
	io := s.ioctx(h)
	s.submit(io, c, true, func() (int, uint64) {
		return s.selfmanagedRemove(io, id), 0
	})
}
