package sim

import (
	"fmt"

	"golang.org/x/sys/unix"

	"github.com/wippyai/go-rados/native"
)

func (s *Sim) ioctx(h native.Handle) *ioctx {
	return s.handles.get(hIoctx, h).(*ioctx)
}

func (s *Sim) IoctxCreate(cluster native.Handle, name string) (native.Handle, int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, rc := s.connected(cluster)
	if rc != 0 {
		return 0, rc
	}
	p, ok := s.pools[name]
	if !ok {
		return 0, errno(unix.ENOENT)
	}
	return s.handles.create(hIoctx, newIoctx(c, p)), 0
}

func (s *Sim) IoctxCreate2(cluster native.Handle, poolID int64) (native.Handle, int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, rc := s.connected(cluster)
	if rc != 0 {
		return 0, rc
	}
	p, ok := s.poolsByID[poolID]
	if !ok {
		return 0, errno(unix.ENOENT)
	}
	return s.handles.create(hIoctx, newIoctx(c, p)), 0
}

// IoctxDestroy frees an I/O context. Destroying it while asynchronous
// operations submitted through it are in flight panics.
func (s *Sim) IoctxDestroy(h native.Handle) {
	io := s.ioctx(h)
	if n := io.pending(); n > 0 {
		panic(fmt.Sprintf("sim: destroy of io context %#x with %d operations in flight", uintptr(h), n))
	}
	s.record("ioctx_destroy", h)
	s.handles.free(hIoctx, h)
}

func (s *Sim) IoctxPoolStat(h native.Handle, out *native.PoolStat) int {
	io := s.ioctx(h)

	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.livePool(io)
	if !ok {
		return errno(unix.ENOENT)
	}

	bytes := p.bytes()
	*out = native.PoolStat{
		NumBytes:        bytes,
		NumKB:           (bytes + 1023) / 1024,
		NumObjects:      uint64(len(p.objects)),
		NumObjectCopies: uint64(len(p.objects)),
		NumRd:           p.numRd,
		NumRdKB:         p.numRdKB,
		NumWr:           p.numWr,
		NumWrKB:         p.numWrKB,
		NumUserBytes:    bytes,
	}
	return 0
}

func (s *Sim) IoctxGetID(h native.Handle) int64 {
	return s.ioctx(h).pool.id
}

func (s *Sim) IoctxSetNamespace(h native.Handle, ns string) {
	io := s.ioctx(h)
	io.mu.Lock()
	io.ns = ns
	io.mu.Unlock()
}

func (s *Sim) IoctxGetNamespace(h native.Handle, buf []byte) int {
	io := s.ioctx(h)
	ns := io.namespace()
	if !putCString(buf, ns) {
		return errno(unix.ERANGE)
	}
	return len(ns)
}

func (s *Sim) IoctxLocatorSetKey(h native.Handle, key string) {
	io := s.ioctx(h)
	io.mu.Lock()
	io.locator = key
	io.mu.Unlock()
}

func (s *Sim) GetLastVersion(h native.Handle) uint64 {
	return s.ioctx(h).version()
}

func (io *ioctx) namespace() string {
	io.mu.Lock()
	defer io.mu.Unlock()
	return io.ns
}

func (io *ioctx) key(oid string) objKey {
	return objKey{ns: io.namespace(), oid: oid}
}

func (s *Sim) IoctxSnapCreate(h native.Handle, name string) int {
	io := s.ioctx(h)

	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.livePool(io)
	if !ok {
		return errno(unix.ENOENT)
	}
	if name == "" {
		return errno(unix.EINVAL)
	}
	if p.snapByName(name) != nil {
		return errno(unix.EEXIST)
	}

	s.nextSnapID++
	sn := &snapshot{
		id:      s.nextSnapID,
		name:    name,
		stamp:   s.now().Unix(),
		objects: make(map[objKey]*object, len(p.objects)),
	}
	for k, o := range p.objects {
		c := o.clone()
		c.locks = nil
		sn.objects[k] = c
	}
	p.snaps[sn.id] = sn
	return 0
}

func (s *Sim) IoctxSnapRemove(h native.Handle, name string) int {
	io := s.ioctx(h)

	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.livePool(io)
	if !ok {
		return errno(unix.ENOENT)
	}
	sn := p.snapByName(name)
	if sn == nil {
		return errno(unix.ENOENT)
	}
	delete(p.snaps, sn.id)
	return 0
}

// IoctxSnapRollback restores the object to its state in the snapshot. An
// object that did not exist when the snapshot was taken is removed.
func (s *Sim) IoctxSnapRollback(h native.Handle, oid, name string) int {
	io := s.ioctx(h)
	key := io.key(oid)

	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.livePool(io)
	if !ok {
		return errno(unix.ENOENT)
	}
	sn := p.snapByName(name)
	if sn == nil {
		return errno(unix.ENOENT)
	}

	saved, ok := sn.objects[key]
	if !ok {
		if _, exists := p.objects[key]; !exists {
			return 0
		}
		return s.drop(io, p, key)
	}
	restored := saved.clone()
	if cur, exists := p.objects[key]; exists {
		restored.locks = cur.locks
	}
	return s.commit(io, p, key, restored, nil)
}

func (s *Sim) IoctxSnapList(h native.Handle, snaps []uint64) int {
	io := s.ioctx(h)

	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.livePool(io)
	if !ok {
		return errno(unix.ENOENT)
	}
	ids := p.sortedSnaps()
	if len(ids) > len(snaps) {
		return errno(unix.ERANGE)
	}
	copy(snaps, ids)
	return len(ids)
}

func (s *Sim) IoctxSnapLookup(h native.Handle, name string, id *uint64) int {
	io := s.ioctx(h)

	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.livePool(io)
	if !ok {
		return errno(unix.ENOENT)
	}
	sn := p.snapByName(name)
	if sn == nil {
		return errno(unix.ENOENT)
	}
	*id = sn.id
	return 0
}

func (s *Sim) IoctxSnapGetName(h native.Handle, id uint64, buf []byte) int {
	io := s.ioctx(h)

	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.livePool(io)
	if !ok {
		return errno(unix.ENOENT)
	}
	sn, ok := p.snaps[id]
	if !ok {
		return errno(unix.ENOENT)
	}
	if !putCString(buf, sn.name) {
		return errno(unix.ERANGE)
	}
	return 0
}

func (s *Sim) IoctxSnapGetStamp(h native.Handle, id uint64, stamp *int64) int {
	io := s.ioctx(h)

	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.livePool(io)
	if !ok {
		return errno(unix.ENOENT)
	}
	sn, ok := p.snaps[id]
	if !ok {
		return errno(unix.ENOENT)
	}
	*stamp = sn.stamp
	return 0
}
