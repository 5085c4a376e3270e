package sim

import (
	"time"

	"golang.org/x/sys/unix"

	"github.com/wippyai/go-rados/native"
)

// job runs one object operation under s.mu and returns its status together
// with the object version it left behind.
type job func(io *ioctx, p *pool, key objKey) (int, uint64)

// run executes fn against the object key of io's pool.
func (s *Sim) run(io *ioctx, key objKey, fn job) (int, uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.livePool(io)
	if !ok {
		return errno(unix.ENOENT), 0
	}
	return fn(io, p, key)
}

func (s *Sim) runSync(h native.Handle, oid string, fn job) int {
	io := s.ioctx(h)
	rc, _ := s.run(io, io.key(oid), fn)
	return rc
}

// mutable returns a copy of the object under key for modification, or a new
// object when it is missing. Callers commit it.
func mutable(p *pool, key objKey) *object {
	if obj, ok := p.objects[key]; ok {
		return obj.clone()
	}
	return newObject()
}

func writeAt(data, buf []byte, off uint64) []byte {
	end := int(off) + len(buf)
	if end > len(data) {
		data = append(data, make([]byte, end-len(data))...)
	}
	copy(data[off:], buf)
	return data
}

func (s *Sim) opWrite(buf []byte, off uint64) job {
	return func(io *ioctx, p *pool, key objKey) (int, uint64) {
		obj := mutable(p, key)
		obj.data = writeAt(obj.data, buf, off)
		p.wrote(len(buf))
		return s.commit(io, p, key, obj, nil), obj.version
	}
}

func (s *Sim) opWriteFull(buf []byte) job {
	return func(io *ioctx, p *pool, key objKey) (int, uint64) {
		obj := mutable(p, key)
		obj.data = append([]byte(nil), buf...)
		p.wrote(len(buf))
		return s.commit(io, p, key, obj, nil), obj.version
	}
}

func (s *Sim) opAppend(buf []byte) job {
	return func(io *ioctx, p *pool, key objKey) (int, uint64) {
		obj := mutable(p, key)
		obj.data = append(obj.data, buf...)
		p.wrote(len(buf))
		return s.commit(io, p, key, obj, nil), obj.version
	}
}

func (s *Sim) opRead(buf []byte, off uint64) job {
	return func(io *ioctx, p *pool, key objKey) (int, uint64) {
		obj, ok := p.objects[key]
		if !ok {
			return errno(unix.ENOENT), 0
		}
		n := 0
		if off < uint64(len(obj.data)) {
			n = copy(buf, obj.data[off:])
		}
		p.read(n)
		io.setVersion(obj.version)
		return n, obj.version
	}
}

func (s *Sim) opRemove() job {
	return func(io *ioctx, p *pool, key objKey) (int, uint64) {
		rc := s.drop(io, p, key)
		return rc, p.version
	}
}

func (s *Sim) opStat(size *uint64, mtime *int64) job {
	return func(io *ioctx, p *pool, key objKey) (int, uint64) {
		obj, ok := p.objects[key]
		if !ok {
			return errno(unix.ENOENT), 0
		}
		*size = uint64(len(obj.data))
		*mtime = obj.mtime
		io.setVersion(obj.version)
		return 0, obj.version
	}
}

// compare returns 0 when cmp matches the data at off, and -MaxErrno-i for
// the first mismatching index i. Bytes past the end of data read as zero.
func compare(data, cmp []byte, off uint64) int {
	for i, b := range cmp {
		var cur byte
		if pos := off + uint64(i); pos < uint64(len(data)) {
			cur = data[pos]
		}
		if cur != b {
			return -native.MaxErrno - i
		}
	}
	return 0
}

func (s *Sim) opCmpExt(cmp []byte, off uint64) job {
	return func(io *ioctx, p *pool, key objKey) (int, uint64) {
		obj, ok := p.objects[key]
		if !ok {
			return errno(unix.ENOENT), 0
		}
		p.read(len(cmp))
		return compare(obj.data, cmp, off), obj.version
	}
}

func (s *Sim) opGetXattr(name string, buf []byte) job {
	return func(io *ioctx, p *pool, key objKey) (int, uint64) {
		obj, ok := p.objects[key]
		if !ok {
			return errno(unix.ENOENT), 0
		}
		v, ok := obj.xattrs[name]
		if !ok {
			return errno(unix.ENODATA), obj.version
		}
		if len(v) > len(buf) {
			return errno(unix.ERANGE), obj.version
		}
		return copy(buf, v), obj.version
	}
}

func (s *Sim) opSetXattr(name string, value []byte) job {
	return func(io *ioctx, p *pool, key objKey) (int, uint64) {
		obj := mutable(p, key)
		obj.xattrs[name] = append([]byte(nil), value...)
		p.wrote(len(value))
		return s.commit(io, p, key, obj, nil), obj.version
	}
}

func (s *Sim) opRmXattr(name string) job {
	return func(io *ioctx, p *pool, key objKey) (int, uint64) {
		obj, ok := p.objects[key]
		if !ok {
			return errno(unix.ENOENT), 0
		}
		if _, ok := obj.xattrs[name]; !ok {
			return errno(unix.ENODATA), obj.version
		}
		obj = obj.clone()
		delete(obj.xattrs, name)
		return s.commit(io, p, key, obj, nil), obj.version
	}
}

func (s *Sim) opExec(class, method string, in, out []byte) job {
	return func(io *ioctx, p *pool, key objKey) (int, uint64) {
		fn, rc := s.classes.lookup(class, method)
		if rc != 0 {
			return rc, 0
		}

		mc := &MethodContext{}
		if obj, ok := p.objects[key]; ok {
			mc.obj = obj.clone()
			mc.exists = true
		}
		result, rc := fn(mc, in)
		if rc < 0 {
			return rc, 0
		}
		if len(result) > len(out) {
			return errno(unix.ERANGE), 0
		}

		var version uint64
		if mc.dirty {
			p.wrote(len(mc.obj.data))
			if rc := s.commit(io, p, key, mc.obj, nil); rc != 0 {
				return rc, 0
			}
			version = mc.obj.version
		} else if mc.exists {
			version = mc.obj.version
		}
		return copy(out, result), version
	}
}

func (s *Sim) Write(h native.Handle, oid string, buf []byte, off uint64) int {
	return s.runSync(h, oid, s.opWrite(buf, off))
}

func (s *Sim) WriteFull(h native.Handle, oid string, buf []byte) int {
	return s.runSync(h, oid, s.opWriteFull(buf))
}

// repeat fills writeLen bytes with copies of buf. writeLen must be a
// multiple of a non-empty buf.
func repeat(buf []byte, writeLen int) ([]byte, int) {
	if len(buf) == 0 || writeLen%len(buf) != 0 {
		return nil, errno(unix.EINVAL)
	}
	data := make([]byte, 0, writeLen)
	for len(data) < writeLen {
		data = append(data, buf...)
	}
	return data, 0
}

func (s *Sim) WriteSame(h native.Handle, oid string, buf []byte, writeLen int, off uint64) int {
	data, rc := repeat(buf, writeLen)
	if rc != 0 {
		return rc
	}
	return s.runSync(h, oid, s.opWrite(data, off))
}

func (s *Sim) Append(h native.Handle, oid string, buf []byte) int {
	return s.runSync(h, oid, s.opAppend(buf))
}

func (s *Sim) Read(h native.Handle, oid string, buf []byte, off uint64) int {
	return s.runSync(h, oid, s.opRead(buf, off))
}

func (s *Sim) Remove(h native.Handle, oid string) int {
	return s.runSync(h, oid, s.opRemove())
}

func (s *Sim) Trunc(h native.Handle, oid string, size uint64) int {
	return s.runSync(h, oid, func(io *ioctx, p *pool, key objKey) (int, uint64) {
		obj := mutable(p, key)
		if size <= uint64(len(obj.data)) {
			obj.data = obj.data[:size]
		} else {
			obj.data = append(obj.data, make([]byte, size-uint64(len(obj.data)))...)
		}
		return s.commit(io, p, key, obj, nil), obj.version
	})
}

func (s *Sim) Stat(h native.Handle, oid string, size *uint64, mtime *int64) int {
	return s.runSync(h, oid, s.opStat(size, mtime))
}

func (s *Sim) CmpExt(h native.Handle, oid string, cmp []byte, off uint64) int {
	return s.runSync(h, oid, s.opCmpExt(cmp, off))
}

func (s *Sim) GetXattr(h native.Handle, oid, name string, buf []byte) int {
	return s.runSync(h, oid, s.opGetXattr(name, buf))
}

func (s *Sim) SetXattr(h native.Handle, oid, name string, value []byte) int {
	return s.runSync(h, oid, s.opSetXattr(name, value))
}

func (s *Sim) RmXattr(h native.Handle, oid, name string) int {
	return s.runSync(h, oid, s.opRmXattr(name))
}

func (s *Sim) Exec(h native.Handle, oid, class, method string, in, out []byte) int {
	return s.runSync(h, oid, s.opExec(class, method, in, out))
}

func (s *Sim) Checksum(h native.Handle, oid string, typ native.ChecksumType, init []byte, length, off, chunkSize uint64, out []byte) int {
	return s.runSync(h, oid, func(io *ioctx, p *pool, key objKey) (int, uint64) {
		obj, ok := p.objects[key]
		if !ok {
			return errno(unix.ENOENT), 0
		}
		p.read(int(length))
		return checksum(obj.data, typ, init, off, length, chunkSize, out), obj.version
	})
}

func (s *Sim) LockExclusive(h native.Handle, oid, name, cookie, desc string, duration time.Duration, flags native.LockFlag) int {
	return s.runSync(h, oid, s.opLock(name, cookie, "", desc, true, duration, flags))
}

func (s *Sim) LockShared(h native.Handle, oid, name, cookie, tag, desc string, duration time.Duration, flags native.LockFlag) int {
	return s.runSync(h, oid, s.opLock(name, cookie, tag, desc, false, duration, flags))
}

func (s *Sim) Unlock(h native.Handle, oid, name, cookie string) int {
	return s.runSync(h, oid, s.opUnlock(name, "", cookie))
}

func (s *Sim) BreakLock(h native.Handle, oid, name, client, cookie string) int {
	return s.runSync(h, oid, s.opUnlock(name, client, cookie))
}

func (s *Sim) ListLockers(h native.Handle, oid, name string, tag, clients, cookies, addrs []byte, out *native.LockersOut) int {
	return s.runSync(h, oid, s.opListLockers(name, tag, clients, cookies, addrs, out))
}
