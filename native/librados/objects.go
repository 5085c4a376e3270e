//go:build librados

package librados

/*
#include <stdlib.h>
#include <sys/time.h>
#include <rados/librados.h>
*/
import "C"

import (
	"time"
	"unsafe"

	"github.com/wippyai/go-rados/native"
)

func (l *Library) Write(io native.Handle, oid string, buf []byte, off uint64) int {
	o, free := cstr(oid)
	defer free()
	return int(C.rados_write(C.rados_ioctx_t(ptr(io)), o, bytesPtr(buf), C.size_t(len(buf)), C.uint64_t(off)))
}

func (l *Library) WriteFull(io native.Handle, oid string, buf []byte) int {
	o, free := cstr(oid)
	defer free()
	return int(C.rados_write_full(C.rados_ioctx_t(ptr(io)), o, bytesPtr(buf), C.size_t(len(buf))))
}

func (l *Library) WriteSame(io native.Handle, oid string, buf []byte, writeLen int, off uint64) int {
	o, free := cstr(oid)
	defer free()
	return int(C.rados_writesame(C.rados_ioctx_t(ptr(io)), o, bytesPtr(buf), C.size_t(len(buf)), C.size_t(writeLen), C.uint64_t(off)))
}

func (l *Library) Append(io native.Handle, oid string, buf []byte) int {
	o, free := cstr(oid)
	defer free()
	return int(C.rados_append(C.rados_ioctx_t(ptr(io)), o, bytesPtr(buf), C.size_t(len(buf))))
}

func (l *Library) Read(io native.Handle, oid string, buf []byte, off uint64) int {
	o, free := cstr(oid)
	defer free()
	return int(C.rados_read(C.rados_ioctx_t(ptr(io)), o, bytesPtr(buf), C.size_t(len(buf)), C.uint64_t(off)))
}

func (l *Library) Remove(io native.Handle, oid string) int {
	o, free := cstr(oid)
	defer free()
	return int(C.rados_remove(C.rados_ioctx_t(ptr(io)), o))
}

func (l *Library) Trunc(io native.Handle, oid string, size uint64) int {
	o, free := cstr(oid)
	defer free()
	return int(C.rados_trunc(C.rados_ioctx_t(ptr(io)), o, C.uint64_t(size)))
}

func (l *Library) Stat(io native.Handle, oid string, size *uint64, mtime *int64) int {
	o, free := cstr(oid)
	defer free()
	return int(C.rados_stat(C.rados_ioctx_t(ptr(io)), o, (*C.uint64_t)(unsafe.Pointer(size)), (*C.time_t)(unsafe.Pointer(mtime))))
}

func (l *Library) CmpExt(io native.Handle, oid string, cmp []byte, off uint64) int {
	o, free := cstr(oid)
	defer free()
	return int(C.rados_cmpext(C.rados_ioctx_t(ptr(io)), o, bytesPtr(cmp), C.size_t(len(cmp)), C.uint64_t(off)))
}

func (l *Library) GetXattr(io native.Handle, oid, name string, buf []byte) int {
	o, freeO := cstr(oid)
	defer freeO()
	n, freeN := cstr(name)
	defer freeN()
	return int(C.rados_getxattr(C.rados_ioctx_t(ptr(io)), o, n, bytesPtr(buf), C.size_t(len(buf))))
}

func (l *Library) SetXattr(io native.Handle, oid, name string, value []byte) int {
	o, freeO := cstr(oid)
	defer freeO()
	n, freeN := cstr(name)
	defer freeN()
	return int(C.rados_setxattr(C.rados_ioctx_t(ptr(io)), o, n, bytesPtr(value), C.size_t(len(value))))
}

func (l *Library) RmXattr(io native.Handle, oid, name string) int {
	o, freeO := cstr(oid)
	defer freeO()
	n, freeN := cstr(name)
	defer freeN()
	return int(C.rados_rmxattr(C.rados_ioctx_t(ptr(io)), o, n))
}

func (l *Library) Exec(io native.Handle, oid, class, method string, in, out []byte) int {
	o, freeO := cstr(oid)
	defer freeO()
	c, freeC := cstr(class)
	defer freeC()
	m, freeM := cstr(method)
	defer freeM()
	return int(C.rados_exec(C.rados_ioctx_t(ptr(io)), o, c, m,
		bytesPtr(in), C.size_t(len(in)), bytesPtr(out), C.size_t(len(out))))
}

func (l *Library) Checksum(io native.Handle, oid string, typ native.ChecksumType, init []byte, length, off, chunkSize uint64, out []byte) int {
	o, free := cstr(oid)
	defer free()
	return int(C.rados_checksum(C.rados_ioctx_t(ptr(io)), o, C.rados_checksum_type_t(typ),
		bytesPtr(init), C.size_t(len(init)),
		C.size_t(length), C.uint64_t(off), C.size_t(chunkSize),
		bytesPtr(out), C.size_t(len(out))))
}

func (l *Library) LockExclusive(io native.Handle, oid, name, cookie, desc string, duration time.Duration, flags native.LockFlag) int {
	o, freeO := cstr(oid)
	defer freeO()
	n, freeN := cstr(name)
	defer freeN()
	c, freeC := cstr(cookie)
	defer freeC()
	d, freeD := cstr(desc)
	defer freeD()
	tv := timeval(duration)
	defer freeTimeval(tv)
	return int(C.rados_lock_exclusive(C.rados_ioctx_t(ptr(io)), o, n, c, d, tv, C.uint8_t(flags)))
}

func (l *Library) LockShared(io native.Handle, oid, name, cookie, tag, desc string, duration time.Duration, flags native.LockFlag) int {
	o, freeO := cstr(oid)
	defer freeO()
	n, freeN := cstr(name)
	defer freeN()
	c, freeC := cstr(cookie)
	defer freeC()
	t, freeT := cstr(tag)
	defer freeT()
	d, freeD := cstr(desc)
	defer freeD()
	tv := timeval(duration)
	defer freeTimeval(tv)
	return int(C.rados_lock_shared(C.rados_ioctx_t(ptr(io)), o, n, c, t, d, tv, C.uint8_t(flags)))
}

func (l *Library) Unlock(io native.Handle, oid, name, cookie string) int {
	o, freeO := cstr(oid)
	defer freeO()
	n, freeN := cstr(name)
	defer freeN()
	c, freeC := cstr(cookie)
	defer freeC()
	return int(C.rados_unlock(C.rados_ioctx_t(ptr(io)), o, n, c))
}

func (l *Library) BreakLock(io native.Handle, oid, name, client, cookie string) int {
	o, freeO := cstr(oid)
	defer freeO()
	n, freeN := cstr(name)
	defer freeN()
	cl, freeCL := cstr(client)
	defer freeCL()
	c, freeC := cstr(cookie)
	defer freeC()
	return int(C.rados_break_lock(C.rados_ioctx_t(ptr(io)), o, n, cl, c))
}

func (l *Library) ListLockers(io native.Handle, oid, name string, tag, clients, cookies, addrs []byte, out *native.LockersOut) int {
	o, freeO := cstr(oid)
	defer freeO()
	n, freeN := cstr(name)
	defer freeN()

	var exclusive C.int
	tagLen := C.size_t(out.TagLen)
	clientsLen := C.size_t(out.ClientsLen)
	cookiesLen := C.size_t(out.CookiesLen)
	addrsLen := C.size_t(out.AddrsLen)

	rc := C.rados_list_lockers(C.rados_ioctx_t(ptr(io)), o, n, &exclusive,
		bytesPtr(tag), &tagLen,
		bytesPtr(clients), &clientsLen,
		bytesPtr(cookies), &cookiesLen,
		bytesPtr(addrs), &addrsLen)

	out.Exclusive = int32(exclusive)
	out.TagLen = uint64(tagLen)
	out.ClientsLen = uint64(clientsLen)
	out.CookiesLen = uint64(cookiesLen)
	out.AddrsLen = uint64(addrsLen)
	return int(rc)
}
