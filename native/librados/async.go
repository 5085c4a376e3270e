//go:build librados

package librados

/*
#include <stdlib.h>
#include <rados/librados.h>
*/
import "C"

import (
	"unsafe"

	"github.com/wippyai/go-rados/native"
)

func comp(c native.Handle) C.rados_completion_t {
	return C.rados_completion_t(ptr(c))
}

func (l *Library) AioCreateCompletion() (native.Handle, int) {
	var c C.rados_completion_t
	rc := C.rados_aio_create_completion2(nil, nil, &c)
	if rc < 0 {
		return 0, int(rc)
	}
	return handle(unsafe.Pointer(c)), 0
}

// AioRelease frees the completion and unpins what its operation borrowed.
func (l *Library) AioRelease(c native.Handle) {
	C.rados_aio_release(comp(c))
	l.unpin(c)
}

func (l *Library) AioWaitForComplete(c native.Handle) int {
	return int(C.rados_aio_wait_for_complete(comp(c)))
}

func (l *Library) AioWaitForSafe(c native.Handle) int {
	return int(C.rados_aio_wait_for_complete_and_cb(comp(c)))
}

func (l *Library) AioIsComplete(c native.Handle) int {
	return int(C.rados_aio_is_complete(comp(c)))
}

func (l *Library) AioIsSafe(c native.Handle) int {
	return int(C.rados_aio_is_complete_and_cb(comp(c)))
}

func (l *Library) AioGetReturnValue(c native.Handle) int {
	return int(C.rados_aio_get_return_value(comp(c)))
}

func (l *Library) AioGetVersion(c native.Handle) uint64 {
	return uint64(C.rados_aio_get_version(comp(c)))
}

func (l *Library) AioCancel(io, c native.Handle) int {
	return int(C.rados_aio_cancel(C.rados_ioctx_t(ptr(io)), comp(c)))
}

func (l *Library) AioFlush(io native.Handle) int {
	return int(C.rados_aio_flush(C.rados_ioctx_t(ptr(io))))
}

func (l *Library) AioFlushAsync(io, c native.Handle) int {
	return int(C.rados_aio_flush_async(C.rados_ioctx_t(ptr(io)), comp(c)))
}

func (l *Library) AioWrite(io native.Handle, oid string, c native.Handle, buf []byte, off uint64) int {
	o, free := cstr(oid)
	defer free()
	l.pin(c, bytesAddr(buf))
	return int(C.rados_aio_write(C.rados_ioctx_t(ptr(io)), o, comp(c), bytesPtr(buf), C.size_t(len(buf)), C.uint64_t(off)))
}

func (l *Library) AioWriteFull(io native.Handle, oid string, c native.Handle, buf []byte) int {
	o, free := cstr(oid)
	defer free()
	l.pin(c, bytesAddr(buf))
	return int(C.rados_aio_write_full(C.rados_ioctx_t(ptr(io)), o, comp(c), bytesPtr(buf), C.size_t(len(buf))))
}

func (l *Library) AioAppend(io native.Handle, oid string, c native.Handle, buf []byte) int {
	o, free := cstr(oid)
	defer free()
	l.pin(c, bytesAddr(buf))
	return int(C.rados_aio_append(C.rados_ioctx_t(ptr(io)), o, comp(c), bytesPtr(buf), C.size_t(len(buf))))
}

func (l *Library) AioRead(io native.Handle, oid string, c native.Handle, buf []byte, off uint64) int {
	o, free := cstr(oid)
	defer free()
	l.pin(c, bytesAddr(buf))
	return int(C.rados_aio_read(C.rados_ioctx_t(ptr(io)), o, comp(c), bytesPtr(buf), C.size_t(len(buf)), C.uint64_t(off)))
}

func (l *Library) AioRemove(io native.Handle, oid string, c native.Handle) int {
	o, free := cstr(oid)
	defer free()
	return int(C.rados_aio_remove(C.rados_ioctx_t(ptr(io)), o, comp(c)))
}

func (l *Library) AioStat(io native.Handle, oid string, c native.Handle, size *uint64, mtime *int64) int {
	o, free := cstr(oid)
	defer free()
	l.pin(c, unsafe.Pointer(size), unsafe.Pointer(mtime))
	return int(C.rados_aio_stat(C.rados_ioctx_t(ptr(io)), o, comp(c),
		(*C.uint64_t)(unsafe.Pointer(size)), (*C.time_t)(unsafe.Pointer(mtime))))
}

func (l *Library) AioCmpExt(io native.Handle, oid string, c native.Handle, cmp []byte, off uint64) int {
	o, free := cstr(oid)
	defer free()
	l.pin(c, bytesAddr(cmp))
	return int(C.rados_aio_cmpext(C.rados_ioctx_t(ptr(io)), o, comp(c), bytesPtr(cmp), C.size_t(len(cmp)), C.uint64_t(off)))
}

func (l *Library) AioGetXattr(io native.Handle, oid string, c native.Handle, name string, buf []byte) int {
	o, freeO := cstr(oid)
	defer freeO()
	n, freeN := cstr(name)
	defer freeN()
	l.pin(c, bytesAddr(buf))
	return int(C.rados_aio_getxattr(C.rados_ioctx_t(ptr(io)), o, comp(c), n, bytesPtr(buf), C.size_t(len(buf))))
}

func (l *Library) AioSetXattr(io native.Handle, oid string, c native.Handle, name string, value []byte) int {
	o, freeO := cstr(oid)
	defer freeO()
	n, freeN := cstr(name)
	defer freeN()
	l.pin(c, bytesAddr(value))
	return int(C.rados_aio_setxattr(C.rados_ioctx_t(ptr(io)), o, comp(c), n, bytesPtr(value), C.size_t(len(value))))
}

func (l *Library) AioRmXattr(io native.Handle, oid string, c native.Handle, name string) int {
	o, freeO := cstr(oid)
	defer freeO()
	n, freeN := cstr(name)
	defer freeN()
	return int(C.rados_aio_rmxattr(C.rados_ioctx_t(ptr(io)), o, comp(c), n))
}

func (l *Library) AioExec(io native.Handle, oid string, c native.Handle, class, method string, in, out []byte) int {
	o, freeO := cstr(oid)
	defer freeO()
	cl, freeCL := cstr(class)
	defer freeCL()
	m, freeM := cstr(method)
	defer freeM()
	l.pin(c, bytesAddr(in), bytesAddr(out))
	return int(C.rados_aio_exec(C.rados_ioctx_t(ptr(io)), o, comp(c), cl, m,
		bytesPtr(in), C.size_t(len(in)), bytesPtr(out), C.size_t(len(out))))
}

func (l *Library) AioWriteSame(io native.Handle, oid string, c native.Handle, buf []byte, writeLen int, off uint64) int {
	o, free := cstr(oid)
	defer free()
	l.pin(c, bytesAddr(buf))
	return int(C.rados_aio_writesame(C.rados_ioctx_t(ptr(io)), o, comp(c), bytesPtr(buf), C.size_t(len(buf)),
		C.size_t(writeLen), C.uint64_t(off)))
}

// AioIoctxSelfmanagedSnapCreate keeps id pinned until the completion is
// released.
func (l *Library) AioIoctxSelfmanagedSnapCreate(io native.Handle, id *uint64, c native.Handle) {
	l.pin(c, unsafe.Pointer(id))
	C.rados_aio_ioctx_selfmanaged_snap_create(C.rados_ioctx_t(ptr(io)), (*C.rados_snap_t)(unsafe.Pointer(id)), comp(c))
}

func (l *Library) AioIoctxSelfmanagedSnapRemove(io native.Handle, id uint64, c native.Handle) {
	C.rados_aio_ioctx_selfmanaged_snap_remove(C.rados_ioctx_t(ptr(io)), C.rados_snap_t(id), comp(c))
}
