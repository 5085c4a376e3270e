//go:build librados

package librados

/*
#include <stdlib.h>
#include <string.h>
#include <rados/librados.h>
*/
import "C"

import (
	"unsafe"

	"github.com/wippyai/go-rados/native"
)

func wop(op native.Handle) C.rados_write_op_t {
	return C.rados_write_op_t(ptr(op))
}

func rop(op native.Handle) C.rados_read_op_t {
	return C.rados_read_op_t(ptr(op))
}

// cbytesArray copies values into C memory along with their lengths.
func cbytesArray(values [][]byte) (**C.char, *C.size_t, func()) {
	if len(values) == 0 {
		return nil, nil, func() {}
	}
	n := C.size_t(len(values))
	arr := unsafe.Slice((**C.char)(C.malloc(n*C.size_t(unsafe.Sizeof(uintptr(0))))), len(values))
	lens := unsafe.Slice((*C.size_t)(C.malloc(n*C.size_t(unsafe.Sizeof(C.size_t(0))))), len(values))
	for i, v := range values {
		// malloc(0) may return NULL; one byte keeps every slot addressable.
		p := C.malloc(C.size_t(len(v) + 1))
		if len(v) > 0 {
			C.memcpy(p, unsafe.Pointer(&v[0]), C.size_t(len(v)))
		}
		arr[i] = (*C.char)(p)
		lens[i] = C.size_t(len(v))
	}
	return &arr[0], &lens[0], func() {
		for _, p := range arr {
			C.free(unsafe.Pointer(p))
		}
		C.free(unsafe.Pointer(&arr[0]))
		C.free(unsafe.Pointer(&lens[0]))
	}
}

// Write operations

func (l *Library) CreateWriteOp() native.Handle {
	return handle(unsafe.Pointer(C.rados_create_write_op()))
}

// ReleaseWriteOp frees the operation and unpins its output fields.
func (l *Library) ReleaseWriteOp(op native.Handle) {
	C.rados_release_write_op(wop(op))
	l.unpin(op)
}

func (l *Library) WriteOpAssertExists(op native.Handle) {
	C.rados_write_op_assert_exists(wop(op))
}

func (l *Library) WriteOpAssertVersion(op native.Handle, ver uint64) {
	C.rados_write_op_assert_version(wop(op), C.uint64_t(ver))
}

func (l *Library) WriteOpCmpExt(op native.Handle, cmp []byte, off uint64, prval *int32) {
	l.pin(op, unsafe.Pointer(prval))
	C.rados_write_op_cmpext(wop(op), bytesPtr(cmp), C.size_t(len(cmp)), C.uint64_t(off), (*C.int)(unsafe.Pointer(prval)))
}

func (l *Library) WriteOpCreate(op native.Handle, exclusive int, category string) {
	c, free := cstrOrNil(category)
	defer free()
	C.rados_write_op_create(wop(op), C.int(exclusive), c)
}

func (l *Library) WriteOpWrite(op native.Handle, buf []byte, off uint64) {
	C.rados_write_op_write(wop(op), bytesPtr(buf), C.size_t(len(buf)), C.uint64_t(off))
}

func (l *Library) WriteOpWriteFull(op native.Handle, buf []byte) {
	C.rados_write_op_write_full(wop(op), bytesPtr(buf), C.size_t(len(buf)))
}

func (l *Library) WriteOpAppend(op native.Handle, buf []byte) {
	C.rados_write_op_append(wop(op), bytesPtr(buf), C.size_t(len(buf)))
}

func (l *Library) WriteOpRemove(op native.Handle) {
	C.rados_write_op_remove(wop(op))
}

func (l *Library) WriteOpTruncate(op native.Handle, off uint64) {
	C.rados_write_op_truncate(wop(op), C.uint64_t(off))
}

func (l *Library) WriteOpZero(op native.Handle, off, length uint64) {
	C.rados_write_op_zero(wop(op), C.uint64_t(off), C.uint64_t(length))
}

func (l *Library) WriteOpSetXattr(op native.Handle, name string, value []byte) {
	n, free := cstr(name)
	defer free()
	C.rados_write_op_setxattr(wop(op), n, bytesPtr(value), C.size_t(len(value)))
}

func (l *Library) WriteOpRmXattr(op native.Handle, name string) {
	n, free := cstr(name)
	defer free()
	C.rados_write_op_rmxattr(wop(op), n)
}

func (l *Library) WriteOpOmapSet(op native.Handle, keys []string, values [][]byte) {
	ks, freeKeys := cstrArray(keys)
	defer freeKeys()
	vs, lens, freeValues := cbytesArray(values)
	defer freeValues()
	C.rados_write_op_omap_set(wop(op), ks, vs, lens, C.size_t(len(keys)))
}

func (l *Library) WriteOpOmapRmKeys(op native.Handle, keys []string) {
	ks, free := cstrArray(keys)
	defer free()
	C.rados_write_op_omap_rm_keys(wop(op), ks, C.size_t(len(keys)))
}

func (l *Library) WriteOpOmapClear(op native.Handle) {
	C.rados_write_op_omap_clear(wop(op))
}

func (l *Library) WriteOpOmapRmRange(op native.Handle, begin, end string) {
	b, freeB := cstr(begin)
	defer freeB()
	e, freeE := cstr(end)
	defer freeE()
	C.rados_write_op_omap_rm_range2(wop(op), b, C.size_t(len(begin)), e, C.size_t(len(end)))
}

func (l *Library) WriteOpCmpXattr(op native.Handle, name string, cmp native.CompareOp, value []byte) {
	n, free := cstr(name)
	defer free()
	C.rados_write_op_cmpxattr(wop(op), n, C.uint8_t(cmp), bytesPtr(value), C.size_t(len(value)))
}

func (l *Library) WriteOpOmapCmp(op native.Handle, key string, cmp native.CompareOp, value []byte, prval *int32) {
	k, free := cstr(key)
	defer free()
	l.pin(op, unsafe.Pointer(prval))
	C.rados_write_op_omap_cmp2(wop(op), k, C.uint8_t(cmp), bytesPtr(value),
		C.size_t(len(key)), C.size_t(len(value)), (*C.int)(unsafe.Pointer(prval)))
}

func (l *Library) WriteOpWriteSame(op native.Handle, buf []byte, writeLen int, off uint64) {
	C.rados_write_op_writesame(wop(op), bytesPtr(buf), C.size_t(len(buf)), C.size_t(writeLen), C.uint64_t(off))
}

func (l *Library) WriteOpExec(op native.Handle, class, method string, in []byte, prval *int32) {
	cl, freeCL := cstr(class)
	defer freeCL()
	m, freeM := cstr(method)
	defer freeM()
	l.pin(op, unsafe.Pointer(prval))
	C.rados_write_op_exec(wop(op), cl, m, bytesPtr(in), C.size_t(len(in)), (*C.int)(unsafe.Pointer(prval)))
}

func (l *Library) WriteOpSetAllocHint(op native.Handle, objectSize, writeSize uint64, flags native.AllocHintFlag) {
	C.rados_write_op_set_alloc_hint2(wop(op), C.uint64_t(objectSize), C.uint64_t(writeSize), C.uint32_t(flags))
}

func (l *Library) WriteOpOperate(op, io native.Handle, oid string, mtime *int64, flags native.OperationFlag) int {
	o, free := cstr(oid)
	defer free()
	return int(C.rados_write_op_operate(wop(op), C.rados_ioctx_t(ptr(io)), o,
		(*C.time_t)(unsafe.Pointer(mtime)), C.int(flags)))
}

func (l *Library) AioWriteOpOperate(op, io, c native.Handle, oid string, mtime *int64, flags native.OperationFlag) int {
	o, free := cstr(oid)
	defer free()
	l.pin(op, unsafe.Pointer(mtime))
	return int(C.rados_aio_write_op_operate(wop(op), C.rados_ioctx_t(ptr(io)), comp(c), o,
		(*C.time_t)(unsafe.Pointer(mtime)), C.int(flags)))
}

// Read operations

func (l *Library) CreateReadOp() native.Handle {
	return handle(unsafe.Pointer(C.rados_create_read_op()))
}

// ReleaseReadOp frees the operation and unpins its output fields.
func (l *Library) ReleaseReadOp(op native.Handle) {
	C.rados_release_read_op(rop(op))
	l.unpin(op)
}

func (l *Library) ReadOpAssertExists(op native.Handle) {
	C.rados_read_op_assert_exists(rop(op))
}

func (l *Library) ReadOpAssertVersion(op native.Handle, ver uint64) {
	C.rados_read_op_assert_version(rop(op), C.uint64_t(ver))
}

func (l *Library) ReadOpCmpExt(op native.Handle, cmp []byte, off uint64, prval *int32) {
	l.pin(op, unsafe.Pointer(prval))
	C.rados_read_op_cmpext(rop(op), bytesPtr(cmp), C.size_t(len(cmp)), C.uint64_t(off), (*C.int)(unsafe.Pointer(prval)))
}

func (l *Library) ReadOpStat(op native.Handle, size *uint64, mtime *int64, prval *int32) {
	l.pin(op, unsafe.Pointer(size), unsafe.Pointer(mtime), unsafe.Pointer(prval))
	C.rados_read_op_stat(rop(op), (*C.uint64_t)(unsafe.Pointer(size)), (*C.time_t)(unsafe.Pointer(mtime)), (*C.int)(unsafe.Pointer(prval)))
}

func (l *Library) ReadOpRead(op native.Handle, off uint64, buf []byte, bytesRead *uint64, prval *int32) {
	l.pin(op, bytesAddr(buf), unsafe.Pointer(bytesRead), unsafe.Pointer(prval))
	C.rados_read_op_read(rop(op), C.uint64_t(off), C.size_t(len(buf)), bytesPtr(buf),
		(*C.size_t)(unsafe.Pointer(bytesRead)), (*C.int)(unsafe.Pointer(prval)))
}

func (l *Library) ReadOpChecksum(op native.Handle, typ native.ChecksumType, init []byte, off, length, chunkSize uint64, out []byte, prval *int32) {
	l.pin(op, bytesAddr(out), unsafe.Pointer(prval))
	C.rados_read_op_checksum(rop(op), C.rados_checksum_type_t(typ),
		bytesPtr(init), C.size_t(len(init)),
		C.uint64_t(off), C.size_t(length), C.size_t(chunkSize),
		bytesPtr(out), C.size_t(len(out)), (*C.int)(unsafe.Pointer(prval)))
}

func (l *Library) ReadOpGetXattrs(op native.Handle, iter *native.Handle, prval *int32) {
	l.pin(op, unsafe.Pointer(prval))
	C.rados_read_op_getxattrs(rop(op), (*C.rados_xattrs_iter_t)(unsafe.Pointer(iter)), (*C.int)(unsafe.Pointer(prval)))
}

func (l *Library) ReadOpOmapGetVals(op native.Handle, startAfter, filterPrefix string, max uint64, iter *native.Handle, more *uint8, prval *int32) {
	s, freeS := cstr(startAfter)
	defer freeS()
	p, freeP := cstr(filterPrefix)
	defer freeP()
	l.pin(op, unsafe.Pointer(more), unsafe.Pointer(prval))
	C.rados_read_op_omap_get_vals2(rop(op), s, p, C.uint64_t(max),
		(*C.rados_omap_iter_t)(unsafe.Pointer(iter)), (*C.uchar)(unsafe.Pointer(more)), (*C.int)(unsafe.Pointer(prval)))
}

func (l *Library) ReadOpOmapGetKeys(op native.Handle, startAfter string, max uint64, iter *native.Handle, more *uint8, prval *int32) {
	s, free := cstr(startAfter)
	defer free()
	l.pin(op, unsafe.Pointer(more), unsafe.Pointer(prval))
	C.rados_read_op_omap_get_keys2(rop(op), s, C.uint64_t(max),
		(*C.rados_omap_iter_t)(unsafe.Pointer(iter)), (*C.uchar)(unsafe.Pointer(more)), (*C.int)(unsafe.Pointer(prval)))
}

func (l *Library) ReadOpOmapGetValsByKeys(op native.Handle, keys []string, iter *native.Handle, prval *int32) {
	ks, freeKeys := cstrArray(keys)
	defer freeKeys()
	var lens *C.size_t
	if len(keys) > 0 {
		arr := unsafe.Slice((*C.size_t)(C.malloc(C.size_t(len(keys))*C.size_t(unsafe.Sizeof(C.size_t(0))))), len(keys))
		defer C.free(unsafe.Pointer(&arr[0]))
		for i, k := range keys {
			arr[i] = C.size_t(len(k))
		}
		lens = &arr[0]
	}
	l.pin(op, unsafe.Pointer(prval))
	C.rados_read_op_omap_get_vals_by_keys2(rop(op), ks, C.size_t(len(keys)), lens,
		(*C.rados_omap_iter_t)(unsafe.Pointer(iter)), (*C.int)(unsafe.Pointer(prval)))
}

func (l *Library) ReadOpCmpXattr(op native.Handle, name string, cmp native.CompareOp, value []byte) {
	n, free := cstr(name)
	defer free()
	C.rados_read_op_cmpxattr(rop(op), n, C.uint8_t(cmp), bytesPtr(value), C.size_t(len(value)))
}

func (l *Library) ReadOpOmapCmp(op native.Handle, key string, cmp native.CompareOp, value []byte, prval *int32) {
	k, free := cstr(key)
	defer free()
	l.pin(op, unsafe.Pointer(prval))
	C.rados_read_op_omap_cmp2(rop(op), k, C.uint8_t(cmp), bytesPtr(value),
		C.size_t(len(key)), C.size_t(len(value)), (*C.int)(unsafe.Pointer(prval)))
}

func (l *Library) ReadOpExec(op native.Handle, class, method string, in, out []byte, used *uint64, prval *int32) {
	cl, freeCL := cstr(class)
	defer freeCL()
	m, freeM := cstr(method)
	defer freeM()
	l.pin(op, bytesAddr(out), unsafe.Pointer(used), unsafe.Pointer(prval))
	C.rados_read_op_exec_user_buf(rop(op), cl, m, bytesPtr(in), C.size_t(len(in)),
		bytesPtr(out), C.size_t(len(out)), (*C.size_t)(unsafe.Pointer(used)), (*C.int)(unsafe.Pointer(prval)))
}

func (l *Library) ReadOpOperate(op, io native.Handle, oid string, flags native.OperationFlag) int {
	o, free := cstr(oid)
	defer free()
	return int(C.rados_read_op_operate(rop(op), C.rados_ioctx_t(ptr(io)), o, C.int(flags)))
}

func (l *Library) AioReadOpOperate(op, io, c native.Handle, oid string, flags native.OperationFlag) int {
	o, free := cstr(oid)
	defer free()
	return int(C.rados_aio_read_op_operate(rop(op), C.rados_ioctx_t(ptr(io)), comp(c), o, C.int(flags)))
}
