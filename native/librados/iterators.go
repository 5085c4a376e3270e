//go:build librados

package librados

/*
#include <rados/librados.h>
*/
import "C"

import (
	"unsafe"

	"github.com/wippyai/go-rados/native"
)

func (l *Library) NobjectsListOpen(io native.Handle) (native.Handle, int) {
	var ctx C.rados_list_ctx_t
	rc := C.rados_nobjects_list_open(C.rados_ioctx_t(ptr(io)), &ctx)
	if rc < 0 {
		return 0, int(rc)
	}
	return handle(unsafe.Pointer(ctx)), 0
}

func (l *Library) NobjectsListNext(iter native.Handle) (string, string, string, int) {
	var entry, key, ns *C.char
	rc := C.rados_nobjects_list_next(C.rados_list_ctx_t(ptr(iter)), &entry, &key, &ns)
	if rc < 0 {
		return "", "", "", int(rc)
	}
	return goString(entry), goString(key), goString(ns), 0
}

func (l *Library) NobjectsListClose(iter native.Handle) {
	C.rados_nobjects_list_close(C.rados_list_ctx_t(ptr(iter)))
}

func (l *Library) GetXattrs(io native.Handle, oid string) (native.Handle, int) {
	o, free := cstr(oid)
	defer free()
	var it C.rados_xattrs_iter_t
	rc := C.rados_getxattrs(C.rados_ioctx_t(ptr(io)), o, &it)
	if rc < 0 {
		return 0, int(rc)
	}
	return handle(unsafe.Pointer(it)), 0
}

func (l *Library) GetXattrsNext(iter native.Handle) (string, []byte, bool, int) {
	var name, val *C.char
	var n C.size_t
	rc := C.rados_getxattrs_next(C.rados_xattrs_iter_t(ptr(iter)), &name, &val, &n)
	if rc < 0 {
		return "", nil, false, int(rc)
	}
	if name == nil {
		return "", nil, false, 0
	}
	return C.GoString(name), C.GoBytes(unsafe.Pointer(val), C.int(n)), true, 0
}

func (l *Library) GetXattrsEnd(iter native.Handle) {
	C.rados_getxattrs_end(C.rados_xattrs_iter_t(ptr(iter)))
}

func (l *Library) OmapGetNext(iter native.Handle) (string, []byte, bool, int) {
	var key, val *C.char
	var keyLen, valLen C.size_t
	rc := C.rados_omap_get_next2(C.rados_omap_iter_t(ptr(iter)), &key, &val, &keyLen, &valLen)
	if rc < 0 {
		return "", nil, false, int(rc)
	}
	if key == nil {
		return "", nil, false, 0
	}
	var value []byte
	if val != nil {
		value = C.GoBytes(unsafe.Pointer(val), C.int(valLen))
	}
	return C.GoStringN(key, C.int(keyLen)), value, true, 0
}

func (l *Library) OmapGetEnd(iter native.Handle) {
	C.rados_omap_get_end(C.rados_omap_iter_t(ptr(iter)))
}

func goString(s *C.char) string {
	if s == nil {
		return ""
	}
	return C.GoString(s)
}

func listCtx(iter native.Handle) C.rados_list_ctx_t {
	return C.rados_list_ctx_t(ptr(iter))
}

func cursor(h native.Handle) C.rados_object_list_cursor {
	return C.rados_object_list_cursor(ptr(h))
}

func (l *Library) NobjectsListGetPGHashPosition(iter native.Handle) uint32 {
	return uint32(C.rados_nobjects_list_get_pg_hash_position(listCtx(iter)))
}

func (l *Library) NobjectsListSeek(iter native.Handle, pos uint32) uint32 {
	return uint32(C.rados_nobjects_list_seek(listCtx(iter), C.uint32_t(pos)))
}

func (l *Library) NobjectsListSeekCursor(iter, cur native.Handle) uint32 {
	return uint32(C.rados_nobjects_list_seek_cursor(listCtx(iter), cursor(cur)))
}

func (l *Library) NobjectsListGetCursor(iter native.Handle, cur *native.Handle) int {
	var c C.rados_object_list_cursor
	rc := C.rados_nobjects_list_get_cursor(listCtx(iter), &c)
	if rc < 0 {
		return int(rc)
	}
	*cur = handle(unsafe.Pointer(c))
	return 0
}

func (l *Library) ObjectListBegin(io native.Handle) native.Handle {
	return handle(unsafe.Pointer(C.rados_object_list_begin(C.rados_ioctx_t(ptr(io)))))
}

func (l *Library) ObjectListEnd(io native.Handle) native.Handle {
	return handle(unsafe.Pointer(C.rados_object_list_end(C.rados_ioctx_t(ptr(io)))))
}

func (l *Library) ObjectListIsEnd(io, cur native.Handle) int {
	return int(C.rados_object_list_is_end(C.rados_ioctx_t(ptr(io)), cursor(cur)))
}

func (l *Library) ObjectListCursorCmp(io, lhs, rhs native.Handle) int {
	return int(C.rados_object_list_cursor_cmp(C.rados_ioctx_t(ptr(io)), cursor(lhs), cursor(rhs)))
}

func (l *Library) ObjectListCursorFree(io, cur native.Handle) {
	C.rados_object_list_cursor_free(C.rados_ioctx_t(ptr(io)), cursor(cur))
}

// ObjectListSlice allocates both output cursors before the call, which
// overwrites them in place.
func (l *Library) ObjectListSlice(io, start, finish native.Handle, n, m int, splitStart, splitFinish *native.Handle) {
	ctx := C.rados_ioctx_t(ptr(io))
	s := C.rados_object_list_begin(ctx)
	f := C.rados_object_list_begin(ctx)
	C.rados_object_list_slice(ctx, cursor(start), cursor(finish), C.size_t(n), C.size_t(m), &s, &f)
	*splitStart = handle(unsafe.Pointer(s))
	*splitFinish = handle(unsafe.Pointer(f))
}
