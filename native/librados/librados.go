//go:build librados

package librados

/*
#cgo LDFLAGS: -lrados
#include <errno.h>
#include <stdlib.h>
#include <sys/time.h>
#include <rados/librados.h>
*/
import "C"

import (
	"runtime"
	"sync"
	"time"
	"unsafe"

	"go.uber.org/zap"

	"github.com/wippyai/go-rados/native"
)

// Library is the cgo backend. The zero value is not usable; call New.
type Library struct {
	logger *zap.Logger
	pins   map[native.Handle]*runtime.Pinner
	mu     sync.Mutex
}

var _ native.Library = (*Library)(nil)

// Option configures a Library.
type Option func(*Library)

// WithLogger sets the debug logger.
func WithLogger(l *zap.Logger) Option {
	return func(lib *Library) {
		lib.logger = l
	}
}

// New returns a backend bound to the process wide librados.
func New(opts ...Option) *Library {
	lib := &Library{
		logger: zap.NewNop(),
		pins:   make(map[native.Handle]*runtime.Pinner),
	}
	for _, opt := range opts {
		opt(lib)
	}
	return lib
}

// pin keeps the given pointers fixed until unpin(owner).
func (l *Library) pin(owner native.Handle, ptrs ...unsafe.Pointer) {
	l.mu.Lock()
	defer l.mu.Unlock()
	p, ok := l.pins[owner]
	if !ok {
		p = new(runtime.Pinner)
		l.pins[owner] = p
	}
	for _, ptr := range ptrs {
		if ptr != nil {
			p.Pin(ptr)
		}
	}
}

func (l *Library) unpin(owner native.Handle) {
	l.mu.Lock()
	p, ok := l.pins[owner]
	delete(l.pins, owner)
	l.mu.Unlock()
	if ok {
		p.Unpin()
	}
}

func ptr(h native.Handle) unsafe.Pointer {
	return unsafe.Pointer(uintptr(h)) //nolint:govet // C pointers round-trip through Handle
}

func handle(p unsafe.Pointer) native.Handle {
	return native.Handle(uintptr(p))
}

func bytesPtr(b []byte) *C.char {
	if len(b) == 0 {
		return nil
	}
	return (*C.char)(unsafe.Pointer(&b[0]))
}

func bytesAddr(b []byte) unsafe.Pointer {
	if len(b) == 0 {
		return nil
	}
	return unsafe.Pointer(&b[0])
}

// cstr copies s to C memory. The returned func frees it.
func cstr(s string) (*C.char, func()) {
	cs := C.CString(s)
	return cs, func() { C.free(unsafe.Pointer(cs)) }
}

// cstrOrNil maps the empty string to NULL.
func cstrOrNil(s string) (*C.char, func()) {
	if s == "" {
		return nil, func() {}
	}
	return cstr(s)
}

// cstrArray copies ss into a C array of C strings.
func cstrArray(ss []string) (**C.char, func()) {
	if len(ss) == 0 {
		return nil, func() {}
	}
	size := C.size_t(len(ss)) * C.size_t(unsafe.Sizeof(uintptr(0)))
	arr := unsafe.Slice((**C.char)(C.malloc(size)), len(ss))
	for i, s := range ss {
		arr[i] = C.CString(s)
	}
	return &arr[0], func() {
		for _, p := range arr {
			C.free(unsafe.Pointer(p))
		}
		C.free(unsafe.Pointer(&arr[0]))
	}
}

func timeval(d time.Duration) *C.struct_timeval {
	if d <= 0 {
		return nil
	}
	tv := (*C.struct_timeval)(C.malloc(C.size_t(unsafe.Sizeof(C.struct_timeval{}))))
	tv.tv_sec = C.time_t(d / time.Second)
	tv.tv_usec = C.suseconds_t((d % time.Second) / time.Microsecond)
	return tv
}

func freeTimeval(tv *C.struct_timeval) {
	if tv != nil {
		C.free(unsafe.Pointer(tv))
	}
}

// Cluster

func (l *Library) Create2(clusterName, userName string, flags uint64) (native.Handle, int) {
	cn, freeCN := cstrOrNil(clusterName)
	defer freeCN()
	un, freeUN := cstrOrNil(userName)
	defer freeUN()

	var cluster C.rados_t
	rc := C.rados_create2(&cluster, cn, un, C.uint64_t(flags))
	if rc < 0 {
		return 0, int(rc)
	}
	l.logger.Debug("cluster handle created", zap.String("cluster", clusterName), zap.String("user", userName))
	return handle(unsafe.Pointer(cluster)), 0
}

func (l *Library) Shutdown(cluster native.Handle) {
	C.rados_shutdown(C.rados_t(ptr(cluster)))
}

func (l *Library) ConfReadFile(cluster native.Handle, path string) int {
	p, free := cstrOrNil(path)
	defer free()
	return int(C.rados_conf_read_file(C.rados_t(ptr(cluster)), p))
}

func (l *Library) ConfParseEnv(cluster native.Handle, env string) int {
	e, free := cstrOrNil(env)
	defer free()
	return int(C.rados_conf_parse_env(C.rados_t(ptr(cluster)), e))
}

func (l *Library) ConfParseArgv(cluster native.Handle, argv []string) int {
	args, free := cstrArray(argv)
	defer free()
	return int(C.rados_conf_parse_argv(C.rados_t(ptr(cluster)), C.int(len(argv)), args))
}

func (l *Library) ConfParseArgvRemainder(cluster native.Handle, argv []string) ([]string, int) {
	if len(argv) == 0 {
		return nil, 0
	}
	args, free := cstrArray(argv)
	defer free()
	rem := (**C.char)(C.calloc(C.size_t(len(argv)+1), C.size_t(unsafe.Sizeof(uintptr(0)))))
	defer C.free(unsafe.Pointer(rem))

	rc := C.rados_conf_parse_argv_remainder(C.rados_t(ptr(cluster)), C.int(len(argv)), args, rem)
	if rc < 0 {
		return nil, int(rc)
	}
	var out []string
	for _, p := range unsafe.Slice(rem, len(argv)+1) {
		if p == nil {
			break
		}
		out = append(out, C.GoString(p))
	}
	return out, 0
}

func (l *Library) ConfSet(cluster native.Handle, option, value string) int {
	o, freeO := cstr(option)
	defer freeO()
	v, freeV := cstr(value)
	defer freeV()
	return int(C.rados_conf_set(C.rados_t(ptr(cluster)), o, v))
}

func (l *Library) ConfGet(cluster native.Handle, option string, buf []byte) int {
	o, free := cstr(option)
	defer free()
	return int(C.rados_conf_get(C.rados_t(ptr(cluster)), o, bytesPtr(buf), C.size_t(len(buf))))
}

func (l *Library) Connect(cluster native.Handle) int {
	return int(C.rados_connect(C.rados_t(ptr(cluster))))
}

func (l *Library) ClusterStat(cluster native.Handle, out *native.ClusterStat) int {
	var st C.struct_rados_cluster_stat_t
	rc := C.rados_cluster_stat(C.rados_t(ptr(cluster)), &st)
	if rc < 0 {
		return int(rc)
	}
	*out = native.ClusterStat{
		KB:         uint64(st.kb),
		KBUsed:     uint64(st.kb_used),
		KBAvail:    uint64(st.kb_avail),
		NumObjects: uint64(st.num_objects),
	}
	return 0
}

func (l *Library) ClusterFSID(cluster native.Handle, buf []byte) int {
	return int(C.rados_cluster_fsid(C.rados_t(ptr(cluster)), bytesPtr(buf), C.size_t(len(buf))))
}

func (l *Library) WaitForLatestOSDMap(cluster native.Handle) int {
	return int(C.rados_wait_for_latest_osdmap(C.rados_t(ptr(cluster))))
}

func (l *Library) GetInstanceID(cluster native.Handle) uint64 {
	return uint64(C.rados_get_instance_id(C.rados_t(ptr(cluster))))
}

func (l *Library) PoolList(cluster native.Handle, buf []byte) int {
	return int(C.rados_pool_list(C.rados_t(ptr(cluster)), bytesPtr(buf), C.size_t(len(buf))))
}

func (l *Library) PoolCreate(cluster native.Handle, name string) int {
	n, free := cstr(name)
	defer free()
	return int(C.rados_pool_create(C.rados_t(ptr(cluster)), n))
}

func (l *Library) PoolDelete(cluster native.Handle, name string) int {
	n, free := cstr(name)
	defer free()
	return int(C.rados_pool_delete(C.rados_t(ptr(cluster)), n))
}

func (l *Library) PoolLookup(cluster native.Handle, name string) int64 {
	n, free := cstr(name)
	defer free()
	return int64(C.rados_pool_lookup(C.rados_t(ptr(cluster)), n))
}

func (l *Library) PoolReverseLookup(cluster native.Handle, id int64, buf []byte) int {
	return int(C.rados_pool_reverse_lookup(C.rados_t(ptr(cluster)), C.int64_t(id), bytesPtr(buf), C.size_t(len(buf))))
}

func (l *Library) PoolCreateWithCrushRule(cluster native.Handle, name string, rule uint8) int {
	n, free := cstr(name)
	defer free()
	return int(C.rados_pool_create_with_crush_rule(C.rados_t(ptr(cluster)), n, C.uint8_t(rule)))
}

func (l *Library) PoolGetBaseTier(cluster native.Handle, pool int64, tier *int64) int {
	var t C.int64_t
	rc := C.rados_pool_get_base_tier(C.rados_t(ptr(cluster)), C.int64_t(pool), &t)
	*tier = int64(t)
	return int(rc)
}

func (l *Library) InconsistentPGList(cluster native.Handle, pool int64, buf []byte) int {
	return int(C.rados_inconsistent_pg_list(C.rados_t(ptr(cluster)), C.int64_t(pool), bytesPtr(buf), C.size_t(len(buf))))
}

func (l *Library) GetMinCompatibleOSD(cluster native.Handle, release *int8) int {
	var r C.int8_t
	rc := C.rados_get_min_compatible_osd(C.rados_t(ptr(cluster)), &r)
	*release = int8(r)
	return int(rc)
}

func (l *Library) GetMinCompatibleClient(cluster native.Handle, minRelease, requireMin *int8) int {
	var m, r C.int8_t
	rc := C.rados_get_min_compatible_client(C.rados_t(ptr(cluster)), &m, &r)
	*minRelease, *requireMin = int8(m), int8(r)
	return int(rc)
}

func (l *Library) PingMonitor(cluster native.Handle, monID string) (native.Handle, int, int) {
	m, free := cstr(monID)
	defer free()
	var out *C.char
	var outLen C.size_t
	rc := C.rados_ping_monitor(C.rados_t(ptr(cluster)), m, &out, &outLen)
	return handle(unsafe.Pointer(out)), int(outLen), int(rc)
}

func (l *Library) MonCommand(cluster native.Handle, cmd []string, in []byte) (native.Handle, int, native.Handle, int, int) {
	cmds, free := cstrArray(cmd)
	defer free()

	var out, status *C.char
	var outLen, statusLen C.size_t
	rc := C.rados_mon_command(C.rados_t(ptr(cluster)),
		cmds, C.size_t(len(cmd)),
		bytesPtr(in), C.size_t(len(in)),
		&out, &outLen, &status, &statusLen)
	return handle(unsafe.Pointer(out)), int(outLen), handle(unsafe.Pointer(status)), int(statusLen), int(rc)
}

func (l *Library) BufferBytes(buf native.Handle, n int) []byte {
	if buf.IsNull() || n <= 0 {
		return nil
	}
	return C.GoBytes(ptr(buf), C.int(n))
}

func (l *Library) BufferFree(buf native.Handle) {
	if buf.IsNull() {
		return
	}
	C.rados_buffer_free((*C.char)(ptr(buf)))
}

// IOContext

func (l *Library) IoctxCreate(cluster native.Handle, pool string) (native.Handle, int) {
	p, free := cstr(pool)
	defer free()
	var io C.rados_ioctx_t
	rc := C.rados_ioctx_create(C.rados_t(ptr(cluster)), p, &io)
	if rc < 0 {
		return 0, int(rc)
	}
	return handle(unsafe.Pointer(io)), 0
}

func (l *Library) IoctxCreate2(cluster native.Handle, poolID int64) (native.Handle, int) {
	var io C.rados_ioctx_t
	rc := C.rados_ioctx_create2(C.rados_t(ptr(cluster)), C.int64_t(poolID), &io)
	if rc < 0 {
		return 0, int(rc)
	}
	return handle(unsafe.Pointer(io)), 0
}

func (l *Library) IoctxDestroy(io native.Handle) {
	C.rados_ioctx_destroy(C.rados_ioctx_t(ptr(io)))
}

func (l *Library) IoctxPoolStat(io native.Handle, out *native.PoolStat) int {
	var st C.struct_rados_pool_stat_t
	rc := C.rados_ioctx_pool_stat(C.rados_ioctx_t(ptr(io)), &st)
	if rc < 0 {
		return int(rc)
	}
	*out = native.PoolStat{
		NumBytes:                   uint64(st.num_bytes),
		NumKB:                      uint64(st.num_kb),
		NumObjects:                 uint64(st.num_objects),
		NumObjectClones:            uint64(st.num_object_clones),
		NumObjectCopies:            uint64(st.num_object_copies),
		NumObjectsMissingOnPrimary: uint64(st.num_objects_missing_on_primary),
		NumObjectsUnfound:          uint64(st.num_objects_unfound),
		NumObjectsDegraded:         uint64(st.num_objects_degraded),
		NumRd:                      uint64(st.num_rd),
		NumRdKB:                    uint64(st.num_rd_kb),
		NumWr:                      uint64(st.num_wr),
		NumWrKB:                    uint64(st.num_wr_kb),
		NumUserBytes:               uint64(st.num_user_bytes),
		CompressedBytesOrig:        uint64(st.compressed_bytes_orig),
		CompressedBytes:            uint64(st.compressed_bytes),
		CompressedBytesAlloc:       uint64(st.compressed_bytes_alloc),
	}
	return 0
}

func (l *Library) IoctxGetID(io native.Handle) int64 {
	return int64(C.rados_ioctx_get_id(C.rados_ioctx_t(ptr(io))))
}

func (l *Library) IoctxSetNamespace(io native.Handle, ns string) {
	n, free := cstrOrNil(ns)
	defer free()
	C.rados_ioctx_set_namespace(C.rados_ioctx_t(ptr(io)), n)
}

func (l *Library) IoctxGetNamespace(io native.Handle, buf []byte) int {
	return int(C.rados_ioctx_get_namespace(C.rados_ioctx_t(ptr(io)), bytesPtr(buf), C.uint(len(buf))))
}

func (l *Library) IoctxLocatorSetKey(io native.Handle, key string) {
	k, free := cstrOrNil(key)
	defer free()
	C.rados_ioctx_locator_set_key(C.rados_ioctx_t(ptr(io)), k)
}

func (l *Library) GetLastVersion(io native.Handle) uint64 {
	return uint64(C.rados_get_last_version(C.rados_ioctx_t(ptr(io))))
}

func (l *Library) IoctxSnapCreate(io native.Handle, name string) int {
	n, free := cstr(name)
	defer free()
	return int(C.rados_ioctx_snap_create(C.rados_ioctx_t(ptr(io)), n))
}

func (l *Library) IoctxSnapRemove(io native.Handle, name string) int {
	n, free := cstr(name)
	defer free()
	return int(C.rados_ioctx_snap_remove(C.rados_ioctx_t(ptr(io)), n))
}

func (l *Library) IoctxSnapRollback(io native.Handle, oid, name string) int {
	o, freeO := cstr(oid)
	defer freeO()
	n, freeN := cstr(name)
	defer freeN()
	return int(C.rados_ioctx_snap_rollback(C.rados_ioctx_t(ptr(io)), o, n))
}

func (l *Library) IoctxSnapList(io native.Handle, snaps []uint64) int {
	var p *C.rados_snap_t
	if len(snaps) > 0 {
		p = (*C.rados_snap_t)(unsafe.Pointer(&snaps[0]))
	}
	return int(C.rados_ioctx_snap_list(C.rados_ioctx_t(ptr(io)), p, C.int(len(snaps))))
}

func (l *Library) IoctxSnapLookup(io native.Handle, name string, id *uint64) int {
	n, free := cstr(name)
	defer free()
	return int(C.rados_ioctx_snap_lookup(C.rados_ioctx_t(ptr(io)), n, (*C.rados_snap_t)(unsafe.Pointer(id))))
}

func (l *Library) IoctxSnapGetName(io native.Handle, id uint64, buf []byte) int {
	return int(C.rados_ioctx_snap_get_name(C.rados_ioctx_t(ptr(io)), C.rados_snap_t(id), bytesPtr(buf), C.int(len(buf))))
}

func (l *Library) IoctxSnapGetStamp(io native.Handle, id uint64, stamp *int64) int {
	return int(C.rados_ioctx_snap_get_stamp(C.rados_ioctx_t(ptr(io)), C.rados_snap_t(id), (*C.time_t)(unsafe.Pointer(stamp))))
}

func (l *Library) IoctxSelfmanagedSnapCreate(io native.Handle, id *uint64) int {
	var snap C.rados_snap_t
	rc := C.rados_ioctx_selfmanaged_snap_create(C.rados_ioctx_t(ptr(io)), &snap)
	*id = uint64(snap)
	return int(rc)
}

func (l *Library) IoctxSelfmanagedSnapRemove(io native.Handle, id uint64) int {
	return int(C.rados_ioctx_selfmanaged_snap_remove(C.rados_ioctx_t(ptr(io)), C.rados_snap_t(id)))
}

func (l *Library) IoctxSelfmanagedSnapRollback(io native.Handle, oid string, id uint64) int {
	o, free := cstr(oid)
	defer free()
	return int(C.rados_ioctx_selfmanaged_snap_rollback(C.rados_ioctx_t(ptr(io)), o, C.rados_snap_t(id)))
}

func (l *Library) IoctxSelfmanagedSnapSetWriteCtx(io native.Handle, seq uint64, snaps []uint64) int {
	var p *C.rados_snap_t
	if len(snaps) > 0 {
		p = (*C.rados_snap_t)(unsafe.Pointer(&snaps[0]))
	}
	return int(C.rados_ioctx_selfmanaged_snap_set_write_ctx(C.rados_ioctx_t(ptr(io)), C.rados_snap_t(seq), p, C.int(len(snaps))))
}

func (l *Library) IoctxPoolRequiresAlignment2(io native.Handle, requires *int) int {
	var r C.int
	rc := C.rados_ioctx_pool_requires_alignment2(C.rados_ioctx_t(ptr(io)), &r)
	*requires = int(r)
	return int(rc)
}

func (l *Library) IoctxPoolRequiredAlignment2(io native.Handle, alignment *uint64) int {
	var a C.uint64_t
	rc := C.rados_ioctx_pool_required_alignment2(C.rados_ioctx_t(ptr(io)), &a)
	*alignment = uint64(a)
	return int(rc)
}

// Application metadata

func (l *Library) ApplicationEnable(io native.Handle, app string, force bool) int {
	a, free := cstr(app)
	defer free()
	f := C.int(0)
	if force {
		f = 1
	}
	return int(C.rados_application_enable(C.rados_ioctx_t(ptr(io)), a, f))
}

func (l *Library) ApplicationList(io native.Handle, buf []byte, n *int) int {
	size := C.size_t(*n)
	rc := C.rados_application_list(C.rados_ioctx_t(ptr(io)), bytesPtr(buf), &size)
	*n = int(size)
	return int(rc)
}

func (l *Library) ApplicationMetadataGet(io native.Handle, app, key string, buf []byte, n *int) int {
	a, freeA := cstr(app)
	defer freeA()
	k, freeK := cstr(key)
	defer freeK()
	size := C.size_t(*n)
	rc := C.rados_application_metadata_get(C.rados_ioctx_t(ptr(io)), a, k, bytesPtr(buf), &size)
	*n = int(size)
	return int(rc)
}

func (l *Library) ApplicationMetadataSet(io native.Handle, app, key, value string) int {
	a, freeA := cstr(app)
	defer freeA()
	k, freeK := cstr(key)
	defer freeK()
	v, freeV := cstr(value)
	defer freeV()
	return int(C.rados_application_metadata_set(C.rados_ioctx_t(ptr(io)), a, k, v))
}

func (l *Library) ApplicationMetadataRemove(io native.Handle, app, key string) int {
	a, freeA := cstr(app)
	defer freeA()
	k, freeK := cstr(key)
	defer freeK()
	return int(C.rados_application_metadata_remove(C.rados_ioctx_t(ptr(io)), a, k))
}

func (l *Library) ApplicationMetadataList(io native.Handle, app string, keys []byte, keysLen *int, vals []byte, valsLen *int) int {
	a, free := cstr(app)
	defer free()
	kl, vl := C.size_t(*keysLen), C.size_t(*valsLen)
	rc := C.rados_application_metadata_list(C.rados_ioctx_t(ptr(io)), a, bytesPtr(keys), &kl, bytesPtr(vals), &vl)
	*keysLen, *valsLen = int(kl), int(vl)
	return int(rc)
}
