package native

import "time"

// Library is the native client API. Method names follow the C functions with
// the rados_ prefix dropped.
type Library interface {
	Cluster
	IOContext
	Objects
	Async
	Operations
	Iterators
}

// Cluster covers cluster handle lifecycle, configuration and administration.
type Cluster interface {
	Create2(clusterName, userName string, flags uint64) (Handle, int)
	Shutdown(cluster Handle)

	ConfReadFile(cluster Handle, path string) int
	ConfParseEnv(cluster Handle, env string) int
	// ConfParseArgv skips argv[0] like a program's own arguments.
	// ConfParseArgvRemainder also returns the arguments it did not consume.
	ConfParseArgv(cluster Handle, argv []string) int
	ConfParseArgvRemainder(cluster Handle, argv []string) (remainder []string, rc int)
	ConfSet(cluster Handle, option, value string) int
	// ConfGet writes a NUL terminated value. It fails with -ENAMETOOLONG when
	// buf is too small.
	ConfGet(cluster Handle, option string, buf []byte) int

	Connect(cluster Handle) int
	ClusterStat(cluster Handle, out *ClusterStat) int
	// ClusterFSID returns the length written, or -ERANGE.
	ClusterFSID(cluster Handle, buf []byte) int
	WaitForLatestOSDMap(cluster Handle) int
	GetInstanceID(cluster Handle) uint64

	// PoolList fills buf with NUL separated names ending with an empty
	// string and returns the length needed, which may exceed len(buf).
	PoolList(cluster Handle, buf []byte) int
	PoolCreate(cluster Handle, name string) int
	PoolDelete(cluster Handle, name string) int
	PoolLookup(cluster Handle, name string) int64
	PoolReverseLookup(cluster Handle, id int64, buf []byte) int
	PoolCreateWithCrushRule(cluster Handle, name string, rule uint8) int
	PoolGetBaseTier(cluster Handle, pool int64, tier *int64) int
	// InconsistentPGList fills buf like PoolList.
	InconsistentPGList(cluster Handle, pool int64, buf []byte) int
	GetMinCompatibleOSD(cluster Handle, release *int8) int
	GetMinCompatibleClient(cluster Handle, minRelease, requireMin *int8) int

	// PingMonitor and MonCommand return natively allocated buffers that must
	// be released with BufferFree.
	PingMonitor(cluster Handle, monID string) (out Handle, outLen int, rc int)
	MonCommand(cluster Handle, cmd []string, in []byte) (out Handle, outLen int, status Handle, statusLen int, rc int)
	BufferBytes(buf Handle, n int) []byte
	BufferFree(buf Handle)
}

// IOContext covers I/O context handles and pool scoped state.
type IOContext interface {
	IoctxCreate(cluster Handle, pool string) (Handle, int)
	IoctxCreate2(cluster Handle, poolID int64) (Handle, int)
	IoctxDestroy(io Handle)

	IoctxPoolStat(io Handle, out *PoolStat) int
	IoctxGetID(io Handle) int64
	IoctxSetNamespace(io Handle, ns string)
	IoctxGetNamespace(io Handle, buf []byte) int
	IoctxLocatorSetKey(io Handle, key string)
	GetLastVersion(io Handle) uint64

	IoctxSnapCreate(io Handle, name string) int
	IoctxSnapRemove(io Handle, name string) int
	IoctxSnapRollback(io Handle, oid, name string) int
	// IoctxSnapList returns the number of snapshots, or -ERANGE if snaps is
	// too small.
	IoctxSnapList(io Handle, snaps []uint64) int
	IoctxSnapLookup(io Handle, name string, id *uint64) int
	IoctxSnapGetName(io Handle, id uint64, buf []byte) int
	IoctxSnapGetStamp(io Handle, id uint64, stamp *int64) int

	IoctxSelfmanagedSnapCreate(io Handle, id *uint64) int
	IoctxSelfmanagedSnapRemove(io Handle, id uint64) int
	IoctxSelfmanagedSnapRollback(io Handle, oid string, id uint64) int
	// IoctxSelfmanagedSnapSetWriteCtx sets the snapshot context of later
	// writes. snaps is sorted newest first and seq is at least snaps[0].
	IoctxSelfmanagedSnapSetWriteCtx(io Handle, seq uint64, snaps []uint64) int

	IoctxPoolRequiresAlignment2(io Handle, requires *int) int
	IoctxPoolRequiredAlignment2(io Handle, alignment *uint64) int

	// The application calls take the buffer capacity in n (or keysLen and
	// valsLen) and store the length used, or needed on -ERANGE.
	ApplicationEnable(io Handle, app string, force bool) int
	ApplicationList(io Handle, buf []byte, n *int) int
	ApplicationMetadataGet(io Handle, app, key string, buf []byte, n *int) int
	ApplicationMetadataSet(io Handle, app, key, value string) int
	ApplicationMetadataRemove(io Handle, app, key string) int
	ApplicationMetadataList(io Handle, app string, keys []byte, keysLen *int, vals []byte, valsLen *int) int
}

// Objects covers synchronous single-object calls.
type Objects interface {
	Write(io Handle, oid string, buf []byte, off uint64) int
	WriteFull(io Handle, oid string, buf []byte) int
	WriteSame(io Handle, oid string, buf []byte, writeLen int, off uint64) int
	Append(io Handle, oid string, buf []byte) int
	// Read returns the number of bytes read.
	Read(io Handle, oid string, buf []byte, off uint64) int
	Remove(io Handle, oid string) int
	Trunc(io Handle, oid string, size uint64) int
	Stat(io Handle, oid string, size *uint64, mtime *int64) int
	// CmpExt returns 0 on match and -MaxErrno-offset on mismatch.
	CmpExt(io Handle, oid string, cmp []byte, off uint64) int

	// GetXattr returns the value length, or -ERANGE if buf is too small.
	GetXattr(io Handle, oid, name string, buf []byte) int
	SetXattr(io Handle, oid, name string, value []byte) int
	RmXattr(io Handle, oid, name string) int

	// Exec returns the output length, or a negative status from the class.
	Exec(io Handle, oid, class, method string, in, out []byte) int
	Checksum(io Handle, oid string, typ ChecksumType, init []byte, length, off, chunkSize uint64, out []byte) int

	LockExclusive(io Handle, oid, name, cookie, desc string, duration time.Duration, flags LockFlag) int
	LockShared(io Handle, oid, name, cookie, tag, desc string, duration time.Duration, flags LockFlag) int
	Unlock(io Handle, oid, name, cookie string) int
	BreakLock(io Handle, oid, name, client, cookie string) int
	// ListLockers returns the number of lockers. Buffers that are too small
	// fail the call with -ERANGE and the needed lengths in out.
	ListLockers(io Handle, oid, name string, tag, clients, cookies, addrs []byte, out *LockersOut) int
}

// Async covers completion tokens and asynchronous submissions.
type Async interface {
	AioCreateCompletion() (Handle, int)
	AioRelease(c Handle)
	AioWaitForComplete(c Handle) int
	AioWaitForSafe(c Handle) int
	AioIsComplete(c Handle) int
	AioIsSafe(c Handle) int
	AioGetReturnValue(c Handle) int
	AioGetVersion(c Handle) uint64
	AioCancel(io, c Handle) int

	AioFlush(io Handle) int
	AioFlushAsync(io, c Handle) int

	AioWrite(io Handle, oid string, c Handle, buf []byte, off uint64) int
	AioWriteFull(io Handle, oid string, c Handle, buf []byte) int
	AioAppend(io Handle, oid string, c Handle, buf []byte) int
	AioRead(io Handle, oid string, c Handle, buf []byte, off uint64) int
	AioRemove(io Handle, oid string, c Handle) int
	AioStat(io Handle, oid string, c Handle, size *uint64, mtime *int64) int
	AioCmpExt(io Handle, oid string, c Handle, cmp []byte, off uint64) int
	AioGetXattr(io Handle, oid string, c Handle, name string, buf []byte) int
	AioSetXattr(io Handle, oid string, c Handle, name string, value []byte) int
	AioRmXattr(io Handle, oid string, c Handle, name string) int
	AioExec(io Handle, oid string, c Handle, class, method string, in, out []byte) int
	AioWriteSame(io Handle, oid string, c Handle, buf []byte, writeLen int, off uint64) int
	// The self-managed snapshot submissions report failures only through c.
	// id must stay valid until c completes.
	AioIoctxSelfmanagedSnapCreate(io Handle, id *uint64, c Handle)
	AioIoctxSelfmanagedSnapRemove(io Handle, id uint64, c Handle)
}

// Operations covers compound write and read operations.
type Operations interface {
	CreateWriteOp() Handle
	ReleaseWriteOp(op Handle)
	WriteOpAssertExists(op Handle)
	WriteOpAssertVersion(op Handle, ver uint64)
	WriteOpCmpExt(op Handle, cmp []byte, off uint64, prval *int32)
	WriteOpCreate(op Handle, exclusive int, category string)
	WriteOpWrite(op Handle, buf []byte, off uint64)
	WriteOpWriteFull(op Handle, buf []byte)
	WriteOpAppend(op Handle, buf []byte)
	WriteOpRemove(op Handle)
	WriteOpTruncate(op Handle, off uint64)
	WriteOpZero(op Handle, off, length uint64)
	WriteOpSetXattr(op Handle, name string, value []byte)
	WriteOpRmXattr(op Handle, name string)
	WriteOpOmapSet(op Handle, keys []string, values [][]byte)
	WriteOpOmapRmKeys(op Handle, keys []string)
	WriteOpOmapClear(op Handle)
	// WriteOpOmapRmRange removes the keys in [begin, end).
	WriteOpOmapRmRange(op Handle, begin, end string)
	WriteOpCmpXattr(op Handle, name string, cmp CompareOp, value []byte)
	WriteOpOmapCmp(op Handle, key string, cmp CompareOp, value []byte, prval *int32)
	WriteOpWriteSame(op Handle, buf []byte, writeLen int, off uint64)
	WriteOpExec(op Handle, class, method string, in []byte, prval *int32)
	WriteOpSetAllocHint(op Handle, objectSize, writeSize uint64, flags AllocHintFlag)
	WriteOpOperate(op, io Handle, oid string, mtime *int64, flags OperationFlag) int
	AioWriteOpOperate(op, io, c Handle, oid string, mtime *int64, flags OperationFlag) int

	CreateReadOp() Handle
	ReleaseReadOp(op Handle)
	ReadOpAssertExists(op Handle)
	ReadOpAssertVersion(op Handle, ver uint64)
	ReadOpCmpExt(op Handle, cmp []byte, off uint64, prval *int32)
	ReadOpStat(op Handle, size *uint64, mtime *int64, prval *int32)
	ReadOpRead(op Handle, off uint64, buf []byte, bytesRead *uint64, prval *int32)
	ReadOpChecksum(op Handle, typ ChecksumType, init []byte, off, length, chunkSize uint64, out []byte, prval *int32)
	ReadOpGetXattrs(op Handle, iter *Handle, prval *int32)
	ReadOpOmapGetVals(op Handle, startAfter, filterPrefix string, max uint64, iter *Handle, more *uint8, prval *int32)
	ReadOpOmapGetKeys(op Handle, startAfter string, max uint64, iter *Handle, more *uint8, prval *int32)
	ReadOpOmapGetValsByKeys(op Handle, keys []string, iter *Handle, prval *int32)
	ReadOpCmpXattr(op Handle, name string, cmp CompareOp, value []byte)
	ReadOpOmapCmp(op Handle, key string, cmp CompareOp, value []byte, prval *int32)
	// ReadOpExec fails the step with -ERANGE when the output exceeds out.
	ReadOpExec(op Handle, class, method string, in, out []byte, used *uint64, prval *int32)
	ReadOpOperate(op, io Handle, oid string, flags OperationFlag) int
	AioReadOpOperate(op, io, c Handle, oid string, flags OperationFlag) int
}

// Iterators covers native listing cursors. Next calls copy the current entry
// out. Exhausted xattr and omap iterators report ok=false with status 0;
// object listing reports -ENOENT instead.
type Iterators interface {
	NobjectsListOpen(io Handle) (Handle, int)
	NobjectsListNext(iter Handle) (entry, key, ns string, rc int)
	NobjectsListClose(iter Handle)
	NobjectsListGetPGHashPosition(iter Handle) uint32
	NobjectsListSeek(iter Handle, pos uint32) uint32
	NobjectsListSeekCursor(iter, cursor Handle) uint32
	// NobjectsListGetCursor returns a cursor freed with ObjectListCursorFree.
	NobjectsListGetCursor(iter Handle, cursor *Handle) int

	// Object list cursors belong to an I/O context and are freed with
	// ObjectListCursorFree. ObjectListSlice stores two new cursors.
	ObjectListBegin(io Handle) Handle
	ObjectListEnd(io Handle) Handle
	ObjectListIsEnd(io, cursor Handle) int
	ObjectListCursorCmp(io, lhs, rhs Handle) int
	ObjectListCursorFree(io, cursor Handle)
	ObjectListSlice(io, start, finish Handle, n, m int, splitStart, splitFinish *Handle)

	GetXattrs(io Handle, oid string) (Handle, int)
	GetXattrsNext(iter Handle) (name string, value []byte, ok bool, rc int)
	GetXattrsEnd(iter Handle)

	OmapGetNext(iter Handle) (key string, value []byte, ok bool, rc int)
	OmapGetEnd(iter Handle)
}
