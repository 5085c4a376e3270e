package native

// Handle is an opaque native pointer. Zero is the null handle.
type Handle uintptr

// IsNull reports whether h is the null handle.
func (h Handle) IsNull() bool { return h == 0 }

// MaxErrno bounds the errno window of native return codes.
const MaxErrno = 4095

// Snapshot identifiers with special meaning.
const (
	SnapHead uint64 = 1<<64 - 2 // (uint64)-2
	SnapDir  uint64 = 1<<64 - 1 // (uint64)-1
)

// AllNamespaces makes object listing span every namespace of the pool.
const AllNamespaces = "\001"

// Create modes for the create write-op task.
const (
	CreateIdempotent = 0
	CreateExclusive  = 1
)

// LockFlag modifies lock acquisition.
type LockFlag uint8

const (
	LockFlagRenew     LockFlag = 1
	LockFlagMustRenew LockFlag = 2
)

// OperationFlag is passed to compound operation execution.
type OperationFlag int

const (
	OperationNoFlag           OperationFlag = 0
	OperationBalanceReads     OperationFlag = 1
	OperationLocalizeReads    OperationFlag = 2
	OperationOrderReadsWrites OperationFlag = 4
	OperationIgnoreCache      OperationFlag = 8
	OperationSkipRWLocks      OperationFlag = 16
	OperationIgnoreOverlay    OperationFlag = 32
	OperationFullTry          OperationFlag = 64
	OperationFullForce        OperationFlag = 128
	OperationIgnoreRedirect   OperationFlag = 256
	OperationOrderSnap        OperationFlag = 512
	OperationReturnVec        OperationFlag = 1024
)

// CompareOp is the operator of xattr and omap comparison steps. Omap
// comparisons support only CompareEQ, CompareGT and CompareLT.
type CompareOp uint8

const (
	CompareEQ  CompareOp = 1
	CompareNE  CompareOp = 2
	CompareGT  CompareOp = 3
	CompareGTE CompareOp = 4
	CompareLT  CompareOp = 5
	CompareLTE CompareOp = 6
)

// AllocHintFlag describes the expected access pattern of an object.
type AllocHintFlag uint32

const (
	AllocHintSequentialWrite AllocHintFlag = 1
	AllocHintRandomWrite     AllocHintFlag = 2
	AllocHintSequentialRead  AllocHintFlag = 4
	AllocHintRandomRead      AllocHintFlag = 8
	AllocHintAppendOnly      AllocHintFlag = 16
	AllocHintImmutable       AllocHintFlag = 32
	AllocHintShortLived      AllocHintFlag = 64
	AllocHintLongLived       AllocHintFlag = 128
	AllocHintCompressible    AllocHintFlag = 256
	AllocHintIncompressible  AllocHintFlag = 512
)

// ChecksumType selects the checksum algorithm.
type ChecksumType int

const (
	ChecksumXXHash32 ChecksumType = 0
	ChecksumXXHash64 ChecksumType = 1
	ChecksumCRC32C   ChecksumType = 2
)

// Size returns the byte length of one checksum value.
func (t ChecksumType) Size() int {
	switch t {
	case ChecksumXXHash32, ChecksumCRC32C:
		return 4
	case ChecksumXXHash64:
		return 8
	}
	return 0
}

func (t ChecksumType) String() string {
	switch t {
	case ChecksumXXHash32:
		return "xxhash32"
	case ChecksumXXHash64:
		return "xxhash64"
	case ChecksumCRC32C:
		return "crc32c"
	}
	return "unknown"
}

// ClusterStat mirrors struct rados_cluster_stat_t.
type ClusterStat struct {
	KB         uint64
	KBUsed     uint64
	KBAvail    uint64
	NumObjects uint64
}

// PoolStat mirrors struct rados_pool_stat_t.
type PoolStat struct {
	NumBytes                   uint64
	NumKB                      uint64
	NumObjects                 uint64
	NumObjectClones            uint64
	NumObjectCopies            uint64
	NumObjectsMissingOnPrimary uint64
	NumObjectsUnfound          uint64
	NumObjectsDegraded         uint64
	NumRd                      uint64
	NumRdKB                    uint64
	NumWr                      uint64
	NumWrKB                    uint64
	NumUserBytes               uint64
	CompressedBytesOrig        uint64
	CompressedBytes            uint64
	CompressedBytesAlloc       uint64
}

// LockersOut carries the in/out length fields of the lock listing call.
// Each length is the capacity on input and the used (or required) length on
// output.
type LockersOut struct {
	Exclusive  int32
	TagLen     uint64
	ClientsLen uint64
	CookiesLen uint64
	AddrsLen   uint64
}
