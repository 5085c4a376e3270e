package rados

import (
	"time"

	"github.com/wippyai/go-rados/native"
)

// AllNamespaces makes object listing span every namespace of the pool.
const AllNamespaces = native.AllNamespaces

// Snapshot identifiers with special meaning.
const (
	SnapHead = native.SnapHead
	SnapDir  = native.SnapDir
)

// CreateMode selects whether creating an existing object fails.
type CreateMode int

const (
	CreateIdempotent CreateMode = native.CreateIdempotent
	CreateExclusive  CreateMode = native.CreateExclusive
)

type (
	AllocHintFlag = native.AllocHintFlag
	ChecksumType  = native.ChecksumType
	CompareOp     = native.CompareOp
	LockFlag      = native.LockFlag
	OperationFlag = native.OperationFlag
	ClusterStat   = native.ClusterStat
	PoolStat      = native.PoolStat
)

const (
	ChecksumXXHash32 = native.ChecksumXXHash32
	ChecksumXXHash64 = native.ChecksumXXHash64
	ChecksumCRC32C   = native.ChecksumCRC32C
)

const (
	CompareEQ  = native.CompareEQ
	CompareNE  = native.CompareNE
	CompareGT  = native.CompareGT
	CompareGTE = native.CompareGTE
	CompareLT  = native.CompareLT
	CompareLTE = native.CompareLTE
)

const (
	AllocHintSequentialWrite = native.AllocHintSequentialWrite
	AllocHintRandomWrite     = native.AllocHintRandomWrite
	AllocHintSequentialRead  = native.AllocHintSequentialRead
	AllocHintRandomRead      = native.AllocHintRandomRead
	AllocHintAppendOnly      = native.AllocHintAppendOnly
	AllocHintImmutable       = native.AllocHintImmutable
	AllocHintShortLived      = native.AllocHintShortLived
	AllocHintLongLived       = native.AllocHintLongLived
	AllocHintCompressible    = native.AllocHintCompressible
	AllocHintIncompressible  = native.AllocHintIncompressible
)

const (
	LockFlagRenew     = native.LockFlagRenew
	LockFlagMustRenew = native.LockFlagMustRenew
)

const (
	OperationNoFlag           = native.OperationNoFlag
	OperationBalanceReads     = native.OperationBalanceReads
	OperationLocalizeReads    = native.OperationLocalizeReads
	OperationOrderReadsWrites = native.OperationOrderReadsWrites
	OperationIgnoreCache      = native.OperationIgnoreCache
	OperationSkipRWLocks      = native.OperationSkipRWLocks
	OperationIgnoreOverlay    = native.OperationIgnoreOverlay
	OperationFullTry          = native.OperationFullTry
	OperationFullForce        = native.OperationFullForce
	OperationIgnoreRedirect   = native.OperationIgnoreRedirect
	OperationOrderSnap        = native.OperationOrderSnap
	OperationReturnVec        = native.OperationReturnVec
)

// ObjectStat is the size and modification time of an object.
type ObjectStat struct {
	ModTime time.Time
	Size    uint64
}

// CompareResult is the outcome of an extent comparison. On a mismatch Offset
// is the index of the first differing byte.
type CompareResult struct {
	Offset uint64
	Match  bool
}

// ExecResult is the outcome of an object class method. ReturnValue is the
// raw non-negative code the call returned.
type ExecResult struct {
	Output      []byte
	ReturnValue int
}

// ObjectEntry is one result of object listing.
type ObjectEntry struct {
	OID       string
	Key       string
	Namespace string
}

// Pair is a name and value from an xattr or omap listing.
type Pair struct {
	Key   string
	Value []byte
}

// Snapshot describes a pool snapshot.
type Snapshot struct {
	Stamp time.Time
	Name  string
	ID    uint64
}
