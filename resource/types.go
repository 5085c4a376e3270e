package resource

import "github.com/wippyai/go-rados/native"

// Kind identifies what a native handle refers to.
type Kind uint8

const (
	KindCluster Kind = iota
	KindIOContext
	KindCompletion
	KindWriteOp
	KindReadOp
	KindObjectIterator
	KindXattrIterator
	KindOmapIterator
	KindBuffer
	KindObjectCursor
	kindCount
)

var kindNames = [kindCount]string{
	KindCluster:        "cluster",
	KindIOContext:      "ioctx",
	KindCompletion:     "completion",
	KindWriteOp:        "write_op",
	KindReadOp:         "read_op",
	KindObjectIterator: "object_iterator",
	KindXattrIterator:  "xattr_iterator",
	KindOmapIterator:   "omap_iterator",
	KindBuffer:         "buffer",
	KindObjectCursor:   "object_cursor",
}

func (k Kind) String() string {
	if k < kindCount {
		return kindNames[k]
	}
	return "unknown"
}

// Kinds lists every resource kind.
func Kinds() []Kind {
	out := make([]Kind, 0, kindCount)
	for k := Kind(0); k < kindCount; k++ {
		out = append(out, k)
	}
	return out
}

// Event types for resource lifecycle notifications.
type EventType uint8

const (
	EventCreated EventType = iota
	EventReleased
	EventReleaseFailed
)

func (t EventType) String() string {
	switch t {
	case EventCreated:
		return "created"
	case EventReleased:
		return "released"
	case EventReleaseFailed:
		return "release_failed"
	}
	return "unknown"
}

// Event represents a resource lifecycle event.
type Event struct {
	// Err is the failure reported by the release routine, if any.
	Err    error
	ID     uint64
	Handle native.Handle
	Kind   Kind
	Type   EventType
	// Collected is set when the release was triggered by the garbage
	// collector instead of an explicit Release.
	Collected bool
}

// Observer receives notifications about resource lifecycle events.
// Observers are called synchronously and must not block.
type Observer interface {
	OnResourceEvent(Event)
}

// ReleaseFunc is the native release routine of a resource. It runs exactly
// once with the handle the resource was created with.
type ReleaseFunc func(native.Handle) error
