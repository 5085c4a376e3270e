package sim

import (
	"fmt"
	"sync"

	"github.com/wippyai/go-rados/native"
)

type handleKind uint8

const (
	hCluster handleKind = iota + 1
	hIoctx
	hCompletion
	hWriteOp
	hReadOp
	hObjectList
	hXattrIter
	hOmapIter
	hBuffer
	hCursor
)

var handleKindNames = [...]string{
	hCluster:    "cluster",
	hIoctx:      "ioctx",
	hCompletion: "completion",
	hWriteOp:    "write_op",
	hReadOp:     "read_op",
	hObjectList: "list_ctx",
	hXattrIter:  "xattrs_iter",
	hOmapIter:   "omap_iter",
	hBuffer:     "buffer",
	hCursor:     "object_list_cursor",
}

func (k handleKind) String() string {
	if int(k) < len(handleKindNames) && handleKindNames[k] != "" {
		return handleKindNames[k]
	}
	return fmt.Sprintf("handle(%d)", k)
}

// handleTable hands out native handles for simulated objects. A handle packs
// a slot index with the slot's generation, so a freed handle never aliases
// the slot's next occupant. Any use of a freed or foreign handle panics, the
// same way a dangling pointer would crash the real library.
type handleTable struct {
	entries  []slot
	freeList []uint32
	mu       sync.RWMutex
}

type slot struct {
	value any
	gen   uint32
	kind  handleKind
	valid bool
}

func newHandleTable() *handleTable {
	return &handleTable{
		entries:  make([]slot, 0, 64),
		freeList: make([]uint32, 0, 16),
	}
}

func packHandle(idx, gen uint32) native.Handle {
	return native.Handle(uint64(gen)<<32 | uint64(idx+1))
}

func unpackHandle(h native.Handle) (idx, gen uint32) {
	return uint32(uint64(h)&0xffffffff) - 1, uint32(uint64(h) >> 32)
}

func (t *handleTable) create(kind handleKind, value any) native.Handle {
	t.mu.Lock()
	defer t.mu.Unlock()

	if n := len(t.freeList); n > 0 {
		idx := t.freeList[n-1]
		t.freeList = t.freeList[:n-1]
		s := &t.entries[idx]
		s.value, s.kind, s.valid = value, kind, true
		return packHandle(idx, s.gen)
	}

	t.entries = append(t.entries, slot{value: value, kind: kind, gen: 1, valid: true})
	return packHandle(uint32(len(t.entries)-1), 1)
}

func (t *handleTable) lookup(kind handleKind, h native.Handle) (*slot, uint32) {
	if h.IsNull() {
		panic(fmt.Sprintf("sim: null %s handle", kind))
	}
	idx, gen := unpackHandle(h)
	if int(idx) >= len(t.entries) {
		panic(fmt.Sprintf("sim: unknown %s handle %#x", kind, uintptr(h)))
	}
	s := &t.entries[idx]
	if !s.valid || s.gen != gen {
		panic(fmt.Sprintf("sim: use of freed %s handle %#x", kind, uintptr(h)))
	}
	if s.kind != kind {
		panic(fmt.Sprintf("sim: %s handle %#x used as %s", s.kind, uintptr(h), kind))
	}
	return s, idx
}

func (t *handleTable) get(kind handleKind, h native.Handle) any {
	t.mu.RLock()
	defer t.mu.RUnlock()

	s, _ := t.lookup(kind, h)
	return s.value
}

// free invalidates h and returns its value. Freeing twice panics.
func (t *handleTable) free(kind handleKind, h native.Handle) any {
	t.mu.Lock()
	defer t.mu.Unlock()

	s, idx := t.lookup(kind, h)
	value := s.value
	s.value = nil
	s.valid = false
	s.gen++
	t.freeList = append(t.freeList, idx)
	return value
}

// live returns the number of allocated handles per kind.
func (t *handleTable) live() map[string]int {
	t.mu.RLock()
	defer t.mu.RUnlock()

	counts := make(map[string]int)
	for _, s := range t.entries {
		if s.valid {
			counts[s.kind.String()]++
		}
	}
	return counts
}

func (t *handleTable) each(kind handleKind, fn func(native.Handle, any) bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	for i, s := range t.entries {
		if s.valid && s.kind == kind {
			if !fn(packHandle(uint32(i), s.gen), s.value) {
				break
			}
		}
	}
}
