package resource

import (
	"runtime"
	"sync"
	"sync/atomic"
	"weak"

	"github.com/wippyai/go-rados/errors"
	"github.com/wippyai/go-rados/native"
)

const (
	stateAlive uint32 = iota
	stateReleasing
	stateReleased
)

// Resource owns exactly one native handle and the release routine for it.
//
// Children are tracked through weak pointers so a parent never keeps a child
// alive. A child keeps a strong reference to its logical parent, which is what
// makes validity transitive.
type Resource struct {
	registry *Registry
	parent   *Resource
	release  ReleaseFunc
	children []weak.Pointer[Resource]
	handle   native.Handle
	id       uint64
	state    atomic.Uint32
	mu       sync.Mutex
	kind     Kind
	phase    errors.Phase
}

// New wraps a freshly allocated native handle. A non-nil parent records the
// new resource as its child. If the parent is already released or releasing
// the new resource is released immediately, since it cannot outlive its owner.
func (reg *Registry) New(parent *Resource, kind Kind, h native.Handle, release ReleaseFunc) *Resource {
	r := &Resource{
		registry: reg,
		parent:   parent,
		release:  release,
		handle:   h,
		kind:     kind,
		phase:    phaseOf(kind),
		id:       reg.nextID.Add(1),
	}
	reg.created(r)

	if parent != nil {
		parent.RegisterChild(r)
	} else {
		reg.addRoot(r)
	}
	return r
}

// Track arranges for r to be released when owner becomes unreachable. This is
// a safety net; explicit Release is the supported path. r must not reference
// owner.
func Track[T any](owner *T, r *Resource) {
	runtime.AddCleanup(owner, func(r *Resource) { r.collect() }, r)
}

// RegisterChild records child as owned by r. Only a weak reference is kept.
// Entries whose child has been collected are pruned here.
func (r *Resource) RegisterChild(child *Resource) {
	r.mu.Lock()
	if r.state.Load() != stateAlive {
		r.mu.Unlock()
		child.Release()
		return
	}

	live := r.children[:0]
	for _, w := range r.children {
		if w.Value() != nil {
			live = append(live, w)
		}
	}
	clear(r.children[len(live):])
	r.children = append(live, weak.Make(child))
	r.mu.Unlock()
}

// Release releases every live child and then the native handle. It is
// idempotent and a no-op while a release of r is already in progress. The
// resource is marked released even when the native routine fails; the failure
// is reported to the registry logger and observers.
func (r *Resource) Release() {
	r.doRelease(false)
}

func (r *Resource) collect() {
	r.doRelease(true)
}

func (r *Resource) doRelease(collected bool) {
	if !r.state.CompareAndSwap(stateAlive, stateReleasing) {
		return
	}

	r.mu.Lock()
	children := r.children
	r.children = nil
	r.mu.Unlock()

	// Newest first, so dependents created later go before what they used.
	for i := len(children) - 1; i >= 0; i-- {
		if c := children[i].Value(); c != nil {
			c.doRelease(collected)
		}
	}

	var err error
	if r.release != nil {
		err = r.release(r.handle)
	}

	r.state.Store(stateReleased)
	r.registry.released(r, err, collected)
}

// Released reports whether r itself has been released.
func (r *Resource) Released() bool {
	return r.state.Load() == stateReleased
}

// Releasing reports whether a release of r is in progress.
func (r *Resource) Releasing() bool {
	return r.state.Load() == stateReleasing
}

// Valid reports whether neither r nor any logical ancestor has been released.
// A resource whose release is in progress is still valid; its children use
// it during their own release.
func (r *Resource) Valid() bool {
	for p := r; p != nil; p = p.parent {
		if p.state.Load() == stateReleased {
			return false
		}
	}
	return true
}

// Handle returns the native handle, or a released error if r or an ancestor
// is no longer valid. Every public operation goes through here.
func (r *Resource) Handle() (native.Handle, error) {
	if !r.Valid() {
		return 0, errors.Released(r.phase, r.kind.String())
	}
	return r.handle, nil
}

// HandleUnchecked returns the native handle while r itself is not released,
// without looking at ancestors. Release routines use it.
func (r *Resource) HandleUnchecked() (native.Handle, error) {
	if r.Released() {
		return 0, errors.Released(r.phase, r.kind.String())
	}
	return r.handle, nil
}

// Parent returns the logical parent, or nil for a root.
func (r *Resource) Parent() *Resource { return r.parent }

// Kind returns what the handle refers to.
func (r *Resource) Kind() Kind { return r.kind }

// ID returns a registry unique identifier.
func (r *Resource) ID() uint64 { return r.id }

// Registry returns the registry r was created in.
func (r *Resource) Registry() *Registry { return r.registry }

// Children returns the currently live children.
func (r *Resource) Children() []*Resource {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]*Resource, 0, len(r.children))
	for _, w := range r.children {
		if c := w.Value(); c != nil {
			out = append(out, c)
		}
	}
	return out
}

func phaseOf(k Kind) errors.Phase {
	switch k {
	case KindCluster:
		return errors.PhaseCluster
	case KindIOContext:
		return errors.PhaseIOContext
	case KindCompletion:
		return errors.PhaseCompletion
	case KindWriteOp, KindReadOp:
		return errors.PhaseOperation
	case KindObjectIterator, KindXattrIterator, KindOmapIterator, KindObjectCursor:
		return errors.PhaseIterator
	case KindBuffer:
		return errors.PhaseBuffer
	}
	return errors.PhaseRelease
}
