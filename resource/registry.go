package resource

import (
	"sync"
	"sync/atomic"
	"weak"

	"go.uber.org/zap"
)

// Registry is the shared context of a resource tree: it counts live
// resources per kind, fans lifecycle events out to observers and carries the
// logger that release failures are reported to.
type Registry struct {
	logger    *zap.Logger
	roots     map[uint64]weak.Pointer[Resource]
	observers []Observer
	live      [kindCount]atomic.Int64
	nextID    atomic.Uint64
	rootsMu   sync.Mutex
	obsMu     sync.RWMutex
}

// NewRegistry creates a registry. A nil logger is replaced by a no-op one.
func NewRegistry(logger *zap.Logger) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registry{
		logger: logger,
		roots:  make(map[uint64]weak.Pointer[Resource]),
	}
}

// Logger returns the logger release failures are written to.
func (reg *Registry) Logger() *zap.Logger {
	return reg.logger
}

// Subscribe adds an observer for lifecycle events.
func (reg *Registry) Subscribe(o Observer) {
	reg.obsMu.Lock()
	defer reg.obsMu.Unlock()
	reg.observers = append(reg.observers, o)
}

// Unsubscribe removes an observer.
func (reg *Registry) Unsubscribe(o Observer) {
	reg.obsMu.Lock()
	defer reg.obsMu.Unlock()
	for i, obs := range reg.observers {
		if obs == o {
			reg.observers = append(reg.observers[:i], reg.observers[i+1:]...)
			return
		}
	}
}

// Live returns the number of unreleased resources of the given kind.
func (reg *Registry) Live(kind Kind) int {
	if kind >= kindCount {
		return 0
	}
	return int(reg.live[kind].Load())
}

// Len returns the number of unreleased resources of every kind.
func (reg *Registry) Len() int {
	n := int64(0)
	for i := range reg.live {
		n += reg.live[i].Load()
	}
	return int(n)
}

// ReleaseAll releases every root resource that is still reachable, and with
// it every descendant.
func (reg *Registry) ReleaseAll() {
	reg.rootsMu.Lock()
	roots := make([]*Resource, 0, len(reg.roots))
	for id, w := range reg.roots {
		if r := w.Value(); r != nil {
			roots = append(roots, r)
		} else {
			delete(reg.roots, id)
		}
	}
	reg.rootsMu.Unlock()

	for _, r := range roots {
		r.Release()
	}
}

func (reg *Registry) addRoot(r *Resource) {
	reg.rootsMu.Lock()
	reg.roots[r.id] = weak.Make(r)
	reg.rootsMu.Unlock()
}

func (reg *Registry) created(r *Resource) {
	reg.live[r.kind].Add(1)
	reg.notify(Event{
		Type:   EventCreated,
		ID:     r.id,
		Handle: r.handle,
		Kind:   r.kind,
	})
}

func (reg *Registry) released(r *Resource, err error, collected bool) {
	reg.live[r.kind].Add(-1)
	if r.parent == nil {
		reg.rootsMu.Lock()
		delete(reg.roots, r.id)
		reg.rootsMu.Unlock()
	}

	e := Event{
		Type:      EventReleased,
		ID:        r.id,
		Handle:    r.handle,
		Kind:      r.kind,
		Collected: collected,
	}

	if err != nil {
		e.Type = EventReleaseFailed
		e.Err = err
		reg.logger.Warn("native release failed",
			zap.Stringer("kind", r.kind),
			zap.Uint64("id", r.id),
			zap.Error(err))
	} else if collected {
		reg.logger.Debug("resource released by garbage collector",
			zap.Stringer("kind", r.kind),
			zap.Uint64("id", r.id))
	}

	reg.notify(e)
}

func (reg *Registry) notify(e Event) {
	reg.obsMu.RLock()
	defer reg.obsMu.RUnlock()
	for _, o := range reg.observers {
		o.OnResourceEvent(e)
	}
}
