package sim

import (
	"context"
	"crypto/rand"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sys/unix"

	"github.com/wippyai/go-rados/native"
)

var _ native.Library = (*Sim)(nil)

// Call is one recorded free or cancel call.
type Call struct {
	Name   string
	Handle native.Handle
}

// Option configures a Sim.
type Option func(*Sim)

// WithLogger sets the logger. Defaults to Logger().
func WithLogger(l *zap.Logger) Option {
	return func(s *Sim) { s.logger = l }
}

// WithLatency delays every asynchronous operation by d before it runs.
func WithLatency(d time.Duration) Option {
	return func(s *Sim) { s.latency.Store(int64(d)) }
}

// WithSafeDelay delays the safe milestone of asynchronous operations by d
// after they complete.
func WithSafeDelay(d time.Duration) Option {
	return func(s *Sim) { s.safeDelay.Store(int64(d)) }
}

// WithStore persists pools and objects. The store is loaded by New and
// closed by Close.
func WithStore(st Store) Option {
	return func(s *Sim) { s.store = st }
}

// WithFSID fixes the cluster fsid. A random one is generated otherwise.
func WithFSID(fsid string) Option {
	return func(s *Sim) { s.fsid = fsid }
}

// WithCapacity sets the raw cluster capacity reported by cluster stats.
func WithCapacity(bytes uint64) Option {
	return func(s *Sim) { s.capacity = bytes }
}

// Sim is an in-process cluster that implements native.Library. It keeps
// pools, objects, snapshots, locks and object classes in memory, runs
// asynchronous operations on goroutines and tracks every native handle it
// hands out. Misuse of a handle panics.
type Sim struct {
	handles *handleTable
	store   Store
	logger  *zap.Logger
	classes *classes

	pools      map[string]*pool
	poolsByID  map[int64]*pool
	fsid       string
	capacity   uint64
	nextPoolID int64
	nextSnapID uint64

	latency   atomic.Int64
	safeDelay atomic.Int64
	instances atomic.Uint64

	jobs      sync.WaitGroup
	done      chan struct{}
	closeOnce sync.Once

	trace   []Call
	traceMu sync.Mutex
	mu      sync.Mutex
}

// New creates an empty cluster, or one loaded from the configured store.
func New(opts ...Option) (*Sim, error) {
	s := &Sim{
		handles:    newHandleTable(),
		pools:      make(map[string]*pool),
		poolsByID:  make(map[int64]*pool),
		capacity:   1 << 40,
		nextPoolID: 1,
		done:       make(chan struct{}),
	}
	s.instances.Store(4100)

	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = Logger()
	}
	if s.fsid == "" {
		s.fsid = newUUID()
	}
	s.classes = newClasses(s.logger)
	registerHello(s.classes)

	if s.store != nil {
		if err := s.load(); err != nil {
			return nil, fmt.Errorf("load store: %w", err)
		}
	}

	s.logger.Debug("simulated cluster created",
		zap.String("fsid", s.fsid),
		zap.Int("pools", len(s.pools)))
	return s, nil
}

// Close stops pending asynchronous operations, which finish with
// -ESHUTDOWN, and closes the class runtime and the store.
func (s *Sim) Close() error {
	var err error
	s.closeOnce.Do(func() {
		close(s.done)
		s.jobs.Wait()
		if cerr := s.classes.close(context.Background()); cerr != nil {
			err = cerr
		}
		if s.store != nil {
			if cerr := s.store.Close(); cerr != nil && err == nil {
				err = cerr
			}
		}
	})
	return err
}

// SetLatency changes the delay of asynchronous operations submitted from now on.
func (s *Sim) SetLatency(d time.Duration) {
	s.latency.Store(int64(d))
}

// FSID returns the cluster fsid.
func (s *Sim) FSID() string {
	return s.fsid
}

// Trace returns the free and cancel calls made so far, in order.
func (s *Sim) Trace() []Call {
	s.traceMu.Lock()
	defer s.traceMu.Unlock()
	return append([]Call(nil), s.trace...)
}

// ResetTrace clears the call trace.
func (s *Sim) ResetTrace() {
	s.traceMu.Lock()
	s.trace = nil
	s.traceMu.Unlock()
}

// Live returns the number of allocated native handles per kind.
func (s *Sim) Live() map[string]int {
	return s.handles.live()
}

func (s *Sim) record(name string, h native.Handle) {
	s.traceMu.Lock()
	s.trace = append(s.trace, Call{Name: name, Handle: h})
	s.traceMu.Unlock()
}

func (s *Sim) now() time.Time {
	return time.Now()
}

func errno(e unix.Errno) int {
	return -int(e)
}

func newUUID() string {
	var b [16]byte
	_, _ = rand.Read(b[:])
	b[6] = b[6]&0x0f | 0x40
	b[8] = b[8]&0x3f | 0x80
	return fmt.Sprintf("%x-%x-%x-%x-%x", b[0:4], b[4:6], b[6:8], b[8:10], b[10:])
}

// putCString copies v and a terminating NUL into buf. It reports false when
// buf is too small.
func putCString(buf []byte, v string) bool {
	if len(v)+1 > len(buf) {
		return false
	}
	copy(buf, v)
	buf[len(v)] = 0
	return true
}
