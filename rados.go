package rados

import (
	"go.uber.org/zap"

	"github.com/wippyai/go-rados/buffer"
	"github.com/wippyai/go-rados/errors"
	"github.com/wippyai/go-rados/native"
	"github.com/wippyai/go-rados/resource"
)

// Initial buffer capacities for calls whose output size is unknown.
const (
	defaultConfigSize  = 256
	defaultNameSize    = 64
	defaultListSize    = 1024
	defaultXattrSize   = 256
	defaultLockersSize = 1024
	defaultSnapCount   = 16
)

// Rados is the environment every handle is created in: the native library,
// the registry tracking what is still open and the logger release failures
// go to. Separate environments do not share state.
type Rados struct {
	lib      native.Library
	logger   *zap.Logger
	registry *resource.Registry

	observers []resource.Observer

	// initialBuffer overrides the per-call initial capacities when >= 0.
	initialBuffer int
	maxBuffer     int
}

// Option configures an environment.
type Option func(*Rados)

// WithLogger sets the logger. The default discards everything.
func WithLogger(l *zap.Logger) Option {
	return func(r *Rados) {
		if l != nil {
			r.logger = l
		}
	}
}

// WithObserver subscribes o to resource lifecycle events.
func WithObserver(o resource.Observer) Option {
	return func(r *Rados) {
		r.observers = append(r.observers, o)
	}
}

// WithInitialBufferSize starts every buffer retry sequence at n bytes (or
// entries) instead of the per-call default.
func WithInitialBufferSize(n int) Option {
	return func(r *Rados) {
		r.initialBuffer = n
	}
}

// WithMaxBufferSize bounds buffer growth. Retry sequences that would exceed n
// fail with a buffer overflow error. Zero means unbounded.
func WithMaxBufferSize(n int) Option {
	return func(r *Rados) {
		r.maxBuffer = n
	}
}

// New creates an environment over lib.
func New(lib native.Library, opts ...Option) *Rados {
	r := &Rados{
		lib:           lib,
		logger:        zap.NewNop(),
		initialBuffer: -1,
	}

	for _, opt := range opts {
		opt(r)
	}

	r.registry = resource.NewRegistry(r.logger)
	for _, o := range r.observers {
		r.registry.Subscribe(o)
	}
	return r
}

// Registry returns the registry tracking the environment's resources.
func (r *Rados) Registry() *resource.Registry {
	return r.registry
}

// Logger returns the environment logger.
func (r *Rados) Logger() *zap.Logger {
	return r.logger
}

// Library returns the native library.
func (r *Rados) Library() native.Library {
	return r.lib
}

// NewBuffer allocates a host buffer for lending to native calls, for example
// as a reusable read buffer.
func (r *Rados) NewBuffer(n int) *buffer.Buffer {
	return buffer.New(n)
}

// Close releases every connection and compound operation still open, and
// everything they own.
func (r *Rados) Close() {
	r.registry.ReleaseAll()
}

func (r *Rados) initial(def int) int {
	if r.initialBuffer >= 0 {
		return r.initialBuffer
	}
	return def
}

func (r *Rados) retryOpts(phase errors.Phase, op string, extra ...buffer.Option) []buffer.Option {
	opts := []buffer.Option{buffer.Op(phase, op)}
	if r.maxBuffer > 0 {
		opts = append(opts, buffer.WithMaxCapacity(r.maxBuffer))
	}
	return append(opts, extra...)
}
