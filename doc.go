// Package rados provides resource-safe Go bindings for a RADOS storage
// cluster client.
//
// Every native handle is owned by a Go value and released exactly once,
// whether explicitly, by closing its owner, or by the garbage collector as a
// last resort. Released handles cannot be reached: every call on a closed
// value, or on a value whose owner is closed, fails with errors.ErrReleased.
//
// # Architecture Overview
//
//	rados/          Environment, connections, I/O contexts, objects, operations
//	├── native/     The native client API boundary
//	│   ├── sim/      In-process simulated cluster (tests, CLI, examples)
//	│   └── librados/ cgo binding to the real library (build tag librados)
//	├── resource/   Ownership graph with cascading, exactly-once release
//	├── completion/ Awaitable typed results of asynchronous calls
//	├── buffer/     Buffers lent to native calls and the grow-and-retry protocol
//	├── errors/     Structured error types with native errno mapping
//	├── config/     YAML and environment configuration
//	└── metrics/    Prometheus collector for resource lifecycle events
//
// # Ownership
//
// A Conn is the root of a tree. I/O contexts belong to their Conn;
// completions and iterators belong to their I/O context. Closing a node
// closes its descendants first, newest first. A completion whose operation
// is still in flight is cancelled before its token is freed.
//
//	r := rados.New(lib, rados.WithLogger(logger))
//	defer r.Close()
//
//	conn, err := r.NewConn(rados.WithUser("client.admin"))
//	if err != nil {
//	    return err
//	}
//	defer conn.Close()
//
//	if err := conn.Connect(); err != nil {
//	    return err
//	}
//	io, err := conn.OpenIOContext("data")
//	if err != nil {
//	    return err
//	}
//
//	obj := io.Object("greeting")
//	if err := obj.WriteFull([]byte("hello")); err != nil {
//	    return err
//	}
//
// # Asynchronous Calls
//
// Async methods return a *completion.Typed[T]. Wait blocks until the
// operation completes (or the context is done) and returns the parsed
// result; Result returns it without blocking and fails with
// errors.ErrIncomplete until then. The result is parsed once and cached.
//
//	c, err := obj.ReadAsync(5, 0)
//	if err != nil {
//	    return err
//	}
//	data, err := c.Wait(ctx)
//
// # Buffers
//
// Calls that fill a buffer of unknown size start with a guess and retry with
// a buffer 1.6 times larger while the native call reports it is too small.
// WithInitialBufferSize and WithMaxBufferSize tune the sequence.
//
// # Thread Safety
//
// A tree has one logical owner. Calls on distinct objects may run
// concurrently, but closing a value while another goroutine uses it or its
// descendants is a programming error.
package rados
