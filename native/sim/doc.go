// Package sim is an in-process storage cluster implementing native.Library.
//
// It backs the binding's tests and the rados command when no cluster is
// available. Pools, objects, extended attributes, omap, snapshots, advisory
// locks, object classes and monitor commands behave like their cluster
// counterparts closely enough for client code. Asynchronous operations run
// on goroutines after a configurable latency and finish early when
// cancelled.
//
// The simulator is strict about handles: every handle it returns is tracked,
// and using a freed one, freeing one twice, releasing a completion whose
// operation is still in flight or destroying a parent with live children
// panics. Trace records the free and cancel calls in order, which lets tests
// assert release ordering.
//
// Object classes are Go functions (RegisterClass) or WebAssembly modules
// (RegisterWASM) run by wazero. The "hello" class is always present.
//
// State is in memory unless a Store is configured; BoltStore keeps pools and
// objects in a BoltDB file.
package sim
