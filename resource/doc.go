// Package resource manages the lifetime of native handles.
//
// Every native object the binding allocates (cluster handle, I/O context,
// completion, operation, iterator, natively allocated buffer) is wrapped in a
// Resource that owns the handle and its release routine. Resources form a
// tree: a child registers with its parent when it is constructed.
//
// # Release Graph
//
//	cluster
//	  └── ioctx
//	        ├── completion
//	        ├── object iterator
//	        └── xattr / omap iterator
//
// Release walks the tree bottom-up. Children are released before their
// parent, each handle is freed exactly once, and repeated or reentrant calls
// are no-ops:
//
//	reg := resource.NewRegistry(logger)
//	conn := reg.New(nil, resource.KindCluster, h, shutdown)
//	io := reg.New(conn, resource.KindIOContext, ioh, destroy)
//
//	conn.Release() // destroys io, then shuts down conn
//	io.Handle()    // returns errors.ErrReleased
//
// A parent only holds weak references to its children. A child holds its
// parent strongly, so a released ancestor invalidates every descendant.
//
// # Garbage Collection
//
// Wrappers call Track to release their resource when they become
// unreachable. This is a safety net for leaked handles; callers are expected
// to release explicitly. Collected releases are flagged in events and logged
// at debug level.
//
// # Observers
//
// The Registry counts live resources per kind and forwards lifecycle events
// to observers:
//
//	reg.Subscribe(metrics.NewCollector())
//
// Release routines that fail do not stop the release. The resource is still
// marked released; the failure goes to the registry logger and observers as
// EventReleaseFailed.
package resource
