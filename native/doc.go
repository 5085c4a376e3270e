// Package native defines the boundary between the binding and the storage
// cluster client library.
//
// Library mirrors the C API one call at a time. Implementations are the cgo
// backend in native/librados (build tag librados) and the in-process cluster in
// native/sim. Nothing above this package knows which one is in use.
//
// Conventions shared by every implementation:
//
//	sync calls        return an int status; [-MaxErrno, -1] is a failure
//	allocations       return (Handle, status); Handle is zero on failure
//	async calls       take a completion token and report submission status only
//	output fields     are pointers owned by the caller and written when the
//	                  operation finishes (sync return, completion or op execute)
//	buffers           are lent for the duration of the call, or until the
//	                  completion signals for async calls and operations
//
// A Handle is opaque. Using it after its free call is undefined; the resource
// package makes that unreachable from the public API.
package native
