// Package librados implements native.Library with cgo over the system
// librados shared library.
//
// The implementation is only compiled with the librados build tag, which
// needs the librados development headers:
//
//	go build -tags librados ./...
//
// Buffers and output fields lent to asynchronous calls and compound
// operations are pinned with runtime.Pinner until the owning completion or
// operation is released, so the native side may keep writing to them after
// the submitting call returns. Strings are copied into C memory for the
// duration of each call; librados copies them before returning.
package librados
