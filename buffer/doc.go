// Package buffer implements the host side buffers lent to native calls and
// the retry protocol for calls that cannot report their output size up front.
//
// A native call that receives a too small buffer fails with -ERANGE (or
// -ENAMETOOLONG for configuration values). Retry grows the capacity by
// GrowthFactor and calls again with a fresh buffer until the call succeeds or
// fails for another reason:
//
//	buf, n, err := buffer.Retry(64, func(b *buffer.Buffer) int {
//		return lib.GetXattr(io, oid, name, b.Bytes())
//	}, buffer.Op(errors.PhaseObject, "rados_getxattr"))
//	value := buf.Read(n)
//
// The result of the successful call is the used length. Decode with it, never
// with the capacity, so uninitialized tail bytes are not read as data.
package buffer
