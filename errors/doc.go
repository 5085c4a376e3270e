// Package errors provides structured error types for the rados binding.
//
// Errors are categorized by Phase (which part of the binding detected them) and
// Kind (error category). Native failures carry an *Errno with the numeric code
// and its symbolic name, so callers can test for specific conditions instead of
// parsing messages:
//
//	if errors.IsErrno(err, unix.ENOENT) {
//		// object does not exist
//	}
//
// Every native return code goes through Check:
//
//	n, err := errors.Check(errors.PhaseObject, "rados_read", lib.Read(io, oid, buf, 0))
//
// Use the Builder for structured error construction:
//
//	err := errors.New(errors.PhaseBuffer, errors.KindBufferOverflow).
//		Op("write").
//		Detail("%d bytes into %d", n, c).
//		Build()
//
// Sentinels (ErrReleased, ErrIncomplete, ...) match any phase with errors.Is.
package errors
