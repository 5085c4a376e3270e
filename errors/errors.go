package errors

import (
	stderrors "errors"
	"fmt"
	"strings"
	"syscall"

	"golang.org/x/sys/unix"
)

// MaxErrno is the largest errno magnitude the native library reports. Negative
// return values in [-MaxErrno, -1] are failures; anything below that window is a
// regular result for calls returning large signed values.
const MaxErrno = 4095

// Phase indicates which part of the binding detected the error
type Phase string

const (
	PhaseCluster    Phase = "cluster"    // connection handle
	PhasePool       Phase = "pool"       // pool administration
	PhaseIOContext  Phase = "ioctx"      // I/O context
	PhaseObject     Phase = "object"     // single object calls
	PhaseCompletion Phase = "completion" // async completions
	PhaseOperation  Phase = "operation"  // compound read/write operations
	PhaseIterator   Phase = "iterator"   // object/xattr/omap listing
	PhaseBuffer     Phase = "buffer"     // buffers lent to native calls
	PhaseRelease    Phase = "release"    // native release routines
	PhaseConfig     Phase = "config"     // configuration loading
	PhaseCommand    Phase = "command"    // monitor commands
)

// Kind categorizes the error
type Kind string

const (
	KindErrno           Kind = "errno"
	KindReleased        Kind = "released"
	KindIncomplete      Kind = "incomplete"
	KindBufferOverflow  Kind = "buffer_overflow"
	KindMalformedOutput Kind = "malformed_output"
	KindInvalidInput    Kind = "invalid_input"
	KindNotConnected    Kind = "not_connected"
)

// Sentinels for errors.Is. A sentinel without a Phase matches every phase.
var (
	ErrReleased        = &Error{Kind: KindReleased}
	ErrIncomplete      = &Error{Kind: KindIncomplete}
	ErrBufferOverflow  = &Error{Kind: KindBufferOverflow}
	ErrMalformedOutput = &Error{Kind: KindMalformedOutput}
	ErrInvalidInput    = &Error{Kind: KindInvalidInput}
	ErrNotConnected    = &Error{Kind: KindNotConnected}
)

// Error is the structured error type used throughout the binding
type Error struct {
	Value  any
	Cause  error
	Phase  Phase
	Kind   Kind
	Op     string
	Detail string
}

// Error implements the error interface
func (e *Error) Error() string {
	var b strings.Builder

	if e.Phase != "" {
		b.WriteByte('[')
		b.WriteString(string(e.Phase))
		b.WriteString("] ")
	}
	b.WriteString(string(e.Kind))

	if e.Op != "" {
		b.WriteString(" in ")
		b.WriteString(e.Op)
	}

	if e.Detail != "" {
		b.WriteString(": ")
		b.WriteString(e.Detail)
	}

	if e.Cause != nil {
		b.WriteString(" (caused by: ")
		b.WriteString(e.Cause.Error())
		b.WriteByte(')')
	}

	return b.String()
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target matches this error. An empty Phase on the target
// matches any phase.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if t.Kind != e.Kind {
		return false
	}
	return t.Phase == "" || t.Phase == e.Phase
}

// Errno is a native failure code together with its symbolic name.
// Code keeps the sign the native library returned (always negative).
type Errno struct {
	Name string
	Code int64
}

// FromCode converts a negative native return value into an Errno.
func FromCode(code int64) *Errno {
	return &Errno{Code: code, Name: ErrnoName(code)}
}

// Errno returns the positive system errno value.
func (e *Errno) Errno() syscall.Errno {
	return syscall.Errno(-e.Code)
}

func (e *Errno) Error() string {
	return fmt.Sprintf("%s (%d): %s", e.Name, e.Code, e.Errno().Error())
}

// Is lets errors.Is(err, unix.ENOENT) match a wrapped native failure.
func (e *Errno) Is(target error) bool {
	switch t := target.(type) {
	case syscall.Errno:
		return int64(t) == -e.Code
	case *Errno:
		return t.Code == e.Code
	}
	return false
}

// ErrnoName resolves the symbolic name of a native return code. Both signs are
// accepted; codes outside the errno window get a numeric placeholder.
func ErrnoName(code int64) string {
	if code < 0 {
		code = -code
	}
	if code == 0 || code > MaxErrno {
		return fmt.Sprintf("ERRNO_%d", code)
	}
	if name := unix.ErrnoName(syscall.Errno(code)); name != "" {
		return name
	}
	return fmt.Sprintf("ERRNO_%d", code)
}

// IsErrnoCode reports whether code lies inside the errno window.
func IsErrnoCode(code int64) bool {
	return code < 0 && code >= -MaxErrno
}

// Check is the single place native return codes are turned into errors.
// Values inside the errno window fail; everything else is returned unchanged.
func Check[T ~int | ~int32 | ~int64](phase Phase, op string, code T) (T, error) {
	if IsErrnoCode(int64(code)) {
		return code, Native(phase, op, int64(code))
	}
	return code, nil
}

// CheckLength is Check for results that are byte counts. Every negative
// value fails: codes inside the errno window as native errors and anything
// below it as malformed output, since no length can be negative.
func CheckLength(phase Phase, op string, code int) (int, error) {
	if code >= 0 {
		return code, nil
	}
	if IsErrnoCode(int64(code)) {
		return code, Native(phase, op, int64(code))
	}
	return code, New(phase, KindMalformedOutput).
		Op(op).
		Value(code).
		Detail("negative length %d", code).
		Build()
}

// Native wraps a native failure code.
func Native(phase Phase, op string, code int64) *Error {
	return &Error{
		Phase: phase,
		Kind:  KindErrno,
		Op:    op,
		Cause: FromCode(code),
		Value: code,
	}
}

// IsErrno reports whether err carries the given native errno.
func IsErrno(err error, errno ...syscall.Errno) bool {
	for _, n := range errno {
		if stderrors.Is(err, n) {
			return true
		}
	}
	return false
}

// AsErrno extracts the native failure from err.
func AsErrno(err error) (*Errno, bool) {
	var e *Errno
	if stderrors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// Builder provides structured error construction
type Builder struct {
	err Error
}

// New creates a new error builder
func New(phase Phase, kind Kind) *Builder {
	return &Builder{
		err: Error{
			Phase: phase,
			Kind:  kind,
		},
	}
}

// Op sets the native call or method that failed
func (b *Builder) Op(op string) *Builder {
	b.err.Op = op
	return b
}

// Value sets the offending value
func (b *Builder) Value(v any) *Builder {
	b.err.Value = v
	return b
}

// Cause sets the underlying error
func (b *Builder) Cause(err error) *Builder {
	b.err.Cause = err
	return b
}

// Detail sets the human-readable detail message
func (b *Builder) Detail(msg string, args ...any) *Builder {
	if len(args) > 0 {
		b.err.Detail = fmt.Sprintf(msg, args...)
	} else {
		b.err.Detail = msg
	}
	return b
}

// Build returns the constructed error
func (b *Builder) Build() *Error {
	return &b.err
}

// Convenience constructors for common error patterns

// Released creates an error for an operation attempted on a released resource
func Released(phase Phase, what string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindReleased,
		Detail: fmt.Sprintf("%s has been released and is no longer valid", what),
	}
}

// Incomplete creates an error for reading a result before the operation completed
func Incomplete(op string) *Error {
	return &Error{
		Phase:  PhaseCompletion,
		Kind:   KindIncomplete,
		Op:     op,
		Detail: "operation has not completed",
	}
}

// BufferOverflow creates an error for a write larger than a fixed buffer
func BufferOverflow(size, capacity int) *Error {
	return &Error{
		Phase:  PhaseBuffer,
		Kind:   KindBufferOverflow,
		Detail: fmt.Sprintf("%d bytes do not fit into buffer of %d bytes", size, capacity),
		Value:  size,
	}
}

// MalformedOutput creates an error for native output that cannot be decoded
func MalformedOutput(phase Phase, op, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindMalformedOutput,
		Op:     op,
		Detail: detail,
	}
}

// InvalidInput creates an invalid input error
func InvalidInput(phase Phase, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindInvalidInput,
		Detail: detail,
	}
}

// NotConnected creates an error for calls that need an established connection
func NotConnected(op string) *Error {
	return &Error{
		Phase:  PhaseCluster,
		Kind:   KindNotConnected,
		Op:     op,
		Detail: "cluster handle is not connected",
	}
}

// Wrap wraps an existing error with additional context
func Wrap(phase Phase, kind Kind, cause error, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   kind,
		Detail: detail,
		Cause:  cause,
	}
}
