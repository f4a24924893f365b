// Package defs holds the error codes and fault-type constants shared by
// the translation map, region list, address space, and fault handler.
package defs

import "github.com/pkg/errors"

// Err_t is a kernel-style error code. The zero value means success.
type Err_t int

const (
	// EFAULT marks a bad access: an address outside every region, a
	// write to a non-writable region, or a READONLY_WRITE fault.
	EFAULT Err_t = iota + 1
	// ENOMEM marks resource exhaustion in the frame allocator.
	ENOMEM
)

func (e Err_t) String() string {
	switch e {
	case EFAULT:
		return "EFAULT"
	case ENOMEM:
		return "ENOMEM"
	default:
		return "Err_t(0)"
	}
}

// FaultType classifies the trap that reached the fault handler.
type FaultType int

const (
	// FaultRead is a load that missed the TLB.
	FaultRead FaultType = iota
	// FaultWrite is a store that missed the TLB.
	FaultWrite
	// FaultReadonlyWrite is a store the hardware itself flagged as
	// targeting a read-only TLB entry. No COW is supported, so this is
	// always a bad access.
	FaultReadonlyWrite
)

// Error pairs a kernel-style code with a wrapped cause for diagnostics.
// Callers that only care about the taxonomy compare against Code; callers
// that log compare against Error() / Unwrap().
type Error struct {
	Code  Err_t
	cause error
}

// NewError wraps cause (which may be nil) with the kernel-style code.
func NewError(code Err_t, cause error) *Error {
	return &Error{Code: code, cause: cause}
}

// Wrapf wraps a formatted message as the cause of a coded error.
func Wrapf(code Err_t, format string, args ...interface{}) *Error {
	return &Error{Code: code, cause: errors.Errorf(format, args...)}
}

func (e *Error) Error() string {
	if e.cause == nil {
		return e.Code.String()
	}
	return e.Code.String() + ": " + e.cause.Error()
}

func (e *Error) Unwrap() error { return e.cause }

// ErrFault is returned for bad-access conditions with no further cause.
var ErrFault = NewError(EFAULT, nil)

// ErrNoMem is returned for allocator exhaustion with no further cause.
var ErrNoMem = NewError(ENOMEM, nil)
