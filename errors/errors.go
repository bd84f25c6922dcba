// Package errors provides typed error handling for the zjos-go kernel
// core: the five error kinds the syscall surface can report, plus
// ErrInternal for conditions the core never expects a caller to
// recover from. All errors support errors.Is()/errors.As() for
// inspection.
package errors

import (
	"errors"
	"fmt"

	"zjos-go/abi"
)

// ErrorKind represents the category of a syscall error. Each kind
// maps to one of the negative E_* constants user code sees.
type ErrorKind int

const (
	// ErrInval: argument violates a static precondition (bad address,
	// misalignment, bad permission bits, bad status value, bad
	// syscall id, unmapped source page).
	ErrInval ErrorKind = iota
	// ErrBadEnv: target id does not resolve, or caller lacks authority.
	ErrBadEnv
	// ErrNoFreeEnv: environment table exhausted.
	ErrNoFreeEnv
	// ErrNoMem: the paging layer could not allocate a frame or
	// page-table page.
	ErrNoMem
	// ErrIPCNotRecv: target environment is not currently receiving.
	ErrIPCNotRecv
	// ErrInternal: a condition the core treats as a programming bug
	// rather than a reportable syscall failure (e.g. no idle
	// environment for a CPU).
	ErrInternal
)

// String returns the error kind's E_* name.
func (k ErrorKind) String() string {
	switch k {
	case ErrInval:
		return "E_INVAL"
	case ErrBadEnv:
		return "E_BAD_ENV"
	case ErrNoFreeEnv:
		return "E_NO_FREE_ENV"
	case ErrNoMem:
		return "E_NO_MEM"
	case ErrIPCNotRecv:
		return "E_IPC_NOT_RECV"
	case ErrInternal:
		return "E_INTERNAL"
	default:
		return "E_UNKNOWN"
	}
}

// Errno returns the negative signed-word value a syscall handler
// returns for this kind.
func (k ErrorKind) Errno() int32 {
	return -1 - int32(k)
}

// SyscallError represents an error that occurred while resolving or
// executing a syscall against one environment.
type SyscallError struct {
	// Op is the operation that failed (e.g. "page_map", "resolve").
	Op string
	// EnvID is the environment the operation targeted, if applicable.
	EnvID abi.EnvID
	// HasEnvID reports whether EnvID is meaningful (zero is itself a
	// valid, "self", id).
	HasEnvID bool
	// Err is the underlying error, if any.
	Err error
	// Kind is the error classification.
	Kind ErrorKind
	// Detail provides additional context about the error.
	Detail string
}

func (e *SyscallError) Error() string {
	if e == nil {
		return "<nil>"
	}
	var msg string
	if e.HasEnvID {
		msg = fmt.Sprintf("%s: ", e.EnvID)
	}
	if e.Op != "" {
		msg += fmt.Sprintf("%s: ", e.Op)
	}
	if e.Detail != "" {
		msg += e.Detail
	} else {
		msg += e.Kind.String()
	}
	if e.Err != nil {
		msg += fmt.Sprintf(": %v", e.Err)
	}
	return msg
}

func (e *SyscallError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// Is matches on Kind when target is also a *SyscallError, falling
// back to the underlying error otherwise.
func (e *SyscallError) Is(target error) bool {
	if e == nil {
		return target == nil
	}
	if t, ok := target.(*SyscallError); ok {
		return e.Kind == t.Kind
	}
	return false
}

// New creates a new SyscallError with the given kind.
func New(kind ErrorKind, op string, detail string) *SyscallError {
	return &SyscallError{Op: op, Kind: kind, Detail: detail}
}

// Wrap wraps an error with operation context.
func Wrap(err error, kind ErrorKind, op string) *SyscallError {
	return &SyscallError{Op: op, Err: err, Kind: kind}
}

// WrapWithEnv wraps an error with the target environment id attached.
func WrapWithEnv(err error, kind ErrorKind, op string, id abi.EnvID) *SyscallError {
	return &SyscallError{Op: op, EnvID: id, HasEnvID: true, Err: err, Kind: kind}
}

// WrapWithDetail wraps an error with additional human-readable detail.
func WrapWithDetail(err error, kind ErrorKind, op string, detail string) *SyscallError {
	return &SyscallError{Op: op, Err: err, Kind: kind, Detail: detail}
}

// IsKind reports whether err is a SyscallError of the given kind.
func IsKind(err error, kind ErrorKind) bool {
	var serr *SyscallError
	if errors.As(err, &serr) {
		return serr.Kind == kind
	}
	return false
}

// GetKind returns the error kind if err is a SyscallError.
func GetKind(err error) (ErrorKind, bool) {
	var serr *SyscallError
	if errors.As(err, &serr) {
		return serr.Kind, true
	}
	return 0, false
}

// Errno extracts the syscall return value for err: 0 if err is nil,
// otherwise the negative Errno() of its ErrorKind (ErrInternal's
// negative value if err isn't a recognized SyscallError).
func Errno(err error) int32 {
	if err == nil {
		return 0
	}
	if kind, ok := GetKind(err); ok {
		return kind.Errno()
	}
	return ErrInternal.Errno()
}

// Re-exported standard library functions for convenience.
var (
	Is     = errors.Is
	As     = errors.As
	Unwrap = errors.Unwrap
)
