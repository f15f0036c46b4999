package importer

import "fmt"

// Status is the closed set of exit codes the core returns to callers
// (spec §6 "Exit codes", §7 "Error taxonomy").
type Status int

// Status values.
const (
	StatusOK Status = iota
	StatusBadParam
	StatusURLError
	StatusIOError
	StatusNonCompliantBitstream
	StatusNotSupported
	StatusOutOfMem
)

// String returns the canonical status name.
func (s Status) String() string {
	switch s {
	case StatusOK:
		return "OK"
	case StatusBadParam:
		return "BadParam"
	case StatusURLError:
		return "UrlError"
	case StatusIOError:
		return "IoError"
	case StatusNonCompliantBitstream:
		return "NonCompliantBitstream"
	case StatusNotSupported:
		return "NotSupported"
	case StatusOutOfMem:
		return "OutOfMem"
	default:
		return "Unknown"
	}
}

// Error wraps an underlying error with a Status, the taxonomy the core
// uses to decide whether a failure is recoverable (parse errors resync;
// structural/IO errors are fatal to the session, spec §7).
type Error struct {
	Status Status
	Err    error
}

// NewError constructs an *Error.
func NewError(status Status, format string, args ...any) *Error {
	return &Error{Status: status, Err: fmt.Errorf(format, args...)}
}

// WrapError wraps an existing error with a Status.
func WrapError(status Status, err error) *Error {
	if err == nil {
		return nil
	}
	return &Error{Status: status, Err: err}
}

func (e *Error) Error() string {
	if e == nil || e.Err == nil {
		return e.Status.String()
	}
	return fmt.Sprintf("%s: %s", e.Status, e.Err.Error())
}

func (e *Error) Unwrap() error {
	return e.Err
}

// IsFatal reports whether the error is structural/IO (session-ending) as
// opposed to a recoverable parse error that resyncs and continues.
func (e *Error) IsFatal() bool {
	switch e.Status {
	case StatusNonCompliantBitstream, StatusIOError, StatusOutOfMem, StatusBadParam, StatusNotSupported:
		return true
	default:
		return false
	}
}
