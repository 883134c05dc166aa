package regval

import "errors"

// Sentinel errors returned by this package. Callers higher up the stack
// (package process) map these onto the VM exception taxonomy (spec
// ERROR HANDLING DESIGN) via errors.Is; this package has no notion of a
// catchable VM exception, only plain Go errors.
var (
	ErrTypeError         = errors.New("type error")
	ErrBoundsError       = errors.New("bounds error")
	ErrDivisionByZero    = errors.New("division by zero")
	ErrArithmeticOverflow = errors.New("arithmetic overflow")
	ErrUnsupportedAccess = errors.New("unsupported access: pointer dereference not implemented")
)
