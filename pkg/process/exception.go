package process

import (
	"errors"
	"fmt"

	"github.com/marekjm/viuavm-sub001/pkg/regval"
)

// Tag names one of the throwable VM exception kinds from spec §7. It is a
// kind, not a Go type: every throwable condition is the same *Exception
// type carrying one of these tags.
type Tag string

const (
	TagTypeError        Tag = "TypeError"
	TagBoundsError      Tag = "BoundsError"
	TagVoidAccessError  Tag = "VoidAccessError"
	TagDivisionByZero   Tag = "DivisionByZero"
	TagArithmeticOverflow Tag = "ArithmeticOverflow"
	TagMailboxEmpty     Tag = "MailboxEmpty"
)

// Exception is a throwable VM-level error (spec §7). It is returned as an
// ordinary error value, never raised via panic/recover. No catch handler is
// looked up: the exception ends Executor.Run, and Scheduler finishes the
// process with exit code 1.
type Exception struct {
	Tag     Tag
	Message string
}

func NewException(tag Tag, format string, args ...any) *Exception {
	return &Exception{Tag: tag, Message: fmt.Sprintf(format, args...)}
}

func (e *Exception) Error() string {
	return fmt.Sprintf("%s: %s", e.Tag, e.Message)
}

// AsException converts a lower-layer sentinel error (from package regval)
// into the matching *Exception tag. An error matching no known regval
// sentinel becomes a TypeError — callers should only reach for this once they know err
// came from a regval call, never for codec-layer (fatal, non-throwable)
// errors.
func AsException(err error) *Exception {
	switch {
	case errors.Is(err, regval.ErrTypeError):
		return NewException(TagTypeError, "%s", err)
	case errors.Is(err, regval.ErrBoundsError):
		return NewException(TagBoundsError, "%s", err)
	case errors.Is(err, regval.ErrDivisionByZero):
		return NewException(TagDivisionByZero, "%s", err)
	case errors.Is(err, regval.ErrArithmeticOverflow):
		return NewException(TagArithmeticOverflow, "%s", err)
	default:
		return NewException(TagTypeError, "%s", err)
	}
}
