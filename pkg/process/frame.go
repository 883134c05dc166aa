package process

import (
	"github.com/marekjm/viuavm-sub001/pkg/codec"
	"github.com/marekjm/viuavm-sub001/pkg/regval"
)

// Frame is one call frame (spec §3 "Frame"). result_to is the register
// reference, in the *caller's* frame, that RETURN must write the callee's
// result into; its Set may be VOID, meaning discard.
type Frame struct {
	EntryIP    uint64
	ReturnIP   uint64
	Registers  []regval.Cell
	Parameters []regval.Cell
	ResultTo   codec.Ref
	SavedFP    uint64
	SavedSBRK  uint64
}

// NewFrame allocates a frame with the given local register count, ready to
// receive parameters from the stack's transient args buffer on CALL.
func NewFrame(entryIP uint64, registerCount int) *Frame {
	return &Frame{
		EntryIP:   entryIP,
		Registers: make([]regval.Cell, registerCount),
	}
}
