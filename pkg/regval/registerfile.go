package regval

import (
	"fmt"

	"github.com/marekjm/viuavm-sub001/pkg/codec"
)

// File groups together every register-set backing slice an instruction
// operand can name. A fresh File is built per active frame: Local and
// Parameter belong to that frame, Argument belongs to the enclosing stack's
// transient args buffer, Static/Global/Closure are borrowed from the
// process and the current closure, per spec §3 "Register set".
type File struct {
	Local     []Cell
	Parameter []Cell
	Argument  []Cell
	Static    []Cell
	Global    []Cell
	Closure   []Cell
}

func (f *File) slice(set codec.RegisterSet) ([]Cell, error) {
	switch set {
	case codec.LOCAL:
		return f.Local, nil
	case codec.PARAMETER:
		return f.Parameter, nil
	case codec.ARGUMENT:
		return f.Argument, nil
	case codec.STATIC:
		return f.Static, nil
	case codec.GLOBAL:
		return f.Global, nil
	case codec.CLOSURE_LOCAL:
		return f.Closure, nil
	default:
		return nil, fmt.Errorf("regval: register set %s has no backing storage: %w", set, ErrTypeError)
	}
}

// Fetch reads the cell addressed by ref. VOID always yields the empty cell
// (spec §4.2); it is the caller's responsibility to reject an empty read
// where the instruction being executed requires a value (VoidAccessError is
// a per-instruction concern, not a register-file one).
func (f *File) Fetch(ref codec.Ref) (Cell, error) {
	if ref.Set == codec.VOID {
		return Cell{}, nil
	}
	if !ref.Direct {
		return Cell{}, ErrUnsupportedAccess
	}
	regs, err := f.slice(ref.Set)
	if err != nil {
		return Cell{}, err
	}
	if int(ref.Index) >= len(regs) {
		return Cell{}, fmt.Errorf("regval: register %s out of range (have %d): %w", ref, len(regs), ErrBoundsError)
	}
	return regs[ref.Index], nil
}

// Save writes c into the cell addressed by ref. A write to VOID is
// silently discarded (spec §4.2).
func (f *File) Save(ref codec.Ref, c Cell) error {
	if ref.Set == codec.VOID {
		return nil
	}
	if !ref.Direct {
		return ErrUnsupportedAccess
	}
	regs, err := f.slice(ref.Set)
	if err != nil {
		return err
	}
	if int(ref.Index) >= len(regs) {
		return fmt.Errorf("regval: register %s out of range (have %d): %w", ref, len(regs), ErrBoundsError)
	}
	regs[ref.Index] = c
	return nil
}

// Reset clears the cell addressed by ref back to empty. Used by MOVE's
// erase-the-source step and by the static analyser's runtime counterpart.
func (f *File) Reset(ref codec.Ref) error {
	return f.Save(ref, Cell{})
}
