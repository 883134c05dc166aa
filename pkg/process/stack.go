package process

import (
	"fmt"

	"github.com/marekjm/viuavm-sub001/pkg/regval"
)

// Stack is an ordered sequence of frames, bottom to top = oldest to newest
// (spec §3 "Stack"), plus the transient args buffer FRAME fills and the
// subsequent CALL/PROCESS/ACTOR consumes, and the current instruction
// pointer.
type Stack struct {
	Frames []*Frame
	Args   []regval.Cell
	IP     uint64
}

func NewStack() *Stack {
	return &Stack{}
}

func (s *Stack) Top() (*Frame, error) {
	if len(s.Frames) == 0 {
		return nil, fmt.Errorf("process: stack is empty")
	}
	return s.Frames[len(s.Frames)-1], nil
}

func (s *Stack) Push(f *Frame) {
	s.Frames = append(s.Frames, f)
}

// Pop removes and returns the top frame. The caller is responsible for
// checking the stack is non-empty first (spec §3 invariant: "the call
// stack is non-empty while execution is in progress").
func (s *Stack) Pop() *Frame {
	f := s.Frames[len(s.Frames)-1]
	s.Frames = s.Frames[:len(s.Frames)-1]
	return f
}

func (s *Stack) Empty() bool { return len(s.Frames) == 0 }

// RegisterFile builds the regval.File view of the top frame: Local and
// Parameter from the frame, Argument from the stack's transient buffer,
// Static/Global/Closure borrowed from the owning process.
func (s *Stack) RegisterFile(p *Process) (*regval.File, error) {
	top, err := s.Top()
	if err != nil {
		return nil, err
	}
	var closure []regval.Cell
	if p.ActiveClosure != nil {
		closure = p.ActiveClosure.Registers
	}
	return &regval.File{
		Local:     top.Registers,
		Parameter: top.Parameters,
		Argument:  s.Args,
		Static:    p.Static,
		Global:    p.Global,
		Closure:   closure,
	}, nil
}
