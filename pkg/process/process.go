package process

import (
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/marekjm/viuavm-sub001/pkg/regval"
)

// Closure is a captured environment: a function body plus the register
// values it closed over via CAPTURE/CAPTURECOPY/CAPTUREMOVE (spec §3, GLOSSARY
// "Closure"). EntryOffset addresses the closure's body the same way a
// FunctionEntry does.
type Closure struct {
	EntryOffset uint64
	Registers   []regval.Cell
}

// Process is one schedulable unit of execution: its own call stack(s),
// register sets, byte-addressable heap, pointer table, atom table and
// mailbox (spec §3 "Process"). spec.md's "stacks" field is plural because a
// TRY/CATCH handler runs on a fresh stack pushed onto the process while the
// faulting stack is parked beneath it (DESIGN.md "Process.Stacks"); the top
// of Stacks is always the one the executor is currently running.
type Process struct {
	PID    [16]byte
	Module *Module

	Stacks []*Stack

	Memory []byte

	Static  []regval.Cell
	Global  []regval.Cell

	ActiveClosure *Closure

	Atoms    *AtomTable
	Pointers *PointerTable
	Mailbox  *Mailbox
	Joins    *JoinRegistry
	IO       IOAdapter

	Limits Limits
	Logger *zap.SugaredLogger

	// FramePointer and StackBreak are scratch-memory bookkeeping fields
	// (spec §4.5): FramePointer is the heap offset the current frame's
	// locally-allocated memory starts at, StackBreak is the first free
	// offset above it. CALL saves both into the new frame; RETURN restores
	// them from it and prunes pointer metadata past the restored break.
	FramePointer uint64
	StackBreak   uint64

	Exited   bool
	ExitCode int

	// Spawned records every child created by this process's own
	// PROCESS/ACTOR instructions, for introspection and for drivers with no
	// Launch callback.
	Spawned []*Process

	// Launch, when set by a driver (Scheduler), starts a newly spawned
	// child running immediately rather than waiting for this process's
	// current bundle to finish. Without it, a JOIN issued in the same
	// bundle as the PROCESS that created its target would deadlock: the
	// bundle that blocks on JOIN never returns control to a driver that
	// only picks up children between bundles.
	Launch func(*Process)
}

// NewProcess allocates a process ready to begin executing m's entry point.
// The caller still must push an initial Stack/Frame (see Spawn) before
// handing it to an executor.
func NewProcess(m *Module, globalCount int, opts ...Option) *Process {
	limits := NewLimits(opts...)
	return &Process{
		PID:      mustPID(),
		Module:   m,
		Memory:   make([]byte, limits.StackPages*limits.PageSize),
		Global:   make([]regval.Cell, globalCount),
		Atoms:    NewAtomTable(),
		Pointers: NewPointerTable(),
		Mailbox:  NewMailbox(64),
		Joins:    NewJoinRegistry(),
		IO:       NewEchoIOAdapter(),
		Limits:   limits,
		Logger:   zap.NewNop().Sugar(),
	}
}

func mustPID() [16]byte {
	id := uuid.New()
	var pid [16]byte
	copy(pid[:], id[:])
	return pid
}

// WithLogger attaches a structured logger, replacing the no-op default.
func (p *Process) WithLogger(l *zap.SugaredLogger) *Process {
	p.Logger = l
	return p
}

// Spawn pushes the process's first stack and frame, entering function fn
// with registerCount local registers and no captured parameters (the
// top-level case; a process spawned by PROCESS/ACTOR then receives its
// parameters from the parent stack's Args buffer, see executor.go).
func (p *Process) Spawn(fn FunctionEntry, registerCount int) {
	s := NewStack()
	s.IP = fn.EntryOffset
	s.Push(NewFrame(fn.EntryOffset, registerCount))
	p.Joins.Register(p.PID)
	p.Stacks = append(p.Stacks, s)
}

// CurrentStack returns the stack the executor should be running: the
// topmost one, i.e. the innermost active TRY handler if any.
func (p *Process) CurrentStack() (*Stack, error) {
	if len(p.Stacks) == 0 {
		return nil, NewException(TagBoundsError, "process %x has no active stack", p.PID)
	}
	return p.Stacks[len(p.Stacks)-1], nil
}

// PushHandlerStack parks the current stack and starts a fresh one for a
// TRY/CATCH handler to run on (spec §4.6 rule interacting with TRY/LEAVE;
// SPEC_FULL §5.3).
func (p *Process) PushHandlerStack(entry uint64, registerCount int) {
	s := NewStack()
	s.IP = entry
	s.Push(NewFrame(entry, registerCount))
	p.Stacks = append(p.Stacks, s)
}

// PopHandlerStack discards the current (handler) stack and resumes the one
// beneath it, called on LEAVE.
func (p *Process) PopHandlerStack() {
	if len(p.Stacks) > 1 {
		p.Stacks = p.Stacks[:len(p.Stacks)-1]
	}
}

// RegisterFile builds the live view of every register set the current
// frame can address.
func (p *Process) RegisterFile() (*regval.File, error) {
	s, err := p.CurrentStack()
	if err != nil {
		return nil, err
	}
	return s.RegisterFile(p)
}

// Finish marks the process as exited, unblocking any JOIN waiters.
func (p *Process) Finish(code int) {
	p.Exited = true
	p.ExitCode = code
	p.Joins.MarkDone(p.PID)
}
