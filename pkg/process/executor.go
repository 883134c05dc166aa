package process

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/marekjm/viuavm-sub001/pkg/codec"
	"github.com/marekjm/viuavm-sub001/pkg/regval"
)

// StepResult tells the scheduler what happened after running one bundle of
// instructions (spec §4.4 "greedy bundle"): Halted means the process ran
// HALT or fell off the end of its stack, Preempted means the bundle ended
// because the instruction budget was exhausted, not because the process is
// done.
type StepResult struct {
	Halted    bool
	Preempted bool
}

// Executor drives a single process's dispatch loop (spec §4.3). It is
// grounded on the teacher's vm/exec.go switch-per-opcode loop, generalised
// from a flat register array to the multi-set regval.File and from panics
// to explicit *Exception returns.
type Executor struct {
	Process *Process
}

func NewExecutor(p *Process) *Executor { return &Executor{Process: p} }

// Run executes instruction bundles until the process halts, throws an
// exception that escapes every handler, or a context is cancelled. It
// returns the final StepResult.
func (e *Executor) Run(ctx context.Context) (StepResult, error) {
	for {
		res, err := e.RunBundle(ctx)
		if err != nil || res.Halted {
			return res, err
		}
		select {
		case <-ctx.Done():
			return StepResult{Preempted: true}, ctx.Err()
		default:
		}
	}
}

// RunBundle executes one greedy bundle: instructions run back to back while
// each carries the greedy flag, and execution stops (for preemption) at the
// first non-greedy instruction once the process has run at least
// PreemptionThreshold instructions this bundle (spec §4.4).
func (e *Executor) RunBundle(ctx context.Context) (StepResult, error) {
	p := e.Process
	ran := 0
	for {
		if p.Exited {
			return StepResult{Halted: true}, nil
		}
		stack, err := p.CurrentStack()
		if err != nil {
			return StepResult{}, err
		}
		if int(stack.IP) >= len(p.Module.Text) {
			p.Finish(0)
			return StepResult{Halted: true}, nil
		}
		word := p.Module.Text[stack.IP]
		halted, err := e.step(ctx, word)
		ran++
		if err != nil {
			return StepResult{}, err
		}
		if halted {
			return StepResult{Halted: true}, nil
		}
		if !word.Greedy() && ran >= p.Limits.PreemptionThreshold {
			return StepResult{Preempted: true}, nil
		}
	}
}

// step decodes and executes exactly one instruction, advancing IP unless the
// instruction itself redirected it (a jump, CALL, RETURN, or a caught
// exception). It reports halted=true only for HALT.
func (e *Executor) step(ctx context.Context, word codec.Word) (halted bool, err error) {
	p := e.Process
	stack, err := p.CurrentStack()
	if err != nil {
		return false, err
	}
	op, ops, err := codec.Decode(word)
	if err != nil {
		return false, err
	}

	advance := true
	defer func() {
		if err == nil && advance {
			stack.IP++
		}
	}()

	switch op {
	case NOP:
		return false, nil
	case HALT:
		p.Finish(0)
		return true, nil
	case EBREAK:
		p.Logger.Debugw("ebreak", "pid", fmt.Sprintf("%x", p.PID), "ip", stack.IP)
		return false, nil

	case TRY:
		return false, e.execTry(stack)
	case LEAVE:
		p.PopHandlerStack()
		return false, nil

	case RETURN:
		advance = false
		return false, e.execReturn(ops.(codec.SOperands))
	case DELETE:
		return false, e.unary(ops, func(f *regval.File, a codec.Ref) error { return f.Reset(a) })
	case FRAME:
		return false, e.execFrame(ops.(codec.SOperands))
	case DRAW:
		return false, e.execDraw(ctx, ops.(codec.SOperands))
	case SELF:
		return false, e.execSelf(ops.(codec.SOperands))
	case THROW:
		return false, e.execThrow(ops.(codec.SOperands))
	case ALLOCATE_REGISTERS:
		return false, e.execAllocateRegisters(ops.(codec.SOperands))
	case IZERO:
		return false, e.unaryStore(ops, func(regval.Cell) (regval.Cell, error) { return regval.IntCell(0), nil })

	case COPY:
		return false, e.binaryStore(ops, func(f *regval.File, b codec.Ref) (regval.Cell, error) { return f.Fetch(b) })
	case MOVE:
		return false, e.execMove(ops.(codec.DOperands))
	case SWAP:
		return false, e.execSwap(ops.(codec.DOperands))
	case NOT:
		return false, e.binary1(ops, func(v regval.Cell) (regval.Cell, error) {
			b, _ := v.AsInt64()
			return regval.UintCell(boolToUint(b == 0)), nil
		})
	case ISNULL:
		return false, e.binary1(ops, func(v regval.Cell) (regval.Cell, error) {
			return regval.UintCell(boolToUint(v.IsEmpty())), nil
		})
	case VPUSH:
		return false, e.execMutate2(ops.(codec.DOperands), func(vec, val regval.Cell) (regval.Cell, error) {
			return regval.VectorPush(vec, val)
		})
	case VPOP:
		return false, e.execVpop(ops.(codec.DOperands))
	case VLEN:
		return false, e.binary1(ops, regval.VectorLen)
	case STRUCTKEYS:
		return false, e.binary1(ops, regval.StructKeys)
	case CAPTURE:
		return false, e.execCapture(ops.(codec.DOperands), false)
	case CAPTURECOPY:
		return false, e.execCapture(ops.(codec.DOperands), false)
	case CAPTUREMOVE:
		return false, e.execCapture(ops.(codec.DOperands), true)
	case CALL:
		advance = false
		return false, e.execCall(ops.(codec.DOperands))
	case PROCESS, ACTOR:
		return false, e.execSpawn(ops.(codec.DOperands))
	case RECEIVE:
		return false, e.execReceive(ctx, ops.(codec.DOperands))
	case IO_WAIT:
		return false, e.execIOWait(ctx, ops.(codec.DOperands))

	case VAT:
		return false, e.ternary(ops, regval.VectorAt)
	case STRUCTREMOVE:
		return false, e.execStructRemove(ops.(codec.TOperands))
	case ATOMEQ:
		return false, e.ternary(ops, func(a, b regval.Cell) (regval.Cell, error) {
			return regval.UintCell(boolToUint(a.Kind == regval.AtomKind && b.Kind == regval.AtomKind && a.Atom == b.Atom)), nil
		})
	case PIDEQ:
		return false, e.ternary(ops, func(a, b regval.Cell) (regval.Cell, error) {
			return regval.UintCell(boolToUint(a.Kind == regval.PidKind && b.Kind == regval.PidKind && a.Pid == b.Pid)), nil
		})
	case ADD:
		return false, e.ternaryPtr(ops, func(a, b regval.Cell, ptrs regval.PointerSpace) (regval.Cell, error) {
			return regval.Add(a, b, ptrs)
		})
	case SUB:
		return false, e.ternary(ops, regval.Sub)
	case MUL:
		return false, e.ternary(ops, regval.Mul)
	case DIV:
		return false, e.ternary(ops, regval.Div)
	case MOD:
		return false, e.ternary(ops, regval.Mod)
	case EQ:
		return false, e.ternary(ops, regval.Eq)
	case LT:
		return false, e.ternary(ops, regval.Lt)
	case LTE:
		return false, e.ternary(ops, regval.Lte)
	case GT:
		return false, e.ternary(ops, regval.Gt)
	case GTE:
		return false, e.ternary(ops, regval.Gte)
	case AND:
		return false, e.ternary(ops, regval.And)
	case OR:
		return false, e.ternary(ops, regval.Or)
	case STRUCTINSERT:
		return false, e.execStructInsert(ops.(codec.TOperands))
	case VINSERT:
		return false, e.execMutate3(ops.(codec.TOperands), regval.VectorInsert)
	case BITAND:
		return false, e.ternary(ops, regval.BitAnd)
	case BITOR:
		return false, e.ternary(ops, regval.BitOr)
	case BITXOR:
		return false, e.ternary(ops, regval.BitXor)
	case BITROL:
		return false, e.ternary(ops, regval.BitRol)
	case BITROR:
		return false, e.ternary(ops, regval.BitRor)
	case IO_SUBMIT:
		return false, e.execIOSubmit(ops.(codec.TOperands))
	case JOIN:
		return false, e.execJoin(ctx, ops.(codec.TOperands))
	case CHECKED_ADD:
		return false, e.ternary(ops, regval.CheckedAdd)
	case CHECKED_SUB:
		return false, e.ternary(ops, regval.CheckedSub)
	case CHECKED_MUL:
		return false, e.ternary(ops, regval.CheckedMul)
	case WRAPPING_ADD:
		return false, e.ternary(ops, regval.WrappingAdd)
	case SATURATING_ADD:
		return false, e.ternary(ops, regval.SaturatingAdd)

	case FLOAT:
		fops := ops.(codec.FOperands)
		f, err := p.RegisterFile()
		if err != nil {
			return false, err
		}
		return false, f.Save(fops.A, regval.Float32Cell(math.Float32frombits(fops.Immediate)))

	case LUI, LUIU:
		eops := ops.(codec.EOperands)
		f, err := p.RegisterFile()
		if err != nil {
			return false, err
		}
		// spec §4.1: the 36-bit immediate is the upper bits of the target
		// value, shifted into place; 36+28 == 64, so the shift alone fills
		// the sign bit correctly for both the signed and unsigned forms.
		raw := eops.Immediate << 28
		if op == LUIU {
			return false, f.Save(eops.A, regval.UintCell(raw))
		}
		return false, f.Save(eops.A, regval.IntCell(int64(raw)))

	case ADDI, ADDIU:
		rops := ops.(codec.ROperands)
		f, err := p.RegisterFile()
		if err != nil {
			return false, err
		}
		b, err := f.Fetch(rops.B)
		if err != nil {
			return false, err
		}
		var sum regval.Cell
		if op == ADDIU {
			bv, _ := b.AsInt64()
			sum = regval.UintCell(uint64(bv) + uint64(rops.Immediate))
		} else {
			bv, _ := b.AsInt64()
			sum = regval.IntCell(bv + signExtend24(rops.Immediate))
		}
		return false, f.Save(rops.A, sum)

	case SM, LM:
		return false, e.execMemory(op, ops.(codec.MOperands))

	case ATOMC:
		eops := ops.(codec.EOperands)
		name, serr := p.Module.StringAt(eops.Immediate)
		if serr != nil {
			return false, serr
		}
		f, ferr := p.RegisterFile()
		if ferr != nil {
			return false, ferr
		}
		return false, f.Save(eops.A, regval.AtomCell(p.Atoms.Intern(name)))

	case JUMP:
		advance = false
		eops := ops.(codec.EOperands)
		stack.IP = uint64(int64(stack.IP) + signExtend36(eops.Immediate))
		return false, nil

	case JUMPIF:
		fops := ops.(codec.FOperands)
		f, ferr := p.RegisterFile()
		if ferr != nil {
			return false, ferr
		}
		cond, ferr := f.Fetch(fops.A)
		if ferr != nil {
			return false, ferr
		}
		v, _ := cond.AsInt64()
		if v != 0 {
			advance = false
			stack.IP = uint64(int64(stack.IP) + int64(int32(fops.Immediate)))
		}
		return false, nil

	default:
		return false, fmt.Errorf("process: opcode %s has no executor handler: %w", op, codec.ErrUnimplementedInstruction)
	}
}

// signExtend36 interprets the low 36 bits of v as a two's-complement signed
// offset (codec.EOperands.Immediate's documented width).
func signExtend36(v uint64) int64 {
	v &= (1 << 36) - 1
	if v&(1<<35) != 0 {
		v |= ^uint64(0) << 36
	}
	return int64(v)
}

// signExtend24 interprets the low 24 bits of v as a two's-complement signed
// delta (codec.ROperands.Immediate's documented width) — ADDI's immediate is
// signed, ADDIU's is not, matching the LUI/LUIU split one format over.
func signExtend24(v uint32) int64 {
	v &= (1 << 24) - 1
	x := int64(v)
	if v&(1<<23) != 0 {
		x -= 1 << 24
	}
	return x
}

func boolToUint(b bool) uint64 {
	if b {
		return 1
	}
	return 0
}

// --- single/double/triple register operand helpers ---

func (e *Executor) unary(ops any, fn func(*regval.File, codec.Ref) error) error {
	sops := ops.(codec.SOperands)
	f, err := e.Process.RegisterFile()
	if err != nil {
		return err
	}
	return fn(f, sops.A)
}

func (e *Executor) unaryStore(ops any, fn func(regval.Cell) (regval.Cell, error)) error {
	sops := ops.(codec.SOperands)
	f, err := e.Process.RegisterFile()
	if err != nil {
		return err
	}
	v, err := fn(regval.Cell{})
	if err != nil {
		return AsException(err)
	}
	return f.Save(sops.A, v)
}

func (e *Executor) binary1(ops any, fn func(regval.Cell) (regval.Cell, error)) error {
	dops := ops.(codec.DOperands)
	f, err := e.Process.RegisterFile()
	if err != nil {
		return err
	}
	b, err := f.Fetch(dops.B)
	if err != nil {
		return AsException(err)
	}
	out, err := fn(b)
	if err != nil {
		return AsException(err)
	}
	return f.Save(dops.A, out)
}

func (e *Executor) binaryStore(ops any, fn func(*regval.File, codec.Ref) (regval.Cell, error)) error {
	dops := ops.(codec.DOperands)
	f, err := e.Process.RegisterFile()
	if err != nil {
		return err
	}
	v, err := fn(f, dops.B)
	if err != nil {
		return AsException(err)
	}
	return f.Save(dops.A, v)
}

func (e *Executor) execMutate2(ops codec.DOperands, fn func(a, b regval.Cell) (regval.Cell, error)) error {
	f, err := e.Process.RegisterFile()
	if err != nil {
		return err
	}
	a, err := f.Fetch(ops.A)
	if err != nil {
		return AsException(err)
	}
	b, err := f.Fetch(ops.B)
	if err != nil {
		return AsException(err)
	}
	out, err := fn(a, b)
	if err != nil {
		return AsException(err)
	}
	return f.Save(ops.A, out)
}

func (e *Executor) ternary(ops any, fn func(a, b regval.Cell) (regval.Cell, error)) error {
	tops := ops.(codec.TOperands)
	f, err := e.Process.RegisterFile()
	if err != nil {
		return err
	}
	a, err := f.Fetch(tops.B)
	if err != nil {
		return AsException(err)
	}
	b, err := f.Fetch(tops.C)
	if err != nil {
		return AsException(err)
	}
	out, err := fn(a, b)
	if err != nil {
		return AsException(err)
	}
	return f.Save(tops.A, out)
}

func (e *Executor) ternaryPtr(ops any, fn func(a, b regval.Cell, ptrs regval.PointerSpace) (regval.Cell, error)) error {
	tops := ops.(codec.TOperands)
	f, err := e.Process.RegisterFile()
	if err != nil {
		return err
	}
	a, err := f.Fetch(tops.B)
	if err != nil {
		return AsException(err)
	}
	b, err := f.Fetch(tops.C)
	if err != nil {
		return AsException(err)
	}
	out, err := fn(a, b, e.Process.Pointers)
	if err != nil {
		return AsException(err)
	}
	return f.Save(tops.A, out)
}

func (e *Executor) execMutate3(ops codec.TOperands, fn func(a, b, c regval.Cell) (regval.Cell, error)) error {
	f, err := e.Process.RegisterFile()
	if err != nil {
		return err
	}
	a, err := f.Fetch(ops.A)
	if err != nil {
		return AsException(err)
	}
	b, err := f.Fetch(ops.B)
	if err != nil {
		return AsException(err)
	}
	c, err := f.Fetch(ops.C)
	if err != nil {
		return AsException(err)
	}
	out, err := fn(a, b, c)
	if err != nil {
		return AsException(err)
	}
	return f.Save(ops.A, out)
}

func (e *Executor) execMove(ops codec.DOperands) error {
	f, err := e.Process.RegisterFile()
	if err != nil {
		return err
	}
	v, err := f.Fetch(ops.B)
	if err != nil {
		return AsException(err)
	}
	if err := f.Save(ops.A, v); err != nil {
		return AsException(err)
	}
	return f.Reset(ops.B)
}

func (e *Executor) execSwap(ops codec.DOperands) error {
	f, err := e.Process.RegisterFile()
	if err != nil {
		return err
	}
	a, err := f.Fetch(ops.A)
	if err != nil {
		return AsException(err)
	}
	b, err := f.Fetch(ops.B)
	if err != nil {
		return AsException(err)
	}
	if err := f.Save(ops.A, b); err != nil {
		return AsException(err)
	}
	return f.Save(ops.B, a)
}

func (e *Executor) execVpop(ops codec.DOperands) error {
	f, err := e.Process.RegisterFile()
	if err != nil {
		return err
	}
	vec, err := f.Fetch(ops.B)
	if err != nil {
		return AsException(err)
	}
	next, popped, err := regval.VectorPop(vec)
	if err != nil {
		return AsException(err)
	}
	if err := f.Save(ops.B, next); err != nil {
		return AsException(err)
	}
	return f.Save(ops.A, popped)
}

func (e *Executor) execStructInsert(ops codec.TOperands) error {
	f, err := e.Process.RegisterFile()
	if err != nil {
		return err
	}
	strct, err := f.Fetch(ops.A)
	if err != nil {
		return AsException(err)
	}
	key, err := f.Fetch(ops.B)
	if err != nil {
		return AsException(err)
	}
	val, err := f.Fetch(ops.C)
	if err != nil {
		return AsException(err)
	}
	next, err := regval.StructInsert(strct, key.Atom, val)
	if err != nil {
		return AsException(err)
	}
	return f.Save(ops.A, next)
}

func (e *Executor) execStructRemove(ops codec.TOperands) error {
	f, err := e.Process.RegisterFile()
	if err != nil {
		return err
	}
	strct, err := f.Fetch(ops.B)
	if err != nil {
		return AsException(err)
	}
	key, err := f.Fetch(ops.C)
	if err != nil {
		return AsException(err)
	}
	next, removed, err := regval.StructRemove(strct, key.Atom)
	if err != nil {
		return AsException(err)
	}
	if err := f.Save(ops.B, next); err != nil {
		return AsException(err)
	}
	return f.Save(ops.A, removed)
}

func (e *Executor) execCapture(ops codec.DOperands, move bool) error {
	p := e.Process
	if p.ActiveClosure == nil {
		return NewException(TagTypeError, "capture: no closure under construction")
	}
	f, err := p.RegisterFile()
	if err != nil {
		return err
	}
	v, err := f.Fetch(ops.B)
	if err != nil {
		return AsException(err)
	}
	idx := int(ops.A.Index)
	if idx >= len(p.ActiveClosure.Registers) {
		return NewException(TagBoundsError, "capture: closure has no slot %d", idx)
	}
	p.ActiveClosure.Registers[idx] = v
	if move {
		return f.Reset(ops.B)
	}
	return nil
}

// execFrame reserves the transient argument buffer the next CALL/PROCESS/
// ACTOR consumes. Like ALLOCATE_REGISTERS, the operand's register Index is
// used as a literal count rather than fetched ("frame %3" means "the next
// call takes 3 arguments"), matching the S1 example's "allocate_registers
// %16 local" convention.
func (e *Executor) execFrame(ops codec.SOperands) error {
	stack, err := e.Process.CurrentStack()
	if err != nil {
		return err
	}
	stack.Args = make([]regval.Cell, ops.A.Index)
	return nil
}

func (e *Executor) execAllocateRegisters(ops codec.SOperands) error {
	stack, err := e.Process.CurrentStack()
	if err != nil {
		return err
	}
	top, err := stack.Top()
	if err != nil {
		return err
	}
	n := int(ops.A.Index)
	if len(top.Registers) < n {
		grown := make([]regval.Cell, n)
		copy(grown, top.Registers)
		top.Registers = grown
	}
	return nil
}

func (e *Executor) execDraw(ctx context.Context, ops codec.SOperands) error {
	p := e.Process
	v, err := p.Mailbox.Receive(ctx, 0)
	if err != nil {
		return err
	}
	f, err := p.RegisterFile()
	if err != nil {
		return err
	}
	return f.Save(ops.A, v)
}

func (e *Executor) execSelf(ops codec.SOperands) error {
	f, err := e.Process.RegisterFile()
	if err != nil {
		return err
	}
	return f.Save(ops.A, regval.PidCell(e.Process.PID))
}

func (e *Executor) execThrow(ops codec.SOperands) error {
	f, err := e.Process.RegisterFile()
	if err != nil {
		return err
	}
	v, err := f.Fetch(ops.A)
	if err != nil {
		return AsException(err)
	}
	return NewException(TagTypeError, "%s", v)
}

// execTry starts a handler frame for the block immediately following TRY.
// TRY is a format N word with no handler address, and codegen emits it as a
// bare word, so the handler entry is always the next instruction.
func (e *Executor) execTry(stack *Stack) error {
	top, err := stack.Top()
	if err != nil {
		return err
	}
	e.Process.PushHandlerStack(stack.IP+1, len(top.Registers))
	return nil
}

func (e *Executor) execReturn(ops codec.SOperands) error {
	p := e.Process
	stack, err := p.CurrentStack()
	if err != nil {
		return err
	}
	top := stack.Pop()
	if top.ResultTo.Set != codec.VOID && ops.A.Set == codec.VOID {
		return NewException(TagVoidAccessError, "return: caller requested a result but the return value is void")
	}
	val, err := (&regval.File{Local: top.Registers, Parameter: top.Parameters}).Fetch(ops.A)
	if err != nil {
		return AsException(err)
	}
	p.Pointers.Prune(top.SavedSBRK)
	p.FramePointer = top.SavedFP
	p.StackBreak = top.SavedSBRK
	if stack.Empty() {
		// the bottom frame stays on the stack so its registers remain
		// inspectable once the process has finished
		stack.Push(top)
		p.Finish(0)
		return nil
	}
	caller, err := stack.Top()
	if err != nil {
		return err
	}
	callerFile := &regval.File{Local: caller.Registers, Parameter: caller.Parameters, Static: p.Static, Global: p.Global}
	stack.IP = top.ReturnIP + 1
	return callerFile.Save(top.ResultTo, val)
}

func (e *Executor) execCall(ops codec.DOperands) error {
	p := e.Process
	stack, err := p.CurrentStack()
	if err != nil {
		return err
	}
	f, err := p.RegisterFile()
	if err != nil {
		return err
	}
	target, err := f.Fetch(ops.B)
	if err != nil {
		return AsException(err)
	}
	name, ok := p.Atoms.Lookup(target.Atom)
	if target.Kind != regval.AtomKind || !ok {
		return NewException(TagTypeError, "call: target is not a resolvable function reference")
	}
	fn, ok := p.Module.FindFunction(name)
	if !ok {
		return NewException(TagTypeError, "call: function %q is not defined", name)
	}
	frame := NewFrame(fn.EntryOffset, fn.Arity)
	frame.Parameters = stack.Args
	frame.ReturnIP = stack.IP
	frame.ResultTo = ops.A
	frame.SavedFP = p.FramePointer
	frame.SavedSBRK = p.StackBreak
	stack.Args = nil
	stack.Push(frame)
	stack.IP = fn.EntryOffset
	return nil
}

func (e *Executor) execSpawn(ops codec.DOperands) error {
	p := e.Process
	f, err := p.RegisterFile()
	if err != nil {
		return err
	}
	target, err := f.Fetch(ops.B)
	if err != nil {
		return AsException(err)
	}
	name, ok := p.Atoms.Lookup(target.Atom)
	if target.Kind != regval.AtomKind || !ok {
		return NewException(TagTypeError, "process: spawn target is not a resolvable function reference")
	}
	fn, ok := p.Module.FindFunction(name)
	if !ok {
		return NewException(TagTypeError, "process: function %q is not defined", name)
	}
	child := NewProcess(p.Module, len(p.Global))
	child.Global = p.Global
	child.Joins = p.Joins
	child.Logger = p.Logger
	stack, err := p.CurrentStack()
	if err != nil {
		return err
	}
	child.Spawn(fn, fn.Arity)
	if top, err := child.CurrentStack(); err == nil {
		if frame, err := top.Top(); err == nil {
			frame.Parameters = stack.Args
		}
	}
	stack.Args = nil
	p.Spawned = append(p.Spawned, child)
	if p.Launch != nil {
		child.Launch = p.Launch
		p.Launch(child)
	}
	return f.Save(ops.A, regval.PidCell(child.PID))
}

func (e *Executor) execReceive(ctx context.Context, ops codec.DOperands) error {
	p := e.Process
	f, err := p.RegisterFile()
	if err != nil {
		return err
	}
	timeoutCell, err := f.Fetch(ops.B)
	if err != nil {
		return AsException(err)
	}
	ms, _ := timeoutCell.AsInt64()
	v, err := p.Mailbox.Receive(ctx, msToDuration(ms))
	if err != nil {
		return err
	}
	return f.Save(ops.A, v)
}

func (e *Executor) execIOSubmit(ops codec.TOperands) error {
	p := e.Process
	f, err := p.RegisterFile()
	if err != nil {
		return err
	}
	command, err := f.Fetch(ops.B)
	if err != nil {
		return AsException(err)
	}
	data, err := f.Fetch(ops.C)
	if err != nil {
		return AsException(err)
	}
	cmd, _ := command.AsInt64()
	id, err := p.IO.Submit(uint32(cmd), data.Blob[:])
	if err != nil {
		return NewException(TagTypeError, "io_submit: %s", err)
	}
	return f.Save(ops.A, regval.UintCell(uint64(id)))
}

func (e *Executor) execIOWait(ctx context.Context, ops codec.DOperands) error {
	p := e.Process
	f, err := p.RegisterFile()
	if err != nil {
		return err
	}
	idCell, err := f.Fetch(ops.B)
	if err != nil {
		return AsException(err)
	}
	want, _ := idCell.AsInt64()
	for {
		select {
		case res := <-p.IO.Results():
			if uint64(res.ID) != uint64(want) {
				continue
			}
			if res.Err != nil {
				return NewException(TagTypeError, "io_wait: %s", res.Err)
			}
			var blob [8]byte
			copy(blob[:], res.Data)
			return f.Save(ops.A, regval.BlobCell(blob))
		case <-ctx.Done():
			return NewException(TagMailboxEmpty, "io_wait: cancelled")
		}
	}
}

func (e *Executor) execJoin(ctx context.Context, ops codec.TOperands) error {
	p := e.Process
	f, err := p.RegisterFile()
	if err != nil {
		return err
	}
	pidCell, err := f.Fetch(ops.B)
	if err != nil {
		return AsException(err)
	}
	timeoutCell, err := f.Fetch(ops.C)
	if err != nil {
		return AsException(err)
	}
	ms, _ := timeoutCell.AsInt64()
	if err := p.Joins.Join(ctx, pidCell.Pid, msToDuration(ms)); err != nil {
		return err
	}
	return f.Save(ops.A, regval.UintCell(1))
}

func (e *Executor) execMemory(op codec.Opcode, ops codec.MOperands) error {
	p := e.Process
	f, err := p.RegisterFile()
	if err != nil {
		return err
	}
	offset := uint64(ops.Immediate)
	if op == SM {
		val, err := f.Fetch(ops.A)
		if err != nil {
			return AsException(err)
		}
		if offset+8 > uint64(len(p.Memory)) {
			return NewException(TagBoundsError, "sm: offset %d out of range", offset)
		}
		bits := uint64(val.Uint)
		if val.Kind == regval.Signed {
			bits = uint64(val.Int)
		}
		for i := 0; i < 8; i++ {
			p.Memory[offset+uint64(i)] = byte(bits >> (8 * i))
		}
		return nil
	}
	if offset+8 > uint64(len(p.Memory)) {
		return NewException(TagBoundsError, "lm: offset %d out of range", offset)
	}
	var bits uint64
	for i := 0; i < 8; i++ {
		bits |= uint64(p.Memory[offset+uint64(i)]) << (8 * i)
	}
	return f.Save(ops.A, regval.UintCell(bits))
}

func msToDuration(ms int64) time.Duration {
	if ms <= 0 {
		return 0
	}
	return time.Duration(ms) * time.Millisecond
}
