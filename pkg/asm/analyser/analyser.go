// Package analyser implements the register-usage static analysis spec.md
// §4.6 requires before code generation ever runs: a forward data-flow pass
// over each function's control-flow graph that tracks, per register
// coordinate, whether a value is defined, what type it was last given, and
// whether it has been read since. There is no teacher analogue for this —
// vm/compile.go's CompileSourceFromBuffer never verifies register usage
// before emitting bytecode — so only the *shape* of "one more validation
// pass before code generation" is borrowed from that function; the rules
// themselves are new, built straight from spec.md §4.6's nine numbered
// rules.
package analyser

import (
	"fmt"

	"github.com/marekjm/viuavm-sub001/pkg/asm/parser"
)

// Severity distinguishes a hard StaticAnalysisError from an advisory
// diagnostic. Every rule in this package currently raises SeverityError;
// SeverityWarning exists for future rules (spec.md §4.6's "aside" notes
// attached to a diagnostic are advisory detail, not a separate finding).
type Severity int

const (
	SeverityError Severity = iota
	SeverityWarning
)

// Diagnostic is one finding: the rule tag that fired, the source line it is
// reported at, the register involved and a message (for rule 3, e.g.
// "value written to 1 local at line 3 is never used").
type Diagnostic struct {
	Severity Severity
	Rule     string // which of the nine spec.md §4.6 rules fired
	Line     int
	Register RegisterCoordinate
	Message  string
}

func (d Diagnostic) String() string {
	return fmt.Sprintf("%d: %s: %s", d.Line, d.Rule, d.Message)
}

// Error is the fatal StaticAnalysisError spec.md §7 names: at least one
// SeverityError diagnostic was produced.
type Error struct {
	Diagnostics []Diagnostic
}

func (e *Error) Error() string {
	if len(e.Diagnostics) == 0 {
		return "static analysis failed"
	}
	return fmt.Sprintf("static analysis failed: %s", e.Diagnostics[0])
}

// RegisterCoordinate names one addressable register: its set plus index.
// Named registers (parser.RegisterOperand.Name set instead of Index) are not
// resolved to an index at this stage — codegen's symbol table does that —
// so a named operand is treated as always-defined/always-used; this is a
// known simplification, recorded in DESIGN.md.
type RegisterCoordinate struct {
	Set   string
	Index int
	Named string
}

func coordOf(r parser.RegisterOperand) RegisterCoordinate {
	return RegisterCoordinate{Set: r.Set, Index: r.Index, Named: r.Name}
}

// ValueType is the coarse type profile tracked per register — coarse enough
// to support `assert_type_of_register<T>` (rule 4) without reimplementing
// regval's full Cell type lattice here.
type ValueType string

const (
	TypeUnknown ValueType = "unknown"
	TypeInt     ValueType = "int"
	TypeUint    ValueType = "uint"
	TypeFloat   ValueType = "float"
	TypeAtom    ValueType = "atom"
	TypePid     ValueType = "pid"
	TypePointer ValueType = "pointer"
	TypeVector  ValueType = "vector"
	TypeStruct  ValueType = "struct"
	TypeClosure ValueType = "closure"
)

type regState struct {
	Defined   bool
	Erased    bool
	Type      ValueType
	DefinedAt int
}

// Profile is rule 1/2's RegisterUsageProfile: per-coordinate state plus a
// used-set that, per rule 5, is shared across every branch a fork produces
// so a value read on only one arm of a branch still counts as used overall.
type Profile struct {
	values map[RegisterCoordinate]regState
	used   map[RegisterCoordinate]bool // shared across forks (see rule 5)
}

func newProfile() *Profile {
	return &Profile{values: map[RegisterCoordinate]regState{}, used: map[RegisterCoordinate]bool{}}
}

// fork copies the defined/erased/type state for an independent branch path;
// `used` is NOT copied — it is shared (same map reference) so cross-branch
// suppression (rule 5) works without an explicit post-hoc merge step.
func (p *Profile) fork() *Profile {
	f := &Profile{values: make(map[RegisterCoordinate]regState, len(p.values)), used: p.used}
	for k, v := range p.values {
		f.values[k] = v
	}
	return f
}

func (p *Profile) define(c RegisterCoordinate, t ValueType, at int) {
	p.values[c] = regState{Defined: true, Type: t, DefinedAt: at}
}

func (p *Profile) erase(c RegisterCoordinate) {
	st := p.values[c]
	st.Erased = true
	st.Defined = false
	p.values[c] = st
}

func (p *Profile) markUsed(c RegisterCoordinate) { p.used[c] = true }

// analysisContext carries the function under analysis plus state shared
// across the whole (possibly forking) walk: the diagnostics sink and the
// block table. The per-path set of visited instruction indices is passed to
// walk separately.
type analysisContext struct {
	fn    *parser.Function
	diags []Diagnostic
	// blocks resolves a CALL target's block body for subroutine analysis
	// (rule 6); nil entries are simply not descended into.
	blocks map[string]*parser.Block
}

// Analyse runs the full nine-rule pass over fn and returns every diagnostic
// found. A non-nil *Error is also returned if any diagnostic is
// SeverityError; every diagnostic, regardless of severity, is always
// returned in the slice.
func Analyse(fn *parser.Function, blocks map[string]*parser.Block) ([]Diagnostic, error) {
	ctx := &analysisContext{fn: fn, blocks: blocks}
	start := newProfile()
	ctx.walk(fn.Instructions, 0, start, map[int]bool{})

	var errs []Diagnostic
	for _, d := range ctx.diags {
		if d.Severity == SeverityError {
			errs = append(errs, d)
		}
	}
	if len(errs) > 0 {
		return ctx.diags, &Error{Diagnostics: errs}
	}
	return ctx.diags, nil
}

// walk performs the forward data-flow pass starting at instruction index
// `at` with profile `prof`, following fallthrough and (forward, resolvable)
// jump edges. `visited` is per-path: it is intentionally NOT shared across
// forks, since two different paths may legitimately both pass through the
// same instruction with different profiles (e.g. after a diamond join the
// teacher's approximation re-examines each arm independently rather than
// computing a lattice meet).
func (c *analysisContext) walk(instrs []*parser.Instruction, at int, prof *Profile, visited map[int]bool) {
	for at < len(instrs) {
		if visited[at] {
			return // already explored this path segment (avoids re-looping)
		}
		visited[at] = true
		instr := instrs[at]

		switch instr.Mnemonic {
		case "jump":
			target, ok := c.resolveJumpTarget(instr, at)
			if !ok {
				return // rule 8: hex-address jump, not analysed further
			}
			if target <= at {
				return // rule 7: backward jump, not analysed
			}
			at = target
			continue
		case "jumpif":
			c.checkRead(instr, instr.Operands[0], prof)
			target, ok := c.resolveJumpTarget(instr, at)
			if ok && target > at {
				// rule 5: fork — explore the taken branch independently,
				// sharing `used` with the fallthrough continuation.
				c.walk(instrs, target, prof.fork(), copyVisited(visited))
			}
			at++
			continue
		case "return", "leave":
			c.applyInstruction(instr, at, prof)
			c.checkUnused(instrs, prof, at)
			return
		case "call":
			c.applyInstruction(instr, at, prof)
			c.analyseCallTarget(instr)
		default:
			c.applyInstruction(instr, at, prof)
		}
		at++
	}
	c.checkUnused(instrs, prof, len(instrs))
}

func copyVisited(v map[int]bool) map[int]bool {
	out := make(map[int]bool, len(v))
	for k := range v {
		out[k] = true
	}
	return out
}

// resolveJumpTarget implements rules 7/8's target classification: a label
// operand resolves via the function's label table; a literal hex-address
// operand cannot be resolved (rule 8); a bare integer delta is relative to
// `at`.
func (c *analysisContext) resolveJumpTarget(instr *parser.Instruction, at int) (int, bool) {
	var target parser.Operand
	if instr.Mnemonic == "jumpif" {
		if len(instr.Operands) < 2 {
			return 0, false
		}
		target = instr.Operands[1]
	} else {
		if len(instr.Operands) < 1 {
			return 0, false
		}
		target = instr.Operands[0]
	}
	switch target.Kind {
	case parser.OperandLabel:
		idx := c.fn.LabelIndex(target.Label)
		if idx < 0 {
			return 0, false
		}
		return idx, true
	case parser.OperandInt:
		return at + int(target.Int), true
	case parser.OperandBitString:
		return 0, false // rule 8
	default:
		return 0, false
	}
}

// applyInstruction applies rules 1, 2 and 9 for one non-branching
// instruction: registers read must be defined (rule 1), the conventional
// first operand of a two/three-operand instruction defines a new value
// (rule 2), MOVE/CAPTUREMOVE erase their source except through a pointer
// dereference, and rule 4's type assertion pseudo-instruction is honoured.
func (c *analysisContext) applyInstruction(instr *parser.Instruction, at int, prof *Profile) {
	switch instr.Mnemonic {
	case "assert_type_of_register":
		c.checkTypeAssertion(instr, prof)
		return
	case "move", "capturemove":
		if len(instr.Operands) < 2 {
			return
		}
		dst, src := instr.Operands[0], instr.Operands[1]
		c.checkRead(instr, src, prof)
		if dst.Kind == parser.OperandRegister {
			prof.define(coordOf(dst.Register), srcType(prof, src), at)
		}
		if src.Kind == parser.OperandRegister && src.Register.Access != parser.AccessPointerDeref {
			prof.erase(coordOf(src.Register))
		}
		return
	case "capture", "capturecopy":
		if len(instr.Operands) < 2 {
			return
		}
		dst, src := instr.Operands[0], instr.Operands[1]
		c.checkRead(instr, src, prof)
		if dst.Kind == parser.OperandRegister {
			prof.define(coordOf(dst.Register), TypeClosure, at)
		}
		return
	case "li":
		// li %dst, %scratch, <value>: both registers are pure write targets
		// (codegen's decomposition never reads either before writing it), so
		// neither is a rule-1 read. scratch is defined-and-marked-used here
		// directly instead of through a later instruction, since its only
		// purpose is to carry codegen's decomposition and flagging it unused
		// would be a false positive on every li that takes the 6-word form.
		if len(instr.Operands) < 2 {
			return
		}
		dst, scratch := instr.Operands[0], instr.Operands[1]
		if dst.Kind == parser.OperandRegister {
			prof.define(coordOf(dst.Register), TypeInt, at)
		}
		if scratch.Kind == parser.OperandRegister {
			coord := coordOf(scratch.Register)
			prof.define(coord, TypeInt, at)
			prof.markUsed(coord)
		}
		return
	}

	// generic case: every operand after the first is read; the first is a
	// write unless the mnemonic is read-only (isReadOnlyUnary: RETURN, THROW,
	// DELETE and the container inserts), in which case it is read too.
	for i, op := range instr.Operands {
		if i == 0 {
			continue
		}
		c.checkRead(instr, op, prof)
	}
	if len(instr.Operands) == 0 {
		return
	}
	dst := instr.Operands[0]
	if dst.Kind != parser.OperandRegister || dst.Register.Access != parser.AccessDirect {
		// a read-only first operand (e.g. DELETE's sole operand, THROW's
		// source) is itself a read, not a write.
		if isReadOnlyUnary(instr.Mnemonic) {
			c.checkRead(instr, dst, prof)
		}
		return
	}
	if isReadOnlyUnary(instr.Mnemonic) {
		c.checkRead(instr, dst, prof)
		return
	}
	prof.define(coordOf(dst.Register), inferType(instr.Mnemonic), at)
}

func isReadOnlyUnary(mnemonic string) bool {
	switch mnemonic {
	case "return", "throw", "delete", "vpush", "structinsert", "vinsert":
		return true
	default:
		return false
	}
}

func srcType(prof *Profile, src parser.Operand) ValueType {
	if src.Kind != parser.OperandRegister {
		return TypeUnknown
	}
	if st, ok := prof.values[coordOf(src.Register)]; ok {
		return st.Type
	}
	return TypeUnknown
}

func inferType(mnemonic string) ValueType {
	switch mnemonic {
	case "izero", "add", "sub", "mul", "div", "mod", "addi":
		return TypeInt
	case "float":
		return TypeFloat
	case "eq", "lt", "lte", "gt", "gte", "and", "or", "not", "isnull", "atomeq", "pideq":
		return TypeUint
	case "self", "process", "actor":
		return TypePid
	case "vpush", "vpop", "vat", "vinsert":
		return TypeVector
	case "structinsert", "structremove", "structkeys":
		return TypeStruct
	default:
		return TypeUnknown
	}
}

// checkRead implements rule 1: a register read must already be Defined and
// not Erased. VOID operands and non-register operands are never flagged.
func (c *analysisContext) checkRead(instr *parser.Instruction, op parser.Operand, prof *Profile) {
	if op.Kind != parser.OperandRegister {
		return
	}
	reg := op.Register
	coord := coordOf(reg)
	prof.markUsed(coord)
	st, ok := prof.values[coord]
	if ok && st.Defined && !st.Erased {
		return
	}

	msg := fmt.Sprintf("read of %s%d %s before it is defined", reg.Access, reg.Index, reg.Set)
	if ok && st.Erased {
		msg = fmt.Sprintf("read of %s%d %s after it was erased (moved out)", reg.Access, reg.Index, reg.Set)
	} else if suggestion := maybeMistypedSet(prof, reg); suggestion != "" {
		msg += fmt.Sprintf("; maybe_mistyped_register_set: did you mean %s%d %s?", reg.Access, reg.Index, suggestion)
	}
	c.diags = append(c.diags, Diagnostic{
		Severity: SeverityError, Rule: "rule-1-read-must-be-defined",
		Line: instr.Line, Register: coord, Message: msg,
	})
}

// maybeMistypedSet looks for a register with the same index defined in a
// different register set — the common typo this diagnostic (rule 1) calls
// out ("you wrote `local` but meant `static`").
func maybeMistypedSet(prof *Profile, reg parser.RegisterOperand) string {
	for coord, st := range prof.values {
		if coord.Index == reg.Index && coord.Set != reg.Set && st.Defined && !st.Erased {
			return coord.Set
		}
	}
	return ""
}

// checkTypeAssertion implements rule 4: `assert_type_of_register<T> %N set`
// fails analysis if the tracked type for that register is not T (or is
// unknown, since an assertion against a never-inferred value cannot be
// proven to hold).
func (c *analysisContext) checkTypeAssertion(instr *parser.Instruction, prof *Profile) {
	if len(instr.Operands) < 1 || instr.Operands[0].Kind != parser.OperandRegister {
		return
	}
	reg := instr.Operands[0].Register
	wantType := ValueType(instr.Mnemonic) // grammar carries <T> as part of the mnemonic text at parse time
	if len(instr.Operands) >= 2 && instr.Operands[1].Kind == parser.OperandAtom {
		wantType = ValueType(instr.Operands[1].Text)
	}
	coord := coordOf(reg)
	prof.markUsed(coord)
	st, ok := prof.values[coord]
	if !ok || !st.Defined || st.Erased {
		c.diags = append(c.diags, Diagnostic{
			Severity: SeverityError, Rule: "rule-4-type-assertion",
			Line: instr.Line, Register: coord,
			Message: fmt.Sprintf("assert_type_of_register<%s>: %s%d %s is not defined", wantType, reg.Access, reg.Index, reg.Set),
		})
		return
	}
	if st.Type != TypeUnknown && st.Type != wantType {
		c.diags = append(c.diags, Diagnostic{
			Severity: SeverityError, Rule: "rule-4-type-assertion",
			Line: instr.Line, Register: coord,
			Message: fmt.Sprintf("assert_type_of_register<%s>: %s%d %s holds %s", wantType, reg.Access, reg.Index, reg.Set, st.Type),
		})
	}
}

// checkUnused implements rule 3: every register still Defined-and-not-used
// at a RETURN/LEAVE (or at the end of the instruction stream) is flagged,
// except register index 0 in any set, which conventionally holds the
// function's own result slot and is exempted. spec.md §7 lists
// StaticAnalysisError (which names "unused value" among its triggers) as
// fatal at compile, so this is SeverityError, not advisory.
func (c *analysisContext) checkUnused(instrs []*parser.Instruction, prof *Profile, at int) {
	for coord, st := range prof.values {
		if !st.Defined || st.Erased || coord.Index == 0 {
			continue
		}
		if prof.used[coord] {
			continue
		}
		c.diags = append(c.diags, Diagnostic{
			Severity: SeverityError, Rule: "rule-3-unused-value",
			Line: instrLine(instrs, st.DefinedAt), Register: coord,
			Message: fmt.Sprintf("value written to %d %s at line %d is never used", coord.Index, coord.Set, instrLine(instrs, st.DefinedAt)),
		})
	}
}

func instrLine(instrs []*parser.Instruction, idx int) int {
	if idx >= 0 && idx < len(instrs) {
		return instrs[idx].Line
	}
	return 0
}

// analyseCallTarget implements rule 6 in part: a CALL whose operand names a
// known `.block:` (rather than a `.function:`) has that block's body analysed
// with the same register-usage machinery, and its diagnostics are added to
// the caller's. The block is walked from an empty profile: registers the
// caller defined are not visible to it, and what the block defines or reads
// is not carried back into the caller's profile.
func (c *analysisContext) analyseCallTarget(instr *parser.Instruction) {
	if len(instr.Operands) < 2 || instr.Operands[1].Kind != parser.OperandAtom {
		return
	}
	name := instr.Operands[1].Text
	blk, ok := c.blocks[name]
	if !ok {
		return
	}
	sub := &analysisContext{fn: &parser.Function{Name: blk.Name, Instructions: blk.Instructions, Labels: blk.Labels}, blocks: c.blocks}
	sub.walk(blk.Instructions, 0, newProfile(), map[int]bool{})
	c.diags = append(c.diags, sub.diags...)
}
