// Package codegen turns a parsed (and, by convention, already analysed)
// parser.Program into a linked process.Module: one concatenated []codec.Word
// text segment, a deduplicated string table, and name-keyed function/block
// tables (spec.md §4.7, SPEC_FULL.md §5.8).
//
// There is no direct teacher analogue for the AST-to-word translation itself
// (vm/compile.go works over raw text with regex label substitution, never
// building a tree), but the overall two-pass shape — first resolve every
// label to an address, then emit — is the same shape CompileSourceFromBuffer
// uses (preprocessLine builds a label->address table before parseInputLine
// ever runs). This package keeps that shape: a size pass fixes every
// instruction's word offset before a second pass emits real words, so a
// forward jump can be encoded without a relocation/patch step.
package codegen

import (
	"fmt"
	"math"
	"strconv"

	"github.com/pkg/errors"

	"github.com/marekjm/viuavm-sub001/pkg/asm/parser"
	"github.com/marekjm/viuavm-sub001/pkg/codec"
	"github.com/marekjm/viuavm-sub001/pkg/process"
)

// Error is the fatal LinkError spec.md §7 names: an operand codegen cannot
// resolve into bytecode (unknown mnemonic, unresolved label, a register
// addressing mode this codec has no wire representation for).
type Error struct {
	Line int
	Msg  string
}

func (e *Error) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("%d: link error: %s", e.Line, e.Msg)
	}
	return fmt.Sprintf("link error: %s", e.Msg)
}

var voidRef = codec.Ref{Set: codec.VOID, Direct: true}

// Generate links every function and block in prog into one process.Module.
// Callers are expected to have already run the functions through
// pkg/asm/analyser; Generate does not re-check register usage, only
// translates syntax into bytecode.
func Generate(prog *parser.Program) (*process.Module, error) {
	frags := collectFragments(prog)

	offsets := make([][]int, len(frags))
	sizes := make([]int, len(frags))
	for i, fr := range frags {
		offsets[i], sizes[i] = sizeFragment(fr.instrs)
	}

	bases := make([]uint64, len(frags))
	var running uint64
	for i, sz := range sizes {
		bases[i] = running
		running += uint64(sz)
	}

	st := newStrtab()
	text := make([]codec.Word, 0, running)
	functions := map[string]process.FunctionEntry{}
	blocks := map[string]process.BlockEntry{}

	for i, fr := range frags {
		words, err := emitFragment(fr.instrs, fr.labels, offsets[i], bases[i], st)
		if err != nil {
			var lerr *Error
			if errors.As(err, &lerr) {
				return nil, &Error{Line: lerr.Line, Msg: fmt.Sprintf("%s: %s", fr.name, lerr.Msg)}
			}
			return nil, errors.Wrapf(err, "generating %s", fr.name)
		}
		text = append(text, words...)
		if fr.isBlock {
			blocks[fr.name] = process.BlockEntry{Name: fr.name, EntryOffset: bases[i]}
		} else {
			functions[fr.name] = process.FunctionEntry{Name: fr.name, EntryOffset: bases[i], Arity: fr.arity}
		}
	}

	var sigs []process.Signature
	for _, s := range prog.ExternFunctions {
		sigs = append(sigs, process.Signature{Name: s.Name})
	}
	for _, s := range prog.ExternBlocks {
		sigs = append(sigs, process.Signature{Name: s.Name, IsBlock: true})
	}

	return &process.Module{
		Text:       text,
		Strtab:     st.bytes(),
		Functions:  functions,
		Blocks:     blocks,
		Signatures: sigs,
		Metadata:   prog.Info,
	}, nil
}

type fragment struct {
	name    string
	arity   int
	isBlock bool
	instrs  []*parser.Instruction
	labels  map[string]int
}

func collectFragments(prog *parser.Program) []fragment {
	frags := make([]fragment, 0, len(prog.Functions)+len(prog.Blocks))
	for _, fn := range prog.Functions {
		frags = append(frags, fragment{name: fn.Name, arity: fn.Arity, instrs: fn.Instructions, labels: fn.Labels})
	}
	for _, blk := range prog.Blocks {
		frags = append(frags, fragment{name: blk.Name, isBlock: true, instrs: blk.Instructions, labels: blk.Labels})
	}
	return frags
}

// sizeFragment computes, for each instruction index, the word offset (from
// the start of the fragment) at which that instruction's first emitted word
// will land, plus the fragment's total word count. Most instructions emit
// one word; assert_type_of_register emits none and `li` emits two or six
// (see wordsFor).
func sizeFragment(instrs []*parser.Instruction) ([]int, int) {
	offs := make([]int, len(instrs)+1)
	cum := 0
	for i, instr := range instrs {
		offs[i] = cum
		cum += wordsFor(instr)
	}
	offs[len(instrs)] = cum
	return offs, cum
}

func wordsFor(instr *parser.Instruction) int {
	switch instr.Mnemonic {
	case "assert_type_of_register":
		return 0 // pure analyser pseudo-instruction, emits no bytecode
	case "li":
		return liWordCount(instr)
	}
	return 1
}

// liWordCount mirrors the branch emitLoadImmediate takes, so the fragment's
// word offsets (needed for jump-target resolution before anything is
// emitted) agree with what emission actually produces. A malformed `li`
// defaults to the 6-word form; emitInstruction will reject it for real, and
// Generate discards the whole fragment on error, so an inflated size on
// that path is harmless.
func liWordCount(instr *parser.Instruction) int {
	if len(instr.Operands) < 3 {
		return 6
	}
	v, err := uint64Of(instr.Operands[2])
	if err != nil {
		return 6
	}
	if _, fits := decomposeImmediate(v); fits {
		return 2
	}
	return 6
}

func emitFragment(instrs []*parser.Instruction, labels map[string]int, offs []int, base uint64, st *strtab) ([]codec.Word, error) {
	var words []codec.Word
	for i, instr := range instrs {
		w, err := emitInstruction(instr, i, instrs, labels, offs, base, st)
		if err != nil {
			return nil, &Error{Line: instr.Line, Msg: errors.Wrap(err, instr.Mnemonic).Error()}
		}
		words = append(words, w...)
	}
	return words, nil
}

// resolveTarget mirrors pkg/asm/analyser's resolveJumpTarget: a label
// resolves via the fragment's label table, a bare integer is relative to the
// jump's own instruction index, and a hex/octal/binary literal names an
// absolute *linked* word offset directly (spec.md §6's "jump-target"
// literal; unanalysed by rule 8, but still a valid escape hatch at codegen
// time since this is the one stage that knows the final layout).
func resolveTarget(labels map[string]int, at int, op parser.Operand) (localIdx int, absolute *uint64, err error) {
	switch op.Kind {
	case parser.OperandLabel:
		idx, ok := labels[op.Label]
		if !ok {
			return 0, nil, fmt.Errorf("undefined label %q", op.Label)
		}
		return idx, nil, nil
	case parser.OperandInt:
		return at + int(op.Int), nil, nil
	case parser.OperandBitString:
		v, perr := strconv.ParseUint(op.Text, 0, 64)
		if perr != nil {
			return 0, nil, fmt.Errorf("bad absolute jump target %q: %w", op.Text, perr)
		}
		return 0, &v, nil
	default:
		return 0, nil, fmt.Errorf("operand is not a jump target")
	}
}

func emitInstruction(instr *parser.Instruction, i int, instrs []*parser.Instruction, labels map[string]int, offs []int, base uint64, st *strtab) ([]codec.Word, error) {
	switch instr.Mnemonic {
	case "assert_type_of_register":
		return nil, nil

	case "jump":
		if len(instr.Operands) < 1 {
			return nil, fmt.Errorf("jump: missing target operand")
		}
		delta, err := jumpDelta(labels, i, offs, base, instr.Operands[0])
		if err != nil {
			return nil, err
		}
		w, err := codec.EncodeE(codec.JUMP, instr.Greedy, codec.EOperands{A: voidRef, Immediate: uint64(delta)})
		return []codec.Word{w}, err

	case "jumpif":
		if len(instr.Operands) < 2 {
			return nil, fmt.Errorf("jumpif: expected condition register and target")
		}
		cond, err := operandRef(instr.Operands[0])
		if err != nil {
			return nil, err
		}
		delta, err := jumpDelta(labels, i, offs, base, instr.Operands[1])
		if err != nil {
			return nil, err
		}
		w, err := codec.EncodeF(codec.JUMPIF, instr.Greedy, codec.FOperands{A: cond, Immediate: uint32(int32(delta))})
		return []codec.Word{w}, err

	case "atom":
		if len(instr.Operands) < 2 {
			return nil, fmt.Errorf("atom: expected destination register and a name")
		}
		dst, err := operandRef(instr.Operands[0])
		if err != nil {
			return nil, err
		}
		name, err := textOf(instr.Operands[1])
		if err != nil {
			return nil, err
		}
		w, err := codec.EncodeE(codec.ATOMC, instr.Greedy, codec.EOperands{A: dst, Immediate: st.intern(name)})
		return []codec.Word{w}, err

	case "float":
		if len(instr.Operands) < 2 {
			return nil, fmt.Errorf("float: expected destination register and a value")
		}
		dst, err := operandRef(instr.Operands[0])
		if err != nil {
			return nil, err
		}
		bits := math.Float32bits(float32(instr.Operands[1].Float))
		w, err := codec.EncodeF(codec.FLOAT, instr.Greedy, codec.FOperands{A: dst, Immediate: bits})
		return []codec.Word{w}, err

	case "lui", "luiu":
		op, _ := codec.Lookup(instr.Mnemonic)
		if len(instr.Operands) < 2 {
			return nil, fmt.Errorf("%s: expected destination register and an immediate", instr.Mnemonic)
		}
		dst, err := operandRef(instr.Operands[0])
		if err != nil {
			return nil, err
		}
		w, err := codec.EncodeE(op, instr.Greedy, codec.EOperands{A: dst, Immediate: uint64(instr.Operands[1].Int)})
		return []codec.Word{w}, err

	case "addi", "addiu":
		op, _ := codec.Lookup(instr.Mnemonic)
		if len(instr.Operands) < 3 {
			return nil, fmt.Errorf("%s: expected two registers and an immediate", instr.Mnemonic)
		}
		a, err := operandRef(instr.Operands[0])
		if err != nil {
			return nil, err
		}
		b, err := operandRef(instr.Operands[1])
		if err != nil {
			return nil, err
		}
		w, err := codec.EncodeR(op, instr.Greedy, codec.ROperands{A: a, B: b, Immediate: uint32(instr.Operands[2].Int)})
		return []codec.Word{w}, err

	case "li":
		return emitLoadImmediate(instr)

	case "sm", "lm":
		op, _ := codec.Lookup(instr.Mnemonic)
		if len(instr.Operands) < 3 {
			return nil, fmt.Errorf("%s: expected two registers and a byte offset", instr.Mnemonic)
		}
		a, err := operandRef(instr.Operands[0])
		if err != nil {
			return nil, err
		}
		b, err := operandRef(instr.Operands[1])
		if err != nil {
			return nil, err
		}
		var subSpec uint8
		if len(instr.Operands) >= 4 {
			subSpec = uint8(instr.Operands[3].Int)
		}
		w, err := codec.EncodeM(op, instr.Greedy, codec.MOperands{A: a, B: b, Immediate: uint32(instr.Operands[2].Int), SubSpec: subSpec})
		return []codec.Word{w}, err

	default:
		return emitGeneric(instr)
	}
}

// emitGeneric handles every mnemonic whose operands are plain registers (no
// immediate, no label, no atom desugaring): formats N, S, D and T.
func emitGeneric(instr *parser.Instruction) ([]codec.Word, error) {
	op, ok := codec.Lookup(instr.Mnemonic)
	if !ok {
		return nil, fmt.Errorf("unknown mnemonic %q", instr.Mnemonic)
	}
	format, err := codec.FormatOf(op)
	if err != nil {
		return nil, err
	}

	switch format {
	case codec.FormatN:
		w, err := codec.EncodeN(op, instr.Greedy)
		return []codec.Word{w}, err
	case codec.FormatS:
		if op == codec.RETURN && len(instr.Operands) == 0 {
			// bare `return` returns void
			w, err := codec.EncodeS(op, instr.Greedy, codec.SOperands{A: voidRef})
			return []codec.Word{w}, err
		}
		a, err := regAt(instr, 0)
		if err != nil {
			return nil, err
		}
		w, err := codec.EncodeS(op, instr.Greedy, codec.SOperands{A: a})
		return []codec.Word{w}, err
	case codec.FormatD:
		a, err := regAt(instr, 0)
		if err != nil {
			return nil, err
		}
		b, err := regAt(instr, 1)
		if err != nil {
			return nil, err
		}
		w, err := codec.EncodeD(op, instr.Greedy, codec.DOperands{A: a, B: b})
		return []codec.Word{w}, err
	case codec.FormatT:
		a, err := regAt(instr, 0)
		if err != nil {
			return nil, err
		}
		b, err := regAt(instr, 1)
		if err != nil {
			return nil, err
		}
		c, err := regAt(instr, 2)
		if err != nil {
			return nil, err
		}
		w, err := codec.EncodeT(op, instr.Greedy, codec.TOperands{A: a, B: b, C: c})
		return []codec.Word{w}, err
	default:
		return nil, fmt.Errorf("mnemonic %q uses format %s, which codegen does not special-case", instr.Mnemonic, format)
	}
}

func regAt(instr *parser.Instruction, idx int) (codec.Ref, error) {
	if idx >= len(instr.Operands) {
		return codec.Ref{}, fmt.Errorf("%s: expected a register operand at position %d", instr.Mnemonic, idx)
	}
	return operandRef(instr.Operands[idx])
}

func jumpDelta(labels map[string]int, at int, offs []int, base uint64, target parser.Operand) (int64, error) {
	localIdx, absolute, err := resolveTarget(labels, at, target)
	if err != nil {
		return 0, err
	}
	here := int64(base) + int64(offs[at])
	if absolute != nil {
		return int64(*absolute) - here, nil
	}
	if localIdx < 0 || localIdx >= len(offs) {
		return 0, fmt.Errorf("jump target resolves outside the enclosing function/block")
	}
	there := int64(base) + int64(offs[localIdx])
	return there - here, nil
}

// operandRef resolves an operand that must name a register (or void) into a
// codec.Ref.
func operandRef(op parser.Operand) (codec.Ref, error) {
	switch op.Kind {
	case parser.OperandRegister:
		return toRef(op.Register)
	case parser.OperandVoid:
		return voidRef, nil
	default:
		return codec.Ref{}, fmt.Errorf("expected a register operand, found %v", op.Kind)
	}
}

func toRef(r parser.RegisterOperand) (codec.Ref, error) {
	if r.Name != "" {
		return codec.Ref{}, fmt.Errorf("named register %q has no resolved index (no symbol table yet, see DESIGN.md)", r.Name)
	}
	if r.Access == parser.AccessRegisterIndirect {
		return codec.Ref{}, fmt.Errorf("register-indirect addressing (@%d %s) has no runtime support yet (see DESIGN.md)", r.Index, r.Set)
	}
	set, err := registerSet(r.Set)
	if err != nil {
		return codec.Ref{}, err
	}
	if r.Index < 0 || r.Index > 0xFF {
		return codec.Ref{}, fmt.Errorf("register index %d out of range", r.Index)
	}
	return codec.Ref{Set: set, Direct: r.Access != parser.AccessPointerDeref, Index: uint8(r.Index)}, nil
}

func registerSet(name string) (codec.RegisterSet, error) {
	switch name {
	case "local":
		return codec.LOCAL, nil
	case "static":
		return codec.STATIC, nil
	case "global":
		return codec.GLOBAL, nil
	case "parameters":
		return codec.PARAMETER, nil
	case "arguments":
		return codec.ARGUMENT, nil
	case "closure_local":
		return codec.CLOSURE_LOCAL, nil
	case "void", "":
		return codec.VOID, nil
	default:
		return 0, fmt.Errorf("unknown register set %q", name)
	}
}

func textOf(op parser.Operand) (string, error) {
	switch op.Kind {
	case parser.OperandAtom, parser.OperandText:
		return op.Text, nil
	case parser.OperandLabel:
		return op.Label, nil
	default:
		return "", fmt.Errorf("expected a name, found %v", op.Kind)
	}
}

// uint64Of recovers the full 64-bit bit pattern of an `li` value operand.
// Decimal literals lex as OperandInt (signed, via strconv.ParseInt); values
// whose top bit is set (e.g. 0xffffffffffffffff) overflow that path and are
// written as a hex/octal/binary literal instead, which the lexer routes to
// OperandBitString precisely to dodge the signed-64 overflow (see
// pkg/asm/lexer).
func uint64Of(op parser.Operand) (uint64, error) {
	switch op.Kind {
	case parser.OperandInt:
		return uint64(op.Int), nil
	case parser.OperandBitString:
		v, err := strconv.ParseUint(op.Text, 0, 64)
		if err != nil {
			return 0, fmt.Errorf("bad immediate %q: %w", op.Text, err)
		}
		return v, nil
	default:
		return 0, fmt.Errorf("expected an integer or bit-string immediate, found %v", op.Kind)
	}
}

const (
	liLowMask  = (1 << 28) - 1 // low's bit width: a Format-R immediate is 24 bits,
	liBaseCap  = (1 << 24) - 1 // so low itself may need splitting into base*16+remainder.
	liMultiply = 16
)

// decomposeImmediate splits v into LUI/LUIU's 36-bit high part and the
// remaining 28-bit low part, per spec.md §4.1, and reports whether low fits
// directly into a 24-bit ADDI/ADDIU immediate (the 2-instruction case) or
// needs the 6-instruction base*16+remainder expansion.
func decomposeImmediate(v uint64) (low uint64, fits bool) {
	low = v & liLowMask
	return low, low <= liBaseCap
}

// emitLoadImmediate expands the `li` pseudo-instruction (spec.md §4.1, §8
// Property 2) into LUIU plus ADDIU (and, when low doesn't fit 24 bits, MUL
// and ADD). It always works in the Unsigned cell kind: li's job is to
// materialise an exact 64-bit bit pattern, and LUI/LUIU produce an identical
// bit pattern either way (see the executor's shift fix this decomposition
// depends on) — Unsigned sidesteps int64 overflow on values like
// 0xffffffffffffffff that a signed reading of the same bits would otherwise
// need to special-case.
//
// The 28-bit low part does not always fit a 24-bit ADDI/ADDIU immediate.
// When it doesn't, this ISA has no shift-by-immediate or multiply-by-
// immediate opcode, so splitting low = base*16 + remainder and building it
// in the destination register via a scratch-held constant 16 needs one more
// instruction than spec.md's prose five — LUIU can only be issued once per
// register without clobbering what it already holds, and MUL needs its
// multiplier in a register. Six is the true minimum with this opcode set;
// see DESIGN.md.
func emitLoadImmediate(instr *parser.Instruction) ([]codec.Word, error) {
	if len(instr.Operands) < 3 {
		return nil, fmt.Errorf("li: expected destination register, scratch register and a value")
	}
	dst, err := operandRef(instr.Operands[0])
	if err != nil {
		return nil, err
	}
	scratch, err := operandRef(instr.Operands[1])
	if err != nil {
		return nil, err
	}
	v, err := uint64Of(instr.Operands[2])
	if err != nil {
		return nil, err
	}

	hi := v >> 28
	low, fits := decomposeImmediate(v)

	if fits {
		w1, err := codec.EncodeE(codec.LUIU, instr.Greedy, codec.EOperands{A: dst, Immediate: hi})
		if err != nil {
			return nil, err
		}
		w2, err := codec.EncodeR(codec.ADDIU, instr.Greedy, codec.ROperands{A: dst, B: dst, Immediate: uint32(low)})
		if err != nil {
			return nil, err
		}
		return []codec.Word{w1, w2}, nil
	}

	base := low >> 4
	remainder := low & 0xF

	w1, err := codec.EncodeR(codec.ADDIU, instr.Greedy, codec.ROperands{A: scratch, B: voidRef, Immediate: liMultiply})
	if err != nil {
		return nil, err
	}
	w2, err := codec.EncodeR(codec.ADDIU, instr.Greedy, codec.ROperands{A: dst, B: voidRef, Immediate: uint32(base)})
	if err != nil {
		return nil, err
	}
	w3, err := codec.EncodeT(codec.MUL, instr.Greedy, codec.TOperands{A: dst, B: dst, C: scratch})
	if err != nil {
		return nil, err
	}
	w4, err := codec.EncodeR(codec.ADDIU, instr.Greedy, codec.ROperands{A: dst, B: dst, Immediate: uint32(remainder)})
	if err != nil {
		return nil, err
	}
	w5, err := codec.EncodeE(codec.LUIU, instr.Greedy, codec.EOperands{A: scratch, Immediate: hi})
	if err != nil {
		return nil, err
	}
	w6, err := codec.EncodeT(codec.ADD, instr.Greedy, codec.TOperands{A: dst, B: dst, C: scratch})
	if err != nil {
		return nil, err
	}
	return []codec.Word{w1, w2, w3, w4, w5, w6}, nil
}
