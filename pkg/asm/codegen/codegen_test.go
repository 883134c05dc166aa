package codegen

import (
	"context"
	"strconv"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/marekjm/viuavm-sub001/pkg/asm/parser"
	"github.com/marekjm/viuavm-sub001/pkg/process"
)

func mustParse(t *testing.T, src string) *parser.Program {
	t.Helper()
	prog, err := parser.Parse(src)
	require.NoError(t, err)
	return prog
}

func run(t *testing.T, m *process.Module, registers int) *process.Process {
	t.Helper()
	p := process.NewProcess(m, 0)
	p.Spawn(m.Functions["main"], registers)
	exec := process.NewExecutor(p)
	res, err := exec.Run(context.Background())
	require.NoError(t, err)
	require.True(t, res.Halted)
	return p
}

// TestGenerateArithmetic exercises the plain register-format path (S/R/T)
// with no branching.
func TestGenerateArithmetic(t *testing.T) {
	prog := mustParse(t, `
.function: main/0
    izero %0 local
    addi %1 local %0 local 5
    add %2 local %1 local %1 local
    return %2 local
.end
`)
	m, err := Generate(prog)
	require.NoError(t, err)
	require.Len(t, m.Text, 4)

	p := run(t, m, 3)
	top, err := p.Stacks[0].Top()
	require.NoError(t, err)
	require.Equal(t, int64(10), top.Registers[2].Int)
}

// TestGenerateJumpLoop exercises label resolution and JUMPIF's relative
// offset across a backward-jumping loop body.
func TestGenerateJumpLoop(t *testing.T) {
	prog := mustParse(t, `
.function: main/0
    izero %1 local
    addi %1 local %1 local 3
loop:
    addi %1 local %1 local -1
    jumpif %1 local loop
    return %1 local
.end
`)
	m, err := Generate(prog)
	require.NoError(t, err)

	p := run(t, m, 2)
	top, err := p.Stacks[0].Top()
	require.NoError(t, err)
	require.Equal(t, int64(0), top.Registers[1].Int)
}

// TestGenerateForwardJump exercises a forward (skip-ahead) JUMP and confirms
// the skipped instruction never runs.
func TestGenerateForwardJump(t *testing.T) {
	prog := mustParse(t, `
.function: main/0
    izero %1 local
    jump skip
    addi %1 local %1 local 99
skip:
    addi %1 local %1 local 1
    return %1 local
.end
`)
	m, err := Generate(prog)
	require.NoError(t, err)

	p := run(t, m, 2)
	top, err := p.Stacks[0].Top()
	require.NoError(t, err)
	require.Equal(t, int64(1), top.Registers[1].Int)
}

// TestGenerateCallThroughAtomRegister exercises ATOMC loading a callee's
// name into a register (the `atom` mnemonic) followed by a CALL that
// addresses it, the two-step sequence spec.md's CALL format (two registers,
// no embedded name) requires.
func TestGenerateCallThroughAtomRegister(t *testing.T) {
	prog := mustParse(t, `
.function: callee/0
    allocate_registers %1 local
    izero %0 local
    addi %0 local %0 local 7
    return %0 local
.end

.function: main/0
    frame %0 local
    atom %2 local 'callee'
    call %1 local %2 local
    return %1 local
.end
`)
	m, err := Generate(prog)
	require.NoError(t, err)
	require.Contains(t, m.Functions, "callee")
	require.Contains(t, m.Functions, "main")

	p := run(t, m, 3)
	top, err := p.Stacks[0].Top()
	require.NoError(t, err)
	require.Equal(t, int64(7), top.Registers[1].Int)
}

// TestGenerateLoadImmediateDecomposition exercises spec.md §8 Property 2:
// every value in its test set must come back out of register 1 bit-exact
// after `li` decomposes it into LUIU/ADDIU (and, for values whose low 28
// bits don't fit a 24-bit immediate, MUL/ADD as well).
func TestGenerateLoadImmediateDecomposition(t *testing.T) {
	values := []string{
		"0", "1", "0x00bedead", "0x00000000deadbeef",
		"0xdeadbeefd0adbeef", "0xdeadbeefdeadbeef", "0xffffffffffffffff",
	}
	for _, lit := range values {
		lit := lit
		t.Run(lit, func(t *testing.T) {
			prog := mustParse(t, `
.function: main/0
    li %1 local %2 local `+lit+`
    return %1 local
.end
`)
			m, err := Generate(prog)
			require.NoError(t, err)

			p := run(t, m, 3)
			top, err := p.Stacks[0].Top()
			require.NoError(t, err)

			want, perr := strconv.ParseUint(lit, 0, 64)
			require.NoError(t, perr)
			require.Equal(t, want, top.Registers[1].Uint)
		})
	}
}

// TestGenerateVoidReturnRequestedIsException exercises spec.md §4.5: a
// caller whose CALL asks for a result (result_to not void) must get a
// VoidAccessError, not a silently empty register, when the callee returns
// through a void operand.
func TestGenerateVoidReturnRequestedIsException(t *testing.T) {
	prog := mustParse(t, `
.function: callee/0
    return void
.end

.function: main/0
    frame %0 local
    atom %2 local 'callee'
    call %1 local %2 local
    return %1 local
.end
`)
	m, err := Generate(prog)
	require.NoError(t, err)

	p := process.NewProcess(m, 0)
	p.Spawn(m.Functions["main"], 3)
	exec := process.NewExecutor(p)
	_, err = exec.Run(context.Background())
	require.Error(t, err)
	exc, ok := err.(*process.Exception)
	require.True(t, ok)
	require.Equal(t, process.TagVoidAccessError, exc.Tag)
}

// TestGenerateUnknownMnemonicIsLinkError confirms an unrecognised mnemonic
// surfaces as a link-time failure rather than panicking.
func TestGenerateUnknownMnemonicIsLinkError(t *testing.T) {
	prog := mustParse(t, `
.function: main/0
    frobnicate %0 local
.end
`)
	_, err := Generate(prog)
	require.Error(t, err)
}
