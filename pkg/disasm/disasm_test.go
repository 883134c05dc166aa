package disasm

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/marekjm/viuavm-sub001/pkg/codec"
	"github.com/marekjm/viuavm-sub001/pkg/process"
)

func mustWord(t *testing.T, w codec.Word, err error) codec.Word {
	t.Helper()
	require.NoError(t, err)
	return w
}

func localRef(i uint8) codec.Ref { return codec.Ref{Set: codec.LOCAL, Direct: true, Index: i} }

func TestInstructionRendersPlainFormats(t *testing.T) {
	w := mustWord(t, codec.EncodeR(codec.ADDI, false, codec.ROperands{A: localRef(1), B: localRef(0), Immediate: 5}))
	line, err := Instruction(&process.Module{}, w)
	require.NoError(t, err)
	require.Equal(t, "addi %1 local %0 local 5", line)
}

func TestInstructionRendersAtomLiteral(t *testing.T) {
	m := &process.Module{Strtab: append([]byte("callee"), 0)}
	w := mustWord(t, codec.EncodeE(codec.ATOMC, false, codec.EOperands{A: localRef(2), Immediate: 0}))
	line, err := Instruction(m, w)
	require.NoError(t, err)
	require.Equal(t, "atom %2 local 'callee'", line)
}

func TestModuleRendersFunctionSections(t *testing.T) {
	m := &process.Module{
		Text: []codec.Word{
			mustWord(t, codec.EncodeS(codec.IZERO, false, codec.SOperands{A: localRef(0)})),
			mustWord(t, codec.EncodeS(codec.RETURN, false, codec.SOperands{A: localRef(0)})),
		},
		Functions: map[string]process.FunctionEntry{
			"main": {Name: "main", EntryOffset: 0, Arity: 0},
		},
		Blocks: map[string]process.BlockEntry{},
	}
	out, err := Module(m)
	require.NoError(t, err)
	require.Contains(t, out, ".function: main/0")
	require.Contains(t, out, "izero %0 local")
	require.Contains(t, out, ".end")
}
