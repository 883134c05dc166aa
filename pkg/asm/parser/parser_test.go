package parser

import (
	"testing"

	"github.com/stretchr/testify/require"
)

const sample = `
.function: main/0
    izero %1 local
    addi %1 local %1 local 41
    add %2 local %1 local %1 local
loop:
    not %3 local %2 local
    return %2 local
.end
`

func TestParseFunctionBody(t *testing.T) {
	prog, err := Parse(sample)
	require.NoError(t, err)
	require.Len(t, prog.Functions, 1)

	fn := prog.Functions[0]
	require.Equal(t, "main", fn.Name)
	require.Equal(t, 0, fn.Arity)
	require.Len(t, fn.Instructions, 5)
	require.Equal(t, "izero", fn.Instructions[0].Mnemonic)
	require.Equal(t, "return", fn.Instructions[4].Mnemonic)

	idx, ok := fn.Labels["loop"]
	require.True(t, ok)
	require.Equal(t, 3, idx)
}

func TestParseDirectivesAndAttributes(t *testing.T) {
	src := `
.import: std/posix
.extern_function: puts/1
.function: main/0 [[no_tco]]
    return %0 local
.end
`
	prog, err := Parse(src)
	require.NoError(t, err)
	require.Equal(t, []string{"std/posix"}, prog.Imports)
	require.Len(t, prog.ExternFunctions, 1)
	require.Equal(t, "puts", prog.ExternFunctions[0].Name)
	require.Equal(t, 1, prog.ExternFunctions[0].Arity)
	require.Equal(t, []string{"no_tco"}, prog.Functions[0].Attributes)
}

func TestParseGreedyInstruction(t *testing.T) {
	src := `
.function: main/0
    !copy %1 local %0 local
    return %0 local
.end
`
	prog, err := Parse(src)
	require.NoError(t, err)
	require.True(t, prog.Functions[0].Instructions[0].Greedy)
}
