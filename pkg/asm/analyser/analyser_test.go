package analyser

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/marekjm/viuavm-sub001/pkg/asm/parser"
)

func parseFn(t *testing.T, src string) *parser.Function {
	t.Helper()
	prog, err := parser.Parse(src)
	require.NoError(t, err)
	require.Len(t, prog.Functions, 1)
	return prog.Functions[0]
}

func TestReadUndefinedRegisterIsAnError(t *testing.T) {
	fn := parseFn(t, `
.function: main/0
    copy %0 local %1 local
    return %0 local
.end
`)
	diags, err := Analyse(fn, nil)
	require.Error(t, err)
	require.IsType(t, &Error{}, err)
	require.Equal(t, "rule-1-read-must-be-defined", diags[0].Rule)
}

func TestMoveErasesSourceRegister(t *testing.T) {
	fn := parseFn(t, `
.function: main/0
    izero %1 local
    move %0 local %1 local
    copy %2 local %1 local
.end
`)
	_, err := Analyse(fn, nil)
	require.Error(t, err)
	sErr := err.(*Error)
	require.Contains(t, sErr.Diagnostics[0].Message, "erased")
}

func TestMoveThroughPointerDoesNotErase(t *testing.T) {
	fn := parseFn(t, `
.function: main/0
    izero %1 local
    move %0 local *1 local
    copy %2 local %1 local
    return %2 local
.end
`)
	_, err := Analyse(fn, nil)
	require.NoError(t, err)
}

func TestUnusedValueFlaggedAtReturn(t *testing.T) {
	fn := parseFn(t, `
.function: main/0
    izero %1 local
    izero %2 local
    return %1 local
.end
`)
	diags, err := Analyse(fn, nil)
	require.Error(t, err) // spec.md §7: StaticAnalysisError is fatal at compile
	require.IsType(t, &Error{}, err)
	found := false
	for _, d := range diags {
		if d.Rule == "rule-3-unused-value" && d.Register.Index == 2 {
			require.Equal(t, SeverityError, d.Severity)
			found = true
		}
	}
	require.True(t, found)
}

func TestRegisterZeroExemptFromUnusedValue(t *testing.T) {
	fn := parseFn(t, `
.function: main/0
    izero %0 local
    return %0 local
.end
`)
	diags, err := Analyse(fn, nil)
	require.NoError(t, err)
	for _, d := range diags {
		require.NotEqual(t, "rule-3-unused-value", d.Rule)
	}
}

func TestBranchForkSuppressesUnusedWhenUsedOnOneArm(t *testing.T) {
	fn := parseFn(t, `
.function: main/0
    izero %1 local
    izero %2 local
    jumpif %2 local used
    return %2 local
used:
    copy %0 local %1 local
    return %2 local
.end
`)
	diags, err := Analyse(fn, nil)
	require.NoError(t, err)
	for _, d := range diags {
		require.NotEqual(t, 1, d.Register.Index, "register 1 is used on the taken branch, must not be flagged")
	}
}

func TestBackwardJumpNotAnalysedPastLoop(t *testing.T) {
	fn := parseFn(t, `
.function: main/0
    izero %1 local
loop:
    addi %1 local %1 local -1
    jumpif %1 local loop
    return %1 local
.end
`)
	_, err := Analyse(fn, nil)
	require.NoError(t, err)
}
