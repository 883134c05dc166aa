package process

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/marekjm/viuavm-sub001/pkg/codec"
	"github.com/marekjm/viuavm-sub001/pkg/regval"
)

// TestCallReturnThreadsResult exercises frame management end to end: FRAME
// reserves the argument buffer, CALL pushes a new frame addressing callee,
// and RETURN copies its result back into the caller's register (spec §4.5).
func TestCallReturnThreadsResult(t *testing.T) {
	// callee: local 0 = 99, return %0
	text := []codec.Word{
		// main: frame %0 ; call %0 <- callee ; halt
		mustWord(t, codec.EncodeS(FRAME, false, codec.SOperands{A: localRef(0)})),
		mustWord(t, codec.EncodeD(CALL, false, codec.DOperands{A: localRef(0), B: localRef(1)})),
		mustWord(t, codec.EncodeN(HALT, false)),
		// callee body starts here (offset 3): allocate_registers %1 ; addi ; return
		mustWord(t, codec.EncodeS(ALLOCATE_REGISTERS, false, codec.SOperands{A: localRef(1)})),
		mustWord(t, codec.EncodeR(ADDI, false, codec.ROperands{A: localRef(0), B: localRef(0), Immediate: 99})),
		mustWord(t, codec.EncodeS(RETURN, false, codec.SOperands{A: localRef(0)})),
	}
	m := &Module{
		Text: text,
		Functions: map[string]FunctionEntry{
			"main":   {Name: "main", EntryOffset: 0, Arity: 0},
			"callee": {Name: "callee", EntryOffset: 3, Arity: 0},
		},
	}
	p := NewProcess(m, 0)
	p.Spawn(m.Functions["main"], 2)

	// main's register %1 must hold an atom naming "callee" before CALL runs.
	f, err := p.RegisterFile()
	require.NoError(t, err)
	require.NoError(t, f.Save(localRef(1), regval.AtomCell(p.Atoms.Intern("callee"))))

	exec := NewExecutor(p)
	for i := 0; i < 10 && !p.Exited; i++ {
		_, err := exec.RunBundle(context.Background())
		require.NoError(t, err)
	}
	require.True(t, p.Exited)

	top, err := p.Stacks[0].Top()
	require.NoError(t, err)
	require.Equal(t, int64(99), top.Registers[0].Int)
}

// TestSpawnedProcessJoins exercises PROCESS + JOIN through a Scheduler run:
// the parent spawns a child, the child halts immediately, and JOIN on the
// parent's side must unblock once it has (spec §5, S-series join scenario).
func TestSpawnedProcessJoins(t *testing.T) {
	text := []codec.Word{
		// main: frame %0 ; process %1, %2 ; join %3, %1, %4 ; halt
		mustWord(t, codec.EncodeS(FRAME, false, codec.SOperands{A: localRef(0)})),
		mustWord(t, codec.EncodeD(PROCESS, false, codec.DOperands{A: localRef(1), B: localRef(2)})),
		mustWord(t, codec.EncodeT(JOIN, false, codec.TOperands{A: localRef(3), B: localRef(1), C: localRef(4)})),
		mustWord(t, codec.EncodeN(HALT, false)),
		// child body (offset 4): halt
		mustWord(t, codec.EncodeN(HALT, false)),
	}
	m := &Module{
		Text: text,
		Functions: map[string]FunctionEntry{
			"main":  {Name: "main", EntryOffset: 0, Arity: 0},
			"child": {Name: "child", EntryOffset: 4, Arity: 0},
		},
	}
	parent := NewProcess(m, 0)
	parent.Spawn(m.Functions["main"], 5)

	f, err := parent.RegisterFile()
	require.NoError(t, err)
	require.NoError(t, f.Save(localRef(2), regval.AtomCell(parent.Atoms.Intern("child"))))

	sched := NewScheduler(0, nil)
	sched.Spawn(parent)
	require.NoError(t, sched.Run(context.Background()))

	require.True(t, parent.Exited)
	require.Len(t, parent.Spawned, 1)
	require.True(t, parent.Spawned[0].Exited)
}
