package process

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/marekjm/viuavm-sub001/pkg/codec"
	"github.com/marekjm/viuavm-sub001/pkg/regval"
)

func localRef(i uint8) codec.Ref { return codec.Ref{Set: codec.LOCAL, Direct: true, Index: i} }

func mustWord(t *testing.T, w codec.Word, err error) codec.Word {
	t.Helper()
	require.NoError(t, err)
	return w
}

// TestArithmeticProgram runs izero/addi/add/return through the executor and
// checks that returning from the bottom frame halts the process, exercising
// the data path spec's S1 end-to-end scenario describes.
func TestArithmeticProgram(t *testing.T) {
	text := []codec.Word{
		mustWord(t, codec.EncodeS(IZERO, false, codec.SOperands{A: localRef(0)})),
		mustWord(t, codec.EncodeR(ADDI, false, codec.ROperands{A: localRef(1), B: localRef(0), Immediate: 5})),
		mustWord(t, codec.EncodeT(ADD, false, codec.TOperands{A: localRef(2), B: localRef(1), C: localRef(1)})),
		mustWord(t, codec.EncodeS(RETURN, false, codec.SOperands{A: localRef(2)})),
	}
	m := &Module{
		Text:      text,
		Functions: map[string]FunctionEntry{"main": {Name: "main", EntryOffset: 0, Arity: 0}},
	}
	p := NewProcess(m, 0)
	p.Spawn(m.Functions["main"], 3)

	exec := NewExecutor(p)
	res, err := exec.Run(context.Background())
	require.NoError(t, err)
	require.True(t, res.Halted)
	require.True(t, p.Exited)
}

// TestPreemptionAccounting exercises property 3: a bundle of non-greedy
// instructions stops after Limits.PreemptionThreshold instructions even
// though the process is far from halting.
func TestPreemptionAccounting(t *testing.T) {
	text := make([]codec.Word, 10)
	for i := range text {
		text[i] = mustWord(t, codec.EncodeN(NOP, false))
	}
	m := &Module{Text: text, Functions: map[string]FunctionEntry{"main": {EntryOffset: 0, Arity: 0}}}
	p := NewProcess(m, 0, WithPreemptionThreshold(2))
	p.Spawn(m.Functions["main"], 0)

	exec := NewExecutor(p)
	res, err := exec.RunBundle(context.Background())
	require.NoError(t, err)
	require.True(t, res.Preempted)
	require.False(t, res.Halted)

	stack, err := p.CurrentStack()
	require.NoError(t, err)
	require.Equal(t, uint64(2), stack.IP)
}

// TestGreedyBundleRunsThrough verifies that instructions carrying the
// greedy flag are not interrupted even past the preemption threshold.
func TestGreedyBundleRunsThrough(t *testing.T) {
	text := make([]codec.Word, 5)
	for i := range text {
		text[i] = mustWord(t, codec.EncodeN(NOP, true))
	}
	text[4] = mustWord(t, codec.EncodeN(HALT, false))
	m := &Module{Text: text, Functions: map[string]FunctionEntry{"main": {EntryOffset: 0, Arity: 0}}}
	p := NewProcess(m, 0, WithPreemptionThreshold(2))
	p.Spawn(m.Functions["main"], 0)

	exec := NewExecutor(p)
	res, err := exec.RunBundle(context.Background())
	require.NoError(t, err)
	require.True(t, res.Halted)
}

// TestDivisionByZeroThrows exercises the throwable-exception path: DIV by a
// zero register produces a *Exception with TagDivisionByZero, not a panic.
func TestDivisionByZeroThrows(t *testing.T) {
	text := []codec.Word{
		mustWord(t, codec.EncodeS(IZERO, false, codec.SOperands{A: localRef(0)})),
		mustWord(t, codec.EncodeR(ADDI, false, codec.ROperands{A: localRef(1), B: localRef(0), Immediate: 7})),
		mustWord(t, codec.EncodeT(DIV, false, codec.TOperands{A: localRef(2), B: localRef(1), C: localRef(0)})),
	}
	m := &Module{Text: text, Functions: map[string]FunctionEntry{"main": {EntryOffset: 0, Arity: 0}}}
	p := NewProcess(m, 0)
	p.Spawn(m.Functions["main"], 3)

	exec := NewExecutor(p)
	_, err := exec.Run(context.Background())
	require.Error(t, err)
	exc, ok := err.(*Exception)
	require.True(t, ok)
	require.Equal(t, TagDivisionByZero, exc.Tag)
}

// TestMailboxSendReceive exercises DRAW reading a value a prior Send
// enqueued, satisfying spec §3 "mailbox" FIFO delivery.
func TestMailboxSendReceive(t *testing.T) {
	text := []codec.Word{
		mustWord(t, codec.EncodeS(DRAW, false, codec.SOperands{A: localRef(0)})),
		mustWord(t, codec.EncodeN(HALT, false)),
	}
	m := &Module{Text: text, Functions: map[string]FunctionEntry{"main": {EntryOffset: 0, Arity: 0}}}
	p := NewProcess(m, 0)
	p.Spawn(m.Functions["main"], 1)
	require.True(t, p.Mailbox.Send([16]byte{1}, regval.IntCell(42)))

	exec := NewExecutor(p)
	res, err := exec.Run(context.Background())
	require.NoError(t, err)
	require.True(t, res.Halted)

	top, err := p.Stacks[0].Top()
	require.NoError(t, err)
	require.Equal(t, int64(42), top.Registers[0].Int)
}

// TestJumpLoopCountsDown exercises JUMP/JUMPIF: a decrement loop runs until
// the counter register reads zero, the way a `loop:`-labelled backward jump
// would once pkg/asm/codegen resolves a label to this relative offset.
func TestJumpLoopCountsDown(t *testing.T) {
	text := []codec.Word{
		mustWord(t, codec.EncodeS(IZERO, false, codec.SOperands{A: localRef(0)})),                                    // 0
		mustWord(t, codec.EncodeR(ADDI, false, codec.ROperands{A: localRef(1), B: localRef(0), Immediate: 3})),       // 1: counter = 3
		mustWord(t, codec.EncodeR(ADDI, false, codec.ROperands{A: localRef(1), B: localRef(1), Immediate: -1 & 0xFFFFFF})), // 2: loop: counter -= 1
		mustWord(t, codec.EncodeF(JUMPIF, false, codec.FOperands{A: localRef(1), Immediate: ^uint32(0)})),     // 3: if counter != 0, goto 2
		mustWord(t, codec.EncodeS(RETURN, false, codec.SOperands{A: localRef(1)})),                                   // 4
	}
	m := &Module{Text: text, Functions: map[string]FunctionEntry{"main": {EntryOffset: 0, Arity: 0}}}
	p := NewProcess(m, 0)
	p.Spawn(m.Functions["main"], 2)

	exec := NewExecutor(p)
	res, err := exec.Run(context.Background())
	require.NoError(t, err)
	require.True(t, res.Halted)

	top, err := p.Stacks[0].Top()
	require.NoError(t, err)
	require.Equal(t, int64(0), top.Registers[1].Int)
}

// TestMailboxReceiveTimesOut confirms DRAW/RECEIVE surfaces MailboxEmpty
// rather than blocking forever when nothing is ever sent.
func TestMailboxReceiveTimesOut(t *testing.T) {
	mb := NewMailbox(1)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err := mb.Receive(ctx, 5*time.Millisecond)
	require.Error(t, err)
	exc, ok := err.(*Exception)
	require.True(t, ok)
	require.Equal(t, TagMailboxEmpty, exc.Tag)
}
