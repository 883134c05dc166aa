package codec

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRefRoundTrip(t *testing.T) {
	cases := []Ref{
		{Set: VOID, Direct: true, Index: 0},
		{Set: LOCAL, Direct: true, Index: 7},
		{Set: LOCAL, Direct: false, Index: 255},
		{Set: PARAMETER, Direct: true, Index: 1},
		{Set: CLOSURE_LOCAL, Direct: false, Index: 42},
	}
	for _, want := range cases {
		got, err := DecodeRef(EncodeRef(want))
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
}

func TestRefIllegalVoid(t *testing.T) {
	bad := Ref{Set: VOID, Direct: false, Index: 3}
	_, err := DecodeRef(EncodeRef(bad))
	assert.ErrorIs(t, err, ErrEncodingError)
}

func TestFormatNRoundTrip(t *testing.T) {
	w, err := EncodeN(HALT, false)
	require.NoError(t, err)
	op, _, err := DecodeN(w)
	require.NoError(t, err)
	assert.Equal(t, HALT, op)
	assert.False(t, w.Greedy())
}

func TestFormatSRoundTrip(t *testing.T) {
	ops := SOperands{A: Ref{Set: LOCAL, Direct: true, Index: 3}}
	w, err := EncodeS(DELETE, true, ops)
	require.NoError(t, err)
	op, got, err := DecodeS(w)
	require.NoError(t, err)
	assert.Equal(t, DELETE, op)
	assert.Equal(t, ops, got)
	assert.True(t, w.Greedy())
}

func TestFormatDRoundTrip(t *testing.T) {
	ops := DOperands{
		A: Ref{Set: LOCAL, Direct: true, Index: 1},
		B: Ref{Set: LOCAL, Direct: false, Index: 200},
	}
	w, err := EncodeD(COPY, false, ops)
	require.NoError(t, err)
	op, got, err := DecodeD(w)
	require.NoError(t, err)
	assert.Equal(t, COPY, op)
	assert.Equal(t, ops, got)
}

func TestFormatTRoundTrip(t *testing.T) {
	ops := TOperands{
		A: Ref{Set: LOCAL, Direct: true, Index: 1},
		B: Ref{Set: LOCAL, Direct: true, Index: 2},
		C: Ref{Set: LOCAL, Direct: true, Index: 3},
	}
	w, err := EncodeT(ADD, false, ops)
	require.NoError(t, err)
	op, got, err := DecodeT(w)
	require.NoError(t, err)
	assert.Equal(t, ADD, op)
	assert.Equal(t, ops, got)
}

func TestFormatFRoundTrip(t *testing.T) {
	ops := FOperands{A: Ref{Set: LOCAL, Direct: true, Index: 5}, Immediate: 0x3F800000}
	w, err := EncodeF(FLOAT, false, ops)
	require.NoError(t, err)
	op, got, err := DecodeF(w)
	require.NoError(t, err)
	assert.Equal(t, FLOAT, op)
	assert.Equal(t, ops, got)
}

func TestFormatERoundTrip(t *testing.T) {
	ops := EOperands{A: Ref{Set: LOCAL, Direct: true, Index: 9}, Immediate: immediate36Mask}
	w, err := EncodeE(LUI, false, ops)
	require.NoError(t, err)
	op, got, err := DecodeE(w)
	require.NoError(t, err)
	assert.Equal(t, LUI, op)
	assert.Equal(t, ops, got)
}

func TestFormatRRoundTrip(t *testing.T) {
	ops := ROperands{
		A:         Ref{Set: LOCAL, Direct: true, Index: 1},
		B:         Ref{Set: LOCAL, Direct: true, Index: 2},
		Immediate: immediate24Mask,
	}
	w, err := EncodeR(ADDI, false, ops)
	require.NoError(t, err)
	op, got, err := DecodeR(w)
	require.NoError(t, err)
	assert.Equal(t, ADDI, op)
	assert.Equal(t, ops, got)
}

func TestFormatMRoundTrip(t *testing.T) {
	ops := MOperands{
		A:         Ref{Set: LOCAL, Direct: true, Index: 1},
		B:         Ref{Set: LOCAL, Direct: false, Index: 2},
		Immediate: immediate16Mask,
		SubSpec:   0xAB,
	}
	w, err := EncodeM(SM, false, ops)
	require.NoError(t, err)
	op, got, err := DecodeM(w)
	require.NoError(t, err)
	assert.Equal(t, SM, op)
	assert.Equal(t, ops, got)
}

// TestDecodeFacade exercises the generic Decode entry point used by the
// executor loop with one format T word.
func TestDecodeFacade(t *testing.T) {
	w, err := EncodeT(ADD, false, TOperands{
		A: Ref{Set: LOCAL, Direct: true, Index: 1},
		B: Ref{Set: LOCAL, Direct: true, Index: 2},
		C: Ref{Set: LOCAL, Direct: true, Index: 3},
	})
	require.NoError(t, err)
	op, ops, err := Decode(w)
	require.NoError(t, err)
	assert.Equal(t, ADD, op)
	_, ok := ops.(TOperands)
	assert.True(t, ok)
}

func TestDecodeUnknownWord(t *testing.T) {
	_, _, err := Decode(Word(0xFFFFFFFFFFFFFFFF))
	assert.ErrorIs(t, err, ErrEncodingError)
}

func TestWordGreedyFlag(t *testing.T) {
	w, err := EncodeN(NOP, true)
	require.NoError(t, err)
	assert.True(t, w.Greedy())
	assert.False(t, w.WithGreedy(false).Greedy())
}

func TestFormatMismatch(t *testing.T) {
	w, err := EncodeN(HALT, false)
	require.NoError(t, err)
	_, _, err = DecodeS(w)
	assert.ErrorIs(t, err, ErrEncodingError)
}
