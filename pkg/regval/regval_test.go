package regval

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marekjm/viuavm-sub001/pkg/codec"
)

func newFile() *File {
	return &File{
		Local:     make([]Cell, 8),
		Parameter: make([]Cell, 4),
		Argument:  make([]Cell, 4),
		Static:    make([]Cell, 4),
		Global:    make([]Cell, 4),
		Closure:   make([]Cell, 4),
	}
}

func TestVoidReadIsEmpty(t *testing.T) {
	f := newFile()
	c, err := f.Fetch(codec.Ref{Set: codec.VOID, Direct: true, Index: 0})
	require.NoError(t, err)
	assert.True(t, c.IsEmpty())
}

func TestVoidWriteIsNoop(t *testing.T) {
	f := newFile()
	err := f.Save(codec.Ref{Set: codec.VOID, Direct: true, Index: 0}, IntCell(42))
	require.NoError(t, err)
	c, err := f.Fetch(codec.Ref{Set: codec.VOID, Direct: true, Index: 0})
	require.NoError(t, err)
	assert.True(t, c.IsEmpty())
}

func TestSaveFetchReset(t *testing.T) {
	f := newFile()
	ref := codec.Ref{Set: codec.LOCAL, Direct: true, Index: 1}
	require.NoError(t, f.Save(ref, IntCell(42)))
	got, err := f.Fetch(ref)
	require.NoError(t, err)
	assert.Equal(t, IntCell(42), got)

	require.NoError(t, f.Reset(ref))
	got, err = f.Fetch(ref)
	require.NoError(t, err)
	assert.True(t, got.IsEmpty())
}

func TestFetchOutOfRangeIsBoundsError(t *testing.T) {
	f := newFile()
	_, err := f.Fetch(codec.Ref{Set: codec.LOCAL, Direct: true, Index: 200})
	assert.ErrorIs(t, err, ErrBoundsError)
}

func TestDereferenceUnsupported(t *testing.T) {
	f := newFile()
	_, err := f.Fetch(codec.Ref{Set: codec.LOCAL, Direct: false, Index: 1})
	assert.ErrorIs(t, err, ErrUnsupportedAccess)
}

func TestAddIntegers(t *testing.T) {
	got, err := Add(IntCell(41), IntCell(1), nil)
	require.NoError(t, err)
	assert.Equal(t, IntCell(42), got)
}

func TestAddTypeMismatch(t *testing.T) {
	_, err := Add(AtomCell(1), IntCell(1), nil)
	assert.ErrorIs(t, err, ErrTypeError)
}

func TestAddVoidLHSIsTypeError(t *testing.T) {
	// Property 4: ADD with a VOID lhs and integer rhs is a TypeError for
	// register forms (the VOID-as-zero rule only applies to immediate forms,
	// which never call regval.Add with an empty lhs).
	_, err := Add(Cell{}, IntCell(1), nil)
	assert.ErrorIs(t, err, ErrTypeError)
}

func TestDivByZero(t *testing.T) {
	_, err := Div(IntCell(10), IntCell(0))
	assert.ErrorIs(t, err, ErrDivisionByZero)
}

type pointerSpace struct {
	table map[uint64]PointerMeta
}

func newPointerSpace() *pointerSpace { return &pointerSpace{table: map[uint64]PointerMeta{}} }

func (p *pointerSpace) Lookup(addr uint64) (PointerMeta, bool) {
	m, ok := p.table[addr]
	return m, ok
}

func (p *pointerSpace) Register(meta PointerMeta) { p.table[meta.Address] = meta }

func TestPointerArithmeticBounds(t *testing.T) {
	// Property 5: pointer p with size=16, offset=16 -> BoundsError; offset=15
	// -> new pointer with size=1.
	ptrs := newPointerSpace()
	ptrs.Register(PointerMeta{Address: 0x1000, Size: 16, Parent: 0x1000})
	p := PointerCell(0x1000)

	_, err := Add(p, IntCell(16), ptrs)
	assert.ErrorIs(t, err, ErrBoundsError)

	got, err := Add(p, IntCell(15), ptrs)
	require.NoError(t, err)
	require.Equal(t, PointerKind, got.Kind)
	meta, ok := ptrs.Lookup(got.Pointer)
	require.True(t, ok)
	assert.EqualValues(t, 1, meta.Size)
}

func TestBitRotate(t *testing.T) {
	got, err := BitRol(UintCell(1), UintCell(1))
	require.NoError(t, err)
	assert.Equal(t, UintCell(2), got)

	got, err = BitRor(UintCell(2), UintCell(1))
	require.NoError(t, err)
	assert.Equal(t, UintCell(1), got)
}

func TestCheckedAddOverflow(t *testing.T) {
	_, err := CheckedAdd(IntCell(int64(1)<<62), IntCell(int64(1)<<62))
	assert.ErrorIs(t, err, ErrArithmeticOverflow)
}

func TestSaturatingAddClamps(t *testing.T) {
	got, err := SaturatingAdd(UintCell(^uint64(0)), UintCell(1))
	require.NoError(t, err)
	assert.Equal(t, UintCell(^uint64(0)), got)
}

func TestWrappingAddWraps(t *testing.T) {
	got, err := WrappingAdd(UintCell(^uint64(0)), UintCell(1))
	require.NoError(t, err)
	assert.Equal(t, UintCell(0), got)
}
