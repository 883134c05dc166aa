package regval

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVectorPushPopLen(t *testing.T) {
	v := VectorCell(nil)
	v, err := VectorPush(v, IntCell(1))
	require.NoError(t, err)
	v, err = VectorPush(v, IntCell(2))
	require.NoError(t, err)

	n, err := VectorLen(v)
	require.NoError(t, err)
	assert.Equal(t, UintCell(2), n)

	v, popped, err := VectorPop(v)
	require.NoError(t, err)
	assert.Equal(t, IntCell(2), popped)

	n, err = VectorLen(v)
	require.NoError(t, err)
	assert.Equal(t, UintCell(1), n)
}

func TestVectorAtOutOfRange(t *testing.T) {
	v := VectorCell([]Cell{IntCell(1)})
	_, err := VectorAt(v, IntCell(5))
	assert.ErrorIs(t, err, ErrBoundsError)
}

func TestStructInsertKeysRemove(t *testing.T) {
	s := StructCell(map[uint64]Cell{})
	s, err := StructInsert(s, 1, IntCell(10))
	require.NoError(t, err)

	keys, err := StructKeys(s)
	require.NoError(t, err)
	vec, err := requireVector(keys)
	require.NoError(t, err)
	require.Len(t, vec, 1)
	assert.Equal(t, AtomCell(1), vec[0])

	s, removed, err := StructRemove(s, 1)
	require.NoError(t, err)
	assert.Equal(t, IntCell(10), removed)

	keys, err = StructKeys(s)
	require.NoError(t, err)
	vec, err = requireVector(keys)
	require.NoError(t, err)
	assert.Len(t, vec, 0)
}

func TestContainerTypeErrors(t *testing.T) {
	_, err := VectorLen(IntCell(1))
	assert.ErrorIs(t, err, ErrTypeError)

	_, err = StructKeys(IntCell(1))
	assert.ErrorIs(t, err, ErrTypeError)
}
