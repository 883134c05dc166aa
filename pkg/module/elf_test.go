package module

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/marekjm/viuavm-sub001/pkg/codec"
	"github.com/marekjm/viuavm-sub001/pkg/process"
)

func sampleModule() *process.Module {
	return &process.Module{
		Text: []codec.Word{
			codec.Word(0x0102030405060708),
			codec.Word(0x1112131415161718),
		},
		Strtab: append(append([]byte("main"), 0), append([]byte("callee"), 0)...),
		Functions: map[string]process.FunctionEntry{
			"main":   {Name: "main", EntryOffset: 0, Arity: 0},
			"callee": {Name: "callee", EntryOffset: 1, Arity: 2},
		},
		Blocks: map[string]process.BlockEntry{
			"cleanup": {Name: "cleanup", EntryOffset: 1},
		},
		Signatures: []process.Signature{
			{Name: "std::io::print", IsBlock: false, ImportOf: "std"},
		},
		Metadata: map[string]string{
			"producer": "viuac",
		},
	}
}

func TestWriteReadRoundTrip(t *testing.T) {
	src := sampleModule()

	raw, err := Write(src)
	require.NoError(t, err)
	require.NotEmpty(t, raw)

	// ELF64 ident: magic + class + data + version.
	require.Equal(t, []byte{0x7f, 'E', 'L', 'F'}, raw[:4])
	require.Equal(t, byte(elfClass64), raw[4])
	require.Equal(t, byte(elfDataLSB), raw[5])

	got, err := Read(raw)
	require.NoError(t, err)

	require.Equal(t, src.Text, got.Text)
	require.Equal(t, src.Strtab, got.Strtab)
	require.Equal(t, src.Functions, got.Functions)
	require.Equal(t, src.Blocks, got.Blocks)
	require.Equal(t, src.Signatures, got.Signatures)
	require.Equal(t, src.Metadata, got.Metadata)
}

// TestWriteEncodesIdentMagicInPTNullOffset exercises spec.md line 148: the
// PT_NULL program header's p_offset field must literally hold the 8-byte VM
// ident, not just match the magic's length.
func TestWriteEncodesIdentMagicInPTNullOffset(t *testing.T) {
	raw, err := Write(sampleModule())
	require.NoError(t, err)

	require.Equal(t, []byte(magic), raw[ptNullOffsetField:ptNullOffsetField+8])
}

// TestReadRejectsCorruptMagic confirms Read refuses a file whose PT_NULL
// ident does not match, rather than silently decoding it.
func TestReadRejectsCorruptMagic(t *testing.T) {
	raw, err := Write(sampleModule())
	require.NoError(t, err)

	corrupt := append([]byte(nil), raw...)
	corrupt[ptNullOffsetField] ^= 0xff

	_, err = Read(corrupt)
	require.Error(t, err)
	var merr *Error
	require.ErrorAs(t, err, &merr)
	require.Equal(t, "read", merr.Stage)
}

func TestWriteReadEmptyModule(t *testing.T) {
	src := &process.Module{
		Functions: map[string]process.FunctionEntry{},
		Blocks:    map[string]process.BlockEntry{},
		Metadata:  map[string]string{},
	}

	raw, err := Write(src)
	require.NoError(t, err)

	got, err := Read(raw)
	require.NoError(t, err)
	require.Empty(t, got.Text)
	require.Empty(t, got.Functions)
	require.Empty(t, got.Blocks)
	require.Empty(t, got.Signatures)
	require.Empty(t, got.Metadata)
}
