// Package module implements the on-disk ELF64 envelope a compiled viua unit
// is shipped in (spec.md §6, SPEC_FULL.md §5.9): three program headers
// (PT_NULL carrying an ident magic, PT_INTERP naming the runtime that must
// load it, PT_LOAD covering the text segment) plus named sections for the
// bytecode, the string table, the function/block tables, external
// signatures, and free-form metadata.
//
// Reading reuses github.com/yalue/elf_reader's section-iteration API the
// same way cmd/vm in the pack's eBPF-VM example reads a .o file: parse once
// with elf_reader.ParseELFFile, then walk sections by name. elf_reader is a
// read-only parser — it has no encoder — so the write side is a small
// hand-rolled ELF64 writer built directly against the ELF64 structure
// layout elf_reader itself decodes (see DESIGN.md's pkg/module entry for why
// that half could not be grounded on a third-party library).
package module

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/yalue/elf_reader"

	"github.com/marekjm/viuavm-sub001/pkg/codec"
	"github.com/marekjm/viuavm-sub001/pkg/process"
)

// Interp is the PT_INTERP payload: the runtime a loader should hand this
// module to, mirroring the way a native ELF executable names its dynamic
// linker.
const Interp = "viuavm"

// magic is the 8-byte VM ident spec.md line 148 requires the PT_NULL
// program header's p_offset field to literally hold.
const magic = "\x7fVIUA\x00\x00\x00"

const (
	sectionText       = ".text"
	sectionStrtab     = ".strtab"
	sectionFunctions  = ".functab"
	sectionBlocks     = ".blocktab"
	sectionSignatures = ".signatures"
	sectionMetadata   = ".metadata"
)

// Error wraps a failure to decode or encode a module envelope with the
// section or segment that caused it.
type Error struct {
	Stage string // "read" or "write"
	Msg   string
}

func (e *Error) Error() string { return fmt.Sprintf("module: %s: %s", e.Stage, e.Msg) }

// Write serialises m into the ELF64 envelope spec.md §6 describes. The
// result is what Read expects back.
func Write(m *process.Module) ([]byte, error) {
	text := encodeText(m.Text)
	functab := encodeFunctions(m.Functions)
	blocktab := encodeBlocks(m.Blocks)
	sigtab := encodeSignatures(m.Signatures)
	metatab := encodeMetadata(m.Metadata)

	sections := []namedSection{
		{sectionText, text},
		{sectionStrtab, m.Strtab},
		{sectionFunctions, functab},
		{sectionBlocks, blocktab},
		{sectionSignatures, sigtab},
		{sectionMetadata, metatab},
	}

	return writeELF(sections)
}

// Read decodes an ELF64 envelope written by Write back into a process.Module.
func Read(raw []byte) (*process.Module, error) {
	if err := checkMagic(raw); err != nil {
		return nil, err
	}

	f, err := elf_reader.ParseELFFile(raw)
	if err != nil {
		return nil, &Error{Stage: "read", Msg: err.Error()}
	}

	sections := map[string][]byte{}
	for i := uint16(1); i < f.GetSectionCount(); i++ {
		name, err := f.GetSectionName(i)
		if err != nil {
			return nil, &Error{Stage: "read", Msg: err.Error()}
		}
		content, err := f.GetSectionContent(i)
		if err != nil {
			return nil, &Error{Stage: "read", Msg: err.Error()}
		}
		sections[name] = content
	}

	text, err := decodeText(sections[sectionText])
	if err != nil {
		return nil, &Error{Stage: "read", Msg: err.Error()}
	}
	functions, err := decodeFunctions(sections[sectionFunctions])
	if err != nil {
		return nil, &Error{Stage: "read", Msg: err.Error()}
	}
	blocks, err := decodeBlocks(sections[sectionBlocks])
	if err != nil {
		return nil, &Error{Stage: "read", Msg: err.Error()}
	}
	sigs, err := decodeSignatures(sections[sectionSignatures])
	if err != nil {
		return nil, &Error{Stage: "read", Msg: err.Error()}
	}
	meta, err := decodeMetadata(sections[sectionMetadata])
	if err != nil {
		return nil, &Error{Stage: "read", Msg: err.Error()}
	}

	return &process.Module{
		Text:       text,
		Strtab:     sections[sectionStrtab],
		Functions:  functions,
		Blocks:     blocks,
		Signatures: sigs,
		Metadata:   meta,
	}, nil
}

// ptNullOffsetField is the byte offset, from the start of the file, of the
// PT_NULL program header's p_offset field: the ELF64 header (ehsize bytes)
// is immediately followed by the program header table, and within an
// Elf64_Phdr, p_type and p_flags (4 bytes each) precede p_offset.
const ptNullOffsetField = ehsize + 8

// checkMagic validates that the PT_NULL program header's p_offset field
// literally holds the VM ident magic (spec.md line 148), the way an ELF
// loader checks e_ident before trusting the rest of the file.
func checkMagic(raw []byte) error {
	if len(raw) < ptNullOffsetField+8 {
		return &Error{Stage: "read", Msg: "file too short to contain a PT_NULL ident header"}
	}
	got := raw[ptNullOffsetField : ptNullOffsetField+8]
	if !bytes.Equal(got, []byte(magic)) {
		return &Error{Stage: "read", Msg: fmt.Sprintf("ident magic mismatch: got %x, want %x", got, []byte(magic))}
	}
	return nil
}

func encodeText(words []codec.Word) []byte {
	buf := make([]byte, len(words)*8)
	for i, w := range words {
		binary.LittleEndian.PutUint64(buf[i*8:], uint64(w))
	}
	return buf
}

func decodeText(raw []byte) ([]codec.Word, error) {
	if len(raw)%8 != 0 {
		return nil, fmt.Errorf("text section length %d is not word-aligned", len(raw))
	}
	words := make([]codec.Word, len(raw)/8)
	for i := range words {
		words[i] = codec.Word(binary.LittleEndian.Uint64(raw[i*8:]))
	}
	return words, nil
}

func encodeFunctions(fns map[string]process.FunctionEntry) []byte {
	var buf bytes.Buffer
	writeUint32(&buf, uint32(len(fns)))
	for _, e := range fns {
		writeString(&buf, e.Name)
		writeUint64(&buf, e.EntryOffset)
		writeUint32(&buf, uint32(e.Arity))
	}
	return buf.Bytes()
}

func decodeFunctions(raw []byte) (map[string]process.FunctionEntry, error) {
	r := bytes.NewReader(raw)
	n, err := readUint32(r)
	if err != nil {
		if len(raw) == 0 {
			return map[string]process.FunctionEntry{}, nil
		}
		return nil, err
	}
	out := make(map[string]process.FunctionEntry, n)
	for i := uint32(0); i < n; i++ {
		name, err := readString(r)
		if err != nil {
			return nil, err
		}
		off, err := readUint64(r)
		if err != nil {
			return nil, err
		}
		arity, err := readUint32(r)
		if err != nil {
			return nil, err
		}
		out[name] = process.FunctionEntry{Name: name, EntryOffset: off, Arity: int(arity)}
	}
	return out, nil
}

func encodeBlocks(blocks map[string]process.BlockEntry) []byte {
	var buf bytes.Buffer
	writeUint32(&buf, uint32(len(blocks)))
	for _, e := range blocks {
		writeString(&buf, e.Name)
		writeUint64(&buf, e.EntryOffset)
	}
	return buf.Bytes()
}

func decodeBlocks(raw []byte) (map[string]process.BlockEntry, error) {
	r := bytes.NewReader(raw)
	n, err := readUint32(r)
	if err != nil {
		if len(raw) == 0 {
			return map[string]process.BlockEntry{}, nil
		}
		return nil, err
	}
	out := make(map[string]process.BlockEntry, n)
	for i := uint32(0); i < n; i++ {
		name, err := readString(r)
		if err != nil {
			return nil, err
		}
		off, err := readUint64(r)
		if err != nil {
			return nil, err
		}
		out[name] = process.BlockEntry{Name: name, EntryOffset: off}
	}
	return out, nil
}

func encodeSignatures(sigs []process.Signature) []byte {
	var buf bytes.Buffer
	writeUint32(&buf, uint32(len(sigs)))
	for _, s := range sigs {
		writeString(&buf, s.Name)
		var flag byte
		if s.IsBlock {
			flag = 1
		}
		buf.WriteByte(flag)
		writeString(&buf, s.ImportOf)
	}
	return buf.Bytes()
}

func decodeSignatures(raw []byte) ([]process.Signature, error) {
	r := bytes.NewReader(raw)
	n, err := readUint32(r)
	if err != nil {
		if len(raw) == 0 {
			return nil, nil
		}
		return nil, err
	}
	out := make([]process.Signature, 0, n)
	for i := uint32(0); i < n; i++ {
		name, err := readString(r)
		if err != nil {
			return nil, err
		}
		flag, err := r.ReadByte()
		if err != nil {
			return nil, err
		}
		importOf, err := readString(r)
		if err != nil {
			return nil, err
		}
		out = append(out, process.Signature{Name: name, IsBlock: flag != 0, ImportOf: importOf})
	}
	return out, nil
}

func encodeMetadata(meta map[string]string) []byte {
	var buf bytes.Buffer
	writeUint32(&buf, uint32(len(meta)))
	for k, v := range meta {
		writeString(&buf, k)
		writeString(&buf, v)
	}
	return buf.Bytes()
}

func decodeMetadata(raw []byte) (map[string]string, error) {
	r := bytes.NewReader(raw)
	n, err := readUint32(r)
	if err != nil {
		if len(raw) == 0 {
			return map[string]string{}, nil
		}
		return nil, err
	}
	out := make(map[string]string, n)
	for i := uint32(0); i < n; i++ {
		k, err := readString(r)
		if err != nil {
			return nil, err
		}
		v, err := readString(r)
		if err != nil {
			return nil, err
		}
		out[k] = v
	}
	return out, nil
}

func writeUint32(buf *bytes.Buffer, v uint32) {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	buf.Write(b[:])
}

func writeUint64(buf *bytes.Buffer, v uint64) {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], v)
	buf.Write(b[:])
}

func writeString(buf *bytes.Buffer, s string) {
	writeUint32(buf, uint32(len(s)))
	buf.WriteString(s)
}

func readUint32(r *bytes.Reader) (uint32, error) {
	var b [4]byte
	if _, err := r.Read(b[:]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b[:]), nil
}

func readUint64(r *bytes.Reader) (uint64, error) {
	var b [8]byte
	if _, err := r.Read(b[:]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(b[:]), nil
}

func readString(r *bytes.Reader) (string, error) {
	n, err := readUint32(r)
	if err != nil {
		return "", err
	}
	b := make([]byte, n)
	if n > 0 {
		if _, err := r.Read(b); err != nil {
			return "", err
		}
	}
	return string(b), nil
}
