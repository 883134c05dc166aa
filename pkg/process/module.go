package process

import (
	"fmt"

	"github.com/marekjm/viuavm-sub001/pkg/codec"
)

// FunctionEntry is one row of a Module's function table: a name resolved to
// the offset, in words from the start of Text, where the function's body begins.
type FunctionEntry struct {
	Name        string
	EntryOffset uint64
	Arity       int
}

// BlockEntry is one row of a Module's block table, addressed the same way
// as a function.
type BlockEntry struct {
	Name        string
	EntryOffset uint64
}

// Signature is an external (imported) function or block reference resolved
// at link time; unresolved signatures are a LinkError.
type Signature struct {
	Name     string
	IsBlock  bool
	ImportOf string // originating module name, empty if resolved locally
}

// Module is the runtime, already-linked representation of a compiled unit
// (spec §3 "Module"). Package module (the ELF64 container reader/writer)
// produces one of these by decoding the on-disk envelope; this package only
// consumes it, so there is no import cycle between process and module.
type Module struct {
	Text      []codec.Word
	Strtab    []byte
	Functions map[string]FunctionEntry
	Blocks    map[string]BlockEntry
	Signatures []Signature
	Metadata  map[string]string
}

// FindFunction resolves a function by name, returning (entry, true) or a
// zero value and false if it is not defined in this module (callers turn
// that into a LinkError or a runtime CALL failure as appropriate).
func (m *Module) FindFunction(name string) (FunctionEntry, bool) {
	e, ok := m.Functions[name]
	return e, ok
}

func (m *Module) FindBlock(name string) (BlockEntry, bool) {
	e, ok := m.Blocks[name]
	return e, ok
}

// StringAt reads a NUL-terminated string out of the module's string table
// starting at the given byte offset (ATOMC's addressing scheme).
func (m *Module) StringAt(offset uint64) (string, error) {
	if offset > uint64(len(m.Strtab)) {
		return "", fmt.Errorf("process: strtab offset %d out of range", offset)
	}
	end := offset
	for end < uint64(len(m.Strtab)) && m.Strtab[end] != 0 {
		end++
	}
	if end >= uint64(len(m.Strtab)) {
		return "", fmt.Errorf("process: unterminated string at strtab offset %d", offset)
	}
	return string(m.Strtab[offset:end]), nil
}
