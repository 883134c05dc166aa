package module

import (
	"bytes"
	"encoding/binary"
)

// ELF64 structure constants (see elf(5); elf_reader decodes exactly this
// layout, so this writer only needs to produce bytes it accepts back).
const (
	elfClass64   = 2
	elfDataLSB   = 1
	elfVersion   = 1
	elfOSABINone = 0
	etExec       = 2
	emNone       = 0 // no real machine: this is a bytecode-VM container, not a native binary
	ptNull       = 0
	ptLoad       = 1
	ptInterp     = 3
	shtNull      = 0
	shtProgbits  = 1
	shtStrtab    = 3
	ehsize       = 64
	phentsize    = 56
	shentsize    = 64
)

type namedSection struct {
	name string
	data []byte
}

// writeELF lays out an ELF64 file with three program headers (PT_NULL
// carrying the magic ident, PT_INTERP naming the runtime, PT_LOAD covering
// the text segment) followed by one section per entry in sections plus a
// trailing .shstrtab elf_reader needs to resolve section names.
func writeELF(sections []namedSection) ([]byte, error) {
	shstrtab := newShstrtabBuilder()
	shstrtab.add("")
	for _, s := range sections {
		shstrtab.add(s.name)
	}
	shstrtabName := shstrtab.add(".shstrtab")

	phoff := uint64(ehsize)
	numPhdrs := 3
	shoff0 := phoff + uint64(numPhdrs*phentsize)

	var body bytes.Buffer
	sectionOffsets := make([]uint64, len(sections))
	for i, s := range sections {
		sectionOffsets[i] = shoff0 + uint64(body.Len())
		body.Write(s.data)
	}
	shstrtabOffset := shoff0 + uint64(body.Len())
	body.Write(shstrtab.bytes())

	interpOff := shoff0 + uint64(body.Len())
	interpLen := uint64(len(Interp) + 1)
	shoff := interpOff + interpLen

	var textOff, textLen uint64
	for i, s := range sections {
		if s.name == sectionText {
			textOff, textLen = sectionOffsets[i], uint64(len(s.data))
		}
	}

	var out bytes.Buffer
	writeIdent(&out)
	writeEhdr(&out, phoff, shoff, uint16(numPhdrs), uint16(len(sections)+2), shstrtabIndex(len(sections)))

	writePhdr(&out, ptNull, binary.LittleEndian.Uint64([]byte(magic)), 0, 0, uint64(len([]byte(magic))), 0)
	writePhdr(&out, ptInterp, interpOff, interpOff, interpLen, interpLen, 0)
	writePhdr(&out, ptLoad, textOff, textOff, textLen, textLen, 8)

	out.Write(body.Bytes())
	out.WriteString(Interp)
	out.WriteByte(0)

	writeShdr(&out, 0, shtNull, 0, 0, 0)
	for i, s := range sections {
		writeShdr(&out, shstrtab.offsetOf(s.name), shtProgbits, sectionOffsets[i], uint64(len(s.data)), 0)
	}
	writeShdr(&out, shstrtabName, shtStrtab, shstrtabOffset, uint64(len(shstrtab.bytes())), 0)

	return out.Bytes(), nil
}

func shstrtabIndex(numSections int) uint16 {
	return uint16(numSections + 1) // shtNull + numSections data sections precede it
}

func writeIdent(out *bytes.Buffer) {
	var ident [16]byte
	copy(ident[:4], []byte{0x7f, 'E', 'L', 'F'})
	ident[4] = elfClass64
	ident[5] = elfDataLSB
	ident[6] = elfVersion
	ident[7] = elfOSABINone
	out.Write(ident[:])
}

func writeEhdr(out *bytes.Buffer, phoff, shoff uint64, phnum, shnum, shstrndx uint16) {
	binary.Write(out, binary.LittleEndian, uint16(etExec))
	binary.Write(out, binary.LittleEndian, uint16(emNone))
	binary.Write(out, binary.LittleEndian, uint32(elfVersion))
	binary.Write(out, binary.LittleEndian, uint64(0)) // e_entry: unused, function table carries real entry points
	binary.Write(out, binary.LittleEndian, phoff)
	binary.Write(out, binary.LittleEndian, shoff)
	binary.Write(out, binary.LittleEndian, uint32(0)) // e_flags
	binary.Write(out, binary.LittleEndian, uint16(ehsize))
	binary.Write(out, binary.LittleEndian, uint16(phentsize))
	binary.Write(out, binary.LittleEndian, phnum)
	binary.Write(out, binary.LittleEndian, uint16(shentsize))
	binary.Write(out, binary.LittleEndian, shnum)
	binary.Write(out, binary.LittleEndian, shstrndx)
}

func writePhdr(out *bytes.Buffer, ptype uint32, offset, vaddr, filesz, memsz uint64, align uint64) {
	binary.Write(out, binary.LittleEndian, ptype)
	binary.Write(out, binary.LittleEndian, uint32(0)) // p_flags
	binary.Write(out, binary.LittleEndian, offset)
	binary.Write(out, binary.LittleEndian, vaddr)
	binary.Write(out, binary.LittleEndian, vaddr) // p_paddr
	binary.Write(out, binary.LittleEndian, filesz)
	binary.Write(out, binary.LittleEndian, memsz)
	binary.Write(out, binary.LittleEndian, align)
}

func writeShdr(out *bytes.Buffer, nameOff uint64, shtype uint32, offset, size uint64, flags uint64) {
	binary.Write(out, binary.LittleEndian, uint32(nameOff))
	binary.Write(out, binary.LittleEndian, shtype)
	binary.Write(out, binary.LittleEndian, flags)
	binary.Write(out, binary.LittleEndian, uint64(0)) // sh_addr
	binary.Write(out, binary.LittleEndian, offset)
	binary.Write(out, binary.LittleEndian, size)
	binary.Write(out, binary.LittleEndian, uint32(0)) // sh_link
	binary.Write(out, binary.LittleEndian, uint32(0)) // sh_info
	binary.Write(out, binary.LittleEndian, uint64(8)) // sh_addralign
	binary.Write(out, binary.LittleEndian, uint64(0)) // sh_entsize
}

// shstrtabBuilder accumulates section names into one NUL-terminated blob and
// remembers each name's byte offset, the way a real .shstrtab works.
type shstrtabBuilder struct {
	buf     bytes.Buffer
	offsets map[string]uint64
}

func newShstrtabBuilder() *shstrtabBuilder {
	return &shstrtabBuilder{offsets: map[string]uint64{}}
}

func (s *shstrtabBuilder) add(name string) uint64 {
	if off, ok := s.offsets[name]; ok {
		return off
	}
	off := uint64(s.buf.Len())
	s.buf.WriteString(name)
	s.buf.WriteByte(0)
	s.offsets[name] = off
	return off
}

func (s *shstrtabBuilder) offsetOf(name string) uint64 { return s.offsets[name] }

func (s *shstrtabBuilder) bytes() []byte { return s.buf.Bytes() }
