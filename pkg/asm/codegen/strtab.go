package codegen

// strtab builds a module's string table: a flat, NUL-terminated, deduplicated
// byte blob that ATOMC addresses by byte offset, matching
// pkg/process.Module.StringAt's read side.
type strtab struct {
	buf     []byte
	offsets map[string]uint64
}

func newStrtab() *strtab {
	return &strtab{offsets: map[string]uint64{}}
}

// intern returns name's byte offset, appending it (NUL-terminated) the first
// time it is seen.
func (s *strtab) intern(name string) uint64 {
	if off, ok := s.offsets[name]; ok {
		return off
	}
	off := uint64(len(s.buf))
	s.buf = append(s.buf, name...)
	s.buf = append(s.buf, 0)
	s.offsets[name] = off
	return off
}

func (s *strtab) bytes() []byte { return s.buf }
