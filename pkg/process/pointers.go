package process

import "github.com/marekjm/viuavm-sub001/pkg/regval"

// PointerTable is the per-process address→metadata map spec §3 requires;
// it implements regval.PointerSpace so package regval's arithmetic dispatch
// can perform pointer+integer bounds checking without depending on this
// package.
type PointerTable struct {
	entries map[uint64]regval.PointerMeta
}

func NewPointerTable() *PointerTable {
	return &PointerTable{entries: map[uint64]regval.PointerMeta{}}
}

func (t *PointerTable) Lookup(address uint64) (regval.PointerMeta, bool) {
	m, ok := t.entries[address]
	return m, ok
}

func (t *PointerTable) Register(meta regval.PointerMeta) {
	t.entries[meta.Address] = meta
}

// Prune drops every pointer whose originating allocation lies at or beyond
// stackBreak, called on RETURN once the caller's stack_break is restored
// (spec §4.5 "stale pointer metadata past the new stack_break is pruned").
func (t *PointerTable) Prune(stackBreak uint64) {
	for addr, meta := range t.entries {
		if meta.Parent >= stackBreak {
			delete(t.entries, addr)
		}
	}
}
