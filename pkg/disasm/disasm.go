// Package disasm renders a linked process.Module back into assembly text,
// the inverse of asm/lexer+asm/parser+asm/codegen. It is grounded directly
// on pkg/codec's own façade: codec.Decode classifies a word into its format,
// and every Ref already knows how to print itself as a sigil+index+set
// operand (see codec.Ref.String), so rendering one instruction is mostly
// picking the right fmt.Sprintf shape per format rather than building a new
// text representation from scratch.
package disasm

import (
	"fmt"
	"sort"
	"strings"

	"github.com/marekjm/viuavm-sub001/pkg/codec"
	"github.com/marekjm/viuavm-sub001/pkg/process"
)

// Module renders every function and block in m as a textual listing: one
// ".function:"/".block:" section per entry, instructions in linear text
// order starting at the entry's word offset and running until the next
// entry's offset (or the end of the text segment).
func Module(m *process.Module) (string, error) {
	var out strings.Builder

	type span struct {
		name    string
		isBlock bool
		arity   int
		start   uint64
	}
	var spans []span
	for name, e := range m.Functions {
		spans = append(spans, span{name: name, arity: e.Arity, start: e.EntryOffset})
	}
	for name, e := range m.Blocks {
		spans = append(spans, span{name: name, isBlock: true, start: e.EntryOffset})
	}
	sort.Slice(spans, func(i, j int) bool { return spans[i].start < spans[j].start })

	for i, s := range spans {
		end := uint64(len(m.Text))
		if i+1 < len(spans) {
			end = spans[i+1].start
		}

		if s.isBlock {
			fmt.Fprintf(&out, ".block: %s\n", s.name)
		} else {
			fmt.Fprintf(&out, ".function: %s/%d\n", s.name, s.arity)
		}
		for off := s.start; off < end; off++ {
			line, err := Instruction(m, m.Text[off])
			if err != nil {
				return "", fmt.Errorf("disasm: word %d: %w", off, err)
			}
			fmt.Fprintf(&out, "    %s\n", line)
		}
		out.WriteString(".end\n\n")
	}

	return out.String(), nil
}

// Instruction renders one decoded word as a single assembly-source line. m
// is consulted only to resolve ATOMC's string-table offset back into its
// quoted literal; every other format round-trips from the word alone.
func Instruction(m *process.Module, w codec.Word) (string, error) {
	op, ops, err := codec.Decode(w)
	if err != nil {
		return "", err
	}

	greedy := ""
	if w.Greedy() {
		greedy = "!"
	}

	switch o := ops.(type) {
	case codec.NOperands:
		return fmt.Sprintf("%s%s", greedy, op), nil
	case codec.SOperands:
		return fmt.Sprintf("%s%s %s", greedy, op, o.A), nil
	case codec.DOperands:
		return fmt.Sprintf("%s%s %s %s", greedy, op, o.A, o.B), nil
	case codec.TOperands:
		return fmt.Sprintf("%s%s %s %s %s", greedy, op, o.A, o.B, o.C), nil
	case codec.FOperands:
		if op == codec.JUMPIF {
			return fmt.Sprintf("%s%s %s %d", greedy, op, o.A, int32(o.Immediate)), nil
		}
		return fmt.Sprintf("%s%s %s 0x%08x", greedy, op, o.A, o.Immediate), nil
	case codec.EOperands:
		if op == codec.ATOMC {
			name, err := m.StringAt(o.Immediate)
			if err != nil {
				return "", err
			}
			return fmt.Sprintf("%s%s %s '%s'", greedy, op, o.A, name), nil
		}
		if op == codec.JUMP {
			// the 36-bit offset is signed
			return fmt.Sprintf("%s%s %d", greedy, op, int64(o.Immediate<<28)>>28), nil
		}
		return fmt.Sprintf("%s%s %s %d", greedy, op, o.A, o.Immediate), nil
	case codec.ROperands:
		return fmt.Sprintf("%s%s %s %s %d", greedy, op, o.A, o.B, int32(o.Immediate)), nil
	case codec.MOperands:
		return fmt.Sprintf("%s%s %s %s %d %d", greedy, op, o.A, o.B, o.Immediate, o.SubSpec), nil
	default:
		return "", fmt.Errorf("disasm: %s: unrecognised operand bundle %T", op, ops)
	}
}
