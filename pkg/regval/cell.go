// Package regval implements the tagged value cell stored in every register
// and the register-file addressing rules (spec §4.2): VOID is always empty,
// PARAMETER/ARGUMENT redirect to their own buffers, and a legal register
// reference is the only thing this package trusts its caller to have
// already validated (package codec owns that check).
package regval

import "fmt"

// Kind discriminates the variant a Cell currently holds.
type Kind byte

const (
	Empty Kind = iota
	Signed
	Unsigned
	Float32Kind
	Float64Kind
	AtomKind
	PidKind
	PointerKind
	BlobKind
	// VectorKind and StructKind are not in spec.md §3's scalar value-cell
	// list, but DESIGN NOTES §9 ("Deep inheritance...") requires containers
	// to become "variants holding homogeneous or keyed collections of value
	// cells" — so they are cell kinds here, not heap allocations.
	VectorKind
	StructKind
)

var kindNames = map[Kind]string{
	Empty: "empty", Signed: "signed-64", Unsigned: "unsigned-64",
	Float32Kind: "float-32", Float64Kind: "float-64", AtomKind: "atom",
	PidKind: "pid", PointerKind: "pointer", BlobKind: "undefined-blob",
	VectorKind: "vector", StructKind: "struct",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("?kind(%d)?", byte(k))
}

// Cell is the tagged union stored in a register. Only the field matching
// Kind is meaningful; a Cell is either Empty or holds exactly one variant
// (spec §3 invariant).
type Cell struct {
	Kind    Kind
	Int     int64
	Uint    uint64
	F32     float32
	F64     float64
	Atom    uint64
	Pid     [16]byte
	Pointer uint64
	Blob    [8]byte
	Vector  []Cell
	Struct  map[uint64]Cell
}

func (c Cell) IsEmpty() bool { return c.Kind == Empty }

func IntCell(v int64) Cell           { return Cell{Kind: Signed, Int: v} }
func UintCell(v uint64) Cell         { return Cell{Kind: Unsigned, Uint: v} }
func Float32Cell(v float32) Cell     { return Cell{Kind: Float32Kind, F32: v} }
func Float64Cell(v float64) Cell     { return Cell{Kind: Float64Kind, F64: v} }
func AtomCell(key uint64) Cell       { return Cell{Kind: AtomKind, Atom: key} }
func PidCell(id [16]byte) Cell       { return Cell{Kind: PidKind, Pid: id} }
func PointerCell(address uint64) Cell { return Cell{Kind: PointerKind, Pointer: address} }
func BlobCell(b [8]byte) Cell        { return Cell{Kind: BlobKind, Blob: b} }
func VectorCell(items []Cell) Cell   { return Cell{Kind: VectorKind, Vector: items} }
func StructCell(fields map[uint64]Cell) Cell {
	return Cell{Kind: StructKind, Struct: fields}
}

// AsInt64 returns c's numeric value interpreted as a signed integer, for
// contexts (immediate-form arithmetic, pointer offsets) that treat VOID as
// zero rather than erroring. Non-numeric, non-empty kinds return false.
func (c Cell) AsInt64() (int64, bool) {
	switch c.Kind {
	case Empty:
		return 0, true
	case Signed:
		return c.Int, true
	case Unsigned:
		return int64(c.Uint), true
	default:
		return 0, false
	}
}

func (c Cell) String() string {
	switch c.Kind {
	case Empty:
		return "empty"
	case Signed:
		return fmt.Sprintf("0x%016x %d", uint64(c.Int), c.Int)
	case Unsigned:
		return fmt.Sprintf("0x%016x %d", c.Uint, c.Uint)
	case Float32Kind:
		return fmt.Sprintf("%g", c.F32)
	case Float64Kind:
		return fmt.Sprintf("%g", c.F64)
	case AtomKind:
		return fmt.Sprintf("atom(%d)", c.Atom)
	case PidKind:
		return fmt.Sprintf("pid(%x)", c.Pid)
	case PointerKind:
		return fmt.Sprintf("ptr(0x%x)", c.Pointer)
	case BlobKind:
		return fmt.Sprintf("blob(% x)", c.Blob)
	case VectorKind:
		return fmt.Sprintf("vector(len=%d)", len(c.Vector))
	case StructKind:
		return fmt.Sprintf("struct(fields=%d)", len(c.Struct))
	default:
		return "?cell?"
	}
}
