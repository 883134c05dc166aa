package regval

import (
	"fmt"
	"math/bits"
)

// PointerMeta is the bounds record the process keeps for every address a
// pointer cell may reference (spec §3 "Pointer").
type PointerMeta struct {
	Address uint64
	Size    uint64
	Parent  uint64
}

// PointerSpace abstracts the process-level address→metadata table so the
// pointer+integer special case (spec §4.2) can be checked and extended here
// without this package depending on package process.
type PointerSpace interface {
	Lookup(address uint64) (PointerMeta, bool)
	Register(meta PointerMeta)
}

// dispatch casts both operands to the tag of lhs, per spec §4.2: "both
// operands are cast to that type, the operation is performed, and the
// result is stored with the same tag."
func dispatch(lhs, rhs Cell) (kind Kind, a, b float64, ai, bi int64, au, bu uint64, err error) {
	if lhs.IsEmpty() {
		return 0, 0, 0, 0, 0, 0, 0, fmt.Errorf("regval: arithmetic on empty lhs: %w", ErrTypeError)
	}
	switch lhs.Kind {
	case Signed:
		rv, ok := castTo(rhs, Signed)
		if !ok {
			return 0, 0, 0, 0, 0, 0, 0, typeErr(lhs, rhs)
		}
		return Signed, 0, 0, lhs.Int, rv.Int, 0, 0, nil
	case Unsigned:
		rv, ok := castTo(rhs, Unsigned)
		if !ok {
			return 0, 0, 0, 0, 0, 0, 0, typeErr(lhs, rhs)
		}
		return Unsigned, 0, 0, 0, 0, lhs.Uint, rv.Uint, nil
	case Float32Kind:
		rv, ok := castTo(rhs, Float32Kind)
		if !ok {
			return 0, 0, 0, 0, 0, 0, 0, typeErr(lhs, rhs)
		}
		return Float32Kind, float64(lhs.F32), float64(rv.F32), 0, 0, 0, 0, nil
	case Float64Kind:
		rv, ok := castTo(rhs, Float64Kind)
		if !ok {
			return 0, 0, 0, 0, 0, 0, 0, typeErr(lhs, rhs)
		}
		return Float64Kind, lhs.F64, rv.F64, 0, 0, 0, 0, nil
	default:
		return 0, 0, 0, 0, 0, 0, 0, fmt.Errorf("regval: %s is not an arithmetic type: %w", lhs.Kind, ErrTypeError)
	}
}

func typeErr(lhs, rhs Cell) error {
	return fmt.Errorf("regval: incompatible operand types %s and %s: %w", lhs.Kind, rhs.Kind, ErrTypeError)
}

// castTo coerces rhs to the given numeric kind, if rhs is itself numeric.
// VOID (empty) is not accepted here: the "VOID treated as zero" rule is
// reserved for immediate-form opcodes, which never call dispatch.
func castTo(c Cell, kind Kind) (Cell, bool) {
	switch kind {
	case Signed:
		switch c.Kind {
		case Signed:
			return c, true
		case Unsigned:
			return Cell{Kind: Signed, Int: int64(c.Uint)}, true
		}
	case Unsigned:
		switch c.Kind {
		case Unsigned:
			return c, true
		case Signed:
			return Cell{Kind: Unsigned, Uint: uint64(c.Int)}, true
		}
	case Float32Kind:
		switch c.Kind {
		case Float32Kind:
			return c, true
		case Signed:
			return Cell{Kind: Float32Kind, F32: float32(c.Int)}, true
		case Unsigned:
			return Cell{Kind: Float32Kind, F32: float32(c.Uint)}, true
		}
	case Float64Kind:
		switch c.Kind {
		case Float64Kind:
			return c, true
		case Signed:
			return Cell{Kind: Float64Kind, F64: float64(c.Int)}, true
		case Unsigned:
			return Cell{Kind: Float64Kind, F64: float64(c.Uint)}, true
		}
	}
	return Cell{}, false
}

// Add implements ADD, including the pointer+integer special case (spec
// §4.2): pointer lhs with an integer rhs treats rhs as a byte offset and
// produces a new pointer derived from the original's metadata, registered
// in ptrs. ptrs may be nil when lhs is known not to be a pointer.
func Add(lhs, rhs Cell, ptrs PointerSpace) (Cell, error) {
	if lhs.Kind == PointerKind {
		return addPointerOffset(lhs, rhs, ptrs)
	}
	kind, a, b, ai, bi, au, bu, err := dispatch(lhs, rhs)
	if err != nil {
		return Cell{}, err
	}
	switch kind {
	case Signed:
		return IntCell(ai + bi), nil
	case Unsigned:
		return UintCell(au + bu), nil
	case Float32Kind:
		return Float32Cell(float32(a + b)), nil
	case Float64Kind:
		return Float64Cell(a + b), nil
	}
	return Cell{}, typeErr(lhs, rhs)
}

func addPointerOffset(lhs, rhs Cell, ptrs PointerSpace) (Cell, error) {
	offset, ok := rhs.AsInt64()
	if !ok {
		return Cell{}, typeErr(lhs, rhs)
	}
	if ptrs == nil {
		return Cell{}, fmt.Errorf("regval: no pointer space available for pointer arithmetic: %w", ErrBoundsError)
	}
	meta, ok := ptrs.Lookup(lhs.Pointer)
	if !ok {
		return Cell{}, fmt.Errorf("regval: pointer 0x%x is not registered: %w", lhs.Pointer, ErrBoundsError)
	}
	if offset < 0 || uint64(offset) >= meta.Size {
		return Cell{}, fmt.Errorf("regval: offset %d out of bounds for region of size %d: %w", offset, meta.Size, ErrBoundsError)
	}
	next := PointerMeta{
		Address: meta.Address + uint64(offset),
		Size:    meta.Size - uint64(offset),
		Parent:  meta.Parent,
	}
	ptrs.Register(next)
	return PointerCell(next.Address), nil
}

func Sub(lhs, rhs Cell) (Cell, error) {
	kind, a, b, ai, bi, au, bu, err := dispatch(lhs, rhs)
	if err != nil {
		return Cell{}, err
	}
	switch kind {
	case Signed:
		return IntCell(ai - bi), nil
	case Unsigned:
		return UintCell(au - bu), nil
	case Float32Kind:
		return Float32Cell(float32(a - b)), nil
	case Float64Kind:
		return Float64Cell(a - b), nil
	}
	return Cell{}, typeErr(lhs, rhs)
}

func Mul(lhs, rhs Cell) (Cell, error) {
	kind, a, b, ai, bi, au, bu, err := dispatch(lhs, rhs)
	if err != nil {
		return Cell{}, err
	}
	switch kind {
	case Signed:
		return IntCell(ai * bi), nil
	case Unsigned:
		return UintCell(au * bu), nil
	case Float32Kind:
		return Float32Cell(float32(a * b)), nil
	case Float64Kind:
		return Float64Cell(a * b), nil
	}
	return Cell{}, typeErr(lhs, rhs)
}

func Div(lhs, rhs Cell) (Cell, error) {
	kind, a, b, ai, bi, au, bu, err := dispatch(lhs, rhs)
	if err != nil {
		return Cell{}, err
	}
	switch kind {
	case Signed:
		if bi == 0 {
			return Cell{}, fmt.Errorf("regval: integer division by zero: %w", ErrDivisionByZero)
		}
		return IntCell(ai / bi), nil
	case Unsigned:
		if bu == 0 {
			return Cell{}, fmt.Errorf("regval: integer division by zero: %w", ErrDivisionByZero)
		}
		return UintCell(au / bu), nil
	case Float32Kind:
		return Float32Cell(float32(a / b)), nil
	case Float64Kind:
		return Float64Cell(a / b), nil
	}
	return Cell{}, typeErr(lhs, rhs)
}

func Mod(lhs, rhs Cell) (Cell, error) {
	kind, _, _, ai, bi, au, bu, err := dispatch(lhs, rhs)
	if err != nil {
		return Cell{}, err
	}
	switch kind {
	case Signed:
		if bi == 0 {
			return Cell{}, fmt.Errorf("regval: integer modulo by zero: %w", ErrDivisionByZero)
		}
		return IntCell(ai % bi), nil
	case Unsigned:
		if bu == 0 {
			return Cell{}, fmt.Errorf("regval: integer modulo by zero: %w", ErrDivisionByZero)
		}
		return UintCell(au % bu), nil
	default:
		return Cell{}, fmt.Errorf("regval: mod requires an integer type, got %s: %w", kind, ErrTypeError)
	}
}

// boolCell is the VM's representation of a comparison result: there is no
// dedicated boolean Kind in the value-cell taxonomy, so comparisons produce
// an Unsigned 0/1, same as the teacher's plain-integer truthiness model.
func boolCell(v bool) Cell {
	if v {
		return UintCell(1)
	}
	return UintCell(0)
}

func Eq(lhs, rhs Cell) (Cell, error) {
	kind, a, b, ai, bi, au, bu, err := dispatch(lhs, rhs)
	if err != nil {
		return Cell{}, err
	}
	switch kind {
	case Signed:
		return boolCell(ai == bi), nil
	case Unsigned:
		return boolCell(au == bu), nil
	default:
		return boolCell(a == b), nil
	}
}

func Lt(lhs, rhs Cell) (Cell, error)  { return compare(lhs, rhs, "<") }
func Lte(lhs, rhs Cell) (Cell, error) { return compare(lhs, rhs, "<=") }
func Gt(lhs, rhs Cell) (Cell, error)  { return compare(lhs, rhs, ">") }
func Gte(lhs, rhs Cell) (Cell, error) { return compare(lhs, rhs, ">=") }

func compare(lhs, rhs Cell, op string) (Cell, error) {
	kind, a, b, ai, bi, au, bu, err := dispatch(lhs, rhs)
	if err != nil {
		return Cell{}, err
	}
	var result bool
	switch kind {
	case Signed:
		result = applyOrder(op, ai < bi, ai == bi)
	case Unsigned:
		result = applyOrder(op, au < bu, au == bu)
	default:
		result = applyOrder(op, a < b, a == b)
	}
	return boolCell(result), nil
}

func applyOrder(op string, less, equal bool) bool {
	switch op {
	case "<":
		return less
	case "<=":
		return less || equal
	case ">":
		return !less && !equal
	case ">=":
		return !less
	}
	return false
}

func requireIntegers(lhs, rhs Cell) (au, bu uint64, err error) {
	if lhs.Kind != Signed && lhs.Kind != Unsigned {
		return 0, 0, fmt.Errorf("regval: %s requires an integer type: %w", lhs.Kind, ErrTypeError)
	}
	kind, _, _, ai, bi, aU, bU, err := dispatch(lhs, rhs)
	if err != nil {
		return 0, 0, err
	}
	if kind == Signed {
		return uint64(ai), uint64(bi), nil
	}
	return aU, bU, nil
}

func BitAnd(lhs, rhs Cell) (Cell, error) {
	a, b, err := requireIntegers(lhs, rhs)
	if err != nil {
		return Cell{}, err
	}
	return UintCell(a & b), nil
}

func BitOr(lhs, rhs Cell) (Cell, error) {
	a, b, err := requireIntegers(lhs, rhs)
	if err != nil {
		return Cell{}, err
	}
	return UintCell(a | b), nil
}

func BitXor(lhs, rhs Cell) (Cell, error) {
	a, b, err := requireIntegers(lhs, rhs)
	if err != nil {
		return Cell{}, err
	}
	return UintCell(a ^ b), nil
}

// BitRol and BitRor perform circular rotation over the full 64-bit register
// view (Open Question (c): the source's handlers are empty stubs; this
// implementation rotates using math/bits, the stdlib's own "Bits::rol/ror"
// equivalent).
func BitRol(lhs, rhs Cell) (Cell, error) {
	a, b, err := requireIntegers(lhs, rhs)
	if err != nil {
		return Cell{}, err
	}
	return UintCell(bits.RotateLeft64(a, int(b))), nil
}

func BitRor(lhs, rhs Cell) (Cell, error) {
	a, b, err := requireIntegers(lhs, rhs)
	if err != nil {
		return Cell{}, err
	}
	return UintCell(bits.RotateLeft64(a, -int(b))), nil
}

func And(lhs, rhs Cell) (Cell, error) {
	return boolCell(truthy(lhs) && truthy(rhs)), nil
}

func Or(lhs, rhs Cell) (Cell, error) {
	return boolCell(truthy(lhs) || truthy(rhs)), nil
}

func truthy(c Cell) bool {
	switch c.Kind {
	case Empty:
		return false
	case Signed:
		return c.Int != 0
	case Unsigned:
		return c.Uint != 0
	case Float32Kind:
		return c.F32 != 0
	case Float64Kind:
		return c.F64 != 0
	default:
		return true
	}
}

// CheckedAdd, WrappingAdd and SaturatingAdd implement the three overflow
// policies spec §7 names. CheckedAdd works on the signed 64-bit view and
// returns a signed cell; WrappingAdd and SaturatingAdd work on the unsigned
// 64-bit view and return an unsigned cell, so SaturatingAdd clamps at the
// unsigned maximum.
func CheckedAdd(lhs, rhs Cell) (Cell, error) {
	a, b, err := requireIntegers(lhs, rhs)
	if err != nil {
		return Cell{}, err
	}
	sum := int64(a) + int64(b)
	if (b > 0 && sum < int64(a)) || (int64(b) < 0 && sum > int64(a)) {
		return Cell{}, fmt.Errorf("regval: checked_add overflow: %w", ErrArithmeticOverflow)
	}
	return IntCell(sum), nil
}

func CheckedSub(lhs, rhs Cell) (Cell, error) {
	a, b, err := requireIntegers(lhs, rhs)
	if err != nil {
		return Cell{}, err
	}
	diff := int64(a) - int64(b)
	if (int64(b) < 0 && diff < int64(a)) || (int64(b) > 0 && diff > int64(a)) {
		return Cell{}, fmt.Errorf("regval: checked_sub overflow: %w", ErrArithmeticOverflow)
	}
	return IntCell(diff), nil
}

func CheckedMul(lhs, rhs Cell) (Cell, error) {
	a, b, err := requireIntegers(lhs, rhs)
	if err != nil {
		return Cell{}, err
	}
	ai, bi := int64(a), int64(b)
	product := ai * bi
	if ai != 0 && product/ai != bi {
		return Cell{}, fmt.Errorf("regval: checked_mul overflow: %w", ErrArithmeticOverflow)
	}
	return IntCell(product), nil
}

func WrappingAdd(lhs, rhs Cell) (Cell, error) {
	a, b, err := requireIntegers(lhs, rhs)
	if err != nil {
		return Cell{}, err
	}
	return UintCell(a + b), nil
}

func SaturatingAdd(lhs, rhs Cell) (Cell, error) {
	a, b, err := requireIntegers(lhs, rhs)
	if err != nil {
		return Cell{}, err
	}
	sum := a + b
	if sum < a {
		return UintCell(^uint64(0)), nil
	}
	return UintCell(sum), nil
}
