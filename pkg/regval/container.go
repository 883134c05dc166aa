package regval

import "fmt"

// The container operations below back VPUSH/VPOP/VLEN/VAT/VINSERT and
// STRUCTINSERT/STRUCTKEYS/STRUCTREMOVE. The static analyser's
// assert_type_of_register<T> rule (spec §4.6 item 4) is a compile-time
// mirror of the same type check enforced here at runtime.

func requireVector(c Cell) ([]Cell, error) {
	if c.Kind != VectorKind {
		return nil, fmt.Errorf("regval: expected vector, got %s: %w", c.Kind, ErrTypeError)
	}
	return c.Vector, nil
}

func requireStruct(c Cell) (map[uint64]Cell, error) {
	if c.Kind != StructKind {
		return nil, fmt.Errorf("regval: expected struct, got %s: %w", c.Kind, ErrTypeError)
	}
	return c.Struct, nil
}

// VectorPush returns a new vector cell with v appended.
func VectorPush(vec, v Cell) (Cell, error) {
	items, err := requireVector(vec)
	if err != nil {
		return Cell{}, err
	}
	next := make([]Cell, len(items)+1)
	copy(next, items)
	next[len(items)] = v
	return VectorCell(next), nil
}

// VectorPop returns the vector with its last element removed, and that
// element.
func VectorPop(vec Cell) (Cell, Cell, error) {
	items, err := requireVector(vec)
	if err != nil {
		return Cell{}, Cell{}, err
	}
	if len(items) == 0 {
		return Cell{}, Cell{}, fmt.Errorf("regval: pop from empty vector: %w", ErrBoundsError)
	}
	popped := items[len(items)-1]
	return VectorCell(append([]Cell{}, items[:len(items)-1]...)), popped, nil
}

func VectorLen(vec Cell) (Cell, error) {
	items, err := requireVector(vec)
	if err != nil {
		return Cell{}, err
	}
	return UintCell(uint64(len(items))), nil
}

func VectorAt(vec, index Cell) (Cell, error) {
	items, err := requireVector(vec)
	if err != nil {
		return Cell{}, err
	}
	i, ok := index.AsInt64()
	if !ok || i < 0 || int(i) >= len(items) {
		return Cell{}, fmt.Errorf("regval: vector index out of range: %w", ErrBoundsError)
	}
	return items[i], nil
}

func VectorInsert(vec, index, v Cell) (Cell, error) {
	items, err := requireVector(vec)
	if err != nil {
		return Cell{}, err
	}
	i, ok := index.AsInt64()
	if !ok || i < 0 || int(i) > len(items) {
		return Cell{}, fmt.Errorf("regval: vector insert index out of range: %w", ErrBoundsError)
	}
	next := make([]Cell, 0, len(items)+1)
	next = append(next, items[:i]...)
	next = append(next, v)
	next = append(next, items[i:]...)
	return VectorCell(next), nil
}

// StructInsert returns a new struct cell with fields[key] = v.
func StructInsert(strct Cell, key uint64, v Cell) (Cell, error) {
	fields, err := requireStruct(strct)
	if err != nil {
		return Cell{}, err
	}
	next := make(map[uint64]Cell, len(fields)+1)
	for k, existing := range fields {
		next[k] = existing
	}
	next[key] = v
	return StructCell(next), nil
}

// StructKeys returns a vector of atom cells, one per struct key.
func StructKeys(strct Cell) (Cell, error) {
	fields, err := requireStruct(strct)
	if err != nil {
		return Cell{}, err
	}
	keys := make([]Cell, 0, len(fields))
	for k := range fields {
		keys = append(keys, AtomCell(k))
	}
	return VectorCell(keys), nil
}

// StructRemove returns the struct with key removed, and the removed value.
func StructRemove(strct Cell, key uint64) (Cell, Cell, error) {
	fields, err := requireStruct(strct)
	if err != nil {
		return Cell{}, Cell{}, err
	}
	v, ok := fields[key]
	if !ok {
		return Cell{}, Cell{}, fmt.Errorf("regval: struct has no field %d: %w", key, ErrBoundsError)
	}
	next := make(map[uint64]Cell, len(fields)-1)
	for k, existing := range fields {
		if k != key {
			next[k] = existing
		}
	}
	return StructCell(next), v, nil
}
