// Copyright 2022 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package dat

import (
	"fmt"
)

// SymbolTable is the ordered symbol catalog of a loaded file plus two side
// indexes: byName for name lookups and byAddress for resolving a code offset
// back to its function symbol. Indices are stable for the life of the VM;
// storage is never compacted.
type SymbolTable struct {
	sortTable []uint32
	symbols   []*Symbol

	byName    map[string]int
	byAddress map[uint32]int
}

// NewSymbolTable returns an empty table.
func NewSymbolTable() *SymbolTable {
	return &SymbolTable{
		byName:    make(map[string]int),
		byAddress: make(map[uint32]int),
	}
}

// NewSymbolTableWithCapacity pre-sizes the vector and the side maps.
func NewSymbolTableWithCapacity(n int) *SymbolTable {
	return &SymbolTable{
		sortTable: make([]uint32, 0, n),
		symbols:   make([]*Symbol, 0, n),
		byName:    make(map[string]int, n),
		byAddress: make(map[uint32]int, n),
	}
}

// Len returns the number of symbols.
func (t *SymbolTable) Len() int {
	return len(t.symbols)
}

// WriteSortTable stores the alphabetic ordering hint verbatim.
func (t *SymbolTable) WriteSortTable(table []uint32) {
	t.sortTable = append(t.sortTable[:0], table...)
}

// SortTable returns the ordering hint as loaded from the file.
func (t *SymbolTable) SortTable() []uint32 {
	return t.sortTable
}

// HasName returns true when a symbol with the given name exists.
func (t *SymbolTable) HasName(name string) bool {
	_, ok := t.byName[name]
	return ok
}

// GetByName returns the symbol with the given name.
func (t *SymbolTable) GetByName(name string) (*Symbol, error) {
	index, ok := t.byName[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSymbolNotFound, name)
	}
	return t.symbols[index], nil
}

// GetIndexByName returns the table index of the named symbol.
func (t *SymbolTable) GetIndexByName(name string) (int, error) {
	index, ok := t.byName[name]
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrSymbolNotFound, name)
	}
	return index, nil
}

// GetByIndex returns the symbol at the given table position.
func (t *SymbolTable) GetByIndex(index int) (*Symbol, error) {
	if index < 0 || index >= len(t.symbols) {
		return nil, fmt.Errorf("%w: %d", ErrIndexOutOfBounds, index)
	}
	return t.symbols[index], nil
}

// GetFunctionIndexByAddress resolves a code offset to the index of the
// Func/Prototype symbol registered at it.
func (t *SymbolTable) GetFunctionIndexByAddress(address uint32) (int, error) {
	index, ok := t.byAddress[address]
	if !ok {
		return 0, fmt.Errorf("%w: %#x", ErrFunctionNotFound, address)
	}
	return index, nil
}

// registerInMaps records the symbol in the side indexes under the given
// position. Duplicate names are an input error but do not abort loading; the
// last writer wins.
func (t *SymbolTable) registerInMaps(index int, sym *Symbol) {
	if sym.name != "" {
		t.byName[sym.name] = index
	}
	kind := sym.Kind()
	if (kind == KindFunc || kind == KindPrototype) &&
		sym.props.HasFlag(SymbolFlagConst) &&
		sym.props.IsNotFlag(SymbolFlagClassVar) {
		if addr, err := sym.Address(); err == nil {
			t.byAddress[addr] = index
		}
	}
}

// Insert places sym at position index and registers it in the side maps
// under that same position. Entries at or above index shift up, but side-map
// entries referring to shifted symbols are NOT repaired; inserting anywhere
// but the tail leaves the maps stale. The loader only ever inserts at
// index == Len().
func (t *SymbolTable) Insert(index int, sym *Symbol) int {
	t.registerInMaps(index, sym)
	t.symbols = append(t.symbols, nil)
	copy(t.symbols[index+1:], t.symbols[index:])
	t.symbols[index] = sym
	return len(t.symbols)
}

// Push appends sym and registers it under the new index, which is returned.
func (t *SymbolTable) Push(sym *Symbol) int {
	index := len(t.symbols)
	t.registerInMaps(index, sym)
	t.symbols = append(t.symbols, sym)
	return index
}

// IterateInstancesOfClass invokes callback for every Instance symbol whose
// transitive base class is the named class, in ascending index order. A
// single Prototype between the instance and the class is collapsed.
func (t *SymbolTable) IterateInstancesOfClass(className string,
	callback func(index int, sym *Symbol)) error {

	base, err := t.GetIndexByName(className)
	if err != nil {
		return err
	}

	for index, sym := range t.symbols {
		if sym.Kind() != KindInstance {
			continue
		}
		parentIdx := sym.parent
		if parentIdx == 0 {
			continue
		}
		parent, err := t.GetByIndex(int(parentIdx))
		if err != nil {
			continue
		}

		parentBase := parentIdx
		if parent.Kind() == KindPrototype && parent.parent != 0 {
			parentBase = parent.parent
		}
		if int(parentBase) == base {
			callback(index, sym)
		}
	}
	return nil
}

// RegisterClassMember records the host-struct layout binding on the named
// symbol, enabling script reads and writes to address host memory.
func (t *SymbolTable) RegisterClassMember(name string, offset,
	arraySize int32) error {

	sym, err := t.GetByName(name)
	if err != nil {
		return err
	}
	sym.SetClassMember(offset, arraySize)
	return nil
}
