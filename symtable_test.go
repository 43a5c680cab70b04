// Copyright 2022 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package dat

import (
	"errors"
	"testing"
)

func intSymbol(t *testing.T, name string, values ...int32) *Symbol {
	t.Helper()
	props, _ := NewSymbolProperties(0,
		packElement(uint32(len(values)), KindInt, 0), 0, 0, 0, 0, 0)
	sym, err := NewSymbolBuilder(name).WithProperties(props).
		WithIntData(values).Build()
	if err != nil {
		t.Fatalf("building %s failed, reason: %v", name, err)
	}
	return sym
}

func funcSymbol(t *testing.T, name string, address uint32) *Symbol {
	t.Helper()
	props, _ := NewSymbolProperties(0,
		packElement(0, KindFunc, SymbolFlagConst), 0, 0, 0, 0, 0)
	sym, err := NewSymbolBuilder(name).WithProperties(props).
		WithAddress(address).Build()
	if err != nil {
		t.Fatalf("building %s failed, reason: %v", name, err)
	}
	return sym
}

func TestSymbolTableLookups(t *testing.T) {
	table := NewSymbolTable()
	table.Push(intSymbol(t, "HERO_LEVEL", 1))
	table.Push(funcSymbol(t, "ON_DEATH", 0x80))

	if !table.HasName("HERO_LEVEL") {
		t.Errorf("HasName assertion failed")
	}
	if table.HasName("MISSING") {
		t.Errorf("HasName found a missing symbol")
	}

	sym, err := table.GetByName("ON_DEATH")
	if err != nil || sym.Name() != "ON_DEATH" {
		t.Errorf("GetByName assertion failed: %v", err)
	}
	if _, err := table.GetByName("MISSING"); !errors.Is(err, ErrSymbolNotFound) {
		t.Errorf("error assertion failed, want: %v, got: %v",
			ErrSymbolNotFound, err)
	}

	if _, err := table.GetByIndex(5); !errors.Is(err, ErrIndexOutOfBounds) {
		t.Errorf("error assertion failed, want: %v, got: %v",
			ErrIndexOutOfBounds, err)
	}

	index, err := table.GetFunctionIndexByAddress(0x80)
	if err != nil || index != 1 {
		t.Errorf("GetFunctionIndexByAddress assertion failed: %d (%v)",
			index, err)
	}
	if _, err := table.GetFunctionIndexByAddress(0x99); !errors.Is(err,
		ErrFunctionNotFound) {
		t.Errorf("error assertion failed, want: %v, got: %v",
			ErrFunctionNotFound, err)
	}
}

func TestSymbolTablePushIndexes(t *testing.T) {
	table := NewSymbolTableWithCapacity(4)
	for i, name := range []string{"A", "B", "C", "D"} {
		index := table.Push(intSymbol(t, name, int32(i)))
		if index != i {
			t.Errorf("Push index assertion failed, want: %d, got: %d",
				i, index)
		}
	}
	if table.Len() != 4 {
		t.Errorf("Len assertion failed, want: 4, got: %d", table.Len())
	}
}

func TestSymbolTableInsertAtTail(t *testing.T) {
	table := NewSymbolTable()
	table.Insert(0, intSymbol(t, "FIRST", 1))
	table.Insert(1, intSymbol(t, "SECOND", 2))

	index, err := table.GetIndexByName("SECOND")
	if err != nil || index != 1 {
		t.Errorf("tail insert assertion failed: %d (%v)", index, err)
	}
}

func TestSymbolTableDuplicateNames(t *testing.T) {
	table := NewSymbolTable()
	table.Push(intSymbol(t, "TWIN", 1))
	table.Push(intSymbol(t, "TWIN", 2))

	// Last writer wins.
	index, err := table.GetIndexByName("TWIN")
	if err != nil || index != 1 {
		t.Errorf("duplicate name resolution failed: %d (%v)", index, err)
	}
}

// Instances whose parent chain (collapsing one prototype) reaches the class
// must be visited in ascending index order.
func TestIterateInstancesOfClass(t *testing.T) {
	syms := []symSpec{
		{anonymous: true, kind: KindVoid},
		{name: "C_NPC", kind: KindClass, classOffset: 288},
		{name: "NPC_DEFAULT", kind: KindPrototype, address: 1, parent: 1},
		{name: "PC_HERO", kind: KindInstance, address: 2, parent: 2},
		{name: "OTHER_CLASS", kind: KindClass, classOffset: 64},
		{name: "BANDIT", kind: KindInstance, address: 3, parent: 2},
		{name: "SOME_MENU", kind: KindInstance, address: 4, parent: 4},
		{name: "DIRECT_CHILD", kind: KindInstance, address: 5, parent: 1},
	}
	code := (&codeBuf{}).emit(OpRet).emit(OpRet).emit(OpRet).emit(OpRet).
		emit(OpRet).emit(OpRet).b
	f := mustParse(t, syms, code)

	var visited []string
	err := f.SymTable.IterateInstancesOfClass("C_NPC",
		func(index int, sym *Symbol) {
			visited = append(visited, sym.Name())
		})
	if err != nil {
		t.Fatalf("IterateInstancesOfClass failed, reason: %v", err)
	}

	want := []string{"PC_HERO", "BANDIT", "DIRECT_CHILD"}
	if len(visited) != len(want) {
		t.Fatalf("visited assertion failed, want: %v, got: %v", want, visited)
	}
	for i := range want {
		if visited[i] != want[i] {
			t.Errorf("visit order assertion failed, want: %v, got: %v",
				want, visited)
			break
		}
	}

	if err := f.SymTable.IterateInstancesOfClass("NOT_A_CLASS",
		func(int, *Symbol) {}); !errors.Is(err, ErrSymbolNotFound) {
		t.Errorf("error assertion failed, want: %v, got: %v",
			ErrSymbolNotFound, err)
	}
}

func TestRegisterClassMember(t *testing.T) {
	f := mustParse(t, testImageSymbols(), (&codeBuf{}).emit(OpRet).b)

	err := f.SymTable.RegisterClassMember("C_NPC.ATTRIBUTE", 112, 8)
	if err != nil {
		t.Fatalf("RegisterClassMember failed, reason: %v", err)
	}
	sym, _ := f.SymTable.GetByName("C_NPC.ATTRIBUTE")
	offset, size := sym.ClassMember()
	if offset != 112 || size != 8 {
		t.Errorf("class member binding assertion failed: %d %d", offset, size)
	}

	if err := f.SymTable.RegisterClassMember("MISSING", 0, 0); !errors.Is(err,
		ErrSymbolNotFound) {
		t.Errorf("error assertion failed, want: %v, got: %v",
			ErrSymbolNotFound, err)
	}
}
