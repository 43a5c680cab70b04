// Copyright 2022 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package dat

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

// gameFixture builds a VM whose catalog carries one instance symbol per pool
// class the tests touch, each with a trivial constructor body.
func gameFixture(t *testing.T) (*VirtualMachine, *GameState) {
	t.Helper()

	asm := &codeBuf{}
	asm.emit(OpRet)
	ctorAddr := asm.pos()
	asm.emit(OpRet)

	syms := []symSpec{
		{anonymous: true, kind: KindVoid},
		{name: "C_ITEM", kind: KindClass, classOffset: 64},
		{name: "ITM_SWORD", kind: KindInstance, address: ctorAddr, parent: 1},
		{name: "ITM_APPLE", kind: KindInstance, address: ctorAddr, parent: 1},
		{name: "C_NPC", kind: KindClass, classOffset: 288},
		{name: "BAU_900_FARMER", kind: KindInstance, address: ctorAddr,
			parent: 4},
		{name: "SFX_SWORD_HIT", kind: KindInstance, address: ctorAddr},
		{name: "MUS_OLDWORLD_DAY", kind: KindInstance, address: ctorAddr},
	}

	vm, err := NewVirtualMachineBytes(buildDAT(syms, asm.b), &Options{})
	if err != nil {
		t.Fatalf("NewVirtualMachineBytes failed, reason: %v", err)
	}
	return vm, NewGameState(DefaultPoolLimits())
}

func symIndex(t *testing.T, vm *VirtualMachine, name string) int {
	t.Helper()
	index, err := vm.File().SymTable.GetIndexByName(name)
	if err != nil {
		t.Fatalf("GetIndexByName(%s) failed, reason: %v", name, err)
	}
	return index
}

func TestInsertNpc(t *testing.T) {
	vm, gs := gameFixture(t)

	var events []string
	gs.Externals.InsertNpc = func(npc Handle, waypoint string) {
		events = append(events, "insert:"+waypoint)
	}
	gs.Externals.PostInsertNpc = func(npc Handle) {
		events = append(events, "post")
	}

	farmer := symIndex(t, vm, "BAU_900_FARMER")
	handle, err := gs.InsertNpc(farmer, "WP_FARM_01", vm)
	if err != nil {
		t.Fatalf("InsertNpc failed, reason: %v", err)
	}

	npc := gs.Npc(handle)
	if npc == nil {
		t.Fatalf("npc handle failed to resolve")
	}
	if npc.Waypoint != "WP_FARM_01" {
		t.Errorf("waypoint assertion failed, got: %q", npc.Waypoint)
	}
	if npc.InstanceSymbol() != farmer {
		t.Errorf("instance symbol assertion failed, got: %d",
			npc.InstanceSymbol())
	}
	if len(events) != 2 || events[0] != "insert:WP_FARM_01" ||
		events[1] != "post" {
		t.Errorf("callback order assertion failed: %v", events)
	}

	// The instance symbol now carries the materialized binding.
	sym, _ := vm.File().SymTable.GetByIndex(farmer)
	gotHandle, gotClass := sym.InstanceData()
	if gotHandle != handle || gotClass != ClassNpc {
		t.Errorf("symbol binding assertion failed: %v %s", gotHandle,
			gotClass)
	}
}

func TestInsertItem(t *testing.T) {
	vm, gs := gameFixture(t)

	inserted := 0
	gs.Externals.InsertItem = func(item Handle) { inserted++ }

	sword := symIndex(t, vm, "ITM_SWORD")
	handle, err := gs.InsertItem(sword, vm)
	if err != nil {
		t.Fatalf("InsertItem failed, reason: %v", err)
	}
	if gs.Item(handle) == nil {
		t.Fatalf("item handle failed to resolve")
	}
	if inserted != 1 {
		t.Errorf("insert callback assertion failed, got: %d", inserted)
	}
}

// Two creates of the same instance symbol must merge into one stack.
func TestCreateInvItemDedup(t *testing.T) {
	vm, gs := gameFixture(t)

	farmer := symIndex(t, vm, "BAU_900_FARMER")
	npc, err := gs.InsertNpc(farmer, "WP_FARM_01", vm)
	if err != nil {
		t.Fatalf("InsertNpc failed, reason: %v", err)
	}

	created := 0
	gs.Externals.CreateInvItem = func(item, owner Handle) { created++ }

	sword := symIndex(t, vm, "ITM_SWORD")
	h1, err := gs.CreateInvItem(sword, npc, 1, vm)
	if err != nil {
		t.Fatalf("CreateInvItem failed, reason: %v", err)
	}
	h2, err := gs.CreateInvItem(sword, npc, 1, vm)
	if err != nil {
		t.Fatalf("CreateInvItem failed, reason: %v", err)
	}
	if h1 != h2 {
		t.Errorf("dedup assertion failed, handles differ")
	}

	inventory, err := gs.InventoryOf(npc)
	if err != nil {
		t.Fatalf("InventoryOf failed, reason: %v", err)
	}
	if len(inventory) != 1 {
		t.Errorf("inventory length assertion failed, want: 1, got: %d",
			len(inventory))
	}
	if got := gs.Item(h1).Amount; got != 2 {
		t.Errorf("amount assertion failed, want: 2, got: %d", got)
	}
	if created != 1 {
		t.Errorf("create callback assertion failed, want: 1, got: %d",
			created)
	}
}

func TestCreateInvItemClampsAmount(t *testing.T) {
	vm, gs := gameFixture(t)

	farmer := symIndex(t, vm, "BAU_900_FARMER")
	npc, _ := gs.InsertNpc(farmer, "WP", vm)

	apple := symIndex(t, vm, "ITM_APPLE")
	handle, err := gs.CreateInvItem(apple, npc, 0, vm)
	if err != nil {
		t.Fatalf("CreateInvItem failed, reason: %v", err)
	}
	if got := gs.Item(handle).Amount; got != 1 {
		t.Errorf("clamp assertion failed, want: 1, got: %d", got)
	}
}

func TestRemoveInvItem(t *testing.T) {
	vm, gs := gameFixture(t)

	farmer := symIndex(t, vm, "BAU_900_FARMER")
	npc, _ := gs.InsertNpc(farmer, "WP", vm)
	sword := symIndex(t, vm, "ITM_SWORD")
	handle, _ := gs.CreateInvItem(sword, npc, 5, vm)

	// Partial removal decrements the stack.
	if !gs.RemoveInvItem(sword, npc, 2) {
		t.Fatalf("RemoveInvItem returned false for a carried item")
	}
	if got := gs.Item(handle).Amount; got != 3 {
		t.Errorf("amount assertion failed, want: 3, got: %d", got)
	}

	// Draining the stack removes and deallocates it.
	if !gs.RemoveInvItem(sword, npc, 3) {
		t.Fatalf("RemoveInvItem returned false for a carried item")
	}
	if gs.Item(handle) != nil {
		t.Errorf("drained stack still resolves")
	}
	inventory, _ := gs.InventoryOf(npc)
	if len(inventory) != 0 {
		t.Errorf("inventory length assertion failed, want: 0, got: %d",
			len(inventory))
	}

	// A symbol the NPC does not carry reports false.
	apple := symIndex(t, vm, "ITM_APPLE")
	if gs.RemoveInvItem(apple, npc, 1) {
		t.Errorf("RemoveInvItem returned true for a missing item")
	}
}

func TestRemoveNpc(t *testing.T) {
	vm, gs := gameFixture(t)

	farmer := symIndex(t, vm, "BAU_900_FARMER")
	npc, _ := gs.InsertNpc(farmer, "WP", vm)
	sword := symIndex(t, vm, "ITM_SWORD")
	item, _ := gs.CreateInvItem(sword, npc, 1, vm)

	removed := false
	gs.Externals.RemoveNpc = func(h Handle) { removed = true }

	gs.RemoveNpc(npc)
	if !removed {
		t.Errorf("remove callback was not invoked")
	}
	if gs.Npc(npc) != nil {
		t.Errorf("removed npc still resolves")
	}
	if gs.Item(item) != nil {
		t.Errorf("inventory item survived its owner")
	}
	if _, err := gs.InventoryOf(npc); !errors.Is(err, ErrNoInventory) {
		t.Errorf("error assertion failed, want: %v, got: %v",
			ErrNoInventory, err)
	}
}

func TestInsertSoundEffectAndMusicTheme(t *testing.T) {
	vm, gs := gameFixture(t)

	sfx, err := gs.InsertSoundEffect(symIndex(t, vm, "SFX_SWORD_HIT"), vm)
	if err != nil {
		t.Fatalf("InsertSoundEffect failed, reason: %v", err)
	}
	if gs.SoundEffect(sfx) == nil {
		t.Errorf("sfx handle failed to resolve")
	}

	mus, err := gs.InsertMusicTheme(symIndex(t, vm, "MUS_OLDWORLD_DAY"), vm)
	if err != nil {
		t.Fatalf("InsertMusicTheme failed, reason: %v", err)
	}
	if gs.MusicTheme(mus) == nil {
		t.Errorf("music theme handle failed to resolve")
	}
}

func TestPoolLimitReached(t *testing.T) {
	vm, _ := gameFixture(t)
	gs := NewGameState(PoolLimits{Npcs: 1})

	farmer := symIndex(t, vm, "BAU_900_FARMER")
	if _, err := gs.InsertNpc(farmer, "WP", vm); err != nil {
		t.Fatalf("InsertNpc failed, reason: %v", err)
	}
	if _, err := gs.InsertNpc(farmer, "WP", vm); !errors.Is(err,
		ErrNoSpaceLeft) {
		t.Errorf("error assertion failed, want: %v, got: %v",
			ErrNoSpaceLeft, err)
	}
}

func TestDefaultPoolLimits(t *testing.T) {
	limits := DefaultPoolLimits()
	if limits.Npcs != MaxNumNpcs || limits.Infos != MaxNumInfo ||
		limits.Sfx != MaxNumSfx {
		t.Errorf("default limits assertion failed: %+v", limits)
	}

	// Zero fields fall back to the defaults.
	partial := PoolLimits{Npcs: 64}
	partial.applyDefaults()
	if partial.Npcs != 64 {
		t.Errorf("explicit limit was overridden: %d", partial.Npcs)
	}
	if partial.Items != MaxNumItems {
		t.Errorf("zero limit did not default: %d", partial.Items)
	}
}

func TestLoadPoolLimits(t *testing.T) {
	path := filepath.Join(t.TempDir(), "limits.yaml")
	content := "npcs: 100\nitems: 200\n"
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("WriteFile failed, reason: %v", err)
	}

	limits, err := LoadPoolLimits(path)
	if err != nil {
		t.Fatalf("LoadPoolLimits failed, reason: %v", err)
	}
	if limits.Npcs != 100 || limits.Items != 200 {
		t.Errorf("loaded limits assertion failed: %+v", limits)
	}
	if limits.Missions != MaxNumMissions {
		t.Errorf("omitted limit did not default: %d", limits.Missions)
	}

	if _, err := LoadPoolLimits(filepath.Join(t.TempDir(),
		"missing.yaml")); err == nil {
		t.Errorf("missing file must fail to load")
	}
}
