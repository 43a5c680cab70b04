// Copyright 2022 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package dat

import (
	"fmt"
	"os"

	"sigs.k8s.io/yaml"
)

// Default per-class pool limits.
const (
	MaxNumMisc = 1024

	MaxNumNpcs       = 12000
	MaxNumItems      = 12000
	MaxNumMissions   = 512
	MaxNumFocus      = MaxNumMisc
	MaxNumItemReact  = MaxNumMisc
	MaxNumInfo       = 16000
	MaxNumMenu       = MaxNumMisc
	MaxNumMenuItem   = MaxNumMisc
	MaxNumSfx        = 4096 // G2 has 1700
	MaxNumPfx        = 1024
	MaxNumMusicTheme = 512
)

// PoolLimits bounds every per-class object pool. Zero fields fall back to
// the defaults.
type PoolLimits struct {
	Npcs        int `json:"npcs"`
	Items       int `json:"items"`
	ItemReacts  int `json:"item_reacts"`
	Missions    int `json:"missions"`
	Focuses     int `json:"focuses"`
	Infos       int `json:"infos"`
	Menus       int `json:"menus"`
	MenuItems   int `json:"menu_items"`
	Sfx         int `json:"sfx"`
	Pfx         int `json:"pfx"`
	MusicThemes int `json:"music_themes"`
}

// DefaultPoolLimits returns the stock limits.
func DefaultPoolLimits() PoolLimits {
	return PoolLimits{
		Npcs:        MaxNumNpcs,
		Items:       MaxNumItems,
		ItemReacts:  MaxNumItemReact,
		Missions:    MaxNumMissions,
		Focuses:     MaxNumFocus,
		Infos:       MaxNumInfo,
		Menus:       MaxNumMenu,
		MenuItems:   MaxNumMenuItem,
		Sfx:         MaxNumSfx,
		Pfx:         MaxNumPfx,
		MusicThemes: MaxNumMusicTheme,
	}
}

// LoadPoolLimits reads limits from a YAML file; omitted fields keep their
// defaults.
func LoadPoolLimits(path string) (PoolLimits, error) {
	limits := DefaultPoolLimits()
	data, err := os.ReadFile(path)
	if err != nil {
		return limits, err
	}
	if err := yaml.Unmarshal(data, &limits); err != nil {
		return limits, fmt.Errorf("pool limits %s: %w", path, err)
	}
	limits.applyDefaults()
	return limits, nil
}

func (l *PoolLimits) applyDefaults() {
	def := DefaultPoolLimits()
	if l.Npcs == 0 {
		l.Npcs = def.Npcs
	}
	if l.Items == 0 {
		l.Items = def.Items
	}
	if l.ItemReacts == 0 {
		l.ItemReacts = def.ItemReacts
	}
	if l.Missions == 0 {
		l.Missions = def.Missions
	}
	if l.Focuses == 0 {
		l.Focuses = def.Focuses
	}
	if l.Infos == 0 {
		l.Infos = def.Infos
	}
	if l.Menus == 0 {
		l.Menus = def.Menus
	}
	if l.MenuItems == 0 {
		l.MenuItems = def.MenuItems
	}
	if l.Sfx == 0 {
		l.Sfx = def.Sfx
	}
	if l.Pfx == 0 {
		l.Pfx = def.Pfx
	}
	if l.MusicThemes == 0 {
		l.MusicThemes = def.MusicThemes
	}
}

// GameExternals are the host callbacks the game state invokes around object
// lifecycle and quest-log events. A nil field means "skip".
type GameExternals struct {
	InsertNpc         func(npc Handle, waypoint string)
	PostInsertNpc     func(npc Handle)
	RemoveNpc         func(npc Handle)
	InsertItem        func(item Handle)
	CreateInvItem     func(item Handle, npc Handle)
	GetDay            func() int32
	LogCreateTopic    func(name string)
	LogSetTopicStatus func(name string)
	LogAddEntry       func(topic, entry string)
}

// Inventory is the ordered item-handle list an NPC carries.
type Inventory []Handle

// GameState owns the per-class object pools, the NPC inventories and the
// host callback table. The VM mutates it through the insert and inventory
// operations.
type GameState struct {
	Externals GameExternals

	npcs        *ObjectAllocator[Npc]
	items       *ObjectAllocator[Item]
	itemReacts  *ObjectAllocator[ItemReact]
	missions    *ObjectAllocator[Mission]
	focuses     *ObjectAllocator[Focus]
	infos       *ObjectAllocator[Info]
	menus       *ObjectAllocator[Menu]
	menuItems   *ObjectAllocator[MenuItem]
	soundEffects    *ObjectAllocator[SoundEffect]
	particleEffects *ObjectAllocator[ParticleEffect]
	musicThemes     *ObjectAllocator[MusicTheme]

	npcInventories map[Handle]Inventory
}

// NewGameState builds the pools with the given limits.
func NewGameState(limits PoolLimits) *GameState {
	limits.applyDefaults()
	return &GameState{
		npcs:            NewObjectAllocator[Npc](limits.Npcs),
		items:           NewObjectAllocator[Item](limits.Items),
		itemReacts:      NewObjectAllocator[ItemReact](limits.ItemReacts),
		missions:        NewObjectAllocator[Mission](limits.Missions),
		focuses:         NewObjectAllocator[Focus](limits.Focuses),
		infos:           NewObjectAllocator[Info](limits.Infos),
		menus:           NewObjectAllocator[Menu](limits.Menus),
		menuItems:       NewObjectAllocator[MenuItem](limits.MenuItems),
		soundEffects:    NewObjectAllocator[SoundEffect](limits.Sfx),
		particleEffects: NewObjectAllocator[ParticleEffect](limits.Pfx),
		musicThemes:     NewObjectAllocator[MusicTheme](limits.MusicThemes),
		npcInventories:  make(map[Handle]Inventory),
	}
}

// Npc resolves an NPC handle.
func (gs *GameState) Npc(h Handle) *Npc {
	return gs.npcs.Get(h)
}

// Item resolves an item handle.
func (gs *GameState) Item(h Handle) *Item {
	return gs.items.Get(h)
}

// ItemReact resolves an item-reaction handle.
func (gs *GameState) ItemReact(h Handle) *ItemReact {
	return gs.itemReacts.Get(h)
}

// Mission resolves a mission handle.
func (gs *GameState) Mission(h Handle) *Mission {
	return gs.missions.Get(h)
}

// Focus resolves a focus handle.
func (gs *GameState) Focus(h Handle) *Focus {
	return gs.focuses.Get(h)
}

// Info resolves an info handle.
func (gs *GameState) Info(h Handle) *Info {
	return gs.infos.Get(h)
}

// Menu resolves a menu handle.
func (gs *GameState) Menu(h Handle) *Menu {
	return gs.menus.Get(h)
}

// MenuItem resolves a menu-item handle.
func (gs *GameState) MenuItem(h Handle) *MenuItem {
	return gs.menuItems.Get(h)
}

// SoundEffect resolves a sound-effect handle.
func (gs *GameState) SoundEffect(h Handle) *SoundEffect {
	return gs.soundEffects.Get(h)
}

// ParticleEffect resolves a particle-effect handle.
func (gs *GameState) ParticleEffect(h Handle) *ParticleEffect {
	return gs.particleEffects.Get(h)
}

// MusicTheme resolves a music-theme handle.
func (gs *GameState) MusicTheme(h Handle) *MusicTheme {
	return gs.musicThemes.Get(h)
}

// InsertNpc materializes the NPC instance symbol at the given waypoint and
// runs its initializer.
func (gs *GameState) InsertNpc(instance int, waypoint string,
	vm *VirtualMachine) (Handle, error) {

	handle, err := gs.npcs.Create()
	if err != nil {
		return InvalidHandle, fmt.Errorf("npc pool: %w", err)
	}
	npc := gs.npcs.Get(handle)
	npc.SetInstanceSymbol(instance)
	npc.Waypoint = waypoint

	if gs.Externals.InsertNpc != nil {
		gs.Externals.InsertNpc(handle, waypoint)
	}
	if err := vm.InitialiseInstance(handle, instance, ClassNpc); err != nil {
		gs.npcs.Remove(handle)
		return InvalidHandle, err
	}
	if gs.Externals.PostInsertNpc != nil {
		gs.Externals.PostInsertNpc(handle)
	}
	return handle, nil
}

// RemoveNpc frees an NPC and everything it carries.
func (gs *GameState) RemoveNpc(handle Handle) {
	if gs.Externals.RemoveNpc != nil {
		gs.Externals.RemoveNpc(handle)
	}
	for _, item := range gs.npcInventories[handle] {
		gs.items.Remove(item)
	}
	delete(gs.npcInventories, handle)
	gs.npcs.Remove(handle)
}

// InsertItem materializes an item instance symbol and runs its initializer.
func (gs *GameState) InsertItem(instance int, vm *VirtualMachine) (Handle, error) {
	handle, err := gs.items.Create()
	if err != nil {
		return InvalidHandle, fmt.Errorf("item pool: %w", err)
	}
	gs.items.Get(handle).SetInstanceSymbol(instance)

	if err := vm.InitialiseInstance(handle, instance, ClassItem); err != nil {
		gs.items.Remove(handle)
		return InvalidHandle, err
	}
	if gs.Externals.InsertItem != nil {
		gs.Externals.InsertItem(handle)
	}
	return handle, nil
}

// RemoveItem frees a free-standing item.
func (gs *GameState) RemoveItem(handle Handle) {
	gs.items.Remove(handle)
}

// RemoveMenu frees a menu.
func (gs *GameState) RemoveMenu(handle Handle) {
	gs.menus.Remove(handle)
}

// RemoveMenuItem frees a menu item.
func (gs *GameState) RemoveMenuItem(handle Handle) {
	gs.menuItems.Remove(handle)
}

// InsertSoundEffect materializes a sound-effect instance symbol and runs its
// initializer.
func (gs *GameState) InsertSoundEffect(instance int,
	vm *VirtualMachine) (Handle, error) {

	handle, err := gs.soundEffects.Create()
	if err != nil {
		return InvalidHandle, fmt.Errorf("sfx pool: %w", err)
	}
	gs.soundEffects.Get(handle).SetInstanceSymbol(instance)

	if err := vm.InitialiseInstance(handle, instance, ClassSfx); err != nil {
		gs.soundEffects.Remove(handle)
		return InvalidHandle, err
	}
	return handle, nil
}

// InsertMusicTheme materializes a music-theme instance symbol and runs its
// initializer.
func (gs *GameState) InsertMusicTheme(instance int,
	vm *VirtualMachine) (Handle, error) {

	handle, err := gs.musicThemes.Create()
	if err != nil {
		return InvalidHandle, fmt.Errorf("music pool: %w", err)
	}
	gs.musicThemes.Get(handle).SetInstanceSymbol(instance)

	if err := vm.InitialiseInstance(handle, instance, ClassMusicTheme); err != nil {
		gs.musicThemes.Remove(handle)
		return InvalidHandle, err
	}
	return handle, nil
}

// CreateInvItem puts amount of the item instance symbol into the NPC's
// inventory. An existing stack of the same instance symbol grows instead of
// a second entry appearing; a new stack is materialized and initialized
// through the VM.
func (gs *GameState) CreateInvItem(itemSymbol int, npc Handle, amount uint32,
	vm *VirtualMachine) (Handle, error) {

	if amount == 0 {
		amount = 1
	}

	for _, handle := range gs.npcInventories[npc] {
		item := gs.items.Get(handle)
		if item != nil && item.InstanceSymbol() == itemSymbol {
			item.Amount += amount
			return handle, nil
		}
	}

	handle, err := gs.items.Create()
	if err != nil {
		return InvalidHandle, fmt.Errorf("item pool: %w", err)
	}
	item := gs.items.Get(handle)
	item.SetInstanceSymbol(itemSymbol)
	item.Amount = amount

	if err := vm.InitialiseInstance(handle, itemSymbol, ClassItem); err != nil {
		gs.items.Remove(handle)
		return InvalidHandle, err
	}

	gs.npcInventories[npc] = append(gs.npcInventories[npc], handle)
	if gs.Externals.CreateInvItem != nil {
		gs.Externals.CreateInvItem(handle, npc)
	}
	return handle, nil
}

// RemoveInvItem takes amount of the item instance symbol out of the NPC's
// inventory; the stack is deallocated when it runs out. Returns false when
// the NPC does not carry the item.
func (gs *GameState) RemoveInvItem(itemSymbol int, npc Handle,
	amount uint32) bool {

	inventory := gs.npcInventories[npc]
	for i, handle := range inventory {
		item := gs.items.Get(handle)
		if item == nil || item.InstanceSymbol() != itemSymbol {
			continue
		}
		if item.Amount > amount {
			item.Amount -= amount
			return true
		}
		gs.items.Remove(handle)
		gs.npcInventories[npc] = append(inventory[:i], inventory[i+1:]...)
		return true
	}
	return false
}

// InventoryOf returns the NPC's inventory.
func (gs *GameState) InventoryOf(npc Handle) (Inventory, error) {
	inventory, ok := gs.npcInventories[npc]
	if !ok {
		return nil, ErrNoInventory
	}
	return inventory, nil
}
