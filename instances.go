// Copyright 2022 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package dat

// InstanceClass tags which game-state pool an instance record lives in.
type InstanceClass uint8

// Instance classes.
const (
	ClassNone InstanceClass = iota
	ClassNpc
	ClassMission
	ClassInfo
	ClassItem
	ClassItemReact
	ClassFocus
	ClassMenu
	ClassMenuItem
	ClassSfx
	ClassPfx
	ClassMusicTheme
)

// String stringify the instance class.
func (c InstanceClass) String() string {
	classMap := map[InstanceClass]string{
		ClassNone:       "None",
		ClassNpc:        "Npc",
		ClassMission:    "Mission",
		ClassInfo:       "Info",
		ClassItem:       "Item",
		ClassItemReact:  "ItemReact",
		ClassFocus:      "Focus",
		ClassMenu:       "Menu",
		ClassMenuItem:   "MenuItem",
		ClassSfx:        "Sfx",
		ClassPfx:        "Pfx",
		ClassMusicTheme: "MusicTheme",
	}

	if value, ok := classMap[c]; ok {
		return value
	}
	return "?"
}

// Array bounds shared by the script classes. Scripts address instance arrays
// with these, so the host records must match them exactly.
const (
	MaxChapter   = 5
	MaxMissions  = 5
	MaxHitChance = 5
	AtrIndexMax  = 8
	ItmTextMax   = 6

	DamIndexBarrier = 0
	DamIndexBlunt   = 1
	DamIndexEdge    = 2
	DamIndexFire    = 3
	DamIndexFly     = 4
	DamIndexMagic   = 5
	DamIndexPoint   = 6
	DamIndexFall    = 7
	DamIndexMax     = 8

	ProtBarrier  = DamIndexBarrier
	ProtBlunt    = DamIndexBlunt
	ProtEdge     = DamIndexEdge
	ProtFire     = DamIndexFire
	ProtFly      = DamIndexFly
	ProtMagic    = DamIndexMagic
	ProtPoint    = DamIndexPoint
	ProtFall     = DamIndexFall
	ProtIndexMax = DamIndexMax

	CondAtrMax = 3
)

// NPC flag bits.
const (
	NpcFlagFriends   = 1 << 0
	NpcFlagImmortal  = 1 << 1
	NpcFlagGhost     = 1 << 2
	NpcFlagProtected = 1 << 10
)

// Item category bits.
const (
	ItemCatNil    = 1 << 0
	ItemCatNf     = 1 << 1
	ItemCatFf     = 1 << 2
	ItemCatMun    = 1 << 3
	ItemCatArmor  = 1 << 4
	ItemCatFood   = 1 << 5
	ItemCatDocs   = 1 << 6
	ItemCatPotion = 1 << 7
	ItemCatLight  = 1 << 8
	ItemCatRune   = 1 << 9
	ItemCatMagic  = 1 << 31
)

// Item flag bits.
const (
	ItemFlagRing         = 1 << 11
	ItemFlagMission      = 1 << 12
	ItemFlagDagger       = 1 << 13
	ItemFlagSword        = 1 << 14
	ItemFlagAxe          = 1 << 15
	ItemFlagTwoHandSword = 1 << 16
	ItemFlagTwoHandAxe   = 1 << 17
	ItemFlagBow          = 1 << 19
	ItemFlagCrossBow     = 1 << 20
	ItemFlagAmulet       = 1 << 22
	ItemFlagBelt         = 1 << 24
)

// Menu flag bits.
const (
	MenuFlagOvertop      = 1 << 0
	MenuFlagExclusive    = 1 << 1
	MenuFlagNoAni        = 1 << 2
	MenuFlagDontScaleDim = 1 << 3
	MenuFlagDontScalePos = 1 << 4
	MenuFlagAlignCenter  = 1 << 5
	MenuFlagShowInfo     = 1 << 6
)

// Menu item flag bits.
const (
	MenuItemFlagChromakeyed  = 1 << 0
	MenuItemFlagTransparent  = 1 << 1
	MenuItemFlagSelectable   = 1 << 2
	MenuItemFlagMoveable     = 1 << 3
	MenuItemFlagTxtCenter    = 1 << 4
	MenuItemFlagDisabled     = 1 << 5
	MenuItemFlagFade         = 1 << 6
	MenuItemFlagEffectsNext  = 1 << 7
	MenuItemFlagOnlyOutGame  = 1 << 8
	MenuItemFlagOnlyInGame   = 1 << 9
	MenuItemFlagPerfOption   = 1 << 10
	MenuItemFlagMultiline    = 1 << 11
	MenuItemFlagNeedsApply   = 1 << 12
	MenuItemFlagNeedsRestart = 1 << 13
	MenuItemFlagExtendedMenu = 1 << 14
)

// Menu item kinds.
const (
	MenuItemKindUndef = iota
	MenuItemKindText
	MenuItemKindSlider
	MenuItemKindInput
	MenuItemKindCursor
	MenuItemKindChoiceBox
	MenuItemKindButton
	MenuItemKindListBox
)

// Instance is implemented by every typed game-object record; the VM tracks
// which symbol materialized the record through it.
type Instance interface {
	InstanceSymbol() int
	SetInstanceSymbol(index int)
}

// instanceBase carries the common instance-symbol attribute.
type instanceBase struct {
	instanceSymbol int
}

// InstanceSymbol returns the index of the symbol the record was materialized
// from.
func (b *instanceBase) InstanceSymbol() int {
	return b.instanceSymbol
}

// SetInstanceSymbol records the materializing symbol index.
func (b *instanceBase) SetInstanceSymbol(index int) {
	b.instanceSymbol = index
}

// NpcAttributes is the stat block of an NPC.
type NpcAttributes struct {
	HitPoints      int32
	HitPointsMax   int32
	Mana           int32
	ManaMax        int32
	Strength       int32
	Dexterity      int32
	RegenerateHP   int32
	RegenerateMana int32
}

// Npc is a script-controlled character.
type Npc struct {
	instanceBase
	ID         int32
	Name       [5]string
	Slot       string
	Effect     string
	Type       int32
	Flags      uint32
	Attributes NpcAttributes
	HitChance  [MaxHitChance]int32
	Protection [ProtIndexMax]int32
	Damage     [DamIndexMax]int32
	DamageType int32
	Guild      int32
	Level      int32
	Mission    [MaxMissions]uint32
	FightTactic int32
	Weapon     int32

	Voice      int32
	VoicePitch int32
	BodyMass   int32
	DailyRoutine uint32
	StartAIState uint32

	SpawnPoint string
	SpawnDelay int32

	Senses      int32
	SensesRange int32

	AIVar    []int32
	Waypoint string

	Exp     int32
	ExpNext int32
	LP      int32

	BodyStateInterruptableOverride int32
	NoFocus                        int32
}

// Item is a carryable or equipable object.
type Item struct {
	instanceBase
	ID          int32
	Name        string
	NameID      string
	HP          int32
	HPMax       int32
	MainFlag    uint32
	Flags       uint32
	Weight      int32
	Value       int32
	DamageType  int32
	DamageTotal int32
	Damage      [DamIndexMax]int32
	Wear        int32
	Protection  [ProtIndexMax]int32
	Nutrition   int32
	CondAtr     [CondAtrMax]int32
	CondValue   [CondAtrMax]int32

	Magic     uint32
	OnEquip   uint32
	OnUnequip uint32
	OnState   [4]uint32

	Owner         uint32
	OwnerGuild    int32
	DisguiseGuild int32

	Visual       string
	VisualChange string
	Effect       string
	VisualSkin   int32

	SchemeName string
	Material   int32
	Munition   int32
	Spell      int32
	Range      int32
	MagCircle  int32

	Description string
	Text        [ItmTextMax]string
	Count       [ItmTextMax]int32

	InvZBias   int32
	InvRot     [3]int32
	InvAnimate int32

	// Amount is the stack size while the item sits in an inventory.
	Amount uint32
}

// Mission is a quest description.
type Mission struct {
	instanceBase
	Name        string
	Description string
	Duration    int32
	Important   int32

	OfferConditions    uint32
	Offer              uint32
	SuccessConditions  uint32
	Success            uint32
	FailureConditions  uint32
	Failure            uint32
	ObsoleteConditions uint32
	Obsolete           uint32
	Running            uint32
}

// Focus holds the focus-collection tuning of the camera/targeting logic.
type Focus struct {
	instanceBase
	NpcLongRange   float32
	NpcRange       [2]float32
	NpcAzi         float32
	NpcElev        [2]float32
	NpcPrio        int32

	ItemRange [2]float32
	ItemAzi   float32
	ItemElev  [2]float32
	ItemPrio  int32

	MobRange [2]float32
	MobAzi   float32
	MobElev  [2]float32
	MobPrio  int32
}

// SubChoice is one dialog sub-option of an Info.
type SubChoice struct {
	Text    string
	FuncSym uint32
}

// Info is a dialog entry.
type Info struct {
	instanceBase
	Npc         int32
	Nr          int32
	Important   int32
	Condition   uint32
	Information uint32
	Description string
	Trade       int32
	Permanent   int32
	SubChoices  []SubChoice
}

// AddChoice appends a dialog sub-option.
func (inf *Info) AddChoice(choice SubChoice) {
	inf.SubChoices = append(inf.SubChoices, choice)
}

// RemoveChoice removes the n-th dialog sub-option.
func (inf *Info) RemoveChoice(n int) {
	if n < 0 || n >= len(inf.SubChoices) {
		return
	}
	inf.SubChoices = append(inf.SubChoices[:n], inf.SubChoices[n+1:]...)
}

// ItemReact describes an NPC's reaction to being traded an item.
type ItemReact struct {
	instanceBase
	Npc             int32
	TradeItem       int32
	TradeAmount     int32
	RequestedCat    int32
	RequestedItem   int32
	RequestedAmount int32
	Reaction        uint32
}

// Menu is a UI menu definition.
type Menu struct {
	instanceBase
	BackPic             string
	BackWorld           string
	PosX, PosY          int32
	DimX, DimY          int32
	Alpha               int32
	MusicTheme          string
	EventTimerMillisec  int32
	Items               []string
	Flags               int32
	DefaultOutGame      int32
	DefaultInGame       int32
}

// MenuItem is one entry of a Menu.
type MenuItem struct {
	instanceBase
	FontName   string
	Text       []string
	BackPic    string
	AlphaMode  string
	Alpha      int32
	Type       int32
	OnSelAction        []int32
	OnSelActionS       []string
	OnChgSetOption     string
	OnChgSetOptionSection string

	OnEventAction []int32
	PosX, PosY    int32
	DimX, DimY    int32
	SizeStartScale float32
	Flags          int32
	OpenDelayTime  float32
	OpenDuration   float32
	UserFloat      []float32
	UserString     []string
	FrameSizeX     int32
	FrameSizeY     int32
	HideIfOptionSectionSet string
	HideIfOptionSet        string
	HideOnValue            int32
}

// SoundEffect is a sound scheme definition.
type SoundEffect struct {
	instanceBase
	File            string
	PitchOff        int32
	PitchVar        int32
	Vol             int32
	Loop            int32
	LoopStartOffset int32
	LoopEndOffset   int32
	ReverbLevel     float32
	PfxName         string
}

// ParticleEffect is a particle-emitter definition.
type ParticleEffect struct {
	instanceBase
	PpsValue         float32
	PpsScaleKeys     string
	PpsIsLooping     int32
	PpsIsSmooth      int32
	PpsFPS           float32
	PpsCreateEm      string
	PpsCreateEmDelay float32

	ShpType            string
	ShpFor             string
	ShpOffsetVec       string
	ShpDistribType     string
	ShpDistribWalkSpeed float32
	ShpIsVolume        int32
	ShpDim             string
	ShpMesh            string
	ShpMeshRender      int32
	ShpScaleKeys       string
	ShpScaleIsLooping  int32
	ShpScaleIsSmooth   int32
	ShpScaleFPS        float32

	DirMode          string
	DirFor           string
	DirModeTargetFor string
	DirModeTargetPos string
	DirAngleHead     float32
	DirAngleHeadVar  float32
	DirAngleElev     float32
	DirAngleElevVar  float32
	VelAvg           float32
	VelVar           float32

	LspPartAvg float32
	LspPartVar float32

	FlyGravity string
	FlyCollDet int32

	VisName            string
	VisOrientation     string
	VisTexIsQuadPoly   int32
	VisTexAniFPS       float32
	VisTexAniIsLooping int32
	VisTexColorStart   string
	VisTexColorEnd     string
	VisSizeStart       string
	VisSizeEndScale    float32
	VisAlphaFunc       string
	VisAlphaStart      float32
	VisAlphaEnd        float32

	TrlFadeSpeed float32
	TrlTexture   string
	TrlWidth     float32

	MrkFadeSpeed float32
	MrkTexture   string
	MrkSize      float32

	FlockMode     string
	FlockStrength float32

	UseEmittersFor int32
	TimeStartEnd   string
	IsAmbientPfx   int32
}

// MusicTheme is a music segment definition.
type MusicTheme struct {
	instanceBase
	File        string
	Vol         float32
	Loop        int32
	ReverbMix   float32
	ReverbTime  float32
	TransType   int32
	TransSubType int32
}

// Spell is a magic spell definition. Spells have no dedicated pool; the
// record is kept for hosts that bind spell classes.
type Spell struct {
	instanceBase
	TimePerMana                 float32
	DamagePerLevel              int32
	DamageType                  int32
	SpellType                   int32
	CanTurnDuringInvest         int32
	CanChangeTargetDuringInvest int32
	IsMultiEffect               int32
	TargetCollectAlgo           int32
	TargetCollectType           int32
	TargetCollectRange          int32
	TargetCollectAzi            int32
	TargetCollectElev           int32
}
