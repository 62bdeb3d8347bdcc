package game

import "time"

// Phase is the game state machine's current mode.
type Phase string

const (
	PhaseCreationStart    Phase = "CharacterCreationStart"
	PhaseCreationFinalize Phase = "CharacterCreationFinalize"
	PhaseGameplay         Phase = "Gameplay"
	PhaseCombat           Phase = "Combat"
	PhaseGameOver         Phase = "GameOver"
)

// Valid reports whether p is one of the known phases.
func (p Phase) Valid() bool {
	switch p {
	case PhaseCreationStart, PhaseCreationFinalize, PhaseGameplay, PhaseCombat, PhaseGameOver:
		return true
	}
	return false
}

// Playing reports whether p is an in-story phase (Gameplay or Combat).
func (p Phase) Playing() bool {
	return p == PhaseGameplay || p == PhaseCombat
}

// Speaker identifies who produced a message.
type Speaker string

const (
	SpeakerGame   Speaker = "game"
	SpeakerPlayer Speaker = "player"
	SpeakerSystem Speaker = "system"
)

// Message is one entry in the append-only story log.
type Message struct {
	Speaker Speaker `json:"speaker"`
	Text    string  `json:"text"`
}

// ItemType classifies inventory items.
type ItemType string

const (
	ItemWeapon ItemType = "weapon"
	ItemArmor  ItemType = "armor"
	ItemItem   ItemType = "item"
)

// Valid reports whether t is a known item type.
func (t ItemType) Valid() bool {
	return t == ItemWeapon || t == ItemArmor || t == ItemItem
}

// InventoryItem is a stack of items keyed by case-insensitive name.
type InventoryItem struct {
	Name        string   `json:"name"`
	Description string   `json:"description,omitempty"`
	Quantity    int      `json:"quantity"`
	Type        ItemType `json:"type"`
}

// Companion travels with a character.
type Companion struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	Kind         string `json:"kind"`
	Backstory    string `json:"backstory,omitempty"`
	Relationship string `json:"relationship,omitempty"`
}

// Customization records the options chosen for one customization area.
type Customization struct {
	Area       string   `json:"area"`
	Selections []string `json:"selections"`
}

// VisualTheme is a cosmetic palette attached to a character.
type VisualTheme struct {
	Primary    string `json:"primary"`
	Secondary  string `json:"secondary"`
	Background string `json:"background"`
	Text       string `json:"text"`
	Accent     string `json:"accent"`
	Font       string `json:"font,omitempty"`
}

// Character is the player's protagonist. ID doubles as the save-slot key.
type Character struct {
	ID               string          `json:"id"`
	Name             string          `json:"name"`
	Theme            string          `json:"theme"`
	Description      string          `json:"description,omitempty"`
	Alignment        string          `json:"alignment,omitempty"`
	Backstory        string          `json:"backstory,omitempty"`
	Health           int             `json:"health"`
	MaxHealth        int             `json:"maxHealth"`
	Customizations   []Customization `json:"customizations,omitempty"`
	Inventory        []InventoryItem `json:"inventory"`
	Companions       []Companion     `json:"companions"`
	CanonEvents      string          `json:"canonEvents,omitempty"`
	VisualTheme      *VisualTheme    `json:"visualTheme,omitempty"`
	IsFromKnownWorld bool            `json:"isFromKnownWorld"`
}

// InventoryAction is the direction of an inventory change.
type InventoryAction string

const (
	InventoryAdd    InventoryAction = "add"
	InventoryRemove InventoryAction = "remove"
)

// InventoryChange is a single add/remove delta from a turn.
type InventoryChange struct {
	Action InventoryAction `json:"action"`
	Item   InventoryItem   `json:"item"`
}

// NewCharacter is someone the story introduced. It becomes a Companion only
// after the player explicitly recruits it.
type NewCharacter struct {
	Name        string `json:"name"`
	Kind        string `json:"kind"`
	Description string `json:"description,omitempty"`
}

// TurnResult is the validated output of one narrative generation call.
type TurnResult struct {
	SceneDescription string           `json:"sceneDescription"`
	Choices          []string         `json:"choices"`
	IsCombat         bool             `json:"isCombat"`
	AttackOptions    []string         `json:"attackOptions"`
	UpdatedHealth    int              `json:"updatedHealth"`
	InventoryChange  *InventoryChange `json:"inventoryChange,omitempty"`
	IsGameOver       bool             `json:"isGameOver"`
	NewCharacters    []NewCharacter   `json:"newCharacters,omitempty"`
}

// SaveData is one persisted save slot.
type SaveData struct {
	ID            string     `json:"id"`
	LastSaved     time.Time  `json:"lastSaved"`
	Phase         Phase      `json:"phase"`
	Character     *Character `json:"character"`
	Messages      []Message  `json:"messages"`
	Choices       []string   `json:"choices"`
	AttackOptions []string   `json:"attackOptions"`
}

// ProtagonistStatus is the fate of the previous character during a handoff.
type ProtagonistStatus string

const (
	ProtagonistDead  ProtagonistStatus = "dead"
	ProtagonistAlive ProtagonistStatus = "alive"
)

// PreviousProtagonist describes who held the story before a handoff.
type PreviousProtagonist struct {
	Name   string            `json:"name"`
	Status ProtagonistStatus `json:"status"`
}

// WorldContinuation carries world state from one protagonist to the next.
type WorldContinuation struct {
	WorldTheme          string              `json:"worldTheme"`
	PreviousProtagonist PreviousProtagonist `json:"previousProtagonist"`
	PriorHistory        []Message           `json:"priorHistory"`
}
