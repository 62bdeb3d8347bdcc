package generation

import (
	"fmt"
	"strings"

	"github.com/roninrabbat-maker/adventure-forge/internal/game"
)

// Wire types mirror the JSON the model is asked to return. Pointer fields
// separate "missing" from zero values; validate converts them into game
// types or rejects the payload.

type wireItem struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Quantity    *int   `json:"quantity"`
	Type        string `json:"type"`
}

type wireInventoryChange struct {
	Action string    `json:"action"`
	Item   *wireItem `json:"item"`
}

type wireNewCharacter struct {
	Name        string `json:"name"`
	Kind        string `json:"kind"`
	Description string `json:"description"`
}

type wireTurn struct {
	SceneDescription *string              `json:"sceneDescription"`
	Choices          []string             `json:"choices"`
	IsCombat         bool                 `json:"isCombat"`
	AttackOptions    []string             `json:"attackOptions"`
	UpdatedHealth    *int                 `json:"updatedHealth"`
	InventoryChange  *wireInventoryChange `json:"inventoryChange"`
	IsGameOver       bool                 `json:"isGameOver"`
	NewCharacters    []wireNewCharacter   `json:"newCharacters"`
}

func (w wireTurn) validate() (game.TurnResult, error) {
	if w.SceneDescription == nil || strings.TrimSpace(*w.SceneDescription) == "" {
		return game.TurnResult{}, fmt.Errorf("sceneDescription is required")
	}
	if w.UpdatedHealth == nil {
		return game.TurnResult{}, fmt.Errorf("updatedHealth is required")
	}
	r := game.TurnResult{
		SceneDescription: strings.TrimSpace(*w.SceneDescription),
		Choices:          nonEmpty(w.Choices),
		IsCombat:         w.IsCombat,
		AttackOptions:    nonEmpty(w.AttackOptions),
		UpdatedHealth:    *w.UpdatedHealth,
		IsGameOver:       w.IsGameOver,
	}
	if w.InventoryChange != nil {
		change, err := w.InventoryChange.validate()
		if err != nil {
			return game.TurnResult{}, err
		}
		r.InventoryChange = &change
	}
	for i, nc := range w.NewCharacters {
		if strings.TrimSpace(nc.Name) == "" {
			return game.TurnResult{}, fmt.Errorf("newCharacters[%d]: name is required", i)
		}
		r.NewCharacters = append(r.NewCharacters, game.NewCharacter{
			Name:        strings.TrimSpace(nc.Name),
			Kind:        nc.Kind,
			Description: nc.Description,
		})
	}
	return r, nil
}

func (w wireInventoryChange) validate() (game.InventoryChange, error) {
	action := game.InventoryAction(strings.ToLower(strings.TrimSpace(w.Action)))
	if action != game.InventoryAdd && action != game.InventoryRemove {
		return game.InventoryChange{}, fmt.Errorf("inventoryChange.action %q must be add or remove", w.Action)
	}
	if w.Item == nil {
		return game.InventoryChange{}, fmt.Errorf("inventoryChange.item is required")
	}
	item, err := w.Item.validate()
	if err != nil {
		return game.InventoryChange{}, fmt.Errorf("inventoryChange.item: %w", err)
	}
	return game.InventoryChange{Action: action, Item: item}, nil
}

func (w wireItem) validate() (game.InventoryItem, error) {
	name := strings.TrimSpace(w.Name)
	if name == "" {
		return game.InventoryItem{}, fmt.Errorf("name is required")
	}
	if w.Quantity == nil || *w.Quantity <= 0 {
		return game.InventoryItem{}, fmt.Errorf("%s: quantity must be positive", name)
	}
	typ := game.ItemType(strings.ToLower(strings.TrimSpace(w.Type)))
	if !typ.Valid() {
		return game.InventoryItem{}, fmt.Errorf("%s: type %q must be weapon, armor or item", name, w.Type)
	}
	return game.InventoryItem{Name: name, Description: w.Description, Quantity: *w.Quantity, Type: typ}, nil
}

type wireArea struct {
	Name        string   `json:"name"`
	Options     []string `json:"options"`
	MultiSelect bool     `json:"multiSelect"`
}

type wireTab struct {
	Name  string     `json:"name"`
	Areas []wireArea `json:"areas"`
}

type wireCompanion struct {
	Name         string `json:"name"`
	Kind         string `json:"kind"`
	Backstory    string `json:"backstory"`
	Relationship string `json:"relationship"`
}

type wireScaffold struct {
	Name                 string          `json:"name"`
	Theme                string          `json:"theme"`
	Backstory            string          `json:"backstory"`
	WorldDetails         string          `json:"worldDetails"`
	IsFromKnownWorld     bool            `json:"isFromKnownWorld"`
	Tabs                 []wireTab       `json:"tabs"`
	Alignments           []string        `json:"alignments"`
	StartingInventory    []wireItem      `json:"startingInventory"`
	StartingHealth       int             `json:"startingHealth"`
	CompanionSuggestions []wireCompanion `json:"companionSuggestions"`
}

func (w wireScaffold) validate() (*game.Scaffold, error) {
	if strings.TrimSpace(w.Name) == "" || strings.TrimSpace(w.Theme) == "" {
		return nil, fmt.Errorf("name and theme are required")
	}
	if len(w.Tabs) == 0 {
		return nil, fmt.Errorf("at least one customization tab is required")
	}
	s := &game.Scaffold{
		Name:             strings.TrimSpace(w.Name),
		Theme:            strings.TrimSpace(w.Theme),
		Backstory:        w.Backstory,
		WorldDetails:     w.WorldDetails,
		IsFromKnownWorld: w.IsFromKnownWorld,
		Alignments:       nonEmpty(w.Alignments),
		StartingHealth:   w.StartingHealth,
	}
	for i, t := range w.Tabs {
		if strings.TrimSpace(t.Name) == "" {
			return nil, fmt.Errorf("tabs[%d]: name is required", i)
		}
		tab := game.CustomizationTab{Name: strings.TrimSpace(t.Name)}
		for j, a := range t.Areas {
			if strings.TrimSpace(a.Name) == "" {
				return nil, fmt.Errorf("tabs[%d].areas[%d]: name is required", i, j)
			}
			// scaffold option lists start empty; they are filled per tab
			tab.Areas = append(tab.Areas, game.CustomizationArea{Name: strings.TrimSpace(a.Name), MultiSelect: a.MultiSelect})
		}
		s.Tabs = append(s.Tabs, tab)
	}
	for i, it := range w.StartingInventory {
		item, err := it.validate()
		if err != nil {
			return nil, fmt.Errorf("startingInventory[%d]: %w", i, err)
		}
		s.StartingInventory = game.ApplyInventoryChange(s.StartingInventory, game.InventoryChange{Action: game.InventoryAdd, Item: item})
	}
	for i, c := range w.CompanionSuggestions {
		if strings.TrimSpace(c.Name) == "" {
			return nil, fmt.Errorf("companionSuggestions[%d]: name is required", i)
		}
		s.CompanionSuggestions = append(s.CompanionSuggestions, game.Companion{
			Name:         strings.TrimSpace(c.Name),
			Kind:         c.Kind,
			Backstory:    c.Backstory,
			Relationship: c.Relationship,
		})
	}
	return s, nil
}

type wireTabOptions struct {
	Areas []wireArea `json:"areas"`
}

func (w wireTabOptions) validate() ([]game.CustomizationArea, error) {
	if len(w.Areas) == 0 {
		return nil, fmt.Errorf("no areas returned")
	}
	out := make([]game.CustomizationArea, 0, len(w.Areas))
	for i, a := range w.Areas {
		if strings.TrimSpace(a.Name) == "" {
			return nil, fmt.Errorf("areas[%d]: name is required", i)
		}
		out = append(out, game.CustomizationArea{
			Name:        strings.TrimSpace(a.Name),
			Options:     nonEmpty(a.Options),
			MultiSelect: a.MultiSelect,
		})
	}
	return out, nil
}

type wireVisualTheme struct {
	Primary    string `json:"primary"`
	Secondary  string `json:"secondary"`
	Background string `json:"background"`
	Text       string `json:"text"`
	Accent     string `json:"accent"`
	Font       string `json:"font"`
}

func (w wireVisualTheme) validate() (game.VisualTheme, error) {
	for name, v := range map[string]string{
		"primary": w.Primary, "secondary": w.Secondary, "background": w.Background,
		"text": w.Text, "accent": w.Accent,
	} {
		if strings.TrimSpace(v) == "" {
			return game.VisualTheme{}, fmt.Errorf("%s color is required", name)
		}
	}
	return game.VisualTheme(w), nil
}

type wireCharacter struct {
	Name             string          `json:"name"`
	Theme            string          `json:"theme"`
	Description      string          `json:"description"`
	Alignment        string          `json:"alignment"`
	Backstory        string          `json:"backstory"`
	Health           *int            `json:"health"`
	MaxHealth        *int            `json:"maxHealth"`
	Inventory        []wireItem      `json:"inventory"`
	Companions       []wireCompanion `json:"companions"`
	IsFromKnownWorld bool            `json:"isFromKnownWorld"`
}

func (w wireCharacter) validate() (game.Character, error) {
	if strings.TrimSpace(w.Name) == "" || strings.TrimSpace(w.Theme) == "" {
		return game.Character{}, fmt.Errorf("name and theme are required")
	}
	maxHealth := game.DefaultMaxHealth
	if w.MaxHealth != nil {
		if *w.MaxHealth <= 0 {
			return game.Character{}, fmt.Errorf("maxHealth must be positive")
		}
		maxHealth = *w.MaxHealth
	}
	health := maxHealth
	if w.Health != nil {
		if *w.Health <= 0 {
			return game.Character{}, fmt.Errorf("health must be positive")
		}
		health = *w.Health
	}
	c := game.Character{
		Name:             strings.TrimSpace(w.Name),
		Theme:            strings.TrimSpace(w.Theme),
		Description:      w.Description,
		Alignment:        w.Alignment,
		Backstory:        w.Backstory,
		Health:           health,
		MaxHealth:        maxHealth,
		Inventory:        []game.InventoryItem{},
		Companions:       []game.Companion{},
		IsFromKnownWorld: w.IsFromKnownWorld,
	}
	for i, it := range w.Inventory {
		item, err := it.validate()
		if err != nil {
			return game.Character{}, fmt.Errorf("inventory[%d]: %w", i, err)
		}
		c.Inventory = game.ApplyInventoryChange(c.Inventory, game.InventoryChange{Action: game.InventoryAdd, Item: item})
	}
	for i, comp := range w.Companions {
		if strings.TrimSpace(comp.Name) == "" {
			return game.Character{}, fmt.Errorf("companions[%d]: name is required", i)
		}
		c.Companions = append(c.Companions, game.Companion{
			Name:         strings.TrimSpace(comp.Name),
			Kind:         comp.Kind,
			Backstory:    comp.Backstory,
			Relationship: comp.Relationship,
		})
	}
	return c, nil
}

type wireLore struct {
	CanonEvents *string `json:"canonEvents"`
}

func nonEmpty(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
