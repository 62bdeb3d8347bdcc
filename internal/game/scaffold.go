package game

import (
	"fmt"
	"strings"
)

// CustomizationArea is one choosable facet of a character (hair, build, ...).
// Options is empty in a fresh scaffold until its tab is fetched.
type CustomizationArea struct {
	Name        string   `json:"name"`
	Options     []string `json:"options"`
	MultiSelect bool     `json:"multiSelect,omitempty"`
}

// CustomizationTab groups areas that are fetched together.
type CustomizationTab struct {
	Name  string              `json:"name"`
	Areas []CustomizationArea `json:"areas"`
}

// AreaNames returns the names of the tab's areas in order.
func (t CustomizationTab) AreaNames() []string {
	names := make([]string, len(t.Areas))
	for i, a := range t.Areas {
		names[i] = a.Name
	}
	return names
}

// Scaffold is the detailed-creation draft returned by the creation service.
type Scaffold struct {
	Name                 string             `json:"name"`
	Theme                string             `json:"theme"`
	Backstory            string             `json:"backstory,omitempty"`
	WorldDetails         string             `json:"worldDetails,omitempty"`
	IsFromKnownWorld     bool               `json:"isFromKnownWorld"`
	Tabs                 []CustomizationTab `json:"tabs"`
	Alignments           []string           `json:"alignments"`
	StartingInventory    []InventoryItem    `json:"startingInventory"`
	StartingHealth       int                `json:"startingHealth"`
	CompanionSuggestions []Companion        `json:"companionSuggestions"`
}

// CloneScaffold returns a deep copy of s (nil stays nil).
func CloneScaffold(s *Scaffold) *Scaffold {
	if s == nil {
		return nil
	}
	out := *s
	out.Tabs = make([]CustomizationTab, len(s.Tabs))
	for i, t := range s.Tabs {
		areas := make([]CustomizationArea, len(t.Areas))
		for j, a := range t.Areas {
			a.Options = cloneSlice(a.Options)
			areas[j] = a
		}
		out.Tabs[i] = CustomizationTab{Name: t.Name, Areas: areas}
	}
	out.Alignments = cloneSlice(s.Alignments)
	out.StartingInventory = cloneSlice(s.StartingInventory)
	out.CompanionSuggestions = cloneSlice(s.CompanionSuggestions)
	return &out
}

// Tab returns the named tab (case-insensitive).
func (s *Scaffold) Tab(name string) (CustomizationTab, bool) {
	key := Normalize(name)
	for _, t := range s.Tabs {
		if Normalize(t.Name) == key {
			return t, true
		}
	}
	return CustomizationTab{}, false
}

// MergeTabOptions returns a copy of s where the areas of tab are replaced by
// the matching entries of populated. Areas are matched by name, original
// order is kept, and areas absent from populated are left untouched.
func MergeTabOptions(s *Scaffold, tab string, populated []CustomizationArea) (*Scaffold, error) {
	out := CloneScaffold(s)
	byName := make(map[string]CustomizationArea, len(populated))
	for _, a := range populated {
		byName[Normalize(a.Name)] = a
	}

	key := Normalize(tab)
	for i := range out.Tabs {
		if Normalize(out.Tabs[i].Name) != key {
			continue
		}
		for j, area := range out.Tabs[i].Areas {
			if p, ok := byName[Normalize(area.Name)]; ok {
				out.Tabs[i].Areas[j] = CustomizationArea{
					Name:        area.Name,
					Options:     cloneSlice(p.Options),
					MultiSelect: area.MultiSelect || p.MultiSelect,
				}
			}
		}
		return out, nil
	}
	return s, fmt.Errorf("unknown customization tab %q", tab)
}

// FinalizeChoices are the player's picks over a scaffold.
type FinalizeChoices struct {
	Selections  map[string][]string // area name -> chosen options
	Alignment   string
	Description string
	Companions  []string // names from the scaffold's suggestions to keep
	VisualTheme *VisualTheme
}

// BuildCharacter assembles a character (without id) from a scaffold and the
// player's choices. Selections for unknown areas are rejected.
func BuildCharacter(s *Scaffold, ch FinalizeChoices) (Character, error) {
	if s == nil {
		return Character{}, fmt.Errorf("no creation scaffold")
	}

	areas := make(map[string]string)
	var order []string
	for _, t := range s.Tabs {
		for _, a := range t.Areas {
			k := Normalize(a.Name)
			if _, seen := areas[k]; !seen {
				areas[k] = a.Name
				order = append(order, k)
			}
		}
	}
	picked := make(map[string][]string, len(ch.Selections))
	for area, sel := range ch.Selections {
		k := Normalize(area)
		if _, ok := areas[k]; !ok {
			return Character{}, fmt.Errorf("unknown customization area %q", area)
		}
		picked[k] = dedupe(sel)
	}
	var customizations []Customization
	for _, k := range order {
		if sel, ok := picked[k]; ok && len(sel) > 0 {
			customizations = append(customizations, Customization{Area: areas[k], Selections: sel})
		}
	}

	var companions []Companion
	for _, want := range ch.Companions {
		found := false
		for _, sug := range s.CompanionSuggestions {
			if Normalize(sug.Name) == Normalize(want) {
				companions = append(companions, sug)
				found = true
				break
			}
		}
		if !found {
			return Character{}, fmt.Errorf("unknown companion suggestion %q", want)
		}
	}
	if companions == nil {
		companions = []Companion{}
	}

	health := s.StartingHealth
	if health <= 0 {
		health = DefaultMaxHealth
	}
	inv := []InventoryItem{}
	for _, it := range s.StartingInventory {
		inv = ApplyInventoryChange(inv, InventoryChange{Action: InventoryAdd, Item: it})
	}

	c := Character{
		Name:             strings.TrimSpace(s.Name),
		Theme:            strings.TrimSpace(s.Theme),
		Description:      ch.Description,
		Alignment:        ch.Alignment,
		Backstory:        s.Backstory,
		Health:           health,
		MaxHealth:        health,
		Customizations:   customizations,
		Inventory:        inv,
		Companions:       companions,
		IsFromKnownWorld: s.IsFromKnownWorld,
	}
	if ch.VisualTheme != nil {
		vt := *ch.VisualTheme
		c.VisualTheme = &vt
	}
	return c, nil
}

// DefaultMaxHealth is used when the scaffold omits a starting health.
const DefaultMaxHealth = 100

func dedupe(in []string) []string {
	seen := make(map[string]bool, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		s = strings.TrimSpace(s)
		if s != "" && !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	return out
}
