package game

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestApplyTurn_BasicTurn(t *testing.T) {
	c := Character{Name: "Ayla", Health: 100, MaxHealth: 100, Inventory: []InventoryItem{}}
	r := TurnResult{
		SceneDescription: "A blade glints in the mud.",
		UpdatedHealth:    80,
		InventoryChange: &InventoryChange{
			Action: InventoryAdd,
			Item:   InventoryItem{Name: "Rusty Sword", Quantity: 1, Type: ItemWeapon},
		},
	}

	next := ApplyTurn(c, r)

	assert.Equal(t, 80, next.Health)
	assert.Equal(t, []InventoryItem{{Name: "Rusty Sword", Quantity: 1, Type: ItemWeapon}}, next.Inventory)
	assert.Equal(t, PhaseGameplay, ResolveTurnPhase(r, next.Health))
	// input untouched
	assert.Equal(t, 100, c.Health)
	assert.Empty(t, c.Inventory)
}

func TestApplyTurn_StacksCaseInsensitive(t *testing.T) {
	c := Character{Health: 50, MaxHealth: 100, Inventory: []InventoryItem{{Name: "Torch", Quantity: 1, Type: ItemItem}}}
	r := TurnResult{
		UpdatedHealth: 50,
		InventoryChange: &InventoryChange{
			Action: InventoryAdd,
			Item:   InventoryItem{Name: "torch", Quantity: 2, Type: ItemItem},
		},
	}

	next := ApplyTurn(c, r)

	require.Len(t, next.Inventory, 1)
	assert.Equal(t, "Torch", next.Inventory[0].Name)
	assert.Equal(t, 3, next.Inventory[0].Quantity)
}

func TestApplyTurn_HealthNotClamped(t *testing.T) {
	c := Character{Health: 90, MaxHealth: 100}
	assert.Equal(t, 140, ApplyTurn(c, TurnResult{UpdatedHealth: 140}).Health)
	assert.Equal(t, -5, ApplyTurn(c, TurnResult{UpdatedHealth: -5}).Health)
}

func TestApplyTurn_NewCharactersNotRecruited(t *testing.T) {
	c := Character{Health: 10, MaxHealth: 10, Companions: []Companion{}}
	r := TurnResult{UpdatedHealth: 10, NewCharacters: []NewCharacter{{Name: "Mira", Kind: "fox"}}}
	assert.Empty(t, ApplyTurn(c, r).Companions)
}

func TestApplyInventoryChange(t *testing.T) {
	base := []InventoryItem{
		{Name: "Rope", Quantity: 2, Type: ItemItem},
		{Name: "Iron Shield", Quantity: 1, Type: ItemArmor},
	}

	tests := []struct {
		name   string
		change InventoryChange
		want   []InventoryItem
	}{
		{
			name:   "remove partial",
			change: InventoryChange{Action: InventoryRemove, Item: InventoryItem{Name: "ROPE", Quantity: 1}},
			want:   []InventoryItem{{Name: "Rope", Quantity: 1, Type: ItemItem}, {Name: "Iron Shield", Quantity: 1, Type: ItemArmor}},
		},
		{
			name:   "remove to zero deletes entry",
			change: InventoryChange{Action: InventoryRemove, Item: InventoryItem{Name: "rope", Quantity: 2}},
			want:   []InventoryItem{{Name: "Iron Shield", Quantity: 1, Type: ItemArmor}},
		},
		{
			name:   "remove more than held deletes entry",
			change: InventoryChange{Action: InventoryRemove, Item: InventoryItem{Name: "iron  shield", Quantity: 5}},
			want:   []InventoryItem{{Name: "Rope", Quantity: 2, Type: ItemItem}},
		},
		{
			name:   "remove absent is no-op",
			change: InventoryChange{Action: InventoryRemove, Item: InventoryItem{Name: "Lantern", Quantity: 1}},
			want:   base,
		},
		{
			name:   "add new appends verbatim",
			change: InventoryChange{Action: InventoryAdd, Item: InventoryItem{Name: "Lantern", Description: "dim", Quantity: 1, Type: ItemItem}},
			want:   append(append([]InventoryItem{}, base...), InventoryItem{Name: "Lantern", Description: "dim", Quantity: 1, Type: ItemItem}),
		},
		{
			name:   "zero quantity ignored",
			change: InventoryChange{Action: InventoryAdd, Item: InventoryItem{Name: "Rope", Quantity: 0}},
			want:   base,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ApplyInventoryChange(base, tt.change)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, 2, base[0].Quantity, "input must not be mutated")
		})
	}
}

// Property: for any sequence of deltas, each item's quantity equals the
// running sum of adds minus removes floored at zero, with no duplicates
// and no non-positive entries.
func TestApplyInventoryChange_QuantityInvariant(t *testing.T) {
	names := []string{"Torch", "torch", "TORCH", "Rope", "rope", "Gem"}
	rng := rand.New(rand.NewSource(42))

	for trial := 0; trial < 200; trial++ {
		var inv []InventoryItem
		expected := map[string]int{}

		for step := 0; step < 40; step++ {
			name := names[rng.Intn(len(names))]
			qty := rng.Intn(4) + 1
			action := InventoryAdd
			if rng.Intn(2) == 0 {
				action = InventoryRemove
			}
			inv = ApplyInventoryChange(inv, InventoryChange{
				Action: action,
				Item:   InventoryItem{Name: name, Quantity: qty, Type: ItemItem},
			})

			key := Normalize(name)
			if action == InventoryAdd {
				expected[key] += qty
			} else if expected[key] > 0 {
				expected[key] = max(expected[key]-qty, 0)
			}

			seen := map[string]bool{}
			for _, it := range inv {
				k := Normalize(it.Name)
				require.False(t, seen[k], "duplicate entry %q", it.Name)
				seen[k] = true
				require.Positive(t, it.Quantity)
				require.Equal(t, expected[k], it.Quantity)
			}
			for k, q := range expected {
				if q > 0 {
					require.True(t, seen[k], "missing entry %q", k)
				}
			}
		}
	}
}

func TestRecruit(t *testing.T) {
	c := Character{Companions: []Companion{{ID: "c1", Name: "Bo"}}}

	next, err := Recruit(c, NewCharacter{Name: "Mira", Kind: "fox", Description: "sly"}, "c2")
	require.NoError(t, err)
	require.Len(t, next.Companions, 2)
	assert.Equal(t, Companion{ID: "c2", Name: "Mira", Kind: "fox", Backstory: "sly", Relationship: "newly met"}, next.Companions[1])
	assert.Len(t, c.Companions, 1)

	_, err = Recruit(c, NewCharacter{Name: "Dup"}, "c1")
	assert.Error(t, err)

	_, err = Recruit(c, NewCharacter{Name: "NoID"}, "")
	assert.Error(t, err)
}

func TestHistoryWindow(t *testing.T) {
	msgs := []Message{{Text: "1"}, {Text: "2"}, {Text: "3"}}
	assert.Equal(t, []Message{{Text: "2"}, {Text: "3"}}, HistoryWindow(msgs, 2))
	assert.Equal(t, msgs, HistoryWindow(msgs, 10))
	assert.Empty(t, HistoryWindow(msgs, 0))
}

func TestLastOfSpeaker(t *testing.T) {
	msgs := []Message{
		{Speaker: SpeakerGame, Text: "a"},
		{Speaker: SpeakerPlayer, Text: "b"},
		{Speaker: SpeakerGame, Text: "c"},
		{Speaker: SpeakerGame, Text: "d"},
	}
	assert.Equal(t, []Message{{Speaker: SpeakerGame, Text: "c"}, {Speaker: SpeakerGame, Text: "d"}}, LastOfSpeaker(msgs, SpeakerGame, 2))
	assert.Empty(t, LastOfSpeaker(msgs, SpeakerSystem, 2))
}

func TestCloneCharacter_Deep(t *testing.T) {
	c := &Character{
		Inventory:      []InventoryItem{{Name: "A", Quantity: 1}},
		Customizations: []Customization{{Area: "Hair", Selections: []string{"red"}}},
		VisualTheme:    &VisualTheme{Primary: "#fff"},
	}
	cp := CloneCharacter(c)
	cp.Inventory[0].Quantity = 9
	cp.Customizations[0].Selections[0] = "blue"
	cp.VisualTheme.Primary = "#000"

	assert.Equal(t, 1, c.Inventory[0].Quantity)
	assert.Equal(t, "red", c.Customizations[0].Selections[0])
	assert.Equal(t, "#fff", c.VisualTheme.Primary)
	assert.Nil(t, CloneCharacter(nil))
}
