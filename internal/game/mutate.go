package game

import "fmt"

// ApplyTurn returns the character that results from applying r to c.
// c is not modified.
//
// Health is replaced wholesale by r.UpdatedHealth. Companions are never added
// here; r.NewCharacters are candidates the caller may offer for recruitment.
func ApplyTurn(c Character, r TurnResult) Character {
	next := *CloneCharacter(&c)
	next.Health = r.UpdatedHealth
	if r.InventoryChange != nil {
		next.Inventory = ApplyInventoryChange(next.Inventory, *r.InventoryChange)
	}
	return next
}

// ApplyInventoryChange applies one add/remove delta to inv and returns the
// new inventory. inv is not modified.
//
// Items match by case-insensitive name. An add to an existing entry sums the
// quantities and keeps the original casing. A remove that drops the quantity
// to zero or below deletes the entry; removing an absent item is a no-op.
func ApplyInventoryChange(inv []InventoryItem, change InventoryChange) []InventoryItem {
	out := cloneSlice(inv)
	if out == nil {
		out = []InventoryItem{}
	}
	key := Normalize(change.Item.Name)
	if key == "" || change.Item.Quantity <= 0 {
		return out
	}

	idx := -1
	for i := range out {
		if Normalize(out[i].Name) == key {
			idx = i
			break
		}
	}

	switch change.Action {
	case InventoryAdd:
		if idx >= 0 {
			out[idx].Quantity += change.Item.Quantity
			return out
		}
		return append(out, change.Item)
	case InventoryRemove:
		if idx < 0 {
			return out
		}
		out[idx].Quantity -= change.Item.Quantity
		if out[idx].Quantity <= 0 {
			out = append(out[:idx], out[idx+1:]...)
		}
		return out
	}
	return out
}

// Recruit returns c with nc appended as a new companion under id.
func Recruit(c Character, nc NewCharacter, id string) (Character, error) {
	if id == "" {
		return c, fmt.Errorf("companion id is required")
	}
	for _, existing := range c.Companions {
		if existing.ID == id {
			return c, fmt.Errorf("companion id %s already in use", id)
		}
	}
	next := *CloneCharacter(&c)
	next.Companions = append(next.Companions, Companion{
		ID:           id,
		Name:         nc.Name,
		Kind:         nc.Kind,
		Backstory:    nc.Description,
		Relationship: "newly met",
	})
	return next, nil
}
