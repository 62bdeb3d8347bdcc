package game

// CloneCharacter returns a deep copy of c (nil stays nil).
func CloneCharacter(c *Character) *Character {
	if c == nil {
		return nil
	}
	out := *c
	out.Inventory = cloneSlice(c.Inventory)
	out.Companions = cloneSlice(c.Companions)
	if c.Customizations != nil {
		out.Customizations = make([]Customization, len(c.Customizations))
		for i, cu := range c.Customizations {
			out.Customizations[i] = Customization{Area: cu.Area, Selections: cloneSlice(cu.Selections)}
		}
	}
	if c.VisualTheme != nil {
		vt := *c.VisualTheme
		out.VisualTheme = &vt
	}
	return &out
}

// CloneMessages returns a copy of msgs.
func CloneMessages(msgs []Message) []Message {
	return cloneSlice(msgs)
}

// CloneStrings returns a copy of s.
func CloneStrings(s []string) []string {
	return cloneSlice(s)
}

// CloneSave returns a deep copy of a save slot.
func CloneSave(s SaveData) SaveData {
	s.Character = CloneCharacter(s.Character)
	s.Messages = cloneSlice(s.Messages)
	s.Choices = cloneSlice(s.Choices)
	s.AttackOptions = cloneSlice(s.AttackOptions)
	return s
}

// CloneContinuation returns a deep copy of w (nil stays nil).
func CloneContinuation(w *WorldContinuation) *WorldContinuation {
	if w == nil {
		return nil
	}
	out := *w
	out.PriorHistory = cloneSlice(w.PriorHistory)
	return &out
}

func cloneSlice[T any](s []T) []T {
	if s == nil {
		return nil
	}
	out := make([]T, len(s))
	copy(out, s)
	return out
}
