package saves

import (
	"context"
	"fmt"

	"github.com/roninrabbat-maker/adventure-forge/internal/errors"
	"github.com/roninrabbat-maker/adventure-forge/internal/game"
)

// MergeMode decides what happens when an incoming slot id already exists.
type MergeMode string

const (
	MergeError   MergeMode = "error"   // fail the whole merge, nothing written
	MergeReplace MergeMode = "replace" // overwrite the existing slot
	MergeSkip    MergeMode = "skip"    // keep the existing slot
)

// ParseMergeMode validates a mode name. Empty means MergeError.
func ParseMergeMode(s string) (MergeMode, error) {
	switch MergeMode(s) {
	case "", MergeError:
		return MergeError, nil
	case MergeReplace, MergeSkip:
		return MergeMode(s), nil
	}
	return "", errors.NewInvalidRequest(fmt.Sprintf("mode must be one of: error, replace, skip (got %q)", s))
}

// MergeResult summarizes a merge.
type MergeResult struct {
	Added    int      `json:"added"`
	Replaced int      `json:"replaced"`
	Skipped  int      `json:"skipped"`
	Evicted  []string `json:"evicted,omitempty"`
}

// Merge writes incoming slots into a freshly read collection in a single
// write. Incoming LastSaved stamps are preserved so eviction order reflects
// when each slot was really saved.
func (r *Repository) Merge(ctx context.Context, incoming []game.SaveData, mode MergeMode) (res MergeResult, err error) {
	for i, s := range incoming {
		if s.ID == "" || s.Character == nil {
			return MergeResult{}, errors.NewInvalidRequest(fmt.Sprintf("slot %d: id and character are required", i))
		}
		if s.Character.ID != s.ID {
			return MergeResult{}, errors.NewInvalidRequest(fmt.Sprintf("slot %s: character id %q does not match", s.ID, s.Character.ID))
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	slots, warn, err := r.read(ctx)
	r.hold(warn)
	if err != nil {
		return MergeResult{}, err
	}

	index := make(map[string]int, len(slots))
	for i, s := range slots {
		index[s.ID] = i
	}
	for _, s := range incoming {
		s = game.CloneSave(s)
		if s.LastSaved.IsZero() {
			s.LastSaved = r.now().UTC()
		}
		i, exists := index[s.ID]
		switch {
		case !exists:
			index[s.ID] = len(slots)
			slots = append(slots, s)
			res.Added++
		case mode == MergeReplace:
			slots[i] = s
			res.Replaced++
		case mode == MergeSkip:
			res.Skipped++
		default:
			return MergeResult{}, errors.NewInvalidRequest(fmt.Sprintf("slot %s already exists", s.ID))
		}
	}

	var keep string
	if len(incoming) > 0 {
		keep = incoming[len(incoming)-1].ID
	}
	slots, res.Evicted = evict(slots, r.maxSlots, keep)
	if err := r.write(ctx, slots); err != nil {
		return MergeResult{}, err
	}
	r.remember(slots)
	return res, nil
}
