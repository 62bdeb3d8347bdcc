package session

import (
	"context"
	stderrors "errors"

	"github.com/roninrabbat-maker/adventure-forge/internal/errors"
	"github.com/roninrabbat-maker/adventure-forge/internal/game"
)

// Save writes the live session to its character's slot and returns the ids
// of any slots evicted by the slot cap. The outcome is also posted as a
// transient notice. Play continues unaffected when storage fails.
func (e *Engine) Save(ctx context.Context) ([]string, error) {
	e.mu.Lock()
	if e.sess.IsLoading {
		e.mu.Unlock()
		return nil, errors.NewTurnInFlight()
	}
	if e.sess.Character == nil {
		err := errors.NewInvalidTransition("save", string(e.sess.Phase))
		e.mu.Unlock()
		return nil, err
	}
	slot := e.sess.ToSave()
	e.mu.Unlock()

	evicted, err := e.saves.Save(ctx, slot)
	warn := e.saves.TakeWarning()

	e.mu.Lock()
	defer e.mu.Unlock()
	if err != nil {
		e.setNoticeLocked(withSetAside("Save failed: "+message(err), warn))
		return nil, err
	}
	e.setNoticeLocked(withSetAside("Game saved.", warn))
	return evicted, nil
}

// Load replaces the live session with a saved slot. Undo, continuation and
// any in-flight request are dropped. On failure the session is untouched.
func (e *Engine) Load(ctx context.Context, id string) (State, error) {
	slot, err := e.saves.Load(ctx, id)
	warn := e.saves.TakeWarning()

	e.mu.Lock()
	defer e.mu.Unlock()
	if err != nil {
		e.setNoticeLocked(withSetAside("Load failed: "+message(err), warn))
		return e.rejectLocked(err)
	}
	e.replaceLocked(slot)
	e.setNoticeLocked("Loaded " + slot.Character.Name + ".")
	return e.stateLocked(), nil
}

// DeleteSave removes a slot.
func (e *Engine) DeleteSave(ctx context.Context, id string) error {
	err := e.saves.Delete(ctx, id)
	warn := e.saves.TakeWarning()

	e.mu.Lock()
	defer e.mu.Unlock()
	if err != nil {
		e.setNoticeLocked(withSetAside("Delete failed: "+message(err), warn))
		return err
	}
	e.setNoticeLocked(withSetAside("Save deleted.", warn))
	return nil
}

// ListSaves returns every slot. A corrupted collection yields an empty list
// and a STORAGE_CORRUPTED warning, also posted as a notice.
func (e *Engine) ListSaves(ctx context.Context) ([]game.SaveData, error) {
	slots, err := e.saves.List(ctx)
	if err != nil {
		e.mu.Lock()
		if errors.Is(err, errors.ErrStorageCorrupted) {
			e.setNoticeLocked(setAsideNotice)
		} else {
			e.setNoticeLocked("Could not read saved games: " + message(err))
		}
		e.mu.Unlock()
	}
	return slots, err
}

const setAsideNotice = "Saved games were unreadable and have been set aside."

// withSetAside appends the quarantine notice when the operation found the
// collection corrupted.
func withSetAside(notice string, warn error) string {
	if warn == nil {
		return notice
	}
	return notice + " " + setAsideNotice
}

func message(err error) string {
	var fe *errors.ForgeError
	if stderrors.As(err, &fe) {
		return fe.Message
	}
	return err.Error()
}
