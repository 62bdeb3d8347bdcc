package session

import (
	"context"
	"fmt"
	"strings"

	"github.com/roninrabbat-maker/adventure-forge/internal/errors"
	"github.com/roninrabbat-maker/adventure-forge/internal/game"
)

// meanwhileWindow is how many of the departing character's latest scenes
// are summarized after a switch.
const meanwhileWindow = 3

type pendingSwitch struct {
	from       string
	candidates []Candidate
}

// StartAnew leaves GameOver for a fresh character with no continuity.
func (e *Engine) StartAnew() (State, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if _, err := game.Transition(e.sess.Phase, game.TriggerStartAnew, game.PhaseCreationStart); err != nil {
		return e.rejectLocked(err)
	}
	e.resetLocked(nil)
	return e.stateLocked(), nil
}

// ContinueAsNew leaves GameOver for a successor in the same world. The
// fallen character's full log becomes the successor's prior history.
func (e *Engine) ContinueAsNew() (State, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.sess.Character == nil {
		return e.rejectLocked(errors.NewInvalidTransition(string(game.TriggerContinue), string(e.sess.Phase)))
	}
	if _, err := game.Transition(e.sess.Phase, game.TriggerContinue, game.PhaseCreationStart); err != nil {
		return e.rejectLocked(err)
	}
	e.resetLocked(continuationFrom(e.sess, game.ProtagonistDead))
	return e.stateLocked(), nil
}

// SwitchPerspective force-saves the current character and returns the
// other saved characters of the same world. Pick one with
// SelectPerspective or start a new one with SwitchToNewCharacter.
func (e *Engine) SwitchPerspective(ctx context.Context) ([]Candidate, error) {
	e.mu.Lock()
	if err := e.guardLocked(string(game.TriggerSwitch), game.TriggerSwitch); err != nil {
		e.mu.Unlock()
		return nil, err
	}
	slot := e.sess.ToSave()
	seq := e.seq
	e.mu.Unlock()

	if _, err := e.saves.Save(ctx, slot); err != nil {
		e.mu.Lock()
		e.setNoticeLocked("Save failed: " + message(err))
		e.mu.Unlock()
		return nil, err
	}

	cur := slot.Character
	candidates := []Candidate{}
	for _, s := range e.saves.Known() {
		if s.ID == cur.ID || !game.SameTheme(s.Character.Theme, cur.Theme) {
			continue
		}
		candidates = append(candidates, Candidate{
			ID:        s.ID,
			Name:      s.Character.Name,
			Theme:     s.Character.Theme,
			Phase:     s.Phase,
			LastSaved: s.LastSaved,
		})
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.seq != seq {
		return nil, errors.NewStaleResponse(e.seq, seq)
	}
	e.pending = &pendingSwitch{from: cur.ID, candidates: candidates}
	e.setNoticeLocked("Game saved.")
	return append([]Candidate{}, candidates...), nil
}

// SelectPerspective loads a switch candidate and appends a "meanwhile"
// summary of the departing character's latest scenes to its log.
func (e *Engine) SelectPerspective(ctx context.Context, id string) (State, error) {
	e.mu.Lock()
	pending, err := e.pendingLocked()
	if err != nil {
		defer e.mu.Unlock()
		return e.rejectLocked(err)
	}
	if !pending.offers(id) {
		defer e.mu.Unlock()
		return e.rejectLocked(errors.NewInvalidRequest(fmt.Sprintf("%s is not a switch candidate", id)))
	}
	departing := *game.CloneCharacter(e.sess.Character)
	recent := game.LastOfSpeaker(e.sess.Messages, game.SpeakerGame, meanwhileWindow)
	seq := e.seq
	e.mu.Unlock()

	slot, err := e.saves.Load(ctx, id)

	e.mu.Lock()
	defer e.mu.Unlock()
	if err != nil {
		e.setNoticeLocked("Load failed: " + message(err))
		return e.rejectLocked(err)
	}
	if e.seq != seq || e.pending != pending {
		return e.rejectLocked(errors.NewStaleResponse(e.seq, seq))
	}
	e.replaceLocked(slot)
	e.sess.Messages = append(e.sess.Messages, game.Message{
		Speaker: game.SpeakerSystem,
		Text:    meanwhile(departing, recent),
	})
	e.setNoticeLocked("Now playing " + slot.Character.Name + ".")
	return e.stateLocked(), nil
}

// SwitchToNewCharacter leaves the current (living) character for a new
// one in the same world.
func (e *Engine) SwitchToNewCharacter() (State, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if _, err := e.pendingLocked(); err != nil {
		return e.rejectLocked(err)
	}
	if _, err := game.Transition(e.sess.Phase, game.TriggerSwitch, game.PhaseCreationStart); err != nil {
		return e.rejectLocked(err)
	}
	e.resetLocked(continuationFrom(e.sess, game.ProtagonistAlive))
	return e.stateLocked(), nil
}

func (e *Engine) pendingLocked() (*pendingSwitch, error) {
	if e.sess.IsLoading {
		return nil, errors.NewTurnInFlight()
	}
	if e.pending == nil || e.sess.Character == nil || e.sess.Character.ID != e.pending.from {
		return nil, errors.NewInvalidTransition("perspective choice without a pending switch", string(e.sess.Phase))
	}
	return e.pending, nil
}

func (p *pendingSwitch) offers(id string) bool {
	for _, c := range p.candidates {
		if c.ID == id {
			return true
		}
	}
	return false
}

func continuationFrom(s Session, status game.ProtagonistStatus) *game.WorldContinuation {
	return &game.WorldContinuation{
		WorldTheme: s.Character.Theme,
		PreviousProtagonist: game.PreviousProtagonist{
			Name:   s.Character.Name,
			Status: status,
		},
		PriorHistory: game.CloneMessages(orEmpty(s.Messages)),
	}
}

func meanwhile(c game.Character, recent []game.Message) string {
	if len(recent) == 0 {
		return fmt.Sprintf("Meanwhile, %s continues their own journey in %s.", c.Name, c.Theme)
	}
	texts := make([]string, len(recent))
	for i, m := range recent {
		texts[i] = strings.TrimSpace(m.Text)
	}
	return fmt.Sprintf("Meanwhile, elsewhere in %s, %s: %s", c.Theme, c.Name, strings.Join(texts, " "))
}
