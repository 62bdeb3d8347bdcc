package session

import (
	"context"
	"strings"
	"time"

	"github.com/roninrabbat-maker/adventure-forge/internal/errors"
	"github.com/roninrabbat-maker/adventure-forge/internal/game"
	"github.com/roninrabbat-maker/adventure-forge/internal/generation"
	"github.com/roninrabbat-maker/adventure-forge/internal/metrics"
)

const (
	fateInput   = "Let fate decide."
	fateFraming = "Fate takes a hand in the story..."
)

// SubmitTurn advances the story with the player's input.
//
// The session is snapshotted for undo, the input is logged and the
// narrator is called with a bounded history window. On success the result
// is applied to the character and the phase follows the result. On failure
// the session keeps its phase, character and undo snapshot and records the
// error. A response that arrives after the session moved on is discarded.
func (e *Engine) SubmitTurn(ctx context.Context, input string) (State, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return e.State(), errors.NewInvalidRequest("input is required")
	}

	e.mu.Lock()
	if err := e.guardLocked(kindTurn, game.TriggerTurn); err != nil {
		defer e.mu.Unlock()
		return e.rejectLocked(err)
	}
	e.undo.Snapshot(e.sess)
	req := generation.TurnRequest{
		Character: *game.CloneCharacter(e.sess.Character),
		History:   game.HistoryWindow(e.sess.Messages, e.historyWindow),
		Input:     input,
	}
	e.sess.Messages = append(e.sess.Messages, game.Message{Speaker: game.SpeakerPlayer, Text: input})
	e.newcomers = nil
	e.pending = nil
	seq := e.beginLocked()
	e.mu.Unlock()

	start := e.now()
	result, err := e.narrator.NextTurn(ctx, req)
	return e.finishTurn(kindTurn, game.TriggerTurn, seq, start, result, err)
}

// FateDecides asks the narrator to bring a fallen protagonist back. It is
// not undoable. If the narrator fails or the result still ends the game,
// the session stays in GameOver.
func (e *Engine) FateDecides(ctx context.Context) (State, error) {
	e.mu.Lock()
	if err := e.guardLocked(kindFate, game.TriggerFate); err != nil {
		defer e.mu.Unlock()
		return e.rejectLocked(err)
	}
	req := generation.TurnRequest{
		Character: *game.CloneCharacter(e.sess.Character),
		History:   game.HistoryWindow(e.sess.Messages, e.historyWindow),
		Input:     fateInput,
		Fate:      true,
	}
	e.sess.Messages = append(e.sess.Messages, game.Message{Speaker: game.SpeakerSystem, Text: fateFraming})
	seq := e.beginLocked()
	e.mu.Unlock()

	start := e.now()
	result, err := e.narrator.NextTurn(ctx, req)
	return e.finishTurn(kindFate, game.TriggerFate, seq, start, result, err)
}

func (e *Engine) finishTurn(kind string, trigger game.Trigger, seq uint64, start time.Time, result game.TurnResult, callErr error) (State, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.staleLocked(kind, seq); err != nil {
		return e.rejectLocked(err)
	}
	elapsed := e.now().Sub(start)
	if callErr != nil {
		fe := e.failLocked(kind, callErr)
		if trigger == game.TriggerFate {
			e.sess.Phase = game.PhaseGameOver
		}
		metrics.RecordTurn(kind, metrics.OutcomeFailed, elapsed)
		return e.rejectLocked(fe)
	}

	next := game.ApplyTurn(*e.sess.Character, result)
	phase, err := game.Transition(e.sess.Phase, trigger, game.ResolveTurnPhase(result, next.Health))
	if err != nil {
		fe := e.failLocked(kind, err)
		metrics.RecordTurn(kind, metrics.OutcomeFailed, elapsed)
		return e.rejectLocked(fe)
	}

	e.applyResultLocked(kind, elapsed, phase, next, result)
	return e.stateLocked(), nil
}

// applyResultLocked commits a successful turn result.
func (e *Engine) applyResultLocked(kind string, elapsed time.Duration, phase game.Phase, next game.Character, result game.TurnResult) {
	e.sess.IsLoading = false
	e.sess.LastError = ""
	e.sess.Phase = phase
	e.sess.Character = &next
	e.sess.Messages = append(e.sess.Messages, game.Message{Speaker: game.SpeakerGame, Text: result.SceneDescription})
	e.sess.Choices = orEmpty(game.CloneStrings(result.Choices))
	e.sess.AttackOptions = orEmpty(game.CloneStrings(result.AttackOptions))
	e.newcomers = append([]game.NewCharacter(nil), result.NewCharacters...)

	outcome := metrics.OutcomeOK
	if phase == game.PhaseGameOver {
		// no undo across a death
		e.undo.Clear()
		outcome = metrics.OutcomeGameOver
	}
	metrics.RecordTurn(kind, outcome, elapsed)
}

// Undo restores the state captured before the last turn. The snapshot is
// consumed, so a second Undo without a new turn returns NOTHING_TO_UNDO and
// changes nothing.
func (e *Engine) Undo() (State, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.sess.IsLoading {
		return e.rejectLocked(errors.NewTurnInFlight())
	}
	if !e.undo.Restore(&e.sess) {
		return e.rejectLocked(errors.NewNothingToUndo())
	}
	e.seq++
	e.sess.LastError = ""
	e.newcomers = nil
	e.pending = nil
	return e.stateLocked(), nil
}

// RecruitCompanion promotes a character the last turn introduced to a
// companion with a fresh id.
func (e *Engine) RecruitCompanion(name string) (State, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.sess.IsLoading {
		return e.rejectLocked(errors.NewTurnInFlight())
	}
	if e.sess.Character == nil || !e.sess.Phase.Playing() {
		return e.rejectLocked(errors.NewInvalidTransition("recruit", string(e.sess.Phase)))
	}
	idx := -1
	for i, nc := range e.newcomers {
		if game.Normalize(nc.Name) == game.Normalize(name) {
			idx = i
			break
		}
	}
	if idx < 0 {
		return e.rejectLocked(errors.NewInvalidRequest("no newcomer named " + strings.TrimSpace(name)))
	}

	id, err := game.NewID()
	if err != nil {
		return e.rejectLocked(errors.NewInternal(err))
	}
	nc := e.newcomers[idx]
	next, err := game.Recruit(*e.sess.Character, nc, id)
	if err != nil {
		return e.rejectLocked(errors.NewInvalidRequest(err.Error()))
	}
	e.sess.Character = &next
	e.sess.Messages = append(e.sess.Messages, game.Message{
		Speaker: game.SpeakerSystem,
		Text:    nc.Name + " joins your party.",
	})
	e.newcomers = append(e.newcomers[:idx:idx], e.newcomers[idx+1:]...)
	return e.stateLocked(), nil
}
