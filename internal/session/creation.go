package session

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/roninrabbat-maker/adventure-forge/internal/errors"
	"github.com/roninrabbat-maker/adventure-forge/internal/game"
	"github.com/roninrabbat-maker/adventure-forge/internal/generation"
	"github.com/roninrabbat-maker/adventure-forge/internal/metrics"
)

// BeginCreation fetches a detailed-creation scaffold and moves to
// CharacterCreationFinalize. During a world continuation the seed's world
// defaults to the continuing world.
func (e *Engine) BeginCreation(ctx context.Context, seed generation.CharacterSeed) (State, error) {
	seed.Name = strings.TrimSpace(seed.Name)
	if seed.Name == "" {
		return e.State(), errors.NewInvalidRequest("name is required")
	}

	e.mu.Lock()
	if err := e.creationGuardLocked(kindScaffold, game.TriggerScaffold); err != nil {
		defer e.mu.Unlock()
		return e.rejectLocked(err)
	}
	if e.continuation != nil {
		seed.World = e.continuation.WorldTheme
	}
	seq := e.beginLocked()
	e.mu.Unlock()

	s, callErr := e.creator.Scaffold(ctx, seed)

	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.staleLocked(kindScaffold, seq); err != nil {
		return e.rejectLocked(err)
	}
	if callErr != nil {
		return e.rejectLocked(e.failLocked(kindScaffold, callErr))
	}
	phase, err := game.Transition(e.sess.Phase, game.TriggerScaffold, game.PhaseCreationFinalize)
	if err != nil {
		return e.rejectLocked(e.failLocked(kindScaffold, err))
	}
	if e.continuation != nil {
		s.Theme = e.continuation.WorldTheme
	}
	e.sess.IsLoading = false
	e.sess.Phase = phase
	e.scaffold = game.CloneScaffold(s)
	e.draft++
	e.tabErrors = map[string]string{}
	return e.stateLocked(), nil
}

// PrefetchReport lists which tabs were populated and which failed.
type PrefetchReport struct {
	Fetched []string          `json:"fetched"`
	Failed  map[string]string `json:"failed,omitempty"`
}

// PrefetchTabs fetches option lists for every tab of the draft, one at a
// time and spaced by the prefetch limiter. A failing tab is recorded and
// the remaining tabs are still fetched; RetryTab re-fetches one.
func (e *Engine) PrefetchTabs(ctx context.Context) (PrefetchReport, error) {
	e.mu.Lock()
	if e.scaffold == nil || e.sess.Phase != game.PhaseCreationFinalize {
		err := errors.NewInvalidTransition("prefetch_tabs", string(e.sess.Phase))
		e.mu.Unlock()
		return PrefetchReport{}, err
	}
	draft := e.draft
	tabs := game.CloneScaffold(e.scaffold).Tabs
	e.mu.Unlock()

	report := PrefetchReport{Fetched: []string{}}
	for _, tab := range tabs {
		if err := e.prefetch.Wait(ctx); err != nil {
			return report, errors.NewCancelled("prefetch_tabs")
		}
		err := e.fetchTab(ctx, draft, tab)
		if errors.Is(err, errors.ErrStaleResponse) {
			return report, err
		}
		if err != nil {
			if report.Failed == nil {
				report.Failed = map[string]string{}
			}
			report.Failed[tab.Name] = err.Error()
			continue
		}
		report.Fetched = append(report.Fetched, tab.Name)
	}
	return report, nil
}

// RetryTab re-fetches the option lists of one tab.
func (e *Engine) RetryTab(ctx context.Context, name string) (State, error) {
	e.mu.Lock()
	if e.scaffold == nil || e.sess.Phase != game.PhaseCreationFinalize {
		defer e.mu.Unlock()
		return e.rejectLocked(errors.NewInvalidTransition("retry_tab", string(e.sess.Phase)))
	}
	tab, ok := e.scaffold.Tab(name)
	if !ok {
		defer e.mu.Unlock()
		return e.rejectLocked(errors.NewInvalidRequest(fmt.Sprintf("unknown customization tab %q", name)))
	}
	draft := e.draft
	e.mu.Unlock()

	err := e.fetchTab(ctx, draft, tab)
	return e.State(), err
}

func (e *Engine) fetchTab(ctx context.Context, draft uint64, tab game.CustomizationTab) error {
	e.mu.Lock()
	if e.scaffold == nil || e.draft != draft {
		e.mu.Unlock()
		return errors.NewStaleResponse(e.draft, draft)
	}
	theme, name := e.scaffold.Theme, e.scaffold.Name
	e.mu.Unlock()

	areas, callErr := e.creator.TabOptions(ctx, theme, name, tab.Name, tab.AreaNames())

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.scaffold == nil || e.draft != draft {
		e.logger.Printf("session: discarding options for tab %q from an abandoned draft", tab.Name)
		return errors.NewStaleResponse(e.draft, draft)
	}
	if callErr != nil {
		e.logger.Printf("session: prefetch tab %q failed: %v", tab.Name, callErr)
		e.tabErrors[tab.Name] = callErr.Error()
		return callErr
	}
	merged, err := game.MergeTabOptions(e.scaffold, tab.Name, areas)
	if err != nil {
		e.tabErrors[tab.Name] = err.Error()
		return errors.NewGenerationFailure("tab_options", err)
	}
	e.scaffold = merged
	delete(e.tabErrors, tab.Name)
	return nil
}

// FinalizeCharacter builds the character from the draft and the player's
// choices, gives it a fresh identity and plays the opening turn.
//
// Nothing is committed unless the opening turn succeeds: on failure the
// draft stays in place and the call may simply be repeated.
func (e *Engine) FinalizeCharacter(ctx context.Context, choices game.FinalizeChoices) (State, error) {
	e.mu.Lock()
	if err := e.creationGuardLocked(kindFinalize, game.TriggerFinalize); err != nil {
		defer e.mu.Unlock()
		return e.rejectLocked(err)
	}
	if e.scaffold == nil {
		defer e.mu.Unlock()
		return e.rejectLocked(errors.NewInvalidTransition(kindFinalize, string(e.sess.Phase)))
	}
	c, err := game.BuildCharacter(e.scaffold, choices)
	if err != nil {
		defer e.mu.Unlock()
		return e.rejectLocked(errors.NewInvalidRequest(err.Error()))
	}
	cont := game.CloneContinuation(e.continuation)
	seq := e.beginLocked()
	e.mu.Unlock()

	return e.playOpening(ctx, kindFinalize, game.TriggerFinalize, seq, c, cont)
}

// QuickStart generates a complete character in one call and plays the
// opening turn, skipping the scaffold and finalize steps.
func (e *Engine) QuickStart(ctx context.Context, seed generation.CharacterSeed) (State, error) {
	seed.Name = strings.TrimSpace(seed.Name)
	if seed.Name == "" {
		return e.State(), errors.NewInvalidRequest("name is required")
	}

	e.mu.Lock()
	if err := e.creationGuardLocked(kindQuickStart, game.TriggerQuickStart); err != nil {
		defer e.mu.Unlock()
		return e.rejectLocked(err)
	}
	cont := game.CloneContinuation(e.continuation)
	if cont != nil {
		seed.World = cont.WorldTheme
	}
	seq := e.beginLocked()
	e.mu.Unlock()

	start := e.now()
	c, err := e.creator.SimpleCharacter(ctx, seed)
	if err != nil {
		return e.finishOpening(kindQuickStart, game.TriggerQuickStart, seq, start, nil, nil, game.TurnResult{}, err)
	}
	return e.playOpening(ctx, kindQuickStart, game.TriggerQuickStart, seq, c, cont)
}

// playOpening prepares a new character and runs its first turn.
func (e *Engine) playOpening(ctx context.Context, kind string, trigger game.Trigger, seq uint64, c game.Character, cont *game.WorldContinuation) (State, error) {
	start := e.now()
	if err := assignIDs(&c); err != nil {
		return e.finishOpening(kind, trigger, seq, start, nil, nil, game.TurnResult{}, errors.NewInternal(err))
	}
	if cont != nil {
		c.Theme = cont.WorldTheme
	}
	c = e.dress(ctx, c)

	seeded := seedMessages(c, cont)
	result, err := e.narrator.NextTurn(ctx, generation.TurnRequest{
		Character: *game.CloneCharacter(&c),
		History:   game.HistoryWindow(seeded, e.historyWindow),
		Input:     openingInput(c, cont),
	})
	return e.finishOpening(kind, trigger, seq, start, &c, seeded, result, err)
}

func (e *Engine) finishOpening(kind string, trigger game.Trigger, seq uint64, start time.Time, c *game.Character, seeded []game.Message, result game.TurnResult, callErr error) (State, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.staleLocked(kind, seq); err != nil {
		return e.rejectLocked(err)
	}
	elapsed := e.now().Sub(start)
	if callErr != nil {
		fe := e.failLocked(kind, callErr)
		metrics.RecordTurn(kind, metrics.OutcomeFailed, elapsed)
		return e.rejectLocked(fe)
	}

	next := game.ApplyTurn(*c, result)
	phase, err := game.Transition(e.sess.Phase, trigger, game.ResolveTurnPhase(result, next.Health))
	if err != nil {
		fe := e.failLocked(kind, err)
		metrics.RecordTurn(kind, metrics.OutcomeFailed, elapsed)
		return e.rejectLocked(fe)
	}

	e.sess = NewSession()
	e.sess.Messages = seeded
	e.undo.Clear()
	e.scaffold = nil
	e.draft++
	e.tabErrors = nil
	e.continuation = nil
	e.pending = nil
	e.applyResultLocked(kind, elapsed, phase, next, result)
	return e.stateLocked(), nil
}

func (e *Engine) creationGuardLocked(op string, trigger game.Trigger) error {
	if e.sess.IsLoading {
		return errors.NewTurnInFlight()
	}
	if !game.Allowed(e.sess.Phase, trigger) {
		return errors.NewInvalidTransition(op, string(e.sess.Phase))
	}
	return nil
}

// dress fetches canon lore for known-world characters and a visual theme
// when none was chosen. Neither failure blocks the opening.
func (e *Engine) dress(ctx context.Context, c game.Character) game.Character {
	if c.IsFromKnownWorld && c.CanonEvents == "" {
		lore, err := e.creator.CanonLore(ctx, c.Name, c.Theme)
		if err != nil {
			e.logger.Printf("session: canon lore for %s unavailable: %v", c.Name, err)
		} else {
			c.CanonEvents = lore
		}
	}
	if c.VisualTheme == nil {
		vt, err := e.creator.VisualTheme(ctx, c.Name, c.Theme, c.Description)
		if err != nil {
			e.logger.Printf("session: visual theme for %s failed, using default: %v", c.Name, err)
			vt = generation.DefaultVisualTheme
		}
		c.VisualTheme = &vt
	}
	return c
}

// assignIDs gives the character a fresh identity and ids to companions
// that lack one.
func assignIDs(c *game.Character) error {
	id, err := game.NewID()
	if err != nil {
		return err
	}
	c.ID = id
	c.Companions = append([]game.Companion{}, c.Companions...)
	for i := range c.Companions {
		if c.Companions[i].ID != "" {
			continue
		}
		if c.Companions[i].ID, err = game.NewID(); err != nil {
			return err
		}
	}
	if c.Inventory == nil {
		c.Inventory = []game.InventoryItem{}
	}
	return nil
}

// seedMessages builds the opening log: the previous protagonist's history
// during a continuation, then a scene-setting line.
func seedMessages(c game.Character, cont *game.WorldContinuation) []game.Message {
	msgs := []game.Message{}
	if cont != nil {
		msgs = append(msgs, cont.PriorHistory...)
	}
	return append(msgs, game.Message{
		Speaker: game.SpeakerSystem,
		Text:    fmt.Sprintf("%s's story begins in %s.", c.Name, c.Theme),
	})
}

func openingInput(c game.Character, cont *game.WorldContinuation) string {
	if cont == nil {
		return fmt.Sprintf("The adventure begins. Introduce %s and set the opening scene in %s.", c.Name, c.Theme)
	}
	prev := cont.PreviousProtagonist.Name
	if cont.PreviousProtagonist.Status == game.ProtagonistDead {
		return fmt.Sprintf("%s has fallen. %s now arrives in %s in the aftermath; open their story and acknowledge what came before.", prev, c.Name, c.Theme)
	}
	return fmt.Sprintf("The story shifts perspective. %s lives on elsewhere in %s while %s takes up the tale; open %s's story in the same world.", prev, c.Theme, c.Name, c.Name)
}
