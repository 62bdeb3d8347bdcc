package game

import "github.com/roninrabbat-maker/adventure-forge/internal/errors"

// Trigger names what caused a phase change.
type Trigger string

const (
	TriggerScaffold   Trigger = "scaffold"    // detailed creation scaffold retrieved
	TriggerQuickStart Trigger = "quick_start" // simple character + first turn
	TriggerFinalize   Trigger = "finalize"    // finalized character + first turn
	TriggerTurn       Trigger = "turn"        // ordinary turn
	TriggerFate       Trigger = "fate"        // "let fate decide" from GameOver
	TriggerStartAnew  Trigger = "start_anew"  // GameOver, no continuity
	TriggerContinue   Trigger = "continue"    // GameOver, successor in same world
	TriggerSwitch     Trigger = "switch"      // perspective switch to a new character
	TriggerReset      Trigger = "reset"       // load-failure recovery
)

var storyOutcomes = []Phase{PhaseGameplay, PhaseCombat, PhaseGameOver}

// transitions maps trigger -> from-phase -> legal destinations.
// TriggerReset is handled separately: it is legal from every phase.
var transitions = map[Trigger]map[Phase][]Phase{
	TriggerScaffold: {
		PhaseCreationStart: {PhaseCreationFinalize},
	},
	TriggerQuickStart: {
		PhaseCreationStart: storyOutcomes,
	},
	TriggerFinalize: {
		PhaseCreationFinalize: storyOutcomes,
	},
	TriggerTurn: {
		PhaseGameplay: storyOutcomes,
		PhaseCombat:   storyOutcomes,
	},
	TriggerFate: {
		PhaseGameOver: storyOutcomes,
	},
	TriggerStartAnew: {
		PhaseGameOver: {PhaseCreationStart},
	},
	TriggerContinue: {
		PhaseGameOver: {PhaseCreationStart},
	},
	TriggerSwitch: {
		PhaseGameplay: {PhaseCreationStart},
		PhaseCombat:   {PhaseCreationStart},
	},
}

// Allowed reports whether trigger may fire from phase at all.
func Allowed(from Phase, trigger Trigger) bool {
	if trigger == TriggerReset {
		return from.Valid()
	}
	_, ok := transitions[trigger][from]
	return ok
}

// Transition validates moving from -> to under trigger and returns to.
func Transition(from Phase, trigger Trigger, to Phase) (Phase, error) {
	if trigger == TriggerReset {
		if to != PhaseCreationStart {
			return from, errors.NewInvalidTransition(string(trigger)+" to "+string(to), string(from))
		}
		return to, nil
	}
	for _, legal := range transitions[trigger][from] {
		if legal == to {
			return to, nil
		}
	}
	return from, errors.NewInvalidTransition(string(trigger)+" to "+string(to), string(from))
}

// ResolveTurnPhase picks the phase that follows a turn: GameOver if the
// service flagged it or health is at or below zero, otherwise Combat or
// Gameplay according to the combat flag.
func ResolveTurnPhase(r TurnResult, health int) Phase {
	if r.IsGameOver || health <= 0 {
		return PhaseGameOver
	}
	if r.IsCombat {
		return PhaseCombat
	}
	return PhaseGameplay
}
