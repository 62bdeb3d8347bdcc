// Package session owns the single live game session: phase transitions, the
// turn pipeline, undo, save/load and perspective switching.
package session

import (
	"time"

	"github.com/roninrabbat-maker/adventure-forge/internal/game"
)

// Session is the live game state. The engine holds exactly one.
type Session struct {
	Phase         game.Phase      `json:"phase"`
	Character     *game.Character `json:"character"`
	Messages      []game.Message  `json:"messages"`
	Choices       []string        `json:"choices"`
	AttackOptions []string        `json:"attackOptions"`
	IsLoading     bool            `json:"isLoading"`
	LastError     string          `json:"lastError,omitempty"`
}

// NewSession returns the initial session: character creation, empty log.
func NewSession() Session {
	return Session{
		Phase:         game.PhaseCreationStart,
		Messages:      []game.Message{},
		Choices:       []string{},
		AttackOptions: []string{},
	}
}

// FromSave rebuilds a session from a save slot.
func FromSave(s game.SaveData) Session {
	s = game.CloneSave(s)
	return Session{
		Phase:         s.Phase,
		Character:     s.Character,
		Messages:      orEmpty(s.Messages),
		Choices:       orEmpty(s.Choices),
		AttackOptions: orEmpty(s.AttackOptions),
	}
}

// ToSave captures the persistent part of the session. LastSaved is stamped
// by the repository.
func (s Session) ToSave() game.SaveData {
	s = s.Clone()
	var id string
	if s.Character != nil {
		id = s.Character.ID
	}
	return game.SaveData{
		ID:            id,
		Phase:         s.Phase,
		Character:     s.Character,
		Messages:      s.Messages,
		Choices:       s.Choices,
		AttackOptions: s.AttackOptions,
	}
}

// Clone returns a deep copy.
func (s Session) Clone() Session {
	s.Character = game.CloneCharacter(s.Character)
	s.Messages = game.CloneMessages(s.Messages)
	s.Choices = game.CloneStrings(s.Choices)
	s.AttackOptions = game.CloneStrings(s.AttackOptions)
	return s
}

// Candidate is a save slot offered as a perspective switch target.
type Candidate struct {
	ID        string     `json:"id"`
	Name      string     `json:"name"`
	Theme     string     `json:"theme"`
	Phase     game.Phase `json:"phase"`
	LastSaved time.Time  `json:"lastSaved"`
}

// State is a read-only view of the engine for presentation layers.
type State struct {
	Session

	// Seq is the current request sequencing token.
	Seq     uint64 `json:"seq"`
	CanUndo bool   `json:"canUndo"`
	Notice  string `json:"notice,omitempty"`

	Scaffold     *game.Scaffold          `json:"scaffold,omitempty"`
	TabErrors    map[string]string       `json:"tabErrors,omitempty"`
	Continuation *game.WorldContinuation `json:"continuation,omitempty"`

	// Newcomers are characters the last turn introduced; each may be
	// recruited as a companion.
	Newcomers []game.NewCharacter `json:"newcomers,omitempty"`

	// SwitchCandidates is set between SwitchPerspective and the choice
	// of a target.
	SwitchCandidates []Candidate `json:"switchCandidates,omitempty"`
}

func orEmpty[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
