// Package generation defines the narrative and character-creation services
// the session engine calls, plus an adapter for OpenAI-compatible chat
// completion endpoints.
package generation

import (
	"context"

	"github.com/roninrabbat-maker/adventure-forge/internal/game"
)

// TurnRequest is everything the narrator sees for one turn.
type TurnRequest struct {
	Character game.Character
	History   []game.Message // bounded window, oldest first
	Input     string

	// Fate marks a "let fate decide" request: the narrator should aim for
	// the protagonist's return rather than another ending.
	Fate bool
}

// Narrator produces the next scene.
type Narrator interface {
	NextTurn(ctx context.Context, req TurnRequest) (game.TurnResult, error)
}

// CharacterSeed is the player's starting input for character creation.
// Only Name is required.
type CharacterSeed struct {
	Name         string `json:"name"`
	World        string `json:"world,omitempty"`
	Backstory    string `json:"backstory,omitempty"`
	WorldDetails string `json:"worldDetails,omitempty"`
}

// Creator produces character-creation material.
type Creator interface {
	// Scaffold returns the customization taxonomy with empty option lists.
	Scaffold(ctx context.Context, seed CharacterSeed) (*game.Scaffold, error)
	// TabOptions returns populated areas for one tab.
	TabOptions(ctx context.Context, theme, characterName, tab string, areas []string) ([]game.CustomizationArea, error)
	// VisualTheme returns a cosmetic palette. Callers fall back to
	// DefaultVisualTheme on error.
	VisualTheme(ctx context.Context, name, theme, description string) (game.VisualTheme, error)
	// SimpleCharacter returns a complete character without a scaffold.
	SimpleCharacter(ctx context.Context, seed CharacterSeed) (game.Character, error)
	// CanonLore summarizes canon events for characters from known worlds.
	CanonLore(ctx context.Context, name, theme string) (string, error)
}

// DefaultVisualTheme is used whenever theme generation fails.
var DefaultVisualTheme = game.VisualTheme{
	Primary:    "#8b5cf6",
	Secondary:  "#1f2937",
	Background: "#111827",
	Text:       "#f9fafb",
	Accent:     "#f59e0b",
	Font:       "serif",
}
