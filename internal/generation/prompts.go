package generation

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/roninrabbat-maker/adventure-forge/internal/game"
)

const narratorPrompt = `You are the narrator of a text role-playing game.
Continue the story from the player's action. Reply with one JSON object:
{"sceneDescription": string, "choices": [string], "isCombat": bool,
 "attackOptions": [string], "updatedHealth": int,
 "inventoryChange": {"action": "add"|"remove", "item": {"name": string, "description": string, "quantity": int, "type": "weapon"|"armor"|"item"}} or null,
 "isGameOver": bool,
 "newCharacters": [{"name": string, "kind": string, "description": string}]}
updatedHealth is the character's health after the scene, not a delta.
Offer attackOptions only when isCombat is true.`

const fatePrompt = `The protagonist has fallen. Fate intervenes: narrate a plausible
return to life and set isGameOver to false.`

const scaffoldPrompt = `You design characters for a text role-playing game.
Reply with one JSON object:
{"name": string, "theme": string, "backstory": string, "worldDetails": string,
 "isFromKnownWorld": bool,
 "tabs": [{"name": string, "areas": [{"name": string, "multiSelect": bool}]}],
 "alignments": [string],
 "startingInventory": [{"name": string, "description": string, "quantity": int, "type": "weapon"|"armor"|"item"}],
 "startingHealth": int,
 "companionSuggestions": [{"name": string, "kind": string, "backstory": string, "relationship": string}]}
theme names the world or universe. Leave option lists out; they are requested per tab.`

const tabPrompt = `List customization options for one tab of a character sheet.
Reply with one JSON object: {"areas": [{"name": string, "options": [string], "multiSelect": bool}]}
Use exactly the area names you are given.`

const themePrompt = `Pick a color palette that suits a character.
Reply with one JSON object of CSS colors:
{"primary": string, "secondary": string, "background": string, "text": string, "accent": string, "font": string}`

const simplePrompt = `Create a complete, ready-to-play character for a text role-playing game.
Reply with one JSON object:
{"name": string, "theme": string, "description": string, "alignment": string, "backstory": string,
 "health": int, "maxHealth": int, "isFromKnownWorld": bool,
 "inventory": [{"name": string, "description": string, "quantity": int, "type": "weapon"|"armor"|"item"}],
 "companions": [{"name": string, "kind": string, "backstory": string, "relationship": string}]}`

const lorePrompt = `Summarize the canon events of a known fictional world that matter to
a character entering it. Reply with one JSON object: {"canonEvents": string}`

func turnUserPrompt(req TurnRequest) (string, error) {
	character, err := json.Marshal(req.Character)
	if err != nil {
		return "", err
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Character:\n%s\n\n", character)
	if len(req.History) > 0 {
		b.WriteString("Recent story:\n")
		for _, m := range req.History {
			fmt.Fprintf(&b, "[%s] %s\n", m.Speaker, m.Text)
		}
		b.WriteString("\n")
	}
	fmt.Fprintf(&b, "Player action: %s", req.Input)
	return b.String(), nil
}

func seedUserPrompt(seed CharacterSeed) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Name: %s\n", seed.Name)
	if seed.World != "" {
		fmt.Fprintf(&b, "World: %s\n", seed.World)
	}
	if seed.Backstory != "" {
		fmt.Fprintf(&b, "Backstory: %s\n", seed.Backstory)
	}
	if seed.WorldDetails != "" {
		fmt.Fprintf(&b, "World details: %s\n", seed.WorldDetails)
	}
	return b.String()
}

func tabUserPrompt(theme, name, tab string, areas []string) string {
	return fmt.Sprintf("World: %s\nCharacter: %s\nTab: %s\nAreas: %s", theme, name, tab, strings.Join(areas, ", "))
}

func describe(c game.Character) string {
	return fmt.Sprintf("%s of %s", c.Name, c.Theme)
}
