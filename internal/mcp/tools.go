package mcp

import (
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// toolEntry pairs a tool definition with a handler factory.
type toolEntry struct {
	def     mcp.Tool
	handler func(*Handlers) server.ToolHandlerFunc
}

var stringItems = mcp.Items(map[string]any{"type": "string"})

var toolRegistry = map[string]toolEntry{
	"game_state": {
		def: mcp.NewTool("game_state",
			mcp.WithDescription("Return the live session: phase, character, message log, choices, notices and any creation draft."),
		),
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleState },
	},
	"game_begin_creation": {
		def: mcp.NewTool("game_begin_creation",
			mcp.WithDescription("Start detailed character creation. Fetches a customization scaffold; use game_prefetch_tabs then game_finalize."),
			mcp.WithString("name", mcp.Required(), mcp.Description("Character name")),
			mcp.WithString("world", mcp.Description("World or setting; ignored while continuing an existing world")),
			mcp.WithString("backstory", mcp.Description("Optional backstory hint")),
			mcp.WithString("world_details", mcp.Description("Optional details about the world")),
		),
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleBeginCreation },
	},
	"game_prefetch_tabs": {
		def: mcp.NewTool("game_prefetch_tabs",
			mcp.WithDescription("Fetch option lists for every customization tab of the draft. A failing tab does not stop the others."),
		),
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandlePrefetchTabs },
	},
	"game_retry_tab": {
		def: mcp.NewTool("game_retry_tab",
			mcp.WithDescription("Re-fetch the option lists of one customization tab."),
			mcp.WithString("tab", mcp.Required(), mcp.Description("Tab name")),
		),
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleRetryTab },
	},
	"game_finalize": {
		def: mcp.NewTool("game_finalize",
			mcp.WithDescription("Finalize the drafted character and play the opening scene."),
			mcp.WithObject("selections", mcp.Description("Map of customization area name to chosen options")),
			mcp.WithString("alignment", mcp.Description("Chosen alignment")),
			mcp.WithString("description", mcp.Description("Free-form appearance or personality description")),
			mcp.WithArray("companions", stringItems, mcp.Description("Names of suggested companions to keep")),
			mcp.WithObject("visual_theme", mcp.Description("Optional palette: primary, secondary, background, text, accent, font")),
		),
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleFinalize },
	},
	"game_quick_start": {
		def: mcp.NewTool("game_quick_start",
			mcp.WithDescription("Generate a complete character in one step and play the opening scene."),
			mcp.WithString("name", mcp.Required(), mcp.Description("Character name")),
			mcp.WithString("world", mcp.Description("World or setting; ignored while continuing an existing world")),
			mcp.WithString("backstory", mcp.Description("Optional backstory hint")),
		),
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleQuickStart },
	},
	"game_turn": {
		def: mcp.NewTool("game_turn",
			mcp.WithDescription("Take a turn: describe what the character does, or pick one of the offered choices or attack options."),
			mcp.WithString("input", mcp.Required(), mcp.Description("Player action")),
		),
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleTurn },
	},
	"game_undo": {
		def: mcp.NewTool("game_undo",
			mcp.WithDescription("Revert the most recent turn. Only one level of undo is kept."),
		),
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleUndo },
	},
	"game_fate": {
		def: mcp.NewTool("game_fate",
			mcp.WithDescription("After a game over, let fate decide whether the character survives."),
		),
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleFate },
	},
	"game_start_anew": {
		def: mcp.NewTool("game_start_anew",
			mcp.WithDescription("After a game over, start over with a new character in a new world."),
		),
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleStartAnew },
	},
	"game_continue": {
		def: mcp.NewTool("game_continue",
			mcp.WithDescription("After a game over, create a successor who continues the story in the same world."),
		),
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleContinue },
	},
	"game_recruit": {
		def: mcp.NewTool("game_recruit",
			mcp.WithDescription("Recruit a character introduced by the last turn as a companion."),
			mcp.WithString("name", mcp.Required(), mcp.Description("Newcomer name")),
		),
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleRecruit },
	},
	"game_reset": {
		def: mcp.NewTool("game_reset",
			mcp.WithDescription("Abandon the live session and return to character creation."),
		),
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleReset },
	},
	"perspective_switch": {
		def: mcp.NewTool("perspective_switch",
			mcp.WithDescription("Save the current character and list other saved characters of the same world."),
		),
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleSwitch },
	},
	"perspective_select": {
		def: mcp.NewTool("perspective_select",
			mcp.WithDescription("Continue as one of the characters offered by perspective_switch."),
			mcp.WithString("id", mcp.Required(), mcp.Description("Save slot id of the candidate")),
		),
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleSelect },
	},
	"perspective_new": {
		def: mcp.NewTool("perspective_new",
			mcp.WithDescription("After perspective_switch, create a new character in the same world."),
		),
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleNewPerspective },
	},
	"saves_list": {
		def: mcp.NewTool("saves_list",
			mcp.WithDescription("List saved games."),
		),
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleListSaves },
	},
	"saves_save": {
		def: mcp.NewTool("saves_save",
			mcp.WithDescription("Save the live session to its character's slot."),
		),
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleSave },
	},
	"saves_load": {
		def: mcp.NewTool("saves_load",
			mcp.WithDescription("Load a saved game, replacing the live session."),
			mcp.WithString("id", mcp.Required(), mcp.Description("Save slot id")),
		),
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleLoad },
	},
	"saves_delete": {
		def: mcp.NewTool("saves_delete",
			mcp.WithDescription("Delete a saved game."),
			mcp.WithString("id", mcp.Required(), mcp.Description("Save slot id")),
		),
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleDelete },
	},
	"saves_transcript": {
		def: mcp.NewTool("saves_transcript",
			mcp.WithDescription("Write the story of a saved game to a markdown or HTML file."),
			mcp.WithString("id", mcp.Required(), mcp.Description("Save slot id")),
			mcp.WithString("path", mcp.Description("Destination; default ~/.forge/exports/<name>-<timestamp>.<format>")),
			mcp.WithString("format", mcp.Enum("md", "html"), mcp.Description("Output format (default md)")),
		),
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleTranscript },
	},
	"saves_backup": {
		def: mcp.NewTool("saves_backup",
			mcp.WithDescription("Export every saved game to a JSONL backup file."),
			mcp.WithString("path", mcp.Description("Destination; default ~/.forge/exports/saves-<timestamp>.jsonl")),
		),
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleBackup },
	},
	"saves_import": {
		def: mcp.NewTool("saves_import",
			mcp.WithDescription("Import saved games from a JSONL backup file."),
			mcp.WithString("path", mcp.Required(), mcp.Description("Backup file")),
			mcp.WithString("mode", mcp.Enum("error", "replace", "skip"), mcp.Description("What to do when a slot id already exists (default error)")),
		),
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleImport },
	},
}
