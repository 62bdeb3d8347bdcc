package mcp

import (
	"bytes"
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/roninrabbat-maker/adventure-forge/internal/errors"
	"github.com/roninrabbat-maker/adventure-forge/internal/export"
	"github.com/roninrabbat-maker/adventure-forge/internal/game"
	"github.com/roninrabbat-maker/adventure-forge/internal/generation"
	"github.com/roninrabbat-maker/adventure-forge/internal/saves"
	"github.com/roninrabbat-maker/adventure-forge/internal/session"
)

// Deps are the collaborators the tools operate on.
type Deps struct {
	Engine *session.Engine
	Saves  *saves.Repository
	Policy export.Policy
}

// Handlers holds dependencies for MCP tool handlers.
type Handlers struct {
	engine *session.Engine
	saves  *saves.Repository
	policy export.Policy
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(d Deps) *Handlers {
	return &Handlers{engine: d.Engine, saves: d.Saves, policy: d.Policy}
}

// CreationRequest is the argument shape of game_begin_creation and
// game_quick_start.
type CreationRequest struct {
	Name         string `json:"name"`
	World        string `json:"world,omitempty"`
	Backstory    string `json:"backstory,omitempty"`
	WorldDetails string `json:"world_details,omitempty"`
}

func (r CreationRequest) seed() generation.CharacterSeed {
	return generation.CharacterSeed{Name: r.Name, World: r.World, Backstory: r.Backstory, WorldDetails: r.WorldDetails}
}

// TabRequest represents the arguments for game_retry_tab.
type TabRequest struct {
	Tab string `json:"tab"`
}

// FinalizeRequest represents the arguments for game_finalize.
type FinalizeRequest struct {
	Selections  map[string][]string `json:"selections,omitempty"`
	Alignment   string              `json:"alignment,omitempty"`
	Description string              `json:"description,omitempty"`
	Companions  []string            `json:"companions,omitempty"`
	VisualTheme *game.VisualTheme   `json:"visual_theme,omitempty"`
}

// TurnRequest represents the arguments for game_turn.
type TurnRequest struct {
	Input string `json:"input"`
}

// NameRequest represents the arguments for game_recruit.
type NameRequest struct {
	Name string `json:"name"`
}

// IDRequest addresses a save slot.
type IDRequest struct {
	ID string `json:"id"`
}

// TranscriptRequest represents the arguments for saves_transcript.
type TranscriptRequest struct {
	ID     string `json:"id"`
	Path   string `json:"path,omitempty"`
	Format string `json:"format,omitempty"`
}

// BackupRequest represents the arguments for saves_backup.
type BackupRequest struct {
	Path string `json:"path,omitempty"`
}

// ImportRequest represents the arguments for saves_import.
type ImportRequest struct {
	Path string `json:"path"`
	Mode string `json:"mode,omitempty"`
}

// SaveSummary is one entry of saves_list.
type SaveSummary struct {
	ID        string     `json:"id"`
	Name      string     `json:"name"`
	Theme     string     `json:"theme"`
	Phase     game.Phase `json:"phase"`
	Health    int        `json:"health"`
	Messages  int        `json:"messages"`
	LastSaved time.Time  `json:"last_saved"`
}

// ListOutput is the result of saves_list.
type ListOutput struct {
	Saves   []SaveSummary `json:"saves"`
	Count   int           `json:"count"`
	Warning string        `json:"warning,omitempty"`
}

// decode unmarshals tool arguments into T. Unknown fields are rejected so
// a misspelled argument is reported instead of silently ignored.
func decode[T any](req mcp.CallToolRequest) (T, error) {
	var out T
	b, err := json.Marshal(req.GetArguments())
	if err != nil {
		return out, fmt.Errorf("marshal args: %w", err)
	}
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&out); err != nil {
		return out, fmt.Errorf("invalid arguments: %w", err)
	}
	return out, nil
}

// stateResult renders the outcome of an engine call that returns State.
func stateResult(st session.State, err error) (*mcp.CallToolResult, error) {
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(st)
}

// HandleState handles game_state.
func (h *Handlers) HandleState(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return successResult(h.engine.State())
}

// HandleBeginCreation handles game_begin_creation.
func (h *Handlers) HandleBeginCreation(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[CreationRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}
	return stateResult(h.engine.BeginCreation(ctx, input.seed()))
}

// HandlePrefetchTabs handles game_prefetch_tabs.
func (h *Handlers) HandlePrefetchTabs(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	report, err := h.engine.PrefetchTabs(ctx)
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(report)
}

// HandleRetryTab handles game_retry_tab.
func (h *Handlers) HandleRetryTab(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[TabRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}
	if input.Tab == "" {
		return errorResult(errors.NewInvalidRequest("tab is required")), nil
	}
	return stateResult(h.engine.RetryTab(ctx, input.Tab))
}

// HandleFinalize handles game_finalize.
func (h *Handlers) HandleFinalize(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[FinalizeRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}
	return stateResult(h.engine.FinalizeCharacter(ctx, game.FinalizeChoices{
		Selections:  input.Selections,
		Alignment:   input.Alignment,
		Description: input.Description,
		Companions:  input.Companions,
		VisualTheme: input.VisualTheme,
	}))
}

// HandleQuickStart handles game_quick_start.
func (h *Handlers) HandleQuickStart(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[CreationRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}
	return stateResult(h.engine.QuickStart(ctx, input.seed()))
}

// HandleTurn handles game_turn.
func (h *Handlers) HandleTurn(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[TurnRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}
	return stateResult(h.engine.SubmitTurn(ctx, input.Input))
}

// HandleUndo handles game_undo.
func (h *Handlers) HandleUndo(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return stateResult(h.engine.Undo())
}

// HandleFate handles game_fate.
func (h *Handlers) HandleFate(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return stateResult(h.engine.FateDecides(ctx))
}

// HandleStartAnew handles game_start_anew.
func (h *Handlers) HandleStartAnew(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return stateResult(h.engine.StartAnew())
}

// HandleContinue handles game_continue.
func (h *Handlers) HandleContinue(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return stateResult(h.engine.ContinueAsNew())
}

// HandleRecruit handles game_recruit.
func (h *Handlers) HandleRecruit(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[NameRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}
	return stateResult(h.engine.RecruitCompanion(input.Name))
}

// HandleReset handles game_reset.
func (h *Handlers) HandleReset(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return successResult(h.engine.Reset())
}

// HandleSwitch handles perspective_switch.
func (h *Handlers) HandleSwitch(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	candidates, err := h.engine.SwitchPerspective(ctx)
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(map[string]any{"candidates": candidates})
}

// HandleSelect handles perspective_select.
func (h *Handlers) HandleSelect(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[IDRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}
	return stateResult(h.engine.SelectPerspective(ctx, input.ID))
}

// HandleNewPerspective handles perspective_new.
func (h *Handlers) HandleNewPerspective(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return stateResult(h.engine.SwitchToNewCharacter())
}

// HandleListSaves handles saves_list. A corrupted collection is reported as
// a warning alongside an empty list.
func (h *Handlers) HandleListSaves(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	slots, err := h.engine.ListSaves(ctx)
	out := ListOutput{Saves: make([]SaveSummary, 0, len(slots))}
	if err != nil {
		if !errors.Is(err, errors.ErrStorageCorrupted) {
			return errorResult(err), nil
		}
		out.Warning = errors.As(err).Message
	}
	for _, s := range slots {
		out.Saves = append(out.Saves, SaveSummary{
			ID:        s.ID,
			Name:      s.Character.Name,
			Theme:     s.Character.Theme,
			Phase:     s.Phase,
			Health:    s.Character.Health,
			Messages:  len(s.Messages),
			LastSaved: s.LastSaved,
		})
	}
	out.Count = len(out.Saves)
	return successResult(out)
}

// HandleSave handles saves_save.
func (h *Handlers) HandleSave(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	evicted, err := h.engine.Save(ctx)
	if err != nil {
		return errorResult(err), nil
	}
	st := h.engine.State()
	return successResult(map[string]any{
		"saved":   st.Character.ID,
		"evicted": evicted,
		"notice":  st.Notice,
	})
}

// HandleLoad handles saves_load.
func (h *Handlers) HandleLoad(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[IDRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}
	return stateResult(h.engine.Load(ctx, input.ID))
}

// HandleDelete handles saves_delete.
func (h *Handlers) HandleDelete(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[IDRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}
	if err := h.engine.DeleteSave(ctx, input.ID); err != nil {
		return errorResult(err), nil
	}
	return successResult(map[string]any{"deleted": input.ID})
}

// HandleTranscript handles saves_transcript.
func (h *Handlers) HandleTranscript(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[TranscriptRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}
	out, err := export.ExportTranscript(ctx, h.saves, h.policy, export.TranscriptInput{
		ID:     input.ID,
		Path:   input.Path,
		Format: input.Format,
	})
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(out)
}

// HandleBackup handles saves_backup.
func (h *Handlers) HandleBackup(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[BackupRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}
	out, err := export.ExportBackup(ctx, h.saves, h.policy, input.Path)
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(out)
}

// HandleImport handles saves_import.
func (h *Handlers) HandleImport(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[ImportRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}
	mode, err := saves.ParseMergeMode(input.Mode)
	if err != nil {
		return errorResult(err), nil
	}
	out, err := export.ImportBackup(ctx, h.saves, h.policy, export.ImportInput{Path: input.Path, Mode: mode})
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(out)
}

// errorResult creates an MCP error result. Details of INTERNAL errors are
// withheld; they can carry paths or driver messages.
func errorResult(err error) *mcp.CallToolResult {
	var payload map[string]any

	var fe *errors.ForgeError
	if stderrors.As(err, &fe) {
		msg := fe.Message
		switch wrapped := err.Error(); {
		case fe.Code == errors.ErrInternal:
			msg = "an internal error occurred"
		case wrapped != fe.Error():
			// keep context added by wrapping, e.g. "slot 3: ..."
			msg = strings.TrimSuffix(wrapped, fe.Error()) + fe.Message
		}
		errorObj := map[string]any{
			"code":    fe.Code,
			"message": msg,
			"status":  fe.Status,
		}
		if fe.Code != errors.ErrInternal && fe.Details != nil {
			errorObj["details"] = fe.Details
		}
		payload = map[string]any{"error": errorObj}
	} else {
		payload = map[string]any{
			"error": map[string]any{
				"code":    errors.ErrInternal,
				"message": "an internal error occurred",
				"status":  500,
			},
		}
	}

	content, _ := json.Marshal(payload)
	return &mcp.CallToolResult{
		Content: []mcp.Content{mcp.TextContent{Type: "text", Text: string(content)}},
		IsError: true,
	}
}

func successResult(data any) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultJSON(data)
}
