package generation

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"
	"golang.org/x/time/rate"

	"github.com/roninrabbat-maker/adventure-forge/internal/config"
	"github.com/roninrabbat-maker/adventure-forge/internal/errors"
	"github.com/roninrabbat-maker/adventure-forge/internal/game"
	"github.com/roninrabbat-maker/adventure-forge/internal/metrics"
)

// ChatClient is the subset of the go-openai client used here.
type ChatClient interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// OpenAI implements Narrator and Creator over chat completions in JSON mode.
type OpenAI struct {
	client  ChatClient
	model   string
	limiter *rate.Limiter
}

var (
	_ Narrator = (*OpenAI)(nil)
	_ Creator  = (*OpenAI)(nil)
)

// NewOpenAI builds an adapter for cfg. Calls are spaced at least interval
// apart; zero disables spacing.
func NewOpenAI(cfg config.LLMConfig, interval time.Duration) *OpenAI {
	oc := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		oc.BaseURL = cfg.BaseURL
	}
	return NewOpenAIWithClient(openai.NewClientWithConfig(oc), cfg.Model, interval)
}

// NewOpenAIWithClient uses a custom client (tests pass a fake).
func NewOpenAIWithClient(client ChatClient, model string, interval time.Duration) *OpenAI {
	limit := rate.Inf
	if interval > 0 {
		limit = rate.Every(interval)
	}
	return &OpenAI{
		client:  client,
		model:   model,
		limiter: rate.NewLimiter(limit, 1),
	}
}

func (o *OpenAI) NextTurn(ctx context.Context, req TurnRequest) (game.TurnResult, error) {
	user, err := turnUserPrompt(req)
	if err != nil {
		return game.TurnResult{}, errors.NewInternal(err)
	}
	system := narratorPrompt
	op := "turn"
	if req.Fate {
		system += "\n" + fatePrompt
		op = "fate"
	}

	var w wireTurn
	if err := o.complete(ctx, op, system, user, &w); err != nil {
		return game.TurnResult{}, err
	}
	r, err := w.validate()
	if err != nil {
		return game.TurnResult{}, errors.NewGenerationFailure(op, err)
	}
	return r, nil
}

func (o *OpenAI) Scaffold(ctx context.Context, seed CharacterSeed) (*game.Scaffold, error) {
	var w wireScaffold
	if err := o.complete(ctx, "scaffold", scaffoldPrompt, seedUserPrompt(seed), &w); err != nil {
		return nil, err
	}
	s, err := w.validate()
	if err != nil {
		return nil, errors.NewGenerationFailure("scaffold", err)
	}
	return s, nil
}

func (o *OpenAI) TabOptions(ctx context.Context, theme, characterName, tab string, areas []string) ([]game.CustomizationArea, error) {
	var w wireTabOptions
	if err := o.complete(ctx, "tab_options", tabPrompt, tabUserPrompt(theme, characterName, tab, areas), &w); err != nil {
		return nil, err
	}
	out, err := w.validate()
	if err != nil {
		return nil, errors.NewGenerationFailure("tab_options", err)
	}
	return out, nil
}

func (o *OpenAI) VisualTheme(ctx context.Context, name, theme, description string) (game.VisualTheme, error) {
	user := fmt.Sprintf("Character: %s\nWorld: %s\nDescription: %s", name, theme, description)
	var w wireVisualTheme
	if err := o.complete(ctx, "visual_theme", themePrompt, user, &w); err != nil {
		return game.VisualTheme{}, err
	}
	vt, err := w.validate()
	if err != nil {
		return game.VisualTheme{}, errors.NewGenerationFailure("visual_theme", err)
	}
	return vt, nil
}

func (o *OpenAI) SimpleCharacter(ctx context.Context, seed CharacterSeed) (game.Character, error) {
	var w wireCharacter
	if err := o.complete(ctx, "simple_character", simplePrompt, seedUserPrompt(seed), &w); err != nil {
		return game.Character{}, err
	}
	c, err := w.validate()
	if err != nil {
		return game.Character{}, errors.NewGenerationFailure("simple_character", err)
	}
	return c, nil
}

func (o *OpenAI) CanonLore(ctx context.Context, name, theme string) (string, error) {
	user := describe(game.Character{Name: name, Theme: theme})
	var w wireLore
	if err := o.complete(ctx, "canon_lore", lorePrompt, user, &w); err != nil {
		return "", err
	}
	if w.CanonEvents == nil {
		return "", errors.NewGenerationFailure("canon_lore", fmt.Errorf("canonEvents is required"))
	}
	return strings.TrimSpace(*w.CanonEvents), nil
}

// complete sends one JSON-mode chat request and decodes the reply into out.
func (o *OpenAI) complete(ctx context.Context, op, system, user string, out any) (err error) {
	start := time.Now()
	defer func() { metrics.RecordGeneration(op, err, time.Since(start)) }()

	if err := o.limiter.Wait(ctx); err != nil {
		if ctx.Err() != nil {
			return errors.NewCancelled(op)
		}
		return errors.NewGenerationFailure(op, err)
	}

	resp, err := o.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: o.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: system},
			{Role: openai.ChatMessageRoleUser, Content: user},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
	})
	if err != nil {
		if ctx.Err() != nil {
			return errors.NewCancelled(op)
		}
		return errors.NewGenerationFailure(op, err)
	}
	if len(resp.Choices) == 0 {
		return errors.NewGenerationFailure(op, fmt.Errorf("no choices in response"))
	}

	content := stripFence(resp.Choices[0].Message.Content)
	if err := json.Unmarshal([]byte(content), out); err != nil {
		return errors.NewGenerationFailure(op, fmt.Errorf("unparsable response: %w", err))
	}
	return nil
}

// stripFence removes a ```json fence some models wrap around JSON output.
func stripFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimPrefix(s, "json")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
