package session

import (
	"bytes"
	"context"
	"log"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/roninrabbat-maker/adventure-forge/internal/game"
	"github.com/roninrabbat-maker/adventure-forge/internal/generation"
	"github.com/roninrabbat-maker/adventure-forge/internal/kv"
	"github.com/roninrabbat-maker/adventure-forge/internal/saves"
)

type step struct {
	result game.TurnResult
	err    error
}

type fakeNarrator struct {
	mu       sync.Mutex
	steps    []step
	requests []generation.TurnRequest

	// when gate is set, NextTurn signals entered and blocks until gate closes
	gate    chan struct{}
	entered chan struct{}
}

func (f *fakeNarrator) queue(steps ...step) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.steps = append(f.steps, steps...)
}

func (f *fakeNarrator) block() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.gate = make(chan struct{})
	f.entered = make(chan struct{}, 1)
}

func (f *fakeNarrator) NextTurn(ctx context.Context, req generation.TurnRequest) (game.TurnResult, error) {
	f.mu.Lock()
	f.requests = append(f.requests, req)
	gate, entered := f.gate, f.entered
	f.mu.Unlock()

	if gate != nil {
		entered <- struct{}{}
		<-gate
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.steps) == 0 {
		return game.TurnResult{SceneDescription: "Nothing happens.", UpdatedHealth: req.Character.Health}, nil
	}
	s := f.steps[0]
	f.steps = f.steps[1:]
	return s.result, s.err
}

func (f *fakeNarrator) last() generation.TurnRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.requests[len(f.requests)-1]
}

type fakeCreator struct {
	mu sync.Mutex

	scaffold    *game.Scaffold
	scaffoldErr error
	tabErr      map[string]error
	tabCalls    []string
	simple      game.Character
	simpleErr   error
	themeErr    error
	lore        string
	loreCalls   int
	seeds       []generation.CharacterSeed
}

func (f *fakeCreator) Scaffold(ctx context.Context, seed generation.CharacterSeed) (*game.Scaffold, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seeds = append(f.seeds, seed)
	if f.scaffoldErr != nil {
		return nil, f.scaffoldErr
	}
	return game.CloneScaffold(f.scaffold), nil
}

func (f *fakeCreator) TabOptions(ctx context.Context, theme, name, tab string, areas []string) ([]game.CustomizationArea, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tabCalls = append(f.tabCalls, tab)
	if err := f.tabErr[tab]; err != nil {
		return nil, err
	}
	out := make([]game.CustomizationArea, len(areas))
	for i, a := range areas {
		out[i] = game.CustomizationArea{Name: a, Options: []string{a + " one", a + " two"}}
	}
	return out, nil
}

func (f *fakeCreator) VisualTheme(ctx context.Context, name, theme, description string) (game.VisualTheme, error) {
	if f.themeErr != nil {
		return game.VisualTheme{}, f.themeErr
	}
	return game.VisualTheme{Primary: "#123456", Secondary: "#000", Background: "#111", Text: "#fff", Accent: "#f00"}, nil
}

func (f *fakeCreator) SimpleCharacter(ctx context.Context, seed generation.CharacterSeed) (game.Character, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seeds = append(f.seeds, seed)
	if f.simpleErr != nil {
		return game.Character{}, f.simpleErr
	}
	c := *game.CloneCharacter(&f.simple)
	c.Name = seed.Name
	return c, nil
}

func (f *fakeCreator) CanonLore(ctx context.Context, name, theme string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.loreCalls++
	return f.lore, nil
}

type testClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *testClock) now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *testClock) advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

type harness struct {
	engine   *Engine
	narrator *fakeNarrator
	creator  *fakeCreator
	store    *kv.Memory
	repo     *saves.Repository
	clock    *testClock
	logs     *bytes.Buffer
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		narrator: &fakeNarrator{},
		creator: &fakeCreator{
			scaffold: &game.Scaffold{
				Name:  "Bren",
				Theme: "Oakhaven",
				Tabs: []game.CustomizationTab{
					{Name: "Appearance", Areas: []game.CustomizationArea{{Name: "Hair"}, {Name: "Eyes"}}},
					{Name: "Gear", Areas: []game.CustomizationArea{{Name: "Cloak"}}},
				},
				Alignments:           []string{"Neutral"},
				StartingHealth:       100,
				StartingInventory:    []game.InventoryItem{{Name: "Torch", Quantity: 1, Type: game.ItemItem}},
				CompanionSuggestions: []game.Companion{{Name: "Bo", Kind: "dog"}},
			},
			simple: game.Character{Theme: "Oakhaven", Health: 100, MaxHealth: 100},
		},
		store: kv.NewMemory(),
		clock: &testClock{t: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)},
		logs:  &bytes.Buffer{},
	}
	logger := log.New(h.logs, "", 0)
	h.repo = saves.New(h.store, "test:saves", saves.WithLogger(logger))
	h.engine = New(h.narrator, h.creator, h.repo,
		WithLogger(logger),
		WithClock(h.clock.now),
		WithPrefetchDelay(0),
	)
	return h
}

func character(id, name, theme string) *game.Character {
	return &game.Character{
		ID: id, Name: name, Theme: theme,
		Health: 100, MaxHealth: 100,
		Inventory:  []game.InventoryItem{},
		Companions: []game.Companion{},
	}
}

// seed writes a save slot straight into the repository.
func (h *harness) seed(t *testing.T, c *game.Character, msgs ...string) game.SaveData {
	t.Helper()
	slot := game.SaveData{
		ID:            c.ID,
		Phase:         game.PhaseGameplay,
		Character:     c,
		Messages:      []game.Message{},
		Choices:       []string{"Look around"},
		AttackOptions: []string{},
	}
	for _, m := range msgs {
		slot.Messages = append(slot.Messages, game.Message{Speaker: game.SpeakerGame, Text: m})
	}
	_, err := h.repo.Save(context.Background(), slot)
	require.NoError(t, err)
	return slot
}

// play seeds a character and loads it as the live session.
func (h *harness) play(t *testing.T, c *game.Character, msgs ...string) State {
	t.Helper()
	h.seed(t, c, msgs...)
	st, err := h.engine.Load(context.Background(), c.ID)
	require.NoError(t, err)
	require.Equal(t, game.PhaseGameplay, st.Phase)
	return st
}
