package export

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roninrabbat-maker/adventure-forge/internal/config"
	"github.com/roninrabbat-maker/adventure-forge/internal/errors"
	"github.com/roninrabbat-maker/adventure-forge/internal/game"
	"github.com/roninrabbat-maker/adventure-forge/internal/kv"
	"github.com/roninrabbat-maker/adventure-forge/internal/saves"
)

func newSlot(id, name string, msgs ...game.Message) game.SaveData {
	if msgs == nil {
		msgs = []game.Message{}
	}
	return game.SaveData{
		ID:    id,
		Phase: game.PhaseGameplay,
		Character: &game.Character{
			ID: id, Name: name, Theme: "Oakhaven",
			Health: 70, MaxHealth: 100,
			Inventory:  []game.InventoryItem{{Name: "Torch", Quantity: 2, Type: game.ItemItem}},
			Companions: []game.Companion{{ID: "c1", Name: "Bo", Kind: "dog"}},
		},
		Messages:      msgs,
		Choices:       []string{},
		AttackOptions: []string{},
	}
}

func newRepo(t *testing.T, slots ...game.SaveData) *saves.Repository {
	t.Helper()
	repo := saves.New(kv.NewMemory(), "test:saves")
	for _, s := range slots {
		_, err := repo.Save(context.Background(), s)
		require.NoError(t, err)
	}
	return repo
}

func TestTranscript(t *testing.T) {
	slot := newSlot("a", "Ayla",
		game.Message{Speaker: game.SpeakerSystem, Text: "Ayla's story begins in Oakhaven."},
		game.Message{Speaker: game.SpeakerGame, Text: "Rain falls."},
		game.Message{Speaker: game.SpeakerPlayer, Text: "find shelter"},
	)
	md := string(Transcript(slot))

	assert.True(t, strings.HasPrefix(md, "# Ayla\n"))
	assert.Contains(t, md, "- Health: 70/100")
	assert.Contains(t, md, "- Torch ×2 (item)")
	assert.Contains(t, md, "- Bo, dog")
	assert.Contains(t, md, "*Ayla's story begins in Oakhaven.*")
	assert.Contains(t, md, "Rain falls.\n")
	assert.Contains(t, md, "> **You:** find shelter")
	assert.Less(t, strings.Index(md, "Rain falls."), strings.Index(md, "find shelter"))
}

func TestRenderHTML_EscapesRawHTML(t *testing.T) {
	out, err := RenderHTML([]byte("# Title\n\n<script>alert(1)</script>\n"))
	require.NoError(t, err)
	assert.Contains(t, string(out), "<h1>Title</h1>")
	assert.NotContains(t, string(out), "<script>")
}

func TestExportTranscript(t *testing.T) {
	dir := t.TempDir()
	policy := Policy{ExportsDir: dir}
	repo := newRepo(t, newSlot("a", "Ayla", game.Message{Speaker: game.SpeakerGame, Text: "Rain falls."}))

	out, err := ExportTranscript(context.Background(), repo, policy, TranscriptInput{ID: "a"})
	require.NoError(t, err)
	assert.Equal(t, dir, filepath.Dir(out.Path))
	assert.True(t, strings.HasPrefix(filepath.Base(out.Path), "Ayla-"))
	assert.Equal(t, ".md", filepath.Ext(out.Path))
	assert.Equal(t, 1, out.Count)

	body, err := os.ReadFile(out.Path)
	require.NoError(t, err)
	assert.Contains(t, string(body), "Rain falls.")

	htmlPath := filepath.Join(dir, "ayla.html")
	_, err = ExportTranscript(context.Background(), repo, policy, TranscriptInput{ID: "a", Path: htmlPath, Format: "html"})
	require.NoError(t, err)
	body, err = os.ReadFile(htmlPath)
	require.NoError(t, err)
	assert.Contains(t, string(body), "<h1>Ayla</h1>")
}

func TestExportTranscript_Errors(t *testing.T) {
	dir := t.TempDir()
	policy := Policy{ExportsDir: dir}
	repo := newRepo(t, newSlot("a", "Ayla"))
	ctx := context.Background()

	_, err := ExportTranscript(ctx, repo, policy, TranscriptInput{ID: "missing"})
	assert.True(t, errors.Is(err, errors.ErrSaveNotFound))

	_, err = ExportTranscript(ctx, repo, policy, TranscriptInput{ID: "a", Format: "pdf"})
	assert.True(t, errors.Is(err, errors.ErrInvalidRequest))

	_, err = ExportTranscript(ctx, repo, policy, TranscriptInput{ID: "a", Path: filepath.Join(dir, "a.jsonl")})
	assert.True(t, errors.Is(err, errors.ErrInvalidRequest), "extension must match format")

	_, err = ExportTranscript(ctx, repo, policy, TranscriptInput{ID: "a", Path: filepath.Join(t.TempDir(), "a.md")})
	assert.True(t, errors.Is(err, errors.ErrInvalidRequest), "outside allowed dirs")
}

func TestBackupRoundTrip(t *testing.T) {
	dir := t.TempDir()
	policy := Policy{ExportsDir: dir}
	src := newRepo(t, newSlot("a", "Ayla", game.Message{Speaker: game.SpeakerGame, Text: "x"}), newSlot("b", "Bryn"))
	path := filepath.Join(dir, "saves.jsonl")

	out, err := ExportBackup(context.Background(), src, policy, path)
	require.NoError(t, err)
	assert.Equal(t, 2, out.Count)

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	scanner := bufio.NewScanner(f)
	require.True(t, scanner.Scan())
	var header BackupHeader
	require.NoError(t, json.Unmarshal(scanner.Bytes(), &header))
	assert.True(t, header.ForgeBackup)
	assert.Equal(t, BackupSchemaVersion, header.SchemaVersion)
	assert.Equal(t, 2, header.Count)

	dst := newRepo(t)
	res, err := ImportBackup(context.Background(), dst, policy, ImportInput{Path: path})
	require.NoError(t, err)
	assert.Empty(t, res.Errors)
	assert.Equal(t, 2, res.Added)

	want, err := src.List(context.Background())
	require.NoError(t, err)
	got, err := dst.List(context.Background())
	require.NoError(t, err)
	assert.Equal(t, want, got, "lastSaved stamps survive the round trip")
}

func TestImportBackup_Modes(t *testing.T) {
	dir := t.TempDir()
	policy := Policy{ExportsDir: dir}
	ctx := context.Background()

	original := newSlot("a", "Ayla")
	original.LastSaved = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	changed := newSlot("a", "Ayla")
	changed.Character.Health = 5
	changed.LastSaved = time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)

	path := filepath.Join(dir, "in.jsonl")
	writeLines(t, path, changed, newSlot("n", "Nia"))

	t.Run("error mode aborts on collision", func(t *testing.T) {
		repo := newRepo(t, original)
		res, err := ImportBackup(ctx, repo, policy, ImportInput{Path: path})
		require.NoError(t, err)
		require.Len(t, res.Errors, 1)
		assert.Equal(t, "ID_COLLISION", res.Errors[0].Code)
		slots, _ := repo.List(ctx)
		assert.Len(t, slots, 1)
	})

	t.Run("replace", func(t *testing.T) {
		repo := newRepo(t, original)
		res, err := ImportBackup(ctx, repo, policy, ImportInput{Path: path, Mode: saves.MergeReplace})
		require.NoError(t, err)
		assert.Equal(t, 1, res.Replaced)
		assert.Equal(t, 1, res.Added)
		slot, err := repo.Load(ctx, "a")
		require.NoError(t, err)
		assert.Equal(t, 5, slot.Character.Health)
	})

	t.Run("skip", func(t *testing.T) {
		repo := newRepo(t, original)
		res, err := ImportBackup(ctx, repo, policy, ImportInput{Path: path, Mode: saves.MergeSkip})
		require.NoError(t, err)
		assert.Equal(t, 1, res.Skipped)
		slot, err := repo.Load(ctx, "a")
		require.NoError(t, err)
		assert.Equal(t, 70, slot.Character.Health)
	})

	t.Run("unknown mode", func(t *testing.T) {
		_, err := ImportBackup(ctx, newRepo(t), policy, ImportInput{Path: path, Mode: "rename"})
		assert.True(t, errors.Is(err, errors.ErrInvalidRequest))
	})
}

func TestImportBackup_BadLines(t *testing.T) {
	dir := t.TempDir()
	policy := Policy{ExportsDir: dir}
	ctx := context.Background()

	good, err := json.Marshal(newSlot("g", "Gil"))
	require.NoError(t, err)
	mismatched := newSlot("m", "Mo")
	mismatched.Character.ID = "other"
	bad, err := json.Marshal(mismatched)
	require.NoError(t, err)

	path := filepath.Join(dir, "mixed.jsonl")
	body := `{"_forge_backup":true,"schema_version":"1.0"}` + "\n" +
		"{not json\n" +
		string(good) + "\n" +
		`{"id":"x"}` + "\n" +
		string(bad) + "\n"
	require.NoError(t, os.WriteFile(path, []byte(body), 0600))

	repo := newRepo(t)
	res, err := ImportBackup(ctx, repo, policy, ImportInput{Path: path})
	require.NoError(t, err)
	require.Len(t, res.Errors, 3)
	assert.Equal(t, LineError{Line: 2, Code: "PARSE_ERROR", Message: res.Errors[0].Message}, res.Errors[0])
	assert.Equal(t, 4, res.Errors[1].Line)
	assert.Equal(t, "INVALID_RECORD", res.Errors[1].Code)
	assert.Equal(t, 5, res.Errors[2].Line)
	slots, _ := repo.List(ctx)
	assert.Empty(t, slots, "error mode writes nothing when a line is bad")

	res, err = ImportBackup(ctx, repo, policy, ImportInput{Path: path, Mode: saves.MergeSkip})
	require.NoError(t, err)
	assert.Len(t, res.Errors, 3)
	assert.Equal(t, 1, res.Added)
}

func TestImportBackup_OverCorruptedCollection(t *testing.T) {
	dir := t.TempDir()
	policy := Policy{ExportsDir: dir}
	ctx := context.Background()
	path := filepath.Join(dir, "in.jsonl")
	writeLines(t, path, newSlot("n", "Nia"))

	store := kv.NewMemory()
	require.NoError(t, store.Set(ctx, "test:saves", []byte("][ not json")))
	repo := saves.New(store, "test:saves")

	res, err := ImportBackup(ctx, repo, policy, ImportInput{Path: path})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Added)
	assert.Contains(t, res.Warning, "quarantined")

	slots, err := repo.List(ctx)
	require.NoError(t, err)
	assert.Len(t, slots, 1)
}

func TestImportBackup_MissingFile(t *testing.T) {
	dir := t.TempDir()
	_, err := ImportBackup(context.Background(), newRepo(t), Policy{ExportsDir: dir}, ImportInput{Path: filepath.Join(dir, "nope.jsonl")})
	assert.True(t, errors.Is(err, errors.ErrFileNotFound))
}

func TestWriteAtomic_PreservesOriginalOnFailure(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "keep.md")
	require.NoError(t, os.WriteFile(path, []byte("original"), 0600))

	err := writeAtomic(path, func(w io.Writer) error {
		return errors.NewInvalidRequest("boom")
	})
	assert.True(t, errors.Is(err, errors.ErrInvalidRequest))

	body, readErr := os.ReadFile(path)
	require.NoError(t, readErr)
	assert.Equal(t, "original", string(body))

	entries, readErr := os.ReadDir(dir)
	require.NoError(t, readErr)
	assert.Len(t, entries, 1, "temp file removed")
}

func TestNewPolicy(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.AllowedPaths = []string{"/srv/forge"}
	cfg.AllowUnsafePaths = true

	p := NewPolicy("/home/u/.forge", cfg)
	assert.Equal(t, filepath.Join("/home/u/.forge", "exports"), p.ExportsDir)
	assert.Equal(t, []string{"/srv/forge"}, p.AllowedPaths)
	assert.True(t, p.AllowUnsafe)
}

func writeLines(t *testing.T, path string, slots ...game.SaveData) {
	t.Helper()
	var b strings.Builder
	for _, s := range slots {
		raw, err := json.Marshal(s)
		require.NoError(t, err)
		b.Write(raw)
		b.WriteByte('\n')
	}
	require.NoError(t, os.WriteFile(path, []byte(b.String()), 0600))
}
