package saves

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"math/rand"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roninrabbat-maker/adventure-forge/internal/errors"
	"github.com/roninrabbat-maker/adventure-forge/internal/game"
	"github.com/roninrabbat-maker/adventure-forge/internal/kv"
)

const testKey = "test:saves"

type clock struct{ t time.Time }

func (c *clock) now() time.Time {
	c.t = c.t.Add(time.Second)
	return c.t
}

func newRepo(t *testing.T, store kv.Store, opts ...Option) (*Repository, *bytes.Buffer) {
	t.Helper()
	var logs bytes.Buffer
	c := &clock{t: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	opts = append([]Option{WithClock(c.now), WithLogger(log.New(&logs, "", 0))}, opts...)
	return New(store, testKey, opts...), &logs
}

func slot(id, name, theme string) game.SaveData {
	return game.SaveData{
		Phase: game.PhaseGameplay,
		Character: &game.Character{
			ID: id, Name: name, Theme: theme, Health: 90, MaxHealth: 100,
			Inventory:  []game.InventoryItem{{Name: "Torch", Quantity: 1, Type: game.ItemItem}},
			Companions: []game.Companion{},
		},
		Messages:      []game.Message{{Speaker: game.SpeakerGame, Text: "You wake."}},
		Choices:       []string{"Stand"},
		AttackOptions: []string{},
	}
}

func TestList_Absent(t *testing.T) {
	repo, _ := newRepo(t, kv.NewMemory())

	got, err := repo.List(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestSaveLoad_RoundTrip(t *testing.T) {
	ctx := context.Background()
	repo, _ := newRepo(t, kv.NewMemory())

	s := slot("c1", "Ayla", "Oakhaven")
	_, err := repo.Save(ctx, s)
	require.NoError(t, err)

	got, err := repo.Load(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, "c1", got.ID)
	assert.False(t, got.LastSaved.IsZero())
	assert.Equal(t, s.Phase, got.Phase)
	assert.Equal(t, s.Character, got.Character)
	assert.Equal(t, s.Messages, got.Messages)
	assert.Equal(t, s.Choices, got.Choices)
	assert.Equal(t, s.AttackOptions, got.AttackOptions)
}

func TestSave_UpsertsByCharacterID(t *testing.T) {
	ctx := context.Background()
	repo, _ := newRepo(t, kv.NewMemory())

	_, err := repo.Save(ctx, slot("c1", "Ayla", "Oakhaven"))
	require.NoError(t, err)
	_, err = repo.Save(ctx, slot("c2", "Bren", "Oakhaven"))
	require.NoError(t, err)

	updated := slot("c1", "Ayla", "Oakhaven")
	updated.Character.Health = 5
	_, err = repo.Save(ctx, updated)
	require.NoError(t, err)

	all, err := repo.List(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "c1", all[0].ID)
	assert.Equal(t, 5, all[0].Character.Health)
	assert.Equal(t, "c2", all[1].ID)
}

func TestSave_RereadsBeforeWriting(t *testing.T) {
	ctx := context.Background()
	store := kv.NewMemory()
	a, _ := newRepo(t, store)
	b, _ := newRepo(t, store)

	_, err := a.Save(ctx, slot("c1", "Ayla", "Oakhaven"))
	require.NoError(t, err)
	// b never listed, yet must not clobber a's slot
	_, err = b.Save(ctx, slot("c2", "Bren", "Oakhaven"))
	require.NoError(t, err)

	all, err := a.List(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestSave_RequiresCharacterID(t *testing.T) {
	repo, _ := newRepo(t, kv.NewMemory())
	_, err := repo.Save(context.Background(), game.SaveData{})
	assert.True(t, errors.Is(err, errors.ErrInvalidRequest))
}

func TestSave_EvictsOldest(t *testing.T) {
	ctx := context.Background()
	repo, logs := newRepo(t, kv.NewMemory(), WithMaxSlots(2))

	for _, id := range []string{"c1", "c2"} {
		_, err := repo.Save(ctx, slot(id, id, "w"))
		require.NoError(t, err)
	}
	// c1 resaved, so c2 is now the oldest
	_, err := repo.Save(ctx, slot("c1", "c1", "w"))
	require.NoError(t, err)

	evicted, err := repo.Save(ctx, slot("c3", "c3", "w"))
	require.NoError(t, err)
	assert.Equal(t, []string{"c2"}, evicted)

	all, err := repo.List(ctx)
	require.NoError(t, err)
	ids := []string{all[0].ID, all[1].ID}
	assert.ElementsMatch(t, []string{"c1", "c3"}, ids)
	assert.Contains(t, logs.String(), "evicted")
}

func TestEvict_NeverDropsWrittenSlot(t *testing.T) {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	slots := []game.SaveData{
		{ID: "new", LastSaved: base},
		{ID: "b", LastSaved: base.Add(time.Hour)},
	}
	kept, evicted := evict(slots, 1, "new")
	assert.Equal(t, []string{"b"}, evicted)
	require.Len(t, kept, 1)
	assert.Equal(t, "new", kept[0].ID)
}

func TestLoad_NotFound(t *testing.T) {
	repo, _ := newRepo(t, kv.NewMemory())
	_, err := repo.Load(context.Background(), "nope")
	assert.True(t, errors.Is(err, errors.ErrSaveNotFound))
}

func TestLoad_UsesKnownCollection(t *testing.T) {
	ctx := context.Background()
	store := kv.NewMemory()
	repo, _ := newRepo(t, store)

	_, err := repo.Save(ctx, slot("c1", "Ayla", "Oakhaven"))
	require.NoError(t, err)

	// an external writer empties the store; load still sees the known copy
	require.NoError(t, store.Remove(ctx, testKey))
	got, err := repo.Load(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, "Ayla", got.Character.Name)
}

func TestDelete(t *testing.T) {
	ctx := context.Background()
	repo, _ := newRepo(t, kv.NewMemory())

	_, err := repo.Save(ctx, slot("c1", "Ayla", "Oakhaven"))
	require.NoError(t, err)
	require.NoError(t, repo.Delete(ctx, "c1"))

	err = repo.Delete(ctx, "c1")
	assert.True(t, errors.Is(err, errors.ErrSaveNotFound))

	_, err = repo.Load(ctx, "c1")
	assert.True(t, errors.Is(err, errors.ErrSaveNotFound))
	assert.Empty(t, repo.Known())
}

func TestList_QuarantinesCorruptBlob(t *testing.T) {
	ctx := context.Background()
	store := kv.NewMemory()
	raw := []byte("{definitely not a save collection")
	require.NoError(t, store.Set(ctx, testKey, raw))

	repo, logs := newRepo(t, store)
	got, err := repo.List(ctx)

	assert.Empty(t, got)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrStorageCorrupted))

	keys, qerr := repo.Quarantined(ctx)
	require.NoError(t, qerr)
	require.Len(t, keys, 1)
	assert.True(t, strings.HasPrefix(keys[0], testKey+":quarantine:"))

	preserved, found, _ := store.Get(ctx, keys[0])
	require.True(t, found)
	assert.Equal(t, raw, preserved)

	_, found, _ = store.Get(ctx, testKey)
	assert.False(t, found, "primary key should be removed")
	assert.Contains(t, logs.String(), "quarantined")

	// warning surfaces once
	got, err = repo.List(ctx)
	assert.NoError(t, err)
	assert.Empty(t, got)
}

func TestList_StructurallyInvalidEntriesAreCorruption(t *testing.T) {
	for name, blob := range map[string]string{
		"null":         `null`,
		"missing id":   `[{"character":{"id":"x"}}]`,
		"no character": `[{"id":"x"}]`,
		"object":       `{"id":"x"}`,
	} {
		t.Run(name, func(t *testing.T) {
			store := kv.NewMemory()
			require.NoError(t, store.Set(context.Background(), testKey, []byte(blob)))
			repo, _ := newRepo(t, store)
			got, err := repo.List(context.Background())
			assert.Empty(t, got)
			assert.True(t, errors.Is(err, errors.ErrStorageCorrupted))
		})
	}
}

// Property: arbitrary bytes never escape the repository as anything but an
// empty list, a nil error or a corruption warning, and are always preserved.
func TestList_ArbitraryBytesNeverPanic(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	for i := 0; i < 200; i++ {
		raw := make([]byte, rng.Intn(64))
		rng.Read(raw)

		store := kv.NewMemory()
		require.NoError(t, store.Set(context.Background(), testKey, raw))
		repo, _ := newRepo(t, store)

		got, err := repo.List(context.Background())
		if err != nil {
			require.True(t, errors.Is(err, errors.ErrStorageCorrupted), "iteration %d: %v", i, err)
			keys, _ := repo.Quarantined(context.Background())
			require.Len(t, keys, 1)
			preserved, _, _ := store.Get(context.Background(), keys[0])
			require.Equal(t, raw, preserved)
		}
		require.NotNil(t, got)
	}
}

func TestSave_AfterCorruptionStartsFresh(t *testing.T) {
	ctx := context.Background()
	store := kv.NewMemory()
	require.NoError(t, store.Set(ctx, testKey, []byte("garbage")))
	repo, _ := newRepo(t, store)

	_, err := repo.Save(ctx, slot("c1", "Ayla", "Oakhaven"))
	require.NoError(t, err)

	// the untaken warning rides on the next List
	all, err := repo.List(ctx)
	assert.True(t, errors.Is(err, errors.ErrStorageCorrupted))
	require.Len(t, all, 1)

	all, err = repo.List(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)

	keys, err := repo.Quarantined(ctx)
	require.NoError(t, err)
	assert.Len(t, keys, 1)
}

func TestTakeWarning_ReportsQuarantineOnce(t *testing.T) {
	for name, op := range map[string]func(context.Context, *Repository) error{
		"save": func(ctx context.Context, r *Repository) error {
			_, err := r.Save(ctx, slot("c1", "Ayla", "Oakhaven"))
			return err
		},
		"load": func(ctx context.Context, r *Repository) error {
			_, err := r.Load(ctx, "c1")
			if errors.Is(err, errors.ErrSaveNotFound) {
				return nil
			}
			return err
		},
		"delete": func(ctx context.Context, r *Repository) error {
			err := r.Delete(ctx, "c1")
			if errors.Is(err, errors.ErrSaveNotFound) {
				return nil
			}
			return err
		},
	} {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			store := kv.NewMemory()
			require.NoError(t, store.Set(ctx, testKey, []byte("][ not json")))
			repo, _ := newRepo(t, store)

			require.NoError(t, op(ctx, repo))

			warn := repo.TakeWarning()
			require.Error(t, warn)
			assert.True(t, errors.Is(warn, errors.ErrStorageCorrupted))
			assert.NoError(t, repo.TakeWarning())

			_, err := repo.List(ctx)
			assert.NoError(t, err, "taken warning is not repeated by List")
		})
	}
}

func TestQuarantine_AppendsToIndex(t *testing.T) {
	ctx := context.Background()
	store := kv.NewMemory()
	repo, _ := newRepo(t, store)

	for i := 0; i < 2; i++ {
		require.NoError(t, store.Set(ctx, testKey, []byte(fmt.Sprintf("bad-%d", i))))
		_, err := repo.List(ctx)
		require.Error(t, err)
	}
	keys, err := repo.Quarantined(ctx)
	require.NoError(t, err)
	require.Len(t, keys, 2)
	assert.NotEqual(t, keys[0], keys[1])
}

func TestQuarantine_SameInstantKeepsBothBlobs(t *testing.T) {
	ctx := context.Background()
	store := kv.NewMemory()
	fixed := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	repo, _ := newRepo(t, store, WithClock(func() time.Time { return fixed }))

	for i := 0; i < 3; i++ {
		require.NoError(t, store.Set(ctx, testKey, []byte(fmt.Sprintf("bad-%d", i))))
		_, err := repo.List(ctx)
		require.True(t, errors.Is(err, errors.ErrStorageCorrupted))
	}

	keys, err := repo.Quarantined(ctx)
	require.NoError(t, err)
	require.Len(t, keys, 3)
	base := fmt.Sprintf("%s:quarantine:%d", testKey, fixed.UnixNano())
	assert.Equal(t, []string{base, base + "-1", base + "-2"}, keys)
	for i, k := range keys {
		raw, found, err := store.Get(ctx, k)
		require.NoError(t, err)
		require.True(t, found)
		assert.Equal(t, fmt.Sprintf("bad-%d", i), string(raw))
	}
}

func TestStorageUnavailable(t *testing.T) {
	ctx := context.Background()
	store := kv.NewMemory()
	repo, logs := newRepo(t, store)
	store.Fail = assert.AnError

	_, err := repo.List(ctx)
	assert.True(t, errors.Is(err, errors.ErrStorageUnavailable))

	_, err = repo.Save(ctx, slot("c1", "Ayla", "Oakhaven"))
	assert.True(t, errors.Is(err, errors.ErrStorageUnavailable))

	err = repo.Delete(ctx, "c1")
	assert.True(t, errors.Is(err, errors.ErrStorageUnavailable))
	assert.NotEmpty(t, logs.String())
}

func TestStorageCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	repo, _ := newRepo(t, kv.NewMemory())
	_, err := repo.List(ctx)
	assert.True(t, errors.Is(err, errors.ErrCancelled))
}

func TestMerge(t *testing.T) {
	ctx := context.Background()
	repo, _ := newRepo(t, kv.NewMemory())
	_, err := repo.Save(ctx, slot("c1", "Ayla", "Oakhaven"))
	require.NoError(t, err)

	in := []game.SaveData{slot("c1", "Ayla II", "Oakhaven"), slot("c2", "Bren", "Oakhaven")}
	for i := range in {
		in[i].ID = in[i].Character.ID
	}

	_, err = repo.Merge(ctx, in, MergeError)
	assert.True(t, errors.Is(err, errors.ErrInvalidRequest))
	all, _ := repo.List(ctx)
	assert.Len(t, all, 1, "error mode must not write anything")

	res, err := repo.Merge(ctx, in, MergeSkip)
	require.NoError(t, err)
	assert.Equal(t, MergeResult{Added: 1, Skipped: 1}, res)
	got, _ := repo.Load(ctx, "c1")
	assert.Equal(t, "Ayla", got.Character.Name)

	res, err = repo.Merge(ctx, in, MergeReplace)
	require.NoError(t, err)
	assert.Equal(t, MergeResult{Replaced: 2}, res)
	got, _ = repo.Load(ctx, "c1")
	assert.Equal(t, "Ayla II", got.Character.Name)
}

func TestMerge_RejectsMismatchedIDs(t *testing.T) {
	repo, _ := newRepo(t, kv.NewMemory())
	s := slot("c1", "Ayla", "Oakhaven")
	s.ID = "other"
	_, err := repo.Merge(context.Background(), []game.SaveData{s}, MergeReplace)
	assert.True(t, errors.Is(err, errors.ErrInvalidRequest))
}

func TestParseMergeMode(t *testing.T) {
	m, err := ParseMergeMode("")
	require.NoError(t, err)
	assert.Equal(t, MergeError, m)
	m, err = ParseMergeMode("skip")
	require.NoError(t, err)
	assert.Equal(t, MergeSkip, m)
	_, err = ParseMergeMode("merge")
	assert.Error(t, err)
}

func TestCollectionIsJSONArray(t *testing.T) {
	ctx := context.Background()
	store := kv.NewMemory()
	repo, _ := newRepo(t, store)
	_, err := repo.Save(ctx, slot("c1", "Ayla", "Oakhaven"))
	require.NoError(t, err)

	raw, _, _ := store.Get(ctx, testKey)
	var decoded []map[string]any
	require.NoError(t, json.Unmarshal(raw, &decoded))
	require.Len(t, decoded, 1)
	assert.Equal(t, "c1", decoded[0]["id"])
	assert.Contains(t, decoded[0], "lastSaved")
}
