// Package saves persists save slots as one serialized collection under a
// single store key.
//
// Every writer re-reads the collection before writing it back. There is no
// locking across processes: the last writer wins at the blob level.
// A collection that cannot be parsed is quarantined under
// "<key>:quarantine:<unix-nanos>" before the primary key is removed, so raw
// bytes are never lost.
package saves

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"log"
	"sort"
	"sync"
	"time"

	"github.com/roninrabbat-maker/adventure-forge/internal/errors"
	"github.com/roninrabbat-maker/adventure-forge/internal/game"
	"github.com/roninrabbat-maker/adventure-forge/internal/kv"
	"github.com/roninrabbat-maker/adventure-forge/internal/metrics"
)

// DefaultMaxSlots bounds the collection when no cap is configured.
const DefaultMaxSlots = 50

// Repository is CRUD over the save collection.
type Repository struct {
	store    kv.Store
	key      string
	maxSlots int
	now      func() time.Time
	logger   *log.Logger

	mu     sync.Mutex
	known  []game.SaveData
	loaded bool

	// pending is a corruption warning raised outside List that nobody has
	// reported yet.
	pending error
}

// Option configures a Repository.
type Option func(*Repository)

// WithMaxSlots sets the slot cap. Values <= 0 keep the default.
func WithMaxSlots(n int) Option {
	return func(r *Repository) {
		if n > 0 {
			r.maxSlots = n
		}
	}
}

// WithClock replaces time.Now for LastSaved stamps and quarantine keys.
func WithClock(now func() time.Time) Option {
	return func(r *Repository) { r.now = now }
}

// WithLogger sets the logger for quarantine and eviction events.
func WithLogger(l *log.Logger) Option {
	return func(r *Repository) {
		if l != nil {
			r.logger = l
		}
	}
}

// New creates a repository over store using key for the collection blob.
func New(store kv.Store, key string, opts ...Option) *Repository {
	r := &Repository{
		store:    store,
		key:      key,
		maxSlots: DefaultMaxSlots,
		now:      time.Now,
		logger:   log.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Key returns the store key holding the collection.
func (r *Repository) Key() string { return r.key }

// QuarantineIndexKey is where the list of quarantine keys is kept.
func (r *Repository) QuarantineIndexKey() string { return r.key + ":quarantine-index" }

// List reads the collection.
//
// An absent collection is empty. A corrupted one is quarantined and List
// returns an empty, non-nil slice together with a STORAGE_CORRUPTED error
// that callers should treat as a warning.
func (r *Repository) List(ctx context.Context) ([]game.SaveData, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	slots, warn, err := r.read(ctx)
	metrics.RecordSaveOp("list", err)
	if err != nil {
		return nil, err
	}
	if warn == nil {
		warn = r.pending
	}
	r.pending = nil
	r.remember(slots)
	return cloneAll(slots), warn
}

// TakeWarning returns the STORAGE_CORRUPTED warning raised by the last
// Save, Load, Delete or Merge that quarantined the collection, and clears
// it. It returns nil when there is nothing to report.
func (r *Repository) TakeWarning() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	w := r.pending
	r.pending = nil
	return w
}

// hold keeps warn for TakeWarning or the next List.
func (r *Repository) hold(warn error) {
	if warn != nil {
		r.pending = warn
	}
}

// Known returns the most recently read collection without touching the
// store.
func (r *Repository) Known() []game.SaveData {
	r.mu.Lock()
	defer r.mu.Unlock()
	return cloneAll(r.known)
}

// Save upserts slot by id into a freshly read collection and writes it back.
// LastSaved is stamped here. If the cap is exceeded the oldest other slots
// are evicted; their ids are returned.
func (r *Repository) Save(ctx context.Context, slot game.SaveData) (evicted []string, err error) {
	defer func() { metrics.RecordSaveOp("save", err) }()

	if slot.Character == nil || slot.Character.ID == "" {
		return nil, errors.NewInvalidRequest("cannot save without a character id")
	}
	slot = game.CloneSave(slot)
	slot.ID = slot.Character.ID
	slot.LastSaved = r.now().UTC()

	r.mu.Lock()
	defer r.mu.Unlock()

	slots, warn, err := r.read(ctx)
	r.hold(warn)
	if err != nil {
		return nil, err
	}

	replaced := false
	for i := range slots {
		if slots[i].ID == slot.ID {
			slots[i] = slot
			replaced = true
			break
		}
	}
	if !replaced {
		slots = append(slots, slot)
	}

	slots, evicted = evict(slots, r.maxSlots, slot.ID)
	if err := r.write(ctx, slots); err != nil {
		return nil, err
	}
	if len(evicted) > 0 {
		r.logger.Printf("saves: slot cap %d reached, evicted %v", r.maxSlots, evicted)
		metrics.RecordEvictions(len(evicted))
	}
	r.remember(slots)
	return evicted, nil
}

// Load looks id up in the most recently known collection, reading the
// store first if nothing has been read yet.
func (r *Repository) Load(ctx context.Context, id string) (slot game.SaveData, err error) {
	defer func() { metrics.RecordSaveOp("load", err) }()

	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.loaded {
		slots, warn, err := r.read(ctx)
		r.hold(warn)
		if err != nil {
			return game.SaveData{}, err
		}
		r.remember(slots)
	}
	for _, s := range r.known {
		if s.ID == id {
			return game.CloneSave(s), nil
		}
	}
	return game.SaveData{}, errors.NewSaveNotFound(id)
}

// Delete removes id from a freshly read collection.
func (r *Repository) Delete(ctx context.Context, id string) (err error) {
	defer func() { metrics.RecordSaveOp("delete", err) }()

	r.mu.Lock()
	defer r.mu.Unlock()

	slots, warn, err := r.read(ctx)
	r.hold(warn)
	if err != nil {
		return err
	}
	kept := make([]game.SaveData, 0, len(slots))
	for _, s := range slots {
		if s.ID != id {
			kept = append(kept, s)
		}
	}
	if len(kept) == len(slots) {
		r.remember(slots)
		return errors.NewSaveNotFound(id)
	}
	if err := r.write(ctx, kept); err != nil {
		return err
	}
	r.remember(kept)
	return nil
}

// Quarantined returns the keys of quarantined collections, oldest first.
func (r *Repository) Quarantined(ctx context.Context) ([]string, error) {
	raw, found, err := r.store.Get(ctx, r.QuarantineIndexKey())
	if err != nil {
		return nil, storageErr(ctx, "quarantine index", err)
	}
	if !found {
		return []string{}, nil
	}
	var keys []string
	if err := json.Unmarshal(raw, &keys); err != nil {
		return nil, errors.NewStorageCorrupted("", fmt.Errorf("quarantine index: %w", err))
	}
	return keys, nil
}

// read loads and parses the collection. Corruption is handled by
// quarantining and yields an empty collection plus a warning.
func (r *Repository) read(ctx context.Context) (slots []game.SaveData, warn error, err error) {
	raw, found, err := r.store.Get(ctx, r.key)
	if err != nil {
		r.logger.Printf("saves: read %s: %v", r.key, err)
		return nil, nil, storageErr(ctx, "read", err)
	}
	if !found {
		return []game.SaveData{}, nil, nil
	}

	slots, perr := decode(raw)
	if perr == nil {
		return slots, nil, nil
	}

	qkey, qerr := r.quarantine(ctx, raw)
	if qerr != nil {
		return nil, nil, qerr
	}
	return []game.SaveData{}, errors.NewStorageCorrupted(qkey, perr), nil
}

func (r *Repository) quarantine(ctx context.Context, raw []byte) (string, error) {
	qkey, err := r.freeQuarantineKey(ctx)
	if err != nil {
		r.logger.Printf("saves: quarantine key lookup failed: %v", err)
		return "", storageErr(ctx, "quarantine", err)
	}
	if err := r.store.Set(ctx, qkey, raw); err != nil {
		// Leave the primary key in place so the bytes survive.
		r.logger.Printf("saves: quarantine write %s failed: %v", qkey, err)
		return "", storageErr(ctx, "quarantine", err)
	}

	keys, err := r.Quarantined(ctx)
	if err != nil {
		r.logger.Printf("saves: quarantine index unreadable, starting a new one: %v", err)
		keys = nil
	}
	keys = append(keys, qkey)
	if idx, err := json.Marshal(keys); err == nil {
		if err := r.store.Set(ctx, r.QuarantineIndexKey(), idx); err != nil {
			r.logger.Printf("saves: quarantine index write failed: %v", err)
		}
	}

	if err := r.store.Remove(ctx, r.key); err != nil {
		r.logger.Printf("saves: remove corrupted %s failed: %v", r.key, err)
	}
	r.logger.Printf("saves: corrupted collection quarantined under %s (%d bytes)", qkey, len(raw))
	metrics.RecordQuarantine()
	return qkey, nil
}

// freeQuarantineKey returns <key>:quarantine:<nanos>, with a -N suffix when
// an earlier quarantine already holds that name.
func (r *Repository) freeQuarantineKey(ctx context.Context) (string, error) {
	base := fmt.Sprintf("%s:quarantine:%d", r.key, r.now().UnixNano())
	qkey := base
	for n := 1; ; n++ {
		_, taken, err := r.store.Get(ctx, qkey)
		if err != nil {
			return "", err
		}
		if !taken {
			return qkey, nil
		}
		qkey = fmt.Sprintf("%s-%d", base, n)
	}
}

func (r *Repository) write(ctx context.Context, slots []game.SaveData) error {
	data, err := json.Marshal(slots)
	if err != nil {
		return errors.NewInternal(fmt.Errorf("encode save collection: %w", err))
	}
	if err := r.store.Set(ctx, r.key, data); err != nil {
		r.logger.Printf("saves: write %s: %v", r.key, err)
		return storageErr(ctx, "write", err)
	}
	return nil
}

func (r *Repository) remember(slots []game.SaveData) {
	r.known = cloneAll(slots)
	r.loaded = true
}

// decode parses a collection blob. Entries without an id or character are
// treated as corruption.
func decode(raw []byte) ([]game.SaveData, error) {
	var slots []game.SaveData
	if err := json.Unmarshal(raw, &slots); err != nil {
		return nil, err
	}
	if slots == nil {
		// "null" is valid JSON but not a collection
		return nil, stderrors.New("collection is null")
	}
	for i, s := range slots {
		if s.ID == "" {
			return nil, fmt.Errorf("entry %d has no id", i)
		}
		if s.Character == nil {
			return nil, fmt.Errorf("entry %s has no character", s.ID)
		}
	}
	return slots, nil
}

// evict drops the oldest slots by LastSaved until len <= limit, never
// dropping keep.
func evict(slots []game.SaveData, limit int, keep string) ([]game.SaveData, []string) {
	if limit <= 0 || len(slots) <= limit {
		return slots, nil
	}
	candidates := make([]game.SaveData, 0, len(slots))
	for _, s := range slots {
		if s.ID != keep {
			candidates = append(candidates, s)
		}
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].LastSaved.Before(candidates[j].LastSaved)
	})

	drop := make(map[string]bool)
	var evicted []string
	for _, c := range candidates[:len(slots)-limit] {
		drop[c.ID] = true
		evicted = append(evicted, c.ID)
	}
	kept := make([]game.SaveData, 0, limit)
	for _, s := range slots {
		if !drop[s.ID] {
			kept = append(kept, s)
		}
	}
	return kept, evicted
}

func storageErr(ctx context.Context, op string, err error) error {
	if ctx.Err() != nil {
		return errors.NewCancelled("saves " + op)
	}
	return errors.NewStorageUnavailable(err)
}

func cloneAll(slots []game.SaveData) []game.SaveData {
	out := make([]game.SaveData, len(slots))
	for i, s := range slots {
		out[i] = game.CloneSave(s)
	}
	return out
}
