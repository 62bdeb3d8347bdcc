package session

import (
	stderrors "errors"
	"log"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/roninrabbat-maker/adventure-forge/internal/config"
	"github.com/roninrabbat-maker/adventure-forge/internal/errors"
	"github.com/roninrabbat-maker/adventure-forge/internal/game"
	"github.com/roninrabbat-maker/adventure-forge/internal/generation"
	"github.com/roninrabbat-maker/adventure-forge/internal/metrics"
	"github.com/roninrabbat-maker/adventure-forge/internal/saves"
)

// Turn kinds used for metrics and log lines.
const (
	kindTurn       = "turn"
	kindFate       = "fate"
	kindFinalize   = "finalize"
	kindQuickStart = "quick_start"
	kindScaffold   = "scaffold"
)

// Engine holds the live session and serializes every mutation of it.
//
// The mutex is never held across a service or store call. Instead each
// request captures the sequencing token; its response is applied only if
// the token is still current, otherwise it is discarded as stale.
type Engine struct {
	narrator generation.Narrator
	creator  generation.Creator
	saves    *saves.Repository
	logger   *log.Logger
	now      func() time.Time

	historyWindow int
	noticeTTL     time.Duration
	prefetch      *rate.Limiter

	mu   sync.Mutex
	sess Session
	seq  uint64
	undo UndoManager

	// creation draft
	scaffold  *game.Scaffold
	draft     uint64
	tabErrors map[string]string

	continuation *game.WorldContinuation
	newcomers    []game.NewCharacter
	pending      *pendingSwitch

	notice      string
	noticeUntil time.Time
}

// Option configures an Engine.
type Option func(*Engine)

// WithConfig applies history window, notice lifetime and prefetch spacing.
func WithConfig(cfg *config.Config) Option {
	return func(e *Engine) {
		if cfg.HistoryWindow > 0 {
			e.historyWindow = cfg.HistoryWindow
		}
		e.noticeTTL = cfg.NoticeTTL()
		e.prefetch = newPrefetchLimiter(cfg.PrefetchDelay())
	}
}

// WithHistoryWindow sets how many recent messages each turn sends.
func WithHistoryWindow(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.historyWindow = n
		}
	}
}

// WithPrefetchDelay sets the spacing between creation-tab prefetches.
func WithPrefetchDelay(d time.Duration) Option {
	return func(e *Engine) { e.prefetch = newPrefetchLimiter(d) }
}

// WithLogger sets the engine logger.
func WithLogger(l *log.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithClock replaces time.Now (notice expiry, turn timing).
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// New creates an engine in CharacterCreationStart.
func New(narrator generation.Narrator, creator generation.Creator, repo *saves.Repository, opts ...Option) *Engine {
	def := config.DefaultConfig()
	e := &Engine{
		narrator:      narrator,
		creator:       creator,
		saves:         repo,
		logger:        log.Default(),
		now:           time.Now,
		historyWindow: def.HistoryWindow,
		noticeTTL:     def.NoticeTTL(),
		prefetch:      newPrefetchLimiter(def.PrefetchDelay()),
		sess:          NewSession(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func newPrefetchLimiter(d time.Duration) *rate.Limiter {
	if d <= 0 {
		return rate.NewLimiter(rate.Inf, 1)
	}
	return rate.NewLimiter(rate.Every(d), 1)
}

// State returns a deep copy of the session plus derived flags.
func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.stateLocked()
}

// Notice returns the transient save/load message, or "" once it expired.
func (e *Engine) Notice() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.noticeLocked()
}

// Reset abandons whatever is live and returns to character creation.
// It is the recovery path after a failed load and is legal from any phase,
// even while a request is in flight (its response will be discarded).
func (e *Engine) Reset() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.resetLocked(nil)
	return e.stateLocked()
}

func (e *Engine) stateLocked() State {
	st := State{
		Session:      e.sess.Clone(),
		Seq:          e.seq,
		CanUndo:      e.undo.Available() && !e.sess.IsLoading,
		Notice:       e.noticeLocked(),
		Scaffold:     game.CloneScaffold(e.scaffold),
		Continuation: game.CloneContinuation(e.continuation),
	}
	if len(e.tabErrors) > 0 {
		st.TabErrors = make(map[string]string, len(e.tabErrors))
		for k, v := range e.tabErrors {
			st.TabErrors[k] = v
		}
	}
	if len(e.newcomers) > 0 {
		st.Newcomers = append([]game.NewCharacter{}, e.newcomers...)
	}
	if e.pending != nil {
		st.SwitchCandidates = append([]Candidate{}, e.pending.candidates...)
	}
	return st
}

func (e *Engine) noticeLocked() string {
	if e.notice == "" || !e.now().Before(e.noticeUntil) {
		return ""
	}
	return e.notice
}

func (e *Engine) setNoticeLocked(msg string) {
	e.notice = msg
	e.noticeUntil = e.now().Add(e.noticeTTL)
}

// beginLocked marks a request in flight and returns its token.
func (e *Engine) beginLocked() uint64 {
	e.seq++
	e.sess.IsLoading = true
	e.sess.LastError = ""
	return e.seq
}

// staleLocked reports a response whose token is no longer current.
func (e *Engine) staleLocked(kind string, seq uint64) error {
	if seq == e.seq {
		return nil
	}
	e.logger.Printf("session: discarding stale %s response (token %d, current %d)", kind, seq, e.seq)
	metrics.RecordTurn(kind, metrics.OutcomeStale, 0)
	return errors.NewStaleResponse(e.seq, seq)
}

// failLocked records a collaborator failure on the session without
// touching phase or character.
func (e *Engine) failLocked(op string, err error) *errors.ForgeError {
	var fe *errors.ForgeError
	if !stderrors.As(err, &fe) {
		fe = errors.NewGenerationFailure(op, err)
	}
	e.sess.IsLoading = false
	e.sess.LastError = fe.Message
	e.sess.Messages = append(e.sess.Messages, game.Message{
		Speaker: game.SpeakerSystem,
		Text:    "The story falters: " + fe.Message,
	})
	e.logger.Printf("session: %s failed: %v", op, err)
	return fe
}

// resetLocked replaces the session with a fresh creation session carrying
// cont (nil for no continuity) and drops all transient state.
func (e *Engine) resetLocked(cont *game.WorldContinuation) {
	e.sess = NewSession()
	e.seq++
	e.undo.Clear()
	e.scaffold = nil
	e.draft++
	e.tabErrors = nil
	e.continuation = cont
	e.newcomers = nil
	e.pending = nil
}

// replaceLocked installs a loaded save as the live session.
func (e *Engine) replaceLocked(slot game.SaveData) {
	e.resetLocked(nil)
	e.sess = FromSave(slot)
}

// guardLocked checks the common preconditions of a story request.
func (e *Engine) guardLocked(op string, trigger game.Trigger) error {
	if e.sess.IsLoading {
		return errors.NewTurnInFlight()
	}
	if e.sess.Character == nil || !game.Allowed(e.sess.Phase, trigger) {
		return errors.NewInvalidTransition(op, string(e.sess.Phase))
	}
	return nil
}

func (e *Engine) rejectLocked(err error) (State, error) {
	return e.stateLocked(), err
}
