package web

import (
	"net/http"
	"sort"
	"strings"

	"github.com/roninrabbat-maker/adventure-forge/internal/errors"
	"github.com/roninrabbat-maker/adventure-forge/internal/game"
	"github.com/roninrabbat-maker/adventure-forge/internal/saves"
)

// Handlers contains HTTP route handlers for the save viewer.
type Handlers struct {
	saves    *saves.Repository
	renderer *Renderer
}

// HandleList handles GET /saves, newest first, optionally narrowed to one
// world with ?theme=.
func (h *Handlers) HandleList(w http.ResponseWriter, r *http.Request) {
	theme := strings.TrimSpace(r.URL.Query().Get("theme"))

	slots, err := h.saves.List(r.Context())
	var warning string
	if err != nil {
		if !errors.Is(err, errors.ErrStorageCorrupted) {
			h.renderer.renderError(w, r, err)
			return
		}
		warning = errors.As(err).Message
	}

	rows := make([]SaveRow, 0, len(slots))
	for _, s := range slots {
		if s.Character == nil {
			continue
		}
		if theme != "" && !game.SameTheme(s.Character.Theme, theme) {
			continue
		}
		rows = append(rows, toRow(s))
	}
	sort.SliceStable(rows, func(i, j int) bool { return rows[i].LastSaved.After(rows[j].LastSaved) })

	if wantsJSON(r) {
		renderJSON(w, http.StatusOK, map[string]any{
			"saves":   rows,
			"count":   len(rows),
			"warning": warning,
		})
		return
	}

	h.renderer.renderPage(w, r, "list", ListPageData{
		PageData: h.renderer.page("Saves", "saves"),
		Items:    rows,
		Theme:    theme,
		Warning:  warning,
	})
}

// HandleDetail handles GET /saves/{id}: the save rendered as a transcript.
func (h *Handlers) HandleDetail(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		h.renderer.renderError(w, r, errors.NewInvalidRequest("save ID is required"))
		return
	}

	slot, err := h.find(r, id)
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	h.renderer.renderPage(w, r, "detail", DetailPageData{
		PageData:     h.renderer.page(slot.Character.Name, "saves"),
		Slot:         slot,
		RenderedHTML: renderTranscript(slot),
	})
}

// HandleDelete handles DELETE /saves/{id} and the form fallback
// POST /saves/{id}/delete.
func (h *Handlers) HandleDelete(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		h.renderer.renderError(w, r, errors.NewInvalidRequest("save ID is required"))
		return
	}

	if err := h.saves.Delete(r.Context(), id); err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	if isHTMX(r) {
		w.Header().Set("HX-Redirect", "/saves")
		w.WriteHeader(http.StatusOK)
		return
	}

	if wantsJSON(r) {
		renderJSON(w, http.StatusOK, map[string]any{
			"deleted": true,
			"id":      id,
		})
		return
	}

	http.Redirect(w, r, "/saves", http.StatusSeeOther)
}

// HandleQuarantine handles GET /quarantine.
func (h *Handlers) HandleQuarantine(w http.ResponseWriter, r *http.Request) {
	keys, err := h.saves.Quarantined(r.Context())
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	if wantsJSON(r) {
		renderJSON(w, http.StatusOK, map[string]any{"keys": keys})
		return
	}

	h.renderer.renderPage(w, r, "quarantine", QuarantinePageData{
		PageData: h.renderer.page("Quarantine", "quarantine"),
		Keys:     keys,
	})
}

// find reads the collection fresh so saves written by another process show
// up without a restart.
func (h *Handlers) find(r *http.Request, id string) (game.SaveData, error) {
	slots, err := h.saves.List(r.Context())
	if err != nil && !errors.Is(err, errors.ErrStorageCorrupted) {
		return game.SaveData{}, err
	}
	for _, s := range slots {
		if s.ID == id && s.Character != nil {
			return s, nil
		}
	}
	return game.SaveData{}, errors.NewSaveNotFound(id)
}

func toRow(s game.SaveData) SaveRow {
	return SaveRow{
		ID:        s.ID,
		Name:      s.Character.Name,
		Theme:     s.Character.Theme,
		Phase:     s.Phase,
		Health:    s.Character.Health,
		MaxHealth: s.Character.MaxHealth,
		Messages:  len(s.Messages),
		LastSaved: s.LastSaved,
	}
}
