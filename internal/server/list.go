package server

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"

	"github.com/desertthunder/anilistx/internal/models"
	"github.com/desertthunder/anilistx/internal/repositories"
	"github.com/desertthunder/anilistx/internal/shared"
	"github.com/desertthunder/anilistx/internal/tasks"
)

// ListStore persists watch-list entries, always scoped to one user.
type ListStore interface {
	Create(ctx context.Context, e *models.ListEntry) error
	GetByAnime(ctx context.Context, userID string, animeID int) (*models.ListEntry, error)
	Update(ctx context.Context, e *models.ListEntry) error
	Delete(ctx context.Context, userID string, animeID int) error
	List(ctx context.Context, userID string, status models.ListStatus) ([]*models.ListEntry, error)
	Stats(ctx context.Context, userID string) (*models.ListStats, error)
}

var _ ListStore = (*repositories.ListEntryRepository)(nil)

// Enricher attaches catalog metadata to list entries.
type Enricher interface {
	Enrich(ctx context.Context, progress chan<- tasks.ProgressUpdate, entries []*models.ListEntry, opts tasks.EnrichOpts) (*tasks.EnrichResult, error)
}

// enrichSummary reports how ?enrich=true resolved the entries.
type enrichSummary struct {
	FromSnapshot int   `json:"from_snapshot"`
	Fetched      int   `json:"fetched"`
	Stale        int   `json:"stale"`
	Failed       []int `json:"failed"`
}

const defaultEnrichTimeout = 5 * time.Second

// ListHandler serves the caller's watch-list under /api/list. Mount behind [RequireAuth].
type ListHandler struct {
	store         ListStore
	enricher      Enricher
	enrichTimeout time.Duration
	logger        *log.Logger
}

// NewListHandler creates a ListHandler. A nil enricher disables ?enrich=true.
//
// Enrichment stops after enrichTimeout (default 5s); ids left unresolved are reported as
// stale or failed.
func NewListHandler(store ListStore, enricher Enricher, enrichTimeout time.Duration, logger *log.Logger) *ListHandler {
	if enrichTimeout <= 0 {
		enrichTimeout = defaultEnrichTimeout
	}
	return &ListHandler{store: store, enricher: enricher, enrichTimeout: enrichTimeout, logger: logger}
}

// Mount implements [Handler].
func (h *ListHandler) Mount(r chi.Router) {
	r.Route("/api/list", func(r chi.Router) {
		r.Use(RequireAuth)
		r.Get("/", h.list)
		r.Post("/", h.create)
		r.Get("/stats", h.stats)
		r.Get("/{animeId}", h.get)
		r.Put("/{animeId}", h.update)
		r.Delete("/{animeId}", h.delete)
	})
}

func (h *ListHandler) list(w http.ResponseWriter, r *http.Request) {
	user, _ := UserFromContext(r.Context())
	q := r.URL.Query()

	status := models.ListStatus(q.Get("status"))
	entries, err := h.store.List(r.Context(), user.ID, status)
	if err != nil {
		respondErr(w, r, h.logger, err, "Failed to fetch list")
		return
	}

	body := map[string]any{"entries": entries}
	if enrich, _ := strconv.ParseBool(q.Get("enrich")); enrich && h.enricher != nil && len(entries) > 0 {
		ctx, cancel := context.WithTimeout(r.Context(), h.enrichTimeout)
		res, err := h.enricher.Enrich(ctx, nil, entries, tasks.EnrichOpts{})
		cancel()
		if err != nil {
			h.logger.Warn("list enrichment incomplete", "user", user.ID, "error", err)
		}
		if res != nil {
			summary := enrichSummary{
				FromSnapshot: res.FromSnapshot,
				Fetched:      res.Fetched,
				Stale:        res.Stale,
				Failed:       []int{},
			}
			for _, f := range res.Failed {
				summary.Failed = append(summary.Failed, f.AnimeID)
			}
			body["enrichment"] = summary
		}
	}
	respond(w, http.StatusOK, body)
}

func (h *ListHandler) stats(w http.ResponseWriter, r *http.Request) {
	user, _ := UserFromContext(r.Context())
	stats, err := h.store.Stats(r.Context(), user.ID)
	if err != nil {
		respondErr(w, r, h.logger, err, "Failed to fetch list stats")
		return
	}
	respond(w, http.StatusOK, map[string]any{"stats": stats})
}

func (h *ListHandler) get(w http.ResponseWriter, r *http.Request) {
	user, _ := UserFromContext(r.Context())
	animeID, err := pathID(r, "animeId")
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid anime id")
		return
	}

	entry, err := h.store.GetByAnime(r.Context(), user.ID, animeID)
	if err != nil {
		h.respondEntryErr(w, r, err, "Failed to fetch list entry")
		return
	}
	respond(w, http.StatusOK, map[string]any{"entry": entry})
}

func (h *ListHandler) create(w http.ResponseWriter, r *http.Request) {
	user, _ := UserFromContext(r.Context())

	var in models.ListEntryInput
	if err := decodeJSON(w, r, &in); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request")
		return
	}
	if in.AnimeID == nil || *in.AnimeID <= 0 {
		respondError(w, http.StatusBadRequest, "Missing required fields")
		return
	}

	entry := in.NewEntry(user.ID)
	if err := h.store.Create(r.Context(), entry); err != nil {
		if errors.Is(err, shared.ErrConflict) {
			respondError(w, http.StatusConflict, "Anime is already in your list")
			return
		}
		h.respondEntryErr(w, r, err, "Failed to add list entry")
		return
	}
	respond(w, http.StatusCreated, map[string]any{"entry": entry})
}

func (h *ListHandler) update(w http.ResponseWriter, r *http.Request) {
	user, _ := UserFromContext(r.Context())
	animeID, err := pathID(r, "animeId")
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid anime id")
		return
	}

	var in models.ListEntryInput
	if err := decodeJSON(w, r, &in); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request")
		return
	}

	entry, err := h.store.GetByAnime(r.Context(), user.ID, animeID)
	if err != nil {
		h.respondEntryErr(w, r, err, "Failed to update list entry")
		return
	}

	in.Apply(entry)
	if err := h.store.Update(r.Context(), entry); err != nil {
		h.respondEntryErr(w, r, err, "Failed to update list entry")
		return
	}
	respond(w, http.StatusOK, map[string]any{"entry": entry})
}

func (h *ListHandler) delete(w http.ResponseWriter, r *http.Request) {
	user, _ := UserFromContext(r.Context())
	animeID, err := pathID(r, "animeId")
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid anime id")
		return
	}

	if err := h.store.Delete(r.Context(), user.ID, animeID); err != nil {
		h.respondEntryErr(w, r, err, "Failed to delete list entry")
		return
	}
	respond(w, http.StatusOK, map[string]any{"success": true})
}

func (h *ListHandler) respondEntryErr(w http.ResponseWriter, r *http.Request, err error, fallback string) {
	switch {
	case errors.Is(err, shared.ErrNotFound):
		respondError(w, http.StatusNotFound, "List entry not found")
	case errors.Is(err, shared.ErrInvalidInput):
		respondError(w, http.StatusBadRequest, err.Error())
	default:
		respondErr(w, r, h.logger, err, fallback)
	}
}
