package server

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"

	"github.com/desertthunder/anilistx/internal/models"
	"github.com/desertthunder/anilistx/internal/repositories"
	"github.com/desertthunder/anilistx/internal/shared"
)

// ReviewStore persists reviews.
type ReviewStore interface {
	Create(ctx context.Context, review *models.Review) error
	Get(ctx context.Context, id string) (*models.Review, error)
	FindByUserAndAnime(ctx context.Context, userID string, animeID int) (*models.Review, error)
	Update(ctx context.Context, review *models.Review) error
	Delete(ctx context.Context, id string) error
	List(ctx context.Context, filter models.ReviewFilter) ([]*models.Review, error)
}

var _ ReviewStore = (*repositories.ReviewRepository)(nil)

// ReviewsHandler serves /api/reviews.
//
// Authentication is checked per method rather than by [RequireAuth] so that listing stays public
// and a DELETE without an id is rejected before the caller is identified.
type ReviewsHandler struct {
	store  ReviewStore
	logger *log.Logger
}

func NewReviewsHandler(store ReviewStore, logger *log.Logger) *ReviewsHandler {
	return &ReviewsHandler{store: store, logger: logger}
}

// Mount implements [Handler].
func (h *ReviewsHandler) Mount(r chi.Router) {
	r.Get("/api/reviews", h.list)
	r.Post("/api/reviews", h.create)
	r.Put("/api/reviews", h.update)
	r.Delete("/api/reviews", h.delete)
}

func (h *ReviewsHandler) list(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := models.ReviewFilter{ReviewID: q.Get("reviewId"), UserID: q.Get("userId")}
	if v := q.Get("animeId"); v != "" {
		id, err := strconv.Atoi(v)
		if err != nil || id <= 0 {
			respondError(w, http.StatusBadRequest, "Invalid animeId")
			return
		}
		filter.AnimeID = id
	}
	if filter.Empty() {
		respondError(w, http.StatusBadRequest, "Missing required parameters")
		return
	}

	reviews, err := h.store.List(r.Context(), filter)
	if err != nil {
		h.logger.Error("failed to list reviews", "error", err)
		respondError(w, http.StatusInternalServerError, "Failed to fetch reviews")
		return
	}
	respond(w, http.StatusOK, map[string]any{"reviews": reviews})
}

func (h *ReviewsHandler) create(w http.ResponseWriter, r *http.Request) {
	user, ok := UserFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	var in models.ReviewInput
	if err := decodeJSON(w, r, &in); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request")
		return
	}
	if in.MissingRequired() {
		respondError(w, http.StatusBadRequest, "Missing required fields")
		return
	}

	if existing, err := h.store.FindByUserAndAnime(r.Context(), user.ID, *in.AnimeID); err == nil {
		respondDuplicate(w, existing.ID)
		return
	} else if !errors.Is(err, shared.ErrNotFound) {
		h.logger.Error("failed to check existing review", "user", user.ID, "anime", *in.AnimeID, "error", err)
		respondError(w, http.StatusInternalServerError, "Failed to create review")
		return
	}

	review := &models.Review{UserID: user.ID, AnimeID: *in.AnimeID}
	in.Apply(review)

	if err := h.store.Create(r.Context(), review); err != nil {
		var dup *repositories.DuplicateReviewError
		switch {
		case errors.As(err, &dup):
			respondDuplicate(w, dup.ExistingID)
		case errors.Is(err, shared.ErrInvalidInput):
			respondError(w, http.StatusBadRequest, err.Error())
		default:
			h.logger.Error("failed to create review", "user", user.ID, "error", err)
			respondError(w, http.StatusInternalServerError, "Failed to create review")
		}
		return
	}
	respond(w, http.StatusCreated, map[string]any{"review": review})
}

func (h *ReviewsHandler) update(w http.ResponseWriter, r *http.Request) {
	user, ok := UserFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	var in models.ReviewInput
	if err := decodeJSON(w, r, &in); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request")
		return
	}
	if in.ID == "" {
		respondError(w, http.StatusBadRequest, "Review ID is required")
		return
	}

	review, status := h.owned(r.Context(), user, in.ID)
	if status != 0 {
		h.respondOwnership(w, status, "Failed to update review")
		return
	}

	in.Apply(review)
	if err := h.store.Update(r.Context(), review); err != nil {
		switch {
		case errors.Is(err, shared.ErrInvalidInput):
			respondError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, shared.ErrNotFound):
			respondError(w, http.StatusNotFound, "Review not found")
		default:
			h.logger.Error("failed to update review", "review", in.ID, "error", err)
			respondError(w, http.StatusInternalServerError, "Failed to update review")
		}
		return
	}
	respond(w, http.StatusOK, map[string]any{"review": review})
}

func (h *ReviewsHandler) delete(w http.ResponseWriter, r *http.Request) {
	id := r.URL.Query().Get("id")
	if id == "" {
		respondError(w, http.StatusBadRequest, "Review ID is required")
		return
	}

	user, ok := UserFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	if _, status := h.owned(r.Context(), user, id); status != 0 {
		h.respondOwnership(w, status, "Failed to delete review")
		return
	}

	if err := h.store.Delete(r.Context(), id); err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			respondError(w, http.StatusNotFound, "Review not found")
			return
		}
		h.logger.Error("failed to delete review", "review", id, "error", err)
		respondError(w, http.StatusInternalServerError, "Failed to delete review")
		return
	}
	respond(w, http.StatusOK, map[string]any{"success": true})
}

// owned loads a review and checks the caller wrote it. A non-zero status means the check failed.
func (h *ReviewsHandler) owned(ctx context.Context, user *User, id string) (*models.Review, int) {
	review, err := h.store.Get(ctx, id)
	switch {
	case errors.Is(err, shared.ErrNotFound):
		return nil, http.StatusNotFound
	case err != nil:
		h.logger.Error("failed to load review", "review", id, "error", err)
		return nil, http.StatusInternalServerError
	case review.UserID != user.ID:
		return nil, http.StatusForbidden
	}
	return review, 0
}

func (h *ReviewsHandler) respondOwnership(w http.ResponseWriter, status int, failure string) {
	switch status {
	case http.StatusNotFound:
		respondError(w, status, "Review not found")
	case http.StatusForbidden:
		respondError(w, status, "Unauthorized")
	default:
		respondError(w, status, failure)
	}
}

func respondDuplicate(w http.ResponseWriter, existingID string) {
	respond(w, http.StatusConflict, errorBody{
		"error":    "You have already reviewed this anime",
		"reviewId": existingID,
	})
}
