package server

import (
	"context"
	"errors"
	"net/http"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"

	"github.com/desertthunder/anilistx/internal/models"
	"github.com/desertthunder/anilistx/internal/repositories"
	"github.com/desertthunder/anilistx/internal/shared"
)

// ProfileStore persists user profiles keyed by auth user id.
type ProfileStore interface {
	Get(ctx context.Context, id string) (*models.Profile, error)
	Upsert(ctx context.Context, p *models.Profile) error
}

var _ ProfileStore = (*repositories.ProfileRepository)(nil)

type profileInput struct {
	Username    *string `json:"username"`
	DisplayName *string `json:"display_name"`
	AvatarURL   *string `json:"avatar_url"`
	Bio         *string `json:"bio"`
}

// ProfileHandler serves the caller's own profile.
type ProfileHandler struct {
	store  ProfileStore
	logger *log.Logger
}

func NewProfileHandler(store ProfileStore, logger *log.Logger) *ProfileHandler {
	return &ProfileHandler{store: store, logger: logger}
}

// Mount implements [Handler].
func (h *ProfileHandler) Mount(r chi.Router) {
	r.With(RequireAuth).Get("/api/profile", h.get)
	r.With(RequireAuth).Put("/api/profile", h.put)
}

func (h *ProfileHandler) get(w http.ResponseWriter, r *http.Request) {
	user, _ := UserFromContext(r.Context())
	profile, err := h.store.Get(r.Context(), user.ID)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			respondError(w, http.StatusNotFound, "Profile not found")
			return
		}
		respondErr(w, r, h.logger, err, "Failed to fetch profile")
		return
	}
	respond(w, http.StatusOK, map[string]any{"profile": profile})
}

// put creates the profile on first save and updates the given fields afterwards.
func (h *ProfileHandler) put(w http.ResponseWriter, r *http.Request) {
	user, _ := UserFromContext(r.Context())

	var in profileInput
	if err := decodeJSON(w, r, &in); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request")
		return
	}

	profile, err := h.store.Get(r.Context(), user.ID)
	switch {
	case errors.Is(err, shared.ErrNotFound):
		profile = &models.Profile{ID: user.ID}
	case err != nil:
		respondErr(w, r, h.logger, err, "Failed to update profile")
		return
	}

	if in.Username != nil {
		profile.Username = *in.Username
	}
	if in.DisplayName != nil {
		profile.DisplayName = in.DisplayName
	}
	if in.AvatarURL != nil {
		profile.AvatarURL = in.AvatarURL
	}
	if in.Bio != nil {
		profile.Bio = in.Bio
	}

	if err := h.store.Upsert(r.Context(), profile); err != nil {
		switch {
		case errors.Is(err, shared.ErrInvalidInput):
			respondError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, shared.ErrConflict):
			respondError(w, http.StatusConflict, "Username is already taken")
		default:
			respondErr(w, r, h.logger, err, "Failed to update profile")
		}
		return
	}
	respond(w, http.StatusOK, map[string]any{"profile": profile})
}
