package profile

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/fkhayef/studysync/pkg/middleware"
	"github.com/fkhayef/studysync/pkg/response"
)

// Handler handles HTTP requests for profile operations
type Handler struct {
	service *Service
}

// NewHandler creates a new profile handler with service dependency injected
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// Routes returns the router for profile endpoints
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Get("/", h.List)
	r.Get("/me", h.GetMe)
	r.Put("/me", h.UpdateMe)
	r.Get("/{id}", h.GetByID)

	return r
}

// GetByID handles GET /profiles/{id}
// @Summary      Get profile by user ID
// @Tags         profiles
// @Security     BearerAuth
// @Produce      json
// @Param        id path string true "User ID"
// @Success      200 {object} response.APIResponse{data=Profile}
// @Failure      400 {object} response.APIResponse
// @Failure      404 {object} response.APIResponse
// @Router       /profiles/{id} [get]
func (h *Handler) GetByID(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		response.BadRequest(w, "Invalid user ID")
		return
	}
	h.writeProfile(w, r, id)
}

// GetMe handles GET /profiles/me
// @Summary      Get the caller's profile
// @Tags         profiles
// @Security     BearerAuth
// @Produce      json
// @Success      200 {object} response.APIResponse{data=Profile}
// @Router       /profiles/me [get]
func (h *Handler) GetMe(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		response.Unauthorized(w, "Authentication required")
		return
	}
	h.writeProfile(w, r, userID)
}

func (h *Handler) writeProfile(w http.ResponseWriter, r *http.Request, id uuid.UUID) {
	p, err := h.service.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, ErrProfileNotFound) {
			response.NotFound(w, err.Error())
			return
		}
		response.InternalError(w, "Failed to get profile")
		return
	}
	response.JSON(w, http.StatusOK, p)
}

// List handles GET /profiles?ids=a,b,c
// @Summary      Get several profiles
// @Tags         profiles
// @Security     BearerAuth
// @Produce      json
// @Param        ids query string true "Comma separated user IDs"
// @Success      200 {object} response.APIResponse{data=[]Profile}
// @Failure      400 {object} response.APIResponse
// @Router       /profiles [get]
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	var ids []uuid.UUID
	for _, raw := range strings.Split(r.URL.Query().Get("ids"), ",") {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		id, err := uuid.Parse(raw)
		if err != nil {
			response.BadRequest(w, "Invalid user ID in ids")
			return
		}
		ids = append(ids, id)
	}

	profiles, err := h.service.GetMany(r.Context(), ids)
	if err != nil {
		response.InternalError(w, "Failed to list profiles")
		return
	}
	response.JSON(w, http.StatusOK, profiles)
}

// UpdateMe handles PUT /profiles/me
// @Summary      Update the caller's profile
// @Tags         profiles
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        request body UpdateProfileRequest true "Profile update request"
// @Success      200 {object} response.APIResponse{data=Profile}
// @Failure      400 {object} response.APIResponse
// @Failure      422 {object} response.APIResponse
// @Router       /profiles/me [put]
func (h *Handler) UpdateMe(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		response.Unauthorized(w, "Authentication required")
		return
	}

	var req UpdateProfileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "Invalid request body")
		return
	}

	p, err := h.service.Update(r.Context(), userID, &req)
	if err != nil {
		switch {
		case errors.Is(err, ErrInvalidName):
			response.ValidationFailed(w, err.Error())
		case errors.Is(err, ErrProfileNotFound):
			response.NotFound(w, err.Error())
		default:
			response.InternalError(w, "Failed to update profile")
		}
		return
	}
	response.JSON(w, http.StatusOK, p)
}
