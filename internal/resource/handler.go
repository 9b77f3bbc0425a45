package resource

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/fkhayef/studysync/internal/group"
	"github.com/fkhayef/studysync/pkg/middleware"
	"github.com/fkhayef/studysync/pkg/response"
)

// Handler handles HTTP requests for shared resources
type Handler struct {
	service *Service
}

// NewHandler creates a new resource handler
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// GroupRoutes is mounted under /groups/{groupID}/resources
func (h *Handler) GroupRoutes() chi.Router {
	r := chi.NewRouter()

	r.Get("/", h.List)
	r.Post("/", h.Create)

	return r
}

// Routes is mounted under /resources
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Delete("/{id}", h.Delete)

	return r
}

func writeError(w http.ResponseWriter, err error, fallback string) {
	switch {
	case errors.Is(err, ErrInvalidResource):
		response.ValidationFailed(w, err.Error())
	case errors.Is(err, ErrResourceNotFound), errors.Is(err, group.ErrGroupNotFound):
		response.NotFound(w, err.Error())
	case errors.Is(err, ErrNotAuthorized), errors.Is(err, group.ErrNotMember):
		response.Forbidden(w, err.Error())
	default:
		response.InternalError(w, fallback)
	}
}

// List handles GET /groups/{groupID}/resources
// @Summary      List group resources
// @Tags         resources
// @Security     BearerAuth
// @Produce      json
// @Param        groupID path string true "Group ID"
// @Success      200 {object} response.APIResponse{data=[]Resource}
// @Failure      403 {object} response.APIResponse
// @Router       /groups/{groupID}/resources [get]
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	groupID, err := uuid.Parse(chi.URLParam(r, "groupID"))
	if err != nil {
		response.BadRequest(w, "Invalid group ID")
		return
	}
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		response.Unauthorized(w, "Authentication required")
		return
	}

	resources, err := h.service.List(r.Context(), groupID, userID)
	if err != nil {
		writeError(w, err, "Failed to list resources")
		return
	}
	response.JSON(w, http.StatusOK, resources)
}

// Create handles POST /groups/{groupID}/resources
// @Summary      Register an uploaded resource
// @Tags         resources
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        groupID path string true "Group ID"
// @Param        request body CreateResourceRequest true "Resource metadata"
// @Success      201 {object} response.APIResponse{data=Resource}
// @Failure      403 {object} response.APIResponse
// @Failure      422 {object} response.APIResponse
// @Router       /groups/{groupID}/resources [post]
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	groupID, err := uuid.Parse(chi.URLParam(r, "groupID"))
	if err != nil {
		response.BadRequest(w, "Invalid group ID")
		return
	}
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		response.Unauthorized(w, "Authentication required")
		return
	}

	var req CreateResourceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "Invalid request body")
		return
	}

	res, err := h.service.Create(r.Context(), groupID, userID, &req)
	if err != nil {
		writeError(w, err, "Failed to create resource")
		return
	}
	response.JSON(w, http.StatusCreated, res)
}

// Delete handles DELETE /resources/{id}
// @Summary      Delete a resource row
// @Description  Removes the metadata; the client deletes the stored object separately
// @Tags         resources
// @Security     BearerAuth
// @Param        id path string true "Resource ID"
// @Success      204
// @Failure      403 {object} response.APIResponse
// @Failure      404 {object} response.APIResponse
// @Router       /resources/{id} [delete]
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		response.BadRequest(w, "Invalid resource ID")
		return
	}
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		response.Unauthorized(w, "Authentication required")
		return
	}

	if err := h.service.Delete(r.Context(), id, userID); err != nil {
		writeError(w, err, "Failed to delete resource")
		return
	}
	response.NoContent(w)
}
