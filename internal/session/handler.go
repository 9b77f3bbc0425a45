package session

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

// Handler handles HTTP requests for study sessions
type Handler struct {
	service *Service
}

// NewHandler creates a new session handler
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// GroupRoutes is mounted under /groups/{groupID}/sessions
func (h *Handler) GroupRoutes() chi.Router {
	r := chi.NewRouter()

	r.Get("/", h.List)
	r.Post("/", h.Create)

	return r
}

// Routes is mounted under /sessions
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Get("/{id}", h.GetByID)
	r.Delete("/{id}", h.Delete)
	r.Get("/{id}/attendees", h.Attendees)
	r.Put("/{id}/attendance", h.SetAttendance)

	return r
}

func writeError(w http.ResponseWriter, err error, fallback string) {
	switch {
	case errors.Is(err, ErrInvalidSession), errors.Is(err, ErrInvalidStatus):
		response.ValidationFailed(w, err.Error())
	case errors.Is(err, ErrSessionNotFound), errors.Is(err, group.ErrGroupNotFound):
		response.NotFound(w, err.Error())
	case errors.Is(err, ErrNotHost), errors.Is(err, group.ErrNotMember):
		response.Forbidden(w, err.Error())
	default:
		response.InternalError(w, fallback)
	}
}

func ids(w http.ResponseWriter, r *http.Request, param string) (uuid.UUID, uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, param))
	if err != nil {
		response.BadRequest(w, "Invalid ID")
		return uuid.Nil, uuid.Nil, false
	}
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		response.Unauthorized(w, "Authentication required")
		return uuid.Nil, uuid.Nil, false
	}
	return id, userID, true
}

// List handles GET /groups/{groupID}/sessions
// @Summary      List group sessions
// @Tags         sessions
// @Security     BearerAuth
// @Produce      json
// @Param        groupID path string true "Group ID"
// @Param        upcoming query bool false "Only sessions that have not ended"
// @Success      200 {object} response.APIResponse{data=[]Session}
// @Failure      403 {object} response.APIResponse
// @Router       /groups/{groupID}/sessions [get]
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	groupID, userID, ok := ids(w, r, "groupID")
	if !ok {
		return
	}

	sessions, err := h.service.ListByGroup(r.Context(), groupID, userID, r.URL.Query().Get("upcoming") == "true")
	if err != nil {
		writeError(w, err, "Failed to list sessions")
		return
	}
	response.JSON(w, http.StatusOK, sessions)
}

// Create handles POST /groups/{groupID}/sessions
// @Summary      Schedule a session
// @Tags         sessions
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        groupID path string true "Group ID"
// @Param        request body CreateSessionRequest true "Session"
// @Success      201 {object} response.APIResponse{data=Session}
// @Failure      403 {object} response.APIResponse
// @Failure      422 {object} response.APIResponse
// @Router       /groups/{groupID}/sessions [post]
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	groupID, userID, ok := ids(w, r, "groupID")
	if !ok {
		return
	}

	var req CreateSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "Invalid request body")
		return
	}

	session, err := h.service.Create(r.Context(), groupID, userID, &req)
	if err != nil {
		writeError(w, err, "Failed to create session")
		return
	}
	response.JSON(w, http.StatusCreated, session)
}

// GetByID handles GET /sessions/{id}
// @Summary      Get a session
// @Tags         sessions
// @Security     BearerAuth
// @Produce      json
// @Param        id path string true "Session ID"
// @Success      200 {object} response.APIResponse{data=Session}
// @Failure      404 {object} response.APIResponse
// @Router       /sessions/{id} [get]
func (h *Handler) GetByID(w http.ResponseWriter, r *http.Request) {
	id, userID, ok := ids(w, r, "id")
	if !ok {
		return
	}

	session, err := h.service.GetByID(r.Context(), id, userID)
	if err != nil {
		writeError(w, err, "Failed to get session")
		return
	}
	response.JSON(w, http.StatusOK, session)
}

// Delete handles DELETE /sessions/{id}
// @Summary      Cancel a session
// @Tags         sessions
// @Security     BearerAuth
// @Param        id path string true "Session ID"
// @Success      204
// @Failure      403 {object} response.APIResponse
// @Router       /sessions/{id} [delete]
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	id, userID, ok := ids(w, r, "id")
	if !ok {
		return
	}

	if err := h.service.Delete(r.Context(), id, userID); err != nil {
		writeError(w, err, "Failed to delete session")
		return
	}
	response.NoContent(w)
}

// Attendees handles GET /sessions/{id}/attendees
// @Summary      List RSVPs
// @Tags         sessions
// @Security     BearerAuth
// @Produce      json
// @Param        id path string true "Session ID"
// @Success      200 {object} response.APIResponse{data=[]Attendance}
// @Router       /sessions/{id}/attendees [get]
func (h *Handler) Attendees(w http.ResponseWriter, r *http.Request) {
	id, userID, ok := ids(w, r, "id")
	if !ok {
		return
	}

	attendees, err := h.service.Attendees(r.Context(), id, userID)
	if err != nil {
		writeError(w, err, "Failed to list attendees")
		return
	}
	response.JSON(w, http.StatusOK, attendees)
}

// SetAttendance handles PUT /sessions/{id}/attendance
// @Summary      Upsert my RSVP
// @Description  Insert or update the caller's attendance row for the session
// @Tags         sessions
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        id path string true "Session ID"
// @Param        request body AttendanceRequest true "RSVP"
// @Success      200 {object} response.APIResponse{data=Attendance}
// @Failure      403 {object} response.APIResponse
// @Failure      422 {object} response.APIResponse
// @Router       /sessions/{id}/attendance [put]
func (h *Handler) SetAttendance(w http.ResponseWriter, r *http.Request) {
	id, userID, ok := ids(w, r, "id")
	if !ok {
		return
	}

	var req AttendanceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "Invalid request body")
		return
	}

	attendance, err := h.service.SetAttendance(r.Context(), id, userID, req.Status)
	if err != nil {
		writeError(w, err, "Failed to set attendance")
		return
	}
	response.JSON(w, http.StatusOK, attendance)
}
