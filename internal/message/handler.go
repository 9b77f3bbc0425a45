package message

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/fkhayef/studysync/internal/group"
	"github.com/fkhayef/studysync/pkg/middleware"
	"github.com/fkhayef/studysync/pkg/response"
)

// Handler handles HTTP requests for group chat
type Handler struct {
	service *Service
}

// NewHandler creates a new message handler
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// Routes returns the router for message endpoints, mounted under
// /groups/{groupID}/messages
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Get("/", h.List)
	r.Post("/", h.Send)

	return r
}

func writeError(w http.ResponseWriter, err error, fallback string) {
	switch {
	case errors.Is(err, ErrEmptyMessage), errors.Is(err, ErrMessageTooLong):
		response.ValidationFailed(w, err.Error())
	case errors.Is(err, group.ErrNotMember):
		response.Forbidden(w, err.Error())
	case errors.Is(err, group.ErrGroupNotFound):
		response.NotFound(w, err.Error())
	default:
		response.InternalError(w, fallback)
	}
}

// List handles GET /groups/{groupID}/messages
// @Summary      List group messages
// @Description  Messages in ascending creation order; limit keeps the most recent ones
// @Tags         messages
// @Security     BearerAuth
// @Produce      json
// @Param        groupID path string true "Group ID"
// @Param        limit query int false "Most recent N messages"
// @Success      200 {object} response.APIResponse{data=[]Message}
// @Failure      403 {object} response.APIResponse
// @Router       /groups/{groupID}/messages [get]
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
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	messages, err := h.service.List(r.Context(), groupID, userID, limit)
	if err != nil {
		writeError(w, err, "Failed to list messages")
		return
	}
	response.JSON(w, http.StatusOK, messages)
}

// Send handles POST /groups/{groupID}/messages
// @Summary      Send a message
// @Tags         messages
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        groupID path string true "Group ID"
// @Param        request body SendMessageRequest true "Message"
// @Success      201 {object} response.APIResponse{data=Message}
// @Failure      403 {object} response.APIResponse
// @Failure      422 {object} response.APIResponse
// @Router       /groups/{groupID}/messages [post]
func (h *Handler) Send(w http.ResponseWriter, r *http.Request) {
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

	var req SendMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "Invalid request body")
		return
	}

	m, err := h.service.Send(r.Context(), groupID, userID, req.Content)
	if err != nil {
		writeError(w, err, "Failed to send message")
		return
	}
	response.JSON(w, http.StatusCreated, m)
}
