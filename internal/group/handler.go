package group

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/fkhayef/studysync/pkg/middleware"
	"github.com/fkhayef/studysync/pkg/response"
)

// Handler handles HTTP requests for group operations
type Handler struct {
	service *Service
}

// NewHandler creates a new group handler
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// Routes returns the router for group endpoints
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Post("/", h.Create)
	r.Get("/", h.Search)
	r.Get("/mine", h.ListMine)
	r.Get("/{id}", h.GetByID)
	r.Put("/{id}", h.Update)
	r.Delete("/{id}", h.Delete)

	// Membership
	r.Post("/{id}/join", h.Join)
	r.Post("/{id}/leave", h.Leave)
	r.Get("/{id}/members", h.GetMembers)
	r.Get("/{id}/member-count", h.MemberCount)

	return r
}

// writeError maps service errors to responses
func writeError(w http.ResponseWriter, err error, fallback string) {
	switch {
	case errors.Is(err, ErrGroupNotFound), errors.Is(err, ErrMemberNotFound):
		response.NotFound(w, err.Error())
	case errors.Is(err, ErrInvalidGroup):
		response.ValidationFailed(w, err.Error())
	case errors.Is(err, ErrNotMember), errors.Is(err, ErrNotAuthorized), errors.Is(err, ErrInvalidInvitation):
		response.Forbidden(w, err.Error())
	case errors.Is(err, ErrMemberAlreadyExists):
		response.ConflictCode(w, response.CodeDuplicate, err.Error())
	case errors.Is(err, ErrGroupFull):
		response.ConflictCode(w, response.CodeGroupFull, err.Error())
	default:
		response.InternalError(w, fallback)
	}
}

func groupID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		response.BadRequest(w, "Invalid group ID")
		return uuid.Nil, false
	}
	return id, true
}

func pagination(r *http.Request) (int, int) {
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	perPage, _ := strconv.Atoi(r.URL.Query().Get("per_page"))
	return clampPage(page, perPage)
}

func listResponse(w http.ResponseWriter, groups []*Group, total, page, perPage int) {
	groupResponses := make([]*GroupResponse, len(groups))
	for i, g := range groups {
		groupResponses[i] = g.ToResponse(false)
	}

	meta := &response.Meta{
		Page:       page,
		PerPage:    perPage,
		Total:      total,
		TotalPages: (total + perPage - 1) / perPage,
	}
	response.JSONWithMeta(w, http.StatusOK, groupResponses, meta)
}

// Create handles POST /groups
// @Summary      Create a new group
// @Description  Create a new study group and add the creator as admin
// @Tags         groups
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        request body CreateGroupRequest true "Group creation request"
// @Success      201 {object} response.APIResponse{data=GroupResponse}
// @Failure      400 {object} response.APIResponse
// @Failure      422 {object} response.APIResponse
// @Router       /groups [post]
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	creatorID, ok := middleware.GetUserID(r.Context())
	if !ok {
		response.Unauthorized(w, "Authentication required")
		return
	}

	var req CreateGroupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "Invalid request body")
		return
	}

	group, err := h.service.Create(r.Context(), creatorID, &req)
	if err != nil {
		writeError(w, err, "Failed to create group")
		return
	}

	response.JSON(w, http.StatusCreated, group.ToResponse(true))
}

// Search handles GET /groups
// @Summary      Search public groups
// @Description  Case-insensitive match on name, description and subject tags
// @Tags         groups
// @Security     BearerAuth
// @Produce      json
// @Param        q query string false "Search term"
// @Param        page query int false "Page number" default(1)
// @Param        per_page query int false "Items per page" default(20)
// @Success      200 {object} response.APIResponse{data=[]GroupResponse}
// @Router       /groups [get]
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	page, perPage := pagination(r)

	groups, total, err := h.service.Search(r.Context(), r.URL.Query().Get("q"), page, perPage)
	if err != nil {
		response.InternalError(w, "Failed to search groups")
		return
	}
	listResponse(w, groups, total, page, perPage)
}

// ListMine handles GET /groups/mine
// @Summary      List my groups
// @Tags         groups
// @Security     BearerAuth
// @Produce      json
// @Success      200 {object} response.APIResponse{data=[]GroupResponse}
// @Router       /groups/mine [get]
func (h *Handler) ListMine(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		response.Unauthorized(w, "Authentication required")
		return
	}
	page, perPage := pagination(r)

	groups, total, err := h.service.ListByUserID(r.Context(), userID, page, perPage)
	if err != nil {
		response.InternalError(w, "Failed to list groups")
		return
	}
	listResponse(w, groups, total, page, perPage)
}

// GetByID handles GET /groups/{id}
// @Summary      Get group by ID
// @Description  Get a group with its members; the invitation code is shown to admins
// @Tags         groups
// @Security     BearerAuth
// @Produce      json
// @Param        id path string true "Group ID"
// @Success      200 {object} response.APIResponse{data=GroupResponse}
// @Failure      404 {object} response.APIResponse
// @Router       /groups/{id} [get]
func (h *Handler) GetByID(w http.ResponseWriter, r *http.Request) {
	id, ok := groupID(w, r)
	if !ok {
		return
	}
	userID, _ := middleware.GetUserID(r.Context())

	group, members, err := h.service.GetByIDWithMembers(r.Context(), id)
	if err != nil {
		writeError(w, err, "Failed to get group")
		return
	}

	isAdmin := false
	resp := group.ToResponse(false)
	resp.Members = make([]*MemberResponse, len(members))
	for i, m := range members {
		resp.Members[i] = m.ToResponse()
		if m.UserID == userID && m.Role == MemberRoleAdmin {
			isAdmin = true
		}
	}
	if isAdmin {
		resp.InvitationCode = group.InvitationCode
	}
	count := len(members)
	resp.MemberCount = &count

	response.JSON(w, http.StatusOK, resp)
}

// Update handles PUT /groups/{id}
// @Summary      Update a group
// @Tags         groups
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        id path string true "Group ID"
// @Param        request body UpdateGroupRequest true "Group update request"
// @Success      200 {object} response.APIResponse{data=GroupResponse}
// @Failure      403 {object} response.APIResponse
// @Failure      404 {object} response.APIResponse
// @Router       /groups/{id} [put]
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := groupID(w, r)
	if !ok {
		return
	}
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		response.Unauthorized(w, "Authentication required")
		return
	}

	var req UpdateGroupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "Invalid request body")
		return
	}

	group, err := h.service.Update(r.Context(), id, userID, &req)
	if err != nil {
		writeError(w, err, "Failed to update group")
		return
	}

	response.JSON(w, http.StatusOK, group.ToResponse(true))
}

// Delete handles DELETE /groups/{id}
// @Summary      Delete a group
// @Tags         groups
// @Security     BearerAuth
// @Param        id path string true "Group ID"
// @Success      204
// @Failure      403 {object} response.APIResponse
// @Router       /groups/{id} [delete]
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := groupID(w, r)
	if !ok {
		return
	}
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		response.Unauthorized(w, "Authentication required")
		return
	}

	if err := h.service.Delete(r.Context(), id, userID); err != nil {
		writeError(w, err, "Failed to delete group")
		return
	}

	response.NoContent(w)
}

// Join handles POST /groups/{id}/join
// @Summary      Join a group
// @Description  Join a public group, or a private one with its invitation code
// @Tags         groups
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        id path string true "Group ID"
// @Param        request body JoinGroupRequest false "Invitation code"
// @Success      201 {object} response.APIResponse{data=MemberResponse}
// @Failure      403 {object} response.APIResponse
// @Failure      404 {object} response.APIResponse
// @Failure      409 {object} response.APIResponse
// @Router       /groups/{id}/join [post]
func (h *Handler) Join(w http.ResponseWriter, r *http.Request) {
	id, ok := groupID(w, r)
	if !ok {
		return
	}
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		response.Unauthorized(w, "Authentication required")
		return
	}

	var req JoinGroupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		response.BadRequest(w, "Invalid request body")
		return
	}

	member, err := h.service.Join(r.Context(), id, userID, req.InvitationCode)
	if err != nil {
		writeError(w, err, "Failed to join group")
		return
	}

	response.JSON(w, http.StatusCreated, member.ToResponse())
}

// Leave handles POST /groups/{id}/leave
// @Summary      Leave a group
// @Tags         groups
// @Security     BearerAuth
// @Param        id path string true "Group ID"
// @Success      204
// @Failure      403 {object} response.APIResponse
// @Router       /groups/{id}/leave [post]
func (h *Handler) Leave(w http.ResponseWriter, r *http.Request) {
	id, ok := groupID(w, r)
	if !ok {
		return
	}
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		response.Unauthorized(w, "Authentication required")
		return
	}

	if err := h.service.Leave(r.Context(), id, userID); err != nil {
		writeError(w, err, "Failed to leave group")
		return
	}

	response.NoContent(w)
}

// GetMembers handles GET /groups/{id}/members
// @Summary      List group members
// @Tags         groups
// @Security     BearerAuth
// @Produce      json
// @Param        id path string true "Group ID"
// @Success      200 {object} response.APIResponse{data=[]MemberResponse}
// @Failure      404 {object} response.APIResponse
// @Router       /groups/{id}/members [get]
func (h *Handler) GetMembers(w http.ResponseWriter, r *http.Request) {
	id, ok := groupID(w, r)
	if !ok {
		return
	}

	members, err := h.service.GetMembers(r.Context(), id)
	if err != nil {
		writeError(w, err, "Failed to get members")
		return
	}

	memberResponses := make([]*MemberResponse, len(members))
	for i, m := range members {
		memberResponses[i] = m.ToResponse()
	}

	response.JSON(w, http.StatusOK, memberResponses)
}

// MemberCount handles GET /groups/{id}/member-count
// @Summary      Count group members
// @Tags         groups
// @Security     BearerAuth
// @Produce      json
// @Param        id path string true "Group ID"
// @Success      200 {object} response.APIResponse
// @Router       /groups/{id}/member-count [get]
func (h *Handler) MemberCount(w http.ResponseWriter, r *http.Request) {
	id, ok := groupID(w, r)
	if !ok {
		return
	}

	count, err := h.service.MemberCount(r.Context(), id)
	if err != nil {
		writeError(w, err, "Failed to count members")
		return
	}

	response.JSON(w, http.StatusOK, map[string]int{"member_count": count})
}
