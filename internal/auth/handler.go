package auth

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/fkhayef/studysync/pkg/middleware"
	"github.com/fkhayef/studysync/pkg/response"
)

// Handler handles HTTP requests for authentication
type Handler struct {
	service *Service
}

// NewHandler creates a new auth handler with service dependency injected
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// Routes returns the router for auth endpoints
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Post("/signup", h.SignUp)
	r.Post("/signin", h.SignIn)
	r.Post("/signout", h.SignOut)
	r.Get("/session", h.Session)

	return r
}

// SignUp handles POST /auth/signup
// @Summary      Create an account
// @Description  Create an account and its default profile, returning an access token
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        request body SignUpRequest true "Sign-up request"
// @Success      201 {object} response.APIResponse{data=SessionResponse}
// @Failure      400 {object} response.APIResponse
// @Failure      409 {object} response.APIResponse
// @Failure      422 {object} response.APIResponse
// @Router       /auth/signup [post]
func (h *Handler) SignUp(w http.ResponseWriter, r *http.Request) {
	var req SignUpRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "Invalid request body")
		return
	}

	session, err := h.service.SignUp(r.Context(), &req)
	if err != nil {
		switch {
		case errors.Is(err, ErrInvalidSignUp):
			response.ValidationFailed(w, err.Error())
		case errors.Is(err, ErrEmailAlreadyInUse):
			response.Conflict(w, err.Error())
		default:
			response.InternalError(w, "Failed to sign up")
		}
		return
	}

	response.JSON(w, http.StatusCreated, session)
}

// SignIn handles POST /auth/signin
// @Summary      Sign in with email and password
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        request body SignInRequest true "Sign-in request"
// @Success      200 {object} response.APIResponse{data=SessionResponse}
// @Failure      400 {object} response.APIResponse
// @Failure      401 {object} response.APIResponse
// @Router       /auth/signin [post]
func (h *Handler) SignIn(w http.ResponseWriter, r *http.Request) {
	var req SignInRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "Invalid request body")
		return
	}

	session, err := h.service.SignIn(r.Context(), &req)
	if err != nil {
		if errors.Is(err, ErrInvalidCredentials) {
			response.Unauthorized(w, err.Error())
			return
		}
		response.InternalError(w, "Failed to sign in")
		return
	}

	response.JSON(w, http.StatusOK, session)
}

// SignOut handles POST /auth/signout
// @Summary      Revoke the current access token
// @Tags         auth
// @Security     BearerAuth
// @Success      204
// @Failure      401 {object} response.APIResponse
// @Router       /auth/signout [post]
func (h *Handler) SignOut(w http.ResponseWriter, r *http.Request) {
	token, ok := middleware.BearerToken(r)
	if !ok {
		response.Unauthorized(w, "Authorization header required")
		return
	}

	if err := h.service.SignOut(r.Context(), token); err != nil {
		if errors.Is(err, ErrInvalidToken) {
			response.Unauthorized(w, err.Error())
			return
		}
		response.InternalError(w, "Failed to sign out")
		return
	}

	response.NoContent(w)
}

// Session handles GET /auth/session
// @Summary      Describe the current session
// @Tags         auth
// @Security     BearerAuth
// @Produce      json
// @Success      200 {object} response.APIResponse{data=SessionResponse}
// @Failure      401 {object} response.APIResponse
// @Router       /auth/session [get]
func (h *Handler) Session(w http.ResponseWriter, r *http.Request) {
	token, ok := middleware.BearerToken(r)
	if !ok {
		response.Unauthorized(w, "Authorization header required")
		return
	}

	session, err := h.service.Session(r.Context(), token)
	if err != nil {
		if errors.Is(err, ErrInvalidToken) || errors.Is(err, ErrTokenRevoked) {
			response.Unauthorized(w, err.Error())
			return
		}
		response.InternalError(w, "Failed to load session")
		return
	}

	response.JSON(w, http.StatusOK, session)
}
