package storage

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/fkhayef/studysync/pkg/middleware"
	"github.com/fkhayef/studysync/pkg/response"
)

// ErrForbidden is returned by an Authorizer that refuses access
var ErrForbidden = errors.New("not allowed to modify this object")

// Authorizer decides whether userID may write or delete bucket/key
type Authorizer func(ctx context.Context, userID uuid.UUID, bucket, key string) error

// GroupScope only lets members of group <id> touch keys under "group-<id>/"
func GroupScope(requireMember func(ctx context.Context, groupID, userID uuid.UUID) error) Authorizer {
	return func(ctx context.Context, userID uuid.UUID, _ string, key string) error {
		prefix, _, ok := strings.Cut(key, "/")
		if !ok {
			return ErrForbidden
		}
		raw, ok := strings.CutPrefix(prefix, "group-")
		if !ok {
			return ErrForbidden
		}
		groupID, err := uuid.Parse(raw)
		if err != nil {
			return ErrForbidden
		}
		if err := requireMember(ctx, groupID, userID); err != nil {
			return ErrForbidden
		}
		return nil
	}
}

// UploadResponse is returned after a successful PUT
type UploadResponse struct {
	Key       string `json:"key"`
	Bucket    string `json:"bucket"`
	Size      int64  `json:"size"`
	PublicURL string `json:"public_url"`
}

// Handler serves /storage/v1/object
type Handler struct {
	store     ObjectStore
	authorize Authorizer
	baseURL   string
	maxBytes  int64
	logger    *zap.Logger
}

// NewHandler creates the object storage endpoints
func NewHandler(store ObjectStore, authorize Authorizer, baseURL string, maxBytes int64, logger *zap.Logger) *Handler {
	if maxBytes <= 0 {
		maxBytes = MaxObjectSize
	}
	return &Handler{store: store, authorize: authorize, baseURL: baseURL, maxBytes: maxBytes, logger: logger}
}

// PublicRoutes need no authentication
func (h *Handler) PublicRoutes() chi.Router {
	r := chi.NewRouter()
	r.Get("/{bucket}/*", h.Get)
	return r
}

// Routes require an authenticated caller
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Put("/{bucket}/*", h.Put)
	r.Delete("/{bucket}/*", h.Delete)
	return r
}

func objectRef(r *http.Request) (string, string) {
	return chi.URLParam(r, "bucket"), chi.URLParam(r, "*")
}

func (h *Handler) check(w http.ResponseWriter, r *http.Request) (string, string, bool) {
	bucket, key := objectRef(r)
	if _, err := CleanKey(bucket, key); err != nil {
		response.BadRequest(w, err.Error())
		return "", "", false
	}
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		response.Unauthorized(w, "Authentication required")
		return "", "", false
	}
	if h.authorize != nil {
		if err := h.authorize(r.Context(), userID, bucket, key); err != nil {
			response.Forbidden(w, err.Error())
			return "", "", false
		}
	}
	return bucket, key, true
}

// Put handles PUT /storage/v1/object/{bucket}/{key}
// @Summary      Upload an object
// @Description  Objects are never overwritten unless x-upsert is true
// @Tags         storage
// @Security     BearerAuth
// @Accept       octet-stream
// @Produce      json
// @Param        bucket path string true "Bucket"
// @Param        key path string true "Object key"
// @Param        x-upsert header bool false "Allow overwriting"
// @Success      201 {object} response.APIResponse{data=UploadResponse}
// @Failure      409 {object} response.APIResponse
// @Failure      413 {object} response.APIResponse
// @Failure      415 {object} response.APIResponse
// @Router       /storage/v1/object/{bucket}/{key} [put]
func (h *Handler) Put(w http.ResponseWriter, r *http.Request) {
	bucket, key, ok := h.check(w, r)
	if !ok {
		return
	}

	contentType := r.Header.Get("Content-Type")
	if !Allowed(contentType) {
		response.Error(w, http.StatusUnsupportedMediaType, response.CodeUnsupportedMT, "Unsupported content type "+contentType)
		return
	}
	if r.ContentLength > h.maxBytes {
		response.Error(w, http.StatusRequestEntityTooLarge, response.CodeTooLarge, "Object exceeds the upload limit")
		return
	}

	opts := PutOptions{
		ContentType:  normalizeType(contentType),
		CacheControl: r.Header.Get("Cache-Control"),
		NoOverwrite:  r.Header.Get("x-upsert") != "true",
	}
	obj, err := h.store.Put(r.Context(), bucket, key, http.MaxBytesReader(w, r.Body, h.maxBytes), opts)
	if err != nil {
		var tooLarge *http.MaxBytesError
		switch {
		case errors.Is(err, ErrObjectExists):
			response.ConflictCode(w, response.CodeDuplicate, "The resource already exists")
		case errors.As(err, &tooLarge):
			response.Error(w, http.StatusRequestEntityTooLarge, response.CodeTooLarge, "Object exceeds the upload limit")
		case errors.Is(err, ErrInvalidKey):
			response.BadRequest(w, err.Error())
		default:
			h.logger.Error("object upload failed", zap.String("bucket", bucket), zap.String("key", key), zap.Error(err))
			response.InternalError(w, "Failed to store object")
		}
		return
	}

	response.JSON(w, http.StatusCreated, UploadResponse{
		Key:       obj.Key,
		Bucket:    obj.Bucket,
		Size:      obj.Size,
		PublicURL: PublicURL(h.baseURL, obj.Bucket, obj.Key),
	})
}

// Get handles GET /storage/v1/object/public/{bucket}/{key}
// @Summary      Download a public object
// @Tags         storage
// @Param        bucket path string true "Bucket"
// @Param        key path string true "Object key"
// @Success      200
// @Failure      404 {object} response.APIResponse
// @Router       /storage/v1/object/public/{bucket}/{key} [get]
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	bucket, key := objectRef(r)

	body, obj, err := h.store.Open(r.Context(), bucket, key)
	if err != nil {
		switch {
		case errors.Is(err, ErrObjectNotFound):
			response.NotFound(w, err.Error())
		case errors.Is(err, ErrInvalidKey):
			response.BadRequest(w, err.Error())
		default:
			response.InternalError(w, "Failed to read object")
		}
		return
	}
	defer body.Close()

	if obj.ContentType != "" {
		w.Header().Set("Content-Type", obj.ContentType)
	}
	if obj.CacheControl != "" {
		if _, err := strconv.Atoi(obj.CacheControl); err == nil {
			w.Header().Set("Cache-Control", "max-age="+obj.CacheControl)
		} else {
			w.Header().Set("Cache-Control", obj.CacheControl)
		}
	}
	w.Header().Set("Content-Length", strconv.FormatInt(obj.Size, 10))
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, body); err != nil {
		h.logger.Debug("object download interrupted", zap.Error(err))
	}
}

// Delete handles DELETE /storage/v1/object/{bucket}/{key}
// @Summary      Delete an object
// @Tags         storage
// @Security     BearerAuth
// @Param        bucket path string true "Bucket"
// @Param        key path string true "Object key"
// @Success      204
// @Failure      404 {object} response.APIResponse
// @Router       /storage/v1/object/{bucket}/{key} [delete]
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	bucket, key, ok := h.check(w, r)
	if !ok {
		return
	}

	if err := h.store.Delete(r.Context(), bucket, key); err != nil {
		if errors.Is(err, ErrObjectNotFound) {
			response.NotFound(w, err.Error())
			return
		}
		response.InternalError(w, "Failed to delete object")
		return
	}
	response.NoContent(w)
}
