package resource

import (
	"time"

	"github.com/google/uuid"
)

// Resource is a shared file registered to a group
type Resource struct {
	ID          uuid.UUID `json:"id"`
	GroupID     uuid.UUID `json:"group_id"`
	UserID      uuid.UUID `json:"user_id"`
	Title       string    `json:"title"`
	Description *string   `json:"description,omitempty"`
	FileURL     string    `json:"file_url"`
	FileType    string    `json:"file_type"`
	Tags        []string  `json:"tags"`
	CreatedAt   time.Time `json:"created_at"`
}

// CreateResourceRequest registers the metadata of an already uploaded object
type CreateResourceRequest struct {
	Title       string   `json:"title" validate:"required"`
	Description *string  `json:"description,omitempty"`
	FileURL     string   `json:"file_url" validate:"required,url"`
	FileType    string   `json:"file_type" validate:"required"`
	Tags        []string `json:"tags,omitempty"`
}
