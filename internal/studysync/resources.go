package studysync

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/fkhayef/studysync/internal/client"
	"github.com/fkhayef/studysync/internal/feed"
	"github.com/fkhayef/studysync/internal/livestate"
	"github.com/fkhayef/studysync/internal/resource"
	"github.com/fkhayef/studysync/internal/storage"
)

// ResourceCacheControl is sent with every upload, in seconds
const ResourceCacheControl = "3600"

// SharedResource is a resource with its uploader's display name
type SharedResource struct {
	resource.Resource
	UploaderName string `json:"uploader_name,omitempty"`
}

// Upload describes a file to share
type Upload struct {
	Title       string
	Description *string
	Tags        []string
	ContentType string
	Size        int64
	Body        io.Reader
}

// ResourceView is one group's shared files, newest first
type ResourceView struct {
	*livestate.View[uuid.UUID, SharedResource]
	api      ResourceAPI
	groupID  uuid.UUID
	profiles *Profiles
	logger   *zap.Logger
	newKey   func(ext string) string
}

// NewResourceView follows the resources of groupID
func NewResourceView(api ResourceAPI, f livestate.Feed, profiles *Profiles, groupID uuid.UUID, hooks Hooks[SharedResource], logger *zap.Logger) *ResourceView {
	rv := &ResourceView{api: api, groupID: groupID, profiles: profiles, logger: logger.Named("resources")}
	rv.newKey = func(ext string) string {
		return fmt.Sprintf("group-%s/%s.%s", groupID, uuid.New(), ext)
	}

	load := func(ctx context.Context) ([]SharedResource, error) {
		rows, err := api.ListResources(ctx, groupID)
		if err != nil {
			return nil, err
		}
		uploaders := make([]uuid.UUID, len(rows))
		for i, r := range rows {
			uploaders[i] = r.UserID
		}
		byID, err := profiles.Resolve(ctx, uploaders)
		if err != nil {
			return nil, err
		}
		out := make([]SharedResource, len(rows))
		for i, r := range rows {
			out[i] = SharedResource{Resource: *r}
			if prof := byID[r.UserID]; prof != nil {
				out[i].UploaderName = prof.Name
			}
		}
		return out, nil
	}

	rv.View = livestate.NewView(f, livestate.Config[uuid.UUID, SharedResource]{
		Name:  "resources",
		Key:   feed.Key{Table: "resources", Event: feed.EventAll, Filter: feed.Eq("group_id", groupID)},
		Load:  load,
		KeyOf: func(r SharedResource) uuid.UUID { return r.ID },
		Less: func(a, b SharedResource) bool {
			return a.CreatedAt.After(b.CreatedAt)
		},
		Hydrate: rv.hydrate,
		Carry: func(held, fresh SharedResource) SharedResource {
			fresh.UploaderName = held.UploaderName
			return fresh
		},
		Policy:    livestate.OptimisticPolicy{},
		OnChange:  hooks.OnChange,
		OnWarning: hooks.OnWarning,
		Logger:    rv.logger,
	})
	return rv
}

func (v *ResourceView) hydrate(ctx context.Context, r SharedResource) (SharedResource, error) {
	prof, err := v.profiles.Get(ctx, r.UserID)
	if err != nil {
		return r, err
	}
	r.UploaderName = prof.Name
	return r, nil
}

// ValidateUpload checks size and type before anything is sent
func ValidateUpload(u *Upload) error {
	if strings.TrimSpace(u.Title) == "" {
		return &livestate.ValidationFailure{Field: "title", Reason: "title is required"}
	}
	if u.Size <= 0 {
		return &livestate.ValidationFailure{Field: "file", Reason: "file is empty"}
	}
	if u.Size > storage.MaxObjectSize {
		return &livestate.ValidationFailure{Field: "file", Reason: fmt.Sprintf("%d bytes exceeds the %d byte limit", u.Size, storage.MaxObjectSize)}
	}
	if !storage.Allowed(u.ContentType) {
		return &livestate.ValidationFailure{Field: "file", Reason: fmt.Sprintf("unsupported file type %q", u.ContentType)}
	}
	return nil
}

// Upload stores the file, then registers it as a resource. If registering
// fails the stored object stays behind and is logged as leaked.
func (v *ResourceView) Upload(ctx context.Context, u *Upload) (*SharedResource, error) {
	if err := ValidateUpload(u); err != nil {
		return nil, err
	}
	ext, _ := storage.Extension(u.ContentType)
	key := v.newKey(ext)

	url, err := v.api.PutObject(ctx, Bucket, key, u.Body, u.Size, client.PutOptions{
		ContentType:  u.ContentType,
		CacheControl: ResourceCacheControl,
		NoOverwrite:  true,
	})
	if err != nil {
		return nil, &livestate.WriteFailure{Op: "upload file", Err: err}
	}

	res, err := v.api.CreateResource(ctx, v.groupID, &resource.CreateResourceRequest{
		Title:       strings.TrimSpace(u.Title),
		Description: u.Description,
		FileURL:     url,
		FileType:    u.ContentType,
		Tags:        u.Tags,
	})
	if err != nil {
		v.logger.Warn("stored object has no resource row",
			zap.String("bucket", Bucket),
			zap.String("key", key),
			zap.Error(err))
		return nil, &livestate.WriteFailure{Op: "register resource", Err: err}
	}

	out, err := v.hydrate(ctx, SharedResource{Resource: *res})
	if err == nil {
		v.Merge(out)
	}
	return &out, nil
}

// Delete removes the resource row, then its stored object. Both are
// attempted; the resource leaves the view as soon as its row is gone.
func (v *ResourceView) Delete(ctx context.Context, id uuid.UUID) error {
	current, ok := v.Get(id)
	if !ok {
		return &livestate.ValidationFailure{Field: "resource", Reason: "not in this group"}
	}

	var errs []error
	if err := v.api.DeleteResource(ctx, id); err != nil {
		errs = append(errs, fmt.Errorf("delete resource row: %w", err))
	} else {
		v.Remove(id)
	}

	bucket, key, err := storage.ParsePublicURL(current.FileURL)
	if err == nil {
		err = v.api.DeleteObject(ctx, bucket, key)
	}
	if err != nil {
		v.logger.Warn("stored object not deleted", zap.String("file_url", current.FileURL), zap.Error(err))
		errs = append(errs, fmt.Errorf("delete stored object: %w", err))
	}

	if len(errs) > 0 {
		return &livestate.PartialFailure{Op: "delete resource", Errs: errs}
	}
	return nil
}
