package client

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/fkhayef/studysync/internal/storage"
)

// PutOptions control an object upload
type PutOptions struct {
	ContentType  string
	CacheControl string
	NoOverwrite  bool
}

// PutObject uploads body to bucket/key and returns its public URL
func (c *Client) PutObject(ctx context.Context, bucket, key string, body io.Reader, size int64, opts PutOptions) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, c.objectURL(bucket, key), body)
	if err != nil {
		return "", fmt.Errorf("failed to build upload request: %w", err)
	}
	if size >= 0 {
		req.ContentLength = size
	}
	req.Header.Set("Content-Type", opts.ContentType)
	if opts.CacheControl != "" {
		req.Header.Set("Cache-Control", opts.CacheControl)
	}
	if !opts.NoOverwrite {
		req.Header.Set("x-upsert", "true")
	}

	var out storage.UploadResponse
	if _, err := c.send(req, &out); err != nil {
		return "", err
	}
	if out.PublicURL == "" {
		return c.PublicURL(bucket, key), nil
	}
	return out.PublicURL, nil
}

// DeleteObject removes bucket/key
func (c *Client) DeleteObject(ctx context.Context, bucket, key string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, c.objectURL(bucket, key), nil)
	if err != nil {
		return fmt.Errorf("failed to build delete request: %w", err)
	}
	_, err = c.send(req, nil)
	return err
}

// PublicURL is the unauthenticated address of bucket/key
func (c *Client) PublicURL(bucket, key string) string {
	return storage.PublicURL(c.baseURL, bucket, key)
}

func (c *Client) objectURL(bucket, key string) string {
	return c.baseURL + "/storage/v1/object/" + bucket + "/" + key
}
