// Package storage is the object store behind /storage/v1: buckets of
// immutable-by-default objects addressed by slash separated keys.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"gocloud.dev/blob"
	"gocloud.dev/blob/fileblob"
	"gocloud.dev/gcerrors"
)

// Common errors
var (
	ErrObjectExists   = errors.New("object already exists")
	ErrObjectNotFound = errors.New("object not found")
	ErrInvalidKey     = errors.New("invalid bucket or object key")
)

// PutOptions control how an object is written
type PutOptions struct {
	ContentType  string
	CacheControl string
	NoOverwrite  bool
}

// Object describes a stored object
type Object struct {
	Bucket       string    `json:"bucket"`
	Key          string    `json:"key"`
	Size         int64     `json:"size"`
	ContentType  string    `json:"content_type"`
	CacheControl string    `json:"cache_control,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

// ObjectStore is implemented by storage backends
type ObjectStore interface {
	Put(ctx context.Context, bucket, key string, body io.Reader, opts PutOptions) (*Object, error)
	Open(ctx context.Context, bucket, key string) (io.ReadCloser, *Object, error)
	Delete(ctx context.Context, bucket, key string) error
}

// DiskStore keeps objects in a fileblob bucket under a root directory.
// Buckets are top level prefixes of that bucket.
type DiskStore struct {
	bucket *blob.Bucket
}

// NewDiskStore creates root if needed
func NewDiskStore(root string) (*DiskStore, error) {
	b, err := fileblob.OpenBucket(root, &fileblob.Options{CreateDir: true})
	if err != nil {
		return nil, fmt.Errorf("failed to open storage root: %w", err)
	}
	return &DiskStore{bucket: b}, nil
}

// Close releases the underlying bucket
func (s *DiskStore) Close() error {
	return s.bucket.Close()
}

// fileblob keeps its own metadata next to each object under this suffix
const attrsSuffix = ".attrs"

// CleanKey validates a bucket/key pair and returns the normalized key
func CleanKey(bucket, key string) (string, error) {
	if bucket == "" || strings.ContainsAny(bucket, `/\`) || bucket == "." || bucket == ".." {
		return "", ErrInvalidKey
	}
	if key == "" || strings.HasPrefix(key, "/") || strings.Contains(key, `\`) || strings.HasSuffix(key, attrsSuffix) {
		return "", ErrInvalidKey
	}
	cleaned := path.Clean(key)
	if cleaned != key || cleaned == "." || strings.HasPrefix(cleaned, "../") || cleaned == ".." {
		return "", ErrInvalidKey
	}
	return cleaned, nil
}

func blobKey(bucket, key string) (string, error) {
	cleaned, err := CleanKey(bucket, key)
	if err != nil {
		return "", err
	}
	return bucket + "/" + cleaned, nil
}

func isExists(err error) bool {
	switch gcerrors.Code(err) {
	case gcerrors.AlreadyExists, gcerrors.FailedPrecondition:
		return true
	}
	return false
}

// Put writes body. With NoOverwrite an existing object yields ErrObjectExists
// and is left untouched.
func (s *DiskStore) Put(ctx context.Context, bucket, key string, body io.Reader, opts PutOptions) (*Object, error) {
	k, err := blobKey(bucket, key)
	if err != nil {
		return nil, err
	}

	wctx, cancel := context.WithCancel(ctx)
	defer cancel()
	w, err := s.bucket.NewWriter(wctx, k, &blob.WriterOptions{
		ContentType:  opts.ContentType,
		CacheControl: opts.CacheControl,
		IfNotExist:   opts.NoOverwrite,
	})
	if err != nil {
		if isExists(err) {
			return nil, ErrObjectExists
		}
		return nil, fmt.Errorf("failed to create object: %w", err)
	}

	n, copyErr := io.Copy(w, body)
	if copyErr != nil {
		// Closing after cancel discards the partial object.
		cancel()
		_ = w.Close()
		return nil, fmt.Errorf("failed to write object: %w", copyErr)
	}
	if err := w.Close(); err != nil {
		if isExists(err) {
			return nil, ErrObjectExists
		}
		return nil, fmt.Errorf("failed to write object: %w", err)
	}

	return &Object{
		Bucket:       bucket,
		Key:          key,
		Size:         n,
		ContentType:  opts.ContentType,
		CacheControl: opts.CacheControl,
		CreatedAt:    time.Now().UTC(),
	}, nil
}

// Open returns the object's content and metadata
func (s *DiskStore) Open(ctx context.Context, bucket, key string) (io.ReadCloser, *Object, error) {
	k, err := blobKey(bucket, key)
	if err != nil {
		return nil, nil, err
	}

	attrs, err := s.bucket.Attributes(ctx, k)
	if err != nil {
		if gcerrors.Code(err) == gcerrors.NotFound {
			return nil, nil, ErrObjectNotFound
		}
		return nil, nil, fmt.Errorf("failed to stat object: %w", err)
	}
	r, err := s.bucket.NewReader(ctx, k, nil)
	if err != nil {
		if gcerrors.Code(err) == gcerrors.NotFound {
			return nil, nil, ErrObjectNotFound
		}
		return nil, nil, fmt.Errorf("failed to open object: %w", err)
	}

	created := attrs.CreateTime
	if created.IsZero() {
		created = attrs.ModTime
	}
	return r, &Object{
		Bucket:       bucket,
		Key:          key,
		Size:         attrs.Size,
		ContentType:  attrs.ContentType,
		CacheControl: attrs.CacheControl,
		CreatedAt:    created.UTC(),
	}, nil
}

// Delete removes an object
func (s *DiskStore) Delete(ctx context.Context, bucket, key string) error {
	k, err := blobKey(bucket, key)
	if err != nil {
		return err
	}
	if err := s.bucket.Delete(ctx, k); err != nil {
		if gcerrors.Code(err) == gcerrors.NotFound {
			return ErrObjectNotFound
		}
		return fmt.Errorf("failed to delete object: %w", err)
	}
	return nil
}
