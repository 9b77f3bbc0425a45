package studysync

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/fkhayef/studysync/internal/feed"
	"github.com/fkhayef/studysync/internal/livestate"
	"github.com/fkhayef/studysync/internal/resource"
	"github.com/fkhayef/studysync/internal/storage"
)

func openResources(t *testing.T, b *backend, groupID uuid.UUID) (*ResourceView, *observer.ObservedLogs, *fakeFeed) {
	t.Helper()
	core, logs := observer.New(zap.WarnLevel)
	f := newFakeFeed()
	v := NewResourceView(b, f, NewProfiles(b), groupID, Hooks[SharedResource]{}, zap.New(core))
	require.NoError(t, v.Open(context.Background()))
	t.Cleanup(func() { v.Close() })
	return v, logs, f
}

func validUpload() *Upload {
	return &Upload{Title: "Notes", ContentType: "application/pdf", Size: 4, Body: pdf(4)}
}

func TestValidateUpload(t *testing.T) {
	tests := []struct {
		name   string
		modify func(u *Upload)
		field  string
	}{
		{"ok", func(*Upload) {}, ""},
		{"no title", func(u *Upload) { u.Title = " " }, "title"},
		{"empty file", func(u *Upload) { u.Size = 0 }, "file"},
		{"too large", func(u *Upload) { u.Size = storage.MaxObjectSize + 1 }, "file"},
		{"at limit", func(u *Upload) { u.Size = storage.MaxObjectSize }, ""},
		{"bad type", func(u *Upload) { u.ContentType = "application/x-msdownload" }, "file"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			u := validUpload()
			tt.modify(u)
			err := ValidateUpload(u)
			if tt.field == "" {
				assert.NoError(t, err)
				return
			}
			var vf *livestate.ValidationFailure
			require.True(t, errors.As(err, &vf))
			assert.Equal(t, tt.field, vf.Field)
		})
	}
}

func TestUploadStoresThenRegisters(t *testing.T) {
	b := newBackend()
	b.me = b.addProfile("Ana")
	groupID := uuid.New()
	v, logs, _ := openResources(t, b, groupID)

	res, err := v.Upload(context.Background(), validUpload())
	require.NoError(t, err)
	assert.Equal(t, "Ana", res.UploaderName)
	assert.Equal(t, "application/pdf", res.FileType)

	bucket, key, err := storage.ParsePublicURL(res.FileURL)
	require.NoError(t, err)
	assert.Equal(t, Bucket, bucket)
	assert.True(t, strings.HasPrefix(key, fmt.Sprintf("group-%s/", groupID)), key)
	assert.True(t, strings.HasSuffix(key, ".pdf"), key)

	obj, ok := b.objects[bucket+"/"+key]
	require.True(t, ok)
	assert.Equal(t, ResourceCacheControl, obj.opts.CacheControl)
	assert.True(t, obj.opts.NoOverwrite)
	assert.Equal(t, []byte("xxxx"), obj.data)

	_, ok = v.Get(res.ID)
	assert.True(t, ok)
	assert.Zero(t, logs.Len())
}

func TestUploadRejectedBeforeAnyCall(t *testing.T) {
	b := newBackend()
	v, _, _ := openResources(t, b, uuid.New())

	u := validUpload()
	u.Size = storage.MaxObjectSize + 1
	_, err := v.Upload(context.Background(), u)

	var vf *livestate.ValidationFailure
	require.True(t, errors.As(err, &vf))
	assert.Zero(t, b.objectCount())
	assert.Empty(t, b.resources)
}

func TestUploadStorageFailureCreatesNoRow(t *testing.T) {
	b := newBackend()
	b.failPut = true
	v, _, _ := openResources(t, b, uuid.New())

	_, err := v.Upload(context.Background(), validUpload())

	var wf *livestate.WriteFailure
	require.True(t, errors.As(err, &wf))
	assert.Equal(t, "upload file", wf.Op)
	assert.ErrorIs(t, err, errBackend)
	assert.Empty(t, b.resources)
	assert.Empty(t, v.Items())
}

func TestUploadRegisterFailureLogsLeakedObject(t *testing.T) {
	b := newBackend()
	b.failCreate = true
	v, logs, _ := openResources(t, b, uuid.New())

	_, err := v.Upload(context.Background(), validUpload())

	var wf *livestate.WriteFailure
	require.True(t, errors.As(err, &wf))
	assert.Equal(t, "register resource", wf.Op)
	assert.Equal(t, 1, b.objectCount())
	assert.Empty(t, v.Items())

	leaked := logs.FilterMessage("stored object has no resource row").All()
	require.Len(t, leaked, 1)
	fields := leaked[0].ContextMap()
	assert.Equal(t, Bucket, fields["bucket"])
	assert.NotEmpty(t, fields["key"])
}

func TestDeleteRemovesRowAndObject(t *testing.T) {
	b := newBackend()
	b.me = b.addProfile("Ana")
	v, _, _ := openResources(t, b, uuid.New())
	res, err := v.Upload(context.Background(), validUpload())
	require.NoError(t, err)

	require.NoError(t, v.Delete(context.Background(), res.ID))
	assert.Empty(t, v.Items())
	assert.Empty(t, b.resources)
	assert.Zero(t, b.objectCount())
}

func TestDeleteReportsPartialFailure(t *testing.T) {
	b := newBackend()
	b.me = b.addProfile("Ana")
	v, logs, _ := openResources(t, b, uuid.New())
	res, err := v.Upload(context.Background(), validUpload())
	require.NoError(t, err)

	b.failDeleteObject = true
	err = v.Delete(context.Background(), res.ID)

	var pf *livestate.PartialFailure
	require.True(t, errors.As(err, &pf))
	assert.Len(t, pf.Errs, 1)
	assert.ErrorIs(t, err, errBackend)
	assert.Empty(t, v.Items())
	assert.Equal(t, 1, b.objectCount())
	assert.Equal(t, 1, logs.FilterMessage("stored object not deleted").Len())
}

func TestDeleteKeepsResourceWhenRowSurvives(t *testing.T) {
	b := newBackend()
	b.me = b.addProfile("Ana")
	v, _, _ := openResources(t, b, uuid.New())
	res, err := v.Upload(context.Background(), validUpload())
	require.NoError(t, err)

	b.failDeleteRow = true
	err = v.Delete(context.Background(), res.ID)

	var pf *livestate.PartialFailure
	require.True(t, errors.As(err, &pf))
	_, ok := v.Get(res.ID)
	assert.True(t, ok)
	assert.Zero(t, b.objectCount())
}

func TestDeleteUnknownResource(t *testing.T) {
	v, _, _ := openResources(t, newBackend(), uuid.New())

	err := v.Delete(context.Background(), uuid.New())
	var vf *livestate.ValidationFailure
	assert.True(t, errors.As(err, &vf))
}

func TestResourcesFollowFeedDeletes(t *testing.T) {
	b := newBackend()
	uploader := b.addProfile("Ana")
	groupID := uuid.New()
	row := &resource.Resource{ID: uuid.New(), GroupID: groupID, UserID: uploader, Title: "Old", CreatedAt: time.Now()}
	b.resources[row.ID] = row
	v, _, f := openResources(t, b, groupID)
	require.Len(t, v.Items(), 1)
	assert.Equal(t, "Ana", v.Items()[0].UploaderName)

	f.publish(rowEvent("resources", feed.EventDelete, row))

	require.Eventually(t, func() bool { return len(v.Items()) == 0 }, time.Second, 5*time.Millisecond)
}
