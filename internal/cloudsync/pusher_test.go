package cloudsync

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/scriptureforge/offline/internal/common"
	"github.com/scriptureforge/offline/internal/cryptox"
	"github.com/scriptureforge/offline/internal/logging"
	"github.com/scriptureforge/offline/internal/models"
	"github.com/scriptureforge/offline/internal/repositories/metadata"
	"github.com/scriptureforge/offline/internal/services"
	"github.com/scriptureforge/offline/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeObjects struct {
	mu      sync.Mutex
	objects map[string][]byte
	failPut bool
}

func newFakeObjects() *fakeObjects {
	return &fakeObjects{objects: map[string][]byte{}}
}

func (f *fakeObjects) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if f.failPut {
		return nil, errors.New("access denied")
	}
	body, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.mu.Lock()
	f.objects[aws.ToString(in.Bucket)+"/"+aws.ToString(in.Key)] = body
	f.mu.Unlock()
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeObjects) DeleteObject(_ context.Context, in *s3.DeleteObjectInput, _ ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	f.mu.Lock()
	delete(f.objects, aws.ToString(in.Bucket)+"/"+aws.ToString(in.Key))
	f.mu.Unlock()
	return &s3.DeleteObjectOutput{}, nil
}

type fixture struct {
	objects *fakeObjects
	notes   services.AnnotationService
	meta    *metadata.SQLiteRepository
	pusher  *Pusher
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db, err := store.Open(context.Background(), store.MemoryPath)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	f := &fixture{
		objects: newFakeObjects(),
		notes:   services.NewAnnotationService(db, logging.Nop()),
		meta:    metadata.NewSQLiteRepository(db.SQL()),
	}
	f.pusher = NewPusher(f.objects, "scripture", f.notes, f.meta, logging.Nop())
	return f
}

func TestPush_UploadsSealedPendingAndMarksSynced(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	id, err := f.notes.StoreUserContent(ctx, models.ContentTypeNote, "John 3:16", map[string]any{"text": "so loved"})
	require.NoError(t, err)

	rep, err := f.pusher.Push(ctx, "u1", []byte("pass"))
	require.NoError(t, err)
	assert.Equal(t, Report{Uploaded: 1}, rep)

	salt, err := f.meta.Get(ctx, "sync_salt:u1")
	require.NoError(t, err)
	require.Len(t, salt, cryptox.SaltSize)
	assert.Equal(t, salt, f.objects.objects["scripture/users/u1/sync-salt"])

	sealed, ok := f.objects.objects["scripture/"+ObjectKey("u1", id)]
	require.True(t, ok)
	assert.False(t, strings.Contains(string(sealed), "so loved"))

	var got models.UserContent
	require.NoError(t, cryptox.OpenJSON(sealed, cryptox.DeriveKey([]byte("pass"), salt), &got))
	assert.Equal(t, id, got.ID)
	assert.Equal(t, "so loved", got.Data["text"])

	pending, err := f.notes.PendingUserContent(ctx)
	require.NoError(t, err)
	assert.Empty(t, pending)

	rep, err = f.pusher.Push(ctx, "u1", []byte("pass"))
	require.NoError(t, err)
	assert.Equal(t, Report{}, rep)

	again, err := f.meta.Get(ctx, "sync_salt:u1")
	require.NoError(t, err)
	assert.Equal(t, salt, again, "salt is created once")
}

func TestPush_PropagatesDeletes(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	id, err := f.notes.StoreUserContent(ctx, models.ContentTypeBookmark, "Ps 23:1", nil)
	require.NoError(t, err)
	_, err = f.pusher.Push(ctx, "u1", []byte("pass"))
	require.NoError(t, err)

	require.NoError(t, f.notes.DeleteUserContent(ctx, id))

	rep, err := f.pusher.Push(ctx, "u1", []byte("pass"))
	require.NoError(t, err)
	assert.Equal(t, Report{Deleted: 1}, rep)
	assert.NotContains(t, f.objects.objects, "scripture/"+ObjectKey("u1", id))

	ts, err := f.notes.Tombstones(ctx)
	require.NoError(t, err)
	assert.Empty(t, ts)
}

func TestPush_DeletesOnlyFromTheSyncingUsersNamespace(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	id, err := f.notes.StoreUserContent(ctx, models.ContentTypeNote, "Ps 23:1", nil)
	require.NoError(t, err)
	_, err = f.pusher.Push(ctx, "u1", []byte("pass"))
	require.NoError(t, err)
	require.NoError(t, f.notes.DeleteUserContent(ctx, id))

	rep, err := f.pusher.Push(ctx, "u2", []byte("other"))
	require.NoError(t, err)
	assert.Equal(t, Report{}, rep)
	assert.Contains(t, f.objects.objects, "scripture/"+ObjectKey("u1", id))

	ts, err := f.notes.Tombstones(ctx)
	require.NoError(t, err)
	require.Len(t, ts, 1)
	assert.Equal(t, "u1", ts[0].UserID)

	rep, err = f.pusher.Push(ctx, "u1", []byte("pass"))
	require.NoError(t, err)
	assert.Equal(t, Report{Deleted: 1}, rep)
	assert.NotContains(t, f.objects.objects, "scripture/"+ObjectKey("u1", id))

	ts, err = f.notes.Tombstones(ctx)
	require.NoError(t, err)
	assert.Empty(t, ts)
}

func TestPush_Preconditions(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.pusher.Push(ctx, "", []byte("pass"))
	require.ErrorIs(t, err, common.ErrUnauthorized)

	unconfigured := NewPusher(nil, "", f.notes, f.meta, logging.Nop())
	_, err = unconfigured.Push(ctx, "u1", []byte("pass"))
	require.ErrorIs(t, err, common.ErrSyncNotConfigured)
}

func TestPush_UploadFailureKeepsRecordPending(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.notes.StoreUserContent(ctx, models.ContentTypeNote, "Gen 1:1", nil)
	require.NoError(t, err)

	f.objects.failPut = true
	_, err = f.pusher.Push(ctx, "u1", []byte("pass"))
	require.ErrorContains(t, err, "upload salt")

	pending, err := f.notes.PendingUserContent(ctx)
	require.NoError(t, err)
	assert.Len(t, pending, 1)
}

func TestObjectKey_EscapesIDs(t *testing.T) {
	assert.Equal(t, "users/u1/user-content/note-John%203:16-1", ObjectKey("u1", "note-John 3:16-1"))
	assert.Equal(t, "users/a%2Fb/user-content/x", ObjectKey("a/b", "x"))
}

func TestNewS3Client_AppliesOptions(t *testing.T) {
	origLoad, origNew := loadDefaultAWSConfig, newS3ClientFromConfig
	t.Cleanup(func() {
		loadDefaultAWSConfig = origLoad
		newS3ClientFromConfig = origNew
	})

	loadDefaultAWSConfig = func(ctx context.Context, optFns ...func(*awsconfig.LoadOptions) error) (aws.Config, error) {
		var lo awsconfig.LoadOptions
		for _, fn := range optFns {
			require.NoError(t, fn(&lo))
		}
		assert.Equal(t, "us-east-1", lo.Region)
		assert.NotNil(t, lo.Credentials)
		return aws.Config{}, nil
	}

	var opts s3.Options
	newS3ClientFromConfig = func(cfg aws.Config, optFns ...func(*s3.Options)) *s3.Client {
		for _, fn := range optFns {
			fn(&opts)
		}
		return &s3.Client{}
	}

	c, err := NewS3Client(context.Background(), S3Config{
		Bucket:       "scripture",
		Region:       "us-east-1",
		BaseEndpoint: "http://127.0.0.1:9000",
		AccessKey:    "minioadmin",
		SecretKey:    "minioadmin",
	})
	require.NoError(t, err)
	require.NotNil(t, c)
	require.NotNil(t, opts.BaseEndpoint)
	assert.Equal(t, "http://127.0.0.1:9000", *opts.BaseEndpoint)
	assert.True(t, opts.UsePathStyle)
}

func TestNewS3Client_Errors(t *testing.T) {
	_, err := NewS3Client(context.Background(), S3Config{})
	require.ErrorIs(t, err, common.ErrSyncNotConfigured)

	origLoad := loadDefaultAWSConfig
	t.Cleanup(func() { loadDefaultAWSConfig = origLoad })
	loadDefaultAWSConfig = func(ctx context.Context, optFns ...func(*awsconfig.LoadOptions) error) (aws.Config, error) {
		return aws.Config{}, errors.New("no region")
	}

	_, err = NewS3Client(context.Background(), S3Config{Bucket: "b"})
	require.ErrorContains(t, err, "load aws config")
}
