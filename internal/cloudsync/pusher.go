// Package cloudsync pushes user annotations to an S3-compatible bucket.
//
// Annotations are only ever created or deleted, so a push is an event log:
// every record not yet synced is uploaded sealed under the user's sync key
// and marked synced, and every tombstone of that user becomes an object
// delete. The last push of a given id wins.
package cloudsync

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/url"
	"path"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/scriptureforge/offline/internal/common"
	"github.com/scriptureforge/offline/internal/cryptox"
	"github.com/scriptureforge/offline/internal/logging"
	"github.com/scriptureforge/offline/internal/models"
	"github.com/scriptureforge/offline/internal/repositories/metadata"
)

var ErrNoBucket = fmt.Errorf("%w: no bucket", common.ErrSyncNotConfigured)

// ObjectStore is the part of *s3.Client the pusher uses.
type ObjectStore interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	DeleteObject(ctx context.Context, in *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

// Annotations is the sync-facing side of the annotation store.
type Annotations interface {
	PendingUserContent(ctx context.Context) ([]models.UserContent, error)
	MarkSynced(ctx context.Context, id, userID string) error
	Tombstones(ctx context.Context) ([]models.Tombstone, error)
	DropTombstone(ctx context.Context, id string) error
}

type Report struct {
	Uploaded int
	Deleted  int
}

type Pusher struct {
	objects     ObjectStore
	bucket      string
	annotations Annotations
	meta        metadata.Repository
	logger      logging.Logger
}

// NewPusher returns a pusher; a nil objects or empty bucket yields one whose
// Push reports ErrSyncNotConfigured.
func NewPusher(objects ObjectStore, bucket string, annotations Annotations, meta metadata.Repository, logger logging.Logger) *Pusher {
	return &Pusher{
		objects:     objects,
		bucket:      bucket,
		annotations: annotations,
		meta:        meta,
		logger:      logger.With("module", "cloudsync"),
	}
}

func saltKey(userID string) string {
	return "sync_salt:" + userID
}

// ObjectKey is the bucket key of one annotation.
func ObjectKey(userID, id string) string {
	return path.Join("users", url.PathEscape(userID), "user-content", url.PathEscape(id))
}

func (p *Pusher) Push(ctx context.Context, userID string, passphrase []byte) (Report, error) {
	var rep Report
	if p.objects == nil || p.bucket == "" {
		return rep, common.ErrSyncNotConfigured
	}
	if userID == "" {
		return rep, common.ErrUnauthorized
	}

	key, err := p.syncKey(ctx, userID, passphrase)
	if err != nil {
		return rep, err
	}
	defer common.WipeByteArray(key)

	pending, err := p.annotations.PendingUserContent(ctx)
	if err != nil {
		return rep, err
	}
	for _, c := range pending {
		sealed, err := cryptox.SealJSON(c, key)
		if err != nil {
			return rep, fmt.Errorf("seal %s: %w", c.ID, err)
		}
		_, err = p.objects.PutObject(ctx, &s3.PutObjectInput{
			Bucket:      aws.String(p.bucket),
			Key:         aws.String(ObjectKey(userID, c.ID)),
			Body:        bytes.NewReader(sealed),
			ContentType: aws.String("application/octet-stream"),
		})
		if err != nil {
			return rep, fmt.Errorf("upload %s: %w", c.ID, err)
		}
		if err := p.annotations.MarkSynced(ctx, c.ID, userID); err != nil {
			return rep, err
		}
		rep.Uploaded++
	}

	tombstones, err := p.annotations.Tombstones(ctx)
	if err != nil {
		return rep, err
	}
	for _, ts := range tombstones {
		// A record synced by another user lives in their namespace; its
		// tombstone waits for their push.
		if ts.UserID != "" && ts.UserID != userID {
			continue
		}
		_, err := p.objects.DeleteObject(ctx, &s3.DeleteObjectInput{
			Bucket: aws.String(p.bucket),
			Key:    aws.String(ObjectKey(userID, ts.ID)),
		})
		if err != nil {
			return rep, fmt.Errorf("delete %s: %w", ts.ID, err)
		}
		if err := p.annotations.DropTombstone(ctx, ts.ID); err != nil {
			return rep, err
		}
		rep.Deleted++
	}

	p.logger.Info(ctx, "user content pushed", "user", userID, "uploaded", rep.Uploaded, "deleted", rep.Deleted)
	return rep, nil
}

// syncKey derives the user's key, creating and uploading the salt on first use.
func (p *Pusher) syncKey(ctx context.Context, userID string, passphrase []byte) ([]byte, error) {
	salt, err := p.meta.Get(ctx, saltKey(userID))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", common.ErrStorageUnavailable, err)
	}
	if len(salt) == 0 {
		salt = cryptox.NewSalt()
		_, err := p.objects.PutObject(ctx, &s3.PutObjectInput{
			Bucket: aws.String(p.bucket),
			Key:    aws.String(path.Join("users", url.PathEscape(userID), "sync-salt")),
			Body:   bytes.NewReader(salt),
		})
		if err != nil {
			return nil, fmt.Errorf("upload salt: %w", err)
		}
		if err := p.meta.Set(ctx, saltKey(userID), salt); err != nil {
			return nil, fmt.Errorf("%w: %w", common.ErrStorageUnavailable, err)
		}
	}
	return cryptox.DeriveKey(passphrase, salt), nil
}

// Run pushes every interval until ctx is done. Failures are logged and
// retried on the next tick.
func (p *Pusher) Run(ctx context.Context, interval time.Duration, userID string, passphrase []byte) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := p.Push(ctx, userID, passphrase); err != nil && !errors.Is(err, context.Canceled) {
				p.logger.Warn(ctx, "background sync failed", "error", err)
			}
		}
	}
}
