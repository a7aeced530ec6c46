package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/scriptureforge/offline/internal/common"
	"github.com/scriptureforge/offline/internal/dbx"
	"github.com/scriptureforge/offline/internal/logging"
	"github.com/scriptureforge/offline/internal/models"
	"github.com/scriptureforge/offline/internal/repositories/usercontent"
	"github.com/scriptureforge/offline/internal/store"
)

// AnnotationService stores bookmarks, highlights and notes. Records are
// created and deleted, never updated; an edit is a delete followed by a
// new record.
type AnnotationService interface {
	StoreUserContent(ctx context.Context, t models.ContentType, reference string, data map[string]any) (string, error)
	GetUserContent(ctx context.Context, t models.ContentType) ([]models.UserContent, error)
	DeleteUserContent(ctx context.Context, id string) error

	PendingUserContent(ctx context.Context) ([]models.UserContent, error)
	MarkSynced(ctx context.Context, id, userID string) error
	Tombstones(ctx context.Context) ([]models.Tombstone, error)
	DropTombstone(ctx context.Context, id string) error
}

type annotationService struct {
	db     *store.DB
	logger logging.Logger
	now    func() time.Time
}

func NewAnnotationService(db *store.DB, logger logging.Logger) AnnotationService {
	return &annotationService{db: db, logger: logger.With("module", "annotations"), now: time.Now}
}

// idAttempts bounds how many later milliseconds StoreUserContent tries when
// the id for the current one is taken.
const idAttempts = 16

func (s *annotationService) repo() usercontent.Repository {
	return usercontent.NewSQLiteRepository(s.db.SQL())
}

func (s *annotationService) StoreUserContent(ctx context.Context, t models.ContentType, reference string, data map[string]any) (string, error) {
	if !t.Valid() {
		return "", fmt.Errorf("%w: %q", common.ErrInvalidContentType, t)
	}
	if data == nil {
		data = map[string]any{}
	}

	created := s.now().UTC()
	for range idAttempts {
		c := models.UserContent{
			ID:        models.UserContentID(t, reference, created),
			Type:      t,
			Reference: reference,
			Data:      data,
			CreatedAt: created,
		}
		err := s.repo().Put(ctx, c)
		if errors.Is(err, common.ErrDuplicateID) {
			created = created.Add(time.Millisecond)
			continue
		}
		if err != nil {
			return "", storageErr("store user content", err)
		}

		s.logger.Debug(ctx, "user content stored", "id", c.ID)
		return c.ID, nil
	}
	return "", fmt.Errorf("store user content: %w: %s %s", common.ErrDuplicateID, t, reference)
}

func (s *annotationService) GetUserContent(ctx context.Context, t models.ContentType) ([]models.UserContent, error) {
	if !t.Valid() {
		return nil, fmt.Errorf("%w: %q", common.ErrInvalidContentType, t)
	}
	items, err := s.repo().ByType(ctx, t)
	if err != nil {
		return nil, storageErr("get user content", err)
	}
	return items, nil
}

// DeleteUserContent removes the record. A record that already reached the
// remote store leaves a tombstone in the same transaction.
func (s *annotationService) DeleteUserContent(ctx context.Context, id string) error {
	err := dbx.WithTx(ctx, s.db.SQL(), nil, func(ctx context.Context, tx dbx.DBTX) error {
		repo := usercontent.NewSQLiteRepository(tx)
		c, err := repo.Get(ctx, id)
		if err != nil {
			return err
		}
		if c == nil {
			return nil
		}
		if c.SyncedAt != nil {
			ts := models.Tombstone{ID: id, UserID: c.SyncedBy, DeletedAt: s.now().UTC()}
			if err := repo.PutTombstone(ctx, ts); err != nil {
				return err
			}
		}
		return repo.Delete(ctx, id)
	})
	if err != nil {
		return storageErr("delete user content", err)
	}
	return nil
}

func (s *annotationService) PendingUserContent(ctx context.Context) ([]models.UserContent, error) {
	items, err := s.repo().Pending(ctx)
	if err != nil {
		return nil, storageErr("pending user content", err)
	}
	return items, nil
}

func (s *annotationService) MarkSynced(ctx context.Context, id, userID string) error {
	if err := s.repo().MarkSynced(ctx, id, userID, s.now().UTC()); err != nil {
		return storageErr("mark synced", err)
	}
	return nil
}

func (s *annotationService) Tombstones(ctx context.Context) ([]models.Tombstone, error) {
	ts, err := s.repo().Tombstones(ctx)
	if err != nil {
		return nil, storageErr("tombstones", err)
	}
	return ts, nil
}

func (s *annotationService) DropTombstone(ctx context.Context, id string) error {
	if err := s.repo().DropTombstone(ctx, id); err != nil {
		return storageErr("drop tombstone", err)
	}
	return nil
}
