package usercontent

import (
	"context"
	"time"

	"github.com/scriptureforge/offline/internal/models"
)

// Repository describes access to the user_content collection and its
// deletion tombstones.
type Repository interface {
	// Put inserts a new record; an existing id is common.ErrDuplicateID.
	Put(ctx context.Context, c models.UserContent) error
	Get(ctx context.Context, id string) (*models.UserContent, error)
	// ByType scans the type index in insertion order.
	ByType(ctx context.Context, t models.ContentType) ([]models.UserContent, error)
	Delete(ctx context.Context, id string) error

	// Pending lists records not yet confirmed by a remote round-trip.
	Pending(ctx context.Context) ([]models.UserContent, error)
	// MarkSynced records that userID's remote namespace now holds id.
	MarkSynced(ctx context.Context, id, userID string, at time.Time) error

	PutTombstone(ctx context.Context, ts models.Tombstone) error
	Tombstones(ctx context.Context) ([]models.Tombstone, error)
	DropTombstone(ctx context.Context, id string) error
}
