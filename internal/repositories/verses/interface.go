package verses

import (
	"context"

	"github.com/scriptureforge/offline/internal/models"
)

// Repository describes access to the verses collection.
type Repository interface {
	// Put inserts the verse or overwrites the record with the same id.
	Put(ctx context.Context, v models.Verse) error
	// Get returns the verse with the given id, or nil if absent.
	Get(ctx context.Context, id string) (*models.Verse, error)
	// ByChapter scans the (translation, book, chapter) index. Order is unspecified.
	ByChapter(ctx context.Context, translation, book string, chapter int) ([]models.Verse, error)
	// CountByTranslation scans the translation index.
	CountByTranslation(ctx context.Context, translation string) (int, error)
	// Delete removes the verse; deleting an absent id is not an error.
	Delete(ctx context.Context, id string) error
}
