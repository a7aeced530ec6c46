package translations

import (
	"context"

	"github.com/scriptureforge/offline/internal/models"
)

// Repository describes access to the translations collection. A record is
// the commit marker of a completed download.
type Repository interface {
	Put(ctx context.Context, t models.Translation) error
	// Get returns nil when the translation has not been downloaded.
	Get(ctx context.Context, id string) (*models.Translation, error)
	GetAll(ctx context.Context) ([]models.Translation, error)
	Delete(ctx context.Context, id string) error
}
