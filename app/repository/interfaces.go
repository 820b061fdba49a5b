package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/ManuelReschke/productimages/app/models"
)

// ImageRepository is the metadata store for product images. Every write
// returns the record as stored, so callers never reload by hand.
type ImageRepository interface {
	Load(ctx context.Context, filter Filter) ([]models.ProductImage, error)
	Get(ctx context.Context, filename string) (*models.ProductImage, error)
	Upsert(ctx context.Context, image *models.ProductImage) (*models.ProductImage, error)
	// AddVariant creates the record when it does not exist yet.
	AddVariant(ctx context.Context, filename, key string, meta models.VariantMeta) (*models.ProductImage, error)
	// RemoveVariant returns nil once the last variant is gone and the
	// record has been deleted.
	RemoveVariant(ctx context.Context, filename, key string) (*models.ProductImage, error)
	SetPreferred(ctx context.Context, filename, itemCode string) (*models.ProductImage, error)
	SetActive(ctx context.Context, filename string, active bool) (*models.ProductImage, error)
	AddTag(ctx context.Context, filename, tag string) (*models.ProductImage, error)
	RemoveTag(ctx context.Context, filename, tag string) (*models.ProductImage, error)
	SetItemCode(ctx context.Context, filename, itemCode string) (*models.ProductImage, error)
	UpdateProps(ctx context.Context, filename string, props Props) (*models.ProductImage, error)
	CountByItemCode(ctx context.Context, itemCode string) (int64, error)
	Delete(ctx context.Context, filename string) error
}

// AssociationRepository manages alternate item codes of images.
type AssociationRepository interface {
	ListForFilename(ctx context.Context, filename string) ([]models.ImageProduct, error)
	ListForItemCode(ctx context.Context, itemCode string) ([]models.ImageProduct, error)
	// Add is a no-op when the pair already exists.
	Add(ctx context.Context, filename, itemCode string) error
	AddMany(ctx context.Context, itemCode string, filenames []string) error
	Remove(ctx context.Context, filename, itemCode string) error
	SetActive(ctx context.Context, filename, itemCode string, active bool) error
}

// Props is a partial update of the editable fields. Nil means unchanged.
type Props struct {
	Notes  *string
	Tags   []string
	Active *bool
}

// Repositories holds all repository instances
type Repositories struct {
	Image       ImageRepository
	Association AssociationRepository
}

// NewRepositories creates a new instance of all repositories
func NewRepositories(db *gorm.DB) *Repositories {
	return &Repositories{
		Image:       NewImageRepository(db),
		Association: NewAssociationRepository(db),
	}
}
