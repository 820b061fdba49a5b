package repository

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/gofiber/fiber/v2/log"
	"gorm.io/gorm"

	"github.com/ManuelReschke/productimages/app/models"
	"github.com/ManuelReschke/productimages/internal/pkg/keylock"
)

// outcome tells update what to do with the mutated record.
type outcome int

const (
	keep outcome = iota
	save
	drop
)

// imageRepository implements the ImageRepository interface
type imageRepository struct {
	db    *gorm.DB
	locks *keylock.Locker
}

// NewImageRepository creates a new image repository instance
func NewImageRepository(db *gorm.DB) ImageRepository {
	return &imageRepository{db: db, locks: keylock.New()}
}

var _ ImageRepository = (*imageRepository)(nil)

// Load returns matching records ordered by filename
func (r *imageRepository) Load(ctx context.Context, filter Filter) ([]models.ProductImage, error) {
	match, err := filter.matcher()
	if err != nil {
		return nil, err
	}

	var images []models.ProductImage
	q := filter.apply(r.db.WithContext(ctx).Model(&models.ProductImage{}).Preload("AltItems"))
	if err := q.Order("product_images.filename").Find(&images).Error; err != nil {
		return nil, fmt.Errorf("failed to load images: %w", err)
	}

	out := images[:0]
	for i := range images {
		images[i].Normalize()
		if match(&images[i]) {
			out = append(out, images[i])
		}
	}
	return out, nil
}

// Get retrieves a single record by filename
func (r *imageRepository) Get(ctx context.Context, filename string) (*models.ProductImage, error) {
	return r.find(r.db.WithContext(ctx), filename)
}

// Upsert replaces the stored fields of image. A record without variants
// is not kept.
func (r *imageRepository) Upsert(ctx context.Context, image *models.ProductImage) (*models.ProductImage, error) {
	incoming := *image
	incoming.Normalize()

	return r.update(ctx, incoming.Filename, true, func(_ *gorm.DB, img *models.ProductImage) (outcome, error) {
		img.Pathnames = incoming.Pathnames
		img.Sizes = incoming.Sizes
		img.ColorSpace = incoming.ColorSpace
		img.ImgFormat = incoming.ImgFormat
		img.Tags = incoming.Tags
		img.Notes = incoming.Notes
		img.ItemCode = incoming.ItemCode
		img.Active = incoming.Active
		img.PreferredImage = incoming.PreferredImage
		if len(img.Pathnames) == 0 {
			return drop, nil
		}
		return save, nil
	})
}

// AddVariant records one variant, creating the record on first use
func (r *imageRepository) AddVariant(ctx context.Context, filename, key string, meta models.VariantMeta) (*models.ProductImage, error) {
	return r.update(ctx, filename, true, func(_ *gorm.DB, img *models.ProductImage) (outcome, error) {
		img.SetVariant(key, meta)
		return save, nil
	})
}

// RemoveVariant forgets one variant and deletes the record with its last one
func (r *imageRepository) RemoveVariant(ctx context.Context, filename, key string) (*models.ProductImage, error) {
	img, err := r.update(ctx, filename, false, func(_ *gorm.DB, img *models.ProductImage) (outcome, error) {
		if !img.DropVariant(key) {
			return keep, nil
		}
		if len(img.Pathnames) == 0 {
			return drop, nil
		}
		return save, nil
	})
	if errors.Is(err, ErrImageNotFound) {
		return nil, nil
	}
	return img, err
}

// SetPreferred makes filename the only preferred image of itemCode
func (r *imageRepository) SetPreferred(ctx context.Context, filename, itemCode string) (*models.ProductImage, error) {
	if itemCode == "" {
		return nil, fmt.Errorf("%w: empty item code", ErrItemCodeMismatch)
	}
	return r.update(ctx, filename, false, func(tx *gorm.DB, img *models.ProductImage) (outcome, error) {
		switch img.ItemCode {
		case itemCode:
		case "":
			img.ItemCode = itemCode
		default:
			return keep, fmt.Errorf("%w: %s is assigned to %s", ErrItemCodeMismatch, filename, img.ItemCode)
		}

		// clear first, inside the same transaction as the set below
		err := tx.Model(&models.ProductImage{}).
			Where("item_code = ? AND preferred_image = ? AND filename <> ?", itemCode, true, filename).
			Updates(map[string]interface{}{
				"preferred_image": false,
				"version":         gorm.Expr("version + 1"),
				"timestamp":       time.Now(),
			}).Error
		if err != nil {
			return keep, fmt.Errorf("failed to clear preferred image of %s: %w", itemCode, err)
		}

		img.PreferredImage = true
		return save, nil
	})
}

// SetActive toggles the active flag
func (r *imageRepository) SetActive(ctx context.Context, filename string, active bool) (*models.ProductImage, error) {
	return r.update(ctx, filename, false, func(_ *gorm.DB, img *models.ProductImage) (outcome, error) {
		if img.Active == active {
			return keep, nil
		}
		img.Active = active
		return save, nil
	})
}

// AddTag adds tag unless already present
func (r *imageRepository) AddTag(ctx context.Context, filename, tag string) (*models.ProductImage, error) {
	return r.update(ctx, filename, false, func(_ *gorm.DB, img *models.ProductImage) (outcome, error) {
		if img.HasTag(tag) {
			return keep, nil
		}
		img.Tags = append(img.Tags, tag)
		return save, nil
	})
}

// RemoveTag removes tag if present
func (r *imageRepository) RemoveTag(ctx context.Context, filename, tag string) (*models.ProductImage, error) {
	return r.update(ctx, filename, false, func(_ *gorm.DB, img *models.ProductImage) (outcome, error) {
		if !img.HasTag(tag) {
			return keep, nil
		}
		img.Tags = slices.DeleteFunc(img.Tags, func(t string) bool { return t == tag })
		return save, nil
	})
}

// SetItemCode assigns the primary item code. A record moving to another
// item code loses its preferred flag.
func (r *imageRepository) SetItemCode(ctx context.Context, filename, itemCode string) (*models.ProductImage, error) {
	return r.update(ctx, filename, false, func(_ *gorm.DB, img *models.ProductImage) (outcome, error) {
		if img.ItemCode == itemCode {
			return keep, nil
		}
		img.ItemCode = itemCode
		img.PreferredImage = false
		return save, nil
	})
}

// UpdateProps applies a partial update of notes, tags and the active flag
func (r *imageRepository) UpdateProps(ctx context.Context, filename string, props Props) (*models.ProductImage, error) {
	return r.update(ctx, filename, false, func(_ *gorm.DB, img *models.ProductImage) (outcome, error) {
		if props.Notes != nil {
			img.Notes = *props.Notes
		}
		if props.Tags != nil {
			tags := make([]string, 0, len(props.Tags))
			for _, t := range props.Tags {
				if !slices.Contains(tags, t) {
					tags = append(tags, t)
				}
			}
			img.Tags = tags
		}
		if props.Active != nil {
			img.Active = *props.Active
		}
		return save, nil
	})
}

// CountByItemCode counts records whose primary item code is itemCode
func (r *imageRepository) CountByItemCode(ctx context.Context, itemCode string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.ProductImage{}).Where("item_code = ?", itemCode).Count(&count).Error
	return count, err
}

// Delete removes the record regardless of its variants
func (r *imageRepository) Delete(ctx context.Context, filename string) error {
	unlock := r.locks.Lock(filename)
	defer unlock()

	res := r.db.WithContext(ctx).Where("filename = ?", filename).Delete(&models.ProductImage{})
	if res.Error != nil {
		return fmt.Errorf("failed to delete image %s: %w", filename, res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%w: %s", ErrImageNotFound, filename)
	}
	return nil
}

func (r *imageRepository) find(db *gorm.DB, filename string) (*models.ProductImage, error) {
	img, err := models.FindProductImageByFilename(db, filename)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrImageNotFound, filename)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load image %s: %w", filename, err)
	}
	return img, nil
}

// update is the single read-modify-write path. It holds the filename lock,
// runs fn inside a transaction and writes conditionally on the version
// that was read. A conflicting writer causes one retry with a fresh read.
func (r *imageRepository) update(ctx context.Context, filename string, create bool,
	fn func(tx *gorm.DB, img *models.ProductImage) (outcome, error)) (*models.ProductImage, error) {

	unlock := r.locks.Lock(filename)
	defer unlock()

	var result *models.ProductImage
	attempt := func() error {
		return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			img, err := r.find(tx, filename)
			isNew := false
			switch {
			case errors.Is(err, ErrImageNotFound) && create:
				img = models.NewProductImage(filename)
				isNew = true
			case err != nil:
				return err
			}

			out, err := fn(tx, img)
			if err != nil {
				return err
			}

			switch {
			case out == keep:
				result = img
				return nil
			case out == drop && isNew:
				result = nil
				return nil
			case out == drop:
				res := tx.Where("filename = ? AND version = ?", filename, img.Version).Delete(&models.ProductImage{})
				if err := writeResult(res, filename); err != nil {
					return err
				}
				result = nil
				return nil
			case isNew:
				if err := tx.Omit("AltItems").Create(img).Error; err != nil {
					if errors.Is(err, gorm.ErrDuplicatedKey) {
						return fmt.Errorf("%w: %s created concurrently", ErrStoreWriteConflict, filename)
					}
					return fmt.Errorf("failed to create image %s: %w", filename, err)
				}
			default:
				prev := img.Version
				res := tx.Model(&models.ProductImage{}).
					Where("filename = ? AND version = ?", filename, prev).
					Updates(map[string]interface{}{
						"pathnames":       img.Pathnames,
						"sizes":           img.Sizes,
						"color_space":     img.ColorSpace,
						"img_format":      img.ImgFormat,
						"tags":            img.Tags,
						"notes":           img.Notes,
						"item_code":       img.ItemCode,
						"active":          img.Active,
						"preferred_image": img.PreferredImage,
						"version":         prev + 1,
						"timestamp":       time.Now(),
					})
				if err := writeResult(res, filename); err != nil {
					return err
				}
			}

			result, err = r.find(tx, filename)
			return err
		})
	}

	err := attempt()
	if errors.Is(err, ErrStoreWriteConflict) {
		log.Warnf("[ImageRepository] Write conflict on %s, retrying once", filename)
		err = attempt()
	}
	if err != nil {
		return nil, err
	}
	return result, nil
}

func writeResult(res *gorm.DB, filename string) error {
	if res.Error != nil {
		return fmt.Errorf("failed to write image %s: %w", filename, res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%w: %s changed since it was read", ErrStoreWriteConflict, filename)
	}
	return nil
}
