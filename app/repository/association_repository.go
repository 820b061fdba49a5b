package repository

import (
	"context"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/ManuelReschke/productimages/app/models"
)

// associationRepository implements the AssociationRepository interface
type associationRepository struct {
	db *gorm.DB
}

// NewAssociationRepository creates a new association repository instance
func NewAssociationRepository(db *gorm.DB) AssociationRepository {
	return &associationRepository{db: db}
}

var _ AssociationRepository = (*associationRepository)(nil)

// ListForFilename returns the alternate item codes of filename
func (r *associationRepository) ListForFilename(ctx context.Context, filename string) ([]models.ImageProduct, error) {
	var rows []models.ImageProduct
	err := r.db.WithContext(ctx).Where("filename = ?", filename).Order("item_code").Find(&rows).Error
	return rows, err
}

// ListForItemCode returns every filename linked to itemCode
func (r *associationRepository) ListForItemCode(ctx context.Context, itemCode string) ([]models.ImageProduct, error) {
	var rows []models.ImageProduct
	err := r.db.WithContext(ctx).Where("item_code = ?", itemCode).Order("filename").Find(&rows).Error
	return rows, err
}

// Add links filename to itemCode
func (r *associationRepository) Add(ctx context.Context, filename, itemCode string) error {
	return r.AddMany(ctx, itemCode, []string{filename})
}

// AddMany links every filename to itemCode, skipping existing pairs
func (r *associationRepository) AddMany(ctx context.Context, itemCode string, filenames []string) error {
	if itemCode == "" {
		return fmt.Errorf("item code is required")
	}
	rows := make([]models.ImageProduct, 0, len(filenames))
	for _, f := range filenames {
		if f == "" {
			continue
		}
		rows = append(rows, models.ImageProduct{Filename: f, ItemCode: itemCode, Active: true})
	}
	if len(rows) == 0 {
		return nil
	}
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&rows).Error
	if err != nil {
		return fmt.Errorf("failed to add alternate item %s: %w", itemCode, err)
	}
	return nil
}

// Remove unlinks filename from itemCode
func (r *associationRepository) Remove(ctx context.Context, filename, itemCode string) error {
	return r.db.WithContext(ctx).
		Where("filename = ? AND item_code = ?", filename, itemCode).
		Delete(&models.ImageProduct{}).Error
}

// SetActive toggles one association
func (r *associationRepository) SetActive(ctx context.Context, filename, itemCode string, active bool) error {
	return r.db.WithContext(ctx).Model(&models.ImageProduct{}).
		Where("filename = ? AND item_code = ?", filename, itemCode).
		Update("active", active).Error
}
