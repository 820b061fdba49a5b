package models

import "time"

// ImageProduct links a filename to an alternate item code. It is independent
// of ProductImage.ItemCode.
type ImageProduct struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Filename  string    `gorm:"type:varchar(255);not null;uniqueIndex:idx_image_products_filename_item" json:"filename"`
	ItemCode  string    `gorm:"type:varchar(64);not null;uniqueIndex:idx_image_products_filename_item;index" json:"item_code"`
	Active    bool      `gorm:"not null" json:"active"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
}

// TableName returns the table name for the ImageProduct model
func (ImageProduct) TableName() string {
	return "image_products"
}
