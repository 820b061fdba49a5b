package repository

import (
	"fmt"
	"regexp"

	"gorm.io/gorm"

	"github.com/ManuelReschke/productimages/app/models"
)

// Filter selects records in Load. Zero fields do not filter.
type Filter struct {
	Filename  string
	Filenames []string
	ItemCode  string
	ItemCodes []string
	// ItemCodePattern is a case-insensitive regular expression matched
	// anywhere in the item code.
	ItemCodePattern string
	// VariantKey keeps records that claim the variant.
	VariantKey    string
	Active        *bool
	PreferredOnly bool

	// catalog facets, compared verbatim against ci_item
	Category    string
	Collection  string
	ProductLine string
	BaseSKU     string
}

func (f Filter) hasFacets() bool {
	return f.Category != "" || f.Collection != "" || f.ProductLine != "" || f.BaseSKU != ""
}

// apply adds the SQL-expressible conditions to q.
func (f Filter) apply(q *gorm.DB) *gorm.DB {
	const t = "product_images."
	if f.Filename != "" {
		q = q.Where(t+"filename = ?", f.Filename)
	}
	if len(f.Filenames) > 0 {
		q = q.Where(t+"filename IN ?", f.Filenames)
	}
	if f.ItemCode != "" {
		q = q.Where(t+"item_code = ?", f.ItemCode)
	}
	if len(f.ItemCodes) > 0 {
		q = q.Where(t+"item_code IN ?", f.ItemCodes)
	}
	if f.Active != nil {
		q = q.Where(t+"active = ?", *f.Active)
	}
	if f.PreferredOnly {
		q = q.Where(t+"preferred_image = ?", true)
	}
	if f.hasFacets() {
		q = q.Joins("LEFT JOIN ci_item ON ci_item.ItemCode = product_images.item_code")
		if f.Category != "" {
			q = q.Where("ci_item.Category2 = ?", f.Category)
		}
		if f.Collection != "" {
			q = q.Where("ci_item.Category3 = ?", f.Collection)
		}
		if f.ProductLine != "" {
			q = q.Where("ci_item.ProductLine = ?", f.ProductLine)
		}
		if f.BaseSKU != "" {
			q = q.Where("ci_item.Category4 = ?", f.BaseSKU)
		}
	}
	return q
}

// matcher returns the in-memory part of the filter. JSON membership and
// regular expressions differ too much between mysql and sqlite to push down.
func (f Filter) matcher() (func(*models.ProductImage) bool, error) {
	var re *regexp.Regexp
	if f.ItemCodePattern != "" {
		var err error
		re, err = regexp.Compile("(?i)" + f.ItemCodePattern)
		if err != nil {
			return nil, fmt.Errorf("invalid item code pattern %q: %w", f.ItemCodePattern, err)
		}
	}
	return func(img *models.ProductImage) bool {
		if re != nil && !re.MatchString(img.ItemCode) {
			return false
		}
		if f.VariantKey != "" && !img.HasVariant(f.VariantKey) {
			return false
		}
		return true
	}, nil
}
