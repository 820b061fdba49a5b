package models

import (
	"slices"
	"sort"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// VariantSize is the measured output of one variant file.
type VariantSize struct {
	Width  int   `json:"width"`
	Height int   `json:"height"`
	Size   int64 `json:"size"`
}

// VariantMeta is everything recorded for a variant key in one write.
type VariantMeta struct {
	Width      int
	Height     int
	Size       int64
	ColorSpace string
	Format     string
}

// ProductImage is the metadata record of one canonical filename. The
// pathnames set and the three per-variant maps always share the same keys.
type ProductImage struct {
	Filename       string                                     `gorm:"primaryKey;type:varchar(255)" json:"filename"`
	Pathnames      datatypes.JSONSlice[string]                `gorm:"not null" json:"pathnames"`
	Sizes          datatypes.JSONType[map[string]VariantSize] `gorm:"not null" json:"sizes"`
	ColorSpace     datatypes.JSONType[map[string]string]      `gorm:"column:color_space;not null" json:"color_space"`
	ImgFormat      datatypes.JSONType[map[string]string]      `gorm:"column:img_format;not null" json:"img_format"`
	Tags           datatypes.JSONSlice[string]                `gorm:"not null" json:"tags"`
	Notes          string                                     `gorm:"type:text;not null" json:"notes"`
	ItemCode       string                                     `gorm:"type:varchar(64);not null;index" json:"item_code"`
	Active         bool                                       `gorm:"not null" json:"active"`
	PreferredImage bool                                       `gorm:"not null;index" json:"preferred_image"`
	Version        int64                                      `gorm:"not null" json:"-"`
	CreatedAt      time.Time                                  `gorm:"autoCreateTime" json:"created_at"`
	Timestamp      time.Time                                  `gorm:"autoUpdateTime" json:"timestamp"`

	AltItems []ImageProduct `gorm:"foreignKey:Filename;references:Filename" json:"item_codes"`
}

// TableName returns the table name for the ProductImage model
func (ProductImage) TableName() string {
	return "product_images"
}

// NewProductImage returns an active record with no variants.
func NewProductImage(filename string) *ProductImage {
	p := &ProductImage{
		Filename:  filename,
		Pathnames: datatypes.JSONSlice[string]{},
		Tags:      datatypes.JSONSlice[string]{},
		Active:    true,
	}
	p.Sizes = datatypes.NewJSONType(map[string]VariantSize{})
	p.ColorSpace = datatypes.NewJSONType(map[string]string{})
	p.ImgFormat = datatypes.NewJSONType(map[string]string{})
	return p
}

// HasVariant reports whether key is in pathnames.
func (p *ProductImage) HasVariant(key string) bool {
	return slices.Contains(p.Pathnames, key)
}

// VariantKeys returns pathnames sorted.
func (p *ProductImage) VariantKeys() []string {
	keys := slices.Clone([]string(p.Pathnames))
	sort.Strings(keys)
	return keys
}

// SizeOf returns the recorded dimensions of key.
func (p *ProductImage) SizeOf(key string) (VariantSize, bool) {
	s, ok := p.Sizes.Data()[key]
	return s, ok
}

// SetVariant records key across pathnames and every per-variant map.
func (p *ProductImage) SetVariant(key string, meta VariantMeta) {
	sizes := cloneMap(p.Sizes.Data())
	colors := cloneMap(p.ColorSpace.Data())
	formats := cloneMap(p.ImgFormat.Data())

	sizes[key] = VariantSize{Width: meta.Width, Height: meta.Height, Size: meta.Size}
	colors[key] = meta.ColorSpace
	formats[key] = meta.Format

	if !p.HasVariant(key) {
		p.Pathnames = append(p.Pathnames, key)
	}
	p.Sizes = datatypes.NewJSONType(sizes)
	p.ColorSpace = datatypes.NewJSONType(colors)
	p.ImgFormat = datatypes.NewJSONType(formats)
}

// DropVariant removes key everywhere. It reports whether key was present.
func (p *ProductImage) DropVariant(key string) bool {
	sizes := cloneMap(p.Sizes.Data())
	colors := cloneMap(p.ColorSpace.Data())
	formats := cloneMap(p.ImgFormat.Data())

	_, hadSize := sizes[key]
	had := p.HasVariant(key) || hadSize

	delete(sizes, key)
	delete(colors, key)
	delete(formats, key)

	p.Pathnames = slices.DeleteFunc(p.Pathnames, func(k string) bool { return k == key })
	p.Sizes = datatypes.NewJSONType(sizes)
	p.ColorSpace = datatypes.NewJSONType(colors)
	p.ImgFormat = datatypes.NewJSONType(formats)
	return had
}

// Normalize repairs records written by older tools: nil collections become
// empty, pathnames without dimensions are dropped and the per-variant maps
// are trimmed or filled to match pathnames.
func (p *ProductImage) Normalize() {
	if p.Pathnames == nil {
		p.Pathnames = datatypes.JSONSlice[string]{}
	}
	if p.Tags == nil {
		p.Tags = datatypes.JSONSlice[string]{}
	}

	sizes := cloneMap(p.Sizes.Data())
	colors := cloneMap(p.ColorSpace.Data())
	formats := cloneMap(p.ImgFormat.Data())

	p.Pathnames = slices.DeleteFunc(p.Pathnames, func(k string) bool {
		_, ok := sizes[k]
		return !ok
	})
	for k := range sizes {
		if !p.HasVariant(k) {
			delete(sizes, k)
		}
	}
	for k := range colors {
		if !p.HasVariant(k) {
			delete(colors, k)
		}
	}
	for k := range formats {
		if !p.HasVariant(k) {
			delete(formats, k)
		}
	}
	for _, k := range p.Pathnames {
		if _, ok := colors[k]; !ok {
			colors[k] = ""
		}
		if _, ok := formats[k]; !ok {
			formats[k] = ""
		}
	}

	p.Sizes = datatypes.NewJSONType(sizes)
	p.ColorSpace = datatypes.NewJSONType(colors)
	p.ImgFormat = datatypes.NewJSONType(formats)
}

// HasTag reports whether tag is set.
func (p *ProductImage) HasTag(tag string) bool {
	return slices.Contains(p.Tags, tag)
}

// FindProductImageByFilename loads one record with its alternate item codes.
func FindProductImageByFilename(db *gorm.DB, filename string) (*ProductImage, error) {
	var img ProductImage
	if err := db.Preload("AltItems").Where("filename = ?", filename).First(&img).Error; err != nil {
		return nil, err
	}
	img.Normalize()
	return &img, nil
}

func cloneMap[V any](m map[string]V) map[string]V {
	out := make(map[string]V, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
