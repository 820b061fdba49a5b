// Package lookup answers "which file shows item X at size N".
package lookup

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2/log"

	"github.com/ManuelReschke/productimages/app/models"
	"github.com/ManuelReschke/productimages/app/repository"
	"github.com/ManuelReschke/productimages/internal/pkg/imageprocessor"
	"github.com/ManuelReschke/productimages/internal/pkg/storage"
	"github.com/ManuelReschke/productimages/internal/pkg/variants"
)

// ErrInvalidSize is returned for sizes that are not publicly served.
var ErrInvalidSize = errors.New("invalid image size")

// Resolution is the answer to a lookup. Found is false when the missing
// image sentinel is returned.
type Resolution struct {
	ItemCode string `json:"ItemCode"`
	Filename string `json:"filename"`
	Key      string `json:"-"`
	Path     string `json:"-"`
	WebPath  string `json:"path"`
	Found    bool   `json:"found"`
}

// SizeProps are the measured properties of one variant file.
type SizeProps struct {
	Key   string                     `json:"key"`
	Found bool                       `json:"found"`
	Props *imageprocessor.Properties `json:"props,omitempty"`
}

// Resolver looks items up in the store and on disk.
type Resolver struct {
	cfg       *variants.Config
	images    repository.ImageRepository
	readProps func(path string) (imageprocessor.Properties, error)
}

// NewResolver creates a resolver over images.
func NewResolver(cfg *variants.Config, images repository.ImageRepository) *Resolver {
	return &Resolver{cfg: cfg, images: images, readProps: imageprocessor.ReadProperties}
}

// ParseSize accepts a public numeric size or an alias of one.
func (r *Resolver) ParseSize(size string) (string, error) {
	key, err := r.cfg.Normalize(size)
	if err != nil {
		return "", fmt.Errorf("%w: %q", ErrInvalidSize, size)
	}
	n, err := strconv.Atoi(key)
	if err != nil || !r.cfg.IsPublicSize(n) {
		return "", fmt.Errorf("%w: %q", ErrInvalidSize, size)
	}
	return key, nil
}

// ResolveForItem never fails. Anything that goes wrong ends in the
// missing image of the requested size.
func (r *Resolver) ResolveForItem(ctx context.Context, itemCode, size string) Resolution {
	itemCode = strings.TrimSpace(itemCode)
	key, err := r.ParseSize(size)
	if err != nil {
		return r.missing(itemCode, r.fallbackKey(size))
	}
	if itemCode == "" {
		return r.missing(itemCode, key)
	}

	preferred, err := r.images.Load(ctx, repository.Filter{
		ItemCode:      itemCode,
		PreferredOnly: true,
		Active:        boolPtr(true),
	})
	if err != nil {
		log.Warnf("[Lookup] Failed to load preferred image of %s: %v", itemCode, err)
	} else if len(preferred) > 0 {
		if res, ok := r.fromRecord(&preferred[0], itemCode, key); ok {
			return res
		}
	}

	names, err := r.publicNames(ctx, key)
	if err != nil {
		log.Warnf("[Lookup] Failed to list %s: %v", key, err)
		return r.missing(itemCode, key)
	}
	if name, ok := MatchFile(names, itemCode); ok {
		return r.found(itemCode, key, name)
	}
	return r.missing(itemCode, key)
}

// FindImageList resolves many item codes at once, reading the store and
// the size directory a single time.
func (r *Resolver) FindImageList(ctx context.Context, itemCodes []string, size string) ([]Resolution, error) {
	key, err := r.ParseSize(size)
	if err != nil {
		return nil, err
	}

	codes := make([]string, 0, len(itemCodes))
	for _, c := range itemCodes {
		if c = strings.TrimSpace(c); c != "" {
			codes = append(codes, c)
		}
	}
	out := make([]Resolution, 0, len(codes))
	if len(codes) == 0 {
		return out, nil
	}

	records, err := r.images.Load(ctx, repository.Filter{
		ItemCodes:     codes,
		PreferredOnly: true,
		Active:        boolPtr(true),
	})
	if err != nil {
		return nil, err
	}
	byCode := make(map[string]*models.ProductImage, len(records))
	for i := range records {
		if _, ok := byCode[records[i].ItemCode]; !ok {
			byCode[records[i].ItemCode] = &records[i]
		}
	}

	var names []string
	listed := false
	for _, code := range codes {
		if img, ok := byCode[code]; ok {
			if res, ok := r.fromRecord(img, code, key); ok {
				out = append(out, res)
				continue
			}
		}
		if !listed {
			if names, err = r.publicNames(ctx, key); err != nil {
				log.Warnf("[Lookup] Failed to list %s: %v", key, err)
			}
			listed = true
		}
		if name, ok := MatchFile(names, code); ok {
			out = append(out, r.found(code, key, name))
			continue
		}
		out = append(out, r.missing(code, key))
	}
	return out, nil
}

// Properties measures filename in every configured variant directory.
func (r *Resolver) Properties(ctx context.Context, filename string) ([]SizeProps, error) {
	if err := variants.CheckFilename(filename); err != nil {
		return nil, err
	}
	keys := r.cfg.Keys()
	out := make([]SizeProps, 0, len(keys))
	for _, key := range keys {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		p, err := r.cfg.Resolve(key, filename)
		if err != nil {
			return nil, err
		}
		props, err := r.readProps(p)
		if err != nil {
			out = append(out, SizeProps{Key: key})
			continue
		}
		out = append(out, SizeProps{Key: key, Found: true, Props: &props})
	}
	return out, nil
}

// List returns the file names in the directory of size.
func (r *Resolver) List(size string) ([]string, error) {
	key, err := r.cfg.Normalize(size)
	if err != nil {
		return nil, err
	}
	return r.listKey(key)
}

func (r *Resolver) listKey(key string) ([]string, error) {
	dir, err := r.cfg.Dir(key)
	if err != nil {
		return nil, err
	}
	return storage.ListFiles(dir)
}

// publicNames lists key without the files of inactive records. A store
// error yields no names so inactive images are never served.
func (r *Resolver) publicNames(ctx context.Context, key string) ([]string, error) {
	names, err := r.listKey(key)
	if err != nil || len(names) == 0 {
		return nil, err
	}
	inactive, err := r.images.Load(ctx, repository.Filter{Active: boolPtr(false)})
	if err != nil {
		return nil, fmt.Errorf("failed to load inactive images: %w", err)
	}
	if len(inactive) == 0 {
		return names, nil
	}
	hidden := make(map[string]bool, len(inactive))
	for i := range inactive {
		hidden[inactive[i].Filename] = true
	}
	out := names[:0]
	for _, name := range names {
		if !hidden[name] {
			out = append(out, name)
		}
	}
	return out, nil
}

// fromRecord uses the requested size when the record has it and falls
// back to the first variant it lists.
func (r *Resolver) fromRecord(img *models.ProductImage, itemCode, key string) (Resolution, bool) {
	if img.HasVariant(key) {
		return r.found(itemCode, key, img.Filename), true
	}
	if len(img.Pathnames) > 0 {
		return r.found(itemCode, img.Pathnames[0], img.Filename), true
	}
	return Resolution{}, false
}

func (r *Resolver) found(itemCode, key, filename string) Resolution {
	res := Resolution{ItemCode: itemCode, Filename: filename, Key: key, Found: true}
	res.Path, _ = r.cfg.Resolve(key, filename)
	res.WebPath, _ = r.cfg.ResolveWeb(key, filename)
	return res
}

func (r *Resolver) missing(itemCode, key string) Resolution {
	res := r.found(itemCode, key, r.cfg.MissingFile)
	res.Found = false
	return res
}

// fallbackKey picks a directory for the sentinel of an invalid request.
func (r *Resolver) fallbackKey(size string) string {
	if key, err := r.cfg.Normalize(size); err == nil && key != variants.OriginalsKey {
		return key
	}
	return strconv.Itoa(r.cfg.ThumbSize)
}

// MatchFile picks a file for itemCode from a sorted listing: an exact
// "<itemCode>." prefix wins over a case-insensitive substring.
func MatchFile(names []string, itemCode string) (string, bool) {
	if itemCode == "" {
		return "", false
	}
	prefix := itemCode + "."
	for _, name := range names {
		if strings.HasPrefix(name, prefix) {
			return name, true
		}
	}
	needle := strings.ToLower(itemCode)
	for _, name := range names {
		if strings.Contains(strings.ToLower(name), needle) {
			return name, true
		}
	}
	return "", false
}

func boolPtr(b bool) *bool {
	return &b
}
