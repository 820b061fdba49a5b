package imagesync

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/gofiber/fiber/v2/log"

	"github.com/ManuelReschke/productimages/app/models"
	"github.com/ManuelReschke/productimages/app/repository"
	"github.com/ManuelReschke/productimages/internal/pkg/storage"
	"github.com/ManuelReschke/productimages/internal/pkg/variants"
)

// DeleteImage removes every variant file of filename and forgets each
// variant in turn. The record disappears with its last variant.
func (e *Engine) DeleteImage(ctx context.Context, filename string) error {
	img, err := e.images.Get(ctx, filename)
	if err != nil {
		return err
	}

	for _, key := range img.VariantKeys() {
		path, err := e.cfg.Resolve(key, filename)
		switch {
		case errors.Is(err, variants.ErrInvalidVariantKey):
			// no longer configured, only the record knows about it
			log.Warnf("[ImageSync] %s has unconfigured variant %s", filename, key)
		case err != nil:
			return err
		default:
			if _, err := storage.RemoveIfExists(path); err != nil {
				return fmt.Errorf("%w: %v", ErrFileSystem, err)
			}
		}
		if _, err := e.images.RemoveVariant(ctx, filename, key); err != nil {
			return err
		}
	}
	log.Infof("[ImageSync] Deleted %s", filename)
	return nil
}

// SetItemCode assigns the primary item code of filename. When filename
// ends up as the only image of that item code it becomes preferred.
func (e *Engine) SetItemCode(ctx context.Context, filename, itemCode string) (*models.ProductImage, error) {
	itemCode = strings.TrimSpace(itemCode)
	img, err := e.images.SetItemCode(ctx, filename, itemCode)
	if err != nil || itemCode == "" {
		return img, err
	}

	count, err := e.images.CountByItemCode(ctx, itemCode)
	if err != nil {
		return nil, err
	}
	if count == 1 && !img.PreferredImage {
		return e.images.SetPreferred(ctx, filename, itemCode)
	}
	return img, nil
}

// ApplyItemCode assigns itemCode to each of filenames.
func (e *Engine) ApplyItemCode(ctx context.Context, itemCode string, filenames []string) *BatchResult {
	out := newBatchResult()
	for _, name := range filenames {
		img, err := e.SetItemCode(ctx, name, itemCode)
		out.add(img, name, err)
	}
	return out
}

// SetPreferred makes filename the preferred image of itemCode.
func (e *Engine) SetPreferred(ctx context.Context, filename, itemCode string) (*models.ProductImage, error) {
	itemCode = strings.TrimSpace(itemCode)
	if itemCode == "" {
		return nil, ErrInvalidItemCode
	}
	return e.images.SetPreferred(ctx, filename, itemCode)
}

// SetActive toggles whether filename is offered to lookups.
func (e *Engine) SetActive(ctx context.Context, filename string, active bool) (*models.ProductImage, error) {
	return e.images.SetActive(ctx, filename, active)
}

func cleanTag(tag string) (string, error) {
	tag = strings.TrimSpace(tag)
	if tag == "" {
		return "", ErrInvalidTag
	}
	return tag, nil
}

// AddTag adds tag to filename.
func (e *Engine) AddTag(ctx context.Context, filename, tag string) (*models.ProductImage, error) {
	tag, err := cleanTag(tag)
	if err != nil {
		return nil, err
	}
	return e.images.AddTag(ctx, filename, tag)
}

// RemoveTag removes tag from filename.
func (e *Engine) RemoveTag(ctx context.Context, filename, tag string) (*models.ProductImage, error) {
	tag, err := cleanTag(tag)
	if err != nil {
		return nil, err
	}
	return e.images.RemoveTag(ctx, filename, tag)
}

// TagImages adds tag to each of filenames.
func (e *Engine) TagImages(ctx context.Context, tag string, filenames []string) (*BatchResult, error) {
	tag, err := cleanTag(tag)
	if err != nil {
		return nil, err
	}
	out := newBatchResult()
	for _, name := range filenames {
		img, err := e.images.AddTag(ctx, name, tag)
		out.add(img, name, err)
	}
	return out, nil
}

// UpdateProps applies a partial update of notes, tags and the active flag.
func (e *Engine) UpdateProps(ctx context.Context, filename string, props repository.Props) (*models.ProductImage, error) {
	if props.Tags != nil {
		tags := make([]string, 0, len(props.Tags))
		for _, t := range props.Tags {
			if t = strings.TrimSpace(t); t != "" {
				tags = append(tags, t)
			}
		}
		props.Tags = tags
	}
	return e.images.UpdateProps(ctx, filename, props)
}

// AltItems lists the alternate item codes of filename.
func (e *Engine) AltItems(ctx context.Context, filename string) ([]models.ImageProduct, error) {
	return e.assoc.ListForFilename(ctx, filename)
}

// AddAltItem links filename to an additional item code.
func (e *Engine) AddAltItem(ctx context.Context, filename, itemCode string) ([]models.ImageProduct, error) {
	itemCode = strings.TrimSpace(itemCode)
	if itemCode == "" {
		return nil, ErrInvalidItemCode
	}
	if err := variants.CheckFilename(filename); err != nil {
		return nil, err
	}
	if err := e.assoc.Add(ctx, filename, itemCode); err != nil {
		return nil, err
	}
	return e.assoc.ListForFilename(ctx, filename)
}

// AddAltItemToFilenames links itemCode to each of filenames.
func (e *Engine) AddAltItemToFilenames(ctx context.Context, itemCode string, filenames []string) ([]models.ImageProduct, error) {
	itemCode = strings.TrimSpace(itemCode)
	if itemCode == "" {
		return nil, ErrInvalidItemCode
	}
	if err := e.assoc.AddMany(ctx, itemCode, filenames); err != nil {
		return nil, err
	}
	return e.assoc.ListForItemCode(ctx, itemCode)
}

// RemoveAltItem unlinks filename from itemCode.
func (e *Engine) RemoveAltItem(ctx context.Context, filename, itemCode string) ([]models.ImageProduct, error) {
	if err := e.assoc.Remove(ctx, filename, strings.TrimSpace(itemCode)); err != nil {
		return nil, err
	}
	return e.assoc.ListForFilename(ctx, filename)
}

// SetAltItemActive toggles one alternate item code link.
func (e *Engine) SetAltItemActive(ctx context.Context, filename, itemCode string, active bool) ([]models.ImageProduct, error) {
	if err := e.assoc.SetActive(ctx, filename, strings.TrimSpace(itemCode), active); err != nil {
		return nil, err
	}
	return e.assoc.ListForFilename(ctx, filename)
}
