package imagesync

import (
	"context"
	"fmt"

	"github.com/gofiber/fiber/v2/log"
	"golang.org/x/sync/errgroup"

	"github.com/ManuelReschke/productimages/app/models"
	"github.com/ManuelReschke/productimages/app/repository"
	"github.com/ManuelReschke/productimages/internal/pkg/imageprocessor"
	"github.com/ManuelReschke/productimages/internal/pkg/variants"
)

// RebuildVariant generates the to variant for every record that has from
// but lacks to, then syncs the to directory. A dry run only lists the
// candidates.
func (e *Engine) RebuildVariant(ctx context.Context, from, to string, opts RebuildOptions) (*RebuildResult, error) {
	fromKey, err := e.cfg.Normalize(from)
	if err != nil {
		return nil, err
	}
	toKey, err := e.cfg.Normalize(to)
	if err != nil {
		return nil, err
	}
	size, err := e.cfg.SizeOf(toKey)
	if err != nil {
		return nil, err
	}
	if fromKey == toKey {
		return nil, fmt.Errorf("%w: cannot rebuild %s from itself", variants.ErrInvalidVariantKey, toKey)
	}

	records, err := e.images.Load(ctx, repository.Filter{VariantKey: fromKey})
	if err != nil {
		return nil, err
	}

	result := &RebuildResult{
		From:       fromKey,
		To:         toKey,
		DryRun:     opts.DryRun,
		Candidates: []string{},
		Images:     []*models.ProductImage{},
		Errors:     []ItemError{},
	}
	for i := range records {
		if !records[i].HasVariant(toKey) {
			result.Candidates = append(result.Candidates, records[i].Filename)
		}
	}
	if opts.DryRun {
		return result, nil
	}

	built := make([]*models.ProductImage, len(result.Candidates))
	failed := make([]error, len(result.Candidates))

	g := new(errgroup.Group)
	g.SetLimit(e.workers)
	for i, name := range result.Candidates {
		g.Go(func() error {
			built[i], failed[i] = e.rebuildOne(ctx, fromKey, toKey, size, name)
			return nil
		})
	}
	_ = g.Wait()

	for i, name := range result.Candidates {
		if failed[i] != nil {
			log.Warnf("[ImageSync] Rebuild of %s/%s failed: %v", toKey, name, failed[i])
			result.Errors = append(result.Errors, ItemError{Filename: name, Error: failed[i].Error()})
			continue
		}
		result.Images = append(result.Images, built[i])
	}

	result.Sync, err = e.SyncDirectory(ctx, toKey, false)
	if err != nil {
		return result, err
	}
	log.Infof("[ImageSync] Rebuilt %s from %s: %d built, %d failed", toKey, fromKey, len(result.Images), len(result.Errors))
	return result, nil
}

func (e *Engine) rebuildOne(ctx context.Context, fromKey, toKey string, size int, filename string) (*models.ProductImage, error) {
	src, err := e.cfg.Resolve(fromKey, filename)
	if err != nil {
		return nil, err
	}
	dst, err := e.cfg.Resolve(toKey, filename)
	if err != nil {
		return nil, err
	}
	res, err := e.gen.Generate(ctx, src, imageprocessor.Square(size), dst)
	if err != nil {
		return nil, err
	}
	return e.images.AddVariant(ctx, filename, toKey, metaOfResult(res))
}
