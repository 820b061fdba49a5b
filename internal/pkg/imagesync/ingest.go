package imagesync

import (
	"context"
	"fmt"
	"strconv"

	"github.com/gofiber/fiber/v2/log"
	"golang.org/x/sync/errgroup"

	"github.com/ManuelReschke/productimages/internal/pkg/imageprocessor"
	"github.com/ManuelReschke/productimages/internal/pkg/storage"
	"github.com/ManuelReschke/productimages/internal/pkg/variants"
)

type generated struct {
	key    string
	result imageprocessor.VariantResult
	err    error
}

// Ingest moves a staged upload into originals under filename, generates
// every configured size and records what succeeded. A failed size is
// reported in the result and does not fail the ingest.
func (e *Engine) Ingest(ctx context.Context, tempPath, filename string) (*IngestResult, error) {
	if err := variants.CheckFilename(filename); err != nil {
		return nil, err
	}
	originalPath, err := e.cfg.Resolve(variants.OriginalsKey, filename)
	if err != nil {
		return nil, err
	}

	if err := storage.MoveFile(tempPath, originalPath); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFileSystem, err)
	}

	props, err := e.readProps(originalPath)
	if err != nil {
		e.discardOriginal(ctx, filename, originalPath)
		return nil, err
	}

	results := e.generateAll(ctx, originalPath, filename)

	if _, err := e.images.AddVariant(ctx, filename, variants.OriginalsKey, metaOf(props)); err != nil {
		return nil, err
	}

	out := &IngestResult{Failed: []VariantError{}}
	for _, r := range results {
		if r.err == nil {
			_, r.err = e.images.AddVariant(ctx, filename, r.key, metaOfResult(r.result))
		}
		if r.err != nil {
			log.Warnf("[ImageSync] Variant %s of %s failed: %v", r.key, filename, r.err)
			out.Failed = append(out.Failed, VariantError{Key: r.key, Error: r.err.Error()})
		}
	}

	out.Image, err = e.images.Get(ctx, filename)
	if err != nil {
		return nil, err
	}
	log.Infof("[ImageSync] Ingested %s with %d variants (%d failed)", filename, len(out.Image.Pathnames), len(out.Failed))
	return out, nil
}

// generateAll renders every numeric size of srcPath with bounded
// parallelism. Results keep the configured order.
func (e *Engine) generateAll(ctx context.Context, srcPath, filename string) []generated {
	keys := e.cfg.SizeKeys()
	results := make([]generated, len(keys))

	g := new(errgroup.Group)
	g.SetLimit(e.workers)
	for i, key := range keys {
		g.Go(func() error {
			results[i] = e.generateOne(ctx, srcPath, key, filename)
			return nil
		})
	}
	_ = g.Wait()
	return results
}

func (e *Engine) generateOne(ctx context.Context, srcPath, key, filename string) generated {
	size, err := strconv.Atoi(key)
	if err != nil {
		return generated{key: key, err: err}
	}
	dst, err := e.cfg.Resolve(key, filename)
	if err != nil {
		return generated{key: key, err: err}
	}
	res, err := e.gen.Generate(ctx, srcPath, imageprocessor.Square(size), dst)
	return generated{key: key, result: res, err: err}
}

// discardOriginal removes an original that could not be decoded. A record
// that still claims the original is corrected so it never points at a
// missing file.
func (e *Engine) discardOriginal(ctx context.Context, filename, path string) {
	if _, err := storage.RemoveIfExists(path); err != nil {
		log.Errorf("[ImageSync] Failed to remove undecodable original %s: %v", path, err)
		return
	}
	img, err := e.images.Get(ctx, filename)
	if err != nil || !img.HasVariant(variants.OriginalsKey) {
		return
	}
	if _, err := e.images.RemoveVariant(ctx, filename, variants.OriginalsKey); err != nil {
		log.Errorf("[ImageSync] Failed to forget original of %s: %v", filename, err)
	}
}
