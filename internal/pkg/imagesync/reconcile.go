package imagesync

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/gofiber/fiber/v2/log"
	"golang.org/x/sync/errgroup"

	"github.com/ManuelReschke/productimages/app/models"
	"github.com/ManuelReschke/productimages/app/repository"
	"github.com/ManuelReschke/productimages/internal/pkg/storage"
)

// SyncDirectory reconciles one variant directory with the store. Files
// without a record claiming key are registered, records claiming key
// without a file lose that variant. With rebuild set every file is
// re-measured. Running it twice without disk changes is a no-op.
func (e *Engine) SyncDirectory(ctx context.Context, key string, rebuild bool) (*SyncResult, error) {
	canonical, err := e.cfg.Normalize(key)
	if err != nil {
		return nil, err
	}
	dir, err := e.cfg.Dir(canonical)
	if err != nil {
		return nil, err
	}

	unlock, err := e.locker.Lock(ctx, canonical)
	if err != nil {
		return nil, err
	}
	defer unlock()

	// records first: a variant committed after this load is never a
	// removal candidate, even if its file lands after the listing
	known, err := e.images.Load(ctx, repository.Filter{VariantKey: canonical})
	if err != nil {
		return nil, err
	}
	names, err := storage.ListFiles(dir)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFileSystem, err)
	}
	claimed := make(map[string]bool, len(known))
	for i := range known {
		claimed[known[i].Filename] = true
	}
	present := make(map[string]bool, len(names))
	for _, name := range names {
		present[name] = true
	}

	result := &SyncResult{
		Key:       canonical,
		Added:     []SyncEntry{},
		Removed:   []SyncEntry{},
		Errors:    []ItemError{},
		Filenames: names,
	}

	for _, name := range names {
		if name == e.cfg.MissingFile || (claimed[name] && !rebuild) {
			continue
		}
		if err := ctx.Err(); err != nil {
			return result, err
		}
		img, err := e.register(ctx, canonical, filepath.Join(dir, name), name)
		if err != nil {
			log.Warnf("[ImageSync] Skipping %s/%s: %v", canonical, name, err)
			result.Errors = append(result.Errors, ItemError{Filename: name, Error: err.Error()})
			continue
		}
		result.Added = append(result.Added, SyncEntry{Filename: name, Image: img})
	}

	for i := range known {
		name := known[i].Filename
		if present[name] {
			continue
		}
		if err := ctx.Err(); err != nil {
			return result, err
		}
		img, err := e.images.RemoveVariant(ctx, name, canonical)
		if err != nil {
			result.Errors = append(result.Errors, ItemError{Filename: name, Error: err.Error()})
			continue
		}
		result.Removed = append(result.Removed, SyncEntry{Filename: name, Image: img})
	}

	log.Infof("[ImageSync] Synced %s: %d added, %d removed, %d errors, %d files",
		canonical, len(result.Added), len(result.Removed), len(result.Errors), len(names))
	return result, nil
}

func (e *Engine) register(ctx context.Context, key, path, filename string) (*models.ProductImage, error) {
	props, err := e.readProps(path)
	if err != nil {
		return nil, err
	}
	return e.images.AddVariant(ctx, filename, key, metaOf(props))
}

// SyncAll syncs every canonical key concurrently. A failing key is
// reported in its own result, the others still run.
func (e *Engine) SyncAll(ctx context.Context, rebuild bool) []*SyncResult {
	keys := e.cfg.Keys()
	results := make([]*SyncResult, len(keys))

	g := new(errgroup.Group)
	g.SetLimit(e.workers)
	for i, key := range keys {
		g.Go(func() error {
			res, err := e.SyncDirectory(ctx, key, rebuild)
			if res == nil {
				res = &SyncResult{Key: key, Added: []SyncEntry{}, Removed: []SyncEntry{}, Errors: []ItemError{}, Filenames: []string{}}
			}
			if err != nil {
				log.Errorf("[ImageSync] Sync of %s failed: %v", key, err)
				res.Error = err.Error()
			}
			results[i] = res
			return nil
		})
	}
	_ = g.Wait()
	return results
}
