// Package imagesync keeps the variant directories on disk and the product
// image metadata store in agreement. It owns ingest, reconciliation,
// rebuilds and the record mutations that clients trigger.
package imagesync

import (
	"context"
	"errors"
	"runtime"

	"github.com/ManuelReschke/productimages/app/models"
	"github.com/ManuelReschke/productimages/app/repository"
	"github.com/ManuelReschke/productimages/internal/pkg/imageprocessor"
	"github.com/ManuelReschke/productimages/internal/pkg/variants"
)

// ErrFileSystem wraps every failure to move, list or remove a file.
var ErrFileSystem = errors.New("filesystem error")

var (
	// ErrInvalidTag is returned for blank tags.
	ErrInvalidTag = errors.New("invalid tag")
	// ErrInvalidItemCode is returned for blank item codes.
	ErrInvalidItemCode = errors.New("invalid item code")
)

// VariantGenerator writes one resized variant of srcPath to dstPath.
type VariantGenerator interface {
	Generate(ctx context.Context, srcPath string, box imageprocessor.Box, dstPath string) (imageprocessor.VariantResult, error)
}

// PropertyReader reads the measured properties of an image file.
type PropertyReader func(path string) (imageprocessor.Properties, error)

// Engine coordinates the file layout, the generator and the repositories.
type Engine struct {
	cfg       *variants.Config
	images    repository.ImageRepository
	assoc     repository.AssociationRepository
	gen       VariantGenerator
	readProps PropertyReader
	locker    SyncLocker
	workers   int
}

// Option configures an Engine.
type Option func(*Engine)

// WithLocker replaces the in-process directory lock, e.g. with a redis
// lock shared by several instances.
func WithLocker(l SyncLocker) Option {
	return func(e *Engine) {
		if l != nil {
			e.locker = l
		}
	}
}

// WithWorkers limits how many variants are generated at once.
func WithWorkers(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.workers = n
		}
	}
}

// WithPropertyReader replaces imageprocessor.ReadProperties.
func WithPropertyReader(r PropertyReader) Option {
	return func(e *Engine) {
		if r != nil {
			e.readProps = r
		}
	}
}

// New creates an engine. cfg must already be validated.
func New(cfg *variants.Config, repos *repository.Repositories, gen VariantGenerator, opts ...Option) *Engine {
	e := &Engine{
		cfg:       cfg,
		images:    repos.Image,
		assoc:     repos.Association,
		gen:       gen,
		readProps: imageprocessor.ReadProperties,
		locker:    NewLocalLocker(),
		workers:   runtime.NumCPU(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Config returns the variant layout the engine works on.
func (e *Engine) Config() *variants.Config {
	return e.cfg
}

// Images returns the metadata store.
func (e *Engine) Images() repository.ImageRepository {
	return e.images
}

func metaOf(p imageprocessor.Properties) models.VariantMeta {
	return models.VariantMeta{
		Width:      p.Width,
		Height:     p.Height,
		Size:       p.Size,
		ColorSpace: p.ColorSpace,
		Format:     p.Format,
	}
}

func metaOfResult(r imageprocessor.VariantResult) models.VariantMeta {
	return models.VariantMeta{
		Width:      r.Width,
		Height:     r.Height,
		Size:       r.Size,
		ColorSpace: r.ColorSpace,
		Format:     r.Format,
	}
}
