// Package app wires the configured components together for the server and
// the operator cli.
package app

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/gofiber/fiber/v2/log"

	"github.com/ManuelReschke/productimages/app/repository"
	"github.com/ManuelReschke/productimages/internal/pkg/cache"
	"github.com/ManuelReschke/productimages/internal/pkg/config"
	"github.com/ManuelReschke/productimages/internal/pkg/database"
	"github.com/ManuelReschke/productimages/internal/pkg/env"
	"github.com/ManuelReschke/productimages/internal/pkg/imageprocessor"
	"github.com/ManuelReschke/productimages/internal/pkg/imagesync"
	"github.com/ManuelReschke/productimages/internal/pkg/lookup"
	"github.com/ManuelReschke/productimages/internal/pkg/s3backup"
)

// lockTTL bounds a directory sync lock held by a crashed instance
const lockTTL = 15 * time.Minute

// Services are the shared components of one process
type Services struct {
	Config   *config.AppConfig
	Repos    *repository.Repositories
	Engine   *imagesync.Engine
	Resolver *lookup.Resolver
	// Backup is nil unless S3_BACKUP_ENABLED is set
	Backup *s3backup.Client
	// Redis reports whether the cache answered at startup
	Redis bool
}

// Bootstrap loads the environment, connects the database and the cache
// and builds the engine.
func Bootstrap(ctx context.Context) (*Services, error) {
	env.SetupEnvFile()

	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if err := EnsureDirs(cfg); err != nil {
		return nil, err
	}

	db, err := database.SetupDatabase()
	if err != nil {
		return nil, err
	}
	repository.InitializeFactory(db)
	repos, err := repository.GlobalRepositories()
	if err != nil {
		return nil, err
	}

	opts := []imagesync.Option{imagesync.WithWorkers(cfg.Workers)}
	redisUp := cache.Available()
	if redisUp {
		opts = append(opts, imagesync.WithLocker(cache.NewRedisLocker(cache.GetClient(), "productimages", lockTTL)))
	} else {
		log.Warn("[App] Redis unavailable, directory syncs are only serialized within this process")
	}

	s := &Services{
		Config:   cfg,
		Repos:    repos,
		Engine:   imagesync.New(cfg.Variants, repos, imageprocessor.NewGenerator(), opts...),
		Resolver: lookup.NewResolver(cfg.Variants, repos.Image),
		Redis:    redisUp,
	}

	s3cfg, err := s3backup.LoadConfig()
	if err != nil {
		return nil, err
	}
	if s3cfg.IsEnabled() {
		if s.Backup, err = s3backup.NewClient(ctx, s3cfg); err != nil {
			return nil, fmt.Errorf("failed to set up s3 backup: %w", err)
		}
	}
	return s, nil
}

// EnsureDirs creates every variant directory and the staging directory
func EnsureDirs(cfg *config.AppConfig) error {
	for _, key := range cfg.Variants.Keys() {
		dir, err := cfg.Variants.Dir(key)
		if err != nil {
			return err
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("%w: %v", imagesync.ErrFileSystem, err)
		}
	}
	if err := os.MkdirAll(cfg.Variants.UploadDir, 0o755); err != nil {
		return fmt.Errorf("%w: %v", imagesync.ErrFileSystem, err)
	}
	return nil
}
