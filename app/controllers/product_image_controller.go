package controllers

import (
	"context"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"

	"github.com/ManuelReschke/productimages/internal/pkg/imagesync"
	"github.com/ManuelReschke/productimages/internal/pkg/jobqueue"
	"github.com/ManuelReschke/productimages/internal/pkg/lookup"
	"github.com/ManuelReschke/productimages/internal/pkg/statistics"
	"github.com/ManuelReschke/productimages/internal/pkg/storage"
)

// JobScheduler is the part of the job queue manager used by the api.
type JobScheduler interface {
	EnqueueSyncAll(ctx context.Context, rebuild bool) (*jobqueue.Job, error)
	EnqueueSyncDirectory(ctx context.Context, key string, rebuild bool) (*jobqueue.Job, error)
	EnqueueRebuild(ctx context.Context, from, to string) (*jobqueue.Job, error)
	EnqueueBackup(ctx context.Context, key, filename string) error
	EnqueueBackupDelete(ctx context.Context, filename string, keys []string) error
	GetJob(ctx context.Context, id string) (*jobqueue.Job, error)
}

// LookupCounter records public lookups per variant key
type LookupCounter interface {
	Hit(ctx context.Context, key string, found bool) error
	Totals(ctx context.Context) (map[string]int64, error)
	Drain(ctx context.Context) (map[string]int64, error)
}

// ProductImageController serves the public lookup and the admin api
type ProductImageController struct {
	engine   *imagesync.Engine
	resolver *lookup.Resolver
	jobs     JobScheduler
	stats    *statistics.Service
	lookups  LookupCounter
}

// NewProductImageController creates the controller. jobs may be nil, the
// async routes then answer 503 and no backups are scheduled.
func NewProductImageController(engine *imagesync.Engine, resolver *lookup.Resolver, jobs JobScheduler) *ProductImageController {
	return &ProductImageController{
		engine:   engine,
		resolver: resolver,
		jobs:     jobs,
		stats:    statistics.NewService(engine.Images(), nil),
	}
}

// WithStatistics replaces the in-memory statistics service
func (pc *ProductImageController) WithStatistics(s *statistics.Service) *ProductImageController {
	pc.stats = s
	return pc
}

// WithLookupCounter enables counting of public lookups
func (pc *ProductImageController) WithLookupCounter(c LookupCounter) *ProductImageController {
	pc.lookups = c
	return pc
}

func (pc *ProductImageController) count(c *fiber.Ctx, res lookup.Resolution) {
	if pc.lookups == nil {
		return
	}
	if err := pc.lookups.Hit(c.UserContext(), res.Key, res.Found); err != nil {
		log.Warnf("[API] Failed to count lookup: %v", err)
	}
}

// HandleHealth reports every variant directory. Any unusable directory
// turns the answer into a 503.
func (pc *ProductImageController) HandleHealth(c *fiber.Ctx) error {
	cfg := pc.engine.Config()
	dirs := make([]storage.DirHealth, 0, len(cfg.Keys()))
	healthy := true
	for _, key := range cfg.Keys() {
		dir, err := cfg.Dir(key)
		if err != nil {
			return respondError(c, err)
		}
		h := storage.CheckDir(key, dir)
		healthy = healthy && h.Healthy
		dirs = append(dirs, h)
	}

	status := fiber.StatusOK
	state := "ok"
	if !healthy {
		status = fiber.StatusServiceUnavailable
		state = "degraded"
	}
	return c.Status(status).JSON(fiber.Map{"status": state, "dirs": dirs})
}

// HandleFind returns the resolution of one item as json
func (pc *ProductImageController) HandleFind(c *fiber.Ctx) error {
	res := pc.resolver.ResolveForItem(c.UserContext(), c.Params("itemCode"), c.Params("size"))
	pc.count(c, res)
	return c.JSON(res)
}

type findListRequest struct {
	ItemCodes []string `json:"item_codes" validate:"required,min=1,max=500"`
}

// HandleFindList resolves many items at one size
func (pc *ProductImageController) HandleFindList(c *fiber.Ctx) error {
	var req findListRequest
	if err := parseBody(c, &req); err != nil {
		return respondError(c, err)
	}
	list, err := pc.resolver.FindImageList(c.UserContext(), req.ItemCodes, c.Params("size"))
	if err != nil {
		return respondError(c, err)
	}
	for _, res := range list {
		pc.count(c, res)
	}
	return c.JSON(list)
}

// HandleImage redirects to the web path of the resolved file
func (pc *ProductImageController) HandleImage(c *fiber.Ctx) error {
	res := pc.resolver.ResolveForItem(c.UserContext(), c.Params("itemCode"), c.Params("size"))
	pc.count(c, res)
	return c.Redirect(res.WebPath, fiber.StatusFound)
}
