package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/monitor"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/ManuelReschke/productimages/app/controllers"
	"github.com/ManuelReschke/productimages/internal/pkg/app"
	"github.com/ManuelReschke/productimages/internal/pkg/cache"
	"github.com/ManuelReschke/productimages/internal/pkg/jobqueue"
	"github.com/ManuelReschke/productimages/internal/pkg/metrics/counter"
	"github.com/ManuelReschke/productimages/internal/pkg/router"
	"github.com/ManuelReschke/productimages/internal/pkg/statistics"
	"github.com/ManuelReschke/productimages/internal/pkg/watcher"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	svc, err := app.Bootstrap(ctx)
	if err != nil {
		log.Fatal(err)
	}

	var jobs controllers.JobScheduler
	var manager *jobqueue.Manager
	if svc.Redis {
		queue := jobqueue.NewQueue(cache.GetClient(), svc.Config.Workers)
		var backup jobqueue.Backup
		if svc.Backup != nil {
			backup = svc.Backup
		}
		queue.SetProcessor(jobqueue.NewJobProcessor(svc.Engine, svc.Config.Variants, backup, queue))
		manager = jobqueue.NewManager(queue, svc.Config.SyncInterval)
		manager.Start()
		defer manager.Stop()
		jobs = manager
	}

	if svc.Config.Watch {
		w, err := watcher.New(svc.Config.Variants, syncTrigger(svc, manager), watcher.DefaultDebounce)
		if err != nil {
			log.Fatal(err)
		}
		w.Start(ctx)
		defer w.Close()
	}

	application := NewApplication(svc, jobs)
	go func() {
		if err := application.Listen(svc.Config.Addr()); err != nil {
			log.Errorf("[Server] %v", err)
			stop()
		}
	}()

	<-ctx.Done()
	log.Info("[Server] Shutting down")
	if err := application.ShutdownWithTimeout(10 * time.Second); err != nil {
		log.Errorf("[Server] Shutdown failed: %v", err)
	}
}

// NewApplication builds the fiber app with every route installed
func NewApplication(svc *app.Services, jobs controllers.JobScheduler) *fiber.App {
	application := fiber.New(fiber.Config{
		BodyLimit:    100 << 20,
		UnescapePath: true,
	})

	// recovery and logging
	application.Use(recover.New(), logger.New())

	// fiber metrics
	application.Get("/metrics", monitor.New())

	// variant files are served by the web server in front, this is for local use
	application.Static("/images/products", svc.Config.Variants.Base, fiber.Static{
		CacheDuration: 10 * time.Second,
		MaxAge:        604800, // 7 days
	})

	pc := controllers.NewProductImageController(svc.Engine, svc.Resolver, jobs)

	var limiterStorage fiber.Storage
	if svc.Redis {
		limiterStorage = router.NewLimiterStorage(cache.GetClient())
		pc.WithStatistics(statistics.NewService(svc.Repos.Image, cache.Store{})).
			WithLookupCounter(counter.New(cache.GetClient()))
	}

	router.InstallRouter(application, pc, router.Options{
		LookupRate:     svc.Config.LookupRate,
		LimiterStorage: limiterStorage,
	})
	return application
}

// syncTrigger runs watcher syncs through the queue when there is one
func syncTrigger(svc *app.Services, manager *jobqueue.Manager) watcher.TriggerFunc {
	return func(ctx context.Context, key string) {
		if manager != nil {
			if _, err := manager.EnqueueSyncDirectory(ctx, key, false); err != nil {
				log.Errorf("[Watcher] Failed to enqueue sync of %s: %v", key, err)
			}
			return
		}
		res, err := svc.Engine.SyncDirectory(ctx, key, false)
		if err != nil {
			log.Errorf("[Watcher] Sync of %s failed: %v", key, err)
			return
		}
		log.Infof("[Watcher] Synced %s: %d added, %d removed", key, len(res.Added), len(res.Removed))
	}
}
