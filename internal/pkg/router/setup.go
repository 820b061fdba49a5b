package router

import (
	"github.com/gofiber/fiber/v2"

	"github.com/ManuelReschke/productimages/app/controllers"
)

// Router registers a group of routes on the app
type Router interface {
	InstallRouter(app *fiber.App)
}

// Options tunes the public routes
type Options struct {
	// LookupRate is the number of lookups per minute and client, 0
	// disables the limiter.
	LookupRate int
	// LimiterStorage shares limiter counters between instances. Nil keeps
	// them in memory.
	LimiterStorage fiber.Storage
}

func InstallRouter(app *fiber.App, pc *controllers.ProductImageController, opts Options) {
	app.Get("/health", pc.HandleHealth)
	setup(app, NewPublicRouter(pc, opts), NewAdminRouter(pc))
}

func setup(app *fiber.App, router ...Router) {
	for _, r := range router {
		r.InstallRouter(app)
	}
}
