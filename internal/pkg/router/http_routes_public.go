package router

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"

	"github.com/ManuelReschke/productimages/app/controllers"
)

// PublicRouter serves the item lookups used by the shop frontends
type PublicRouter struct {
	pc   *controllers.ProductImageController
	opts Options
}

func NewPublicRouter(pc *controllers.ProductImageController, opts Options) *PublicRouter {
	return &PublicRouter{pc: pc, opts: opts}
}

func (r PublicRouter) InstallRouter(app *fiber.App) {
	var handlers []fiber.Handler
	if r.opts.LookupRate > 0 {
		handlers = append(handlers, limiter.New(limiter.Config{
			Max:        r.opts.LookupRate,
			Expiration: time.Minute,
			Storage:    r.opts.LimiterStorage,
			LimitReached: func(c *fiber.Ctx) error {
				return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{"error": "too many requests"})
			},
		}))
	}

	products := app.Group("/products", handlers...)
	products.Get("/find/:size/:itemCode", r.pc.HandleFind)
	products.Post("/find/:size", r.pc.HandleFindList)
	products.Get("/image/:size/:itemCode", r.pc.HandleImage)
}
