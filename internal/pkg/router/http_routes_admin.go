package router

import (
	"github.com/gofiber/fiber/v2"

	"github.com/ManuelReschke/productimages/app/controllers"
)

// AdminRouter serves the maintenance api under /admin/products
type AdminRouter struct {
	pc *controllers.ProductImageController
}

func NewAdminRouter(pc *controllers.ProductImageController) *AdminRouter {
	return &AdminRouter{pc: pc}
}

func (r AdminRouter) InstallRouter(app *fiber.App) {
	adminGroup := app.Group("/admin/products")

	// Listings and properties
	adminGroup.Get("/stats", r.pc.HandleStats)
	adminGroup.Get("/list/all", r.pc.HandleListAll)
	adminGroup.Get("/list/:size", r.pc.HandleListSize)
	adminGroup.Get("/props/:filename", r.pc.HandleGetProps)
	adminGroup.Put("/props/:filename", r.pc.HandleUpdateProps)

	// Reconciliation
	adminGroup.Post("/sync/all", r.pc.HandleSyncAll)
	adminGroup.Post("/sync/:key", r.pc.HandleSync)
	adminGroup.Post("/resize/:from/:to", r.pc.HandleResize)

	// Alternate item codes
	adminGroup.Get("/alt-item/:filename", r.pc.HandleGetAltItems)
	adminGroup.Post("/alt-item", r.pc.HandleAddAltItem)
	adminGroup.Put("/alt-item/active", r.pc.HandleSetAltItemActive)
	adminGroup.Delete("/alt-item/:filename/:itemCode", r.pc.HandleRemoveAltItem)

	// Assignment, flags and tags
	adminGroup.Post("/set-item", r.pc.HandleSetItem)
	adminGroup.Post("/preferred", r.pc.HandleSetPreferred)
	adminGroup.Post("/active", r.pc.HandleSetActive)
	adminGroup.Post("/tag", r.pc.HandleTag)
	adminGroup.Delete("/tag", r.pc.HandleUntag)

	// Upload and delete
	adminGroup.Post("/upload", r.pc.HandleUpload)

	// Background jobs
	adminGroup.Post("/jobs/sync/all", r.pc.HandleEnqueueSyncAll)
	adminGroup.Post("/jobs/sync/:key", r.pc.HandleEnqueueSync)
	adminGroup.Post("/jobs/resize/:from/:to", r.pc.HandleEnqueueResize)
	adminGroup.Get("/jobs/:id", r.pc.HandleGetJob)

	// must stay last, it matches every single segment
	adminGroup.Delete("/:filename", r.pc.HandleDelete)
}
