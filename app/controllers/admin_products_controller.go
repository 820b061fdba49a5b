package controllers

import (
	"fmt"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"

	"github.com/ManuelReschke/productimages/app/repository"
	"github.com/ManuelReschke/productimages/internal/pkg/imagesync"
	"github.com/ManuelReschke/productimages/internal/pkg/upload"
)

// HandleListAll returns the records matching the query filters
func (pc *ProductImageController) HandleListAll(c *fiber.Ctx) error {
	active, err := queryBool(c, "active")
	if err != nil {
		return respondError(c, err)
	}
	filter := repository.Filter{
		ItemCode:        c.Query("item_code"),
		ItemCodes:       splitList(c.Query("item_codes")),
		ItemCodePattern: c.Query("pattern"),
		Active:          active,
		PreferredOnly:   queryFlag(c, "preferred"),
		Category:        c.Query("category"),
		Collection:      c.Query("collection"),
		ProductLine:     c.Query("product_line"),
		BaseSKU:         c.Query("base_sku"),
	}
	if key := c.Query("key"); key != "" {
		if filter.VariantKey, err = pc.engine.Config().Normalize(key); err != nil {
			return respondError(c, err)
		}
	}

	images, err := pc.engine.Images().Load(c.UserContext(), filter)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(images)
}

// HandleListSize returns the raw file listing of a variant directory
func (pc *ProductImageController) HandleListSize(c *fiber.Ctx) error {
	files, err := pc.resolver.List(c.Params("size"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"size": c.Params("size"), "files": files})
}

// HandleGetProps returns the record plus what is actually on disk
func (pc *ProductImageController) HandleGetProps(c *fiber.Ctx) error {
	filename := c.Params("filename")
	img, err := pc.engine.Images().Get(c.UserContext(), filename)
	if err != nil {
		return respondError(c, err)
	}
	files, err := pc.resolver.Properties(c.UserContext(), filename)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"image": img, "files": files})
}

type propsRequest struct {
	Notes  *string  `json:"notes" validate:"omitempty,max=65535"`
	Tags   []string `json:"tags" validate:"omitempty,max=100,dive,max=64"`
	Active *bool    `json:"active"`
}

// HandleUpdateProps applies a partial update of notes, tags and active
func (pc *ProductImageController) HandleUpdateProps(c *fiber.Ctx) error {
	var req propsRequest
	if err := parseBody(c, &req); err != nil {
		return respondError(c, err)
	}
	img, err := pc.engine.UpdateProps(c.UserContext(), c.Params("filename"), repository.Props{
		Notes:  req.Notes,
		Tags:   req.Tags,
		Active: req.Active,
	})
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(img)
}

// HandleSyncAll reconciles every variant directory in the request
func (pc *ProductImageController) HandleSyncAll(c *fiber.Ctx) error {
	results := pc.engine.SyncAll(c.UserContext(), queryFlag(c, "rebuild"))
	for _, res := range results {
		pc.scheduleSyncBackups(c, res)
	}
	return c.JSON(results)
}

// HandleSync reconciles one variant directory
func (pc *ProductImageController) HandleSync(c *fiber.Ctx) error {
	res, err := pc.engine.SyncDirectory(c.UserContext(), c.Params("key"), queryFlag(c, "rebuild"))
	if err != nil {
		return respondError(c, err)
	}
	pc.scheduleSyncBackups(c, res)
	return c.JSON(res)
}

// HandleResize builds the :to variant from :from. ?test=1 only lists the
// candidates.
func (pc *ProductImageController) HandleResize(c *fiber.Ctx) error {
	res, err := pc.engine.RebuildVariant(c.UserContext(), c.Params("from"), c.Params("to"),
		imagesync.RebuildOptions{DryRun: queryFlag(c, "test")})
	if err != nil {
		return respondError(c, err)
	}
	if !res.DryRun {
		for _, img := range res.Images {
			pc.scheduleBackup(c, res.To, img.Filename)
		}
	}
	return c.JSON(res)
}

// HandleGetAltItems lists the alternate item codes of a file
func (pc *ProductImageController) HandleGetAltItems(c *fiber.Ctx) error {
	rows, err := pc.engine.AltItems(c.UserContext(), c.Params("filename"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(rows)
}

type itemFilesRequest struct {
	ItemCode  string   `json:"item_code" validate:"max=64"`
	Filenames []string `json:"filenames" validate:"required,min=1,dive,required"`
}

// HandleAddAltItem links one item code to many files
func (pc *ProductImageController) HandleAddAltItem(c *fiber.Ctx) error {
	var req itemFilesRequest
	if err := parseBody(c, &req); err != nil {
		return respondError(c, err)
	}
	rows, err := pc.engine.AddAltItemToFilenames(c.UserContext(), req.ItemCode, req.Filenames)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(rows)
}

// HandleRemoveAltItem unlinks an item code from a file
func (pc *ProductImageController) HandleRemoveAltItem(c *fiber.Ctx) error {
	rows, err := pc.engine.RemoveAltItem(c.UserContext(), c.Params("filename"), c.Params("itemCode"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(rows)
}

type altItemActiveRequest struct {
	Filename string `json:"filename" validate:"required"`
	ItemCode string `json:"item_code" validate:"required,max=64"`
	Active   *bool  `json:"active" validate:"required"`
}

// HandleSetAltItemActive toggles one association
func (pc *ProductImageController) HandleSetAltItemActive(c *fiber.Ctx) error {
	var req altItemActiveRequest
	if err := parseBody(c, &req); err != nil {
		return respondError(c, err)
	}
	rows, err := pc.engine.SetAltItemActive(c.UserContext(), req.Filename, req.ItemCode, *req.Active)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(rows)
}

// HandleSetItem assigns the primary item code of many files. An empty
// item code clears it.
func (pc *ProductImageController) HandleSetItem(c *fiber.Ctx) error {
	var req itemFilesRequest
	if err := parseBody(c, &req); err != nil {
		return respondError(c, err)
	}
	return c.JSON(pc.engine.ApplyItemCode(c.UserContext(), req.ItemCode, req.Filenames))
}

type preferredRequest struct {
	Filename string `json:"filename" validate:"required"`
	ItemCode string `json:"item_code" validate:"required,max=64"`
}

// HandleSetPreferred makes a file the preferred image of its item
func (pc *ProductImageController) HandleSetPreferred(c *fiber.Ctx) error {
	var req preferredRequest
	if err := parseBody(c, &req); err != nil {
		return respondError(c, err)
	}
	img, err := pc.engine.SetPreferred(c.UserContext(), req.Filename, req.ItemCode)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(img)
}

type activeRequest struct {
	Filename string `json:"filename" validate:"required"`
	Active   *bool  `json:"active" validate:"required"`
}

// HandleSetActive toggles the active flag of a file
func (pc *ProductImageController) HandleSetActive(c *fiber.Ctx) error {
	var req activeRequest
	if err := parseBody(c, &req); err != nil {
		return respondError(c, err)
	}
	img, err := pc.engine.SetActive(c.UserContext(), req.Filename, *req.Active)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(img)
}

type tagFilesRequest struct {
	Tag       string   `json:"tag" validate:"required,max=64"`
	Filenames []string `json:"filenames" validate:"required,min=1,dive,required"`
}

// HandleTag adds a tag to many files
func (pc *ProductImageController) HandleTag(c *fiber.Ctx) error {
	var req tagFilesRequest
	if err := parseBody(c, &req); err != nil {
		return respondError(c, err)
	}
	res, err := pc.engine.TagImages(c.UserContext(), req.Tag, req.Filenames)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(res)
}

type untagRequest struct {
	Tag      string `json:"tag" validate:"required,max=64"`
	Filename string `json:"filename" validate:"required"`
}

// HandleUntag removes a tag from one file
func (pc *ProductImageController) HandleUntag(c *fiber.Ctx) error {
	var req untagRequest
	if err := parseBody(c, &req); err != nil {
		return respondError(c, err)
	}
	img, err := pc.engine.RemoveTag(c.UserContext(), req.Filename, req.Tag)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(img)
}

// HandleDelete removes every variant file and the record
func (pc *ProductImageController) HandleDelete(c *fiber.Ctx) error {
	ctx := c.UserContext()
	filename := c.Params("filename")
	img, err := pc.engine.Images().Get(ctx, filename)
	if err != nil {
		return respondError(c, err)
	}
	keys := img.VariantKeys()

	if err := pc.engine.DeleteImage(ctx, filename); err != nil {
		return respondError(c, err)
	}
	if pc.jobs != nil {
		if err := pc.jobs.EnqueueBackupDelete(ctx, filename, keys); err != nil {
			log.Warnf("[API] Failed to schedule backup removal of %s: %v", filename, err)
		}
	}
	return c.JSON(fiber.Map{"deleted": filename, "keys": keys})
}

// HandleUpload stages the multipart field "image" and ingests it. The
// optional form value "filename" overrides the uploaded name.
func (pc *ProductImageController) HandleUpload(c *fiber.Ctx) error {
	fh, err := c.FormFile("image")
	if err != nil {
		return respondError(c, fmt.Errorf("%w: %v", upload.ErrUploadTransport, err))
	}

	cfg := pc.engine.Config()
	staged, err := upload.Stage(fh, cfg.UploadDir)
	if err != nil {
		return respondError(c, err)
	}
	defer staged.Remove()

	name := staged.Filename
	if override := c.FormValue("filename"); override != "" {
		if name, err = upload.SanitizeFilename(override); err != nil {
			return respondError(c, err)
		}
	}

	res, err := pc.engine.Ingest(c.UserContext(), staged.Path, name)
	if err != nil {
		return respondError(c, err)
	}
	for _, key := range res.Image.VariantKeys() {
		pc.scheduleBackup(c, key, name)
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"upload": staged, "result": res})
}

func (pc *ProductImageController) scheduleSyncBackups(c *fiber.Ctx, res *imagesync.SyncResult) {
	if res == nil || res.Error != "" {
		return
	}
	for _, e := range res.Added {
		if e.Error == "" {
			pc.scheduleBackup(c, res.Key, e.Filename)
		}
	}
	if pc.jobs == nil {
		return
	}
	for _, e := range res.Removed {
		if err := pc.jobs.EnqueueBackupDelete(c.UserContext(), e.Filename, []string{res.Key}); err != nil {
			log.Warnf("[API] Failed to schedule backup removal of %s/%s: %v", res.Key, e.Filename, err)
		}
	}
}

func (pc *ProductImageController) scheduleBackup(c *fiber.Ctx, key, filename string) {
	if pc.jobs == nil {
		return
	}
	if err := pc.jobs.EnqueueBackup(c.UserContext(), key, filename); err != nil {
		log.Warnf("[API] Failed to schedule backup of %s/%s: %v", key, filename, err)
	}
}
