package controllers

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"

	"github.com/ManuelReschke/productimages/app/repository"
	"github.com/ManuelReschke/productimages/internal/pkg/imageprocessor"
	"github.com/ManuelReschke/productimages/internal/pkg/imagesync"
	"github.com/ManuelReschke/productimages/internal/pkg/jobqueue"
	"github.com/ManuelReschke/productimages/internal/pkg/lookup"
	"github.com/ManuelReschke/productimages/internal/pkg/upload"
	"github.com/ManuelReschke/productimages/internal/pkg/variants"
)

var errInvalidRequest = errors.New("invalid request")

// errNoQueue is returned by the async routes when redis is not available.
var errNoQueue = errors.New("job queue is not available")

var validate = validator.New()

// errorStatus maps package sentinels to http status codes
func errorStatus(err error) int {
	switch {
	case errors.Is(err, repository.ErrImageNotFound),
		errors.Is(err, jobqueue.ErrJobNotFound):
		return fiber.StatusNotFound
	case errors.Is(err, repository.ErrStoreWriteConflict),
		errors.Is(err, repository.ErrItemCodeMismatch):
		return fiber.StatusConflict
	case errors.Is(err, imageprocessor.ErrImageDecode):
		return fiber.StatusUnprocessableEntity
	case errors.Is(err, errNoQueue):
		return fiber.StatusServiceUnavailable
	case errors.Is(err, errInvalidRequest),
		errors.Is(err, variants.ErrInvalidVariantKey),
		errors.Is(err, variants.ErrInvalidFilename),
		errors.Is(err, lookup.ErrInvalidSize),
		errors.Is(err, imagesync.ErrInvalidTag),
		errors.Is(err, imagesync.ErrInvalidItemCode),
		errors.Is(err, upload.ErrUploadTransport),
		errors.Is(err, upload.ErrInvalidFilename),
		errors.Is(err, upload.ErrUnsupportedType),
		errors.Is(err, upload.ErrScriptContent),
		errors.Is(err, upload.ErrSVGContent):
		return fiber.StatusBadRequest
	}
	return fiber.StatusInternalServerError
}

func respondError(c *fiber.Ctx, err error) error {
	status := errorStatus(err)
	if status == fiber.StatusInternalServerError {
		log.Errorf("[API] %s %s: %v", c.Method(), c.Path(), err)
	}
	return c.Status(status).JSON(fiber.Map{"error": err.Error()})
}

// parseBody decodes the json body into out and validates its tags
func parseBody(c *fiber.Ctx, out interface{}) error {
	if err := c.BodyParser(out); err != nil {
		return fmt.Errorf("%w: %v", errInvalidRequest, err)
	}
	if err := validate.Struct(out); err != nil {
		return fmt.Errorf("%w: %v", errInvalidRequest, err)
	}
	return nil
}

// queryFlag reads ?name=1 style switches
func queryFlag(c *fiber.Ctx, name string) bool {
	switch strings.ToLower(c.Query(name)) {
	case "1", "true", "yes", "on":
		return true
	}
	return false
}

// queryBool reads an optional tri-state boolean
func queryBool(c *fiber.Ctx, name string) (*bool, error) {
	raw := c.Query(name)
	if raw == "" {
		return nil, nil
	}
	b, err := strconv.ParseBool(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %s=%q", errInvalidRequest, name, raw)
	}
	return &b, nil
}

// splitList reads a comma separated query value
func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
