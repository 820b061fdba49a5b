package imageprocessor

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"os"

	"github.com/disintegration/imaging"
	"github.com/gofiber/fiber/v2/log"

	"github.com/ManuelReschke/productimages/internal/pkg/storage"
)

const DefaultJPEGQuality = 90

// Box is the bounding box a variant must fit in.
type Box struct {
	Width  int
	Height int
}

// Square returns a size×size box.
func Square(size int) Box {
	return Box{Width: size, Height: size}
}

// VariantResult describes the encoded output as it was written.
type VariantResult struct {
	Width      int    `json:"width"`
	Height     int    `json:"height"`
	Size       int64  `json:"size"`
	Format     string `json:"format"`
	ColorSpace string `json:"color_space"`
}

// Generator produces contained, shrink-only variants.
type Generator struct {
	JPEGQuality int
	Filter      imaging.ResampleFilter
}

// NewGenerator returns a generator with the default quality settings.
func NewGenerator() *Generator {
	return &Generator{
		JPEGQuality: DefaultJPEGQuality,
		Filter:      imaging.Lanczos,
	}
}

// Generate reads srcPath once, fits it into box and writes the result to
// dstPath in the source format. Nothing is written on failure.
func (g *Generator) Generate(ctx context.Context, srcPath string, box Box, dstPath string) (VariantResult, error) {
	if err := ctx.Err(); err != nil {
		return VariantResult{}, err
	}
	if box.Width <= 0 || box.Height <= 0 {
		return VariantResult{}, fmt.Errorf("invalid box %dx%d", box.Width, box.Height)
	}

	data, err := os.ReadFile(srcPath)
	if err != nil {
		return VariantResult{}, fmt.Errorf("%w: %s: %v", ErrImageDecode, srcPath, err)
	}

	_, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return VariantResult{}, fmt.Errorf("%w: %s: %v", ErrImageDecode, srcPath, err)
	}
	encFormat, ok := encoders[format]
	if !ok {
		return VariantResult{}, fmt.Errorf("%w: %s (%s)", ErrUnsupportedFormat, format, srcPath)
	}

	src, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return VariantResult{}, fmt.Errorf("%w: %s: %v", ErrImageDecode, srcPath, err)
	}

	out := g.contain(src, box, BackgroundFor(format))

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, out, encFormat, imaging.JPEGQuality(g.quality())); err != nil {
		return VariantResult{}, fmt.Errorf("failed to encode %s: %w", srcPath, err)
	}

	// measure what the encoder produced rather than what was asked for
	props, err := readBufferProperties(buf.Bytes())
	if err != nil {
		return VariantResult{}, fmt.Errorf("failed to read encoded variant of %s: %w", srcPath, err)
	}

	if err := ctx.Err(); err != nil {
		return VariantResult{}, err
	}
	if err := storage.WriteFileAtomic(dstPath, buf.Bytes()); err != nil {
		return VariantResult{}, err
	}

	log.Debugf("[ImageProcessor] Wrote %s (%dx%d, %d bytes)", dstPath, props.Width, props.Height, props.Size)
	return VariantResult{
		Width:      props.Width,
		Height:     props.Height,
		Size:       props.Size,
		Format:     props.Format,
		ColorSpace: props.ColorSpace,
	}, nil
}

// contain never enlarges. Sources that already fit pass through untouched;
// larger ones are fitted and centred on a box-sized canvas.
func (g *Generator) contain(src image.Image, box Box, bg color.Color) image.Image {
	b := src.Bounds()
	if b.Dx() <= box.Width && b.Dy() <= box.Height {
		return src
	}

	fitted := imaging.Fit(src, box.Width, box.Height, g.Filter)
	canvas := imaging.New(box.Width, box.Height, bg)
	return imaging.PasteCenter(canvas, fitted)
}

func (g *Generator) quality() int {
	if g.JPEGQuality <= 0 || g.JPEGQuality > 100 {
		return DefaultJPEGQuality
	}
	return g.JPEGQuality
}
