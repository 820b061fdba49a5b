package imageprocessor

import (
	"errors"
	"image/color"

	"github.com/disintegration/imaging"
)

// Format names as reported by image.DecodeConfig.
const (
	FormatJPEG = "jpeg"
	FormatPNG  = "png"
	FormatGIF  = "gif"
	FormatBMP  = "bmp"
	FormatTIFF = "tiff"
	FormatWebP = "webp"
)

// ErrUnsupportedFormat is returned when a decodable source cannot be
// re-encoded in its own format.
var ErrUnsupportedFormat = errors.New("unsupported output format")

var encoders = map[string]imaging.Format{
	FormatJPEG: imaging.JPEG,
	FormatPNG:  imaging.PNG,
	FormatGIF:  imaging.GIF,
	FormatBMP:  imaging.BMP,
	FormatTIFF: imaging.TIFF,
}

var (
	// png sources keep a see-through margin
	transparentWhite = color.NRGBA{R: 255, G: 255, B: 255, A: 0}
	opaqueWhite      = color.NRGBA{R: 255, G: 255, B: 255, A: 255}
)

// BackgroundFor returns the fill colour used around a contained image.
func BackgroundFor(format string) color.NRGBA {
	if format == FormatPNG {
		return transparentWhite
	}
	return opaqueWhite
}

// CanEncode reports whether variants can be generated from format.
func CanEncode(format string) bool {
	_, ok := encoders[format]
	return ok
}
