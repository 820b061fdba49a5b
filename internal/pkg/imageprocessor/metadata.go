package imageprocessor

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"
	"io"
	"os"

	"github.com/rwcarlsen/goexif/exif"
	"github.com/rwcarlsen/goexif/mknote"

	// decoders beyond the ones imaging registers
	_ "golang.org/x/image/webp"
)

func init() {
	// Register Nikon and Canon maker notes
	exif.RegisterParsers(mknote.All...)
}

// ErrImageDecode is returned for files that are unreadable or not a raster
// image in a supported format.
var ErrImageDecode = errors.New("image decode failed")

// Colour space names as stored per variant.
const (
	ColorSpaceSRGB         = "srgb"
	ColorSpaceGray         = "b-w"
	ColorSpaceCMYK         = "cmyk"
	ColorSpaceUncalibrated = "uncalibrated"
)

// exifColorSpaceUncalibrated is the EXIF ColorSpace value for anything but sRGB.
const exifColorSpaceUncalibrated = 0xFFFF

// Properties are read off an existing file without resizing it.
type Properties struct {
	Width      int    `json:"width"`
	Height     int    `json:"height"`
	Size       int64  `json:"size"`
	Format     string `json:"format"`
	ColorSpace string `json:"color_space"`
	HasAlpha   bool   `json:"has_alpha"`
}

// ReadProperties decodes only the header of the image at path.
func ReadProperties(path string) (Properties, error) {
	f, err := os.Open(path)
	if err != nil {
		return Properties{}, fmt.Errorf("%w: %s: %v", ErrImageDecode, path, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return Properties{}, fmt.Errorf("%w: %s: %v", ErrImageDecode, path, err)
	}
	if !info.Mode().IsRegular() {
		return Properties{}, fmt.Errorf("%w: %s is not a regular file", ErrImageDecode, path)
	}

	props, err := decodeProperties(f, info.Size())
	if err != nil {
		return Properties{}, fmt.Errorf("%s: %w", path, err)
	}
	return props, nil
}

// readBufferProperties measures an encoded buffer before it is written.
func readBufferProperties(data []byte) (Properties, error) {
	return decodeProperties(bytes.NewReader(data), int64(len(data)))
}

func decodeProperties(r io.ReadSeeker, size int64) (Properties, error) {
	cfg, format, err := image.DecodeConfig(r)
	if err != nil {
		return Properties{}, fmt.Errorf("%w: %v", ErrImageDecode, err)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return Properties{}, fmt.Errorf("%w: empty image", ErrImageDecode)
	}

	props := Properties{
		Width:      cfg.Width,
		Height:     cfg.Height,
		Size:       size,
		Format:     format,
		ColorSpace: colorSpaceOf(cfg.ColorModel),
		HasAlpha:   hasAlpha(cfg.ColorModel),
	}

	if format == FormatJPEG || format == FormatTIFF {
		if _, err := r.Seek(0, io.SeekStart); err == nil {
			if cs, ok := exifColorSpace(r); ok {
				props.ColorSpace = cs
			}
		}
	}
	return props, nil
}

func colorSpaceOf(m color.Model) string {
	if _, ok := m.(color.Palette); ok {
		return ColorSpaceSRGB
	}
	switch m {
	case color.GrayModel, color.Gray16Model:
		return ColorSpaceGray
	case color.CMYKModel:
		return ColorSpaceCMYK
	}
	return ColorSpaceSRGB
}

func hasAlpha(m color.Model) bool {
	if p, ok := m.(color.Palette); ok {
		for _, c := range p {
			if _, _, _, a := c.RGBA(); a < 0xffff {
				return true
			}
		}
		return false
	}
	switch m {
	case color.NRGBAModel, color.NRGBA64Model, color.RGBAModel, color.RGBA64Model,
		color.AlphaModel, color.Alpha16Model:
		return true
	}
	return false
}

// exifColorSpace only reports a value when the EXIF block disagrees with sRGB.
func exifColorSpace(r io.Reader) (string, bool) {
	x, err := exif.Decode(r)
	if err != nil {
		// most product shots carry no EXIF
		return "", false
	}
	tag, err := x.Get(exif.ColorSpace)
	if err != nil {
		return "", false
	}
	v, err := tag.Int(0)
	if err != nil || v != exifColorSpaceUncalibrated {
		return "", false
	}
	return ColorSpaceUncalibrated, true
}
