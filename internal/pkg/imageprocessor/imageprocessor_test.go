package imageprocessor_test

import (
	"context"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ManuelReschke/productimages/internal/pkg/imageprocessor"
)

func solid(w, h int, c color.Color) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, c)
		}
	}
	return img
}

func writePNG(t *testing.T, path string, img image.Image) {
	t.Helper()
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()
	require.NoError(t, png.Encode(f, img))
}

func writeJPEG(t *testing.T, path string, img image.Image) {
	t.Helper()
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()
	require.NoError(t, jpeg.Encode(f, img, &jpeg.Options{Quality: 95}))
}

func decodeFile(t *testing.T, path string) image.Image {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	img, _, err := image.Decode(f)
	require.NoError(t, err)
	return img
}

var red = color.NRGBA{R: 200, G: 20, B: 20, A: 255}

func TestGenerate_NoUpscale(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "small.png")
	dst := filepath.Join(dir, "800", "small.png")
	writePNG(t, src, solid(100, 100, red))

	res, err := imageprocessor.NewGenerator().Generate(context.Background(), src, imageprocessor.Square(800), dst)
	require.NoError(t, err)

	assert.Equal(t, 100, res.Width)
	assert.Equal(t, 100, res.Height)
	assert.Equal(t, "png", res.Format)
	assert.FileExists(t, dst)
}

func TestGenerate_ShrinksIntoBox(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "widget.jpg")
	dst := filepath.Join(dir, "250", "widget.jpg")
	writeJPEG(t, src, solid(300, 300, red))

	res, err := imageprocessor.NewGenerator().Generate(context.Background(), src, imageprocessor.Square(250), dst)
	require.NoError(t, err)

	assert.Equal(t, 250, res.Width)
	assert.Equal(t, 250, res.Height)
	assert.Equal(t, "jpeg", res.Format)

	info, err := os.Stat(dst)
	require.NoError(t, err)
	assert.Equal(t, info.Size(), res.Size)
}

func TestGenerate_OpaqueWhitePadding(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "wide.jpg")
	dst := filepath.Join(dir, "250", "wide.jpg")
	writeJPEG(t, src, solid(400, 200, red))

	res, err := imageprocessor.NewGenerator().Generate(context.Background(), src, imageprocessor.Square(250), dst)
	require.NoError(t, err)
	require.Equal(t, 250, res.Width)
	require.Equal(t, 250, res.Height)

	out := decodeFile(t, dst)
	r, g, b, a := out.At(125, 5).RGBA()
	assert.Greater(t, r>>8, uint32(240))
	assert.Greater(t, g>>8, uint32(240))
	assert.Greater(t, b>>8, uint32(240))
	assert.Equal(t, uint32(0xffff), a)

	r, _, _, _ = out.At(125, 125).RGBA()
	assert.Greater(t, r>>8, uint32(150))
}

func TestGenerate_TransparentPaddingForPNG(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "wide.png")
	dst := filepath.Join(dir, "250", "wide.png")
	writePNG(t, src, solid(400, 200, red))

	_, err := imageprocessor.NewGenerator().Generate(context.Background(), src, imageprocessor.Square(250), dst)
	require.NoError(t, err)

	out := decodeFile(t, dst)
	edge := color.NRGBAModel.Convert(out.At(125, 5)).(color.NRGBA)
	assert.Equal(t, uint8(0), edge.A)

	center := color.NRGBAModel.Convert(out.At(125, 125)).(color.NRGBA)
	assert.Equal(t, uint8(255), center.A)
}

func TestGenerate_DecodeError(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "broken.jpg")
	dst := filepath.Join(dir, "250", "broken.jpg")
	require.NoError(t, os.WriteFile(src, []byte("not an image"), 0o644))

	_, err := imageprocessor.NewGenerator().Generate(context.Background(), src, imageprocessor.Square(250), dst)
	assert.ErrorIs(t, err, imageprocessor.ErrImageDecode)
	assert.NoFileExists(t, dst)

	_, err = imageprocessor.NewGenerator().Generate(context.Background(), filepath.Join(dir, "nope.jpg"), imageprocessor.Square(250), dst)
	assert.ErrorIs(t, err, imageprocessor.ErrImageDecode)
}

func TestGenerate_CancelledContext(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "a.png")
	writePNG(t, src, solid(10, 10, red))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := imageprocessor.NewGenerator().Generate(ctx, src, imageprocessor.Square(80), filepath.Join(dir, "80", "a.png"))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestReadProperties(t *testing.T) {
	dir := t.TempDir()

	rgb := filepath.Join(dir, "rgb.jpg")
	writeJPEG(t, rgb, solid(64, 32, red))
	props, err := imageprocessor.ReadProperties(rgb)
	require.NoError(t, err)
	assert.Equal(t, 64, props.Width)
	assert.Equal(t, 32, props.Height)
	assert.Equal(t, "jpeg", props.Format)
	assert.Equal(t, imageprocessor.ColorSpaceSRGB, props.ColorSpace)
	assert.False(t, props.HasAlpha)

	gray := filepath.Join(dir, "gray.png")
	writePNG(t, gray, image.NewGray(image.Rect(0, 0, 8, 8)))
	props, err = imageprocessor.ReadProperties(gray)
	require.NoError(t, err)
	assert.Equal(t, imageprocessor.ColorSpaceGray, props.ColorSpace)

	alpha := filepath.Join(dir, "alpha.png")
	writePNG(t, alpha, solid(8, 8, color.NRGBA{A: 0}))
	props, err = imageprocessor.ReadProperties(alpha)
	require.NoError(t, err)
	assert.True(t, props.HasAlpha)

	info, err := os.Stat(alpha)
	require.NoError(t, err)
	assert.Equal(t, info.Size(), props.Size)

	bogus := filepath.Join(dir, "bogus.png")
	require.NoError(t, os.WriteFile(bogus, []byte("<html>"), 0o644))
	_, err = imageprocessor.ReadProperties(bogus)
	assert.ErrorIs(t, err, imageprocessor.ErrImageDecode)
}

func TestBackgroundFor(t *testing.T) {
	assert.Equal(t, uint8(0), imageprocessor.BackgroundFor("png").A)
	assert.Equal(t, uint8(255), imageprocessor.BackgroundFor("jpeg").A)
	assert.True(t, imageprocessor.CanEncode("gif"))
	assert.False(t, imageprocessor.CanEncode("webp"))
}
