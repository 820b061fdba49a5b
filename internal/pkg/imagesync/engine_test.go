package imagesync_test

import (
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ManuelReschke/productimages/app/models"
	"github.com/ManuelReschke/productimages/app/repository"
	"github.com/ManuelReschke/productimages/internal/pkg/database"
	"github.com/ManuelReschke/productimages/internal/pkg/imageprocessor"
	"github.com/ManuelReschke/productimages/internal/pkg/imagesync"
	"github.com/ManuelReschke/productimages/internal/pkg/variants"
)

type fixture struct {
	cfg    *variants.Config
	repos  *repository.Repositories
	engine *imagesync.Engine
}

// failingGenerator fails every box of the given size.
type failingGenerator struct {
	inner *imageprocessor.Generator
	size  int
}

func (g failingGenerator) Generate(ctx context.Context, src string, box imageprocessor.Box, dst string) (imageprocessor.VariantResult, error) {
	if box.Width == g.size {
		return imageprocessor.VariantResult{}, errors.New("encoder exploded")
	}
	return g.inner.Generate(ctx, src, box, dst)
}

func newFixture(t *testing.T, gen imagesync.VariantGenerator) *fixture {
	t.Helper()
	root := t.TempDir()
	cfg := &variants.Config{
		Root:        root,
		Base:        filepath.Join(root, "images", "products"),
		UploadDir:   filepath.Join(root, "images", "products", "temp"),
		Sizes:       []int{400, 250, 80},
		Aliases:     map[string]string{"thumb": "250"},
		PublicSizes: []int{80, 250, 400},
		ThumbSize:   250,
		MissingFile: "missing.png",
	}
	for _, key := range cfg.Keys() {
		dir, err := cfg.Dir(key)
		require.NoError(t, err)
		require.NoError(t, os.MkdirAll(dir, 0o755))
	}
	require.NoError(t, os.MkdirAll(cfg.UploadDir, 0o755))

	db, err := database.OpenMemory(uuid.NewString())
	require.NoError(t, err)
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})

	if gen == nil {
		gen = imageprocessor.NewGenerator()
	}
	repos := repository.NewRepositories(db)
	return &fixture{cfg: cfg, repos: repos, engine: imagesync.New(cfg, repos, gen, imagesync.WithWorkers(2))}
}

func writePNG(t *testing.T, path string, w, h int) {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.NRGBA{R: 30, G: 90, B: 200, A: 255})
		}
	}
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()
	require.NoError(t, png.Encode(f, img))
}

func (f *fixture) path(t *testing.T, key, filename string) string {
	t.Helper()
	p, err := f.cfg.Resolve(key, filename)
	require.NoError(t, err)
	return p
}

func (f *fixture) stage(t *testing.T, w, h int) string {
	t.Helper()
	p := filepath.Join(f.cfg.UploadDir, uuid.NewString())
	writePNG(t, p, w, h)
	return p
}

func TestIngestRecordsEveryVariant(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	tmp := f.stage(t, 300, 200)

	res, err := f.engine.Ingest(ctx, tmp, "widget.png")
	require.NoError(t, err)
	assert.Empty(t, res.Failed)
	assert.NoFileExists(t, tmp)

	img := res.Image
	assert.ElementsMatch(t, f.cfg.Keys(), img.VariantKeys())
	for _, key := range f.cfg.Keys() {
		assert.FileExists(t, f.path(t, key, "widget.png"))
	}

	orig, _ := img.SizeOf("originals")
	assert.Equal(t, 300, orig.Width)
	assert.Equal(t, 200, orig.Height)

	// fits the box, so it is kept at its native size
	big, _ := img.SizeOf("400")
	assert.Equal(t, 300, big.Width)
	assert.Equal(t, 200, big.Height)

	thumb, _ := img.SizeOf("250")
	assert.Equal(t, 250, thumb.Width)
	assert.Equal(t, 250, thumb.Height)
	assert.Equal(t, "png", img.ImgFormat.Data()["250"])
}

func TestIngestReportsFailedSize(t *testing.T) {
	f := newFixture(t, failingGenerator{inner: imageprocessor.NewGenerator(), size: 80})
	ctx := context.Background()

	res, err := f.engine.Ingest(ctx, f.stage(t, 500, 500), "widget.png")
	require.NoError(t, err)
	require.Len(t, res.Failed, 1)
	assert.Equal(t, "80", res.Failed[0].Key)
	assert.ElementsMatch(t, []string{"originals", "400", "250"}, res.Image.VariantKeys())
	assert.NoFileExists(t, f.path(t, "80", "widget.png"))
}

func TestIngestRejectsUndecodableUpload(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	tmp := filepath.Join(f.cfg.UploadDir, "junk")
	require.NoError(t, os.WriteFile(tmp, []byte("not an image"), 0o644))

	_, err := f.engine.Ingest(ctx, tmp, "junk.png")
	assert.ErrorIs(t, err, imageprocessor.ErrImageDecode)
	assert.NoFileExists(t, f.path(t, "originals", "junk.png"))

	_, err = f.repos.Image.Get(ctx, "junk.png")
	assert.ErrorIs(t, err, repository.ErrImageNotFound)
}

func TestIngestRejectsBadFilename(t *testing.T) {
	f := newFixture(t, nil)
	_, err := f.engine.Ingest(context.Background(), f.stage(t, 10, 10), "../escape.png")
	assert.ErrorIs(t, err, variants.ErrInvalidFilename)
}

func TestSyncDirectoryIsIdempotent(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	writePNG(t, f.path(t, "250", "a.png"), 250, 250)
	writePNG(t, f.path(t, "250", "b.png"), 100, 250)
	writePNG(t, f.path(t, "250", ".hidden.png"), 10, 10)
	writePNG(t, f.path(t, "250", "missing.png"), 10, 10)
	require.NoError(t, os.WriteFile(f.path(t, "250", "broken.png"), []byte("nope"), 0o644))

	first, err := f.engine.SyncDirectory(ctx, "thumb", false)
	require.NoError(t, err)
	assert.Equal(t, "250", first.Key)
	require.Len(t, first.Added, 2)
	assert.Equal(t, "a.png", first.Added[0].Filename)
	assert.Equal(t, "b.png", first.Added[1].Filename)
	require.Len(t, first.Errors, 1)
	assert.Equal(t, "broken.png", first.Errors[0].Filename)
	assert.Empty(t, first.Removed)
	assert.Equal(t, []string{"a.png", "b.png", "broken.png", "missing.png"}, first.Filenames)

	size, ok := first.Added[1].Image.SizeOf("250")
	require.True(t, ok)
	assert.Equal(t, 100, size.Width)

	second, err := f.engine.SyncDirectory(ctx, "250", false)
	require.NoError(t, err)
	assert.Empty(t, second.Added)
	assert.Empty(t, second.Removed)
}

func TestSyncDirectoryRemovesVanishedFiles(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	_, err := f.engine.Ingest(ctx, f.stage(t, 300, 300), "gone.png")
	require.NoError(t, err)

	require.NoError(t, os.Remove(f.path(t, "80", "gone.png")))
	res, err := f.engine.SyncDirectory(ctx, "80", false)
	require.NoError(t, err)
	require.Len(t, res.Removed, 1)
	require.NotNil(t, res.Removed[0].Image)
	assert.False(t, res.Removed[0].Image.HasVariant("80"))
	assert.True(t, res.Removed[0].Image.HasVariant("originals"))

	// dropping the last variant drops the record
	for _, key := range []string{"originals", "400", "250"} {
		require.NoError(t, os.Remove(f.path(t, key, "gone.png")))
	}
	for _, r := range f.engine.SyncAll(ctx, false) {
		assert.Empty(t, r.Error)
	}
	_, err = f.repos.Image.Get(ctx, "gone.png")
	assert.ErrorIs(t, err, repository.ErrImageNotFound)
}

// ingestDuringLoad lands one variant, file and record, while the sync
// reads the store.
type ingestDuringLoad struct {
	repository.ImageRepository
	once sync.Once
	land func()
}

func (r *ingestDuringLoad) Load(ctx context.Context, filter repository.Filter) ([]models.ProductImage, error) {
	r.once.Do(r.land)
	return r.ImageRepository.Load(ctx, filter)
}

func TestSyncDirectoryKeepsVariantIngestedMidSync(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	racing := &ingestDuringLoad{ImageRepository: f.repos.Image}
	racing.land = func() {
		writePNG(t, f.path(t, "80", "late.png"), 80, 80)
		_, err := f.repos.Image.AddVariant(ctx, "late.png", "80", models.VariantMeta{Width: 80, Height: 80, Size: 1})
		require.NoError(t, err)
	}
	repos := &repository.Repositories{Image: racing, Association: f.repos.Association}
	engine := imagesync.New(f.cfg, repos, imageprocessor.NewGenerator())

	res, err := engine.SyncDirectory(ctx, "80", false)
	require.NoError(t, err)
	assert.Empty(t, res.Removed)
	assert.Empty(t, res.Added)

	img, err := f.repos.Image.Get(ctx, "late.png")
	require.NoError(t, err)
	assert.True(t, img.HasVariant("80"))
}

func TestSyncDirectoryRebuildRemeasures(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	p := f.path(t, "400", "a.png")
	writePNG(t, p, 100, 100)
	_, err := f.engine.SyncDirectory(ctx, "400", false)
	require.NoError(t, err)

	writePNG(t, p, 120, 90)
	res, err := f.engine.SyncDirectory(ctx, "400", false)
	require.NoError(t, err)
	assert.Empty(t, res.Added)

	res, err = f.engine.SyncDirectory(ctx, "400", true)
	require.NoError(t, err)
	require.Len(t, res.Added, 1)
	size, _ := res.Added[0].Image.SizeOf("400")
	assert.Equal(t, 120, size.Width)
	assert.Equal(t, 90, size.Height)
}

func TestSyncDirectoryErrors(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	_, err := f.engine.SyncDirectory(ctx, "999", false)
	assert.ErrorIs(t, err, variants.ErrInvalidVariantKey)

	dir, err := f.cfg.Dir("80")
	require.NoError(t, err)
	require.NoError(t, os.RemoveAll(dir))
	_, err = f.engine.SyncDirectory(ctx, "80", false)
	assert.ErrorIs(t, err, imagesync.ErrFileSystem)

	results := f.engine.SyncAll(ctx, false)
	require.Len(t, results, len(f.cfg.Keys()))
	for _, r := range results {
		if r.Key == "80" {
			assert.NotEmpty(t, r.Error)
		} else {
			assert.Empty(t, r.Error)
		}
	}
}

func TestRebuildVariant(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	writePNG(t, f.path(t, "originals", "a.png"), 600, 300)
	writePNG(t, f.path(t, "originals", "b.png"), 50, 50)
	_, err := f.engine.SyncDirectory(ctx, "originals", false)
	require.NoError(t, err)

	dry, err := f.engine.RebuildVariant(ctx, "originals", "thumb", imagesync.RebuildOptions{DryRun: true})
	require.NoError(t, err)
	assert.Equal(t, []string{"a.png", "b.png"}, dry.Candidates)
	assert.Empty(t, dry.Images)
	assert.NoFileExists(t, f.path(t, "250", "a.png"))

	res, err := f.engine.RebuildVariant(ctx, "originals", "250", imagesync.RebuildOptions{})
	require.NoError(t, err)
	assert.Empty(t, res.Errors)
	require.Len(t, res.Images, 2)
	require.NotNil(t, res.Sync)
	assert.Empty(t, res.Sync.Added)

	img, err := f.repos.Image.Get(ctx, "a.png")
	require.NoError(t, err)
	size, ok := img.SizeOf("250")
	require.True(t, ok)
	assert.Equal(t, 250, size.Width)

	again, err := f.engine.RebuildVariant(ctx, "originals", "250", imagesync.RebuildOptions{})
	require.NoError(t, err)
	assert.Empty(t, again.Candidates)

	_, err = f.engine.RebuildVariant(ctx, "originals", "originals", imagesync.RebuildOptions{})
	assert.ErrorIs(t, err, variants.ErrInvalidVariantKey)
}

func TestDeleteImage(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	_, err := f.engine.Ingest(ctx, f.stage(t, 300, 300), "del.png")
	require.NoError(t, err)
	// one variant file already vanished
	require.NoError(t, os.Remove(f.path(t, "400", "del.png")))

	require.NoError(t, f.engine.DeleteImage(ctx, "del.png"))
	for _, key := range f.cfg.Keys() {
		assert.NoFileExists(t, f.path(t, key, "del.png"))
	}
	_, err = f.repos.Image.Get(ctx, "del.png")
	assert.ErrorIs(t, err, repository.ErrImageNotFound)

	assert.ErrorIs(t, f.engine.DeleteImage(ctx, "del.png"), repository.ErrImageNotFound)
}

func TestSetItemCodePromotesOnlyImage(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	for _, name := range []string{"a.png", "b.png"} {
		writePNG(t, f.path(t, "originals", name), 20, 20)
	}
	_, err := f.engine.SyncDirectory(ctx, "originals", false)
	require.NoError(t, err)

	img, err := f.engine.SetItemCode(ctx, "a.png", " A100 ")
	require.NoError(t, err)
	assert.Equal(t, "A100", img.ItemCode)
	assert.True(t, img.PreferredImage)

	img, err = f.engine.SetItemCode(ctx, "b.png", "A100")
	require.NoError(t, err)
	assert.False(t, img.PreferredImage)

	_, err = f.engine.SetPreferred(ctx, "a.png", "  ")
	assert.ErrorIs(t, err, imagesync.ErrInvalidItemCode)

	batch := f.engine.ApplyItemCode(ctx, "B200", []string{"b.png", "nope.png"})
	require.Len(t, batch.Images, 1)
	assert.True(t, batch.Images[0].PreferredImage)
	require.Len(t, batch.Errors, 1)
	assert.Equal(t, "nope.png", batch.Errors[0].Filename)
}

func TestTagsAndAltItems(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	writePNG(t, f.path(t, "originals", "a.png"), 20, 20)
	_, err := f.engine.SyncDirectory(ctx, "originals", false)
	require.NoError(t, err)

	_, err = f.engine.AddTag(ctx, "a.png", "  ")
	assert.ErrorIs(t, err, imagesync.ErrInvalidTag)

	batch, err := f.engine.TagImages(ctx, "lifestyle", []string{"a.png", "b.png"})
	require.NoError(t, err)
	require.Len(t, batch.Images, 1)
	assert.True(t, batch.Images[0].HasTag("lifestyle"))
	assert.Len(t, batch.Errors, 1)

	img, err := f.engine.RemoveTag(ctx, "a.png", "lifestyle")
	require.NoError(t, err)
	assert.False(t, img.HasTag("lifestyle"))

	rows, err := f.engine.AddAltItem(ctx, "a.png", "C300")
	require.NoError(t, err)
	require.Len(t, rows, 1)

	_, err = f.engine.AddAltItem(ctx, "a.png", "")
	assert.ErrorIs(t, err, imagesync.ErrInvalidItemCode)

	rows, err = f.engine.RemoveAltItem(ctx, "a.png", "C300")
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestParseImageFilename(t *testing.T) {
	d, ok := imagesync.ParseImageFilename("A100_Canvas Tote_navy-blue.jpg")
	require.True(t, ok)
	assert.Equal(t, "A100", d.ItemCode)
	assert.Equal(t, "Canvas Tote", d.Name)
	assert.Equal(t, "navy-blue", d.Color)

	_, ok = imagesync.ParseImageFilename("A100.jpg")
	assert.False(t, ok)
	_, ok = imagesync.ParseImageFilename("A100_Tote_red.webp")
	assert.False(t, ok)
}
