package lookup_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ManuelReschke/productimages/app/models"
	"github.com/ManuelReschke/productimages/app/repository"
	"github.com/ManuelReschke/productimages/internal/pkg/database"
	"github.com/ManuelReschke/productimages/internal/pkg/lookup"
	"github.com/ManuelReschke/productimages/internal/pkg/variants"
)

func setup(t *testing.T) (*variants.Config, repository.ImageRepository, *lookup.Resolver) {
	t.Helper()
	root := t.TempDir()
	cfg := &variants.Config{
		Root:        root,
		Base:        filepath.Join(root, "images", "products"),
		UploadDir:   filepath.Join(root, "images", "products", "temp"),
		Sizes:       []int{800, 250, 80},
		Aliases:     map[string]string{"thumb": "250"},
		PublicSizes: []int{80, 250},
		ThumbSize:   250,
		MissingFile: "missing.png",
	}
	for _, key := range cfg.Keys() {
		dir, err := cfg.Dir(key)
		require.NoError(t, err)
		require.NoError(t, os.MkdirAll(dir, 0o755))
	}

	db, err := database.OpenMemory(uuid.NewString())
	require.NoError(t, err)
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	images := repository.NewImageRepository(db)
	return cfg, images, lookup.NewResolver(cfg, images)
}

func touch(t *testing.T, cfg *variants.Config, key string, names ...string) {
	t.Helper()
	for _, name := range names {
		p, err := cfg.Resolve(key, name)
		require.NoError(t, err)
		require.NoError(t, os.WriteFile(p, []byte("x"), 0o644))
	}
}

func preferred(t *testing.T, images repository.ImageRepository, filename, itemCode string, keys ...string) {
	t.Helper()
	ctx := context.Background()
	for _, k := range keys {
		_, err := images.AddVariant(ctx, filename, k, models.VariantMeta{Width: 1, Height: 1, Size: 1})
		require.NoError(t, err)
	}
	_, err := images.SetPreferred(ctx, filename, itemCode)
	require.NoError(t, err)
}

func TestResolveForItemPrefersRecord(t *testing.T) {
	cfg, images, r := setup(t)
	ctx := context.Background()
	touch(t, cfg, "250", "A100.jpg")
	preferred(t, images, "A100_hero.jpg", "A100", "originals", "250")

	res := r.ResolveForItem(ctx, "A100", "250")
	assert.True(t, res.Found)
	assert.Equal(t, "A100_hero.jpg", res.Filename)
	assert.Equal(t, "/images/products/250/A100_hero.jpg", res.WebPath)

	// the preferred record lacks 80, so its first variant is used
	res = r.ResolveForItem(ctx, "A100", "80")
	assert.True(t, res.Found)
	assert.Equal(t, "/images/products/originals/A100_hero.jpg", res.WebPath)
}

func TestResolveForItemSkipsInactivePreferred(t *testing.T) {
	cfg, images, r := setup(t)
	ctx := context.Background()
	touch(t, cfg, "250", "A100.jpg")
	preferred(t, images, "A100_hero.jpg", "A100", "250")
	_, err := images.SetActive(ctx, "A100_hero.jpg", false)
	require.NoError(t, err)

	res := r.ResolveForItem(ctx, "A100", "thumb")
	assert.Equal(t, "A100.jpg", res.Filename)
}

func TestResolveForItemHidesInactiveFileOnDisk(t *testing.T) {
	cfg, images, r := setup(t)
	ctx := context.Background()
	touch(t, cfg, "250", "A100.jpg")
	preferred(t, images, "A100.jpg", "A100", "250")
	_, err := images.SetActive(ctx, "A100.jpg", false)
	require.NoError(t, err)

	res := r.ResolveForItem(ctx, "A100", "250")
	assert.False(t, res.Found)
	assert.Equal(t, "missing.png", res.Filename)

	list, err := r.FindImageList(ctx, []string{"A100"}, "250")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.False(t, list[0].Found)

	_, err = images.SetActive(ctx, "A100.jpg", true)
	require.NoError(t, err)
	res = r.ResolveForItem(ctx, "A100", "250")
	assert.True(t, res.Found)
	assert.Equal(t, "A100.jpg", res.Filename)
}

func TestResolveForItemDiskSearch(t *testing.T) {
	cfg, _, r := setup(t)
	ctx := context.Background()
	touch(t, cfg, "250", "xa100-red.jpg", "A100.png", "B(1).jpg")

	res := r.ResolveForItem(ctx, "A100", "250")
	assert.Equal(t, "A100.png", res.Filename)

	res = r.ResolveForItem(ctx, "a100-r", "250")
	assert.Equal(t, "xa100-red.jpg", res.Filename)

	// item codes are matched literally
	res = r.ResolveForItem(ctx, "B(1)", "250")
	assert.Equal(t, "B(1).jpg", res.Filename)
}

func TestResolveForItemMissing(t *testing.T) {
	_, _, r := setup(t)
	ctx := context.Background()

	res := r.ResolveForItem(ctx, "NOPE", "80")
	assert.False(t, res.Found)
	assert.Equal(t, "/images/products/80/missing.png", res.WebPath)

	res = r.ResolveForItem(ctx, "NOPE", "800")
	assert.False(t, res.Found)
	assert.Equal(t, "/images/products/800/missing.png", res.WebPath)

	res = r.ResolveForItem(ctx, "NOPE", "banana")
	assert.Equal(t, "/images/products/250/missing.png", res.WebPath)

	res = r.ResolveForItem(ctx, "  ", "80")
	assert.False(t, res.Found)
}

func TestFindImageList(t *testing.T) {
	cfg, images, r := setup(t)
	ctx := context.Background()
	touch(t, cfg, "80", "C300.jpg")
	preferred(t, images, "A100_hero.jpg", "A100", "80")

	list, err := r.FindImageList(ctx, []string{"A100", " C300", "", "ZZZ"}, "80")
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, "A100_hero.jpg", list[0].Filename)
	assert.Equal(t, "C300", list[1].ItemCode)
	assert.Equal(t, "C300.jpg", list[1].Filename)
	assert.Equal(t, "missing.png", list[2].Filename)

	_, err = r.FindImageList(ctx, []string{"A100"}, "800")
	assert.ErrorIs(t, err, lookup.ErrInvalidSize)
}

func TestPropertiesAndList(t *testing.T) {
	cfg, _, r := setup(t)
	touch(t, cfg, "80", "b.jpg", "a.jpg", ".hidden")

	names, err := r.List("80")
	require.NoError(t, err)
	assert.Equal(t, []string{"a.jpg", "b.jpg"}, names)

	_, err = r.List("13")
	assert.ErrorIs(t, err, variants.ErrInvalidVariantKey)

	props, err := r.Properties(context.Background(), "a.jpg")
	require.NoError(t, err)
	require.Len(t, props, len(cfg.Keys()))
	for _, p := range props {
		assert.False(t, p.Found, p.Key)
	}
}

func TestMatchFile(t *testing.T) {
	names := []string{"A100-BLU.jpg", "A100.jpg", "ZA100.jpg"}
	name, ok := lookup.MatchFile(names, "A100")
	require.True(t, ok)
	assert.Equal(t, "A100.jpg", name)

	name, ok = lookup.MatchFile([]string{"A100-BLU.jpg", "ZA100.jpg"}, "a100")
	require.True(t, ok)
	assert.Equal(t, "A100-BLU.jpg", name)

	_, ok = lookup.MatchFile(names, "")
	assert.False(t, ok)
}
