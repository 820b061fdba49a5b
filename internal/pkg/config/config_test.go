package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ManuelReschke/productimages/internal/pkg/env"
)

func withEnv(t *testing.T, vars map[string]string) {
	t.Helper()
	prev := env.Env
	env.Env = vars
	t.Cleanup(func() { env.Env = prev })
}

func TestLoadDefaults(t *testing.T) {
	withEnv(t, map[string]string{"IMAGE_WORKERS": "2"})

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, []int{2048, 800, 400, 250, 125, 80}, cfg.Variants.Sizes)
	assert.Equal(t, "/var/www/images/products/temp", cfg.Variants.UploadDir)
	assert.Equal(t, "800", cfg.Variants.Aliases["lg"])
	assert.Equal(t, 2, cfg.Workers)
	assert.False(t, cfg.Watch)
	assert.Equal(t, time.Duration(0), cfg.SyncInterval)
	assert.Equal(t, "localhost:4000", cfg.Addr())
}

func TestLoadOverrides(t *testing.T) {
	withEnv(t, map[string]string{
		"IMAGE_BASE":          "/srv/img",
		"IMAGE_SIZES":         "600, 300,100",
		"IMAGE_ALIASES":       "Big:600,small:100",
		"IMAGE_PUBLIC_SIZES":  "300",
		"IMAGE_THUMB_SIZE":    "300",
		"IMAGE_WORKERS":       "8",
		"IMAGE_WATCH":         "yes",
		"IMAGE_SYNC_INTERVAL": "90",
	})

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, []int{600, 300, 100}, cfg.Variants.Sizes)
	assert.Equal(t, "/srv/img/temp", cfg.Variants.UploadDir)
	assert.Equal(t, map[string]string{"big": "600", "small": "100"}, cfg.Variants.Aliases)
	assert.True(t, cfg.Watch)
	assert.Equal(t, 90*time.Second, cfg.SyncInterval)
	assert.Equal(t, []string{"originals", "600", "300", "100"}, cfg.Variants.Keys())
}

func TestLoadRejectsInvalid(t *testing.T) {
	tests := []struct {
		name string
		vars map[string]string
	}{
		{"size not a number", map[string]string{"IMAGE_SIZES": "800,big"}},
		{"duplicate size", map[string]string{"IMAGE_SIZES": "800,800", "IMAGE_PUBLIC_SIZES": "800", "IMAGE_THUMB_SIZE": "800", "IMAGE_ALIASES": "lg:800"}},
		{"alias to unknown size", map[string]string{"IMAGE_ALIASES": "huge:4000"}},
		{"malformed alias", map[string]string{"IMAGE_ALIASES": "thumb"}},
		{"public size not configured", map[string]string{"IMAGE_PUBLIC_SIZES": "81"}},
		{"thumb size not configured", map[string]string{"IMAGE_THUMB_SIZE": "99"}},
		{"zero workers", map[string]string{"IMAGE_WORKERS": "0"}},
		{"bad port", map[string]string{"APP_PORT": "http"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			withEnv(t, tt.vars)
			_, err := Load()
			assert.Error(t, err)
		})
	}
}
