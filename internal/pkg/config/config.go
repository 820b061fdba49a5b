// Package config assembles the immutable runtime configuration from the
// environment.
package config

import (
	"fmt"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/ManuelReschke/productimages/internal/pkg/env"
	"github.com/ManuelReschke/productimages/internal/pkg/variants"
)

// AppConfig is built once by Load and passed to every component.
type AppConfig struct {
	Host         string           `validate:"required"`
	Port         string           `validate:"required,numeric"`
	Variants     *variants.Config `validate:"required"`
	Workers      int              `validate:"gt=0,lte=64"`
	Watch        bool
	SyncInterval time.Duration `validate:"gte=0"`

	// LookupRate is the number of public lookups per minute and client
	LookupRate int `validate:"gte=0"`
}

var validate = validator.New()

// Load reads the IMAGE_* and APP_* variables. env.SetupEnvFile must have
// run before.
func Load() (*AppConfig, error) {
	def := variants.DefaultConfig()

	sizes, err := parseSizes(env.GetEnv("IMAGE_SIZES", ""), def.Sizes)
	if err != nil {
		return nil, fmt.Errorf("IMAGE_SIZES: %w", err)
	}
	public, err := parseSizes(env.GetEnv("IMAGE_PUBLIC_SIZES", ""), def.PublicSizes)
	if err != nil {
		return nil, fmt.Errorf("IMAGE_PUBLIC_SIZES: %w", err)
	}
	aliases, err := parseAliases(env.GetEnv("IMAGE_ALIASES", ""), def.Aliases)
	if err != nil {
		return nil, fmt.Errorf("IMAGE_ALIASES: %w", err)
	}

	base := env.GetEnv("IMAGE_BASE", def.Base)
	vc := &variants.Config{
		Root:        env.GetEnv("IMAGE_ROOT", def.Root),
		Base:        base,
		UploadDir:   env.GetEnv("IMAGE_UPLOAD_DIR", filepath.Join(base, "temp")),
		Sizes:       sizes,
		Aliases:     aliases,
		PublicSizes: public,
		ThumbSize:   env.GetEnvInt("IMAGE_THUMB_SIZE", def.ThumbSize),
		MissingFile: env.GetEnv("IMAGE_MISSING_FILE", def.MissingFile),
	}

	cfg := &AppConfig{
		Host:         env.GetEnv("APP_HOST", "localhost"),
		Port:         env.GetEnv("APP_PORT", "4000"),
		Variants:     vc,
		Workers:      env.GetEnvInt("IMAGE_WORKERS", min(4, runtime.NumCPU())),
		Watch:        env.GetEnvBool("IMAGE_WATCH", false),
		SyncInterval: time.Duration(env.GetEnvInt("IMAGE_SYNC_INTERVAL", 0)) * time.Second,
		LookupRate:   env.GetEnvInt("IMAGE_LOOKUP_RATE", 120),
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks struct tags and the cross-field rules of the variant set.
func (c *AppConfig) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	if err := validate.Struct(c.Variants); err != nil {
		return fmt.Errorf("invalid image configuration: %w", err)
	}
	if err := c.Variants.Check(); err != nil {
		return fmt.Errorf("invalid image configuration: %w", err)
	}
	return nil
}

// Addr is the listen address of the http server.
func (c *AppConfig) Addr() string {
	return c.Host + ":" + c.Port
}

// parseSizes reads "2048,800,400". An empty value yields def.
func parseSizes(raw string, def []int) ([]int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return append([]int(nil), def...), nil
	}
	var sizes []int
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		n, err := strconv.Atoi(part)
		if err != nil {
			return nil, fmt.Errorf("%q is not a size", part)
		}
		sizes = append(sizes, n)
	}
	return sizes, nil
}

// parseAliases reads "xl:2048,thumb:250". An empty value yields def.
func parseAliases(raw string, def map[string]string) (map[string]string, error) {
	raw = strings.TrimSpace(raw)
	out := make(map[string]string)
	if raw == "" {
		for k, v := range def {
			out[k] = v
		}
		return out, nil
	}
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		name, target, ok := strings.Cut(part, ":")
		if !ok {
			return nil, fmt.Errorf("%q is not name:size", part)
		}
		out[strings.ToLower(strings.TrimSpace(name))] = strings.TrimSpace(target)
	}
	return out, nil
}
