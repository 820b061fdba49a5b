// Package variants describes the variant key space of the product image
// store and maps keys to physical and public paths.
package variants

import (
	"errors"
	"fmt"
	"path"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
)

// OriginalsKey is the variant key holding the uploaded, unresized files.
const OriginalsKey = "originals"

var (
	ErrInvalidVariantKey = errors.New("invalid variant key")
	ErrInvalidFilename   = errors.New("invalid filename")
)

// Config is built once at startup and shared read-only.
type Config struct {
	Root        string            `validate:"required"`
	Base        string            `validate:"required"`
	UploadDir   string            `validate:"required"`
	Sizes       []int             `validate:"required,min=1,dive,gt=0"`
	Aliases     map[string]string `validate:"dive,keys,required,endkeys,required"`
	PublicSizes []int             `validate:"dive,gt=0"`
	ThumbSize   int               `validate:"gt=0"`
	MissingFile string            `validate:"required"`
}

// DefaultConfig mirrors the layout used on the image server.
func DefaultConfig() *Config {
	return &Config{
		Root:        "/var/www",
		Base:        "/var/www/images/products",
		UploadDir:   "/var/www/images/products/temp",
		Sizes:       []int{2048, 800, 400, 250, 125, 80},
		Aliases:     map[string]string{"xl": "2048", "lg": "800", "thumb": "250"},
		PublicSizes: []int{80, 250, 400, 800},
		ThumbSize:   250,
		MissingFile: "missing.png",
	}
}

// Check verifies the relationships that struct tags cannot express.
func (c *Config) Check() error {
	seen := make(map[int]bool, len(c.Sizes))
	for _, s := range c.Sizes {
		if seen[s] {
			return fmt.Errorf("duplicate image size %d", s)
		}
		seen[s] = true
	}
	for alias, target := range c.Aliases {
		n, err := strconv.Atoi(target)
		if err != nil || !seen[n] {
			return fmt.Errorf("alias %q points to unknown size %q", alias, target)
		}
	}
	for _, s := range c.PublicSizes {
		if !seen[s] {
			return fmt.Errorf("public size %d is not a configured size", s)
		}
	}
	if !seen[c.ThumbSize] {
		return fmt.Errorf("thumbnail size %d is not a configured size", c.ThumbSize)
	}
	return nil
}

// Keys returns the canonical variant keys, originals first.
func (c *Config) Keys() []string {
	keys := make([]string, 0, len(c.Sizes)+1)
	keys = append(keys, OriginalsKey)
	return append(keys, c.SizeKeys()...)
}

// SizeKeys returns the numeric variant keys in configured order.
func (c *Config) SizeKeys() []string {
	keys := make([]string, 0, len(c.Sizes))
	for _, s := range c.Sizes {
		keys = append(keys, strconv.Itoa(s))
	}
	return keys
}

// Normalize maps an alias or canonical key to its canonical form.
func (c *Config) Normalize(key string) (string, error) {
	key = strings.TrimSpace(key)
	if strings.EqualFold(key, OriginalsKey) || strings.EqualFold(key, "original") {
		return OriginalsKey, nil
	}
	if target, ok := c.Aliases[strings.ToLower(key)]; ok {
		key = target
	}
	n, err := strconv.Atoi(key)
	if err != nil || strconv.Itoa(n) != key || !slices.Contains(c.Sizes, n) {
		return "", fmt.Errorf("%w: %q", ErrInvalidVariantKey, key)
	}
	return key, nil
}

// SizeOf returns the pixel box of a numeric key. Originals have no box.
func (c *Config) SizeOf(key string) (int, error) {
	canonical, err := c.Normalize(key)
	if err != nil {
		return 0, err
	}
	if canonical == OriginalsKey {
		return 0, fmt.Errorf("%w: %s has no pixel box", ErrInvalidVariantKey, OriginalsKey)
	}
	return strconv.Atoi(canonical)
}

// Dir returns the directory that holds every file of a variant.
func (c *Config) Dir(key string) (string, error) {
	canonical, err := c.Normalize(key)
	if err != nil {
		return "", err
	}
	return filepath.Join(c.Base, canonical), nil
}

// Resolve returns the physical path of filename within a variant.
func (c *Config) Resolve(key, filename string) (string, error) {
	if err := CheckFilename(filename); err != nil {
		return "", err
	}
	dir, err := c.Dir(key)
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, filename), nil
}

// ResolveWeb returns the public path of filename within a variant.
func (c *Config) ResolveWeb(key, filename string) (string, error) {
	p, err := c.Resolve(key, filename)
	if err != nil {
		return "", err
	}
	return c.webPath(p), nil
}

func (c *Config) webPath(physical string) string {
	p := filepath.ToSlash(physical)
	root := strings.TrimSuffix(filepath.ToSlash(c.Root), "/")
	if root != "" && strings.HasPrefix(p, root+"/") {
		p = strings.TrimPrefix(p, root)
	}
	return path.Clean("/" + p)
}

// IsPublicSize reports whether lookups may request size.
func (c *Config) IsPublicSize(size int) bool {
	return slices.Contains(c.PublicSizes, size)
}

// CheckFilename rejects anything that is not a single path element.
func CheckFilename(filename string) error {
	switch {
	case filename == "", filename == ".", filename == "..":
		return fmt.Errorf("%w: %q", ErrInvalidFilename, filename)
	case strings.ContainsAny(filename, `/\`), strings.ContainsRune(filename, 0):
		return fmt.Errorf("%w: %q", ErrInvalidFilename, filename)
	}
	return nil
}
