package s3backup

import (
	"fmt"
	"path"
	"strings"

	"github.com/ManuelReschke/productimages/internal/pkg/env"
)

// Config is the bucket that receives copies of variant files
type Config struct {
	AccessKeyID     string
	SecretAccessKey string
	Region          string
	BucketName      string
	// EndpointURL selects an S3 compatible service such as minio or B2
	EndpointURL string
	Prefix      string
	Enabled     bool
	// CreateBucket creates a missing bucket on startup, never in prod
	CreateBucket bool
}

// LoadConfig reads the S3_* environment. Credentials and bucket are only
// required once backups are enabled.
func LoadConfig() (*Config, error) {
	cfg := &Config{
		AccessKeyID:     env.GetEnv("S3_ACCESS_KEY_ID", ""),
		SecretAccessKey: env.GetEnv("S3_SECRET_ACCESS_KEY", ""),
		Region:          env.GetEnv("S3_REGION", "us-west-001"),
		BucketName:      env.GetEnv("S3_BUCKET_NAME", ""),
		EndpointURL:     env.GetEnv("S3_ENDPOINT_URL", ""),
		Prefix:          env.GetEnv("S3_PREFIX", "products"),
		Enabled:         env.GetEnvBool("S3_BACKUP_ENABLED", false),
		CreateBucket:    !env.IsProd(),
	}
	if !cfg.Enabled {
		return cfg, nil
	}

	for _, req := range []struct{ name, value string }{
		{"S3_ACCESS_KEY_ID", cfg.AccessKeyID},
		{"S3_SECRET_ACCESS_KEY", cfg.SecretAccessKey},
		{"S3_BUCKET_NAME", cfg.BucketName},
	} {
		if req.value == "" {
			return nil, fmt.Errorf("%s is required when S3 backup is enabled", req.name)
		}
	}
	return cfg, nil
}

func (c *Config) IsEnabled() bool {
	return c != nil && c.Enabled
}

// ObjectKey maps a variant file to <prefix>/<variant>/<filename>
func (c *Config) ObjectKey(variantKey, filename string) string {
	if prefix := strings.Trim(c.Prefix, "/"); prefix != "" {
		return path.Join(prefix, variantKey, filename)
	}
	return path.Join(variantKey, filename)
}
