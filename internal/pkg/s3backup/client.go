package s3backup

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/gofiber/fiber/v2/log"

	"github.com/ManuelReschke/productimages/internal/pkg/storage"
)

var contentTypes = map[string]string{
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".gif":  "image/gif",
	".webp": "image/webp",
	".bmp":  "image/bmp",
	".tif":  "image/tiff",
	".tiff": "image/tiff",
}

// Client copies variant files to and from the backup bucket
type Client struct {
	api *s3.Client
	cfg *Config
}

// NewClient connects to the bucket and, outside prod, creates it when
// it does not exist yet.
func NewClient(ctx context.Context, cfg *Config) (*Client, error) {
	if !cfg.IsEnabled() {
		return nil, errors.New("S3 backup is disabled")
	}

	awsCfg, err := config.LoadDefaultConfig(ctx,
		config.WithRegion(cfg.Region),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, "")),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	c := &Client{
		cfg: cfg,
		api: s3.NewFromConfig(awsCfg, func(o *s3.Options) {
			if cfg.EndpointURL == "" {
				return
			}
			o.BaseEndpoint = aws.String(cfg.EndpointURL)
			o.UsePathStyle = true
		}),
	}
	if err := c.ensureBucket(ctx); err != nil {
		return nil, fmt.Errorf("failed to connect to S3: %w", err)
	}

	log.Infof("[S3Backup] Using bucket %s", cfg.BucketName)
	return c, nil
}

func (c *Client) ensureBucket(ctx context.Context) error {
	bucket := aws.String(c.cfg.BucketName)
	_, err := c.api.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: bucket})
	if err == nil {
		return nil
	}
	if !c.cfg.CreateBucket {
		return fmt.Errorf("bucket %s not accessible: %w", c.cfg.BucketName, err)
	}

	log.Warnf("[S3Backup] Bucket %s not found, creating it", c.cfg.BucketName)
	input := &s3.CreateBucketInput{Bucket: bucket}
	// us-east-1 and custom endpoints reject a location constraint
	if c.cfg.EndpointURL == "" && c.cfg.Region != "us-east-1" {
		input.CreateBucketConfiguration = &types.CreateBucketConfiguration{
			LocationConstraint: types.BucketLocationConstraint(c.cfg.Region),
		}
	}
	if _, err := c.api.CreateBucket(ctx, input); err != nil {
		return fmt.Errorf("failed to create bucket %s: %w", c.cfg.BucketName, err)
	}
	return nil
}

// Upload backs up one variant file. An object of the same size is taken
// to be current and left alone.
func (c *Client) Upload(ctx context.Context, variantKey, filename, localPath string) error {
	key := c.cfg.ObjectKey(variantKey, filename)

	f, err := os.Open(localPath)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", localPath, err)
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("failed to stat %s: %w", localPath, err)
	}

	size, exists, err := c.objectSize(ctx, key)
	if err != nil {
		return err
	}
	if exists && size == info.Size() {
		log.Debugf("[S3Backup] %s is up to date", key)
		return nil
	}

	_, err = c.api.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(c.cfg.BucketName),
		Key:           aws.String(key),
		Body:          f,
		ContentType:   aws.String(getContentType(filepath.Ext(filename))),
		ContentLength: aws.Int64(info.Size()),
		Metadata: map[string]string{
			"variant":       variantKey,
			"upload-source": "productimages-backup",
		},
	})
	if err != nil {
		return fmt.Errorf("failed to upload %s: %w", key, err)
	}
	log.Infof("[S3Backup] Uploaded %s (%d bytes)", key, info.Size())
	return nil
}

// Delete removes the backup of one variant file
func (c *Client) Delete(ctx context.Context, variantKey, filename string) error {
	key := c.cfg.ObjectKey(variantKey, filename)
	_, err := c.api.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(c.cfg.BucketName),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("failed to delete %s: %w", key, err)
	}
	log.Infof("[S3Backup] Deleted %s", key)
	return nil
}

// Restore writes the backup of one variant file to localPath. The file
// appears atomically so a running directory sync never reads it half
// written.
func (c *Client) Restore(ctx context.Context, variantKey, filename, localPath string) error {
	key := c.cfg.ObjectKey(variantKey, filename)
	out, err := c.api.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(c.cfg.BucketName),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("failed to get %s: %w", key, err)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", key, err)
	}
	if err := storage.WriteFileAtomic(localPath, data); err != nil {
		return err
	}
	log.Infof("[S3Backup] Restored %s -> %s", key, localPath)
	return nil
}

func (c *Client) objectSize(ctx context.Context, key string) (int64, bool, error) {
	out, err := c.api.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(c.cfg.BucketName),
		Key:    aws.String(key),
	})
	var notFound *types.NotFound
	switch {
	case errors.As(err, &notFound):
		return 0, false, nil
	case err != nil:
		return 0, false, fmt.Errorf("failed to check %s: %w", key, err)
	}
	return aws.ToInt64(out.ContentLength), true, nil
}

func getContentType(ext string) string {
	if ct, ok := contentTypes[strings.ToLower(ext)]; ok {
		return ct
	}
	return "application/octet-stream"
}
