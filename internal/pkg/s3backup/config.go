package s3backup

import (
	"errors"
	"fmt"
	"time"

	"github.com/ManuelReschke/CreatorStudio/internal/pkg/env"
)

// Config holds S3 archive configuration
type Config struct {
	AccessKeyID     string
	SecretAccessKey string
	Region          string
	BucketName      string
	EndpointURL     string // Optional for S3-compatible services
	Enabled         bool
}

// LoadConfig loads S3 configuration from environment variables
func LoadConfig() (*Config, error) {
	config := &Config{
		AccessKeyID:     env.GetEnv("S3_ACCESS_KEY_ID", ""),
		SecretAccessKey: env.GetEnv("S3_SECRET_ACCESS_KEY", ""),
		Region:          env.GetEnv("S3_REGION", "us-west-001"),
		BucketName:      env.GetEnv("S3_BUCKET_NAME", ""),
		EndpointURL:     env.GetEnv("S3_ENDPOINT_URL", ""),
		Enabled:         env.GetEnvBool("S3_BACKUP_ENABLED", false),
	}

	// Validate required fields if the archive is enabled
	if config.Enabled {
		if config.AccessKeyID == "" {
			return nil, errors.New("S3_ACCESS_KEY_ID is required when S3 backup is enabled")
		}
		if config.SecretAccessKey == "" {
			return nil, errors.New("S3_SECRET_ACCESS_KEY is required when S3 backup is enabled")
		}
		if config.BucketName == "" {
			return nil, errors.New("S3_BUCKET_NAME is required when S3 backup is enabled")
		}
	}

	return config, nil
}

// IsEnabled returns true if S3 archiving is enabled
func (c *Config) IsEnabled() bool {
	return c.Enabled
}

// AvatarObjectKey builds the key of the n-th image of a generation.
// Format: avatars/YYYY/MM/<generation-uuid>-<n><ext>
func AvatarObjectKey(generationUUID string, n int, ext string, createdAt time.Time) string {
	return fmt.Sprintf("avatars/%04d/%02d/%s-%d%s", createdAt.Year(), int(createdAt.Month()), generationUUID, n, ext)
}

// AvatarThumbnailKey builds the key of the WebP preview of the n-th image.
func AvatarThumbnailKey(generationUUID string, n int, createdAt time.Time) string {
	return AvatarObjectKey(generationUUID, n, "_thumb.webp", createdAt)
}

// GetAppEnv returns the current application environment
func GetAppEnv() string {
	return env.GetEnv("APP_ENV", "dev")
}

// GetBucketName returns the bucket name as configured (no automatic prefixing)
func (c *Config) GetBucketName() string {
	return c.BucketName
}
