package export

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/rs/zerolog"

	appconfig "github.com/triagewatch/triagewatch/internal/config"
)

// Uploader ships artifacts to an S3-compatible bucket. Works against AWS
// and against R2/MinIO style endpoints via the Endpoint override.
type Uploader struct {
	bucket   string
	uploader *manager.Uploader
	log      zerolog.Logger
}

// NewUploader builds an uploader from the export configuration.
func NewUploader(ctx context.Context, cfg appconfig.ExportConfig, log zerolog.Logger) (*Uploader, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(cfg.Region),
		awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load S3 config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = &cfg.Endpoint
			o.UsePathStyle = true
		}
	})

	return &Uploader{
		bucket:   cfg.Bucket,
		uploader: manager.NewUploader(client),
		log:      log.With().Str("component", "export_uploader").Logger(),
	}, nil
}

// Upload streams the artifact at path into the bucket under its base name.
func (u *Uploader) Upload(ctx context.Context, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open artifact %s: %w", path, err)
	}
	defer f.Close()

	key := filepath.Base(path)
	_, err = u.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket: &u.bucket,
		Key:    &key,
		Body:   f,
	})
	if err != nil {
		return fmt.Errorf("failed to upload artifact %s: %w", key, err)
	}

	u.log.Info().Str("bucket", u.bucket).Str("key", key).Msg("Artifact uploaded")
	return nil
}
