// Package minio archives submitted evidence images in object storage so a
// verdict can be audited after the fact.
package minio

import (
	"context"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	appconfig "github.com/medcheck/MedCheck-Engine/internal/config"
	"github.com/medcheck/MedCheck-Engine/internal/infrastructure/monitoring/logging"
	"github.com/medcheck/MedCheck-Engine/pkg/errors"
)

// NewClient constructs a MinIO client and verifies connectivity by checking
// the configured bucket.
func NewClient(ctx context.Context, cfg appconfig.MinIOConfig, log logging.Logger) (*minio.Client, error) {
	if log == nil {
		log = logging.NewNopLogger()
	}
	if cfg.Endpoint == "" {
		return nil, errors.New(errors.ErrCodeValidation, "minio endpoint is required")
	}

	mc, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeExternalService, "failed to create minio client").
			WithDetail("endpoint=" + cfg.Endpoint)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if _, err := mc.BucketExists(pingCtx, cfg.Bucket); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeExternalService, "minio connection check failed").
			WithDetail("endpoint=" + cfg.Endpoint)
	}

	log.Named("minio").Info("minio connected",
		logging.String("endpoint", cfg.Endpoint),
		logging.String("bucket", cfg.Bucket))
	return mc, nil
}
