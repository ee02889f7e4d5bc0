package minio

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/url"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"

	"github.com/medcheck/MedCheck-Engine/internal/infrastructure/monitoring/logging"
	"github.com/medcheck/MedCheck-Engine/internal/verification/common"
	"github.com/medcheck/MedCheck-Engine/pkg/errors"
)

// objectStore is the subset of the MinIO client the evidence store uses.
type objectStore interface {
	PutObject(ctx context.Context, bucketName, objectName string, reader io.Reader, objectSize int64, opts minio.PutObjectOptions) (minio.UploadInfo, error)
	PresignedGetObject(ctx context.Context, bucketName, objectName string, expiry time.Duration, reqParams url.Values) (*url.URL, error)
	BucketExists(ctx context.Context, bucketName string) (bool, error)
	MakeBucket(ctx context.Context, bucketName string, opts minio.MakeBucketOptions) error
}

// EvidenceStore writes the images submitted with a verification request to
// object storage, keyed by request ID. It implements the pipeline's evidence
// archive.
type EvidenceStore struct {
	store         objectStore
	bucket        string
	presignExpiry time.Duration
	log           logging.Logger
}

// NewEvidenceStore constructs an EvidenceStore on the given bucket.
func NewEvidenceStore(mc *minio.Client, bucket string, presignExpiry time.Duration, log logging.Logger) *EvidenceStore {
	return newEvidenceStore(mc, bucket, presignExpiry, log)
}

func newEvidenceStore(store objectStore, bucket string, presignExpiry time.Duration, log logging.Logger) *EvidenceStore {
	if log == nil {
		log = logging.NewNopLogger()
	}
	if presignExpiry <= 0 {
		presignExpiry = 24 * time.Hour
	}
	return &EvidenceStore{
		store:         store,
		bucket:        bucket,
		presignExpiry: presignExpiry,
		log:           log.Named("evidence_store"),
	}
}

// EnsureBucket creates the evidence bucket when it does not exist.
func (s *EvidenceStore) EnsureBucket(ctx context.Context) error {
	exists, err := s.store.BucketExists(ctx, s.bucket)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeExternalService, "failed to check evidence bucket").
			WithDetail("bucket=" + s.bucket)
	}
	if exists {
		return nil
	}
	if err := s.store.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{}); err != nil {
		return errors.Wrap(err, errors.ErrCodeExternalService, "failed to create evidence bucket").
			WithDetail("bucket=" + s.bucket)
	}
	s.log.Info("evidence bucket created", logging.String("bucket", s.bucket))
	return nil
}

// ArchiveImages stores every submitted image under <requestID>/<nn>_<name>.
// The first upload failure aborts the batch; already written objects stay.
func (s *EvidenceStore) ArchiveImages(ctx context.Context, requestID string, images []common.Image) error {
	if requestID == "" {
		return errors.New(errors.ErrCodeValidation, "request id is required")
	}

	for i, img := range images {
		key := objectKey(requestID, i, img.Name)
		contentType := img.ContentType
		if contentType == "" {
			contentType = "application/octet-stream"
		}

		_, err := s.store.PutObject(ctx, s.bucket, key,
			bytes.NewReader(img.Data), int64(len(img.Data)),
			minio.PutObjectOptions{ContentType: contentType})
		if err != nil {
			return errors.Wrap(err, errors.ErrCodeExternalService, "failed to archive evidence image").
				WithDetail(fmt.Sprintf("bucket=%s key=%s", s.bucket, key))
		}
	}

	s.log.Debug("evidence images archived",
		logging.String("request_id", requestID),
		logging.Int("count", len(images)))
	return nil
}

// EvidenceURL returns a presigned download URL for one archived image.
func (s *EvidenceStore) EvidenceURL(ctx context.Context, requestID string, index int, name string) (string, error) {
	key := objectKey(requestID, index, name)
	u, err := s.store.PresignedGetObject(ctx, s.bucket, key, s.presignExpiry, nil)
	if err != nil {
		return "", errors.Wrap(err, errors.ErrCodeExternalService, "failed to presign evidence url").
			WithDetail("key=" + key)
	}
	return u.String(), nil
}

func objectKey(requestID string, index int, name string) string {
	return fmt.Sprintf("%s/%02d_%s", requestID, index, sanitizeObjectName(name))
}

// sanitizeObjectName keeps object keys flat and portable. User-supplied file
// names may contain path separators or characters S3 keys handle poorly.
func sanitizeObjectName(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return "image"
	}
	var b strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '.' || r == '-' || r == '_':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	return b.String()
}
