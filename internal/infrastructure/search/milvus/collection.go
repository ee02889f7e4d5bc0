package milvus

import (
	"context"
	"strconv"

	"github.com/milvus-io/milvus-sdk-go/v2/client"
	"github.com/milvus-io/milvus-sdk-go/v2/entity"

	"github.com/medcheck/MedCheck-Engine/internal/infrastructure/monitoring/logging"
	"github.com/medcheck/MedCheck-Engine/pkg/errors"
)

const (
	fieldProductName = "product_name"
	fieldEmbedding   = "embedding"

	productNameMaxLength = 256
)

// EnsureCollection creates the name-embedding collection and its index when
// they do not exist, then loads the collection for querying.
func EnsureCollection(ctx context.Context, c *Client, collection string, dim int, log logging.Logger) error {
	if log == nil {
		log = logging.NewNopLogger()
	}
	if collection == "" {
		return errors.New(errors.ErrCodeValidation, "milvus collection name is required")
	}
	if dim <= 0 {
		return errors.New(errors.ErrCodeValidation, "embedding dimension must be positive")
	}

	mc := c.Milvus()

	exists, err := mc.HasCollection(ctx, collection)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeExternalService, "failed to check milvus collection")
	}

	if !exists {
		schema := entity.NewSchema().
			WithName(collection).
			WithDescription("normalized product-name embeddings for semantic matching").
			WithField(entity.NewField().
				WithName(fieldProductName).
				WithDataType(entity.FieldTypeVarChar).
				WithMaxLength(productNameMaxLength).
				WithIsPrimaryKey(true)).
			WithField(entity.NewField().
				WithName(fieldEmbedding).
				WithDataType(entity.FieldTypeFloatVector).
				WithDim(int64(dim)))

		if err := mc.CreateCollection(ctx, schema, 1); err != nil {
			return errors.Wrap(err, errors.ErrCodeExternalService, "failed to create milvus collection").
				WithDetail("collection=" + collection)
		}

		idx, err := entity.NewIndexHNSW(entity.COSINE, 16, 64)
		if err != nil {
			return errors.Wrap(err, errors.ErrCodeInternal, "failed to build hnsw index definition")
		}
		if err := mc.CreateIndex(ctx, collection, fieldEmbedding, idx, false); err != nil {
			return errors.Wrap(err, errors.ErrCodeExternalService, "failed to create embedding index")
		}

		log.Info("milvus collection created",
			logging.String("collection", collection),
			logging.String("dim", strconv.Itoa(dim)))
	}

	if err := mc.LoadCollection(ctx, collection, false, client.WithReplicaNumber(1)); err != nil {
		return errors.Wrap(err, errors.ErrCodeExternalService, "failed to load milvus collection")
	}
	return nil
}
