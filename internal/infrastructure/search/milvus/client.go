// Package milvus provides the embedding-based product-name similarity
// backend. Alert product-name embeddings are produced offline and stored in
// a single Milvus collection keyed by normalized name; this package queries
// them and computes cosine similarity in process.
package milvus

import (
	"context"
	"time"

	"github.com/milvus-io/milvus-sdk-go/v2/client"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/keepalive"

	appconfig "github.com/medcheck/MedCheck-Engine/internal/config"
	"github.com/medcheck/MedCheck-Engine/internal/infrastructure/monitoring/logging"
	"github.com/medcheck/MedCheck-Engine/pkg/errors"
)

// milvusNewClient is a seam for tests.
var milvusNewClient = client.NewClient

const connectTimeout = 10 * time.Second

// Client wraps the Milvus SDK connection.
type Client struct {
	mc  client.Client
	log logging.Logger
}

// NewClient dials Milvus and verifies the connection. The caller is expected
// to have checked cfg.Addr is non-empty; an empty address disables the
// semantic backend entirely and NewClient is never reached.
func NewClient(ctx context.Context, cfg appconfig.MilvusConfig, log logging.Logger) (*Client, error) {
	if log == nil {
		log = logging.NewNopLogger()
	}
	if cfg.Addr == "" {
		return nil, errors.New(errors.ErrCodeValidation, "milvus address is required")
	}

	dbName := cfg.DBName
	if dbName == "" {
		dbName = "default"
	}

	dialOpts := []grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithKeepaliveParams(keepalive.ClientParameters{
			Time:                60 * time.Second,
			Timeout:             20 * time.Second,
			PermitWithoutStream: true,
		}),
	}

	connectCtx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()

	mc, err := milvusNewClient(connectCtx, client.Config{
		Address:     cfg.Addr,
		DBName:      dbName,
		DialOptions: dialOpts,
	})
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeExternalService, "failed to connect to milvus").
			WithDetail("addr=" + cfg.Addr)
	}

	c := &Client{mc: mc, log: log.Named("milvus")}
	c.log.Info("milvus connected", logging.String("addr", cfg.Addr), logging.String("db", dbName))
	return c, nil
}

// Milvus returns the underlying SDK client.
func (c *Client) Milvus() client.Client {
	return c.mc
}

// HealthCheck verifies the server is reachable.
func (c *Client) HealthCheck(ctx context.Context) error {
	if _, err := c.mc.GetVersion(ctx); err != nil {
		return errors.Wrap(err, errors.ErrCodeServiceUnavailable, "milvus health check failed")
	}
	return nil
}

// Close releases the connection.
func (c *Client) Close() error {
	if c.mc != nil {
		if err := c.mc.Close(); err != nil {
			return err
		}
	}
	c.log.Info("milvus client closed")
	return nil
}
