// Package opensearch provides the alert-corpus full-text index: a candidate
// prefilter for the ranker and the indexer the ingestion side writes through.
package opensearch

import (
	"context"
	"crypto/tls"
	"net/http"
	"time"

	opensearchgo "github.com/opensearch-project/opensearch-go/v2"

	"github.com/medcheck/MedCheck-Engine/internal/config"
	"github.com/medcheck/MedCheck-Engine/internal/infrastructure/monitoring/logging"
	"github.com/medcheck/MedCheck-Engine/pkg/errors"
)

var errConnectionFailed = errors.New(errors.ErrCodeInternal, "opensearch connection failed")

// NewClient creates an OpenSearch client and verifies connectivity.
func NewClient(cfg config.OpenSearchConfig, log logging.Logger) (*opensearchgo.Client, error) {
	if log == nil {
		log = logging.NewNopLogger()
	}
	if len(cfg.Addresses) == 0 {
		return nil, errors.New(errors.ErrCodeValidation, "opensearch addresses are required")
	}

	transport := &http.Transport{MaxIdleConnsPerHost: 10}
	if cfg.InsecureSkipVerify {
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}
	}

	client, err := opensearchgo.NewClient(opensearchgo.Config{
		Addresses:     cfg.Addresses,
		Username:      cfg.User,
		Password:      cfg.Password,
		MaxRetries:    3,
		RetryBackoff:  func(int) time.Duration { return 100 * time.Millisecond },
		RetryOnStatus: []int{502, 503, 504, 429},
		Transport:     transport,
	})
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to create opensearch client")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := ping(ctx, client); err != nil {
		return nil, errConnectionFailed.WithCause(err)
	}

	log.Info("opensearch client connected", logging.Any("addresses", cfg.Addresses))
	return client, nil
}

func ping(ctx context.Context, client *opensearchgo.Client) error {
	resp, err := client.Ping(client.Ping.WithContext(ctx))
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.IsError() {
		return errors.Newf(errors.ErrCodeInternal, "opensearch ping returned %s", resp.Status())
	}
	return nil
}
