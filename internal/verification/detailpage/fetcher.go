// Package detailpage implements the detail-page analyzer: given a matched
// alert's source URL it fetches the page and extracts richer confirmation
// signals, batch lists, risk-indicator keywords, and regulatory-action
// keywords, producing a page-level confidence score. Fetch and parse
// failures are soft: the analyzer returns a degraded low-confidence result
// that the ensemble discounts, never an error.
package detailpage

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/cenkalti/backoff/v4"
	"github.com/sony/gobreaker"

	"github.com/medcheck/MedCheck-Engine/internal/infrastructure/monitoring/logging"
	apperrors "github.com/medcheck/MedCheck-Engine/pkg/errors"
)

const (
	defaultFetchTimeout = 15 * time.Second
	maxFetchRetries     = 2
	maxBodyBytes        = 2 << 20 // 2 MiB, alert pages are small
)

// Fetcher retrieves the visible text of an alert's source page.
type Fetcher interface {
	FetchPage(ctx context.Context, url string) (string, error)
}

type httpFetcher struct {
	client  *http.Client
	breaker *gobreaker.CircuitBreaker
	log     logging.Logger
}

// NewHTTPFetcher constructs the production Fetcher: bounded retries with
// exponential backoff behind a circuit breaker, so a struggling regulator
// site is probed, not hammered.
func NewHTTPFetcher(timeout time.Duration, log logging.Logger) Fetcher {
	if timeout <= 0 {
		timeout = defaultFetchTimeout
	}
	if log == nil {
		log = logging.NewNopLogger()
	}
	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    "detail-page-fetch",
		Timeout: 30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
	})
	return &httpFetcher{
		client:  &http.Client{Timeout: timeout},
		breaker: breaker,
		log:     log.Named("detailpage.fetcher"),
	}
}

func (f *httpFetcher) FetchPage(ctx context.Context, url string) (string, error) {
	result, err := f.breaker.Execute(func() (interface{}, error) {
		var text string
		op := func() error {
			var fetchErr error
			text, fetchErr = f.fetchOnce(ctx, url)
			return fetchErr
		}
		bo := backoff.WithContext(
			backoff.WithMaxRetries(backoff.NewExponentialBackOff(), maxFetchRetries), ctx)
		if err := backoff.Retry(op, bo); err != nil {
			return "", err
		}
		return text, nil
	})
	if err != nil {
		return "", apperrors.Wrap(err, apperrors.ErrCodeSourceUnavailable,
			"failed to fetch alert detail page")
	}
	return result.(string), nil
}

func (f *httpFetcher) fetchOnce(ctx context.Context, url string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", backoff.Permanent(err)
	}
	req.Header.Set("User-Agent", "MedCheck-Engine/1.0 (+https://github.com/medcheck/MedCheck-Engine)")

	resp, err := f.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 && resp.StatusCode < 500 {
		return "", backoff.Permanent(fmt.Errorf("detail page returned status %d", resp.StatusCode))
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("detail page returned status %d", resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return "", backoff.Permanent(err)
	}
	doc.Find("script, style, noscript").Remove()
	text := strings.Join(strings.Fields(doc.Find("body").Text()), " ")
	return text, nil
}
