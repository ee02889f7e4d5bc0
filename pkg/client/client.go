// Package client is the Go client for the MedCheck verification API. The
// medcheck CLI is built on it; external Go consumers can use it directly.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"
	"time"

	"github.com/medcheck/MedCheck-Engine/pkg/errors"
	verdicttypes "github.com/medcheck/MedCheck-Engine/pkg/types/verification"
)

const defaultTimeout = 60 * time.Second

// Alert mirrors the API's alert document.
type Alert struct {
	ID           string    `json:"id"`
	Title        string    `json:"title"`
	Excerpt      string    `json:"excerpt"`
	URL          string    `json:"url"`
	Date         time.Time `json:"date"`
	BatchNumbers []string  `json:"batch_numbers"`
	ProductNames []string  `json:"product_names"`
	Manufacturer string    `json:"manufacturer,omitempty"`
	Severity     string    `json:"severity"`
	Category     string    `json:"category"`
	Active       bool      `json:"active"`
}

// Image is one evidence photo attached to a verification request.
type Image struct {
	Name        string
	ContentType string
	Data        []byte
}

// VerifyRequest carries the product details submitted for verification.
type VerifyRequest struct {
	ProductName string
	Description string
	BatchNumber string
	Images      []Image
}

// Client talks to a running MedCheck API server.
type Client struct {
	baseURL string
	httpc   *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying http.Client.
func WithHTTPClient(httpc *http.Client) Option {
	return func(c *Client) { c.httpc = httpc }
}

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.httpc.Timeout = d }
}

// New creates a Client against baseURL, e.g. "http://localhost:8080".
func New(baseURL string, opts ...Option) (*Client, error) {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		return nil, errors.New(errors.ErrCodeValidation, "base URL is required")
	}
	c := &Client{
		baseURL: baseURL,
		httpc:   &http.Client{Timeout: defaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Verify submits a product for verification and returns the verdict.
func (c *Client) Verify(ctx context.Context, req VerifyRequest) (*verdicttypes.Verdict, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	fields := map[string]string{
		"product_name": req.ProductName,
		"description":  req.Description,
		"batch_number": req.BatchNumber,
	}
	for key, value := range fields {
		if value == "" {
			continue
		}
		if err := mw.WriteField(key, value); err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeSerialization, "failed to encode request field")
		}
	}
	for _, img := range req.Images {
		header := make(textproto.MIMEHeader)
		header.Set("Content-Disposition",
			fmt.Sprintf(`form-data; name="images"; filename=%q`, img.Name))
		if img.ContentType != "" {
			header.Set("Content-Type", img.ContentType)
		}
		part, err := mw.CreatePart(header)
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeSerialization, "failed to encode image part")
		}
		if _, err := part.Write(img.Data); err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeSerialization, "failed to encode image part")
		}
	}
	if err := mw.Close(); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeSerialization, "failed to finalize request body")
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/api/v1/verifications", &buf)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to build request")
	}
	httpReq.Header.Set("Content-Type", mw.FormDataContentType())

	var verdict verdicttypes.Verdict
	if err := c.do(httpReq, &verdict); err != nil {
		return nil, err
	}
	return &verdict, nil
}

// ListAlerts returns every active alert.
func (c *Client) ListAlerts(ctx context.Context) ([]Alert, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/v1/alerts", nil)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to build request")
	}
	var alerts []Alert
	if err := c.do(httpReq, &alerts); err != nil {
		return nil, err
	}
	return alerts, nil
}

// GetAlert returns a single alert by ID.
func (c *Client) GetAlert(ctx context.Context, id string) (*Alert, error) {
	if strings.TrimSpace(id) == "" {
		return nil, errors.New(errors.ErrCodeValidation, "alert id is required")
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/v1/alerts/"+id, nil)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to build request")
	}
	var a Alert
	if err := c.do(httpReq, &a); err != nil {
		return nil, err
	}
	return &a, nil
}

// Healthy reports whether the server's readiness probe passes.
func (c *Client) Healthy(ctx context.Context) error {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/readyz", nil)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeInternal, "failed to build request")
	}
	resp, err := c.httpc.Do(httpReq)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeExternalService, "server unreachable")
	}
	defer func() { _, _ = io.Copy(io.Discard, resp.Body); _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		return errors.New(errors.ErrCodeServiceUnavailable, "server is not ready")
	}
	return nil
}

// apiError is the server's error response body.
type apiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (c *Client) do(req *http.Request, out interface{}) error {
	resp, err := c.httpc.Do(req)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeExternalService, "request failed")
	}
	defer func() { _, _ = io.Copy(io.Discard, resp.Body); _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeExternalService, "failed to read response")
	}

	if resp.StatusCode >= 400 {
		var ae apiError
		if jsonErr := json.Unmarshal(body, &ae); jsonErr == nil && ae.Code != "" {
			return errors.New(errors.ErrorCode(ae.Code), ae.Message)
		}
		return errors.New(errors.ErrCodeExternalService,
			fmt.Sprintf("server returned status %d", resp.StatusCode))
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return errors.Wrap(err, errors.ErrCodeSerialization, "failed to decode response")
	}
	return nil
}
