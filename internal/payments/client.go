// Package payments proxies payment initialization and verification to the
// payment provider so its API key never reaches the browser.
package payments

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/wolfman30/vocal-vent/internal/gateway"
	"github.com/wolfman30/vocal-vent/pkg/logging"
)

var tracer = otel.Tracer("vocalvent.internal.payments")

// ErrProviderRejected is wrapped by every non-2xx provider response.
var ErrProviderRejected = errors.New("payment provider rejected request")

// ErrNotConfigured is returned when no provider base URL is set.
var ErrNotConfigured = errors.New("payment provider not configured")

// Provider is the payment gateway contract the proxy handler needs.
type Provider interface {
	Initialize(ctx context.Context, data map[string]any) (map[string]any, error)
	Verify(ctx context.Context, transactionID string) (map[string]any, error)
}

// Client talks JSON over HTTP to the payment provider.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	logger     *logging.Logger
}

// NewClient creates a provider client.
func NewClient(baseURL, apiKey string, timeout time.Duration, logger *logging.Logger) *Client {
	if logger == nil {
		logger = logging.Default()
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
	}
}

// WithHTTPClient overrides the HTTP client (for testing).
func (c *Client) WithHTTPClient(hc *http.Client) *Client {
	if hc != nil {
		c.httpClient = hc
	}
	return c
}

// Initialize starts a payment and returns the provider's handle verbatim.
func (c *Client) Initialize(ctx context.Context, data map[string]any) (map[string]any, error) {
	ctx, span := tracer.Start(ctx, "payments.initialize")
	defer span.End()

	body, err := json.Marshal(data)
	if err != nil {
		return nil, &gateway.Error{Service: "payments", Op: "initialize", Err: fmt.Errorf("marshal: %w", err)}
	}
	out, err := c.do(ctx, http.MethodPost, "/payments/initialize", "initialize", "", body)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	return out, nil
}

// Verify returns the provider's status document for a transaction.
func (c *Client) Verify(ctx context.Context, transactionID string) (map[string]any, error) {
	ctx, span := tracer.Start(ctx, "payments.verify")
	defer span.End()
	span.SetAttributes(attribute.String("vocalvent.transaction_id", transactionID))

	if strings.TrimSpace(transactionID) == "" {
		return nil, &gateway.Error{Service: "payments", Op: "verify", Err: errors.New("transaction id is required")}
	}
	out, err := c.do(ctx, http.MethodGet, "/payments/verify/"+url.PathEscape(transactionID), "verify", transactionID, nil)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	return out, nil
}

func (c *Client) do(ctx context.Context, method, path, op, resource string, body []byte) (map[string]any, error) {
	if c.baseURL == "" {
		return nil, &gateway.Error{Service: "payments", Op: op, Resource: resource, Err: ErrNotConfigured}
	}
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, &gateway.Error{Service: "payments", Op: op, Resource: resource, Err: err}
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &gateway.Error{Service: "payments", Op: op, Resource: resource, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		c.logger.Warn("payments: provider error", "op", op, "status", resp.StatusCode, "body", string(snippet))
		return nil, &gateway.Error{
			Service:    "payments",
			Op:         op,
			Resource:   resource,
			StatusCode: resp.StatusCode,
			Err:        ErrProviderRejected,
		}
	}

	var out map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, &gateway.Error{Service: "payments", Op: op, Resource: resource, Err: fmt.Errorf("decode: %w", err)}
	}
	return out, nil
}
