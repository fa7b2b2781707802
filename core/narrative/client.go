package narrative

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/codes"
)

const defaultTimeout = 10 * time.Second

// Client calls the branch-generation endpoint.
type Client struct {
	url        string
	httpClient *http.Client
}

type ClientOption func(*Client)

// WithHTTPClient replaces the underlying HTTP client, mostly for tests.
func WithHTTPClient(httpClient *http.Client) ClientOption {
	return func(c *Client) { c.httpClient = httpClient }
}

// WithTimeout overrides the per-request timeout.
func WithTimeout(timeout time.Duration) ClientOption {
	return func(c *Client) { c.httpClient.Timeout = timeout }
}

func NewClient(url string, opts ...ClientOption) *Client {
	c := &Client{
		url: url,
		httpClient: &http.Client{
			Timeout: defaultTimeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport,
				otelhttp.WithSpanNameFormatter(func(_ string, request *http.Request) string {
					return fmt.Sprintf("%s %s", request.Method, request.URL.Path)
				}),
			),
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Generate requests a story beat for the given trigger payload.
func (c *Client) Generate(ctx context.Context, request Request) (*Reply, error) {
	ctx, span := tracer.Start(ctx, "generate narrative branch")
	defer span.End()

	body, err := json.Marshal(request)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal branch request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create branch request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		recordedErr := fmt.Errorf("failed to reach branch endpoint: %w", err)
		span.RecordError(recordedErr)
		span.SetStatus(codes.Error, recordedErr.Error())
		return nil, recordedErr
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		recordedErr := fmt.Errorf("branch endpoint returned non-OK status: %s", resp.Status)
		span.RecordError(recordedErr)
		span.SetStatus(codes.Error, recordedErr.Error())
		return nil, recordedErr
	}

	var reply Reply
	if err := json.NewDecoder(resp.Body).Decode(&reply); err != nil {
		return nil, fmt.Errorf("failed to decode branch reply: %w", err)
	}

	return &reply, nil
}
