package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/pvannier/lumen-api/internal/config"
	"github.com/pvannier/lumen-api/internal/telemetry"
)

// ErrNilLogger is returned when a Client is constructed without a logger.
var ErrNilLogger = errors.New("logger cannot be nil")

// Client issues POST requests to the generation API with a per-attempt
// deadline and retries retryable failures with increasing delay. It does not
// mutate any job state; callers own all side effects.
type Client struct {
	httpClient *http.Client
	logger     *slog.Logger

	timeout    time.Duration
	maxRetries int
	baseDelay  time.Duration
}

// NewClient creates a Client from the upstream configuration. If httpClient
// is nil a default client is used; the per-attempt deadline is always applied
// via context, never via http.Client.Timeout, so a single slow attempt cannot
// leak into the next one.
func NewClient(cfg config.UpstreamConfig, httpClient *http.Client, logger *slog.Logger) (*Client, error) {
	if logger == nil {
		return nil, ErrNilLogger
	}

	if httpClient == nil {
		httpClient = &http.Client{}
	}

	return &Client{
		httpClient: httpClient,
		logger:     logger,
		timeout:    cfg.RequestTimeout(),
		maxRetries: cfg.MaxRetries,
		baseDelay:  cfg.RetryBaseDelay(),
	}, nil
}

// Send POSTs the JSON-encoded payload to endpoint and returns the raw
// response body. Retryable failures (HTTP 429/5xx from the retryable set,
// transport resets, per-attempt timeouts) are re-attempted with a delay of
// baseDelay multiplied by the attempt number; fatal failures return
// immediately. After exhausting attempts the last observed *Failure is
// returned.
func (c *Client) Send(ctx context.Context, endpoint, apiKey string, payload any) ([]byte, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to encode request payload: %w", err)
	}

	var lastFailure *Failure

	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		attemptNum := attempt + 1
		c.logger.DebugContext(ctx, "sending upstream request",
			"attempt", attemptNum,
			"max_attempts", c.maxRetries+1)

		responseBody, failure := c.attempt(ctx, endpoint, apiKey, body)
		if failure == nil {
			c.logger.DebugContext(ctx, "upstream request succeeded",
				"attempt", attemptNum,
				"response_bytes", len(responseBody))
			return responseBody, nil
		}

		lastFailure = failure
		c.logger.WarnContext(ctx, "upstream request attempt failed",
			"attempt", attemptNum,
			"kind", string(failure.Kind),
			"status", failure.StatusCode,
			"retryable", failure.Retryable())

		if !failure.Retryable() {
			return nil, failure
		}

		// Do not burn retries once the caller has given up.
		if ctx.Err() != nil {
			return nil, lastFailure
		}

		if attempt < c.maxRetries {
			delay := c.baseDelay * time.Duration(attemptNum)
			telemetry.UpstreamRetries.Inc()
			c.logger.DebugContext(ctx, "retrying upstream request",
				"delay", delay.String())

			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return nil, lastFailure
			}
		}
	}

	return nil, lastFailure
}

// attempt performs one request/read cycle under the per-attempt deadline.
func (c *Client) attempt(ctx context.Context, endpoint, apiKey string, body []byte) ([]byte, *Failure) {
	attemptCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(attemptCtx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, &Failure{Kind: FailureUnknown, Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	if apiKey != "" {
		req.Header.Set("x-goog-api-key", apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, classifyTransportError(err)
	}
	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil {
			c.logger.Debug("failed to close upstream response body", "error", closeErr)
		}
	}()

	responseBody, err := io.ReadAll(resp.Body)
	if err != nil {
		// A body cut off mid-read is a transport failure even on a 200.
		return nil, classifyTransportError(err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, newStatusFailure(resp.StatusCode, responseBody)
	}

	return responseBody, nil
}
