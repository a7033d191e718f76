package upstream_test

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pvannier/lumen-api/internal/config"
	"github.com/pvannier/lumen-api/internal/upstream"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testConfig() config.UpstreamConfig {
	return config.UpstreamConfig{
		RequestTimeoutSeconds: 5,
		MaxRetries:            3,
		RetryBaseDelayMillis:  20,
	}
}

func newTestClient(t *testing.T, cfg config.UpstreamConfig) *upstream.Client {
	t.Helper()
	client, err := upstream.NewClient(cfg, nil, testLogger())
	require.NoError(t, err)
	return client
}

func TestNewClientRequiresLogger(t *testing.T) {
	t.Parallel()

	_, err := upstream.NewClient(testConfig(), nil, nil)
	assert.ErrorIs(t, err, upstream.ErrNilLogger)
}

func TestSendRetriesTransientStatusThenSucceeds(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) <= 2 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer server.Close()

	client := newTestClient(t, testConfig())

	start := time.Now()
	body, err := client.Send(context.Background(), server.URL, "key", map[string]string{"p": "x"})
	elapsed := time.Since(start)

	require.NoError(t, err)
	assert.JSONEq(t, `{"ok":true}`, string(body))
	assert.Equal(t, int32(3), calls.Load(), "expected exactly 3 attempts")

	// Backoff is baseDelay*1 then baseDelay*2.
	assert.GreaterOrEqual(t, elapsed, 60*time.Millisecond)
}

func TestSendFatalStatusShortCircuits(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":{"message":"invalid argument","code":400}}`))
	}))
	defer server.Close()

	client := newTestClient(t, testConfig())

	_, err := client.Send(context.Background(), server.URL, "key", nil)
	require.Error(t, err)

	var failure *upstream.Failure
	require.ErrorAs(t, err, &failure)
	assert.Equal(t, upstream.FailureStatus, failure.Kind)
	assert.Equal(t, http.StatusBadRequest, failure.StatusCode)
	assert.Equal(t, "invalid argument", failure.UpstreamMessage)
	assert.Equal(t, "400", failure.UpstreamCode)
	assert.False(t, failure.Retryable())
	assert.Equal(t, int32(1), calls.Load(), "fatal failure must not be retried")
}

func TestSendExhaustsRetriesAndReturnsLastFailure(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error":{"message":"quota exhausted","code":"RESOURCE_EXHAUSTED"}}`))
	}))
	defer server.Close()

	cfg := testConfig()
	cfg.MaxRetries = 2
	client := newTestClient(t, cfg)

	_, err := client.Send(context.Background(), server.URL, "key", nil)
	require.Error(t, err)

	var failure *upstream.Failure
	require.ErrorAs(t, err, &failure)
	assert.Equal(t, http.StatusTooManyRequests, failure.StatusCode)
	assert.Equal(t, "RESOURCE_EXHAUSTED", failure.UpstreamCode)
	assert.Equal(t, "quota exhausted", failure.UpstreamMessage)
	assert.Equal(t, int32(3), calls.Load(), "2 retries means 3 total attempts")
}

func TestSendAttemptDeadlineIsRetryable(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Stall past the per-attempt deadline.
		time.Sleep(2 * time.Second)
	}))
	defer server.Close()

	cfg := testConfig()
	cfg.RequestTimeoutSeconds = 1
	cfg.MaxRetries = 0
	client := newTestClient(t, cfg)

	_, err := client.Send(context.Background(), server.URL, "key", nil)
	require.Error(t, err)

	var failure *upstream.Failure
	require.ErrorAs(t, err, &failure)
	assert.Equal(t, upstream.FailureTimeout, failure.Kind)
	assert.True(t, failure.Retryable())
}

func TestSendStopsWhenCallerCancels(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	client := newTestClient(t, testConfig())

	start := time.Now()
	_, err := client.Send(ctx, server.URL, "key", nil)
	assert.Error(t, err)
	assert.Less(t, time.Since(start), time.Second, "cancelled send must not sit out the backoff")
}
