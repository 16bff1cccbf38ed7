package httputil

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lf-energy-projects-renovation-state/openstef/pkg/config"
	"github.com/lf-energy-projects-renovation-state/openstef/pkg/logger"
)

func testClient(t *testing.T) (*Client, *bytes.Buffer) {
	t.Helper()
	var buf bytes.Buffer
	cfg := &config.Config{Env: "test", LogLevel: "debug", LogFormat: "json"}
	cfg.HTTP = config.HTTPConfig{MaxRetries: 3, RetryDelay: time.Millisecond}
	return New(cfg, logger.NewWithWriter(cfg, &buf)), &buf
}

func TestNew(t *testing.T) {
	client, _ := testClient(t)
	require.NotNil(t, client.httpClient)
	assert.Equal(t, 30*time.Second, client.httpClient.Timeout)
	assert.Equal(t, 3, client.maxRetries)

	cfg := &config.Config{Env: "test", LogLevel: "error", HTTP: config.HTTPConfig{Timeout: time.Second, MaxRetries: -1}}
	client = New(cfg, logger.New(cfg))
	assert.Equal(t, time.Second, client.httpClient.Timeout)
	assert.Zero(t, client.maxRetries)

	client = New(cfg, logger.New(cfg), WithTimeout(5*time.Second), WithRetry(5, 2*time.Second))
	assert.Equal(t, 5*time.Second, client.httpClient.Timeout)
	assert.Equal(t, 5, client.maxRetries)
	assert.Equal(t, 2*time.Second, client.retryDelay)
}

func TestFetch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		w.Write([]byte("date,name\n2024-12-25,Christmas\n"))
	}))
	defer server.Close()

	client, buf := testClient(t)
	body, err := client.Fetch(context.Background(), server.URL)
	require.NoError(t, err)
	assert.Equal(t, "date,name\n2024-12-25,Christmas\n", string(body))
	assert.Contains(t, buf.String(), "HTTP request completed")
}

func TestFetch_NotFound(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	defer server.Close()

	client, _ := testClient(t)
	_, err := client.Fetch(context.Background(), server.URL)
	assert.ErrorIs(t, err, ErrStatus)
}

func TestRetryOn5xx(t *testing.T) {
	var attempts atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if attempts.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte(`ok`))
	}))
	defer server.Close()

	client, buf := testClient(t)

	body, err := client.Fetch(context.Background(), server.URL)
	require.NoError(t, err)
	assert.Equal(t, "ok", string(body))
	assert.Equal(t, int32(3), attempts.Load())
	assert.Contains(t, buf.String(), "Retrying HTTP request")
}

func TestRetryExhausted(t *testing.T) {
	var attempts atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	client, _ := testClient(t)
	WithRetry(1, time.Millisecond)(client)

	_, err := client.Fetch(context.Background(), server.URL)
	assert.ErrorIs(t, err, ErrStatus)
	assert.Equal(t, int32(2), attempts.Load())
}

func TestRetryCancelled(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	client, _ := testClient(t)
	WithRetry(3, time.Hour)(client)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := client.Fetch(ctx, server.URL)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestIsRetryableError(t *testing.T) {
	tests := []struct {
		statusCode int
		want       bool
	}{
		{200, false},
		{201, false},
		{400, false},
		{404, false},
		{429, true}, // Too Many Requests - should retry
		{500, true}, // Internal Server Error
		{502, true}, // Bad Gateway
		{503, true}, // Service Unavailable
		{504, true}, // Gateway Timeout
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("status_%d", tt.statusCode), func(t *testing.T) {
			assert.Equal(t, tt.want, IsRetryableError(tt.statusCode))
		})
	}
}
