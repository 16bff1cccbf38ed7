package httputil

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/lf-energy-projects-renovation-state/openstef/pkg/config"
	"github.com/lf-energy-projects-renovation-state/openstef/pkg/logger"
)

// ErrStatus 2xx가 아닌 응답
var ErrStatus = errors.New("unexpected HTTP status")

// maxBackoff 재시도 대기 상한
const maxBackoff = 10 * time.Second

// Client is a GET-only HTTP client with retry and request logging
// ⭐ SSOT: 외부 기준 데이터(휴일 CSV 등) 요청은 이 클라이언트를 통해서만 수행
type Client struct {
	httpClient *http.Client
	logger     *logger.Logger
	maxRetries int
	retryDelay time.Duration
}

// Option customizes a Client
type Option func(*Client)

// WithTimeout overrides HTTP_TIMEOUT
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.httpClient.Timeout = d }
}

// WithRetry overrides HTTP_MAX_RETRIES / HTTP_RETRY_DELAY
func WithRetry(maxRetries int, initialDelay time.Duration) Option {
	return func(c *Client) {
		c.maxRetries = maxRetries
		c.retryDelay = initialDelay
	}
}

// New creates a client from cfg.HTTP
// ⭐ SSOT: http.Client 인스턴스는 여기서만 생성
func New(cfg *config.Config, log *logger.Logger, opts ...Option) *Client {
	timeout := cfg.HTTP.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	c := &Client{
		httpClient: &http.Client{Timeout: timeout},
		logger:     log,
		maxRetries: max(cfg.HTTP.MaxRetries, 0),
		retryDelay: cfg.HTTP.RetryDelay,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Fetch GETs url and returns the body.
// 5xx / 429 는 재시도, 그 외 2xx 가 아닌 응답은 ErrStatus
func (c *Client) Fetch(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create GET request: %w", err)
	}

	log := c.logger.WithField("url", url)
	start := time.Now()

	resp, attempts, err := c.do(req)
	if err != nil {
		log.WithFields(map[string]interface{}{
			"attempts": attempts,
			"duration": time.Since(start),
		}).WithError(err).Error("HTTP request failed")
		return nil, err
	}
	defer resp.Body.Close()

	log.WithFields(map[string]interface{}{
		"status_code": resp.StatusCode,
		"attempts":    attempts,
		"duration":    time.Since(start),
	}).Debug("HTTP request completed")

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("GET %s: %w: %d", url, ErrStatus, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	return body, nil
}

// do sends req up to maxRetries+1 times with exponential backoff.
// 마지막 응답은 재시도 대상이어도 그대로 반환
func (c *Client) do(req *http.Request) (*http.Response, int, error) {
	delay := c.retryDelay

	for attempt := 1; ; attempt++ {
		resp, err := c.httpClient.Do(req)
		retryable := err != nil || IsRetryableError(resp.StatusCode)
		if !retryable || attempt > c.maxRetries {
			return resp, attempt, err
		}
		if resp != nil {
			resp.Body.Close()
		}

		c.logger.WithFields(map[string]interface{}{
			"attempt": attempt,
			"delay":   delay,
			"url":     req.URL.String(),
		}).Warn("Retrying HTTP request")

		select {
		case <-time.After(delay):
		case <-req.Context().Done():
			return nil, attempt, req.Context().Err()
		}
		delay = min(2*delay, maxBackoff)
	}
}

// IsRetryableError reports whether a status code is worth retrying (5xx, 429)
func IsRetryableError(statusCode int) bool {
	return statusCode >= 500 || statusCode == http.StatusTooManyRequests
}
