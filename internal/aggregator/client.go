// internal/aggregator/client.go
package aggregator

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/bytedance/sonic"
	"github.com/cenkalti/backoff/v5"
	"go.uber.org/zap"
)

const (
	DefaultBaseURL        = "https://lite-api.jup.ag/swap/v1"
	DefaultPriceURL       = "https://lite-api.jup.ag/price/v2"
	defaultRequestTimeout = 10 * time.Second
)

// Config configures the aggregator client.
type Config struct {
	BaseURL     string
	PriceURL    string
	Timeout     time.Duration
	RetryWindow time.Duration
}

// Client talks to a Jupiter-compatible swap aggregator.
type Client struct {
	http        *http.Client
	logger      *zap.Logger
	baseURL     string
	priceURL    string
	retryWindow time.Duration
}

// APIError is a non-2xx response from the aggregator.
type APIError struct {
	Status  int
	Code    string
	Message string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("aggregator %d %s: %s", e.Status, e.Code, e.Message)
	}
	return fmt.Sprintf("aggregator %d: %s", e.Status, e.Message)
}

// Temporary reports whether retrying the same request may succeed.
func (e *APIError) Temporary() bool {
	return e.Status == http.StatusTooManyRequests || e.Status >= 500
}

type errorBody struct {
	Error     string `json:"error"`
	ErrorCode string `json:"errorCode"`
	Message   string `json:"message"`
}

// NewClient создает новый клиент агрегатора.
func NewClient(cfg Config, logger *zap.Logger) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.PriceURL == "" {
		cfg.PriceURL = DefaultPriceURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultRequestTimeout
	}
	return &Client{
		http: &http.Client{
			Timeout: cfg.Timeout,
			Transport: &http.Transport{
				MaxIdleConns:        20,
				MaxIdleConnsPerHost: 20,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		logger:      logger.Named("aggregator"),
		baseURL:     cfg.BaseURL,
		priceURL:    cfg.PriceURL,
		retryWindow: cfg.RetryWindow,
	}
}

// do executes one request and returns the body of a 200 response.
func (c *Client) do(ctx context.Context, method, url string, body []byte) ([]byte, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	c.logger.Debug("aggregator request completed",
		zap.String("method", method),
		zap.String("url", url),
		zap.Int("status", resp.StatusCode),
		zap.Duration("duration", time.Since(start)))

	if resp.StatusCode != http.StatusOK {
		return nil, decodeAPIError(resp.StatusCode, raw)
	}
	var eb errorBody
	if err := sonic.Unmarshal(raw, &eb); err == nil && eb.Error != "" {
		return nil, &APIError{Status: resp.StatusCode, Code: eb.ErrorCode, Message: eb.Error}
	}
	return raw, nil
}

func decodeAPIError(status int, raw []byte) error {
	apiErr := &APIError{Status: status, Message: http.StatusText(status)}
	var eb errorBody
	if err := sonic.Unmarshal(raw, &eb); err == nil {
		switch {
		case eb.Error != "":
			apiErr.Message = eb.Error
		case eb.Message != "":
			apiErr.Message = eb.Message
		}
		apiErr.Code = eb.ErrorCode
	} else if len(raw) > 0 && len(raw) < 256 {
		apiErr.Message = string(raw)
	}
	return apiErr
}

// retry runs op with exponential backoff inside the configured window.
// Non-temporary API errors stop immediately.
func retry[T any](ctx context.Context, c *Client, name string, op func() (T, error)) (T, error) {
	if c.retryWindow <= 0 {
		return op()
	}
	attempt := 0
	return backoff.Retry(ctx, func() (T, error) {
		attempt++
		v, err := op()
		if err == nil {
			return v, nil
		}
		var apiErr *APIError
		if errors.As(err, &apiErr) && !apiErr.Temporary() {
			return v, backoff.Permanent(err)
		}
		c.logger.Warn("retrying aggregator call",
			zap.String("call", name),
			zap.Int("attempt", attempt),
			zap.Error(err))
		return v, err
	},
		backoff.WithBackOff(backoff.NewExponentialBackOff()),
		backoff.WithMaxElapsedTime(c.retryWindow))
}
