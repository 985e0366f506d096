package mediation

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"
)

// ClientConfig configures the HTTP mediation client.
type ClientConfig struct {
	ServerURL string        // e.g., "http://localhost:8080"
	Timeout   time.Duration // per-request ceiling
}

// DefaultClientConfig returns sensible defaults.
func DefaultClientConfig() *ClientConfig {
	return &ClientConfig{
		ServerURL: "http://localhost:8080",
		Timeout:   2 * time.Second,
	}
}

// Client calls a mediation server over HTTP JSON.
type Client struct {
	config     *ClientConfig
	httpClient *http.Client
	logger     zerolog.Logger
}

// NewClient creates a new mediation client.
func NewClient(cfg *ClientConfig, logger zerolog.Logger) *Client {
	if cfg == nil {
		cfg = DefaultClientConfig()
	}

	return &Client{
		config: cfg,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		logger: logger.With().Str("component", "mediation-client").Logger(),
	}
}

// Mediate posts the request to the server and decodes the result. Context
// deadline expiry maps to ErrTimeout; everything else maps to ErrFailed.
func (c *Client) Mediate(ctx context.Context, req *Request) (*Result, error) {
	ctx, cancel := context.WithTimeout(ctx, c.config.Timeout)
	defer cancel()

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("%w: marshal request: %v", ErrFailed, err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.ServerURL+"/v1/mediate", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%w: create request: %v", ErrFailed, err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w after %v", ErrTimeout, time.Since(start))
		}
		return nil, fmt.Errorf("%w: %v", ErrFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		c.logger.Warn().
			Int("status", resp.StatusCode).
			Str("body", truncateForLog(string(respBody), 200)).
			Msg("Mediation server returned non-OK status")
		return nil, fmt.Errorf("%w: status %d", ErrFailed, resp.StatusCode)
	}

	var result Result
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("%w: decode response: %v", ErrFailed, err)
	}
	if result.MediatedText == "" {
		return nil, fmt.Errorf("%w: empty mediated text", ErrFailed)
	}

	c.logger.Debug().
		Dur("latency", time.Since(start)).
		Float64("confidence", result.Confidence).
		Msg("Mediation complete")

	return &result, nil
}

// truncateForLog truncates a string for logging purposes.
func truncateForLog(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
