// Package extraction talks to the external AI extraction capability. The
// service is treated as unreliable: it may return non-JSON text, omit fields,
// or hallucinate enum values, and every caller handles all three.
package extraction

import (
	"context"
	"encoding/base64"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/bidworks/ingest-pipeline/internal/infrastructure/resilience"
)

type Client struct {
	baseURL    string
	model      string
	httpClient *http.Client
	limiter    *rate.Limiter
	executor   *resilience.Executor

	// payloadLimit is the capability's binary payload ceiling in bytes.
	// Documents above it are pre-converted to extracted text.
	payloadLimit int
}

type ClientConfig struct {
	BaseURL          string
	Model            string
	Timeout          time.Duration
	RequestsPerMin   int
	PayloadLimit     int
	ResilienceConfig resilience.Config
}

func NewClient(cfg ClientConfig) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	rpm := cfg.RequestsPerMin
	if rpm <= 0 {
		rpm = 30
	}
	limit := cfg.PayloadLimit
	if limit <= 0 {
		limit = 4 << 20
	}
	return &Client{
		baseURL:      strings.TrimRight(cfg.BaseURL, "/"),
		model:        cfg.Model,
		httpClient:   &http.Client{Timeout: timeout},
		limiter:      rate.NewLimiter(rate.Limit(float64(rpm)/60.0), rpm),
		executor:     resilience.NewExecutor(cfg.ResilienceConfig),
		payloadLimit: limit,
	}
}

// PayloadLimit exposes the configured binary ceiling to callers that must
// decide between binary submission and text pre-conversion.
func (c *Client) PayloadLimit() int {
	return c.payloadLimit
}

type extractRequest struct {
	Model        string `json:"model"`
	Instructions string `json:"instructions"`
	Text         string `json:"text,omitempty"`
	Document     string `json:"document,omitempty"`
	MimeType     string `json:"mime_type,omitempty"`
}

// ExtractText submits plain text plus an instruction schema and returns the
// capability's freeform response, expected (but not trusted) to contain one
// JSON object.
func (c *Client) ExtractText(ctx context.Context, text, instructions string) (string, error) {
	return c.extract(ctx, extractRequest{
		Model:        c.model,
		Instructions: instructions,
		Text:         text,
	})
}

// ExtractDocument submits raw document bytes. Callers are responsible for
// keeping the payload under PayloadLimit.
func (c *Client) ExtractDocument(ctx context.Context, raw []byte, mimeType, instructions string) (string, error) {
	return c.extract(ctx, extractRequest{
		Model:        c.model,
		Instructions: instructions,
		Document:     base64.StdEncoding.EncodeToString(raw),
		MimeType:     mimeType,
	})
}

func (c *Client) extract(ctx context.Context, req extractRequest) (string, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return "", err
	}

	var response struct {
		Text string `json:"text"`
	}
	call := func(callCtx context.Context) error {
		return c.postJSON(callCtx, "/v1/extract", req, &response, "extract")
	}
	if err := c.executor.Execute(ctx, "extraction.extract", call, classifyExtractionError); err != nil {
		return "", wrapTemporaryIfNeeded("extract", err)
	}
	return strings.TrimSpace(response.Text), nil
}
