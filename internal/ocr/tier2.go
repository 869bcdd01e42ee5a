package ocr

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/google/uuid"

	"github.com/docuflow/engine/internal/entity"
)

const tier2Prompt = "Transcribe all text in this document exactly as it appears. " +
	"Preserve line breaks, amounts and dates. Output only the transcribed text."

// Tier2Config tunes the model-based fallback recognizer.
type Tier2Config struct {
	URL   string
	Model string

	// Timeout bounds the first attempt; RetryTimeout replaces it on the
	// second, giving the model more room when the first try ran out of time.
	Timeout      time.Duration
	RetryTimeout time.Duration
}

// Tier2Client drives a vision model over a local generate API. It is the
// robust path for photographs and degraded scans.
type Tier2Client struct {
	cfg    Tier2Config
	client *http.Client
	logger *slog.Logger
}

func NewTier2Client(cfg Tier2Config, client *http.Client, logger *slog.Logger) *Tier2Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 45 * time.Second
	}
	if cfg.RetryTimeout <= 0 {
		cfg.RetryTimeout = 60 * time.Second
	}
	if client == nil {
		client = &http.Client{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Tier2Client{cfg: cfg, client: client, logger: logger}
}

type tier2Request struct {
	Model  string   `json:"model"`
	Prompt string   `json:"prompt"`
	Images []string `json:"images"`
	Stream bool     `json:"stream"`
}

type tier2Response struct {
	Response string `json:"response"`
	Done     bool   `json:"done"`
}

// Recognize runs the vision model over the document, retrying once with an
// extended deadline.
func (c *Tier2Client) Recognize(ctx context.Context, doc entity.Document) (string, error) {
	reqID := uuid.New().String()
	attempt := 0
	var text string
	err := retry.Do(
		func() error {
			attempt++
			timeout := c.cfg.Timeout
			if attempt > 1 {
				timeout = c.cfg.RetryTimeout
			}
			callCtx, cancel := context.WithTimeout(ctx, timeout)
			defer cancel()

			out, err := c.generate(callCtx, reqID, attempt, doc)
			if err != nil {
				return err
			}
			text = out
			return nil
		},
		retry.Attempts(2),
		retry.Delay(time.Second),
		retry.DelayType(retry.FixedDelay),
		retry.Context(ctx),
		retry.LastErrorOnly(true),
	)
	if err != nil {
		return "", err
	}
	return text, nil
}

func (c *Tier2Client) generate(ctx context.Context, reqID string, attempt int, doc entity.Document) (string, error) {
	start := time.Now()
	body := tier2Request{
		Model:  c.cfg.Model,
		Prompt: tier2Prompt,
		Images: []string{base64.StdEncoding.EncodeToString(doc.Bytes)},
		Stream: false,
	}
	bs, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("encode json: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.URL, bytes.NewReader(bs))
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	c.logger.Info("ocr.tier2.request",
		"req_id", reqID,
		"attempt", attempt,
		"model", c.cfg.Model,
		"file", doc.Name,
	)

	resp, err := c.client.Do(req)
	if err != nil {
		c.logger.Error("ocr.tier2.send_error", "req_id", reqID, "attempt", attempt, "error", err, "elapsed_ms", time.Since(start).Milliseconds())
		return "", err
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			c.logger.Warn("ocr.tier2.body_close_error", "req_id", reqID, "error", err)
		}
	}()

	raw, _ := io.ReadAll(resp.Body)
	c.logger.Info("ocr.tier2.response",
		"req_id", reqID,
		"attempt", attempt,
		"status", resp.StatusCode,
		"bytes", len(raw),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	if resp.StatusCode/100 != 2 {
		return "", fmt.Errorf("generate returned status %d", resp.StatusCode)
	}

	var out tier2Response
	if err := json.Unmarshal(raw, &out); err != nil {
		return "", fmt.Errorf("decode generate response: %w", err)
	}
	return out.Response, nil
}
