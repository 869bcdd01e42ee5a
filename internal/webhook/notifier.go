package webhook

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/avast/retry-go/v4"

	"github.com/docuflow/engine/internal/common"
	"github.com/docuflow/engine/internal/entity"
	"github.com/docuflow/engine/internal/metrics"
)

// Payload is the completion notification body. Data is nil for failed jobs;
// Error is empty for the rest.
type Payload struct {
	JobID                 string                  `json:"job_id"`
	Status                string                  `json:"status"`
	ProcessingTimeSeconds float64                 `json:"processing_time_seconds"`
	EngineUsed            string                  `json:"engine_used,omitempty"`
	Data                  *entity.ExtractedRecord `json:"data,omitempty"`
	Error                 string                  `json:"error,omitempty"`
	Timestamp             time.Time               `json:"timestamp"`
}

// Config tunes delivery behavior.
type Config struct {
	// MaxAttempts is the total number of tries, first included.
	MaxAttempts uint
	BaseDelay   time.Duration
	Timeout     time.Duration

	// Secret, when set, signs each payload with HMAC-SHA256.
	Secret string
}

// Notifier delivers completion notifications with bounded retry. Delivery is
// best effort: a job's outcome stands whether or not the webhook landed.
type Notifier struct {
	cfg    Config
	client *http.Client
	logger *slog.Logger
}

func NewNotifier(cfg Config, client *http.Client, logger *slog.Logger) *Notifier {
	if cfg.MaxAttempts == 0 {
		cfg.MaxAttempts = 3
	}
	if cfg.BaseDelay <= 0 {
		cfg.BaseDelay = time.Second
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if client == nil {
		client = &http.Client{Timeout: cfg.Timeout}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Notifier{cfg: cfg, client: client, logger: logger}
}

// Notify posts the payload to url, retrying with exponential backoff. A
// non-2xx response counts as a failed attempt. The returned error is a
// WebhookDeliveryError and is never fatal to the job.
func (n *Notifier) Notify(ctx context.Context, url string, payload Payload) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return &common.WebhookDeliveryError{URL: url, Cause: fmt.Errorf("encode payload: %w", err)}
	}

	start := time.Now()
	attempt := uint(0)
	err = retry.Do(
		func() error {
			attempt++
			return n.post(ctx, url, body, attempt)
		},
		retry.Attempts(n.cfg.MaxAttempts),
		retry.Delay(n.cfg.BaseDelay),
		retry.DelayType(retry.BackOffDelay),
		retry.Context(ctx),
		retry.LastErrorOnly(true),
	)
	if err != nil {
		metrics.IncWebhookDelivery("failed")
		n.logger.Error("webhook.delivery_failed",
			"url", url,
			"job_id", payload.JobID,
			"attempts", attempt,
			"error", err,
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return &common.WebhookDeliveryError{URL: url, Attempts: attempt, Cause: err}
	}

	metrics.IncWebhookDelivery("ok")
	n.logger.Info("webhook.delivered",
		"url", url,
		"job_id", payload.JobID,
		"attempts", attempt,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return nil
}

func (n *Notifier) post(ctx context.Context, url string, body []byte, attempt uint) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if n.cfg.Secret != "" {
		req.Header.Set("X-Webhook-Signature", sign(n.cfg.Secret, body))
	}

	resp, err := n.client.Do(req)
	if err != nil {
		n.logger.Warn("webhook.attempt_failed", "url", url, "attempt", attempt, "error", err)
		return err
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()

	if resp.StatusCode/100 != 2 {
		err := fmt.Errorf("receiver returned status %d", resp.StatusCode)
		n.logger.Warn("webhook.attempt_failed", "url", url, "attempt", attempt, "error", err)
		return err
	}
	return nil
}

func sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}
