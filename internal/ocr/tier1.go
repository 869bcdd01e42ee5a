package ocr

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/docuflow/engine/internal/entity"
)

// Tier1Client talks to the structure-aware document converter. It is the
// fast path: layout-preserving markdown for digital PDFs and clean scans.
type Tier1Client struct {
	url    string
	client *http.Client
	logger *slog.Logger
}

func NewTier1Client(url string, client *http.Client, logger *slog.Logger) *Tier1Client {
	if client == nil {
		client = &http.Client{Timeout: 60 * time.Second}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Tier1Client{url: url, client: client, logger: logger}
}

type tier1Response struct {
	Document struct {
		MDContent   string `json:"md_content"`
		TextContent string `json:"text_content"`
	} `json:"document"`
	Status string `json:"status"`
}

// Recognize uploads the document and returns its markdown rendering.
func (c *Tier1Client) Recognize(ctx context.Context, doc entity.Document) (string, error) {
	reqID := uuid.New().String()
	start := time.Now()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("files", doc.Name)
	if err != nil {
		return "", fmt.Errorf("build multipart: %w", err)
	}
	if _, err := part.Write(doc.Bytes); err != nil {
		return "", fmt.Errorf("write multipart: %w", err)
	}
	if err := mw.Close(); err != nil {
		return "", fmt.Errorf("close multipart: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, &buf)
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	c.logger.Info("ocr.tier1.request", "req_id", reqID, "file", doc.Name, "bytes", len(doc.Bytes))

	resp, err := c.client.Do(req)
	if err != nil {
		c.logger.Error("ocr.tier1.send_error", "req_id", reqID, "error", err, "elapsed_ms", time.Since(start).Milliseconds())
		return "", err
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			c.logger.Warn("ocr.tier1.body_close_error", "req_id", reqID, "error", err)
		}
	}()

	raw, _ := io.ReadAll(resp.Body)
	c.logger.Info("ocr.tier1.response",
		"req_id", reqID,
		"status", resp.StatusCode,
		"bytes", len(raw),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	if resp.StatusCode/100 != 2 {
		return "", fmt.Errorf("converter returned status %d", resp.StatusCode)
	}

	var out tier1Response
	if err := json.Unmarshal(raw, &out); err != nil {
		return "", fmt.Errorf("decode converter response: %w", err)
	}
	if out.Document.MDContent != "" {
		return out.Document.MDContent, nil
	}
	return out.Document.TextContent, nil
}
