package acquire

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/docuflow/engine/internal/entity"
)

// Fetcher resolves a document reference into bytes.
type Fetcher interface {
	Fetch(ctx context.Context, ref string) (entity.Document, error)
}

// HTTPFetcher downloads documents from http(s) URLs, with a size cap applied
// while reading so an oversized body never fully lands in memory.
type HTTPFetcher struct {
	client   *http.Client
	maxBytes int64
	logger   *slog.Logger
}

func NewHTTPFetcher(client *http.Client, maxBytes int64, logger *slog.Logger) *HTTPFetcher {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &HTTPFetcher{client: client, maxBytes: maxBytes, logger: logger}
}

func (f *HTTPFetcher) Fetch(ctx context.Context, ref string) (entity.Document, error) {
	start := time.Now()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ref, nil)
	if err != nil {
		return entity.Document{}, fmt.Errorf("build request: %w", err)
	}
	resp, err := f.client.Do(req)
	if err != nil {
		f.logger.Error("acquire.http.failed", "ref", ref, "error", err)
		return entity.Document{}, fmt.Errorf("fetch %s: %w", ref, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode/100 != 2 {
		return entity.Document{}, fmt.Errorf("fetch %s: status %d", ref, resp.StatusCode)
	}

	reader := io.Reader(resp.Body)
	if f.maxBytes > 0 {
		reader = io.LimitReader(resp.Body, f.maxBytes+1)
	}
	data, err := io.ReadAll(reader)
	if err != nil {
		return entity.Document{}, fmt.Errorf("read %s: %w", ref, err)
	}
	if f.maxBytes > 0 && int64(len(data)) > f.maxBytes {
		return entity.Document{}, fmt.Errorf("fetch %s: body exceeds %d bytes", ref, f.maxBytes)
	}

	f.logger.Info("acquire.http.ok", "ref", ref, "bytes", len(data), "elapsed_ms", time.Since(start).Milliseconds())
	return entity.Document{Ref: ref, Name: nameFromURL(ref), Bytes: data}, nil
}

// FileFetcher reads documents from the local filesystem.
type FileFetcher struct {
	logger *slog.Logger
}

func NewFileFetcher(logger *slog.Logger) *FileFetcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &FileFetcher{logger: logger}
}

func (f *FileFetcher) Fetch(_ context.Context, ref string) (entity.Document, error) {
	data, err := os.ReadFile(ref)
	if err != nil {
		f.logger.Error("acquire.file.failed", "ref", ref, "error", err)
		return entity.Document{}, fmt.Errorf("read %s: %w", ref, err)
	}
	f.logger.Info("acquire.file.ok", "ref", ref, "bytes", len(data))
	return entity.Document{Ref: ref, Name: filepath.Base(ref), Bytes: data}, nil
}

// AutoFetcher routes refs by scheme: http(s) to the downloader, everything
// else to the filesystem.
type AutoFetcher struct {
	HTTP *HTTPFetcher
	File *FileFetcher
}

func (f *AutoFetcher) Fetch(ctx context.Context, ref string) (entity.Document, error) {
	if strings.HasPrefix(ref, "http://") || strings.HasPrefix(ref, "https://") {
		return f.HTTP.Fetch(ctx, ref)
	}
	return f.File.Fetch(ctx, ref)
}

func nameFromURL(ref string) string {
	u, err := url.Parse(ref)
	if err != nil || u.Path == "" || u.Path == "/" {
		return ref
	}
	return path.Base(u.Path)
}
