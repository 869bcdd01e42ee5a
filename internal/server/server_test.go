package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/docuflow/engine/constants"
	"github.com/docuflow/engine/internal/async"
	"github.com/docuflow/engine/internal/entity"
	"github.com/docuflow/engine/internal/export"
	"github.com/docuflow/engine/internal/llm"
	"github.com/docuflow/engine/internal/ocr"
	"github.com/docuflow/engine/internal/pipeline"
	"github.com/docuflow/engine/internal/repository"
)

type fixedFetcher struct{ doc entity.Document }

func (f *fixedFetcher) Fetch(context.Context, string) (entity.Document, error) {
	return f.doc, nil
}

type fixedRecognizer struct{ text string }

func (f *fixedRecognizer) Recognize(context.Context, entity.Document) (ocr.RecognitionResult, error) {
	return ocr.RecognitionResult{Text: f.text, Engine: constants.EngineTier1, Confidence: constants.ConfidenceHigh}, nil
}

type fixedExtractor struct{ fields map[string]any }

func (f *fixedExtractor) ExtractFields(context.Context, llm.ExtractRequest) (llm.ExtractResult, error) {
	out := make(map[string]any, len(f.fields))
	for k, v := range f.fields {
		out[k] = v
	}
	return llm.ExtractResult{Fields: out}, nil
}

// inlineQueue runs the handler synchronously, keeping tests deterministic.
type inlineQueue struct{ handler async.Handler }

func (q *inlineQueue) Enqueue(ctx context.Context, task async.Task) error {
	return q.handler(ctx, task)
}
func (q *inlineQueue) Shutdown(context.Context) {}

func newTestServer(t *testing.T) (*httptest.Server, repository.JobRepository) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	repo := repository.NewMemoryJobRepository()

	orch := pipeline.NewOrchestrator(
		&fixedFetcher{doc: entity.Document{Name: "inv.pdf", Bytes: []byte("%PDF")}},
		&fixedRecognizer{text: "ACME CORP TOTAL 108.25"},
		&fixedExtractor{fields: map[string]any{
			"vendor_name": "Acme Corp",
			"total":       108.25,
		}},
		nil, nil,
		pipeline.Config{MaxAttempts: 3},
		logger,
	)

	q := &inlineQueue{}
	svc := NewService(repo, orch, q, logger)
	q.handler = svc.HandleTask

	srv := httptest.NewServer(NewServer(svc, export.NewService(repo, logger), logger).Router())
	t.Cleanup(srv.Close)
	return srv, repo
}

func submitBody() []byte {
	b, _ := json.Marshal(map[string]any{
		"document_ref": "inv.pdf",
		"webhook_url":  "http://callback.test/hook",
		"schema": []map[string]string{
			{"name": "vendor_name", "type": "text"},
			{"name": "total", "type": "currency"},
		},
	})
	return b
}

func TestSubmit_AsyncFlow(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, err := http.Post(srv.URL+"/api/v1/extract", "application/json", bytes.NewReader(submitBody()))
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	require.Equal(t, http.StatusAccepted, resp.StatusCode)

	var job entity.Job
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&job))
	require.NotEmpty(t, job.ID)

	// inline queue means the job is already terminal
	statusResp, err := http.Get(srv.URL + "/api/v1/jobs/" + job.ID.String())
	require.NoError(t, err)
	defer func() { _ = statusResp.Body.Close() }()
	require.Equal(t, http.StatusOK, statusResp.StatusCode)

	var got entity.Job
	require.NoError(t, json.NewDecoder(statusResp.Body).Decode(&got))
	assert.Equal(t, constants.JobStatusCompleted, got.Status)
	require.NotNil(t, got.Result)
	assert.Equal(t, "Acme Corp", got.Result.Fields["vendor_name"])
}

func TestSubmit_NoWebhookRunsInline(t *testing.T) {
	srv, _ := newTestServer(t)

	body, _ := json.Marshal(map[string]any{
		"document_ref": "inv.pdf",
		"schema":       []map[string]string{{"name": "total", "type": "currency"}},
	})
	resp, err := http.Post(srv.URL+"/api/v1/extract", "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var job entity.Job
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&job))
	assert.True(t, job.Status.Terminal())
	assert.Equal(t, constants.EngineTier1, job.EngineUsed)
}

func TestSubmit_SyncOverridesWebhook(t *testing.T) {
	srv, _ := newTestServer(t)

	body, _ := json.Marshal(map[string]any{
		"document_ref": "inv.pdf",
		"webhook_url":  "http://callback.test/hook",
		"schema":       []map[string]string{{"name": "total", "type": "currency"}},
		"sync":         true,
	})
	resp, err := http.Post(srv.URL+"/api/v1/extract", "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var job entity.Job
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&job))
	assert.True(t, job.Status.Terminal())
}

func TestSubmit_RejectsBadSchema(t *testing.T) {
	srv, _ := newTestServer(t)

	cases := []map[string]any{
		{"schema": []map[string]string{{"name": "total", "type": "currency"}}},
		{"document_ref": "inv.pdf"},
		{"document_ref": "inv.pdf", "schema": []map[string]string{{"name": "x", "type": "bogus"}}},
		{"document_ref": "inv.pdf", "schema": []map[string]string{
			{"name": "x", "type": "text"}, {"name": "x", "type": "text"},
		}},
	}
	for _, c := range cases {
		b, _ := json.Marshal(c)
		resp, err := http.Post(srv.URL+"/api/v1/extract", "application/json", bytes.NewReader(b))
		require.NoError(t, err)
		_ = resp.Body.Close()
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode, "case %v", c)
	}
}

func TestGetJob_NotFound(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, err := http.Get(srv.URL + "/api/v1/jobs/7c9e6679-7425-40de-944b-e07fc1f90ae7")
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestGetJob_BadID(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, err := http.Get(srv.URL + "/api/v1/jobs/not-a-uuid")
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestListJobs(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, err := http.Post(srv.URL+"/api/v1/extract", "application/json", bytes.NewReader(submitBody()))
	require.NoError(t, err)
	_ = resp.Body.Close()

	listResp, err := http.Get(srv.URL + "/api/v1/jobs")
	require.NoError(t, err)
	defer func() { _ = listResp.Body.Close() }()
	require.Equal(t, http.StatusOK, listResp.StatusCode)

	var out struct {
		Jobs []entity.Job `json:"jobs"`
	}
	require.NoError(t, json.NewDecoder(listResp.Body).Decode(&out))
	assert.Len(t, out.Jobs, 1)
}

func TestHealthz(t *testing.T) {
	srv, _ := newTestServer(t)
	resp, err := http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestExportEndpoint(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, err := http.Post(srv.URL+"/api/v1/extract", "application/json", bytes.NewReader(submitBody()))
	require.NoError(t, err)
	_ = resp.Body.Close()

	exportResp, err := http.Get(srv.URL + "/api/v1/export.xlsx")
	require.NoError(t, err)
	defer func() { _ = exportResp.Body.Close() }()
	require.Equal(t, http.StatusOK, exportResp.StatusCode)
	assert.Contains(t, exportResp.Header.Get("Content-Type"), "spreadsheetml")
	data, _ := io.ReadAll(exportResp.Body)
	assert.NotEmpty(t, data)
}
