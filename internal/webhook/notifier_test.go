package webhook

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/docuflow/engine/internal/common"
)

func testNotifier(cfg Config) *Notifier {
	return NewNotifier(cfg, nil, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func fastConfig() Config {
	return Config{MaxAttempts: 3, BaseDelay: time.Millisecond, Timeout: time.Second}
}

func samplePayload() Payload {
	return Payload{
		JobID:                 "7c9e6679-7425-40de-944b-e07fc1f90ae7",
		Status:                "completed",
		ProcessingTimeSeconds: 12.5,
		EngineUsed:            "tier1",
		Timestamp:             time.Now().UTC(),
	}
}

func TestNotify_DeliversOnFirstAttempt(t *testing.T) {
	var got Payload
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	err := testNotifier(fastConfig()).Notify(context.Background(), srv.URL, samplePayload())
	require.NoError(t, err)
	assert.Equal(t, int32(1), calls.Load())
	assert.Equal(t, "completed", got.Status)
	assert.Equal(t, "tier1", got.EngineUsed)
}

func TestNotify_RetriesOn5xx(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	err := testNotifier(fastConfig()).Notify(context.Background(), srv.URL, samplePayload())
	require.NoError(t, err)
	assert.Equal(t, int32(3), calls.Load())
}

func TestNotify_GivesUpAfterMaxAttempts(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	err := testNotifier(fastConfig()).Notify(context.Background(), srv.URL, samplePayload())
	var whErr *common.WebhookDeliveryError
	require.True(t, errors.As(err, &whErr))
	assert.Equal(t, uint(3), whErr.Attempts)
	assert.Equal(t, int32(3), calls.Load(), "attempts are total, not additional")
}

func TestNotify_ContextCancellationStopsRetries(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	cfg := fastConfig()
	cfg.BaseDelay = time.Minute
	err := testNotifier(cfg).Notify(ctx, srv.URL, samplePayload())
	var whErr *common.WebhookDeliveryError
	require.True(t, errors.As(err, &whErr))
}

func TestNotify_SignsWhenSecretSet(t *testing.T) {
	var sigHeader string
	var body []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sigHeader = r.Header.Get("X-Webhook-Signature")
		body, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	cfg := fastConfig()
	cfg.Secret = "s3cret"
	require.NoError(t, testNotifier(cfg).Notify(context.Background(), srv.URL, samplePayload()))

	mac := hmac.New(sha256.New, []byte("s3cret"))
	mac.Write(body)
	assert.Equal(t, hex.EncodeToString(mac.Sum(nil)), sigHeader)
}

func TestNotify_FailedJobCarriesErrorNotData(t *testing.T) {
	var got Payload
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	p := samplePayload()
	p.Status = "failed"
	p.EngineUsed = ""
	p.Data = nil
	p.Error = "all recognition tiers failed"
	require.NoError(t, testNotifier(fastConfig()).Notify(context.Background(), srv.URL, p))

	assert.Nil(t, got.Data)
	assert.Equal(t, "all recognition tiers failed", got.Error)
}
