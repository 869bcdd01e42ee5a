package ocr

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTier2Client_SendsImageAndDecodesResponse(t *testing.T) {
	var got tier2Request
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"response": "ACME CORP TOTAL 108.25", "done": true}`))
	}))
	defer srv.Close()

	c := NewTier2Client(Tier2Config{URL: srv.URL, Model: "vision-test"}, srv.Client(), discardLogger())
	text, err := c.Recognize(context.Background(), testDoc())
	require.NoError(t, err)
	assert.Equal(t, "ACME CORP TOTAL 108.25", text)

	assert.Equal(t, "vision-test", got.Model)
	assert.False(t, got.Stream)
	require.Len(t, got.Images, 1)
	decoded, err := base64.StdEncoding.DecodeString(got.Images[0])
	require.NoError(t, err)
	assert.Equal(t, []byte("%PDF-1.4"), decoded)
}

func TestTier2Client_SecondAttemptGetsExtendedDeadline(t *testing.T) {
	// the handler outlasts the first deadline but not the extended one, so
	// only the second attempt can come back with text
	var requests atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		requests.Add(1)
		time.Sleep(300 * time.Millisecond)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"response": "slow but readable", "done": true}`))
	}))
	defer srv.Close()

	c := NewTier2Client(Tier2Config{
		URL:          srv.URL,
		Model:        "vision-test",
		Timeout:      100 * time.Millisecond,
		RetryTimeout: 2 * time.Second,
	}, srv.Client(), discardLogger())

	text, err := c.Recognize(context.Background(), testDoc())
	require.NoError(t, err)
	assert.Equal(t, "slow but readable", text)
	assert.Equal(t, int32(2), requests.Load(), "first attempt times out, second retries with more room")
}

func TestTier2Client_GivesUpAfterTwoAttempts(t *testing.T) {
	var requests atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		requests.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := NewTier2Client(Tier2Config{URL: srv.URL, Model: "vision-test"}, srv.Client(), discardLogger())
	_, err := c.Recognize(context.Background(), testDoc())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 503")
	assert.Equal(t, int32(2), requests.Load())
}
